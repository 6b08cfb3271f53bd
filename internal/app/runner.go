package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ggonzalez94/oftbridge/internal/activity"
	"github.com/ggonzalez94/oftbridge/internal/cache"
	"github.com/ggonzalez94/oftbridge/internal/config"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/model"
	"github.com/ggonzalez94/oftbridge/internal/network"
	"github.com/ggonzalez94/oftbridge/internal/out"
	"github.com/ggonzalez94/oftbridge/internal/policy"
	"github.com/ggonzalez94/oftbridge/internal/route"
	"github.com/ggonzalez94/oftbridge/internal/schema"
	"github.com/ggonzalez94/oftbridge/internal/session"
	"github.com/ggonzalez94/oftbridge/internal/transfer"
	"github.com/ggonzalez94/oftbridge/internal/version"
	"github.com/ggonzalez94/oftbridge/internal/wallet"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	openWallet WalletOpener
	dial       network.Dialer
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout:     stdout,
		stderr:     stderr,
		now:        time.Now,
		openWallet: OpenWallet,
		dial:       network.DialEthclient,
	}
}

type runtimeState struct {
	runner      *Runner
	flags       config.GlobalFlags
	assumeYes   bool
	settings    config.Settings
	logger      zerolog.Logger
	root        *cobra.Command
	lastCommand string
	ctx         context.Context

	routes   *route.Table
	cache    *cache.Store
	store    *execution.Store
	wallet   wallet.Provider
	sync     *network.Synchronizer
	service  *transfer.Service
	stopSync context.CancelFunc
}

func (r *Runner) Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	state := &runtimeState{runner: r, ctx: ctx, logger: zerolog.Nop()}
	root := state.newRootCommand()
	state.root = root
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.ExecuteContext(ctx)
	err = normalizeRunError(err)
	defer state.close()
	if err == nil {
		return 0
	}
	// A flow overtaken by a wallet change ends quietly; its result belongs
	// to a session that no longer exists.
	if session.IsSuperseded(err) {
		state.logger.Info().Str("command", state.lastCommand).Msg("flow superseded by a wallet change; result discarded")
		return 0
	}
	state.renderError("", err)
	return clierr.ExitCode(err)
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Bridge an OFT token between Base and Linea over LayerZero",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			logger, err := activity.New(s.runner.stderr, activity.Options{
				Level:   settings.LogLevel,
				Quiet:   settings.Quiet,
				NoColor: !isTerminal(s.runner.stderr),
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "configure logging", err)
			}
			s.logger = logger

			routes, err := route.NewTable(route.Merge(settings.RouteOverrides), settings.RPCOverrides)
			if err != nil {
				return err
			}
			s.routes = routes
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	pf := cmd.PersistentFlags()
	pf.BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	pf.BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	pf.StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated, dotted paths)")
	pf.BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	pf.StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	pf.StringVar(&s.flags.Timeout, "timeout", "", "RPC read timeout")
	pf.IntVar(&s.flags.Retries, "retries", -1, "Retries per diagnostic RPC request")
	pf.BoolVar(&s.flags.NoCache, "no-cache", false, "Disable cache reads and writes")
	pf.StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	pf.StringVar(&s.flags.LogLevel, "log-level", "", "Activity log level (debug|info|warn|error)")
	pf.BoolVarP(&s.flags.Quiet, "quiet", "q", false, "Suppress the activity log")
	pf.StringVar(&s.flags.Wallet, "wallet", "", "Wallet backend (local|remote)")
	pf.StringVar(&s.flags.RelayURL, "relay-url", "", "Remote wallet relay websocket URL")
	pf.StringVar(&s.flags.KeySource, "key-source", "", "Local signer key source (auto|env|file|keystore)")
	pf.StringVar(&s.flags.PrivateKey, "private-key", "", "Private key hex override for local signer (less safe)")
	pf.BoolVarP(&s.assumeYes, "yes", "y", false, "Confirm wallet prompts without asking")

	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(s.newChainsCommand())
	cmd.AddCommand(s.newRoutesCommand())
	cmd.AddCommand(s.newActivityCommand())
	cmd.AddCommand(s.newConnectCommand())
	cmd.AddCommand(s.newSwitchCommand())
	cmd.AddCommand(s.newStatusCommand())
	cmd.AddCommand(s.newQuoteCommand())
	cmd.AddCommand(s.newApproveCommand())
	cmd.AddCommand(s.newSendCommand())
	cmd.AddCommand(s.newSimulateCommand())
	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Build(s.root, strings.Join(args, " "))
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil)
		},
	}
}

// readContext bounds a read-only command by the configured timeout.
func (s *runtimeState) readContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, s.settings.Timeout)
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta:     s.meta(commandPath),
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := "internal_error"
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		message = cErr.Message
		if cErr.Cause != nil {
			message = fmt.Sprintf("%s: %v", cErr.Message, cErr.Cause)
		}
		if name := clierr.TypeName(cErr.Code); name != "" {
			typ = name
		}
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Meta: s.meta(commandPath),
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) meta(commandPath string) model.EnvelopeMeta {
	m := model.EnvelopeMeta{
		RequestID: newRequestID(),
		Timestamp: s.runner.now().UTC(),
		Command:   commandPath,
	}
	if s.sync == nil {
		return m
	}
	ws := &model.WalletState{Backend: s.settings.WalletBackend, Session: uint64(s.sync.Guard().Current())}
	if h, err := s.sync.Acquire(); err == nil {
		ws.Account = h.Conn.Account().Hex()
		ws.ChainID = h.Conn.ChainID()
	}
	m.Wallet = ws
	return m
}

func (s *runtimeState) close() {
	if s.stopSync != nil {
		s.stopSync()
	}
	if s.sync != nil {
		s.sync.Close()
	}
	if s.wallet != nil {
		_ = s.wallet.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"flag needs an argument",
		"invalid argument",
		"accepts ",
		"requires at least",
		"required flag",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
