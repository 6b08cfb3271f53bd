package app

import (
	"strings"

	"github.com/ggonzalez94/oftbridge/internal/diag"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/httpx"
	"github.com/ggonzalez94/oftbridge/internal/model"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/route"
	"github.com/ggonzalez94/oftbridge/internal/schema"
	"github.com/ggonzalez94/oftbridge/internal/transfer"
	"github.com/spf13/cobra"
)

// intentArgs are the flags shared by quote, approve, send and simulate.
type intentArgs struct {
	direction string
	intent    transfer.Intent
}

func (a *intentArgs) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.direction, "direction", "", "Transfer direction (base-to-linea|linea-to-base)")
	cmd.Flags().StringVar(&a.intent.Amount, "amount", "", "Amount in token units (e.g. 12.5)")
	cmd.Flags().StringVar(&a.intent.Slippage, "slippage", transfer.DefaultSlippage, "Slippage tolerance in percent")
	cmd.Flags().StringVar(&a.intent.LzGas, "lz-gas", transfer.DefaultLzGas, "Destination lzReceive gas limit")
}

// parse validates direction and intent before any wallet or RPC is opened.
func (a *intentArgs) parse() (registry.Direction, error) {
	dir, err := route.ParseDirection(a.direction)
	if err != nil {
		return "", err
	}
	if err := a.intent.Validate(); err != nil {
		return "", err
	}
	return dir, nil
}

func walletAnnotations(mutates bool) map[string]string {
	ann := map[string]string{schema.AnnotationWallet: "true"}
	if mutates {
		ann[schema.AnnotationMutates] = "true"
	}
	return ann
}

func (s *runtimeState) newConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "connect",
		Short:       "Connect the wallet and report its account and network",
		Annotations: walletAnnotations(true),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := s.ensureService(s.ctx, true); err != nil {
				return err
			}
			h, err := s.sync.Acquire()
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), model.ConnectResult{
				Backend: s.settings.WalletBackend,
				Account: h.Conn.Account().Hex(),
				ChainID: h.Conn.ChainID(),
				Chain:   h.Conn.Chain().Name,
				Known:   h.Conn.Known(),
			}, nil)
		},
	}
}

func (s *runtimeState) newSwitchCommand() *cobra.Command {
	var chainArg string
	cmd := &cobra.Command{
		Use:         "switch",
		Short:       "Switch the wallet to a supported network",
		Annotations: walletAnnotations(true),
		RunE: func(cmd *cobra.Command, _ []string) error {
			chain, err := registry.ParseChain(chainArg)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "resolve chain", err)
			}
			chain = chain.WithRPC(s.settings.RPCOverrides[chain.Slug])
			if err := s.ensureService(s.ctx, false); err != nil {
				return err
			}
			res, err := s.service.Switch(s.ctx, chain)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), res, nil)
		},
	}
	cmd.Flags().StringVar(&chainArg, "chain", "", "Target chain (base|linea|chain id)")
	_ = cmd.MarkFlagRequired("chain")
	return cmd
}

func (s *runtimeState) newStatusCommand() *cobra.Command {
	var directionArg string
	cmd := &cobra.Command{
		Use:         "status",
		Short:       "Show balance, allowance and peer for a direction",
		Annotations: walletAnnotations(false),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := route.ParseDirection(directionArg)
			if err != nil {
				return err
			}
			ctx, cancel := s.readContext()
			defer cancel()
			if err := s.ensureService(ctx, false); err != nil {
				return err
			}
			st, err := s.service.Status(ctx, dir)
			if err != nil {
				return err
			}
			var warnings []string
			if !st.OnSourceChain {
				warnings = append(warnings, "wallet is not on "+st.SourceChain+"; allowance and peer were not read")
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), st, warnings)
		},
	}
	cmd.Flags().StringVar(&directionArg, "direction", "", "Transfer direction (base-to-linea|linea-to-base)")
	return cmd
}

func (s *runtimeState) newQuoteCommand() *cobra.Command {
	var args intentArgs
	cmd := &cobra.Command{
		Use:         "quote",
		Short:       "Quote the native messaging fee for a transfer",
		Annotations: walletAnnotations(false),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := args.parse()
			if err != nil {
				return err
			}
			ctx, cancel := s.readContext()
			defer cancel()
			if err := s.ensureService(ctx, false); err != nil {
				return err
			}
			q, err := s.service.Quote(ctx, dir, args.intent)
			if err != nil {
				return err
			}
			var warnings []string
			if q.PeerError != "" {
				warnings = append(warnings, "peer lookup failed: "+q.PeerError)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), q, warnings)
		},
	}
	args.bind(cmd)
	return cmd
}

func (s *runtimeState) newApproveCommand() *cobra.Command {
	var args intentArgs
	cmd := &cobra.Command{
		Use:         "approve",
		Short:       "Approve the route spender for exactly the transfer amount",
		Annotations: walletAnnotations(true),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := args.parse()
			if err != nil {
				return err
			}
			if err := s.ensureService(s.ctx, false); err != nil {
				return err
			}
			res, err := s.service.Approve(s.ctx, dir, args.intent)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), res, nil)
		},
	}
	args.bind(cmd)
	return cmd
}

func (s *runtimeState) newSendCommand() *cobra.Command {
	var args intentArgs
	cmd := &cobra.Command{
		Use:         "send",
		Short:       "Approve if needed and send tokens to the other chain",
		Annotations: walletAnnotations(true),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := args.parse()
			if err != nil {
				return err
			}
			if err := s.ensureService(s.ctx, false); err != nil {
				return err
			}
			res, err := s.service.Send(s.ctx, dir, args.intent)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), res, nil)
		},
	}
	args.bind(cmd)
	return cmd
}

func (s *runtimeState) newSimulateCommand() *cobra.Command {
	var args intentArgs
	var rpcURL string
	cmd := &cobra.Command{
		Use:         "simulate",
		Short:       "Dry-run the exact send call against a debug RPC and decode any revert",
		Annotations: walletAnnotations(false),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := args.parse()
			if err != nil {
				return err
			}
			caller, err := diag.NewRPCCaller(httpx.New(s.settings.Timeout, s.settings.Retries), strings.TrimSpace(rpcURL))
			if err != nil {
				return err
			}
			ctx, cancel := s.readContext()
			defer cancel()
			if err := s.ensureService(ctx, false); err != nil {
				return err
			}
			call, err := s.service.PrepareSend(ctx, dir, args.intent)
			if err != nil {
				return err
			}
			sim, err := diag.Simulate(ctx, caller, call)
			if err != nil {
				return err
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), sim, nil)
		},
	}
	args.bind(cmd)
	cmd.Flags().StringVar(&rpcURL, "rpc-url", "", "Debug RPC URL for the source chain")
	_ = cmd.MarkFlagRequired("rpc-url")
	return cmd
}
