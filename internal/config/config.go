package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ggonzalez94/oftbridge/internal/registry"
	"gopkg.in/yaml.v3"
)

const (
	WalletLocal  = "local"
	WalletRemote = "remote"

	appDir = "oftbridge"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	NoCache        bool
	LogLevel       string
	Quiet          bool
	Wallet         string
	RelayURL       string
	KeySource      string
	PrivateKey     string
}

type Settings struct {
	OutputMode     string
	SelectFields   []string
	ResultsOnly    bool
	EnableCommands []string
	Timeout        time.Duration
	Retries        int

	LogLevel string
	Quiet    bool

	CacheEnabled  bool
	CachePath     string
	CacheLockPath string
	PeerCacheTTL  time.Duration

	ActivityPath     string
	ActivityLockPath string

	WalletBackend   string
	RelayURL        string
	RelayOrigin     string
	KeySource       string
	PrivateKey      string
	WalletStatePath string
	WalletLockPath  string

	RPCOverrides   map[string]string
	RouteOverrides map[registry.Direction]registry.RouteRecord

	Simulate           bool
	PollInterval       time.Duration
	StepTimeout        time.Duration
	GasMultiplier      float64
	MaxFeeGwei         string
	MaxPriorityFeeGwei string
}

type fileConfig struct {
	Output   string `yaml:"output"`
	Timeout  string `yaml:"timeout"`
	Retries  *int   `yaml:"retries"`
	LogLevel string `yaml:"log_level"`
	Cache    struct {
		Enabled  *bool  `yaml:"enabled"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
		PeerTTL  string `yaml:"peer_ttl"`
	} `yaml:"cache"`
	Activity struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"activity"`
	Wallet struct {
		Backend     string `yaml:"backend"`
		RelayURL    string `yaml:"relay_url"`
		RelayOrigin string `yaml:"relay_origin"`
		KeySource   string `yaml:"key_source"`
		StatePath   string `yaml:"state_path"`
		LockPath    string `yaml:"lock_path"`
	} `yaml:"wallet"`
	RPC       map[string]string                           `yaml:"rpc"`
	Routes    map[registry.Direction]registry.RouteRecord `yaml:"routes"`
	Execution struct {
		Simulate           *bool    `yaml:"simulate"`
		PollInterval       string   `yaml:"poll_interval"`
		StepTimeout        string   `yaml:"step_timeout"`
		GasMultiplier      *float64 `yaml:"gas_multiplier"`
		MaxFeeGwei         string   `yaml:"max_fee_gwei"`
		MaxPriorityFeeGwei string   `yaml:"max_priority_fee_gwei"`
	} `yaml:"execution"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.PeerCacheTTL <= 0 {
		settings.PeerCacheTTL = time.Hour
	}
	return settings, validate(settings)
}

func defaultSettings() (Settings, error) {
	cacheDir, err := userDir("XDG_CACHE_HOME", ".cache")
	if err != nil {
		return Settings{}, err
	}
	stateDir, err := userDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:       "json",
		Timeout:          10 * time.Second,
		Retries:          2,
		LogLevel:         "info",
		CacheEnabled:     true,
		CachePath:        filepath.Join(cacheDir, "cache.db"),
		CacheLockPath:    filepath.Join(cacheDir, "cache.lock"),
		PeerCacheTTL:     time.Hour,
		ActivityPath:     filepath.Join(stateDir, "activity.db"),
		ActivityLockPath: filepath.Join(stateDir, "activity.lock"),
		WalletBackend:    WalletLocal,
		KeySource:        "auto",
		WalletStatePath:  filepath.Join(stateDir, "wallet.yaml"),
		WalletLockPath:   filepath.Join(stateDir, "wallet.lock"),
		RPCOverrides:     map[string]string{},
		RouteOverrides:   map[registry.Direction]registry.RouteRecord{},
		Simulate:         true,
		PollInterval:     2 * time.Second,
		StepTimeout:      2 * time.Minute,
		GasMultiplier:    1.2,
	}, nil
}

func userDir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, appDir), nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	if v := os.Getenv("OFTBRIDGE_CONFIG"); v != "" {
		return v, nil
	}
	dir, err := userDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if err := setDuration(&settings.Timeout, cfg.Timeout, "config timeout"); err != nil {
		return err
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	setString(&settings.LogLevel, cfg.LogLevel)

	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	setString(&settings.CachePath, cfg.Cache.Path)
	setString(&settings.CacheLockPath, cfg.Cache.LockPath)
	if err := setDuration(&settings.PeerCacheTTL, cfg.Cache.PeerTTL, "config cache.peer_ttl"); err != nil {
		return err
	}
	setString(&settings.ActivityPath, cfg.Activity.Path)
	setString(&settings.ActivityLockPath, cfg.Activity.LockPath)

	setString(&settings.WalletBackend, strings.ToLower(cfg.Wallet.Backend))
	setString(&settings.RelayURL, cfg.Wallet.RelayURL)
	setString(&settings.RelayOrigin, cfg.Wallet.RelayOrigin)
	setString(&settings.KeySource, cfg.Wallet.KeySource)
	setString(&settings.WalletStatePath, cfg.Wallet.StatePath)
	setString(&settings.WalletLockPath, cfg.Wallet.LockPath)

	for slug, url := range cfg.RPC {
		settings.RPCOverrides[strings.ToLower(slug)] = url
	}
	for dir, rec := range cfg.Routes {
		settings.RouteOverrides[dir] = rec
	}

	if cfg.Execution.Simulate != nil {
		settings.Simulate = *cfg.Execution.Simulate
	}
	if err := setDuration(&settings.PollInterval, cfg.Execution.PollInterval, "config execution.poll_interval"); err != nil {
		return err
	}
	if err := setDuration(&settings.StepTimeout, cfg.Execution.StepTimeout, "config execution.step_timeout"); err != nil {
		return err
	}
	if cfg.Execution.GasMultiplier != nil {
		settings.GasMultiplier = *cfg.Execution.GasMultiplier
	}
	setString(&settings.MaxFeeGwei, cfg.Execution.MaxFeeGwei)
	setString(&settings.MaxPriorityFeeGwei, cfg.Execution.MaxPriorityFeeGwei)
	return nil
}

func applyEnv(settings *Settings) error {
	if v := os.Getenv("OFTBRIDGE_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("OFTBRIDGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("OFTBRIDGE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	setString(&settings.LogLevel, os.Getenv("OFTBRIDGE_LOG_LEVEL"))
	if v := os.Getenv("OFTBRIDGE_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	setString(&settings.CachePath, os.Getenv("OFTBRIDGE_CACHE_PATH"))
	setString(&settings.CacheLockPath, os.Getenv("OFTBRIDGE_CACHE_LOCK_PATH"))
	setString(&settings.ActivityPath, os.Getenv("OFTBRIDGE_ACTIVITY_PATH"))
	setString(&settings.ActivityLockPath, os.Getenv("OFTBRIDGE_ACTIVITY_LOCK_PATH"))
	setString(&settings.WalletBackend, strings.ToLower(os.Getenv("OFTBRIDGE_WALLET")))
	setString(&settings.RelayURL, os.Getenv("OFTBRIDGE_RELAY_URL"))
	setString(&settings.KeySource, os.Getenv("OFTBRIDGE_KEY_SOURCE"))
	setString(&settings.WalletStatePath, os.Getenv("OFTBRIDGE_WALLET_STATE_PATH"))
	for _, chain := range registry.Chains() {
		setEntry(settings.RPCOverrides, chain.Slug, os.Getenv("OFTBRIDGE_RPC_"+strings.ToUpper(chain.Slug)))
	}
	if v := os.Getenv("OFTBRIDGE_NO_SIMULATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.Simulate = !b
		}
	}
	if v := os.Getenv("OFTBRIDGE_STEP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.StepTimeout = d
		}
	}
	if v := os.Getenv("OFTBRIDGE_GAS_MULTIPLIER"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse OFTBRIDGE_GAS_MULTIPLIER: %w", err)
		}
		settings.GasMultiplier = f
	}
	setString(&settings.MaxFeeGwei, os.Getenv("OFTBRIDGE_MAX_FEE_GWEI"))
	setString(&settings.MaxPriorityFeeGwei, os.Getenv("OFTBRIDGE_MAX_PRIORITY_FEE_GWEI"))
	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if fields := splitList(flags.Select); len(fields) > 0 {
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly
	if allowed := splitList(flags.EnableCommands); len(allowed) > 0 {
		settings.EnableCommands = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	setString(&settings.LogLevel, flags.LogLevel)
	if flags.Quiet {
		settings.Quiet = true
	}
	setString(&settings.WalletBackend, strings.ToLower(strings.TrimSpace(flags.Wallet)))
	setString(&settings.RelayURL, flags.RelayURL)
	setString(&settings.KeySource, strings.ToLower(strings.TrimSpace(flags.KeySource)))
	setString(&settings.PrivateKey, strings.TrimSpace(flags.PrivateKey))
	return nil
}

func validate(settings Settings) error {
	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	switch settings.WalletBackend {
	case WalletLocal:
	case WalletRemote:
		if strings.TrimSpace(settings.RelayURL) == "" {
			return fmt.Errorf("remote wallet requires --relay-url or OFTBRIDGE_RELAY_URL")
		}
		if settings.PrivateKey != "" {
			return fmt.Errorf("--private-key only applies to the local wallet")
		}
	default:
		return fmt.Errorf("wallet must be %s or %s", WalletLocal, WalletRemote)
	}
	for slug := range settings.RPCOverrides {
		if _, ok := registry.ChainBySlug(slug); !ok {
			return fmt.Errorf("rpc override for unknown chain %q", slug)
		}
	}
	if settings.GasMultiplier <= 1 {
		return fmt.Errorf("gas multiplier must be greater than 1")
	}
	return nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setEntry(dst map[string]string, key, v string) {
	if strings.TrimSpace(v) != "" {
		dst[key] = strings.TrimSpace(v)
	}
}

func setDuration(dst *time.Duration, raw, what string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	*dst = d
	return nil
}
