package app

import (
	"context"

	"github.com/ggonzalez94/oftbridge/internal/config"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/execution/signer"
	"github.com/ggonzalez94/oftbridge/internal/network"
	"github.com/ggonzalez94/oftbridge/internal/prompt"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/transfer"
	"github.com/ggonzalez94/oftbridge/internal/wallet"
	"github.com/ggonzalez94/oftbridge/internal/wallet/local"
	"github.com/ggonzalez94/oftbridge/internal/wallet/remote"
	"github.com/rs/zerolog"
)

// WalletOpener builds the wallet provider selected by settings.
type WalletOpener func(ctx context.Context, settings config.Settings, confirm prompt.Confirmer, logger *zerolog.Logger) (wallet.Provider, error)

// OpenWallet opens the local key wallet or dials the remote relay.
func OpenWallet(ctx context.Context, settings config.Settings, confirm prompt.Confirmer, logger *zerolog.Logger) (wallet.Provider, error) {
	switch settings.WalletBackend {
	case config.WalletRemote:
		client, err := remote.Dial(ctx, settings.RelayURL, remote.Options{
			Origin:         settings.RelayOrigin,
			RequestTimeout: settings.StepTimeout,
			Logger:         logger,
		})
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "connect wallet relay", err)
		}
		return client, nil
	default:
		sgn, err := signer.NewLocalSignerFromInputs(settings.KeySource, settings.PrivateKey)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeSigner, "load signer", err)
		}
		home := registry.Chains()[0]
		home = home.WithRPC(settings.RPCOverrides[home.Slug])
		w, err := local.Open(local.Options{
			StatePath: settings.WalletStatePath,
			LockPath:  settings.WalletLockPath,
			Home:      home,
			Signer:    sgn,
			Confirm:   confirm,
			Execute:   executeOptions(settings),
			Logger:    logger,
		})
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeInternal, "open local wallet", err)
		}
		return w, nil
	}
}

func executeOptions(settings config.Settings) execution.ExecuteOptions {
	opts := execution.DefaultExecuteOptions()
	opts.Simulate = settings.Simulate
	if settings.PollInterval > 0 {
		opts.PollInterval = settings.PollInterval
	}
	if settings.StepTimeout > 0 {
		opts.StepTimeout = settings.StepTimeout
	}
	if settings.GasMultiplier > 1 {
		opts.GasMultiplier = settings.GasMultiplier
	}
	opts.MaxFeeGwei = settings.MaxFeeGwei
	opts.MaxPriorityFeeGwei = settings.MaxPriorityFeeGwei
	return opts
}

// ensureService opens the wallet, builds the first connection and starts
// the event loop. connect asks the wallet for account access; otherwise an
// unauthorized wallet fails with not_connected.
func (s *runtimeState) ensureService(ctx context.Context, connect bool) error {
	if s.service != nil {
		return nil
	}
	w, err := s.runner.openWallet(ctx, s.settings, prompt.ForMode(s.assumeYes), &s.logger)
	if err != nil {
		return err
	}
	s.wallet = w
	s.sync = network.New(w, nil, network.Options{
		Dial:         s.runner.dial,
		Execute:      executeOptions(s.settings),
		RPCOverrides: s.settings.RPCOverrides,
		Logger:       &s.logger,
	})
	if connect {
		_, err = s.sync.Connect(ctx)
	} else {
		_, err = s.sync.Resume(ctx)
	}
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(s.ctx)
	s.stopSync = cancel
	go s.sync.Run(runCtx)

	opts := transfer.Options{Simulate: s.settings.Simulate, Logger: &s.logger}
	if store, err := s.openActivityStore(); err != nil {
		s.logger.Warn().Err(err).Msg("activity log unavailable; flows will not be recorded")
	} else {
		opts.Journal = store
	}
	s.service = transfer.NewService(s.routes, s.sync, opts)
	return nil
}

func (s *runtimeState) openActivityStore() (*execution.Store, error) {
	if s.store != nil {
		return s.store, nil
	}
	store, err := execution.OpenStore(s.settings.ActivityPath, s.settings.ActivityLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open activity log", err)
	}
	s.store = store
	return store, nil
}
