package app

import (
	"errors"
	"strings"

	"github.com/ggonzalez94/oftbridge/internal/cache"
	"github.com/ggonzalez94/oftbridge/internal/diag"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/httpx"
	"github.com/ggonzalez94/oftbridge/internal/model"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/route"
	"github.com/spf13/cobra"
)

func (s *runtimeState) newChainsCommand() *cobra.Command {
	root := &cobra.Command{Use: "chains", Short: "Supported chains"}
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List supported chains with their endpoint ids and RPCs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items := make([]model.ChainInfo, 0, 2)
			for _, c := range registry.Chains() {
				c = c.WithRPC(s.settings.RPCOverrides[c.Slug])
				items = append(items, model.ChainInfo{
					ChainID:      c.ChainID,
					CAIP2:        c.CAIP2(),
					Slug:         c.Slug,
					Name:         c.Name,
					EndpointID:   c.EndpointID,
					NativeSymbol: c.NativeSymbol,
					RPCURL:       c.RPCURL,
					ExplorerURL:  c.ExplorerURL,
				})
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, nil)
		},
	})
	return root
}

func (s *runtimeState) newRoutesCommand() *cobra.Command {
	root := &cobra.Command{Use: "routes", Short: "Bridge route topology"}
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the contracts behind every direction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			items := make([]model.RouteInfo, 0, 2)
			for _, rt := range s.routes.All() {
				items = append(items, routeInfo(rt))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, nil)
		},
	})

	var directionArg string
	var refresh bool
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show a route with its configured peer read from the source chain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := route.ParseDirection(directionArg)
			if err != nil {
				return err
			}
			rt := s.routes.Resolve(dir)
			var store *cache.Store
			if s.settings.CacheEnabled {
				store, err = s.openCache()
				if err != nil {
					s.logger.Warn().Err(err).Msg("peer cache unavailable")
				}
			}
			ctx, cancel := s.readContext()
			defer cancel()
			inspector := diag.NewInspector(httpx.New(s.settings.Timeout, s.settings.Retries), store, s.settings.PeerCacheTTL, s.logger)
			res := inspector.Inspect(ctx, rt, refresh)

			info := routeInfo(rt)
			info.Peer = res.Peer
			info.PeerError = res.PeerError
			info.Cache = res.Cache
			var warnings []string
			if res.Cache == "stale" {
				warnings = append(warnings, "peer served from stale cache; source RPC unreachable")
			}
			if res.PeerError != "" {
				warnings = append(warnings, "peer lookup failed: "+res.PeerError)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), info, warnings)
		},
	}
	inspect.Flags().StringVar(&directionArg, "direction", "", "Transfer direction (base-to-linea|linea-to-base)")
	inspect.Flags().BoolVar(&refresh, "refresh", false, "Bypass the peer cache")
	root.AddCommand(inspect)
	return root
}

func routeInfo(rt route.Route) model.RouteInfo {
	return model.RouteInfo{
		Direction:     string(rt.Direction),
		Source:        rt.Source.Slug,
		Destination:   rt.Destination.Slug,
		DstEid:        rt.Destination.EndpointID,
		Token:         rt.Token.Hex(),
		Spender:       rt.Spender.Hex(),
		QuoteContract: rt.QuoteContract.Hex(),
		SendContract:  rt.SendContract.Hex(),
		PeerReader:    rt.PeerReader.Hex(),
	}
}

func (s *runtimeState) openCache() (*cache.Store, error) {
	if s.cache != nil {
		return s.cache, nil
	}
	store, err := cache.Open(s.settings.CachePath, s.settings.CacheLockPath)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "open cache", err)
	}
	s.cache = store
	return store, nil
}

func (s *runtimeState) newActivityCommand() *cobra.Command {
	root := &cobra.Command{Use: "activity", Short: "Recorded approve and send flows"}

	var statusArg, intentArg, directionArg string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded flows, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := execution.ListFilter{
				Status: strings.TrimSpace(statusArg),
				Limit:  limit,
			}
			switch strings.ToLower(strings.TrimSpace(intentArg)) {
			case "":
			case "approve":
				filter.Intent = execution.IntentApprove
			case "send":
				filter.Intent = execution.IntentSend
			default:
				return clierr.New(clierr.CodeUsage, "--intent must be approve or send")
			}
			if strings.TrimSpace(directionArg) != "" {
				dir, err := route.ParseDirection(directionArg)
				if err != nil {
					return err
				}
				filter.Direction = string(dir)
			}
			store, err := s.openActivityStore()
			if err != nil {
				return err
			}
			items, err := store.List(filter)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list activity", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), items, nil)
		},
	}
	list.Flags().StringVar(&statusArg, "status", "", "Filter by status (running|completed|failed|superseded)")
	list.Flags().StringVar(&intentArg, "intent", "", "Filter by intent (approve|send)")
	list.Flags().StringVar(&directionArg, "direction", "", "Filter by direction")
	list.Flags().IntVar(&limit, "limit", 20, "Maximum records")

	show := &cobra.Command{
		Use:   "show <action-id>",
		Short: "Show one recorded flow with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := s.openActivityStore()
			if err != nil {
				return err
			}
			action, err := store.Get(args[0])
			if err != nil {
				if errors.Is(err, execution.ErrActionNotFound) {
					return clierr.Wrap(clierr.CodeUsage, "activity record not found", err)
				}
				return clierr.Wrap(clierr.CodeInternal, "read activity", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), action, nil)
		},
	}
	root.AddCommand(list, show)
	return root
}
