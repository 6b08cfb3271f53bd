package diag

import (
	"context"
	"strconv"
	"time"

	"github.com/ggonzalez94/oftbridge/internal/cache"
	"github.com/ggonzalez94/oftbridge/internal/httpx"
	"github.com/ggonzalez94/oftbridge/internal/oft"
	"github.com/ggonzalez94/oftbridge/internal/route"
	"github.com/rs/zerolog"
)

// Inspection is a route with its peer entry read from the source chain.
type Inspection struct {
	Route     route.Route `json:"route"`
	Peer      string      `json:"peer,omitempty"`
	PeerError string      `json:"peer_error,omitempty"`
	Cache     string      `json:"cache"`
	CacheAge  int64       `json:"cache_age_ms,omitempty"`
}

type peerEntry struct {
	Peer string `json:"peer"`
}

// Inspector reads peers over each route's source RPC. Reads are cached for
// ttl; a stale entry is served when the node is unreachable.
type Inspector struct {
	client *httpx.Client
	cache  *cache.Store
	ttl    time.Duration
	log    zerolog.Logger
}

func NewInspector(client *httpx.Client, store *cache.Store, ttl time.Duration, logger zerolog.Logger) *Inspector {
	return &Inspector{client: client, cache: store, ttl: ttl, log: logger.With().Str("component", "diag").Logger()}
}

func (i *Inspector) Inspect(ctx context.Context, rt route.Route, refresh bool) Inspection {
	out := Inspection{Route: rt, Cache: "bypass"}
	key := cache.Key("peer", strconv.FormatInt(rt.Source.ChainID, 10), rt.PeerReader.Hex(), strconv.FormatUint(uint64(rt.Destination.EndpointID), 10))

	var cached peerEntry
	var hit cache.Result
	if i.cache != nil {
		res, err := i.cache.GetJSON(key, &cached)
		if err != nil {
			i.log.Debug().Err(err).Str("key", key).Msg("cache read failed")
		} else {
			hit = res
		}
		out.Cache = "miss"
		if hit.Hit && !hit.Stale && !refresh {
			out.Peer = cached.Peer
			out.Cache = "hit"
			out.CacheAge = hit.Age.Milliseconds()
			return out
		}
	}

	caller, err := NewRPCCaller(i.client, rt.Source.RPCURL)
	if err == nil {
		var peer [32]byte
		peer, err = oft.NewBridge(rt.PeerReader, caller).Peer(ctx, rt.Destination.EndpointID)
		if err == nil {
			out.Peer = oft.Bytes32ToAddress(peer).Hex()
			if i.cache != nil {
				if err := i.cache.SetJSON(key, peerEntry{Peer: out.Peer}, i.ttl); err != nil {
					i.log.Debug().Err(err).Str("key", key).Msg("cache write failed")
				}
			}
			return out
		}
	}
	if hit.Hit {
		out.Peer = cached.Peer
		out.Cache = "stale"
		out.CacheAge = hit.Age.Milliseconds()
		return out
	}
	out.PeerError = err.Error()
	return out
}
