// Package route maps a transfer direction to the complete set of contracts
// that play each bridge role on the source chain.
package route

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/registry"
)

// Route is the resolved topology for one direction. Roles are never derived
// from each other; each one is read from the table entry.
type Route struct {
	Direction     registry.Direction       `json:"direction"`
	Source        registry.ChainDescriptor `json:"source"`
	Destination   registry.ChainDescriptor `json:"destination"`
	Token         common.Address           `json:"token"`
	Spender       common.Address           `json:"spender"`
	QuoteContract common.Address           `json:"quote_contract"`
	SendContract  common.Address           `json:"send_contract"`
	PeerReader    common.Address           `json:"peer_reader"`
}

// Table holds validated routes for every supported direction.
type Table struct {
	routes map[registry.Direction]Route
}

// NewTable validates every record and fails if any direction is missing or
// incomplete. rpcOverrides maps chain slug to an RPC URL.
func NewTable(records map[registry.Direction]registry.RouteRecord, rpcOverrides map[string]string) (*Table, error) {
	t := &Table{routes: make(map[registry.Direction]Route, len(records))}
	for _, dir := range registry.Directions() {
		rec, ok := records[dir]
		if !ok {
			return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("route table has no entry for %s", dir))
		}
		r, err := buildRoute(dir, rec, rpcOverrides)
		if err != nil {
			return nil, err
		}
		t.routes[dir] = r
	}
	for dir := range records {
		if _, ok := t.routes[dir]; !ok {
			return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("route table has unsupported direction %q", dir))
		}
	}
	return t, nil
}

// DefaultTable builds the table from the built-in routes.
func DefaultTable() *Table {
	t, err := NewTable(registry.DefaultRoutes(), nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Merge overlays override records on the defaults. Overrides replace whole
// records, never single roles.
func Merge(overrides map[registry.Direction]registry.RouteRecord) map[registry.Direction]registry.RouteRecord {
	out := registry.DefaultRoutes()
	for dir, rec := range overrides {
		out[dir] = rec
	}
	return out
}

func buildRoute(dir registry.Direction, rec registry.RouteRecord, rpcOverrides map[string]string) (Route, error) {
	src, err := registry.ParseChain(rec.Source)
	if err != nil {
		return Route{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("route %s source", dir), err)
	}
	dst, err := registry.ParseChain(rec.Destination)
	if err != nil {
		return Route{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("route %s destination", dir), err)
	}
	if src.ChainID == dst.ChainID {
		return Route{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("route %s has identical source and destination", dir))
	}
	if wantSrc, wantDst, ok := dir.Endpoints(); ok && (src.Slug != wantSrc || dst.Slug != wantDst) {
		return Route{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("route %s must run from %s to %s, got %s to %s", dir, wantSrc, wantDst, src.Slug, dst.Slug))
	}
	r := Route{
		Direction:   dir,
		Source:      src.WithRPC(rpcOverrides[src.Slug]),
		Destination: dst.WithRPC(rpcOverrides[dst.Slug]),
	}
	roles := []struct {
		name  string
		raw   string
		field *common.Address
	}{
		{"token", rec.Token, &r.Token},
		{"spender", rec.Spender, &r.Spender},
		{"quote_contract", rec.QuoteContract, &r.QuoteContract},
		{"send_contract", rec.SendContract, &r.SendContract},
		{"peer_reader", rec.PeerReader, &r.PeerReader},
	}
	for _, role := range roles {
		addr, err := parseRoleAddress(role.raw)
		if err != nil {
			return Route{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("route %s %s", dir, role.name), err)
		}
		*role.field = addr
	}
	return r, nil
}

func parseRoleAddress(raw string) (common.Address, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return common.Address{}, fmt.Errorf("address is required")
	}
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("invalid address %q", v)
	}
	addr := common.HexToAddress(v)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("zero address")
	}
	return addr, nil
}

// Resolve returns the route for dir. An unknown direction is a programming
// error and panics.
func (t *Table) Resolve(dir registry.Direction) Route {
	r, ok := t.routes[dir]
	if !ok {
		panic(fmt.Sprintf("route: unknown direction %q", dir))
	}
	return r
}

// All returns the routes in display order.
func (t *Table) All() []Route {
	out := make([]Route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Direction < out[j].Direction })
	return out
}

// ParseDirection converts user input into a direction.
func ParseDirection(input string) (registry.Direction, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case string(registry.DirectionBaseToLinea), "b2l", "base:linea":
		return registry.DirectionBaseToLinea, nil
	case string(registry.DirectionLineaToBase), "l2b", "linea:base":
		return registry.DirectionLineaToBase, nil
	case "":
		return "", clierr.New(clierr.CodeUsage, "--direction is required")
	default:
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported direction %q (use base-to-linea or linea-to-base)", input))
	}
}
