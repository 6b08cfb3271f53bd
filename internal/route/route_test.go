package route

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	clierr "github.com/ggonzalez94/oftbridge/internal/errors"
	"github.com/ggonzalez94/oftbridge/internal/registry"
)

func TestDefaultTableMatchesTopology(t *testing.T) {
	table := DefaultTable()
	records := registry.DefaultRoutes()
	for _, dir := range registry.Directions() {
		r := table.Resolve(dir)
		rec := records[dir]
		roles := map[string][2]common.Address{
			"token":          {common.HexToAddress(rec.Token), r.Token},
			"spender":        {common.HexToAddress(rec.Spender), r.Spender},
			"quote_contract": {common.HexToAddress(rec.QuoteContract), r.QuoteContract},
			"send_contract":  {common.HexToAddress(rec.SendContract), r.SendContract},
			"peer_reader":    {common.HexToAddress(rec.PeerReader), r.PeerReader},
		}
		for role, pair := range roles {
			if pair[0] != pair[1] {
				t.Fatalf("%s %s: expected %s, got %s", dir, role, pair[0].Hex(), pair[1].Hex())
			}
		}
	}

	b2l := table.Resolve(registry.DirectionBaseToLinea)
	if b2l.Source.ChainID != 8453 || b2l.Destination.EndpointID != 30183 {
		t.Fatalf("unexpected base-to-linea chains: source=%d dst_eid=%d", b2l.Source.ChainID, b2l.Destination.EndpointID)
	}

	l2b := table.Resolve(registry.DirectionLineaToBase)
	if l2b.Source.ChainID != 59144 || l2b.Destination.EndpointID != 30184 {
		t.Fatalf("unexpected linea-to-base chains: source=%d dst_eid=%d", l2b.Source.ChainID, l2b.Destination.EndpointID)
	}
	if l2b.Token == l2b.Spender {
		t.Fatal("adapter topology must keep token and spender apart")
	}
}

func TestOverrideKeepsEveryRoleDistinct(t *testing.T) {
	override := registry.RouteRecord{
		Source:        "base",
		Destination:   "linea",
		Token:         "0x00000000000000000000000000000000000000a1",
		Spender:       "0x00000000000000000000000000000000000000a2",
		QuoteContract: "0x00000000000000000000000000000000000000a3",
		SendContract:  "0x00000000000000000000000000000000000000a4",
		PeerReader:    "0x00000000000000000000000000000000000000a5",
	}
	table, err := NewTable(Merge(map[registry.Direction]registry.RouteRecord{
		registry.DirectionBaseToLinea: override,
	}), map[string]string{"base": "https://base.example"})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	r := table.Resolve(registry.DirectionBaseToLinea)
	if r.Token != common.HexToAddress(override.Token) || r.Spender != common.HexToAddress(override.Spender) {
		t.Fatalf("token/spender not taken from override: %s %s", r.Token.Hex(), r.Spender.Hex())
	}
	if r.QuoteContract != common.HexToAddress(override.QuoteContract) || r.SendContract != common.HexToAddress(override.SendContract) {
		t.Fatalf("quote/send not taken from override: %s %s", r.QuoteContract.Hex(), r.SendContract.Hex())
	}
	if r.PeerReader != common.HexToAddress(override.PeerReader) {
		t.Fatalf("peer reader not taken from override: %s", r.PeerReader.Hex())
	}
	if r.Source.RPCURL != "https://base.example" {
		t.Fatalf("rpc override not applied: %s", r.Source.RPCURL)
	}
	if r.Destination.RPCURL != "https://rpc.linea.build" {
		t.Fatalf("unexpected destination rpc: %s", r.Destination.RPCURL)
	}

	untouched := table.Resolve(registry.DirectionLineaToBase)
	if untouched.SendContract != common.HexToAddress(registry.LineaAdapter) {
		t.Fatalf("override leaked into linea-to-base: %s", untouched.SendContract.Hex())
	}
}

func TestNewTableRejectsIncompleteRecords(t *testing.T) {
	defaults := registry.DefaultRoutes()
	base := defaults[registry.DirectionBaseToLinea]

	cases := map[string]func(r *registry.RouteRecord){
		"missing spender":  func(r *registry.RouteRecord) { r.Spender = "" },
		"bad send":         func(r *registry.RouteRecord) { r.SendContract = "0x1234" },
		"zero peer reader": func(r *registry.RouteRecord) { r.PeerReader = "0x0000000000000000000000000000000000000000" },
		"same chains":      func(r *registry.RouteRecord) { r.Destination = "base" },
		"unknown chain":    func(r *registry.RouteRecord) { r.Source = "optimism" },
		"reversed chains":  func(r *registry.RouteRecord) { r.Source, r.Destination = "linea", "base" },
		"opposite record":  func(r *registry.RouteRecord) { *r = defaults[registry.DirectionLineaToBase] },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rec := base
			mutate(&rec)
			_, err := NewTable(Merge(map[registry.Direction]registry.RouteRecord{registry.DirectionBaseToLinea: rec}), nil)
			if !clierr.HasCode(err, clierr.CodeUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
		})
	}

	records := registry.DefaultRoutes()
	delete(records, registry.DirectionLineaToBase)
	if _, err := NewTable(records, nil); err == nil {
		t.Fatal("expected error for missing direction")
	}

	records = registry.DefaultRoutes()
	records["base-to-optimism"] = base
	if _, err := NewTable(records, nil); err == nil {
		t.Fatal("expected error for unsupported direction")
	}
}

func TestResolvePanicsOnUnknownDirection(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unknown direction")
		}
	}()
	DefaultTable().Resolve("sideways")
}

func TestParseDirection(t *testing.T) {
	for input, want := range map[string]registry.Direction{
		"base-to-linea": registry.DirectionBaseToLinea,
		" B2L ":         registry.DirectionBaseToLinea,
		"linea-to-base": registry.DirectionLineaToBase,
		"l2b":           registry.DirectionLineaToBase,
	} {
		got, err := ParseDirection(input)
		if err != nil {
			t.Fatalf("ParseDirection(%q) failed: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseDirection(%q) = %s, want %s", input, got, want)
		}
	}
	for _, input := range []string{"", "up", "base"} {
		_, err := ParseDirection(input)
		if !clierr.HasCode(err, clierr.CodeUsage) {
			t.Fatalf("ParseDirection(%q): expected usage error, got %v", input, err)
		}
	}
}

func TestAllIsOrdered(t *testing.T) {
	all := DefaultTable().All()
	if len(all) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(all))
	}
	if all[0].Direction != registry.DirectionBaseToLinea || all[1].Direction != registry.DirectionLineaToBase {
		t.Fatalf("unexpected order: %s, %s", all[0].Direction, all[1].Direction)
	}
}
