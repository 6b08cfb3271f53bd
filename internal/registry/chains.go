package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ChainDescriptor is the static description of a network a route can touch.
// RPCURL and ExplorerURL are also what the wallet is taught when it does not
// know the chain yet.
type ChainDescriptor struct {
	ChainID      int64  `json:"chain_id" yaml:"chain_id"`
	Slug         string `json:"slug" yaml:"slug"`
	Name         string `json:"name" yaml:"name"`
	EndpointID   uint32 `json:"endpoint_id" yaml:"endpoint_id"`
	NativeName   string `json:"native_name" yaml:"native_name"`
	NativeSymbol string `json:"native_symbol" yaml:"native_symbol"`
	NativeDec    int    `json:"native_decimals" yaml:"native_decimals"`
	RPCURL       string `json:"rpc_url" yaml:"rpc_url"`
	ExplorerURL  string `json:"explorer_url" yaml:"explorer_url"`
}

// CAIP2 returns the eip155 namespace identifier used in action records.
func (c ChainDescriptor) CAIP2() string {
	return fmt.Sprintf("eip155:%d", c.ChainID)
}

// HexChainID is the 0x-prefixed form wallets expect in switch/add requests.
func (c ChainDescriptor) HexChainID() string {
	return "0x" + strconv.FormatInt(c.ChainID, 16)
}

const (
	SlugBase  = "base"
	SlugLinea = "linea"
)

var chains = map[string]ChainDescriptor{
	SlugBase: {
		ChainID:      8453,
		Slug:         SlugBase,
		Name:         "Base",
		EndpointID:   30184,
		NativeName:   "Ether",
		NativeSymbol: "ETH",
		NativeDec:    18,
		RPCURL:       "https://mainnet.base.org",
		ExplorerURL:  "https://basescan.org",
	},
	SlugLinea: {
		ChainID:      59144,
		Slug:         SlugLinea,
		Name:         "Linea",
		EndpointID:   30183,
		NativeName:   "Ether",
		NativeSymbol: "ETH",
		NativeDec:    18,
		RPCURL:       "https://rpc.linea.build",
		ExplorerURL:  "https://lineascan.build",
	},
}

// Chains returns every configured chain sorted by chain id.
func Chains() []ChainDescriptor {
	out := make([]ChainDescriptor, 0, len(chains))
	for _, c := range chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

func ChainBySlug(slug string) (ChainDescriptor, bool) {
	c, ok := chains[strings.ToLower(strings.TrimSpace(slug))]
	return c, ok
}

func ChainByID(chainID int64) (ChainDescriptor, bool) {
	for _, c := range chains {
		if c.ChainID == chainID {
			return c, true
		}
	}
	return ChainDescriptor{}, false
}

// ParseChain accepts a slug, a decimal chain id or a CAIP-2 eip155 id.
func ParseChain(input string) (ChainDescriptor, error) {
	norm := strings.ToLower(strings.TrimSpace(input))
	if norm == "" {
		return ChainDescriptor{}, fmt.Errorf("chain is required")
	}
	if c, ok := ChainBySlug(norm); ok {
		return c, nil
	}
	norm = strings.TrimPrefix(norm, "eip155:")
	if id, err := strconv.ParseInt(norm, 10, 64); err == nil {
		if c, ok := ChainByID(id); ok {
			return c, nil
		}
		return ChainDescriptor{}, fmt.Errorf("chain id %d is not configured", id)
	}
	return ChainDescriptor{}, fmt.Errorf("unknown chain %q", input)
}

// WithRPC returns a copy of c using override as RPC endpoint when set.
func (c ChainDescriptor) WithRPC(override string) ChainDescriptor {
	if v := strings.TrimSpace(override); v != "" {
		c.RPCURL = v
	}
	return c
}
