package model

import "time"

const EnvelopeVersion = "v1"

// Envelope wraps every command result written to stdout.
type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string       `json:"request_id"`
	Timestamp time.Time    `json:"timestamp"`
	Command   string       `json:"command"`
	Wallet    *WalletState `json:"wallet,omitempty"`
}

// WalletState is the wallet connection a command ran against.
type WalletState struct {
	Backend string `json:"backend"`
	Account string `json:"account,omitempty"`
	ChainID int64  `json:"chain_id,omitempty"`
	Session uint64 `json:"session"`
}

type ChainInfo struct {
	ChainID      int64  `json:"chain_id"`
	CAIP2        string `json:"caip2"`
	Slug         string `json:"slug"`
	Name         string `json:"name"`
	EndpointID   uint32 `json:"endpoint_id"`
	NativeSymbol string `json:"native_symbol"`
	RPCURL       string `json:"rpc_url"`
	ExplorerURL  string `json:"explorer_url"`
}

type RouteInfo struct {
	Direction     string `json:"direction"`
	Source        string `json:"source"`
	Destination   string `json:"destination"`
	DstEid        uint32 `json:"dst_eid"`
	Token         string `json:"token"`
	Spender       string `json:"spender"`
	QuoteContract string `json:"quote_contract"`
	SendContract  string `json:"send_contract"`
	PeerReader    string `json:"peer_reader"`
	Peer          string `json:"peer,omitempty"`
	PeerError     string `json:"peer_error,omitempty"`
	Cache         string `json:"cache,omitempty"`
}

type ConnectResult struct {
	Backend string `json:"backend"`
	Account string `json:"account"`
	ChainID int64  `json:"chain_id"`
	Chain   string `json:"chain"`
	Known   bool   `json:"supported_chain"`
}
