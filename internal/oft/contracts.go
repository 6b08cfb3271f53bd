package oft

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ggonzalez94/oftbridge/internal/registry"
)

// ContractCaller is the read half of a chain connection. *ethclient.Client
// satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// SendParam mirrors the OFT SendParam struct. Field names follow the ABI
// component names so the abi package can pack it directly.
type SendParam struct {
	DstEid       uint32
	To           [32]byte
	AmountLD     *big.Int
	MinAmountLD  *big.Int
	ExtraOptions []byte
	ComposeMsg   []byte
	OftCmd       []byte
}

// MessagingFee mirrors the OFT MessagingFee struct.
type MessagingFee struct {
	NativeFee  *big.Int
	LzTokenFee *big.Int
}

var (
	oftABI   = mustABI(registry.OFTABI)
	erc20ABI = mustABI(registry.ERC20ABI)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Bridge reads an OFT or OFT adapter contract.
type Bridge struct {
	address common.Address
	caller  ContractCaller
}

func NewBridge(address common.Address, caller ContractCaller) *Bridge {
	return &Bridge{address: address, caller: caller}
}

func (b *Bridge) Address() common.Address { return b.address }

// Peer returns the counterpart registered for the destination endpoint id.
func (b *Bridge) Peer(ctx context.Context, dstEid uint32) ([32]byte, error) {
	out, err := call(ctx, b.caller, oftABI, b.address, common.Address{}, "peer", dstEid)
	if err != nil {
		return [32]byte{}, err
	}
	peer, ok := out[0].([32]byte)
	if !ok {
		return [32]byte{}, fmt.Errorf("decode peer: unexpected type %T", out[0])
	}
	return peer, nil
}

// QuoteSend asks the contract for the fee of delivering p, paid in native gas.
func (b *Bridge) QuoteSend(ctx context.Context, from common.Address, p SendParam) (MessagingFee, error) {
	out, err := call(ctx, b.caller, oftABI, b.address, from, "quoteSend", p, false)
	if err != nil {
		return MessagingFee{}, err
	}
	if len(out) != 2 {
		return MessagingFee{}, fmt.Errorf("decode quoteSend: expected 2 values, got %d", len(out))
	}
	nativeFee, ok := out[0].(*big.Int)
	if !ok {
		return MessagingFee{}, fmt.Errorf("decode quoteSend: unexpected native fee type %T", out[0])
	}
	lzTokenFee, ok := out[1].(*big.Int)
	if !ok {
		return MessagingFee{}, fmt.Errorf("decode quoteSend: unexpected lz token fee type %T", out[1])
	}
	return MessagingFee{NativeFee: nativeFee, LzTokenFee: lzTokenFee}, nil
}

// PackSend encodes send(p, fee, refundAddress) calldata.
func PackSend(p SendParam, fee MessagingFee, refund common.Address) ([]byte, error) {
	if fee.LzTokenFee == nil {
		fee.LzTokenFee = new(big.Int)
	}
	data, err := oftABI.Pack("send", p, fee, refund)
	if err != nil {
		return nil, fmt.Errorf("pack send calldata: %w", err)
	}
	return data, nil
}

// Token reads an ERC20 contract.
type Token struct {
	address common.Address
	caller  ContractCaller
}

func NewToken(address common.Address, caller ContractCaller) *Token {
	return &Token{address: address, caller: caller}
}

func (t *Token) Address() common.Address { return t.address }

func (t *Token) Symbol(ctx context.Context) (string, error) {
	out, err := call(ctx, t.caller, erc20ABI, t.address, common.Address{}, "symbol")
	if err != nil {
		return "", err
	}
	v, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("decode symbol: unexpected type %T", out[0])
	}
	return v, nil
}

func (t *Token) Decimals(ctx context.Context) (int, error) {
	out, err := call(ctx, t.caller, erc20ABI, t.address, common.Address{}, "decimals")
	if err != nil {
		return 0, err
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decode decimals: unexpected type %T", out[0])
	}
	return int(v), nil
}

func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return t.uint256(ctx, "balanceOf", account)
}

func (t *Token) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return t.uint256(ctx, "allowance", owner, spender)
}

func (t *Token) uint256(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := call(ctx, t.caller, erc20ABI, t.address, common.Address{}, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode %s: unexpected type %T", method, out[0])
	}
	return v, nil
}

// PackApprove encodes approve(spender, amount) calldata.
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, fmt.Errorf("pack approve calldata: %w", err)
	}
	return data, nil
}

func call(ctx context.Context, caller ContractCaller, parsed abi.ABI, to, from common.Address, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := caller.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("decode %s: empty result", method)
	}
	return out, nil
}
