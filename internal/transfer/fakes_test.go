package transfer

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/network"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/route"
	"github.com/ggonzalez94/oftbridge/internal/session"
	"github.com/ggonzalez94/oftbridge/internal/wallet"
)

var (
	testUser    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testToken   = common.HexToAddress("0x0000000000000000000000000000000000001001")
	testSpender = common.HexToAddress("0x0000000000000000000000000000000000001002")
	testQuoter  = common.HexToAddress("0x0000000000000000000000000000000000001003")
	testSender  = common.HexToAddress("0x0000000000000000000000000000000000001004")
	testPeerRdr = common.HexToAddress("0x0000000000000000000000000000000000001005")
	testPeer    = common.HexToAddress("0x0000000000000000000000000000000000002001")

	erc20ABI = mustParse(registry.ERC20ABI)
	oftABI   = mustParse(registry.OFTABI)
)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// revertError carries revert data the way an RPC node reports it.
type revertError struct {
	reason string
}

func (e revertError) Error() string { return "execution reverted" }

func (e revertError) ErrorData() interface{} {
	return "0x" + common.Bytes2Hex(errorString(e.reason))
}

// errorString encodes Error(string) revert data.
func errorString(reason string) []byte {
	str, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: str}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	return append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...)
}

type chainCall struct {
	To     common.Address
	Method string
	Value  *big.Int
}

// fakeChain answers eth_call for the token and bridge contracts of one
// chain.
type fakeChain struct {
	mu        sync.Mutex
	decimals  uint8
	symbol    string
	balance   *big.Int
	allowance *big.Int
	nativeFee *big.Int
	peerFails bool
	quoteErr  error
	sendErr   error
	calls     []chainCall
	onCall    func(method string)
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		decimals:  18,
		symbol:    "DTC",
		balance:   mustBig("50000000000000000000"),
		allowance: new(big.Int),
		nativeFee: big.NewInt(123_456_789),
	}
}

func mustBig(v string) *big.Int {
	n, ok := new(big.Int).SetString(v, 10)
	if !ok {
		panic(v)
	}
	return n
}

func (c *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	method, err := erc20ABI.MethodById(msg.Data[:4])
	if err != nil {
		method, err = oftABI.MethodById(msg.Data[:4])
	}
	if err != nil {
		return nil, fmt.Errorf("unknown selector %x", msg.Data[:4])
	}
	c.mu.Lock()
	c.calls = append(c.calls, chainCall{To: *msg.To, Method: method.Name, Value: msg.Value})
	hook := c.onCall
	c.mu.Unlock()
	if hook != nil {
		hook(method.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch method.Name {
	case "decimals":
		return method.Outputs.Pack(c.decimals)
	case "symbol":
		return method.Outputs.Pack(c.symbol)
	case "balanceOf":
		return method.Outputs.Pack(c.balance)
	case "allowance":
		return method.Outputs.Pack(c.allowance)
	case "approve":
		return method.Outputs.Pack(true)
	case "peer":
		if c.peerFails {
			return nil, fmt.Errorf("execution reverted")
		}
		var out [32]byte
		copy(out[12:], testPeer.Bytes())
		return method.Outputs.Pack(out)
	case "quoteSend":
		if c.quoteErr != nil {
			return nil, c.quoteErr
		}
		return method.Outputs.Pack(c.nativeFee, big.NewInt(0))
	case "send":
		return nil, c.sendErr
	}
	return nil, fmt.Errorf("unhandled method %s", method.Name)
}

func (c *fakeChain) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100)}, nil
}

func (c *fakeChain) Close() {}

func (c *fakeChain) methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.calls))
	for _, call := range c.calls {
		out = append(out, call.Method)
	}
	return out
}

func (c *fakeChain) callsTo(method string) []chainCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []chainCall
	for _, call := range c.calls {
		if call.Method == method {
			out = append(out, call)
		}
	}
	return out
}

// fakeWallet applies approvals to the chain it is attached to so later
// allowance reads observe them.
type fakeWallet struct {
	mu       sync.Mutex
	chainID  int64
	chain    *fakeChain
	switches int
	sent     []wallet.Tx
	reject   bool
	onSend   func()
	events   chan wallet.Event
}

func (w *fakeWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	return w.Accounts(ctx)
}

func (w *fakeWallet) Accounts(context.Context) ([]common.Address, error) {
	return []common.Address{testUser}, nil
}

func (w *fakeWallet) ChainID(context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, nil
}

func (w *fakeWallet) SwitchChain(_ context.Context, chainID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.switches++
	w.chainID = chainID
	return nil
}

func (w *fakeWallet) AddChain(context.Context, registry.ChainDescriptor) error { return nil }

func (w *fakeWallet) SendTransaction(_ context.Context, tx wallet.Tx) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.reject {
		return common.Hash{}, wallet.ErrUserRejected
	}
	w.sent = append(w.sent, tx)
	if len(tx.Data) >= 4 {
		if method, err := erc20ABI.MethodById(tx.Data[:4]); err == nil && method.Name == "approve" {
			args, err := method.Inputs.Unpack(tx.Data[4:])
			if err == nil {
				w.chain.mu.Lock()
				w.chain.allowance = args[1].(*big.Int)
				w.chain.mu.Unlock()
			}
		}
	}
	if w.onSend != nil {
		w.onSend()
	}
	return common.BigToHash(big.NewInt(int64(len(w.sent)))), nil
}

func (w *fakeWallet) Events() <-chan wallet.Event { return w.events }

func (w *fakeWallet) Close() error { return nil }

func (w *fakeWallet) txs() []wallet.Tx {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]wallet.Tx(nil), w.sent...)
}

type memoryJournal struct {
	mu      sync.Mutex
	actions map[string]execution.Action
}

func (j *memoryJournal) Save(action execution.Action) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.actions == nil {
		j.actions = map[string]execution.Action{}
	}
	j.actions[action.ActionID] = action
	return nil
}

func (j *memoryJournal) only(t *testing.T) execution.Action {
	t.Helper()
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.actions) != 1 {
		t.Fatalf("expected one recorded action, got %d", len(j.actions))
	}
	for _, a := range j.actions {
		return a
	}
	return execution.Action{}
}

type harness struct {
	chain   *fakeChain
	wallet  *fakeWallet
	sync    *network.Synchronizer
	service *Service
	journal *memoryJournal
	route   route.Route
	dials   int
}

// distinctRoutes gives every role of linea-to-base its own address so a
// mixed-up role shows up as a call to the wrong contract.
func distinctRoutes(t *testing.T) *route.Table {
	t.Helper()
	records := registry.DefaultRoutes()
	records[registry.DirectionLineaToBase] = registry.RouteRecord{
		Source:        registry.SlugLinea,
		Destination:   registry.SlugBase,
		Token:         testToken.Hex(),
		Spender:       testSpender.Hex(),
		QuoteContract: testQuoter.Hex(),
		SendContract:  testSender.Hex(),
		PeerReader:    testPeerRdr.Hex(),
	}
	table, err := route.NewTable(records, nil)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table
}

func newHarness(t *testing.T, walletChain int64) *harness {
	t.Helper()
	h := &harness{chain: newFakeChain(), journal: &memoryJournal{}}
	h.wallet = &fakeWallet{chainID: walletChain, chain: h.chain, events: make(chan wallet.Event, 4)}

	opts := execution.DefaultExecuteOptions()
	opts.PollInterval = time.Millisecond
	dial := func(context.Context, registry.ChainDescriptor) (network.ChainClient, error) {
		h.dials++
		return h.chain, nil
	}
	h.sync = network.New(h.wallet, session.NewGuard(), network.Options{Dial: dial, Execute: opts})
	if _, err := h.sync.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	table := distinctRoutes(t)
	h.route = table.Resolve(registry.DirectionLineaToBase)
	h.service = NewService(table, h.sync, Options{Journal: h.journal, Simulate: true})
	return h
}
