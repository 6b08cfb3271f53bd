package local

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ggonzalez94/oftbridge/internal/execution"
	"github.com/ggonzalez94/oftbridge/internal/execution/signer"
	"github.com/ggonzalez94/oftbridge/internal/prompt"
	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/ggonzalez94/oftbridge/internal/wallet"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

type scriptedConfirmer struct {
	answer bool
	labels []string
}

func (s *scriptedConfirmer) Confirm(label string) (bool, error) {
	s.labels = append(s.labels, label)
	return s.answer, nil
}

func testSigner(t *testing.T) signer.Signer {
	t.Helper()
	s, err := signer.NewLocalSigner(signer.LocalSignerConfig{PrivateKeyHex: testPrivateKey})
	if err != nil {
		t.Fatalf("NewLocalSigner failed: %v", err)
	}
	return s
}

func openTestWallet(t *testing.T, dir string, confirm prompt.Confirmer, dial DialFunc) *Wallet {
	t.Helper()
	base, _ := registry.ChainBySlug(registry.SlugBase)
	w, err := Open(Options{
		StatePath:    filepath.Join(dir, "wallet.yaml"),
		LockPath:     filepath.Join(dir, "wallet.lock"),
		Home:         base,
		Signer:       testSigner(t),
		Confirm:      confirm,
		Dial:         dial,
		PollInterval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func nextEvent(t *testing.T, w *Wallet) wallet.Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for wallet event")
		return wallet.Event{}
	}
}

func TestFreshWalletConnectsOnRequest(t *testing.T) {
	w := openTestWallet(t, t.TempDir(), prompt.Auto(), nil)
	ctx := context.Background()

	chainID, err := w.ChainID(ctx)
	if err != nil || chainID != 8453 {
		t.Fatalf("expected home chain 8453, got %d err=%v", chainID, err)
	}

	accts, err := w.Accounts(ctx)
	if err != nil || len(accts) != 0 {
		t.Fatalf("fresh wallet exposed accounts %v err=%v", accts, err)
	}

	accts, err = w.RequestAccounts(ctx)
	if err != nil {
		t.Fatalf("RequestAccounts failed: %v", err)
	}
	if len(accts) != 1 || accts[0] != w.signer.Address() {
		t.Fatalf("unexpected accounts %v", accts)
	}

	ev := nextEvent(t, w)
	if ev.Kind != wallet.EventAccountsChanged || len(ev.Accounts) != 1 || ev.Accounts[0] != accts[0] {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSwitchToUnregisteredChainNeedsAdd(t *testing.T) {
	w := openTestWallet(t, t.TempDir(), prompt.Auto(), nil)
	ctx := context.Background()
	linea, _ := registry.ChainBySlug(registry.SlugLinea)

	if err := w.SwitchChain(ctx, linea.ChainID); !errors.Is(err, wallet.ErrUnknownChain) {
		t.Fatalf("expected ErrUnknownChain, got %v", err)
	}
	if err := w.AddChain(ctx, linea); err != nil {
		t.Fatalf("AddChain failed: %v", err)
	}
	if err := w.SwitchChain(ctx, linea.ChainID); err != nil {
		t.Fatalf("SwitchChain failed: %v", err)
	}

	chainID, err := w.ChainID(ctx)
	if err != nil || chainID != linea.ChainID {
		t.Fatalf("expected linea, got %d err=%v", chainID, err)
	}

	ev := nextEvent(t, w)
	if ev.Kind != wallet.EventChainChanged || ev.ChainID != linea.ChainID {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestRejectedPromptsLeaveStateUntouched(t *testing.T) {
	confirm := &scriptedConfirmer{answer: false}
	w := openTestWallet(t, t.TempDir(), confirm, nil)
	ctx := context.Background()
	linea, _ := registry.ChainBySlug(registry.SlugLinea)

	if err := w.AddChain(ctx, linea); !errors.Is(err, wallet.ErrUserRejected) {
		t.Fatalf("AddChain: expected ErrUserRejected, got %v", err)
	}
	if err := w.SwitchChain(ctx, linea.ChainID); !errors.Is(err, wallet.ErrUnknownChain) {
		t.Fatalf("SwitchChain: expected ErrUnknownChain, got %v", err)
	}
	if _, err := w.RequestAccounts(ctx); !errors.Is(err, wallet.ErrUserRejected) {
		t.Fatalf("RequestAccounts: expected ErrUserRejected, got %v", err)
	}
	if len(confirm.labels) != 2 {
		t.Fatalf("expected 2 prompts, got %v", confirm.labels)
	}

	chainID, err := w.ChainID(ctx)
	if err != nil || chainID != 8453 {
		t.Fatalf("rejected prompts moved the wallet to %d err=%v", chainID, err)
	}
}

func TestNonInteractiveConfirmIsRejection(t *testing.T) {
	w := openTestWallet(t, t.TempDir(), prompt.NonInteractive(), nil)
	if _, err := w.RequestAccounts(context.Background()); !errors.Is(err, wallet.ErrUserRejected) {
		t.Fatalf("expected ErrUserRejected, got %v", err)
	}
}

func TestSwitchInAnotherProcessIsObserved(t *testing.T) {
	dir := t.TempDir()
	watcher := openTestWallet(t, dir, prompt.Auto(), nil)
	actor := openTestWallet(t, dir, prompt.Auto(), nil)
	ctx := context.Background()
	linea, _ := registry.ChainBySlug(registry.SlugLinea)

	if err := actor.AddChain(ctx, linea); err != nil {
		t.Fatalf("AddChain failed: %v", err)
	}
	if err := actor.SwitchChain(ctx, linea.ChainID); err != nil {
		t.Fatalf("SwitchChain failed: %v", err)
	}

	ev := nextEvent(t, watcher)
	if ev.Kind != wallet.EventChainChanged || ev.ChainID != linea.ChainID {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSendTransaction(t *testing.T) {
	backend := &fakeBackend{}
	var dialed string
	dial := func(_ context.Context, url string) (execution.Backend, func(), error) {
		dialed = url
		return backend, func() {}, nil
	}
	w := openTestWallet(t, t.TempDir(), prompt.Auto(), dial)
	ctx := context.Background()

	tx := wallet.Tx{To: common.HexToAddress("0x00000000000000000000000000000000000000bb"), Value: big.NewInt(5), ChainID: 8453}
	if _, err := w.SendTransaction(ctx, tx); !errors.Is(err, wallet.ErrNoAccounts) {
		t.Fatalf("expected ErrNoAccounts, got %v", err)
	}

	if _, err := w.RequestAccounts(ctx); err != nil {
		t.Fatalf("RequestAccounts failed: %v", err)
	}

	wrongChain := tx
	wrongChain.ChainID = 59144
	if _, err := w.SendTransaction(ctx, wrongChain); err == nil {
		t.Fatal("expected error for tx on another chain")
	}
	if len(backend.sent) != 0 {
		t.Fatal("wrong-chain tx was broadcast")
	}

	hash, err := w.SendTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("SendTransaction failed: %v", err)
	}
	if dialed != "https://mainnet.base.org" {
		t.Fatalf("dialed %q", dialed)
	}
	if len(backend.sent) != 1 || backend.sent[0].Hash() != hash {
		t.Fatalf("expected one broadcast with hash %s", hash.Hex())
	}
	if backend.calls != 0 {
		t.Fatalf("local wallet ran %d eth_calls; simulation belongs to the connection", backend.calls)
	}
}

type fakeBackend struct {
	calls int
	sent  []*types.Transaction
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	f.calls++
	return nil, errors.New("unexpected eth_call")
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(8453), nil }

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21_000, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: big.NewInt(1)}, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}
