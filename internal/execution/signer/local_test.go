package signer

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath, EnvKeystorePassword, EnvKeystorePasswordFile} {
		t.Setenv(k, "")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestNewLocalSignerFromEnvHex(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(EnvPrivateKey, testPrivateKey)
	s, err := NewLocalSignerFromInputs(KeySourceEnv, "")
	if err != nil {
		t.Fatalf("NewLocalSignerFromInputs failed: %v", err)
	}
	if s.Address() == (common.Address{}) {
		t.Fatal("expected non-zero signer address")
	}
	to := common.HexToAddress("0x0000000000000000000000000000000000000001")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   big.NewInt(8453),
		To:        &to,
		Value:     big.NewInt(0),
		Gas:       21_000,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
	})
	signed, err := s.SignTx(big.NewInt(8453), tx)
	if err != nil {
		t.Fatalf("SignTx failed: %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(8453)), signed)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if from != s.Address() {
		t.Fatalf("expected sender %s, got %s", s.Address(), from)
	}
}

func TestNewLocalSignerFromFile(t *testing.T) {
	clearKeyEnv(t)
	keyFile := filepath.Join(t.TempDir(), "key.txt")
	if err := os.WriteFile(keyFile, []byte("0x"+testPrivateKey+"\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv(EnvPrivateKeyFile, keyFile)

	if _, err := NewLocalSignerFromInputs(KeySourceFile, ""); err != nil {
		t.Fatalf("NewLocalSignerFromInputs failed: %v", err)
	}
}

func TestAutoSourceUsesDefaultKeyFile(t *testing.T) {
	clearKeyEnv(t)
	cfgDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgDir)
	keyDir := filepath.Join(cfgDir, "oftbridge")
	if err := os.MkdirAll(keyDir, 0o755); err != nil {
		t.Fatalf("create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(keyDir, "key.hex"), []byte(testPrivateKey), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	if _, err := NewLocalSignerFromInputs(KeySourceAuto, ""); err != nil {
		t.Fatalf("expected auto key-source to use default key path: %v", err)
	}
}

func TestPrivateKeyOverrideWinsOverFileSource(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv(EnvPrivateKeyFile, "/tmp/does-not-exist")
	if _, err := NewLocalSignerFromInputs(KeySourceFile, testPrivateKey); err != nil {
		t.Fatalf("expected private key override to win: %v", err)
	}
}

func TestDefaultPrivateKeyPathUsesXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/oftbridge-config-home")
	if got, want := defaultPrivateKeyPath(), "/tmp/oftbridge-config-home/oftbridge/key.hex"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestMissingKeyErrorIncludesHints(t *testing.T) {
	clearKeyEnv(t)
	_, err := NewLocalSignerFromInputs(KeySourceAuto, "")
	if err == nil {
		t.Fatal("expected missing key error")
	}
	msg := err.Error()
	if !strings.Contains(msg, defaultPrivateKeyHintPath) || !strings.Contains(msg, "--private-key") {
		t.Fatalf("expected path and flag hints, got: %s", msg)
	}
}

func TestUnsupportedKeySource(t *testing.T) {
	if _, err := NewLocalSignerFromInputs("ledger", ""); err == nil {
		t.Fatal("expected unsupported source error")
	}
}
