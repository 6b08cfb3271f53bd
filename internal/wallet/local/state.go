package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ggonzalez94/oftbridge/internal/registry"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

const (
	lockTimeout    = 5 * time.Second
	lockRetryDelay = 25 * time.Millisecond
)

// state is what the local wallet remembers between runs.
type state struct {
	Connected     bool          `yaml:"connected"`
	ActiveChainID int64         `yaml:"active_chain_id"`
	Chains        []chainRecord `yaml:"chains"`
}

type chainRecord struct {
	ChainID      int64  `yaml:"chain_id"`
	Name         string `yaml:"name"`
	NativeSymbol string `yaml:"native_symbol"`
	RPCURL       string `yaml:"rpc_url"`
	ExplorerURL  string `yaml:"explorer_url"`
}

func (s *state) chain(chainID int64) (chainRecord, bool) {
	for _, c := range s.Chains {
		if c.ChainID == chainID {
			return c, true
		}
	}
	return chainRecord{}, false
}

func recordFor(c registry.ChainDescriptor) chainRecord {
	return chainRecord{
		ChainID:      c.ChainID,
		Name:         c.Name,
		NativeSymbol: c.NativeSymbol,
		RPCURL:       c.RPCURL,
		ExplorerURL:  c.ExplorerURL,
	}
}

// defaultState mirrors a fresh browser wallet: it knows its home chain only.
func defaultState(home registry.ChainDescriptor) state {
	return state{ActiveChainID: home.ChainID, Chains: []chainRecord{recordFor(home)}}
}

type stateFile struct {
	path string
	lock *flock.Flock
	home registry.ChainDescriptor
}

func newStateFile(path, lockPath string, home registry.ChainDescriptor) (*stateFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create wallet state directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create wallet lock directory: %w", err)
	}
	return &stateFile{path: path, lock: flock.New(lockPath), home: home}, nil
}

func (f *stateFile) load() (state, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := f.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return state{}, fmt.Errorf("lock wallet state: %w", err)
	}
	if !locked {
		return state{}, fmt.Errorf("lock wallet state: timeout acquiring lock")
	}
	defer func() { _ = f.lock.Unlock() }()
	return f.read()
}

// update applies fn under the exclusive lock and persists the result.
func (f *stateFile) update(fn func(*state) error) (state, error) {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return state{}, fmt.Errorf("lock wallet state: %w", err)
	}
	if !locked {
		return state{}, fmt.Errorf("lock wallet state: timeout acquiring lock")
	}
	defer func() { _ = f.lock.Unlock() }()

	st, err := f.read()
	if err != nil {
		return state{}, err
	}
	if err := fn(&st); err != nil {
		return state{}, err
	}
	buf, err := yaml.Marshal(st)
	if err != nil {
		return state{}, fmt.Errorf("encode wallet state: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return state{}, fmt.Errorf("write wallet state: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return state{}, fmt.Errorf("replace wallet state: %w", err)
	}
	return st, nil
}

func (f *stateFile) read() (state, error) {
	buf, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultState(f.home), nil
		}
		return state{}, fmt.Errorf("read wallet state: %w", err)
	}
	var st state
	if err := yaml.Unmarshal(buf, &st); err != nil {
		return state{}, fmt.Errorf("parse wallet state: %w", err)
	}
	if st.ActiveChainID == 0 {
		st = defaultState(f.home)
	}
	return st, nil
}
