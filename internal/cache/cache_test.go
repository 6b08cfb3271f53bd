package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "cache.db"), filepath.Join(tmp, "cache.lock"))
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCacheFreshThenStale(t *testing.T) {
	store := openTestStore(t)
	key := Key("peer", "59144", "0xABC", "30184")

	if err := store.SetJSON(key, map[string]string{"peer": "0x01"}, time.Second); err != nil {
		t.Fatalf("SetJSON failed: %v", err)
	}

	var got map[string]string
	res, err := store.GetJSON(key, &got)
	if err != nil {
		t.Fatalf("GetJSON fresh failed: %v", err)
	}
	if !res.Hit || res.Stale || got["peer"] != "0x01" {
		t.Fatalf("expected fresh hit, got %+v %v", res, got)
	}

	time.Sleep(1200 * time.Millisecond)
	res, err = store.Get(key)
	if err != nil {
		t.Fatalf("Get stale failed: %v", err)
	}
	if !res.Hit || !res.Stale {
		t.Fatalf("expected stale hit, got %+v", res)
	}
}

func TestCacheMissLeavesOutput(t *testing.T) {
	store := openTestStore(t)
	out := map[string]string{"keep": "me"}
	res, err := store.GetJSON("missing", &out)
	if err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if res.Hit || out["keep"] != "me" {
		t.Fatalf("unexpected miss result %+v %v", res, out)
	}
}

func TestCachePrune(t *testing.T) {
	store := openTestStore(t)
	if err := store.Set("short", []byte(`1`), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("long", []byte(`2`), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	time.Sleep(2100 * time.Millisecond)
	if err := store.Prune(0); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if res, _ := store.Get("short"); res.Hit {
		t.Fatalf("expected expired entry pruned")
	}
	if res, _ := store.Get("long"); !res.Hit {
		t.Fatalf("expected live entry kept")
	}
}

func TestKeyIsCaseInsensitive(t *testing.T) {
	if Key("Peer", "0xAbC") != Key("peer", "0xabc") {
		t.Fatalf("expected normalized keys")
	}
}

func TestCacheConcurrentOpenAndSet(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "cache.db")
	lockPath := filepath.Join(tmp, "cache.lock")

	const workers = 8
	const iterations = 20

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			store, err := Open(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			defer store.Close()

			for i := 0; i < iterations; i++ {
				key := Key("peer", fmt.Sprint(workerID), fmt.Sprint(i))
				if err := store.SetJSON(key, map[string]bool{"ok": true}, time.Minute); err != nil {
					errCh <- fmt.Errorf("worker %d set iter %d: %w", workerID, i, err)
					return
				}
				res, err := store.Get(key)
				if err != nil {
					errCh <- fmt.Errorf("worker %d get iter %d: %w", workerID, i, err)
					return
				}
				if !res.Hit {
					errCh <- fmt.Errorf("worker %d get iter %d: expected hit", workerID, i)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}
