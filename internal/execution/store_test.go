package execution

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "activity.db"), filepath.Join(dir, "activity.lock"))
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreSaveGetList(t *testing.T) {
	store := openTestStore(t)

	action := NewAction(NewActionID(), IntentSend, "eip155:8453", Constraints{SlippageBps: 50, LzGas: "200000", Simulate: true})
	action.Direction = "base-to-linea"
	action.Steps = append(action.Steps, ActionStep{
		StepID:  "bridge-send",
		Type:    StepTypeBridge,
		Status:  StepStatusPending,
		ChainID: "eip155:8453",
		Target:  "0xFbA669C72b588439B29F050b93500D8b645F9354",
		Value:   "12345",
	})
	if err := store.Save(action); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(action.ActionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.IntentType != IntentSend || got.Direction != "base-to-linea" {
		t.Fatalf("unexpected action: %+v", got)
	}
	if got.Step("bridge-send") == nil {
		t.Fatal("expected bridge-send step to round trip")
	}

	got.Status = ActionStatusCompleted
	if err := store.Save(got); err != nil {
		t.Fatalf("Save update failed: %v", err)
	}
	completed, err := store.List(ListFilter{Status: string(ActionStatusCompleted), Limit: 10})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected one completed action, got %d", len(completed))
	}
}

func TestStoreListFilters(t *testing.T) {
	store := openTestStore(t)

	approve := NewAction(NewActionID(), IntentApprove, "eip155:59144", Constraints{})
	approve.Direction = "linea-to-base"
	send := NewAction(NewActionID(), IntentSend, "eip155:8453", Constraints{})
	send.Direction = "base-to-linea"
	for _, a := range []Action{approve, send} {
		if err := store.Save(a); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	all, err := store.List(ListFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two actions, got %d", len(all))
	}
	byIntent, err := store.List(ListFilter{Intent: IntentApprove})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byIntent) != 1 || byIntent[0].ActionID != approve.ActionID {
		t.Fatalf("unexpected intent filter result: %+v", byIntent)
	}
	byDirection, err := store.List(ListFilter{Direction: "base-to-linea", Limit: 1})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byDirection) != 1 || byDirection[0].ActionID != send.ActionID {
		t.Fatalf("unexpected direction filter result: %+v", byDirection)
	}
}

func TestStoreGetMissingAction(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.Get("missing"); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}
