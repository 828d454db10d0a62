package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/me/mcsched/pkg/model"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestWorkerRegistry_Register(t *testing.T) {
	r := NewWorkerRegistry()
	w := model.NewWorker("10.0.0.1", "node-a")
	w.State = model.WorkerStateIdle

	if err := r.Register(w, t0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got := r.Get(w.ID)
	if got == nil {
		t.Fatal("registered worker not found")
	}
	if got.State != model.WorkerStateUnknown {
		t.Errorf("State = %s, want UNKNOWN", got.State)
	}
	if !got.LastHeartbeat.Equal(t0) {
		t.Errorf("LastHeartbeat = %v, want %v", got.LastHeartbeat, t0)
	}

	err := r.Register(w, t0)
	if !errors.Is(err, model.ErrDuplicateIdentity) {
		t.Fatalf("second Register = %v, want ErrDuplicateIdentity", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d after duplicate, want 1", r.Len())
	}
}

func TestWorkerRegistry_RegisterDedupsChains(t *testing.T) {
	r := NewWorkerRegistry()
	w := model.NewWorker("10.0.0.1", "node-a")
	c := model.ModelChain{ID: "mc_1", Name: "A", Version: "1"}
	w.Chains = []model.ModelChain{c, c}

	if err := r.Register(w, t0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if n := len(r.Get(w.ID).Chains); n != 1 {
		t.Errorf("len(Chains) = %d, want 1", n)
	}
}

func TestWorkerRegistry_Unregister(t *testing.T) {
	r := NewWorkerRegistry()
	w, err := r.RegisterNew("10.0.0.1", "node-a", t0)
	if err != nil {
		t.Fatalf("RegisterNew: %v", err)
	}

	if !r.Unregister(w.ID) {
		t.Fatal("Unregister returned false for known worker")
	}
	if w.State != model.WorkerStateRemoved {
		t.Errorf("State = %s, want REMOVED", w.State)
	}
	if r.Get(w.ID) != nil {
		t.Error("worker still present after Unregister")
	}
	if r.Unregister(w.ID) {
		t.Error("Unregister returned true for unknown worker")
	}
}

func TestWorkerRegistry_RetiredIDNotReused(t *testing.T) {
	r := NewWorkerRegistry()
	if err := r.Register(&model.Worker{ID: "wkr_fixed", Address: "10.0.0.1"}, t0); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Unregister("wkr_fixed")

	err := r.Register(&model.Worker{ID: "wkr_fixed", Address: "10.0.0.2"}, t0)
	if !errors.Is(err, model.ErrDuplicateIdentity) {
		t.Errorf("Register retired id = %v, want ErrDuplicateIdentity", err)
	}

	r.Clear()
	if err := r.Register(&model.Worker{ID: "wkr_fixed", Address: "10.0.0.2"}, t0); !errors.Is(err, model.ErrDuplicateIdentity) {
		t.Errorf("Register retired id after Clear = %v, want ErrDuplicateIdentity", err)
	}
	if err := r.Register(&model.Worker{ID: "wkr_other", Address: "10.0.0.3"}, t0); err != nil {
		t.Errorf("Register fresh id: %v", err)
	}
}

func TestWorkerRegistry_RegisterChain(t *testing.T) {
	r := NewWorkerRegistry()
	w1, _ := r.RegisterNew("10.0.0.1", "a", t0)
	w2, _ := r.RegisterNew("10.0.0.2", "b", t0)

	c1 := r.RegisterChain(w1.ID, "ECHAM", "6.3")
	if c1 == nil {
		t.Fatal("RegisterChain returned nil")
	}
	c2 := r.RegisterChain(w2.ID, "echam", "6.3")
	if c2 == nil || c2.ID != c1.ID {
		t.Errorf("case-insensitive match should reuse %s, got %+v", c1.ID, c2)
	}
	if again := r.RegisterChain(w1.ID, "ECHAM", "6.3"); again == nil || len(w1.Chains) != 1 {
		t.Errorf("re-registering should not duplicate, chains = %v", w1.Chains)
	}

	tests := []struct {
		name, worker, chain, version string
	}{
		{"empty worker", "", "A", "1"},
		{"empty name", w1.ID, "", "1"},
		{"empty version", w1.ID, "A", ""},
		{"unknown worker", "wrk_nope", "A", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c := r.RegisterChain(tt.worker, tt.chain, tt.version); c != nil {
				t.Errorf("RegisterChain() = %+v, want nil", c)
			}
		})
	}

	known := r.KnownChains()
	if len(known) != 1 {
		t.Fatalf("KnownChains() = %v, want 1 entry", known)
	}
	if _, ok := r.Chain(c1.ID); !ok {
		t.Error("Chain() did not find registered chain")
	}
}

func TestWorkerRegistry_UnregisterChain(t *testing.T) {
	r := NewWorkerRegistry()
	w1, _ := r.RegisterNew("10.0.0.1", "a", t0)
	w2, _ := r.RegisterNew("10.0.0.2", "b", t0)
	c := r.RegisterChain(w1.ID, "A", "1")
	r.RegisterChain(w2.ID, "A", "1")

	if got := r.UnregisterChain(w1.ID, c.ID); got == nil || got.ID != c.ID {
		t.Fatalf("UnregisterChain = %+v", got)
	}
	if got := r.UnregisterChain(w1.ID, c.ID); got != nil {
		t.Errorf("second UnregisterChain = %+v, want nil", got)
	}
	if _, ok := r.Chain(c.ID); !ok {
		t.Error("chain still advertised by w2 should remain known")
	}
	r.UnregisterChain(w2.ID, c.ID)
	if _, ok := r.Chain(c.ID); ok {
		t.Error("chain with no provider should be unknown")
	}
}

func TestWorkerRegistry_AllIsACopy(t *testing.T) {
	r := NewWorkerRegistry()
	w, _ := r.RegisterNew("10.0.0.1", "a", t0)

	all := r.All()
	all[0].State = model.WorkerStateBusy
	if r.Get(w.ID).State != model.WorkerStateUnknown {
		t.Error("mutating All() result changed the registry")
	}

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Clear", r.Len())
	}
}
