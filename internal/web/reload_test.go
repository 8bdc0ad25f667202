package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReloadGate(t *testing.T) {
	g := newReloadGate(20 * time.Millisecond)
	ctx := context.Background()

	if err := g.acquire(ctx); err != nil {
		t.Fatalf("acquire() error = %v", err)
	}
	if !g.busy() {
		t.Error("busy() = false while held")
	}

	if err := g.acquire(ctx); !errors.Is(err, errReloadBusy) {
		t.Errorf("second acquire() error = %v, want errReloadBusy", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := g.acquire(cancelled); !errors.Is(err, context.Canceled) {
		t.Errorf("acquire(cancelled) error = %v, want context.Canceled", err)
	}

	g.release()
	if g.busy() {
		t.Error("busy() = true after release")
	}
	if err := g.acquire(ctx); err != nil {
		t.Errorf("acquire() after release error = %v", err)
	}
	g.release()
}

func TestReloadGate_WaitForDrain(t *testing.T) {
	g := newReloadGate(time.Second)
	if err := g.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.waitForDrain(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("waitForDrain() while held = %v, want deadline exceeded", err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.release()
	}()
	if err := g.waitForDrain(context.Background()); err != nil {
		t.Errorf("waitForDrain() error = %v", err)
	}
	if g.busy() {
		t.Error("waitForDrain left the slot held")
	}
}

func TestServer_ReloadBusy(t *testing.T) {
	s := newTestServer(t, testConfig(), writeRecords(t, "e1"))
	s.gate = newReloadGate(10 * time.Millisecond)

	if err := s.gate.acquire(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.gate.release()

	rec := do(t, s, http.MethodPost, "/api/reload", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "RLD001" {
		t.Errorf("code = %q, want RLD001", body.Code)
	}
}

func TestServer_ReloadScheduler(t *testing.T) {
	dir := writeRecords(t, "e1")
	s := newTestServer(t, testConfig(), dir)

	if got := len(s.current().result.Errors); got != 1 {
		t.Fatalf("initial errors = %d, want 1", got)
	}
	if err := os.Remove(filepath.Join(dir, "bad.chtc.wisc.edu.yaml")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.StartReloadScheduler(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(s.current().result.Errors) != 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("scheduler did not pick up the change")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
