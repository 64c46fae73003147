package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"xpdash/internal/storage"
)

func TestNewSweeper(t *testing.T) {
	w := NewExportWorker(storage.NewMemoryStore(), &fakeExporter{}, testLogger(), 10)
	s := NewSweeper(w, DefaultSweeperConfig(), testLogger())

	if s == nil {
		t.Fatal("expected non-nil sweeper")
	}
	if s.IsRunning() {
		t.Error("new sweeper should not be running")
	}
	if s.config.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", s.config.PollInterval)
	}
}

func TestSweeper_StartTwice(t *testing.T) {
	s := NewSweeper(nil, SweeperConfig{PollInterval: time.Hour}, testLogger())
	s.process = func(context.Context) (int, error) { return 0, nil }

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	defer s.Stop(ctx)

	if err := s.Start(ctx); err == nil {
		t.Error("expected error when starting twice")
	}
}

func TestSweeper_StartWithoutWorker(t *testing.T) {
	s := NewSweeper(nil, DefaultSweeperConfig(), testLogger())
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error without export worker")
	}
}

func TestSweeper_StopNotRunning(t *testing.T) {
	s := NewSweeper(nil, DefaultSweeperConfig(), testLogger())
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("stop on idle sweeper: %v", err)
	}
}

func TestSweeper_RunsOnTicker(t *testing.T) {
	var calls atomic.Int32
	s := NewSweeper(nil, SweeperConfig{PollInterval: 5 * time.Millisecond}, testLogger())
	s.process = func(context.Context) (int, error) {
		calls.Add(1)
		return 0, nil
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if calls.Load() < 2 {
		t.Errorf("process called %d times, want >= 2", calls.Load())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.IsRunning() {
		t.Error("sweeper should not be running after stop")
	}
}

func TestSweeper_ZeroIntervalUsesDefault(t *testing.T) {
	s := NewSweeper(nil, SweeperConfig{}, testLogger())
	s.process = func(context.Context) (int, error) { return 0, nil }
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(ctx)
	if s.config.PollInterval != DefaultSweeperConfig().PollInterval {
		t.Errorf("PollInterval = %v", s.config.PollInterval)
	}
}
