package config

import (
	"context"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, testConfigYAML)

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, 20*time.Millisecond, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx) }()
	defer w.Stop()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	updated := strings.Replace(testConfigYAML, "strategy: cost_optimized", "strategy: least_connections", 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.LoadBalancing.Strategy != "least_connections" {
			t.Errorf("expected least_connections, got %q", cfg.LoadBalancing.Strategy)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_InvalidFileKeepsPrevious(t *testing.T) {
	path := writeConfig(t, testConfigYAML)

	var calls atomic.Int32
	w, err := NewWatcher(path, 20*time.Millisecond, func(*Config) { calls.Add(1) }, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx) }()
	defer w.Stop()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("load_balancing:\n  strategy: nope\n"), 0o644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}
	time.Sleep(300 * time.Millisecond)

	if calls.Load() != 0 {
		t.Errorf("expected no reload callback for invalid config, got %d", calls.Load())
	}
}

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 10; i++ {
		d.Trigger(func() { calls.Add(1) })
	}
	time.Sleep(150 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("expected 1 call, got %d", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	time.Sleep(100 * time.Millisecond)

	if calls.Load() != 0 {
		t.Error("callback ran after Stop")
	}
}
