package tvad

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestSupervisorNoModules(t *testing.T) {
	s := Supervisor{Logger: zap.NewNop()}
	if err := s.Run(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty module list")
	}
}

func TestSupervisorStopsOnModuleError(t *testing.T) {
	boom := errors.New("boom")
	s := Supervisor{Logger: zap.NewNop()}
	modules := []ModuleRunner{
		{Name: "ok", Run: func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}},
		{Name: "bad", Run: func(ctx context.Context) error {
			return boom
		}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	err := s.Run(ctx, modules)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestSupervisorWaitsForModulesOnCancel(t *testing.T) {
	var stopped atomic.Int32
	s := Supervisor{Logger: zap.NewNop()}
	modules := []ModuleRunner{
		{Name: "a", Run: func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Add(1)
			return nil
		}},
		{Name: "b", Run: func(ctx context.Context) error {
			<-ctx.Done()
			stopped.Add(1)
			return nil
		}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, modules) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("supervisor did not return")
	}
	if stopped.Load() != 2 {
		t.Fatalf("stopped = %d", stopped.Load())
	}
}
