package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestFanOutAllSucceed(t *testing.T) {
	var ran atomic.Int32
	inc := func(context.Context) error {
		ran.Add(1)
		return nil
	}

	if err := fanOut(context.Background(), inc, inc, inc); err != nil {
		t.Fatalf("fanOut: %v", err)
	}
	if ran.Load() != 3 {
		t.Errorf("ran %d tasks, want 3", ran.Load())
	}
}

func TestFanOutNoTasks(t *testing.T) {
	if err := fanOut(context.Background()); err != nil {
		t.Errorf("fanOut(): %v", err)
	}
}

func TestFanOutFailsFast(t *testing.T) {
	boom := errors.New("boom")
	release := make(chan struct{})
	defer close(release)

	stuck := func(ctx context.Context) error {
		// ignores cancellation to prove the caller does not wait for it
		<-release
		return nil
	}
	failing := func(context.Context) error {
		return boom
	}

	start := time.Now()
	err := fanOut(context.Background(), stuck, failing)
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}
	if time.Since(start) > time.Second {
		t.Error("fanOut waited for the stuck sibling")
	}
}

func TestFanOutFirstErrorWins(t *testing.T) {
	first := errors.New("first")
	follower := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	failing := func(context.Context) error {
		return first
	}

	if err := fanOut(context.Background(), follower, failing); !errors.Is(err, first) {
		t.Errorf("got %v, want first", err)
	}
}
