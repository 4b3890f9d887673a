package browserpool

import (
	"context"
	"testing"
	"time"
)

func TestStatsReflectCapacity(t *testing.T) {
	p := New(3, LaunchOptions{Headless: true})
	stats := p.Stats()
	if stats.Size != 3 {
		t.Fatalf("expected size 3, got %d", stats.Size)
	}
	if stats.Live != 0 || stats.Idle != 0 || stats.Waiters != 0 {
		t.Fatalf("expected a fresh pool to be empty, got %+v", stats)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := New(1, LaunchOptions{Headless: true})
	p.Close()
	p.Close()
	stats := p.Stats()
	if stats.Live != 0 {
		t.Fatalf("expected no live browsers after close, got %d", stats.Live)
	}
}

func TestAcquireAfterCloseFails(t *testing.T) {
	p := New(1, LaunchOptions{Headless: true})
	p.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := p.Acquire(ctx); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
