// Package browserpool implements the Browser Pool (C10): a fixed-capacity set
// of reusable headless browser instances with a LIFO idle stack and a FIFO
// waiter queue, each waiter bounded by its own acquire deadline.
package browserpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// ErrClosed is returned by Acquire once the pool has been shut down.
var ErrClosed = errors.New("browserpool: closed")

// ErrAcquireTimeout is returned when a waiter's deadline elapses before a
// browser becomes available.
var ErrAcquireTimeout = errors.New("browserpool: acquire timed out")

// defaultAcquireWait is the deadline applied to a waiter when the caller's
// context carries no deadline; a context deadline that has not yet passed
// replaces it, whether earlier or later.
const defaultAcquireWait = 30 * time.Second

// LaunchOptions are the fixed options applied to every launched browser.
type LaunchOptions struct {
	Headless   bool
	NoSandbox  bool
	BrowserBin string
	Proxy      string
}

type waiter struct {
	ch    chan *rod.Browser
	timer *time.Timer
}

// Pool manages up to Size concurrently live browsers, reusing idle ones
// LIFO and queuing excess acquirers FIFO.
type Pool struct {
	size int
	opts LaunchOptions

	mu      sync.Mutex
	live    map[*rod.Browser]struct{}
	idle    []*rod.Browser
	waiters []*waiter
	closed  bool
}

// New creates a Pool with the given fixed capacity and launch options.
// Browsers are launched lazily, on first Acquire.
func New(size int, opts LaunchOptions) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size: size,
		opts: opts,
		live: make(map[*rod.Browser]struct{}),
	}
}

// Acquire returns a live browser, reusing an idle one if available, else
// launching a new one if under capacity, else blocking on a FIFO wait queue
// until one is released or ctx's deadline (or the default 30s) elapses.
func (p *Pool) Acquire(ctx context.Context) (*rod.Browser, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	for len(p.idle) > 0 {
		b := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if _, ok := p.live[b]; !ok {
			// already removed from the live set via Discard
			continue
		}
		p.mu.Unlock()
		return b, nil
	}

	if len(p.live) < p.size {
		b, err := p.launchLocked()
		p.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	w := &waiter{ch: make(chan *rod.Browser, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	wait := defaultAcquireWait
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			wait = remaining
		}
	}
	w.timer = time.NewTimer(wait)
	defer w.timer.Stop()

	select {
	case b, ok := <-w.ch:
		if !ok {
			return nil, ErrClosed
		}
		return b, nil
	case <-w.timer.C:
		p.removeWaiter(w)
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		p.removeWaiter(w)
		return nil, ctx.Err()
	}
}

// removeWaiter unqueues w after its timeout or ctx elapses. If Release has
// already popped w and handed it a browser in the race between the timer
// firing and this call acquiring p.mu, the browser is recovered from w.ch
// and returned to the pool instead of leaking into an unread channel.
func (p *Pool) removeWaiter(w *waiter) {
	p.mu.Lock()
	for i, q := range p.waiters {
		if q == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()

	if b, ok := <-w.ch; ok {
		p.Release(b)
	}
}

// Release returns a browser to the pool. If the pool is closed the browser
// is closed outright. If a waiter is queued, the browser is handed to it
// directly without touching the idle stack.
func (p *Pool) Release(b *rod.Browser) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		b.MustClose()
		return
	}

	if _, ok := p.live[b]; !ok {
		// already removed (disconnected) — nothing to release.
		p.mu.Unlock()
		return
	}

	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		w.timer.Stop()
		w.ch <- b
		return
	}

	p.idle = append(p.idle, b)
	p.mu.Unlock()
}

// Discard removes a browser from the live set without returning it to idle
// or handing it to a waiter, and closes it. Callers invoke this in place of
// Release when an operation on b has revealed it is disconnected or
// otherwise unusable, which stands in for a disconnect handler since rod's
// browser does not expose a disconnect callback to register one against.
func (p *Pool) Discard(b *rod.Browser) {
	p.mu.Lock()
	if _, ok := p.live[b]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.live, b)
	p.mu.Unlock()
	defer func() { _ = recover() }()
	_ = b.Close()
}

// Close marks the pool closed, rejects all pending waiters, and closes all
// live browsers concurrently, ignoring individual close errors. Idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true

	waiters := p.waiters
	p.waiters = nil

	live := make([]*rod.Browser, 0, len(p.live))
	for b := range p.live {
		live = append(live, b)
	}
	p.live = make(map[*rod.Browser]struct{})
	p.idle = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w.timer.Stop()
		close(w.ch)
	}

	var wg sync.WaitGroup
	wg.Add(len(live))
	for _, b := range live {
		go func(b *rod.Browser) {
			defer wg.Done()
			defer func() { _ = recover() }()
			_ = b.Close()
		}(b)
	}
	wg.Wait()
}

// Stats reports a point-in-time view of pool occupancy.
type Stats struct {
	Size    int
	Live    int
	Idle    int
	Waiters int
}

// Stats returns the current pool occupancy counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Size:    p.size,
		Live:    len(p.live),
		Idle:    len(p.idle),
		Waiters: len(p.waiters),
	}
}

// launchLocked launches a new browser under the anti-automation stealth
// flags and adds it to the live set. No disconnect handler is registered;
// a dead browser leaves the pool only when a caller passes it to Discard.
// Caller must hold p.mu.
func (p *Pool) launchLocked() (*rod.Browser, error) {
	l := launcher.New().
		Headless(p.opts.Headless).
		NoSandbox(p.opts.NoSandbox)

	if p.opts.BrowserBin != "" {
		l = l.Bin(p.opts.BrowserBin)
	}
	if p.opts.Proxy != "" {
		l = l.Proxy(p.opts.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browserpool: launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browserpool: connect to browser: %w", err)
	}

	p.live[b] = struct{}{}
	slog.Debug("browserpool: launched browser", "controlURL", controlURL, "live", len(p.live))
	return b, nil
}
