// Package agent implements the tiered perception-decision-action loop: the
// interactive loop (C8) driving a pooled browser through a bounded action
// vocabulary, the static loop (C9) that may resolve a task in one shot
// without a browser, the action executor (C12), and result/report assembly
// (C13).
package agent

import (
	"time"

	"github.com/use-agent/auspex/action"
	"github.com/use-agent/auspex/llm"
)

// Status is the terminal disposition of a run.
type Status string

const (
	StatusDone          Status = "done"
	StatusMaxIterations Status = "max_iterations"
	StatusError         Status = "error"
	StatusTimeout       Status = "timeout"
	StatusAborted       Status = "aborted"
)

// Tier names which path resolved the run: the static HTTP-only loop, or the
// interactive loop driving a pooled browser.
type Tier string

const (
	TierHTTP    Tier = "http"
	TierBrowser Tier = "browser"
)

// ActionRecord is one dispatched action, append-only per run.
type ActionRecord struct {
	Action    action.AgentAction
	Iteration int
	Timestamp time.Time
}

// Memory carries the run's memory accounting. Browser RSS is only available
// when a MemSampler was supplied and returned ok=true at least once.
type Memory struct {
	BrowserPeakRSSKB int64
	BrowserRSSKnown  bool
}

// AgentResult is the immutable outcome of one run.
type AgentResult struct {
	Status     Status
	Tier       Tier
	Data       string
	Report     string
	DurationMs int64
	Actions    []ActionRecord
	Usage      llm.Usage
	Memory     Memory
	Error      string
}

// MemSampler reports the process's current resident set size in kB. ok is
// false when the sample could not be taken (e.g. unsupported platform);
// Loop silently skips updating peak RSS in that case.
type MemSampler func() (rssKB int64, ok bool)

// EventType names an observer event fired during a run.
type EventType string

const (
	EventTier      EventType = "tier"
	EventIteration EventType = "iteration"
	EventAction    EventType = "action"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Event is one observer notification. Fields not relevant to Type are zero.
type Event struct {
	Type      EventType
	Iteration int
	Message   string
	Action    *action.AgentAction
}

// Observer receives Loop events in iteration order, on the same
// goroutine that drives the loop.
type Observer func(Event)

func notify(obs Observer, e Event) {
	if obs != nil {
		obs(e)
	}
}
