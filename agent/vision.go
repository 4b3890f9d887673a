package agent

import (
	"log/slog"
	"sync"

	"github.com/use-agent/auspex/llm"
)

// visionEscalationThreshold is the consecutive-failure count (invalid
// action, stuck-loop, or execution error) after which vision activates, once
// a run has already established that the configured model supports it.
const visionEscalationThreshold = 3

// warnedModels remembers which non-vision-capable models have already logged
// a "vision requested but unsupported" warning, process-wide, so repeated
// runs against the same model don't spam the log. Concurrent reads/writes
// are expected across simultaneously-running agents sharing a process.
var warnedModels sync.Map

// warnVisionUnsupportedOnce logs once per model that vision was requested
// but the model isn't on the vision whitelist. Duplicate warnings across a
// race are harmless, so no synchronization beyond sync.Map is needed.
func warnVisionUnsupportedOnce(model string) {
	if _, loaded := warnedModels.LoadOrStore(model, struct{}{}); !loaded {
		slog.Warn("vision requested but model is not on the vision whitelist", "model", model)
	}
}

// visionState tracks whether vision is available for this run's model,
// whether it has been activated, and how many consecutive failures have
// accrued toward activation.
type visionState struct {
	available           bool
	active              bool
	consecutiveFailures int
}

// newVisionState resolves availability: the config flag must be on AND the
// model must match llm.SupportsVision's whitelist. A warning is logged once
// per model if the flag is on but the model doesn't qualify.
func newVisionState(visionFlag bool, model string) *visionState {
	available := visionFlag && llm.SupportsVision(model)
	if visionFlag && !available {
		warnVisionUnsupportedOnce(model)
	}
	return &visionState{available: available}
}

// recordFailure increments the consecutive-failure counter and activates
// vision (if available and not already active) once the threshold is
// reached. Returns true the call that triggers activation, so the caller can
// append the required history line exactly once.
func (v *visionState) recordFailure() (justActivated bool) {
	v.consecutiveFailures++
	if v.available && !v.active && v.consecutiveFailures >= visionEscalationThreshold {
		v.active = true
		return true
	}
	return false
}

// recordSuccess resets the consecutive-failure counter. Activation, once
// triggered, is never reversed for the remainder of the run.
func (v *visionState) recordSuccess() {
	v.consecutiveFailures = 0
}
