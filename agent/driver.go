package agent

import (
	"context"

	"github.com/go-rod/rod"

	agentaction "github.com/use-agent/auspex/action"
	"github.com/use-agent/auspex/llm"
	"github.com/use-agent/auspex/snapshot"
)

// Decider is the subset of *llm.Client the loop needs: one decision per
// iteration. Loop and RunStatic accept this interface instead of a concrete
// *llm.Client so tests can script LLM responses without a live endpoint.
type Decider interface {
	Decide(ctx context.Context, systemPrompt, userMessage, screenshotBase64JPEG string, params llm.Params) (*llm.Decision, error)
}

// PageDriver is the perceive/act surface Loop needs each iteration: a text
// snapshot, an optional screenshot, and action execution. rodPageDriver is
// the only production implementation; tests supply a scripted fake so S1-S6
// run without a real browser.
type PageDriver interface {
	Snapshot() snapshot.PageSnapshot
	Screenshot(quality int) (string, error)
	Execute(ctx context.Context, act agentaction.AgentAction) error
}

// rodPageDriver adapts a live rod.Page and its Executor to the PageDriver
// seam.
type rodPageDriver struct {
	page     *rod.Page
	executor *Executor
}

// newRodPageDriver wraps page and executor as a PageDriver.
func newRodPageDriver(page *rod.Page, executor *Executor) *rodPageDriver {
	return &rodPageDriver{page: page, executor: executor}
}

func (d *rodPageDriver) Snapshot() snapshot.PageSnapshot {
	return snapshot.FromPage(d.page)
}

func (d *rodPageDriver) Screenshot(quality int) (string, error) {
	return capturePageScreenshot(d.page, quality)
}

func (d *rodPageDriver) Execute(ctx context.Context, act agentaction.AgentAction) error {
	return d.executor.Execute(ctx, d.page, act)
}
