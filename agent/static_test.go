package agent

import (
	"context"
	"testing"

	agentaction "github.com/use-agent/auspex/action"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/llm"
)

// S1: a single LLM response resolves the task without ever touching a
// browser.
func TestRunStaticSingleDoneResolves(t *testing.T) {
	decider := &scriptedDecider{responses: []scriptedDecision{
		{data: doneAction("Top story: Solar flare observed"), usage: llm.Usage{TotalTokens: 120}},
	}}
	cfg := testAgentConfig(t, "gpt-4o-mini", false, 0)

	result, escalate, usage := RunStatic(context.Background(), "<html><body><h1>Solar flare observed</h1></body></html>", "https://example.com/", cfg, config.RunOptions{URL: "https://example.com/", Prompt: "what's the top story?"}, decider)

	if escalate {
		t.Fatalf("escalate = true, want false")
	}
	if result.Status != StatusDone {
		t.Fatalf("status = %q, want done (error=%q)", result.Status, result.Error)
	}
	if result.Tier != TierHTTP {
		t.Fatalf("tier = %q, want http", result.Tier)
	}
	if len(result.Actions) != 1 {
		t.Fatalf("actions.length = %d, want 1", len(result.Actions))
	}
	if result.Actions[0].Action.Type != agentaction.Done {
		t.Fatalf("action type = %q, want done", result.Actions[0].Action.Type)
	}
	if usage.CallCount != 1 {
		t.Fatalf("usage.CallCount = %d, want 1", usage.CallCount)
	}
	if result.Data != "Top story: Solar flare observed" {
		t.Fatalf("data = %q", result.Data)
	}
}

// A FAILED: done result surfaces as a static-path error, not an escalation.
func TestRunStaticFailedDoesNotEscalate(t *testing.T) {
	decider := &scriptedDecider{responses: []scriptedDecision{
		{data: doneAction("FAILED: page requires JavaScript")},
	}}
	cfg := testAgentConfig(t, "gpt-4o-mini", false, 0)

	result, escalate, _ := RunStatic(context.Background(), "<html><body></body></html>", "https://example.com/", cfg, config.RunOptions{URL: "https://example.com/", Prompt: "anything"}, decider)

	if escalate {
		t.Fatalf("escalate = true, want false")
	}
	if result.Status != StatusError {
		t.Fatalf("status = %q, want error", result.Status)
	}
	if result.Error != "page requires JavaScript" {
		t.Fatalf("error = %q", result.Error)
	}
	if len(result.Actions) != 1 {
		t.Fatalf("actions.length = %d, want 1", len(result.Actions))
	}
}

// A non-done action (the model tried to click instead of finishing in one
// shot) tells the caller to escalate to the interactive loop.
func TestRunStaticNonDoneEscalates(t *testing.T) {
	decider := &scriptedDecider{responses: []scriptedDecision{
		{data: clickAction("#more")},
	}}
	cfg := testAgentConfig(t, "gpt-4o-mini", false, 0)

	result, escalate, _ := RunStatic(context.Background(), "<html><body></body></html>", "https://example.com/", cfg, config.RunOptions{URL: "https://example.com/", Prompt: "anything"}, decider)

	if !escalate {
		t.Fatalf("escalate = false, want true")
	}
	if result != nil {
		t.Fatalf("result = %+v, want nil", result)
	}
}
