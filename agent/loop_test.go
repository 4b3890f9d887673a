package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	agentaction "github.com/use-agent/auspex/action"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/llm"
	"github.com/use-agent/auspex/snapshot"
)

func pageSnapshotStub(url, text string) snapshot.PageSnapshot {
	return snapshot.PageSnapshot{URL: url, Text: text}
}

// scriptedDecision is one pre-baked LLM response for scriptedDecider.
type scriptedDecision struct {
	data  string
	usage llm.Usage
	err   error
}

// scriptedDecider is a fake Decider that returns responses in order,
// recording the screenshot argument of every call so vision-escalation
// tests can assert it was (or wasn't) attached.
type scriptedDecider struct {
	responses   []scriptedDecision
	calls       int
	screenshots []string
}

func (d *scriptedDecider) Decide(ctx context.Context, systemPrompt, userMessage, screenshotBase64JPEG string, params llm.Params) (*llm.Decision, error) {
	d.screenshots = append(d.screenshots, screenshotBase64JPEG)
	if d.calls >= len(d.responses) {
		return nil, fmt.Errorf("scriptedDecider: no response scripted for call %d", d.calls+1)
	}
	r := d.responses[d.calls]
	d.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Decision{Data: json.RawMessage(r.data), Usage: r.usage}, nil
}

// fakeDriver is a scripted PageDriver: a fixed snapshot returned on every
// call, a canned screenshot, and one execution error returned for every
// executed action.
type fakeDriver struct {
	snap          snapshot.PageSnapshot
	screenshotVal string
	execErr       error
	executed      []agentaction.AgentAction
}

func (d *fakeDriver) Snapshot() snapshot.PageSnapshot { return d.snap }

func (d *fakeDriver) Screenshot(quality int) (string, error) {
	return d.screenshotVal, nil
}

func (d *fakeDriver) Execute(ctx context.Context, act agentaction.AgentAction) error {
	d.executed = append(d.executed, act)
	return d.execErr
}

func testAgentConfig(t *testing.T, model string, vision bool, maxTotalTokens int) *config.AgentConfig {
	t.Helper()
	cfg, err := config.NewAgentConfig(config.AgentConfig{
		LLMAPIKey:      "test-key",
		LLMBaseURL:     "https://example.invalid/v1",
		LLMModel:       model,
		MaxIterations:  10,
		TimeoutMs:      60_000,
		MaxTotalTokens: maxTotalTokens,
		Vision:         vision,
	})
	if err != nil {
		t.Fatalf("NewAgentConfig: %v", err)
	}
	return cfg
}

func doneAction(result string) string {
	b, _ := json.Marshal(agentaction.AgentAction{Type: agentaction.Done, Result: result})
	return string(b)
}

func clickAction(selector string) string {
	b, _ := json.Marshal(agentaction.AgentAction{Type: agentaction.Click, Selector: selector})
	return string(b)
}

// S2: the loop escalates to the browser, clicks once, then finishes.
func TestLoopClickThenDone(t *testing.T) {
	decider := &scriptedDecider{responses: []scriptedDecision{
		{data: clickAction("#load-more"), usage: llm.Usage{TotalTokens: 100}},
		{data: doneAction("Top story: Solar flare observed"), usage: llm.Usage{TotalTokens: 100}},
	}}
	driver := &fakeDriver{snap: pageSnapshotStub("https://example.com/", "hello")}
	cfg := testAgentConfig(t, "gpt-4o-mini", false, 0)

	result := Loop(context.Background(), driver, cfg, fastRunOptions("https://example.com/", "find the story"), decider, noSampler, nil)

	if result.Status != StatusDone {
		t.Fatalf("status = %q, want done (error=%q)", result.Status, result.Error)
	}
	if result.Tier != TierBrowser {
		t.Fatalf("tier = %q, want browser", result.Tier)
	}
	if len(result.Actions) != 2 {
		t.Fatalf("actions.length = %d, want 2", len(result.Actions))
	}
	if last := result.Actions[len(result.Actions)-1].Action; last.Type != agentaction.Done {
		t.Fatalf("last action type = %q, want done", last.Type)
	}
	if len(driver.executed) != 1 || driver.executed[0].Type != agentaction.Click {
		t.Fatalf("expected exactly one click to reach the driver, got %+v", driver.executed)
	}
}

// S3: the same action repeated three times trips STUCK detection on the
// fourth occurrence, and the run ends in a done{FAILED} the iteration after.
func TestLoopStuckThenFailed(t *testing.T) {
	click := clickAction("#submit")
	decider := &scriptedDecider{responses: []scriptedDecision{
		{data: click},
		{data: click},
		{data: click},
		{data: click},
		{data: doneAction("FAILED: could not find element matching #submit")},
	}}
	driver := &fakeDriver{snap: pageSnapshotStub("https://example.com/", "hello")}
	cfg := testAgentConfig(t, "gpt-4o-mini", false, 0)

	result := Loop(context.Background(), driver, cfg, fastRunOptions("https://example.com/", "submit the form"), decider, noSampler, nil)

	if result.Status != StatusError {
		t.Fatalf("status = %q, want error", result.Status)
	}
	if !strings.HasPrefix(result.Error, "could not find element") {
		t.Fatalf("error = %q, want prefix %q", result.Error, "could not find element")
	}
	if len(result.Actions) != 4 {
		t.Fatalf("actions.length = %d, want 4", len(result.Actions))
	}
}

// S4: the per-run token budget cuts the run off once the running total
// reaches the configured ceiling, before a further LLM call is made.
func TestLoopBudgetCutoff(t *testing.T) {
	click := clickAction("#next")
	decider := &scriptedDecider{responses: []scriptedDecision{
		{data: click, usage: llm.Usage{TotalTokens: 400}},
		{data: clickAction("#next2"), usage: llm.Usage{TotalTokens: 400}},
		{data: clickAction("#next3"), usage: llm.Usage{TotalTokens: 400}},
		{data: doneAction("unreachable")},
	}}
	driver := &fakeDriver{snap: pageSnapshotStub("https://example.com/", "hello")}
	cfg := testAgentConfig(t, "gpt-4o-mini", false, 1000)

	result := Loop(context.Background(), driver, cfg, fastRunOptions("https://example.com/", "page through"), decider, noSampler, nil)

	if result.Status != StatusError {
		t.Fatalf("status = %q, want error", result.Status)
	}
	if !strings.Contains(result.Error, "Token budget exceeded") {
		t.Fatalf("error = %q, want to contain %q", result.Error, "Token budget exceeded")
	}
	if decider.calls != 3 {
		t.Fatalf("decider.calls = %d, want exactly 3 (budget checked before the 4th call)", decider.calls)
	}
}

// S5: a page recognized as a bot-block (by URL or by a short captcha-like
// body) ends the run immediately, without ever calling the LLM.
func TestLoopBlockedPage(t *testing.T) {
	decider := &scriptedDecider{responses: []scriptedDecision{
		{data: doneAction("unreachable")},
	}}
	driver := &fakeDriver{snap: pageSnapshotStub("https://example.com/sorry/index", "please verify")}
	cfg := testAgentConfig(t, "gpt-4o-mini", false, 0)

	result := Loop(context.Background(), driver, cfg, fastRunOptions("https://example.com/", "do the thing"), decider, noSampler, nil)

	if result.Status != StatusError {
		t.Fatalf("status = %q, want error", result.Status)
	}
	if !strings.HasPrefix(result.Error, "Blocked by target site") {
		t.Fatalf("error = %q, want prefix %q", result.Error, "Blocked by target site")
	}
	if decider.calls != 0 {
		t.Fatalf("decider.calls = %d, want 0 (blocked before any decision)", decider.calls)
	}
}

// S6: three consecutive invalid actions escalate vision on a model that
// supports it; the next LLM call carries a non-empty screenshot argument.
func TestLoopVisionEscalatesOnRepeatedFailure(t *testing.T) {
	invalid := `{"type":"click","selector":""}` // fails validateSelector
	decider := &scriptedDecider{responses: []scriptedDecision{
		{data: invalid},
		{data: invalid},
		{data: invalid},
		{data: clickAction("#ok")},
		{data: doneAction("done")},
	}}
	driver := &fakeDriver{snap: pageSnapshotStub("https://example.com/", "hello"), screenshotVal: "ZmFrZS1qcGVn"}
	cfg := testAgentConfig(t, "gpt-4o", true, 0)

	result := Loop(context.Background(), driver, cfg, fastRunOptions("https://example.com/", "click ok"), decider, noSampler, nil)

	if result.Status != StatusDone {
		t.Fatalf("status = %q, want done (error=%q)", result.Status, result.Error)
	}
	if len(decider.screenshots) < 4 || decider.screenshots[3] == "" {
		t.Fatalf("expected the 4th decide call to carry a screenshot, got %v", decider.screenshots)
	}
	for i := 0; i < 3; i++ {
		if decider.screenshots[i] != "" {
			t.Fatalf("decide call %d should not have a screenshot before vision activates, got %q", i+1, decider.screenshots[i])
		}
	}
}

// S6b: a model not on the vision whitelist never escalates, even after the
// same repeated-failure pattern.
func TestLoopVisionNeverActivatesOnUnsupportedModel(t *testing.T) {
	invalid := `{"type":"click","selector":""}`
	decider := &scriptedDecider{responses: []scriptedDecision{
		{data: invalid},
		{data: invalid},
		{data: invalid},
		{data: clickAction("#ok")},
		{data: doneAction("done")},
	}}
	driver := &fakeDriver{snap: pageSnapshotStub("https://example.com/", "hello"), screenshotVal: "ZmFrZS1qcGVn"}
	cfg := testAgentConfig(t, "gpt-3.5-turbo", true, 0)

	result := Loop(context.Background(), driver, cfg, fastRunOptions("https://example.com/", "click ok"), decider, noSampler, nil)

	if result.Status != StatusDone {
		t.Fatalf("status = %q, want done (error=%q)", result.Status, result.Error)
	}
	for i, shot := range decider.screenshots {
		if shot != "" {
			t.Fatalf("decide call %d carried a screenshot but model is not vision-capable: %q", i+1, shot)
		}
	}
}

func noSampler() (int64, bool) { return 0, false }

// fastRunOptions builds RunOptions with the post-action delay collapsed to
// 1ms so scripted tests with several successful actions don't pay the real
// default delay.
func fastRunOptions(url, prompt string) config.RunOptions {
	delay := int64(1)
	return config.RunOptions{URL: url, Prompt: prompt, ActionDelayMs: &delay}
}

func TestActionKeyStableAcrossEquivalentFormatting(t *testing.T) {
	a, err := agentaction.Parse([]byte(`{"type":"click","selector":"#submit"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := agentaction.Parse([]byte(`{ "selector" : "#submit",  "type" : "click" }`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	k1 := actionKey(a)
	k2 := actionKey(b)
	if k1 != k2 {
		t.Fatalf("actionKey should be deterministic: %q != %q", k1, k2)
	}
}

func TestCountOccurrences(t *testing.T) {
	window := []string{"a", "b", "a", "a"}
	if got := countOccurrences(window, "a"); got != 3 {
		t.Fatalf("countOccurrences = %d, want 3", got)
	}
	if got := countOccurrences(window, "z"); got != 0 {
		t.Fatalf("countOccurrences = %d, want 0", got)
	}
}

func TestIsBlockedPageByURL(t *testing.T) {
	snap := pageSnapshotStub("https://example.com/sorry/index", "hello")
	if !isBlockedPage(snap) {
		t.Fatal("expected blocked URL to be detected")
	}
}

func TestIsBlockedPageByBody(t *testing.T) {
	snap := pageSnapshotStub("https://example.com/", "Please verify you are not a robot")
	if !isBlockedPage(snap) {
		t.Fatal("expected blocked body text to be detected")
	}
}

func TestIsBlockedPageBodyIgnoredWhenLong(t *testing.T) {
	longText := ""
	for len(longText) < blockedBodyMaxLen+1 {
		longText += "not a robot filler "
	}
	snap := pageSnapshotStub("https://example.com/", longText)
	if isBlockedPage(snap) {
		t.Fatal("blocked-body heuristic must only apply under the length cap")
	}
}
