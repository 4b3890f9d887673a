package agent

import (
	"context"
	"strings"
	"time"

	agentaction "github.com/use-agent/auspex/action"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/llm"
	"github.com/use-agent/auspex/snapshot"
)

// RunStatic attempts the task in exactly one LLM call against already-fetched
// rawHTML (C9). It never drives a browser. escalate is true when the static
// attempt could not resolve the task and the caller should fall through to
// the interactive loop; usage is always returned so the caller can fold it
// into the eventual browser-loop total. If opts.Cancel has already fired,
// result is nil and escalate is false.
func RunStatic(
	ctx context.Context,
	rawHTML, pageURL string,
	cfg *config.AgentConfig,
	opts config.RunOptions,
	client Decider,
) (result *AgentResult, escalate bool, usage llm.Usage) {
	start := time.Now()

	if opts.Cancel != nil {
		select {
		case <-opts.Cancel:
			return nil, false, usage
		default:
		}
	}
	select {
	case <-ctx.Done():
		return nil, false, usage
	default:
	}

	snap, err := snapshot.FromHTML(rawHTML, pageURL)
	if err != nil {
		return nil, true, usage
	}

	params := llm.Params{
		APIKey: cfg.LLMAPIKey, Model: cfg.LLMModel, BaseURL: cfg.LLMBaseURL,
		Temperature: cfg.Temperature, MaxOutputTokens: cfg.MaxOutputTokens,
		TopP: cfg.TopP, FrequencyPenalty: cfg.FrequencyPenalty, PresencePenalty: cfg.PresencePenalty,
	}

	var schemaDesc string
	if opts.OutputSchema != nil {
		schemaDesc = opts.OutputSchema.Description
	}
	userMsg := llm.UserMessage(opts.Prompt, snapshot.Format(snap), schemaDesc, nil)
	sysPrompt := llm.SystemPrompt(false)

	decision, err := client.Decide(ctx, sysPrompt, userMsg, "", params)
	if err != nil {
		return nil, true, usage
	}
	usage.Add(decision.Usage.PromptTokens, decision.Usage.CompletionTokens, decision.Usage.TotalTokens)

	act, parseErr := agentaction.Parse(decision.Data)
	if parseErr != nil {
		return nil, true, usage
	}

	if act.Type != agentaction.Done {
		return nil, true, usage
	}

	actions := []ActionRecord{{Action: act, Iteration: 1, Timestamp: time.Now()}}

	if strings.HasPrefix(act.Result, "FAILED:") {
		msg := strings.TrimSpace(strings.TrimPrefix(act.Result, "FAILED:"))
		if msg == "" {
			msg = "task failed"
		}
		res := &AgentResult{
			Status: StatusError, Tier: TierHTTP, Data: "",
			DurationMs: time.Since(start).Milliseconds(), Actions: actions, Usage: usage, Error: msg,
		}
		res.Report = buildReport(res.Status, res.Tier, res.Data, opts, start, actions, usage, Memory{}, msg)
		return res, false, usage
	}

	res := &AgentResult{
		Status: StatusDone, Tier: TierHTTP, Data: act.Result,
		DurationMs: time.Since(start).Milliseconds(), Actions: actions, Usage: usage,
	}
	res.Report = buildReport(res.Status, res.Tier, res.Data, opts, start, actions, usage, Memory{}, "")
	return res, false, usage
}
