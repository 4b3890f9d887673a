package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/auspex/browserpool"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/llm"
	"github.com/use-agent/auspex/safety"
	"github.com/use-agent/auspex/scraper"
)

// Agent wires the validator, LLM client, browser pool, and scraper cascade
// into the two-phase flow described in spec §2: a one-shot static attempt,
// falling through to the interactive loop over a pooled browser.
type Agent struct {
	Config   *config.AgentConfig
	Client   *llm.Client
	Pool     *browserpool.Pool
	Cascade  *scraper.Cascade
	Resolver safety.Resolver
	Sampler  MemSampler
}

// New builds an Agent from its already-constructed collaborators.
func New(cfg *config.AgentConfig, client *llm.Client, pool *browserpool.Pool, cascade *scraper.Cascade, resolver safety.Resolver, sampler MemSampler) *Agent {
	if sampler == nil {
		sampler = func() (int64, bool) { return 0, false }
	}
	return &Agent{Config: cfg, Client: client, Pool: pool, Cascade: cascade, Resolver: resolver, Sampler: sampler}
}

func (a *Agent) policy() safety.Policy {
	return safety.Policy{Allow: a.Config.AllowDomains, Block: a.Config.BlockDomains}
}

// Run validates opts.URL, attempts the static loop against a plain-HTTP
// fetch, and escalates to the interactive loop over a pooled browser when
// the static attempt can't resolve the task.
func (a *Agent) Run(ctx context.Context, opts config.RunOptions) *AgentResult {
	start := time.Now()

	validatedURL, err := safety.Validate(ctx, opts.URL, a.policy(), a.Resolver)
	if err != nil {
		return &AgentResult{
			Status: StatusError, Tier: TierHTTP,
			DurationMs: time.Since(start).Milliseconds(),
			Error:      fmt.Sprintf("URL rejected: %v", err),
		}
	}

	staticResult, escalate, staticUsage := a.runStaticPhase(ctx, validatedURL, opts)
	if !escalate {
		if staticResult == nil {
			return &AgentResult{
				Status: StatusAborted, Tier: TierHTTP,
				DurationMs: time.Since(start).Milliseconds(),
				Usage:      staticUsage,
				Error:      "cancelled by caller",
			}
		}
		return staticResult
	}

	return a.runInteractivePhase(ctx, validatedURL, opts, staticUsage)
}

func (a *Agent) runStaticPhase(ctx context.Context, validatedURL string, opts config.RunOptions) (*AgentResult, bool, llm.Usage) {
	outcome, err := a.Cascade.Fetch(ctx, scraper.Request{URL: validatedURL, ForceTier: scraper.ForceHTTP})
	if err != nil {
		return nil, true, llm.Usage{}
	}
	return RunStatic(ctx, outcome.Result.RawHTML, outcome.Result.FinalURL, a.Config, opts, a.Client)
}

func (a *Agent) runInteractivePhase(ctx context.Context, validatedURL string, opts config.RunOptions, carriedUsage llm.Usage) *AgentResult {
	browser, err := a.Pool.Acquire(ctx)
	if err != nil {
		return &AgentResult{Status: StatusError, Tier: TierBrowser, Error: fmt.Sprintf("acquire browser: %v", err)}
	}
	released := false
	release := func() {
		if !released {
			released = true
			a.Pool.Release(browser)
		}
	}
	defer release()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		a.Pool.Discard(browser)
		released = true
		return &AgentResult{Status: StatusError, Tier: TierBrowser, Error: fmt.Sprintf("create page: %v", err)}
	}
	defer func() { _ = page.Close() }()

	navCtx, cancel := context.WithTimeout(ctx, time.Duration(a.Config.NavTimeoutMs)*time.Millisecond)
	navErr := page.Context(navCtx).Navigate(validatedURL)
	cancel()
	if navErr != nil {
		return &AgentResult{Status: StatusError, Tier: TierBrowser, Error: fmt.Sprintf("initial navigation: %v", navErr)}
	}

	executor := NewExecutor(a.policy(), a.Resolver)
	driver := newRodPageDriver(page, executor)
	result := Loop(ctx, driver, a.Config, opts, a.Client, a.Sampler, nil)
	result.Usage.PromptTokens += carriedUsage.PromptTokens
	result.Usage.CompletionTokens += carriedUsage.CompletionTokens
	result.Usage.TotalTokens += carriedUsage.TotalTokens
	result.Usage.CallCount += carriedUsage.CallCount
	return result
}
