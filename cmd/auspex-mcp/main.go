// Command auspex-mcp exposes Auspex as an MCP stdio server: a browse_task
// tool that runs the full LLM-guided agent loop, and a scrape_url tool that
// performs a direct no-LLM cascade fetch. Both call straight into the
// in-process agent/scraper packages — there is no HTTP hop to an auspexd
// instance.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/auspex/agent"
	"github.com/use-agent/auspex/browserpool"
	"github.com/use-agent/auspex/cleaner"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/llm"
	"github.com/use-agent/auspex/scraper"
)

func main() {
	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "LLM_API_KEY is required")
		os.Exit(1)
	}

	cfg := config.Load()

	pool := browserpool.New(cfg.Pool.MaxSize, browserpool.LaunchOptions{
		Headless:   cfg.Pool.Headless,
		NoSandbox:  cfg.Pool.NoSandbox,
		BrowserBin: cfg.Pool.BrowserBin,
	})
	defer pool.Close()

	memory := scraper.NewDomainMemory(cfg.Cascade.DomainMemoryTTL)
	cascade := scraper.NewCascade(pool, "", memory)

	llmClient := llm.NewClient(nil)
	agentCfg, err := config.NewAgentConfig(config.AgentConfig{
		LLMAPIKey:     apiKey,
		LLMBaseURL:    cfg.Agent.LLMBaseURL,
		LLMModel:      cfg.Agent.LLMModel,
		Temperature:   cfg.Agent.Temperature,
		MaxIterations: cfg.Agent.MaxIterations,
		TimeoutMs:     cfg.Agent.TimeoutMs,
		Vision:        cfg.Agent.Vision,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build agent config: %v\n", err)
		os.Exit(1)
	}
	ag := agent.New(agentCfg, llmClient, pool, cascade, nil, nil)

	s := server.NewMCPServer(
		"auspex",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	browseTaskTool := mcp.NewTool("browse_task",
		mcp.WithDescription("Drive a headless browser with an LLM to accomplish a natural-language task on a web page: clicking, typing, scrolling, reading, and extracting information across multiple steps. Use this when a single scrape is not enough — the task needs judgment or interaction."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The starting URL for the task"),
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Natural-language description of what to accomplish on the page"),
		),
		mcp.WithNumber("max_iterations",
			mcp.Description("Maximum number of perceive-decide-act steps before giving up (default from server config)"),
		),
		mcp.WithBoolean("vision",
			mcp.Description("Whether to give the model a screenshot at each step in addition to the text snapshot (default from server config)"),
		),
	)
	s.AddTool(browseTaskTool, handleBrowseTask(ag))

	scrapeURLTool := mcp.NewTool("scrape_url",
		mcp.WithDescription("Fetch a single web page and return cleaned content (markdown). Tries a cheap HTTP fetch first, escalating to a stealth browser only if the page needs JavaScript or blocks bots. No LLM involved — use this for simple one-shot retrieval."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to scrape"),
		),
		mcp.WithString("force_tier",
			mcp.Description("Skip tier escalation and use this tier directly: 'http', 'stealth', or 'browser'"),
			mcp.Enum("http", "stealth", "browser"),
		),
		mcp.WithString("extract_mode",
			mcp.Description("Content extraction mode: 'readability' (default, extracts main article), 'raw' (full page HTML), or 'pruning' (score-based boilerplate pruning)"),
			mcp.Enum("readability", "raw", "pruning"),
		),
		mcp.WithString("output_format",
			mcp.Description("Output format: 'markdown' (default), 'html', 'text', or 'markdown_citations' (inline links rewritten to numbered references)"),
			mcp.Enum("markdown", "html", "text", "markdown_citations"),
		),
	)
	s.AddTool(scrapeURLTool, handleScrapeURL(cascade))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleBrowseTask(ag *agent.Agent) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		prompt, err := request.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError("prompt is required"), nil
		}

		opts := config.RunOptions{URL: url, Prompt: prompt}

		args := request.GetArguments()
		if v, ok := args["max_iterations"]; ok {
			if f, ok := v.(float64); ok {
				n := int(f)
				opts.MaxIterations = &n
			}
		}
		if v, ok := args["vision"]; ok {
			if b, ok := v.(bool); ok {
				opts.Vision = &b
			}
		}

		result := ag.Run(ctx, opts)

		if result.Status != agent.StatusDone {
			msg := result.Error
			if msg == "" {
				msg = string(result.Status)
			}
			return mcp.NewToolResultError(fmt.Sprintf("task did not complete: %s", msg)), nil
		}

		var sb strings.Builder
		sb.WriteString(result.Data)
		if result.Report != "" {
			sb.WriteString("\n\n---\n")
			sb.WriteString(result.Report)
		}
		sb.WriteString(fmt.Sprintf("\n\n(%d actions, %d ms, tier=%s)", len(result.Actions), result.DurationMs, result.Tier))

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleScrapeURL(cascade *scraper.Cascade) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		req := scraper.Request{
			URL:          url,
			ForceTier:    scraper.ForceTier(request.GetString("force_tier", "")),
			ExtractMode:  request.GetString("extract_mode", ""),
			OutputFormat: request.GetString("output_format", ""),
		}

		outcome, err := cascade.Fetch(ctx, req)
		if err != nil {
			if scrapeErr, ok := err.(*scraper.ScrapeError); ok {
				return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", scrapeErr.Code, scrapeErr.Error())), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(formatScrapeResult(outcome)), nil
	}
}

func formatScrapeResult(outcome *scraper.Outcome) string {
	var sb strings.Builder
	if outcome.Extract != nil {
		sb.WriteString(formatExtract(outcome.Extract))
	}
	sb.WriteString(fmt.Sprintf("\n\n(tier=%s, status=%d, tiersTried=%v)", outcome.Result.Tier, outcome.Result.StatusCode, outcome.TiersTried))
	return sb.String()
}

func formatExtract(e *cleaner.ExtractResult) string {
	if e.Metadata.Title != "" {
		return fmt.Sprintf("Title: %s\n\n%s", e.Metadata.Title, e.Content)
	}
	return e.Content
}
