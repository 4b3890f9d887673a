// Command auspexd runs the Auspex HTTP daemon: task submission/polling,
// a direct no-LLM scrape endpoint, and health reporting.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/auspex/agent"
	"github.com/use-agent/auspex/api"
	"github.com/use-agent/auspex/browserpool"
	"github.com/use-agent/auspex/cache"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/llm"
	"github.com/use-agent/auspex/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("auspex starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"poolSize", cfg.Pool.MaxSize,
	)

	// ── 3. Initialise browser pool (browsers launch lazily) ─────────
	pool := browserpool.New(cfg.Pool.MaxSize, browserpool.LaunchOptions{
		Headless:   cfg.Pool.Headless,
		NoSandbox:  cfg.Pool.NoSandbox,
		BrowserBin: cfg.Pool.BrowserBin,
	})
	defer pool.Close()

	// ── 4. Initialise the scraper cascade ────────────────────────────
	memory := scraper.NewDomainMemory(cfg.Cascade.DomainMemoryTTL)
	cascade := scraper.NewCascade(pool, "", memory)

	// ── 5. Initialise the agent's LLM client + config ────────────────
	llmClient := llm.NewClient(nil)
	agentCfg, err := config.NewAgentConfig(config.AgentConfig{
		LLMAPIKey:     os.Getenv("LLM_API_KEY"),
		LLMBaseURL:    cfg.Agent.LLMBaseURL,
		LLMModel:      cfg.Agent.LLMModel,
		Temperature:   cfg.Agent.Temperature,
		MaxIterations: cfg.Agent.MaxIterations,
		TimeoutMs:     cfg.Agent.TimeoutMs,
		Vision:        cfg.Agent.Vision,
	})
	if err != nil {
		slog.Error("failed to build agent config", "error", err)
		os.Exit(1)
	}
	ag := agent.New(agentCfg, llmClient, pool, cascade, nil, nil)

	// ── 6. Initialise the result cache ───────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)

	// ── 7. Setup router ───────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(ag, cascade, pool, cfg, cc, startTime)

	// ── 8. Start HTTP server ──────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ───────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// pool.Close() runs via defer — drains every live browser.
	slog.Info("auspex stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
