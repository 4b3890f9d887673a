package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	agentaction "github.com/use-agent/auspex/action"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/llm"
	"github.com/use-agent/auspex/snapshot"
)

const (
	loopWindowMax        = 9
	loopStuckOccurrences = 3
)

var blockedURLRe = regexp.MustCompile(`/sorry/|/captcha|/challenge|/recaptcha|/blocked`)
var blockedBodyRe = regexp.MustCompile(`(?i)unusual traffic|not a robot|captcha|blocked your ip|access denied|rate limit`)

const blockedBodyMaxLen = 2000

// Loop runs the interactive perception-decision-action loop (C8) against a
// page until a terminal status is reached or maxIterations elapses. driver
// and client are seams: production callers pass a rodPageDriver and
// *llm.Client, tests pass scripted fakes.
func Loop(
	ctx context.Context,
	driver PageDriver,
	cfg *config.AgentConfig,
	opts config.RunOptions,
	client Decider,
	sampler MemSampler,
	obs Observer,
) *AgentResult {
	start := time.Now()
	maxIterations := opts.EffectiveMaxIterations(cfg.MaxIterations)
	timeoutMs := opts.EffectiveTimeoutMs(cfg.TimeoutMs)
	actionDelayMs := opts.EffectiveActionDelayMs(cfg.ActionDelayMs)
	visionFlag := opts.EffectiveVision(cfg.Vision)

	vision := newVisionState(visionFlag, cfg.LLMModel)

	var history []string
	var actions []ActionRecord
	var window []string
	var usage llm.Usage
	var mem Memory

	params := llm.Params{
		APIKey: cfg.LLMAPIKey, Model: cfg.LLMModel, BaseURL: cfg.LLMBaseURL,
		Temperature: cfg.Temperature, MaxOutputTokens: cfg.MaxOutputTokens,
		TopP: cfg.TopP, FrequencyPenalty: cfg.FrequencyPenalty, PresencePenalty: cfg.PresencePenalty,
	}

	terminal := func(status Status, tier Tier, data, errMsg string) *AgentResult {
		return &AgentResult{
			Status: status, Tier: tier, Data: data,
			DurationMs: time.Since(start).Milliseconds(),
			Actions:    actions, Usage: usage, Memory: mem, Error: errMsg,
			Report: buildReport(status, tier, data, opts, start, actions, usage, mem, errMsg),
		}
	}

	for i := 1; i <= maxIterations; i++ {
		if opts.Cancel != nil {
			select {
			case <-opts.Cancel:
				return terminal(StatusAborted, TierBrowser, "", "cancelled by caller")
			default:
			}
		}
		select {
		case <-ctx.Done():
			return terminal(StatusAborted, TierBrowser, "", "cancelled by caller")
		default:
		}

		if rssKB, ok := sampler(); ok && rssKB > mem.BrowserPeakRSSKB {
			mem.BrowserPeakRSSKB = rssKB
			mem.BrowserRSSKnown = true
		}

		if time.Since(start).Milliseconds() > timeoutMs {
			return terminal(StatusTimeout, TierBrowser, "", "run exceeded the configured deadline")
		}
		if cfg.MaxTotalTokens > 0 && usage.TotalTokens >= cfg.MaxTotalTokens {
			return terminal(StatusError, TierBrowser, "", "Token budget exceeded")
		}

		snap := driver.Snapshot()
		notify(obs, Event{Type: EventIteration, Iteration: i})

		if isBlockedPage(snap) {
			return terminal(StatusError, TierBrowser, "", "Blocked by target site")
		}

		var screenshotB64 string
		if vision.active {
			if shot, err := driver.Screenshot(cfg.ScreenshotJPEGQuality); err == nil {
				screenshotB64 = shot
			}
		}

		snapshotText := snapshot.Format(snap)
		var schemaDesc string
		if opts.OutputSchema != nil {
			schemaDesc = opts.OutputSchema.Description
		}
		userMsg := llm.UserMessage(opts.Prompt, snapshotText, schemaDesc, history)
		sysPrompt := llm.SystemPrompt(vision.available)

		decision, err := client.Decide(ctx, sysPrompt, userMsg, screenshotB64, params)
		if err != nil {
			return terminal(StatusError, TierBrowser, "", fmt.Sprintf("LLM decision failed: %v", err))
		}
		usage.Add(decision.Usage.PromptTokens, decision.Usage.CompletionTokens, decision.Usage.TotalTokens)

		act, parseErr := agentaction.Parse(decision.Data)
		if parseErr != nil {
			justActivated := vision.recordFailure()
			history = append(history, fmt.Sprintf("[%d] INVALID ACTION: %s. Use shorter, simpler CSS selectors…", i, parseErr.Error()))
			if justActivated {
				history = append(history, fmt.Sprintf("[%d] Vision activated after repeated failures.", i))
			}
			continue
		}

		key := actionKey(act)
		if countOccurrences(window, key) >= loopStuckOccurrences {
			justActivated := vision.recordFailure()
			history = append(history, fmt.Sprintf("[%d] STUCK: repeating the same action. Try a completely different approach.", i))
			if justActivated {
				history = append(history, fmt.Sprintf("[%d] Vision activated after repeated failures.", i))
			}
			window = nil
			continue
		}
		window = append(window, key)
		if len(window) > loopWindowMax {
			window = window[1:]
		}

		record := ActionRecord{Action: act, Iteration: i, Timestamp: time.Now()}
		actions = append(actions, record)
		notify(obs, Event{Type: EventAction, Iteration: i, Action: &act})

		if act.Type == agentaction.Done {
			if strings.HasPrefix(act.Result, "FAILED:") {
				msg := strings.TrimSpace(strings.TrimPrefix(act.Result, "FAILED:"))
				if msg == "" {
					msg = "task failed"
				}
				return terminal(StatusError, TierBrowser, "", msg)
			}
			notify(obs, Event{Type: EventDone, Iteration: i})
			return terminal(StatusDone, TierBrowser, act.Result, "")
		}

		if execErr := driver.Execute(ctx, act); execErr != nil {
			justActivated := vision.recordFailure()
			history = append(history, fmt.Sprintf("[%d] ERROR executing %s: %v. Try a different approach.", i, act.Type, execErr))
			if justActivated {
				history = append(history, fmt.Sprintf("[%d] Vision activated after repeated failures.", i))
			}
			continue
		}
		vision.recordSuccess()
		history = append(history, fmt.Sprintf("[%d] %s -> OK", i, agentaction.Format(act)))

		if act.Type != agentaction.Wait && act.Type != agentaction.Goto {
			time.Sleep(time.Duration(actionDelayMs) * time.Millisecond)
		}
	}

	return terminal(StatusMaxIterations, TierBrowser, "", "")
}

func isBlockedPage(snap snapshot.PageSnapshot) bool {
	if blockedURLRe.MatchString(snap.URL) {
		return true
	}
	if len(snap.Text) < blockedBodyMaxLen && blockedBodyRe.MatchString(snap.Text) {
		return true
	}
	return false
}

func capturePageScreenshot(page *rod.Page, quality int) (string, error) {
	q := quality
	bytes, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &q,
	})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}

// actionKey computes a canonical string for loop-detection purposes:
// JSON-marshal the action (which normalizes quote style and field order)
// and remove every whitespace character, including any inside field values.
func actionKey(a agentaction.AgentAction) string {
	b, err := json.Marshal(a)
	if err != nil {
		return string(a.Type)
	}
	fields := strings.Fields(string(b))
	return strings.Join(fields, "")
}

func countOccurrences(window []string, key string) int {
	n := 0
	for _, k := range window {
		if k == key {
			n++
		}
	}
	return n
}
