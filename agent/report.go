package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/use-agent/auspex/action"
	"github.com/use-agent/auspex/config"
	"github.com/use-agent/auspex/llm"
)

const maxReportDataLen = 10_000

// buildReport renders the human-readable report C13 specifies: header, URL,
// prompt, status, method, duration, a step-by-step action log, result,
// resource usage, and memory.
func buildReport(
	status Status, tier Tier, data string,
	opts config.RunOptions, start time.Time,
	actions []ActionRecord, usage llm.Usage, mem Memory, errMsg string,
) string {
	var b strings.Builder

	b.WriteString("=== Auspex Agent Report ===\n")
	fmt.Fprintf(&b, "URL: %s\n", opts.URL)
	fmt.Fprintf(&b, "Prompt: %s\n", opts.Prompt)
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Method: %s\n", tier)
	fmt.Fprintf(&b, "Duration: %dms\n\n", time.Since(start).Milliseconds())

	b.WriteString("--- Actions ---\n")
	if len(actions) == 0 {
		b.WriteString("(none)\n")
	} else {
		for _, rec := range actions {
			fmt.Fprintf(&b, "[%d] %s\n", rec.Iteration, action.Format(rec.Action))
		}
	}

	b.WriteString("\n--- Result ---\n")
	if errMsg != "" {
		fmt.Fprintf(&b, "Error: %s\n", errMsg)
	} else {
		b.WriteString(truncateReportData(data))
		b.WriteString("\n")
	}

	b.WriteString("\n--- Resource Usage ---\n")
	fmt.Fprintf(&b, "LLM calls: %d\n", usage.CallCount)
	fmt.Fprintf(&b, "Tokens: prompt=%d completion=%d total=%d\n", usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)

	b.WriteString("\n--- Memory ---\n")
	if mem.BrowserRSSKnown {
		fmt.Fprintf(&b, "Browser peak RSS: %d kB\n", mem.BrowserPeakRSSKB)
	} else {
		b.WriteString("Browser peak RSS: not available\n")
	}

	return b.String()
}

func truncateReportData(data string) string {
	if len(data) <= maxReportDataLen {
		return data
	}
	return data[:maxReportDataLen] + "… (truncated)"
}
