package llm

import "testing"

func TestWindowHistoryPreservesFirstAndRecent(t *testing.T) {
	history := make([]string, 12)
	for i := range history {
		history[i] = string(rune('a' + i))
	}
	windowed := WindowHistory(history)
	if len(windowed) != 8 {
		t.Fatalf("expected 8 lines (1 first + 7 recent), got %d", len(windowed))
	}
	if windowed[0] != history[0] {
		t.Fatalf("expected first line preserved, got %q", windowed[0])
	}
	if windowed[len(windowed)-1] != history[len(history)-1] {
		t.Fatal("expected last line to be the most recent")
	}
}

func TestWindowHistoryPassesThroughUnderThreshold(t *testing.T) {
	history := []string{"a", "b", "c"}
	windowed := WindowHistory(history)
	if len(windowed) != 3 {
		t.Fatalf("expected passthrough, got %d", len(windowed))
	}
}

func TestSupportsVisionWhitelist(t *testing.T) {
	cases := map[string]bool{
		"gpt-4o":                       true,
		"GPT-4O-MINI":                  true,
		"gpt-4.1-nano-2025":            true,
		"meta-llama/llama-4-scout-17b": true,
		"claude-3-opus":                false,
		"gpt-3.5-turbo":                false,
	}
	for model, want := range cases {
		if got := SupportsVision(model); got != want {
			t.Errorf("SupportsVision(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestUserMessageIncludesSections(t *testing.T) {
	msg := UserMessage("find the price", "## Current Page\n...", "", nil)
	if !contains(msg, "## Task") || !contains(msg, "find the price") {
		t.Fatal("expected task section")
	}
	if !contains(msg, "## Your next action (JSON only):") {
		t.Fatal("expected closing instruction")
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
