// Package action defines the closed vocabulary of browser actions an LLM
// decision may select, and the validator that parses raw JSON into one of
// them while rejecting unsafe selectors.
package action

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Type discriminates the AgentAction variants. Exactly one variant is
// populated per parsed action.
type Type string

const (
	Click    Type = "click"
	Type_    Type = "type" // "type" shadows the package-level Type; Type_ avoids collision in call sites.
	Select   Type = "select"
	PressKey Type = "pressKey"
	Hover    Type = "hover"
	Goto     Type = "goto"
	Wait     Type = "wait"
	Scroll   Type = "scroll"
	Done     Type = "done"
)

// ALLOWED_KEYS is the closed set of key names pressKey accepts.
var ALLOWED_KEYS = map[string]bool{
	"Enter": true, "Tab": true, "Escape": true, "Backspace": true, "Delete": true,
	"ArrowUp": true, "ArrowDown": true, "ArrowLeft": true, "ArrowRight": true,
	"Home": true, "End": true, "PageUp": true, "PageDown": true, "Space": true,
	"F1": true, "F2": true, "F3": true, "F4": true, "F5": true, "F6": true,
	"F7": true, "F8": true, "F9": true, "F10": true, "F11": true, "F12": true,
}

const (
	maxTypeText     = 1000
	maxSelectValue  = 500
	maxSelectorLen  = 500
	maxDoneResult   = 50000
	minWaitMs       = 1
	maxWaitMs       = 5000
	minScrollAmount = 1
	maxScrollAmount = 5000
)

var roleSelectorRe = regexp.MustCompile(`^role=\w+(\[name="[^"]*"\])?$`)

var selectorBlacklistRe = regexp.MustCompile(`(?i)javascript:|on\w+\s*=|<script|data:`)

// AgentAction is the exhaustive, tagged-union action an LLM decision, or an
// operator setup step, may select. Exactly one field-group is meaningful
// per value of Type.
type AgentAction struct {
	Type Type `json:"type"`

	Selector string `json:"selector,omitempty"` // click, type, select, pressKey(no), hover
	Text     string `json:"text,omitempty"`      // type
	Value    string `json:"value,omitempty"`     // select
	Key      string `json:"key,omitempty"`       // pressKey
	URL      string `json:"url,omitempty"`       // goto
	Ms       int    `json:"ms,omitempty"`        // wait
	Direction string `json:"direction,omitempty"` // scroll
	Amount   int    `json:"amount,omitempty"`     // scroll
	Result   string `json:"result,omitempty"`     // done
}

// ValidationError bears a human-readable cause for a rejected action.
type ValidationError struct {
	Reason string
	Raw    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("action: %s (raw=%s)", e.Reason, e.Raw)
}

func fail(raw, reason string) (AgentAction, error) {
	return AgentAction{}, &ValidationError{Reason: reason, Raw: raw}
}

// rawAction is the wire shape used to detect unknown keys before binding
// into the strongly-typed AgentAction.
type rawAction map[string]json.RawMessage

var knownKeysByType = map[Type]map[string]bool{
	Click:    {"type": true, "selector": true},
	Type_:    {"type": true, "selector": true, "text": true},
	Select:   {"type": true, "selector": true, "value": true},
	PressKey: {"type": true, "key": true},
	Hover:    {"type": true, "selector": true},
	Goto:     {"type": true, "url": true},
	Wait:     {"type": true, "ms": true},
	Scroll:   {"type": true, "direction": true, "amount": true},
	Done:     {"type": true, "result": true},
}

// Parse validates raw JSON against the exhaustive discriminated set and
// returns the typed action, or a ValidationError. For `goto`, URL safety
// validation (C1) is the caller's responsibility — it happens at execution
// time, not here, because allow/block policy is a runtime parameter.
func Parse(raw []byte) (AgentAction, error) {
	var probe struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fail(string(raw), "malformed JSON: "+err.Error())
	}

	allowed, ok := knownKeysByType[probe.Type]
	if !ok {
		return fail(string(raw), fmt.Sprintf("unknown action type %q", probe.Type))
	}

	var fields rawAction
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fail(string(raw), "malformed JSON object: "+err.Error())
	}
	for k := range fields {
		if !allowed[k] {
			return fail(string(raw), fmt.Sprintf("unknown key %q for action type %q", k, probe.Type))
		}
	}

	var a AgentAction
	if err := json.Unmarshal(raw, &a); err != nil {
		return fail(string(raw), "malformed action body: "+err.Error())
	}
	a.Type = probe.Type

	switch a.Type {
	case Click, Hover:
		if err := validateSelector(a.Selector); err != nil {
			return fail(string(raw), err.Error())
		}
	case Type_:
		if err := validateSelector(a.Selector); err != nil {
			return fail(string(raw), err.Error())
		}
		if len(a.Text) > maxTypeText {
			return fail(string(raw), fmt.Sprintf("text exceeds %d chars", maxTypeText))
		}
	case Select:
		if err := validateSelector(a.Selector); err != nil {
			return fail(string(raw), err.Error())
		}
		if len(a.Value) > maxSelectValue {
			return fail(string(raw), fmt.Sprintf("value exceeds %d chars", maxSelectValue))
		}
	case PressKey:
		if !ALLOWED_KEYS[a.Key] {
			return fail(string(raw), fmt.Sprintf("key %q is not in ALLOWED_KEYS", a.Key))
		}
	case Goto:
		if strings.TrimSpace(a.URL) == "" {
			return fail(string(raw), "url must not be empty")
		}
	case Wait:
		if a.Ms < minWaitMs || a.Ms > maxWaitMs {
			return fail(string(raw), fmt.Sprintf("ms must be in [%d,%d]", minWaitMs, maxWaitMs))
		}
	case Scroll:
		if a.Direction != "up" && a.Direction != "down" {
			return fail(string(raw), "direction must be up or down")
		}
		if a.Amount != 0 && (a.Amount < minScrollAmount || a.Amount > maxScrollAmount) {
			return fail(string(raw), fmt.Sprintf("amount must be in [%d,%d]", minScrollAmount, maxScrollAmount))
		}
	case Done:
		if len(a.Result) > maxDoneResult {
			return fail(string(raw), fmt.Sprintf("result exceeds %d chars", maxDoneResult))
		}
	default:
		return fail(string(raw), fmt.Sprintf("unknown action type %q", a.Type))
	}

	return a, nil
}

// validateSelector enforces the Selector invariant from the data model: a
// non-empty, trimmed, bounded CSS selector free of script-injection
// patterns, OR a trusted role selector.
func validateSelector(sel string) error {
	trimmed := strings.TrimSpace(sel)
	if trimmed == "" {
		return fmt.Errorf("selector must not be empty or whitespace-only")
	}
	if len(trimmed) > maxSelectorLen {
		return fmt.Errorf("selector exceeds %d chars", maxSelectorLen)
	}
	if roleSelectorRe.MatchString(trimmed) {
		return nil // role selectors are trusted, bypassing the blacklist.
	}
	if selectorBlacklistRe.MatchString(trimmed) {
		return fmt.Errorf("selector matches the injection blacklist")
	}
	return nil
}

// Format renders an action as a short human-readable line for the audit
// trail, e.g. `click(#submit)` or `goto(https://example.com)`.
func Format(a AgentAction) string {
	switch a.Type {
	case Click:
		return fmt.Sprintf("click(%s)", a.Selector)
	case Type_:
		return fmt.Sprintf("type(%s, %q)", a.Selector, truncate(a.Text, 60))
	case Select:
		return fmt.Sprintf("select(%s, %q)", a.Selector, a.Value)
	case PressKey:
		return fmt.Sprintf("pressKey(%s)", a.Key)
	case Hover:
		return fmt.Sprintf("hover(%s)", a.Selector)
	case Goto:
		return fmt.Sprintf("goto(%s)", a.URL)
	case Wait:
		return fmt.Sprintf("wait(%dms)", a.Ms)
	case Scroll:
		return fmt.Sprintf("scroll(%s, %d)", a.Direction, a.Amount)
	case Done:
		return fmt.Sprintf("done(%q)", truncate(a.Result, 60))
	default:
		return string(a.Type)
	}
}

// Key returns a short "type:field" summary string for an action, built from
// its identifying fields (scroll ignores amount; done ignores result). The
// agent loop's repetition check does not use it; it keys actions with its own
// JSON-based actionKey.
func Key(a AgentAction) string {
	switch a.Type {
	case Click, Hover:
		return string(a.Type) + ":" + a.Selector
	case Type_:
		return string(a.Type) + ":" + a.Selector + ":" + a.Text
	case Select:
		return string(a.Type) + ":" + a.Selector + ":" + a.Value
	case PressKey:
		return string(a.Type) + ":" + a.Key
	case Goto:
		return string(a.Type) + ":" + a.URL
	case Wait:
		return string(a.Type) + ":" + fmt.Sprint(a.Ms)
	case Scroll:
		return string(a.Type) + ":" + a.Direction
	case Done:
		return string(a.Type)
	default:
		return string(a.Type)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
