package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	agentaction "github.com/use-agent/auspex/action"
	"github.com/use-agent/auspex/safety"
)

const (
	clickTimeout    = 10 * time.Second
	typeTimeout     = 5 * time.Second
	selectTimeout   = 5 * time.Second
	hoverTimeout    = 5 * time.Second
	gotoTimeout     = 30 * time.Second
	postClickWait   = 5 * time.Second
	defaultScrollPx = 500
)

var roleLocatorRe = regexp.MustCompile(`^role=(\w+)(?:\[name="(.*)"\])?$`)

// Executor translates validated AgentActions into browser operations on one
// live page. A fresh Executor is cheap; it carries no per-run state beyond
// the safety policy needed to re-validate `goto` targets.
type Executor struct {
	Policy   safety.Policy
	Resolver safety.Resolver
}

// NewExecutor builds an Executor bound to the given runtime URL policy.
func NewExecutor(policy safety.Policy, resolver safety.Resolver) *Executor {
	return &Executor{Policy: policy, Resolver: resolver}
}

// Execute dispatches a into its browser operation against page. `done` is a
// no-op here; the loop handles termination before ever calling Execute with
// a done action, but the branch is kept so Execute remains total over the
// action vocabulary.
func (ex *Executor) Execute(ctx context.Context, page *rod.Page, a agentaction.AgentAction) error {
	switch a.Type {
	case agentaction.Click:
		return ex.execClick(ctx, page, a)
	case agentaction.Type_:
		return ex.execType(ctx, page, a)
	case agentaction.Select:
		return ex.execSelect(ctx, page, a)
	case agentaction.PressKey:
		return ex.execPressKey(ctx, page, a)
	case agentaction.Hover:
		return ex.execHover(ctx, page, a)
	case agentaction.Goto:
		return ex.execGoto(ctx, page, a)
	case agentaction.Wait:
		return execWait(ctx, a)
	case agentaction.Scroll:
		return execScroll(ctx, page, a)
	case agentaction.Done:
		return nil
	default:
		return fmt.Errorf("executor: unknown action type %q", a.Type)
	}
}

// locate resolves a validated Selector, which is either a role locator
// (`role=<word>[name="..."]`) or a plain CSS selector, against page.
func locate(ctx context.Context, page *rod.Page, selector string, timeout time.Duration) (*rod.Element, error) {
	p := page.Context(ctx).Timeout(timeout)

	if m := roleLocatorRe.FindStringSubmatch(selector); m != nil {
		role := m[1]
		name := strings.ReplaceAll(m[2], `\"`, `"`)
		return locateByRole(p, role, name)
	}
	return p.Element(selector)
}

// locateByRole finds the first element whose explicit `role` attribute, or
// implicit role per the tag-name table, matches role, and whose accessible
// name (aria-label, else trimmed visible text) matches name when name is
// non-empty.
func locateByRole(page *rod.Page, role, name string) (*rod.Element, error) {
	js := `(role, name) => {
		const implicit = {a:'link', button:'button', input:'textbox', textarea:'textbox',
			select:'combobox', nav:'navigation', header:'banner', footer:'contentinfo', main:'main', form:'form'};
		const all = document.querySelectorAll('*');
		for (const el of all) {
			const r = el.getAttribute('role') || implicit[el.tagName.toLowerCase()];
			if (r !== role) continue;
			if (name) {
				const accName = (el.getAttribute('aria-label') || el.innerText || el.textContent || '').trim();
				if (accName !== name) continue;
			}
			return el;
		}
		return null;
	}`
	el, err := page.ElementByJS(rod.Eval(js, role, name))
	if err != nil {
		return nil, fmt.Errorf("role locator role=%q name=%q: %w", role, name, err)
	}
	return el, nil
}

func (ex *Executor) execClick(ctx context.Context, page *rod.Page, a agentaction.AgentAction) error {
	el, err := locate(ctx, page, a.Selector, clickTimeout)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", a.Selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", a.Selector, err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, postClickWait)
	_ = page.Context(waitCtx).WaitDOMStable(300*time.Millisecond, 0.1)
	cancel()
	return nil
}

func (ex *Executor) execType(ctx context.Context, page *rod.Page, a agentaction.AgentAction) error {
	el, err := locate(ctx, page, a.Selector, typeTimeout)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", a.Selector, err)
	}
	if err := el.Input(a.Text); err != nil {
		return fmt.Errorf("type into %q: %w", a.Selector, err)
	}
	return nil
}

func (ex *Executor) execSelect(ctx context.Context, page *rod.Page, a agentaction.AgentAction) error {
	el, err := locate(ctx, page, a.Selector, selectTimeout)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", a.Selector, err)
	}
	if err := el.Select([]string{a.Value}, true, rod.SelectorTypeValue); err != nil {
		return fmt.Errorf("select %q on %q: %w", a.Value, a.Selector, err)
	}
	return nil
}

var keyByName = map[string]input.Key{
	"Enter": input.Enter, "Tab": input.Tab, "Escape": input.Escape,
	"Backspace": input.Backspace, "Delete": input.Delete,
	"ArrowUp": input.ArrowUp, "ArrowDown": input.ArrowDown,
	"ArrowLeft": input.ArrowLeft, "ArrowRight": input.ArrowRight,
	"Home": input.Home, "End": input.End,
	"PageUp": input.PageUp, "PageDown": input.PageDown, "Space": input.Space,
	"F1": input.F1, "F2": input.F2, "F3": input.F3, "F4": input.F4,
	"F5": input.F5, "F6": input.F6, "F7": input.F7, "F8": input.F8,
	"F9": input.F9, "F10": input.F10, "F11": input.F11, "F12": input.F12,
}

var enterKeyRe = regexp.MustCompile(`(?i)^enter$`)

func (ex *Executor) execPressKey(ctx context.Context, page *rod.Page, a agentaction.AgentAction) error {
	key, ok := keyByName[a.Key]
	if !ok {
		return fmt.Errorf("pressKey: unmapped key %q", a.Key)
	}
	if err := page.Context(ctx).Keyboard.Type(key); err != nil {
		return fmt.Errorf("press key %q: %w", a.Key, err)
	}
	if enterKeyRe.MatchString(a.Key) {
		waitCtx, cancel := context.WithTimeout(ctx, postClickWait)
		_ = page.Context(waitCtx).WaitDOMStable(300*time.Millisecond, 0.1)
		cancel()
	}
	return nil
}

func (ex *Executor) execHover(ctx context.Context, page *rod.Page, a agentaction.AgentAction) error {
	el, err := locate(ctx, page, a.Selector, hoverTimeout)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", a.Selector, err)
	}
	if err := el.Hover(); err != nil {
		return fmt.Errorf("hover %q: %w", a.Selector, err)
	}
	return nil
}

func (ex *Executor) execGoto(ctx context.Context, page *rod.Page, a agentaction.AgentAction) error {
	validated, err := safety.Validate(ctx, a.URL, ex.Policy, ex.Resolver)
	if err != nil {
		return fmt.Errorf("goto rejected by safety policy: %w", err)
	}
	gotoCtx, cancel := context.WithTimeout(ctx, gotoTimeout)
	defer cancel()
	if err := page.Context(gotoCtx).Navigate(validated); err != nil {
		return fmt.Errorf("navigate to %q: %w", validated, err)
	}
	return nil
}

func execWait(ctx context.Context, a agentaction.AgentAction) error {
	d := time.Duration(a.Ms) * time.Millisecond
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func execScroll(ctx context.Context, page *rod.Page, a agentaction.AgentAction) error {
	amount := a.Amount
	if amount == 0 {
		amount = defaultScrollPx
	}
	delta := amount
	if a.Direction == "up" {
		delta = -amount
	}
	_, err := page.Context(ctx).Eval(`(d) => window.scrollBy(0, d)`, delta)
	if err != nil {
		return fmt.Errorf("scroll %s %d: %w", a.Direction, amount, err)
	}
	return nil
}

