// Package scraper implements the Scraper Cascade (C11): a three-tier
// escalating fetch pipeline (plain HTTP -> stealth HTTP -> browser) feeding
// a shared content extractor, plus bounded-concurrency batch fetching.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/use-agent/auspex/browserpool"
	"github.com/use-agent/auspex/cleaner"
)

// ForceTier, when non-empty, restricts the cascade to a single named tier.
type ForceTier string

const (
	ForceNone    ForceTier = ""
	ForceHTTP    ForceTier = "http"
	ForceStealth ForceTier = "stealth"
	ForceBrowser ForceTier = "browser"
)

// escalationMinMarkdown is the markdown-length floor below which a tier's
// result is considered too thin and the cascade escalates, unless the
// page also carries detected SSR state (a signal the content is legitimately
// short or client-hydrated rather than blocked/empty).
const escalationMinMarkdown = 200

// Request carries the inputs for one cascade attempt.
type Request struct {
	URL            string
	ForceTier      ForceTier
	Proxy          string
	Cookies        []BrowserCookie
	UserAgent      string
	Locale         string
	TimezoneID     string
	WaitSelector   string
	RecordJSONAPIs bool
	Timeout        time.Duration
	ExtractMode    string
	CSSSelector    string
	OutputFormat   string
}

// outputFormat defaults an unset Request.OutputFormat to "markdown".
func (r Request) outputFormat() string {
	if r.OutputFormat == "" {
		return "markdown"
	}
	return r.OutputFormat
}

// Outcome is the cascade's terminal result: the winning tier's raw fetch
// plus the extracted content, or a consolidated failure across every tier
// attempted.
type Outcome struct {
	Result       Result
	Extract      *cleaner.ExtractResult
	APIResponses []APIResponse
	TiersTried   []Tier
}

// Cascade orchestrates the three tiers and the domain memory that lets
// a domain skip straight to its last-successful tier.
type Cascade struct {
	http    *httpTier
	stealth *stealthTier
	browser *browserTier
	cleaner *cleaner.Cleaner
	memory  *DomainMemory
}

// NewCascade builds a Cascade. pool may be nil if the caller never needs
// tier 3 (ForceTier will fail fast if browser is requested without a pool).
func NewCascade(pool *browserpool.Pool, proxy string, memory *DomainMemory) *Cascade {
	var bt *browserTier
	if pool != nil {
		bt = newBrowserTier(pool)
	}
	return &Cascade{
		http:    newHTTPTier(proxy),
		stealth: newStealthTier(proxy),
		browser: bt,
		cleaner: cleaner.NewCleaner(),
		memory:  memory,
	}
}

// Fetch runs the cascade for one URL.
func (c *Cascade) Fetch(ctx context.Context, req Request) (*Outcome, error) {
	if req.ForceTier != ForceNone {
		return c.runForced(ctx, req)
	}

	host := hostOf(req.URL)
	order := []Tier{TierHTTP, TierStealth, TierBrowser}
	if host != "" && c.memory != nil {
		if remembered := c.memory.Get(host); remembered != "" {
			order = reorderStartingAt(order, remembered)
		}
	}

	var tried []Tier
	var causes []string

	for _, tier := range order {
		result, apiResponses, err := c.attempt(ctx, tier, req)
		tried = append(tried, tier)
		if err != nil {
			causes = append(causes, fmt.Sprintf("[%s] %v", tier, err))
			continue
		}

		extract, extractErr := c.cleaner.Clean(result.RawHTML, result.FinalURL, req.outputFormat(), req.ExtractMode, cleaner.CleanOptions{CSSSelector: req.CSSSelector})
		if extractErr != nil {
			causes = append(causes, fmt.Sprintf("[%s] extraction failed: %v", tier, extractErr))
			continue
		}

		if len(extract.Content) < escalationMinMarkdown && extract.SSRData == nil && tier != TierBrowser {
			causes = append(causes, fmt.Sprintf("[%s] thin content (%d chars), escalating", tier, len(extract.Content)))
			continue
		}

		if host != "" && c.memory != nil {
			c.memory.Set(host, tier)
		}

		return &Outcome{Result: result, Extract: extract, APIResponses: apiResponses, TiersTried: tried}, nil
	}

	if host != "" && c.memory != nil {
		c.memory.Delete(host)
	}

	return nil, NewScrapeError(ErrCodeNavigation, "all tiers failed:\n"+strings.Join(causes, "\n"), nil)
}

func (c *Cascade) runForced(ctx context.Context, req Request) (*Outcome, error) {
	tier := Tier(req.ForceTier)
	result, apiResponses, err := c.attempt(ctx, tier, req)
	if err != nil {
		return nil, err
	}
	extract, err := c.cleaner.Clean(result.RawHTML, result.FinalURL, req.outputFormat(), req.ExtractMode, cleaner.CleanOptions{CSSSelector: req.CSSSelector})
	if err != nil {
		return nil, err
	}
	return &Outcome{Result: result, Extract: extract, APIResponses: apiResponses, TiersTried: []Tier{tier}}, nil
}

func (c *Cascade) attempt(ctx context.Context, tier Tier, req Request) (Result, []APIResponse, error) {
	switch tier {
	case TierHTTP:
		res, err := c.http.fetch(ctx, req.URL)
		return res, nil, err
	case TierStealth:
		res, err := c.stealth.fetch(ctx, req.URL)
		return res, nil, err
	case TierBrowser:
		if c.browser == nil {
			return Result{}, nil, NewScrapeError(ErrCodeBrowser, "browser tier unavailable: no pool configured", nil)
		}
		return c.browser.fetch(ctx, req.URL, BrowserTierOptions{
			UserAgent:      req.UserAgent,
			Locale:         req.Locale,
			TimezoneID:     req.TimezoneID,
			Proxy:          req.Proxy,
			Cookies:        req.Cookies,
			WaitSelector:   req.WaitSelector,
			RecordJSONAPIs: req.RecordJSONAPIs,
			UserTimeout:    req.Timeout,
		})
	default:
		return Result{}, nil, NewScrapeError(ErrCodeNavigation, fmt.Sprintf("unknown tier %q", tier), nil)
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func reorderStartingAt(order []Tier, start Tier) []Tier {
	idx := -1
	for i, t := range order {
		if t == start {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return order
	}
	result := make([]Tier, 0, len(order))
	result = append(result, order[idx:]...)
	result = append(result, order[:idx]...)
	return result
}
