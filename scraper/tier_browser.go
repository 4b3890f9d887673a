package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/auspex/browserpool"
)

// STEALTH_INIT_SCRIPT is the process-wide, opaque JavaScript string injected
// into every tier-3 browser context before any page script runs. Its
// contents mask the common automation tells (navigator.webdriver, missing
// plugins/languages, headless-specific Chrome internals).
var STEALTH_INIT_SCRIPT = stealth.JS

// trackerBlocklist is the fixed analytics/tracker substring blocklist applied
// to every outgoing request in tier 3, in addition to font/media/image.
var trackerBlocklist = []string{
	"google-analytics", "googletagmanager", "facebook.net", "connect.facebook.net",
	"hotjar", "fullstory", "segment.io", "mixpanel", "amplitude",
	"sentry", "clarity.ms", "doubleclick", "adnxs", "criteo", "taboola", "outbrain",
}

var blockedResourceTypes = map[proto.NetworkResourceType]struct{}{
	proto.NetworkResourceTypeFont:  {},
	proto.NetworkResourceTypeMedia: {},
	proto.NetworkResourceTypeImage: {},
}

// BrowserTierOptions configures a tier-3 attempt.
type BrowserTierOptions struct {
	UserAgent      string
	Locale         string
	TimezoneID     string
	Proxy          string
	Cookies        []BrowserCookie
	WaitSelector   string
	RecordJSONAPIs bool
	UserTimeout    time.Duration
}

// BrowserCookie is a single cookie to seed into the tier-3 page context.
type BrowserCookie struct {
	Name, Value, Domain, Path string
}

// APIResponse is an intercepted JSON API response captured during tier 3,
// when RecordJSONAPIs is set.
type APIResponse struct {
	URL  string
	Body string
}

// browserTier is tier 3: a reused headless Chromium instance navigates with
// full anti-automation measures.
type browserTier struct {
	pool *browserpool.Pool
}

func newBrowserTier(pool *browserpool.Pool) *browserTier {
	return &browserTier{pool: pool}
}

const maxAPIResponseBytes = 500_000

func (t *browserTier) fetch(ctx context.Context, targetURL string, opts BrowserTierOptions) (Result, []APIResponse, error) {
	browser, err := t.pool.Acquire(ctx)
	if err != nil {
		return Result{}, nil, NewScrapeError(ErrCodeBrowser, "acquire browser from pool", err)
	}
	released := false
	release := func() {
		if !released {
			released = true
			t.pool.Release(browser)
		}
	}
	defer release()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		t.pool.Discard(browser)
		released = true
		return Result{}, nil, NewScrapeError(ErrCodeBrowser, "create page", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1920, Height: 1080, DeviceScaleFactor: 1, Mobile: false,
	}); err != nil {
		t.pool.Discard(browser)
		released = true
		return Result{}, nil, NewScrapeError(ErrCodeBrowser, "set viewport", err)
	}

	if opts.UserAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}.Call(page)
	}
	if opts.Locale != "" {
		_ = proto.EmulationSetLocaleOverride{Locale: opts.Locale}.Call(page)
	}
	if opts.TimezoneID != "" {
		_ = proto.EmulationSetTimezoneOverride{TimezoneID: opts.TimezoneID}.Call(page)
	}

	for _, c := range opts.Cookies {
		domain := c.Domain
		if domain == "" {
			if u, parseErr := url.Parse(targetURL); parseErr == nil {
				domain = u.Host
			}
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{Name: c.Name, Value: c.Value, Domain: domain, Path: path}.Call(page)
	}

	if _, err := page.EvalOnNewDocument(STEALTH_INIT_SCRIPT); err != nil {
		// non-fatal: proceed without stealth masking rather than abort the fetch.
		_ = err
	}

	var apiResponses []APIResponse
	router := page.HijackRequests()
	_ = router.Add("*", "", func(hijack *rod.Hijack) {
		reqURL := hijack.Request.URL().String()
		if _, blocked := blockedResourceTypes[hijack.Request.Type()]; blocked {
			hijack.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		for _, tracker := range trackerBlocklist {
			if strings.Contains(reqURL, tracker) {
				hijack.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
				return
			}
		}
		hijack.ContinueRequest(&proto.FetchContinueRequest{})
		if opts.RecordJSONAPIs && !isAssetURL(reqURL) {
			hijack.MustLoadResponse()
			ct := hijack.Response.Headers().Get("Content-Type")
			body := hijack.Response.Body()
			if strings.Contains(ct, "application/json") && len(body) > 0 && len(body) <= maxAPIResponseBytes {
				apiResponses = append(apiResponses, APIResponse{URL: reqURL, Body: body})
			}
		}
	})
	go router.Run()
	defer func() { _ = router.Stop() }()

	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		_ = proto.PageHandleJavaScriptDialog{Accept: false}.Call(page)
	})()

	p := page.Context(ctx)

	navErr := p.Navigate(targetURL)
	if navErr != nil {
		time.Sleep(1500 * time.Millisecond)
		navErr = p.Navigate(targetURL)
	}
	if navErr != nil {
		return Result{}, nil, NewScrapeError(ErrCodeNavigation, "navigation failed", navErr)
	}

	idleTimeout := 15 * time.Second
	if opts.UserTimeout > 0 {
		if half := opts.UserTimeout / 2; half < idleTimeout {
			idleTimeout = half
		}
	}
	idleCtx, idleCancel := context.WithTimeout(ctx, idleTimeout)
	_ = p.Context(idleCtx).WaitDOMStable(300*time.Millisecond, 0.1)
	idleCancel()

	if opts.WaitSelector != "" {
		selCtx, selCancel := context.WithTimeout(ctx, 10*time.Second)
		_, _ = p.Context(selCtx).Element(opts.WaitSelector)
		selCancel()
	}

	simulateHumanScroll(p)

	rawHTML, err := p.HTML()
	if err != nil {
		return Result{}, nil, NewScrapeError(ErrCodeNavigation, "extract HTML", err)
	}

	title := evalStringOrEmpty(p, `() => document.title`)
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = targetURL
	}

	return Result{
		RawHTML:    rawHTML,
		Title:      title,
		StatusCode: 200,
		FinalURL:   finalURL,
		Tier:       TierBrowser,
	}, apiResponses, nil
}

// simulateHumanScroll steps down the page in floor(totalHeight/6)-pixel
// increments (min 300px) at randomized 120-250ms intervals, then jumps
// instantly back to the top.
func simulateHumanScroll(p *rod.Page) {
	heightRes, err := p.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return
	}
	totalHeight := heightRes.Value.Int()
	step := totalHeight / 6
	if step < 300 {
		step = 300
	}

	scrolled := 0
	for scrolled < totalHeight {
		_, _ = p.Eval(fmt.Sprintf(`() => window.scrollBy(0, %d)`, step))
		scrolled += step
		interval := 120 + rand.Intn(131)
		time.Sleep(time.Duration(interval) * time.Millisecond)
	}
	_, _ = p.Eval(`() => window.scrollTo(0, 0)`)
}

func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

var assetExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".css", ".woff", ".woff2", ".ttf", ".ico"}

func isAssetURL(u string) bool {
	lower := strings.ToLower(u)
	for _, ext := range assetExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}
