package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const stealthDefaultTimeout = 30 * time.Second

// stealthTier is tier 2: the same Chrome TLS fingerprint as tier 1, but with
// a full realistic browser header set and a short retry budget on the GET
// itself (distinct from cascade-level tier escalation).
type stealthTier struct {
	proxy string
}

func newStealthTier(proxy string) *stealthTier {
	return &stealthTier{proxy: proxy}
}

func (t *stealthTier) fetch(ctx context.Context, targetURL string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, stealthDefaultTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		res, err := t.fetchOnce(ctx, targetURL)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if se, ok := err.(*ScrapeError); ok && se.Code == ErrCodeAntiBot {
			// Retrying won't help against a challenge page.
			return res, err
		}
		select {
		case <-ctx.Done():
			return Result{}, NewScrapeError(ErrCodeTimeout, "stealth tier deadline exceeded", ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
	}
	return Result{}, lastErr
}

func (t *stealthTier) fetchOnce(ctx context.Context, targetURL string) (Result, error) {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialTLSChrome(ctx, network, addr, t.proxy)
		},
	}
	if t.proxy != "" {
		if proxyURL, err := url.Parse(t.proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	client := &http.Client{Transport: transport}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return Result{}, NewScrapeError(ErrCodeNavigation, "build request", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Sec-Ch-Ua", `"Chromium";v="131", "Not_A Brand";v="24"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)

	resp, err := client.Do(req)
	if err != nil {
		return Result{}, NewScrapeError(ErrCodeNavigation, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 403 || resp.StatusCode == 429 || resp.StatusCode == 503 {
		return Result{StatusCode: resp.StatusCode}, NewScrapeError(ErrCodeAntiBot,
			fmt.Sprintf("anti-bot response (HTTP %d)", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return Result{StatusCode: resp.StatusCode}, NewScrapeError(ErrCodeHTTP,
			fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return Result{StatusCode: resp.StatusCode}, NewScrapeError(ErrCodeBadContent,
			fmt.Sprintf("unsupported content-type %q", contentType), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, NewScrapeError(ErrCodeNavigation, "read body", err)
	}

	finalURL := targetURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return Result{
		RawHTML:    string(body),
		Title:      extractTitle(body),
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
		Tier:       TierStealth,
	}, nil
}
