// Package snapshot builds a bounded, token-economical view of a page —
// either from raw HTML (static mode) or a live browser page (live mode) —
// for consumption by the prompt builder.
package snapshot

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const (
	maxTitleLen = 200
	maxTextLen  = 3500
	maxLinks    = 25
	maxLinkText = 80
	maxForms    = 5
	maxInputs   = 10
	maxAXYAML   = 3000
	maxURLDisplay = 150
)

// Link is one anchor surviving the noise filter.
type Link struct {
	Text  string `json:"text" yaml:"text"`
	Href  string `json:"href" yaml:"href"`
	Index int    `json:"index" yaml:"index"`
}

// FormInput is one form field worth surfacing to the model.
type FormInput struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Type        string `json:"type" yaml:"type"`
	Placeholder string `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Selector    string `json:"selector" yaml:"selector"`
}

// Form is one <form> element with a bounded set of describable inputs.
type Form struct {
	Inputs []FormInput `json:"inputs" yaml:"inputs"`
}

// PageSnapshot is the bounded page view shared by static and live modes.
type PageSnapshot struct {
	URL               string `json:"url"`
	Title             string `json:"title"`
	Text              string `json:"text"`
	Links             []Link `json:"links"`
	Forms             []Form `json:"forms"`
	AccessibilityYAML string `json:"accessibilityYaml,omitempty"`
	ScreenshotBase64  string `json:"screenshotBase64,omitempty"`
}

var socialBlocklist = map[string]bool{
	"twitter.com": true, "x.com": true, "facebook.com": true, "instagram.com": true,
	"linkedin.com": true, "youtube.com": true, "tiktok.com": true, "t.me": true,
	"wa.me": true, "discord.gg": true, "github.com": true,
}

var assetExtRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|ico|webp|css|js|woff2?|ttf|eot)(\?.*)?$`)

// isNoiseLink reports whether a resolved href + visible text should be
// dropped from the snapshot's link list.
func isNoiseLink(href, text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || trimmed == "#" {
		return true
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "#") ||
		strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") {
		return true
	}
	if assetExtRe.MatchString(trimmed) {
		return true
	}
	host := hostOf(trimmed)
	host = strings.TrimPrefix(host, "www.")
	if socialBlocklist[host] {
		return true
	}
	return false
}

func hostOf(raw string) string {
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	return strings.ToLower(s)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func selectorFor(id, name, tag string) string {
	if id != "" {
		return "#" + id
	}
	if name != "" {
		return fmt.Sprintf(`%s[name="%s"]`, tag, name)
	}
	return tag
}

// DisplayURL truncates a long URL to origin+path(+?query), per C3's link
// formatting rule.
func DisplayURL(raw string) string {
	if len(raw) <= maxURLDisplay {
		return raw
	}
	schemeIdx := strings.Index(raw, "://")
	if schemeIdx < 0 {
		return truncate(raw, maxURLDisplay)
	}
	rest := raw[schemeIdx+3:]
	pathStart := strings.IndexAny(rest, "/?#")
	origin := raw[:schemeIdx+3]
	var hostPart, tail string
	if pathStart < 0 {
		hostPart = rest
	} else {
		hostPart = rest[:pathStart]
		tail = rest[pathStart:]
	}
	qIdx := strings.Index(tail, "?")
	path := tail
	query := ""
	if qIdx >= 0 {
		path = tail[:qIdx]
		query = "?..."
	}
	return origin + hostPart + path + query
}

// axSummary recurses an HTML node tree and emits a YAML-ish accessibility
// summary rooted at <body>. This is a lightweight, dependency-free walk over
// the already-parsed tree used by FromHTML; for live pages,
// CaptureAccessibilityYAML performs a similar walk in-page via JS.
func axSummary(n *html.Node, depth int, out *strings.Builder, budget *int) {
	if *budget <= 0 || n == nil {
		return
	}
	if n.Type == html.ElementNode {
		role := axRole(n)
		name := strings.TrimSpace(axName(n))
		if role != "" {
			line := strings.Repeat("  ", depth) + "- role: " + role
			if name != "" {
				line += "\n" + strings.Repeat("  ", depth) + `  name: "` + strings.ReplaceAll(name, `"`, `'`) + `"`
			}
			line += "\n"
			if len(line) > *budget {
				*budget = 0
				return
			}
			out.WriteString(line)
			*budget -= len(line)
			depth++
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		axSummary(c, depth, out, budget)
		if *budget <= 0 {
			return
		}
	}
}

var implicitRoles = map[string]string{
	"a": "link", "button": "button", "input": "textbox", "textarea": "textbox",
	"select": "combobox", "nav": "navigation", "header": "banner", "footer": "contentinfo",
	"main": "main", "form": "form", "h1": "heading", "h2": "heading", "h3": "heading",
}

func axRole(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "role" {
			return a.Val
		}
	}
	return implicitRoles[n.Data]
}

func axName(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "aria-label" {
			return a.Val
		}
	}
	if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
		return n.FirstChild.Data
	}
	return ""
}
