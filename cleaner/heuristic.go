package cleaner

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseSelectors are removed wholesale before candidate scanning.
var noiseSelectors = []string{
	"nav", "header", "footer", "aside",
	".sidebar", "#sidebar", ".ads", ".advertisement", "[class*=cookie]", "[id*=cookie]",
	".modal", "[class*=modal]", ".social-share", "[class*=share]",
	"#comments", ".comments", "[class*=comment]",
	"[class*=newsletter]", "[id*=newsletter]",
	"script", "style", "noscript", "iframe", "svg",
}

// mainContentCandidates are tried in order; the first whose text exceeds
// minHeuristicTextLen wins.
var mainContentCandidates = []string{
	"main", "article", "[role=main]",
	"#main-content", "#content", "#main",
	".main-content", ".content", ".post-content", ".article-content",
	".entry-content", ".page-content", ".blog-post", ".blog-content",
	".post-body", ".article-body",
}

const minHeuristicTextLen = 150

// HeuristicResult is the heuristic fallback's output shape, matching the
// Readability-style extractor contract.
type HeuristicResult struct {
	HTML string
	Text string
}

// HeuristicExtract removes a fixed noise-selector set, then returns the
// first main-content candidate whose text exceeds the minimum length. It is
// the fallback path when Readability-style extraction is rejected.
func HeuristicExtract(rawHTML string) (HeuristicResult, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return HeuristicResult{}, false
	}

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	for _, sel := range mainContentCandidates {
		sel := doc.Find(sel).First()
		if sel.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(sel.Text())
		if len(text) <= minHeuristicTextLen {
			continue
		}
		sel.Find("*").Each(func(_ int, s *goquery.Selection) {
			s.RemoveAttr("style")
			s.RemoveAttr("onclick")
			s.RemoveAttr("class")
		})
		htmlOut, err := sel.Html()
		if err != nil {
			continue
		}
		return HeuristicResult{HTML: htmlOut, Text: text}, true
	}

	return HeuristicResult{}, false
}

var challengePhrases = []string{
	"just a moment", "checking your browser", "ray id", "ddos-guard",
	"incapsula", "imperva", "datadome", "captcha", "enable javascript",
	"access denied", "bot detected", "verify you are a human", "are you a robot",
}

var stripForContentCheckRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>|<style[^>]*>.*?</style\s*>|<noscript[^>]*>.*?</noscript\s*>|<iframe[^>]*>.*?</iframe\s*>|<svg[^>]*>.*?</svg\s*>|<(script|style|noscript|iframe|svg|img)[^>]*/?>`)
var tagRe = regexp.MustCompile(`(?s)<[^>]+>`)
var whitespaceRe = regexp.MustCompile(`\s+`)

// hasEnoughContent reports whether rawHTML, after stripping
// script/style/noscript/iframe/svg/img and collapsing whitespace, looks like
// a real page rather than an anti-bot challenge or an empty shell.
func hasEnoughContent(rawHTML string) bool {
	stripped := stripForContentCheckRe.ReplaceAllString(rawHTML, " ")
	text := tagRe.ReplaceAllString(stripped, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if len(text) < 200 {
		return false
	}
	if len(text) < 2000 {
		lower := strings.ToLower(text)
		for _, phrase := range challengePhrases {
			if strings.Contains(lower, phrase) {
				return false
			}
		}
	}
	return true
}
