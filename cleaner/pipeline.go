package cleaner

import (
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// Cleaner orchestrates the content-extraction pipeline (C4):
//
//	Stage 1 (extraction): readability, with a heuristic DOM-pass fallback
//	Stage 2 (conversion):  clean HTML -> Markdown (or html/text pass-through)
//
// The converter is created once and reused across all requests (goroutine-safe).
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// CleanOptions carries optional content-filtering parameters for the pipeline.
type CleanOptions struct {
	IncludeTags []string
	ExcludeTags []string
	CSSSelector string
}

// Clean runs the full extraction pipeline and returns an ExtractResult.
//
// Flow:
//  1. Estimate original tokens from raw HTML.
//  1b. Apply CSS selector scoping and include/exclude tag filters, if given.
//  2. Stage 1: extract main content (readability, pruning, heuristic, or raw,
//     per extractMode).
//  3. Stage 2: convert to the requested output format.
//  4. Estimate cleaned tokens and compute savings.
//  5. Assemble and return the result, including SSR data detected on the
//     unfiltered raw HTML.
func (c *Cleaner) Clean(rawHTML string, sourceURL string, format string, extractMode string, opts ...CleanOptions) (*ExtractResult, error) {
	originalTokens := EstimateTokens(rawHTML)
	ssrData := DetectSSRData(rawHTML)

	scoped := rawHTML
	if len(opts) > 0 {
		o := opts[0]
		if o.CSSSelector != "" {
			if s, err := ApplyCSSSelector(scoped, o.CSSSelector); err == nil {
				scoped = s
			}
		}
		if len(o.IncludeTags) > 0 || len(o.ExcludeTags) > 0 {
			scoped = FilterContent(scoped, o.IncludeTags, o.ExcludeTags)
		}
	}

	article := extractByMode(scoped, sourceURL, extractMode)

	var content string
	var err error
	switch format {
	case "html":
		content = article.Content
	case "text":
		content = article.TextContent
	case "markdown_citations":
		content, err = ToMarkdown(c.mdConverter, article.Content, sourceURL)
		if err != nil {
			return nil, &ExtractError{Stage: "markdown conversion", Err: err}
		}
		content = ConvertToCitations(content)
	default: // "markdown", "" and anything unrecognized default to markdown.
		content, err = ToMarkdown(c.mdConverter, article.Content, sourceURL)
		if err != nil {
			return nil, &ExtractError{Stage: "markdown conversion", Err: err}
		}
	}

	cleanedTokens := EstimateTokens(content)
	savingsPercent := 0.0
	if originalTokens > 0 {
		savingsPercent = float64(originalTokens-cleanedTokens) / float64(originalTokens) * 100
		savingsPercent = math.Round(savingsPercent*100) / 100
	}

	title := article.Title
	if title == "" {
		title = ExtractTitle(rawHTML)
	}
	description := article.Excerpt
	if description == "" {
		description = ExtractDescription(rawHTML)
	}

	return &ExtractResult{
		Content: content,
		Metadata: Metadata{
			Title:       title,
			Description: description,
			SiteName:    article.SiteName,
			Author:      article.Byline,
			Language:    article.Language,
			SourceURL:   sourceURL,
		},
		Links:      ExtractLinks(rawHTML, sourceURL),
		Images:     ExtractImages(rawHTML, sourceURL),
		OGMetadata: ExtractOGMetadata(rawHTML),
		Tokens: TokenInfo{
			OriginalEstimate: originalTokens,
			CleanedEstimate:  cleanedTokens,
			SavingsPercent:   savingsPercent,
		},
		SSRData: ssrData,
	}, nil
}

func extractByMode(rawHTML, sourceURL, extractMode string) readability.Article {
	switch extractMode {
	case "raw":
		return fallbackArticle(rawHTML)
	case "pruning":
		return prunedArticle(rawHTML, sourceURL)
	case "auto":
		return autoExtract(rawHTML, sourceURL)
	default: // "readability" (default)
		article, ok := ExtractContent(rawHTML, sourceURL)
		if ok {
			return article
		}
		if heuristic, ok := HeuristicExtract(rawHTML); ok {
			return readability.Article{
				Content:     heuristic.HTML,
				TextContent: heuristic.Text,
			}
		}
		return article
	}
}

func prunedArticle(rawHTML, sourceURL string) readability.Article {
	prunedHTML, err := PruneContent(rawHTML, sourceURL)
	if err != nil {
		slog.Warn("pruning: extraction failed, falling back to raw HTML",
			"url", sourceURL, "error", err,
		)
		prunedHTML = rawHTML
	}
	// Metadata comes from readability on the original HTML so title/author/etc
	// survive even though the body content is pruning's.
	metaArticle, _ := ExtractContent(rawHTML, sourceURL)
	return readability.Article{
		Title:       metaArticle.Title,
		Byline:      metaArticle.Byline,
		Excerpt:     metaArticle.Excerpt,
		SiteName:    metaArticle.SiteName,
		Language:    metaArticle.Language,
		Content:     prunedHTML,
		TextContent: stripTags(prunedHTML),
	}
}

// autoExtract runs both Readability and Pruning concurrently, then picks the
// result that extracted more meaningful text content.
func autoExtract(rawHTML, sourceURL string) readability.Article {
	var (
		readabilityArticle readability.Article
		prunedHTML         string
		pruneErr           error
	)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		readabilityArticle, _ = ExtractContent(rawHTML, sourceURL)
	}()

	go func() {
		defer wg.Done()
		prunedHTML, pruneErr = PruneContent(rawHTML, sourceURL)
	}()

	wg.Wait()

	if pruneErr != nil {
		slog.Warn("auto: pruning failed, using readability result",
			"url", sourceURL, "error", pruneErr,
		)
		return readabilityArticle
	}

	prunedText := stripTags(prunedHTML)
	readabilityText := strings.TrimSpace(readabilityArticle.TextContent)

	// Pick the result with more extracted text. When both are substantial
	// but one is >10x the other, prefer the shorter — it's less likely to
	// be noise.
	useReadability := len(readabilityText) >= len(prunedText)

	if useReadability && len(prunedText) > minContentLength {
		if len(readabilityText) > 10*len(prunedText) {
			useReadability = false
		}
	} else if !useReadability && len(readabilityText) > minContentLength {
		if len(prunedText) > 10*len(readabilityText) {
			useReadability = true
		}
	}

	if useReadability {
		return readabilityArticle
	}

	return readability.Article{
		Title:       readabilityArticle.Title,
		Byline:      readabilityArticle.Byline,
		Excerpt:     readabilityArticle.Excerpt,
		SiteName:    readabilityArticle.SiteName,
		Language:    readabilityArticle.Language,
		Content:     prunedHTML,
		TextContent: prunedText,
	}
}

// stripTags is a simple helper that extracts visible text from an HTML
// fragment by parsing it with goquery. Returns trimmed plain text.
func stripTags(htmlStr string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}
	return strings.TrimSpace(doc.Text())
}
