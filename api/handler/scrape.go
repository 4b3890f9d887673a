package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/auspex/api/envelope"
	"github.com/use-agent/auspex/cache"
	"github.com/use-agent/auspex/cleaner"
	"github.com/use-agent/auspex/scraper"
)

// ScrapeRequest is the POST /api/v1/scrape body: a direct cascade fetch,
// no LLM involved.
type ScrapeRequest struct {
	URL          string            `json:"url" binding:"required"`
	ForceTier    scraper.ForceTier `json:"force_tier,omitempty"`
	TimeoutMs    int64             `json:"timeout_ms,omitempty"`
	ExtractMode  string            `json:"extract_mode,omitempty"`
	OutputFormat string            `json:"output_format,omitempty"`
	CSSSelector  string            `json:"css_selector,omitempty"`
	MaxAgeMs     int               `json:"max_age_ms,omitempty"`
}

// ScrapeResponse is the payload for a successful scrape.
type ScrapeResponse struct {
	Success     bool                   `json:"success"`
	URL         string                 `json:"url"`
	FinalURL    string                 `json:"finalUrl"`
	Tier        scraper.Tier           `json:"tier"`
	TiersTried  []scraper.Tier         `json:"tiersTried"`
	StatusCode  int                    `json:"statusCode"`
	Extract     *cleaner.ExtractResult `json:"extract"`
	CacheStatus string                 `json:"cacheStatus"`
	TotalMs     int64                  `json:"totalMs"`
}

// Scrape returns a handler for POST /api/v1/scrape.
//
// Orchestration flow:
//  1. Parse & validate the request.
//  2. Cache lookup (keyed on url+format+extract mode), if max_age_ms > 0.
//  3. Cascade.Fetch → winning tier's raw fetch + extracted content.
//  4. Cache store, respond.
func Scrape(cascade *scraper.Cascade, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, envelope.New(envelope.ErrCodeInvalidInput, err.Error()))
			return
		}

		outputFormat := req.OutputFormat
		if outputFormat == "" {
			outputFormat = "markdown"
		}
		cacheKey := cache.Key(req.URL, outputFormat, req.ExtractMode)
		if cc != nil && req.MaxAgeMs > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAgeMs); hit {
				writeScrapeResponse(c, cached, "hit", start)
				return
			}
		}

		sreq := scraper.Request{
			URL:          req.URL,
			ForceTier:    req.ForceTier,
			ExtractMode:  req.ExtractMode,
			OutputFormat: req.OutputFormat,
			CSSSelector:  req.CSSSelector,
		}
		if req.TimeoutMs > 0 {
			sreq.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
		}

		outcome, err := cascade.Fetch(c.Request.Context(), sreq)
		if err != nil {
			respondScrapeError(c, err)
			return
		}

		if cc != nil && req.MaxAgeMs > 0 {
			cc.Set(cacheKey, outcome)
		}
		writeScrapeResponse(c, outcome, "miss", start)
	}
}

func writeScrapeResponse(c *gin.Context, outcome *scraper.Outcome, cacheStatus string, start time.Time) {
	c.JSON(http.StatusOK, ScrapeResponse{
		Success:     true,
		URL:         outcome.Result.FinalURL,
		FinalURL:    outcome.Result.FinalURL,
		Tier:        outcome.Result.Tier,
		TiersTried:  outcome.TiersTried,
		StatusCode:  outcome.Result.StatusCode,
		Extract:     outcome.Extract,
		CacheStatus: cacheStatus,
		TotalMs:     time.Since(start).Milliseconds(),
	})
}

// respondScrapeError maps a scraper.ScrapeError to the correct HTTP status
// code and writes a structured JSON error response.
func respondScrapeError(c *gin.Context, err error) {
	scrapeErr, ok := err.(*scraper.ScrapeError)
	if !ok {
		c.JSON(http.StatusInternalServerError, envelope.New(envelope.ErrCodeInternal, err.Error()))
		return
	}
	c.JSON(mapErrCodeToStatus(scrapeErr.Code), envelope.New(string(scrapeErr.Code), scrapeErr.Error()))
}

// mapErrCodeToStatus translates a scraper error classification to an HTTP
// status code.
func mapErrCodeToStatus(code scraper.ErrCode) int {
	switch code {
	case scraper.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case scraper.ErrCodeNavigation, scraper.ErrCodeBrowser:
		return http.StatusBadGateway
	case scraper.ErrCodeAntiBot:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
