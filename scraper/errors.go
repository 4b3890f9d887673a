package scraper

import "fmt"

// ErrCode classifies a scrape failure so callers (API handlers, the cascade
// orchestrator) can decide whether to escalate, retry, or surface a status
// code.
type ErrCode string

const (
	ErrCodeNavigation ErrCode = "navigation"
	ErrCodeTimeout    ErrCode = "timeout"
	ErrCodeAntiBot    ErrCode = "anti_bot"
	ErrCodeHTTP       ErrCode = "http"
	ErrCodeBadContent ErrCode = "bad_content"
	ErrCodeBrowser    ErrCode = "browser"
)

// ScrapeError is a typed, wrapped error carrying the classification and the
// HTTP status observed (0 if none).
type ScrapeError struct {
	Code       ErrCode
	StatusCode int
	Message    string
	Err        error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scraper: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("scraper: %s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error { return e.Err }

// NewScrapeError builds a ScrapeError.
func NewScrapeError(code ErrCode, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}
