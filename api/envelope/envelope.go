// Package envelope holds the JSON response shapes shared by the api
// package, its handlers, and its middleware — split into its own package
// so middleware can build error bodies without importing api (which in
// turn imports middleware).
package envelope

// Error codes surfaced to API clients.
const (
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeNotFound     = "not_found"
	ErrCodeInternal     = "internal"
	ErrCodeUpstream     = "upstream"
)

// Detail is the structured error body shared by every non-2xx response.
type Detail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the JSON envelope for any failed request.
type Error struct {
	Success bool    `json:"success"`
	Error   *Detail `json:"error"`
}

// New builds an Error envelope for the given code and message.
func New(code, message string) Error {
	return Error{Success: false, Error: &Detail{Code: code, Message: message}}
}
