// Package llm implements the one-shot decision client (C6): a single chat
// completion call with retry/backoff, JSON-mode, and optional vision
// attachment, plus the error classification that decides whether a failure
// is worth retrying.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Usage is the cumulative prompt/completion/total token triple for a run.
// Monotonic: callers only ever add to it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CallCount        int
}

// Add accumulates one call's usage into the running total.
func (u *Usage) Add(prompt, completion, total int) {
	u.PromptTokens += prompt
	u.CompletionTokens += completion
	u.TotalTokens += total
	u.CallCount++
}

// Params carries per-call LLM configuration.
type Params struct {
	APIKey           string
	Model            string
	BaseURL          string
	Temperature      float64
	MaxOutputTokens  int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// Decision is the parsed JSON object the model returned for one decide() call.
type Decision struct {
	Data  json.RawMessage
	Usage Usage
}

// Client is a lightweight OpenAI-compatible chat completion client.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a Client. Pass nil to use a fresh zero-value http.Client.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

// TransientError marks a failure the caller should retry.
type TransientError struct {
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string { return fmt.Sprintf("llm: transient failure: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that must propagate immediately.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("llm: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

type chatRequest struct {
	Model            string          `json:"model"`
	Messages         []chatMessage   `json:"messages"`
	Temperature      float64         `json:"temperature"`
	MaxTokens        int             `json:"max_completion_tokens,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	ResponseFormat   *responseFormat `json:"response_format,omitempty"`
}

// chatMessage's Content is either a plain string or an ordered list of
// content parts (text + image_url), hence json.RawMessage.
type chatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

var retryDelays = []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond, 4000 * time.Millisecond}

var transientNetworkErrRe = regexp.MustCompile(`(?i)econnreset|etimedout|socket hang up|fetch failed|connection reset|i/o timeout`)

// Decide sends systemPrompt + userMessage to the LLM endpoint and returns the
// parsed JSON decision. If screenshotBase64JPEG is non-empty, the user
// message becomes a [text, image] content list and JSON response-format is
// omitted (providers widely mishandle JSON mode + vision together).
// Transient failures (HTTP 429/408/5xx or network resets) are retried up to
// 3 times with 1s/2s/4s backoff; all other failures propagate immediately.
func (c *Client) Decide(ctx context.Context, systemPrompt, userMessage string, screenshotBase64JPEG string, params Params) (*Decision, error) {
	var lastErr error
	for attempt := 0; attempt <= len(retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelays[attempt-1]):
			}
		}

		decision, err := c.decideOnce(ctx, systemPrompt, userMessage, screenshotBase64JPEG, params)
		if err == nil {
			return decision, nil
		}

		if _, ok := err.(*TransientError); !ok {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) decideOnce(ctx context.Context, systemPrompt, userMessage string, screenshotBase64JPEG string, params Params) (*Decision, error) {
	hasVision := screenshotBase64JPEG != ""

	var userContent json.RawMessage
	var err error
	if hasVision {
		parts := []contentPart{
			{Type: "text", Text: userMessage},
			{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + screenshotBase64JPEG}},
		}
		userContent, err = json.Marshal(parts)
	} else {
		userContent, err = json.Marshal(userMessage)
	}
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("marshal user content: %w", err)}
	}

	sysContent, err := json.Marshal(systemPrompt)
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("marshal system content: %w", err)}
	}

	reqBody := chatRequest{
		Model: params.Model,
		Messages: []chatMessage{
			{Role: "system", Content: sysContent},
			{Role: "user", Content: userContent},
		},
		Temperature:      params.Temperature,
		MaxTokens:        params.MaxOutputTokens,
		TopP:             params.TopP,
		FrequencyPenalty: params.FrequencyPenalty,
		PresencePenalty:  params.PresencePenalty,
	}
	if !hasVision {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	endpoint := strings.TrimRight(params.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+params.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if transientNetworkErrRe.MatchString(err.Error()) {
			return nil, &TransientError{Err: err}
		}
		return nil, &FatalError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FatalError{Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatusError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &FatalError{Err: fmt.Errorf("parse response: %w", err)}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &FatalError{Err: fmt.Errorf("response contained no choices")}
	}

	choice := chatResp.Choices[0]
	if choice.FinishReason == "length" {
		return nil, &FatalError{Err: fmt.Errorf("response truncated (finish_reason=length); raise max_completion_tokens")}
	}
	content := strings.TrimSpace(choice.Message.Content)
	if content == "" {
		return nil, &FatalError{Err: fmt.Errorf("response content was empty")}
	}
	if !json.Valid([]byte(content)) {
		return nil, &FatalError{Err: fmt.Errorf("response was not valid JSON")}
	}

	return &Decision{
		Data: json.RawMessage(content),
		Usage: Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
			CallCount:        1,
		},
	}, nil
}

func classifyStatusError(statusCode int, body []byte) error {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout || statusCode >= 500:
		return &TransientError{StatusCode: statusCode, Err: fmt.Errorf("%s (HTTP %d)", msg, statusCode)}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &FatalError{Err: fmt.Errorf("authentication failed: %s (HTTP %d)", msg, statusCode)}
	default:
		return &FatalError{Err: fmt.Errorf("%s (HTTP %d)", msg, statusCode)}
	}
}
