package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a provider failure for the retry/degradation ladder.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimit
	KindTransient
	KindEmpty
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimit:
		return "rate_limit"
	case KindTransient:
		return "transient"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// RetrievalError wraps a failed platform history call. Pagination aborts on
// it and returns whatever was accumulated so far.
type RetrievalError struct {
	GroupID int64
	Err     error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("fetch history for group %d: %v", e.GroupID, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// MalformedShareContent marks an unparsable share-card payload. Rendered as
// an inline placeholder, never surfaced.
type MalformedShareContent struct {
	Err error
}

func (e *MalformedShareContent) Error() string {
	return fmt.Sprintf("malformed share content: %v", e.Err)
}

func (e *MalformedShareContent) Unwrap() error { return e.Err }

// RateLimitError signals model quota or rate exhaustion (HTTP 429 or an
// equivalent textual marker).
type RateLimitError struct {
	Status  int
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (%d): %s", e.Status, e.Message)
}

// TransientProviderError is a model-call failure worth retrying that is not
// a rate limit (network error, 5xx).
type TransientProviderError struct {
	Status  int
	Message string
	Err     error
}

func (e *TransientProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider error: %v", e.Err)
	}
	return fmt.Sprintf("provider error (%d): %s", e.Status, e.Message)
}

func (e *TransientProviderError) Unwrap() error { return e.Err }

// EmptyResponseError marks a completion the model returned empty.
type EmptyResponseError struct {
	Provider string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("%s returned an empty completion", e.Provider)
}

// RenderError wraps a failed image render. The orchestrator falls back to a
// secondary renderer; both failing is fatal to the request.
type RenderError struct {
	Renderer string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render via %s: %v", e.Renderer, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// rateLimitMarkers are textual signals some providers emit instead of a
// clean 429 status.
var rateLimitMarkers = []string{
	"rate limit",
	"429",
	"request limit exceeded",
	"too many requests",
	"quota",
}

// Classify maps a provider error to its retry class. Typed errors win;
// untyped errors are sniffed for rate-limit markers and otherwise Unknown.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return KindRateLimit
	}
	var empty *EmptyResponseError
	if errors.As(err, &empty) {
		return KindEmpty
	}
	var tr *TransientProviderError
	if errors.As(err, &tr) {
		return KindTransient
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return KindRateLimit
		}
	}
	return KindUnknown
}

// Retryable reports whether the orchestrator's bounded retry loop should
// attempt the call again.
func Retryable(kind ErrorKind) bool {
	return kind == KindRateLimit || kind == KindTransient || kind == KindEmpty
}
