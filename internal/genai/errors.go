package genai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
)

// ErrNoChoicesReturned indicates the API responded without any completion choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// FailureKind classifies a completion failure for logging and fallback routing.
type FailureKind string

const (
	FailureAuth      FailureKind = "auth"
	FailureQuota     FailureKind = "quota"
	FailureRateLimit FailureKind = "rate_limit"
	FailureTimeout   FailureKind = "timeout"
	FailureMalformed FailureKind = "malformed"
	FailureUnknown   FailureKind = "unknown"
)

// Classify maps a completion error to a failure kind. Every kind routes to the
// same fallback path; the kind only drives log detail.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	if errors.Is(err, ErrNoChoicesReturned) {
		return FailureMalformed
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return FailureAuth
		case 429:
			msg := strings.ToLower(apiErr.Error())
			if strings.Contains(msg, "quota") || strings.Contains(msg, "billing") {
				return FailureQuota
			}
			return FailureRateLimit
		}
	}
	return FailureUnknown
}
