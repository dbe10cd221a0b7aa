package app

import (
	"errors"
	"fmt"

	"gopherai-insect/internal/pkg/resilience"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrAPIKeyNotConfigured    = errors.New("gemini api key is not configured")
	ErrGeneratorNotConfigured = errors.New("image generation token is not configured")
	ErrVoiceNotConfigured     = errors.New("text-to-speech api key is not configured")
	ErrUpstreamUnavailable    = errors.New("upstream service temporarily unavailable")
)

// upstreamError wraps a failed external call, surfacing an open circuit as
// ErrUpstreamUnavailable.
func upstreamError(operation string, err error) error {
	if resilience.IsCircuitOpen(err) {
		return fmt.Errorf("%s: %w: %v", operation, ErrUpstreamUnavailable, err)
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}
