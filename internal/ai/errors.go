package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"gopherai-insect/internal/pkg/resilience"
)

const maxErrorBody = 512

var ErrEmptyResponse = errors.New("empty model response")

// HTTPStatusError is returned when an upstream API answers with a non-2xx status.
type HTTPStatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s response status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s response status %d: %s", e.Service, e.StatusCode, body)
}

func newHTTPStatusError(service string, status int, raw []byte) *HTTPStatusError {
	body := string(raw)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return &HTTPStatusError{Service: service, StatusCode: status, Body: body}
}

// ClassifyError decides whether an upstream failure is worth retrying and
// whether it should count against the circuit breaker.
func ClassifyError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
