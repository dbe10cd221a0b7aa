// Package resilience wraps outbound calls with bounded retries and a
// per-operation circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"gopherai-insect/internal/pkg/logger"
)

type ErrorClassification struct {
	Retryable     bool
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// Observer is told the outcome of every Execute call.
type Observer func(operation string, err error, elapsed time.Duration)

type Executor struct {
	cfg      Config
	log      *zap.Logger
	observer Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

func NewExecutor(cfg Config, log *zap.Logger) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		log:      logger.OrNop(log),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

func (e *Executor) SetObserver(o Observer) {
	e.observer = o
}

func (e *Executor) Execute(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	if classifier == nil {
		classifier = defaultClassifier
	}

	start := time.Now()
	var err error
	if e.cfg.BreakerEnabled {
		breaker := e.circuitBreaker(op, classifier)
		_, err = breaker.Execute(func() (any, error) {
			return nil, e.executeWithRetry(ctx, op, fn, classifier)
		})
	} else {
		err = e.executeWithRetry(ctx, op, fn, classifier)
	}
	if e.observer != nil {
		e.observer(op, err, time.Since(start))
	}
	return err
}

func (e *Executor) executeWithRetry(
	ctx context.Context,
	operation string,
	fn func(context.Context) error,
	classifier ErrorClassifier,
) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.cfg.RetryInitialBackoff
	exp.MaxInterval = e.cfg.RetryMaxBackoff
	exp.Multiplier = e.cfg.RetryMultiplier
	exp.RandomizationFactor = 0.2
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(
		backoff.WithMaxRetries(exp, uint64(e.cfg.RetryMaxAttempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !classifier(err).Retryable {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		e.log.Warn("retry_attempt",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.cfg.RetryMaxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
	})
}

func (e *Executor) circuitBreaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerHalfOpenMaxCalls,
		Timeout:     e.cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			e.log.Warn("circuit_breaker_state_change",
				zap.String("operation", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func defaultClassifier(error) ErrorClassification {
	return ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
