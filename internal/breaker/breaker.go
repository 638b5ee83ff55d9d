// Package breaker guards calls to flaky dependencies (the primary cache store and
// the Gemini API) with a shared circuit breaker policy.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/charlesng35/recipekeeper/internal/monitoring"
	"github.com/charlesng35/recipekeeper/pkg/logger"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker open")

// Settings tune a Breaker. Zero values fall back to the defaults below.
type Settings struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval resets the closed-state counters.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration
	// MinRequests must be observed before the failure ratio is evaluated.
	MinRequests uint32
	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
	// IsSuccessful classifies errors that should not count as failures,
	// such as a model answering "not a recipe".
	IsSuccessful func(err error) bool
}

const (
	defaultMaxRequests  = 3
	defaultInterval     = time.Minute
	defaultTimeout      = 2 * time.Minute
	defaultMinRequests  = 10
	defaultFailureRatio = 0.6
)

// Breaker is a typed wrapper around gobreaker that reports state to monitoring.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker[any]
	log  *zap.Logger
}

// New constructs a breaker from settings.
func New(settings Settings) *Breaker {
	if settings.Name == "" {
		settings.Name = "default"
	}
	if settings.MaxRequests == 0 {
		settings.MaxRequests = defaultMaxRequests
	}
	if settings.Interval <= 0 {
		settings.Interval = defaultInterval
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultTimeout
	}
	if settings.MinRequests == 0 {
		settings.MinRequests = defaultMinRequests
	}
	if settings.FailureRatio <= 0 || settings.FailureRatio > 1 {
		settings.FailureRatio = defaultFailureRatio
	}

	log := logger.WithModule("breaker").With(zap.String("breaker", settings.Name))
	b := &Breaker{name: settings.Name, log: log}

	gs := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= settings.FailureRatio {
				log.Warn("opening circuit",
					zap.Uint32("failures", counts.TotalFailures),
					zap.Float64("failure_rate", ratio*100))
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("circuit state transition",
				zap.String("from", StateName(from)),
				zap.String("to", StateName(to)))
			monitoring.RecordBreakerState(name, StateName(from), StateName(to))
		},
	}
	if settings.IsSuccessful != nil {
		gs.IsSuccessful = settings.IsSuccessful
	}

	b.cb = gobreaker.NewCircuitBreaker[any](gs)
	monitoring.RecordBreakerState(settings.Name, "", StateName(gobreaker.StateClosed))
	return b
}

// Name returns the breaker's name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state as "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return StateName(b.cb.State())
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// Run executes fn through the breaker. Rejections are reported as ErrOpen.
func (b *Breaker) Run(fn func() error) error {
	_, err := Execute(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Execute runs fn through the breaker and returns its typed result.
func Execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.log.Debug("request rejected", zap.Error(err))
			return zero, ErrOpen
		}
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, nil
	}
	return typed, nil
}

// StateName converts a gobreaker state into a metrics label.
func StateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
