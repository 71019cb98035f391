// Package extensions provides cross-cutting add-ons for the collect
// protocol: structured logging of scope lifecycle and trace rendering.
package extensions

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	collect "github.com/collect-fn/collect-go"
)

// LoggingExtension logs source lifecycle and collection outcomes through
// zerolog.
type LoggingExtension struct {
	collect.BaseExtension
	logger zerolog.Logger
}

// NewLoggingExtension creates a new logging extension
func NewLoggingExtension(logger zerolog.Logger) *LoggingExtension {
	return &LoggingExtension{
		BaseExtension: collect.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) OnRegister(op *collect.Operation) {
	e.logger.Debug().
		Str("op", string(op.Kind)).
		Str("scope", scopeName(op.Scope)).
		Msg("source registered")
}

func (e *LoggingExtension) OnUnregister(op *collect.Operation) {
	e.logger.Debug().
		Str("op", string(op.Kind)).
		Str("scope", scopeName(op.Scope)).
		Msg("source unregistered")
}

func (e *LoggingExtension) OnCollectStart(ctx context.Context, op *collect.Operation) error {
	e.logger.Debug().
		Str("op", string(op.Kind)).
		Str("scope", scopeName(op.Scope)).
		Msg("collection starting")
	return nil
}

func (e *LoggingExtension) OnCollectEnd(ctx context.Context, op *collect.Operation, result any, err error) {
	if err != nil {
		e.logger.Error().
			Str("op", string(op.Kind)).
			Str("scope", scopeName(op.Scope)).
			Err(err).
			Msg("collection failed")
		return
	}
	e.logger.Info().
		Str("op", string(op.Kind)).
		Str("scope", scopeName(op.Scope)).
		Msg("collection settled")
}

func scopeName(s collect.AnyScope) string {
	return collect.ScopeName().GetOrDefault(s, "(unnamed)")
}

// TimingExtension logs collections slower than a threshold.
type TimingExtension struct {
	collect.BaseExtension
	logger    zerolog.Logger
	threshold time.Duration

	starts startTimes
}

// NewTimingExtension creates a timing extension; collections slower than
// threshold are logged at warn level.
func NewTimingExtension(logger zerolog.Logger, threshold time.Duration) *TimingExtension {
	return &TimingExtension{
		BaseExtension: collect.NewBaseExtension("timing"),
		logger:        logger,
		threshold:     threshold,
	}
}

func (e *TimingExtension) OnCollectStart(ctx context.Context, op *collect.Operation) error {
	e.starts.put(op, time.Now())
	return nil
}

func (e *TimingExtension) OnCollectEnd(ctx context.Context, op *collect.Operation, result any, err error) {
	start, ok := e.starts.take(op)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed < e.threshold {
		return
	}
	e.logger.Warn().
		Str("scope", scopeName(op.Scope)).
		Dur("elapsed", elapsed).
		Msg("slow collection")
}

// startTimes keys start timestamps by operation identity; a scope reuses
// the same *Operation for the start and end of one collection.
type startTimes struct {
	mu sync.Mutex
	m  map[*collect.Operation]time.Time
}

func (s *startTimes) put(op *collect.Operation, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[*collect.Operation]time.Time)
	}
	s.m[op] = t
}

func (s *startTimes) take(op *collect.Operation) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.m[op]
	if ok {
		delete(s.m, op)
	}
	return t, ok
}
