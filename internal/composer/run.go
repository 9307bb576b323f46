package composer

import (
	"context"

	"github.com/leapstack-labs/querycomposer/internal/clock"
)

// Run resolves the text to execute and submits it to the current engine.
//
// It first waits out the throttle window. Any Run issued while another is
// waiting or submitting returns ErrRunInFlight without side effects. On
// success the returned handle becomes the session's execution.
func (s *Session) Run(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Debug("run dropped, another run in flight")
		return "", ErrRunInFlight
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if err := clock.Sleep(ctx, s.clock, s.throttle); err != nil {
		return "", err
	}

	s.mu.Lock()
	text := s.buffer.Read()
	sel := s.selection
	engineID := s.effectiveEngineLocked()
	s.mu.Unlock()

	if engineID == "" {
		return "", ErrNoEngine
	}

	query := s.resolver.Resolve(text, sel)
	s.logger.Debug("submitting query", "engine", engineID, "selection", sel != nil, "length", len(query))

	handle, err := s.executor.Submit(ctx, query, engineID)
	if err != nil {
		subErr := &SubmitError{EngineID: engineID, Err: err}
		s.logger.Error("query submission failed", "engine", engineID, "error", err)
		s.notifier.Error(subErr.Error())
		return "", subErr
	}

	s.mu.Lock()
	s.executionID = handle
	s.mu.Unlock()

	s.persist("execution", func(ctx context.Context) error {
		return s.store.SetExecution(ctx, s.key, handle)
	})
	s.logger.Info("query submitted", "engine", engineID, "execution", handle)
	return handle, nil
}
