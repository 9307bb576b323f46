// Package textsync keeps a fast-changing local value in step with a slower,
// authoritative remote value.
//
// Local writes are visible immediately and reach the remote side only after a
// quiet period (trailing-edge debounce). While a write is pending the local
// value is authoritative; otherwise remote changes overwrite it.
package textsync

import (
	"log/slog"
	"sync"
	"time"

	"github.com/leapstack-labs/querycomposer/internal/clock"
)

// DefaultDelay is the quiet period between the last local write and the
// remote write.
const DefaultDelay = 500 * time.Millisecond

// RemoteWriter receives debounced values. It is fire-and-forget: failures are
// the remote side's concern.
type RemoteWriter func(value string)

// Config configures a Synchronizer.
type Config struct {
	Initial string
	Delay   time.Duration
	Clock   clock.Clock
	Write   RemoteWriter
	Logger  *slog.Logger
}

// Synchronizer bridges a local value with a remote one.
type Synchronizer struct {
	mu      sync.Mutex
	local   string
	remote  string
	pending clock.Timer
	gen     uint64

	delay  time.Duration
	clock  clock.Clock
	write  RemoteWriter
	logger *slog.Logger
}

// New creates a Synchronizer seeded from cfg.Initial.
func New(cfg Config) *Synchronizer {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Write == nil {
		cfg.Write = func(string) {}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Synchronizer{
		local:  cfg.Initial,
		remote: cfg.Initial,
		delay:  cfg.Delay,
		clock:  cfg.Clock,
		write:  cfg.Write,
		logger: cfg.Logger,
	}
}

// Read returns the current local value.
func (s *Synchronizer) Read() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// Write sets the local value and (re)starts the remote write timer. It
// reports whether the value changed; writing the current value is a no-op.
func (s *Synchronizer) Write(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == s.local {
		return false
	}
	s.local = value

	if s.pending != nil {
		s.pending.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
	return true
}

func (s *Synchronizer) fire(gen uint64) {
	s.mu.Lock()
	// A newer Write restarted the timer after this one was already due.
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	value := s.local
	s.remote = value
	s.mu.Unlock()

	s.logger.Debug("flushing local value", "length", len(value))
	s.write(value)
}

// RemoteChanged records an external change to the remote value. With no
// pending local write the local value is overwritten and true is returned.
// With a pending write the local value wins and stays untouched.
func (s *Synchronizer) RemoteChanged(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remote = value
	if s.pending != nil {
		s.logger.Debug("remote change ignored, local write pending")
		return false
	}
	if value == s.local {
		return false
	}
	s.local = value
	return true
}

// Pending reports whether a remote write is scheduled but has not fired.
func (s *Synchronizer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Remote returns the last value known to be on the remote side.
func (s *Synchronizer) Remote() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// Flush fires a pending remote write immediately. It does nothing when no
// write is pending.
func (s *Synchronizer) Flush() {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending.Stop()
	gen := s.gen
	s.mu.Unlock()
	s.fire(gen)
}

// Stop cancels a pending remote write without sending it.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
