// Package reconcile keeps client-side snapshots of server state fresh. A
// Poller drives periodic reads; the caches decide, by sequence number and
// logical version, which responses may replace what is shown.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sequencer hands out increasing sequence numbers for one view. Every read
// and every mutation takes a number when it is issued, not when it returns.
type Sequencer struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// Next issues a new sequence number.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// admit reports whether a read issued at seq is newer than anything applied
// and, if so, records it.
func (s *Sequencer) admit(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		return false
	}
	s.applied = seq
	return true
}

// force records a mutation issued at seq; it never lowers the mark.
func (s *Sequencer) force(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.applied {
		s.applied = seq
	}
}

// Poller runs one tick at a time on a fixed interval until its context ends.
// A tick that outlasts the interval delays the next one rather than
// overlapping with it.
type Poller struct {
	interval time.Duration
	tick     func(ctx context.Context) error
	log      zerolog.Logger
	onError  func(error)
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithErrorHandler receives tick errors. The next tick retries regardless.
func WithErrorHandler(fn func(error)) PollerOption {
	return func(p *Poller) { p.onError = fn }
}

// WithPollerLogger sets the logger.
func WithPollerLogger(l zerolog.Logger) PollerOption {
	return func(p *Poller) { p.log = l }
}

// NewPoller builds a poller calling tick every interval.
func NewPoller(interval time.Duration, tick func(ctx context.Context) error, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	p := &Poller{interval: interval, tick: tick, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run ticks immediately, then on every interval, and returns ctx.Err() once
// ctx is done. Cancelling ctx is how a view stops its poll.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		if err := p.tick(ctx); err != nil && ctx.Err() == nil {
			p.log.Debug().Err(err).Msg("poll tick failed")
			if p.onError != nil {
				p.onError(err)
			}
		}
		t.Reset(p.interval)
	}
}
