// Package sweeper expires pending invites whose deadline has passed.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Expirer expires up to limit overdue invites and reports how many it moved.
type Expirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// Sweeper runs Expirer on a fixed interval.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	batch    int
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

func New(expirer Expirer, interval time.Duration, batch int, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "sweeper").Logger()
	}
	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		batch:    batch,
		logger:   l,
	}
}

// Start blocks until ctx is done or Stop is called. A stopped sweeper can be
// started again.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.running = true
	s.stopCh = stop
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.stopCh == stop {
			s.running = false
		}
		s.mu.Unlock()
	}()

	s.logger.Info().Dur("interval", s.interval).Int("batch", s.batch).Msg("Invite sweeper started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Invite sweeper stopped by context")
			return
		case <-stop:
			s.logger.Info().Msg("Invite sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop ends a running Start loop. Calling it twice is harmless.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if s.running {
		s.running = false
		close(s.stopCh)
	}
	s.mu.Unlock()
}

// IsRunning reports whether Start is looping.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow sweeps once, draining full batches until fewer than batch invites
// were expired.
func (s *Sweeper) RunNow(ctx context.Context) int {
	return s.sweep(ctx)
}

func (s *Sweeper) sweep(ctx context.Context) int {
	start := time.Now()
	total := 0
	for {
		if ctx.Err() != nil {
			s.logger.Info().Int("expired", total).Msg("Invite sweep interrupted")
			return total
		}
		n, err := s.expirer.ExpireDue(ctx, s.batch)
		total += n
		if err != nil {
			s.logger.Error().Err(err).Int("expired", total).Msg("Invite sweep failed")
			return total
		}
		if n < s.batch {
			break
		}
	}
	if total > 0 {
		s.logger.Info().Int("expired", total).Dur("duration", time.Since(start)).Msg("Expired overdue invites")
	}
	return total
}
