package service

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const DefaultSweepInterval = time.Minute

// HoldSweeper is what the sweeper ticks.
type HoldSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper periodically releases expired holds on one goroutine.
type Sweeper struct {
	target   HoldSweeper
	interval time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(target HoldSweeper, interval time.Duration, clk clockwork.Clock, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{target: target, interval: interval, clock: clk, logger: logger}
}

// Start launches the ticking goroutine.  Calling Start on a running
// sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	ticker := s.clock.NewTicker(s.interval)
	go s.run(ctx, ticker, s.done)
}

// Stop cancels the goroutine and waits for the current tick to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) run(ctx context.Context, ticker clockwork.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	n, err := s.target.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("sweep expired holds", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("released expired holds", zap.Int("count", n))
	}
}
