package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"xpdash/internal/log"
)

// SweeperConfig holds configuration for the periodic pending sweep.
type SweeperConfig struct {
	// PollInterval is how often pending snapshots are checked (default: 30s)
	PollInterval time.Duration
}

func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{PollInterval: 30 * time.Second}
}

// Sweeper runs ProcessPending on a ticker until stopped.
type Sweeper struct {
	process func(context.Context) (int, error)
	config  SweeperConfig
	logger  *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(w *ExportWorker, config SweeperConfig, logger *log.Logger) *Sweeper {
	s := &Sweeper{config: config, logger: logger.WithComponent(log.ComponentWorker)}
	if w != nil {
		s.process = w.ProcessPending
	}
	return s
}

// Start begins the sweep loop. It returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sweeper is already running")
	}
	if s.process == nil {
		return errors.New("sweeper has no export worker")
	}
	if s.config.PollInterval <= 0 {
		s.config.PollInterval = DefaultSweeperConfig().PollInterval
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runLoop(ctx, s.stopCh, s.doneCh)

	s.logger.InfoContext(ctx, "Pending sweep started", "poll_interval", s.config.PollInterval)
	return nil
}

// Stop signals the loop and waits for it, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Pending sweep stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.process(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "Pending sweep failed", log.FieldError, err)
			}
		}
	}
}
