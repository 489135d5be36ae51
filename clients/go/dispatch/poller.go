package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Poller is the backstop against the at-most-once delivery model: events
// broadcast while the socket is down are lost permanently, so selected
// queries are re-fetched on a fixed interval regardless of socket state.
// This runs alongside the push path deliberately; removing either half
// weakens convergence.
type Poller struct {
	interval time.Duration
	refetch  func(ctx context.Context)

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewPoller creates a Poller calling refetch every interval once started.
func NewPoller(interval time.Duration, refetch func(ctx context.Context)) *Poller {
	if interval <= 0 {
		panic("interval must be positive for Poller")
	}
	if refetch == nil {
		panic("refetch cannot be nil for Poller")
	}
	return &Poller{interval: interval, refetch: refetch}
}

// Start begins polling. A no-op if already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		logrus.WithField("interval", p.interval).Debug("dispatch client: poll backstop started")
		for {
			select {
			case <-ctx.Done():
				logrus.Debug("dispatch client: poll backstop stopped")
				return
			case <-ticker.C:
				p.refetch(ctx)
			}
		}
	}()
}

// Stop halts polling. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
