package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cryptobuddy/pkg/models"
)

// TopFetcher lists the top coins; live fetches are recorded by the client's
// snapshot sink
type TopFetcher interface {
	GetTopCryptocurrencies(ctx context.Context, limit int) ([]models.MarketSnapshot, error)
}

// SnapshotPoller periodically pulls the top coins so price history keeps
// accruing while nobody is chatting
type SnapshotPoller struct {
	market   TopFetcher
	interval time.Duration
	limit    int
	logger   *logrus.Entry

	running bool
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewSnapshotPoller creates a poller fetching limit coins every interval
func NewSnapshotPoller(market TopFetcher, interval time.Duration, limit int, logger *logrus.Logger) *SnapshotPoller {
	return &SnapshotPoller{
		market:   market,
		interval: interval,
		limit:    limit,
		logger:   logger.WithField("component", "snapshot-poller"),
	}
}

// Start starts the background poll loop
func (p *SnapshotPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running || p.interval <= 0 {
		return nil
	}

	p.running = true
	p.done = make(chan struct{})
	p.logger.WithField("interval", p.interval).Info("Starting market snapshot poller")

	p.wg.Add(1)
	go p.pollLoop(ctx)

	return nil
}

// Stop stops the poll loop and waits for it to exit
func (p *SnapshotPoller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil
	}

	close(p.done)
	p.wg.Wait()
	p.running = false

	return nil
}

func (p *SnapshotPoller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll fetches the top coins once
func (p *SnapshotPoller) Poll(ctx context.Context) {
	coins, err := p.market.GetTopCryptocurrencies(ctx, p.limit)
	if err != nil {
		p.logger.WithError(err).Warn("Failed to poll top coins")
		return
	}
	p.logger.WithField("count", len(coins)).Debug("Polled top coins")
}
