package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/cryptobuddy/pkg/models"
)

type countingMarket struct {
	calls atomic.Int32
	limit atomic.Int32
	err   error
}

func (c *countingMarket) GetTopCryptocurrencies(_ context.Context, limit int) ([]models.MarketSnapshot, error) {
	c.calls.Add(1)
	c.limit.Store(int32(limit))
	if c.err != nil {
		return nil, c.err
	}
	return []models.MarketSnapshot{{ID: "bitcoin"}}, nil
}

func TestSnapshotPollerPollsImmediatelyAndOnTick(t *testing.T) {
	logger, _ := test.NewNullLogger()
	market := &countingMarket{}
	p := NewSnapshotPoller(market, 20*time.Millisecond, 25, logger)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for market.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if market.calls.Load() < 2 {
		t.Errorf("expected at least 2 polls, got %d", market.calls.Load())
	}
	if market.limit.Load() != 25 {
		t.Errorf("expected limit 25, got %d", market.limit.Load())
	}

	after := market.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if market.calls.Load() != after {
		t.Error("poller kept running after Stop")
	}
}

func TestSnapshotPollerLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewSnapshotPoller(&countingMarket{err: errors.New("rate limited")}, time.Minute, 10, logger)

	p.Poll(context.Background())

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning, got %+v", entry)
	}
}

func TestSnapshotPollerDisabledInterval(t *testing.T) {
	logger, _ := test.NewNullLogger()
	market := &countingMarket{}
	p := NewSnapshotPoller(market, 0, 10, logger)

	p.Start(context.Background())
	p.Stop()

	if market.calls.Load() != 0 {
		t.Errorf("expected no polls with a zero interval, got %d", market.calls.Load())
	}
}
