package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// RoundCoordinator drives round progression for a collector.
type RoundCoordinator interface {
	// CurrentRound returns the round currently open for contributions.
	CurrentRound() int

	// Subscribe returns a channel receiving every round transition.
	// The subscription is dropped when ctx is done.
	Subscribe(ctx context.Context) <-chan int

	// Start begins time-based round progression.
	Start(ctx context.Context)
}

// RoundForTime maps a wall-clock instant to a round number for the
// given round duration.
func RoundForTime(instant time.Time, roundDuration time.Duration) int {
	return int(instant.UnixMilli() / roundDuration.Milliseconds())
}

type roundSubscriber struct {
	ctx context.Context
	ch  chan int
}

// TickerCoordinator advances rounds on a fixed wall-clock schedule.
// AdvanceToRound allows manual progression in tests without starting
// the ticker.
type TickerCoordinator struct {
	mu            sync.RWMutex
	currentRound  int
	roundDuration time.Duration
	subscribers   []roundSubscriber
	started       *atomic.Bool
}

// NewTickerCoordinator creates a coordinator with the given round
// duration.
func NewTickerCoordinator(roundDuration time.Duration) *TickerCoordinator {
	return &TickerCoordinator{
		roundDuration: roundDuration,
		started:       atomic.NewBool(false),
	}
}

// CurrentRound returns the round currently open for contributions.
func (c *TickerCoordinator) CurrentRound() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentRound
}

// Subscribe returns a channel receiving every round transition,
// starting with the current round.
func (c *TickerCoordinator) Subscribe(ctx context.Context) <-chan int {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan int, 10)
	c.subscribers = append(c.subscribers, roundSubscriber{ctx: ctx, ch: ch})
	current := c.currentRound
	go func() {
		select {
		case ch <- current:
		case <-ctx.Done():
		}
	}()
	return ch
}

// Start begins ticker-driven progression. Calling Start twice is a
// no-op.
func (c *TickerCoordinator) Start(ctx context.Context) {
	if c.started.Swap(true) {
		return
	}

	c.mu.Lock()
	c.currentRound = RoundForTime(time.Now(), c.roundDuration)
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.roundDuration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				c.AdvanceToRound(RoundForTime(now, c.roundDuration))
			}
		}
	}()
}

// AdvanceToRound moves the coordinator to the given round and notifies
// subscribers. Transitions backwards are ignored.
func (c *TickerCoordinator) AdvanceToRound(round int) {
	c.mu.Lock()
	if round <= c.currentRound {
		c.mu.Unlock()
		return
	}
	c.currentRound = round

	// Prune subscribers whose context ended; notify the rest without
	// blocking on a full channel.
	active := c.subscribers[:0]
	for _, sub := range c.subscribers {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}
		select {
		case sub.ch <- round:
		default:
		}
		active = append(active, sub)
	}
	c.subscribers = active
	c.mu.Unlock()
}
