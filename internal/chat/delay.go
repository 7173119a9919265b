package chat

import (
	"context"
	"strings"
	"time"

	"github.com/cryptobuddy/internal/classifier"
)

const (
	baseDelay    = time.Second
	perFiveWords = 500 * time.Millisecond
)

// Sleeper waits out the thinking delay before a reply is delivered
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration)
}

// TimerSleeper sleeps on a timer and wakes early when ctx is done
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// ThinkingDelay grows with query length and complexity and is clamped to
// [min, max]
func ThinkingDelay(query string, complexity classifier.Complexity, min, max time.Duration) time.Duration {
	words := len(strings.Fields(query))
	d := baseDelay + time.Duration(words/5)*perFiveWords

	switch complexity {
	case classifier.ComplexityMedium:
		d += time.Second
	case classifier.ComplexityComplex:
		d += 2 * time.Second
	}

	if d < min {
		d = min
	}
	if d > max {
		d = max
	}
	return d
}
