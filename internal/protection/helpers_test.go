package protection_test

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/BradenHooton/bulwark/internal/protection"
)

// testSalt satisfies the minimum salt length
const testSalt = "unit-test-salt-0123456789abcdef"

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced Clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorderEmitter collects emitted events in memory
type recorderEmitter struct {
	mu     sync.Mutex
	events []protection.Event
}

func (re *recorderEmitter) Emit(event protection.Event) {
	re.mu.Lock()
	defer re.mu.Unlock()
	re.events = append(re.events, event)
}

func (re *recorderEmitter) byType(eventType string) []protection.Event {
	re.mu.Lock()
	defer re.mu.Unlock()

	var matched []protection.Event
	for _, e := range re.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
