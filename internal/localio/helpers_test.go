package localio

import (
	"testing"
	"time"

	"github.com/sweeney/localio/internal/gpio"
	"github.com/sweeney/localio/internal/memmap"
)

// fakeClock is a manually advanced clock for hold bindings.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T) (*HAL, *gpio.FakePins, *memmap.Map, *fakeClock) {
	t.Helper()
	pins := gpio.NewFakePins()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	mem, err := memmap.New(memmap.DefaultLayout(24))
	if err != nil {
		t.Fatalf("memmap.New: %v", err)
	}
	h := New(pins, Config{Now: clock.Now})
	return h, pins, mem, clock
}
