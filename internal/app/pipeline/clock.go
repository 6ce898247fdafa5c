package pipeline

import (
	"context"
	"time"

	"github.com/ghalamif/SensorFlow/internal/ports"
)

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WallClock is the real-time ports.Clock.
var WallClock ports.Clock = wallClock{}
