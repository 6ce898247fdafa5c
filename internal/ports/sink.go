package ports

import (
	"context"

	"github.com/ghalamif/SensorFlow/internal/domain"
)

// Sink is one downstream transport. Connect performs a single handshake attempt;
// retries are the caller's business. Send writes exactly one formatted update.
type Sink interface {
	Name() string
	Connect(ctx context.Context) error
	Connected() bool
	Send(ctx context.Context, f domain.Flush) error
	Close() error
}

// Creator is implemented by sinks that can (re)create their backing storage.
type Creator interface {
	Create(ctx context.Context, keys []string) error
}
