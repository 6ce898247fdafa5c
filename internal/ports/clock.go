package ports

import (
	"context"
	"time"
)

// Clock abstracts wall time so schedules and retry delays can be driven from tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, in which case it returns ctx.Err().
	Sleep(ctx context.Context, d time.Duration) error
}
