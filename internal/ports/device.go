package ports

import "context"

// DeviceReader performs a single read of the raw value behind a source descriptor.
// Implementations do not retry and do not interpret the value beyond parsing it.
type DeviceReader interface {
	Read(ctx context.Context, source string) (float64, error)
	Close() error
}
