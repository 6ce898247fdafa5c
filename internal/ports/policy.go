package ports

import "time"

// SinkPolicy controls connection retries and what happens after a dropped connection.
type SinkPolicy struct {
	RetryAttempts     int
	RetryDelay        time.Duration
	RetryAfterDrop    bool
	ReconnectAttempts int // negative retries until shutdown
}
