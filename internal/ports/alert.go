package ports

import "context"

// Severity orders notifications; only SeverityCritical is delivered to a human.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alerter delivers a message out of band (mail, pager).
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}
