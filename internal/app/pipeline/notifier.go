package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ghalamif/SensorFlow/internal/ports"
)

// Notice is one notification. Category groups repeats of the same condition for
// rate limiting; an empty category is never suppressed.
type Notice struct {
	Severity ports.Severity
	Category string
	Message  string
	Err      error
	Fields   []ports.Field
}

// Notifier forwards notices to the observability backend and, for critical ones, to an
// alerter. Each category may emit at most once per cool-down window.
type Notifier struct {
	obs      ports.Observability
	alerter  ports.Alerter
	clock    ports.Clock
	cooldown time.Duration

	mu        sync.Mutex
	overrides map[string]time.Duration
	limiters  map[string]*rate.Limiter
}

func NewNotifier(obs ports.Observability, alerter ports.Alerter, clock ports.Clock, cooldown time.Duration) *Notifier {
	if clock == nil {
		clock = WallClock
	}
	return &Notifier{
		obs:       obs,
		alerter:   alerter,
		clock:     clock,
		cooldown:  cooldown,
		overrides: make(map[string]time.Duration),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// SetCooldown overrides the window for one category. Zero or negative disables suppression.
func (n *Notifier) SetCooldown(category string, d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.overrides[category] = d
	delete(n.limiters, category)
}

// Notify emits the notice unless its category already fired inside the current window.
// It reports whether the notice was emitted.
func (n *Notifier) Notify(ctx context.Context, nt Notice) bool {
	if !n.allow(nt.Category) {
		n.obs.IncCounter(MetricAlertsSuppressed, 1)
		return false
	}

	fields := nt.Fields
	if nt.Category != "" {
		fields = append([]ports.Field{{Key: "category", Value: nt.Category}}, fields...)
	}

	switch nt.Severity {
	case ports.SeverityCritical:
		n.obs.LogCritical(nt.Message, nt.Err, fields...)
		n.deliver(ctx, nt)
	case ports.SeverityWarning:
		if nt.Err != nil {
			fields = append(fields, ports.Field{Key: "error", Value: nt.Err.Error()})
		}
		n.obs.LogWarn(nt.Message, fields...)
	default:
		if nt.Err != nil {
			fields = append(fields, ports.Field{Key: "error", Value: nt.Err.Error()})
		}
		n.obs.LogInfo(nt.Message, fields...)
	}
	return true
}

func (n *Notifier) allow(category string) bool {
	if category == "" {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	lim, ok := n.limiters[category]
	if !ok {
		window := n.cooldown
		if d, ok := n.overrides[category]; ok {
			window = d
		}
		if window <= 0 {
			return true
		}
		lim = rate.NewLimiter(rate.Every(window), 1)
		n.limiters[category] = lim
	}
	return lim.AllowN(n.clock.Now(), 1)
}

func (n *Notifier) deliver(ctx context.Context, nt Notice) {
	if n.alerter == nil {
		return
	}
	if err := n.alerter.Alert(ctx, nt.Severity.String(), formatNotice(nt)); err != nil {
		n.obs.LogError("alert_delivery_failed", err, ports.Field{Key: "category", Value: nt.Category})
	}
}

func formatNotice(nt Notice) string {
	var b strings.Builder
	b.WriteString(nt.Message)
	if nt.Err != nil {
		b.WriteString(": ")
		b.WriteString(nt.Err.Error())
	}
	for _, f := range nt.Fields {
		fmt.Fprintf(&b, "\n%s=%v", f.Key, f.Value)
	}
	b.WriteString("\n")
	return b.String()
}
