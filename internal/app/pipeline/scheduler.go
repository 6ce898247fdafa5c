package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// Schedule holds the two independent cadences of the scheduler.
type Schedule struct {
	SampleInterval time.Duration
	FlushInterval  time.Duration
}

// Stages are the pipeline components driven by the scheduler.
type Stages struct {
	Sensors     []domain.SensorSpec
	Sampler     *Sampler
	Validator   *Validator
	Accumulator *Accumulator
	Channel     *OutputChannel
	Notifier    *Notifier
}

// Scheduler runs the sample and flush cadences in a single loop. Deadlines advance from
// the previously scheduled time, so small overruns do not accumulate.
type Scheduler struct {
	sched  Schedule
	policy ports.SinkPolicy
	st     Stages
	clock  ports.Clock
	obs    ports.Observability

	mu         sync.Mutex
	nextSample time.Time
	nextFlush  time.Time
}

func NewScheduler(sched Schedule, pol ports.SinkPolicy, st Stages, clock ports.Clock, obs ports.Observability) (*Scheduler, error) {
	if sched.SampleInterval <= 0 || sched.FlushInterval <= 0 {
		return nil, fmt.Errorf("sample and flush intervals must be > 0")
	}
	if st.Sampler == nil || st.Validator == nil || st.Accumulator == nil || st.Channel == nil || st.Notifier == nil {
		return nil, fmt.Errorf("scheduler stages are incomplete")
	}
	if clock == nil {
		clock = WallClock
	}
	return &Scheduler{sched: sched, policy: pol, st: st, clock: clock, obs: obs}, nil
}

// Run connects the channel and loops until ctx is done (nil) or a fatal condition
// occurs (non-nil). Cancellation takes effect after the current step.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.st.Channel.Connect(ctx, s.policy.RetryAttempts, s.policy.RetryDelay); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.st.Notifier.Notify(ctx, Notice{
			Severity: ports.SeverityCritical,
			Message:  "sink_connect_failed",
			Err:      err,
		})
		return err
	}

	now := s.clock.Now()
	s.setDeadlines(now, now)

	for {
		nextSample, nextFlush := s.NextDeadlines()
		wake := nextSample
		if nextFlush.Before(wake) {
			wake = nextFlush
		}
		if d := wake.Sub(s.clock.Now()); d > 0 {
			if err := s.clock.Sleep(ctx, d); err != nil {
				return nil
			}
		}
		if ctx.Err() != nil {
			return nil
		}

		now := s.clock.Now()
		if !now.Before(nextSample) {
			s.samplePass(ctx, now)
			nextSample = s.advance(ctx, nextSample, s.sched.SampleInterval, "sample")
		}
		if !now.Before(nextFlush) {
			err := s.flush(ctx, now)
			nextFlush = s.advance(ctx, nextFlush, s.sched.FlushInterval, "flush")
			if err != nil {
				s.setDeadlines(nextSample, nextFlush)
				return err
			}
		}
		s.setDeadlines(nextSample, nextFlush)
	}
}

// NextDeadlines reports the upcoming sample and flush times.
func (s *Scheduler) NextDeadlines() (sample, flush time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextSample, s.nextFlush
}

func (s *Scheduler) setDeadlines(sample, flush time.Time) {
	s.mu.Lock()
	s.nextSample, s.nextFlush = sample, flush
	s.mu.Unlock()
}

func (s *Scheduler) advance(ctx context.Context, deadline time.Time, interval time.Duration, step string) time.Time {
	next := deadline.Add(interval)
	now := s.clock.Now()
	if next.Before(now) {
		s.st.Notifier.Notify(ctx, Notice{
			Severity: ports.SeverityWarning,
			Category: CategoryBehind,
			Message:  "scheduler_behind",
			Fields: []ports.Field{
				{Key: "step", Value: step},
				{Key: "behind", Value: now.Sub(next).String()},
			},
		})
		return now
	}
	return next
}

func (s *Scheduler) samplePass(ctx context.Context, now time.Time) {
	readings := s.st.Sampler.SampleAll(ctx, s.st.Sensors, now)
	for i, r := range readings {
		spec := s.st.Sensors[i]
		v, err := s.st.Validator.Validate(spec.ID, r.Value, r.Timestamp)
		if err != nil {
			s.obs.LogError("validate_failed", err, ports.Field{Key: "sensor", Value: spec.ID})
			continue
		}
		if r.Valid() && math.IsNaN(v) {
			s.obs.IncCounter(MetricSamplesRejected, 1)
			s.obs.LogWarn("reading_rejected",
				ports.Field{Key: "sensor", Value: spec.ID},
				ports.Field{Key: "value", Value: r.Value})
		}
		if !math.IsNaN(v) {
			s.obs.IncCounter(MetricSamples, 1)
		}
		if err := s.st.Accumulator.Add(spec.MetricKey, v); err != nil {
			s.obs.LogError("accumulate_failed", err, ports.Field{Key: "sensor", Value: spec.ID})
		}
	}
}

// flush returns an error only for conditions that must stop the loop.
func (s *Scheduler) flush(ctx context.Context, now time.Time) error {
	f := s.st.Accumulator.Flush(ctx, now)
	s.obs.IncCounter(MetricFlushes, 1)

	ch := s.st.Channel
	if ch.State() != Connected {
		if err := ch.Connect(ctx, s.policy.ReconnectAttempts, s.policy.RetryDelay); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.st.Notifier.Notify(ctx, Notice{
				Severity: ports.SeverityCritical,
				Category: CategoryConnect,
				Message:  "sink_reconnect_failed",
				Err:      err,
			})
			return nil
		}
	}

	err := ch.Send(ctx, f)
	switch {
	case err == nil:
		s.obs.LogInfo("flush_uploaded",
			ports.Field{Key: "sink", Value: ch.Name()},
			ports.Field{Key: "metrics", Value: len(f.Values)})
		return nil
	case errors.Is(err, ports.ErrNothingToSend):
		s.obs.LogInfo("flush_skipped",
			ports.Field{Key: "sink", Value: ch.Name()},
			ports.Field{Key: "reason", Value: "no metric met its threshold"})
		return nil
	}

	s.st.Notifier.Notify(ctx, Notice{
		Severity: ports.SeverityCritical,
		Category: CategoryUpload,
		Message:  "upload_failed",
		Err:      err,
	})
	if ch.State() == Disconnected && !s.policy.RetryAfterDrop {
		return fmt.Errorf("connection to %s dropped: %w", ch.Name(), err)
	}
	return nil
}
