// Package scheduler implements the autonomous message generator (C8): a
// single long-lived task that, once enabled, periodically asks the response
// selector for a line of dialogue and speaks it through every
// Autonomous-mode session.
package scheduler

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/vtuberd/control-plane/internal/audit"
	"github.com/vtuberd/control-plane/internal/backend"
	"github.com/vtuberd/control-plane/internal/emotion"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/selector"
)

// defaultPrompts mirrors the original generator's random prompt pool.
var defaultPrompts = []string{
	"Say something interesting about yourself",
	"Share a random thought",
	"What's on your mind?",
	"Tell me something fun",
	"What would you like to talk about?",
	"Share a random observation",
	"What's happening?",
	"Say something spontaneous",
	"What are you thinking about?",
	"Share something random",
}

// PresenterAdapter is the narrow surface the scheduler needs from the
// session registry: the Speak path and the shared descriptor used to strip
// emotion tags before the text hits display_text.
type PresenterAdapter interface {
	PresenterAdapter() backend.Adapter
	Descriptor() model.LiveModelDescriptor
}

// Snapshot reports the scheduler's current control-surface state.
type Snapshot struct {
	Enabled bool
	Min     time.Duration
	Max     time.Duration
}

// Scheduler is C8's single long-lived task.
type Scheduler struct {
	registry PresenterAdapter
	agent    selector.Agent
	metrics  *observability.Metrics
	sink     audit.Sink
	prompts  []string
	rng      *rand.Rand

	mu      sync.Mutex
	enabled bool
	min     time.Duration
	max     time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Scheduler. min/max follow §4.8's `0 < min <= max` invariant;
// callers should validate via SetIntervals before Start if constructing with
// untrusted values. sink may be nil, in which case every tick outcome
// records to audit.NoopSink.
func New(registry PresenterAdapter, ag selector.Agent, metrics *observability.Metrics, sink audit.Sink, min, max time.Duration, enabled bool) *Scheduler {
	if min <= 0 {
		min = 120 * time.Second
	}
	if max < min {
		max = min
	}
	if sink == nil {
		sink = audit.NoopSink{}
	}
	return &Scheduler{
		registry: registry,
		agent:    ag,
		metrics:  metrics,
		sink:     sink,
		prompts:  defaultPrompts,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		enabled:  enabled,
		min:      min,
		max:      max,
	}
}

// Start launches the generation loop. It is a no-op if already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(runCtx)
}

// Stop cancels the generation loop and waits for it to exit. Safe to call
// even if Start was never called.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SetEnabled toggles generation. Per §4.8's cancellation rule, this never
// interrupts an in-flight sleep; it only changes whether the next tick
// fires.
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// SetIntervals updates the sleep bounds. It rejects 0 < min <= max
// violations and leaves the prior bounds untouched on error.
func (s *Scheduler) SetIntervals(min, max time.Duration) error {
	if min <= 0 || max <= 0 {
		return errIntervalNotPositive
	}
	if min > max {
		return errIntervalInverted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.min = min
	s.max = max
	return nil
}

// Snapshot reports the current enabled flag and interval bounds.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Enabled: s.enabled, Min: s.min, Max: s.max}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		wait := s.randomInterval()
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if s.metrics != nil {
			s.metrics.SchedulerInterval.Observe(wait.Seconds())
		}

		s.mu.Lock()
		enabled := s.enabled
		s.mu.Unlock()
		if !enabled {
			s.tickOutcome(ctx, "disabled", "", "disabled")
			continue
		}

		s.tick(ctx)
	}
}

func (s *Scheduler) randomInterval() time.Duration {
	s.mu.Lock()
	min, max := s.min, s.max
	s.mu.Unlock()
	if max <= min {
		return min
	}
	span := max - min
	return min + time.Duration(s.rng.Int63n(int64(span)))
}

func (s *Scheduler) tick(ctx context.Context) {
	prompt := s.prompts[s.rng.Intn(len(s.prompts))]

	text := selector.SelectBest(ctx, s.agent, prompt, nil, 0)
	if text == "" {
		s.tickOutcome(ctx, "empty", "", "selector_empty")
		return
	}

	descriptor := s.registry.Descriptor()
	expressions := emotion.Extract(text, descriptor.EmotionMap)
	displayText := emotion.StripTags(text, descriptor.EmotionMap)

	adapter := s.registry.PresenterAdapter()
	result := adapter.Speak(ctx, displayText, expressions, nil, false, backend.DisplayMeta{
		SpeakerName: descriptor.CharacterName,
		Avatar:      descriptor.AvatarReference,
	})

	if result.Status != "success" {
		s.tickOutcome(ctx, "speak_error", displayText, result.Error)
		return
	}
	s.tickOutcome(ctx, "generated", displayText, "generated")
}

func (s *Scheduler) tickOutcome(ctx context.Context, outcome, text, reason string) {
	if s.metrics != nil {
		s.metrics.SchedulerTicks.WithLabelValues(outcome).Inc()
	}
	if outcome == "disabled" {
		return
	}
	auditOutcome := "dropped"
	if outcome == "generated" {
		auditOutcome = "spoken"
	}
	if err := s.sink.Record(ctx, audit.Entry{
		Source:  "scheduler",
		Text:    text,
		Outcome: auditOutcome,
		Reason:  reason,
	}); err != nil {
		log.Printf("scheduler: audit record failed: %v", err)
	}
}

// errIntervalNotPositive and errIntervalInverted back SetIntervals.
var (
	errIntervalNotPositive = schedErr("min and max interval must be positive")
	errIntervalInverted    = schedErr("min interval must be <= max interval")
)

type schedErr string

func (e schedErr) Error() string { return string(e) }
