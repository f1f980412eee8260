package chatingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vtuberd/control-plane/internal/audit"
	"github.com/vtuberd/control-plane/internal/backend"
	"github.com/vtuberd/control-plane/internal/chatfilter"
	"github.com/vtuberd/control-plane/internal/chatplatform"
	"github.com/vtuberd/control-plane/internal/model"
)

type fakeSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *fakeSink) Record(ctx context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeSink) Recent(ctx context.Context, limit int) ([]audit.Entry, error) { return nil, nil }
func (s *fakeSink) Close() error                                                { return nil }

func (s *fakeSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type fakeAdapter struct {
	calls []struct {
		text        string
		expressions []int
	}
	result model.Result
}

func (a *fakeAdapter) TriggerExpression(ctx context.Context, expressionID, durationMs, priority int) model.Result {
	return model.Success()
}

func (a *fakeAdapter) TriggerMotion(ctx context.Context, group string, index int, loop bool, priority int) model.Result {
	return model.Success()
}

func (a *fakeAdapter) Speak(ctx context.Context, text string, expressions []int, motions []backend.MotionSpec, skipTTS bool, meta backend.DisplayMeta) model.Result {
	a.calls = append(a.calls, struct {
		text        string
		expressions []int
	}{text, expressions})
	if a.result.Status == "" {
		return model.Success()
	}
	return a.result
}

func (a *fakeAdapter) GenerateText(ctx context.Context, prompt string, generationContext map[string]any, onChunk func(string) error) (string, error) {
	return "", nil
}

func (a *fakeAdapter) Variant() string { return backend.VariantAutonomous }

type fakeRegistry struct {
	adapter    *fakeAdapter
	descriptor model.LiveModelDescriptor
}

func (r *fakeRegistry) PresenterAdapter() backend.Adapter     { return r.adapter }
func (r *fakeRegistry) Descriptor() model.LiveModelDescriptor { return r.descriptor }

type fakeAgent struct {
	text string
}

func (a *fakeAgent) GenerateText(ctx context.Context, prompt string, generationContext map[string]any) (string, error) {
	return a.text, nil
}

func newFakeRegistry(adapter *fakeAdapter) *fakeRegistry {
	return &fakeRegistry{
		adapter: adapter,
		descriptor: model.LiveModelDescriptor{
			CharacterName: "Aria",
			EmotionMap:    map[string]int{"happy": 1},
		},
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestPipelineSpeaksQualifyingMessage(t *testing.T) {
	adapter := &fakeAdapter{}
	registry := newFakeRegistry(adapter)
	agent := &fakeAgent{text: "hello there [happy] friend"}
	source := chatplatform.NewWebhookSource(4)

	p := New(source, registry, chatfilter.NewSpamFilter(), chatfilter.NewQualityScorer(), agent, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	if err := source.Push(chatplatform.ChatMessage{
		UserID:    "viewer1",
		Username:  "viewer1",
		Text:      "hey Aria how are you doing today",
		Platform:  chatplatform.PlatformWebhook,
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	waitUntil(t, func() bool { return len(adapter.calls) == 1 })
	if adapter.calls[0].text != "hello there  friend" {
		t.Fatalf("Speak text = %q, want emotion tag stripped", adapter.calls[0].text)
	}
	if len(adapter.calls[0].expressions) != 1 || adapter.calls[0].expressions[0] != 1 {
		t.Fatalf("Speak expressions = %v, want [1]", adapter.calls[0].expressions)
	}
}

func TestPipelineRecordsSpokenOutcomeToAuditSink(t *testing.T) {
	adapter := &fakeAdapter{}
	registry := newFakeRegistry(adapter)
	agent := &fakeAgent{text: "hello there friend"}
	source := chatplatform.NewWebhookSource(4)
	sink := &fakeSink{}

	p := New(source, registry, chatfilter.NewSpamFilter(), chatfilter.NewQualityScorer(), agent, nil, sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	if err := source.Push(chatplatform.ChatMessage{
		UserID:    "viewer3",
		Text:      "hey Aria how are you doing today",
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	waitUntil(t, func() bool { return sink.len() == 1 })
	if sink.entries[0].Outcome != "spoken" {
		t.Fatalf("entry.Outcome = %q, want spoken", sink.entries[0].Outcome)
	}
}

func TestPipelineDropsSpamMessage(t *testing.T) {
	adapter := &fakeAdapter{}
	registry := newFakeRegistry(adapter)
	agent := &fakeAgent{text: "a reply"}
	source := chatplatform.NewWebhookSource(4)

	p := New(source, registry, chatfilter.NewSpamFilter(), chatfilter.NewQualityScorer(), agent, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	if err := source.Push(chatplatform.ChatMessage{
		UserID:    "spammer",
		Text:      "h",
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if len(adapter.calls) != 0 {
		t.Fatalf("Speak called %d times, want 0 for a too-short message", len(adapter.calls))
	}
}

func TestPipelineDropsWhenSelectorReturnsEmpty(t *testing.T) {
	adapter := &fakeAdapter{}
	registry := newFakeRegistry(adapter)
	agent := &fakeAgent{text: ""}
	source := chatplatform.NewWebhookSource(4)

	p := New(source, registry, chatfilter.NewSpamFilter(), chatfilter.NewQualityScorer(), agent, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop()

	if err := source.Push(chatplatform.ChatMessage{
		UserID:    "viewer2",
		Text:      "hey Aria how are you doing today",
		Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if len(adapter.calls) != 0 {
		t.Fatalf("Speak called %d times, want 0 when selector yields no candidate", len(adapter.calls))
	}
}
