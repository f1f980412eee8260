// Package chatingest implements the chat ingest pipeline (C9): it drains a
// chatplatform.Source and, for each message, runs it through the spam
// filter, the quality gate, the response selector, and finally speaks the
// chosen reply through a presenter session's adapter.
package chatingest

import (
	"context"
	"log"
	"time"

	"github.com/vtuberd/control-plane/internal/audit"
	"github.com/vtuberd/control-plane/internal/backend"
	"github.com/vtuberd/control-plane/internal/chatfilter"
	"github.com/vtuberd/control-plane/internal/chatplatform"
	"github.com/vtuberd/control-plane/internal/emotion"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/selector"
)

// PresenterAdapter is the minimal session-registry surface the pipeline
// needs to speak a reply; satisfied structurally by *session.Manager.
type PresenterAdapter interface {
	PresenterAdapter() backend.Adapter
	Descriptor() model.LiveModelDescriptor
}

// Pipeline wires a chatplatform.Source into the spam/quality/selector/
// backend chain. One Pipeline handles one Source.
type Pipeline struct {
	source   chatplatform.Source
	registry PresenterAdapter
	spam     *chatfilter.SpamFilter
	quality  *chatfilter.QualityScorer
	agent    selector.Agent
	metrics  *observability.Metrics
	sink     audit.Sink

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Pipeline. agent is the selector's text-generation
// collaborator; it is typically the same agent.Agent the rest of the
// module uses, adapted to selector.Agent. sink may be nil, in which case
// every decision point records to audit.NoopSink.
func New(source chatplatform.Source, registry PresenterAdapter, spam *chatfilter.SpamFilter, quality *chatfilter.QualityScorer, ag selector.Agent, metrics *observability.Metrics, sink audit.Sink) *Pipeline {
	if spam == nil {
		spam = chatfilter.NewSpamFilter()
	}
	if quality == nil {
		quality = chatfilter.NewQualityScorer()
	}
	if sink == nil {
		sink = audit.NoopSink{}
	}
	return &Pipeline{
		source:   source,
		registry: registry,
		spam:     spam,
		quality:  quality,
		agent:    ag,
		metrics:  metrics,
		sink:     sink,
	}
}

// Start connects the source and spawns the drain loop. Start is not
// idempotent; calling it twice on a running Pipeline spawns a second loop
// racing the same Source channel.
func (p *Pipeline) Start(ctx context.Context) error {
	if err := p.source.Connect(); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(runCtx)
	return nil
}

// Stop disconnects the source and waits for the drain loop to exit.
func (p *Pipeline) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	if err := p.source.Disconnect(); err != nil {
		log.Printf("chatingest: disconnect source: %v", err)
	}
}

func (p *Pipeline) loop(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-p.source.Messages():
			if !ok {
				return
			}
			p.handle(ctx, msg)
		}
	}
}

func (p *Pipeline) handle(ctx context.Context, msg chatplatform.ChatMessage) {
	now := msg.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	verdict, err := p.spam.IsSpam(ctx, msg.UserID, msg.Text, now)
	if err != nil {
		log.Printf("chatingest: spam check for %s: %v", msg.UserID, err)
		return
	}
	if verdict.IsSpam {
		log.Printf("chatingest: dropping message from %s: spam (%s)", msg.UserID, verdict.Reason)
		p.countDropped("spam", verdict.Reason)
		p.record(ctx, msg, "dropped", "spam:"+verdict.Reason)
		return
	}

	descriptor := p.registry.Descriptor()
	quality := p.quality.ShouldRespond(msg.UserID, msg.Text, descriptor.CharacterName, now)
	if p.metrics != nil {
		p.metrics.ResponseCandidate.Observe(quality.Score)
	}
	if !quality.Respond {
		log.Printf("chatingest: dropping message from %s: quality gate (%s)", msg.UserID, quality.Reason)
		p.countDropped("quality", quality.Reason)
		p.record(ctx, msg, "dropped", "quality:"+quality.Reason)
		return
	}

	reply := selector.SelectBest(ctx, p.agent, msg.Text, map[string]any{"user_id": msg.UserID, "username": msg.Username}, 0)
	if reply == "" {
		log.Printf("chatingest: dropping message from %s: empty selector output", msg.UserID)
		p.countDropped("selector", "empty")
		p.record(ctx, msg, "dropped", "selector:empty")
		return
	}

	expressions := emotion.Extract(reply, descriptor.EmotionMap)
	displayText := emotion.StripTags(reply, descriptor.EmotionMap)

	adapter := p.registry.PresenterAdapter()
	result := adapter.Speak(ctx, displayText, expressions, nil, false, backend.DisplayMeta{
		SpeakerName: descriptor.CharacterName,
		Avatar:      descriptor.AvatarReference,
	})
	if result.Status != "success" {
		log.Printf("chatingest: speak failed for %s: %s", msg.UserID, result.Error)
		p.countDropped("speak", "adapter_error")
		p.record(ctx, msg, "dropped", "speak:"+result.Error)
		return
	}
	p.record(ctx, msg, "spoken", "quality_threshold_met")
}

func (p *Pipeline) record(ctx context.Context, msg chatplatform.ChatMessage, outcome, reason string) {
	if err := p.sink.Record(ctx, audit.Entry{
		Source:  "chat_ingest",
		UserID:  msg.UserID,
		Text:    msg.Text,
		Outcome: outcome,
		Reason:  reason,
	}); err != nil {
		log.Printf("chatingest: audit record failed: %v", err)
	}
}

func (p *Pipeline) countDropped(stage, reason string) {
	if p.metrics == nil {
		return
	}
	switch stage {
	case "spam":
		p.metrics.SpamDropped.WithLabelValues(reason).Inc()
	case "quality":
		p.metrics.QualityGated.WithLabelValues(reason).Inc()
	default:
		p.metrics.AdapterErrors.WithLabelValues("chatingest", stage).Inc()
	}
}
