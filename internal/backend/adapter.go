// Package backend implements the polymorphic BackendAdapter surface: the
// internal, external-api, and autonomous variants that turn adapter
// operations into outbound frames on a session.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vtuberd/control-plane/internal/agent"
	"github.com/vtuberd/control-plane/internal/emotion"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/protocol"
	"github.com/vtuberd/control-plane/internal/tts"
)

// Variant names used in metrics labels and /api/backend/state responses.
const (
	VariantInternal    = "internal"
	VariantExternalAPI = "external-api"
	VariantAutonomous  = "autonomous"
)

// Outbound is the minimal surface an adapter needs from its owning
// session: a way to push frames out, best-effort or blocking. Session
// implements this; backend never imports session to avoid a cycle.
type Outbound interface {
	Enqueue(frame any) bool
	EnqueueBlocking(ctx context.Context, frame any) error
}

// MotionSpec mirrors model.MotionSpec for Speak's motion argument list.
type MotionSpec = model.MotionSpec

// DisplayMeta carries the speaker/avatar labels attached to a Speak call.
type DisplayMeta struct {
	SpeakerName string
	Avatar      string
}

// Adapter is the four-operation surface exposed to C6/C7/C8/C9, common to
// every variant.
type Adapter interface {
	TriggerExpression(ctx context.Context, expressionID, durationMs, priority int) model.Result
	TriggerMotion(ctx context.Context, group string, index int, loop bool, priority int) model.Result
	Speak(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool, meta DisplayMeta) model.Result
	GenerateText(ctx context.Context, prompt string, generationContext map[string]any, onChunk func(string) error) (string, error)
	Variant() string
}

// base holds the fields every variant shares.
type base struct {
	outbound   Outbound
	descriptor model.LiveModelDescriptor
	synth      tts.Synthesizer
	ag         agent.Agent
	metrics    *observability.Metrics
}

func (b *base) triggerExpression(ctx context.Context, expressionID, durationMs, priority int, forwarded bool) model.Result {
	if expressionID < 0 {
		return model.Failure("unknown expression id")
	}

	payload := model.AudioPayload{
		AudioBytes: nil,
		DisplayText: model.DisplayText{
			Text:        fmt.Sprintf("expression %d", expressionID),
			SpeakerName: b.descriptor.CharacterName,
			Avatar:      b.descriptor.AvatarReference,
		},
		Actions:   model.Actions{Expressions: []int{expressionID}},
		Forwarded: forwarded,
	}

	frame := protocol.NewAudioFrame(payload)
	if !b.outbound.Enqueue(frame) {
		return model.Failure("outbound backpressure")
	}
	return model.Success()
}

func (b *base) triggerMotion(ctx context.Context, group string, index int, loop bool, priority int) model.Result {
	if !b.descriptor.HasMotion(group, index) {
		return model.Failure("unknown motion group or index")
	}

	frame := protocol.NewMotionFrame(model.MotionCommand{
		Group:    group,
		Index:    index,
		Loop:     loop,
		Priority: priority,
	})
	if !b.outbound.Enqueue(frame) {
		return model.Failure("outbound backpressure")
	}
	return model.Success()
}

// speak synthesizes (unless skipTTS) and emits the audio frame followed by
// any motion frames, preserving the audio-first ordering invariant.
func (b *base) speak(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool, meta DisplayMeta, forwarded bool) model.Result {
	dispatchStart := time.Now()
	defer func() { b.metrics.ObserveStage(observability.StageSpeakDispatch, time.Since(dispatchStart)) }()

	var audio tts.Result
	if !skipTTS && b.synth != nil && strings.TrimSpace(text) != "" {
		synthStart := time.Now()
		var err error
		audio, err = b.synth.Synthesize(ctx, text)
		b.metrics.ObserveStage(observability.StageTTSSynthesize, time.Since(synthStart))
		if err != nil {
			b.metrics.ObserveStageIndicator("tts_error")
			return model.Failure("tts failure: " + err.Error())
		}
	}

	payload := model.AudioPayload{
		AudioBytes:    audio.AudioBytes,
		Format:        audio.Format,
		Volumes:       audio.Volumes,
		SliceLengthMs: audio.SliceLengthMs,
		DisplayText: model.DisplayText{
			Text:        text,
			SpeakerName: meta.SpeakerName,
			Avatar:      meta.Avatar,
		},
		Actions:   model.Actions{Expressions: expressions, Motions: motions},
		Forwarded: forwarded,
	}

	if !b.outbound.Enqueue(protocol.NewAudioFrame(payload)) {
		return model.Failure("outbound backpressure")
	}

	for _, m := range motions {
		if !b.descriptor.HasMotion(m.Group, m.Index) {
			continue
		}
		b.outbound.Enqueue(protocol.NewMotionFrame(model.MotionCommand{
			Group:    m.Group,
			Index:    m.Index,
			Loop:     m.Loop,
			Priority: m.Priority,
		}))
	}

	return model.Success()
}

func (b *base) generateText(ctx context.Context, prompt string, generationContext map[string]any, onChunk func(string) error) (string, error) {
	if b.ag == nil {
		return "", fmt.Errorf("no agent configured")
	}

	start := time.Now()
	defer func() { b.metrics.ObserveStage(observability.StageAgentGenerateText, time.Since(start)) }()

	if streaming, ok := b.ag.(agent.StreamingAgent); ok {
		text, err := streaming.StreamText(ctx, prompt, generationContext, onChunk)
		if err != nil {
			b.metrics.ObserveStageIndicator("agent_error")
		}
		return text, err
	}
	text, err := b.ag.GenerateText(ctx, prompt, generationContext)
	if err != nil {
		b.metrics.ObserveStageIndicator("agent_error")
		return "", err
	}
	if onChunk != nil && text != "" {
		if err := onChunk(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

// ExtractExpressions runs the emotion extractor against the adapter's own
// descriptor, so callers (the scheduler, the ingest pipeline) don't need a
// separate reference to it.
func (b *base) ExtractExpressions(text string) []int {
	return emotion.Extract(text, b.descriptor.EmotionMap)
}

// Descriptor exposes the adapter's live model descriptor for state
// introspection (GET /api/backend/state).
func (b *base) Descriptor() model.LiveModelDescriptor { return b.descriptor }
