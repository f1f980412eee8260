package backend

import (
	"context"
	"time"

	"github.com/vtuberd/control-plane/internal/agent"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/protocol"
	"github.com/vtuberd/control-plane/internal/tts"
)

// Broadcaster delivers a frame to every session matching predicate, using a
// best-effort (try-send) enqueue per §4.6's backpressure rules for
// broadcast paths.
type Broadcaster interface {
	Broadcast(frame any, predicate func(mode string) bool)
}

// AutonomousAdapter is used by the scheduler (C8) and the chat ingest
// pipeline's presenter session (C9). TriggerExpression/TriggerMotion still
// target the adapter's own session outbound, but Speak broadcasts to every
// session whose mode is Autonomous, plus an informational autonomous-chat
// frame for UI chat display.
type AutonomousAdapter struct {
	base
	broadcaster Broadcaster
}

func NewAutonomousAdapter(outbound Outbound, broadcaster Broadcaster, descriptor model.LiveModelDescriptor, synth tts.Synthesizer, ag agent.Agent, metrics *observability.Metrics) *AutonomousAdapter {
	return &AutonomousAdapter{
		base:        base{outbound: outbound, descriptor: descriptor, synth: synth, ag: ag, metrics: metrics},
		broadcaster: broadcaster,
	}
}

func (a *AutonomousAdapter) Variant() string { return VariantAutonomous }

func (a *AutonomousAdapter) TriggerExpression(ctx context.Context, expressionID, durationMs, priority int) model.Result {
	return a.triggerExpression(ctx, expressionID, durationMs, priority, false)
}

func (a *AutonomousAdapter) TriggerMotion(ctx context.Context, group string, index int, loop bool, priority int) model.Result {
	return a.triggerMotion(ctx, group, index, loop, priority)
}

func (a *AutonomousAdapter) Speak(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool, meta DisplayMeta) model.Result {
	dispatchStart := time.Now()
	defer func() { a.metrics.ObserveStage(observability.StageSpeakDispatch, time.Since(dispatchStart)) }()

	var audio tts.Result
	if !skipTTS && a.synth != nil && text != "" {
		synthStart := time.Now()
		var err error
		audio, err = a.synth.Synthesize(ctx, text)
		a.metrics.ObserveStage(observability.StageTTSSynthesize, time.Since(synthStart))
		if err != nil {
			a.metrics.ObserveStageIndicator("tts_error")
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
		Actions: model.Actions{Expressions: expressions, Motions: motions},
	}

	isAutonomous := func(mode string) bool { return mode == VariantAutonomous }
	a.broadcaster.Broadcast(protocol.NewAudioFrame(payload), isAutonomous)
	for _, m := range motions {
		if !a.descriptor.HasMotion(m.Group, m.Index) {
			continue
		}
		a.broadcaster.Broadcast(protocol.NewMotionFrame(model.MotionCommand{
			Group:    m.Group,
			Index:    m.Index,
			Loop:     m.Loop,
			Priority: m.Priority,
		}), isAutonomous)
	}

	a.broadcaster.Broadcast(protocol.AutonomousChat{Type: protocol.TypeAutonomousChat, Text: text}, func(string) bool { return true })

	return model.Success()
}

func (a *AutonomousAdapter) GenerateText(ctx context.Context, prompt string, generationContext map[string]any, onChunk func(string) error) (string, error) {
	return a.generateText(ctx, prompt, generationContext, onChunk)
}
