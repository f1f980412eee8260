package backend

import (
	"context"

	"github.com/vtuberd/control-plane/internal/agent"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/tts"
)

// InternalAdapter is the default variant: spoken text goes through TTS
// before reaching the renderer, and GenerateText delegates to the Agent.
type InternalAdapter struct {
	base
}

func NewInternalAdapter(outbound Outbound, descriptor model.LiveModelDescriptor, synth tts.Synthesizer, ag agent.Agent, metrics *observability.Metrics) *InternalAdapter {
	return &InternalAdapter{base{outbound: outbound, descriptor: descriptor, synth: synth, ag: ag, metrics: metrics}}
}

func (a *InternalAdapter) Variant() string { return VariantInternal }

func (a *InternalAdapter) TriggerExpression(ctx context.Context, expressionID, durationMs, priority int) model.Result {
	return a.triggerExpression(ctx, expressionID, durationMs, priority, false)
}

func (a *InternalAdapter) TriggerMotion(ctx context.Context, group string, index int, loop bool, priority int) model.Result {
	return a.triggerMotion(ctx, group, index, loop, priority)
}

func (a *InternalAdapter) Speak(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool, meta DisplayMeta) model.Result {
	return a.speak(ctx, text, expressions, motions, skipTTS, meta, false)
}

func (a *InternalAdapter) GenerateText(ctx context.Context, prompt string, generationContext map[string]any, onChunk func(string) error) (string, error) {
	return a.generateText(ctx, prompt, generationContext, onChunk)
}
