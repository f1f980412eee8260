package backend

import (
	"context"

	"github.com/vtuberd/control-plane/internal/agent"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/tts"
)

// ExternalAPIAdapter accepts pre-generated text for Speak (the caller
// already ran the text through whatever external pipeline it wants);
// expressions and motions are still dispatched regardless of skipTTS.
type ExternalAPIAdapter struct {
	base
}

func NewExternalAPIAdapter(outbound Outbound, descriptor model.LiveModelDescriptor, synth tts.Synthesizer, ag agent.Agent, metrics *observability.Metrics) *ExternalAPIAdapter {
	return &ExternalAPIAdapter{base{outbound: outbound, descriptor: descriptor, synth: synth, ag: ag, metrics: metrics}}
}

func (a *ExternalAPIAdapter) Variant() string { return VariantExternalAPI }

func (a *ExternalAPIAdapter) TriggerExpression(ctx context.Context, expressionID, durationMs, priority int) model.Result {
	return a.triggerExpression(ctx, expressionID, durationMs, priority, false)
}

func (a *ExternalAPIAdapter) TriggerMotion(ctx context.Context, group string, index int, loop bool, priority int) model.Result {
	return a.triggerMotion(ctx, group, index, loop, priority)
}

func (a *ExternalAPIAdapter) Speak(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool, meta DisplayMeta) model.Result {
	return a.speak(ctx, text, expressions, motions, skipTTS, meta, false)
}

func (a *ExternalAPIAdapter) GenerateText(ctx context.Context, prompt string, generationContext map[string]any, onChunk func(string) error) (string, error) {
	return a.generateText(ctx, prompt, generationContext, onChunk)
}
