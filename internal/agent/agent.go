// Package agent defines the external text-generation collaborator used by
// the backend adapters, the response selector, and the autonomous
// scheduler. It is deliberately thin: the core never runs an LLM itself.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Agent generates text for a prompt plus optional free-form context (e.g.
// platform, username, persona hints).
type Agent interface {
	GenerateText(ctx context.Context, prompt string, generationContext map[string]any) (string, error)
}

// StreamingAgent additionally exposes incremental generation for callers
// that need to forward chunks to a renderer as they arrive (C5's Internal
// variant streams text-generation-chunk frames).
type StreamingAgent interface {
	Agent
	StreamText(ctx context.Context, prompt string, generationContext map[string]any, onChunk func(chunk string) error) (string, error)
}

// Config selects and configures an Agent implementation.
type Config struct {
	Mode    string // "mock" | "http" | "" (defaults to mock)
	HTTPURL string
}

// NewAgent builds an Agent from cfg, using the mock when no mode is given.
// The http mode without an HTTPURL, and any unknown mode, return an error.
func NewAgent(cfg Config) (Agent, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "mock"
	}

	switch mode {
	case "mock":
		return NewMockAgent(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("agent HTTP url is required for http mode")
		}
		return NewHTTPAgent(cfg.HTTPURL), nil
	default:
		return nil, fmt.Errorf("unsupported agent mode %q", cfg.Mode)
	}
}
