package httpapi

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vtuberd/control-plane/internal/backend"
	"github.com/vtuberd/control-plane/internal/chatplatform"
	"github.com/vtuberd/control-plane/internal/model"
)

type expressionRequest struct {
	ExpressionID int    `json:"expressionId"`
	DurationMs   int    `json:"duration"`
	Priority     int    `json:"priority"`
	ClientUID    string `json:"client_uid"`
}

func (s *Server) handleExpression(w http.ResponseWriter, r *http.Request) {
	var req expressionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.DurationMs < 0 {
		respondError(w, http.StatusBadRequest, "invalid_duration", "duration must be >= 0")
		return
	}

	clientUID := resolveClientUID(r, req.ClientUID)
	adapter := s.sessions.GetOrDefault(clientUID).Adapter()
	result := adapter.TriggerExpression(r.Context(), req.ExpressionID, req.DurationMs, req.Priority)

	respondJSON(w, http.StatusOK, map[string]any{
		"status":        result.Status,
		"expression_id": req.ExpressionID,
		"result":        result,
	})
}

type motionRequest struct {
	MotionGroup string `json:"motionGroup"`
	MotionIndex int    `json:"motionIndex"`
	Loop        bool   `json:"loop"`
	Priority    int    `json:"priority"`
	ClientUID   string `json:"client_uid"`
}

func (s *Server) handleMotion(w http.ResponseWriter, r *http.Request) {
	var req motionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.MotionGroup) == "" {
		respondError(w, http.StatusBadRequest, "invalid_motion_group", "motionGroup is required")
		return
	}
	if req.MotionIndex < 0 {
		respondError(w, http.StatusBadRequest, "invalid_motion_index", "motionIndex must be >= 0")
		return
	}

	clientUID := resolveClientUID(r, req.ClientUID)
	adapter := s.sessions.GetOrDefault(clientUID).Adapter()
	result := adapter.TriggerMotion(r.Context(), req.MotionGroup, req.MotionIndex, req.Loop, req.Priority)

	respondJSON(w, http.StatusOK, map[string]any{
		"status":       result.Status,
		"motion_group": req.MotionGroup,
		"motion_index": req.MotionIndex,
		"result":       result,
	})
}

type motionSpecRequest struct {
	Group    string `json:"group"`
	Index    int    `json:"index"`
	Loop     bool   `json:"loop"`
	Priority int    `json:"priority"`
}

type autonomousSpeakRequest struct {
	Text        string              `json:"text"`
	Expressions []int               `json:"expressions"`
	Motions     []motionSpecRequest `json:"motions"`
	ClientUID   string              `json:"client_uid"`
	SkipTTS     bool                `json:"skip_tts"`
	Metadata    map[string]any      `json:"metadata"`
}

func (s *Server) handleAutonomousSpeak(w http.ResponseWriter, r *http.Request) {
	var req autonomousSpeakRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Text = strings.TrimSpace(req.Text)

	if req.Text == "" && len(req.Expressions) == 0 && len(req.Motions) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "at least one of text, expressions, or motions is required")
		return
	}
	if !req.SkipTTS && req.Text == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required when skip_tts is false")
		return
	}

	motions := make([]model.MotionSpec, 0, len(req.Motions))
	motionLabels := make([]string, 0, len(req.Motions))
	for _, m := range req.Motions {
		motions = append(motions, model.MotionSpec{Group: m.Group, Index: m.Index, Loop: m.Loop, Priority: m.Priority})
		motionLabels = append(motionLabels, m.Group+"/"+itoa(m.Index))
	}

	clientUID := resolveClientUID(r, req.ClientUID)
	adapter := s.sessions.GetOrDefault(clientUID).Adapter()
	result := adapter.Speak(r.Context(), req.Text, req.Expressions, motions, req.SkipTTS, backend.DisplayMeta{})

	respondJSON(w, http.StatusOK, map[string]any{
		"status":        result.Status,
		"message_id":    uuid.NewString(),
		"text":          req.Text,
		"expressions":   req.Expressions,
		"motions":       motionLabels,
		"tts_generated": result.Status == "success" && !req.SkipTTS && req.Text != "",
		"metadata":      req.Metadata,
	})
}

type autonomousGenerateRequest struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context"`
}

func (s *Server) handleAutonomousGenerate(w http.ResponseWriter, r *http.Request) {
	var req autonomousGenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "prompt is required")
		return
	}

	adapter := s.sessions.PresenterAdapter()
	text, err := adapter.GenerateText(r.Context(), req.Prompt, req.Context, nil)
	descriptor := s.sessions.Descriptor()
	metadata := map[string]any{"character": descriptor.CharacterName}
	if err != nil {
		metadata["error"] = err.Error()
		respondJSON(w, http.StatusOK, map[string]any{"text": "", "metadata": metadata})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"text": text, "metadata": metadata})
}

type autonomousControlRequest struct {
	Enabled     *bool    `json:"enabled"`
	MinInterval *float64 `json:"min_interval"`
	MaxInterval *float64 `json:"max_interval"`
}

func (s *Server) handleAutonomousControl(w http.ResponseWriter, r *http.Request) {
	var req autonomousControlRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if req.Enabled != nil {
		s.scheduler.SetEnabled(*req.Enabled)
	}

	if req.MinInterval != nil || req.MaxInterval != nil {
		snap := s.scheduler.Snapshot()
		min, max := snap.Min, snap.Max
		if req.MinInterval != nil {
			min = secondsToDuration(*req.MinInterval)
		}
		if req.MaxInterval != nil {
			max = secondsToDuration(*req.MaxInterval)
		}
		if err := s.scheduler.SetIntervals(min, max); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_interval", err.Error())
			return
		}
	}

	snap := s.scheduler.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"enabled":      snap.Enabled,
		"min_interval": snap.Min.Seconds(),
		"max_interval": snap.Max.Seconds(),
	})
}

func (s *Server) handleAutonomousStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.scheduler.Snapshot()
	descriptor := s.sessions.Descriptor()

	mode := "manual"
	if snap.Enabled {
		mode = "autonomous"
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"mode":                          mode,
		"active":                        snap.Enabled,
		"character":                     descriptor.CharacterName,
		"character_id":                  slugify(descriptor.CharacterName),
		"autonomous_generator_enabled":  snap.Enabled,
		"autonomous_generator_interval": (snap.Min.Seconds() + snap.Max.Seconds()) / 2,
		"min_interval_seconds":          snap.Min.Seconds(),
		"max_interval_seconds":          snap.Max.Seconds(),
		"auto_responses_enabled":        true,
	})
}

// descriptorProvider is promoted by every concrete backend.Adapter variant
// (via base.Descriptor) but not declared on the Adapter interface itself;
// probed here the same way session.go probes expressionExtractor.
type descriptorProvider interface {
	Descriptor() model.LiveModelDescriptor
}

// handleBackendState supplements §6 with the rust-backend original's
// get_character_state introspection: a session's current backend variant
// plus its active character descriptor, for UI/ops diagnostics.
func (s *Server) handleBackendState(w http.ResponseWriter, r *http.Request) {
	clientUID := resolveClientUID(r, r.URL.Query().Get("client_uid"))
	sess := s.sessions.GetOrDefault(clientUID)

	state := map[string]any{
		"client_uid": clientUID,
		"mode":       sess.Mode(),
	}
	if dp, ok := sess.Adapter().(descriptorProvider); ok {
		descriptor := dp.Descriptor()
		state["character"] = descriptor.CharacterName
		state["avatar"] = descriptor.AvatarReference
	}

	respondJSON(w, http.StatusOK, state)
}

type chatIngestRequest struct {
	UserID   string         `json:"user_id"`
	Username string         `json:"username"`
	Text     string         `json:"text"`
	Channel  string         `json:"channel"`
	Metadata map[string]any `json:"metadata"`
}

// handleChatIngest supplements §6: a generic webhook sink for platforms
// that push chat events over HTTP instead of holding a live connection,
// feeding chatplatform.WebhookSource which the ingest pipeline (C9) drains.
func (s *Server) handleChatIngest(w http.ResponseWriter, r *http.Request) {
	if s.webhook == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "chat webhook source not configured")
		return
	}

	var req chatIngestRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	err := s.webhook.Push(chatplatform.ChatMessage{
		UserID:   req.UserID,
		Username: req.Username,
		Text:     req.Text,
		Platform: chatplatform.PlatformWebhook,
		Channel:  req.Channel,
		Metadata: req.Metadata,
	})
	if err == chatplatform.ErrWebhookFull {
		respondError(w, http.StatusServiceUnavailable, "ingest_buffer_full", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "ingest_unavailable", err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}
