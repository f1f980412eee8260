package httpapi

import "net/http"

// handleStageDiagnostics supplements §6 with a latency-introspection
// endpoint in the spirit of the teacher's turn-stage perf route: a rolling
// p50/p95/p99 window per adapter external-I/O stage (TTS synthesis, agent
// generation, full Speak dispatch), for operators who want more than
// Prometheus's own histogram buckets give them.
func (s *Server) handleStageDiagnostics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.StageSnapshot())
}
