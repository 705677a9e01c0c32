package api

import (
	"net/http"

	"github.com/dgallion1/sectionrank/internal/llm"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	stages := make(map[string]llm.StatsSnapshot)
	for _, stage := range s.stats.Stages() {
		stages[stage] = s.stats.StageSnapshot(stage)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": s.models,
		"stats":  s.stats.Snapshot(),
		"stages": stages,
	})
}
