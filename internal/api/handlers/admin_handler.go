package handlers

import (
	"net/http"

	"github.com/snapsolve/snapsolve/internal/core/cache"
	"github.com/snapsolve/snapsolve/internal/services"
)

// AdminHandler exposes the operational surface: cache diagnostics, the
// subject-repair batch job, and the embedding backfill.
type AdminHandler struct {
	cache      *cache.TTLCache
	classifier *services.ClassifierService
	embeddings *services.EmbeddingService
	problems   *services.ProblemService
}

func NewAdminHandler(c *cache.TTLCache, classifier *services.ClassifierService, embeddings *services.EmbeddingService, problems *services.ProblemService) *AdminHandler {
	return &AdminHandler{cache: c, classifier: classifier, embeddings: embeddings, problems: problems}
}

func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *AdminHandler) CacheClear(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// RepairSubjects classifies every problem whose subject is still absent.
// Safe to re-run; a second run with no intervening writes classifies nothing.
func (h *AdminHandler) RepairSubjects(w http.ResponseWriter, r *http.Request) {
	result, err := h.classifier.RepairUnclassified(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// BackfillEmbeddings embeds problems that predate the similarity feature.
func (h *AdminHandler) BackfillEmbeddings(w http.ResponseWriter, r *http.Request) {
	result, err := h.embeddings.Backfill(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Stats reports record counts for the health/diagnostics surface.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	count, err := h.problems.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"problems": count})
}
