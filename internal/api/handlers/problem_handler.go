package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	middleware "github.com/snapsolve/snapsolve/internal/api/middlewares"
	"github.com/snapsolve/snapsolve/internal/core"
	"github.com/snapsolve/snapsolve/internal/models"
	"github.com/snapsolve/snapsolve/internal/services"
)

type ProblemHandler struct {
	analysis   *services.AnalysisService
	problems   *services.ProblemService
	embeddings *services.EmbeddingService
	maxBytes   int64
}

func NewProblemHandler(analysis *services.AnalysisService, problems *services.ProblemService, embeddings *services.EmbeddingService, maxBytes int64) *ProblemHandler {
	return &ProblemHandler{analysis: analysis, problems: problems, embeddings: embeddings, maxBytes: maxBytes}
}

// Analyze handles the multipart upload and runs the analysis pipeline.
func (h *ProblemHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}

	// Hard cap on the request body: image ceiling plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeError(w, fmt.Errorf("%w: upload too large or malformed", core.ErrValidation))
		return
	}
	// Transient form storage is released on every exit path.
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, fmt.Errorf("%w: missing image file", core.ErrValidation))
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("%w: unreadable image file", core.ErrValidation))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(image)
	}
	question := r.FormValue("question")

	result, err := h.analysis.Analyze(r.Context(), userID, image, contentType, header.Filename, question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// List returns all problems, or only the caller's with ?mine=true.
func (h *ProblemHandler) List(w http.ResponseWriter, r *http.Request) {
	var forUser *int64
	if r.URL.Query().Get("mine") == "true" {
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeError(w, core.ErrAuthRequired)
			return
		}
		forUser = &userID
	}

	problems, err := h.problems.List(r.Context(), forUser)
	if err != nil {
		writeError(w, err)
		return
	}
	if problems == nil {
		problems = []models.Problem{}
	}
	writeJSON(w, http.StatusOK, problems)
}

func (h *ProblemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.problems.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type ratingRequest struct {
	Rating models.Rating `json:"rating"`
}

// SetRating is owner-exclusive.
func (h *ProblemHandler) SetRating(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req ratingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.problems.SetRating(r.Context(), id, req.Rating, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "rating": req.Rating})
}

// Delete removes the caller's own problem and its archived upload.
func (h *ProblemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, core.ErrAuthRequired)
		return
	}
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.analysis.Delete(r.Context(), id, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "deleted"})
}

// Subjects returns the static enumeration.
func (h *ProblemHandler) Subjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"subjects": models.AllSubjects})
}

// Similar lists the closest problems by embedding distance.
func (h *ProblemHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	problems, err := h.embeddings.Similar(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if problems == nil {
		problems = []models.Problem{}
	}
	writeJSON(w, http.StatusOK, problems)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", core.ErrValidation)
	}
	return id, nil
}
