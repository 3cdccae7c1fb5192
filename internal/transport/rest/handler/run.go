package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"foodieqa/internal/cache"
	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
	"foodieqa/internal/service"
	"foodieqa/internal/transport/rest/middleware"
)

const defaultListLimit = 50

// RunHandler handles evaluation run endpoints
type RunHandler struct {
	manager  *service.RunManager
	progress cache.ProgressCache
}

// NewRunHandler creates a new run handler. progress may be nil.
func NewRunHandler(manager *service.RunManager, progress cache.ProgressCache) *RunHandler {
	return &RunHandler{manager: manager, progress: progress}
}

// List handles GET /v1/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	summaries, err := h.manager.Runs().ListSummaries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []*model.RunSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Start handles POST /v1/runs
func (h *RunHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req model.StartRunRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	summary, err := h.manager.StartRun(req)
	if errors.Is(err, service.ErrBadRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", "/v1/runs/"+summary.RunID)
	writeJSON(w, http.StatusAccepted, summary)
}

// Get handles GET /v1/runs/{runId}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summary(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Cancel handles DELETE /v1/runs/{runId}
func (h *RunHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	if err := h.manager.Cancel(runID); err != nil {
		writeError(w, http.StatusNotFound, "run is not active")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":     "cancelling",
		"reviewerId": middleware.GetReviewerID(r.Context()),
	})
}

// Answers handles GET /v1/runs/{runId}/answers
func (h *RunHandler) Answers(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summary(w, r)
	if !ok {
		return
	}
	answers, err := h.manager.Runs().GetAnswers(r.Context(), summary.RunID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if answers == nil {
		answers = []model.ModelAnswer{}
	}
	writeJSON(w, http.StatusOK, answers)
}

// Progress handles GET /v1/runs/{runId}/progress. Finished runs without
// live counters are answered from their summary.
func (h *RunHandler) Progress(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	if h.progress != nil {
		p, err := h.progress.Progress(r.Context(), runID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if p != nil {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}

	summary, ok := h.summary(w, r)
	if !ok {
		return
	}
	answered := summary.Report.Overall().Total + summary.Skipped + summary.Unmapped
	writeJSON(w, http.StatusOK, &cache.Progress{
		RunID:    summary.RunID,
		Answered: answered,
		Skipped:  summary.Skipped,
		Failed:   summary.Failed,
		Unmapped: summary.Unmapped,
		Report:   summary.Report,
	})
}

func (h *RunHandler) summary(w http.ResponseWriter, r *http.Request) (*model.RunSummary, bool) {
	runID := mux.Vars(r)["runId"]
	summary, err := h.manager.Runs().GetSummary(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	return summary, true
}

// VariantInfo describes one prompt variant
type VariantInfo struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Augmentation string `json:"augmentation"`
	Extraction   string `json:"extraction"`
}

// Variants handles GET /v1/variants
func (h *RunHandler) Variants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DescribeVariants(h.manager.Registry()))
}

// DescribeVariants lists the registry in id order
func DescribeVariants(reg *prompt.Registry) []VariantInfo {
	specs := reg.Specs()
	out := make([]VariantInfo, 0, len(specs))
	for _, s := range specs {
		out = append(out, VariantInfo{
			ID:           int(s.Variant),
			Name:         s.Name,
			Kind:         string(s.Kind),
			Augmentation: string(s.Augmentation),
			Extraction:   string(s.Extraction),
		})
	}
	return out
}
