package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/job"
	"backtest-lab/internal/metrics"
	"backtest-lab/internal/reporting"
	"backtest-lab/internal/storage"
)

// Submitter starts backtest jobs.
type Submitter interface {
	Submit(req domain.BacktestRequest) (string, error)
}

// Jobs is the read and control surface of the job registry.
type Jobs interface {
	Status(id string) (domain.BacktestStatus, error)
	Progress(id string) (domain.ProgressUpdate, error)
	Result(id string) ([]domain.Trade, error)
	Error(id string) (string, error)
	JobResult(id string) (*domain.JobResult, error)
	ListProgress() []domain.ProgressUpdate
	Cancel(id string) error
	Evict(id string) error
}

// Archive reads results of jobs no longer held by the registry.
type Archive interface {
	GetByJobID(ctx context.Context, jobID string) (*domain.JobResult, error)
}

// BacktestHandler serves the backtest job API.
type BacktestHandler struct {
	submitter Submitter
	jobs      Jobs
	archive   Archive // optional
	reports   *reporting.Generator
	logger    *zap.Logger
}

// NewBacktestHandler creates a BacktestHandler. archive may be nil.
func NewBacktestHandler(submitter Submitter, jobs Jobs, archive Archive, logger *zap.Logger) *BacktestHandler {
	return &BacktestHandler{
		submitter: submitter,
		jobs:      jobs,
		archive:   archive,
		reports:   reporting.NewGenerator(nil),
		logger:    logger.With(zap.String("handler", "backtest")),
	}
}

type runResponse struct {
	BacktestID string `json:"backtest_id"`
}

type listResponse struct {
	Backtests []domain.ProgressUpdate `json:"backtests"`
}

// Run validates the body and starts a job.
// POST /api/backtest/run
func (h *BacktestHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req domain.BacktestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, err := h.submitter.Submit(req)
	if err != nil {
		h.logger.Warn("submit backtest failed", zap.Error(err))
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, runResponse{BacktestID: id})
}

// List returns the progress of every job in creation order.
// GET /api/backtest
func (h *BacktestHandler) List(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, listResponse{Backtests: h.jobs.ListProgress()})
}

// Get returns the tagged BacktestStatus.
// GET /api/backtest/{id}
func (h *BacktestHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.jobs.Status(pathID(r))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Progress returns the ProgressUpdate projection.
// GET /api/backtest/status/{id}
func (h *BacktestHandler) Progress(w http.ResponseWriter, r *http.Request) {
	u, err := h.jobs.Progress(pathID(r))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Result returns the trades of a completed job.
// GET /api/backtest/result/{id}
func (h *BacktestHandler) Result(w http.ResponseWriter, r *http.Request) {
	trades, err := h.jobs.Result(pathID(r))
	if err != nil {
		writeJobError(w, err)
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, trades)
}

// Error returns the message of a failed job.
// GET /api/backtest/error/{id}
func (h *BacktestHandler) Error(w http.ResponseWriter, r *http.Request) {
	msg, err := h.jobs.Error(pathID(r))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"error": msg})
}

// Summary returns trade statistics of a completed job.
// GET /api/backtest/summary/{id}
func (h *BacktestHandler) Summary(w http.ResponseWriter, r *http.Request) {
	res, err := h.completedResult(r.Context(), pathID(r))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics.Summarize(res.Trades))
}

// Report renders a completed job as Markdown (default) or CSV.
// GET /api/backtest/report/{id}?format=md|csv
func (h *BacktestHandler) Report(w http.ResponseWriter, r *http.Request) {
	res, err := h.completedResult(r.Context(), pathID(r))
	if err != nil {
		writeJobError(w, err)
		return
	}
	rep := h.reports.Build(res)

	switch format := r.URL.Query().Get("format"); format {
	case "", "md", "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(reporting.RenderMarkdown(rep)))
	case "csv":
		body, err := reporting.RenderCSV(rep)
		if err != nil {
			h.logger.Error("render csv failed", zap.String("job_id", res.JobID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to render report")
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+res.JobID+`.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	default:
		writeError(w, http.StatusBadRequest, "unknown format "+format+" (valid: md, csv)")
	}
}

// Cancel stops a running job.
// POST /api/backtest/{id}/cancel
func (h *BacktestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Cancel(pathID(r)); err != nil {
		writeJobError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Delete evicts a terminal job.
// DELETE /api/backtest/{id}
func (h *BacktestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.jobs.Evict(pathID(r)); err != nil {
		writeJobError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// completedResult returns the result of a completed job, falling back to the
// archive once the registry has evicted it.
func (h *BacktestHandler) completedResult(ctx context.Context, id string) (*domain.JobResult, error) {
	res, err := h.jobs.JobResult(id)
	if errors.Is(err, job.ErrNotFound) && h.archive != nil {
		res, err = h.archive.GetByJobID(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			err = job.ErrNotFound
		}
	}
	if err != nil {
		return nil, err
	}
	if res.Status != domain.StatusLabelCompleted {
		return nil, job.ErrNotCompleted
	}
	return res, nil
}
