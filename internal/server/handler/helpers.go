package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"backtest-lab/internal/job"
	"backtest-lab/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// writeJSON marshals v and writes it with the given status code.
// A marshal failure becomes a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps registry and storage errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, job.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, job.ErrNotCompleted),
		errors.Is(err, job.ErrNotFailed),
		errors.Is(err, job.ErrJobRunning),
		errors.Is(err, job.ErrJobAlreadyTerminal):
		return http.StatusConflict
	case errors.Is(err, job.ErrRegistryClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJobError writes err with the status statusFor picks.
func writeJobError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// pathID returns the {id} path value.
func pathID(r *http.Request) string {
	return r.PathValue("id")
}
