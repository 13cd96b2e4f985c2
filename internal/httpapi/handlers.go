package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/domain"
)

// ErrorResponse is the error body for all API errors.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version   string             `json:"version"`
	Scheduler string             `json:"scheduler"`
	NextCheck *time.Time         `json:"next_check,omitempty"`
	Daemon    domain.DaemonState `json:"daemon"`
}

type handler struct {
	deps Deps
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:   h.deps.Version,
		Scheduler: string(h.deps.Scheduler.State()),
	}
	if next := h.deps.Scheduler.Next(); !next.IsZero() {
		resp.NextCheck = &next
	}
	if h.deps.State != nil {
		resp.Daemon = h.deps.State()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) check(w http.ResponseWriter, r *http.Request) {
	err := h.deps.Scheduler.TriggerAsync(h.deps.BaseContext)
	if errors.Is(err, domain.ErrCycleInProgress) {
		writeError(w, http.StatusConflict, "CHECK_RUNNING", "a stock check is already running")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "CHECK_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Settings.Load(r.Context()))
}

// putSettings applies a partial update: omitted fields keep their
// current value.
func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.deps.Settings.Load(r.Context())
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "body must be a settings JSON object")
		return
	}

	if err := h.deps.Settings.Save(r.Context(), settings); err != nil {
		h.deps.Logger.Error("failed to save settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SAVE_FAILED", "settings could not be stored")
		return
	}
	h.deps.Scheduler.Reconcile(h.deps.BaseContext, settings)

	writeJSON(w, http.StatusOK, settings)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, resp)
}
