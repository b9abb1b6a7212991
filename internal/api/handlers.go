package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/wonny/sentinel/backend/internal/external/kis"
	"github.com/wonny/sentinel/backend/internal/scheduler"
	"github.com/wonny/sentinel/backend/pkg/logger"
)

// tokenStatuser is the token surface the handlers need.
type tokenStatuser interface {
	Status(ctx context.Context) kis.TokenStatus
}

// jobManager is the scheduler surface the handlers need.
type jobManager interface {
	Jobs() []string
	History(name string) []scheduler.RunRecord
	RunNow(name string) error
}

// Handlers serves the read-only pipeline API.
type Handlers struct {
	exportDir string
	tokens    tokenStatuser // nil이면 토큰 상태 미제공
	jobs      jobManager    // nil이면 잡 API 미제공
	logger    *logger.Logger
}

// NewHandlers builds the handler set over the export directory.
func NewHandlers(exportDir string, tokens tokenStatuser, jobs jobManager, log *logger.Logger) *Handlers {
	return &Handlers{exportDir: exportDir, tokens: tokens, jobs: jobs, logger: log}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Latest serves the most recent pipeline snapshot.
func (h *Handlers) Latest(w http.ResponseWriter, r *http.Request) {
	h.serveExportFile(w, filepath.Join(h.exportDir, "latest.json"))
}

// Verdicts serves only the verdict map from the latest snapshot.
func (h *Handlers) Verdicts(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(filepath.Join(h.exportDir, "latest.json"))
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "no pipeline results yet")
			return
		}
		h.logger.WithError(err).Error("Failed to read latest snapshot")
		writeError(w, http.StatusInternalServerError, "failed to read export file")
		return
	}

	var snap struct {
		GeneratedAt string          `json:"generated_at"`
		Verdicts    json.RawMessage `json:"verdicts"`
		RuleOrder   json.RawMessage `json:"rule_order"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		h.logger.WithError(err).Error("Malformed latest snapshot")
		writeError(w, http.StatusInternalServerError, "malformed snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HistoryIndex serves history-index.json.
func (h *Handlers) HistoryIndex(w http.ResponseWriter, r *http.Request) {
	h.serveExportFile(w, filepath.Join(h.exportDir, "history-index.json"))
}

// 히스토리 파일명만 통과: 2026-08-28_0730.json
var historyNameRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{4}\.json$`)

// HistoryFile serves one archived snapshot by name.
func (h *Handlers) HistoryFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !historyNameRe.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid history file name")
		return
	}
	h.serveExportFile(w, filepath.Join(h.exportDir, "history", name))
}

// TokenStatus reports the KIS access token state.
func (h *Handlers) TokenStatus(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		writeError(w, http.StatusServiceUnavailable, "token manager not configured")
		return
	}
	writeJSON(w, http.StatusOK, h.tokens.Status(r.Context()))
}

// Jobs lists registered scheduler jobs.
func (h *Handlers) Jobs(w http.ResponseWriter, _ *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": h.jobs.Jobs()})
}

// JobHistory returns recent run records of one job.
func (h *Handlers) JobHistory(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	name := mux.Vars(r)["name"]
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":     name,
		"history": h.jobs.History(name),
	})
}

// RunJob triggers a job outside its schedule.
func (h *Handlers) RunJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	name := mux.Vars(r)["name"]
	if err := h.jobs.RunNow(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job": name, "status": "started"})
}

// serveExportFile streams a pre-rendered JSON file.
func (h *Handlers) serveExportFile(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, http.StatusNotFound, "no pipeline results yet")
			return
		}
		h.logger.WithError(err).WithField("path", path).Error("Failed to read export file")
		writeError(w, http.StatusInternalServerError, "failed to read export file")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
