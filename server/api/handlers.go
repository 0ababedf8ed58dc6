package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/planner/comms"
	"github.com/GoCodeAlone/planner/planner"
	"github.com/GoCodeAlone/planner/task"
)

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Planner Planner
	Bus     comms.Bus
	Logger  *slog.Logger
	Version string
	StartAt time.Time
	Now     func() time.Time // nil means time.Now
}

// RegisterRoutes registers all protected API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.addTask)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", h.toggleTask)
	mux.HandleFunc("POST /api/tasks/clear-completed", h.clearCompleted)
	mux.HandleFunc("POST /api/tasks/clear", h.clearAll)
	mux.HandleFunc("POST /api/tasks/save", h.save)

	mux.HandleFunc("GET /api/draft", h.getDraft)
	mux.HandleFunc("PUT /api/draft", h.putDraft)
	mux.HandleFunc("DELETE /api/draft", h.deleteDraft)
	mux.HandleFunc("POST /api/draft/submit", h.submitDraft)

	mux.HandleFunc("GET /api/calendar", h.calendar)
	mux.HandleFunc("GET /api/upcoming", h.upcoming)

	mux.HandleFunc("GET /api/settings", h.getSettings)
	mux.HandleFunc("PUT /api/settings", h.putSettings)

	mux.HandleFunc("GET /api/history", h.history)
	mux.HandleFunc("GET /api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writePlannerError maps controller errors to HTTP statuses.
func (h *Handlers) writePlannerError(w http.ResponseWriter, err error) {
	var verr *task.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": verr.Reasons()})
	case errors.Is(err, planner.ErrNotSignedIn):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, planner.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, planner.ErrSaveInProgress), errors.Is(err, planner.ErrLoading):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.Logger.Error("planner request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Planner.Tasks())
}

func (h *Handlers) addTask(w http.ResponseWriter, r *http.Request) {
	var d task.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := h.Planner.AddTask(r.Context(), d)
	if err != nil {
		h.writePlannerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) toggleTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Planner.ToggleCompletion(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writePlannerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) clearCompleted(w http.ResponseWriter, r *http.Request) {
	n, err := h.Planner.ClearCompleted(r.Context())
	if err != nil {
		h.writePlannerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (h *Handlers) clearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.Planner.ClearAll(r.Context()); err != nil {
		h.writePlannerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) save(w http.ResponseWriter, r *http.Request) {
	err := h.Planner.SaveAll(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.Planner.Status())
	case errors.Is(err, planner.ErrNotSignedIn), errors.Is(err, planner.ErrSaveInProgress),
		errors.Is(err, planner.ErrLoading):
		h.writePlannerError(w, err)
	default:
		// The store rejected the write; local changes are kept.
		h.Logger.Error("save tasks", slog.Any("err", err))
		writeError(w, http.StatusBadGateway, "could not save tasks: "+err.Error())
	}
}

// --- Draft handlers ---

func (h *Handlers) getDraft(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Planner.Draft())
}

func (h *Handlers) putDraft(w http.ResponseWriter, r *http.Request) {
	var d task.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.Planner.SetDraft(d)
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) deleteDraft(w http.ResponseWriter, _ *http.Request) {
	h.Planner.ClearDraft()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) submitDraft(w http.ResponseWriter, r *http.Request) {
	t, err := h.Planner.SubmitDraft(r.Context())
	if err != nil {
		h.writePlannerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// --- Calendar handlers ---

type monthRef struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

type calendarResponse struct {
	task.Month
	Prev monthRef `json:"prev"`
	Next monthRef `json:"next"`
}

func (h *Handlers) calendar(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	year, month := now.Year(), now.Month()

	q := r.URL.Query()
	if y := q.Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil || n < 1 || n > 9999 {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		year = n
	}
	if m := q.Get("month"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, "invalid month")
			return
		}
		month = time.Month(n)
	}

	resp := calendarResponse{Month: h.Planner.Calendar(year, month)}
	resp.Prev.Year, resp.Prev.Month = task.PrevMonth(year, month)
	resp.Next.Year, resp.Next.Month = task.NextMonth(year, month)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) upcoming(w http.ResponseWriter, r *http.Request) {
	limit := task.DefaultUpcomingLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, h.Planner.Upcoming(limit))
}

// --- Settings handlers ---

func (h *Handlers) getSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Planner.Settings())
}

func (h *Handlers) putSettings(w http.ResponseWriter, r *http.Request) {
	s := h.Planner.Settings()
	// Decode partial update over current settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	h.Planner.UpdateSettings(s)
	writeJSON(w, http.StatusOK, s)
}

// --- History / status / version ---

func (h *Handlers) history(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	events, err := h.Bus.History(topic, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []*comms.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status  string         `json:"status"`
	Version string         `json:"version"`
	Uptime  string         `json:"uptime"`
	Planner planner.Status `json:"planner"`
}

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:  "ok",
		Version: h.Version,
		Planner: h.Planner.Status(),
	}
	if !h.StartAt.IsZero() {
		resp.Uptime = h.now().Sub(h.StartAt).Truncate(time.Second).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusHandler returns the status handler function for external registration.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
