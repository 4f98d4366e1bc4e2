package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crewdesk/crewdesk/services/schedule-service/internal/availability"
	"github.com/crewdesk/crewdesk/services/schedule-service/internal/dragsession"
	"github.com/crewdesk/crewdesk/services/schedule-service/internal/interval"
	"github.com/crewdesk/crewdesk/services/schedule-service/internal/storage"
	"github.com/crewdesk/crewdesk/services/schedule-service/internal/timeline"
)

const defaultWindowDays = 14

type ScheduleHandler struct {
	repo     *storage.ScheduleRepository
	resolver *availability.Resolver
	logger   *slog.Logger
}

func NewScheduleHandler(repo *storage.ScheduleRepository, resolver *availability.Resolver, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{repo: repo, resolver: resolver, logger: logger}
}

type timelineItem struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Status        string   `json:"status,omitempty"`
	Start         string   `json:"start"`
	End           string   `json:"end"`
	SourceStart   string   `json:"source_start"`
	SourceEnd     string   `json:"source_end"`
	IsRecurring   bool     `json:"is_recurring"`
	CanSupport    bool     `json:"can_support"`
	Track         int      `json:"track"`
	LeftPct       float64  `json:"left_pct"`
	WidthPct      float64  `json:"width_pct"`
	HasOverlap    bool     `json:"has_overlap"`
	OverlapTitles []string `json:"overlap_titles,omitempty"`
}

type timelineResponse struct {
	WorkerID    string         `json:"worker_id"`
	WindowStart string         `json:"window_start"`
	WindowDays  int            `json:"window_days"`
	TrackCount  int            `json:"track_count"`
	Items       []timelineItem `json:"items"`
}

type eligibilityResponse struct {
	WorkerID      string `json:"worker_id"`
	Start         string `json:"start"`
	End           string `json:"end"`
	CanSupportNow bool   `json:"can_support_now"`
}

type personalTaskRequest struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Start         string `json:"start"`
	End           string `json:"end"`
	IsRecurring   bool   `json:"is_recurring"`
	RecurringDays []int  `json:"recurring_days"`
	CanSupport    bool   `json:"can_support"`
	IsFullDay     bool   `json:"is_full_day"`
	Status        string `json:"status"`
}

type personalTaskItem struct {
	ID            string `json:"id"`
	OwnerID       string `json:"owner_id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Start         string `json:"start"`
	End           string `json:"end"`
	IsRecurring   bool   `json:"is_recurring"`
	RecurringDays []int  `json:"recurring_days,omitempty"`
	CanSupport    bool   `json:"can_support"`
	IsFullDay     bool   `json:"is_full_day"`
	Status        string `json:"status,omitempty"`
}

type rescheduleRequest struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Timeline serves the laid-out schedule window for one worker.
func (h *ScheduleHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	workerID := strings.TrimSpace(r.URL.Query().Get("worker_id"))
	if workerID == "" {
		workerID = strings.TrimSpace(r.Header.Get("X-User-Id"))
	}
	if workerID == "" {
		http.Error(w, "worker_id required", http.StatusBadRequest)
		return
	}

	windowStart, err := parseDay(r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, "invalid start date", http.StatusBadRequest)
		return
	}
	days := defaultWindowDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 92 {
			http.Error(w, "days must be between 1 and 92", http.StatusBadRequest)
			return
		}
		days = n
	}

	occs, err := h.resolver.Timeline(r.Context(), workerID, windowStart, days)
	if err != nil {
		var fe *availability.FetchError
		if errors.As(err, &fe) {
			h.logger.Error("timeline fetch failed", "worker_id", workerID, "err", err)
			http.Error(w, "failed to load schedule", http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	layout := timeline.Arrange(occs, windowStart, days)
	items := make([]timelineItem, 0, len(layout.Items))
	for _, it := range layout.Items {
		src := it.Occurrence.Source
		items = append(items, timelineItem{
			ID:            src.ID,
			Kind:          string(src.Kind),
			Title:         src.Title,
			Description:   src.Description,
			Status:        src.Status,
			Start:         formatDay(it.Occurrence.Start),
			End:           formatDay(it.Occurrence.End),
			SourceStart:   formatDay(src.Start),
			SourceEnd:     formatDay(src.End),
			IsRecurring:   src.IsRecurring,
			CanSupport:    src.CanSupport,
			Track:         it.Track,
			LeftPct:       it.LeftPct,
			WidthPct:      it.WidthPct,
			HasOverlap:    it.HasOverlap,
			OverlapTitles: it.OverlapTitles,
		})
	}

	writeJSON(w, http.StatusOK, timelineResponse{
		WorkerID:    workerID,
		WindowStart: formatDay(layout.WindowStart),
		WindowDays:  layout.WindowDays,
		TrackCount:  layout.TrackCount,
		Items:       items,
	})
}

// Eligibility answers the "can support now" question for one worker and a
// candidate date range.
func (h *ScheduleHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	workerID := strings.TrimSpace(r.URL.Query().Get("worker_id"))
	if workerID == "" {
		http.Error(w, "worker_id required", http.StatusBadRequest)
		return
	}
	qStart, err := parseDay(r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, "invalid start date", http.StatusBadRequest)
		return
	}
	qEnd, err := parseDay(r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, "invalid end date", http.StatusBadRequest)
		return
	}

	ok, err := h.resolver.CanSupportNow(r.Context(), workerID, qStart, qEnd)
	if err != nil {
		if errors.Is(err, availability.ErrInvalidRange) {
			http.Error(w, "end must not precede start", http.StatusBadRequest)
			return
		}
		h.logger.Error("eligibility check failed", "worker_id", workerID, "err", err)
		http.Error(w, "failed to check eligibility", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, eligibilityResponse{
		WorkerID:      workerID,
		Start:         formatDay(qStart),
		End:           formatDay(qEnd),
		CanSupportNow: ok,
	})
}

// ListPersonalTasks returns the caller's own personal tasks, unexpanded.
func (h *ScheduleHandler) ListPersonalTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID := callerID(r)
	if ownerID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	tasks, err := h.repo.PersonalTasksForWorker(r.Context(), ownerID)
	if err != nil {
		http.Error(w, "failed to list personal tasks", http.StatusInternalServerError)
		return
	}

	items := make([]personalTaskItem, 0, len(tasks))
	for _, iv := range tasks {
		items = append(items, toPersonalTaskItem(iv))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ScheduleHandler) CreatePersonalTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID := callerID(r)
	if ownerID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	iv, ok := h.decodePersonalTask(w, r, ownerID)
	if !ok {
		return
	}

	id, err := h.repo.CreatePersonalTask(r.Context(), iv)
	if err != nil {
		http.Error(w, "failed to create personal task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *ScheduleHandler) UpdatePersonalTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID := callerID(r)
	if ownerID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	iv, ok := h.decodePersonalTask(w, r, ownerID)
	if !ok {
		return
	}
	if iv.ID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdatePersonalTask(r.Context(), iv); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "personal task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to update personal task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": iv.ID, "status": "updated"})
}

func (h *ScheduleHandler) DeletePersonalTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerID := callerID(r)
	if ownerID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ID) == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeletePersonalTask(r.Context(), strings.TrimSpace(req.ID), ownerID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "personal task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete personal task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ID, "status": "deleted"})
}

// Reschedule is the commit path for a finished drag/resize gesture: the
// client resolved the pointer math, the server re-applies the same
// ownership and normalization rules before writing.
func (h *ScheduleHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := callerID(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	if req.ID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	newStart, err := parseDay(req.Start)
	if err != nil {
		http.Error(w, "invalid start date", http.StatusBadRequest)
		return
	}
	newEnd, err := parseDay(req.End)
	if err != nil {
		http.Error(w, "invalid end date", http.StatusBadRequest)
		return
	}

	iv, err := h.repo.GetPersonalTask(r.Context(), req.ID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "personal task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load personal task", http.StatusInternalServerError)
		return
	}

	occ := interval.Occurrence{Source: iv, Start: iv.Start, End: iv.End}
	err = dragsession.Commit(r.Context(), repoCommitter{repo: h.repo, ownerID: userID}, occ, userID, newStart, newEnd)
	if err != nil {
		if errors.Is(err, dragsession.ErrNotDraggable) {
			http.Error(w, "personal task cannot be rescheduled by this user", http.StatusForbidden)
			return
		}
		h.logger.Error("reschedule commit failed", "id", req.ID, "err", err)
		http.Error(w, "failed to reschedule personal task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ID, "status": "rescheduled"})
}

type repoCommitter struct {
	repo    *storage.ScheduleRepository
	ownerID string
}

func (c repoCommitter) UpdateDates(ctx context.Context, id string, start, end time.Time) error {
	return c.repo.UpdatePersonalTaskDates(ctx, id, c.ownerID, start, end)
}

func (h *ScheduleHandler) decodePersonalTask(w http.ResponseWriter, r *http.Request, ownerID string) (interval.Interval, bool) {
	var req personalTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return interval.Interval{}, false
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		http.Error(w, "title required", http.StatusBadRequest)
		return interval.Interval{}, false
	}
	start, err := parseDay(req.Start)
	if err != nil {
		http.Error(w, "invalid start date", http.StatusBadRequest)
		return interval.Interval{}, false
	}
	end, err := parseDay(req.End)
	if err != nil {
		http.Error(w, "invalid end date", http.StatusBadRequest)
		return interval.Interval{}, false
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = "active"
	}

	iv := interval.Interval{
		ID:            strings.TrimSpace(req.ID),
		OwnerID:       ownerID,
		Kind:          interval.KindPersonalTask,
		Start:         start,
		End:           end,
		IsRecurring:   req.IsRecurring,
		RecurringDays: req.RecurringDays,
		CanSupport:    req.CanSupport,
		IsFullDay:     req.IsFullDay,
		Status:        status,
	}
	iv.Title = req.Title
	iv.Description = strings.TrimSpace(req.Description)

	if err := iv.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return interval.Interval{}, false
	}
	return iv, true
}

func toPersonalTaskItem(iv interval.Interval) personalTaskItem {
	return personalTaskItem{
		ID:            iv.ID,
		OwnerID:       iv.OwnerID,
		Title:         iv.Title,
		Description:   iv.Description,
		Start:         formatDay(iv.Start),
		End:           formatDay(iv.End),
		IsRecurring:   iv.IsRecurring,
		RecurringDays: iv.RecurringDays,
		CanSupport:    iv.CanSupport,
		IsFullDay:     iv.IsFullDay,
		Status:        iv.Status,
	}
}

func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-User-Id"))
}

func parseDay(raw string) (time.Time, error) {
	return time.ParseInLocation(interval.DateLayout, strings.TrimSpace(raw), time.UTC)
}

func formatDay(t time.Time) string {
	return t.Format(interval.DateLayout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
