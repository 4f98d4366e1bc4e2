package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/eligibility"
	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/model"
	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/outbox"
	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/storage"
	"github.com/jackc/pgx/v5"
)

const dateLayout = "2006-01-02"

type TaskHandler struct {
	tasks       *storage.TaskRepository
	bookings    *storage.BookingRepository
	outboxRepo  *outbox.Repository
	eligibility eligibility.Provider
	logger      *slog.Logger
}

func NewTaskHandler(tasks *storage.TaskRepository, bookings *storage.BookingRepository, outboxRepo *outbox.Repository, eligibilityProvider eligibility.Provider, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:       tasks,
		bookings:    bookings,
		outboxRepo:  outboxRepo,
		eligibility: eligibilityProvider,
		logger:      logger,
	}
}

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Department  string   `json:"department"`
	Priority    string   `json:"priority"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	MaxWorkers  int      `json:"max_workers"`
	Skills      []string `json:"skills"`
}

type taskItem struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Department  string   `json:"department"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	CreatedBy   string   `json:"created_by"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	MaxWorkers  int      `json:"max_workers"`
	Skills      []string `json:"skills,omitempty"`
	ApprovedBy  string   `json:"approved_by,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
	CreatedAt   string   `json:"created_at"`
}

type assignRequest struct {
	TaskID      string `json:"task_id"`
	Assignments []struct {
		WorkerID  string `json:"worker_id"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	} `json:"assignments"`
}

type volunteerRequest struct {
	TaskID string `json:"task_id"`
	Note   string `json:"note"`
}

type candidateItem struct {
	WorkerID      string   `json:"worker_id"`
	Note          string   `json:"note,omitempty"`
	CanSupportNow *bool    `json:"can_support_now,omitempty"`
	AvgRating     *float64 `json:"avg_rating,omitempty"`
	ReviewCount   int      `json:"review_count,omitempty"`
	VolunteeredAt string   `json:"volunteered_at"`
}

type progressRequest struct {
	TaskID  string `json:"task_id"`
	Percent int    `json:"percent"`
	Note    string `json:"note"`
}

type reviewRequest struct {
	TaskID   string `json:"task_id"`
	WorkerID string `json:"worker_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

// Create registers a new pool task. Workers propose tasks, which wait for
// a manager's approval; managers and admins open them directly.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, role := caller(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Department = strings.TrimSpace(req.Department)
	if req.Title == "" || req.Department == "" {
		http.Error(w, "title and department required", http.StatusBadRequest)
		return
	}
	startDate, err := time.ParseInLocation(dateLayout, strings.TrimSpace(req.StartDate), time.UTC)
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	endDate, err := time.ParseInLocation(dateLayout, strings.TrimSpace(req.EndDate), time.UTC)
	if err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}
	if endDate.Before(startDate) {
		http.Error(w, "end_date must not precede start_date", http.StatusBadRequest)
		return
	}
	if req.MaxWorkers <= 0 {
		req.MaxWorkers = 1
	}
	priority := strings.TrimSpace(req.Priority)
	if priority == "" {
		priority = "normal"
	}

	status := "pending_approval"
	if isManager(role) {
		status = "open"
	}

	task := &model.Task{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Department:  req.Department,
		Priority:    priority,
		Status:      status,
		CreatedBy:   userID,
		StartDate:   startDate,
		EndDate:     endDate,
		MaxWorkers:  req.MaxWorkers,
		Skills:      trimNonEmpty(req.Skills),
	}

	ctx := r.Context()
	tx, err := h.tasks.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.tasks.Create(ctx, tx, task)
	if err != nil {
		http.Error(w, "failed to create task", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"task_id":    id,
		"title":      task.Title,
		"department": task.Department,
		"priority":   task.Priority,
		"status":     task.Status,
		"created_by": task.CreatedBy,
		"start_date": task.StartDate.Format(dateLayout),
		"end_date":   task.EndDate.Format(dateLayout),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "task",
		AggregateID:   id,
		EventType:     "taskpool.task.created.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "status": status})
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	f := storage.TaskFilter{
		Status:     strings.TrimSpace(r.URL.Query().Get("status")),
		Department: strings.TrimSpace(r.URL.Query().Get("department")),
	}
	if r.URL.Query().Get("mine") == "true" {
		userID, _ := caller(r)
		if userID == "" {
			http.Error(w, "missing user identity", http.StatusUnauthorized)
			return
		}
		f.WorkerID = userID
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			f.Limit = n
		}
	}

	tasks, err := h.tasks.List(r.Context(), f)
	if err != nil {
		http.Error(w, "failed to list tasks", http.StatusInternalServerError)
		return
	}

	items := make([]taskItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, toTaskItem(t))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	taskID := strings.TrimSpace(r.URL.Query().Get("id"))
	if taskID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	task, err := h.tasks.Get(r.Context(), taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toTaskItem(task))
}

// Approve moves a worker-proposed task into the open pool.
func (h *TaskHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, role := caller(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	if !isManager(role) {
		http.Error(w, "manager role required", http.StatusForbidden)
		return
	}

	var req struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TaskID) == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return
	}
	taskID := strings.TrimSpace(req.TaskID)

	ctx := r.Context()
	tx, err := h.tasks.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := h.tasks.GetForUpdate(ctx, tx, taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return
	}

	if err := h.tasks.Approve(ctx, tx, taskID, userID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task is not pending approval", http.StatusConflict)
			return
		}
		http.Error(w, "failed to approve task", http.StatusInternalServerError)
		return
	}

	if err := h.insertStatusEvent(ctx, tx, task, "open", userID); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "open"})
}

// Reject declines a worker-proposed task.
func (h *TaskHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, role := caller(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	if !isManager(role) {
		http.Error(w, "manager role required", http.StatusForbidden)
		return
	}

	var req struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TaskID) == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return
	}
	taskID := strings.TrimSpace(req.TaskID)

	ctx := r.Context()
	tx, err := h.tasks.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := h.tasks.GetForUpdate(ctx, tx, taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return
	}

	if err := h.tasks.Reject(ctx, tx, taskID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task is not pending approval", http.StatusConflict)
			return
		}
		http.Error(w, "failed to reject task", http.StatusInternalServerError)
		return
	}

	if err := h.insertStatusEvent(ctx, tx, task, "rejected", userID); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "rejected"})
}

// Cancel withdraws a task. The creator can cancel their own proposal;
// managers can cancel anything not yet completed.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, role := caller(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TaskID) == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return
	}
	taskID := strings.TrimSpace(req.TaskID)

	ctx := r.Context()
	tx, err := h.tasks.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := h.tasks.GetForUpdate(ctx, tx, taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return
	}
	if !isManager(role) && task.CreatedBy != userID {
		http.Error(w, "only the creator or a manager can cancel a task", http.StatusForbidden)
		return
	}

	if err := h.tasks.Cancel(ctx, tx, taskID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task cannot be cancelled in its current status", http.StatusConflict)
			return
		}
		http.Error(w, "failed to cancel task", http.StatusInternalServerError)
		return
	}

	// Release the booked dates so the assigned workers become eligible again.
	if _, err := h.bookings.ReplaceForTask(ctx, tx, taskID, nil); err != nil {
		http.Error(w, "failed to release bookings", http.StatusInternalServerError)
		return
	}

	if err := h.insertStatusEvent(ctx, tx, task, "cancelled", userID); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "cancelled"})
}

// Volunteer records a worker's interest in an open task. The eligibility
// check is advisory here: a conflicted worker is rejected, but if the
// schedule dependency is down the volunteer is accepted and the conflict
// resurfaces at assignment time.
func (h *TaskHandler) Volunteer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, _ := caller(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req volunteerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TaskID) == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return
	}
	taskID := strings.TrimSpace(req.TaskID)

	task, err := h.tasks.Get(r.Context(), taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return
	}
	if task.Status != "open" {
		http.Error(w, "task is not open for volunteers", http.StatusConflict)
		return
	}

	if h.eligibility != nil {
		ok, err := h.eligibility.CanSupport(r.Context(), userID,
			task.StartDate.Format(dateLayout), task.EndDate.Format(dateLayout))
		if err != nil {
			h.logger.Warn("eligibility check unavailable; accepting volunteer", "task_id", taskID, "err", err)
		} else if !ok {
			http.Error(w, "worker schedule conflicts with the task dates", http.StatusConflict)
			return
		}
	}

	if err := h.bookings.AddVolunteer(r.Context(), model.Volunteer{
		TaskID:   taskID,
		WorkerID: userID,
		Note:     strings.TrimSpace(req.Note),
	}); err != nil {
		if storage.IsUniqueViolation(err) {
			http.Error(w, "already volunteered for this task", http.StatusConflict)
			return
		}
		http.Error(w, "failed to record volunteer", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"task_id": taskID, "worker_id": userID})
}

// Candidates lists a task's volunteers with a live eligibility flag for
// the assignment picker.
func (h *TaskHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	taskID := strings.TrimSpace(r.URL.Query().Get("id"))
	if taskID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	task, err := h.tasks.Get(r.Context(), taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return
	}

	volunteers, err := h.bookings.ListVolunteers(r.Context(), taskID)
	if err != nil {
		http.Error(w, "failed to list volunteers", http.StatusInternalServerError)
		return
	}

	items := make([]candidateItem, 0, len(volunteers))
	for _, v := range volunteers {
		item := candidateItem{
			WorkerID:      v.WorkerID,
			Note:          v.Note,
			VolunteeredAt: v.CreatedAt.UTC().Format(time.RFC3339),
		}
		if h.eligibility != nil {
			if ok, err := h.eligibility.CanSupport(r.Context(), v.WorkerID,
				task.StartDate.Format(dateLayout), task.EndDate.Format(dateLayout)); err == nil {
				item.CanSupportNow = &ok
			}
		}
		if avg, count, err := h.bookings.AverageRating(r.Context(), v.WorkerID); err == nil && count > 0 {
			item.AvgRating = &avg
			item.ReviewCount = count
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

// Assign recomputes a task's assignment set in bulk: prior bookings for
// the task are deleted and replaced with the submitted set in one
// transaction, one booking per assigned worker.
func (h *TaskHandler) Assign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, role := caller(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	if !isManager(role) {
		http.Error(w, "manager role required", http.StatusForbidden)
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TaskID) == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return
	}
	taskID := strings.TrimSpace(req.TaskID)

	ctx := r.Context()
	tx, err := h.tasks.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := h.tasks.GetForUpdate(ctx, tx, taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return
	}
	if task.Status != "open" && task.Status != "in_progress" {
		http.Error(w, "task cannot be assigned in its current status", http.StatusConflict)
		return
	}
	if len(req.Assignments) > task.MaxWorkers {
		http.Error(w, "assignment set exceeds max_workers", http.StatusUnprocessableEntity)
		return
	}

	bookings := make([]model.Booking, 0, len(req.Assignments))
	workerIDs := make([]string, 0, len(req.Assignments))
	seen := map[string]bool{}
	for _, a := range req.Assignments {
		workerID := strings.TrimSpace(a.WorkerID)
		if workerID == "" || seen[workerID] {
			http.Error(w, "assignments must name distinct workers", http.StatusBadRequest)
			return
		}
		seen[workerID] = true

		start := task.StartDate
		end := task.EndDate
		if strings.TrimSpace(a.StartDate) != "" {
			if start, err = time.ParseInLocation(dateLayout, strings.TrimSpace(a.StartDate), time.UTC); err != nil {
				http.Error(w, "invalid assignment start_date", http.StatusBadRequest)
				return
			}
		}
		if strings.TrimSpace(a.EndDate) != "" {
			if end, err = time.ParseInLocation(dateLayout, strings.TrimSpace(a.EndDate), time.UTC); err != nil {
				http.Error(w, "invalid assignment end_date", http.StatusBadRequest)
				return
			}
		}
		if end.Before(start) {
			http.Error(w, "assignment end_date precedes start_date", http.StatusBadRequest)
			return
		}

		bookings = append(bookings, model.Booking{
			TaskID:    taskID,
			WorkerID:  workerID,
			StartDate: start,
			EndDate:   end,
			Status:    "booked",
		})
		workerIDs = append(workerIDs, workerID)
	}

	if _, err := h.bookings.ReplaceForTask(ctx, tx, taskID, bookings); err != nil {
		http.Error(w, "failed to replace bookings", http.StatusInternalServerError)
		return
	}

	newStatus := task.Status
	if len(bookings) > 0 && task.Status == "open" {
		newStatus = "in_progress"
	} else if len(bookings) == 0 && task.Status == "in_progress" {
		newStatus = "open"
	}
	if newStatus != task.Status {
		if err := h.tasks.UpdateStatus(ctx, tx, taskID, newStatus); err != nil {
			http.Error(w, "failed to update task status", http.StatusInternalServerError)
			return
		}
	}

	payload, err := json.Marshal(map[string]any{
		"task_id":     taskID,
		"title":       task.Title,
		"department":  task.Department,
		"worker_ids":  workerIDs,
		"assigned_by": userID,
		"start_date":  task.StartDate.Format(dateLayout),
		"end_date":    task.EndDate.Format(dateLayout),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "task",
		AggregateID:   taskID,
		EventType:     "taskpool.task.assigned.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task_id":    taskID,
		"status":     newStatus,
		"worker_ids": workerIDs,
	})
}

// Progress records a percent-complete note from a booked worker.
func (h *TaskHandler) Progress(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listProgress(w, r)
	case http.MethodPost:
		h.addProgress(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TaskHandler) addProgress(w http.ResponseWriter, r *http.Request) {
	userID, _ := caller(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TaskID) == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return
	}
	if req.Percent < 0 || req.Percent > 100 {
		http.Error(w, "percent must be between 0 and 100", http.StatusBadRequest)
		return
	}
	taskID := strings.TrimSpace(req.TaskID)

	bookings, err := h.bookings.ListForTask(r.Context(), taskID)
	if err != nil {
		http.Error(w, "failed to load bookings", http.StatusInternalServerError)
		return
	}
	booked := false
	for _, b := range bookings {
		if b.WorkerID == userID {
			booked = true
			break
		}
	}
	if !booked {
		http.Error(w, "only booked workers can report progress", http.StatusForbidden)
		return
	}

	id, err := h.bookings.AddProgress(r.Context(), model.ProgressEntry{
		TaskID:   taskID,
		WorkerID: userID,
		Percent:  req.Percent,
		Note:     strings.TrimSpace(req.Note),
	})
	if err != nil {
		http.Error(w, "failed to record progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *TaskHandler) listProgress(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(r.URL.Query().Get("id"))
	if taskID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	entries, err := h.bookings.ListProgress(r.Context(), taskID)
	if err != nil {
		http.Error(w, "failed to list progress", http.StatusInternalServerError)
		return
	}

	type progressItem struct {
		ID        string `json:"id"`
		WorkerID  string `json:"worker_id"`
		Percent   int    `json:"percent"`
		Note      string `json:"note,omitempty"`
		CreatedAt string `json:"created_at"`
	}
	items := make([]progressItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, progressItem{
			ID:        e.ID,
			WorkerID:  e.WorkerID,
			Percent:   e.Percent,
			Note:      e.Note,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// Complete closes a task and announces it, with the booked workers in the
// event payload so downstream consumers can award points and notify.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, role := caller(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	if !isManager(role) {
		http.Error(w, "manager role required", http.StatusForbidden)
		return
	}

	var req struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.TaskID) == "" {
		http.Error(w, "task_id required", http.StatusBadRequest)
		return
	}
	taskID := strings.TrimSpace(req.TaskID)

	ctx := r.Context()

	bookings, err := h.bookings.ListForTask(ctx, taskID)
	if err != nil {
		http.Error(w, "failed to load bookings", http.StatusInternalServerError)
		return
	}
	workerIDs := make([]string, 0, len(bookings))
	for _, b := range bookings {
		workerIDs = append(workerIDs, b.WorkerID)
	}

	tx, err := h.tasks.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := h.tasks.GetForUpdate(ctx, tx, taskID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load task", http.StatusInternalServerError)
		return
	}

	if err := h.tasks.Complete(ctx, tx, taskID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "task cannot be completed in its current status", http.StatusConflict)
			return
		}
		http.Error(w, "failed to complete task", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"task_id":      taskID,
		"title":        task.Title,
		"department":   task.Department,
		"priority":     task.Priority,
		"worker_ids":   workerIDs,
		"completed_by": userID,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "task",
		AggregateID:   taskID,
		EventType:     "taskpool.task.completed.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "completed"})
}

// Reviews handles manager feedback on a worker's performance on a task.
func (h *TaskHandler) Reviews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listReviews(w, r)
	case http.MethodPost:
		h.addReview(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TaskHandler) addReview(w http.ResponseWriter, r *http.Request) {
	userID, role := caller(r)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	if !isManager(role) {
		http.Error(w, "manager role required", http.StatusForbidden)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.TaskID = strings.TrimSpace(req.TaskID)
	req.WorkerID = strings.TrimSpace(req.WorkerID)
	if req.TaskID == "" || req.WorkerID == "" {
		http.Error(w, "task_id and worker_id required", http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "rating must be between 1 and 5", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.tasks.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := h.bookings.AddReview(ctx, tx, model.Review{
		TaskID:     req.TaskID,
		WorkerID:   req.WorkerID,
		ReviewerID: userID,
		Rating:     req.Rating,
		Comment:    strings.TrimSpace(req.Comment),
	})
	if err != nil {
		if storage.IsUniqueViolation(err) {
			http.Error(w, "worker already reviewed for this task", http.StatusConflict)
			return
		}
		http.Error(w, "failed to record review", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"review_id":   id,
		"task_id":     req.TaskID,
		"worker_id":   req.WorkerID,
		"reviewer_id": userID,
		"rating":      req.Rating,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "task",
		AggregateID:   req.TaskID,
		EventType:     "taskpool.task.reviewed.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *TaskHandler) listReviews(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(r.URL.Query().Get("id"))
	if taskID == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	reviews, err := h.bookings.ListReviews(r.Context(), taskID)
	if err != nil {
		http.Error(w, "failed to list reviews", http.StatusInternalServerError)
		return
	}

	type reviewItem struct {
		ID         string `json:"id"`
		WorkerID   string `json:"worker_id"`
		ReviewerID string `json:"reviewer_id"`
		Rating     int    `json:"rating"`
		Comment    string `json:"comment,omitempty"`
		CreatedAt  string `json:"created_at"`
	}
	items := make([]reviewItem, 0, len(reviews))
	for _, rev := range reviews {
		items = append(items, reviewItem{
			ID:         rev.ID,
			WorkerID:   rev.WorkerID,
			ReviewerID: rev.ReviewerID,
			Rating:     rev.Rating,
			Comment:    rev.Comment,
			CreatedAt:  rev.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *TaskHandler) Skills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	skills, err := h.tasks.ListSkills(r.Context())
	if err != nil {
		http.Error(w, "failed to list skills", http.StatusInternalServerError)
		return
	}

	type skillItem struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	items := make([]skillItem, 0, len(skills))
	for _, s := range skills {
		items = append(items, skillItem{ID: s.ID, Name: s.Name})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *TaskHandler) insertStatusEvent(ctx context.Context, tx pgx.Tx, task model.Task, status, changedBy string) error {
	payload, err := json.Marshal(map[string]any{
		"task_id":    task.ID,
		"title":      task.Title,
		"department": task.Department,
		"created_by": task.CreatedBy,
		"status":     status,
		"changed_by": changedBy,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "task",
		AggregateID:   task.ID,
		EventType:     "taskpool.task.status.v1",
		Payload:       payload,
	})
}

func toTaskItem(t model.Task) taskItem {
	item := taskItem{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Department:  t.Department,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedBy:   t.CreatedBy,
		StartDate:   t.StartDate.Format(dateLayout),
		EndDate:     t.EndDate.Format(dateLayout),
		MaxWorkers:  t.MaxWorkers,
		Skills:      t.Skills,
		ApprovedBy:  t.ApprovedBy,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.CompletedAt != nil {
		item.CompletedAt = t.CompletedAt.UTC().Format(time.RFC3339)
	}
	return item
}

func caller(r *http.Request) (userID, role string) {
	return strings.TrimSpace(r.Header.Get("X-User-Id")), strings.TrimSpace(r.Header.Get("X-Role"))
}

func isManager(role string) bool {
	return role == "manager" || role == "admin"
}

func trimNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
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
