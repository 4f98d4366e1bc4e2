package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crewdesk/crewdesk/services/gamification-service/internal/leaderboard"
	"github.com/crewdesk/crewdesk/services/gamification-service/internal/storage"
)

type GamificationHandler struct {
	points *storage.PointsRepository
	board  *leaderboard.Leaderboard
}

func NewGamificationHandler(points *storage.PointsRepository, board *leaderboard.Leaderboard) *GamificationHandler {
	return &GamificationHandler{points: points, board: board}
}

type leaderboardRow struct {
	Rank     int    `json:"rank"`
	WorkerID string `json:"worker_id"`
	Points   int    `json:"points"`
}

func (h *GamificationHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	department := strings.TrimSpace(r.URL.Query().Get("department"))
	limit := 10
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	entries, err := h.board.Top(r.Context(), department, limit)
	if err != nil {
		http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
		return
	}

	rows := make([]leaderboardRow, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, leaderboardRow{Rank: i + 1, WorkerID: e.WorkerID, Points: e.Points})
	}
	writeJSON(w, http.StatusOK, rows)
}

type profileResponse struct {
	WorkerID       string         `json:"worker_id"`
	TotalPoints    int            `json:"total_points"`
	CompletedTasks int            `json:"completed_tasks"`
	Rank           int            `json:"rank,omitempty"`
	AvgRating      float64        `json:"avg_rating,omitempty"`
	ReviewCount    int            `json:"review_count,omitempty"`
	Badges         []string       `json:"badges,omitempty"`
	Recent         []ledgerRecord `json:"recent,omitempty"`
}

type ledgerRecord struct {
	Reason    string `json:"reason"`
	Points    int    `json:"points"`
	TaskID    string `json:"task_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

func (h *GamificationHandler) Profile(w http.ResponseWriter, r *http.Request) {
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

	ctx := r.Context()
	total, err := h.points.TotalPoints(ctx, workerID)
	if err != nil {
		http.Error(w, "failed to load points", http.StatusInternalServerError)
		return
	}
	completed, err := h.points.CompletedCount(ctx, workerID)
	if err != nil {
		http.Error(w, "failed to load completions", http.StatusInternalServerError)
		return
	}

	resp := profileResponse{
		WorkerID:       workerID,
		TotalPoints:    total,
		CompletedTasks: completed,
	}

	if rank, err := h.board.Rank(ctx, "", workerID); err == nil {
		resp.Rank = rank
	}
	if avg, count, err := h.points.RatingSummary(ctx, workerID); err == nil && count > 0 {
		resp.AvgRating = avg
		resp.ReviewCount = count
	}
	if badges, err := h.points.ListBadges(ctx, workerID); err == nil {
		for _, b := range badges {
			resp.Badges = append(resp.Badges, b.Name)
		}
	}
	if entries, err := h.points.RecentEntries(ctx, workerID, 10); err == nil {
		for _, e := range entries {
			resp.Recent = append(resp.Recent, ledgerRecord{
				Reason:    e.Reason,
				Points:    e.Points,
				TaskID:    e.TaskID,
				CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
	}

	writeJSON(w, http.StatusOK, resp)
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
