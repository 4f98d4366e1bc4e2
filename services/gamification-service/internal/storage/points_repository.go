package storage

import (
	"context"
	"time"

	"github.com/crewdesk/crewdesk/libs/db"
)

type LedgerEntry struct {
	ID         string
	WorkerID   string
	Department string
	TaskID     string
	Reason     string
	Points     int
	CreatedAt  time.Time
}

type Badge struct {
	WorkerID  string
	Name      string
	AwardedAt time.Time
}

type PointsRepository struct {
	pool *db.Pool
}

func NewPointsRepository(pool *db.Pool) *PointsRepository {
	return &PointsRepository{pool: pool}
}

func (r *PointsRepository) Award(ctx context.Context, e LedgerEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO points_ledger (worker_id, department, task_id, reason, points)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
	`, e.WorkerID, e.Department, e.TaskID, e.Reason, e.Points)
	return err
}

func (r *PointsRepository) TotalPoints(ctx context.Context, workerID string) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(sum(points), 0) FROM points_ledger
		WHERE worker_id = $1
	`, workerID).Scan(&total)
	return total, err
}

func (r *PointsRepository) CompletedCount(ctx context.Context, workerID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM points_ledger
		WHERE worker_id = $1 AND reason = 'task_completed'
	`, workerID).Scan(&count)
	return count, err
}

func (r *PointsRepository) RecentEntries(ctx context.Context, workerID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, worker_id::text, COALESCE(department, ''), COALESCE(task_id::text, ''), reason, points, created_at
		FROM points_ledger
		WHERE worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, workerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.WorkerID, &e.Department, &e.TaskID, &e.Reason, &e.Points, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AwardBadge grants a badge once. It reports whether the badge was new.
func (r *PointsRepository) AwardBadge(ctx context.Context, workerID, name string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO badges (worker_id, name)
		VALUES ($1, $2)
		ON CONFLICT (worker_id, name) DO NOTHING
	`, workerID, name)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PointsRepository) ListBadges(ctx context.Context, workerID string) ([]Badge, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT worker_id::text, name, awarded_at
		FROM badges
		WHERE worker_id = $1
		ORDER BY awarded_at
	`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Badge
	for rows.Next() {
		var b Badge
		if err := rows.Scan(&b.WorkerID, &b.Name, &b.AwardedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PointsRepository) RecordRating(ctx context.Context, workerID, taskID string, rating int) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO worker_ratings (worker_id, task_id, rating)
		VALUES ($1, NULLIF($2, ''), $3)
	`, workerID, taskID, rating)
	return err
}

func (r *PointsRepository) RatingSummary(ctx context.Context, workerID string) (avg float64, count int, err error) {
	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(avg(rating), 0), count(*)
		FROM worker_ratings
		WHERE worker_id = $1
	`, workerID).Scan(&avg, &count)
	return avg, count, err
}
