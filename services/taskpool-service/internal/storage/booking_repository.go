package storage

import (
	"context"

	"github.com/crewdesk/crewdesk/libs/db"
	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/model"
	"github.com/jackc/pgx/v5"
)

type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// ReplaceForTask recomputes a task's assignment set: the old bookings are
// deleted and the new set inserted inside the caller's transaction, so a
// concurrent read never sees a half-replaced set. Returns the ids of the
// inserted bookings in input order.
func (r *BookingRepository) ReplaceForTask(ctx context.Context, tx pgx.Tx, taskID string, bookings []model.Booking) ([]string, error) {
	if _, err := tx.Exec(ctx, `DELETE FROM bookings WHERE task_id = $1`, taskID); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(bookings))
	for _, b := range bookings {
		var id string
		err := tx.QueryRow(ctx, `
			INSERT INTO bookings (task_id, worker_id, start_date, end_date, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, taskID, b.WorkerID, b.StartDate, b.EndDate, b.Status).Scan(&id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *BookingRepository) ListForTask(ctx context.Context, taskID string) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, task_id::text, worker_id::text, start_date, end_date, status, created_at
		FROM bookings
		WHERE task_id = $1
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.TaskID, &b.WorkerID, &b.StartDate, &b.EndDate, &b.Status, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *BookingRepository) CountForTask(ctx context.Context, tx pgx.Tx, taskID string) (int, error) {
	var n int
	err := tx.QueryRow(ctx, `
		SELECT count(*) FROM bookings WHERE task_id = $1
	`, taskID).Scan(&n)
	return n, err
}

func (r *BookingRepository) AddVolunteer(ctx context.Context, v model.Volunteer) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO task_volunteers (task_id, worker_id, note)
		VALUES ($1, $2, $3)
	`, v.TaskID, v.WorkerID, v.Note)
	return err
}

func (r *BookingRepository) ListVolunteers(ctx context.Context, taskID string) ([]model.Volunteer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT task_id::text, worker_id::text, COALESCE(note, ''), created_at
		FROM task_volunteers
		WHERE task_id = $1
		ORDER BY created_at ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Volunteer
	for rows.Next() {
		var v model.Volunteer
		if err := rows.Scan(&v.TaskID, &v.WorkerID, &v.Note, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *BookingRepository) AddProgress(ctx context.Context, e model.ProgressEntry) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO task_progress (task_id, worker_id, percent, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, e.TaskID, e.WorkerID, e.Percent, e.Note).Scan(&id)
	return id, err
}

func (r *BookingRepository) ListProgress(ctx context.Context, taskID string) ([]model.ProgressEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, task_id::text, worker_id::text, percent, COALESCE(note, ''), created_at
		FROM task_progress
		WHERE task_id = $1
		ORDER BY created_at DESC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProgressEntry
	for rows.Next() {
		var e model.ProgressEntry
		if err := rows.Scan(&e.ID, &e.TaskID, &e.WorkerID, &e.Percent, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *BookingRepository) AddReview(ctx context.Context, tx pgx.Tx, rev model.Review) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO task_reviews (task_id, worker_id, reviewer_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, rev.TaskID, rev.WorkerID, rev.ReviewerID, rev.Rating, rev.Comment).Scan(&id)
	return id, err
}

func (r *BookingRepository) ListReviews(ctx context.Context, taskID string) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, task_id::text, worker_id::text, reviewer_id::text, rating, COALESCE(comment, ''), created_at
		FROM task_reviews
		WHERE task_id = $1
		ORDER BY created_at DESC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Review
	for rows.Next() {
		var rev model.Review
		if err := rows.Scan(&rev.ID, &rev.TaskID, &rev.WorkerID, &rev.ReviewerID, &rev.Rating, &rev.Comment, &rev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// AverageRating computes a worker's mean review rating across tasks, for
// the gamification profile.
func (r *BookingRepository) AverageRating(ctx context.Context, workerID string) (float64, int, error) {
	var avg float64
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(avg(rating), 0), count(*)
		FROM task_reviews
		WHERE worker_id = $1
	`, workerID).Scan(&avg, &count)
	return avg, count, err
}
