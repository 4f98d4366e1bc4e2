package storage

import (
	"context"
	"errors"
	"time"

	"github.com/crewdesk/crewdesk/libs/db"
	"github.com/crewdesk/crewdesk/services/schedule-service/internal/interval"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ScheduleRepository reads a worker's calendar sources and owns the
// personal-task rows. It satisfies availability.Store.
type ScheduleRepository struct {
	pool *db.Pool
}

func NewScheduleRepository(pool *db.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

func (r *ScheduleRepository) PersonalTasksForWorker(ctx context.Context, workerID string) ([]interval.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id::text, title, COALESCE(description, ''),
			start_date, end_date, is_recurring, COALESCE(recurring_days, '{}'),
			can_support, is_full_day, status
		FROM personal_tasks
		WHERE owner_id = $1
		ORDER BY start_date ASC
	`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []interval.Interval
	for rows.Next() {
		var iv interval.Interval
		var days []int32
		if err := rows.Scan(
			&iv.ID,
			&iv.OwnerID,
			&iv.Title,
			&iv.Description,
			&iv.Start,
			&iv.End,
			&iv.IsRecurring,
			&days,
			&iv.CanSupport,
			&iv.IsFullDay,
			&iv.Status,
		); err != nil {
			return nil, err
		}
		iv.Kind = interval.KindPersonalTask
		iv.Start = interval.DayOf(iv.Start)
		iv.End = interval.DayOf(iv.End)
		iv.RecurringDays = toIntSlice(days)
		out = append(out, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// BookingsForWorker returns the worker's committed assignments joined with
// just enough task metadata to render a title. Bookings are always
// non-recurring and never count as declared availability. Bookings whose
// task has been cancelled are excluded: cancellation releases the dates.
func (r *ScheduleRepository) BookingsForWorker(ctx context.Context, workerID string) ([]interval.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id::text, b.worker_id::text, t.title, COALESCE(t.description, ''),
			b.start_date, b.end_date, b.status
		FROM bookings b
		JOIN tasks t ON t.id = b.task_id
		WHERE b.worker_id = $1 AND t.status <> 'cancelled'
		ORDER BY b.start_date ASC
	`, workerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []interval.Interval
	for rows.Next() {
		var iv interval.Interval
		if err := rows.Scan(
			&iv.ID,
			&iv.OwnerID,
			&iv.Title,
			&iv.Description,
			&iv.Start,
			&iv.End,
			&iv.Status,
		); err != nil {
			return nil, err
		}
		iv.Kind = interval.KindBooking
		iv.IsFullDay = true
		iv.Start = interval.DayOf(iv.Start)
		iv.End = interval.DayOf(iv.End)
		out = append(out, iv)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *ScheduleRepository) GetPersonalTask(ctx context.Context, id string) (interval.Interval, error) {
	var iv interval.Interval
	var days []int32
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, owner_id::text, title, COALESCE(description, ''),
			start_date, end_date, is_recurring, COALESCE(recurring_days, '{}'),
			can_support, is_full_day, status
		FROM personal_tasks
		WHERE id = $1
	`, id).Scan(
		&iv.ID,
		&iv.OwnerID,
		&iv.Title,
		&iv.Description,
		&iv.Start,
		&iv.End,
		&iv.IsRecurring,
		&days,
		&iv.CanSupport,
		&iv.IsFullDay,
		&iv.Status,
	)
	if err != nil {
		return interval.Interval{}, err
	}
	iv.Kind = interval.KindPersonalTask
	iv.Start = interval.DayOf(iv.Start)
	iv.End = interval.DayOf(iv.End)
	iv.RecurringDays = toIntSlice(days)
	return iv, nil
}

func (r *ScheduleRepository) CreatePersonalTask(ctx context.Context, iv interval.Interval) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO personal_tasks
			(owner_id, title, description, start_date, end_date, is_recurring, recurring_days, can_support, is_full_day, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, iv.OwnerID, iv.Title, iv.Description, iv.Start, iv.End, iv.IsRecurring,
		toInt32Slice(iv.RecurringDays), iv.CanSupport, iv.IsFullDay, iv.Status).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *ScheduleRepository) UpdatePersonalTask(ctx context.Context, iv interval.Interval) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE personal_tasks
		SET title = $3,
			description = $4,
			start_date = $5,
			end_date = $6,
			is_recurring = $7,
			recurring_days = $8,
			can_support = $9,
			is_full_day = $10,
			status = $11,
			updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`, iv.ID, iv.OwnerID, iv.Title, iv.Description, iv.Start, iv.End,
		iv.IsRecurring, toInt32Slice(iv.RecurringDays), iv.CanSupport, iv.IsFullDay, iv.Status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// UpdatePersonalTaskDates is the narrow write used by drag/resize commits:
// only the range moves, everything else stays.
func (r *ScheduleRepository) UpdatePersonalTaskDates(ctx context.Context, id, ownerID string, start, end time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE personal_tasks
		SET start_date = $3,
			end_date = $4,
			updated_at = now()
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID, start, end)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ScheduleRepository) DeletePersonalTask(ctx context.Context, id, ownerID string) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM personal_tasks
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func toIntSlice(in []int32) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

func toInt32Slice(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
