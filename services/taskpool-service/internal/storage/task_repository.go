package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/crewdesk/crewdesk/libs/db"
	"github.com/crewdesk/crewdesk/services/taskpool-service/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type TaskRepository struct {
	pool *db.Pool
}

func NewTaskRepository(pool *db.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

func (r *TaskRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const taskColumns = `
	t.id::text, t.title, COALESCE(t.description, ''), t.department, t.priority, t.status,
	t.created_by::text, t.start_date, t.end_date, t.max_workers,
	COALESCE(t.approved_by::text, ''), t.approved_at, t.completed_at, t.created_at, t.updated_at`

func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, task *model.Task) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO tasks
			(title, description, department, priority, status, created_by, start_date, end_date, max_workers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, task.Title, task.Description, task.Department, task.Priority, task.Status,
		task.CreatedBy, task.StartDate, task.EndDate, task.MaxWorkers).Scan(&id)
	if err != nil {
		return "", err
	}
	if err := r.replaceSkills(ctx, tx, id, task.Skills); err != nil {
		return "", err
	}
	return id, nil
}

func (r *TaskRepository) Get(ctx context.Context, taskID string) (model.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.id = $1
	`, taskID))
	if err != nil {
		return model.Task{}, err
	}
	task.Skills, err = r.skillsForTask(ctx, taskID)
	if err != nil {
		return model.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, taskID string) (model.Task, error) {
	return scanTask(tx.QueryRow(ctx, `
		SELECT `+taskColumns+`
		FROM tasks t
		WHERE t.id = $1
		FOR UPDATE
	`, taskID))
}

type TaskFilter struct {
	Status     string
	Department string
	WorkerID   string // only tasks this worker is booked on
	Limit      int
}

func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}

	query := `
		SELECT DISTINCT ` + taskColumns + `
		FROM tasks t`
	args := []any{}
	where := ""
	and := func(cond string, val any) {
		args = append(args, val)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += cond + "$" + strconv.Itoa(len(args))
	}

	if f.WorkerID != "" {
		query += ` JOIN bookings b ON b.task_id = t.id`
		and("b.worker_id = ", f.WorkerID)
	}
	if f.Status != "" {
		and("t.status = ", f.Status)
	}
	if f.Department != "" {
		and("t.department = ", f.Department)
	}
	args = append(args, f.Limit)
	query += where + ` ORDER BY t.created_at DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, taskID, status string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks
		SET status = $2, updated_at = now()
		WHERE id = $1
	`, taskID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TaskRepository) Approve(ctx context.Context, tx pgx.Tx, taskID, approverID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks
		SET status = 'open', approved_by = $2, approved_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'pending_approval'
	`, taskID, approverID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TaskRepository) Reject(ctx context.Context, tx pgx.Tx, taskID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks
		SET status = 'rejected', updated_at = now()
		WHERE id = $1 AND status = 'pending_approval'
	`, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TaskRepository) Cancel(ctx context.Context, tx pgx.Tx, taskID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('pending_approval', 'open', 'in_progress')
	`, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TaskRepository) Complete(ctx context.Context, tx pgx.Tx, taskID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE tasks
		SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('open', 'in_progress')
	`, taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *TaskRepository) skillsForTask(ctx context.Context, taskID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.name
		FROM task_skills ts
		JOIN skills s ON s.id = ts.skill_id
		WHERE ts.task_id = $1
		ORDER BY s.name
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		skills = append(skills, name)
	}
	return skills, rows.Err()
}

// replaceSkills reconciles the task's skill links against the canonical
// skills table, creating skills on first use.
func (r *TaskRepository) replaceSkills(ctx context.Context, tx pgx.Tx, taskID string, names []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM task_skills WHERE task_id = $1`, taskID); err != nil {
		return err
	}
	for _, name := range names {
		var skillID string
		err := tx.QueryRow(ctx, `
			INSERT INTO skills (name)
			VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, name).Scan(&skillID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_skills (task_id, skill_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, taskID, skillID); err != nil {
			return err
		}
	}
	return nil
}

func (r *TaskRepository) ListSkills(ctx context.Context) ([]model.Skill, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, name
		FROM skills
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []model.Skill
	for rows.Next() {
		var s model.Skill
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		skills = append(skills, s)
	}
	return skills, rows.Err()
}

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	var approvedAt, completedAt *time.Time
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Description,
		&t.Department,
		&t.Priority,
		&t.Status,
		&t.CreatedBy,
		&t.StartDate,
		&t.EndDate,
		&t.MaxWorkers,
		&t.ApprovedBy,
		&approvedAt,
		&completedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return model.Task{}, err
	}
	t.ApprovedAt = approvedAt
	t.CompletedAt = completedAt
	return t, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

