package storage

import (
	"context"

	"github.com/crewdesk/crewdesk/libs/db"
	"github.com/jackc/pgx/v5"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Department   string
	Role         string
}

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, user User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, department, role)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Department, user.Role)
	return err
}

func (r *UserRepository) CreateTx(ctx context.Context, tx pgx.Tx, user User) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, display_name, department, role)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Department, user.Role)
	return err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, department, role
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.Department, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, department, role
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.Department, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// ListByDepartment returns the worker directory for assignment pickers.
// An empty department lists everyone.
func (r *UserRepository) ListByDepartment(ctx context.Context, department string) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, '', display_name, department, role
		FROM users
		WHERE $1 = '' OR department = $1
		ORDER BY display_name
	`, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.Department, &user.Role); err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, rows.Err()
}

func IsNotFound(err error) bool {
	return err == pgx.ErrNoRows
}
