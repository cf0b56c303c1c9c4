package postgres

import (
	"context"
	"database/sql"
	"fmt"

	domain "github.com/spokeworks/api/internal/domain"
)

// UserRepository persists accounts in the users table.
type UserRepository struct {
	db *sql.DB
}

const userColumns = `id, username, password_hash, name, phone, role, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, name, phone, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns+`
	`, user.Username, user.PasswordHash, user.Name, user.Phone, user.Role)

	saved, err := scanUser(row)
	if err != nil {
		return domain.User{}, WrapError("postgres: insert user", err)
	}
	return saved, nil
}

func (r *UserRepository) Update(ctx context.Context, user domain.User) error {
	result, err := runner(ctx, r.db).ExecContext(ctx, `
		UPDATE users
		SET password_hash = $1, name = $2, phone = $3, role = $4, updated_at = NOW()
		WHERE id = $5
	`, user.PasswordHash, user.Name, user.Phone, user.Role, user.ID)
	if err != nil {
		return WrapError("postgres: update user", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return WrapError("postgres: update user", err)
	}
	if affected == 0 {
		return notFoundError("postgres: update user", fmt.Sprintf("user %d does not exist", user.ID))
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID int64) (domain.User, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, userID)

	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, WrapError("postgres: find user", err)
	}
	return user, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	row := runner(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)

	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, WrapError("postgres: find user by username", err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := runner(ctx, r.db).QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY id
	`)
	if err != nil {
		return nil, WrapError("postgres: list users", err)
	}
	defer func() { _ = rows.Close() }()

	users := []domain.User{}
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.Name,
			&user.Phone,
			&user.Role,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, WrapError("postgres: list users", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, WrapError("postgres: list users", err)
	}
	return users, nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Name,
		&user.Phone,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}
