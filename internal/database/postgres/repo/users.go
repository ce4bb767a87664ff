package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, name, email, password, role, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

type CreateUserParams struct {
	Name     string
	Email    string
	Password string
	Role     string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO users (name, email, password, role)
VALUES ($1, lower($2), $3, $4)
RETURNING `+userColumns, arg.Name, arg.Email, arg.Password, arg.Role)
	return scanUser(row)
}

func (q *Queries) FindByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = lower($1)`, email)
	return scanUser(row)
}

func (q *Queries) FindByID(ctx context.Context, id pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

type UpdateUserParams struct {
	ID       pgtype.UUID
	Name     pgtype.Text
	Email    pgtype.Text
	Password pgtype.Text
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `UPDATE users SET
    name = COALESCE($2, name),
    email = COALESCE(lower($3), email),
    password = COALESCE($4, password),
    updated_at = now()
WHERE id = $1
RETURNING `+userColumns, arg.ID, arg.Name, arg.Email, arg.Password)
	return scanUser(row)
}

type UpdateUserRoleParams struct {
	ID   pgtype.UUID
	Role string
}

func (q *Queries) UpdateUserRole(ctx context.Context, arg UpdateUserRoleParams) (User, error) {
	row := q.db.QueryRow(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns, arg.ID, arg.Role)
	return scanUser(row)
}

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count)
	return count, err
}
