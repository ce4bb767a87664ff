package user

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type UserOutput struct {
	ID        pgtype.UUID `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      string      `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

type UpdateUserInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type EnsureAdminInput struct {
	Name     string
	Email    string
	Password string
}
