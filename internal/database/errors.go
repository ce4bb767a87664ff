package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	UniqueViolation     = "23505"
	NotNullViolation    = "23502"
	ForeignKeyViolation = "23503"
)

var errorMap = map[string]string{
	UniqueViolation:     "já está em uso",
	NotNullViolation:    "não pode ser nulo",
	ForeignKeyViolation: "referência inválida",
}

// GetError turns a constraint violation into a validation error. Constraint
// names follow <table>_<column>_key, so "businesses_api_key_key" yields "api_key".
func GetError(err *pgconn.PgError, constraint string) *rest.ApiErr {
	columnName := columnFromConstraint(constraint)
	if columnName == "" {
		columnName = err.ColumnName
	}
	if message, ok := errorMap[err.Code]; ok {
		fmtMsg := strings.TrimSpace(fmt.Sprintf("%s %s", columnName, message))
		cause := rest.Causes{
			Field:   columnName,
			Message: fmtMsg,
		}
		return rest.NewBadRequestValidationError(fmtMsg, []rest.Causes{cause})
	}
	return rest.NewInternalServerError("erro ao inserir dados")
}

// HandleError maps repository errors to api errors. notFound is used for pgx.ErrNoRows.
func HandleError(err error, notFound string) *rest.ApiErr {
	if errors.Is(err, pgx.ErrNoRows) {
		return rest.NewNotFoundError(notFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return GetError(pgErr, pgErr.ConstraintName)
	}
	return rest.NewInternalServerError("erro interno do servidor")
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolation
}

func columnFromConstraint(constraint string) string {
	parts := strings.Split(constraint, "_")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[1:len(parts)-1], "_")
}
