package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const domainVerificationColumns = `id, business_id, domain, token, method, status, attempts, last_error, verified_at, created_at`

func scanDomainVerification(row pgx.Row) (DomainVerification, error) {
	var d DomainVerification
	err := row.Scan(
		&d.ID, &d.BusinessID, &d.Domain, &d.Token, &d.Method, &d.Status,
		&d.Attempts, &d.LastError, &d.VerifiedAt, &d.CreatedAt,
	)
	return d, err
}

type CreateDomainVerificationParams struct {
	BusinessID pgtype.UUID
	Domain     string
	Token      string
	Method     string
}

func (q *Queries) CreateDomainVerification(ctx context.Context, arg CreateDomainVerificationParams) (DomainVerification, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO domain_verifications (business_id, domain, token, method)
VALUES ($1, $2, $3, $4)
RETURNING `+domainVerificationColumns, arg.BusinessID, arg.Domain, arg.Token, arg.Method)
	return scanDomainVerification(row)
}

func (q *Queries) FindLatestDomainVerification(ctx context.Context, businessID pgtype.UUID) (DomainVerification, error) {
	return scanDomainVerification(q.db.QueryRow(ctx, `SELECT `+domainVerificationColumns+` FROM domain_verifications
WHERE business_id = $1
ORDER BY created_at DESC
LIMIT 1`, businessID))
}

func (q *Queries) MarkDomainVerificationVerified(ctx context.Context, id pgtype.UUID) (DomainVerification, error) {
	return scanDomainVerification(q.db.QueryRow(ctx, `UPDATE domain_verifications SET
    status = 'verified',
    attempts = attempts + 1,
    last_error = NULL,
    verified_at = now()
WHERE id = $1
RETURNING `+domainVerificationColumns, id))
}

type MarkDomainVerificationFailedParams struct {
	ID        pgtype.UUID
	LastError string
}

func (q *Queries) MarkDomainVerificationFailed(ctx context.Context, arg MarkDomainVerificationFailedParams) (DomainVerification, error) {
	return scanDomainVerification(q.db.QueryRow(ctx, `UPDATE domain_verifications SET
    attempts = attempts + 1,
    last_error = $2
WHERE id = $1
RETURNING `+domainVerificationColumns, arg.ID, arg.LastError))
}
