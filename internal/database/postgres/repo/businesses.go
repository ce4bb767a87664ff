package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const businessColumns = `id, name, email, password, website, domain, domain_verified, phone,
affiliate_id, api_key, shopify_secret, commission_rate_bps, status,
total_clicks, total_conversions, total_revenue_cents, total_commission_cents,
created_at, updated_at`

func scanBusiness(row pgx.Row) (Business, error) {
	var b Business
	err := row.Scan(
		&b.ID, &b.Name, &b.Email, &b.Password, &b.Website, &b.Domain, &b.DomainVerified, &b.Phone,
		&b.AffiliateID, &b.ApiKey, &b.ShopifySecret, &b.CommissionRateBps, &b.Status,
		&b.TotalClicks, &b.TotalConversions, &b.TotalRevenueCents, &b.TotalCommissionCents,
		&b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

type CreateBusinessParams struct {
	Name              string
	Email             string
	Password          string
	Website           pgtype.Text
	Domain            pgtype.Text
	Phone             pgtype.Text
	AffiliateID       string
	ApiKey            string
	ShopifySecret     string
	CommissionRateBps int32
}

func (q *Queries) CreateBusiness(ctx context.Context, arg CreateBusinessParams) (Business, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO businesses
    (name, email, password, website, domain, phone, affiliate_id, api_key, shopify_secret, commission_rate_bps)
VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+businessColumns,
		arg.Name, arg.Email, arg.Password, arg.Website, arg.Domain, arg.Phone,
		arg.AffiliateID, arg.ApiKey, arg.ShopifySecret, arg.CommissionRateBps,
	)
	return scanBusiness(row)
}

func (q *Queries) FindBusinessByID(ctx context.Context, id pgtype.UUID) (Business, error) {
	return scanBusiness(q.db.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id))
}

func (q *Queries) FindBusinessByEmail(ctx context.Context, email string) (Business, error) {
	return scanBusiness(q.db.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE email = lower($1)`, email))
}

func (q *Queries) FindBusinessByAffiliateID(ctx context.Context, affiliateID string) (Business, error) {
	return scanBusiness(q.db.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE affiliate_id = $1`, affiliateID))
}

func (q *Queries) FindBusinessByApiKey(ctx context.Context, apiKey string) (Business, error) {
	return scanBusiness(q.db.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE api_key = $1`, apiKey))
}

type UpdateBusinessProfileParams struct {
	ID       pgtype.UUID
	Name     pgtype.Text
	Website  pgtype.Text
	Domain   pgtype.Text
	Phone    pgtype.Text
	Password pgtype.Text
}

// UpdateBusinessProfile resets domain_verified when the domain changes.
func (q *Queries) UpdateBusinessProfile(ctx context.Context, arg UpdateBusinessProfileParams) (Business, error) {
	row := q.db.QueryRow(ctx, `UPDATE businesses SET
    name = COALESCE($2, name),
    website = COALESCE($3, website),
    domain_verified = CASE WHEN $4::text IS NOT NULL AND $4::text IS DISTINCT FROM domain THEN false ELSE domain_verified END,
    domain = COALESCE($4, domain),
    phone = COALESCE($5, phone),
    password = COALESCE($6, password),
    updated_at = now()
WHERE id = $1
RETURNING `+businessColumns, arg.ID, arg.Name, arg.Website, arg.Domain, arg.Phone, arg.Password)
	return scanBusiness(row)
}

type UpdateBusinessApiKeyParams struct {
	ID     pgtype.UUID
	ApiKey string
}

func (q *Queries) UpdateBusinessApiKey(ctx context.Context, arg UpdateBusinessApiKeyParams) (Business, error) {
	row := q.db.QueryRow(ctx, `UPDATE businesses SET api_key = $2, updated_at = now() WHERE id = $1 RETURNING `+businessColumns, arg.ID, arg.ApiKey)
	return scanBusiness(row)
}

type SetBusinessStatusParams struct {
	ID     pgtype.UUID
	Status string
}

func (q *Queries) SetBusinessStatus(ctx context.Context, arg SetBusinessStatusParams) (Business, error) {
	row := q.db.QueryRow(ctx, `UPDATE businesses SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+businessColumns, arg.ID, arg.Status)
	return scanBusiness(row)
}

type SetBusinessCommissionRateParams struct {
	ID                pgtype.UUID
	CommissionRateBps int32
}

func (q *Queries) SetBusinessCommissionRate(ctx context.Context, arg SetBusinessCommissionRateParams) (Business, error) {
	row := q.db.QueryRow(ctx, `UPDATE businesses SET commission_rate_bps = $2, updated_at = now() WHERE id = $1 RETURNING `+businessColumns, arg.ID, arg.CommissionRateBps)
	return scanBusiness(row)
}

type MarkBusinessDomainVerifiedParams struct {
	ID     pgtype.UUID
	Domain string
}

func (q *Queries) MarkBusinessDomainVerified(ctx context.Context, arg MarkBusinessDomainVerifiedParams) error {
	_, err := q.db.Exec(ctx, `UPDATE businesses SET domain = $2, domain_verified = true, updated_at = now() WHERE id = $1`, arg.ID, arg.Domain)
	return err
}

func (q *Queries) IncrementBusinessClicks(ctx context.Context, id pgtype.UUID) error {
	_, err := q.db.Exec(ctx, `UPDATE businesses SET total_clicks = total_clicks + 1 WHERE id = $1`, id)
	return err
}

type AddBusinessConversionParams struct {
	ID              pgtype.UUID
	RevenueCents    int64
	CommissionCents int64
}

func (q *Queries) AddBusinessConversion(ctx context.Context, arg AddBusinessConversionParams) error {
	_, err := q.db.Exec(ctx, `UPDATE businesses SET
    total_conversions = total_conversions + 1,
    total_revenue_cents = total_revenue_cents + $2,
    total_commission_cents = total_commission_cents + $3
WHERE id = $1`, arg.ID, arg.RevenueCents, arg.CommissionCents)
	return err
}

type ListBusinessesParams struct {
	Search string
	Limit  int32
	Offset int32
}

func (q *Queries) ListBusinesses(ctx context.Context, arg ListBusinessesParams) ([]Business, error) {
	rows, err := q.db.Query(ctx, `SELECT `+businessColumns+` FROM businesses
WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%' OR domain ILIKE '%' || $1 || '%'
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (q *Queries) CountBusinesses(ctx context.Context, search string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM businesses
WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%' OR domain ILIKE '%' || $1 || '%'`, search).Scan(&count)
	return count, err
}

type PlatformStatsRow struct {
	Users                  int64
	Businesses             int64
	ActiveBusinesses       int64
	Clicks                 int64
	Conversions            int64
	RevenueCents           int64
	CommissionCents        int64
	PendingCommissionCents int64
}

func (q *Queries) GetPlatformStats(ctx context.Context) (PlatformStatsRow, error) {
	var r PlatformStatsRow
	err := q.db.QueryRow(ctx, `SELECT
    (SELECT count(*) FROM users),
    count(*),
    count(*) FILTER (WHERE status = 'active'),
    COALESCE(sum(total_clicks), 0)::bigint,
    COALESCE(sum(total_conversions), 0)::bigint,
    COALESCE(sum(total_revenue_cents), 0)::bigint,
    COALESCE(sum(total_commission_cents), 0)::bigint,
    (SELECT COALESCE(sum(amount_cents), 0)::bigint FROM commissions WHERE status = 'pending')
FROM businesses`).Scan(
		&r.Users, &r.Businesses, &r.ActiveBusinesses, &r.Clicks, &r.Conversions,
		&r.RevenueCents, &r.CommissionCents, &r.PendingCommissionCents,
	)
	return r, err
}
