package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const clickColumns = `id, business_id, click_id, target_url, ip, user_agent, referrer, user_id, created_at`

func scanClick(row pgx.Row) (ClickLog, error) {
	var c ClickLog
	err := row.Scan(
		&c.ID, &c.BusinessID, &c.ClickID, &c.TargetUrl, &c.Ip,
		&c.UserAgent, &c.Referrer, &c.UserID, &c.CreatedAt,
	)
	return c, err
}

type CreateClickLogParams struct {
	BusinessID pgtype.UUID
	ClickID    string
	TargetUrl  string
	Ip         pgtype.Text
	UserAgent  pgtype.Text
	Referrer   pgtype.Text
	UserID     pgtype.UUID
}

func (q *Queries) CreateClickLog(ctx context.Context, arg CreateClickLogParams) (ClickLog, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO click_logs
    (business_id, click_id, target_url, ip, user_agent, referrer, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+clickColumns,
		arg.BusinessID, arg.ClickID, arg.TargetUrl, arg.Ip, arg.UserAgent, arg.Referrer, arg.UserID,
	)
	return scanClick(row)
}

func (q *Queries) FindClickByClickID(ctx context.Context, clickID string) (ClickLog, error) {
	return scanClick(q.db.QueryRow(ctx, `SELECT `+clickColumns+` FROM click_logs WHERE click_id = $1`, clickID))
}

type ListByBusinessParams struct {
	BusinessID pgtype.UUID
	Limit      int32
	Offset     int32
}

func (q *Queries) ListClicksByBusiness(ctx context.Context, arg ListByBusinessParams) ([]ClickLog, error) {
	rows, err := q.db.Query(ctx, `SELECT `+clickColumns+` FROM click_logs
WHERE business_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, arg.BusinessID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ClickLog
	for rows.Next() {
		c, err := scanClick(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (q *Queries) CountClicksByBusiness(ctx context.Context, businessID pgtype.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM click_logs WHERE business_id = $1`, businessID).Scan(&count)
	return count, err
}

const conversionColumns = `id, business_id, click_id, order_id, amount_cents, currency, source, created_at`

func scanConversion(row pgx.Row) (Conversion, error) {
	var c Conversion
	err := row.Scan(
		&c.ID, &c.BusinessID, &c.ClickID, &c.OrderID, &c.AmountCents,
		&c.Currency, &c.Source, &c.CreatedAt,
	)
	return c, err
}

type CreateConversionParams struct {
	BusinessID  pgtype.UUID
	ClickID     pgtype.Text
	OrderID     string
	AmountCents int64
	Currency    string
	Source      string
}

func (q *Queries) CreateConversion(ctx context.Context, arg CreateConversionParams) (Conversion, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO conversions
    (business_id, click_id, order_id, amount_cents, currency, source)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+conversionColumns,
		arg.BusinessID, arg.ClickID, arg.OrderID, arg.AmountCents, arg.Currency, arg.Source,
	)
	return scanConversion(row)
}

type FindConversionByOrderParams struct {
	BusinessID pgtype.UUID
	OrderID    string
}

func (q *Queries) FindConversionByOrder(ctx context.Context, arg FindConversionByOrderParams) (Conversion, error) {
	return scanConversion(q.db.QueryRow(ctx, `SELECT `+conversionColumns+` FROM conversions
WHERE business_id = $1 AND order_id = $2`, arg.BusinessID, arg.OrderID))
}

// ConversionWithCommissionRow is a conversion joined with the commission
// generated from its sale.
type ConversionWithCommissionRow struct {
	Conversion
	CommissionID     pgtype.UUID
	CommissionCents  pgtype.Int8
	CommissionStatus pgtype.Text
}

const conversionWithCommissionQuery = `SELECT c.id, c.business_id, c.click_id, c.order_id, c.amount_cents, c.currency, c.source, c.created_at,
    cm.id, cm.amount_cents, cm.status
FROM conversions c
LEFT JOIN sales s ON s.conversion_id = c.id
LEFT JOIN commissions cm ON cm.sale_id = s.id
WHERE c.business_id = $1
ORDER BY c.created_at DESC
LIMIT $2 OFFSET $3`

func (q *Queries) ListConversionsByBusiness(ctx context.Context, arg ListByBusinessParams) ([]ConversionWithCommissionRow, error) {
	rows, err := q.db.Query(ctx, conversionWithCommissionQuery, arg.BusinessID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ConversionWithCommissionRow
	for rows.Next() {
		var r ConversionWithCommissionRow
		if err := rows.Scan(
			&r.ID, &r.BusinessID, &r.ClickID, &r.OrderID, &r.AmountCents, &r.Currency, &r.Source, &r.CreatedAt,
			&r.CommissionID, &r.CommissionCents, &r.CommissionStatus,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (q *Queries) CountConversionsByBusiness(ctx context.Context, businessID pgtype.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM conversions WHERE business_id = $1`, businessID).Scan(&count)
	return count, err
}

type CreateSaleParams struct {
	BusinessID   pgtype.UUID
	ConversionID pgtype.UUID
	OrderID      string
	AmountCents  int64
	Currency     string
}

func (q *Queries) CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error) {
	var s Sale
	err := q.db.QueryRow(ctx, `INSERT INTO sales (business_id, conversion_id, order_id, amount_cents, currency)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, business_id, conversion_id, order_id, amount_cents, currency, created_at`,
		arg.BusinessID, arg.ConversionID, arg.OrderID, arg.AmountCents, arg.Currency,
	).Scan(&s.ID, &s.BusinessID, &s.ConversionID, &s.OrderID, &s.AmountCents, &s.Currency, &s.CreatedAt)
	return s, err
}

const commissionColumns = `id, business_id, sale_id, amount_cents, rate_bps, status, paid_at, created_at, updated_at`

func scanCommission(row pgx.Row) (Commission, error) {
	var c Commission
	err := row.Scan(
		&c.ID, &c.BusinessID, &c.SaleID, &c.AmountCents, &c.RateBps,
		&c.Status, &c.PaidAt, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

type CreateCommissionParams struct {
	BusinessID  pgtype.UUID
	SaleID      pgtype.UUID
	AmountCents int64
	RateBps     int32
}

func (q *Queries) CreateCommission(ctx context.Context, arg CreateCommissionParams) (Commission, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO commissions (business_id, sale_id, amount_cents, rate_bps)
VALUES ($1, $2, $3, $4)
RETURNING `+commissionColumns, arg.BusinessID, arg.SaleID, arg.AmountCents, arg.RateBps)
	return scanCommission(row)
}

type CommissionRow struct {
	Commission
	OrderID string
}

func (q *Queries) ListCommissionsByBusiness(ctx context.Context, arg ListByBusinessParams) ([]CommissionRow, error) {
	rows, err := q.db.Query(ctx, `SELECT cm.id, cm.business_id, cm.sale_id, cm.amount_cents, cm.rate_bps, cm.status,
    cm.paid_at, cm.created_at, cm.updated_at, s.order_id
FROM commissions cm
JOIN sales s ON s.id = cm.sale_id
WHERE cm.business_id = $1
ORDER BY cm.created_at DESC
LIMIT $2 OFFSET $3`, arg.BusinessID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CommissionRow
	for rows.Next() {
		var r CommissionRow
		if err := rows.Scan(
			&r.ID, &r.BusinessID, &r.SaleID, &r.AmountCents, &r.RateBps, &r.Status,
			&r.PaidAt, &r.CreatedAt, &r.UpdatedAt, &r.OrderID,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (q *Queries) CountCommissionsByBusiness(ctx context.Context, businessID pgtype.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM commissions WHERE business_id = $1`, businessID).Scan(&count)
	return count, err
}

type UpdateCommissionStatusParams struct {
	ID     pgtype.UUID
	Status string
}

func (q *Queries) UpdateCommissionStatus(ctx context.Context, arg UpdateCommissionStatusParams) (Commission, error) {
	row := q.db.QueryRow(ctx, `UPDATE commissions SET
    status = $2,
    paid_at = CASE WHEN $2 = 'paid' THEN now() ELSE NULL END,
    updated_at = now()
WHERE id = $1
RETURNING `+commissionColumns, arg.ID, arg.Status)
	return scanCommission(row)
}

type CommissionSumRow struct {
	Status      string
	AmountCents int64
}

func (q *Queries) SumCommissionsByStatus(ctx context.Context, businessID pgtype.UUID) ([]CommissionSumRow, error) {
	rows, err := q.db.Query(ctx, `SELECT status, COALESCE(sum(amount_cents), 0)::bigint
FROM commissions
WHERE business_id = $1
GROUP BY status`, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CommissionSumRow
	for rows.Next() {
		var r CommissionSumRow
		if err := rows.Scan(&r.Status, &r.AmountCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type DailyCountParams struct {
	BusinessID pgtype.UUID
	Since      pgtype.Timestamptz
}

type DailyCountRow struct {
	Day   pgtype.Date
	Count int64
}

func (q *Queries) DailyClicks(ctx context.Context, arg DailyCountParams) ([]DailyCountRow, error) {
	return q.dailyCounts(ctx, `SELECT created_at::date AS day, count(*)
FROM click_logs
WHERE business_id = $1 AND created_at >= $2
GROUP BY day
ORDER BY day`, arg)
}

func (q *Queries) DailyConversions(ctx context.Context, arg DailyCountParams) ([]DailyCountRow, error) {
	return q.dailyCounts(ctx, `SELECT created_at::date AS day, count(*)
FROM conversions
WHERE business_id = $1 AND created_at >= $2
GROUP BY day
ORDER BY day`, arg)
}

func (q *Queries) dailyCounts(ctx context.Context, query string, arg DailyCountParams) ([]DailyCountRow, error) {
	rows, err := q.db.Query(ctx, query, arg.BusinessID, arg.Since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DailyCountRow
	for rows.Next() {
		var r DailyCountRow
		if err := rows.Scan(&r.Day, &r.Count); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type CreateTrackingEventParams struct {
	BusinessID pgtype.UUID
	EventType  string
	SessionID  pgtype.Text
	PageUrl    pgtype.Text
	ClickID    pgtype.Text
	Data       []byte
}

func (q *Queries) CreateTrackingEvent(ctx context.Context, arg CreateTrackingEventParams) (TrackingEvent, error) {
	var e TrackingEvent
	err := q.db.QueryRow(ctx, `INSERT INTO tracking_events (business_id, event_type, session_id, page_url, click_id, data)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, business_id, event_type, session_id, page_url, click_id, data, created_at`,
		arg.BusinessID, arg.EventType, arg.SessionID, arg.PageUrl, arg.ClickID, arg.Data,
	).Scan(&e.ID, &e.BusinessID, &e.EventType, &e.SessionID, &e.PageUrl, &e.ClickID, &e.Data, &e.CreatedAt)
	return e, err
}
