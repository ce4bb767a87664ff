package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const webhookColumns = `id, business_id, url, events, secret, active, created_at`

func scanWebhook(row pgx.Row) (Webhook, error) {
	var w Webhook
	err := row.Scan(&w.ID, &w.BusinessID, &w.Url, &w.Events, &w.Secret, &w.Active, &w.CreatedAt)
	return w, err
}

func collectWebhooks(rows pgx.Rows) ([]Webhook, error) {
	defer rows.Close()

	var items []Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

type CreateWebhookParams struct {
	BusinessID pgtype.UUID
	Url        string
	Events     []string
	Secret     string
}

func (q *Queries) CreateWebhook(ctx context.Context, arg CreateWebhookParams) (Webhook, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO webhooks (business_id, url, events, secret)
VALUES ($1, $2, $3, $4)
RETURNING `+webhookColumns, arg.BusinessID, arg.Url, arg.Events, arg.Secret)
	return scanWebhook(row)
}

func (q *Queries) ListWebhooksByBusiness(ctx context.Context, businessID pgtype.UUID) ([]Webhook, error) {
	rows, err := q.db.Query(ctx, `SELECT `+webhookColumns+` FROM webhooks
WHERE business_id = $1
ORDER BY created_at DESC`, businessID)
	if err != nil {
		return nil, err
	}
	return collectWebhooks(rows)
}

type FindWebhookParams struct {
	ID         pgtype.UUID
	BusinessID pgtype.UUID
}

func (q *Queries) FindWebhook(ctx context.Context, arg FindWebhookParams) (Webhook, error) {
	return scanWebhook(q.db.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks
WHERE id = $1 AND business_id = $2`, arg.ID, arg.BusinessID))
}

func (q *Queries) DeleteWebhook(ctx context.Context, arg FindWebhookParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM webhooks WHERE id = $1 AND business_id = $2`, arg.ID, arg.BusinessID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type ListActiveWebhooksForEventParams struct {
	BusinessID pgtype.UUID
	Event      string
}

func (q *Queries) ListActiveWebhooksForEvent(ctx context.Context, arg ListActiveWebhooksForEventParams) ([]Webhook, error) {
	rows, err := q.db.Query(ctx, `SELECT `+webhookColumns+` FROM webhooks
WHERE business_id = $1 AND active AND ($2 = ANY(events) OR '*' = ANY(events))`, arg.BusinessID, arg.Event)
	if err != nil {
		return nil, err
	}
	return collectWebhooks(rows)
}

const deliveryColumns = `id, webhook_id, event, payload, status, attempts, response_code, last_error, next_attempt_at, delivered_at, created_at`

func scanDelivery(row pgx.Row) (WebhookDelivery, error) {
	var d WebhookDelivery
	err := row.Scan(
		&d.ID, &d.WebhookID, &d.Event, &d.Payload, &d.Status, &d.Attempts,
		&d.ResponseCode, &d.LastError, &d.NextAttemptAt, &d.DeliveredAt, &d.CreatedAt,
	)
	return d, err
}

type CreateWebhookDeliveryParams struct {
	WebhookID pgtype.UUID
	Event     string
	Payload   []byte
}

func (q *Queries) CreateWebhookDelivery(ctx context.Context, arg CreateWebhookDeliveryParams) (WebhookDelivery, error) {
	row := q.db.QueryRow(ctx, `INSERT INTO webhook_deliveries (webhook_id, event, payload, next_attempt_at)
VALUES ($1, $2, $3, now())
RETURNING `+deliveryColumns, arg.WebhookID, arg.Event, arg.Payload)
	return scanDelivery(row)
}

type MarkDeliverySucceededParams struct {
	ID           pgtype.UUID
	ResponseCode pgtype.Int4
}

func (q *Queries) MarkDeliverySucceeded(ctx context.Context, arg MarkDeliverySucceededParams) error {
	_, err := q.db.Exec(ctx, `UPDATE webhook_deliveries SET
    status = 'delivered',
    attempts = attempts + 1,
    response_code = $2,
    last_error = NULL,
    next_attempt_at = NULL,
    delivered_at = now()
WHERE id = $1`, arg.ID, arg.ResponseCode)
	return err
}

type MarkDeliveryFailedParams struct {
	ID            pgtype.UUID
	Status        string
	ResponseCode  pgtype.Int4
	LastError     pgtype.Text
	NextAttemptAt pgtype.Timestamptz
}

func (q *Queries) MarkDeliveryFailed(ctx context.Context, arg MarkDeliveryFailedParams) error {
	_, err := q.db.Exec(ctx, `UPDATE webhook_deliveries SET
    status = $2,
    attempts = attempts + 1,
    response_code = $3,
    last_error = $4,
    next_attempt_at = $5
WHERE id = $1`, arg.ID, arg.Status, arg.ResponseCode, arg.LastError, arg.NextAttemptAt)
	return err
}

// DueDeliveryRow carries what a worker needs to send a delivery.
type DueDeliveryRow struct {
	WebhookDelivery
	Url    string
	Secret string
}

type ListDueDeliveriesParams struct {
	Now   pgtype.Timestamptz
	Limit int32
}

func (q *Queries) ListDueDeliveries(ctx context.Context, arg ListDueDeliveriesParams) ([]DueDeliveryRow, error) {
	rows, err := q.db.Query(ctx, `SELECT d.id, d.webhook_id, d.event, d.payload, d.status, d.attempts, d.response_code,
    d.last_error, d.next_attempt_at, d.delivered_at, d.created_at, w.url, w.secret
FROM webhook_deliveries d
JOIN webhooks w ON w.id = d.webhook_id
WHERE d.status = 'pending' AND w.active AND d.next_attempt_at <= $1
ORDER BY d.next_attempt_at
LIMIT $2`, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DueDeliveryRow
	for rows.Next() {
		var r DueDeliveryRow
		if err := rows.Scan(
			&r.ID, &r.WebhookID, &r.Event, &r.Payload, &r.Status, &r.Attempts, &r.ResponseCode,
			&r.LastError, &r.NextAttemptAt, &r.DeliveredAt, &r.CreatedAt, &r.Url, &r.Secret,
		); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type ListDeliveriesByWebhookParams struct {
	WebhookID pgtype.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListDeliveriesByWebhook(ctx context.Context, arg ListDeliveriesByWebhookParams) ([]WebhookDelivery, error) {
	rows, err := q.db.Query(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries
WHERE webhook_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, arg.WebhookID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
