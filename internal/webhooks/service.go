package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/pagination"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const (
	retryBatchSize = 100
	testTimeout    = 15 * time.Second
)

type Service interface {
	Create(ctx context.Context, businessID pgtype.UUID, input CreateInput) (CreatedOutput, *rest.ApiErr)
	List(ctx context.Context, businessID pgtype.UUID) ([]WebhookOutput, *rest.ApiErr)
	Delete(ctx context.Context, businessID, webhookID pgtype.UUID) *rest.ApiErr
	SendTest(ctx context.Context, businessID, webhookID pgtype.UUID) (TestResult, *rest.ApiErr)
	ListDeliveries(ctx context.Context, businessID, webhookID pgtype.UUID, params pagination.Params) (DeliveriesPage, *rest.ApiErr)

	Dispatch(ctx context.Context, businessID pgtype.UUID, event string, data any) error
	RetryDue(ctx context.Context) (RetrySummary, error)
}

type Store interface {
	CreateWebhook(ctx context.Context, arg repo.CreateWebhookParams) (repo.Webhook, error)
	ListWebhooksByBusiness(ctx context.Context, businessID pgtype.UUID) ([]repo.Webhook, error)
	FindWebhook(ctx context.Context, arg repo.FindWebhookParams) (repo.Webhook, error)
	DeleteWebhook(ctx context.Context, arg repo.FindWebhookParams) (int64, error)
	ListActiveWebhooksForEvent(ctx context.Context, arg repo.ListActiveWebhooksForEventParams) ([]repo.Webhook, error)
	CreateWebhookDelivery(ctx context.Context, arg repo.CreateWebhookDeliveryParams) (repo.WebhookDelivery, error)
	ListDueDeliveries(ctx context.Context, arg repo.ListDueDeliveriesParams) ([]repo.DueDeliveryRow, error)
	ListDeliveriesByWebhook(ctx context.Context, arg repo.ListDeliveriesByWebhookParams) ([]repo.WebhookDelivery, error)
}

// Submitter is implemented by *WorkerPool.
type Submitter interface {
	Submit(job DeliveryJob) error
	SubmitAndWait(ctx context.Context, job DeliveryJob) (*DeliveryResult, error)
	SubmitBatch(ctx context.Context, jobs []DeliveryJob) (<-chan DeliveryResult, int, error)
}

type TestResult struct {
	DeliveryID pgtype.UUID `json:"delivery_id"`
	Delivered  bool        `json:"delivered"`
	StatusCode int         `json:"status_code,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type DeliveriesPage struct {
	Items    []DeliveryOutput `json:"items"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

type RetrySummary struct {
	Due       int
	Delivered int
	Failed    int
	Skipped   int
}

type svc struct {
	repo   Store
	pool   Submitter
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store Store, pool Submitter, logger *zap.Logger) Service {
	return &svc{
		repo:   store,
		pool:   pool,
		logger: logger,
		now:    time.Now,
	}
}

func (s *svc) Create(ctx context.Context, businessID pgtype.UUID, input CreateInput) (CreatedOutput, *rest.ApiErr) {
	target, apiErr := validateTargetURL(input.URL)
	if apiErr != nil {
		return CreatedOutput{}, apiErr
	}

	events, apiErr := normalizeEvents(input.Events)
	if apiErr != nil {
		return CreatedOutput{}, apiErr
	}

	secret, err := auth.RandomHex(24)
	if err != nil {
		return CreatedOutput{}, rest.NewInternalServerError("erro ao gerar segredo")
	}

	w, err := s.repo.CreateWebhook(ctx, repo.CreateWebhookParams{
		BusinessID: businessID,
		Url:        target,
		Events:     events,
		Secret:     "whsec_" + secret,
	})
	if err != nil {
		return CreatedOutput{}, database.HandleError(err, "empresa não encontrada")
	}

	return CreatedOutput{WebhookOutput: toWebhookOutput(w), Secret: w.Secret}, nil
}

func (s *svc) List(ctx context.Context, businessID pgtype.UUID) ([]WebhookOutput, *rest.ApiErr) {
	rows, err := s.repo.ListWebhooksByBusiness(ctx, businessID)
	if err != nil {
		return nil, database.HandleError(err, "empresa não encontrada")
	}

	out := make([]WebhookOutput, 0, len(rows))
	for _, w := range rows {
		out = append(out, toWebhookOutput(w))
	}
	return out, nil
}

func (s *svc) Delete(ctx context.Context, businessID, webhookID pgtype.UUID) *rest.ApiErr {
	n, err := s.repo.DeleteWebhook(ctx, repo.FindWebhookParams{ID: webhookID, BusinessID: businessID})
	if err != nil {
		return database.HandleError(err, "webhook não encontrado")
	}
	if n == 0 {
		return rest.NewNotFoundError("webhook não encontrado")
	}
	return nil
}

func (s *svc) SendTest(ctx context.Context, businessID, webhookID pgtype.UUID) (TestResult, *rest.ApiErr) {
	w, err := s.repo.FindWebhook(ctx, repo.FindWebhookParams{ID: webhookID, BusinessID: businessID})
	if err != nil {
		return TestResult{}, database.HandleError(err, "webhook não encontrado")
	}

	d, err := s.createDelivery(ctx, w, EventTest, map[string]any{
		"message": "Evento de teste do PriceCompare",
	})
	if err != nil {
		s.logger.Error("failed to create test delivery", zap.Error(err))
		return TestResult{}, rest.NewInternalServerError("erro ao criar entrega")
	}

	waitCtx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	result, err := s.pool.SubmitAndWait(waitCtx, jobFor(d, w.Url, w.Secret))
	if err != nil {
		s.logger.Warn("test delivery not completed", zap.Error(err))
		return TestResult{DeliveryID: d.ID, Error: err.Error()}, nil
	}

	out := TestResult{DeliveryID: d.ID, Delivered: result.Delivered, StatusCode: result.StatusCode}
	if result.Error != nil {
		out.Error = truncate(result.Error.Error(), maxErrorLength)
	}
	return out, nil
}

func (s *svc) ListDeliveries(ctx context.Context, businessID, webhookID pgtype.UUID, params pagination.Params) (DeliveriesPage, *rest.ApiErr) {
	if _, err := s.repo.FindWebhook(ctx, repo.FindWebhookParams{ID: webhookID, BusinessID: businessID}); err != nil {
		return DeliveriesPage{}, database.HandleError(err, "webhook não encontrado")
	}

	params = params.Normalize()
	rows, err := s.repo.ListDeliveriesByWebhook(ctx, repo.ListDeliveriesByWebhookParams{
		WebhookID: webhookID,
		Limit:     params.Limit(),
		Offset:    params.Offset(),
	})
	if err != nil {
		return DeliveriesPage{}, database.HandleError(err, "webhook não encontrado")
	}

	items := make([]DeliveryOutput, 0, len(rows))
	for _, d := range rows {
		items = append(items, toDeliveryOutput(d))
	}
	return DeliveriesPage{Items: items, Page: params.Page, PageSize: params.PageSize}, nil
}

// Dispatch records one pending delivery per subscribed webhook and hands it
// to the pool. Deliveries the pool cannot take right away stay pending and
// are picked up by RetryDue.
func (s *svc) Dispatch(ctx context.Context, businessID pgtype.UUID, event string, data any) error {
	hooks, err := s.repo.ListActiveWebhooksForEvent(ctx, repo.ListActiveWebhooksForEventParams{
		BusinessID: businessID,
		Event:      event,
	})
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}

	var errs []error
	for _, w := range hooks {
		d, err := s.createDelivery(ctx, w, event, data)
		if err != nil {
			s.logger.Error("failed to record delivery",
				zap.String("webhook_id", parser.MustPgUUIDToString(w.ID)),
				zap.String("event", event),
				zap.Error(err),
			)
			errs = append(errs, err)
			continue
		}
		if err := s.pool.Submit(jobFor(d, w.Url, w.Secret)); err != nil {
			s.logger.Warn("delivery left for retry",
				zap.String("delivery_id", parser.MustPgUUIDToString(d.ID)),
				zap.String("event", event),
				zap.Error(err),
			)
		}
	}
	return errors.Join(errs...)
}

func (s *svc) RetryDue(ctx context.Context) (RetrySummary, error) {
	due, err := s.repo.ListDueDeliveries(ctx, repo.ListDueDeliveriesParams{
		Now:   pgtype.Timestamptz{Time: s.now(), Valid: true},
		Limit: retryBatchSize,
	})
	if err != nil {
		return RetrySummary{}, fmt.Errorf("failed to list due deliveries: %w", err)
	}

	summary := RetrySummary{Due: len(due)}
	if len(due) == 0 {
		return summary, nil
	}

	jobs := make([]DeliveryJob, 0, len(due))
	for _, d := range due {
		jobs = append(jobs, jobFor(d.WebhookDelivery, d.Url, d.Secret))
	}

	results, skipped, err := s.pool.SubmitBatch(ctx, jobs)
	if err != nil {
		return summary, fmt.Errorf("failed to submit retries: %w", err)
	}
	summary.Skipped = skipped

	for r := range results {
		if r.Delivered {
			summary.Delivered++
		} else {
			summary.Failed++
		}
	}
	return summary, nil
}

func (s *svc) createDelivery(ctx context.Context, w repo.Webhook, event string, data any) (repo.WebhookDelivery, error) {
	payload, err := json.Marshal(Envelope{
		ID:        uuid.NewString(),
		Event:     event,
		CreatedAt: s.now().UTC(),
		Data:      data,
	})
	if err != nil {
		return repo.WebhookDelivery{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	d, err := s.repo.CreateWebhookDelivery(ctx, repo.CreateWebhookDeliveryParams{
		WebhookID: w.ID,
		Event:     event,
		Payload:   payload,
	})
	if err != nil {
		return repo.WebhookDelivery{}, fmt.Errorf("failed to create delivery: %w", err)
	}
	return d, nil
}

func jobFor(d repo.WebhookDelivery, target, secret string) DeliveryJob {
	return DeliveryJob{
		DeliveryID: d.ID,
		URL:        target,
		Secret:     secret,
		Event:      d.Event,
		Payload:    d.Payload,
		Attempts:   d.Attempts,
	}
}

// validateTargetURL requires https, except for loopback hosts used in development.
func validateTargetURL(raw string) (string, *rest.ApiErr) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || len(raw) > 2048 {
		return "", rest.NewBadRequestError("url inválida")
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !isLocalHost(u.Hostname()) {
			return "", rest.NewBadRequestError("a url do webhook deve usar https")
		}
	default:
		return "", rest.NewBadRequestError("url inválida")
	}
	return u.String(), nil
}

func isLocalHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func normalizeEvents(events []string) ([]string, *rest.ApiErr) {
	if len(events) == 0 {
		return []string{EventAll}, nil
	}

	seen := make(map[string]bool, len(events))
	out := make([]string, 0, len(events))
	var causes []rest.Causes
	for _, e := range events {
		e = strings.ToLower(strings.TrimSpace(e))
		if !subscribableEvents[e] {
			causes = append(causes, rest.Causes{Field: "events", Message: fmt.Sprintf("evento desconhecido: %s", e)})
			continue
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	if len(causes) > 0 {
		return nil, rest.NewBadRequestValidationError("eventos inválidos", causes)
	}
	return out, nil
}

func toWebhookOutput(w repo.Webhook) WebhookOutput {
	return WebhookOutput{
		ID:        w.ID,
		URL:       w.Url,
		Events:    w.Events,
		Active:    w.Active,
		CreatedAt: w.CreatedAt.Time,
	}
}

func toDeliveryOutput(d repo.WebhookDelivery) DeliveryOutput {
	out := DeliveryOutput{
		ID:        d.ID,
		Event:     d.Event,
		Payload:   d.Payload,
		Status:    d.Status,
		Attempts:  d.Attempts,
		LastError: d.LastError.String,
		CreatedAt: d.CreatedAt.Time,
	}
	if d.ResponseCode.Valid {
		code := d.ResponseCode.Int32
		out.ResponseCode = &code
	}
	if d.NextAttemptAt.Valid {
		t := d.NextAttemptAt.Time
		out.NextAttemptAt = &t
	}
	if d.DeliveredAt.Valid {
		t := d.DeliveredAt.Time
		out.DeliveredAt = &t
	}
	return out
}
