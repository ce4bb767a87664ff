package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/pagination"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type MockStore struct {
	webhooks     []repo.Webhook
	deliveries   []repo.WebhookDelivery
	due          []repo.DueDeliveryRow
	failDelivery map[pgtype.UUID]bool
}

func (m *MockStore) CreateWebhook(ctx context.Context, arg repo.CreateWebhookParams) (repo.Webhook, error) {
	w := repo.Webhook{ID: parser.NewPgUUID(), BusinessID: arg.BusinessID, Url: arg.Url, Events: arg.Events, Secret: arg.Secret, Active: true}
	m.webhooks = append(m.webhooks, w)
	return w, nil
}

func (m *MockStore) ListWebhooksByBusiness(ctx context.Context, businessID pgtype.UUID) ([]repo.Webhook, error) {
	var out []repo.Webhook
	for _, w := range m.webhooks {
		if w.BusinessID == businessID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *MockStore) FindWebhook(ctx context.Context, arg repo.FindWebhookParams) (repo.Webhook, error) {
	for _, w := range m.webhooks {
		if w.ID == arg.ID && w.BusinessID == arg.BusinessID {
			return w, nil
		}
	}
	return repo.Webhook{}, pgx.ErrNoRows
}

func (m *MockStore) DeleteWebhook(ctx context.Context, arg repo.FindWebhookParams) (int64, error) {
	for i, w := range m.webhooks {
		if w.ID == arg.ID && w.BusinessID == arg.BusinessID {
			m.webhooks = append(m.webhooks[:i], m.webhooks[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *MockStore) ListActiveWebhooksForEvent(ctx context.Context, arg repo.ListActiveWebhooksForEventParams) ([]repo.Webhook, error) {
	var out []repo.Webhook
	for _, w := range m.webhooks {
		if w.BusinessID != arg.BusinessID || !w.Active {
			continue
		}
		for _, e := range w.Events {
			if e == arg.Event || e == EventAll {
				out = append(out, w)
				break
			}
		}
	}
	return out, nil
}

func (m *MockStore) CreateWebhookDelivery(ctx context.Context, arg repo.CreateWebhookDeliveryParams) (repo.WebhookDelivery, error) {
	if m.failDelivery[arg.WebhookID] {
		return repo.WebhookDelivery{}, errors.New("insert failed")
	}
	d := repo.WebhookDelivery{ID: parser.NewPgUUID(), WebhookID: arg.WebhookID, Event: arg.Event, Payload: arg.Payload, Status: DeliveryPending}
	m.deliveries = append(m.deliveries, d)
	return d, nil
}

func (m *MockStore) ListDueDeliveries(ctx context.Context, arg repo.ListDueDeliveriesParams) ([]repo.DueDeliveryRow, error) {
	return m.due, nil
}

func (m *MockStore) ListDeliveriesByWebhook(ctx context.Context, arg repo.ListDeliveriesByWebhookParams) ([]repo.WebhookDelivery, error) {
	var out []repo.WebhookDelivery
	for _, d := range m.deliveries {
		if d.WebhookID == arg.WebhookID {
			out = append(out, d)
		}
	}
	return out, nil
}

type MockSubmitter struct {
	submitted []DeliveryJob
	submitErr error
}

func (m *MockSubmitter) Submit(job DeliveryJob) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, job)
	return nil
}

func (m *MockSubmitter) SubmitAndWait(ctx context.Context, job DeliveryJob) (*DeliveryResult, error) {
	m.submitted = append(m.submitted, job)
	return &DeliveryResult{Job: job, StatusCode: 200, Delivered: true}, nil
}

func (m *MockSubmitter) SubmitBatch(ctx context.Context, jobs []DeliveryJob) (<-chan DeliveryResult, int, error) {
	out := make(chan DeliveryResult, len(jobs))
	for i, j := range jobs {
		m.submitted = append(m.submitted, j)
		out <- DeliveryResult{Job: j, Delivered: i%2 == 0}
	}
	close(out)
	return out, 0, nil
}

func TestCreate(t *testing.T) {
	store := &MockStore{}
	s := NewService(store, &MockSubmitter{}, zap.NewNop())
	businessID := parser.NewPgUUID()

	out, apiErr := s.Create(context.Background(), businessID, CreateInput{
		URL:    "https://loja.com/hooks",
		Events: []string{"conversion.created", "Conversion.Created", "domain.verified"},
	})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if len(out.Secret) != len("whsec_")+48 || out.Secret[:6] != "whsec_" {
		t.Errorf("unexpected secret %q", out.Secret)
	}
	if len(out.Events) != 2 {
		t.Errorf("events = %v, want deduplicated", out.Events)
	}

	out, apiErr = s.Create(context.Background(), businessID, CreateInput{URL: "http://localhost:8080/hook"})
	if apiErr != nil {
		t.Fatalf("localhost over http should be allowed: %v", apiErr)
	}
	if len(out.Events) != 1 || out.Events[0] != EventAll {
		t.Errorf("default events = %v", out.Events)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := NewService(&MockStore{}, &MockSubmitter{}, zap.NewNop())

	tests := []struct {
		name  string
		input CreateInput
	}{
		{"plain http", CreateInput{URL: "http://loja.com/hook"}},
		{"ftp", CreateInput{URL: "ftp://loja.com/hook"}},
		{"no host", CreateInput{URL: "https://"}},
		{"unknown event", CreateInput{URL: "https://loja.com", Events: []string{"order.shipped"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, apiErr := s.Create(context.Background(), parser.NewPgUUID(), tt.input); apiErr == nil || apiErr.Code != 400 {
				t.Errorf("expected 400, got %v", apiErr)
			}
		})
	}
}

func TestDispatch(t *testing.T) {
	businessID := parser.NewPgUUID()
	store := &MockStore{webhooks: []repo.Webhook{
		{ID: parser.NewPgUUID(), BusinessID: businessID, Url: "https://a.com", Events: []string{EventConversionCreated}, Secret: "s1", Active: true},
		{ID: parser.NewPgUUID(), BusinessID: businessID, Url: "https://b.com", Events: []string{EventAll}, Secret: "s2", Active: true},
		{ID: parser.NewPgUUID(), BusinessID: businessID, Url: "https://c.com", Events: []string{EventDomainVerified}, Secret: "s3", Active: true},
		{ID: parser.NewPgUUID(), BusinessID: parser.NewPgUUID(), Url: "https://d.com", Events: []string{EventAll}, Secret: "s4", Active: true},
	}}
	pool := &MockSubmitter{}
	s := NewService(store, pool, zap.NewNop())

	if err := s.Dispatch(context.Background(), businessID, EventConversionCreated, map[string]any{"order_id": "42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.deliveries) != 2 || len(pool.submitted) != 2 {
		t.Fatalf("deliveries = %d submitted = %d, want 2", len(store.deliveries), len(pool.submitted))
	}

	var env struct {
		ID    string         `json:"id"`
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(pool.submitted[0].Payload, &env); err != nil {
		t.Fatalf("invalid payload: %v", err)
	}
	if env.ID == "" || env.Event != EventConversionCreated || env.Data["order_id"] != "42" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if pool.submitted[0].Secret != "s1" || pool.submitted[1].URL != "https://b.com" {
		t.Errorf("unexpected jobs: %+v", pool.submitted)
	}
}

func TestDispatch_QueueFullLeavesPending(t *testing.T) {
	businessID := parser.NewPgUUID()
	store := &MockStore{webhooks: []repo.Webhook{
		{ID: parser.NewPgUUID(), BusinessID: businessID, Url: "https://a.com", Events: []string{EventAll}, Active: true},
	}}
	s := NewService(store, &MockSubmitter{submitErr: ErrQueueFull}, zap.NewNop())

	if err := s.Dispatch(context.Background(), businessID, EventClickCreated, nil); err != nil {
		t.Fatalf("queue full must not fail dispatch: %v", err)
	}
	if len(store.deliveries) != 1 || store.deliveries[0].Status != DeliveryPending {
		t.Errorf("delivery should stay pending: %+v", store.deliveries)
	}
}

func TestDispatch_ContinuesAfterDeliveryError(t *testing.T) {
	businessID := parser.NewPgUUID()
	broken := parser.NewPgUUID()
	store := &MockStore{
		webhooks: []repo.Webhook{
			{ID: broken, BusinessID: businessID, Url: "https://a.com", Events: []string{EventAll}, Active: true},
			{ID: parser.NewPgUUID(), BusinessID: businessID, Url: "https://b.com", Events: []string{EventAll}, Active: true},
		},
		failDelivery: map[pgtype.UUID]bool{broken: true},
	}
	pool := &MockSubmitter{}
	s := NewService(store, pool, zap.NewNop())

	if err := s.Dispatch(context.Background(), businessID, EventClickCreated, nil); err == nil {
		t.Error("expected the delivery error to be reported")
	}
	if len(store.deliveries) != 1 || len(pool.submitted) != 1 || pool.submitted[0].URL != "https://b.com" {
		t.Errorf("later webhooks must still be dispatched: deliveries=%d submitted=%+v", len(store.deliveries), pool.submitted)
	}
}

func TestRetryDue(t *testing.T) {
	store := &MockStore{due: []repo.DueDeliveryRow{
		{WebhookDelivery: repo.WebhookDelivery{ID: parser.NewPgUUID(), Attempts: 1}, Url: "https://a.com", Secret: "s"},
		{WebhookDelivery: repo.WebhookDelivery{ID: parser.NewPgUUID(), Attempts: 2}, Url: "https://a.com", Secret: "s"},
		{WebhookDelivery: repo.WebhookDelivery{ID: parser.NewPgUUID(), Attempts: 3}, Url: "https://a.com", Secret: "s"},
	}}
	pool := &MockSubmitter{}
	s := NewService(store, pool, zap.NewNop())

	summary, err := s.RetryDue(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Due != 3 || summary.Delivered != 2 || summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if pool.submitted[2].Attempts != 3 {
		t.Errorf("attempts not carried into job: %+v", pool.submitted[2])
	}
}

func TestDeleteAndDeliveries_Ownership(t *testing.T) {
	owner := parser.NewPgUUID()
	hook := repo.Webhook{ID: parser.NewPgUUID(), BusinessID: owner, Url: "https://a.com", Events: []string{EventAll}, Active: true}
	store := &MockStore{webhooks: []repo.Webhook{hook}}
	s := NewService(store, &MockSubmitter{}, zap.NewNop())

	if _, apiErr := s.ListDeliveries(context.Background(), parser.NewPgUUID(), hook.ID, pagination.Params{}); apiErr == nil || apiErr.Code != 404 {
		t.Errorf("expected 404 for other business, got %v", apiErr)
	}
	if apiErr := s.Delete(context.Background(), parser.NewPgUUID(), hook.ID); apiErr == nil || apiErr.Code != 404 {
		t.Errorf("expected 404 for other business, got %v", apiErr)
	}

	result, apiErr := s.SendTest(context.Background(), owner, hook.ID)
	if apiErr != nil || !result.Delivered {
		t.Fatalf("unexpected test result: %+v %v", result, apiErr)
	}
	page, apiErr := s.ListDeliveries(context.Background(), owner, hook.ID, pagination.Params{})
	if apiErr != nil || len(page.Items) != 1 || page.Items[0].Event != EventTest {
		t.Errorf("unexpected deliveries: %+v %v", page, apiErr)
	}

	if apiErr := s.Delete(context.Background(), owner, hook.ID); apiErr != nil {
		t.Errorf("unexpected error: %v", apiErr)
	}
}
