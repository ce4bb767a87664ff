package tracking

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// MockStore doubles as the transactional Querier; methods not overridden
// panic through the embedded nil interface.
type MockStore struct {
	repo.Querier
	mu          sync.Mutex
	businesses  []repo.Business
	clicks      []repo.ClickLog
	conversions []repo.Conversion
	sales       []repo.Sale
	commissions []repo.Commission
	events      []repo.TrackingEvent
	clickCount  map[pgtype.UUID]int
	revenue     map[pgtype.UUID]int64
	clickErr    error
}

func newMockStore(businesses ...repo.Business) *MockStore {
	return &MockStore{
		businesses: businesses,
		clickCount: map[pgtype.UUID]int{},
		revenue:    map[pgtype.UUID]int64{},
	}
}

func (m *MockStore) FindBusinessByAffiliateID(ctx context.Context, affiliateID string) (repo.Business, error) {
	for _, b := range m.businesses {
		if b.AffiliateID == affiliateID {
			return b, nil
		}
	}
	return repo.Business{}, pgx.ErrNoRows
}

func (m *MockStore) FindBusinessByApiKey(ctx context.Context, apiKey string) (repo.Business, error) {
	for _, b := range m.businesses {
		if b.ApiKey == apiKey {
			return b, nil
		}
	}
	return repo.Business{}, pgx.ErrNoRows
}

func (m *MockStore) CreateClickLog(ctx context.Context, arg repo.CreateClickLogParams) (repo.ClickLog, error) {
	if m.clickErr != nil {
		return repo.ClickLog{}, m.clickErr
	}
	c := repo.ClickLog{ID: parser.NewPgUUID(), BusinessID: arg.BusinessID, ClickID: arg.ClickID, TargetUrl: arg.TargetUrl, UserID: arg.UserID}
	m.clicks = append(m.clicks, c)
	return c, nil
}

func (m *MockStore) IncrementBusinessClicks(ctx context.Context, id pgtype.UUID) error {
	m.clickCount[id]++
	return nil
}

func (m *MockStore) FindClickByClickID(ctx context.Context, clickID string) (repo.ClickLog, error) {
	for _, c := range m.clicks {
		if c.ClickID == clickID {
			return c, nil
		}
	}
	return repo.ClickLog{}, pgx.ErrNoRows
}

func (m *MockStore) FindConversionByOrder(ctx context.Context, arg repo.FindConversionByOrderParams) (repo.Conversion, error) {
	for _, c := range m.conversions {
		if c.BusinessID == arg.BusinessID && c.OrderID == arg.OrderID {
			return c, nil
		}
	}
	return repo.Conversion{}, pgx.ErrNoRows
}

func (m *MockStore) CreateTrackingEvent(ctx context.Context, arg repo.CreateTrackingEventParams) (repo.TrackingEvent, error) {
	ev := repo.TrackingEvent{ID: parser.NewPgUUID(), BusinessID: arg.BusinessID, EventType: arg.EventType, Data: arg.Data}
	m.events = append(m.events, ev)
	return ev, nil
}

func (m *MockStore) ExecTx(ctx context.Context, fn func(repo.Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

func (m *MockStore) CreateConversion(ctx context.Context, arg repo.CreateConversionParams) (repo.Conversion, error) {
	c := repo.Conversion{
		ID:          parser.NewPgUUID(),
		BusinessID:  arg.BusinessID,
		ClickID:     arg.ClickID,
		OrderID:     arg.OrderID,
		AmountCents: arg.AmountCents,
		Currency:    arg.Currency,
		Source:      arg.Source,
	}
	m.conversions = append(m.conversions, c)
	return c, nil
}

func (m *MockStore) CreateSale(ctx context.Context, arg repo.CreateSaleParams) (repo.Sale, error) {
	s := repo.Sale{ID: parser.NewPgUUID(), BusinessID: arg.BusinessID, ConversionID: arg.ConversionID, AmountCents: arg.AmountCents}
	m.sales = append(m.sales, s)
	return s, nil
}

func (m *MockStore) CreateCommission(ctx context.Context, arg repo.CreateCommissionParams) (repo.Commission, error) {
	c := repo.Commission{ID: parser.NewPgUUID(), BusinessID: arg.BusinessID, SaleID: arg.SaleID, AmountCents: arg.AmountCents, RateBps: arg.RateBps, Status: "pending"}
	m.commissions = append(m.commissions, c)
	return c, nil
}

func (m *MockStore) AddBusinessConversion(ctx context.Context, arg repo.AddBusinessConversionParams) error {
	m.revenue[arg.ID] += arg.RevenueCents
	return nil
}

// MockDeduper mimics SETNX semantics in memory.
type MockDeduper struct {
	keys map[string]string
}

func (m *MockDeduper) Claim(ctx context.Context, key, clickID string, ttl time.Duration) (string, bool, error) {
	if existing, ok := m.keys[key]; ok {
		return existing, false, nil
	}
	m.keys[key] = clickID
	return clickID, true, nil
}

func (m *MockDeduper) Release(ctx context.Context, key, clickID string) error {
	if m.keys[key] == clickID {
		delete(m.keys, key)
	}
	return nil
}

type MockDispatcher struct {
	mu     sync.Mutex
	events []string
}

func (m *MockDispatcher) Dispatch(ctx context.Context, businessID pgtype.UUID, event string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type MockEmail struct {
	done chan struct{}
}

func (m *MockEmail) Send(subject, text, html string, recipients []string) error {
	m.done <- struct{}{}
	return nil
}

type MockSMS struct {
	done chan string
}

func (m *MockSMS) Send(to, msg string) error {
	m.done <- to
	return nil
}

func testBusiness() repo.Business {
	return repo.Business{
		ID:                parser.NewPgUUID(),
		Name:              "Loja",
		Email:             "loja@loja.com",
		Website:           parser.PgText("https://loja.com"),
		Domain:            parser.PgText("loja.com"),
		DomainVerified:    true,
		Phone:             parser.PgText("+5584999990000"),
		AffiliateID:       "aff_0123456789ab",
		ApiKey:            "pk_test",
		ShopifySecret:     "shpss_secret",
		CommissionRateBps: 500,
		Status:            businessActive,
	}
}

type fixture struct {
	store      *MockStore
	dispatcher *MockDispatcher
	email      *MockEmail
	sms        *MockSMS
	svc        Service
	business   repo.Business
}

func newFixture() *fixture {
	b := testBusiness()
	f := &fixture{
		store:      newMockStore(b),
		dispatcher: &MockDispatcher{},
		email:      &MockEmail{done: make(chan struct{}, 10)},
		sms:        &MockSMS{done: make(chan string, 10)},
		business:   b,
	}
	f.svc = NewService(f.store, &MockDeduper{keys: map[string]string{}}, f.dispatcher, f.email, f.sms, zap.NewNop())
	return f
}

func TestClick(t *testing.T) {
	f := newFixture()

	result, apiErr := f.svc.Click(context.Background(), ClickInput{
		AffiliateID: f.business.AffiliateID,
		TargetURL:   "https://shop.loja.com/produto?id=1",
		IP:          "10.0.0.1",
	})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}

	u, err := url.Parse(result.RedirectURL)
	if err != nil {
		t.Fatalf("invalid redirect: %v", err)
	}
	if u.Query().Get(ClickParam) != result.ClickID || u.Query().Get("id") != "1" {
		t.Errorf("unexpected redirect %q", result.RedirectURL)
	}
	if len(f.store.clicks) != 1 || f.store.clickCount[f.business.ID] != 1 {
		t.Errorf("click not recorded")
	}
	if len(f.dispatcher.events) != 1 || f.dispatcher.events[0] != eventClick {
		t.Errorf("unexpected events: %v", f.dispatcher.events)
	}
}

func TestClick_DuplicateWithinWindow(t *testing.T) {
	f := newFixture()
	input := ClickInput{AffiliateID: f.business.AffiliateID, TargetURL: "https://loja.com/p", IP: "10.0.0.1"}

	first, apiErr := f.svc.Click(context.Background(), input)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	second, apiErr := f.svc.Click(context.Background(), input)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}

	if !second.Duplicate || second.ClickID != first.ClickID {
		t.Errorf("expected reused click id, got %+v vs %+v", second, first)
	}
	if f.store.clickCount[f.business.ID] != 1 || len(f.store.clicks) != 1 {
		t.Errorf("duplicate click was counted")
	}

	input.IP = "10.0.0.2"
	third, _ := f.svc.Click(context.Background(), input)
	if third.Duplicate || third.ClickID == first.ClickID {
		t.Error("click from another ip should be new")
	}
}

func TestClick_FailedInsertReleasesDedupe(t *testing.T) {
	f := newFixture()
	input := ClickInput{AffiliateID: f.business.AffiliateID, TargetURL: "https://loja.com/p", IP: "10.0.0.1"}

	f.store.clickErr = errors.New("connection reset")
	if _, apiErr := f.svc.Click(context.Background(), input); apiErr == nil || apiErr.Code != 500 {
		t.Fatalf("expected 500, got %v", apiErr)
	}

	f.store.clickErr = nil
	retry, apiErr := f.svc.Click(context.Background(), input)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if retry.Duplicate {
		t.Error("retry after a failed insert must not be treated as duplicate")
	}
	if _, err := f.store.FindClickByClickID(context.Background(), retry.ClickID); err != nil {
		t.Errorf("redirected click id %s was not stored", retry.ClickID)
	}
}

func TestClick_Rejections(t *testing.T) {
	f := newFixture()
	suspended := testBusiness()
	suspended.ID = parser.NewPgUUID()
	suspended.AffiliateID = "aff_suspended0"
	suspended.Status = "suspended"
	f.store.businesses = append(f.store.businesses, suspended)

	tests := []struct {
		name  string
		input ClickInput
		code  int
	}{
		{"unknown affiliate", ClickInput{AffiliateID: "aff_unknown", TargetURL: "https://loja.com"}, 404},
		{"suspended", ClickInput{AffiliateID: "aff_suspended0", TargetURL: "https://loja.com"}, 403},
		{"javascript scheme", ClickInput{AffiliateID: f.business.AffiliateID, TargetURL: "javascript:alert(1)"}, 400},
		{"other domain", ClickInput{AffiliateID: f.business.AffiliateID, TargetURL: "https://evil.com/?loja.com"}, 400},
		{"lookalike domain", ClickInput{AffiliateID: f.business.AffiliateID, TargetURL: "https://notloja.com"}, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, apiErr := f.svc.Click(context.Background(), tt.input)
			if apiErr == nil || apiErr.Code != tt.code {
				t.Errorf("expected %d, got %v", tt.code, apiErr)
			}
		})
	}
}

func TestClick_DefaultsToWebsite(t *testing.T) {
	f := newFixture()
	result, apiErr := f.svc.Click(context.Background(), ClickInput{AffiliateID: f.business.AffiliateID, IP: "1.1.1.1"})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if u, _ := url.Parse(result.RedirectURL); u.Host != "loja.com" {
		t.Errorf("redirect = %q", result.RedirectURL)
	}
}

func TestRecordConversion(t *testing.T) {
	f := newFixture()
	click, _ := f.svc.Click(context.Background(), ClickInput{AffiliateID: f.business.AffiliateID, TargetURL: "https://loja.com", IP: "1.1.1.1"})

	out, apiErr := f.svc.RecordConversion(context.Background(), f.business, ConversionInput{
		OrderID:  "1001",
		Amount:   Amount{Cents: 12990, Set: true},
		Currency: "brl",
		ClickID:  click.ClickID,
	}, SourceAPI)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}

	if out.Duplicate || out.CommissionCents != 650 || out.Currency != "BRL" || out.ClickID != click.ClickID {
		t.Errorf("unexpected output: %+v", out)
	}
	if len(f.store.sales) != 1 || len(f.store.commissions) != 1 || f.store.commissions[0].AmountCents != 650 {
		t.Errorf("sale/commission not created: %+v %+v", f.store.sales, f.store.commissions)
	}
	if f.store.revenue[f.business.ID] != 12990 {
		t.Errorf("business counters not updated")
	}

	select {
	case <-f.email.done:
	case <-time.After(time.Second):
		t.Error("conversion email not sent")
	}
	select {
	case to := <-f.sms.done:
		if to != f.business.Phone.String {
			t.Errorf("sms sent to %q", to)
		}
	case <-time.After(time.Second):
		t.Error("sale sms not sent")
	}

	again, apiErr := f.svc.RecordConversion(context.Background(), f.business, ConversionInput{
		OrderID: "1001",
		Amount:  Amount{Cents: 12990, Set: true},
	}, SourceAPI)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if !again.Duplicate || again.ID != out.ID {
		t.Errorf("expected duplicate of %v, got %+v", out.ID, again)
	}
	if len(f.store.conversions) != 1 || len(f.store.commissions) != 1 {
		t.Error("duplicate order created new rows")
	}

	f.dispatcher.mu.Lock()
	defer f.dispatcher.mu.Unlock()
	conversions := 0
	for _, e := range f.dispatcher.events {
		if e == eventConversion {
			conversions++
		}
	}
	if conversions != 1 {
		t.Errorf("conversion webhook fired %d times, want 1", conversions)
	}
}

func TestRecordConversion_Validation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name  string
		input ConversionInput
	}{
		{"missing order", ConversionInput{Amount: Amount{Cents: 100, Set: true}}},
		{"missing amount", ConversionInput{OrderID: "1"}},
		{"zero amount", ConversionInput{OrderID: "1", Amount: Amount{Cents: 0, Set: true}}},
		{"negative amount", ConversionInput{OrderID: "1", Amount: Amount{Cents: -100, Set: true}}},
		{"bad currency", ConversionInput{OrderID: "1", Amount: Amount{Cents: 100, Set: true}, Currency: "REAL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, apiErr := f.svc.RecordConversion(context.Background(), f.business, tt.input, SourceAPI); apiErr == nil || apiErr.Code != 400 {
				t.Errorf("expected 400, got %v", apiErr)
			}
		})
	}
}

func TestRecordConversion_ForeignClickIsDropped(t *testing.T) {
	f := newFixture()
	f.store.clicks = append(f.store.clicks, repo.ClickLog{BusinessID: parser.NewPgUUID(), ClickID: "other-business-click"})

	out, apiErr := f.svc.RecordConversion(context.Background(), f.business, ConversionInput{
		OrderID: "2",
		Amount:  Amount{Cents: 1000, Set: true},
		ClickID: "other-business-click",
	}, SourceAPI)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if out.ClickID != "" {
		t.Errorf("click id %q should not be attributed", out.ClickID)
	}
}

func TestRecordEvent(t *testing.T) {
	f := newFixture()

	if _, apiErr := f.svc.RecordEvent(context.Background(), f.business, EventInput{EventType: "hover"}); apiErr == nil || apiErr.Code != 400 {
		t.Errorf("expected 400 for unknown type, got %v", apiErr)
	}

	out, apiErr := f.svc.RecordEvent(context.Background(), f.business, EventInput{
		EventType: "page_view",
		Data:      []byte(`{"title":"Home"}`),
	})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if out.Conversion != nil || len(f.store.events) != 1 {
		t.Errorf("unexpected result: %+v", out)
	}

	out, apiErr = f.svc.RecordEvent(context.Background(), f.business, EventInput{
		EventType: "purchase",
		OrderID:   "A-9",
		Amount:    Amount{Cents: 5000, Set: true},
	})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if out.Conversion == nil || out.Conversion.Source != SourceScript || out.Conversion.CommissionCents != 250 {
		t.Errorf("purchase not converted: %+v", out.Conversion)
	}
}

func shopifySign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestHandleShopify(t *testing.T) {
	f := newFixture()
	f.store.clicks = append(f.store.clicks, repo.ClickLog{BusinessID: f.business.ID, ClickID: "click-123"})

	body := []byte(`{"id":450789469,"total_price":"199.90","currency":"BRL","landing_site":"/products/x?pc_click_id=click-123","note_attributes":[]}`)

	if _, apiErr := f.svc.HandleShopify(context.Background(), f.business.AffiliateID, TopicOrdersCreate, "bm90LXRoZS1zaWc=", body); apiErr == nil || apiErr.Code != 401 {
		t.Fatalf("expected 401 for bad signature, got %v", apiErr)
	}

	result, apiErr := f.svc.HandleShopify(context.Background(), f.business.AffiliateID, TopicOrdersCreate, shopifySign(f.business.ShopifySecret, body), body)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	conv := result.Conversion
	if conv == nil || conv.OrderID != "450789469" || conv.AmountCents != 19990 || conv.ClickID != "click-123" || conv.Source != SourceShopify {
		t.Fatalf("unexpected conversion: %+v", conv)
	}

	// orders/paid for the same order is a duplicate
	result, apiErr = f.svc.HandleShopify(context.Background(), f.business.AffiliateID, TopicOrdersPaid, shopifySign(f.business.ShopifySecret, body), body)
	if apiErr != nil || !result.Conversion.Duplicate {
		t.Errorf("expected duplicate, got %+v %v", result, apiErr)
	}

	other := []byte(`{"id":1}`)
	result, apiErr = f.svc.HandleShopify(context.Background(), f.business.AffiliateID, "customers/create", shopifySign(f.business.ShopifySecret, other), other)
	if apiErr != nil || result.EventID == nil {
		t.Fatalf("expected tracking event, got %+v %v", result, apiErr)
	}
	if f.store.events[len(f.store.events)-1].EventType != "shopify:customers/create" {
		t.Errorf("event type = %q", f.store.events[len(f.store.events)-1].EventType)
	}
}

func TestShopifyClickID_NoteAttributes(t *testing.T) {
	var order shopifyOrder
	order.LandingSite = "/?pc_click_id=from-landing"
	order.NoteAttributes = append(order.NoteAttributes, struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}{Name: ClickParam, Value: "from-note"})

	if got := shopifyClickID(order); got != "from-note" {
		t.Errorf("got %q, want from-note", got)
	}
}
