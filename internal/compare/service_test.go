package compare

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type MockStore struct {
	mu        sync.Mutex
	products  []repo.UpsertProductParams
	snapshots []repo.CreatePriceSnapshotParams
}

func (m *MockStore) UpsertProduct(ctx context.Context, arg repo.UpsertProductParams) (repo.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products, arg)
	return repo.Product{ID: parser.NewPgUUID(), Url: arg.Url, Title: arg.Title}, nil
}

func (m *MockStore) CreatePriceSnapshot(ctx context.Context, arg repo.CreatePriceSnapshotParams) (repo.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, arg)
	return repo.PriceSnapshot{ID: parser.NewPgUUID(), ProductID: arg.ProductID, PriceCents: arg.PriceCents}, nil
}

type MockCache struct {
	items map[string]*CompareOutput
}

func (m *MockCache) Get(ctx context.Context, key string) (*CompareOutput, bool, error) {
	out, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	cp := *out
	return &cp, true, nil
}

func (m *MockCache) Set(ctx context.Context, key string, out *CompareOutput, ttl time.Duration) error {
	cp := *out
	m.items[key] = &cp
	return nil
}

type MockFetcher struct {
	product *Product
	offers  []Offer
	err     error
	calls   int
}

func (m *MockFetcher) Fetch(ctx context.Context, productURL string) (*Product, []Offer, error) {
	m.calls++
	if m.err != nil {
		return nil, nil, m.err
	}
	p := *m.product
	return &p, m.offers, nil
}

type MockIdentifier struct {
	id  Identity
	err error
}

func (m *MockIdentifier) Identify(ctx context.Context, productURL string) (Identity, error) {
	return m.id, m.err
}

type MockSearcher struct {
	mu      sync.Mutex
	queries []string
	offers  []Offer
	err     error
}

func (m *MockSearcher) Search(ctx context.Context, query string) ([]Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.offers, nil
}

const productURL = "https://www.loja.com/fone-jbl-tune-510bt/p"

func jblOffers() []Offer {
	return []Offer{
		{Title: "JBL Tune 510BT", PriceCents: 24990, Currency: "BRL", Store: "Loja A", URL: "https://a.com/1"},
		{Title: "JBL Tune 510BT Azul", PriceCents: 27990, Currency: "BRL", Store: "Loja B", URL: "https://b.com/1"},
		{Title: "JBL Tune 720BT", PriceCents: 39990, Currency: "BRL", Store: "Loja C", URL: "https://c.com/1"},
	}
}

func TestCompare_PrimaryAndCache(t *testing.T) {
	store := &MockStore{}
	cache := &MockCache{items: map[string]*CompareOutput{}}
	primary := &MockFetcher{
		product: &Product{Title: "Fone JBL Tune 510BT - Loja", PriceCents: 29990, Currency: "BRL", URL: productURL},
		offers:  jblOffers(),
	}
	service := NewService(store, cache, Backends{Primary: primary}, time.Hour, zap.NewNop())

	out, apiErr := service.Compare(context.Background(), CompareInput{URL: productURL}, parser.NewPgUUID())
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if out.Source != SourceN8N || out.Cached {
		t.Errorf("unexpected source %q cached=%v", out.Source, out.Cached)
	}
	if len(out.Comparisons) != 2 || out.Comparisons[0].PriceCents != 24990 {
		t.Errorf("unexpected comparisons: %+v", out.Comparisons)
	}
	if out.Product.Model != "510bt" || out.Product.Brand != "jbl" {
		t.Errorf("product not identified: %+v", out.Product)
	}
	if out.ProductID == nil || len(store.products) != 1 || len(store.snapshots) != 1 {
		t.Fatalf("product not persisted")
	}
	if store.snapshots[0].PriceCents != 29990 || store.snapshots[0].Source != SourceN8N {
		t.Errorf("unexpected snapshot: %+v", store.snapshots[0])
	}

	again, apiErr := service.Compare(context.Background(), CompareInput{URL: productURL}, pgtype.UUID{})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if !again.Cached || primary.calls != 1 {
		t.Errorf("expected cached answer, cached=%v calls=%d", again.Cached, primary.calls)
	}
}

func TestCompare_FallbackWithIdentifier(t *testing.T) {
	searcher := &MockSearcher{offers: jblOffers()}
	service := NewService(&MockStore{}, nil, Backends{
		Primary:    &MockFetcher{err: errors.New("timeout")},
		Identifier: &MockIdentifier{id: Identity{Title: "Fone JBL Tune 510BT", Brand: "jbl", Model: "510BT"}},
		Searcher:   searcher,
	}, 0, zap.NewNop())

	out, apiErr := service.Compare(context.Background(), CompareInput{URL: productURL}, pgtype.UUID{})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if out.Source != SourceSearchAPI || len(out.Comparisons) != 2 {
		t.Errorf("unexpected output: %+v", out)
	}
	if out.Product.Store != "loja.com" {
		t.Errorf("store = %q", out.Product.Store)
	}

	sort.Strings(searcher.queries)
	if len(searcher.queries) != 2 || searcher.queries[0] != "Fone JBL Tune 510BT" || searcher.queries[1] != "jbl 510BT" {
		t.Errorf("unexpected queries: %v", searcher.queries)
	}
}

func TestCompare_FallbackFromSlug(t *testing.T) {
	searcher := &MockSearcher{offers: jblOffers()}
	service := NewService(nil, nil, Backends{
		Identifier: &MockIdentifier{err: errors.New("quota")},
		Searcher:   searcher,
	}, 0, zap.NewNop())

	out, apiErr := service.Compare(context.Background(), CompareInput{URL: productURL}, pgtype.UUID{})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if out.Product.Model != "510bt" || len(out.Comparisons) != 2 {
		t.Errorf("unexpected output: %+v", out)
	}
}

func TestCompare_Errors(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		backends Backends
		code     int
	}{
		{"invalid url", "http://192.168.0.1/p", Backends{}, 400},
		{"no backends", productURL, Backends{}, 502},
		{
			"every backend fails", productURL,
			Backends{Primary: &MockFetcher{err: errors.New("down")}, Searcher: &MockSearcher{err: errors.New("down")}},
			502,
		},
		{
			"nothing relevant", productURL,
			Backends{Searcher: &MockSearcher{offers: []Offer{{Title: "Mouse Gamer", PriceCents: 9990, URL: "https://m.com/1"}}}},
			404,
		},
		{"unidentifiable url", "https://loja.com/p/123", Backends{Searcher: &MockSearcher{}}, 404},
		{
			"primary answered nothing relevant without fallback", productURL,
			Backends{Primary: &MockFetcher{
				product: &Product{Title: "Apple iPhone 15 128GB", PriceCents: 500000, Currency: "BRL", URL: productURL},
				offers:  []Offer{{Title: "Capinha Silicone", PriceCents: 2990, URL: "https://c.com/1"}},
			}},
			404,
		},
		{
			"primary answered nothing relevant and fallback fails", productURL,
			Backends{
				Primary: &MockFetcher{
					product: &Product{Title: "Apple iPhone 15 128GB", PriceCents: 500000, Currency: "BRL", URL: productURL},
					offers:  []Offer{{Title: "Capinha Silicone", PriceCents: 2990, URL: "https://c.com/1"}},
				},
				Searcher: &MockSearcher{err: errors.New("down")},
			},
			404,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(&MockStore{}, nil, tt.backends, 0, zap.NewNop())
			_, apiErr := service.Compare(context.Background(), CompareInput{URL: tt.url}, pgtype.UUID{})
			if apiErr == nil || apiErr.Code != tt.code {
				t.Errorf("expected %d, got %v", tt.code, apiErr)
			}
		})
	}
}
