package compare

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCacheTTL = time.Hour
	persistTimeout  = 5 * time.Second
)

type Service interface {
	Compare(ctx context.Context, input CompareInput, userID pgtype.UUID) (*CompareOutput, *rest.ApiErr)
}

type Store interface {
	UpsertProduct(ctx context.Context, arg repo.UpsertProductParams) (repo.Product, error)
	CreatePriceSnapshot(ctx context.Context, arg repo.CreatePriceSnapshotParams) (repo.PriceSnapshot, error)
}

// Fetcher is the primary backend returning a product and its comparisons.
type Fetcher interface {
	Fetch(ctx context.Context, productURL string) (*Product, []Offer, error)
}

type Identifier interface {
	Identify(ctx context.Context, productURL string) (Identity, error)
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]Offer, error)
}

type Backends struct {
	Primary    Fetcher
	Identifier Identifier
	Searcher   Searcher
}

type svc struct {
	repo     Store
	cache    Cache
	backends Backends
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewService wires the compare flow. Any backend and the cache may be nil.
func NewService(store Store, cache Cache, backends Backends, cacheTTL time.Duration, logger *zap.Logger) Service {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &svc{
		repo:     store,
		cache:    cache,
		backends: backends,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

var (
	errBackendsFailed = errors.New("all compare backends failed")
	errNotFound       = errors.New("no relevant offers")
)

func (s *svc) Compare(ctx context.Context, input CompareInput, userID pgtype.UUID) (*CompareOutput, *rest.ApiErr) {
	u, err := ValidateProductURL(input.URL)
	if err != nil {
		return nil, rest.NewBadRequestError("url do produto inválida")
	}
	productURL := u.String()
	key := cacheKey(productURL)

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("compare cache read failed", zap.Error(err))
		} else if ok {
			cached.Cached = true
			return cached, nil
		}
	}

	out, err := s.fromPrimary(ctx, productURL)
	if err != nil {
		if s.backends.Primary != nil {
			s.logger.Warn("primary compare backend failed, using fallback",
				zap.String("url", productURL),
				zap.Error(err),
			)
		}
		primaryAnswered := errors.Is(err, errNotFound)
		out, err = s.fromFallback(ctx, productURL)
		// a primary that answered with nothing relevant is a 404, not a backend failure
		if err != nil && primaryAnswered {
			err = errNotFound
		}
	}
	if err != nil {
		switch {
		case errors.Is(err, errNotFound):
			return nil, rest.NewNotFoundError("nenhuma oferta relevante encontrada")
		default:
			s.logger.Error("compare failed", zap.String("url", productURL), zap.Error(err))
			return nil, rest.NewBadGatewayError("não foi possível comparar o produto agora")
		}
	}

	s.persist(ctx, out)

	if userID.Valid {
		s.logger.Info("compare requested",
			zap.String("user_id", parser.MustPgUUIDToString(userID)),
			zap.String("url", productURL),
			zap.String("source", out.Source),
		)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, out, s.cacheTTL); err != nil {
			s.logger.Warn("compare cache write failed", zap.Error(err))
		}
	}
	return out, nil
}

func (s *svc) fromPrimary(ctx context.Context, productURL string) (*CompareOutput, error) {
	if s.backends.Primary == nil {
		return nil, errBackendsFailed
	}
	product, offers, err := s.backends.Primary.Fetch(ctx, productURL)
	if err != nil {
		return nil, err
	}

	id := IdentityFromTitle(product.Title)
	product.Brand, product.Model = id.Brand, id.Model
	comparisons := Normalize(id, product.PriceCents, offers)
	if len(comparisons) == 0 {
		return nil, errNotFound
	}
	return &CompareOutput{Product: *product, Comparisons: comparisons, Source: SourceN8N}, nil
}

func (s *svc) fromFallback(ctx context.Context, productURL string) (*CompareOutput, error) {
	if s.backends.Searcher == nil {
		return nil, errBackendsFailed
	}

	id := s.identify(ctx, productURL)
	if id.Title == "" {
		return nil, errNotFound
	}

	queries := searchQueries(id)
	var (
		mu       sync.Mutex
		offers   []Offer
		failures int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queries {
		g.Go(func() error {
			found, err := s.backends.Searcher.Search(gctx, q)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				s.logger.Warn("searchapi query failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			offers = append(offers, found...)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(queries) {
		return nil, errBackendsFailed
	}

	comparisons := Normalize(id, 0, offers)
	if len(comparisons) == 0 {
		return nil, errNotFound
	}

	product := Product{
		Title:    id.Title,
		Brand:    id.Brand,
		Model:    id.Model,
		Currency: comparisons[0].Currency,
		URL:      productURL,
	}
	if u, err := ValidateProductURL(productURL); err == nil {
		product.Store = strings.TrimPrefix(u.Hostname(), "www.")
	}
	return &CompareOutput{Product: product, Comparisons: comparisons, Source: SourceSearchAPI}, nil
}

// identify prefers the LLM and falls back to the URL slug.
func (s *svc) identify(ctx context.Context, productURL string) Identity {
	if s.backends.Identifier != nil {
		id, err := s.backends.Identifier.Identify(ctx, productURL)
		if err == nil && id.Title != "" {
			return id
		}
		s.logger.Warn("product identification failed", zap.String("url", productURL), zap.Error(err))
	}
	u, err := ValidateProductURL(productURL)
	if err != nil {
		return Identity{}
	}
	return IdentityFromURL(u)
}

// persist stores the product and, when priced, a snapshot. Failures only log:
// the comparison is still returned.
func (s *svc) persist(ctx context.Context, out *CompareOutput) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	p := out.Product
	var price pgtype.Int8
	if p.PriceCents > 0 {
		price = parser.PgInt8(p.PriceCents)
	}
	product, err := s.repo.UpsertProduct(ctx, repo.UpsertProductParams{
		Url:               p.URL,
		Title:             p.Title,
		Brand:             parser.PgText(p.Brand),
		Model:             parser.PgText(p.Model),
		ImageUrl:          parser.PgText(p.Image),
		Store:             parser.PgText(p.Store),
		Currency:          parser.PgText(p.Currency),
		CurrentPriceCents: price,
	})
	if err != nil {
		s.logger.Error("failed to persist compared product", zap.String("url", p.URL), zap.Error(err))
		return
	}
	out.ProductID = &product.ID

	if p.PriceCents <= 0 {
		return
	}
	if _, err := s.repo.CreatePriceSnapshot(ctx, repo.CreatePriceSnapshotParams{
		ProductID:  product.ID,
		PriceCents: p.PriceCents,
		Currency:   parser.PgText(p.Currency),
		Source:     out.Source,
	}); err != nil {
		s.logger.Error("failed to store price snapshot", zap.String("url", p.URL), zap.Error(err))
	}
}
