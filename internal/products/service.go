package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const refreshTimeout = 90 * time.Second

type Service interface {
	GetProduct(ctx context.Context, productID pgtype.UUID) (*ProductWithSnapshotOutput, *rest.ApiErr)
	History(ctx context.Context, productID pgtype.UUID, input HistoryInput) (*HistoryOutput, *rest.ApiErr)
	Refresh(ctx context.Context, productID pgtype.UUID) (*ProductWithSnapshotOutput, *rest.ApiErr)
	ListProductsToRefresh(ctx context.Context) ([]repo.Product, error)
	SaveCrawlResult(ctx context.Context, job CrawlerJob, data *CrawledData) (*PriceChange, error)
}

type Store interface {
	FindProductByID(ctx context.Context, id pgtype.UUID) (repo.Product, error)
	ListProductsToRefresh(ctx context.Context) ([]repo.Product, error)
	UpdateProductPrice(ctx context.Context, arg repo.UpdateProductPriceParams) error
	CreatePriceSnapshot(ctx context.Context, arg repo.CreatePriceSnapshotParams) (repo.PriceSnapshot, error)
	GetLatestPriceSnapshot(ctx context.Context, productID pgtype.UUID) (repo.PriceSnapshot, error)
	ListPriceSnapshots(ctx context.Context, arg repo.ListPriceSnapshotsParams) ([]repo.PriceSnapshot, error)
}

// Waiter runs one crawl job and waits for its data.
type Waiter interface {
	SubmitAndWait(ctx context.Context, job CrawlerJob) (*CrawledData, error)
}

type svc struct {
	repo   Store
	pool   Waiter
	logger *zap.Logger
}

// NewService builds the products service. pool is nil when the crawler is
// disabled, in which case Refresh is unavailable.
func NewService(store Store, pool Waiter, logger *zap.Logger) Service {
	return &svc{
		repo:   store,
		pool:   pool,
		logger: logger,
	}
}

func (s *svc) GetProduct(ctx context.Context, productID pgtype.UUID) (*ProductWithSnapshotOutput, *rest.ApiErr) {
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, database.HandleError(err, "produto não encontrado")
	}

	out := &ProductWithSnapshotOutput{Product: toProductOutput(product)}

	snapshot, err := s.repo.GetLatestPriceSnapshot(ctx, productID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("failed to get latest snapshot",
				zap.String("product_id", parser.MustPgUUIDToString(productID)),
				zap.Error(err),
			)
		}
		return out, nil
	}
	snap := toSnapshotOutput(snapshot)
	out.LatestSnapshot = &snap
	return out, nil
}

func (s *svc) History(ctx context.Context, productID pgtype.UUID, input HistoryInput) (*HistoryOutput, *rest.ApiErr) {
	if _, err := s.repo.FindProductByID(ctx, productID); err != nil {
		return nil, database.HandleError(err, "produto não encontrado")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	snapshots, err := s.repo.ListPriceSnapshots(ctx, repo.ListPriceSnapshotsParams{
		ProductID: productID,
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, database.HandleError(err, "produto não encontrado")
	}

	out := &HistoryOutput{ProductID: productID, Snapshots: make([]SnapshotOutput, 0, len(snapshots))}
	for i, snap := range snapshots {
		out.Snapshots = append(out.Snapshots, toSnapshotOutput(snap))
		if i == 0 || snap.PriceCents < out.MinCents {
			out.MinCents = snap.PriceCents
		}
		if snap.PriceCents > out.MaxCents {
			out.MaxCents = snap.PriceCents
		}
	}
	return out, nil
}

// Refresh crawls the product right away and stores the result.
func (s *svc) Refresh(ctx context.Context, productID pgtype.UUID) (*ProductWithSnapshotOutput, *rest.ApiErr) {
	if s.pool == nil {
		return nil, rest.NewBadRequestError("coleta de preços desabilitada")
	}

	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, database.HandleError(err, "produto não encontrado")
	}

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	job := CrawlerJob{ProductID: product.ID, URL: product.Url}
	data, err := s.pool.SubmitAndWait(ctx, job)
	if err != nil {
		s.logger.Warn("product refresh failed", zap.String("url", product.Url), zap.Error(err))
		if errors.Is(err, ErrNoPrice) {
			return nil, rest.NewUnprocessableEntity("preço não encontrado na página do produto")
		}
		return nil, rest.NewBadGatewayError("não foi possível coletar o preço agora")
	}

	if _, err := s.SaveCrawlResult(ctx, job, data); err != nil {
		s.logger.Error("failed to save refreshed price", zap.String("url", product.Url), zap.Error(err))
		return nil, rest.NewInternalServerError("erro ao salvar preço")
	}
	return s.GetProduct(ctx, productID)
}

func (s *svc) ListProductsToRefresh(ctx context.Context) ([]repo.Product, error) {
	return s.repo.ListProductsToRefresh(ctx)
}

func (s *svc) SaveCrawlResult(ctx context.Context, job CrawlerJob, data *CrawledData) (*PriceChange, error) {
	return saveCrawlResult(ctx, s.repo, job, data)
}

// saveCrawlResult stores a snapshot, updates the current price and reports
// a PriceChange when the new price differs from the stored one.
func saveCrawlResult(ctx context.Context, store Store, job CrawlerJob, data *CrawledData) (*PriceChange, error) {
	if data == nil || data.PriceCents <= 0 {
		return nil, ErrNoPrice
	}

	product, err := store.FindProductByID(ctx, job.ProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	currency := data.Currency
	if currency == "" {
		currency = product.Currency.String
	}

	if _, err := store.CreatePriceSnapshot(ctx, repo.CreatePriceSnapshotParams{
		ProductID:  product.ID,
		PriceCents: data.PriceCents,
		Currency:   parser.PgText(currency),
		Source:     SourceCrawler,
	}); err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	if err := store.UpdateProductPrice(ctx, repo.UpdateProductPriceParams{
		ID:         product.ID,
		Title:      parser.PgText(data.Title),
		PriceCents: data.PriceCents,
	}); err != nil {
		return nil, fmt.Errorf("failed to update product price: %w", err)
	}

	if !product.CurrentPriceCents.Valid || product.CurrentPriceCents.Int64 == data.PriceCents {
		return nil, nil
	}

	title := product.Title
	if title == "" {
		title = data.Title
	}
	return &PriceChange{
		ProductID: product.ID,
		URL:       product.Url,
		Title:     title,
		Currency:  currency,
		OldCents:  product.CurrentPriceCents.Int64,
		NewCents:  data.PriceCents,
	}, nil
}

func toProductOutput(p repo.Product) ProductOutput {
	out := ProductOutput{
		ID:        p.ID,
		URL:       p.Url,
		Title:     p.Title,
		Brand:     p.Brand.String,
		Model:     p.Model.String,
		ImageURL:  p.ImageUrl.String,
		Store:     p.Store.String,
		Currency:  p.Currency.String,
		CreatedAt: p.CreatedAt.Time,
	}
	if p.CurrentPriceCents.Valid {
		price := p.CurrentPriceCents.Int64
		out.CurrentPriceCents = &price
	}
	if p.LastCheckedAt.Valid {
		checked := p.LastCheckedAt.Time
		out.LastCheckedAt = &checked
	}
	return out
}

func toSnapshotOutput(s repo.PriceSnapshot) SnapshotOutput {
	return SnapshotOutput{
		ID:          s.ID,
		PriceCents:  s.PriceCents,
		Currency:    s.Currency.String,
		Source:      s.Source,
		CollectedAt: s.CollectedAt.Time,
	}
}
