package favorites

import (
	"context"
	"strings"

	"github.com/freitasmatheusrn/pricecompare/internal/compare"
	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/pagination"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const maxTitleLength = 300

type Service interface {
	List(ctx context.Context, userID pgtype.UUID, params pagination.Params) (Page, *rest.ApiErr)
	Add(ctx context.Context, userID pgtype.UUID, input AddInput) (*FavoriteOutput, *rest.ApiErr)
	Remove(ctx context.Context, userID, favoriteID pgtype.UUID) *rest.ApiErr
}

type Store interface {
	UpsertProduct(ctx context.Context, arg repo.UpsertProductParams) (repo.Product, error)
	CreateFavorite(ctx context.Context, arg repo.CreateFavoriteParams) (repo.Favorite, error)
	ListFavoritesByUser(ctx context.Context, arg repo.ListFavoritesByUserParams) ([]repo.Favorite, error)
	CountFavoritesByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	DeleteFavorite(ctx context.Context, arg repo.DeleteFavoriteParams) (int64, error)
}

type svc struct {
	repo   Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) Service {
	return &svc{repo: store, logger: logger}
}

func (s *svc) List(ctx context.Context, userID pgtype.UUID, params pagination.Params) (Page, *rest.ApiErr) {
	rows, err := s.repo.ListFavoritesByUser(ctx, repo.ListFavoritesByUserParams{
		UserID: userID,
		Limit:  params.Limit(),
		Offset: params.Offset(),
	})
	if err != nil {
		return Page{}, database.HandleError(err, "favoritos não encontrados")
	}
	total, err := s.repo.CountFavoritesByUser(ctx, userID)
	if err != nil {
		return Page{}, database.HandleError(err, "favoritos não encontrados")
	}

	items := make([]FavoriteOutput, 0, len(rows))
	for _, f := range rows {
		items = append(items, toFavoriteOutput(f))
	}
	return Page{Items: items, Meta: params.Meta(total)}, nil
}

// Add saves the favorite and upserts the tracked product so the price
// refresh job follows it.
func (s *svc) Add(ctx context.Context, userID pgtype.UUID, input AddInput) (*FavoriteOutput, *rest.ApiErr) {
	u, err := compare.ValidateProductURL(input.ProductURL)
	if err != nil {
		return nil, rest.NewBadRequestError("url do produto inválida")
	}
	productURL := u.String()

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, rest.NewBadRequestError("título é obrigatório")
	}
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}

	var price pgtype.Int8
	if input.Price.Valid() {
		price = parser.PgInt8(input.Price.Cents)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" && price.Valid {
		currency = "BRL"
	}

	product, err := s.repo.UpsertProduct(ctx, repo.UpsertProductParams{
		Url:               productURL,
		Title:             title,
		ImageUrl:          parser.PgText(strings.TrimSpace(input.ImageURL)),
		Store:             parser.PgText(strings.TrimSpace(input.Store)),
		Currency:          parser.PgText(currency),
		CurrentPriceCents: price,
	})
	if err != nil {
		s.logger.Error("failed to upsert favorite product", zap.String("url", productURL), zap.Error(err))
		return nil, database.HandleError(err, "produto não encontrado")
	}

	fav, err := s.repo.CreateFavorite(ctx, repo.CreateFavoriteParams{
		UserID:     userID,
		ProductID:  product.ID,
		ProductUrl: productURL,
		Title:      title,
		PriceCents: price,
		Currency:   parser.PgText(currency),
		ImageUrl:   parser.PgText(strings.TrimSpace(input.ImageURL)),
		Store:      parser.PgText(strings.TrimSpace(input.Store)),
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, rest.NewBadRequestError("produto já está nos favoritos")
		}
		return nil, database.HandleError(err, "usuário não encontrado")
	}

	out := toFavoriteOutput(fav)
	return &out, nil
}

func (s *svc) Remove(ctx context.Context, userID, favoriteID pgtype.UUID) *rest.ApiErr {
	removed, err := s.repo.DeleteFavorite(ctx, repo.DeleteFavoriteParams{ID: favoriteID, UserID: userID})
	if err != nil {
		return database.HandleError(err, "favorito não encontrado")
	}
	if removed == 0 {
		return rest.NewNotFoundError("favorito não encontrado")
	}
	return nil
}

func toFavoriteOutput(f repo.Favorite) FavoriteOutput {
	out := FavoriteOutput{
		ID:         f.ID,
		ProductID:  f.ProductID,
		ProductURL: f.ProductUrl,
		Title:      f.Title,
		Currency:   f.Currency.String,
		ImageURL:   f.ImageUrl.String,
		Store:      f.Store.String,
		CreatedAt:  f.CreatedAt.Time,
	}
	if f.PriceCents.Valid {
		price := f.PriceCents.Int64
		out.PriceCents = &price
	}
	return out
}
