package business

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/internal/email"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/pagination"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/freitasmatheusrn/pricecompare/pkg/validate"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const EventCommissionUpdated = "commission.updated"

type Service interface {
	Register(ctx context.Context, input RegisterInput) (*RegisterResult, *rest.ApiErr)
	GetProfile(ctx context.Context, businessID pgtype.UUID) (BusinessOutput, *rest.ApiErr)
	UpdateProfile(ctx context.Context, businessID pgtype.UUID, input UpdateProfileInput) (BusinessOutput, *rest.ApiErr)
	RotateAPIKey(ctx context.Context, businessID pgtype.UUID) (CredentialsOutput, *rest.ApiErr)
	Stats(ctx context.Context, businessID pgtype.UUID) (StatsOutput, *rest.ApiErr)
	ListClicks(ctx context.Context, businessID pgtype.UUID, params pagination.Params) (Page[ClickOutput], *rest.ApiErr)
	ListConversions(ctx context.Context, businessID pgtype.UUID, params pagination.Params) (Page[ConversionOutput], *rest.ApiErr)
	ListCommissions(ctx context.Context, businessID pgtype.UUID, params pagination.Params) (Page[CommissionOutput], *rest.ApiErr)
	ConversionsReport(ctx context.Context, businessID pgtype.UUID) (*bytes.Buffer, *rest.ApiErr)

	ListBusinesses(ctx context.Context, input ListBusinessesInput) (Page[BusinessOutput], *rest.ApiErr)
	SetStatus(ctx context.Context, businessID pgtype.UUID, status string) (BusinessOutput, *rest.ApiErr)
	SetCommissionRate(ctx context.Context, businessID pgtype.UUID, bps int32) (BusinessOutput, *rest.ApiErr)
	SetCommissionStatus(ctx context.Context, commissionID pgtype.UUID, status string) (CommissionOutput, *rest.ApiErr)
	PlatformStats(ctx context.Context) (PlatformStatsOutput, *rest.ApiErr)
}

// Store is the subset of the repository used by this package.
type Store interface {
	CreateBusiness(ctx context.Context, arg repo.CreateBusinessParams) (repo.Business, error)
	FindBusinessByID(ctx context.Context, id pgtype.UUID) (repo.Business, error)
	UpdateBusinessProfile(ctx context.Context, arg repo.UpdateBusinessProfileParams) (repo.Business, error)
	UpdateBusinessApiKey(ctx context.Context, arg repo.UpdateBusinessApiKeyParams) (repo.Business, error)
	SetBusinessStatus(ctx context.Context, arg repo.SetBusinessStatusParams) (repo.Business, error)
	SetBusinessCommissionRate(ctx context.Context, arg repo.SetBusinessCommissionRateParams) (repo.Business, error)
	ListBusinesses(ctx context.Context, arg repo.ListBusinessesParams) ([]repo.Business, error)
	CountBusinesses(ctx context.Context, search string) (int64, error)
	GetPlatformStats(ctx context.Context) (repo.PlatformStatsRow, error)
	ListClicksByBusiness(ctx context.Context, arg repo.ListByBusinessParams) ([]repo.ClickLog, error)
	CountClicksByBusiness(ctx context.Context, businessID pgtype.UUID) (int64, error)
	ListConversionsByBusiness(ctx context.Context, arg repo.ListByBusinessParams) ([]repo.ConversionWithCommissionRow, error)
	CountConversionsByBusiness(ctx context.Context, businessID pgtype.UUID) (int64, error)
	ListCommissionsByBusiness(ctx context.Context, arg repo.ListByBusinessParams) ([]repo.CommissionRow, error)
	CountCommissionsByBusiness(ctx context.Context, businessID pgtype.UUID) (int64, error)
	UpdateCommissionStatus(ctx context.Context, arg repo.UpdateCommissionStatusParams) (repo.Commission, error)
	SumCommissionsByStatus(ctx context.Context, businessID pgtype.UUID) ([]repo.CommissionSumRow, error)
	DailyClicks(ctx context.Context, arg repo.DailyCountParams) ([]repo.DailyCountRow, error)
	DailyConversions(ctx context.Context, arg repo.DailyCountParams) ([]repo.DailyCountRow, error)
}

// Dispatcher delivers business events to the outbound webhooks.
type Dispatcher interface {
	Dispatch(ctx context.Context, businessID pgtype.UUID, event string, data any) error
}

type Config struct {
	PublicBaseURL        string
	DefaultCommissionBps int32
}

type svc struct {
	repo       Store
	dispatcher Dispatcher
	email      email.Email
	logger     *zap.Logger
	cfg        Config
	now        func() time.Time
}

func NewService(store Store, dispatcher Dispatcher, e email.Email, logger *zap.Logger, cfg Config) Service {
	return &svc{
		repo:       store,
		dispatcher: dispatcher,
		email:      e,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

func (s *svc) Register(ctx context.Context, input RegisterInput) (*RegisterResult, *rest.ApiErr) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = validate.NormalizeEmail(input.Email)
	if apiErr := validate.Credentials(input.Name, input.Email, input.Password); apiErr != nil {
		return nil, apiErr
	}

	var domain pgtype.Text
	if strings.TrimSpace(input.Website) != "" {
		host, ok := validate.Domain(input.Website)
		if !ok {
			return nil, rest.NewBadRequestValidationError("dados inválidos", []rest.Causes{
				{Field: "website", Message: "website inválido"},
			})
		}
		domain = parser.PgText(host)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, rest.NewInternalServerError("erro ao processar senha")
	}

	var created repo.Business
	// affiliate id and api key are random; retry on the unlikely collision
	for attempt := 0; attempt < 3; attempt++ {
		affiliateID, apiKey, shopifySecret, err := newCredentials()
		if err != nil {
			return nil, rest.NewInternalServerError("erro ao gerar credenciais")
		}

		created, err = s.repo.CreateBusiness(ctx, repo.CreateBusinessParams{
			Name:              input.Name,
			Email:             input.Email,
			Password:          string(hashedPassword),
			Website:           parser.PgText(strings.TrimSpace(input.Website)),
			Domain:            domain,
			Phone:             parser.PgText(strings.TrimSpace(input.Phone)),
			AffiliateID:       affiliateID,
			ApiKey:            apiKey,
			ShopifySecret:     shopifySecret,
			CommissionRateBps: s.cfg.DefaultCommissionBps,
		})
		if err == nil {
			break
		}
		if apiErr := database.HandleError(err, "empresa não encontrada"); !isCredentialCollision(apiErr) {
			return nil, apiErr
		}
	}
	if !created.ID.Valid {
		return nil, rest.NewInternalServerError("erro ao gerar credenciais")
	}

	s.sendWelcome(created)

	return &RegisterResult{
		Business: toBusinessOutput(created),
		Credentials: CredentialsOutput{
			ApiKey:        created.ApiKey,
			ShopifySecret: created.ShopifySecret,
		},
	}, nil
}

func (s *svc) GetProfile(ctx context.Context, businessID pgtype.UUID) (BusinessOutput, *rest.ApiErr) {
	b, err := s.repo.FindBusinessByID(ctx, businessID)
	if err != nil {
		return BusinessOutput{}, database.HandleError(err, "empresa não encontrada")
	}
	return toBusinessOutput(b), nil
}

func (s *svc) UpdateProfile(ctx context.Context, businessID pgtype.UUID, input UpdateProfileInput) (BusinessOutput, *rest.ApiErr) {
	params := repo.UpdateBusinessProfileParams{ID: businessID}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return BusinessOutput{}, rest.NewBadRequestError("nome é obrigatório")
		}
		params.Name = parser.PgText(name)
	}
	if input.Website != nil {
		host, ok := validate.Domain(*input.Website)
		if !ok {
			return BusinessOutput{}, rest.NewBadRequestError("website inválido")
		}
		params.Website = parser.PgText(strings.TrimSpace(*input.Website))
		params.Domain = parser.PgText(host)
	}
	if input.Phone != nil {
		params.Phone = pgtype.Text{String: strings.TrimSpace(*input.Phone), Valid: true}
	}
	if input.Password != nil {
		if !validate.Password(*input.Password) {
			return BusinessOutput{}, rest.NewBadRequestError("a senha deve ter pelo menos 8 caracteres")
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return BusinessOutput{}, rest.NewInternalServerError("erro ao processar senha")
		}
		params.Password = parser.PgText(string(hashedPassword))
	}

	b, err := s.repo.UpdateBusinessProfile(ctx, params)
	if err != nil {
		return BusinessOutput{}, database.HandleError(err, "empresa não encontrada")
	}
	return toBusinessOutput(b), nil
}

func (s *svc) RotateAPIKey(ctx context.Context, businessID pgtype.UUID) (CredentialsOutput, *rest.ApiErr) {
	key, err := auth.RandomHex(16)
	if err != nil {
		return CredentialsOutput{}, rest.NewInternalServerError("erro ao gerar credenciais")
	}

	b, err := s.repo.UpdateBusinessApiKey(ctx, repo.UpdateBusinessApiKeyParams{ID: businessID, ApiKey: "pk_" + key})
	if err != nil {
		return CredentialsOutput{}, database.HandleError(err, "empresa não encontrada")
	}

	s.logger.Info("api key rotated", zap.String("business_id", parser.MustPgUUIDToString(businessID)))
	return CredentialsOutput{ApiKey: b.ApiKey}, nil
}

func (s *svc) Stats(ctx context.Context, businessID pgtype.UUID) (StatsOutput, *rest.ApiErr) {
	b, err := s.repo.FindBusinessByID(ctx, businessID)
	if err != nil {
		return StatsOutput{}, database.HandleError(err, "empresa não encontrada")
	}

	out := StatsOutput{
		TotalClicks:          b.TotalClicks,
		TotalConversions:     b.TotalConversions,
		TotalRevenueCents:    b.TotalRevenueCents,
		TotalCommissionCents: b.TotalCommissionCents,
		ConversionRate:       ConversionRate(b.TotalClicks, b.TotalConversions),
	}

	sums, err := s.repo.SumCommissionsByStatus(ctx, businessID)
	if err != nil {
		return StatsOutput{}, database.HandleError(err, "empresa não encontrada")
	}
	for _, row := range sums {
		switch row.Status {
		case CommissionPending:
			out.PendingCommissionCents = row.AmountCents
		case CommissionApproved:
			out.ApprovedCommissionCents = row.AmountCents
		case CommissionPaid:
			out.PaidCommissionCents = row.AmountCents
		}
	}

	today := truncateDay(s.now())
	since := today.AddDate(0, 0, -(statsWindowDays - 1))
	params := repo.DailyCountParams{
		BusinessID: businessID,
		Since:      pgtype.Timestamptz{Time: since, Valid: true},
	}

	clicks, err := s.repo.DailyClicks(ctx, params)
	if err != nil {
		return StatsOutput{}, database.HandleError(err, "empresa não encontrada")
	}
	conversions, err := s.repo.DailyConversions(ctx, params)
	if err != nil {
		return StatsOutput{}, database.HandleError(err, "empresa não encontrada")
	}
	out.Daily = DailySeries(since, statsWindowDays, clicks, conversions)

	return out, nil
}

func (s *svc) ListClicks(ctx context.Context, businessID pgtype.UUID, params pagination.Params) (Page[ClickOutput], *rest.ApiErr) {
	rows, err := s.repo.ListClicksByBusiness(ctx, repo.ListByBusinessParams{BusinessID: businessID, Limit: params.Limit(), Offset: params.Offset()})
	if err != nil {
		return Page[ClickOutput]{}, database.HandleError(err, "empresa não encontrada")
	}
	total, err := s.repo.CountClicksByBusiness(ctx, businessID)
	if err != nil {
		return Page[ClickOutput]{}, database.HandleError(err, "empresa não encontrada")
	}

	items := make([]ClickOutput, 0, len(rows))
	for _, r := range rows {
		items = append(items, ClickOutput{
			ID:        r.ID,
			ClickID:   r.ClickID,
			TargetURL: r.TargetUrl,
			Referrer:  r.Referrer.String,
			CreatedAt: r.CreatedAt.Time,
		})
	}
	return Page[ClickOutput]{Items: items, Meta: params.Meta(total)}, nil
}

func (s *svc) ListConversions(ctx context.Context, businessID pgtype.UUID, params pagination.Params) (Page[ConversionOutput], *rest.ApiErr) {
	rows, err := s.repo.ListConversionsByBusiness(ctx, repo.ListByBusinessParams{BusinessID: businessID, Limit: params.Limit(), Offset: params.Offset()})
	if err != nil {
		return Page[ConversionOutput]{}, database.HandleError(err, "empresa não encontrada")
	}
	total, err := s.repo.CountConversionsByBusiness(ctx, businessID)
	if err != nil {
		return Page[ConversionOutput]{}, database.HandleError(err, "empresa não encontrada")
	}

	items := make([]ConversionOutput, 0, len(rows))
	for _, r := range rows {
		items = append(items, toConversionOutput(r))
	}
	return Page[ConversionOutput]{Items: items, Meta: params.Meta(total)}, nil
}

func (s *svc) ListCommissions(ctx context.Context, businessID pgtype.UUID, params pagination.Params) (Page[CommissionOutput], *rest.ApiErr) {
	rows, err := s.repo.ListCommissionsByBusiness(ctx, repo.ListByBusinessParams{BusinessID: businessID, Limit: params.Limit(), Offset: params.Offset()})
	if err != nil {
		return Page[CommissionOutput]{}, database.HandleError(err, "empresa não encontrada")
	}
	total, err := s.repo.CountCommissionsByBusiness(ctx, businessID)
	if err != nil {
		return Page[CommissionOutput]{}, database.HandleError(err, "empresa não encontrada")
	}

	items := make([]CommissionOutput, 0, len(rows))
	for _, r := range rows {
		out := toCommissionOutput(r.Commission)
		out.OrderID = r.OrderID
		items = append(items, out)
	}
	return Page[CommissionOutput]{Items: items, Meta: params.Meta(total)}, nil
}

func (s *svc) ListBusinesses(ctx context.Context, input ListBusinessesInput) (Page[BusinessOutput], *rest.ApiErr) {
	search := strings.TrimSpace(input.Search)
	rows, err := s.repo.ListBusinesses(ctx, repo.ListBusinessesParams{Search: search, Limit: input.Limit(), Offset: input.Offset()})
	if err != nil {
		return Page[BusinessOutput]{}, database.HandleError(err, "empresa não encontrada")
	}
	total, err := s.repo.CountBusinesses(ctx, search)
	if err != nil {
		return Page[BusinessOutput]{}, database.HandleError(err, "empresa não encontrada")
	}

	items := make([]BusinessOutput, 0, len(rows))
	for _, b := range rows {
		items = append(items, toBusinessOutput(b))
	}
	return Page[BusinessOutput]{Items: items, Meta: input.Meta(total)}, nil
}

func (s *svc) SetStatus(ctx context.Context, businessID pgtype.UUID, status string) (BusinessOutput, *rest.ApiErr) {
	if status != StatusActive && status != StatusSuspended {
		return BusinessOutput{}, rest.NewBadRequestError("status inválido")
	}

	b, err := s.repo.SetBusinessStatus(ctx, repo.SetBusinessStatusParams{ID: businessID, Status: status})
	if err != nil {
		return BusinessOutput{}, database.HandleError(err, "empresa não encontrada")
	}

	s.logger.Info("business status changed",
		zap.String("business_id", parser.MustPgUUIDToString(businessID)),
		zap.String("status", status),
	)
	return toBusinessOutput(b), nil
}

func (s *svc) SetCommissionRate(ctx context.Context, businessID pgtype.UUID, bps int32) (BusinessOutput, *rest.ApiErr) {
	if bps < 0 || bps > MaxCommissionBps {
		return BusinessOutput{}, rest.NewBadRequestError("taxa de comissão deve estar entre 0 e 10000 bps")
	}

	b, err := s.repo.SetBusinessCommissionRate(ctx, repo.SetBusinessCommissionRateParams{ID: businessID, CommissionRateBps: bps})
	if err != nil {
		return BusinessOutput{}, database.HandleError(err, "empresa não encontrada")
	}
	return toBusinessOutput(b), nil
}

func (s *svc) SetCommissionStatus(ctx context.Context, commissionID pgtype.UUID, status string) (CommissionOutput, *rest.ApiErr) {
	switch status {
	case CommissionPending, CommissionApproved, CommissionPaid, CommissionCancelled:
	default:
		return CommissionOutput{}, rest.NewBadRequestError("status de comissão inválido")
	}

	c, err := s.repo.UpdateCommissionStatus(ctx, repo.UpdateCommissionStatusParams{ID: commissionID, Status: status})
	if err != nil {
		return CommissionOutput{}, database.HandleError(err, "comissão não encontrada")
	}

	out := toCommissionOutput(c)
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, c.BusinessID, EventCommissionUpdated, out); err != nil {
			s.logger.Warn("failed to dispatch commission webhook", zap.Error(err))
		}
	}
	return out, nil
}

func (s *svc) PlatformStats(ctx context.Context) (PlatformStatsOutput, *rest.ApiErr) {
	r, err := s.repo.GetPlatformStats(ctx)
	if err != nil {
		return PlatformStatsOutput{}, database.HandleError(err, "estatísticas indisponíveis")
	}
	return PlatformStatsOutput{
		Users:                  r.Users,
		Businesses:             r.Businesses,
		ActiveBusinesses:       r.ActiveBusinesses,
		Clicks:                 r.Clicks,
		Conversions:            r.Conversions,
		RevenueCents:           r.RevenueCents,
		CommissionCents:        r.CommissionCents,
		PendingCommissionCents: r.PendingCommissionCents,
	}, nil
}

func (s *svc) sendWelcome(b repo.Business) {
	base := strings.TrimRight(s.cfg.PublicBaseURL, "/")
	msg, err := email.Render(email.TemplateBusinessWelcome, email.BusinessWelcomeData{
		Name:        b.Name,
		AffiliateID: b.AffiliateID,
		TrackingURL: base + "/t/" + b.AffiliateID + "?url=",
		ScriptURL:   base + "/track/script.js?aid=" + b.AffiliateID,
	})
	if err != nil {
		s.logger.Error("failed to render business welcome email", zap.Error(err))
		return
	}
	email.SendAsync(s.email, s.logger, msg, b.Email)
}

// ConversionRate is conversions/clicks, 0 when there are no clicks.
func ConversionRate(clicks, conversions int64) float64 {
	if clicks <= 0 {
		return 0
	}
	return float64(conversions) / float64(clicks)
}

// DailySeries returns one point per day starting at since, with zeroes for
// days that had no activity.
func DailySeries(since time.Time, days int, clicks, conversions []repo.DailyCountRow) []DailyPoint {
	index := make(map[string]int, days)
	series := make([]DailyPoint, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format(time.DateOnly)
		series[i] = DailyPoint{Date: day}
		index[day] = i
	}
	for _, r := range clicks {
		if i, ok := index[r.Day.Time.Format(time.DateOnly)]; ok {
			series[i].Clicks = r.Count
		}
	}
	for _, r := range conversions {
		if i, ok := index[r.Day.Time.Format(time.DateOnly)]; ok {
			series[i].Conversions = r.Count
		}
	}
	return series
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func newCredentials() (affiliateID, apiKey, shopifySecret string, err error) {
	aff, err := auth.RandomHex(6)
	if err != nil {
		return "", "", "", err
	}
	key, err := auth.RandomHex(16)
	if err != nil {
		return "", "", "", err
	}
	secret, err := auth.RandomHex(24)
	if err != nil {
		return "", "", "", err
	}
	return "aff_" + aff, "pk_" + key, secret, nil
}

func isCredentialCollision(apiErr *rest.ApiErr) bool {
	for _, c := range apiErr.Causes {
		if c.Field == "affiliate_id" || c.Field == "api_key" {
			return true
		}
	}
	return false
}

func toBusinessOutput(b repo.Business) BusinessOutput {
	return BusinessOutput{
		ID:                b.ID,
		Name:              b.Name,
		Email:             b.Email,
		Website:           b.Website.String,
		Domain:            b.Domain.String,
		DomainVerified:    b.DomainVerified,
		Phone:             b.Phone.String,
		AffiliateID:       b.AffiliateID,
		CommissionRateBps: b.CommissionRateBps,
		Status:            b.Status,
		CreatedAt:         b.CreatedAt.Time,
	}
}

func toConversionOutput(r repo.ConversionWithCommissionRow) ConversionOutput {
	return ConversionOutput{
		ID:               r.ID,
		OrderID:          r.OrderID,
		ClickID:          r.ClickID.String,
		AmountCents:      r.AmountCents,
		Currency:         r.Currency,
		Source:           r.Source,
		CommissionCents:  r.CommissionCents.Int64,
		CommissionStatus: r.CommissionStatus.String,
		CreatedAt:        r.CreatedAt.Time,
	}
}

func toCommissionOutput(c repo.Commission) CommissionOutput {
	out := CommissionOutput{
		ID:          c.ID,
		AmountCents: c.AmountCents,
		RateBps:     c.RateBps,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt.Time,
	}
	if c.PaidAt.Valid {
		paid := c.PaidAt.Time
		out.PaidAt = &paid
	}
	return out
}
