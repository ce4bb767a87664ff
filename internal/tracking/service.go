package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/internal/email"
	"github.com/freitasmatheusrn/pricecompare/pkg/notification"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/freitasmatheusrn/pricecompare/pkg/validate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const (
	businessActive    = "active"
	eventConversion   = "conversion.created"
	eventClick        = "click.created"
	defaultCurrency   = "BRL"
	maxOrderIDLength  = 128
	maxEventDataBytes = 16 << 10
)

type Service interface {
	Click(ctx context.Context, input ClickInput) (*ClickResult, *rest.ApiErr)
	ResolveByAPIKey(ctx context.Context, apiKey string) (repo.Business, *rest.ApiErr)
	ResolveByAffiliateID(ctx context.Context, affiliateID string) (repo.Business, *rest.ApiErr)
	RecordEvent(ctx context.Context, b repo.Business, input EventInput) (*EventOutput, *rest.ApiErr)
	RecordConversion(ctx context.Context, b repo.Business, input ConversionInput, source string) (*ConversionOutput, *rest.ApiErr)
	HandleShopify(ctx context.Context, affiliateID, topic, hmacHeader string, body []byte) (*ShopifyResult, *rest.ApiErr)
}

type Store interface {
	FindBusinessByAffiliateID(ctx context.Context, affiliateID string) (repo.Business, error)
	FindBusinessByApiKey(ctx context.Context, apiKey string) (repo.Business, error)
	CreateClickLog(ctx context.Context, arg repo.CreateClickLogParams) (repo.ClickLog, error)
	IncrementBusinessClicks(ctx context.Context, id pgtype.UUID) error
	FindClickByClickID(ctx context.Context, clickID string) (repo.ClickLog, error)
	FindConversionByOrder(ctx context.Context, arg repo.FindConversionByOrderParams) (repo.Conversion, error)
	CreateTrackingEvent(ctx context.Context, arg repo.CreateTrackingEventParams) (repo.TrackingEvent, error)
	ExecTx(ctx context.Context, fn func(repo.Querier) error) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, businessID pgtype.UUID, event string, data any) error
}

type svc struct {
	repo       Store
	deduper    ClickDeduper
	dispatcher Dispatcher
	email      email.Email
	sms        notification.Notification
	logger     *zap.Logger
}

// NewService wires the tracking service. sms may be nil.
func NewService(store Store, deduper ClickDeduper, dispatcher Dispatcher, e email.Email, sms notification.Notification, logger *zap.Logger) Service {
	return &svc{
		repo:       store,
		deduper:    deduper,
		dispatcher: dispatcher,
		email:      e,
		sms:        sms,
		logger:     logger,
	}
}

func (s *svc) ResolveByAffiliateID(ctx context.Context, affiliateID string) (repo.Business, *rest.ApiErr) {
	b, err := s.repo.FindBusinessByAffiliateID(ctx, strings.TrimSpace(affiliateID))
	if err != nil {
		return repo.Business{}, database.HandleError(err, "afiliado não encontrado")
	}
	if b.Status != businessActive {
		return repo.Business{}, rest.NewForbiddenError("empresa suspensa")
	}
	return b, nil
}

func (s *svc) ResolveByAPIKey(ctx context.Context, apiKey string) (repo.Business, *rest.ApiErr) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return repo.Business{}, rest.NewUnauthorizedRequestError("api key ausente")
	}
	b, err := s.repo.FindBusinessByApiKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.Business{}, rest.NewUnauthorizedRequestError("api key inválida")
		}
		return repo.Business{}, database.HandleError(err, "api key inválida")
	}
	if b.Status != businessActive {
		return repo.Business{}, rest.NewForbiddenError("empresa suspensa")
	}
	return b, nil
}

func (s *svc) Click(ctx context.Context, input ClickInput) (*ClickResult, *rest.ApiErr) {
	b, apiErr := s.ResolveByAffiliateID(ctx, input.AffiliateID)
	if apiErr != nil {
		return nil, apiErr
	}

	rawTarget := strings.TrimSpace(input.TargetURL)
	if rawTarget == "" {
		rawTarget = b.Website.String
	}
	target, apiErr := validateTarget(rawTarget, b)
	if apiErr != nil {
		return nil, apiErr
	}
	targetURL := target.String()

	clickID := uuid.NewString()
	key := dedupeKey(b.AffiliateID, input.IP, targetURL)
	owner, fresh := clickID, true
	if s.deduper != nil {
		var err error
		owner, fresh, err = s.deduper.Claim(ctx, key, clickID, clickDedupeWindow)
		if err != nil {
			s.logger.Warn("click dedupe unavailable", zap.Error(err))
			owner, fresh = clickID, true
		}
	}

	if fresh {
		var userID pgtype.UUID
		if input.UserID != "" {
			if id, err := parser.PgUUIDFromString(input.UserID); err == nil {
				userID = id
			}
		}

		click, err := s.repo.CreateClickLog(ctx, repo.CreateClickLogParams{
			BusinessID: b.ID,
			ClickID:    owner,
			TargetUrl:  targetURL,
			Ip:         parser.PgText(input.IP),
			UserAgent:  parser.PgText(truncate(input.UserAgent, 512)),
			Referrer:   parser.PgText(truncate(input.Referrer, 2048)),
			UserID:     userID,
		})
		if err != nil {
			s.logger.Error("failed to log click", zap.String("affiliate_id", b.AffiliateID), zap.Error(err))
			if s.deduper != nil {
				// repeat clicks must not reuse an id that was never stored
				if rerr := s.deduper.Release(ctx, key, owner); rerr != nil {
					s.logger.Warn("failed to release click dedupe", zap.Error(rerr))
				}
			}
			return nil, database.HandleError(err, "afiliado não encontrado")
		}
		if err := s.repo.IncrementBusinessClicks(ctx, b.ID); err != nil {
			s.logger.Error("failed to increment clicks", zap.String("affiliate_id", b.AffiliateID), zap.Error(err))
		}

		s.dispatch(ctx, b.ID, eventClick, map[string]any{
			"click_id":   click.ClickID,
			"target_url": click.TargetUrl,
			"referrer":   click.Referrer.String,
			"created_at": click.CreatedAt.Time,
		})
	}

	q := target.Query()
	q.Set(ClickParam, owner)
	target.RawQuery = q.Encode()

	return &ClickResult{ClickID: owner, RedirectURL: target.String(), Duplicate: !fresh}, nil
}

func (s *svc) RecordEvent(ctx context.Context, b repo.Business, input EventInput) (*EventOutput, *rest.ApiErr) {
	eventType := strings.ToLower(strings.TrimSpace(input.EventType))
	if !allowedEvents[eventType] {
		return nil, rest.NewBadRequestError("tipo de evento inválido")
	}

	var data []byte
	if len(input.Data) > 0 && string(input.Data) != "null" {
		if len(input.Data) > maxEventDataBytes {
			return nil, rest.NewBadRequestError("dados do evento muito grandes")
		}
		if !json.Valid(input.Data) {
			return nil, rest.NewBadRequestError("dados do evento inválidos")
		}
		data = input.Data
	}

	ev, err := s.repo.CreateTrackingEvent(ctx, repo.CreateTrackingEventParams{
		BusinessID: b.ID,
		EventType:  eventType,
		SessionID:  parser.PgText(truncate(input.SessionID, 128)),
		PageUrl:    parser.PgText(truncate(input.PageURL, 2048)),
		ClickID:    parser.PgText(truncate(input.ClickID, 64)),
		Data:       data,
	})
	if err != nil {
		s.logger.Error("failed to store tracking event", zap.Error(err))
		return nil, database.HandleError(err, "empresa não encontrada")
	}

	out := &EventOutput{ID: ev.ID, EventType: ev.EventType}
	if eventType == EventPurchase && strings.TrimSpace(input.OrderID) != "" && input.Amount.Set {
		conv, apiErr := s.RecordConversion(ctx, b, ConversionInput{
			OrderID:  input.OrderID,
			Amount:   input.Amount,
			Currency: input.Currency,
			ClickID:  input.ClickID,
		}, SourceScript)
		if apiErr != nil {
			return nil, apiErr
		}
		out.Conversion = conv
	}
	return out, nil
}

// RecordConversion is idempotent on (business, order id): a repeated order
// returns the stored conversion with Duplicate set.
func (s *svc) RecordConversion(ctx context.Context, b repo.Business, input ConversionInput, source string) (*ConversionOutput, *rest.ApiErr) {
	orderID := strings.TrimSpace(input.OrderID)
	if orderID == "" || len(orderID) > maxOrderIDLength {
		return nil, rest.NewBadRequestError("order_id inválido")
	}
	if !input.Amount.Set || input.Amount.Cents <= 0 {
		return nil, rest.NewBadRequestError("o valor deve ser maior que zero")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if len(currency) != 3 {
		return nil, rest.NewBadRequestError("moeda inválida")
	}

	if existing, err := s.repo.FindConversionByOrder(ctx, repo.FindConversionByOrderParams{BusinessID: b.ID, OrderID: orderID}); err == nil {
		out := toConversionOutput(existing, Commission(existing.AmountCents, b.CommissionRateBps))
		out.Duplicate = true
		return &out, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, database.HandleError(err, "conversão não encontrada")
	}

	clickID := s.attributedClick(ctx, b, strings.TrimSpace(input.ClickID))
	commission := Commission(input.Amount.Cents, b.CommissionRateBps)

	var conv repo.Conversion
	err := s.repo.ExecTx(ctx, func(q repo.Querier) error {
		var err error
		conv, err = q.CreateConversion(ctx, repo.CreateConversionParams{
			BusinessID:  b.ID,
			ClickID:     parser.PgText(clickID),
			OrderID:     orderID,
			AmountCents: input.Amount.Cents,
			Currency:    currency,
			Source:      source,
		})
		if err != nil {
			return err
		}

		sale, err := q.CreateSale(ctx, repo.CreateSaleParams{
			BusinessID:   b.ID,
			ConversionID: conv.ID,
			OrderID:      orderID,
			AmountCents:  input.Amount.Cents,
			Currency:     currency,
		})
		if err != nil {
			return err
		}

		if _, err := q.CreateCommission(ctx, repo.CreateCommissionParams{
			BusinessID:  b.ID,
			SaleID:      sale.ID,
			AmountCents: commission,
			RateBps:     b.CommissionRateBps,
		}); err != nil {
			return err
		}

		return q.AddBusinessConversion(ctx, repo.AddBusinessConversionParams{
			ID:              b.ID,
			RevenueCents:    input.Amount.Cents,
			CommissionCents: commission,
		})
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			// a concurrent request stored the same order first
			existing, findErr := s.repo.FindConversionByOrder(ctx, repo.FindConversionByOrderParams{BusinessID: b.ID, OrderID: orderID})
			if findErr == nil {
				out := toConversionOutput(existing, Commission(existing.AmountCents, b.CommissionRateBps))
				out.Duplicate = true
				return &out, nil
			}
		}
		s.logger.Error("failed to record conversion",
			zap.String("affiliate_id", b.AffiliateID),
			zap.String("order_id", orderID),
			zap.Error(err),
		)
		return nil, database.HandleError(err, "conversão não encontrada")
	}

	out := toConversionOutput(conv, commission)
	s.logger.Info("conversion recorded",
		zap.String("affiliate_id", b.AffiliateID),
		zap.String("order_id", orderID),
		zap.Int64("amount_cents", out.AmountCents),
		zap.Int64("commission_cents", commission),
		zap.String("source", source),
	)

	s.dispatch(ctx, b.ID, eventConversion, out)
	s.notifyConversion(b, out)
	return &out, nil
}

// attributedClick keeps the click id only when it belongs to this business.
func (s *svc) attributedClick(ctx context.Context, b repo.Business, clickID string) string {
	if clickID == "" {
		return ""
	}
	click, err := s.repo.FindClickByClickID(ctx, clickID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("failed to look up click", zap.String("click_id", clickID), zap.Error(err))
		}
		return ""
	}
	if click.BusinessID != b.ID {
		return ""
	}
	return clickID
}

func (s *svc) notifyConversion(b repo.Business, out ConversionOutput) {
	amount := parser.FormatCents(out.AmountCents, out.Currency)

	msg, err := email.Render(email.TemplateConversion, email.ConversionData{
		BusinessName: b.Name,
		OrderID:      out.OrderID,
		Amount:       amount,
		Commission:   parser.FormatCents(out.CommissionCents, out.Currency),
	})
	if err != nil {
		s.logger.Error("failed to render conversion email", zap.Error(err))
	} else {
		email.SendAsync(s.email, s.logger, msg, b.Email)
	}

	if s.sms == nil || !b.Phone.Valid || b.Phone.String == "" {
		return
	}
	go func() {
		if err := s.sms.Send(b.Phone.String, notification.SaleMessage(b.Name, out.OrderID, amount)); err != nil {
			s.logger.Warn("failed to send sale sms", zap.String("affiliate_id", b.AffiliateID), zap.Error(err))
		}
	}()
}

func (s *svc) dispatch(ctx context.Context, businessID pgtype.UUID, event string, data any) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, businessID, event, data); err != nil {
		s.logger.Warn("failed to dispatch webhook", zap.String("event", event), zap.Error(err))
	}
}

func validateTarget(raw string, b repo.Business) (*url.URL, *rest.ApiErr) {
	if raw == "" || len(raw) > 2048 {
		return nil, rest.NewBadRequestError("url de destino inválida")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return nil, rest.NewBadRequestError("url de destino inválida")
	}
	if b.DomainVerified && b.Domain.Valid && !validate.HostMatches(u.Hostname(), b.Domain.String) {
		return nil, rest.NewBadRequestError("url de destino fora do domínio da empresa")
	}
	return u, nil
}

func toConversionOutput(c repo.Conversion, commissionCents int64) ConversionOutput {
	return ConversionOutput{
		ID:              c.ID,
		OrderID:         c.OrderID,
		ClickID:         c.ClickID.String,
		AmountCents:     c.AmountCents,
		Currency:        c.Currency,
		Source:          c.Source,
		CommissionCents: commissionCents,
		CreatedAt:       c.CreatedAt.Time,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
