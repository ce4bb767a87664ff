package domains

import (
	"context"
	"strings"

	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/internal/email"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/freitasmatheusrn/pricecompare/pkg/validate"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const maxErrorLength = 500

type Service interface {
	Start(ctx context.Context, businessID pgtype.UUID, input StartInput) (VerificationOutput, *rest.ApiErr)
	Verify(ctx context.Context, businessID pgtype.UUID) (VerificationOutput, *rest.ApiErr)
	Status(ctx context.Context, businessID pgtype.UUID) (VerificationOutput, *rest.ApiErr)
}

type Store interface {
	FindBusinessByID(ctx context.Context, id pgtype.UUID) (repo.Business, error)
	MarkBusinessDomainVerified(ctx context.Context, arg repo.MarkBusinessDomainVerifiedParams) error
	CreateDomainVerification(ctx context.Context, arg repo.CreateDomainVerificationParams) (repo.DomainVerification, error)
	FindLatestDomainVerification(ctx context.Context, businessID pgtype.UUID) (repo.DomainVerification, error)
	MarkDomainVerificationVerified(ctx context.Context, id pgtype.UUID) (repo.DomainVerification, error)
	MarkDomainVerificationFailed(ctx context.Context, arg repo.MarkDomainVerificationFailedParams) (repo.DomainVerification, error)
}

type DomainChecker interface {
	Check(ctx context.Context, method, domain, token string) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, businessID pgtype.UUID, event string, data any) error
}

type svc struct {
	repo       Store
	checker    DomainChecker
	dispatcher Dispatcher
	email      email.Email
	logger     *zap.Logger
}

func NewService(store Store, checker DomainChecker, dispatcher Dispatcher, e email.Email, logger *zap.Logger) Service {
	return &svc{
		repo:       store,
		checker:    checker,
		dispatcher: dispatcher,
		email:      e,
		logger:     logger,
	}
}

func (s *svc) Start(ctx context.Context, businessID pgtype.UUID, input StartInput) (VerificationOutput, *rest.ApiErr) {
	method := strings.ToLower(strings.TrimSpace(input.Method))
	if method == "" {
		method = MethodDNS
	}
	if method != MethodDNS && method != MethodFile {
		return VerificationOutput{}, rest.NewBadRequestError("método de verificação inválido")
	}

	b, err := s.repo.FindBusinessByID(ctx, businessID)
	if err != nil {
		return VerificationOutput{}, database.HandleError(err, "empresa não encontrada")
	}

	raw := input.Domain
	if strings.TrimSpace(raw) == "" {
		raw = b.Domain.String
	}
	domain, ok := validate.Domain(raw)
	if !ok {
		return VerificationOutput{}, rest.NewBadRequestError("domínio inválido")
	}

	secret, err := auth.RandomHex(16)
	if err != nil {
		return VerificationOutput{}, rest.NewInternalServerError("erro ao gerar token")
	}

	v, err := s.repo.CreateDomainVerification(ctx, repo.CreateDomainVerificationParams{
		BusinessID: businessID,
		Domain:     domain,
		Token:      tokenPrefix + secret,
		Method:     method,
	})
	if err != nil {
		return VerificationOutput{}, database.HandleError(err, "empresa não encontrada")
	}

	out := toOutput(v)
	out.Instructions = instructionsFor(v)
	return out, nil
}

func (s *svc) Verify(ctx context.Context, businessID pgtype.UUID) (VerificationOutput, *rest.ApiErr) {
	v, err := s.repo.FindLatestDomainVerification(ctx, businessID)
	if err != nil {
		return VerificationOutput{}, database.HandleError(err, "nenhuma verificação iniciada")
	}
	if v.Status == StatusVerified {
		return toOutput(v), nil
	}

	if checkErr := s.checker.Check(ctx, v.Method, v.Domain, v.Token); checkErr != nil {
		s.logger.Info("domain verification failed",
			zap.String("business_id", parser.MustPgUUIDToString(businessID)),
			zap.String("domain", v.Domain),
			zap.String("method", v.Method),
			zap.Error(checkErr),
		)
		failed, err := s.repo.MarkDomainVerificationFailed(ctx, repo.MarkDomainVerificationFailedParams{
			ID:        v.ID,
			LastError: truncate(checkErr.Error(), maxErrorLength),
		})
		if err != nil {
			return VerificationOutput{}, database.HandleError(err, "verificação não encontrada")
		}
		out := toOutput(failed)
		out.Instructions = instructionsFor(failed)
		return out, nil
	}

	verified, err := s.repo.MarkDomainVerificationVerified(ctx, v.ID)
	if err != nil {
		return VerificationOutput{}, database.HandleError(err, "verificação não encontrada")
	}
	if err := s.repo.MarkBusinessDomainVerified(ctx, repo.MarkBusinessDomainVerifiedParams{ID: businessID, Domain: v.Domain}); err != nil {
		return VerificationOutput{}, database.HandleError(err, "empresa não encontrada")
	}

	s.logger.Info("domain verified",
		zap.String("business_id", parser.MustPgUUIDToString(businessID)),
		zap.String("domain", v.Domain),
	)

	out := toOutput(verified)
	s.notifyVerified(ctx, businessID, out)
	return out, nil
}

func (s *svc) Status(ctx context.Context, businessID pgtype.UUID) (VerificationOutput, *rest.ApiErr) {
	v, err := s.repo.FindLatestDomainVerification(ctx, businessID)
	if err != nil {
		return VerificationOutput{}, database.HandleError(err, "nenhuma verificação iniciada")
	}

	out := toOutput(v)
	if v.Status != StatusVerified {
		out.Instructions = instructionsFor(v)
	}
	return out, nil
}

func (s *svc) notifyVerified(ctx context.Context, businessID pgtype.UUID, out VerificationOutput) {
	if s.dispatcher != nil {
		data := map[string]any{"domain": out.Domain, "method": out.Method, "verified_at": out.VerifiedAt}
		if err := s.dispatcher.Dispatch(ctx, businessID, EventDomainVerified, data); err != nil {
			s.logger.Warn("failed to dispatch domain webhook", zap.Error(err))
		}
	}

	b, err := s.repo.FindBusinessByID(ctx, businessID)
	if err != nil {
		s.logger.Warn("failed to load business for domain email", zap.Error(err))
		return
	}
	msg, err := email.Render(email.TemplateDomainVerified, email.DomainVerifiedData{
		BusinessName: b.Name,
		Domain:       out.Domain,
	})
	if err != nil {
		s.logger.Error("failed to render domain verified email", zap.Error(err))
		return
	}
	email.SendAsync(s.email, s.logger, msg, b.Email)
}

func instructionsFor(v repo.DomainVerification) *Instructions {
	if v.Method == MethodFile {
		return &Instructions{
			FileURL:     "https://" + v.Domain + wellKnownPath,
			FileContent: v.Token,
		}
	}
	return &Instructions{
		RecordType:  "TXT",
		RecordName:  v.Domain,
		RecordValue: v.Token,
	}
}

func toOutput(v repo.DomainVerification) VerificationOutput {
	out := VerificationOutput{
		ID:        v.ID,
		Domain:    v.Domain,
		Method:    v.Method,
		Token:     v.Token,
		Status:    v.Status,
		Attempts:  v.Attempts,
		LastError: v.LastError.String,
		CreatedAt: v.CreatedAt.Time,
	}
	if v.VerifiedAt.Valid {
		t := v.VerifiedAt.Time
		out.VerifiedAt = &t
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
