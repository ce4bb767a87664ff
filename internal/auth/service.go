package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/internal/email"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/otp"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/freitasmatheusrn/pricecompare/pkg/validate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	ResetCodeTTL         = 15 * time.Minute
	MaxResetCodeAttempts = 5
	BusinessActive       = "active"
)

type Service interface {
	Signup(ctx context.Context, input SignupInput, userAgent, ip string) (*AuthResult, *rest.ApiErr)
	Signin(ctx context.Context, credentials SigninInput, userAgent, ip string) (*AuthResult, *rest.ApiErr)
	SigninBusiness(ctx context.Context, credentials SigninInput, userAgent, ip string) (*AuthResult, *rest.ApiErr)
	IssueTokens(ctx context.Context, principal Principal, userAgent, ip string) (*TokenPair, *rest.ApiErr)
	RefreshTokens(ctx context.Context, refreshToken, userAgent, ip string) (*TokenPair, *rest.ApiErr)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, subjectID string) error
	RequestPasswordReset(ctx context.Context, input ForgotPasswordInput) *rest.ApiErr
	ResetPassword(ctx context.Context, input ResetPasswordInput) *rest.ApiErr
}

// Store is the subset of the repository used for authentication.
type Store interface {
	CreateUser(ctx context.Context, arg repo.CreateUserParams) (repo.User, error)
	FindByEmail(ctx context.Context, email string) (repo.User, error)
	FindByID(ctx context.Context, id pgtype.UUID) (repo.User, error)
	UpdateUser(ctx context.Context, arg repo.UpdateUserParams) (repo.User, error)
	FindBusinessByEmail(ctx context.Context, email string) (repo.Business, error)
	FindBusinessByID(ctx context.Context, id pgtype.UUID) (repo.Business, error)
	UpdateBusinessProfile(ctx context.Context, arg repo.UpdateBusinessProfileParams) (repo.Business, error)
}

type service struct {
	repo            Store
	tokenRepo       TokenRepository
	resetRepo       ResetRepository
	email           email.Email
	logger          *zap.Logger
	jwtSecret       string
	accessTokenExp  int
	refreshTokenExp int
}

type Config struct {
	JWTSecret       string
	AccessTokenExp  int
	RefreshTokenExp int
}

func NewService(store Store, tokenRepo TokenRepository, resetRepo ResetRepository, e email.Email, logger *zap.Logger, cfg Config) Service {
	return &service{
		repo:            store,
		tokenRepo:       tokenRepo,
		resetRepo:       resetRepo,
		email:           e,
		logger:          logger,
		jwtSecret:       cfg.JWTSecret,
		accessTokenExp:  cfg.AccessTokenExp,
		refreshTokenExp: cfg.RefreshTokenExp,
	}
}

func (s *service) Signup(ctx context.Context, input SignupInput, userAgent, ip string) (*AuthResult, *rest.ApiErr) {
	input.Email = validate.NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)
	if apiErr := validate.Credentials(input.Name, input.Email, input.Password); apiErr != nil {
		return nil, apiErr
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, rest.NewInternalServerError("erro ao processar senha")
	}

	user, err := s.repo.CreateUser(ctx, repo.CreateUserParams{
		Name:     input.Name,
		Email:    input.Email,
		Password: string(hashedPassword),
		Role:     auth.RoleUser,
	})
	if err != nil {
		return nil, database.HandleError(err, "usuário não encontrado")
	}

	tokens, apiErr := s.IssueTokens(ctx, Principal{ID: parser.MustPgUUIDToString(user.ID), Email: user.Email, Role: user.Role}, userAgent, ip)
	if apiErr != nil {
		return nil, apiErr
	}

	if msg, err := email.Render(email.TemplateWelcome, email.WelcomeData{Name: user.Name}); err == nil {
		email.SendAsync(s.email, s.logger, msg, user.Email)
	}

	return &AuthResult{
		Principal: PrincipalOutput{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role},
		Tokens:    tokens,
	}, nil
}

func (s *service) Signin(ctx context.Context, credentials SigninInput, userAgent, ip string) (*AuthResult, *rest.ApiErr) {
	user, err := s.repo.FindByEmail(ctx, validate.NormalizeEmail(credentials.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rest.NewUnauthorizedRequestError("credenciais inválidas")
		}
		return nil, rest.NewInternalServerError("erro interno do servidor")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(credentials.Password)); err != nil {
		return nil, rest.NewUnauthorizedRequestError("credenciais inválidas")
	}

	tokens, apiErr := s.IssueTokens(ctx, Principal{ID: parser.MustPgUUIDToString(user.ID), Email: user.Email, Role: user.Role}, userAgent, ip)
	if apiErr != nil {
		return nil, apiErr
	}

	return &AuthResult{
		Principal: PrincipalOutput{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role},
		Tokens:    tokens,
	}, nil
}

func (s *service) SigninBusiness(ctx context.Context, credentials SigninInput, userAgent, ip string) (*AuthResult, *rest.ApiErr) {
	business, err := s.repo.FindBusinessByEmail(ctx, validate.NormalizeEmail(credentials.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, rest.NewUnauthorizedRequestError("credenciais inválidas")
		}
		return nil, rest.NewInternalServerError("erro interno do servidor")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(business.Password), []byte(credentials.Password)); err != nil {
		return nil, rest.NewUnauthorizedRequestError("credenciais inválidas")
	}

	if business.Status != BusinessActive {
		return nil, rest.NewForbiddenError("conta da empresa suspensa")
	}

	tokens, apiErr := s.IssueTokens(ctx, Principal{ID: parser.MustPgUUIDToString(business.ID), Email: business.Email, Role: auth.RoleBusiness}, userAgent, ip)
	if apiErr != nil {
		return nil, apiErr
	}

	return &AuthResult{
		Principal: PrincipalOutput{ID: business.ID, Name: business.Name, Email: business.Email, Role: auth.RoleBusiness},
		Tokens:    tokens,
	}, nil
}

// IssueTokens starts a new refresh token family for the principal.
func (s *service) IssueTokens(ctx context.Context, principal Principal, userAgent, ip string) (*TokenPair, *rest.ApiErr) {
	tokens, err := s.generateTokenPair(ctx, principal, auth.GenerateFamilyID(), userAgent, ip)
	if err != nil {
		s.logger.Error("failed to issue tokens", zap.String("subject", principal.ID), zap.Error(err))
		return nil, rest.NewInternalServerError("erro ao gerar tokens")
	}
	return tokens, nil
}

func (s *service) RefreshTokens(ctx context.Context, refreshToken, userAgent, ip string) (*TokenPair, *rest.ApiErr) {
	decodedToken, err := url.QueryUnescape(refreshToken)
	if err != nil || decodedToken == "" {
		return nil, rest.NewUnauthorizedRequestError("refresh token inválido")
	}
	tokenHash := auth.HashToken(decodedToken)

	tokenData, err := s.tokenRepo.GetToken(ctx, tokenHash)
	if err != nil {
		return nil, rest.NewInternalServerError("erro ao validar token")
	}
	if tokenData == nil {
		familyID, err := s.tokenRepo.RevokedFamily(ctx, tokenHash)
		if err == nil && familyID != "" {
			s.logger.Warn("refresh token reuse detected, revoking family", zap.String("family_id", familyID))
			if err := s.tokenRepo.RevokeTokenFamily(ctx, familyID); err != nil {
				s.logger.Error("failed to revoke token family", zap.String("family_id", familyID), zap.Error(err))
			}
			return nil, rest.NewUnauthorizedRequestError("refresh token reutilizado, faça login novamente")
		}
		return nil, rest.NewUnauthorizedRequestError("refresh token inválido ou expirado")
	}

	principal, apiErr := s.loadPrincipal(ctx, tokenData.SubjectID, tokenData.Role)
	if apiErr != nil {
		_ = s.tokenRepo.RevokeToken(ctx, tokenHash)
		return nil, apiErr
	}

	if err := s.tokenRepo.RevokeToken(ctx, tokenHash); err != nil {
		return nil, rest.NewInternalServerError("erro ao revogar token antigo")
	}

	tokens, err := s.generateTokenPair(ctx, principal, tokenData.FamilyID, userAgent, ip)
	if err != nil {
		return nil, rest.NewInternalServerError("erro ao gerar novo token")
	}

	return tokens, nil
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	decodedToken, err := url.QueryUnescape(refreshToken)
	if err != nil {
		return err
	}
	return s.tokenRepo.RevokeToken(ctx, auth.HashToken(decodedToken))
}

func (s *service) LogoutAll(ctx context.Context, subjectID string) error {
	return s.tokenRepo.RevokeAllSubjectTokens(ctx, subjectID)
}

// RequestPasswordReset never reveals whether the account exists.
func (s *service) RequestPasswordReset(ctx context.Context, input ForgotPasswordInput) *rest.ApiErr {
	emailAddr := validate.NormalizeEmail(input.Email)
	if !validate.Email(emailAddr) {
		return rest.NewBadRequestError("email inválido")
	}

	name, _, found, err := s.findAccount(ctx, input.AccountType, emailAddr)
	if err != nil {
		return rest.NewInternalServerError("erro interno do servidor")
	}
	if !found {
		s.logger.Info("password reset requested for unknown account", zap.String("email", emailAddr))
		return nil
	}

	code, err := otp.Generate(otp.DefaultLength)
	if err != nil {
		return rest.NewInternalServerError("erro ao gerar código")
	}

	if err := s.resetRepo.Save(ctx, resetKey(input.AccountType, emailAddr), code, ResetCodeTTL); err != nil {
		s.logger.Error("failed to store reset code", zap.Error(err))
		return rest.NewInternalServerError("erro ao gerar código")
	}

	msg, err := email.Render(email.TemplatePasswordReset, email.PasswordResetData{
		Name:          name,
		Code:          code,
		ExpireMinutes: int(ResetCodeTTL / time.Minute),
	})
	if err != nil {
		s.logger.Error("failed to render reset email", zap.Error(err))
		return rest.NewInternalServerError("erro ao enviar código")
	}
	email.SendAsync(s.email, s.logger, msg, emailAddr)

	return nil
}

func (s *service) ResetPassword(ctx context.Context, input ResetPasswordInput) *rest.ApiErr {
	emailAddr := validate.NormalizeEmail(input.Email)
	if !validate.Password(input.NewPassword) {
		return rest.NewBadRequestError("a senha deve ter pelo menos 8 caracteres")
	}

	key := resetKey(input.AccountType, emailAddr)
	stored, err := s.resetRepo.Get(ctx, key)
	if err != nil {
		return rest.NewInternalServerError("erro ao validar código")
	}
	if stored == nil {
		return rest.NewBadRequestError("código inválido ou expirado")
	}
	if stored.Attempts >= MaxResetCodeAttempts {
		_ = s.resetRepo.Delete(ctx, key)
		return rest.NewTooManyRequestsError("número máximo de tentativas excedido")
	}

	if !otp.Equal(stored.Code, strings.TrimSpace(input.Code)) {
		attempts, err := s.resetRepo.IncrementAttempts(ctx, key)
		if err == nil && attempts >= MaxResetCodeAttempts {
			_ = s.resetRepo.Delete(ctx, key)
		}
		return rest.NewBadRequestError("código inválido ou expirado")
	}

	_, subjectID, found, err := s.findAccount(ctx, input.AccountType, emailAddr)
	if err != nil {
		return rest.NewInternalServerError("erro interno do servidor")
	}
	if !found {
		return rest.NewBadRequestError("código inválido ou expirado")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return rest.NewInternalServerError("erro ao processar senha")
	}
	password := pgtype.Text{String: string(hashedPassword), Valid: true}

	if input.AccountType == auth.RoleBusiness {
		_, err = s.repo.UpdateBusinessProfile(ctx, repo.UpdateBusinessProfileParams{ID: subjectID, Password: password})
	} else {
		_, err = s.repo.UpdateUser(ctx, repo.UpdateUserParams{ID: subjectID, Password: password})
	}
	if err != nil {
		return database.HandleError(err, "conta não encontrada")
	}

	_ = s.resetRepo.Delete(ctx, key)
	if err := s.tokenRepo.RevokeAllSubjectTokens(ctx, parser.MustPgUUIDToString(subjectID)); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset", zap.Error(err))
	}

	return nil
}

func (s *service) findAccount(ctx context.Context, accountType, emailAddr string) (string, pgtype.UUID, bool, error) {
	if accountType == auth.RoleBusiness {
		b, err := s.repo.FindBusinessByEmail(ctx, emailAddr)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", pgtype.UUID{}, false, nil
		}
		if err != nil {
			return "", pgtype.UUID{}, false, err
		}
		return b.Name, b.ID, true, nil
	}

	u, err := s.repo.FindByEmail(ctx, emailAddr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", pgtype.UUID{}, false, nil
	}
	if err != nil {
		return "", pgtype.UUID{}, false, err
	}
	return u.Name, u.ID, true, nil
}

// loadPrincipal re-reads the account so role changes and suspensions apply on refresh.
func (s *service) loadPrincipal(ctx context.Context, subjectID, role string) (Principal, *rest.ApiErr) {
	id, err := parser.PgUUIDFromString(subjectID)
	if err != nil {
		return Principal{}, rest.NewUnauthorizedRequestError("refresh token inválido")
	}

	if role == auth.RoleBusiness {
		business, err := s.repo.FindBusinessByID(ctx, id)
		if err != nil {
			return Principal{}, rest.NewUnauthorizedRequestError("empresa não encontrada")
		}
		if business.Status != BusinessActive {
			return Principal{}, rest.NewForbiddenError("conta da empresa suspensa")
		}
		return Principal{ID: subjectID, Email: business.Email, Role: auth.RoleBusiness}, nil
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Principal{}, rest.NewUnauthorizedRequestError("usuário não encontrado")
	}
	return Principal{ID: subjectID, Email: user.Email, Role: user.Role}, nil
}

func (s *service) generateTokenPair(ctx context.Context, principal Principal, familyID, userAgent, ip string) (*TokenPair, error) {
	jwtClaims := auth.NewClaims(principal.ID, principal.Email, principal.Role, s.accessTokenExp)
	accessToken, err := auth.GenerateJWT(jwtClaims, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	refreshToken, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	data := TokenData{
		SubjectID: principal.ID,
		Role:      principal.Role,
		FamilyID:  familyID,
		CreatedAt: time.Now(),
		UserAgent: userAgent,
		IP:        ip,
	}
	ttl := time.Duration(s.refreshTokenExp) * time.Second

	if err := s.tokenRepo.StoreToken(ctx, auth.HashToken(refreshToken), data, ttl); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func resetKey(accountType, emailAddr string) string {
	if accountType == auth.RoleBusiness {
		return auth.RoleBusiness + ":" + emailAddr
	}
	return emailAddr
}
