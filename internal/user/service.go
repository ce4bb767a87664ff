package user

import (
	"context"
	"errors"
	"strings"

	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/freitasmatheusrn/pricecompare/pkg/validate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	FindByID(ctx context.Context, userID pgtype.UUID) (UserOutput, *rest.ApiErr)
	FindByEmail(ctx context.Context, email string) (repo.User, *rest.ApiErr)
	UpdateUser(ctx context.Context, userID pgtype.UUID, input UpdateUserInput) (UserOutput, *rest.ApiErr)
	EnsureAdmin(ctx context.Context, input EnsureAdminInput) (UserOutput, *rest.ApiErr)
}

// Store is the subset of the repository used by this package.
type Store interface {
	CreateUser(ctx context.Context, arg repo.CreateUserParams) (repo.User, error)
	FindByEmail(ctx context.Context, email string) (repo.User, error)
	FindByID(ctx context.Context, id pgtype.UUID) (repo.User, error)
	UpdateUser(ctx context.Context, arg repo.UpdateUserParams) (repo.User, error)
	UpdateUserRole(ctx context.Context, arg repo.UpdateUserRoleParams) (repo.User, error)
}

type svc struct {
	repo Store
}

func NewService(repo Store) Service {
	return &svc{repo: repo}
}

func (s *svc) FindByID(ctx context.Context, userID pgtype.UUID) (UserOutput, *rest.ApiErr) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return UserOutput{}, database.HandleError(err, "usuário não encontrado")
	}

	return toUserOutput(user), nil
}

func (s *svc) FindByEmail(ctx context.Context, email string) (repo.User, *rest.ApiErr) {
	user, err := s.repo.FindByEmail(ctx, validate.NormalizeEmail(email))
	if err != nil {
		return repo.User{}, database.HandleError(err, "usuário não encontrado")
	}

	return user, nil
}

func (s *svc) UpdateUser(ctx context.Context, userID pgtype.UUID, input UpdateUserInput) (UserOutput, *rest.ApiErr) {
	params := repo.UpdateUserParams{
		ID: userID,
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return UserOutput{}, rest.NewBadRequestError("nome é obrigatório")
		}
		params.Name = pgtype.Text{String: name, Valid: true}
	}

	if input.Email != nil {
		email := validate.NormalizeEmail(*input.Email)
		if !validate.Email(email) {
			return UserOutput{}, rest.NewBadRequestError("email inválido")
		}
		params.Email = pgtype.Text{String: email, Valid: true}
	}

	if input.Password != nil {
		if !validate.Password(*input.Password) {
			return UserOutput{}, rest.NewBadRequestError("a senha deve ter pelo menos 8 caracteres")
		}
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return UserOutput{}, rest.NewInternalServerError("erro ao processar senha")
		}
		params.Password = pgtype.Text{String: string(hashedPassword), Valid: true}
	}

	user, err := s.repo.UpdateUser(ctx, params)
	if err != nil {
		return UserOutput{}, database.HandleError(err, "usuário não encontrado")
	}

	return toUserOutput(user), nil
}

// EnsureAdmin creates an admin account or promotes the existing user with
// the same email. The password is only used when the account is created.
func (s *svc) EnsureAdmin(ctx context.Context, input EnsureAdminInput) (UserOutput, *rest.ApiErr) {
	email := validate.NormalizeEmail(input.Email)

	existing, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		if existing.Role == auth.RoleAdmin {
			return toUserOutput(existing), nil
		}
		promoted, err := s.repo.UpdateUserRole(ctx, repo.UpdateUserRoleParams{ID: existing.ID, Role: auth.RoleAdmin})
		if err != nil {
			return UserOutput{}, database.HandleError(err, "usuário não encontrado")
		}
		return toUserOutput(promoted), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return UserOutput{}, rest.NewInternalServerError("erro interno do servidor")
	}

	if apiErr := validate.Credentials(input.Name, email, input.Password); apiErr != nil {
		return UserOutput{}, apiErr
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserOutput{}, rest.NewInternalServerError("erro ao processar senha")
	}

	created, err := s.repo.CreateUser(ctx, repo.CreateUserParams{
		Name:     strings.TrimSpace(input.Name),
		Email:    email,
		Password: string(hashedPassword),
		Role:     auth.RoleAdmin,
	})
	if err != nil {
		return UserOutput{}, database.HandleError(err, "usuário não encontrado")
	}

	return toUserOutput(created), nil
}

func toUserOutput(user repo.User) UserOutput {
	return UserOutput{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Time,
	}
}
