package business

import (
	"context"
	"net/http"

	internalauth "github.com/freitasmatheusrn/pricecompare/internal/auth"
	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/pagination"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
)

// TokenIssuer signs the business in right after registration.
type TokenIssuer interface {
	IssueTokens(ctx context.Context, principal internalauth.Principal, userAgent, ip string) (*internalauth.TokenPair, *rest.ApiErr)
}

type Handler struct {
	service    Service
	tokens     TokenIssuer
	setCookies func(c echo.Context, tokens *internalauth.TokenPair)
}

func NewHandler(service Service, tokens TokenIssuer, setCookies func(echo.Context, *internalauth.TokenPair)) *Handler {
	return &Handler{service: service, tokens: tokens, setCookies: setCookies}
}

func (h *Handler) Register(c echo.Context) error {
	var input RegisterInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.Register(c.Request().Context(), input)
	if apiErr != nil {
		return apiErr
	}

	response := map[string]any{
		"business":    result.Business,
		"credentials": result.Credentials,
	}

	principal := internalauth.Principal{
		ID:    parser.MustPgUUIDToString(result.Business.ID),
		Email: result.Business.Email,
		Role:  auth.RoleBusiness,
	}
	tokens, apiErr := h.tokens.IssueTokens(c.Request().Context(), principal, c.Request().UserAgent(), c.RealIP())
	if apiErr == nil {
		if h.setCookies != nil {
			h.setCookies(c, tokens)
		}
		response["access_token"] = tokens.AccessToken
		response["refresh_token"] = tokens.RefreshToken
	}

	return c.JSON(http.StatusCreated, response)
}

func (h *Handler) GetProfile(c echo.Context) error {
	businessID, apiErr := currentBusinessID(c)
	if apiErr != nil {
		return apiErr
	}

	result, apiErr := h.service.GetProfile(c.Request().Context(), businessID)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	businessID, apiErr := currentBusinessID(c)
	if apiErr != nil {
		return apiErr
	}

	var input UpdateProfileInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.UpdateProfile(c.Request().Context(), businessID, input)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) RotateAPIKey(c echo.Context) error {
	businessID, apiErr := currentBusinessID(c)
	if apiErr != nil {
		return apiErr
	}

	result, apiErr := h.service.RotateAPIKey(c.Request().Context(), businessID)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Stats(c echo.Context) error {
	businessID, apiErr := currentBusinessID(c)
	if apiErr != nil {
		return apiErr
	}

	result, apiErr := h.service.Stats(c.Request().Context(), businessID)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListClicks(c echo.Context) error {
	businessID, params, apiErr := listParams(c)
	if apiErr != nil {
		return apiErr
	}

	result, apiErr := h.service.ListClicks(c.Request().Context(), businessID, params)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListConversions(c echo.Context) error {
	businessID, params, apiErr := listParams(c)
	if apiErr != nil {
		return apiErr
	}

	result, apiErr := h.service.ListConversions(c.Request().Context(), businessID, params)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListCommissions(c echo.Context) error {
	businessID, params, apiErr := listParams(c)
	if apiErr != nil {
		return apiErr
	}

	result, apiErr := h.service.ListCommissions(c.Request().Context(), businessID, params)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ConversionsReport(c echo.Context) error {
	businessID, apiErr := currentBusinessID(c)
	if apiErr != nil {
		return apiErr
	}

	buf, apiErr := h.service.ConversionsReport(c.Request().Context(), businessID)
	if apiErr != nil {
		return apiErr
	}

	c.Response().Header().Set("Content-Disposition", `attachment; filename="conversoes.xlsx"`)
	return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// Admin

func (h *Handler) AdminList(c echo.Context) error {
	var input ListBusinessesInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}
	input.Params = input.Params.Normalize()

	result, apiErr := h.service.ListBusinesses(c.Request().Context(), input)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) AdminSetStatus(c echo.Context) error {
	businessID, apiErr := pathUUID(c, "id")
	if apiErr != nil {
		return apiErr
	}

	var input SetStatusInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.SetStatus(c.Request().Context(), businessID, input.Status)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) AdminSetCommissionRate(c echo.Context) error {
	businessID, apiErr := pathUUID(c, "id")
	if apiErr != nil {
		return apiErr
	}

	var input SetCommissionRateInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.SetCommissionRate(c.Request().Context(), businessID, input.CommissionRateBps)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) AdminSetCommissionStatus(c echo.Context) error {
	commissionID, apiErr := pathUUID(c, "id")
	if apiErr != nil {
		return apiErr
	}

	var input SetCommissionStatusInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.SetCommissionStatus(c.Request().Context(), commissionID, input.Status)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) AdminPlatformStats(c echo.Context) error {
	result, apiErr := h.service.PlatformStats(c.Request().Context())
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func currentBusinessID(c echo.Context) (pgtype.UUID, *rest.ApiErr) {
	currentUser, err := user.GetCurrentUser(c)
	if err != nil {
		return pgtype.UUID{}, rest.NewUnauthorizedRequestError("usuário não autenticado")
	}
	if currentUser.Role != auth.RoleBusiness {
		return pgtype.UUID{}, rest.NewForbiddenError("acesso restrito a empresas")
	}
	return currentUser.ID, nil
}

func listParams(c echo.Context) (pgtype.UUID, pagination.Params, *rest.ApiErr) {
	businessID, apiErr := currentBusinessID(c)
	if apiErr != nil {
		return pgtype.UUID{}, pagination.Params{}, apiErr
	}

	var params pagination.Params
	if err := c.Bind(&params); err != nil {
		return pgtype.UUID{}, pagination.Params{}, rest.NewUnprocessableEntity("parâmetros inválidos")
	}
	return businessID, params.Normalize(), nil
}

func pathUUID(c echo.Context, name string) (pgtype.UUID, *rest.ApiErr) {
	id, err := parser.PgUUIDFromString(c.Param(name))
	if err != nil {
		return pgtype.UUID{}, rest.NewBadRequestError("id inválido")
	}
	return id, nil
}
