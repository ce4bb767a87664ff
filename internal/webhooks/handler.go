package webhooks

import (
	"net/http"

	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/pkg/pagination"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c echo.Context) error {
	currentUser, err := user.GetCurrentUser(c)
	if err != nil {
		return rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	var input CreateInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.Create(c.Request().Context(), currentUser.ID, input)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) List(c echo.Context) error {
	currentUser, err := user.GetCurrentUser(c)
	if err != nil {
		return rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	result, apiErr := h.service.List(c.Request().Context(), currentUser.ID)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Delete(c echo.Context) error {
	currentUser, webhookID, apiErr := ownerAndID(c)
	if apiErr != nil {
		return apiErr
	}

	if apiErr := h.service.Delete(c.Request().Context(), currentUser, webhookID); apiErr != nil {
		return apiErr
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SendTest(c echo.Context) error {
	currentUser, webhookID, apiErr := ownerAndID(c)
	if apiErr != nil {
		return apiErr
	}

	result, apiErr := h.service.SendTest(c.Request().Context(), currentUser, webhookID)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ListDeliveries(c echo.Context) error {
	currentUser, webhookID, apiErr := ownerAndID(c)
	if apiErr != nil {
		return apiErr
	}

	var params pagination.Params
	if err := c.Bind(&params); err != nil {
		return rest.NewUnprocessableEntity("parâmetros inválidos")
	}

	result, apiErr := h.service.ListDeliveries(c.Request().Context(), currentUser, webhookID, params)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func ownerAndID(c echo.Context) (pgtype.UUID, pgtype.UUID, *rest.ApiErr) {
	currentUser, err := user.GetCurrentUser(c)
	if err != nil {
		return pgtype.UUID{}, pgtype.UUID{}, rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	webhookID, err := parser.PgUUIDFromString(c.Param("id"))
	if err != nil {
		return pgtype.UUID{}, pgtype.UUID{}, rest.NewBadRequestError("id inválido")
	}
	return currentUser.ID, webhookID, nil
}
