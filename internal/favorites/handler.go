package favorites

import (
	"net/http"

	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/pkg/pagination"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c echo.Context) error {
	current, err := user.GetCurrentUser(c)
	if err != nil {
		return rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	var params pagination.Params
	if err := c.Bind(&params); err != nil {
		return rest.NewUnprocessableEntity("parâmetros inválidos")
	}

	page, apiErr := h.service.List(c.Request().Context(), current.ID, params.Normalize())
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, page)
}

func (h *Handler) Add(c echo.Context) error {
	current, err := user.GetCurrentUser(c)
	if err != nil {
		return rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	var input AddInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	fav, apiErr := h.service.Add(c.Request().Context(), current.ID, input)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusCreated, fav)
}

func (h *Handler) Remove(c echo.Context) error {
	current, err := user.GetCurrentUser(c)
	if err != nil {
		return rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	favoriteID, err := parser.PgUUIDFromString(c.Param("id"))
	if err != nil {
		return rest.NewBadRequestError("id do favorito inválido")
	}

	if apiErr := h.service.Remove(c.Request().Context(), current.ID, favoriteID); apiErr != nil {
		return apiErr
	}
	return c.NoContent(http.StatusNoContent)
}
