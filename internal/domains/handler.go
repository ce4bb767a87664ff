package domains

import (
	"net/http"

	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Start(c echo.Context) error {
	currentUser, err := user.GetCurrentUser(c)
	if err != nil {
		return rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	var input StartInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.Start(c.Request().Context(), currentUser.ID, input)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) Verify(c echo.Context) error {
	currentUser, err := user.GetCurrentUser(c)
	if err != nil {
		return rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	result, apiErr := h.service.Verify(c.Request().Context(), currentUser.ID)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Status(c echo.Context) error {
	currentUser, err := user.GetCurrentUser(c)
	if err != nil {
		return rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	result, apiErr := h.service.Status(c.Request().Context(), currentUser.ID)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}
