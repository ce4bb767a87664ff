package user

import (
	"net/http"

	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// shopper returns the logged in person. Business tokens carry a business id,
// which never matches a users row.
func shopper(c echo.Context) (CurrentUser, *rest.ApiErr) {
	current, err := GetCurrentUser(c)
	if err != nil {
		return CurrentUser{}, rest.NewUnauthorizedRequestError("usuário não autenticado")
	}
	if current.Role == auth.RoleBusiness {
		return CurrentUser{}, rest.NewForbiddenError("contas de empresa usam /business/profile")
	}
	return current, nil
}

func (h *Handler) GetMe(c echo.Context) error {
	current, apiErr := shopper(c)
	if apiErr != nil {
		return apiErr
	}

	result, apiErr := h.service.FindByID(c.Request().Context(), current.ID)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Update(c echo.Context) error {
	current, apiErr := shopper(c)
	if apiErr != nil {
		return apiErr
	}

	var input UpdateUserInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}
	if input.Name == nil && input.Email == nil && input.Password == nil {
		return rest.NewBadRequestError("nenhum campo para atualizar")
	}

	result, apiErr := h.service.UpdateUser(c.Request().Context(), current.ID, input)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}
