package compare

import (
	"net/http"

	"github.com/freitasmatheusrn/pricecompare/internal/user"
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

func (h *Handler) Compare(c echo.Context) error {
	var input CompareInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	var userID pgtype.UUID
	if current, err := user.GetCurrentUser(c); err == nil {
		userID = current.ID
	}

	out, apiErr := h.service.Compare(c.Request().Context(), input, userID)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, out)
}
