package products

import (
	"net/http"

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

func (h *Handler) GetProduct(c echo.Context) error {
	productID, err := productIDParam(c)
	if err != nil {
		return err
	}

	result, apiErr := h.service.GetProduct(c.Request().Context(), productID)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) History(c echo.Context) error {
	productID, err := productIDParam(c)
	if err != nil {
		return err
	}

	var input HistoryInput
	if err := c.Bind(&input); err != nil {
		return rest.NewBadRequestError("parâmetros inválidos")
	}

	result, apiErr := h.service.History(c.Request().Context(), productID, input)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Refresh(c echo.Context) error {
	productID, err := productIDParam(c)
	if err != nil {
		return err
	}

	result, apiErr := h.service.Refresh(c.Request().Context(), productID)
	if apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, result)
}

func productIDParam(c echo.Context) (pgtype.UUID, error) {
	productID := c.Param("id")
	if productID == "" {
		return pgtype.UUID{}, rest.NewBadRequestError("id do produto é obrigatório")
	}

	pgUUID, err := parser.PgUUIDFromString(productID)
	if err != nil {
		return pgtype.UUID{}, rest.NewBadRequestError("id do produto inválido")
	}
	return pgUUID, nil
}
