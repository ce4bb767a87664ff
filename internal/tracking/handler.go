package tracking

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/pkg/cookie"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	HeaderAPIKey        = "X-API-Key"
	HeaderShopifyHmac   = "X-Shopify-Hmac-Sha256"
	HeaderShopifyTopic  = "X-Shopify-Topic"
	clickCookieDays     = 30
	maxTrackingBodySize = 64 << 10
	maxShopifyBodySize  = 1 << 20
)

type Handler struct {
	service Service
	baseURL string
	logger  *zap.Logger
}

func NewHandler(service Service, baseURL string, logger *zap.Logger) *Handler {
	return &Handler{service: service, baseURL: baseURL, logger: logger}
}

// Click handles GET /t/:affiliateId.
func (h *Handler) Click(c echo.Context) error {
	input := ClickInput{
		AffiliateID: c.Param("affiliateId"),
		TargetURL:   c.QueryParam("url"),
		UserID:      c.QueryParam("uid"),
		IP:          c.RealIP(),
		UserAgent:   c.Request().UserAgent(),
		Referrer:    c.Request().Referer(),
	}
	if currentUser, err := user.GetCurrentUser(c); err == nil && input.UserID == "" {
		input.UserID = parser.MustPgUUIDToString(currentUser.ID)
	}

	result, apiErr := h.service.Click(c.Request().Context(), input)
	if apiErr != nil {
		return apiErr
	}

	cookie.SetClickCookie(c, result.ClickID, clickCookieDays)
	return c.Redirect(http.StatusFound, result.RedirectURL)
}

func (h *Handler) Script(c echo.Context) error {
	aid := c.QueryParam("aid")
	if !ValidAffiliateID(aid) {
		return rest.NewBadRequestError("aid inválido")
	}

	js, err := Script(h.baseURL, aid)
	if err != nil {
		h.logger.Error("failed to render tracking script", zap.Error(err))
		return rest.NewInternalServerError("erro ao gerar script")
	}

	c.Response().Header().Set("Cache-Control", "public, max-age=3600")
	return c.Blob(http.StatusOK, "application/javascript; charset=utf-8", js)
}

// Event accepts either an X-API-Key (server side) or the public aid used by
// the browser script. The body is parsed as JSON whatever the content type,
// since sendBeacon posts text/plain.
func (h *Handler) Event(c echo.Context) error {
	ctx := c.Request().Context()

	var input EventInput
	if err := decodeJSON(c, &input, maxTrackingBodySize); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	b, apiErr := h.service.ResolveByAPIKey(ctx, c.Request().Header.Get(HeaderAPIKey))
	if apiErr != nil {
		aid := c.QueryParam("aid")
		if c.Request().Header.Get(HeaderAPIKey) != "" || aid == "" {
			return apiErr
		}
		b, apiErr = h.service.ResolveByAffiliateID(ctx, aid)
		if apiErr != nil {
			return apiErr
		}
	}

	result, apiErr := h.service.RecordEvent(ctx, b, input)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) Conversion(c echo.Context) error {
	ctx := c.Request().Context()

	b, apiErr := h.service.ResolveByAPIKey(ctx, c.Request().Header.Get(HeaderAPIKey))
	if apiErr != nil {
		return apiErr
	}

	var input ConversionInput
	if err := decodeJSON(c, &input, maxTrackingBodySize); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.RecordConversion(ctx, b, input, SourceAPI)
	if apiErr != nil {
		return apiErr
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	return c.JSON(status, result)
}

// Shopify verifies the HMAC over the raw body, so the body is read before
// any decoding.
func (h *Handler) Shopify(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxShopifyBodySize))
	if err != nil {
		return rest.NewBadRequestError("erro ao ler corpo da requisição")
	}

	result, apiErr := h.service.HandleShopify(
		c.Request().Context(),
		c.Param("affiliateId"),
		c.Request().Header.Get(HeaderShopifyTopic),
		c.Request().Header.Get(HeaderShopifyHmac),
		body,
	)
	if apiErr != nil {
		return apiErr
	}
	return c.JSON(http.StatusOK, result)
}

func decodeJSON(c echo.Context, v any, limit int64) error {
	return json.NewDecoder(io.LimitReader(c.Request().Body, limit)).Decode(v)
}
