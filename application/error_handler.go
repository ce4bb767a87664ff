package application

import (
	"errors"
	"net/http"

	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func (a *Application) CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *rest.ApiErr
	var he *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
		a.Logger.Debug("api error",
			zap.Int("code", apiErr.Code),
			zap.String("message", apiErr.Message),
			zap.Any("causes", apiErr.Causes),
		)
	case errors.As(err, &he):
		message := http.StatusText(he.Code)
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
		if he.Code == http.StatusNotFound {
			message = "recurso não encontrado"
		}
		apiErr = &rest.ApiErr{
			Message: message,
			Err:     http.StatusText(he.Code),
			Code:    he.Code,
		}
	default:
		a.Logger.Error("unhandled error",
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err),
		)
		apiErr = rest.NewInternalServerError("Erro interno do servidor")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Code)
		return
	}
	_ = c.JSON(apiErr.Code, apiErr)
}
