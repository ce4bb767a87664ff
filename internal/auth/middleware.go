package auth

import (
	"net/http"
	"strings"

	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/cookie"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/labstack/echo/v4"
)

func AutoRefreshMiddleware(service Service, accessExp, refreshExp int, jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if bearerToken(c) != "" {
				return next(c)
			}

			accessCookie, err := c.Cookie(cookie.AccessToken)
			if err != nil || accessCookie.Value == "" {
				return tryRefreshAndContinue(c, next, service, accessExp, refreshExp)
			}

			if _, err := auth.ParseJWT(accessCookie.Value, jwtSecret); err == nil {
				return next(c)
			}

			return tryRefreshAndContinue(c, next, service, accessExp, refreshExp)
		}
	}
}

func tryRefreshAndContinue(c echo.Context, next echo.HandlerFunc, service Service, accessExp, refreshExp int) error {
	refreshCookie, err := c.Cookie(cookie.RefreshToken)
	if err != nil || refreshCookie.Value == "" {
		return next(c)
	}

	tokens, apiErr := service.RefreshTokens(c.Request().Context(), refreshCookie.Value, c.Request().UserAgent(), c.RealIP())
	if apiErr != nil {
		cookie.ClearAuthCookies(c)
		return next(c)
	}

	cookie.SetAccessTokenCookie(c, tokens.AccessToken, accessExp)
	cookie.SetRefreshTokenCookie(c, tokens.RefreshToken, refreshExp)

	// echo-jwt reads the request cookie, not the response one.
	replaceRequestCookie(c.Request(), cookie.AccessToken, tokens.AccessToken)

	return next(c)
}

func replaceRequestCookie(r *http.Request, name, value string) {
	cookies := r.Cookies()
	r.Header.Del("Cookie")
	for _, ck := range cookies {
		if ck.Name != name {
			r.AddCookie(ck)
		}
	}
	r.AddCookie(&http.Cookie{Name: name, Value: value})
}

// CurrentUserFromClaims converts verified token claims into the request principal.
func CurrentUserFromClaims(claims *auth.JWTCustomClaims) (user.CurrentUser, error) {
	id, err := parser.PgUUIDFromString(claims.SubjectID)
	if err != nil {
		return user.CurrentUser{}, err
	}
	return user.CurrentUser{
		ID:    id,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

// OptionalAuth sets the current user when a valid access token is present and
// lets anonymous requests through.
func OptionalAuth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				if ck, err := c.Cookie(cookie.AccessToken); err == nil {
					token = ck.Value
				}
			}
			if token == "" {
				return next(c)
			}

			claims, err := auth.ParseJWT(token, jwtSecret)
			if err != nil {
				return next(c)
			}
			if current, err := CurrentUserFromClaims(claims); err == nil {
				user.SetCurrentUser(c, current)
			}
			return next(c)
		}
	}
}

// RequireRole must run after the JWT middleware.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			current, err := user.GetCurrentUser(c)
			if err != nil {
				return rest.NewUnauthorizedRequestError("usuário não autenticado")
			}
			for _, role := range roles {
				if current.Role == role {
					return next(c)
				}
			}
			return rest.NewForbiddenError("acesso negado")
		}
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
