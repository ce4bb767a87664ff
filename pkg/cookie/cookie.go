package cookie

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	AccessToken  = "access_token"
	RefreshToken = "refresh_token"
	ClickID      = "pc_click"
)

// Secure marks every cookie written by this package as Secure. Set once at startup.
var Secure = false

func New(name string, value string, expires time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
		MaxAge:   maxAge,
	}
}

func SetAccessTokenCookie(c echo.Context, token string, expSeconds int) {
	expires := time.Now().Add(time.Duration(expSeconds) * time.Second)
	c.SetCookie(New(AccessToken, token, expires, expSeconds))
}

func SetRefreshTokenCookie(c echo.Context, token string, expSeconds int) {
	expires := time.Now().Add(time.Duration(expSeconds) * time.Second)
	c.SetCookie(New(RefreshToken, token, expires, expSeconds))
}

func ClearAuthCookies(c echo.Context) {
	for _, name := range []string{AccessToken, RefreshToken} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   Secure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}

// SetClickCookie remembers the last affiliate click so a later conversion on
// the same browser can be attributed. Readable by the tracking script.
func SetClickCookie(c echo.Context, clickID string, days int) {
	maxAge := days * 24 * 60 * 60
	c.SetCookie(&http.Cookie{
		Name:     ClickID,
		Value:    clickID,
		Path:     "/",
		HttpOnly: false,
		Secure:   Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(time.Duration(maxAge) * time.Second),
		MaxAge:   maxAge,
	})
}
