package auth

import (
	"net/http"

	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/pkg/cookie"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	service         Service
	accessTokenExp  int
	refreshTokenExp int
}

func NewHandler(service Service, accessExp, refreshExp int) *Handler {
	return &Handler{
		service:         service,
		accessTokenExp:  accessExp,
		refreshTokenExp: refreshExp,
	}
}

func (h *Handler) Signup(c echo.Context) error {
	var input SignupInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.Signup(c.Request().Context(), input, c.Request().UserAgent(), c.RealIP())
	if apiErr != nil {
		return apiErr
	}

	h.SetTokenCookies(c, result.Tokens)
	return c.JSON(http.StatusCreated, authResponse(result))
}

func (h *Handler) Signin(c echo.Context) error {
	var credentials SigninInput
	if err := c.Bind(&credentials); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.Signin(c.Request().Context(), credentials, c.Request().UserAgent(), c.RealIP())
	if apiErr != nil {
		return apiErr
	}

	h.SetTokenCookies(c, result.Tokens)
	return c.JSON(http.StatusOK, authResponse(result))
}

func (h *Handler) SigninBusiness(c echo.Context) error {
	var credentials SigninInput
	if err := c.Bind(&credentials); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	result, apiErr := h.service.SigninBusiness(c.Request().Context(), credentials, c.Request().UserAgent(), c.RealIP())
	if apiErr != nil {
		return apiErr
	}

	h.SetTokenCookies(c, result.Tokens)
	return c.JSON(http.StatusOK, authResponse(result))
}

func (h *Handler) Refresh(c echo.Context) error {
	refreshToken := ""
	if refreshCookie, err := c.Cookie(cookie.RefreshToken); err == nil {
		refreshToken = refreshCookie.Value
	}
	if refreshToken == "" {
		var input RefreshInput
		_ = c.Bind(&input)
		refreshToken = input.RefreshToken
	}
	if refreshToken == "" {
		return rest.NewUnauthorizedRequestError("refresh token não encontrado")
	}

	tokens, apiErr := h.service.RefreshTokens(c.Request().Context(), refreshToken, c.Request().UserAgent(), c.RealIP())
	if apiErr != nil {
		cookie.ClearAuthCookies(c)
		return apiErr
	}

	h.SetTokenCookies(c, tokens)
	return c.JSON(http.StatusOK, map[string]string{
		"message":       "tokens atualizados com sucesso",
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
	})
}

func (h *Handler) Logout(c echo.Context) error {
	if refreshCookie, err := c.Cookie(cookie.RefreshToken); err == nil {
		_ = h.service.Logout(c.Request().Context(), refreshCookie.Value)
	}

	cookie.ClearAuthCookies(c)
	return c.JSON(http.StatusOK, map[string]string{
		"message": "logout realizado com sucesso",
	})
}

func (h *Handler) LogoutAll(c echo.Context) error {
	current, err := user.GetCurrentUser(c)
	if err != nil {
		return rest.NewUnauthorizedRequestError("usuário não autenticado")
	}

	if err := h.service.LogoutAll(c.Request().Context(), parser.MustPgUUIDToString(current.ID)); err != nil {
		return rest.NewInternalServerError("erro ao revogar tokens")
	}

	cookie.ClearAuthCookies(c)
	return c.JSON(http.StatusOK, map[string]string{
		"message": "logout de todas as sessões realizado com sucesso",
	})
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var input ForgotPasswordInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	if apiErr := h.service.RequestPasswordReset(c.Request().Context(), input); apiErr != nil {
		return apiErr
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "se o email estiver cadastrado, você receberá um código",
	})
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var input ResetPasswordInput
	if err := c.Bind(&input); err != nil {
		return rest.NewUnprocessableEntity("erro ao processar dados")
	}

	if apiErr := h.service.ResetPassword(c.Request().Context(), input); apiErr != nil {
		return apiErr
	}

	cookie.ClearAuthCookies(c)
	return c.JSON(http.StatusOK, map[string]string{
		"message": "senha redefinida com sucesso",
	})
}

func (h *Handler) SetTokenCookies(c echo.Context, tokens *TokenPair) {
	cookie.SetAccessTokenCookie(c, tokens.AccessToken, h.accessTokenExp)
	cookie.SetRefreshTokenCookie(c, tokens.RefreshToken, h.refreshTokenExp)
}

func authResponse(result *AuthResult) map[string]any {
	return map[string]any{
		"user":          result.Principal,
		"access_token":  result.Tokens.AccessToken,
		"refresh_token": result.Tokens.RefreshToken,
	}
}
