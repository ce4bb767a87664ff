package auth

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type SignupInput struct {
	Name     string `json:"name" form:"name"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type SigninInput struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

type PrincipalOutput struct {
	ID    pgtype.UUID `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  string      `json:"role"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthResult struct {
	Principal PrincipalOutput
	Tokens    *TokenPair
}

// Principal is what gets encoded in the access token.
type Principal struct {
	ID    string
	Email string
	Role  string
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordInput struct {
	Email       string `json:"email"`
	AccountType string `json:"account_type"` // "user" (default) or "business"
}

type ResetPasswordInput struct {
	Email       string `json:"email"`
	AccountType string `json:"account_type"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}
