package auth

import (
	"time"

	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	RoleUser     = "user"
	RoleAdmin    = "admin"
	RoleBusiness = "business"
)

type JWTCustomClaims struct {
	SubjectID string `json:"sub_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func NewClaims(subjectID, email, role string, tokenExp int) *JWTCustomClaims {
	now := time.Now()
	return &JWTCustomClaims{
		SubjectID: subjectID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Second * time.Duration(tokenExp))),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func GenerateJWT(claims *JWTCustomClaims, jwtSecret string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	t, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", err
	}
	return t, nil
}

// ParseJWT validates the signature, algorithm and expiry of an access token.
func ParseJWT(tokenString, jwtSecret string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func GetClaims(c echo.Context) (*JWTCustomClaims, *rest.ApiErr) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return nil, rest.NewUnauthorizedRequestError("token inválido")
	}

	claims, ok := token.Claims.(*JWTCustomClaims)
	if !ok {
		return nil, rest.NewUnauthorizedRequestError("claims inválidas")
	}
	return claims, nil
}

func GetSubjectID(c echo.Context) (string, *rest.ApiErr) {
	claims, apiErr := GetClaims(c)
	if apiErr != nil {
		return "", apiErr
	}
	return claims.SubjectID, nil
}
