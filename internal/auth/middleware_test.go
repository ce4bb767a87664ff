package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/freitasmatheusrn/pricecompare/internal/user"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/labstack/echo/v4"
)

func TestRequireRole(t *testing.T) {
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	tests := []struct {
		name     string
		current  *user.CurrentUser
		wantCode int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"wrong role", &user.CurrentUser{ID: parser.NewPgUUID(), Role: auth.RoleUser}, http.StatusForbidden},
		{"admin", &user.CurrentUser{ID: parser.NewPgUUID(), Role: auth.RoleAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			if tt.current != nil {
				user.SetCurrentUser(c, *tt.current)
			}

			err := RequireRole(auth.RoleAdmin)(ok)(c)
			if tt.wantCode == http.StatusOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			apiErr, isApiErr := err.(*rest.ApiErr)
			if !isApiErr || apiErr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	e := echo.New()
	subject := parser.NewPgUUID()
	token, err := auth.GenerateJWT(auth.NewClaims(parser.MustPgUUIDToString(subject), "ana@example.com", auth.RoleUser, 60), testSecret)
	if err != nil {
		t.Fatal(err)
	}

	var seen *user.CurrentUser
	next := func(c echo.Context) error {
		if cu, err := user.GetCurrentUser(c); err == nil {
			seen = &cu
		}
		return nil
	}

	req := httptest.NewRequest(http.MethodPost, "/compare", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	c := e.NewContext(req, httptest.NewRecorder())
	if err := OptionalAuth(testSecret)(next)(c); err != nil {
		t.Fatal(err)
	}
	if seen == nil || seen.ID != subject {
		t.Fatalf("expected current user to be set, got %+v", seen)
	}

	seen = nil
	req = httptest.NewRequest(http.MethodPost, "/compare", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
	c = e.NewContext(req, httptest.NewRecorder())
	if err := OptionalAuth(testSecret)(next)(c); err != nil {
		t.Fatal(err)
	}
	if seen != nil {
		t.Error("invalid token should be treated as anonymous")
	}
}
