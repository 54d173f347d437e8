package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func doRequest(mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, *Actor) {
	rec, actor, _ := doRequestMeta(mw, authHeader)
	return rec, actor
}

func doRequestMeta(mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, *Actor, RequestMeta) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "portal-remisiones/2.0")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *Actor
	var meta RequestMeta
	handler := mw(func(c echo.Context) error {
		got = ActorFromContext(c.Request().Context())
		meta = RequestMetaFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, got, meta
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tok := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:        "Dra. Rojas",
		Role:        RolePhysician,
		Specialties: []string{"Cardiología"},
	})

	rec, actor, meta := doRequestMeta(JWTMiddleware(testSecret), "Bearer "+tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if actor == nil || actor.ID != "user-1" || actor.Role != RolePhysician {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if !actor.HasSpecialty("cardiología") {
		t.Error("expected case-insensitive specialty match")
	}
	if meta.IP == "" || meta.UserAgent != "portal-remisiones/2.0" {
		t.Errorf("request meta not placed in context: %+v", meta)
	}
}

func TestJWTMiddleware_MissingToken(t *testing.T) {
	rec, _ := doRequest(JWTMiddleware(testSecret), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_BadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Role:             RoleAdmin,
	})
	s, _ := token.SignedString([]byte("wrong-secret"))

	rec, _ := doRequest(JWTMiddleware(testSecret), "Bearer "+s)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestJWTMiddleware_UnknownRole(t *testing.T) {
	tok := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "enfermero",
	})
	rec, _ := doRequest(JWTMiddleware(testSecret), "Bearer "+tok)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestDevAuthMiddleware_GrantsAdmin(t *testing.T) {
	rec, actor := doRequest(DevAuthMiddleware(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if actor == nil || !actor.IsAdmin() {
		t.Fatalf("expected admin actor, got %+v", actor)
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name  string
		actor *Actor
		roles []string
		want  int
	}{
		{"admin passes any check", &Actor{Role: RoleAdmin}, []string{RolePhysician}, http.StatusOK},
		{"matching role", &Actor{Role: RolePhysician}, []string{RolePhysician}, http.StatusOK},
		{"mismatched role", &Actor{Role: RolePhysician}, []string{RoleAdmin}, http.StatusForbidden},
		{"no actor", nil, []string{RoleAdmin}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.actor != nil {
				req = req.WithContext(WithActor(context.Background(), tc.actor))
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			handler := RequireRole(tc.roles...)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})
			if err := handler(c); err != nil {
				e.HTTPErrorHandler(err, c)
			}
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
