package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func signToken(t *testing.T, key []byte, subject, role string) string {
	t.Helper()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func actorEcho(mw echo.MiddlewareFunc, req *http.Request) (Actor, int) {
	e := echo.New()
	var got Actor
	e.GET("/probe", func(c echo.Context) error {
		got = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}, mw)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return got, rec.Code
}

func TestJWTMiddleware_DerivesActor(t *testing.T) {
	key := []byte("test-key")
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, "p1", "patient"))

	actor, code := actorEcho(JWTMiddleware(JWTConfig{SigningKey: key}), req)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if actor.ID != "p1" || actor.Role != RolePatient {
		t.Errorf("got actor %+v", actor)
	}
}

func TestJWTMiddleware_DoctorAlias(t *testing.T) {
	key := []byte("test-key")
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, "d1", "doctor"))

	actor, code := actorEcho(JWTMiddleware(JWTConfig{SigningKey: key}), req)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if actor.Role != RolePractitioner {
		t.Errorf("doctor should map to practitioner, got %q", actor.Role)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	_, code := actorEcho(JWTMiddleware(JWTConfig{SigningKey: []byte("k")}), req)
	if code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestJWTMiddleware_BadSignature(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, []byte("other-key"), "p1", "patient"))
	_, code := actorEcho(JWTMiddleware(JWTConfig{SigningKey: []byte("test-key")}), req)
	if code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestJWTMiddleware_RejectsUnexpectedAlgorithm(t *testing.T) {
	key := []byte("test-key")
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "p1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: "patient",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	_, code := actorEcho(JWTMiddleware(JWTConfig{SigningKey: key}), req)
	if code != http.StatusUnauthorized {
		t.Errorf("expected 401 for non-HS256 algorithm, got %d", code)
	}
}

func TestJWTMiddleware_UnknownRole(t *testing.T) {
	key := []byte("test-key")
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, key, "p1", "superuser"))
	_, code := actorEcho(JWTMiddleware(JWTConfig{SigningKey: key}), req)
	if code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	actor, code := actorEcho(DevAuthMiddleware(), req)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if actor.Role != RoleAdmin {
		t.Errorf("dev default should be admin, got %+v", actor)
	}
}

func TestDevAuthMiddleware_Impersonation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("X-Actor-ID", "p7")
	req.Header.Set("X-Actor-Role", "patient")
	actor, _ := actorEcho(DevAuthMiddleware(), req)
	if actor.ID != "p7" || actor.Role != RolePatient {
		t.Errorf("got %+v", actor)
	}
}

func TestActorFromContext_Zero(t *testing.T) {
	a := ActorFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if a.Authenticated() {
		t.Error("zero actor must not be authenticated")
	}
}
