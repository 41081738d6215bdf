package runtime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func callWithToken(t *testing.T, secret []byte, decorate func(*http.Request)) (int, string, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotSubject string
	var subjectOK bool
	handler := EchoAuthMiddleware(secret)(func(c echo.Context) error {
		gotSubject, subjectOK = SubjectFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		he, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("unexpected error type: %v", err)
		}
		return he.Code, gotSubject, subjectOK
	}
	return rec.Code, gotSubject, subjectOK
}

func TestEchoAuthMiddlewareBearerHeader(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := SignJWT("user-1", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	code, subject, ok := callWithToken(t, secret, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !ok || subject != "user-1" {
		t.Fatalf("subject not propagated: %q ok=%v", subject, ok)
	}
}

func TestEchoAuthMiddlewareAuthCookie(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := SignJWT("user-2", secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	code, subject, _ := callWithToken(t, secret, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "auth", Value: tok})
	})
	if code != http.StatusOK || subject != "user-2" {
		t.Fatalf("cookie auth failed: code=%d subject=%q", code, subject)
	}
}

func TestEchoAuthMiddlewareMissingToken(t *testing.T) {
	code, _, _ := callWithToken(t, []byte("s3cret"), nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestEchoAuthMiddlewareRejectsBadSignature(t *testing.T) {
	tok, err := SignJWT("user-3", []byte("other-secret"), time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	code, _, _ := callWithToken(t, []byte("s3cret"), func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestEchoAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	secret := []byte("s3cret")
	tok, err := SignJWT("user-4", secret, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	code, _, _ := callWithToken(t, secret, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tok)
	})
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
