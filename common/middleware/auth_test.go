package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestExtractUsernameSetsContextValue(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	handler := ExtractUsername()(func(c echo.Context) error {
		got = GetUsername(c)
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "alice" {
		t.Errorf("GetUsername = %q, want alice", got)
	}
}

func TestExtractUsernameLeavesContextEmptyWithoutHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got string
	handler := ExtractUsername()(func(c echo.Context) error {
		got = GetUsername(c)
		return nil
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("GetUsername = %q, want empty", got)
	}
}

func TestRequireUsernameWritesUnauthorizedWhenMissing(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_, err := RequireUsername(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireUsernameReturnsStoredUsername(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(string(UsernameKey), "bob")

	username, err := RequireUsername(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if username != "bob" {
		t.Errorf("username = %q, want bob", username)
	}
}
