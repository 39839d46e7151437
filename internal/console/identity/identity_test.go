package identity_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudcrafter/console/internal/console/identity"
)

func echoHandler(t *testing.T, got *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = identity.SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func anonCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == identity.AnonCookieName {
			return c
		}
	}
	t.Fatal("anonymous cookie not set")
	return nil
}

func TestMiddlewareMintsLocalID(t *testing.T) {
	var got string
	h := identity.Middleware(nil, true)(echoHandler(t, &got))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	c := anonCookie(t, rec)
	if !strings.HasPrefix(c.Value, "anon-") {
		t.Errorf("cookie value: %q", c.Value)
	}
	if got != c.Value {
		t.Errorf("context id %q != cookie %q", got, c.Value)
	}
}

func TestMiddlewareReusesCookie(t *testing.T) {
	var got string
	h := identity.Middleware(nil, true)(echoHandler(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{
		Name:  identity.AnonCookieName,
		Value: "anon-00112233445566778899aabbccddeeff",
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got != "anon-00112233445566778899aabbccddeeff" {
		t.Errorf("context id: %q", got)
	}
	if c := anonCookie(t, rec); c.Value != got {
		t.Errorf("cookie refreshed to different value: %q", c.Value)
	}
}

func TestMiddlewareRejectsMalformedCookie(t *testing.T) {
	var got string
	h := identity.Middleware(nil, true)(echoHandler(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: identity.AnonCookieName, Value: "<script>"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got == "<script>" || got == "" {
		t.Errorf("malformed cookie must be replaced, got %q", got)
	}
}

func TestMiddlewareUsesProviderIdentity(t *testing.T) {
	pool := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/identities" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"identityId":"us-east-1:1234abcd"}`))
	}))
	defer pool.Close()

	p := identity.NewHTTPProvider(identity.ProviderConfig{BaseURL: pool.URL, PoolID: "pool-1"})

	var got string
	h := identity.Middleware(p, true)(echoHandler(t, &got))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got != "us-east-1:1234abcd" {
		t.Errorf("context id: %q", got)
	}
}

func TestMiddlewareFallsBackWhenProviderIsDown(t *testing.T) {
	pool := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer pool.Close()

	p := identity.NewHTTPProvider(identity.ProviderConfig{BaseURL: pool.URL})

	var got string
	h := identity.Middleware(p, true)(echoHandler(t, &got))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.HasPrefix(got, "anon-") {
		t.Errorf("expected local fallback id, got %q", got)
	}
}
