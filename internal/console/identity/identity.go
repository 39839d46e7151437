// Package identity provides anonymous per-device identity primitives.  Each
// browser gets a stable anonymous id carried in a cookie; that id becomes the
// oracle session id, so slot-filling state survives page reloads.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/cloudcrafter/console/internal/console/observability"
)

const (
	AnonCookieName   = "cloudcrafter_anon_id"
	anonCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const sessionIDKey contextKey = iota

// idPattern accepts both locally minted ids ("anon-<hex>") and provider ids
// such as "us-east-1:<uuid>".
var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,128}$`)

// SessionIDFromContext extracts the anonymous session id from the request
// context.  Empty means the middleware did not run.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

func generateAnonID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate anonymous id: %w", err)
	}
	return "anon-" + hex.EncodeToString(buf), nil
}

func isValidAnonID(id string) bool {
	return idPattern.MatchString(id)
}

func setAnonCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// getOrCreateAnonID returns the request's anonymous id, minting one when the
// cookie is absent or malformed.  The provider is consulted first when
// minting; a provider outage falls back to a locally generated id so the
// console keeps working offline.
func getOrCreateAnonID(w http.ResponseWriter, r *http.Request, p Provider, isDev bool) (string, error) {
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		setAnonCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	var id string
	if p != nil {
		remote, err := p.ObtainID(r.Context())
		if err != nil {
			observability.WithTrace(r.Context()).Warn("identity provider unavailable, using local id", "err", err)
		} else {
			id = remote
		}
	}
	if id == "" {
		local, err := generateAnonID()
		if err != nil {
			return "", err
		}
		id = local
	}

	setAnonCookie(w, id, isDev)
	return id, nil
}

// Middleware injects the anonymous session id into the request context.
func Middleware(p Provider, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := getOrCreateAnonID(w, r, p, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}
			ctx := context.WithValue(r.Context(), sessionIDKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
