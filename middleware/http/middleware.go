// Package http provides net/http middleware that gates requests on the
// caller's plan status.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// IdentifierExtractor extracts the caller's account identifier from a request
// Return a zero Identifier if the caller is not authenticated
type IdentifierExtractor func(r *http.Request) accounts.Identifier

// Config holds middleware configuration
type Config struct {
	// Lookup resolves the caller's record (required).
	// Typically Manager.Lookup or client.Client.GetAccount.
	Lookup accounts.LookupFunc

	// GetIdentifier extracts the caller's identifier from the request (required)
	GetIdentifier IdentifierExtractor

	// Now is the clock used to evaluate access (default: time.Now)
	Now func() time.Time

	// OnPlanExpired is called when access is denied
	// If nil, returns 402 Payment Required with a plan_expired body
	OnPlanExpired func(w http.ResponseWriter, r *http.Request, access accounts.Access)

	// OnUnauthorized is called when the caller has no identifier
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)

	// OnError is called when the lookup fails
	// If nil, returns 500 Internal Server Error
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

type accessKey struct{}

// RequireAccess creates an HTTP middleware that lets a request through only
// when the caller's plan allows it. Callers without a record are allowed.
func RequireAccess(config Config) func(http.Handler) http.Handler {
	if config.Lookup == nil {
		panic("paddlerelay/http: Config.Lookup is required")
	}
	if config.GetIdentifier == nil {
		panic("paddlerelay/http: Config.GetIdentifier is required")
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := config.GetIdentifier(r)
			if id.IsZero() {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
				} else {
					writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "unauthorized"})
				}
				return
			}

			access, err := accounts.CheckAccess(r.Context(), config.Lookup, id, config.Now())
			if err != nil {
				if config.OnError != nil {
					config.OnError(w, r, err)
				} else {
					writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "internal_error"})
				}
				return
			}

			access.SetHeaders(w.Header().Set)
			if !access.Allowed {
				if config.OnPlanExpired != nil {
					config.OnPlanExpired(w, r, access)
				} else {
					writeJSON(w, http.StatusPaymentRequired, access.Denial())
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accessKey{}, access)))
		})
	}
}

// HandlerFunc is RequireAccess for http.HandlerFunc chains
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := RequireAccess(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return middleware(next).ServeHTTP
	}
}

// AccessFromContext returns the access decision stored by RequireAccess.
func AccessFromContext(ctx context.Context) (accounts.Access, bool) {
	access, ok := ctx.Value(accessKey{}).(accounts.Access)
	return access, ok
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ContextKey is a type for context keys
type ContextKey string

const (
	// EmailKey is the context key for the caller's email
	EmailKey ContextKey = "paddlerelay:email"
)

// FromContext returns an IdentifierExtractor that reads an email from the request context
func FromContext(key ContextKey) IdentifierExtractor {
	return func(r *http.Request) accounts.Identifier {
		if email, ok := r.Context().Value(key).(string); ok {
			return accounts.NewIdentifier(email, "")
		}
		return accounts.Identifier{}
	}
}

// FromHeader returns an IdentifierExtractor that reads an email from a header
func FromHeader(headerName string) IdentifierExtractor {
	return func(r *http.Request) accounts.Identifier {
		return accounts.NewIdentifier(r.Header.Get(headerName), "")
	}
}

// AccountIDFromHeader returns an IdentifierExtractor that reads an account id from a header
func AccountIDFromHeader(headerName string) IdentifierExtractor {
	return func(r *http.Request) accounts.Identifier {
		return accounts.NewIdentifier("", r.Header.Get(headerName))
	}
}

// WithEmail adds the caller's email to a context
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, EmailKey, email)
}
