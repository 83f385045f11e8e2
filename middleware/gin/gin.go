// Package gin provides Gin middleware that gates requests on the caller's plan status
package gin

import (
	"net/http"
	"time"

	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// AccessContextKey is the Gin context key holding the accounts.Access decision
const AccessContextKey = "paddlerelay.access"

// IdentifierExtractor extracts the caller's account identifier from a Gin context
// Return a zero Identifier if the caller is not authenticated
type IdentifierExtractor func(c *gongin.Context) accounts.Identifier

// Config holds middleware configuration
type Config struct {
	// Lookup resolves the caller's record (required)
	Lookup accounts.LookupFunc

	// GetIdentifier extracts the caller's identifier from context (required)
	GetIdentifier IdentifierExtractor

	// Now is the clock used to evaluate access (default: time.Now)
	Now func() time.Time

	// OnPlanExpired is called when access is denied; it must write the response
	// If nil, returns 402 JSON with the plan dates
	OnPlanExpired func(c *gongin.Context, access accounts.Access)

	// OnUnauthorized is called when the caller has no identifier
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *gongin.Context)

	// OnError is called when the lookup fails
	// If nil, returns 500 Internal Server Error
	OnError func(c *gongin.Context, err error)
}

// RequireAccess creates a Gin middleware that lets a request through only
// when the caller's plan allows it
func RequireAccess(cfg Config) gongin.HandlerFunc {
	if cfg.Lookup == nil {
		panic("paddlerelay/gin: Config.Lookup is required")
	}
	if cfg.GetIdentifier == nil {
		panic("paddlerelay/gin: Config.GetIdentifier is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(c *gongin.Context) {
		id := cfg.GetIdentifier(c)
		if id.IsZero() {
			if cfg.OnUnauthorized != nil {
				cfg.OnUnauthorized(c)
			} else {
				c.JSON(http.StatusUnauthorized, gongin.H{"ok": false, "error": "unauthorized"})
			}
			c.Abort()
			return
		}

		access, err := accounts.CheckAccess(c.Request.Context(), cfg.Lookup, id, cfg.Now())
		if err != nil {
			if cfg.OnError != nil {
				cfg.OnError(c, err)
			} else {
				c.JSON(http.StatusInternalServerError, gongin.H{"ok": false, "error": "internal_error"})
			}
			c.Abort()
			return
		}

		access.SetHeaders(c.Header)
		if !access.Allowed {
			if cfg.OnPlanExpired != nil {
				cfg.OnPlanExpired(c, access)
			} else {
				c.JSON(http.StatusPaymentRequired, access.Denial())
			}
			c.Abort()
			return
		}

		c.Set(AccessContextKey, access)
		c.Next()
	}
}

// Convenience extractors

// FromContext returns an IdentifierExtractor that reads an email from Gin context values
func FromContext(key string) IdentifierExtractor {
	return func(c *gongin.Context) accounts.Identifier {
		return accounts.NewIdentifier(c.GetString(key), "")
	}
}

// FromHeader returns an IdentifierExtractor that reads an email from a header
func FromHeader(headerName string) IdentifierExtractor {
	return func(c *gongin.Context) accounts.Identifier {
		return accounts.NewIdentifier(c.GetHeader(headerName), "")
	}
}

// FromQuery returns an IdentifierExtractor that reads ?email= and ?account_id=
func FromQuery() IdentifierExtractor {
	return func(c *gongin.Context) accounts.Identifier {
		return accounts.NewIdentifier(c.Query("email"), c.Query("account_id"))
	}
}

// AccessFromContext returns the decision stored by RequireAccess
func AccessFromContext(c *gongin.Context) (accounts.Access, bool) {
	v, ok := c.Get(AccessContextKey)
	if !ok {
		return accounts.Access{}, false
	}
	access, ok := v.(accounts.Access)
	return access, ok
}
