// Package echo provides Echo middleware that gates requests on the caller's plan status
package echo

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// AccessContextKey is the Echo context key holding the accounts.Access decision
const AccessContextKey = "paddlerelay.access"

// IdentifierExtractor extracts the caller's account identifier from an Echo context
// Return a zero Identifier if the caller is not authenticated
type IdentifierExtractor func(c echo.Context) accounts.Identifier

// Config holds middleware configuration
type Config struct {
	// Lookup resolves the caller's record (required)
	Lookup accounts.LookupFunc

	// GetIdentifier extracts the caller's identifier from context (required)
	GetIdentifier IdentifierExtractor

	// Now is the clock used to evaluate access (default: time.Now)
	Now func() time.Time

	// OnPlanExpired is called when access is denied
	// If nil, returns 402 JSON with the plan dates
	OnPlanExpired func(c echo.Context, access accounts.Access) error

	// OnUnauthorized is called when the caller has no identifier
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c echo.Context) error

	// OnError is called when the lookup fails
	// If nil, returns 500 Internal Server Error
	OnError func(c echo.Context, err error) error
}

// RequireAccess creates an Echo middleware that lets a request through only
// when the caller's plan allows it
func RequireAccess(cfg Config) echo.MiddlewareFunc {
	// Validate required configuration at startup (fail fast)
	if cfg.Lookup == nil {
		panic("paddlerelay/echo: Config.Lookup is required")
	}
	if cfg.GetIdentifier == nil {
		panic("paddlerelay/echo: Config.GetIdentifier is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := cfg.GetIdentifier(c)
			if id.IsZero() {
				if cfg.OnUnauthorized != nil {
					return cfg.OnUnauthorized(c)
				}
				return defaultUnauthorized(c)
			}

			access, err := accounts.CheckAccess(c.Request().Context(), cfg.Lookup, id, cfg.Now())
			if err != nil {
				if cfg.OnError != nil {
					return cfg.OnError(c, err)
				}
				return defaultError(c, err)
			}

			access.SetHeaders(c.Response().Header().Set)
			if !access.Allowed {
				if cfg.OnPlanExpired != nil {
					return cfg.OnPlanExpired(c, access)
				}
				return c.JSON(http.StatusPaymentRequired, access.Denial())
			}

			c.Set(AccessContextKey, access)
			return next(c)
		}
	}
}

// Default error handlers

func defaultUnauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "unauthorized"})
}

func defaultError(c echo.Context, _ error) error {
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "internal_error"})
}

// Convenience extractors

// FromContext returns an IdentifierExtractor that reads an email from Echo context values
//
// Example:
//
//	// In your auth middleware:
//	c.Set("Email", email)
//
//	// In access middleware config:
//	GetIdentifier: echo.FromContext("Email")
func FromContext(key string) IdentifierExtractor {
	return func(c echo.Context) accounts.Identifier {
		if val, ok := c.Get(key).(string); ok {
			return accounts.NewIdentifier(val, "")
		}
		return accounts.Identifier{}
	}
}

// FromHeader returns an IdentifierExtractor that reads an email from a header
func FromHeader(headerName string) IdentifierExtractor {
	return func(c echo.Context) accounts.Identifier {
		return accounts.NewIdentifier(c.Request().Header.Get(headerName), "")
	}
}

// FromParam returns an IdentifierExtractor that reads an account id from a route parameter
func FromParam(paramName string) IdentifierExtractor {
	return func(c echo.Context) accounts.Identifier {
		return accounts.NewIdentifier("", c.Param(paramName))
	}
}

// AccessFromContext returns the decision stored by RequireAccess
func AccessFromContext(c echo.Context) (accounts.Access, bool) {
	access, ok := c.Get(AccessContextKey).(accounts.Access)
	return access, ok
}
