// Package fiber provides Fiber middleware that gates requests on the caller's plan status
package fiber

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// AccessLocalsKey is the Fiber locals key holding the accounts.Access decision
const AccessLocalsKey = "paddlerelay.access"

// IdentifierExtractor extracts the caller's account identifier from a Fiber context
// Return a zero Identifier if the caller is not authenticated
type IdentifierExtractor func(c *fiber.Ctx) accounts.Identifier

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
	OnPlanExpired func(c *fiber.Ctx, access accounts.Access) error

	// OnUnauthorized is called when the caller has no identifier
	// If nil, returns 401 Unauthorized
	OnUnauthorized func(c *fiber.Ctx) error

	// OnError is called when the lookup fails
	// If nil, returns 500 Internal Server Error
	OnError func(c *fiber.Ctx, err error) error
}

// RequireAccess creates a Fiber middleware that lets a request through only
// when the caller's plan allows it
func RequireAccess(cfg Config) fiber.Handler {
	if cfg.Lookup == nil {
		panic("paddlerelay/fiber: Config.Lookup is required")
	}
	if cfg.GetIdentifier == nil {
		panic("paddlerelay/fiber: Config.GetIdentifier is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(c *fiber.Ctx) error {
		id := cfg.GetIdentifier(c)
		if id.IsZero() {
			if cfg.OnUnauthorized != nil {
				return cfg.OnUnauthorized(c)
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"ok": false, "error": "unauthorized"})
		}

		// Fiber uses fasthttp, so the request context comes from UserContext
		access, err := accounts.CheckAccess(c.UserContext(), cfg.Lookup, id, cfg.Now())
		if err != nil {
			if cfg.OnError != nil {
				return cfg.OnError(c, err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"ok": false, "error": "internal_error"})
		}

		access.SetHeaders(c.Set)
		if !access.Allowed {
			if cfg.OnPlanExpired != nil {
				return cfg.OnPlanExpired(c, access)
			}
			return c.Status(fiber.StatusPaymentRequired).JSON(access.Denial())
		}

		c.Locals(AccessLocalsKey, access)
		return c.Next()
	}
}

// Convenience extractors

// FromLocals returns an IdentifierExtractor that reads an email from Fiber locals
func FromLocals(key string) IdentifierExtractor {
	return func(c *fiber.Ctx) accounts.Identifier {
		if email, ok := c.Locals(key).(string); ok {
			return accounts.NewIdentifier(email, "")
		}
		return accounts.Identifier{}
	}
}

// FromHeader returns an IdentifierExtractor that reads an email from a header
func FromHeader(headerName string) IdentifierExtractor {
	return func(c *fiber.Ctx) accounts.Identifier {
		return accounts.NewIdentifier(c.Get(headerName), "")
	}
}

// AccountIDFromParam returns an IdentifierExtractor that reads an account id from a route parameter
func AccountIDFromParam(paramName string) IdentifierExtractor {
	return func(c *fiber.Ctx) accounts.Identifier {
		return accounts.NewIdentifier("", c.Params(paramName))
	}
}

// AccessFromLocals returns the decision stored by RequireAccess
func AccessFromLocals(c *fiber.Ctx) (accounts.Access, bool) {
	access, ok := c.Locals(AccessLocalsKey).(accounts.Access)
	return access, ok
}
