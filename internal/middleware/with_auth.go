package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/internhub-api/internal/utils"
)

// Auth role constants used by WithAuth helper.
const (
	AuthRoleAny      = "any"
	AuthRoleAdmin    = "admin"
	AuthRoleEmployer = "employer"
	AuthRoleStudent  = "student"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role string
	// AllowAnonymous lets requests without an authenticated user through when Role is any.
	AllowAnonymous bool
	// SelfParam names a route parameter that must equal the authenticated user id. Admins bypass it.
	SelfParam string
}

// WithAuth wraps a handler with basic authentication/authorization guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}
	allowAnonymous := opts.AllowAnonymous && role == AuthRoleAny && opts.SelfParam == ""

	return func(c *fiber.Ctx) error {
		userID, authenticated := c.Locals("user_id").(uint)
		if !authenticated || userID == 0 {
			if allowAnonymous {
				return handler(c)
			}
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		currentRole := normalizeRoleValue(c.Locals("user_role"))
		if role != AuthRoleAny && currentRole != role && currentRole != AuthRoleAdmin {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
		}

		if opts.SelfParam != "" && currentRole != AuthRoleAdmin {
			target, err := strconv.ParseUint(c.Params(opts.SelfParam), 10, 64)
			if err != nil || uint(target) != userID {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}

		return handler(c)
	}
}
