package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

// RequireGroup ensures the caller belongs to group. An empty group only requires
// authentication.
func RequireGroup(group string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if group != "" && !principal.InGroup(group) {
			return apperrors.NewForbidden("agent group membership required")
		}
		return c.Next()
	}
}
