package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/omnichannel-support/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated agent.
type Principal struct {
	ID     string
	Email  string
	Groups []string
}

// InGroup reports whether the principal belongs to group.
func (p *Principal) InGroup(group string) bool {
	for _, g := range p.Groups {
		if g == group {
			return true
		}
	}
	return false
}

// AuthMiddleware validates bearer tokens.
type AuthMiddleware struct {
	tokens   *TokenManager
	disabled bool
	mock     Principal
}

// NewAuthMiddleware constructs middleware. When disabled, every request runs as a
// local development agent that belongs to agentGroup.
func NewAuthMiddleware(tokens *TokenManager, disabled bool, agentGroup string) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		disabled: disabled,
		mock: Principal{
			ID:     "dev-agent",
			Email:  "dev-agent@localhost",
			Groups: []string{agentGroup},
		},
	}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if m.disabled {
		principal := m.mock
		c.Locals(principalKey, &principal)
		return c.Next()
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(principalKey, &Principal{ID: claims.Subject, Email: claims.Email, Groups: claims.Groups})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
