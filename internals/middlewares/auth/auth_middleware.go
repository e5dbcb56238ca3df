package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	helper "templeseva_backend/internals/helpers"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	LocalDonorID = "donor_id"
	HeaderAdmin  = "X-Admin-Key"
)

type TokenParser interface {
	ParseDonorID(token string) (uuid.UUID, error)
}

// DonorAuth requires a valid donor JWT and stores the donor id in Locals.
func DonorAuth(p TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok, err := extractBearerToken(c)
		if err != nil {
			return helper.JsonError(c, fiber.StatusUnauthorized, err.Error())
		}
		id, err := p.ParseDonorID(tok)
		if err != nil {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized - invalid or expired token")
		}
		c.Locals(LocalDonorID, id)
		return c.Next()
	}
}

// DonorID reads what DonorAuth stored.
func DonorID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, ok := c.Locals(LocalDonorID).(uuid.UUID)
	return id, ok
}

// AdminKey guards admin routes with a shared key. An empty key locks them.
func AdminKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get(HeaderAdmin)
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
		}
		return c.Next()
	}
}

func extractBearerToken(c *fiber.Ctx) (string, error) {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if auth == "" {
		if cookieTok := c.Cookies("donor_token"); cookieTok != "" {
			auth = "Bearer " + cookieTok
		}
	}
	if auth == "" {
		return "", fmt.Errorf("unauthorized - no token provided")
	}

	fields := strings.Fields(auth)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "Bearer") {
		return "", fmt.Errorf("unauthorized - invalid token format")
	}
	tok := strings.Trim(strings.TrimSpace(fields[1]), "\"'")
	if tok == "" {
		return "", fmt.Errorf("unauthorized - empty token")
	}
	return tok, nil
}
