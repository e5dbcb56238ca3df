package details

import (
	"templeseva_backend/internals/bootstrap"
	AuthRoutes "templeseva_backend/internals/features/users/auth/route"

	"github.com/gofiber/fiber/v2"
)

func authDeps(c *bootstrap.Container) AuthRoutes.Deps {
	return AuthRoutes.Deps{
		Tokens:       c.Tokens,
		Donors:       c.Donors,
		Validate:     c.Validate,
		SecureCookie: !c.Config.IsDevelopment(),
		Log:          c.Log,
	}
}

func AuthPublicRoutes(r fiber.Router, c *bootstrap.Container) {
	AuthRoutes.PublicAuthRoutes(r, authDeps(c))
}

func AuthUserRoutes(r fiber.Router, c *bootstrap.Container) {
	AuthRoutes.DonorAuthRoutes(r, authDeps(c))
}
