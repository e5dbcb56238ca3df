package route

import (
	"templeseva_backend/internals/features/users/auth/controller"
	"templeseva_backend/internals/features/users/auth/service"
	"templeseva_backend/internals/middlewares"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Deps struct {
	Tokens       *service.TokenService
	Donors       service.DonorStore
	Validate     *validator.Validate
	SecureCookie bool
	Log          *zap.Logger
}

// PublicAuthRoutes mounts under /api/public.
func PublicAuthRoutes(public fiber.Router, d Deps) {
	ctrl := controller.NewAuthController(d.Tokens, d.Donors, d.Validate, d.SecureCookie, d.Log)

	auth := public.Group("/auth")
	auth.Post("/otp/request", middlewares.OtpRateLimiter(), ctrl.RequestOtp)
	auth.Post("/otp/verify", middlewares.OtpRateLimiter(), ctrl.VerifyOtp)
	auth.Get("/claim", ctrl.Claim)
	auth.Post("/claim", ctrl.Claim)
}

// DonorAuthRoutes mounts under /api/u, behind donor auth.
func DonorAuthRoutes(user fiber.Router, d Deps) {
	ctrl := controller.NewAuthController(d.Tokens, d.Donors, d.Validate, d.SecureCookie, d.Log)

	user.Get("/me", ctrl.Me)
	user.Post("/auth/logout", ctrl.Logout)
}
