package routes

import (
	"time"

	"templeseva_backend/internals/bootstrap"
	"templeseva_backend/internals/middlewares"
	authMiddleware "templeseva_backend/internals/middlewares/auth"
	routeDetails "templeseva_backend/internals/route/details"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var startTime time.Time

func SetupRoutes(app *fiber.App, c *bootstrap.Container) {
	startTime = time.Now()
	log := c.Log.Named("routes")

	BaseRoutes(app, c.DB, c.Config.Env)

	// ===================== GROUPS =====================

	// PUBLIC: donation form, gateway callbacks, sign-in
	public := app.Group("/api/public", middlewares.GlobalRateLimiter())

	// DONOR: JWT from OTP login or magic-link claim
	user := app.Group("/api/u", authMiddleware.DonorAuth(c.Tokens))

	// ADMIN: shared key
	admin := app.Group("/api/a", authMiddleware.AdminKey(c.Config.AdminAPIKey))
	if c.Config.AdminAPIKey == "" {
		log.Warn("ADMIN_API_KEY not set, admin routes are locked")
	}

	// ===================== MOUNT ROUTES =====================

	log.Info("mounting auth routes")
	routeDetails.AuthPublicRoutes(public, c)
	routeDetails.AuthUserRoutes(user, c)

	log.Info("mounting donation routes")
	routeDetails.DonationPublicRoutes(public, c)
	routeDetails.DonationUserRoutes(user, c)
	routeDetails.DonationAdminRoutes(admin, c)

	log.Info("routes ready", zap.Int("handlers", int(app.HandlersCount())))
}
