package middlewares

import (
	"time"

	"templeseva_backend/internals/configs"
	"templeseva_backend/internals/middlewares/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// requestTimeout leaves room for one gateway call at the default 30s timeout.
const requestTimeout = 45 * time.Second

func SetupMiddlewares(app *fiber.App, cfg *configs.Config, log *zap.Logger) {
	app.Use(RecoveryMiddleware(log))
	app.Use(RequestID(requestTimeout))
	app.Use(logger.LoggerMiddleware())
	app.Use(CorsMiddleware(cfg.SiteBaseURL))
}
