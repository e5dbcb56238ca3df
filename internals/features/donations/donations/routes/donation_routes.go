package routes

import (
	"templeseva_backend/internals/features/donations/donations/controller"
	"templeseva_backend/internals/features/donations/donations/repository"
	"templeseva_backend/internals/features/donations/donations/service"
	"templeseva_backend/internals/middlewares"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Deps carries what the donation routes need; built once at startup.
type Deps struct {
	Repo        repository.Repository
	Sessions    *service.SessionCreator
	Processor   *service.Processor
	Reconciler  *service.Reconciler
	Refunds     *service.RefundService
	Donors      service.DonorLookup
	WebhookAuth *controller.WebhookAuth
	Validate    *validator.Validate
	SiteBaseURL string
	Log         *zap.Logger
}

// PublicDonationRoutes mounts under /api/public.
func PublicDonationRoutes(public fiber.Router, d Deps) {
	donationCtrl := controller.NewDonationController(d.Sessions, d.Repo, d.Validate, d.Log)
	paymentCtrl := controller.NewPaymentController(d.Processor, d.SiteBaseURL, d.Log)

	donations := public.Group("/donations")
	donations.Post("/", middlewares.DonationRateLimiter(), donationCtrl.Create)
	donations.Get("/:merchant_order_id/status", donationCtrl.Status)

	payments := public.Group("/payments")
	payments.Post("/webhook", d.WebhookAuth.Handler(), paymentCtrl.Webhook)
	payments.Get("/return", paymentCtrl.Return)
	payments.Post("/return", paymentCtrl.Return)
}

// DonorDonationRoutes mounts under /api/u, behind donor auth.
func DonorDonationRoutes(user fiber.Router, d Deps) {
	ctrl := controller.NewDonorDonationController(d.Repo, d.Donors)

	donations := user.Group("/donations")
	donations.Get("/", ctrl.List)
	donations.Get("/:id/receipt", ctrl.Receipt)
}

// AdminDonationRoutes mounts under /api/a, behind the admin key.
func AdminDonationRoutes(admin fiber.Router, d Deps) {
	ctrl := controller.NewAdminController(d.Repo, d.Reconciler, d.Refunds, d.Validate, d.Log)

	admin.Post("/reconcile", ctrl.Reconcile)
	admin.Post("/donations/:merchant_order_id/refund", ctrl.Refund)
	admin.Get("/gateway-events", ctrl.ListEvents)
}
