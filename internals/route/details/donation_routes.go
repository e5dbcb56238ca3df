package details

import (
	"templeseva_backend/internals/bootstrap"
	"templeseva_backend/internals/features/donations/donations/controller"
	DonationRoutes "templeseva_backend/internals/features/donations/donations/routes"

	"github.com/gofiber/fiber/v2"
)

func donationDeps(c *bootstrap.Container) DonationRoutes.Deps {
	return DonationRoutes.Deps{
		Repo:        c.Donations,
		Sessions:    c.Sessions,
		Processor:   c.Processor,
		Reconciler:  c.Reconciler,
		Refunds:     c.Refunds,
		Donors:      c.Donors,
		Validate:    c.Validate,
		SiteBaseURL: c.Config.SiteBaseURL,
		Log:         c.Log,
	}
}

func DonationPublicRoutes(r fiber.Router, c *bootstrap.Container) {
	deps := donationDeps(c)
	deps.WebhookAuth = controller.NewWebhookAuth(c.Config.Webhook, c.Config.Gateway.HDFC.APIKey, c.Log)
	DonationRoutes.PublicDonationRoutes(r, deps)
}

func DonationUserRoutes(r fiber.Router, c *bootstrap.Container) {
	DonationRoutes.DonorDonationRoutes(r, donationDeps(c))
}

func DonationAdminRoutes(r fiber.Router, c *bootstrap.Container) {
	DonationRoutes.AdminDonationRoutes(r, donationDeps(c))
}
