package controller

import (
	"errors"
	"strings"

	"templeseva_backend/internals/features/donations/donations/dto"
	"templeseva_backend/internals/features/donations/donations/repository"
	"templeseva_backend/internals/features/donations/donations/service"
	helper "templeseva_backend/internals/helpers"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type DonationController struct {
	sessions *service.SessionCreator
	repo     repository.Repository
	validate *validator.Validate
	log      *zap.Logger
}

func NewDonationController(sessions *service.SessionCreator, repo repository.Repository, v *validator.Validate, log *zap.Logger) *DonationController {
	return &DonationController{sessions: sessions, repo: repo, validate: v, log: log.Named("donations")}
}

// POST /api/public/donations
func (h *DonationController) Create(c *fiber.Ctx) error {
	var req dto.CreateDonationRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}

	out, err := h.sessions.Create(c.UserContext(), service.SessionInput{
		Payer:           req.Payer(),
		Amount:          req.Amount,
		Purpose:         req.Purpose,
		MerchantOrderID: req.MerchantOrderID,
		ReturnURL:       req.ReturnURL,
	})
	if err != nil {
		var ve *service.ValidationError
		var se *service.SessionError
		switch {
		case errors.As(err, &ve):
			return helper.JsonValidationError(c, map[string][]string{ve.Field: {ve.Message}})
		case errors.As(err, &se):
			return helper.JsonError(c, fiber.StatusBadGateway, se.Error())
		default:
			h.log.Error("create donation failed", zap.Error(err))
			return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to create donation")
		}
	}

	d := out.Donation
	return helper.JsonCreated(c, "payment session created", dto.CreateDonationResponse{
		MerchantOrderID: d.DonationMerchantOrderID,
		RedirectURL:     out.RedirectURL,
		Amount:          d.DonationAmount.StringFixed(2),
		Currency:        d.DonationCurrency,
		Status:          d.DonationStatus,
	})
}

// GET /api/public/donations/:merchant_order_id/status
func (h *DonationController) Status(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("merchant_order_id"))
	if id == "" {
		return helper.JsonError(c, fiber.StatusBadRequest, "merchant_order_id is required")
	}
	d, err := h.repo.FindByMerchantOrderID(c.UserContext(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return helper.JsonError(c, fiber.StatusNotFound, "Donation not found")
	}
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load donation")
	}
	return helper.JsonOK(c, "ok", dto.NewDonationStatusResponse(d))
}
