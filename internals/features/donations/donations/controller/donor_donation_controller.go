package controller

import (
	"errors"

	"templeseva_backend/internals/features/donations/donations/dto"
	"templeseva_backend/internals/features/donations/donations/repository"
	"templeseva_backend/internals/features/donations/donations/service"
	helper "templeseva_backend/internals/helpers"
	"templeseva_backend/internals/helpers/dbtime"
	authMw "templeseva_backend/internals/middlewares/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DonorDonationController serves a signed-in donor's own history.
type DonorDonationController struct {
	repo   repository.Repository
	donors service.DonorLookup
}

func NewDonorDonationController(repo repository.Repository, donors service.DonorLookup) *DonorDonationController {
	return &DonorDonationController{repo: repo, donors: donors}
}

// GET /api/u/donations
func (h *DonorDonationController) List(c *fiber.Ctx) error {
	donorID, ok := authMw.DonorID(c)
	if !ok {
		return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	p := helper.ResolvePaging(c, 20, 100)
	items, total, err := h.repo.ListByDonor(c.UserContext(), donorID, p.Limit, p.Offset)
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load donations")
	}
	return helper.JsonList(c, "ok", dto.NewDonorDonationList(items), helper.BuildPagination(total, p, len(items)))
}

// GET /api/u/donations/:id/receipt
func (h *DonorDonationController) Receipt(c *fiber.Ctx) error {
	donorID, ok := authMw.DonorID(c)
	if !ok {
		return helper.JsonError(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid donation id")
	}

	ctx := c.UserContext()
	d, err := h.repo.FindByID(ctx, id)
	// another donor's donation looks the same as a missing one
	if errors.Is(err, repository.ErrNotFound) || (err == nil && d.DonationDonorID != donorID) {
		return helper.JsonError(c, fiber.StatusNotFound, "Donation not found")
	}
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load donation")
	}
	if !d.IsPaid() {
		return helper.JsonError(c, fiber.StatusConflict, "Receipt is issued once the payment succeeds")
	}

	r, err := h.repo.FindReceipt(ctx, d.DonationID)
	if errors.Is(err, repository.ErrNotFound) {
		return helper.JsonError(c, fiber.StatusNotFound, "Receipt not found")
	}
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load receipt")
	}

	donor, err := h.donors.FindByID(ctx, donorID)
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load donor")
	}

	return helper.JsonOK(c, "ok", dto.ReceiptResponse{
		ReceiptNumber:   r.ReceiptNumber,
		IssuedAt:        dbtime.ToLocal(r.ReceiptIssuedAt),
		MerchantOrderID: d.DonationMerchantOrderID,
		DonorName:       donor.DonorName,
		DonorPAN:        lo.FromPtr(donor.DonorPAN),
		Amount:          d.DonationAmount.StringFixed(2),
		Currency:        d.DonationCurrency,
		Purpose:         d.DonationPurpose,
		PaymentMethod:   lo.FromPtr(d.DonationPaymentMethod),
	})
}
