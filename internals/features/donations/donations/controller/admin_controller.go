package controller

import (
	"context"
	"errors"
	"strings"
	"time"

	"templeseva_backend/internals/features/donations/donations/dto"
	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/repository"
	"templeseva_backend/internals/features/donations/donations/service"
	helper "templeseva_backend/internals/helpers"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// reconcileTimeout bounds an on-demand batch. The run is detached from the
// request deadline, which only covers a single gateway call.
const reconcileTimeout = 10 * time.Minute

type AdminController struct {
	repo       repository.Repository
	reconciler *service.Reconciler
	refunds    *service.RefundService
	validate   *validator.Validate
	log        *zap.Logger
}

func NewAdminController(repo repository.Repository, reconciler *service.Reconciler, refunds *service.RefundService, v *validator.Validate, log *zap.Logger) *AdminController {
	return &AdminController{repo: repo, reconciler: reconciler, refunds: refunds, validate: v, log: log.Named("admin")}
}

// POST /api/a/reconcile
func (h *AdminController) Reconcile(c *fiber.Ctx) error {
	var req dto.ReconcileRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return helper.JsonValidationError(c, helper.ValidationErrors(err))
	}

	opts := h.reconciler.Defaults()
	if req.Max > 0 {
		opts.BatchSize = req.Max
	}
	fieldErrs := map[string][]string{}
	if d, ok := parseDuration(req.OlderThan, fieldErrs, "older_than"); ok {
		opts.OlderThan = d
	}
	if d, ok := parseDuration(req.MaxAge, fieldErrs, "max_age"); ok {
		opts.MaxAge = d
	}
	if len(fieldErrs) > 0 {
		return helper.JsonValidationError(c, fieldErrs)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.UserContext()), reconcileTimeout)
	defer cancel()

	rep, err := h.reconciler.Run(ctx, opts)
	out := dto.ReconcileResponse{Checked: rep.Checked, Succeeded: rep.Succeeded, Failed: rep.Failed, Errors: rep.Errors}
	switch {
	case errors.Is(err, service.ErrReconcileRunning):
		return helper.JsonError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.log.Warn("reconcile interrupted", zap.Int("checked", rep.Checked), zap.Error(err))
		out.Interrupted = true
		return helper.JsonOK(c, "reconciliation interrupted", out)
	case err != nil:
		h.log.Error("reconcile failed", zap.Error(err))
		return helper.JsonError(c, fiber.StatusInternalServerError, "Reconciliation failed")
	}
	return helper.JsonOK(c, "reconciliation finished", out)
}

// POST /api/a/donations/:merchant_order_id/refund
func (h *AdminController) Refund(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("merchant_order_id"))

	var req dto.RefundRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return helper.JsonError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	var amount *decimal.Decimal
	if s := strings.TrimSpace(req.Amount); s != "" {
		a, err := service.ParseAmount(s)
		if err != nil {
			return helper.JsonValidationError(c, map[string][]string{"amount": {"must be a positive amount with at most 2 decimals"}})
		}
		amount = &a
	}

	res, err := h.refunds.Refund(c.UserContext(), id, amount)
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return helper.JsonValidationError(c, map[string][]string{ve.Field: {ve.Message}})
	case errors.Is(err, repository.ErrNotFound):
		return helper.JsonError(c, fiber.StatusNotFound, "Donation not found")
	case errors.Is(err, service.ErrNotRefundable), errors.Is(err, service.ErrRefundTooLarge):
		return helper.JsonError(c, fiber.StatusConflict, err.Error())
	case err != nil:
		h.log.Error("refund failed", zap.String("merchant_order_id", id), zap.Error(err))
		return helper.JsonError(c, fiber.StatusBadGateway, "Refund was not accepted by the gateway")
	}

	return helper.JsonOK(c, "refund requested", dto.RefundResponse{
		MerchantOrderID: res.Donation.DonationMerchantOrderID,
		Refunded:        res.Amount.StringFixed(2),
		TotalRefunded:   res.Donation.DonationRefundedAmount.StringFixed(2),
		Refundable:      res.Donation.RefundableAmount().StringFixed(2),
	})
}

var eventStatuses = map[string]bool{
	model.EventStatusReceived:    true,
	model.EventStatusProcessed:   true,
	model.EventStatusIgnored:     true,
	model.EventStatusUnmatched:   true,
	model.EventStatusNeedsReview: true,
	model.EventStatusFailed:      true,
}

// GET /api/a/gateway-events?status=needs_review
func (h *AdminController) ListEvents(c *fiber.Ctx) error {
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	if status != "" && !eventStatuses[status] {
		return helper.JsonError(c, fiber.StatusBadRequest, "Unknown event status")
	}
	p := helper.ResolvePaging(c, 50, 200)
	items, total, err := h.repo.ListEvents(c.UserContext(), status, p.Limit, p.Offset)
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load events")
	}
	return helper.JsonList(c, "ok", items, helper.BuildPagination(total, p, len(items)))
}

func parseDuration(s string, errs map[string][]string, field string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		errs[field] = append(errs[field], "must be a duration like 15m or 24h")
		return 0, false
	}
	return d, true
}
