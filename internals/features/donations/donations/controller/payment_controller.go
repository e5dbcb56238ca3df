package controller

import (
	"errors"
	"net/url"
	"strings"

	"templeseva_backend/internals/features/donations/donations/dto"
	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/features/donations/donations/service"
	helper "templeseva_backend/internals/helpers"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// headers never copied into the event log
var redactedHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
}

type PaymentController struct {
	processor   *service.Processor
	siteBaseURL string
	log         *zap.Logger
}

func NewPaymentController(processor *service.Processor, siteBaseURL string, log *zap.Logger) *PaymentController {
	return &PaymentController{
		processor:   processor,
		siteBaseURL: strings.TrimRight(siteBaseURL, "/"),
		log:         log.Named("payments"),
	}
}

/* =======================================================================
   Webhook
   200: state decided (also for repeats) · 202: nothing to act on
   400: unreadable or uncorrelated · 401: auth (WebhookAuth.Handler)
======================================================================= */

func (h *PaymentController) Webhook(c *fiber.Ctx) error {
	payload, err := decodePayload(c)
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Invalid notification body")
	}

	res, err := h.processor.Handle(c.UserContext(), service.Notification{
		Source:  model.EventSourceWebhook,
		Payload: payload,
		Headers: captureHeaders(c),
	})
	switch {
	case errors.Is(err, service.ErrNoCorrelation):
		return helper.JsonError(c, fiber.StatusBadRequest, err.Error())
	case err != nil:
		h.log.Error("webhook processing failed", zap.Error(err))
		return helper.JsonError(c, fiber.StatusInternalServerError, "Notification could not be processed")
	}

	body := notificationResponse(res)
	if !res.Outcome.Changed() {
		return helper.JsonAccepted(c, "notification acknowledged", body)
	}
	return helper.JsonOK(c, "notification processed", body)
}

/* =======================================================================
   Return redirect
   The payer's browser lands here; the gateway is asked for the truth.
======================================================================= */

func (h *PaymentController) Return(c *fiber.Ctx) error {
	orderID := strings.TrimSpace(lo.CoalesceOrEmpty(c.Query("order_id"), c.FormValue("order_id")))
	if orderID == "" {
		return helper.JsonError(c, fiber.StatusBadRequest, "order_id is required")
	}

	d, err := h.processor.Find(c.UserContext(), service.Candidates{GatewayOrderID: orderID})
	if errors.Is(err, service.ErrNoMatch) {
		return helper.JsonError(c, fiber.StatusNotFound, "Donation not found")
	}
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Failed to load donation")
	}

	status := d.DonationStatus
	message := "payment status confirmed"
	confirmed := true
	res, err := h.processor.Refresh(c.UserContext(), d, model.EventSourceReturn)
	if err != nil {
		h.log.Warn("return check failed", zap.String("merchant_order_id", d.DonationMerchantOrderID), zap.Error(err))
		message = "payment status not confirmed yet, please check back later"
		confirmed = false
	} else if res.Donation != nil {
		status = res.Donation.DonationStatus
	}

	if c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON {
		return helper.JsonOK(c, message, fiber.Map{
			"merchant_order_id": d.DonationMerchantOrderID,
			"status":            status,
			"confirmed":         confirmed,
		})
	}

	q := url.Values{}
	q.Set("order_id", d.DonationMerchantOrderID)
	q.Set("status", status)
	if !confirmed {
		q.Set("pending_check", "1")
	}
	return c.Redirect(h.siteBaseURL+"/donation/result?"+q.Encode(), fiber.StatusSeeOther)
}

/* =======================================================================
   Helpers
======================================================================= */

// decodePayload accepts JSON and form-encoded notifications.
func decodePayload(c *fiber.Ctx) (map[string]any, error) {
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEApplicationForm) {
		out := map[string]any{}
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			out[string(k)] = string(v)
		})
		if len(out) == 0 {
			return nil, errors.New("empty form")
		}
		return out, nil
	}

	body := c.Body()
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	var out map[string]any
	if err := sonic.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("body is not an object")
	}
	return out, nil
}

func captureHeaders(c *fiber.Ctx) map[string]string {
	headers := map[string]string{}
	for k, v := range c.GetReqHeaders() {
		if redactedHeaders[strings.ToLower(k)] {
			continue
		}
		headers[k] = strings.Join(v, ",")
	}
	return headers
}

func notificationResponse(res *service.ProcessResult) dto.NotificationResponse {
	out := dto.NotificationResponse{
		Outcome: string(res.Outcome),
		State:   string(res.Status.State),
	}
	if res.Donation != nil {
		out.MerchantOrderID = res.Donation.DonationMerchantOrderID
	}
	if res.Receipt != nil {
		out.ReceiptNumber = res.Receipt.ReceiptNumber
	}
	return out
}
