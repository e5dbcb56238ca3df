package dto

import (
	"time"

	"templeseva_backend/internals/features/donations/donations/model"
	"templeseva_backend/internals/helpers/dbtime"
	donorService "templeseva_backend/internals/features/donations/donors/service"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

/* =========================
   Requests
========================= */

// CreateDonationRequest is the public donation form. At least one of email,
// phone or PAN identifies the payer.
type CreateDonationRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required_without_all=Phone PAN,omitempty,email,max=254"`
	Phone string `json:"phone" validate:"omitempty,max=20"`
	PAN   string `json:"pan" validate:"omitempty,len=10"`

	Address    string `json:"address" validate:"omitempty,max=500"`
	City       string `json:"city" validate:"omitempty,max=80"`
	State      string `json:"state" validate:"omitempty,max=80"`
	PostalCode string `json:"postal_code" validate:"omitempty,max=12"`
	Country    string `json:"country" validate:"omitempty,max=60"`

	// Amount is a decimal string so no precision is lost ("1001.50").
	Amount          string `json:"amount" validate:"required,max=16"`
	Purpose         string `json:"purpose" validate:"omitempty,max=120"`
	MerchantOrderID string `json:"merchant_order_id" validate:"omitempty,max=64"`
	ReturnURL       string `json:"return_url" validate:"omitempty,url,max=500"`
}

func (r CreateDonationRequest) Payer() donorService.PayerInput {
	return donorService.PayerInput{
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		PAN:        r.PAN,
		Address:    r.Address,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Country:    r.Country,
	}
}

type RefundRequest struct {
	// Amount is optional; empty refunds everything still refundable.
	Amount string `json:"amount" validate:"omitempty,max=16"`
}

type ReconcileRequest struct {
	Max       int    `json:"max" validate:"omitempty,min=1,max=1000"`
	OlderThan string `json:"older_than" validate:"omitempty,max=16"`
	MaxAge    string `json:"max_age" validate:"omitempty,max=16"`
}

/* =========================
   Responses
========================= */

// ReconcileResponse is the run report. Interrupted marks a batch cut short
// by its time bound; the counts cover what was checked until then.
type ReconcileResponse struct {
	Checked     int  `json:"checked"`
	Succeeded   int  `json:"succeeded"`
	Failed      int  `json:"failed"`
	Errors      int  `json:"errors"`
	Interrupted bool `json:"interrupted"`
}

type CreateDonationResponse struct {
	MerchantOrderID string `json:"merchant_order_id"`
	RedirectURL     string `json:"redirect_url"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Status          string `json:"status"`
}

// DonationStatusResponse is what anyone holding the order id may see.
type DonationStatusResponse struct {
	MerchantOrderID string     `json:"merchant_order_id"`
	Status          string     `json:"status"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	Purpose         string     `json:"purpose,omitempty"`
	ReceiptNumber   *string    `json:"receipt_number,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type DonorDonationResponse struct {
	DonationID      uuid.UUID  `json:"donation_id"`
	MerchantOrderID string     `json:"merchant_order_id"`
	Status          string     `json:"status"`
	Amount          string     `json:"amount"`
	RefundedAmount  string     `json:"refunded_amount"`
	Currency        string     `json:"currency"`
	Purpose         string     `json:"purpose,omitempty"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	ReceiptNumber   *string    `json:"receipt_number,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ReceiptResponse struct {
	ReceiptNumber   string    `json:"receipt_number"`
	IssuedAt        time.Time `json:"issued_at"`
	MerchantOrderID string    `json:"merchant_order_id"`
	DonorName       string    `json:"donor_name"`
	DonorPAN        string    `json:"donor_pan,omitempty"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	Purpose         string    `json:"purpose,omitempty"`
	PaymentMethod   string    `json:"payment_method,omitempty"`
}

type RefundResponse struct {
	MerchantOrderID string `json:"merchant_order_id"`
	Refunded        string `json:"refunded"`
	TotalRefunded   string `json:"total_refunded"`
	Refundable      string `json:"refundable"`
}

type NotificationResponse struct {
	Outcome         string `json:"outcome"`
	State           string `json:"state"`
	MerchantOrderID string `json:"merchant_order_id,omitempty"`
	ReceiptNumber   string `json:"receipt_number,omitempty"`
}

/* =========================
   Mappers
========================= */

func NewDonationStatusResponse(d *model.Donation) DonationStatusResponse {
	return DonationStatusResponse{
		MerchantOrderID: d.DonationMerchantOrderID,
		Status:          d.DonationStatus,
		Amount:          d.DonationAmount.StringFixed(2),
		Currency:        d.DonationCurrency,
		Purpose:         d.DonationPurpose,
		ReceiptNumber:   d.DonationReceiptNumber,
		PaidAt:          dbtime.ToLocalPtr(d.DonationPaidAt),
		CreatedAt:       dbtime.ToLocal(d.DonationCreatedAt),
	}
}

func NewDonorDonationResponse(d model.Donation) DonorDonationResponse {
	return DonorDonationResponse{
		DonationID:      d.DonationID,
		MerchantOrderID: d.DonationMerchantOrderID,
		Status:          d.DonationStatus,
		Amount:          d.DonationAmount.StringFixed(2),
		RefundedAmount:  d.DonationRefundedAmount.StringFixed(2),
		Currency:        d.DonationCurrency,
		Purpose:         d.DonationPurpose,
		PaymentMethod:   lo.FromPtr(d.DonationPaymentMethod),
		ReceiptNumber:   d.DonationReceiptNumber,
		PaidAt:          dbtime.ToLocalPtr(d.DonationPaidAt),
		CreatedAt:       dbtime.ToLocal(d.DonationCreatedAt),
	}
}

func NewDonorDonationList(items []model.Donation) []DonorDonationResponse {
	return lo.Map(items, func(d model.Donation, _ int) DonorDonationResponse {
		return NewDonorDonationResponse(d)
	})
}
