package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Donation status. SUCCESS is terminal: nothing moves a donation out of it.
const (
	DonationStatusPending = "PENDING"
	DonationStatusSuccess = "SUCCESS"
	DonationStatusFailed  = "FAILED"
)

type Donation struct {
	DonationID      uuid.UUID `gorm:"column:donation_id;type:uuid;default:gen_random_uuid();primaryKey" json:"donation_id"`
	DonationDonorID uuid.UUID `gorm:"column:donation_donor_id;type:uuid;not null;index" json:"donation_donor_id"`

	// Correlation keys with the gateway
	DonationMerchantOrderID string  `gorm:"column:donation_merchant_order_id;type:varchar(20);not null;uniqueIndex" json:"donation_merchant_order_id"`
	DonationGatewayOrderID  *string `gorm:"column:donation_gateway_order_id;type:varchar(128);uniqueIndex" json:"donation_gateway_order_id,omitempty"`
	DonationGatewayProvider string  `gorm:"column:donation_gateway_provider;type:varchar(20);not null" json:"donation_gateway_provider"`
	DonationCustomerRef     string  `gorm:"column:donation_customer_ref;type:varchar(160);not null" json:"-"`

	DonationAmount         decimal.Decimal `gorm:"column:donation_amount;type:numeric(12,2);not null;check:donation_amount > 0" json:"donation_amount"`
	DonationCurrency       string          `gorm:"column:donation_currency;type:varchar(3);not null;default:'INR'" json:"donation_currency"`
	DonationPurpose        string          `gorm:"column:donation_purpose;type:varchar(120)" json:"donation_purpose"`
	DonationRefundedAmount decimal.Decimal `gorm:"column:donation_refunded_amount;type:numeric(12,2);not null;default:0" json:"donation_refunded_amount"`

	DonationStatus        string  `gorm:"column:donation_status;type:varchar(10);not null;default:'PENDING';index:idx_donation_status_created,priority:1" json:"donation_status"`
	DonationPaymentMethod *string `gorm:"column:donation_payment_method;type:varchar(60)" json:"donation_payment_method,omitempty"`
	DonationBankTxnID     *string `gorm:"column:donation_bank_txn_id;type:varchar(128)" json:"donation_bank_txn_id,omitempty"`
	DonationRedirectURL   *string `gorm:"column:donation_redirect_url;type:text" json:"-"`

	// Last-seen gateway payload, kept for audit.
	DonationGatewayMeta datatypes.JSONMap `gorm:"column:donation_gateway_meta;type:jsonb" json:"-"`

	DonationReceiptNumber           *string `gorm:"column:donation_receipt_number;type:varchar(32);uniqueIndex" json:"donation_receipt_number,omitempty"`
	DonationReceiptNotificationSent bool    `gorm:"column:donation_receipt_notification_sent;not null;default:false" json:"-"`

	DonationPaidAt    *time.Time `gorm:"column:donation_paid_at" json:"donation_paid_at,omitempty"`
	DonationFailedAt  *time.Time `gorm:"column:donation_failed_at" json:"donation_failed_at,omitempty"`
	DonationCreatedAt time.Time  `gorm:"column:donation_created_at;autoCreateTime;index:idx_donation_status_created,priority:2" json:"donation_created_at"`
	DonationUpdatedAt time.Time  `gorm:"column:donation_updated_at;autoUpdateTime" json:"donation_updated_at"`
}

func (Donation) TableName() string {
	return "donations"
}

func (d *Donation) IsPaid() bool    { return d.DonationStatus == DonationStatusSuccess }
func (d *Donation) IsPending() bool { return d.DonationStatus == DonationStatusPending }

// RefundableAmount is what is left after earlier refunds.
func (d *Donation) RefundableAmount() decimal.Decimal {
	return d.DonationAmount.Sub(d.DonationRefundedAmount)
}
