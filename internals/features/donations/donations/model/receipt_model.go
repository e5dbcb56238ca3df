package model

import (
	"time"

	"github.com/google/uuid"
)

// Receipt is issued once, at the first SUCCESS of its donation, and never changes.
type Receipt struct {
	ReceiptID         uuid.UUID `gorm:"column:receipt_id;type:uuid;default:gen_random_uuid();primaryKey" json:"receipt_id"`
	ReceiptDonationID uuid.UUID `gorm:"column:receipt_donation_id;type:uuid;not null;uniqueIndex" json:"receipt_donation_id"`
	ReceiptNumber     string    `gorm:"column:receipt_number;type:varchar(32);not null;uniqueIndex" json:"receipt_number"`
	ReceiptIssuedAt   time.Time `gorm:"column:receipt_issued_at;not null" json:"receipt_issued_at"`
}

func (Receipt) TableName() string {
	return "donation_receipts"
}
