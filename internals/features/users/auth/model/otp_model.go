package model

import (
	"time"

	"github.com/google/uuid"
)

const OtpChannelEmail = "email"

type OtpCode struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DonorID    uuid.UUID  `gorm:"column:donor_id;type:uuid;not null;index" json:"donor_id"`
	Channel    string     `gorm:"column:channel;type:varchar(10);not null;default:'email'" json:"channel"`
	CodeHash   []byte     `gorm:"column:code_hash;type:bytea;not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;type:timestamptz;not null" json:"expires_at"`
	ConsumedAt *time.Time `gorm:"column:consumed_at;type:timestamptz" json:"consumed_at,omitempty"`
	Attempts   int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	CreatedAt  time.Time  `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"created_at"`
}

func (OtpCode) TableName() string {
	return "otp_codes"
}

func (o *OtpCode) Usable(now time.Time, maxAttempts int) bool {
	return o.ConsumedAt == nil && now.Before(o.ExpiresAt) && o.Attempts < maxAttempts
}
