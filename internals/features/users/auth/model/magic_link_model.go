package model

import (
	"time"

	"github.com/google/uuid"
)

// MagicLinkToken stores only the SHA-256 of the token handed to the donor.
type MagicLinkToken struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	DonorID   uuid.UUID  `gorm:"column:donor_id;type:uuid;not null;index" json:"donor_id"`
	TokenHash []byte     `gorm:"column:token_hash;type:bytea;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time  `gorm:"column:expires_at;type:timestamptz;not null" json:"expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at;type:timestamptz" json:"used_at,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;type:timestamptz;autoCreateTime" json:"created_at"`
}

func (MagicLinkToken) TableName() string {
	return "magic_link_tokens"
}

// Usable is false once used or past expiry.
func (t *MagicLinkToken) Usable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
