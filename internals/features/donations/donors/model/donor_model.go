package model

import (
	"time"

	"github.com/google/uuid"
)

type Donor struct {
	DonorID uuid.UUID `gorm:"column:donor_id;type:uuid;default:gen_random_uuid();primaryKey" json:"donor_id"`

	DonorEmail     *string `gorm:"column:donor_email;type:varchar(254)" json:"donor_email,omitempty"`
	DonorEmailNorm *string `gorm:"column:donor_email_norm;type:varchar(254);uniqueIndex" json:"-"`
	DonorPhone     *string `gorm:"column:donor_phone;type:varchar(20);index" json:"donor_phone,omitempty"`
	DonorName      string  `gorm:"column:donor_name;type:varchar(120)" json:"donor_name"`
	DonorPAN       *string `gorm:"column:donor_pan;type:varchar(10);index" json:"donor_pan,omitempty"`

	DonorAddress    string `gorm:"column:donor_address;type:text" json:"donor_address,omitempty"`
	DonorCity       string `gorm:"column:donor_city;type:varchar(80)" json:"donor_city,omitempty"`
	DonorState      string `gorm:"column:donor_state;type:varchar(80)" json:"donor_state,omitempty"`
	DonorPostalCode string `gorm:"column:donor_postal_code;type:varchar(12)" json:"donor_postal_code,omitempty"`
	DonorCountry    string `gorm:"column:donor_country;type:varchar(60)" json:"donor_country,omitempty"`

	DonorIsClaimed bool `gorm:"column:donor_is_claimed;not null;default:false" json:"donor_is_claimed"`

	DonorCreatedAt time.Time `gorm:"column:donor_created_at;autoCreateTime" json:"donor_created_at"`
	DonorUpdatedAt time.Time `gorm:"column:donor_updated_at;autoUpdateTime" json:"donor_updated_at"`
}

func (Donor) TableName() string {
	return "donors"
}

// GatewayCustomerRef is the payer identifier sent to the gateway.
func (d *Donor) GatewayCustomerRef() string {
	if d.DonorEmail != nil && *d.DonorEmail != "" {
		return *d.DonorEmail
	}
	if d.DonorPhone != nil && *d.DonorPhone != "" {
		return *d.DonorPhone
	}
	return "donor-" + d.DonorID.String()
}
