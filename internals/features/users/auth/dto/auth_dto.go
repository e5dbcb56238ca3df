package dto

import (
	"time"

	donorModel "templeseva_backend/internals/features/donations/donors/model"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type OtpRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type OtpVerifyRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type ClaimRequest struct {
	Token string `json:"token" validate:"required,max=128"`
}

type DonorResponse struct {
	DonorID   uuid.UUID `json:"donor_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	PAN       string    `json:"pan,omitempty"`
	IsClaimed bool      `json:"is_claimed"`
}

type SessionResponse struct {
	AccessToken string        `json:"access_token"`
	ExpiresAt   time.Time     `json:"expires_at"`
	Donor       DonorResponse `json:"donor"`
}

func NewDonorResponse(d *donorModel.Donor) DonorResponse {
	return DonorResponse{
		DonorID:   d.DonorID,
		Name:      d.DonorName,
		Email:     lo.FromPtr(d.DonorEmail),
		Phone:     lo.FromPtr(d.DonorPhone),
		PAN:       lo.FromPtr(d.DonorPAN),
		IsClaimed: d.DonorIsClaimed,
	}
}
