package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/*
  payment_gateway_events: every inbound webhook, return-redirect check,
  reconciliation poll, session failure and refund call.
  Several rows per donation; raw headers and payload are kept for replay.
*/

const (
	EventSourceWebhook = "webhook"
	EventSourceReturn  = "return"
	EventSourcePoll    = "poll"
	EventSourceSession = "session"
	EventSourceRefund  = "refund"
)

const (
	EventStatusReceived    = "received"
	EventStatusProcessed   = "processed"
	EventStatusIgnored     = "ignored"
	EventStatusUnmatched   = "unmatched"
	EventStatusNeedsReview = "needs_review"
	EventStatusFailed      = "failed"
)

type GatewayEvent struct {
	GatewayEventID         uuid.UUID  `gorm:"column:gateway_event_id;type:uuid;default:gen_random_uuid();primaryKey" json:"gateway_event_id"`
	GatewayEventDonationID *uuid.UUID `gorm:"column:gateway_event_donation_id;type:uuid;index" json:"gateway_event_donation_id,omitempty"`

	GatewayEventProvider    string  `gorm:"column:gateway_event_provider;type:varchar(20);not null" json:"gateway_event_provider"`
	GatewayEventSource      string  `gorm:"column:gateway_event_source;type:varchar(20);not null" json:"gateway_event_source"`
	GatewayEventType        *string `gorm:"column:gateway_event_type;type:varchar(60)" json:"gateway_event_type,omitempty"`
	GatewayEventState       string  `gorm:"column:gateway_event_state;type:varchar(10)" json:"gateway_event_state"`
	GatewayEventExternalID  *string `gorm:"column:gateway_event_external_id;type:varchar(128)" json:"gateway_event_external_id,omitempty"`
	GatewayEventExternalRef *string `gorm:"column:gateway_event_external_ref;type:varchar(128)" json:"gateway_event_external_ref,omitempty"`

	GatewayEventHeaders datatypes.JSON `gorm:"column:gateway_event_headers;type:jsonb" json:"gateway_event_headers,omitempty"`
	GatewayEventPayload datatypes.JSON `gorm:"column:gateway_event_payload;type:jsonb" json:"gateway_event_payload,omitempty"`

	GatewayEventStatus string  `gorm:"column:gateway_event_status;type:varchar(20);not null;default:'received';index" json:"gateway_event_status"`
	GatewayEventError  *string `gorm:"column:gateway_event_error;type:text" json:"gateway_event_error,omitempty"`

	GatewayEventReceivedAt  time.Time  `gorm:"column:gateway_event_received_at;not null" json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `gorm:"column:gateway_event_processed_at" json:"gateway_event_processed_at,omitempty"`
}

func (GatewayEvent) TableName() string {
	return "payment_gateway_events"
}
