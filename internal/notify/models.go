// Package notify records outbound notifications. Delivery itself belongs to
// an external channel (SMS gateway, mail relay); this package only persists
// the delivery-pending record and hands it to the configured Deliverer.
package notify

import (
	"time"

	id "shacore/pkg/domain"
)

type Type string

const (
	TypeContributionReminder Type = "contribution_reminder"
	TypeClaimUpdate          Type = "claim_update"
	TypeMedicineAvailability Type = "medicine_availability"
	TypeAppointmentReminder  Type = "appointment_reminder"
	TypeRegistrationApproved Type = "registration_approved"
	TypeOTPCode              Type = "otp_code"
	TypeSystemAlert          Type = "system_alert"
)

type Method string

const (
	MethodSMS    Method = "sms"
	MethodEmail  Method = "email"
	MethodSystem Method = "system"
)

// Notification is one outbound message record.
type Notification struct {
	ID        id.NotificationID `json:"id"`
	Recipient string            `json:"recipient"`
	Type      Type              `json:"type"`
	Method    Method            `json:"method"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Contact   string            `json:"contact,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	SentAt    *time.Time        `json:"sent_at,omitempty"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
}

func (n *Notification) IsSent() bool { return n.SentAt != nil }
func (n *Notification) IsRead() bool { return n.ReadAt != nil }
