package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// CitizenStatus represents the coarse account lifecycle.
type CitizenStatus string

const (
	CitizenStatusPendingPayment     CitizenStatus = "PENDING_PAYMENT"
	CitizenStatusActivePendingSetup CitizenStatus = "ACTIVE_PENDING_PROFILE_SETUP"
	CitizenStatusActiveComplete     CitizenStatus = "ACTIVE_COMPLETE"
	CitizenStatusPastDue            CitizenStatus = "PAST_DUE"
	CitizenStatusDeleted            CitizenStatus = "DELETED"
	CitizenStatusBanned             CitizenStatus = "BANNED"
)

// Citizen is the per-registration saga record. It is keyed by the
// identity-provider uid assigned at the first identity step; the saga's entire
// durable state lives here, so any service instance can resume it.
type Citizen struct {
	ID                 string            `json:"id"`
	Email              string            `json:"email"`
	Status             CitizenStatus     `json:"status"`
	RegistrationStatus RegistrationState `json:"registrationStatus"`

	// BiometricRefID is write-once and survives soft deletion so a deleted
	// account's face still blocks re-registration.
	BiometricRefID null.String `json:"biometricRefId,omitempty"`

	PaymentCustomerID     null.String `json:"paymentCustomerId,omitempty"`
	PaymentSubscriptionID null.String `json:"paymentSubscriptionId,omitempty"`
	PaymentInvoiceID      null.String `json:"paymentInvoiceId,omitempty"`
	PaymentIntentID       null.String `json:"paymentIntentId,omitempty"`
	CurrentPeriodEnd      null.Time   `json:"currentPeriodEnd,omitempty"`

	AvatarStyle      string      `json:"avatarStyle"`
	Gender           string      `json:"gender"`
	TempFaceImageURL string      `json:"-"`
	AvatarURL        null.String `json:"avatarUrl,omitempty"`
	DocumentURL      null.String `json:"documentUrl,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"-"`
	BannedAt  null.Time  `json:"bannedAt,omitempty"`
}

// Active reports whether the citizen holds a live account.
func (c *Citizen) Active() bool {
	return c.Status == CitizenStatusActivePendingSetup || c.Status == CitizenStatusActiveComplete
}
