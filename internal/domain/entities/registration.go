package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// RegistrationState represents the fine-grained saga state of a registration.
// States are integer-ranked and only ever advance forward.
type RegistrationState string

const (
	StateRegisterStart         RegistrationState = "REGISTER_START"
	StateEmailVerified         RegistrationState = "EMAIL_VERIFIED"
	StateCustomerCreated       RegistrationState = "IDENTITY_CUSTOMER_CREATED"
	StatePaymentMethodAttached RegistrationState = "PAYMENT_METHOD_ATTACHED"
	StateChargeScheduleCreated RegistrationState = "CHARGE_SCHEDULE_CREATED"
	StatePaymentSucceeded      RegistrationState = "PAYMENT_SUCCEEDED"
	StateAssetJobEnqueued      RegistrationState = "ASSET_JOB_ENQUEUED"
	StateComplete              RegistrationState = "COMPLETE"
)

var stateRanks = map[RegistrationState]int{
	StateRegisterStart:         0,
	StateEmailVerified:         1,
	StateCustomerCreated:       2,
	StatePaymentMethodAttached: 3,
	StateChargeScheduleCreated: 4,
	StatePaymentSucceeded:      5,
	StateAssetJobEnqueued:      6,
	StateComplete:              7,
}

// Rank returns the ordinal position of the state in the saga sequence.
// Unknown states rank below REGISTER_START so a corrupt value never blocks progress.
func (s RegistrationState) Rank() int {
	if r, ok := stateRanks[s]; ok {
		return r
	}
	return -1
}

// Before reports whether s is strictly earlier in the saga than other.
func (s RegistrationState) Before(other RegistrationState) bool {
	return s.Rank() < other.Rank()
}

// AtLeast reports whether s has reached or passed other.
func (s RegistrationState) AtLeast(other RegistrationState) bool {
	return s.Rank() >= other.Rank()
}

// RegistrationPatch carries the side-channel metadata merged atomically with a
// state advance. Unset fields are left untouched.
type RegistrationPatch struct {
	PaymentCustomerID     null.String
	PaymentSubscriptionID null.String
	PaymentInvoiceID      null.String
	PaymentIntentID       null.String
	CurrentPeriodEnd      null.Time
	BiometricRefID        null.String
	AvatarURL             null.String
	DocumentURL           null.String
	Status                null.String
}

// RegistrationInput is the initial registration payload.
type RegistrationInput struct {
	IDToken          string `json:"idToken" binding:"required"`
	FaceImageURL     string `json:"faceImageUrl" binding:"required"`
	PlanID           string `json:"planId" binding:"required"`
	AvatarStyle      string `json:"avatarStyle" binding:"required"`
	Gender           string `json:"gender" binding:"required"`
	PaymentMethodRef string `json:"paymentMethodRef" binding:"required"`
}

// RegistrationResult is the terminal outcome of a synchronous registration run.
type RegistrationResult struct {
	CitizenID      string `json:"citizenId"`
	DocumentURL    string `json:"documentUrl,omitempty"`
	RequiresAction bool   `json:"requiresAction,omitempty"`
	ClientSecret   string `json:"clientSecret,omitempty"`
}

// ProgressStage tags a phase of the registration stream.
type ProgressStage string

const (
	StageIdentity  ProgressStage = "identity"
	StageBiometric ProgressStage = "biometric"
	StagePayment   ProgressStage = "payment"
	StageAssets    ProgressStage = "assets"
	StageDocument  ProgressStage = "document"
	StageDone      ProgressStage = "done"
)

// ProgressEvent is one entry of the caller-facing progress stream.
type ProgressEvent struct {
	Stage     ProgressStage `json:"stage"`
	Percent   int           `json:"percent"`
	Message   string        `json:"message"`
	ErrorCode string        `json:"errorCode,omitempty"`
	Terminal  bool          `json:"terminal,omitempty"`
}

// ProgressFunc receives progress events during a registration run. A nil
// ProgressFunc is valid and discards events.
type ProgressFunc func(ProgressEvent)

// ResumeState is returned by the operational resume endpoint.
type ResumeState struct {
	CitizenID          string            `json:"citizenId"`
	RegistrationStatus RegistrationState `json:"registrationStatus"`
	Status             CitizenStatus     `json:"status"`
	ClientSecret       string            `json:"clientSecret,omitempty"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}
