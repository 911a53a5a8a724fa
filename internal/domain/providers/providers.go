package providers

import (
	"context"
	"time"
)

// The adapters below are narrow contracts over the five external services the
// registration saga touches. None of them deduplicate internally: a retried
// call repeats the side effect, so callers must pass the saga's idempotency
// gate before invoking anything non-idempotent.

// Identity wraps the token-based identity provider.
type Identity interface {
	// VerifyIDToken validates the caller-supplied proof and returns the
	// stable uid and email the provider assigned.
	VerifyIDToken(ctx context.Context, idToken string) (uid string, email string, err error)
	CreateAccount(ctx context.Context, email string) (uid string, err error)
	// DeleteAccount tolerates an already-deleted uid.
	DeleteAccount(ctx context.Context, uid string) error
}

// BiometricIndex wraps the face-uniqueness service.
type BiometricIndex interface {
	// IndexFace verifies uniqueness and indexes the face. A match against an
	// existing signature fails with domainerrors.ErrBiometricDuplicate; an
	// unusable image fails with domainerrors.ErrBiometricProcessing.
	IndexFace(ctx context.Context, imageURL, correlationID string) (refID string, err error)
	// RemoveFace drops an indexed face during compensation.
	RemoveFace(ctx context.Context, refID string) error
}

// SubscriptionResult is the synchronous outcome of creating a recurring charge.
type SubscriptionResult struct {
	SubscriptionID string
	IntentID       string
	InvoiceID      string
	Status         ChargeStatus
	ClientSecret   string
	PeriodEnd      *time.Time
}

// ChargeStatus is the provider's synchronous payment outcome.
type ChargeStatus string

const (
	ChargeSucceeded      ChargeStatus = "succeeded"
	ChargeRequiresAction ChargeStatus = "requires_action"
	ChargeFailed         ChargeStatus = "failed"
)

// Subscription is a provider-side recurring charge schedule.
type Subscription struct {
	ID            string     `json:"id"`
	CustomerID    string     `json:"customer"`
	Status        string     `json:"status"`
	LatestInvoice string     `json:"latestInvoice"`
	PeriodEnd     *time.Time `json:"currentPeriodEnd"`
}

// Invoice is a provider-side invoice.
type Invoice struct {
	ID             string     `json:"id"`
	CustomerID     string     `json:"customer"`
	SubscriptionID string     `json:"subscription"`
	IntentID       string     `json:"paymentIntent"`
	Status         string     `json:"status"`
	PeriodEnd      *time.Time `json:"currentPeriodEnd"`
}

// Charge is a provider-side charge.
type Charge struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer"`
	InvoiceID  string    `json:"invoice"`
	IntentID   string    `json:"paymentIntent"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Intent is a provider-side payment intent.
type Intent struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer"`
	InvoiceID    string    `json:"invoice"`
	Status       string    `json:"status"`
	ClientSecret string    `json:"clientSecret"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Payment wraps the payment provider.
type Payment interface {
	CreateCustomer(ctx context.Context, email, uid string) (customerID string, err error)
	// DeleteCustomer tolerates an already-deleted customer.
	DeleteCustomer(ctx context.Context, customerID string) error
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodRef string) error
	CreateSubscription(ctx context.Context, customerID, planID, paymentMethodRef string) (*SubscriptionResult, error)

	// Lookup operations used by webhook correlation fallbacks.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	LatestCharge(ctx context.Context, customerID string) (*Charge, error)
	ListRecentIntents(ctx context.Context, customerID string, since time.Time) ([]*Intent, error)
	GetIntent(ctx context.Context, intentID string) (*Intent, error)
}

// AvatarStyle is one selectable generation style.
type AvatarStyle struct {
	Ref   string `json:"ref"`
	Label string `json:"label"`
}

// Generation is the result of one avatar render.
type Generation struct {
	ImageURL     string
	GenerationID string
}

// AvatarStudio wraps the generative avatar service.
type AvatarStudio interface {
	ListStyles(ctx context.Context, gender string) ([]AvatarStyle, error)
	Generate(ctx context.Context, sourceImageURL, styleRef string) (*Generation, error)
}

// PassportProfile is the data assembled into the credential document.
type PassportProfile struct {
	CitizenID string
	Email     string
	AvatarURL string
	IssuedAt  time.Time
}

// DocumentPress wraps credential-document assembly and storage.
type DocumentPress interface {
	Assemble(ctx context.Context, profile PassportProfile) (documentURL string, err error)
}
