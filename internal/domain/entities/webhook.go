package entities

import (
	"encoding/json"
	"time"
)

// WebhookEventType enumerates the provider event families the saga reacts to.
type WebhookEventType string

const (
	EventPaymentIntentUpdated    WebhookEventType = "payment_intent.updated"
	EventInvoicePaymentSucceeded WebhookEventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    WebhookEventType = "invoice.payment_failed"
	EventSubscriptionUpdated     WebhookEventType = "subscription.updated"
)

// WebhookEvent is the provider's delivery envelope. Delivery is at-least-once;
// the same event may arrive duplicated, delayed or out of order.
type WebhookEvent struct {
	ID   string           `json:"id"`
	Type WebhookEventType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

// PaymentIntentEvent is the payload of payment_intent.* events. Customer is
// the only field guaranteed present; the rest of the correlation chain may be
// missing and has to be recovered via fallbacks.
type PaymentIntentEvent struct {
	IntentID     string `json:"id"`
	CustomerID   string `json:"customer"`
	Status       string `json:"status"`
	InvoiceID    string `json:"invoice,omitempty"`
	LatestCharge string `json:"latestCharge,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// InvoiceEvent is the payload of invoice.* events.
type InvoiceEvent struct {
	InvoiceID      string     `json:"id"`
	CustomerID     string     `json:"customer"`
	SubscriptionID string     `json:"subscription,omitempty"`
	IntentID       string     `json:"paymentIntent,omitempty"`
	Status         string     `json:"status"`
	PeriodEnd      *time.Time `json:"periodEnd,omitempty"`
}

// SubscriptionEvent is the payload of subscription.updated events.
type SubscriptionEvent struct {
	SubscriptionID string     `json:"id"`
	CustomerID     string     `json:"customer"`
	Status         string     `json:"status"`
	LatestInvoice  string     `json:"latestInvoice,omitempty"`
	PeriodEnd      *time.Time `json:"currentPeriodEnd,omitempty"`
}

// Correlation is the fully resolved id chain linking a provider event back to
// one registration record.
type Correlation struct {
	CustomerID     string
	SubscriptionID string
	InvoiceID      string
	IntentID       string
	PeriodEnd      *time.Time
}
