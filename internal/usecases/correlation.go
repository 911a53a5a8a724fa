package usecases

import (
	"context"
	"time"

	"go.uber.org/zap"

	"civitas.backend/internal/domain/entities"
	"civitas.backend/internal/domain/providers"
	"civitas.backend/pkg/logger"
)

// CorrelationResolver recovers the customer -> subscription -> invoice ->
// intent chain for a webhook event. The provider only guarantees the customer
// id on intent events, so missing links are reconstructed through a chain of
// provider lookups, each one cheaper and more direct than the next fallback.
type CorrelationResolver struct {
	payment        providers.Payment
	intentLookback time.Duration
}

// NewCorrelationResolver creates a new correlation resolver
func NewCorrelationResolver(payment providers.Payment, intentLookback time.Duration) *CorrelationResolver {
	return &CorrelationResolver{payment: payment, intentLookback: intentLookback}
}

// ResolveIntent builds the correlation for a payment_intent event. It returns
// (nil, nil) when no chain can be recovered; the caller acknowledges and lets
// the provider redeliver once the missing objects exist.
func (r *CorrelationResolver) ResolveIntent(ctx context.Context, ev *entities.PaymentIntentEvent) (*entities.Correlation, error) {
	corr := &entities.Correlation{
		CustomerID: ev.CustomerID,
		IntentID:   ev.IntentID,
		InvoiceID:  ev.InvoiceID,
	}

	// Fallback 1: the event carries the invoice directly.
	if corr.InvoiceID != "" {
		return r.completeFromInvoice(ctx, corr)
	}

	// Fallback 2: the customer's latest charge points at the invoice.
	charge, err := r.payment.LatestCharge(ctx, ev.CustomerID)
	if err != nil {
		logger.Debug(ctx, "correlation latest-charge lookup failed",
			zap.String("customer_id", ev.CustomerID), zap.Error(err))
	} else if charge != nil && charge.InvoiceID != "" {
		corr.InvoiceID = charge.InvoiceID
		if charge.IntentID != "" {
			corr.IntentID = charge.IntentID
		}
		return r.completeFromInvoice(ctx, corr)
	}

	// Fallback 3: scan the customer's recent intents for one carrying an
	// invoice. The lookback bounds the scan; an older intent belongs to a
	// registration that has long since settled or been rolled back.
	since := time.Now().Add(-r.intentLookback)
	intents, err := r.payment.ListRecentIntents(ctx, ev.CustomerID, since)
	if err != nil {
		logger.Debug(ctx, "correlation recent-intents lookup failed",
			zap.String("customer_id", ev.CustomerID), zap.Error(err))
	} else {
		for _, intent := range intents {
			if intent.InvoiceID == "" {
				continue
			}
			if ev.IntentID != "" && intent.ID != ev.IntentID {
				continue
			}
			corr.IntentID = intent.ID
			corr.InvoiceID = intent.InvoiceID
			return r.completeFromInvoice(ctx, corr)
		}
	}

	logger.Warn(ctx, "webhook correlation unresolved",
		zap.String("customer_id", ev.CustomerID),
		zap.String("intent_id", ev.IntentID))
	return nil, nil
}

// ResolveInvoice builds the correlation for an invoice event.
func (r *CorrelationResolver) ResolveInvoice(ctx context.Context, ev *entities.InvoiceEvent) (*entities.Correlation, error) {
	corr := &entities.Correlation{
		CustomerID:     ev.CustomerID,
		SubscriptionID: ev.SubscriptionID,
		InvoiceID:      ev.InvoiceID,
		IntentID:       ev.IntentID,
		PeriodEnd:      ev.PeriodEnd,
	}
	if corr.SubscriptionID != "" {
		return corr, nil
	}
	return r.completeFromInvoice(ctx, corr)
}

// ResolveSubscription builds the correlation for a subscription event. The
// subscription id is always present, so no fallbacks apply.
func (r *CorrelationResolver) ResolveSubscription(ctx context.Context, ev *entities.SubscriptionEvent) *entities.Correlation {
	return &entities.Correlation{
		CustomerID:     ev.CustomerID,
		SubscriptionID: ev.SubscriptionID,
		InvoiceID:      ev.LatestInvoice,
		PeriodEnd:      ev.PeriodEnd,
	}
}

// completeFromInvoice fills the subscription link by loading the invoice.
func (r *CorrelationResolver) completeFromInvoice(ctx context.Context, corr *entities.Correlation) (*entities.Correlation, error) {
	if corr.InvoiceID == "" {
		return nil, nil
	}
	invoice, err := r.payment.GetInvoice(ctx, corr.InvoiceID)
	if err != nil {
		logger.Debug(ctx, "correlation invoice lookup failed",
			zap.String("invoice_id", corr.InvoiceID), zap.Error(err))
		return nil, nil
	}
	corr.SubscriptionID = invoice.SubscriptionID
	if corr.IntentID == "" {
		corr.IntentID = invoice.IntentID
	}
	if corr.PeriodEnd == nil {
		corr.PeriodEnd = invoice.PeriodEnd
	}
	return corr, nil
}
