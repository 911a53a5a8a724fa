package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civitas.backend/internal/domain/entities"
	"civitas.backend/internal/domain/providers"
	mockproviders "civitas.backend/internal/infrastructure/providers"
	"civitas.backend/internal/usecases"
)

func seedSubscription(t *testing.T, payment *mockproviders.MockPayment, paymentMethodRef string) (string, *providers.SubscriptionResult) {
	t.Helper()
	ctx := context.Background()
	customerID, err := payment.CreateCustomer(ctx, "ada@example.com", "uid_1")
	require.NoError(t, err)
	sub, err := payment.CreateSubscription(ctx, customerID, "plan_citizen_monthly", paymentMethodRef)
	require.NoError(t, err)
	return customerID, sub
}

func TestResolveIntentWithDirectInvoice(t *testing.T) {
	payment := mockproviders.NewMockPayment()
	customerID, sub := seedSubscription(t, payment, "pm_card_visa")
	resolver := usecases.NewCorrelationResolver(payment, 24*time.Hour)

	corr, err := resolver.ResolveIntent(context.Background(), &entities.PaymentIntentEvent{
		IntentID:   sub.IntentID,
		CustomerID: customerID,
		Status:     "succeeded",
		InvoiceID:  sub.InvoiceID,
	})
	require.NoError(t, err)
	require.NotNil(t, corr)
	assert.Equal(t, sub.SubscriptionID, corr.SubscriptionID)
	assert.Equal(t, sub.InvoiceID, corr.InvoiceID)
}

func TestResolveIntentViaLatestCharge(t *testing.T) {
	payment := mockproviders.NewMockPayment()
	customerID, sub := seedSubscription(t, payment, "pm_card_visa")
	resolver := usecases.NewCorrelationResolver(payment, 24*time.Hour)

	// No invoice on the event: the settled charge points back at it.
	corr, err := resolver.ResolveIntent(context.Background(), &entities.PaymentIntentEvent{
		CustomerID: customerID,
		Status:     "succeeded",
	})
	require.NoError(t, err)
	require.NotNil(t, corr)
	assert.Equal(t, sub.SubscriptionID, corr.SubscriptionID)
	assert.Equal(t, sub.IntentID, corr.IntentID)
}

func TestResolveIntentViaRecentIntents(t *testing.T) {
	payment := mockproviders.NewMockPayment()
	// A requires-action subscription never produced a charge, so resolution
	// has to fall through to the recent-intents scan.
	customerID, sub := seedSubscription(t, payment, "pm_3ds")
	resolver := usecases.NewCorrelationResolver(payment, 24*time.Hour)

	corr, err := resolver.ResolveIntent(context.Background(), &entities.PaymentIntentEvent{
		IntentID:   sub.IntentID,
		CustomerID: customerID,
		Status:     "succeeded",
	})
	require.NoError(t, err)
	require.NotNil(t, corr)
	assert.Equal(t, sub.SubscriptionID, corr.SubscriptionID)
}

func TestResolveIntentLookbackBoundsScan(t *testing.T) {
	payment := mockproviders.NewMockPayment()
	customerID, sub := seedSubscription(t, payment, "pm_3ds")

	// A zero lookback excludes every existing intent from the scan.
	resolver := usecases.NewCorrelationResolver(payment, 0)

	corr, err := resolver.ResolveIntent(context.Background(), &entities.PaymentIntentEvent{
		IntentID:   sub.IntentID,
		CustomerID: customerID,
		Status:     "succeeded",
	})
	require.NoError(t, err)
	assert.Nil(t, corr)
}

func TestResolveIntentUnknownCustomer(t *testing.T) {
	payment := mockproviders.NewMockPayment()
	resolver := usecases.NewCorrelationResolver(payment, 24*time.Hour)

	corr, err := resolver.ResolveIntent(context.Background(), &entities.PaymentIntentEvent{
		IntentID:   "pi_unknown",
		CustomerID: "cus_unknown",
		Status:     "succeeded",
	})
	require.NoError(t, err)
	assert.Nil(t, corr)
}

func TestResolveInvoiceFillsSubscription(t *testing.T) {
	payment := mockproviders.NewMockPayment()
	customerID, sub := seedSubscription(t, payment, "pm_card_visa")
	resolver := usecases.NewCorrelationResolver(payment, 24*time.Hour)

	corr, err := resolver.ResolveInvoice(context.Background(), &entities.InvoiceEvent{
		InvoiceID:  sub.InvoiceID,
		CustomerID: customerID,
		Status:     "paid",
	})
	require.NoError(t, err)
	require.NotNil(t, corr)
	assert.Equal(t, sub.SubscriptionID, corr.SubscriptionID)
	assert.Equal(t, sub.IntentID, corr.IntentID)
	assert.NotNil(t, corr.PeriodEnd)
}
