package usecases

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"civitas.backend/internal/domain/entities"
	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/domain/repositories"
	"civitas.backend/pkg/logger"
	"civitas.backend/pkg/metrics"
)

// Webhook processing outcomes, used as the metrics label.
const (
	outcomeApplied    = "applied"
	outcomeReplayed   = "replayed"
	outcomeUnresolved = "unresolved"
	outcomeIgnored    = "ignored"
	outcomeError      = "error"
)

// WebhookUsecase absorbs the provider's at-least-once event stream. Processing
// is idempotent end to end: duplicates and late redeliveries collapse into
// no-ops at the Advance gate, so Process never needs to deduplicate by event
// id. Errors are swallowed after logging; the handler acknowledges everything
// it could parse and relies on redelivery plus idempotency for the rest.
type WebhookUsecase struct {
	citizenRepo repositories.CitizenRepository
	resolver    *CorrelationResolver
	dispatcher  *AssetDispatcher
	rollback    *RollbackUsecase
}

// NewWebhookUsecase creates a new webhook usecase
func NewWebhookUsecase(
	citizenRepo repositories.CitizenRepository,
	resolver *CorrelationResolver,
	dispatcher *AssetDispatcher,
	rollback *RollbackUsecase,
) *WebhookUsecase {
	return &WebhookUsecase{
		citizenRepo: citizenRepo,
		resolver:    resolver,
		dispatcher:  dispatcher,
		rollback:    rollback,
	}
}

// Process routes one verified webhook event. It returns an error only for a
// malformed payload; every business-level failure is logged and counted, then
// acknowledged so the provider does not retry a poison event forever.
func (u *WebhookUsecase) Process(ctx context.Context, event *entities.WebhookEvent) error {
	logger.Info(ctx, "processing webhook event",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))

	switch event.Type {
	case entities.EventPaymentIntentUpdated:
		return u.handlePaymentIntent(ctx, event)
	case entities.EventInvoicePaymentSucceeded:
		return u.handleInvoice(ctx, event, true)
	case entities.EventInvoicePaymentFailed:
		return u.handleInvoice(ctx, event, false)
	case entities.EventSubscriptionUpdated:
		return u.handleSubscription(ctx, event)
	default:
		u.count(event.Type, outcomeIgnored)
		logger.Debug(ctx, "ignoring webhook event type", zap.String("event_type", string(event.Type)))
		return nil
	}
}

func (u *WebhookUsecase) handlePaymentIntent(ctx context.Context, event *entities.WebhookEvent) error {
	var payload entities.PaymentIntentEvent
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		u.count(event.Type, outcomeError)
		return domainerrors.BadRequest("malformed payment_intent payload")
	}

	switch payload.Status {
	case "succeeded":
		corr, err := u.resolver.ResolveIntent(ctx, &payload)
		if err != nil || corr == nil {
			u.count(event.Type, outcomeUnresolved)
			return nil
		}
		u.applySuccess(ctx, event.Type, corr)
	case "failed", "canceled":
		u.applyDecline(ctx, event.Type, &entities.Correlation{
			CustomerID: payload.CustomerID,
			IntentID:   payload.IntentID,
			InvoiceID:  payload.InvoiceID,
		})
	default:
		// requires_action and processing updates carry no state the saga
		// does not already hold.
		u.count(event.Type, outcomeIgnored)
	}
	return nil
}

func (u *WebhookUsecase) handleInvoice(ctx context.Context, event *entities.WebhookEvent, succeeded bool) error {
	var payload entities.InvoiceEvent
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		u.count(event.Type, outcomeError)
		return domainerrors.BadRequest("malformed invoice payload")
	}

	corr, err := u.resolver.ResolveInvoice(ctx, &payload)
	if err != nil || corr == nil {
		u.count(event.Type, outcomeUnresolved)
		return nil
	}
	if succeeded {
		u.applySuccess(ctx, event.Type, corr)
	} else {
		u.applyDecline(ctx, event.Type, corr)
	}
	return nil
}

func (u *WebhookUsecase) handleSubscription(ctx context.Context, event *entities.WebhookEvent) error {
	var payload entities.SubscriptionEvent
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		u.count(event.Type, outcomeError)
		return domainerrors.BadRequest("malformed subscription payload")
	}

	corr := u.resolver.ResolveSubscription(ctx, &payload)
	switch payload.Status {
	case "active":
		u.applySuccess(ctx, event.Type, corr)
	case "past_due", "unpaid", "canceled":
		u.applyDecline(ctx, event.Type, corr)
	default:
		u.count(event.Type, outcomeIgnored)
	}
	return nil
}

// applySuccess records payment success on the correlated registration and
// offers the asset job for dispatch. Both steps sit behind the forward-only
// gate, so a redelivered event produces one replayed count and nothing else.
func (u *WebhookUsecase) applySuccess(ctx context.Context, eventType entities.WebhookEventType, corr *entities.Correlation) {
	citizen, err := u.locate(ctx, corr)
	if err != nil {
		u.count(eventType, outcomeUnresolved)
		return
	}

	patch := &entities.RegistrationPatch{
		Status:           null.StringFrom(string(entities.CitizenStatusActivePendingSetup)),
		CurrentPeriodEnd: null.TimeFromPtr(corr.PeriodEnd),
	}
	if corr.SubscriptionID != "" {
		patch.PaymentSubscriptionID = null.StringFrom(corr.SubscriptionID)
	}
	if corr.InvoiceID != "" {
		patch.PaymentInvoiceID = null.StringFrom(corr.InvoiceID)
	}
	if corr.IntentID != "" {
		patch.PaymentIntentID = null.StringFrom(corr.IntentID)
	}

	advanced, err := u.citizenRepo.Advance(ctx, citizen.ID, entities.StatePaymentSucceeded, patch)
	if err != nil {
		u.count(eventType, outcomeError)
		logger.Error(ctx, "webhook failed to record payment success",
			zap.String("citizen_id", citizen.ID), zap.Error(err))
		return
	}
	if advanced {
		u.count(eventType, outcomeApplied)
	} else {
		u.count(eventType, outcomeReplayed)
	}

	// Dispatch has its own gate. Calling it on every success delivery covers
	// the crash window between recording success and enqueuing the job.
	if _, err := u.dispatcher.Dispatch(ctx, citizen.ID); err != nil {
		logger.Error(ctx, "webhook failed to dispatch asset job",
			zap.String("citizen_id", citizen.ID), zap.Error(err))
	}
}

// applyDecline handles a failed or lapsed charge. Before payment success the
// whole attempt is compensated away; after it the account is an established
// subscriber and only degrades to PAST_DUE.
func (u *WebhookUsecase) applyDecline(ctx context.Context, eventType entities.WebhookEventType, corr *entities.Correlation) {
	citizen, err := u.locate(ctx, corr)
	if err != nil {
		u.count(eventType, outcomeUnresolved)
		return
	}

	if citizen.RegistrationStatus.AtLeast(entities.StatePaymentSucceeded) {
		if citizen.Status == entities.CitizenStatusPastDue {
			u.count(eventType, outcomeReplayed)
			return
		}
		if err := u.citizenRepo.UpdateStatus(ctx, citizen.ID, entities.CitizenStatusPastDue); err != nil {
			u.count(eventType, outcomeError)
			logger.Error(ctx, "webhook failed to mark citizen past due",
				zap.String("citizen_id", citizen.ID), zap.Error(err))
			return
		}
		u.count(eventType, outcomeApplied)
		logger.Warn(ctx, "recurring charge declined, citizen marked past due",
			zap.String("citizen_id", citizen.ID))
		return
	}

	if err := u.rollback.Rollback(ctx, citizen.ID); err != nil {
		u.count(eventType, outcomeError)
		logger.Error(ctx, "webhook-triggered rollback incomplete",
			zap.String("citizen_id", citizen.ID), zap.Error(err))
		return
	}
	u.count(eventType, outcomeApplied)
}

// locate finds the registration a correlation points at, preferring the
// subscription id over the customer id.
func (u *WebhookUsecase) locate(ctx context.Context, corr *entities.Correlation) (*entities.Citizen, error) {
	if corr.SubscriptionID != "" {
		citizen, err := u.citizenRepo.GetBySubscriptionID(ctx, corr.SubscriptionID)
		if err == nil {
			return citizen, nil
		}
		if !errors.Is(err, domainerrors.ErrNotFound) {
			return nil, err
		}
	}
	if corr.CustomerID != "" {
		return u.citizenRepo.GetByCustomerID(ctx, corr.CustomerID)
	}
	return nil, domainerrors.ErrNotFound
}

func (u *WebhookUsecase) count(eventType entities.WebhookEventType, outcome string) {
	metrics.WebhookEvents.WithLabelValues(string(eventType), outcome).Inc()
}
