package usecases

import (
	"context"
	"errors"
	"net/http"

	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"

	"civitas.backend/internal/domain/entities"
	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/domain/providers"
	"civitas.backend/internal/domain/repositories"
	"civitas.backend/pkg/logger"
)

// RegistrationUsecase is the synchronous, caller-driven saga walk. Every
// step is recorded through the forward-only Advance primitive, so a rerun
// after a crash or a race with the webhook path resumes instead of
// repeating completed work.
type RegistrationUsecase struct {
	citizenRepo repositories.CitizenRepository
	identity    providers.Identity
	biometric   providers.BiometricIndex
	payment     providers.Payment
	dispatcher  *AssetDispatcher
	finalizer   *ProfileFinalizer
	rollback    *RollbackUsecase
	planID      string
}

// NewRegistrationUsecase creates a new registration usecase
func NewRegistrationUsecase(
	citizenRepo repositories.CitizenRepository,
	identity providers.Identity,
	biometric providers.BiometricIndex,
	payment providers.Payment,
	dispatcher *AssetDispatcher,
	finalizer *ProfileFinalizer,
	rollback *RollbackUsecase,
	planID string,
) *RegistrationUsecase {
	return &RegistrationUsecase{
		citizenRepo: citizenRepo,
		identity:    identity,
		biometric:   biometric,
		payment:     payment,
		dispatcher:  dispatcher,
		finalizer:   finalizer,
		rollback:    rollback,
		planID:      planID,
	}
}

// Execute runs the registration saga for the given input, emitting progress
// events after each stage. It either returns a terminal result or an
// *AppError carrying a stable code; failures before PAYMENT_SUCCEEDED roll
// back every partially created resource.
func (u *RegistrationUsecase) Execute(ctx context.Context, input *entities.RegistrationInput, progress entities.ProgressFunc) (*entities.RegistrationResult, error) {
	report := func(ev entities.ProgressEvent) {
		if progress != nil {
			progress(ev)
		}
	}

	report(entities.ProgressEvent{Stage: entities.StageIdentity, Percent: 5, Message: "Verifying identity"})

	uid, email, err := u.identity.VerifyIDToken(ctx, input.IDToken)
	if err != nil {
		return nil, u.terminal(report, domainerrors.Unauthorized("identity token rejected"))
	}

	citizen, err := u.citizenRepo.GetByID(ctx, uid)
	switch {
	case err == nil:
		// Same identity returning: treat as resume.
		if citizen.Status == entities.CitizenStatusBanned {
			return nil, u.terminal(report, domainerrors.NewAppError(
				http.StatusForbidden, domainerrors.CodeAccountBanned, "account is banned", domainerrors.ErrAccountBanned))
		}
	case errors.Is(err, domainerrors.ErrNotFound):
		citizen = &entities.Citizen{
			ID:                 uid,
			Email:              email,
			Status:             entities.CitizenStatusPendingPayment,
			RegistrationStatus: entities.StateRegisterStart,
			AvatarStyle:        input.AvatarStyle,
			Gender:             input.Gender,
			TempFaceImageURL:   input.FaceImageURL,
		}
		if err := u.citizenRepo.Create(ctx, citizen); err != nil {
			if errors.Is(err, domainerrors.ErrEmailInUse) {
				// The provisional identity account must not linger on a
				// rejected registration.
				if delErr := u.identity.DeleteAccount(ctx, uid); delErr != nil {
					logger.Error(ctx, "failed to delete identity after email conflict",
						zap.String("citizen_id", uid), zap.Error(delErr))
				}
				return nil, u.terminal(report, domainerrors.NewAppError(
					http.StatusConflict, domainerrors.CodeEmailInUse, "email already registered", err))
			}
			return nil, u.failAndRollback(ctx, report, uid, err)
		}
	default:
		return nil, u.terminal(report, domainerrors.InternalError(err))
	}

	// The identity provider vouched for the email by verifying the token.
	if _, err := u.citizenRepo.Advance(ctx, uid, entities.StateEmailVerified, nil); err != nil {
		return nil, u.failAndRollback(ctx, report, uid, err)
	}

	report(entities.ProgressEvent{Stage: entities.StageBiometric, Percent: 20, Message: "Checking biometric uniqueness"})

	biometricRef := citizen.BiometricRefID
	if !biometricRef.Valid {
		refID, err := u.biometric.IndexFace(ctx, input.FaceImageURL, uid)
		if err != nil {
			// Duplicate detection is a business rule, not a transient fault:
			// no retry, terminal for this attempt.
			return nil, u.failAndRollback(ctx, report, uid, err)
		}
		biometricRef = null.StringFrom(refID)
		// The ref must hit the record before anything else can fail, or
		// compensation would never find the indexed face and the person
		// could not retry.
		if err := u.citizenRepo.SetBiometricRef(ctx, uid, refID); err != nil {
			return nil, u.failAndRollback(ctx, report, uid, err)
		}
	}

	report(entities.ProgressEvent{Stage: entities.StagePayment, Percent: 40, Message: "Setting up payment"})

	customerID := citizen.PaymentCustomerID
	if !customerID.Valid {
		id, err := u.payment.CreateCustomer(ctx, email, uid)
		if err != nil {
			return nil, u.failAndRollback(ctx, report, uid, err)
		}
		customerID = null.StringFrom(id)
	}
	if _, err := u.citizenRepo.Advance(ctx, uid, entities.StateCustomerCreated, &entities.RegistrationPatch{
		PaymentCustomerID: customerID,
		BiometricRefID:    biometricRef,
	}); err != nil {
		return nil, u.failAndRollback(ctx, report, uid, err)
	}

	if !citizen.RegistrationStatus.AtLeast(entities.StatePaymentSucceeded) {
		if !citizen.RegistrationStatus.AtLeast(entities.StatePaymentMethodAttached) {
			if err := u.payment.AttachPaymentMethod(ctx, customerID.String, input.PaymentMethodRef); err != nil {
				return nil, u.failAndRollback(ctx, report, uid, err)
			}
			if _, err := u.citizenRepo.Advance(ctx, uid, entities.StatePaymentMethodAttached, nil); err != nil {
				return nil, u.failAndRollback(ctx, report, uid, err)
			}
		}

		report(entities.ProgressEvent{Stage: entities.StagePayment, Percent: 55, Message: "Processing payment"})

		if !citizen.RegistrationStatus.AtLeast(entities.StateChargeScheduleCreated) {
			planID := input.PlanID
			if planID == "" {
				planID = u.planID
			}
			sub, err := u.payment.CreateSubscription(ctx, customerID.String, planID, input.PaymentMethodRef)
			if err != nil {
				return nil, u.failAndRollback(ctx, report, uid, err)
			}
			if _, err := u.citizenRepo.Advance(ctx, uid, entities.StateChargeScheduleCreated, &entities.RegistrationPatch{
				PaymentSubscriptionID: null.StringFrom(sub.SubscriptionID),
				PaymentInvoiceID:      null.StringFrom(sub.InvoiceID),
				PaymentIntentID:       null.StringFrom(sub.IntentID),
				CurrentPeriodEnd:      null.TimeFromPtr(sub.PeriodEnd),
			}); err != nil {
				return nil, u.failAndRollback(ctx, report, uid, err)
			}

			switch sub.Status {
			case providers.ChargeRequiresAction:
				// Not a failure: the caller completes authentication and the
				// webhook stream finishes the saga.
				report(entities.ProgressEvent{Stage: entities.StagePayment, Percent: 60,
					Message: "Additional authentication required", ErrorCode: domainerrors.CodeRequiresAction})
				return &entities.RegistrationResult{
					CitizenID:      uid,
					RequiresAction: true,
					ClientSecret:   sub.ClientSecret,
				}, nil
			case providers.ChargeFailed:
				return nil, u.failAndRollback(ctx, report, uid, domainerrors.ErrPaymentDeclined)
			}
		} else {
			// A prior run already opened the charge schedule. Re-check its
			// stored intent instead of creating a second subscription, which
			// would double-charge on every browser-restart resume.
			if !citizen.PaymentIntentID.Valid {
				return nil, u.terminal(report, domainerrors.InternalError(errors.New("charge schedule recorded without an intent")))
			}
			intent, err := u.payment.GetIntent(ctx, citizen.PaymentIntentID.String)
			if err != nil {
				return nil, u.terminal(report, domainerrors.InternalError(err))
			}
			switch intent.Status {
			case string(providers.ChargeFailed), "canceled":
				return nil, u.failAndRollback(ctx, report, uid, domainerrors.ErrPaymentDeclined)
			case string(providers.ChargeSucceeded):
				// Confirmed out of band; record it below in case the webhook
				// has not landed yet.
			default:
				report(entities.ProgressEvent{Stage: entities.StagePayment, Percent: 60,
					Message: "Additional authentication required", ErrorCode: domainerrors.CodeRequiresAction})
				return &entities.RegistrationResult{
					CitizenID:      uid,
					RequiresAction: true,
					ClientSecret:   intent.ClientSecret,
				}, nil
			}
		}

		if _, err := u.citizenRepo.Advance(ctx, uid, entities.StatePaymentSucceeded, &entities.RegistrationPatch{
			Status: null.StringFrom(string(entities.CitizenStatusActivePendingSetup)),
		}); err != nil {
			return nil, u.terminal(report, domainerrors.InternalError(err))
		}
	}

	report(entities.ProgressEvent{Stage: entities.StagePayment, Percent: 70, Message: "Payment confirmed"})

	// Past PAYMENT_SUCCEEDED nothing rolls back anymore; failures from here
	// are operational follow-ups, not compensations.
	won, err := u.dispatcher.Claim(ctx, uid)
	if err != nil {
		return nil, u.terminal(report, domainerrors.InternalError(err))
	}
	if won {
		if err := u.finalizer.Finalize(ctx, uid, progress); err != nil {
			logger.Error(ctx, "inline finalize failed after claiming dispatch gate",
				zap.String("citizen_id", uid), zap.Error(err))
			return nil, u.terminal(report, domainerrors.InternalError(err))
		}
	} else {
		// A webhook raced ahead and owns generation; nothing left to do here.
		logger.Info(ctx, "asset generation already claimed elsewhere", zap.String("citizen_id", uid))
	}

	final, err := u.citizenRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, u.terminal(report, domainerrors.InternalError(err))
	}

	report(entities.ProgressEvent{Stage: entities.StageDone, Percent: 100, Message: "Registration complete", Terminal: true})

	return &entities.RegistrationResult{
		CitizenID:   uid,
		DocumentURL: final.DocumentURL.String,
	}, nil
}

// Resume returns the persisted saga state for an in-flight registration and,
// when payment sits in a resumable requires-action sub-state, the provider
// client secret needed to finish authentication without restarting.
func (u *RegistrationUsecase) Resume(ctx context.Context, citizenID string) (*entities.ResumeState, error) {
	citizen, err := u.citizenRepo.GetByID(ctx, citizenID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("registration not found")
		}
		return nil, err
	}

	state := &entities.ResumeState{
		CitizenID:          citizen.ID,
		RegistrationStatus: citizen.RegistrationStatus,
		Status:             citizen.Status,
		UpdatedAt:          citizen.UpdatedAt,
	}

	if citizen.RegistrationStatus.AtLeast(entities.StateChargeScheduleCreated) &&
		!citizen.RegistrationStatus.AtLeast(entities.StatePaymentSucceeded) &&
		citizen.PaymentIntentID.Valid {
		intent, err := u.payment.GetIntent(ctx, citizen.PaymentIntentID.String)
		if err != nil {
			logger.Warn(ctx, "resume could not load payment intent",
				zap.String("citizen_id", citizenID), zap.Error(err))
		} else if intent.Status == string(providers.ChargeRequiresAction) {
			state.ClientSecret = intent.ClientSecret
		}
	}

	return state, nil
}

// terminal emits the terminal progress event for err and returns it.
func (u *RegistrationUsecase) terminal(report entities.ProgressFunc, appErr *domainerrors.AppError) error {
	report(entities.ProgressEvent{
		Stage:     entities.StageDone,
		Percent:   100,
		Message:   appErr.Message,
		ErrorCode: appErr.Code,
		Terminal:  true,
	})
	return appErr
}

// failAndRollback compensates the attempt and surfaces a terminal coded error.
func (u *RegistrationUsecase) failAndRollback(ctx context.Context, report entities.ProgressFunc, citizenID string, cause error) error {
	logger.Warn(ctx, "registration stage failed, compensating",
		zap.String("citizen_id", citizenID), zap.Error(cause))

	if err := u.rollback.Rollback(ctx, citizenID); err != nil {
		logger.Error(ctx, "CRITICAL: registration rollback incomplete",
			zap.String("citizen_id", citizenID), zap.Error(err))
	}

	code := domainerrors.CodeFor(cause)
	status := http.StatusUnprocessableEntity
	if code == domainerrors.CodeInternal {
		status = http.StatusInternalServerError
	}
	return u.terminal(report, domainerrors.NewAppError(status, code, cause.Error(), cause))
}
