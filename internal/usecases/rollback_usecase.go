package usecases

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"civitas.backend/internal/domain/entities"
	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/domain/providers"
	"civitas.backend/internal/domain/repositories"
	"civitas.backend/pkg/logger"
	"civitas.backend/pkg/metrics"
)

// RollbackUsecase compensates a failed registration attempt: best-effort,
// non-transactional deletion of everything the attempt created across the
// payment provider, the identity provider, the biometric index and local
// storage. "Already deleted" counts as success. Rollback is refused once the
// saga crossed PAYMENT_SUCCEEDED; from there the remediation path is refunds
// and support, not silent deletion.
type RollbackUsecase struct {
	citizenRepo repositories.CitizenRepository
	identity    providers.Identity
	biometric   providers.BiometricIndex
	payment     providers.Payment
}

// NewRollbackUsecase creates a new rollback usecase
func NewRollbackUsecase(
	citizenRepo repositories.CitizenRepository,
	identity providers.Identity,
	biometric providers.BiometricIndex,
	payment providers.Payment,
) *RollbackUsecase {
	return &RollbackUsecase{
		citizenRepo: citizenRepo,
		identity:    identity,
		biometric:   biometric,
		payment:     payment,
	}
}

// Rollback removes the partial registration identified by citizenID.
// Individual cleanup failures are logged as critical operational alerts and
// do not abort the remaining steps; the caller has already received its
// terminal error by the time this runs.
func (u *RollbackUsecase) Rollback(ctx context.Context, citizenID string) error {
	citizen, err := u.citizenRepo.GetByID(ctx, citizenID)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil // already rolled back
		}
		return err
	}

	if citizen.RegistrationStatus.AtLeast(entities.StatePaymentSucceeded) {
		logger.Error(ctx, "CRITICAL: rollback requested past payment success, refusing",
			zap.String("citizen_id", citizenID),
			zap.String("registration_status", string(citizen.RegistrationStatus)))
		return domainerrors.ErrRollbackForbidden
	}

	metrics.Rollbacks.Inc()
	logger.Warn(ctx, "rolling back registration attempt",
		zap.String("citizen_id", citizenID),
		zap.String("registration_status", string(citizen.RegistrationStatus)))

	if citizen.PaymentCustomerID.Valid {
		if err := u.payment.DeleteCustomer(ctx, citizen.PaymentCustomerID.String); err != nil {
			logger.Error(ctx, "CRITICAL: rollback failed to delete payment customer",
				zap.String("citizen_id", citizenID),
				zap.String("customer_id", citizen.PaymentCustomerID.String),
				zap.Error(err))
		}
	}

	// Removing the face lets the same person retry; the permanent biometric
	// blacklist only applies to soft-deleted completed accounts.
	if citizen.BiometricRefID.Valid {
		if err := u.biometric.RemoveFace(ctx, citizen.BiometricRefID.String); err != nil {
			logger.Error(ctx, "CRITICAL: rollback failed to remove indexed face",
				zap.String("citizen_id", citizenID),
				zap.Error(err))
		}
	}

	if err := u.identity.DeleteAccount(ctx, citizenID); err != nil {
		logger.Error(ctx, "CRITICAL: rollback failed to delete identity account",
			zap.String("citizen_id", citizenID),
			zap.Error(err))
	}

	if err := u.citizenRepo.HardDelete(ctx, citizenID); err != nil {
		logger.Error(ctx, "CRITICAL: rollback failed to delete local record",
			zap.String("citizen_id", citizenID),
			zap.Error(err))
		return err
	}

	return nil
}
