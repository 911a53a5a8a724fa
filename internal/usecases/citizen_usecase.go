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
)

// CitizenUsecase covers the post-registration account operations: profile
// reads, account closure and administrative bans.
type CitizenUsecase struct {
	citizenRepo repositories.CitizenRepository
	identity    providers.Identity
	payment     providers.Payment
}

// NewCitizenUsecase creates a new citizen usecase
func NewCitizenUsecase(
	citizenRepo repositories.CitizenRepository,
	identity providers.Identity,
	payment providers.Payment,
) *CitizenUsecase {
	return &CitizenUsecase{
		citizenRepo: citizenRepo,
		identity:    identity,
		payment:     payment,
	}
}

// GetProfile returns the citizen record for id.
func (u *CitizenUsecase) GetProfile(ctx context.Context, id string) (*entities.Citizen, error) {
	citizen, err := u.citizenRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("citizen not found")
		}
		return nil, err
	}
	return citizen, nil
}

// CloseAccount soft-deletes an established account: the subscription and
// identity account are removed at the providers, the local record is
// anonymized, and the biometric reference is deliberately kept so the face
// stays blacklisted against re-registration.
func (u *CitizenUsecase) CloseAccount(ctx context.Context, id string) error {
	citizen, err := u.citizenRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.NotFound("citizen not found")
		}
		return err
	}

	if citizen.PaymentCustomerID.Valid {
		if err := u.payment.DeleteCustomer(ctx, citizen.PaymentCustomerID.String); err != nil {
			logger.Error(ctx, "CRITICAL: account closure failed to delete payment customer",
				zap.String("citizen_id", id),
				zap.String("customer_id", citizen.PaymentCustomerID.String),
				zap.Error(err))
		}
	}

	if err := u.identity.DeleteAccount(ctx, id); err != nil {
		logger.Error(ctx, "CRITICAL: account closure failed to delete identity account",
			zap.String("citizen_id", id), zap.Error(err))
	}

	if err := u.citizenRepo.SoftDelete(ctx, id); err != nil {
		return err
	}

	logger.Info(ctx, "citizen account closed", zap.String("citizen_id", id))
	return nil
}

// Ban marks the account BANNED. A banned citizen keeps its biometric and
// correlation ids; the record is evidence, not garbage.
func (u *CitizenUsecase) Ban(ctx context.Context, id string) error {
	citizen, err := u.citizenRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.NotFound("citizen not found")
		}
		return err
	}

	if citizen.Status == entities.CitizenStatusBanned {
		return nil
	}

	if citizen.PaymentCustomerID.Valid {
		if err := u.payment.DeleteCustomer(ctx, citizen.PaymentCustomerID.String); err != nil {
			logger.Error(ctx, "CRITICAL: ban failed to cancel payment customer",
				zap.String("citizen_id", id), zap.Error(err))
		}
	}

	if err := u.citizenRepo.UpdateStatus(ctx, id, entities.CitizenStatusBanned); err != nil {
		return err
	}

	logger.Warn(ctx, "citizen banned", zap.String("citizen_id", id))
	return nil
}

// Unban restores a banned account to the active status its registration
// progress implies. The bannedAt timestamp is kept as an audit trail; no
// provider resources are recreated, the citizen re-establishes payment through
// the normal resume path.
func (u *CitizenUsecase) Unban(ctx context.Context, id string) error {
	citizen, err := u.citizenRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.NotFound("citizen not found")
		}
		return err
	}

	if citizen.Status != entities.CitizenStatusBanned {
		return nil
	}

	restored := entities.CitizenStatusActivePendingSetup
	if citizen.RegistrationStatus.AtLeast(entities.StateComplete) {
		restored = entities.CitizenStatusActiveComplete
	}
	if err := u.citizenRepo.UpdateStatus(ctx, id, restored); err != nil {
		return err
	}

	logger.Info(ctx, "citizen unbanned",
		zap.String("citizen_id", id),
		zap.String("status", string(restored)))
	return nil
}
