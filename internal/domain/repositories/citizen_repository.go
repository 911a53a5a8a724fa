package repositories

import (
	"context"

	"civitas.backend/internal/domain/entities"
)

// CitizenRepository implements citizen saga-record persistence.
type CitizenRepository interface {
	// Create inserts a new provisional citizen. Returns ErrEmailInUse when a
	// non-deleted record with the same email but a different id exists.
	Create(ctx context.Context, citizen *entities.Citizen) error
	GetByID(ctx context.Context, id string) (*entities.Citizen, error)
	GetByEmail(ctx context.Context, email string) (*entities.Citizen, error)

	// Advance moves the registration to target and merges patch in one
	// conditional write keyed on the previously observed state. It returns
	// (false, nil) when target's rank is at or below the current rank, which
	// is the replay-safe no-op every duplicate trigger takes; it is also the
	// exactly-once gate for asset-job dispatch. Callers never see a conflict:
	// losing a concurrent race surfaces as the no-op.
	Advance(ctx context.Context, id string, target entities.RegistrationState, patch *entities.RegistrationPatch) (bool, error)

	// UpdateStatus changes the coarse account lifecycle status only.
	UpdateStatus(ctx context.Context, id string, status entities.CitizenStatus) error

	// SetBiometricRef records the indexed face reference the moment the
	// provider returns it, so compensation can always find it.
	SetBiometricRef(ctx context.Context, id, refID string) error

	// GetBySubscriptionID and GetByCustomerID resolve webhook correlation ids
	// back to a record.
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*entities.Citizen, error)
	GetByCustomerID(ctx context.Context, customerID string) (*entities.Citizen, error)

	// SoftDelete anonymizes the record but keeps the biometric reference so
	// the face remains blacklisted.
	SoftDelete(ctx context.Context, id string) error

	// HardDelete physically removes an incomplete registration during
	// compensation. Deleting an absent record is not an error.
	HardDelete(ctx context.Context, id string) error
}
