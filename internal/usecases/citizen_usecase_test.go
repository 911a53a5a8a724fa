package usecases_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"civitas.backend/internal/domain/entities"
	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/usecases"
)

func newCitizenFixture(t *testing.T) (*sagaFixture, *usecases.CitizenUsecase) {
	t.Helper()
	f := newSagaFixture()
	return f, usecases.NewCitizenUsecase(f.repo, f.identity, f.payment)
}

func establishedCitizen(t *testing.T, f *sagaFixture) *entities.Citizen {
	t.Helper()
	ctx := context.Background()
	customerID, err := f.payment.CreateCustomer(ctx, "ada@example.com", "uid_1")
	require.NoError(t, err)
	c := &entities.Citizen{
		ID:                 "uid_1",
		Email:              "ada@example.com",
		Status:             entities.CitizenStatusActiveComplete,
		RegistrationStatus: entities.StateComplete,
		BiometricRefID:     null.StringFrom("face_uid_1"),
		PaymentCustomerID:  null.StringFrom(customerID),
	}
	require.NoError(t, f.repo.Create(ctx, c))
	return c
}

func TestGetProfile(t *testing.T) {
	f, uc := newCitizenFixture(t)
	establishedCitizen(t, f)

	got, err := uc.GetProfile(context.Background(), "uid_1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	_, err = uc.GetProfile(context.Background(), "uid_missing")
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeNotFound, appCode(t, err))
}

func TestCloseAccountKeepsBiometricBlacklist(t *testing.T) {
	f, uc := newCitizenFixture(t)
	c := establishedCitizen(t, f)
	ctx := context.Background()

	require.NoError(t, uc.CloseAccount(ctx, "uid_1"))

	// The account is gone from normal reads and the providers.
	_, err := uc.GetProfile(ctx, "uid_1")
	require.Error(t, err)
	assert.True(t, f.identity.Deleted("uid_1"))
	assert.True(t, f.payment.CustomerDeleted(c.PaymentCustomerID.String))

	// The anonymized row survives with the biometric reference, keeping the
	// face blacklisted against re-registration.
	assert.True(t, f.repo.exists("uid_1"))
	f.repo.mu.Lock()
	row := f.repo.citizens["uid_1"]
	f.repo.mu.Unlock()
	assert.Equal(t, "deleted:uid_1", row.Email)
	assert.Equal(t, "face_uid_1", row.BiometricRefID.String)
}

func TestBanCitizen(t *testing.T) {
	f, uc := newCitizenFixture(t)
	c := establishedCitizen(t, f)
	ctx := context.Background()

	require.NoError(t, uc.Ban(ctx, "uid_1"))

	got, err := f.repo.GetByID(ctx, "uid_1")
	require.NoError(t, err)
	assert.Equal(t, entities.CitizenStatusBanned, got.Status)
	assert.True(t, f.payment.CustomerDeleted(c.PaymentCustomerID.String))

	// Banning twice is a no-op.
	assert.NoError(t, uc.Ban(ctx, "uid_1"))

	err = uc.Ban(ctx, "uid_missing")
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeNotFound, appCode(t, err))
}

func TestUnbanCitizen(t *testing.T) {
	f, uc := newCitizenFixture(t)
	establishedCitizen(t, f)
	ctx := context.Background()

	require.NoError(t, uc.Ban(ctx, "uid_1"))
	require.NoError(t, uc.Unban(ctx, "uid_1"))

	// A completed registration restores to the fully active status.
	got, err := f.repo.GetByID(ctx, "uid_1")
	require.NoError(t, err)
	assert.Equal(t, entities.CitizenStatusActiveComplete, got.Status)

	// Unbanning an account that is not banned is a no-op.
	assert.NoError(t, uc.Unban(ctx, "uid_1"))

	err = uc.Unban(ctx, "uid_missing")
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeNotFound, appCode(t, err))
}
