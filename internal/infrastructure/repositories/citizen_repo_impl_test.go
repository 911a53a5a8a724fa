package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"civitas.backend/internal/domain/entities"
	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/infrastructure/models"
)

func newCitizen(id, email string) *entities.Citizen {
	return &entities.Citizen{
		ID:                 id,
		Email:              email,
		Status:             entities.CitizenStatusPendingPayment,
		RegistrationStatus: entities.StateRegisterStart,
		AvatarStyle:        "style_classic",
		Gender:             "female",
		TempFaceImageURL:   "https://uploads.example/faces/" + id + ".jpg",
	}
}

func TestCitizenCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCitizen("uid_1", "ada@example.com")))

	got, err := repo.GetByID(ctx, "uid_1")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, entities.CitizenStatusPendingPayment, got.Status)
	assert.Equal(t, entities.StateRegisterStart, got.RegistrationStatus)
	assert.False(t, got.BiometricRefID.Valid)
	assert.False(t, got.CreatedAt.IsZero())

	byEmail, err := repo.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "uid_1", byEmail.ID)

	_, err = repo.GetByID(ctx, "uid_missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestCitizenCreateEmailConflict(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCitizen("uid_1", "ada@example.com")))

	err := repo.Create(ctx, newCitizen("uid_2", "ada@example.com"))
	assert.ErrorIs(t, err, domainerrors.ErrEmailInUse)

	err = repo.Create(ctx, newCitizen("uid_1", "ada@example.com"))
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists)
}

func TestAdvanceForwardOnly(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCitizen("uid_1", "ada@example.com")))

	advanced, err := repo.Advance(ctx, "uid_1", entities.StateEmailVerified, nil)
	require.NoError(t, err)
	assert.True(t, advanced)

	// Same target again is a replay, not an error.
	advanced, err = repo.Advance(ctx, "uid_1", entities.StateEmailVerified, nil)
	require.NoError(t, err)
	assert.False(t, advanced)

	// Moving backwards is also a no-op.
	advanced, err = repo.Advance(ctx, "uid_1", entities.StateRegisterStart, nil)
	require.NoError(t, err)
	assert.False(t, advanced)

	// Jumping multiple states forward is a single transition.
	advanced, err = repo.Advance(ctx, "uid_1", entities.StateChargeScheduleCreated, nil)
	require.NoError(t, err)
	assert.True(t, advanced)

	got, err := repo.GetByID(ctx, "uid_1")
	require.NoError(t, err)
	assert.Equal(t, entities.StateChargeScheduleCreated, got.RegistrationStatus)
}

func TestAdvanceDuplicateTriggersSingleTransition(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCitizen("uid_1", "ada@example.com")))

	// Converging triggers (orchestrator run plus redelivered webhooks) all
	// attempt the same advance; exactly one wins.
	wins := 0
	for i := 0; i < 5; i++ {
		advanced, err := repo.Advance(ctx, "uid_1", entities.StatePaymentSucceeded, nil)
		require.NoError(t, err)
		if advanced {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestAdvancePatchMerge(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCitizen("uid_1", "ada@example.com")))

	advanced, err := repo.Advance(ctx, "uid_1", entities.StateCustomerCreated, &entities.RegistrationPatch{
		PaymentCustomerID: null.StringFrom("cus_000001"),
		BiometricRefID:    null.StringFrom("face_uid_1"),
	})
	require.NoError(t, err)
	require.True(t, advanced)

	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC().Truncate(time.Second)
	advanced, err = repo.Advance(ctx, "uid_1", entities.StatePaymentSucceeded, &entities.RegistrationPatch{
		PaymentSubscriptionID: null.StringFrom("sub_000001"),
		CurrentPeriodEnd:      null.TimeFrom(periodEnd),
		Status:                null.StringFrom(string(entities.CitizenStatusActivePendingSetup)),
	})
	require.NoError(t, err)
	require.True(t, advanced)

	got, err := repo.GetByID(ctx, "uid_1")
	require.NoError(t, err)
	// Earlier patch fields survive later patches that leave them unset.
	assert.Equal(t, "cus_000001", got.PaymentCustomerID.String)
	assert.Equal(t, "face_uid_1", got.BiometricRefID.String)
	assert.Equal(t, "sub_000001", got.PaymentSubscriptionID.String)
	assert.Equal(t, entities.CitizenStatusActivePendingSetup, got.Status)
	assert.True(t, got.CurrentPeriodEnd.Valid)
}

func TestAdvanceNotFound(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)

	_, err := repo.Advance(context.Background(), "uid_missing", entities.StateEmailVerified, nil)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestNewCitizenRepositoryRetryBound(t *testing.T) {
	// The configured bound is honored; zero falls back to the default.
	assert.Equal(t, defaultAdvanceRetries, NewCitizenRepository(nil, 0).advanceRetries)
	assert.Equal(t, 2, NewCitizenRepository(nil, 2).advanceRetries)
}

func TestSetBiometricRef(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCitizen("uid_1", "ada@example.com")))
	require.NoError(t, repo.SetBiometricRef(ctx, "uid_1", "face_uid_1"))

	got, err := repo.GetByID(ctx, "uid_1")
	require.NoError(t, err)
	assert.Equal(t, "face_uid_1", got.BiometricRefID.String)
	// The ref lands without moving the saga forward.
	assert.Equal(t, entities.StateRegisterStart, got.RegistrationStatus)

	err = repo.SetBiometricRef(ctx, "uid_missing", "face_x")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestUpdateStatusBan(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCitizen("uid_1", "ada@example.com")))
	require.NoError(t, repo.UpdateStatus(ctx, "uid_1", entities.CitizenStatusBanned))

	got, err := repo.GetByID(ctx, "uid_1")
	require.NoError(t, err)
	assert.Equal(t, entities.CitizenStatusBanned, got.Status)
	assert.True(t, got.BannedAt.Valid)

	err = repo.UpdateStatus(ctx, "uid_missing", entities.CitizenStatusBanned)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestSoftDeleteKeepsBiometric(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	c := newCitizen("uid_1", "ada@example.com")
	c.BiometricRefID = null.StringFrom("face_uid_1")
	require.NoError(t, repo.Create(ctx, c))
	require.NoError(t, repo.SoftDelete(ctx, "uid_1"))

	// The record is gone from normal reads.
	_, err := repo.GetByID(ctx, "uid_1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	// But the row survives with the biometric reference and anonymized email.
	var m models.Citizen
	require.NoError(t, db.Unscoped().Where("id = ?", "uid_1").First(&m).Error)
	assert.Equal(t, "deleted:uid_1", m.Email)
	assert.Equal(t, string(entities.CitizenStatusDeleted), m.Status)
	assert.Empty(t, m.TempFaceImageURL)
	require.NotNil(t, m.BiometricRefID)
	assert.Equal(t, "face_uid_1", *m.BiometricRefID)

	// The anonymized email frees the original for re-registration.
	require.NoError(t, repo.Create(ctx, newCitizen("uid_2", "ada@example.com")))
}

func TestHardDelete(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newCitizen("uid_1", "ada@example.com")))
	require.NoError(t, repo.HardDelete(ctx, "uid_1"))

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Citizen{}).Where("id = ?", "uid_1").Count(&count).Error)
	assert.Zero(t, count)

	// Deleting an absent record is not an error.
	assert.NoError(t, repo.HardDelete(ctx, "uid_1"))
}

func TestGetByCorrelationIDs(t *testing.T) {
	db := newTestDB(t)
	createCitizenTable(t, db)
	repo := NewCitizenRepository(db, 0)
	ctx := context.Background()

	c := newCitizen("uid_1", "ada@example.com")
	c.PaymentCustomerID = null.StringFrom("cus_000001")
	c.PaymentSubscriptionID = null.StringFrom("sub_000001")
	require.NoError(t, repo.Create(ctx, c))

	bySub, err := repo.GetBySubscriptionID(ctx, "sub_000001")
	require.NoError(t, err)
	assert.Equal(t, "uid_1", bySub.ID)

	byCus, err := repo.GetByCustomerID(ctx, "cus_000001")
	require.NoError(t, err)
	assert.Equal(t, "uid_1", byCus.ID)

	_, err = repo.GetBySubscriptionID(ctx, "sub_unknown")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}
