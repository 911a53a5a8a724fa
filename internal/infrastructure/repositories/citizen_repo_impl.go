package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"

	"civitas.backend/internal/domain/entities"
	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/infrastructure/models"
	"civitas.backend/pkg/metrics"
)

// defaultAdvanceRetries bounds re-reads after a lost conditional write.
const defaultAdvanceRetries = 5

// CitizenRepository implements citizen saga-record persistence on GORM.
type CitizenRepository struct {
	db             *gorm.DB
	advanceRetries int
}

// NewCitizenRepository creates a new citizen repository. advanceRetries
// bounds re-reads after a lost conditional write; zero or negative falls
// back to the default.
func NewCitizenRepository(db *gorm.DB, advanceRetries int) *CitizenRepository {
	if advanceRetries <= 0 {
		advanceRetries = defaultAdvanceRetries
	}
	return &CitizenRepository{db: db, advanceRetries: advanceRetries}
}

// Create inserts a new provisional citizen. A non-deleted record holding the
// same email under a different id rejects the insert with ErrEmailInUse.
func (r *CitizenRepository) Create(ctx context.Context, citizen *entities.Citizen) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Citizen
		err := tx.Where("email = ?", citizen.Email).First(&existing).Error
		if err == nil {
			if existing.ID == citizen.ID {
				return domainerrors.ErrAlreadyExists
			}
			return domainerrors.ErrEmailInUse
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		m := toModel(citizen)
		now := time.Now()
		m.CreatedAt = now
		m.UpdatedAt = now
		return tx.Create(m).Error
	})
}

// GetByID gets a citizen by identity-provider uid
func (r *CitizenRepository) GetByID(ctx context.Context, id string) (*entities.Citizen, error) {
	return r.getWhere(ctx, "id = ?", id)
}

// GetByEmail gets a non-deleted citizen by email
func (r *CitizenRepository) GetByEmail(ctx context.Context, email string) (*entities.Citizen, error) {
	return r.getWhere(ctx, "email = ?", email)
}

// GetBySubscriptionID resolves a webhook subscription id to its record
func (r *CitizenRepository) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*entities.Citizen, error) {
	return r.getWhere(ctx, "payment_subscription_id = ?", subscriptionID)
}

// GetByCustomerID resolves a payment customer id to its record
func (r *CitizenRepository) GetByCustomerID(ctx context.Context, customerID string) (*entities.Citizen, error) {
	return r.getWhere(ctx, "payment_customer_id = ?", customerID)
}

func (r *CitizenRepository) getWhere(ctx context.Context, query string, arg interface{}) (*entities.Citizen, error) {
	var m models.Citizen
	if err := r.db.WithContext(ctx).Where(query, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toEntity(&m), nil
}

// Advance moves the registration saga forward using a single conditional
// write keyed on the previously observed state. Replays (target rank at or
// below current) return (false, nil) without touching the row; a lost race
// re-reads and re-evaluates, so concurrent callers converge on exactly one
// state-changing write.
func (r *CitizenRepository) Advance(ctx context.Context, id string, target entities.RegistrationState, patch *entities.RegistrationPatch) (bool, error) {
	for attempt := 0; attempt <= r.advanceRetries; attempt++ {
		var m models.Citizen
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, domainerrors.ErrNotFound
			}
			return false, err
		}

		current := entities.RegistrationState(m.RegistrationStatus)
		if target.Rank() <= current.Rank() {
			metrics.SagaReplays.WithLabelValues(string(target)).Inc()
			return false, nil
		}

		updates := map[string]interface{}{
			"registration_status": string(target),
			"updated_at":          time.Now(),
		}
		applyPatch(updates, patch)

		result := r.db.WithContext(ctx).Model(&models.Citizen{}).
			Where("id = ? AND registration_status = ?", id, m.RegistrationStatus).
			Updates(updates)
		if result.Error != nil {
			return false, result.Error
		}
		if result.RowsAffected == 1 {
			metrics.SagaTransitions.WithLabelValues(string(target)).Inc()
			return true, nil
		}
		// Someone advanced concurrently; loop to re-read the new rank.
	}
	return false, domainerrors.ErrConflict
}

// UpdateStatus changes the coarse lifecycle status
func (r *CitizenRepository) UpdateStatus(ctx context.Context, id string, status entities.CitizenStatus) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now(),
	}
	if status == entities.CitizenStatusBanned {
		updates["banned_at"] = time.Now()
	}

	result := r.db.WithContext(ctx).Model(&models.Citizen{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// SetBiometricRef records the indexed face reference as soon as the provider
// returns it, before any later stage can fail and trigger compensation.
func (r *CitizenRepository) SetBiometricRef(ctx context.Context, id, refID string) error {
	result := r.db.WithContext(ctx).Model(&models.Citizen{}).Where("id = ?", id).Updates(map[string]interface{}{
		"biometric_ref_id": refID,
		"updated_at":       time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// SoftDelete anonymizes the record and marks it deleted. The biometric
// reference is left in place so the face stays blacklisted.
func (r *CitizenRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Citizen{}).Where("id = ?", id).Updates(map[string]interface{}{
			"email":               "deleted:" + id,
			"status":              string(entities.CitizenStatusDeleted),
			"temp_face_image_url": "",
			"updated_at":          time.Now(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrNotFound
		}
		return tx.Delete(&models.Citizen{}, "id = ?", id).Error
	})
}

// HardDelete physically removes an incomplete registration during rollback.
// An absent record counts as already rolled back.
func (r *CitizenRepository) HardDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&models.Citizen{}, "id = ?", id).Error
}

func applyPatch(updates map[string]interface{}, patch *entities.RegistrationPatch) {
	if patch == nil {
		return
	}
	if patch.PaymentCustomerID.Valid {
		updates["payment_customer_id"] = patch.PaymentCustomerID.String
	}
	if patch.PaymentSubscriptionID.Valid {
		updates["payment_subscription_id"] = patch.PaymentSubscriptionID.String
	}
	if patch.PaymentInvoiceID.Valid {
		updates["payment_invoice_id"] = patch.PaymentInvoiceID.String
	}
	if patch.PaymentIntentID.Valid {
		updates["payment_intent_id"] = patch.PaymentIntentID.String
	}
	if patch.CurrentPeriodEnd.Valid {
		updates["current_period_end"] = patch.CurrentPeriodEnd.Time
	}
	if patch.BiometricRefID.Valid {
		updates["biometric_ref_id"] = patch.BiometricRefID.String
	}
	if patch.AvatarURL.Valid {
		updates["avatar_url"] = patch.AvatarURL.String
	}
	if patch.DocumentURL.Valid {
		updates["document_url"] = patch.DocumentURL.String
	}
	if patch.Status.Valid {
		updates["status"] = patch.Status.String
	}
}

func toModel(c *entities.Citizen) *models.Citizen {
	return &models.Citizen{
		ID:                    c.ID,
		Email:                 c.Email,
		Status:                string(c.Status),
		RegistrationStatus:    string(c.RegistrationStatus),
		BiometricRefID:        c.BiometricRefID.Ptr(),
		PaymentCustomerID:     c.PaymentCustomerID.Ptr(),
		PaymentSubscriptionID: c.PaymentSubscriptionID.Ptr(),
		PaymentInvoiceID:      c.PaymentInvoiceID.Ptr(),
		PaymentIntentID:       c.PaymentIntentID.Ptr(),
		CurrentPeriodEnd:      c.CurrentPeriodEnd.Ptr(),
		AvatarStyle:           c.AvatarStyle,
		Gender:                c.Gender,
		TempFaceImageURL:      c.TempFaceImageURL,
		AvatarURL:             c.AvatarURL.Ptr(),
		DocumentURL:           c.DocumentURL.Ptr(),
		BannedAt:              c.BannedAt.Ptr(),
	}
}

func toEntity(m *models.Citizen) *entities.Citizen {
	var deletedAt *time.Time
	if m.DeletedAt.Valid {
		t := m.DeletedAt.Time
		deletedAt = &t
	}

	return &entities.Citizen{
		ID:                    m.ID,
		Email:                 m.Email,
		Status:                entities.CitizenStatus(m.Status),
		RegistrationStatus:    entities.RegistrationState(m.RegistrationStatus),
		BiometricRefID:        null.StringFromPtr(m.BiometricRefID),
		PaymentCustomerID:     null.StringFromPtr(m.PaymentCustomerID),
		PaymentSubscriptionID: null.StringFromPtr(m.PaymentSubscriptionID),
		PaymentInvoiceID:      null.StringFromPtr(m.PaymentInvoiceID),
		PaymentIntentID:       null.StringFromPtr(m.PaymentIntentID),
		CurrentPeriodEnd:      null.TimeFromPtr(m.CurrentPeriodEnd),
		AvatarStyle:           m.AvatarStyle,
		Gender:                m.Gender,
		TempFaceImageURL:      m.TempFaceImageURL,
		AvatarURL:             null.StringFromPtr(m.AvatarURL),
		DocumentURL:           null.StringFromPtr(m.DocumentURL),
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
		DeletedAt:             deletedAt,
		BannedAt:              null.TimeFromPtr(m.BannedAt),
	}
}
