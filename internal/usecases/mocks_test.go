package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/volatiletech/null/v8"

	"civitas.backend/internal/domain/entities"
	domainerrors "civitas.backend/internal/domain/errors"
	mockproviders "civitas.backend/internal/infrastructure/providers"
	"civitas.backend/internal/usecases"
)

// memCitizenRepo is an in-memory CitizenRepository with the same conditional
// advance semantics as the SQL implementation. The mutex around the
// read-compare-write makes concurrent Advance calls race exactly the way the
// conditional UPDATE does: one winner, everyone else a no-op.
type memCitizenRepo struct {
	mu       sync.Mutex
	citizens map[string]*entities.Citizen
}

func newMemCitizenRepo() *memCitizenRepo {
	return &memCitizenRepo{citizens: make(map[string]*entities.Citizen)}
}

func (r *memCitizenRepo) Create(_ context.Context, citizen *entities.Citizen) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.citizens {
		if c.Email == citizen.Email && c.DeletedAt == nil {
			if c.ID == citizen.ID {
				return domainerrors.ErrAlreadyExists
			}
			return domainerrors.ErrEmailInUse
		}
	}
	cp := *citizen
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.citizens[citizen.ID] = &cp
	return nil
}

func (r *memCitizenRepo) GetByID(_ context.Context, id string) (*entities.Citizen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(func(c *entities.Citizen) bool { return c.ID == id })
}

func (r *memCitizenRepo) GetByEmail(_ context.Context, email string) (*entities.Citizen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(func(c *entities.Citizen) bool { return c.Email == email })
}

func (r *memCitizenRepo) GetBySubscriptionID(_ context.Context, subscriptionID string) (*entities.Citizen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(func(c *entities.Citizen) bool {
		return c.PaymentSubscriptionID.Valid && c.PaymentSubscriptionID.String == subscriptionID
	})
}

func (r *memCitizenRepo) GetByCustomerID(_ context.Context, customerID string) (*entities.Citizen, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookup(func(c *entities.Citizen) bool {
		return c.PaymentCustomerID.Valid && c.PaymentCustomerID.String == customerID
	})
}

func (r *memCitizenRepo) lookup(match func(*entities.Citizen) bool) (*entities.Citizen, error) {
	for _, c := range r.citizens {
		if c.DeletedAt == nil && match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (r *memCitizenRepo) Advance(_ context.Context, id string, target entities.RegistrationState, patch *entities.RegistrationPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.citizens[id]
	if !ok || c.DeletedAt != nil {
		return false, domainerrors.ErrNotFound
	}
	if target.Rank() <= c.RegistrationStatus.Rank() {
		return false, nil
	}
	c.RegistrationStatus = target
	c.UpdatedAt = time.Now()
	if patch != nil {
		if patch.PaymentCustomerID.Valid {
			c.PaymentCustomerID = patch.PaymentCustomerID
		}
		if patch.PaymentSubscriptionID.Valid {
			c.PaymentSubscriptionID = patch.PaymentSubscriptionID
		}
		if patch.PaymentInvoiceID.Valid {
			c.PaymentInvoiceID = patch.PaymentInvoiceID
		}
		if patch.PaymentIntentID.Valid {
			c.PaymentIntentID = patch.PaymentIntentID
		}
		if patch.CurrentPeriodEnd.Valid {
			c.CurrentPeriodEnd = patch.CurrentPeriodEnd
		}
		if patch.BiometricRefID.Valid {
			c.BiometricRefID = patch.BiometricRefID
		}
		if patch.AvatarURL.Valid {
			c.AvatarURL = patch.AvatarURL
		}
		if patch.DocumentURL.Valid {
			c.DocumentURL = patch.DocumentURL
		}
		if patch.Status.Valid {
			c.Status = entities.CitizenStatus(patch.Status.String)
		}
	}
	return true, nil
}

func (r *memCitizenRepo) UpdateStatus(_ context.Context, id string, status entities.CitizenStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.citizens[id]
	if !ok {
		return domainerrors.ErrNotFound
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

func (r *memCitizenRepo) SetBiometricRef(_ context.Context, id, refID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.citizens[id]
	if !ok || c.DeletedAt != nil {
		return domainerrors.ErrNotFound
	}
	c.BiometricRefID = null.StringFrom(refID)
	c.UpdatedAt = time.Now()
	return nil
}

func (r *memCitizenRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.citizens[id]
	if !ok {
		return domainerrors.ErrNotFound
	}
	now := time.Now()
	c.Email = "deleted:" + id
	c.Status = entities.CitizenStatusDeleted
	c.TempFaceImageURL = ""
	c.DeletedAt = &now
	return nil
}

func (r *memCitizenRepo) HardDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.citizens, id)
	return nil
}

// exists reports whether a row for id is present at all, deleted or not.
func (r *memCitizenRepo) exists(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.citizens[id]
	return ok
}

// flakyPayment injects a fault into selected payment operations while
// delegating everything else to the deterministic mock.
type flakyPayment struct {
	*mockproviders.MockPayment
	createCustomerErr error
}

func (p *flakyPayment) CreateCustomer(ctx context.Context, email, uid string) (string, error) {
	if p.createCustomerErr != nil {
		return "", p.createCustomerErr
	}
	return p.MockPayment.CreateCustomer(ctx, email, uid)
}

// memQueue records enqueued asset jobs.
type memQueue struct {
	mu   sync.Mutex
	jobs []usecases.AssetJob
}

func (q *memQueue) Enqueue(_ context.Context, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, payload.(usecases.AssetJob))
	return nil
}

func (q *memQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// sagaFixture wires the full usecase stack over in-memory dependencies.
type sagaFixture struct {
	repo      *memCitizenRepo
	queue     *memQueue
	identity  *mockproviders.MockIdentity
	biometric *mockproviders.MockBiometricIndex
	payment   *mockproviders.MockPayment

	registration *usecases.RegistrationUsecase
	webhook      *usecases.WebhookUsecase
	dispatcher   *usecases.AssetDispatcher
	finalizer    *usecases.ProfileFinalizer
	rollback     *usecases.RollbackUsecase
}

func newSagaFixture() *sagaFixture {
	f := &sagaFixture{
		repo:      newMemCitizenRepo(),
		queue:     &memQueue{},
		identity:  mockproviders.NewMockIdentity(),
		biometric: mockproviders.NewMockBiometricIndex(),
		payment:   mockproviders.NewMockPayment(),
	}

	avatar := mockproviders.NewMockAvatarStudio()
	document := mockproviders.NewMockDocumentPress()

	f.dispatcher = usecases.NewAssetDispatcher(f.repo, f.queue)
	f.finalizer = usecases.NewProfileFinalizer(f.repo, avatar, document)
	f.rollback = usecases.NewRollbackUsecase(f.repo, f.identity, f.biometric, f.payment)
	resolver := usecases.NewCorrelationResolver(f.payment, 24*time.Hour)
	f.registration = usecases.NewRegistrationUsecase(
		f.repo, f.identity, f.biometric, f.payment,
		f.dispatcher, f.finalizer, f.rollback, "plan_citizen_monthly",
	)
	f.webhook = usecases.NewWebhookUsecase(f.repo, resolver, f.dispatcher, f.rollback)
	return f
}

func validInput(uid, email string) *entities.RegistrationInput {
	return &entities.RegistrationInput{
		IDToken:          uid + ":" + email,
		FaceImageURL:     "https://uploads.example/faces/" + uid + ".jpg",
		PlanID:           "plan_citizen_monthly",
		AvatarStyle:      "classic_female",
		Gender:           "female",
		PaymentMethodRef: "pm_card_visa",
	}
}
