package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/domain/providers"
)

// Mock providers back the development and test configuration. They are
// deterministic: ids derive from their inputs, and face uniqueness is an
// exact match on the submitted image reference.

// MockIdentity is an in-memory identity provider.
type MockIdentity struct {
	mu       sync.Mutex
	accounts map[string]string // uid -> email
}

func NewMockIdentity() *MockIdentity {
	return &MockIdentity{accounts: make(map[string]string)}
}

// VerifyIDToken accepts tokens of the form "uid:email".
func (m *MockIdentity) VerifyIDToken(_ context.Context, idToken string) (string, string, error) {
	parts := strings.SplitN(idToken, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", domainerrors.ErrUnauthorized
	}
	return parts[0], parts[1], nil
}

func (m *MockIdentity) CreateAccount(_ context.Context, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid := "uid_" + email
	m.accounts[uid] = email
	return uid, nil
}

func (m *MockIdentity) DeleteAccount(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.accounts, uid) // absent uid is fine
	return nil
}

// Deleted reports whether the uid is gone, for tests.
func (m *MockIdentity) Deleted(uid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.accounts[uid]
	return !ok
}

// MockBiometricIndex is an in-memory face index keyed by image reference.
type MockBiometricIndex struct {
	mu    sync.Mutex
	faces map[string]string // imageURL -> refID
}

func NewMockBiometricIndex() *MockBiometricIndex {
	return &MockBiometricIndex{faces: make(map[string]string)}
}

func (m *MockBiometricIndex) IndexFace(_ context.Context, imageURL, correlationID string) (string, error) {
	if imageURL == "" {
		return "", domainerrors.ErrBiometricProcessing
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.faces[imageURL]; exists {
		return "", domainerrors.ErrBiometricDuplicate
	}
	refID := "face_" + correlationID
	m.faces[imageURL] = refID
	return refID, nil
}

func (m *MockBiometricIndex) RemoveFace(_ context.Context, refID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for url, ref := range m.faces {
		if ref == refID {
			delete(m.faces, url)
			return nil
		}
	}
	return nil
}

// MockPayment is an in-memory payment provider. A payment method reference
// containing "decline" fails the charge; one containing "3ds" requires
// additional authentication.
type MockPayment struct {
	mu            sync.Mutex
	seq           int
	customers     map[string]string // customerID -> uid
	subscriptions map[string]*providers.Subscription
	invoices      map[string]*providers.Invoice
	charges       []*providers.Charge
	intents       map[string]*providers.Intent
}

func NewMockPayment() *MockPayment {
	return &MockPayment{
		customers:     make(map[string]string),
		subscriptions: make(map[string]*providers.Subscription),
		invoices:      make(map[string]*providers.Invoice),
		intents:       make(map[string]*providers.Intent),
	}
}

func (m *MockPayment) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_%06d", prefix, m.seq)
}

func (m *MockPayment) CreateCustomer(_ context.Context, email, uid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("cus")
	m.customers[id] = uid
	return id, nil
}

func (m *MockPayment) DeleteCustomer(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.customers, customerID)
	return nil
}

// CustomerDeleted reports whether the customer is gone, for tests.
func (m *MockPayment) CustomerDeleted(customerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.customers[customerID]
	return !ok
}

func (m *MockPayment) AttachPaymentMethod(_ context.Context, customerID, paymentMethodRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[customerID]; !ok {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (m *MockPayment) CreateSubscription(_ context.Context, customerID, planID, paymentMethodRef string) (*providers.SubscriptionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[customerID]; !ok {
		return nil, domainerrors.ErrNotFound
	}

	now := time.Now()
	periodEnd := now.AddDate(0, 1, 0)
	subID := m.nextID("sub")
	invID := m.nextID("in")
	intentID := m.nextID("pi")

	status := providers.ChargeSucceeded
	switch {
	case strings.Contains(paymentMethodRef, "decline"):
		status = providers.ChargeFailed
	case strings.Contains(paymentMethodRef, "3ds"):
		status = providers.ChargeRequiresAction
	}

	m.subscriptions[subID] = &providers.Subscription{
		ID:            subID,
		CustomerID:    customerID,
		Status:        string(status),
		LatestInvoice: invID,
		PeriodEnd:     &periodEnd,
	}
	m.invoices[invID] = &providers.Invoice{
		ID:             invID,
		CustomerID:     customerID,
		SubscriptionID: subID,
		IntentID:       intentID,
		Status:         string(status),
		PeriodEnd:      &periodEnd,
	}
	m.intents[intentID] = &providers.Intent{
		ID:           intentID,
		CustomerID:   customerID,
		InvoiceID:    invID,
		Status:       string(status),
		ClientSecret: intentID + "_secret",
		CreatedAt:    now,
	}
	if status == providers.ChargeSucceeded {
		m.charges = append(m.charges, &providers.Charge{
			ID:         m.nextID("ch"),
			CustomerID: customerID,
			InvoiceID:  invID,
			IntentID:   intentID,
			CreatedAt:  now,
		})
	}

	return &providers.SubscriptionResult{
		SubscriptionID: subID,
		IntentID:       intentID,
		InvoiceID:      invID,
		Status:         status,
		ClientSecret:   intentID + "_secret",
		PeriodEnd:      &periodEnd,
	}, nil
}

// SubscriptionCount reports how many charge schedules exist, for tests.
func (m *MockPayment) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

// SettleIntent marks a pending intent as succeeded, simulating the customer
// finishing additional authentication out of band.
func (m *MockPayment) SettleIntent(intentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[intentID]
	if !ok {
		return
	}
	in.Status = string(providers.ChargeSucceeded)
	if inv, ok := m.invoices[in.InvoiceID]; ok {
		inv.Status = string(providers.ChargeSucceeded)
		if sub, ok := m.subscriptions[inv.SubscriptionID]; ok {
			sub.Status = "active"
		}
	}
	m.charges = append(m.charges, &providers.Charge{
		ID:         m.nextID("ch"),
		CustomerID: in.CustomerID,
		InvoiceID:  in.InvoiceID,
		IntentID:   in.ID,
		CreatedAt:  time.Now(),
	})
}

func (m *MockPayment) GetSubscription(_ context.Context, subscriptionID string) (*providers.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return sub, nil
}

func (m *MockPayment) GetInvoice(_ context.Context, invoiceID string) (*providers.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return inv, nil
}

func (m *MockPayment) LatestCharge(_ context.Context, customerID string) (*providers.Charge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *providers.Charge
	for _, ch := range m.charges {
		if ch.CustomerID != customerID {
			continue
		}
		if latest == nil || ch.CreatedAt.After(latest.CreatedAt) {
			latest = ch
		}
	}
	if latest == nil {
		return nil, domainerrors.ErrNotFound
	}
	return latest, nil
}

func (m *MockPayment) ListRecentIntents(_ context.Context, customerID string, since time.Time) ([]*providers.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*providers.Intent
	for _, in := range m.intents {
		if in.CustomerID == customerID && in.CreatedAt.After(since) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockPayment) GetIntent(_ context.Context, intentID string) (*providers.Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.intents[intentID]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return in, nil
}

// MockAvatarStudio renders deterministic avatar URLs.
type MockAvatarStudio struct {
	mu  sync.Mutex
	seq int
}

func NewMockAvatarStudio() *MockAvatarStudio {
	return &MockAvatarStudio{}
}

func (m *MockAvatarStudio) ListStyles(_ context.Context, gender string) ([]providers.AvatarStyle, error) {
	return []providers.AvatarStyle{
		{Ref: "classic_" + gender, Label: "Classic"},
		{Ref: "painterly_" + gender, Label: "Painterly"},
		{Ref: "neon_" + gender, Label: "Neon"},
	}, nil
}

func (m *MockAvatarStudio) Generate(_ context.Context, sourceImageURL, styleRef string) (*providers.Generation, error) {
	m.mu.Lock()
	m.seq++
	id := fmt.Sprintf("gen_%06d", m.seq)
	m.mu.Unlock()
	return &providers.Generation{
		ImageURL:     fmt.Sprintf("https://assets.local/avatars/%s_%s.png", styleRef, id),
		GenerationID: id,
	}, nil
}

// MockDocumentPress assembles deterministic document URLs.
type MockDocumentPress struct{}

func NewMockDocumentPress() *MockDocumentPress {
	return &MockDocumentPress{}
}

func (m *MockDocumentPress) Assemble(_ context.Context, profile providers.PassportProfile) (string, error) {
	return fmt.Sprintf("https://assets.local/passports/%s.pdf", profile.CitizenID), nil
}
