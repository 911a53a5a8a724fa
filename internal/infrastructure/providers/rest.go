package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	domainerrors "civitas.backend/internal/domain/errors"
	"civitas.backend/internal/domain/providers"
)

// restClient is the shared HTTP plumbing of the live adapters. Each service
// speaks a small JSON-over-REST surface; error payloads carry a stable
// "code" field that maps onto the domain errors.
type restClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newRESTClient(baseURL, apiKey string) *restClient {
	return &restClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *restClient) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return mapAPIError(resp.StatusCode, apiErr)
	}

	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func mapAPIError(status int, apiErr apiError) error {
	switch apiErr.Code {
	case "BIOMETRIC_DUPLICATE", "duplicate_face":
		return domainerrors.ErrBiometricDuplicate
	case "BIOMETRIC_PROCESSING_FAILED", "unprocessable_image":
		return domainerrors.ErrBiometricProcessing
	case "card_declined", "payment_declined":
		return domainerrors.ErrPaymentDeclined
	}
	switch status {
	case http.StatusNotFound:
		return domainerrors.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return domainerrors.ErrUnauthorized
	}
	return fmt.Errorf("provider error: status=%d code=%s message=%s", status, apiErr.Code, apiErr.Message)
}

// RESTIdentity is the live identity-provider adapter.
type RESTIdentity struct {
	client *restClient
}

func NewRESTIdentity(baseURL, apiKey string) *RESTIdentity {
	return &RESTIdentity{client: newRESTClient(baseURL, apiKey)}
}

func (p *RESTIdentity) VerifyIDToken(ctx context.Context, idToken string) (string, string, error) {
	var out struct {
		UID   string `json:"uid"`
		Email string `json:"email"`
	}
	err := p.client.do(ctx, http.MethodPost, "/v1/tokens/verify", map[string]string{"idToken": idToken}, &out)
	if err != nil {
		return "", "", err
	}
	return out.UID, out.Email, nil
}

func (p *RESTIdentity) CreateAccount(ctx context.Context, email string) (string, error) {
	var out struct {
		UID string `json:"uid"`
	}
	err := p.client.do(ctx, http.MethodPost, "/v1/accounts", map[string]string{"email": email}, &out)
	if err != nil {
		return "", err
	}
	return out.UID, nil
}

func (p *RESTIdentity) DeleteAccount(ctx context.Context, uid string) error {
	err := p.client.do(ctx, http.MethodDelete, "/v1/accounts/"+url.PathEscape(uid), nil, nil)
	if err == domainerrors.ErrNotFound {
		return nil // already gone
	}
	return err
}

// RESTBiometricIndex is the live face-uniqueness adapter.
type RESTBiometricIndex struct {
	client *restClient
}

func NewRESTBiometricIndex(baseURL, apiKey string) *RESTBiometricIndex {
	return &RESTBiometricIndex{client: newRESTClient(baseURL, apiKey)}
}

func (p *RESTBiometricIndex) IndexFace(ctx context.Context, imageURL, correlationID string) (string, error) {
	var out struct {
		RefID string `json:"refId"`
	}
	body := map[string]string{"imageUrl": imageURL, "correlationId": correlationID}
	if err := p.client.do(ctx, http.MethodPost, "/v1/faces", body, &out); err != nil {
		return "", err
	}
	return out.RefID, nil
}

func (p *RESTBiometricIndex) RemoveFace(ctx context.Context, refID string) error {
	err := p.client.do(ctx, http.MethodDelete, "/v1/faces/"+url.PathEscape(refID), nil, nil)
	if err == domainerrors.ErrNotFound {
		return nil
	}
	return err
}

// RESTPayment is the live payment-provider adapter.
type RESTPayment struct {
	client *restClient
}

func NewRESTPayment(baseURL, apiKey string) *RESTPayment {
	return &RESTPayment{client: newRESTClient(baseURL, apiKey)}
}

func (p *RESTPayment) CreateCustomer(ctx context.Context, email, uid string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]string{"email": email, "externalRef": uid}
	if err := p.client.do(ctx, http.MethodPost, "/v1/customers", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (p *RESTPayment) DeleteCustomer(ctx context.Context, customerID string) error {
	err := p.client.do(ctx, http.MethodDelete, "/v1/customers/"+url.PathEscape(customerID), nil, nil)
	if err == domainerrors.ErrNotFound {
		return nil
	}
	return err
}

func (p *RESTPayment) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodRef string) error {
	body := map[string]string{"paymentMethod": paymentMethodRef}
	return p.client.do(ctx, http.MethodPost, "/v1/customers/"+url.PathEscape(customerID)+"/payment_methods", body, nil)
}

func (p *RESTPayment) CreateSubscription(ctx context.Context, customerID, planID, paymentMethodRef string) (*providers.SubscriptionResult, error) {
	var out struct {
		ID           string     `json:"id"`
		IntentID     string     `json:"paymentIntent"`
		InvoiceID    string     `json:"latestInvoice"`
		Status       string     `json:"status"`
		ClientSecret string     `json:"clientSecret"`
		PeriodEnd    *time.Time `json:"currentPeriodEnd"`
	}
	body := map[string]string{
		"customer":      customerID,
		"plan":          planID,
		"paymentMethod": paymentMethodRef,
	}
	if err := p.client.do(ctx, http.MethodPost, "/v1/subscriptions", body, &out); err != nil {
		return nil, err
	}
	return &providers.SubscriptionResult{
		SubscriptionID: out.ID,
		IntentID:       out.IntentID,
		InvoiceID:      out.InvoiceID,
		Status:         providers.ChargeStatus(out.Status),
		ClientSecret:   out.ClientSecret,
		PeriodEnd:      out.PeriodEnd,
	}, nil
}

func (p *RESTPayment) GetSubscription(ctx context.Context, subscriptionID string) (*providers.Subscription, error) {
	var out providers.Subscription
	if err := p.client.do(ctx, http.MethodGet, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *RESTPayment) GetInvoice(ctx context.Context, invoiceID string) (*providers.Invoice, error) {
	var out providers.Invoice
	if err := p.client.do(ctx, http.MethodGet, "/v1/invoices/"+url.PathEscape(invoiceID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *RESTPayment) LatestCharge(ctx context.Context, customerID string) (*providers.Charge, error) {
	var out struct {
		Data []*providers.Charge `json:"data"`
	}
	path := "/v1/charges?customer=" + url.QueryEscape(customerID) + "&limit=1"
	if err := p.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, domainerrors.ErrNotFound
	}
	return out.Data[0], nil
}

func (p *RESTPayment) ListRecentIntents(ctx context.Context, customerID string, since time.Time) ([]*providers.Intent, error) {
	var out struct {
		Data []*providers.Intent `json:"data"`
	}
	path := fmt.Sprintf("/v1/payment_intents?customer=%s&created_after=%d", url.QueryEscape(customerID), since.Unix())
	if err := p.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (p *RESTPayment) GetIntent(ctx context.Context, intentID string) (*providers.Intent, error) {
	var out providers.Intent
	if err := p.client.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RESTAvatarStudio is the live generative-avatar adapter.
type RESTAvatarStudio struct {
	client *restClient
}

func NewRESTAvatarStudio(baseURL, apiKey string) *RESTAvatarStudio {
	return &RESTAvatarStudio{client: newRESTClient(baseURL, apiKey)}
}

func (p *RESTAvatarStudio) ListStyles(ctx context.Context, gender string) ([]providers.AvatarStyle, error) {
	var out struct {
		Styles []providers.AvatarStyle `json:"styles"`
	}
	if err := p.client.do(ctx, http.MethodGet, "/v1/styles?gender="+url.QueryEscape(gender), nil, &out); err != nil {
		return nil, err
	}
	return out.Styles, nil
}

func (p *RESTAvatarStudio) Generate(ctx context.Context, sourceImageURL, styleRef string) (*providers.Generation, error) {
	var out struct {
		ImageURL     string `json:"imageUrl"`
		GenerationID string `json:"generationId"`
	}
	body := map[string]string{"sourceImage": sourceImageURL, "style": styleRef}
	if err := p.client.do(ctx, http.MethodPost, "/v1/generations", body, &out); err != nil {
		return nil, err
	}
	return &providers.Generation{ImageURL: out.ImageURL, GenerationID: out.GenerationID}, nil
}

// RESTDocumentPress is the live credential-document adapter.
type RESTDocumentPress struct {
	client *restClient
}

func NewRESTDocumentPress(baseURL, apiKey string) *RESTDocumentPress {
	return &RESTDocumentPress{client: newRESTClient(baseURL, apiKey)}
}

func (p *RESTDocumentPress) Assemble(ctx context.Context, profile providers.PassportProfile) (string, error) {
	var out struct {
		DocumentURL string `json:"documentUrl"`
	}
	body := map[string]interface{}{
		"citizenId": profile.CitizenID,
		"email":     profile.Email,
		"avatarUrl": profile.AvatarURL,
		"issuedAt":  profile.IssuedAt,
	}
	if err := p.client.do(ctx, http.MethodPost, "/v1/passports", body, &out); err != nil {
		return "", err
	}
	return out.DocumentURL, nil
}
