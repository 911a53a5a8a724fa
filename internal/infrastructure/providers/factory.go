package providers

import (
	"fmt"

	"civitas.backend/internal/config"
	"civitas.backend/internal/domain/providers"
)

// Set bundles the five external-service adapters the saga depends on.
type Set struct {
	Identity  providers.Identity
	Biometric providers.BiometricIndex
	Payment   providers.Payment
	Avatar    providers.AvatarStudio
	Document  providers.DocumentPress
}

// New builds the adapter set for the configured mode. The mode is decided
// here, once, at process start; callers only ever see the interfaces.
func New(cfg config.ProvidersConfig) (*Set, error) {
	switch cfg.Mode {
	case "mock":
		return &Set{
			Identity:  NewMockIdentity(),
			Biometric: NewMockBiometricIndex(),
			Payment:   NewMockPayment(),
			Avatar:    NewMockAvatarStudio(),
			Document:  NewMockDocumentPress(),
		}, nil
	case "live":
		return &Set{
			Identity:  NewRESTIdentity(cfg.IdentityBaseURL, cfg.IdentityAPIKey),
			Biometric: NewRESTBiometricIndex(cfg.BiometricBaseURL, cfg.BiometricAPIKey),
			Payment:   NewRESTPayment(cfg.PaymentBaseURL, cfg.PaymentAPIKey),
			Avatar:    NewRESTAvatarStudio(cfg.AvatarBaseURL, cfg.AvatarAPIKey),
			Document:  NewRESTDocumentPress(cfg.DocumentBaseURL, cfg.DocumentAPIKey),
		}, nil
	default:
		return nil, fmt.Errorf("unknown providers mode %q", cfg.Mode)
	}
}
