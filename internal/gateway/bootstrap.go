package gateway

import (
	"context"
	"errors"
	"fmt"

	"payhub/internal/config"
	"payhub/internal/logger"
)

// NewRegistryFromConfig registers both providers with their environment credentials.
func NewRegistryFromConfig(repo ConfigRepository, cfg config.GatewayConfig) *Registry {
	r := NewRegistry(repo, cfg.Timeout)
	r.Register(ProviderXendit, XenditFactory, Credentials{
		SecretKey:     cfg.XenditSecretKey,
		CallbackToken: cfg.XenditCallbackToken,
		BaseURL:       cfg.XenditBaseURL,
	})
	r.Register(ProviderDoku, DokuFactory, Credentials{
		ClientID:     cfg.DokuClientID,
		SecretKey:    cfg.DokuSecretKey,
		BaseURL:      cfg.DokuBaseURL,
		NotifyTarget: cfg.DokuNotifyTarget,
	})
	return r
}

// EnsurePrimary promotes fallback when no row is both active and primary.
// An existing primary is never overridden.
func EnsurePrimary(ctx context.Context, repo ConfigRepository, fallback string) error {
	_, err := repo.ActivePrimary(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNoActiveGateway) {
		return err
	}

	p, err := ParseProvider(fallback)
	if err != nil {
		return fmt.Errorf("default gateway: %w", err)
	}
	if err := repo.SetPrimary(ctx, p); err != nil {
		return fmt.Errorf("promote %s: %w", p, err)
	}
	logger.Warn("no active gateway configured, promoted default", "provider", p)
	return nil
}
