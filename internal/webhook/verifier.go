package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"payhub/internal/gateway"
)

var ErrUnauthenticated = errors.New("webhook authentication failed")

// Verifier authenticates a gateway notification against the exact bytes received.
type Verifier interface {
	Provider() gateway.Provider
	Verify(ctx context.Context, rawBody []byte, headers http.Header) error
}

// SecretSource yields the current credentials of a provider. gateway.Registry
// satisfies it, so rotated secrets apply without a restart.
type SecretSource interface {
	Credentials(ctx context.Context, p gateway.Provider) (gateway.Credentials, error)
}

type StaticSource map[gateway.Provider]gateway.Credentials

func (s StaticSource) Credentials(_ context.Context, p gateway.Provider) (gateway.Credentials, error) {
	creds, ok := s[p]
	if !ok {
		return gateway.Credentials{}, fmt.Errorf("%w: %q", gateway.ErrUnknownProvider, p)
	}
	return creds, nil
}

// NewVerifiers returns one verifier per supported provider.
func NewVerifiers(source SecretSource) map[gateway.Provider]Verifier {
	return map[gateway.Provider]Verifier{
		gateway.ProviderXendit: NewTokenVerifier(source),
		gateway.ProviderDoku:   NewSignatureVerifier(source),
	}
}

func unauthenticated(reason string) error {
	return fmt.Errorf("%w: %s", ErrUnauthenticated, reason)
}
