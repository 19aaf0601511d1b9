package webhook

import (
	"context"
	"crypto/hmac"
	"net/http"

	"payhub/internal/gateway"
)

const CallbackTokenHeader = "X-Callback-Token"

// TokenVerifier checks the shared callback token Xendit sends with every notification.
type TokenVerifier struct {
	source SecretSource
}

func NewTokenVerifier(source SecretSource) *TokenVerifier {
	return &TokenVerifier{source: source}
}

func (v *TokenVerifier) Provider() gateway.Provider { return gateway.ProviderXendit }

func (v *TokenVerifier) Verify(ctx context.Context, _ []byte, headers http.Header) error {
	creds, err := v.source.Credentials(ctx, gateway.ProviderXendit)
	if err != nil {
		return err
	}
	if creds.CallbackToken == "" {
		return unauthenticated("callback token not configured")
	}

	got := headers.Get(CallbackTokenHeader)
	if got == "" {
		return unauthenticated("missing callback token")
	}
	if !hmac.Equal([]byte(got), []byte(creds.CallbackToken)) {
		return unauthenticated("callback token mismatch")
	}
	return nil
}
