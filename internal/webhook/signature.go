package webhook

import (
	"context"
	"crypto/hmac"
	"net/http"

	"payhub/internal/gateway"
)

const (
	ClientIDHeader         = "Client-Id"
	RequestIDHeader        = "Request-Id"
	RequestTimestampHeader = "Request-Timestamp"
	SignatureHeader        = "Signature"
)

// SignatureVerifier checks DOKU's HMAC-SHA256 notification signature.
// The three-line form (Client-Id, Request-Timestamp, Digest) is always
// accepted. When the request carries a Request-Id or the provider has a notify
// target configured, the extended form with those lines is accepted too.
type SignatureVerifier struct {
	source SecretSource
}

func NewSignatureVerifier(source SecretSource) *SignatureVerifier {
	return &SignatureVerifier{source: source}
}

func (v *SignatureVerifier) Provider() gateway.Provider { return gateway.ProviderDoku }

func (v *SignatureVerifier) Verify(ctx context.Context, rawBody []byte, headers http.Header) error {
	creds, err := v.source.Credentials(ctx, gateway.ProviderDoku)
	if err != nil {
		return err
	}
	if creds.ClientID == "" || creds.SecretKey == "" {
		return unauthenticated("signature secret not configured")
	}

	clientID := headers.Get(ClientIDHeader)
	timestamp := headers.Get(RequestTimestampHeader)
	signature := headers.Get(SignatureHeader)
	if clientID == "" || timestamp == "" || signature == "" {
		return unauthenticated("missing signature headers")
	}
	if !hmac.Equal([]byte(clientID), []byte(creds.ClientID)) {
		return unauthenticated("client id mismatch")
	}

	base := gateway.DokuComponents{
		ClientID:  clientID,
		Timestamp: timestamp,
		Digest:    gateway.DokuDigest(rawBody),
	}
	if hmac.Equal([]byte(signature), []byte(gateway.SignDoku(creds.SecretKey, base))) {
		return nil
	}

	extended := base
	extended.RequestID = headers.Get(RequestIDHeader)
	extended.Target = creds.NotifyTarget
	if extended != base && hmac.Equal([]byte(signature), []byte(gateway.SignDoku(creds.SecretKey, extended))) {
		return nil
	}
	return unauthenticated("signature mismatch")
}
