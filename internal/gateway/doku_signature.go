package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const DokuSignaturePrefix = "HMACSHA256="

// DokuComponents are the header values folded into a DOKU request signature.
// RequestID and Target are optional; without them the canonical form is
// "Client-Id:{id}\nRequest-Timestamp:{ts}\nDigest:{digest}".
type DokuComponents struct {
	ClientID  string
	RequestID string
	Timestamp string
	Target    string
	Digest    string
}

func (c DokuComponents) Canonical() string {
	parts := []string{"Client-Id:" + c.ClientID}
	if c.RequestID != "" {
		parts = append(parts, "Request-Id:"+c.RequestID)
	}
	parts = append(parts, "Request-Timestamp:"+c.Timestamp)
	if c.Target != "" {
		parts = append(parts, "Request-Target:"+c.Target)
	}
	if c.Digest != "" {
		parts = append(parts, "Digest:"+c.Digest)
	}
	return strings.Join(parts, "\n")
}

// DokuDigest is base64(SHA-256(body)) over the exact bytes on the wire.
func DokuDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// SignDoku returns the Signature header value, prefix included.
func SignDoku(secret string, c DokuComponents) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(c.Canonical()))
	return DokuSignaturePrefix + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
