package order

import (
	"crypto/rand"
	"math/big"
	"time"
)

const (
	externalIDPrefix    = "TOP"
	externalIDRandomLen = 12
	externalIDMaxLen    = 30
	externalIDAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewExternalID returns TOP + YYYYMMDD + 12 random uppercase alphanumerics.
func NewExternalID(now time.Time) (string, error) {
	buf := make([]byte, 0, len(externalIDPrefix)+8+externalIDRandomLen)
	buf = append(buf, externalIDPrefix...)
	buf = now.UTC().AppendFormat(buf, "20060102")

	max := big.NewInt(int64(len(externalIDAlphabet)))
	for i := 0; i < externalIDRandomLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf = append(buf, externalIDAlphabet[n.Int64()])
	}
	return string(buf), nil
}

// ValidExternalID accepts non-empty alphanumeric ids up to 30 characters.
func ValidExternalID(id string) bool {
	if id == "" || len(id) > externalIDMaxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}
