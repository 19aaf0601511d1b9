package gateway

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// Config is one payment_gateway_configs row. At most one row is primary.
type Config struct {
	Provider         Provider       `db:"provider" json:"provider"`
	DisplayName      string         `db:"display_name" json:"display_name"`
	IsActive         bool           `db:"is_active" json:"is_active"`
	IsPrimary        bool           `db:"is_primary" json:"is_primary"`
	Settings         types.JSONText `db:"config" json:"-"`
	SupportedMethods pq.StringArray `db:"supported_methods" json:"supported_methods"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// Credentials are the provider secrets. Fields left empty on a row fall back to
// the environment defaults.
type Credentials struct {
	SecretKey     string `json:"secret_key,omitempty"`
	CallbackToken string `json:"callback_token,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
	BaseURL       string `json:"base_url,omitempty"`
	NotifyTarget  string `json:"notify_target,omitempty"`
}

func (c Config) Credentials() (Credentials, error) {
	var creds Credentials
	if len(c.Settings) == 0 {
		return creds, nil
	}
	if err := json.Unmarshal(c.Settings, &creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Supports reports whether method may be requested on this gateway. An empty
// method lets the hosted page offer every channel, and an empty list allows any.
func (c Config) Supports(method string) bool {
	if method == "" || len(c.SupportedMethods) == 0 {
		return true
	}
	for _, m := range c.SupportedMethods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// Merge returns c with empty fields filled from fallback.
func (c Credentials) Merge(fallback Credentials) Credentials {
	if c.SecretKey == "" {
		c.SecretKey = fallback.SecretKey
	}
	if c.CallbackToken == "" {
		c.CallbackToken = fallback.CallbackToken
	}
	if c.ClientID == "" {
		c.ClientID = fallback.ClientID
	}
	if c.BaseURL == "" {
		c.BaseURL = fallback.BaseURL
	}
	if c.NotifyTarget == "" {
		c.NotifyTarget = fallback.NotifyTarget
	}
	return c
}

// Redacted hides secrets for admin listings.
func (c Credentials) Redacted() map[string]string {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		if len(s) <= 4 {
			return "****"
		}
		return "****" + s[len(s)-4:]
	}
	return map[string]string{
		"secret_key":     mask(c.SecretKey),
		"callback_token": mask(c.CallbackToken),
		"client_id":      c.ClientID,
		"base_url":       c.BaseURL,
	}
}
