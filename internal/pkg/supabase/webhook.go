package supabase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// Auth webhook types as delivered by the identity provider's database
// webhooks on the users table.
const (
	AuthEventInsert = "INSERT"
	AuthEventUpdate = "UPDATE"
	AuthEventDelete = "DELETE"
)

// AuthRecord is the row image carried in an auth webhook.
type AuthRecord struct {
	ID               string       `json:"id"`
	Email            string       `json:"email"`
	EmailConfirmedAt *string      `json:"email_confirmed_at"`
	UserMetadata     UserMetadata `json:"user_metadata"`
}

// AuthWebhookPayload is the auth webhook body shape.
type AuthWebhookPayload struct {
	Type      string      `json:"type"`
	Table     string      `json:"table"`
	Record    AuthRecord  `json:"record"`
	OldRecord *AuthRecord `json:"old_record"`
}

// FullName mirrors AuthUser.FullName for webhook records.
func (r AuthRecord) FullName() string {
	if name := strings.TrimSpace(r.UserMetadata.FullName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(r.Email, "@")
	return local
}

// ParseAuthWebhook decodes and structurally validates an auth webhook body.
func ParseAuthWebhook(raw []byte) (*AuthWebhookPayload, error) {
	var payload AuthWebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.Type == "" {
		return nil, errors.New("webhook payload is missing type")
	}
	return &payload, nil
}

// VerifyWebhookSignature checks the x-supabase-signature header against the
// configured webhook secret: hex-encoded HMAC-SHA256 over the exact raw
// request bytes. Anything malformed counts as invalid.
func VerifyWebhookSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}
