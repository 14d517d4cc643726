package supabase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"INSERT","table":"users"}`)
	secret := "whsec-test"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	if !VerifyWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if VerifyWebhookSignature(payload, validSig, "wrong-secret") {
		t.Fatalf("expected wrong secret to fail")
	}
	if VerifyWebhookSignature(payload, "deadbeef", secret) {
		t.Fatalf("expected invalid signature to fail")
	}
	if VerifyWebhookSignature(payload, "", secret) {
		t.Fatalf("expected empty signature to fail")
	}
	if VerifyWebhookSignature(payload, validSig, "") {
		t.Fatalf("expected empty secret to fail")
	}

	// Single tampered byte must flip the result.
	tampered := []byte(validSig)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	if VerifyWebhookSignature(payload, string(tampered), secret) {
		t.Fatalf("expected tampered signature to fail")
	}

	// Signature over different bytes must not validate, even for
	// semantically identical JSON.
	reordered := []byte(`{"table":"users","type":"INSERT"}`)
	if VerifyWebhookSignature(reordered, validSig, secret) {
		t.Fatalf("expected signature over different raw bytes to fail")
	}
}

func TestParseAuthWebhook(t *testing.T) {
	raw := []byte(`{
		"type": "INSERT",
		"table": "users",
		"record": {
			"id": "u-1",
			"email": "a@x.com",
			"user_metadata": { "full_name": "Ana" }
		},
		"old_record": null
	}`)

	payload, err := ParseAuthWebhook(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if payload.Type != AuthEventInsert || payload.Table != "users" {
		t.Fatalf("unexpected envelope: type=%q table=%q", payload.Type, payload.Table)
	}
	if payload.Record.ID != "u-1" || payload.Record.Email != "a@x.com" {
		t.Fatalf("unexpected record: %+v", payload.Record)
	}
	if got := payload.Record.FullName(); got != "Ana" {
		t.Fatalf("FullName() = %q, want %q", got, "Ana")
	}

	if _, err := ParseAuthWebhook([]byte(`{"table":"users"}`)); err == nil {
		t.Fatalf("expected missing type to fail")
	}
	if _, err := ParseAuthWebhook([]byte(`not-json`)); err == nil {
		t.Fatalf("expected malformed body to fail")
	}
}

func TestAuthRecordFullNameFallback(t *testing.T) {
	rec := AuthRecord{ID: "u-2", Email: "jane.doe@example.com"}
	if got := rec.FullName(); got != "jane.doe" {
		t.Fatalf("FullName() = %q, want local part fallback", got)
	}
}
