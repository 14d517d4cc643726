package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds how old a signed timestamp may be before the
// signature is rejected as stale.
const DefaultTolerance = 5 * time.Minute

var (
	ErrInvalidHeader    = errors.New("invalid Stripe-Signature header")
	ErrNoValidSignature = errors.New("no valid signature found")
	ErrTooOld           = errors.New("signed timestamp outside tolerance")
)

// EventObject carries the fields of the event's primary object that the
// payment handlers act on.
type EventObject struct {
	ID         string            `json:"id"`
	Customer   string            `json:"customer"`
	Status     string            `json:"status"`
	AmountPaid int64             `json:"amount_paid"`
	Metadata   map[string]string `json:"metadata"`
}

// EventData wraps the event object.
type EventData struct {
	Object EventObject `json:"object"`
}

// Event is the canonical webhook event, constructed from the exact raw
// request bytes after signature verification.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Created    int64     `json:"created"`
	Livemode   bool      `json:"livemode"`
	APIVersion string    `json:"api_version"`
	Data       EventData `json:"data"`
}

// ConstructEvent verifies the Stripe-Signature header over the raw payload
// and, only on success, parses the canonical event. The header carries a
// signed unix timestamp and one or more v1 signatures:
//
//	t=1712345678,v1=5257a869e7...,v1=...
//
// where v1 = hex(HMAC-SHA256(secret, "<t>.<payload>")). Verification fails
// closed: any malformed header, mismatching signature or stale timestamp is
// an error and the payload must not be trusted.
func ConstructEvent(payload []byte, sigHeader, secret string) (*Event, error) {
	return constructEventAt(payload, sigHeader, secret, DefaultTolerance, time.Now())
}

func constructEventAt(payload []byte, sigHeader, secret string, tolerance time.Duration, now time.Time) (*Event, error) {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, err
	}

	if now.Sub(time.Unix(timestamp, 0)) > tolerance {
		return nil, ErrTooOld
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	valid := false
	for _, sig := range signatures {
		decoded, decodeErr := hex.DecodeString(sig)
		if decodeErr != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, ErrNoValidSignature
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, errors.New("webhook event is missing id or type")
	}
	return &event, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, ErrInvalidHeader
	}

	var timestamp int64 = -1
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, ErrInvalidHeader
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidHeader
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, value)
		}
		// Unknown schemes (v0 etc.) are ignored.
	}

	if timestamp < 0 || len(signatures) == 0 {
		return 0, nil, ErrInvalidHeader
	}
	return timestamp, signatures, nil
}
