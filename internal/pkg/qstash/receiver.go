package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// ErrInvalidSignature is returned for any delivery whose signature cannot be
// positively verified. There is deliberately no distinction between "wrong
// key", "expired" and "malformed" - all of them mean the request body must
// not be trusted.
var ErrInvalidSignature = errors.New("invalid queue delivery signature")

const signatureIssuer = "Upstash"

type receiverClaims struct {
	jwt.RegisteredClaims
	Body string `json:"body"`
}

// Receiver verifies the signature the queue service attaches to every
// delivery it pushes at our worker endpoints. The signature is an HS256 JWT
// over the delivery; the service rotates its signing key, so a delivery is
// accepted when the token verifies under either the current or the next key.
type Receiver struct {
	CurrentSigningKey string
	NextSigningKey    string
}

// Verify checks signature against the raw request body and the destination
// url the delivery was addressed to. Fail closed: every verification problem
// collapses into ErrInvalidSignature.
func (r *Receiver) Verify(body []byte, signature, url string) error {
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return ErrInvalidSignature
	}

	if r.verifyWithKey(body, sig, url, r.CurrentSigningKey) {
		return nil
	}
	if r.verifyWithKey(body, sig, url, r.NextSigningKey) {
		return nil
	}
	return ErrInvalidSignature
}

func (r *Receiver) verifyWithKey(body []byte, signature, url, key string) bool {
	if strings.TrimSpace(key) == "" {
		return false
	}

	claims := &receiverClaims{}
	token, err := jwt.ParseWithClaims(signature, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return false
	}

	if claims.Issuer != signatureIssuer {
		return false
	}
	if url != "" && claims.Subject != url {
		return false
	}

	sum := sha256.Sum256(body)
	expected := base64.RawURLEncoding.EncodeToString(sum[:])
	got := strings.TrimRight(claims.Body, "=")
	return got == expected
}
