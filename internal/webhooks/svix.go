// Package webhooks verifies signed deliveries from the identity provider's
// webhook sender (Svix signing scheme).
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"

	secretPrefix     = "whsec_"
	signatureVersion = "v1"
)

// DefaultTolerance bounds how far a delivery timestamp may drift from the local clock.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingHeaders      = errors.New("webhooks: missing signature headers")
	ErrInvalidSecret       = errors.New("webhooks: invalid signing secret")
	ErrInvalidTimestamp    = errors.New("webhooks: invalid timestamp")
	ErrTimestampOutOfRange = errors.New("webhooks: timestamp outside tolerance")
	ErrInvalidSignature    = errors.New("webhooks: no matching signature")
)

// Headers carries the signature headers of one delivery.
type Headers struct {
	ID        string
	Timestamp string
	Signature string
}

// HeadersFrom extracts the signature headers from an inbound request.
func HeadersFrom(h http.Header) Headers {
	return Headers{
		ID:        strings.TrimSpace(h.Get(HeaderID)),
		Timestamp: strings.TrimSpace(h.Get(HeaderTimestamp)),
		Signature: strings.TrimSpace(h.Get(HeaderSignature)),
	}
}

// Complete reports whether all three headers are present.
func (h Headers) Complete() bool {
	return h.ID != "" && h.Timestamp != "" && h.Signature != ""
}

// Verifier checks deliveries against a shared secret.
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier decodes a "whsec_"-prefixed (or bare base64) secret.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimPrefix(strings.TrimSpace(secret), secretPrefix)
	if secret == "" {
		return nil, ErrInvalidSecret
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: secret is not base64", ErrInvalidSecret)
	}
	return &Verifier{key: key, tolerance: DefaultTolerance, now: time.Now}, nil
}

// WithClock overrides the time source. Intended for tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	if now != nil {
		v.now = now
	}
	return v
}

// Verify checks payload, the exact bytes received, against the headers.
func (v *Verifier) Verify(payload []byte, headers Headers) error {
	if !headers.Complete() {
		return ErrMissingHeaders
	}

	seconds, err := strconv.ParseInt(headers.Timestamp, 10, 64)
	if err != nil {
		return ErrInvalidTimestamp
	}
	sent := time.Unix(seconds, 0)
	now := v.now()
	if now.Sub(sent) > v.tolerance || sent.Sub(now) > v.tolerance {
		return ErrTimestampOutOfRange
	}

	expected := v.mac(headers.ID, headers.Timestamp, payload)
	for _, candidate := range strings.Fields(headers.Signature) {
		version, encoded, ok := strings.Cut(candidate, ",")
		if !ok || version != signatureVersion {
			continue
		}
		sig, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		if hmac.Equal(sig, expected) {
			return nil
		}
	}

	return ErrInvalidSignature
}

// Sign returns a signature header value for payload.
func (v *Verifier) Sign(id string, timestamp time.Time, payload []byte) string {
	ts := strconv.FormatInt(timestamp.Unix(), 10)
	return signatureVersion + "," + base64.StdEncoding.EncodeToString(v.mac(id, ts, payload))
}

func (v *Verifier) mac(id, timestamp string, payload []byte) []byte {
	mac := hmac.New(sha256.New, v.key)
	mac.Write([]byte(id))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}
