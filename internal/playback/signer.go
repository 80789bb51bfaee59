// Package playback issues signed, time-limited playback tokens for streaming
// platform assets that require signed URLs.
package playback

import (
	"crypto/rsa"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the lifetime of every issued playback token.
const TokenTTL = time.Hour

// AccessRule restricts where a token may be used. Tokens issued here always
// carry a single allow-any rule.
type AccessRule struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// Claims is the payload of a playback token.
type Claims struct {
	jwt.RegisteredClaims
	KeyID       string       `json:"kid"`
	AccessRules []AccessRule `json:"accessRules"`
}

// NewClaims builds the payload for subject, expiring TokenTTL after now.
func NewClaims(subject, keyID string, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		KeyID:       keyID,
		AccessRules: []AccessRule{{Type: "any", Action: "allow"}},
	}
}

// Sign produces a compact RS256 token header.payload.signature scoped to
// subject (the platform media id). keyMaterial is imported with ImportKey.
func Sign(subject, keyID, keyMaterial string, now time.Time) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrInvalidSubject
	}

	key, err := ImportKey(keyMaterial)
	if err != nil {
		return "", err
	}

	return signWithKey(subject, keyID, key, now)
}

func signWithKey(subject, keyID string, key *rsa.PrivateKey, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, NewClaims(subject, keyID, now))
	// The platform expects exactly alg and kid in the header.
	token.Header = map[string]any{
		"alg": jwt.SigningMethodRS256.Alg(),
		"kid": keyID,
	}

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}

// Token is an issued playback credential.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Signer binds a platform signing key to a clock.
type Signer struct {
	KeyID       string
	KeyMaterial string
	NowFunc     func() time.Time
}

// NewSigner constructs a Signer for the given key id and material.
func NewSigner(keyID, keyMaterial string) *Signer {
	return &Signer{KeyID: strings.TrimSpace(keyID), KeyMaterial: keyMaterial}
}

// Configured reports whether both key id and key material are present.
func (s *Signer) Configured() bool {
	return s != nil && s.KeyID != "" && strings.TrimSpace(s.KeyMaterial) != ""
}

// Issue signs a playback token for the given media id.
func (s *Signer) Issue(mediaID string) (Token, error) {
	if !s.Configured() {
		return Token{}, ErrNotConfigured
	}

	now := s.now()
	value, err := Sign(mediaID, s.KeyID, s.KeyMaterial, now)
	if err != nil {
		return Token{}, err
	}

	return Token{Value: value, ExpiresAt: now.Add(TokenTTL).Truncate(time.Second)}, nil
}

// LogValue keeps the key material out of structured logs.
func (s *Signer) LogValue() slog.Value {
	if s == nil {
		return slog.StringValue("<nil>")
	}
	return slog.GroupValue(
		slog.String("kid", s.KeyID),
		slog.Bool("configured", s.Configured()),
	)
}

func (s *Signer) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
