package playback

import (
	"bytes"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// ImportKey parses RS256 signing material. Accepted forms are a JWK document, a
// PEM encoded PKCS#1 or PKCS#8 key, or either of those wrapped in base64 (the
// form the streaming platform hands out when a signing key is created).
//
// Returned errors wrap ErrKeyImport and never include the material itself.
func ImportKey(material string) (*rsa.PrivateKey, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return nil, fmt.Errorf("%w: empty key material", ErrKeyImport)
	}

	for _, candidate := range keyCandidates(material) {
		key, ok := parseCandidate(candidate)
		if !ok {
			continue
		}
		if err := key.Validate(); err != nil {
			return nil, fmt.Errorf("%w: invalid rsa key", ErrKeyImport)
		}
		return key, nil
	}

	return nil, fmt.Errorf("%w: unrecognised key format", ErrKeyImport)
}

func keyCandidates(material string) [][]byte {
	candidates := [][]byte{[]byte(material)}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		decoded, err := enc.DecodeString(material)
		if err != nil {
			continue
		}
		candidates = append(candidates, bytes.TrimSpace(decoded))
		break
	}
	return candidates
}

func parseCandidate(raw []byte) (*rsa.PrivateKey, bool) {
	switch {
	case bytes.HasPrefix(raw, []byte("{")):
		var jwk jose.JSONWebKey
		if err := jwk.UnmarshalJSON(raw); err != nil {
			return nil, false
		}
		key, ok := jwk.Key.(*rsa.PrivateKey)
		return key, ok
	case bytes.Contains(raw, []byte("-----BEGIN")):
		key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
		if err != nil {
			return nil, false
		}
		return key, true
	default:
		return nil, false
	}
}
