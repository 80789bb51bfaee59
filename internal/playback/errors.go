package playback

import "errors"

var (
	// ErrKeyImport indicates the signing key material could not be parsed as an RSA private key.
	ErrKeyImport = errors.New("playback: import signing key")
	// ErrSigning indicates the cryptographic signing operation rejected its input.
	ErrSigning = errors.New("playback: sign token")
	// ErrInvalidSubject indicates an empty media identifier was supplied.
	ErrInvalidSubject = errors.New("playback: subject is required")
	// ErrNotConfigured indicates the signer lacks a key id or key material.
	ErrNotConfigured = errors.New("playback: signing key not configured")
)
