// Package common defines shared constants and sentinel errors used across
// the crypto core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Crypto errors.
	ErrAuthentication = errors.New("ciphertext authentication failed")

	// Key lifecycle errors. A missing key is an expected state, not a bug;
	// services translate it into plaintext/blocked behavior, never a crash.
	ErrEncryptionUnavailable = errors.New("encryption unavailable")
	ErrKeysNotInitialized    = errors.New("keys not initialized")

	// Caller input errors, surfaced directly to the UI collaborator.
	ErrPasswordRequired = errors.New("password required")
	ErrValidation       = errors.New("validation error")
	ErrInvalidFormat    = errors.New("invalid format")

	// Archive lifecycle errors.
	ErrNotFound        = errors.New("not found")
	ErrRecoveryExpired = errors.New("recovery window expired")
)
