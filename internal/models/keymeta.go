package models

import "time"

// KeyPurpose scopes a symmetric key to one use, limiting the blast radius
// of any single key's compromise.
type KeyPurpose string

const (
	PurposeDiary  KeyPurpose = "diary"
	PurposeMedia  KeyPurpose = "media"
	PurposeBackup KeyPurpose = "backup"
)

// Purposes lists every purpose a couple's key set covers.
var Purposes = []KeyPurpose{PurposeDiary, PurposeMedia, PurposeBackup}

// KeyMetadata is the non-secret record persisted for each purpose key.
// Raw key bytes never appear here; this row answers "is encryption enabled"
// without touching secret material.
type KeyMetadata struct {
	// KeyID names the key in the session KeyStore.
	KeyID string `json:"keyId"`

	CoupleID string     `json:"coupleId"`
	Purpose  KeyPurpose `json:"purpose"`

	// Algorithm the key is intended for (cryptox.Algorithm).
	Algorithm string `json:"algorithm"`

	// Version increments on each rotation, starting at 1.
	Version int `json:"version"`

	// Salt is the base64 KDF base salt for password-derived key sets, empty
	// for random ones. Non-secret: without the passphrase it reveals nothing,
	// and it is required to re-derive the same keys in a later session.
	Salt string `json:"salt,omitempty"`

	CreatedAt  time.Time `json:"createdAt"`
	LastUsedAt time.Time `json:"lastUsedAt"`
}
