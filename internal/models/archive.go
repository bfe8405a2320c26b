package models

import "time"

// BreakupArchive is the persisted record of a breakup-mode archival. The
// payload is an envelope over a full export bundle, encrypted under a fresh
// high-entropy archive password. Once the couple's keys are cleared, this
// envelope is the only remaining path to the data.
type BreakupArchive struct {
	ID       string `json:"id"`
	CoupleID string `json:"coupleId"`
	UserID   string `json:"userId"`

	ArchivedAt time.Time `json:"archivedAt"`
	Reason     string    `json:"reason,omitempty"`

	// RecoveryExpiresAt is ArchivedAt plus the configured recovery window.
	RecoveryExpiresAt time.Time `json:"recoveryExpiresAt"`
	IsRecoverable     bool      `json:"isRecoverable"`

	// EncryptedData is the inline envelope JSON. Empty when the payload was
	// offloaded to blob storage, in which case StorageKey addresses it.
	EncryptedData string `json:"encryptedData,omitempty"`
	StorageKey    string `json:"storageKey,omitempty"`

	// Checksum covers the serialized envelope bytes.
	Checksum string `json:"checksum"`

	// KeyHint is a coarse, non-secret descriptor of the archive password's
	// shape ("24 chars, letters/digits/symbols"), never the password.
	KeyHint string `json:"keyHint,omitempty"`

	// RecoveryEnvelope optionally holds the archive password encrypted
	// under a deterministic archive-id-scoped recovery key. Empty when the
	// caller opted out of recovery-key persistence.
	RecoveryEnvelope string `json:"recoveryEnvelope,omitempty"`
}

// Expired reports whether the recovery window has lapsed at now.
func (a *BreakupArchive) Expired(now time.Time) bool {
	return now.After(a.RecoveryExpiresAt)
}
