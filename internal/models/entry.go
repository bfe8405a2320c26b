// Package models defines the data types exchanged between the crypto core
// and its storage collaborators. Encrypted fields hold serialized envelope
// JSON; the storage layer treats them as opaque strings.
package models

import "time"

// DiaryEntry is a journal entry. When IsEncrypted is true the Content field
// holds a serialized cryptox.Envelope rather than readable text, and each
// media item's sensitive metadata is wrapped the same way.
type DiaryEntry struct {
	// ID is a globally unique identifier for the entry.
	ID string `json:"id"`

	// CoupleID scopes the entry to one relationship; key resolution at
	// read time goes through this, never through a direct key pointer.
	CoupleID string `json:"coupleId"`

	// AuthorID identifies which partner wrote the entry.
	AuthorID string `json:"authorId"`

	// Content is either readable text or envelope JSON (see IsEncrypted).
	Content string `json:"content"`

	// Mood is a short free-form label. Not encrypted: it feeds aggregate
	// views that must work without key material.
	Mood string `json:"mood,omitempty"`

	// IsEncrypted marks Content (and media metadata) as ciphertext.
	IsEncrypted bool `json:"isEncrypted"`

	// Media lists attachments. The binaries live in object storage; only
	// their metadata travels through this layer.
	Media []MediaItem `json:"media,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MediaItem carries an attachment's metadata. When IsEncrypted is true the
// Filename and OriginURL fields are empty and Meta holds their envelope.
type MediaItem struct {
	ID string `json:"id"`

	// Filename is the user-visible name of the attachment.
	Filename string `json:"filename,omitempty"`

	// OriginURL is where the binary was uploaded from or is served at.
	OriginURL string `json:"originUrl,omitempty"`

	// StorageKey addresses the binary in object storage. Never encrypted:
	// the storage collaborator needs it to serve the file.
	StorageKey string `json:"storageKey,omitempty"`

	// IsEncrypted marks the sensitive metadata as wrapped in Meta.
	IsEncrypted bool `json:"isEncrypted"`

	// Meta is the envelope JSON for {filename, originUrl} when encrypted.
	Meta string `json:"meta,omitempty"`
}

// MediaMeta is the plaintext shape wrapped into MediaItem.Meta.
type MediaMeta struct {
	Filename  string `json:"filename"`
	OriginURL string `json:"originUrl"`
}

// MediaStrippedPlaceholder replaces media URLs in exports that exclude media.
const MediaStrippedPlaceholder = "[media omitted]"
