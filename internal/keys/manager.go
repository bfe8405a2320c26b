// Package keys implements the per-couple key lifecycle: initialization,
// fetch-by-purpose, rotation, export/import for backup, and erasure.
//
// The lifecycle per couple is uninitialized → initialized → rotated* →
// cleared. Cleared is terminal for that key generation; a later initialize
// starts a new generation, it does not resurrect the old one.
package keys

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/cryptox"
	"github.com/couplesdiary/cryptocore/internal/keystore"
	"github.com/couplesdiary/cryptocore/internal/logging"
	"github.com/couplesdiary/cryptocore/internal/models"
	"github.com/couplesdiary/cryptocore/internal/storage/keymeta"
	"github.com/google/uuid"
)

// KeySet bundles a couple's three purpose keys for one generation.
type KeySet struct {
	CoupleID string
	Version  int

	Diary  []byte
	Media  []byte
	Backup []byte
}

// Key returns the member for the given purpose.
func (k *KeySet) Key(purpose models.KeyPurpose) []byte {
	switch purpose {
	case models.PurposeDiary:
		return k.Diary
	case models.PurposeMedia:
		return k.Media
	case models.PurposeBackup:
		return k.Backup
	default:
		return nil
	}
}

// Wipe zeroes all key material in the set.
func (k *KeySet) Wipe() {
	common.WipeByteArray(k.Diary)
	common.WipeByteArray(k.Media)
	common.WipeByteArray(k.Backup)
}

// Rotation carries both key generations across a rotation. The old
// generation stays readable through this handle until Discard, because
// existing ciphertext needs the old keys until the re-encryption sweep has
// processed it. Discarding early makes unswept entries unreadable.
type Rotation struct {
	Old *KeySet
	New *KeySet

	once sync.Once
}

// Discard irreversibly wipes the old generation. Call only after the sweep
// reports zero remaining failures.
func (r *Rotation) Discard() {
	r.once.Do(func() {
		if r.Old != nil {
			r.Old.Wipe()
		}
	})
}

// InitParams configures InitializeCoupleKeys.
type InitParams struct {
	UserID   string
	CoupleID string

	// MasterPassword, when set, derives the three purpose keys
	// independently from the shared passphrase. When nil, three
	// independent random keys are generated instead.
	MasterPassword []byte
}

// Manager owns key lifecycle for all couples in this session. It is the
// only mutator of the KeyStore. Construct one per process (or per test)
// via New; there is deliberately no package-level instance.
type Manager struct {
	store *keystore.KeyStore
	meta  keymeta.Repository
	log   logging.Logger

	mu sync.Mutex
}

// New constructs a Manager.
func New(store *keystore.KeyStore, meta keymeta.Repository, log logging.Logger) *Manager {
	return &Manager{store: store, meta: meta, log: log.With("component", "keys")}
}

func cacheID(coupleID string, purpose models.KeyPurpose) string {
	return coupleID + ":" + string(purpose)
}

// InitializeCoupleKeys creates a fresh key generation for the couple,
// persists metadata (version 1) per purpose, and caches the raw keys for
// the session. With a master password, each purpose key is derived from a
// distinct input so that compromise of one purpose does not reveal another.
func (m *Manager) InitializeCoupleKeys(ctx context.Context, p InitParams) (*KeySet, error) {
	if p.CoupleID == "" {
		return nil, fmt.Errorf("%w: couple id is required", common.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	set := &KeySet{CoupleID: p.CoupleID, Version: 1}
	salt := ""

	if p.MasterPassword != nil {
		baseSalt, err := m.baseSalt(ctx, p.CoupleID)
		if err != nil {
			return nil, err
		}
		set.Diary = cryptox.DeriveKeyForPurpose(p.MasterPassword, baseSalt, string(models.PurposeDiary))
		set.Media = cryptox.DeriveKeyForPurpose(p.MasterPassword, baseSalt, string(models.PurposeMedia))
		set.Backup = cryptox.DeriveKeyForPurpose(p.MasterPassword, baseSalt, string(models.PurposeBackup))
		salt = base64.StdEncoding.EncodeToString(baseSalt)
	} else {
		set.Diary = cryptox.GenerateKey()
		set.Media = cryptox.GenerateKey()
		set.Backup = cryptox.GenerateKey()
	}

	now := time.Now().UTC()
	for _, purpose := range models.Purposes {
		md := &models.KeyMetadata{
			KeyID:      uuid.NewString(),
			CoupleID:   p.CoupleID,
			Purpose:    purpose,
			Algorithm:  cryptox.Algorithm,
			Version:    1,
			Salt:       salt,
			CreatedAt:  now,
			LastUsedAt: now,
		}
		if err := m.meta.Upsert(ctx, md); err != nil {
			return nil, fmt.Errorf("persisting key metadata: %w", err)
		}
		m.store.Store(cacheID(p.CoupleID, purpose), set.Key(purpose))
	}

	m.log.Info(ctx, "couple keys initialized",
		"couple_id", p.CoupleID, "derived", p.MasterPassword != nil)

	return set, nil
}

// baseSalt returns the couple's persisted KDF base salt when a derived
// generation already exists, so the same passphrase re-derives the same keys
// in a later session. A fresh salt is generated otherwise.
func (m *Manager) baseSalt(ctx context.Context, coupleID string) ([]byte, error) {
	md, err := m.meta.Get(ctx, coupleID, models.PurposeDiary)
	if err == nil && md.Salt != "" {
		prev, decErr := base64.StdEncoding.DecodeString(md.Salt)
		if decErr != nil {
			return nil, fmt.Errorf("%w: stored key salt is corrupt", common.ErrInvalidFormat)
		}
		return prev, nil
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("loading key metadata: %w", err)
	}
	return common.GenerateRandByteArray(cryptox.SaltSize), nil
}

// Key returns the cached key for (coupleID, purpose), or nil when keys were
// never initialized or have been cleared. Callers must treat nil as
// "encryption unavailable", not as an error. A hit bumps the key's
// last-used timestamp; that bookkeeping never fails the fetch.
func (m *Manager) Key(ctx context.Context, coupleID string, purpose models.KeyPurpose) []byte {
	key := m.store.Retrieve(cacheID(coupleID, purpose))
	if key != nil {
		if err := m.meta.Touch(ctx, coupleID, purpose); err != nil {
			m.log.Debug(ctx, "key metadata touch failed",
				"couple_id", coupleID, "purpose", string(purpose), "error", err)
		}
	}
	return key
}

// DiaryKey returns the couple's diary key or nil.
func (m *Manager) DiaryKey(ctx context.Context, coupleID string) []byte {
	return m.Key(ctx, coupleID, models.PurposeDiary)
}

// MediaKey returns the couple's media key or nil.
func (m *Manager) MediaKey(ctx context.Context, coupleID string) []byte {
	return m.Key(ctx, coupleID, models.PurposeMedia)
}

// BackupKey returns the couple's backup key or nil.
func (m *Manager) BackupKey(ctx context.Context, coupleID string) []byte {
	return m.Key(ctx, coupleID, models.PurposeBackup)
}

// Status answers "is encryption enabled" for a couple from metadata alone,
// without touching secret material. The returned version is the diary
// key's metadata version, 0 when uninitialized.
func (m *Manager) Status(ctx context.Context, coupleID string) (enabled bool, version int, err error) {
	rows, err := m.meta.ListByCouple(ctx, coupleID)
	if err != nil {
		return false, 0, err
	}
	for _, row := range rows {
		if row.Purpose == models.PurposeDiary {
			return true, row.Version, nil
		}
	}
	return false, 0, nil
}

// currentSet reads the cached generation for a couple; every purpose must
// be present.
func (m *Manager) currentSet(ctx context.Context, coupleID string, version int) (*KeySet, error) {
	set := &KeySet{CoupleID: coupleID, Version: version}
	set.Diary = m.Key(ctx, coupleID, models.PurposeDiary)
	set.Media = m.Key(ctx, coupleID, models.PurposeMedia)
	set.Backup = m.Key(ctx, coupleID, models.PurposeBackup)
	if set.Diary == nil || set.Media == nil || set.Backup == nil {
		return nil, common.ErrKeysNotInitialized
	}
	return set, nil
}

// RotateKeys generates a fresh random generation, supersedes the cached
// keys, and increments each purpose's metadata version. Existing ciphertext
// is NOT re-encrypted here: the caller must run the re-encryption sweep
// with the returned Rotation and call Discard only after it reports clean.
func (m *Manager) RotateKeys(ctx context.Context, coupleID string) (*Rotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, err := m.meta.ListByCouple(ctx, coupleID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, common.ErrKeysNotInitialized
	}
	oldVersion := rows[0].Version

	old, err := m.currentSet(ctx, coupleID, oldVersion)
	if err != nil {
		return nil, err
	}

	next := &KeySet{
		CoupleID: coupleID,
		Version:  oldVersion + 1,
		Diary:    cryptox.GenerateKey(),
		Media:    cryptox.GenerateKey(),
		Backup:   cryptox.GenerateKey(),
	}

	now := time.Now().UTC()
	for _, row := range rows {
		row.KeyID = uuid.NewString()
		row.Version = next.Version
		row.Salt = "" // rotated keys are always random
		row.CreatedAt = now
		row.LastUsedAt = now
		if err := m.meta.Upsert(ctx, row); err != nil {
			return nil, fmt.Errorf("persisting rotated key metadata: %w", err)
		}
		m.store.Store(cacheID(coupleID, row.Purpose), next.Key(row.Purpose))
	}

	m.log.Info(ctx, "keys rotated", "couple_id", coupleID, "version", next.Version)

	return &Rotation{Old: old, New: next}, nil
}

// backupPayload is the plaintext inside a key backup envelope.
type backupPayload struct {
	CoupleID   string    `json:"coupleId"`
	Version    int       `json:"version"`
	Diary      string    `json:"diary"`
	Media      string    `json:"media"`
	Backup     string    `json:"backup"`
	ExportedAt time.Time `json:"exportedAt"`
}

// ExportKeysForBackup wraps the couple's raw key set in a password-derived
// envelope. Raw keys never leave this function in the clear; the envelope
// carries the KDF salt so the password alone can open it later.
func (m *Manager) ExportKeysForBackup(ctx context.Context, coupleID string, backupPassword []byte) ([]byte, error) {
	if len(backupPassword) == 0 {
		return nil, fmt.Errorf("%w: backup password", common.ErrPasswordRequired)
	}

	_, version, err := m.Status(ctx, coupleID)
	if err != nil {
		return nil, err
	}
	set, err := m.currentSet(ctx, coupleID, version)
	if err != nil {
		return nil, err
	}

	payload := backupPayload{
		CoupleID:   coupleID,
		Version:    set.Version,
		Diary:      base64.StdEncoding.EncodeToString(set.Diary),
		Media:      base64.StdEncoding.EncodeToString(set.Media),
		Backup:     base64.StdEncoding.EncodeToString(set.Backup),
		ExportedAt: time.Now().UTC(),
	}

	key, salt := cryptox.DeriveKeyFromPassword(backupPassword, nil)
	defer common.WipeByteArray(key)

	env, err := cryptox.EncryptJSON(payload, key)
	if err != nil {
		return nil, fmt.Errorf("encrypting key backup: %w", err)
	}
	env.Salt = base64.StdEncoding.EncodeToString(salt)

	return env.Marshal()
}

// ImportKeysFromBackup decrypts a key backup and replaces any keys
// currently cached for that couple. Metadata is upserted at the backup's
// version so Status reflects the imported generation.
func (m *Manager) ImportKeysFromBackup(ctx context.Context, encryptedBackup []byte, backupPassword []byte) (*KeySet, error) {
	if len(backupPassword) == 0 {
		return nil, fmt.Errorf("%w: backup password", common.ErrPasswordRequired)
	}

	env, err := cryptox.ParseEnvelope(encryptedBackup)
	if err != nil {
		return nil, err
	}
	if env.Salt == "" {
		return nil, fmt.Errorf("%w: backup envelope missing salt", common.ErrInvalidFormat)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt encoding", common.ErrInvalidFormat)
	}

	key, _ := cryptox.DeriveKeyFromPassword(backupPassword, salt)
	defer common.WipeByteArray(key)

	var payload backupPayload
	if err := cryptox.DecryptJSON(env, key, &payload); err != nil {
		return nil, err
	}

	decode := func(s string) ([]byte, error) {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil || len(b) != cryptox.KeySize {
			return nil, fmt.Errorf("%w: malformed key material", common.ErrInvalidFormat)
		}
		return b, nil
	}

	set := &KeySet{CoupleID: payload.CoupleID, Version: payload.Version}
	if set.Diary, err = decode(payload.Diary); err != nil {
		return nil, err
	}
	if set.Media, err = decode(payload.Media); err != nil {
		return nil, err
	}
	if set.Backup, err = decode(payload.Backup); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, purpose := range models.Purposes {
		md := &models.KeyMetadata{
			KeyID:      uuid.NewString(),
			CoupleID:   set.CoupleID,
			Purpose:    purpose,
			Algorithm:  cryptox.Algorithm,
			Version:    set.Version,
			CreatedAt:  now,
			LastUsedAt: now,
		}
		if err := m.meta.Upsert(ctx, md); err != nil {
			return nil, fmt.Errorf("persisting imported key metadata: %w", err)
		}
		m.store.Store(cacheID(set.CoupleID, purpose), set.Key(purpose))
	}

	m.log.Info(ctx, "keys imported from backup", "couple_id", set.CoupleID, "version", set.Version)

	return set, nil
}

// ClearCoupleKeys irreversibly erases one couple's cached keys and
// metadata. A later InitializeCoupleKeys starts a new generation.
func (m *Manager) ClearCoupleKeys(ctx context.Context, coupleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.ClearKeys(coupleID + ":")
	if err := m.meta.DeleteByCouple(ctx, coupleID); err != nil {
		return fmt.Errorf("deleting key metadata: %w", err)
	}
	m.log.Warn(ctx, "couple keys cleared", "couple_id", coupleID)
	return nil
}

// ClearAllKeys irreversibly erases every cached key and all metadata.
// Called when breakup mode disallows recovery, and on full logout.
func (m *Manager) ClearAllKeys(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.ClearAll()
	if err := m.meta.DeleteAll(ctx); err != nil {
		return fmt.Errorf("deleting key metadata: %w", err)
	}
	m.log.Warn(ctx, "all keys cleared")
	return nil
}
