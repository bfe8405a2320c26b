package keys

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/cryptox"
	"github.com/couplesdiary/cryptocore/internal/keystore"
	"github.com/couplesdiary/cryptocore/internal/logging"
	"github.com/couplesdiary/cryptocore/internal/models"
	"github.com/couplesdiary/cryptocore/internal/storage/keymeta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE key_metadata (
  key_id TEXT NOT NULL,
  couple_id TEXT NOT NULL,
  purpose TEXT NOT NULL,
  algorithm TEXT NOT NULL,
  version INTEGER NOT NULL,
  salt TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL,
  last_used_at TIMESTAMP NOT NULL,
  PRIMARY KEY (couple_id, purpose)
);
`)
	require.NoError(t, err)
	return db
}

func setupManager(t *testing.T) (*Manager, *keystore.KeyStore) {
	t.Helper()
	store := keystore.New()
	return New(store, keymeta.NewSQLiteRepository(openTestDB(t)), testLogger()), store
}

func TestInitializeCoupleKeys_Random(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	set, err := m.InitializeCoupleKeys(ctx, InitParams{UserID: "u1", CoupleID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, 1, set.Version)
	assert.Len(t, set.Diary, cryptox.KeySize)
	assert.Len(t, set.Media, cryptox.KeySize)
	assert.Len(t, set.Backup, cryptox.KeySize)
	assert.NotEqual(t, set.Diary, set.Media)
	assert.NotEqual(t, set.Media, set.Backup)

	assert.Equal(t, set.Diary, m.DiaryKey(ctx, "c1"))
	assert.Equal(t, set.Media, m.MediaKey(ctx, "c1"))
	assert.Equal(t, set.Backup, m.BackupKey(ctx, "c1"))

	enabled, version, err := m.Status(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, 1, version)
}

func TestInitializeCoupleKeys_Derived(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	set, err := m.InitializeCoupleKeys(ctx, InitParams{
		UserID:         "u1",
		CoupleID:       "c1",
		MasterPassword: []byte("our shared secret"),
	})
	require.NoError(t, err)

	// Purpose keys must be mutually independent even with one passphrase.
	assert.NotEqual(t, set.Diary, set.Media)
	assert.NotEqual(t, set.Diary, set.Backup)
	assert.NotEqual(t, set.Media, set.Backup)
}

func TestInitializeCoupleKeys_RequiresCoupleID(t *testing.T) {
	m, _ := setupManager(t)

	_, err := m.InitializeCoupleKeys(context.Background(), InitParams{UserID: "u1"})
	require.True(t, errors.Is(err, common.ErrValidation))
}

func TestKey_NilWhenUninitialized(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	assert.Nil(t, m.DiaryKey(ctx, "unknown"))

	enabled, version, err := m.Status(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, enabled)
	assert.Equal(t, 0, version)
}

func TestRotateKeys(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	first, err := m.InitializeCoupleKeys(ctx, InitParams{UserID: "u1", CoupleID: "c1"})
	require.NoError(t, err)
	oldDiary := append([]byte(nil), first.Diary...)

	rotation, err := m.RotateKeys(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, oldDiary, rotation.Old.Diary, "old generation stays readable")
	assert.Equal(t, 2, rotation.New.Version)
	assert.NotEqual(t, rotation.Old.Diary, rotation.New.Diary)

	// The cache now serves the new generation.
	assert.Equal(t, rotation.New.Diary, m.DiaryKey(ctx, "c1"))

	_, version, err := m.Status(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestRotation_DiscardWipesOldOnce(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	_, err := m.InitializeCoupleKeys(ctx, InitParams{UserID: "u1", CoupleID: "c1"})
	require.NoError(t, err)

	rotation, err := m.RotateKeys(ctx, "c1")
	require.NoError(t, err)

	assert.NotEqual(t, bytes.Repeat([]byte{0}, cryptox.KeySize), rotation.Old.Diary)

	rotation.Discard()
	rotation.Discard() // idempotent

	assert.Equal(t, bytes.Repeat([]byte{0}, cryptox.KeySize), rotation.Old.Diary)
	assert.Equal(t, bytes.Repeat([]byte{0}, cryptox.KeySize), rotation.Old.Media)
}

func TestRotateKeys_Uninitialized(t *testing.T) {
	m, _ := setupManager(t)

	_, err := m.RotateKeys(context.Background(), "c1")
	require.True(t, errors.Is(err, common.ErrKeysNotInitialized))
}

func TestBackupRoundTrip(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	set, err := m.InitializeCoupleKeys(ctx, InitParams{UserID: "u1", CoupleID: "c1"})
	require.NoError(t, err)

	backup, err := m.ExportKeysForBackup(ctx, "c1", []byte("backup-pw"))
	require.NoError(t, err)
	assert.True(t, cryptox.IsEnvelope(backup), "backup must be an opaque envelope")

	// Simulate a fresh session: a second manager with empty caches.
	m2, _ := setupManager(t)
	restored, err := m2.ImportKeysFromBackup(ctx, backup, []byte("backup-pw"))
	require.NoError(t, err)

	assert.Equal(t, set.Diary, restored.Diary)
	assert.Equal(t, set.Media, restored.Media)
	assert.Equal(t, set.Backup, restored.Backup)
	assert.Equal(t, restored.Diary, m2.DiaryKey(ctx, "c1"))
}

func TestImportKeysFromBackup_WrongPassword(t *testing.T) {
	m, _ := setupManager(t)
	ctx := context.Background()

	_, err := m.InitializeCoupleKeys(ctx, InitParams{UserID: "u1", CoupleID: "c1"})
	require.NoError(t, err)

	backup, err := m.ExportKeysForBackup(ctx, "c1", []byte("right"))
	require.NoError(t, err)

	_, err = m.ImportKeysFromBackup(ctx, backup, []byte("wrong"))
	require.True(t, errors.Is(err, common.ErrAuthentication))
}

func TestExportKeysForBackup_RequiresPassword(t *testing.T) {
	m, _ := setupManager(t)

	_, err := m.ExportKeysForBackup(context.Background(), "c1", nil)
	require.True(t, errors.Is(err, common.ErrPasswordRequired))
}

func TestClearCoupleKeys(t *testing.T) {
	m, store := setupManager(t)
	ctx := context.Background()

	_, err := m.InitializeCoupleKeys(ctx, InitParams{UserID: "u1", CoupleID: "c1"})
	require.NoError(t, err)
	_, err = m.InitializeCoupleKeys(ctx, InitParams{UserID: "u2", CoupleID: "c2"})
	require.NoError(t, err)

	require.NoError(t, m.ClearCoupleKeys(ctx, "c1"))

	assert.Nil(t, m.DiaryKey(ctx, "c1"))
	assert.NotNil(t, m.DiaryKey(ctx, "c2"), "other couples keep their keys")

	enabled, _, err := m.Status(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, m.ClearAllKeys(ctx))
	assert.Nil(t, m.DiaryKey(ctx, "c2"))
	assert.Equal(t, 0, store.Len())
}

func TestInitializeCoupleKeys_SaltReusedAcrossSessions(t *testing.T) {
	db := openTestDB(t)
	repo := keymeta.NewSQLiteRepository(db)
	ctx := context.Background()

	m1 := New(keystore.New(), repo, testLogger())
	first, err := m1.InitializeCoupleKeys(ctx, InitParams{
		UserID: "u1", CoupleID: "c1", MasterPassword: []byte("our shared secret"),
	})
	require.NoError(t, err)

	// A fresh session over the same store re-derives the same keys from the
	// same passphrase.
	m2 := New(keystore.New(), repo, testLogger())
	second, err := m2.InitializeCoupleKeys(ctx, InitParams{
		UserID: "u1", CoupleID: "c1", MasterPassword: []byte("our shared secret"),
	})
	require.NoError(t, err)

	assert.Equal(t, first.Diary, second.Diary)
	assert.Equal(t, first.Media, second.Media)
	assert.Equal(t, first.Backup, second.Backup)
}

func TestKey_TouchesLastUsedAt(t *testing.T) {
	db := openTestDB(t)
	repo := keymeta.NewSQLiteRepository(db)
	m := New(keystore.New(), repo, testLogger())
	ctx := context.Background()

	_, err := m.InitializeCoupleKeys(ctx, InitParams{UserID: "u1", CoupleID: "c1"})
	require.NoError(t, err)

	stale := time.Now().UTC().Add(-time.Hour)
	_, err = db.Exec(`UPDATE key_metadata SET last_used_at=?`, stale)
	require.NoError(t, err)

	require.NotNil(t, m.DiaryKey(ctx, "c1"))

	md, err := repo.Get(ctx, "c1", models.PurposeDiary)
	require.NoError(t, err)
	assert.True(t, md.LastUsedAt.After(stale), "fetching a key advances last_used_at")
}
