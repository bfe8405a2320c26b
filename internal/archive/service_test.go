package archive

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/content"
	"github.com/couplesdiary/cryptocore/internal/cryptox"
	"github.com/couplesdiary/cryptocore/internal/export"
	"github.com/couplesdiary/cryptocore/internal/keys"
	"github.com/couplesdiary/cryptocore/internal/keystore"
	"github.com/couplesdiary/cryptocore/internal/logging"
	"github.com/couplesdiary/cryptocore/internal/models"
	"github.com/couplesdiary/cryptocore/internal/storage/archives"
	"github.com/couplesdiary/cryptocore/internal/storage/couples"
	"github.com/couplesdiary/cryptocore/internal/storage/entries"
	"github.com/couplesdiary/cryptocore/internal/storage/keymeta"
	"github.com/couplesdiary/cryptocore/internal/storage/memories"
	"github.com/couplesdiary/cryptocore/internal/storage/plans"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE entries (
  id TEXT PRIMARY KEY,
  couple_id TEXT NOT NULL,
  author_id TEXT NOT NULL,
  content TEXT NOT NULL,
  mood TEXT NOT NULL DEFAULT '',
  is_encrypted BOOLEAN NOT NULL DEFAULT FALSE,
  media TEXT NOT NULL DEFAULT '[]',
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE TABLE plans (
  id TEXT PRIMARY KEY,
  couple_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  planned_at TIMESTAMP NOT NULL,
  created_at TIMESTAMP NOT NULL
);
CREATE TABLE memories (
  id TEXT PRIMARY KEY,
  couple_id TEXT NOT NULL,
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  photo_url TEXT NOT NULL DEFAULT '',
  happened_at TIMESTAMP NOT NULL,
  created_at TIMESTAMP NOT NULL
);
CREATE TABLE couples (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  partner_id TEXT NOT NULL,
  status TEXT NOT NULL,
  started_at TIMESTAMP NOT NULL,
  ended_at TIMESTAMP
);
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
CREATE TABLE archives (
  id TEXT PRIMARY KEY,
  couple_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  archived_at TIMESTAMP NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  recovery_expires_at TIMESTAMP NOT NULL,
  is_recoverable BOOLEAN NOT NULL DEFAULT TRUE,
  encrypted_data TEXT NOT NULL DEFAULT '',
  storage_key TEXT NOT NULL DEFAULT '',
  checksum TEXT NOT NULL,
  key_hint TEXT NOT NULL DEFAULT '',
  recovery_envelope TEXT NOT NULL DEFAULT ''
);
`

// fakeBlobStore is an in-memory blob.Store.
type fakeBlobStore struct {
	objects map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, key string, data []byte) error {
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

type fakeNotifier struct {
	notified []string
}

func (f *fakeNotifier) Notify(_ context.Context, userID, _ string) error {
	f.notified = append(f.notified, userID)
	return nil
}

type fixture struct {
	svc      *Service
	keys     *keys.Manager
	content  *content.Service
	session  *keystore.KeyStore
	entries  entries.Repository
	plans    plans.Repository
	memories memories.Repository
	couples  couples.Repository
	archives archives.Repository
	notifier *fakeNotifier
	blobs    *fakeBlobStore
}

func setup(t *testing.T, withBlobs bool) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(schema)
	require.NoError(t, err)

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	session := keystore.New()
	km := keys.New(session, keymeta.NewSQLiteRepository(db), log)
	er := entries.NewSQLiteRepository(db)
	pr := plans.NewSQLiteRepository(db)
	mr := memories.NewSQLiteRepository(db)
	cr := couples.NewSQLiteRepository(db)
	ar := archives.NewSQLiteRepository(db)
	cs := content.NewService(km, er, log)
	es := export.NewService(cs, er, pr, mr, cr, log)

	notifier := &fakeNotifier{}
	var blobs *fakeBlobStore
	f := &fixture{
		keys:     km,
		content:  cs,
		session:  session,
		entries:  er,
		plans:    pr,
		memories: mr,
		couples:  cr,
		archives: ar,
		notifier: notifier,
	}
	if withBlobs {
		blobs = newFakeBlobStore()
		f.blobs = blobs
		f.svc = NewService(km, es, ar, cr, er, pr, mr, session, blobs, notifier, log)
	} else {
		f.svc = NewService(km, es, ar, cr, er, pr, mr, session, nil, notifier, log)
	}
	return f
}

func (f *fixture) seed(t *testing.T, coupleID string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.couples.Upsert(ctx, &models.Couple{
		ID:        coupleID,
		UserID:    "u1",
		PartnerID: "u2",
		Status:    models.CoupleStatusActive,
		StartedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}))

	_, err := f.keys.InitializeCoupleKeys(ctx, keys.InitParams{UserID: "u1", CoupleID: coupleID})
	require.NoError(t, err)

	_, err = f.content.CreateSecureEntry(ctx, coupleID, "u1", "our story", "nostalgic", nil)
	require.NoError(t, err)

	now := time.Now().UTC()
	require.NoError(t, f.plans.Insert(ctx, &models.DatePlan{
		ID: "p1", CoupleID: coupleID, Title: "anniversary", PlannedAt: now, CreatedAt: now,
	}))
}

func TestActivateBreakupMode_Defaults(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	f.seed(t, "c1")

	result, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", DefaultBreakupOptions())
	require.NoError(t, err)

	require.NotEmpty(t, result.ArchiveID)
	assert.Len(t, result.ArchivePassword, archivePasswordLength)
	assert.Nil(t, result.Export)

	record, err := f.archives.GetByID(ctx, result.ArchiveID)
	require.NoError(t, err)
	assert.True(t, record.IsRecoverable)
	assert.NotEmpty(t, record.EncryptedData)
	assert.NotEmpty(t, record.RecoveryEnvelope)
	assert.True(t, cryptox.IsEnvelope([]byte(record.EncryptedData)))
	assert.True(t, export.VerifyChecksum([]byte(record.EncryptedData), record.Checksum))

	// Rows retained: the relationship is restricted, not fully ended.
	couple, err := f.couples.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CoupleStatusRestricted, couple.Status)
	require.NotNil(t, couple.EndedAt)

	// Recovery allowed: keys and rows survive until the window lapses.
	assert.NotNil(t, f.keys.DiaryKey(ctx, "c1"))
	rows, err := f.entries.ListByCouple(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	assert.Equal(t, []string{"u2"}, f.notifier.notified)
}

func TestActivateBreakupMode_NoRecovery(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	f.seed(t, "c1")

	opts := DefaultBreakupOptions()
	opts.AllowDataRecovery = false

	_, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", opts)
	require.NoError(t, err)

	// Keys are gone; stored ciphertext is unreadable.
	assert.Nil(t, f.keys.DiaryKey(ctx, "c1"))

	rows, err := f.content.SecureEntries(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsEncrypted)
}

func TestActivateBreakupMode_ExportFirst(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	f.seed(t, "c1")

	opts := DefaultBreakupOptions()
	opts.ExportBeforeBreakup = true

	result, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", opts)
	require.NoError(t, err)
	require.NotNil(t, result.Export)
	assert.False(t, result.Export.Encrypted)
}

func TestActivateBreakupMode_InvalidRecoveryPeriod(t *testing.T) {
	f := setup(t, false)
	f.seed(t, "c1")

	opts := DefaultBreakupOptions()
	opts.RecoveryPeriodDays = 0

	_, err := f.svc.ActivateBreakupMode(context.Background(), "u1", "c1", opts)
	require.True(t, errors.Is(err, common.ErrValidation))
}

func TestRecoverFromBreakup(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	f.seed(t, "c1")

	opts := DefaultBreakupOptions()
	opts.DeleteSharedData = true

	result, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", opts)
	require.NoError(t, err)

	rows, err := f.entries.ListByCouple(ctx, "c1", 0)
	require.NoError(t, err)
	require.Empty(t, rows, "shared rows deleted during breakup")

	require.NoError(t, f.svc.RecoverFromBreakup(ctx, result.ArchiveID, result.ArchivePassword))

	// Entries and plans are back, the relationship is active again.
	rows, err = f.entries.ListByCouple(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "our story", rows[0].Content, "restored content is readable")

	planRows, err := f.plans.ListByCouple(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, planRows, 1)

	couple, err := f.couples.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CoupleStatusActive, couple.Status)

	// Recovery is single-use.
	err = f.svc.RecoverFromBreakup(ctx, result.ArchiveID, result.ArchivePassword)
	require.True(t, errors.Is(err, common.ErrNotFound))
}

func TestRecoverFromBreakup_RetainedRows(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	f.seed(t, "c1")

	// Default breakup restricts access but keeps the shared rows in place.
	result, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", DefaultBreakupOptions())
	require.NoError(t, err)

	rows, err := f.entries.ListByCouple(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1, "shared rows survive a restrict-only breakup")

	require.NoError(t, f.svc.RecoverFromBreakup(ctx, result.ArchiveID, result.ArchivePassword))

	// The restore replaced the retained rows instead of duplicating them.
	rows, err = f.entries.ListByCouple(ctx, "c1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "our story", rows[0].Content)

	couple, err := f.couples.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CoupleStatusActive, couple.Status)

	_, err = f.archives.GetByID(ctx, result.ArchiveID)
	require.True(t, errors.Is(err, common.ErrNotFound), "archive consumed by recovery")
}

func TestRecoverFromBreakup_PersistedRecoveryKey(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	f.seed(t, "c1")

	opts := DefaultBreakupOptions()
	opts.DeleteSharedData = true

	result, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", opts)
	require.NoError(t, err)

	// Simulate a fresh session: no cached password, none supplied. The
	// persisted recovery envelope must carry the flow.
	f.session.RemoveArchivePassword(result.ArchiveID)

	require.NoError(t, f.svc.RecoverFromBreakup(ctx, result.ArchiveID, ""))
}

func TestRecoverFromBreakup_NoPassword(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	f.seed(t, "c1")

	opts := DefaultBreakupOptions()
	opts.PersistRecoveryKey = false

	result, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", opts)
	require.NoError(t, err)

	f.session.RemoveArchivePassword(result.ArchiveID)

	err = f.svc.RecoverFromBreakup(ctx, result.ArchiveID, "")
	require.True(t, errors.Is(err, common.ErrPasswordRequired))
}

func TestRecoverFromBreakup_Expired(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	f.seed(t, "c1")

	result, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", DefaultBreakupOptions())
	require.NoError(t, err)

	// Jump past the recovery window.
	f.svc.now = func() time.Time { return time.Now().AddDate(0, 0, 31) }

	err = f.svc.RecoverFromBreakup(ctx, result.ArchiveID, result.ArchivePassword)
	require.True(t, errors.Is(err, common.ErrRecoveryExpired))
}

func TestRecoverFromBreakup_NotFound(t *testing.T) {
	f := setup(t, false)

	err := f.svc.RecoverFromBreakup(context.Background(), "missing", "pw")
	require.True(t, errors.Is(err, common.ErrNotFound))
}

func TestBreakupAndRecover_BlobOffload(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	f.seed(t, "c1")

	opts := DefaultBreakupOptions()
	opts.DeleteSharedData = true

	result, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", opts)
	require.NoError(t, err)

	record, err := f.archives.GetByID(ctx, result.ArchiveID)
	require.NoError(t, err)
	assert.Empty(t, record.EncryptedData, "payload lives in blob storage, not the row")
	require.NotEmpty(t, record.StorageKey)
	assert.Contains(t, f.blobs.objects, record.StorageKey)

	require.NoError(t, f.svc.RecoverFromBreakup(ctx, result.ArchiveID, result.ArchivePassword))

	rows, err := f.entries.ListByCouple(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.NotContains(t, f.blobs.objects, record.StorageKey, "payload removed after recovery")
}

func TestPermanentlyDeleteData(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	f.seed(t, "c1")

	result, err := f.svc.ActivateBreakupMode(ctx, "u1", "c1", DefaultBreakupOptions())
	require.NoError(t, err)

	require.NoError(t, f.svc.PermanentlyDeleteData(ctx, "c1", "u1"))

	assert.Nil(t, f.keys.DiaryKey(ctx, "c1"))

	rows, err := f.entries.ListByCouple(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = f.archives.GetByID(ctx, result.ArchiveID)
	require.True(t, errors.Is(err, common.ErrNotFound))

	couple, err := f.couples.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.CoupleStatusEnded, couple.Status)
}

func TestPasswordHint_NeverContainsPassword(t *testing.T) {
	password := cryptox.GeneratePassword(archivePasswordLength)
	hint := passwordHint(password)
	assert.NotContains(t, hint, password)
	assert.Contains(t, hint, "24 characters")
}

func TestRecoveryEnvelope_ScopedToArchive(t *testing.T) {
	sealed, err := sealRecoveryPassword("archive-a", "secret-pw")
	require.NoError(t, err)

	got, err := openRecoveryPassword("archive-a", sealed)
	require.NoError(t, err)
	assert.Equal(t, "secret-pw", got)

	// A different archive id derives a different key.
	_, err = openRecoveryPassword("archive-b", sealed)
	require.True(t, errors.Is(err, common.ErrAuthentication))
}
