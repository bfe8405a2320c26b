// Package archive orchestrates breakup mode: optional export, optional
// encrypted archival with a time-boxed recovery window, access restriction,
// optional key erasure, and the recovery and permanent-deletion flows.
//
// Ordering matters: export and archive creation happen before anything
// irreversible, and key erasure is the very last step, so a failure midway
// never leaves data unrecoverable without first having captured it.
package archive

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/couplesdiary/cryptocore/internal/blob"
	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/cryptox"
	"github.com/couplesdiary/cryptocore/internal/export"
	"github.com/couplesdiary/cryptocore/internal/keys"
	"github.com/couplesdiary/cryptocore/internal/keystore"
	"github.com/couplesdiary/cryptocore/internal/logging"
	"github.com/couplesdiary/cryptocore/internal/models"
	"github.com/couplesdiary/cryptocore/internal/storage/archives"
	"github.com/couplesdiary/cryptocore/internal/storage/couples"
	"github.com/couplesdiary/cryptocore/internal/storage/entries"
	"github.com/couplesdiary/cryptocore/internal/storage/memories"
	"github.com/couplesdiary/cryptocore/internal/storage/plans"
	"github.com/google/uuid"
)

// archivePasswordLength is the length of generated archive passwords.
const archivePasswordLength = 24

// recoveryKeyInfo scopes the deterministic recovery key derivation; the
// archive ID is appended per archive.
const recoveryKeyInfo = "couples-diary.archive-recovery.v1:"

// Notifier informs the partner account of a breakup event. Delivery is
// best-effort: a failure is logged, never propagated, because the breakup's
// data-safety guarantees do not depend on it.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

// BreakupOptions configures ActivateBreakupMode. Each flag is independent.
type BreakupOptions struct {
	// ExportBeforeBreakup produces a downloadable export first.
	ExportBeforeBreakup bool

	// CreateArchive stores an encrypted archive of the full bundle.
	CreateArchive bool

	// DeleteSharedData removes shared rows instead of merely restricting
	// access through the relationship status.
	DeleteSharedData bool

	// AllowDataRecovery keeps the archive recoverable inside the window.
	// When false, keys are erased and unarchived ciphertext is gone.
	AllowDataRecovery bool

	// RecoveryPeriodDays bounds the recovery window.
	RecoveryPeriodDays int

	// PersistRecoveryKey stores the archive password encrypted under a
	// deterministic archive-id-scoped key, so recovery works in a later
	// session without re-entering it. Weaker threat model; opt out to
	// require the password out of band.
	PersistRecoveryKey bool

	// Reason is an optional free-form note stored on the archive.
	Reason string
}

// DefaultBreakupOptions returns the recoverable-archive defaults.
func DefaultBreakupOptions() BreakupOptions {
	return BreakupOptions{
		ExportBeforeBreakup: false,
		CreateArchive:       true,
		DeleteSharedData:    false,
		AllowDataRecovery:   true,
		RecoveryPeriodDays:  30,
		PersistRecoveryKey:  true,
	}
}

// BreakupResult reports what ActivateBreakupMode produced.
type BreakupResult struct {
	ArchiveID string

	// ArchivePassword is shown to the user exactly once. It is also cached
	// in the session store for the recovery flow.
	ArchivePassword string

	// Export is the pre-breakup export, when requested.
	Export *models.ExportResult
}

// Service implements breakup mode.
type Service struct {
	keys     *keys.Manager
	export   *export.Service
	archives archives.Repository
	couples  couples.Repository
	entries  entries.Repository
	plans    plans.Repository
	memories memories.Repository
	session  *keystore.KeyStore
	blobs    blob.Store // optional payload offload
	notifier Notifier   // optional
	log      logging.Logger

	now func() time.Time
}

// NewService constructs a Service. blobs and notifier may be nil.
func NewService(km *keys.Manager, es *export.Service, ar archives.Repository, cr couples.Repository,
	er entries.Repository, pr plans.Repository, mr memories.Repository,
	session *keystore.KeyStore, blobs blob.Store, notifier Notifier, log logging.Logger) *Service {
	return &Service{
		keys:     km,
		export:   es,
		archives: ar,
		couples:  cr,
		entries:  er,
		plans:    pr,
		memories: mr,
		session:  session,
		blobs:    blobs,
		notifier: notifier,
		log:      log.With("component", "archive"),
		now:      time.Now,
	}
}

// ActivateBreakupMode runs the breakup sequence: (1) optional export,
// (2) optional encrypted archive, (3) relationship marked over (restricted
// when shared rows are retained, ended when they are deleted), (4) restrict
// or delete shared data, (5) key erasure only when recovery is disallowed,
// (6) best-effort partner notification.
func (s *Service) ActivateBreakupMode(ctx context.Context, userID, coupleID string, opts BreakupOptions) (*BreakupResult, error) {
	if opts.CreateArchive && opts.AllowDataRecovery && opts.RecoveryPeriodDays <= 0 {
		return nil, fmt.Errorf("%w: recovery period must be positive", common.ErrValidation)
	}

	couple, err := s.couples.GetByID(ctx, coupleID)
	if err != nil {
		return nil, fmt.Errorf("loading couple: %w", err)
	}

	result := &BreakupResult{}

	if opts.ExportBeforeBreakup {
		exp, err := s.export.ExportCoupleData(ctx, userID, coupleID, export.Options{
			IncludePartnerData: true,
			IncludeMedia:       true,
		})
		if err != nil {
			return nil, fmt.Errorf("pre-breakup export: %w", err)
		}
		result.Export = exp
	}

	if opts.CreateArchive {
		archiveID, password, err := s.createArchive(ctx, userID, coupleID, opts)
		if err != nil {
			return nil, err
		}
		result.ArchiveID = archiveID
		result.ArchivePassword = password
	}

	endedAt := s.now().UTC()
	status := models.CoupleStatusRestricted
	if opts.DeleteSharedData {
		status = models.CoupleStatusEnded
	}
	if err := s.couples.SetStatus(ctx, coupleID, status, &endedAt); err != nil {
		return nil, fmt.Errorf("marking relationship over: %w", err)
	}

	if opts.DeleteSharedData {
		if err := s.deleteSharedData(ctx, coupleID); err != nil {
			return nil, err
		}
	}

	// Irreversible step last: everything worth keeping is captured above.
	if !opts.AllowDataRecovery {
		if err := s.keys.ClearCoupleKeys(ctx, coupleID); err != nil {
			return nil, fmt.Errorf("clearing keys: %w", err)
		}
	}

	s.notifyPartner(ctx, couple, userID)

	s.log.Info(ctx, "breakup mode activated", "couple_id", coupleID,
		"archived", opts.CreateArchive, "recoverable", opts.AllowDataRecovery)

	return result, nil
}

func (s *Service) createArchive(ctx context.Context, userID, coupleID string, opts BreakupOptions) (archiveID, password string, err error) {
	archiveID = uuid.NewString()
	password = cryptox.GeneratePassword(archivePasswordLength)

	exp, err := s.export.ExportCoupleData(ctx, userID, coupleID, export.Options{
		IncludePartnerData: true,
		IncludeMedia:       true,
		EncryptExport:      true,
		ExportPassword:     password,
	})
	if err != nil {
		return "", "", fmt.Errorf("building archive payload: %w", err)
	}

	archivedAt := s.now().UTC()
	record := &models.BreakupArchive{
		ID:                archiveID,
		CoupleID:          coupleID,
		UserID:            userID,
		ArchivedAt:        archivedAt,
		Reason:            opts.Reason,
		RecoveryExpiresAt: archivedAt.AddDate(0, 0, opts.RecoveryPeriodDays),
		IsRecoverable:     opts.AllowDataRecovery,
		Checksum:          exp.Checksum,
		KeyHint:           passwordHint(password),
	}

	if opts.AllowDataRecovery && opts.PersistRecoveryKey {
		envJSON, err := sealRecoveryPassword(archiveID, password)
		if err != nil {
			return "", "", err
		}
		record.RecoveryEnvelope = envJSON
	}

	if s.blobs != nil {
		key := fmt.Sprintf("archives/%s/%s.json", coupleID, archiveID)
		if err := s.blobs.Put(ctx, key, exp.Data); err != nil {
			return "", "", fmt.Errorf("storing archive payload: %w", err)
		}
		record.StorageKey = key
	} else {
		record.EncryptedData = string(exp.Data)
	}

	if err := s.archives.Insert(ctx, record); err != nil {
		return "", "", fmt.Errorf("saving archive record: %w", err)
	}

	if opts.AllowDataRecovery {
		s.session.StoreArchivePassword(archiveID, password)
	}

	return archiveID, password, nil
}

// RecoverFromBreakup decrypts the archive, restores the bundle, reactivates
// the relationship and deletes the archive. Recovery is single-use. The
// password comes from the explicit argument, the session cache, or the
// persisted recovery envelope, in that order.
func (s *Service) RecoverFromBreakup(ctx context.Context, archiveID, recoveryPassword string) error {
	record, err := s.archives.GetByID(ctx, archiveID)
	if err != nil {
		return err
	}

	// The cached password is single-shot: gone after this attempt either way.
	defer s.session.RemoveArchivePassword(archiveID)

	if !record.IsRecoverable || record.Expired(s.now().UTC()) {
		return common.ErrRecoveryExpired
	}

	password := recoveryPassword
	if password == "" {
		password = s.session.ArchivePassword(archiveID)
	}
	if password == "" && record.RecoveryEnvelope != "" {
		password, err = openRecoveryPassword(archiveID, record.RecoveryEnvelope)
		if err != nil {
			return err
		}
	}
	if password == "" {
		return common.ErrPasswordRequired
	}

	payload := []byte(record.EncryptedData)
	if record.StorageKey != "" {
		if s.blobs == nil {
			return fmt.Errorf("archive payload is offloaded but no blob store is configured")
		}
		if payload, err = s.blobs.Get(ctx, record.StorageKey); err != nil {
			return fmt.Errorf("fetching archive payload: %w", err)
		}
	}

	if !export.VerifyChecksum(payload, record.Checksum) {
		return fmt.Errorf("%w: archive checksum mismatch", common.ErrInvalidFormat)
	}

	bundle, err := s.export.ImportCoupleData(ctx, payload, password)
	if err != nil {
		return err
	}
	if err := s.export.Restore(ctx, bundle); err != nil {
		return err
	}

	if err := s.couples.SetStatus(ctx, record.CoupleID, models.CoupleStatusActive, nil); err != nil {
		return fmt.Errorf("reactivating relationship: %w", err)
	}

	if err := s.archives.Delete(ctx, archiveID); err != nil {
		return fmt.Errorf("deleting consumed archive: %w", err)
	}
	if record.StorageKey != "" {
		if err := s.blobs.Delete(ctx, record.StorageKey); err != nil {
			s.log.Warn(ctx, "archive payload left in blob storage", "key", record.StorageKey, "error", err)
		}
	}

	s.log.Info(ctx, "breakup recovered", "couple_id", record.CoupleID, "archive_id", archiveID)

	return nil
}

// PermanentlyDeleteData is the terminal, no-recovery path: key erasure
// followed by deletion of every shared row and archive. The UI collaborator
// must require explicit, separate confirmation before calling this.
func (s *Service) PermanentlyDeleteData(ctx context.Context, coupleID, userID string) error {
	if err := s.keys.ClearCoupleKeys(ctx, coupleID); err != nil {
		return fmt.Errorf("clearing keys: %w", err)
	}

	if err := s.deleteSharedData(ctx, coupleID); err != nil {
		return err
	}
	if err := s.archives.DeleteByCouple(ctx, coupleID); err != nil {
		return fmt.Errorf("deleting archives: %w", err)
	}

	endedAt := s.now().UTC()
	if err := s.couples.SetStatus(ctx, coupleID, models.CoupleStatusEnded, &endedAt); err != nil {
		return fmt.Errorf("marking relationship ended: %w", err)
	}

	s.log.Warn(ctx, "data permanently deleted", "couple_id", coupleID, "requested_by", userID)

	return nil
}

func (s *Service) deleteSharedData(ctx context.Context, coupleID string) error {
	if err := s.entries.DeleteByCouple(ctx, coupleID); err != nil {
		return fmt.Errorf("deleting entries: %w", err)
	}
	if err := s.plans.DeleteByCouple(ctx, coupleID); err != nil {
		return fmt.Errorf("deleting plans: %w", err)
	}
	if err := s.memories.DeleteByCouple(ctx, coupleID); err != nil {
		return fmt.Errorf("deleting memories: %w", err)
	}
	return nil
}

func (s *Service) notifyPartner(ctx context.Context, couple *models.Couple, actorID string) {
	if s.notifier == nil {
		return
	}
	partnerID := couple.PartnerID
	if partnerID == actorID {
		partnerID = couple.UserID
	}
	if partnerID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, partnerID, "Your partner has ended the relationship."); err != nil {
		s.log.Warn(ctx, "partner notification failed", "partner_id", partnerID, "error", err)
	}
}

// recoveryKey derives the deterministic, archive-id-scoped key protecting
// a persisted archive password.
func recoveryKey(archiveID string) []byte {
	sum := sha256.Sum256([]byte(recoveryKeyInfo + archiveID))
	return sum[:]
}

func sealRecoveryPassword(archiveID, password string) (string, error) {
	key := recoveryKey(archiveID)
	defer common.WipeByteArray(key)

	env, err := cryptox.Encrypt([]byte(password), key)
	if err != nil {
		return "", fmt.Errorf("sealing recovery password: %w", err)
	}
	data, err := env.Marshal()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func openRecoveryPassword(archiveID, envelopeJSON string) (string, error) {
	env, err := cryptox.ParseEnvelope([]byte(envelopeJSON))
	if err != nil {
		return "", err
	}
	key := recoveryKey(archiveID)
	defer common.WipeByteArray(key)

	pw, err := cryptox.Decrypt(env, key)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// passwordHint describes the password's coarse shape, never its content.
func passwordHint(password string) string {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	hint := fmt.Sprintf("%d characters", len(password))
	for _, c := range []struct {
		ok   bool
		name string
	}{{hasUpper, "uppercase"}, {hasLower, "lowercase"}, {hasDigit, "digits"}, {hasSymbol, "symbols"}} {
		if c.ok {
			hint += ", " + c.name
		}
	}
	return hint
}
