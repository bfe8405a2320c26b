// Package export assembles portable snapshots of a relationship's data,
// optionally password-encrypts them as a single envelope, and reverses the
// process on import. A checksum over the final bytes travels with every
// export for tamper and corruption detection.
package export

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/content"
	"github.com/couplesdiary/cryptocore/internal/cryptox"
	"github.com/couplesdiary/cryptocore/internal/logging"
	"github.com/couplesdiary/cryptocore/internal/models"
	"github.com/couplesdiary/cryptocore/internal/storage/couples"
	"github.com/couplesdiary/cryptocore/internal/storage/entries"
	"github.com/couplesdiary/cryptocore/internal/storage/memories"
	"github.com/couplesdiary/cryptocore/internal/storage/plans"
)

// Options selects what an export contains and whether it is encrypted.
type Options struct {
	// IncludePartnerData includes diary entries authored by the partner.
	// When false, only entries authored by the exporting user are included.
	IncludePartnerData bool

	// IncludeMedia keeps media metadata in exported entries. When false,
	// media URLs are replaced by a placeholder.
	IncludeMedia bool

	// From/To bound entry creation time when set.
	From *time.Time
	To   *time.Time

	// EncryptExport wraps the whole serialized bundle in a password-derived
	// envelope. ExportPassword is mandatory in that case.
	EncryptExport  bool
	ExportPassword string
}

// Service implements export and import of couple data.
type Service struct {
	content  *content.Service
	entries  entries.Repository
	plans    plans.Repository
	memories memories.Repository
	couples  couples.Repository
	log      logging.Logger
}

// NewService constructs a Service.
func NewService(cs *content.Service, er entries.Repository, pr plans.Repository, mr memories.Repository, cr couples.Repository, log logging.Logger) *Service {
	return &Service{
		content:  cs,
		entries:  er,
		plans:    pr,
		memories: mr,
		couples:  cr,
		log:      log.With("component", "export"),
	}
}

// ExportCoupleData gathers the couple's entries, plans and memories,
// decrypts diary content so the bundle holds readable data, computes
// summary statistics and serializes everything. With EncryptExport the
// serialized JSON becomes the plaintext of one password-derived envelope.
//
// A missing password with EncryptExport fails with common.ErrValidation
// before any storage access.
func (s *Service) ExportCoupleData(ctx context.Context, userID, coupleID string, opts Options) (*models.ExportResult, error) {
	if opts.EncryptExport && opts.ExportPassword == "" {
		return nil, fmt.Errorf("%w: export password is required for an encrypted export", common.ErrValidation)
	}

	couple, err := s.couples.GetByID(ctx, coupleID)
	if err != nil {
		return nil, fmt.Errorf("loading couple: %w", err)
	}

	rows, err := s.content.SecureEntries(ctx, coupleID, 0)
	if err != nil {
		return nil, err
	}

	bundleEntries := make([]models.DiaryEntry, 0, len(rows))
	for _, row := range rows {
		if !opts.IncludePartnerData && row.AuthorID != userID {
			continue
		}
		if opts.From != nil && row.CreatedAt.Before(*opts.From) {
			continue
		}
		if opts.To != nil && row.CreatedAt.After(*opts.To) {
			continue
		}
		if row.IsEncrypted {
			// Undecryptable entries stay in the export as-is rather than
			// vanishing; the importer will surface them the same way.
			s.log.Warn(ctx, "exporting entry in encrypted form", "entry_id", row.ID)
		}
		e := *row
		if !opts.IncludeMedia {
			e.Media = stripMedia(e.Media)
		}
		bundleEntries = append(bundleEntries, e)
	}

	planRows, err := s.plans.ListByCouple(ctx, coupleID)
	if err != nil {
		return nil, fmt.Errorf("loading plans: %w", err)
	}
	memoryRows, err := s.memories.ListByCouple(ctx, coupleID)
	if err != nil {
		return nil, fmt.Errorf("loading memories: %w", err)
	}

	bundle := models.ExportBundle{
		Meta: models.ExportMeta{
			ExportedAt:    time.Now().UTC(),
			ExportedBy:    userID,
			CoupleID:      coupleID,
			FormatVersion: models.ExportFormatVersion,
			Encrypted:     opts.EncryptExport,
		},
		User:     profileFor(couple.UserID, couple),
		Partner:  profileFor(couple.PartnerID, couple),
		Entries:  bundleEntries,
		Plans:    deref(planRows),
		Memories: deref(memoryRows),
		Stats:    computeStats(bundleEntries, planRows, memoryRows, couple),
	}

	serialized, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("serializing bundle: %w", err)
	}

	final := serialized
	if opts.EncryptExport {
		key, salt := cryptox.DeriveKeyFromPassword([]byte(opts.ExportPassword), nil)
		env, err := cryptox.Encrypt(serialized, key)
		common.WipeByteArray(key)
		if err != nil {
			return nil, fmt.Errorf("encrypting bundle: %w", err)
		}
		env.Salt = base64.StdEncoding.EncodeToString(salt)
		if final, err = env.Marshal(); err != nil {
			return nil, err
		}
	}

	result := &models.ExportResult{
		Data:      final,
		Checksum:  cryptox.Hash(final),
		Filename:  ExportFilename(time.Now()),
		Encrypted: opts.EncryptExport,
	}

	s.log.Info(ctx, "export assembled", "couple_id", coupleID,
		"entries", len(bundle.Entries), "encrypted", opts.EncryptExport)

	return result, nil
}

// ImportCoupleData parses an export payload back into a bundle. Encrypted
// payloads are detected by structural shape; a missing password fails with
// common.ErrPasswordRequired rather than guessing. The decrypted structure
// is validated before being accepted; nothing is partially imported.
func (s *Service) ImportCoupleData(ctx context.Context, data []byte, password string) (*models.ExportBundle, error) {
	payload := data

	if cryptox.IsEnvelope(data) {
		if password == "" {
			return nil, common.ErrPasswordRequired
		}
		env, err := cryptox.ParseEnvelope(data)
		if err != nil {
			return nil, err
		}
		if env.Salt == "" {
			return nil, fmt.Errorf("%w: export envelope missing salt", common.ErrInvalidFormat)
		}
		salt, err := base64.StdEncoding.DecodeString(env.Salt)
		if err != nil {
			return nil, fmt.Errorf("%w: bad salt encoding", common.ErrInvalidFormat)
		}
		key, _ := cryptox.DeriveKeyFromPassword([]byte(password), salt)
		payload, err = cryptox.Decrypt(env, key)
		common.WipeByteArray(key)
		if err != nil {
			return nil, err
		}
	}

	var bundle models.ExportBundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidFormat, err)
	}
	if err := validateBundle(&bundle); err != nil {
		return nil, err
	}

	return &bundle, nil
}

// Restore writes a bundle's collections back into the stores, replacing
// whatever rows the couple still has. A restrict-only breakup leaves the
// originals in place, so the restore must overwrite rather than merge.
func (s *Service) Restore(ctx context.Context, bundle *models.ExportBundle) error {
	coupleID := bundle.Meta.CoupleID
	if err := s.entries.DeleteByCouple(ctx, coupleID); err != nil {
		return fmt.Errorf("clearing entries before restore: %w", err)
	}
	if err := s.plans.DeleteByCouple(ctx, coupleID); err != nil {
		return fmt.Errorf("clearing plans before restore: %w", err)
	}
	if err := s.memories.DeleteByCouple(ctx, coupleID); err != nil {
		return fmt.Errorf("clearing memories before restore: %w", err)
	}

	for i := range bundle.Entries {
		if err := s.entries.Insert(ctx, &bundle.Entries[i]); err != nil {
			return fmt.Errorf("restoring entry %s: %w", bundle.Entries[i].ID, err)
		}
	}
	for i := range bundle.Plans {
		if err := s.plans.Insert(ctx, &bundle.Plans[i]); err != nil {
			return fmt.Errorf("restoring plan %s: %w", bundle.Plans[i].ID, err)
		}
	}
	for i := range bundle.Memories {
		if err := s.memories.Insert(ctx, &bundle.Memories[i]); err != nil {
			return fmt.Errorf("restoring memory %s: %w", bundle.Memories[i].ID, err)
		}
	}
	return nil
}

// VerifyChecksum recomputes the hash over data and compares.
func VerifyChecksum(data []byte, checksum string) bool {
	return cryptox.Hash(data) == checksum
}

// ExportFilename returns the date-stamped download name, the on-disk wire
// format any compatible importer must accept.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("couples-diary-export-%s.json", t.UTC().Format("2006-01-02"))
}

// WriteExportFile saves the export bytes under its date-stamped filename in
// dir and returns the full path. Purely a convenience; not security
// relevant.
func (s *Service) WriteExportFile(result *models.ExportResult, dir string) (string, error) {
	path := filepath.Join(dir, result.Filename)
	if err := os.WriteFile(path, result.Data, 0o600); err != nil {
		return "", fmt.Errorf("writing export file: %w", err)
	}
	return path, nil
}

func validateBundle(b *models.ExportBundle) error {
	if b.Meta.CoupleID == "" {
		return fmt.Errorf("%w: bundle missing couple id", common.ErrInvalidFormat)
	}
	if b.Meta.FormatVersion < 1 || b.Meta.FormatVersion > models.ExportFormatVersion {
		return fmt.Errorf("%w: unsupported format version %d", common.ErrInvalidFormat, b.Meta.FormatVersion)
	}
	if b.Entries == nil && b.Plans == nil && b.Memories == nil {
		return fmt.Errorf("%w: bundle has no collections", common.ErrInvalidFormat)
	}
	return nil
}

// profileFor builds the sanitized profile slice for one partner. Only
// identifiers and the join date leave the store.
func profileFor(userID string, c *models.Couple) *models.Profile {
	if userID == "" {
		return nil
	}
	return &models.Profile{UserID: userID, JoinedAt: c.StartedAt}
}

func stripMedia(items []models.MediaItem) []models.MediaItem {
	out := make([]models.MediaItem, len(items))
	for i, item := range items {
		item.OriginURL = models.MediaStrippedPlaceholder
		item.StorageKey = ""
		out[i] = item
	}
	return out
}

func computeStats(entriesList []models.DiaryEntry, planRows []*models.DatePlan, memoryRows []*models.Memory, couple *models.Couple) models.ExportStats {
	stats := models.ExportStats{
		EntryCount:  len(entriesList),
		PlanCount:   len(planRows),
		MemoryCount: len(memoryRows),
	}
	for i := range entriesList {
		created := entriesList[i].CreatedAt
		if stats.FirstEntryAt == nil || created.Before(*stats.FirstEntryAt) {
			t := created
			stats.FirstEntryAt = &t
		}
		if stats.LastEntryAt == nil || created.After(*stats.LastEntryAt) {
			t := created
			stats.LastEntryAt = &t
		}
	}
	if !couple.StartedAt.IsZero() {
		stats.DaysTogether = int(time.Since(couple.StartedAt).Hours() / 24)
	}
	return stats
}

func deref[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, *v)
	}
	return out
}
