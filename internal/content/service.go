// Package content encrypts and decrypts diary entries and media metadata
// using keys from the key manager. It owns the rotation re-encryption
// sweep and entry integrity validation.
package content

import (
	"context"
	"fmt"
	"time"

	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/cryptox"
	"github.com/couplesdiary/cryptocore/internal/keys"
	"github.com/couplesdiary/cryptocore/internal/logging"
	"github.com/couplesdiary/cryptocore/internal/models"
	"github.com/couplesdiary/cryptocore/internal/storage/entries"
	"github.com/google/uuid"
)

// Service is the secure content layer over the entry repository.
type Service struct {
	keys    *keys.Manager
	entries entries.Repository
	log     logging.Logger
}

// NewService constructs a Service.
func NewService(km *keys.Manager, repo entries.Repository, log logging.Logger) *Service {
	return &Service{keys: km, entries: repo, log: log.With("component", "content")}
}

// EntryUpdate lists the fields UpdateSecureEntry may change. Nil fields are
// left untouched in the stored entry.
type EntryUpdate struct {
	Content *string
	Mood    *string
	Media   *[]models.MediaItem
}

// SweepReport tallies a re-encryption sweep. The sweep never aborts on the
// first bad entry, so Processed+Errors covers every entry seen.
type SweepReport struct {
	Processed int
	Errors    int

	// Failed lists IDs of entries still under the old key. Old keys must
	// not be discarded while this is non-empty.
	Failed []string
}

// Clean reports whether every entry was migrated.
func (r *SweepReport) Clean() bool { return r.Errors == 0 }

// CreateSecureEntry encrypts content (and media metadata) and persists the
// entry. It fails with common.ErrEncryptionUnavailable when the couple has
// no diary key; the caller decides whether to fall back to plaintext or
// block. The returned entry is the decrypted view: callers never have to
// decrypt what they just wrote.
func (s *Service) CreateSecureEntry(ctx context.Context, coupleID, authorID, content, mood string, media []models.MediaItem) (*models.DiaryEntry, error) {
	diaryKey := s.keys.DiaryKey(ctx, coupleID)
	if diaryKey == nil {
		return nil, common.ErrEncryptionUnavailable
	}
	defer common.WipeByteArray(diaryKey)

	now := time.Now().UTC()
	entry := &models.DiaryEntry{
		ID:          uuid.NewString(),
		CoupleID:    coupleID,
		AuthorID:    authorID,
		Mood:        mood,
		IsEncrypted: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	sealed, err := sealContent(content, diaryKey)
	if err != nil {
		return nil, err
	}
	entry.Content = sealed

	if len(media) > 0 {
		mediaKey := s.keys.MediaKey(ctx, coupleID)
		if mediaKey == nil {
			return nil, common.ErrEncryptionUnavailable
		}
		defer common.WipeByteArray(mediaKey)

		entry.Media = make([]models.MediaItem, len(media))
		for i, item := range media {
			sealedItem, err := sealMedia(item, mediaKey)
			if err != nil {
				return nil, fmt.Errorf("encrypting media metadata: %w", err)
			}
			entry.Media[i] = sealedItem
		}
	}

	if err := s.entries.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("saving entry: %w", err)
	}

	view := *entry
	view.Content = content
	view.Media = media
	view.IsEncrypted = false
	return &view, nil
}

// SecureEntries fetches the couple's entries and decrypts each one. Entries
// whose key is unavailable or whose envelope fails authentication come back
// in their raw encrypted form rather than being dropped; the UI collaborator
// is responsible for flagging undecryptable content.
func (s *Service) SecureEntries(ctx context.Context, coupleID string, limit int) ([]*models.DiaryEntry, error) {
	rows, err := s.entries.ListByCouple(ctx, coupleID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}

	result := make([]*models.DiaryEntry, 0, len(rows))
	for _, row := range rows {
		decrypted, err := s.DecryptEntry(ctx, row, coupleID)
		if err != nil {
			s.log.Warn(ctx, "entry not decryptable, returning raw",
				"entry_id", row.ID, "couple_id", coupleID, "error", err)
			result = append(result, row)
			continue
		}
		result = append(result, decrypted)
	}
	return result, nil
}

// UpdateSecureEntry re-encrypts the fields present in updates and persists
// the entry. Fields absent from updates keep their stored value.
func (s *Service) UpdateSecureEntry(ctx context.Context, id, coupleID string, updates EntryUpdate) (*models.DiaryEntry, error) {
	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.CoupleID != coupleID {
		return nil, common.ErrNotFound
	}

	diaryKey := s.keys.DiaryKey(ctx, coupleID)
	if diaryKey == nil {
		return nil, common.ErrEncryptionUnavailable
	}
	defer common.WipeByteArray(diaryKey)

	if updates.Content != nil {
		sealed, err := sealContent(*updates.Content, diaryKey)
		if err != nil {
			return nil, err
		}
		entry.Content = sealed
		entry.IsEncrypted = true
	}
	if updates.Mood != nil {
		entry.Mood = *updates.Mood
	}
	if updates.Media != nil {
		mediaKey := s.keys.MediaKey(ctx, coupleID)
		if mediaKey == nil {
			return nil, common.ErrEncryptionUnavailable
		}
		defer common.WipeByteArray(mediaKey)

		sealedMedia := make([]models.MediaItem, len(*updates.Media))
		for i, item := range *updates.Media {
			sealedItem, err := sealMedia(item, mediaKey)
			if err != nil {
				return nil, fmt.Errorf("encrypting media metadata: %w", err)
			}
			sealedMedia[i] = sealedItem
		}
		entry.Media = sealedMedia
	}
	entry.UpdatedAt = time.Now().UTC()

	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("saving entry: %w", err)
	}

	return s.DecryptEntry(ctx, entry, coupleID)
}

// DecryptEntry returns a decrypted copy of the entry. It is idempotent: a
// plaintext entry is returned unchanged, never double-decrypted.
func (s *Service) DecryptEntry(ctx context.Context, entry *models.DiaryEntry, coupleID string) (*models.DiaryEntry, error) {
	if !entry.IsEncrypted {
		return entry, nil
	}

	diaryKey := s.keys.DiaryKey(ctx, coupleID)
	if diaryKey == nil {
		return nil, common.ErrEncryptionUnavailable
	}
	defer common.WipeByteArray(diaryKey)

	return decryptWith(entry, diaryKey, s.keys.MediaKey(ctx, coupleID))
}

// ReencryptAllEntries migrates every encrypted entry of the couple from the
// rotation's old keys to its new ones. It is partial-failure tolerant: one
// corrupt entry is counted and skipped, never allowed to abort the sweep.
// Old keys may only be discarded once the report comes back clean.
func (s *Service) ReencryptAllEntries(ctx context.Context, coupleID string, rotation *keys.Rotation) (*SweepReport, error) {
	if rotation == nil || rotation.Old == nil || rotation.New == nil {
		return nil, fmt.Errorf("%w: rotation with both key generations is required", common.ErrValidation)
	}

	rows, err := s.entries.ListByCouple(ctx, coupleID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading entries for sweep: %w", err)
	}

	report := &SweepReport{}
	for _, row := range rows {
		if !row.IsEncrypted {
			continue
		}

		if err := s.reencryptEntry(ctx, row, rotation); err != nil {
			report.Errors++
			report.Failed = append(report.Failed, row.ID)
			s.log.Error(ctx, "sweep failed for entry",
				"entry_id", row.ID, "couple_id", coupleID, "error", err)
			continue
		}
		report.Processed++
	}

	s.log.Info(ctx, "re-encryption sweep finished",
		"couple_id", coupleID, "processed", report.Processed, "errors", report.Errors)

	return report, nil
}

func (s *Service) reencryptEntry(ctx context.Context, entry *models.DiaryEntry, rotation *keys.Rotation) error {
	decrypted, err := decryptWith(entry, rotation.Old.Diary, rotation.Old.Media)
	if err != nil {
		return err
	}

	sealed, err := sealContent(decrypted.Content, rotation.New.Diary)
	if err != nil {
		return err
	}
	entry.Content = sealed

	for i, item := range decrypted.Media {
		if entry.Media[i].IsEncrypted {
			sealedItem, err := sealMedia(item, rotation.New.Media)
			if err != nil {
				return err
			}
			entry.Media[i] = sealedItem
		}
	}
	entry.UpdatedAt = time.Now().UTC()

	return s.entries.Update(ctx, entry)
}

// ValidateEntryIntegrity attempts a decrypt-only round trip. Any
// authentication failure, missing key or malformed envelope yields false;
// it never returns an error.
func (s *Service) ValidateEntryIntegrity(ctx context.Context, entry *models.DiaryEntry, coupleID string) bool {
	if !entry.IsEncrypted {
		return true
	}
	_, err := s.DecryptEntry(ctx, entry, coupleID)
	return err == nil
}

// sealContent wraps plaintext content into a serialized envelope string.
func sealContent(content string, key []byte) (string, error) {
	env, err := cryptox.Encrypt([]byte(content), key)
	if err != nil {
		return "", fmt.Errorf("encrypting content: %w", err)
	}
	data, err := env.Marshal()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// sealMedia encrypts one media item's sensitive metadata. The binary itself
// is not touched; object storage access control is an external concern.
func sealMedia(item models.MediaItem, mediaKey []byte) (models.MediaItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	meta := models.MediaMeta{Filename: item.Filename, OriginURL: item.OriginURL}
	env, err := cryptox.EncryptJSON(meta, mediaKey)
	if err != nil {
		return models.MediaItem{}, err
	}
	data, err := env.Marshal()
	if err != nil {
		return models.MediaItem{}, err
	}

	item.Filename = ""
	item.OriginURL = ""
	item.Meta = string(data)
	item.IsEncrypted = true
	return item, nil
}

// decryptWith produces a decrypted copy of entry using explicit keys. The
// media key may be nil when the entry has no encrypted media.
func decryptWith(entry *models.DiaryEntry, diaryKey, mediaKey []byte) (*models.DiaryEntry, error) {
	env, err := cryptox.ParseEnvelope([]byte(entry.Content))
	if err != nil {
		return nil, err
	}
	plaintext, err := cryptox.Decrypt(env, diaryKey)
	if err != nil {
		return nil, err
	}

	view := *entry
	view.Content = string(plaintext)
	view.IsEncrypted = false

	if len(entry.Media) > 0 {
		view.Media = make([]models.MediaItem, len(entry.Media))
		for i, item := range entry.Media {
			if !item.IsEncrypted {
				view.Media[i] = item
				continue
			}
			if mediaKey == nil {
				return nil, common.ErrEncryptionUnavailable
			}
			mediaEnv, err := cryptox.ParseEnvelope([]byte(item.Meta))
			if err != nil {
				return nil, err
			}
			var meta models.MediaMeta
			if err := cryptox.DecryptJSON(mediaEnv, mediaKey, &meta); err != nil {
				return nil, err
			}
			item.Filename = meta.Filename
			item.OriginURL = meta.OriginURL
			item.Meta = ""
			item.IsEncrypted = false
			view.Media[i] = item
		}
	}

	return &view, nil
}
