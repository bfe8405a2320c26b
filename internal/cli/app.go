// Package cli is the interactive shell over the diary crypto services.
package cli

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/couplesdiary/cryptocore/internal/archive"
	"github.com/couplesdiary/cryptocore/internal/blob"
	"github.com/couplesdiary/cryptocore/internal/common"
	"github.com/couplesdiary/cryptocore/internal/config"
	"github.com/couplesdiary/cryptocore/internal/content"
	"github.com/couplesdiary/cryptocore/internal/export"
	"github.com/couplesdiary/cryptocore/internal/keys"
	"github.com/couplesdiary/cryptocore/internal/keystore"
	"github.com/couplesdiary/cryptocore/internal/logging"
	"github.com/couplesdiary/cryptocore/internal/models"
	"github.com/couplesdiary/cryptocore/internal/storage/couples"
	"github.com/couplesdiary/cryptocore/internal/storage/db"
)

// App wires the services behind the interactive shell. The active couple id
// is selected with the "use" command and applies to every subsequent command.
type App struct {
	config   *config.Config
	dbm      db.Manager
	session  *keystore.KeyStore
	keys     *keys.Manager
	content  *content.Service
	export   *export.Service
	archive  *archive.Service
	couples  couples.Repository
	log      logging.Logger
	reader   *bufio.Reader
	coupleID string
	userID   string
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	var dbm db.Manager
	var err error
	if c.UsePostgres {
		dbm, err = db.NewPostgresManager(ctx, c.DatabaseDSN)
	} else {
		dbm, err = db.NewSQLiteManager(ctx, c.DatabaseDSN)
	}
	if err != nil {
		return nil, err
	}
	repos := dbm.Repos()

	var blobs blob.Store
	if c.S3Bucket != "" {
		blobs, err = blob.NewS3Store(ctx, blob.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
		})
		if err != nil {
			return nil, err
		}
	}

	session := keystore.New()
	km := keys.New(session, repos.KeyMeta, logger)
	cs := content.NewService(km, repos.Entries, logger)
	es := export.NewService(cs, repos.Entries, repos.Plans, repos.Memories, repos.Couples, logger)
	as := archive.NewService(km, es, repos.Archives, repos.Couples,
		repos.Entries, repos.Plans, repos.Memories, session, blobs, nil, logger)

	return &App{
		config:  c,
		dbm:     dbm,
		session: session,
		keys:    km,
		content: cs,
		export:  es,
		archive: as,
		couples: repos.Couples,
		log:     logger,
		reader:  bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

// Close wipes the session keys and releases the database.
func (a *App) Close() {
	a.session.ClearAll()
	if a.dbm != nil {
		_ = a.dbm.Close()
	}
}

func (a *App) hasCouple() bool {
	return a.coupleID != ""
}

// ensureCouple creates the active couple record on first use, so export and
// breakup have a row to load. An existing record is left untouched.
func (a *App) ensureCouple(ctx context.Context) error {
	_, err := a.couples.GetByID(ctx, a.coupleID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}
	return a.couples.Upsert(ctx, &models.Couple{
		ID:        a.coupleID,
		UserID:    a.userID,
		Status:    models.CoupleStatusActive,
		StartedAt: time.Now().UTC(),
	})
}
