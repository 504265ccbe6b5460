package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lotero/internal/broker"
	"lotero/internal/config"
	"lotero/internal/db"
	"lotero/internal/ingest"
	"lotero/internal/lock"
	"lotero/internal/pkg/gmail"
	"lotero/internal/pkg/r2"
	"lotero/internal/pkg/tulotero"
	"lotero/internal/snapshot"
	"lotero/internal/stats"
	"lotero/internal/store"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App carries everything a sync, backup or query needs. It is built once per
// process and handed to the CLI, the HTTP API and the worker.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *store.Store
	Pipeline *ingest.Pipeline
	Snapshot *snapshot.Snapshotter
	Location *time.Location

	closers []func() error
}

// Options replaces pieces New would otherwise build from the config.
type Options struct {
	DB        *gorm.DB
	Transport ingest.Transport
	Storage   snapshot.Storage
	Locker    lock.Locker
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Location: cfg.Location()}

	database := opts.DB
	if database == nil {
		var err error
		database, err = db.Open(cfg.DatabaseURL, cfg.DBDebug)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}
	a.DB = database
	a.Store = store.New(database)

	locker := opts.Locker
	if locker == nil {
		var err error
		locker, err = newLocker(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		if rl, ok := locker.(*lock.Redis); ok {
			a.closers = append(a.closers, rl.Close)
		}
	}

	transport := opts.Transport
	if transport == nil {
		transport = gmail.New(cfg.Gmail.BaseURL, cfg.Gmail.Query, newCredentials(ctx, cfg.Gmail))
	}

	storage := opts.Storage
	if storage == nil {
		var err error
		storage, err = newStorage(ctx, cfg.Backup)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Pipeline = ingest.New(transport, a.Store, tulotero.NewBuilder(a.Location), locker)
	a.Snapshot = snapshot.New(a.Store, storage)

	if len(cfg.Kafka.Brokers) > 0 {
		pub := broker.NewPublisher(broker.NewKafkaWriter(cfg.Kafka))
		a.Store.Subscribe(pub.Handle)
		a.closers = append(a.closers, pub.Close)
		log.Printf("Publishing store events to %s", cfg.Kafka.Topic)
	}

	return a, nil
}

// Sync runs one ingestion pass and, when enabled, a backup after it.
func (a *App) Sync(ctx context.Context) (*ingest.Result, error) {
	res, err := a.Pipeline.Run(ctx)
	if err != nil {
		return res, err
	}

	if a.Config.Sync.AutoBackup && a.Snapshot.HasStorage() && len(res.Inserted) > 0 {
		if _, err := a.Snapshot.Backup(ctx); err != nil {
			log.Printf("auto backup failed: %v", err)
		}
	}
	return res, nil
}

func (a *App) Stats(ctx context.Context) (*stats.Summary, error) {
	prizes, err := a.Store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	summary := stats.Summarize(prizes, time.Now(), a.Location)
	lastSync, err := a.Store.Watermark(ctx)
	if err != nil {
		return nil, err
	}
	summary.LastSync = lastSync
	return &summary, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newLocker(cfg *config.Config) (lock.Locker, error) {
	if cfg.RedisURL == "" {
		return lock.NewLocal(), nil
	}
	l, err := lock.NewRedisFromURL(cfg.RedisURL, "sync", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to set up redis lock: %w", err)
	}
	return l, nil
}

func newCredentials(ctx context.Context, cfg config.GmailConfig) gmail.CredentialProvider {
	if cfg.RefreshToken != "" && cfg.ClientID != "" {
		return gmail.NewRefreshCredentials(ctx, cfg.ClientID, cfg.ClientSecret, cfg.RefreshToken)
	}
	return gmail.NewStaticCredentials(cfg.AccessToken)
}

func newStorage(ctx context.Context, cfg config.BackupConfig) (snapshot.Storage, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "file":
		return &snapshot.FileStorage{Path: cfg.File}, nil
	case "r2":
		s, err := r2.New(ctx, r2.Options{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Bucket:          cfg.R2Bucket,
			Key:             cfg.R2ObjectKey,
			Endpoint:        cfg.R2Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown backup backend %q", cfg.Backend)
}
