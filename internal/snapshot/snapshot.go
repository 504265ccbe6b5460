package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"lotero/internal/models"
	"lotero/internal/store"

	log "github.com/sirupsen/logrus"
)

// Version of the document format written by Export.
const Version = 1

// ErrNoBackup is returned by Restore when the backend holds no snapshot.
var ErrNoBackup = errors.New("no backup found")

// Document is the portable dump of the whole store.
type Document struct {
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exportedAt"`
	Records    []models.Prize `json:"records"`
	Config     []ConfigPair   `json:"config"`
}

type ConfigPair struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type ImportResult struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
	Config     int `json:"config"`
}

// Store is the part of store.Store a snapshot reads and writes.
type Store interface {
	GetAll(ctx context.Context) ([]models.Prize, error)
	AllConfig(ctx context.Context) ([]models.ConfigEntry, error)
	InsertUnique(ctx context.Context, p *models.Prize) (uint, error)
	SetConfigIfAbsent(ctx context.Context, key string, value any) (bool, error)
	NotifyImported(n int)
}

// Storage is a backup backend holding a single encoded document.
// Load returns (nil, nil) when nothing has been saved yet.
type Storage interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

type Snapshotter struct {
	store   Store
	storage Storage
	now     func() time.Time
}

func New(s Store, storage Storage) *Snapshotter {
	return &Snapshotter{store: s, storage: storage, now: time.Now}
}

// HasStorage reports whether Backup and Restore have a backend to talk to.
func (s *Snapshotter) HasStorage() bool {
	return s.storage != nil
}

func (s *Snapshotter) Export(ctx context.Context) (*Document, error) {
	records, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read prizes: %w", err)
	}

	entries, err := s.store.AllConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	doc := &Document{
		Version:    Version,
		ExportedAt: s.now().UTC(),
		Records:    records,
		Config:     make([]ConfigPair, 0, len(entries)),
	}
	if doc.Records == nil {
		doc.Records = []models.Prize{}
	}
	for _, e := range entries {
		doc.Config = append(doc.Config, ConfigPair{Key: e.Key, Value: json.RawMessage(e.Value)})
	}
	return doc, nil
}

// Import merges doc into the store. Existing codes win; incoming ids are
// ignored and config keys are only written when absent.
func (s *Snapshotter) Import(ctx context.Context, doc *Document) (*ImportResult, error) {
	res := &ImportResult{}
	if doc == nil {
		return res, nil
	}

	for i := range doc.Records {
		p := doc.Records[i]
		if strings.TrimSpace(p.Code) == "" || !p.Amount.IsPositive() {
			res.Invalid++
			continue
		}

		if _, err := s.store.InsertUnique(ctx, &p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				log.WithField("code", p.Code).Debug("snapshot record already stored")
				res.Duplicates++
				continue
			}
			return res, err
		}
		res.Inserted++
	}

	for _, pair := range doc.Config {
		if pair.Key == "" || len(pair.Value) == 0 {
			continue
		}
		written, err := s.store.SetConfigIfAbsent(ctx, pair.Key, pair.Value)
		if err != nil {
			return res, err
		}
		if written {
			res.Config++
		}
	}

	s.store.NotifyImported(res.Inserted)
	return res, nil
}

func Encode(doc *Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid snapshot document: %w", err)
	}
	return &doc, nil
}

// Backup exports the store and saves it to the configured backend.
func (s *Snapshotter) Backup(ctx context.Context) (*Document, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("no backup storage configured")
	}

	doc, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}

	data, err := Encode(doc)
	if err != nil {
		return nil, err
	}

	if err := s.storage.Save(ctx, data); err != nil {
		return nil, fmt.Errorf("failed to save backup: %w", err)
	}

	log.WithField("records", len(doc.Records)).Info("backup saved")
	return doc, nil
}

// Restore loads the saved document and imports it.
func (s *Snapshotter) Restore(ctx context.Context) (*ImportResult, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("no backup storage configured")
	}

	data, err := s.storage.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load backup: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoBackup
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}

	res, err := s.Import(ctx, doc)
	if err != nil {
		return res, err
	}

	log.WithFields(log.Fields{
		"inserted":   res.Inserted,
		"duplicates": res.Duplicates,
		"invalid":    res.Invalid,
	}).Info("backup restored")
	return res, nil
}
