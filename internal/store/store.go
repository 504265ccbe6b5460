package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"lotero/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDuplicate is returned by InsertUnique when the code is already stored.
	ErrDuplicate = errors.New("prize code already stored")
	ErrNotFound  = errors.New("prize not found")
)

type EventKind string

const (
	EventInserted EventKind = "inserted"
	EventCleared  EventKind = "cleared"
	EventImported EventKind = "imported"
)

// Event is emitted after a successful write. Count is only set for imports.
type Event struct {
	Kind  EventKind
	Code  string
	Count int
	At    time.Time
}

// Store owns every persisted prize, the config area and the sync log.
type Store struct {
	DB *gorm.DB

	mu        sync.RWMutex
	listeners []func(Event)
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Subscribe registers fn for store change events. Listeners run synchronously
// on the writing goroutine and must not call back into the store's writers.
func (s *Store) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) emit(e Event) {
	s.mu.RLock()
	listeners := append([]func(Event){}, s.listeners...)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(e)
	}
}

// InsertUnique stores p and returns its new id. The unique index on code makes
// the check and the write a single step, so of two racing inserts exactly one
// wins and the other gets ErrDuplicate.
func (s *Store) InsertUnique(ctx context.Context, p *models.Prize) (uint, error) {
	p.ID = 0
	if err := gorm.G[models.Prize](s.DB).Create(ctx, p); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicate, p.Code)
		}
		return 0, fmt.Errorf("failed to insert prize %s: %w", p.Code, err)
	}

	s.emit(Event{Kind: EventInserted, Code: p.Code, At: time.Now()})
	return p.ID, nil
}

// NotifyImported announces a finished snapshot import of n new prizes.
func (s *Store) NotifyImported(n int) {
	s.emit(Event{Kind: EventImported, Count: n, At: time.Now()})
}

func (s *Store) GetByCode(ctx context.Context, code string) (*models.Prize, error) {
	p, err := gorm.G[models.Prize](s.DB).Where("code = ?", code).First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetAll returns every prize, oldest first.
func (s *Store) GetAll(ctx context.Context) ([]models.Prize, error) {
	return gorm.G[models.Prize](s.DB).Order("received_at ASC, id ASC").Find(ctx)
}

// Filter narrows List; zero values mean no constraint.
type Filter struct {
	Game  models.Game
	From  time.Time
	To    time.Time
	Limit int
}

// List returns prizes newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]models.Prize, error) {
	q := s.DB.WithContext(ctx).Model(&models.Prize{})
	if f.Game != "" {
		q = q.Where("game = ?", f.Game)
	}
	if !f.From.IsZero() {
		q = q.Where("received_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("received_at < ?", f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var prizes []models.Prize
	if err := q.Order("received_at DESC, id DESC").Find(&prizes).Error; err != nil {
		return nil, err
	}
	return prizes, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return gorm.G[models.Prize](s.DB).Count(ctx, "id")
}

// SetConfig stores value as JSON under key, replacing any previous value.
func (s *Store) SetConfig(ctx context.Context, key string, value any) error {
	entry, err := newConfigEntry(key, value)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(entry).Error
	if err != nil {
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}
	return nil
}

// SetConfigIfAbsent stores value only when key has no value yet. It reports
// whether the value was written.
func (s *Store) SetConfigIfAbsent(ctx context.Context, key string, value any) (bool, error) {
	entry, err := newConfigEntry(key, value)
	if err != nil {
		return false, err
	}

	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("failed to set config %s: %w", key, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetConfig decodes the value under key into out and reports whether it existed.
func (s *Store) GetConfig(ctx context.Context, key string, out any) (bool, error) {
	entry, err := gorm.G[models.ConfigEntry](s.DB).Where("key = ?", key).First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(entry.Value, out); err != nil {
		return false, fmt.Errorf("failed to decode config %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) AllConfig(ctx context.Context) ([]models.ConfigEntry, error) {
	return gorm.G[models.ConfigEntry](s.DB).Order("key ASC").Find(ctx)
}

// Watermark returns the lastSync boundary, or nil before the first completed pass.
func (s *Store) Watermark(ctx context.Context) (*time.Time, error) {
	var raw string
	ok, err := s.GetConfig(ctx, models.ConfigKeyLastSync, &raw)
	if err != nil || !ok {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", models.ConfigKeyLastSync, raw, err)
	}
	return &t, nil
}

// SetWatermark moves lastSync and clears the held-pass counter.
func (s *Store) SetWatermark(ctx context.Context, t time.Time) error {
	if err := s.SetConfig(ctx, models.ConfigKeyLastSync, t.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}
	err := s.DB.WithContext(ctx).Where("key = ?", models.ConfigKeyHeldPasses).Delete(&models.ConfigEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to reset %s: %w", models.ConfigKeyHeldPasses, err)
	}
	return nil
}

// HoldWatermark records one more pass that left lastSync in place and returns
// how many such passes happened in a row.
func (s *Store) HoldWatermark(ctx context.Context) (int, error) {
	var held int
	if _, err := s.GetConfig(ctx, models.ConfigKeyHeldPasses, &held); err != nil {
		return 0, err
	}
	held++
	if err := s.SetConfig(ctx, models.ConfigKeyHeldPasses, held); err != nil {
		return 0, err
	}
	return held, nil
}

func (s *Store) AppendSyncLog(ctx context.Context, entry *models.SyncLog) error {
	entry.ID = 0
	return gorm.G[models.SyncLog](s.DB).Create(ctx, entry)
}

func (s *Store) RecentSyncLogs(ctx context.Context, limit int) ([]models.SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}
	return gorm.G[models.SyncLog](s.DB).Order("started_at DESC, id DESC").Limit(limit).Find(ctx)
}

// Clear removes every prize, config entry and sync log.
func (s *Store) Clear(ctx context.Context) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.Prize{}, &models.ConfigEntry{}, &models.SyncLog{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}

	s.emit(Event{Kind: EventCleared, At: time.Now()})
	return nil
}

func newConfigEntry(key string, value any) (*models.ConfigEntry, error) {
	raw, ok := value.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config %s: %w", key, err)
		}
		raw = b
	}

	return &models.ConfigEntry{
		Key:       key,
		Value:     datatypes.JSON(raw),
		UpdatedAt: time.Now(),
	}, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
