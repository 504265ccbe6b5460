package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lotero/internal/lock"
	"lotero/internal/models"
	"lotero/internal/pkg/mail"
	"lotero/internal/store"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrSyncInProgress is returned when another pass holds the sync lock.
var ErrSyncInProgress = errors.New("sync already in progress")

// StuckAfter is the number of consecutive held passes after which a held
// watermark is logged as an error instead of a warning.
const StuckAfter = 3

// Transport is the mailbox the pipeline reads from.
type Transport interface {
	Search(ctx context.Context, after *time.Time) ([]mail.MessageRef, error)
	FetchFull(ctx context.Context, id string) (*mail.RawMessage, error)
}

type Store interface {
	GetByCode(ctx context.Context, code string) (*models.Prize, error)
	InsertUnique(ctx context.Context, p *models.Prize) (uint, error)
	Watermark(ctx context.Context) (*time.Time, error)
	SetWatermark(ctx context.Context, t time.Time) error
	HoldWatermark(ctx context.Context) (int, error)
	AppendSyncLog(ctx context.Context, entry *models.SyncLog) error
}

type Builder interface {
	Build(msg *mail.RawMessage, body string) models.Prize
}

type Result struct {
	RunID       string         `json:"runId"`
	Found       int            `json:"found"`
	Inserted    []models.Prize `json:"inserted"`
	Duplicates  int            `json:"duplicates"`
	Unparseable int            `json:"unparseable"`
	Failed      int            `json:"failed"`
	Watermark   *time.Time     `json:"watermark,omitempty"`
	HeldPasses  int            `json:"heldPasses,omitempty"`
}

type Pipeline struct {
	Transport Transport
	Store     Store
	Builder   Builder
	Lock      lock.Locker
	Now       func() time.Time
}

func New(transport Transport, s Store, builder Builder, locker lock.Locker) *Pipeline {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Pipeline{
		Transport: transport,
		Store:     s,
		Builder:   builder,
		Lock:      locker,
		Now:       time.Now,
	}
}

// Run performs one ingestion pass. Messages are handled one at a time; the
// watermark only moves after a pass that saw every message through.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	entry := &models.SyncLog{RunID: res.RunID, StartedAt: p.now()}
	logger := log.WithField("run", res.RunID)

	release, err := p.Lock.TryLock(ctx)
	if err != nil {
		entry.Status = models.SyncStatusSkipped
		entry.Error = err.Error()
		p.appendLog(ctx, entry)
		if errors.Is(err, lock.ErrLocked) {
			logger.Info("sync skipped, another pass is running")
			return res, ErrSyncInProgress
		}
		return res, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	defer release()

	err = p.run(ctx, res, logger)

	entry.Found = res.Found
	entry.Inserted = len(res.Inserted)
	entry.Duplicates = res.Duplicates
	entry.Unparseable = res.Unparseable
	entry.Failed = res.Failed
	entry.Status = models.SyncStatusSuccess
	if err != nil || res.Failed > 0 {
		entry.Status = models.SyncStatusFailed
	}
	if err != nil {
		entry.Error = err.Error()
	}
	p.appendLog(ctx, entry)

	logger.WithFields(log.Fields{
		"found":       res.Found,
		"inserted":    len(res.Inserted),
		"duplicates":  res.Duplicates,
		"unparseable": res.Unparseable,
		"failed":      res.Failed,
	}).Info("sync finished")

	return res, err
}

func (p *Pipeline) run(ctx context.Context, res *Result, logger *log.Entry) error {
	startedAt := p.now()

	watermark, err := p.Store.Watermark(ctx)
	if err != nil {
		return fmt.Errorf("failed to read watermark: %w", err)
	}
	res.Watermark = watermark

	refs, err := p.Transport.Search(ctx, watermark)
	if err != nil {
		return fmt.Errorf("failed to search messages: %w", err)
	}
	res.Found = len(refs)
	logger.Printf("Found %d messages", len(refs))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := p.Store.GetByCode(ctx, ref.ID); err == nil {
			res.Duplicates++
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			logger.Printf("failed to look up %s: %v", ref.ID, err)
			res.Failed++
			continue
		}

		msg, err := p.Transport.FetchFull(ctx, ref.ID)
		if err != nil {
			return fmt.Errorf("failed to fetch message %s: %w", ref.ID, err)
		}

		prize := p.Builder.Build(msg, mail.DecodeBody(msg))
		if !prize.Amount.IsPositive() {
			logger.WithField("message", ref.ID).Debug("no prize amount found")
			res.Unparseable++
			continue
		}

		if _, err := p.Store.InsertUnique(ctx, &prize); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				logger.WithField("code", prize.Code).Debug("prize already stored")
				res.Duplicates++
				continue
			}
			logger.Printf("failed to store prize %s: %v", prize.Code, err)
			res.Failed++
			continue
		}

		logger.Printf("stored prize: %s, %s, %s €", prize.Code, prize.Game, prize.Amount.StringFixed(2))
		res.Inserted = append(res.Inserted, prize)
	}

	if res.Failed > 0 {
		p.holdWatermark(ctx, res, logger)
		return nil
	}

	if err := p.Store.SetWatermark(ctx, startedAt); err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	res.Watermark = &startedAt
	return nil
}

// holdWatermark counts passes that kept lastSync because of failed messages.
// The same messages are rescanned until they store, so a long streak is an error.
func (p *Pipeline) holdWatermark(ctx context.Context, res *Result, logger *log.Entry) {
	held, err := p.Store.HoldWatermark(ctx)
	if err != nil {
		logger.Printf("failed to record held watermark: %v", err)
		return
	}
	res.HeldPasses = held

	fields := log.Fields{"failed": res.Failed, "heldPasses": held}
	if held >= StuckAfter {
		logger.WithFields(fields).Error("watermark stuck: failed messages are rescanned on every pass")
		return
	}
	logger.WithFields(fields).Warn("watermark held back by failed messages")
}

// appendLog uses a detached context so cancelled passes are still recorded.
func (p *Pipeline) appendLog(ctx context.Context, entry *models.SyncLog) {
	entry.FinishedAt = p.now()
	if err := p.Store.AppendSyncLog(context.WithoutCancel(ctx), entry); err != nil {
		log.Printf("failed to append sync log: %v", err)
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
