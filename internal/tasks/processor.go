package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lotero/internal/app"
	"lotero/internal/ingest"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
)

// TaskProcessor holds dependencies for our task handlers
type TaskProcessor struct {
	app *app.App
}

func NewTaskProcessor(a *app.App) *TaskProcessor {
	return &TaskProcessor{app: a}
}

func (p *TaskProcessor) HandleSyncPrizesTask(ctx context.Context, t *asynq.Task) error {
	var payload SyncPrizesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	log.Printf("Syncing prizes (trigger: %s)", payload.Trigger)

	res, err := p.app.Sync(ctx)
	if err != nil {
		if errors.Is(err, ingest.ErrSyncInProgress) {
			log.Println("Sync already running, dropping task")
			return nil
		}
		return err
	}

	alreadyBackedUp := p.app.Config.Sync.AutoBackup && len(res.Inserted) > 0
	if payload.Backup && p.app.Snapshot.HasStorage() && !alreadyBackedUp {
		if _, err := p.app.Snapshot.Backup(ctx); err != nil {
			log.Printf("backup after sync failed: %v", err)
		}
	}

	log.Printf("Sync done: %d found, %d new", res.Found, len(res.Inserted))
	return nil
}

func (p *TaskProcessor) HandleBackupSnapshotTask(ctx context.Context, t *asynq.Task) error {
	var payload BackupSnapshotPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", asynq.SkipRetry)
	}

	if !p.app.Snapshot.HasStorage() {
		return fmt.Errorf("no backup storage configured: %w", asynq.SkipRetry)
	}

	doc, err := p.app.Snapshot.Backup(ctx)
	if err != nil {
		return err
	}

	log.Printf("Backup stored with %d records (trigger: %s)", len(doc.Records), payload.Trigger)
	return nil
}

// Register wires every handler into mux.
func (p *TaskProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeTaskSyncPrizes, p.HandleSyncPrizesTask)
	mux.HandleFunc(TypeTaskBackupSnapshot, p.HandleBackupSnapshotTask)
}
