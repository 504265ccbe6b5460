package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeTaskSyncPrizes     = "task:sync_prizes"
	TypeTaskBackupSnapshot = "task:backup_snapshot"
)

// uniqueWindow keeps a second sync from being queued while one is pending.
const uniqueWindow = 10 * time.Minute

// SyncPrizesPayload asks for one ingestion pass.
type SyncPrizesPayload struct {
	Trigger string `json:"trigger"` // "schedule", "api", ...
	Backup  bool   `json:"backup"`
}

func NewSyncPrizesTask(trigger string, backup bool) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(SyncPrizesPayload{Trigger: trigger, Backup: backup})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeTaskSyncPrizes, payloadBytes, asynq.Unique(uniqueWindow), asynq.MaxRetry(3)), nil
}

type BackupSnapshotPayload struct {
	Trigger string `json:"trigger"`
}

func NewBackupSnapshotTask(trigger string) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(BackupSnapshotPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TypeTaskBackupSnapshot, payloadBytes, asynq.Unique(uniqueWindow)), nil
}
