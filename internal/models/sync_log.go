package models

import "time"

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusSkipped SyncStatus = "skipped"
)

type SyncLog struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	RunID       string     `gorm:"index" json:"runId"`
	StartedAt   time.Time  `gorm:"index" json:"startedAt"`
	FinishedAt  time.Time  `json:"finishedAt"`
	Status      SyncStatus `json:"status"`
	Found       int        `json:"found"`
	Inserted    int        `json:"inserted"`
	Duplicates  int        `json:"duplicates"`
	Unparseable int        `json:"unparseable"`
	Failed      int        `json:"failed"`
	Error       string     `json:"error,omitempty"`
}
