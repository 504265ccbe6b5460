package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ConfigKeyLastSync = "lastSync"
	// Consecutive passes that ended with failed messages and kept lastSync.
	ConfigKeyHeldPasses = "heldPasses"
)

// ConfigEntry is a key/value setting; Value holds any JSON document. The
// column is text so sqlite keeps scalar documents like 20 or true as written.
type ConfigEntry struct {
	Key       string         `gorm:"primaryKey" json:"key"`
	Value     datatypes.JSON `gorm:"type:text" json:"value"`
	UpdatedAt time.Time      `json:"-"`
}
