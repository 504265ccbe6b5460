package testhelpers

import (
	"context"
	"fmt"
	"time"

	"lotero/internal/db"
	"lotero/internal/models"

	"github.com/google/uuid"
	g "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NewTestDB opens a private in-memory sqlite database with the schema migrated.
func NewTestDB() *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	database, err := db.Open(dsn)
	g.Expect(err).NotTo(g.HaveOccurred())
	return database
}

func CleanupDB(database *gorm.DB) {
	for _, model := range []any{&models.Prize{}, &models.ConfigEntry{}, &models.SyncLog{}} {
		err := database.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error
		g.Expect(err).NotTo(g.HaveOccurred())
	}

	sqlDB, err := database.DB()
	g.Expect(err).NotTo(g.HaveOccurred())
	g.Expect(sqlDB.Close()).To(g.Succeed())
}

// PrizeAttrs overrides the defaults used by CreatePrize.
type PrizeAttrs struct {
	Code       string
	Game       models.Game
	Amount     string
	ReceivedAt time.Time
}

func BuildPrize(attrs PrizeAttrs) models.Prize {
	if attrs.Code == "" {
		attrs.Code = "TEST" + uuid.NewString()[:8]
	}
	if attrs.Game == "" {
		attrs.Game = models.GameEuromillones
	}
	if attrs.Amount == "" {
		attrs.Amount = "4.50"
	}
	if attrs.ReceivedAt.IsZero() {
		attrs.ReceivedAt = time.Date(2026, 2, 3, 21, 30, 0, 0, time.UTC)
	}

	return models.Prize{
		SourceMessageID: "msg-" + attrs.Code,
		Code:            attrs.Code,
		Game:            attrs.Game,
		Amount:          decimal.RequireFromString(attrs.Amount),
		ReceivedAt:      attrs.ReceivedAt,
		BetCount:        1,
		TotalCost:       decimal.Zero,
		Subject:         "Premio en el boleto " + attrs.Code,
		ProcessedAt:     attrs.ReceivedAt,
	}
}

func CreatePrize(database *gorm.DB, attrs PrizeAttrs) models.Prize {
	p := BuildPrize(attrs)
	err := gorm.G[models.Prize](database).Create(context.Background(), &p)
	g.Expect(err).NotTo(g.HaveOccurred())
	return p
}
