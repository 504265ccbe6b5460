package models

import (
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

type Game string

// Display names. Snapshots store these verbatim.
const (
	GameEuromillones    Game = "Euromillones"
	GamePrimitiva       Game = "Primitiva"
	GameBonoloto        Game = "Bonoloto"
	GameElGordo         Game = "El Gordo"
	GameLoteriaNacional Game = "Lotería Nacional"
	GameQuiniela        Game = "Quiniela"
	GameOther           Game = "Otro"
)

var Games = []Game{
	GameEuromillones,
	GamePrimitiva,
	GameBonoloto,
	GameElGordo,
	GameLoteriaNacional,
	GameQuiniela,
	GameOther,
}

// Slug returns a URL-safe key, e.g. "loteria-nacional".
func (g Game) Slug() string {
	return slug.Make(string(g))
}

// GameFromSlug accepts either a slug or a display name.
func GameFromSlug(s string) (Game, bool) {
	for _, g := range Games {
		if g.Slug() == slug.Make(s) {
			return g, true
		}
	}
	return "", false
}

// Prize is one lottery-prize notification reduced to a record.
// Stored records are never updated; Code is unique.
type Prize struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	SourceMessageID      string          `gorm:"index" json:"sourceMessageId"`
	Code                 string          `gorm:"uniqueIndex;not null" json:"code"`
	Game                 Game            `gorm:"index" json:"game"`
	Amount               decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	ReceivedAt           time.Time       `gorm:"index" json:"receivedAt"`
	DrawDate             *time.Time      `json:"drawDate"`
	Administration       *string         `json:"administration"`
	Group                *string         `gorm:"column:group_name" json:"group"`
	BetCount             int             `gorm:"default:1" json:"betCount"`
	TotalCost            decimal.Decimal `gorm:"type:decimal(12,2)" json:"totalCost"`
	Combination          *string         `json:"combination"`
	SupplementaryNumbers *string         `json:"supplementaryNumbers"`
	Subject              string          `json:"subject"`
	ProcessedAt          time.Time       `json:"processedAt"`
}
