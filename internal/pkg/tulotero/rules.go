package tulotero

import (
	"regexp"

	"lotero/internal/models"
)

// RulesVersion changes whenever a rule list below is reordered, added to or
// edited, since order decides which phrasing wins.
const RulesVersion = 1

// Rule is one pattern of an ordered, first-match-wins list. The first
// capture group holds the value.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

// AmountRules are tried in order over subject and body.
var AmountRules = []Rule{
	{Name: "premio de", Pattern: regexp.MustCompile(`(?i)premio de ([\d.,]+)\s*€`)},
	{Name: "premio:", Pattern: regexp.MustCompile(`(?i)Premio:\s*([\d.,]+)\s*€`)},
	{Name: "has ganado", Pattern: regexp.MustCompile(`(?i)has ganado ([\d.,]+)\s*€`)},
	{Name: "importe", Pattern: regexp.MustCompile(`(?i)importe[:\s]+([\d.,]+)\s*€`)},
}

// GameRule maps keywords (lower-case, accents removed) to a game.
type GameRule struct {
	Game     models.Game
	Keywords []string
}

// GameRules are tried in order; a message mentioning two games gets the first.
var GameRules = []GameRule{
	{Game: models.GameEuromillones, Keywords: []string{"euromillones", "euromillon"}},
	{Game: models.GamePrimitiva, Keywords: []string{"primitiva"}},
	{Game: models.GameBonoloto, Keywords: []string{"bonoloto"}},
	{Game: models.GameElGordo, Keywords: []string{"gordo"}},
	{Game: models.GameLoteriaNacional, Keywords: []string{"loteria nacional"}},
	{Game: models.GameQuiniela, Keywords: []string{"quiniela"}},
}

var (
	reCode           = regexp.MustCompile(`[A-Z0-9]{10,}`)
	reDrawDate       = regexp.MustCompile(`Sorteo:\s*(\d{2})/(\d{2})/(\d{2})`)
	reAdministration = regexp.MustCompile(`(?i)Admin\.?:\s*(\S+)`)
	reGroup          = regexp.MustCompile(`(?i)Grupo:\s*(.+?)(?:\n|Fecha)`)
	reBetCount       = regexp.MustCompile(`(?i)Apuestas:\s*(\d+)`)
	reTotalCost      = regexp.MustCompile(`(?i)Total Apuesta:\s*([\d.,]+)\s*€`)
	reCombination    = regexp.MustCompile(`(?i)Combinación:\s*([\d,]+)`)
	reStars          = regexp.MustCompile(`(?i)Estrellas:\s*([\d,\s]+)`)
)
