package stats

import (
	"sort"
	"time"

	"lotero/internal/models"

	"github.com/shopspring/decimal"
)

const monthsShown = 4

type GameTotal struct {
	Game  models.Game     `json:"game"`
	Slug  string          `json:"slug"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type MonthTotal struct {
	Month string          `json:"month"` // yyyy-mm
	Total decimal.Decimal `json:"total"`
}

type Summary struct {
	Total     decimal.Decimal `json:"total"`
	ThisWeek  decimal.Decimal `json:"thisWeek"`
	Count     int             `json:"count"`
	Average   decimal.Decimal `json:"average"`
	ByGame    []GameTotal     `json:"byGame"`
	ByMonth   []MonthTotal    `json:"byMonth"`
	LastSync  *time.Time      `json:"lastSync,omitempty"`
	Generated time.Time       `json:"generatedAt"`
}

// Summarize aggregates prizes as seen from now in loc. Weeks start on Sunday.
func Summarize(prizes []models.Prize, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)

	weekStart := startOfDay(now).AddDate(0, 0, -int(now.Weekday()))
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	s := Summary{
		Total:     decimal.Zero,
		ThisWeek:  decimal.Zero,
		Average:   decimal.Zero,
		Generated: now,
	}

	games := map[models.Game]*GameTotal{}
	months := make([]MonthTotal, monthsShown)
	for i := range months {
		m := monthStart.AddDate(0, i-(monthsShown-1), 0)
		months[i] = MonthTotal{Month: m.Format("2006-01"), Total: decimal.Zero}
	}

	for _, p := range prizes {
		s.Total = s.Total.Add(p.Amount)
		s.Count++

		received := p.ReceivedAt.In(loc)
		if !received.Before(weekStart) {
			s.ThisWeek = s.ThisWeek.Add(p.Amount)
		}

		g, ok := games[p.Game]
		if !ok {
			g = &GameTotal{Game: p.Game, Slug: p.Game.Slug(), Total: decimal.Zero}
			games[p.Game] = g
		}
		g.Total = g.Total.Add(p.Amount)
		g.Count++

		key := received.Format("2006-01")
		for i := range months {
			if months[i].Month == key {
				months[i].Total = months[i].Total.Add(p.Amount)
				break
			}
		}
	}

	if s.Count > 0 {
		s.Average = s.Total.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}

	s.ByGame = make([]GameTotal, 0, len(games))
	for _, g := range games {
		s.ByGame = append(s.ByGame, *g)
	}
	sort.Slice(s.ByGame, func(i, j int) bool {
		if c := s.ByGame[i].Total.Cmp(s.ByGame[j].Total); c != 0 {
			return c > 0
		}
		return s.ByGame[i].Game < s.ByGame[j].Game
	})
	s.ByMonth = months

	return s
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
