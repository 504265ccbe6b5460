package tulotero

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"lotero/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Code returns the ticket code from the subject, e.g. "CUZWKLF25934".
func Code(subject string) (string, bool) {
	code := reCode.FindString(subject)
	return code, code != ""
}

// Amount returns the prize amount of the first matching AmountRules entry,
// or zero when nothing matches.
func Amount(subject, body string) decimal.Decimal {
	text := subject + "\n" + body
	for _, rule := range AmountRules {
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return ParseEuros(m[1])
	}
	return decimal.Zero
}

// ParseEuros reads a Spanish formatted number ("1.234,56"). Garbage reads as zero.
func ParseEuros(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "")
	s = strings.Replace(s, ",", ".", 1)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DrawDate reads "Sorteo: dd/mm/yy" as a date in 20yy at midnight in loc.
func DrawDate(body string, loc *time.Location) *time.Time {
	m := reDrawDate.FindStringSubmatch(body)
	if m == nil {
		return nil
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if loc == nil {
		loc = time.UTC
	}

	t := time.Date(2000+year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalises 31/02 into March; treat that as no date
	if t.Day() != day || int(t.Month()) != month {
		return nil
	}
	return &t
}

func Administration(body string) *string {
	return firstGroup(reAdministration, body, false)
}

func Group(body string) *string {
	return firstGroup(reGroup, body, true)
}

// BetCount defaults to 1.
func BetCount(body string) int {
	m := reBetCount.FindStringSubmatch(body)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 1
	}
	return n
}

func TotalCost(body string) decimal.Decimal {
	m := reTotalCost.FindStringSubmatch(body)
	if m == nil {
		return decimal.Zero
	}
	return ParseEuros(m[1])
}

func Combination(body string) *string {
	return firstGroup(reCombination, body, false)
}

// SupplementaryNumbers reads the Euromillones stars.
func SupplementaryNumbers(body string) *string {
	return firstGroup(reStars, body, true)
}

// ClassifyGame matches GameRules against subject and body, ignoring case and accents.
func ClassifyGame(subject, body string) models.Game {
	text := fold(subject + " " + body)
	for _, rule := range GameRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Game
			}
		}
	}
	return models.GameOther
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func firstGroup(re *regexp.Regexp, s string, trim bool) *string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v := m[1]
	if trim {
		v = strings.TrimSpace(v)
	}
	if v == "" {
		return nil
	}
	return &v
}
