package tulotero

import (
	"time"

	"lotero/internal/models"
	"lotero/internal/pkg/mail"
)

const unknownCodePrefix = "UNKNOWN_"

// FallbackCode is the code given to messages whose subject carries no ticket code.
func FallbackCode(messageID string) string {
	return unknownCodePrefix + messageID
}

// Builder turns one decoded notification into a Prize. It never fails; the
// caller decides what to keep.
type Builder struct {
	Location *time.Location
	Now      func() time.Time
}

func NewBuilder(loc *time.Location) *Builder {
	return &Builder{Location: loc, Now: time.Now}
}

func (b *Builder) Build(msg *mail.RawMessage, body string) models.Prize {
	subject := msg.Subject()

	code, ok := Code(subject)
	if !ok {
		code = FallbackCode(msg.ID)
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	return models.Prize{
		SourceMessageID:      msg.ID,
		Code:                 code,
		Game:                 ClassifyGame(subject, body),
		Amount:               Amount(subject, body),
		ReceivedAt:           msg.ReceivedAt(),
		DrawDate:             DrawDate(body, b.Location),
		Administration:       Administration(body),
		Group:                Group(body),
		BetCount:             BetCount(body),
		TotalCost:            TotalCost(body),
		Combination:          Combination(body),
		SupplementaryNumbers: SupplementaryNumbers(body),
		Subject:              subject,
		ProcessedAt:          now(),
	}
}
