package model

import (
	"time"

	"github.com/google/uuid"
)

// Archive is the redacted copy kept after a reply. It carries nothing that identifies
// the submitter.
type Archive struct {
	ID           string    `gorm:"type:varchar(36);primary_key" json:"id"`
	Topic        Topic     `gorm:"type:varchar(50)" json:"topic"`
	Grade        string    `gorm:"type:varchar(50)" json:"grade"`
	QuestionText string    `gorm:"type:text" json:"question_text"`
	SubmittedAt  time.Time `json:"submitted_at"`
	ArchivedAt   time.Time `json:"archived_at"`
}

func NewArchive(q *Question, now time.Time) *Archive {
	return &Archive{
		ID:           uuid.NewString(),
		Topic:        q.Topic,
		Grade:        q.Grade,
		QuestionText: q.QuestionText,
		SubmittedAt:  q.SubmittedAt,
		ArchivedAt:   now,
	}
}
