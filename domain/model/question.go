package model

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusReplied Status = "replied"
)

// 教職員は学籍番号を持たない
const GradeStaff = "教職員"

type Question struct {
	ID           string     `gorm:"type:varchar(36);primary_key" json:"id"`
	QuestionID   string     `gorm:"type:varchar(16);index" json:"question_id"` // 表示用の連番 "#0007"
	Name         string     `gorm:"type:varchar(100)" json:"name"`
	Faculty      string     `gorm:"type:varchar(100)" json:"faculty"`
	Grade        string     `gorm:"type:varchar(50)" json:"grade"`
	StudentID    string     `gorm:"type:varchar(50)" json:"student_id,omitempty"`
	Email        string     `gorm:"type:varchar(255)" json:"email"`
	QuestionText string     `gorm:"type:text" json:"question_text"`
	Topic        Topic      `gorm:"type:varchar(50)" json:"topic"`
	Status       Status     `gorm:"type:varchar(20);index" json:"status"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Reply        string     `gorm:"type:text" json:"reply,omitempty"`
	RepliedAt    *time.Time `json:"replied_at,omitempty"`
	RepliedBy    string     `gorm:"type:varchar(255)" json:"replied_by,omitempty"`
}

// Reply is what an admin writes back to a pending question.
type Reply struct {
	Body      string
	RepliedBy string
	RepliedAt time.Time
}

// NewQuestion returns a pending question with a fresh document ID.
func NewQuestion(name, faculty, grade, studentID, email, text string, now time.Time) *Question {
	return &Question{
		ID:           uuid.NewString(),
		Name:         name,
		Faculty:      faculty,
		Grade:        grade,
		StudentID:    studentID,
		Email:        email,
		QuestionText: text,
		Status:       StatusPending,
		SubmittedAt:  now,
	}
}

func (q *Question) IsPending() bool {
	return q.Status == StatusPending
}

// Incomplete reports whether a trigger still has to fill in the display ID or the topic.
func (q *Question) Incomplete() bool {
	return q.QuestionID == "" || q.Topic == ""
}

// ApplyReply returns a copy of q in the replied state.
func (q Question) ApplyReply(r Reply) Question {
	at := r.RepliedAt
	q.Reply = r.Body
	q.RepliedBy = r.RepliedBy
	q.RepliedAt = &at
	q.Status = StatusReplied
	return q
}

// ReferenceID is the identifier shown to the submitter. The display ID is preferred;
// the document ID is used while the ID assigner has not run yet.
func (q *Question) ReferenceID() string {
	if q.QuestionID != "" {
		return q.QuestionID
	}
	return "#" + q.ID
}
