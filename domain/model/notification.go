package model

import "time"

type NotificationKind string

const (
	NotificationConfirmation NotificationKind = "confirmation"
	NotificationReply        NotificationKind = "reply"
	NotificationSlack        NotificationKind = "slack"
)

// Notification records that a notification for a question has been dispatched.
// The (QuestionID, Kind) pair is claimed once, before sending.
type Notification struct {
	QuestionID string           `gorm:"type:varchar(36);primary_key"`
	Kind       NotificationKind `gorm:"type:varchar(20);primary_key"`
	CreatedAt  time.Time
}
