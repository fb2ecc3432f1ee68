package model

type EventType string

const (
	EventQuestionCreated EventType = "question.created"
	EventQuestionUpdated EventType = "question.updated"
)

// Event is a document level change of a question. Before is nil for created events.
type Event struct {
	Type       EventType `json:"type"`
	QuestionID string    `json:"question_id"`
	Before     *Question `json:"before,omitempty"`
	After      *Question `json:"after,omitempty"`
}

func QuestionCreated(q *Question) Event {
	return Event{Type: EventQuestionCreated, QuestionID: q.ID, After: q}
}

func QuestionUpdated(before, after *Question) Event {
	return Event{Type: EventQuestionUpdated, QuestionID: after.ID, Before: before, After: after}
}

// RepliedTransition reports whether the event moved a question from pending to replied.
func (e Event) RepliedTransition() bool {
	return e.Type == EventQuestionUpdated &&
		e.Before != nil && e.After != nil &&
		e.Before.Status == StatusPending && e.After.Status == StatusReplied
}
