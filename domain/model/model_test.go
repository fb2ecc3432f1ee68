package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDisplayID(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{1, "#0001"},
		{7, "#0007"},
		{123, "#0123"},
		{9999, "#9999"},
		{10000, "#10000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDisplayID(tt.n))
		assert.Equal(t, tt.n, ParseDisplayID(tt.want))
	}
}

func TestParseDisplayID_Invalid(t *testing.T) {
	assert.Equal(t, int64(0), ParseDisplayID(""))
	assert.Equal(t, int64(0), ParseDisplayID("#abc"))
}

func TestMatchTopic(t *testing.T) {
	for _, label := range TopicLabels() {
		got, ok := MatchTopic(label)
		assert.True(t, ok)
		assert.Equal(t, label, string(got))
	}

	_, ok := MatchTopic(" ネットワーク接続")
	assert.False(t, ok)
	_, ok = MatchTopic(string(TopicResubmission))
	assert.False(t, ok, "re-submission is not offered to the model")
	assert.Len(t, ClassifiableTopics, 7)
}

func TestClassification_Topic(t *testing.T) {
	assert.Equal(t, TopicNetwork, Recognized(TopicNetwork, "ネットワーク接続").Topic())
	assert.Equal(t, TopicOther, Unrecognized("なにか").Topic())
	assert.Equal(t, TopicOther, Failed(errors.New("boom"), "").Topic())
	assert.Equal(t, TopicOther, Classification{}.Topic())
}

func TestEvent_RepliedTransition(t *testing.T) {
	q := NewQuestion("山田", "経営学科", "1年", "S123", "a@example.com", "Wi-Fiにつながらない", time.Now())
	replied := q.ApplyReply(Reply{Body: "再起動してください", RepliedBy: "admin", RepliedAt: time.Now()})

	assert.True(t, QuestionUpdated(q, &replied).RepliedTransition())
	assert.False(t, QuestionUpdated(&replied, &replied).RepliedTransition())
	assert.False(t, QuestionCreated(q).RepliedTransition())

	assert.Equal(t, StatusPending, q.Status, "ApplyReply must not mutate the receiver")
	assert.Equal(t, StatusReplied, replied.Status)
	assert.NotNil(t, replied.RepliedAt)
}

func TestQuestion_ReferenceID(t *testing.T) {
	q := &Question{ID: "abc"}
	assert.Equal(t, "#abc", q.ReferenceID())
	q.QuestionID = "#0003"
	assert.Equal(t, "#0003", q.ReferenceID())
}

func TestNewArchive_Redacted(t *testing.T) {
	q := NewQuestion("山田", "経営学科", "2年", "S1", "a@example.com", "質問", time.Now())
	q.Topic = TopicAccount
	a := NewArchive(q, time.Now())
	assert.Equal(t, TopicAccount, a.Topic)
	assert.Equal(t, "2年", a.Grade)
	assert.Equal(t, "質問", a.QuestionText)
	assert.Equal(t, q.SubmittedAt, a.SubmittedAt)
	assert.NotEqual(t, q.ID, a.ID)
}
