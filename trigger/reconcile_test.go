package trigger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pyama86/itdesk/domain/infra/mock"
	"github.com/pyama86/itdesk/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

func TestReconciler_Reconcile(t *testing.T) {
	ctrl := gomock.NewController(t)
	ds := mock.NewMockDatastore(ctrl)
	bus := mock.NewMockEventBus(ctrl)

	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	a := testQuestion("a")
	b := testQuestion("b")
	ds.EXPECT().ListIncompleteQuestions(gomock.Any(), now.Add(-time.Minute)).Return([]model.Question{*a, *b}, nil)
	ds.EXPECT().ListUnnotifiedReplies(gomock.Any(), now.Add(-time.Minute)).Return(nil, nil)

	var published []string
	bus.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev model.Event) error {
		assert.Equal(t, model.EventQuestionCreated, ev.Type)
		require.NotNil(t, ev.After)
		assert.Equal(t, ev.QuestionID, ev.After.ID)
		published = append(published, ev.QuestionID)
		return nil
	}).Times(2)

	r := NewReconciler(ds, bus, time.Minute)
	r.now = func() time.Time { return now }
	n, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{a.ID, b.ID}, published)
}

func TestReconciler_Reconcile_UnnotifiedReply(t *testing.T) {
	ctrl := gomock.NewController(t)
	ds := mock.NewMockDatastore(ctrl)
	bus := mock.NewMockEventBus(ctrl)

	repliedAt := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	q := testQuestion("c")
	*q = q.ApplyReply(model.Reply{Body: "再起動してください", RepliedBy: "鈴木", RepliedAt: repliedAt})
	ds.EXPECT().ListIncompleteQuestions(gomock.Any(), gomock.Any()).Return(nil, nil)
	ds.EXPECT().ListUnnotifiedReplies(gomock.Any(), gomock.Any()).Return([]model.Question{*q}, nil)

	var got model.Event
	bus.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev model.Event) error {
		got = ev
		return nil
	})

	n, err := NewReconciler(ds, bus, time.Minute).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, got.RepliedTransition())
	assert.Equal(t, q.ID, got.QuestionID)
	assert.Equal(t, "再起動してください", got.After.Reply)
}

func TestReconciler_Reconcile_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	ds := mock.NewMockDatastore(ctrl)
	bus := mock.NewMockEventBus(ctrl)
	ds.EXPECT().ListIncompleteQuestions(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := NewReconciler(ds, bus, time.Minute).Reconcile(context.Background())
	assert.Error(t, err)
}

func TestReconciler_Start(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := NewReconciler(mock.NewMockDatastore(ctrl), mock.NewMockEventBus(ctrl), time.Minute)

	_, err := r.Start(context.Background(), "not a schedule")
	assert.Error(t, err)

	c, err := r.Start(context.Background(), "@every 1h")
	require.NoError(t, err)
	c.Stop()
}
