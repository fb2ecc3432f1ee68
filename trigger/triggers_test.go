package trigger

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pyama86/itdesk/domain/infra"
	"github.com/pyama86/itdesk/domain/infra/mock"
	"github.com/pyama86/itdesk/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

const testDesk = "松蔭大学ITサポートデスク"

func testQuestion(text string) *model.Question {
	return model.NewQuestion("山田太郎", "経営学科", "1年", "S0001", "taro@example.com", text, time.Now())
}

func TestTriggers_AddQuestionID(t *testing.T) {
	ctrl := gomock.NewController(t)
	ds := mock.NewMockDatastore(ctrl)
	q := testQuestion("質問")
	ds.EXPECT().AssignQuestionID(gomock.Any(), q.ID).Return("#0001", nil).Times(1)

	tr := New(ds, nil, nil, nil, "", testDesk, "")
	assert.NoError(t, tr.AddQuestionID(context.Background(), model.QuestionCreated(q)))

	ds.EXPECT().AssignQuestionID(gomock.Any(), q.ID).Return("", infra.ErrConflict).Times(1)
	assert.ErrorIs(t, tr.AddQuestionID(context.Background(), model.QuestionCreated(q)), infra.ErrConflict)
}

type panicClassifier struct{}

func (panicClassifier) Classify(context.Context, string) model.Classification {
	panic("classifier exploded")
}

func TestTriggers_CategorizeQuestion(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		result *model.Classification
		panics bool
		noLLM  bool
		want   model.Topic
	}{
		{
			name: "resubmission skips the classifier",
			text: "#0003 まだつながりません",
			want: model.TopicResubmission,
		},
		{
			name:   "recognized label",
			text:   "Wi-Fiにつながりません",
			result: &model.Classification{Kind: model.ClassificationRecognized, Label: model.TopicNetwork},
			want:   model.TopicNetwork,
		},
		{
			name:   "unrecognized output",
			text:   "学食のメニューは？",
			result: &model.Classification{Kind: model.ClassificationUnrecognized, Raw: "食堂"},
			want:   model.TopicOther,
		},
		{
			name:   "failed call",
			text:   "Wordが開けません",
			result: &model.Classification{Kind: model.ClassificationFailed, Err: errors.New("503")},
			want:   model.TopicOther,
		},
		{
			name:   "panicking classifier",
			text:   "質問",
			panics: true,
			want:   model.TopicOther,
		},
		{
			name:  "no classifier configured",
			text:  "質問",
			noLLM: true,
			want:  model.TopicOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ds := mock.NewMockDatastore(ctrl)
			q := testQuestion(tt.text)

			var classifier infra.Classifier
			switch {
			case tt.panics:
				classifier = panicClassifier{}
			case tt.noLLM:
			default:
				// 再投稿の場合は呼ばれないこと
				c := mock.NewMockClassifier(ctrl)
				if tt.result != nil {
					c.EXPECT().Classify(gomock.Any(), tt.text).Return(*tt.result).Times(1)
				}
				classifier = c
			}

			ds.EXPECT().GetQuestion(gomock.Any(), q.ID).Return(q, nil)
			ds.EXPECT().UpdateTopic(gomock.Any(), q.ID, tt.want).Return(nil).Times(1)

			tr := New(ds, classifier, nil, nil, "", testDesk, "")
			assert.NoError(t, tr.CategorizeQuestion(context.Background(), model.QuestionCreated(q)))
		})
	}
}

func TestTriggers_CategorizeQuestion_AlreadyCategorized(t *testing.T) {
	ctrl := gomock.NewController(t)
	ds := mock.NewMockDatastore(ctrl)
	c := mock.NewMockClassifier(ctrl)
	q := testQuestion("質問")
	q.Topic = model.TopicDevice
	ds.EXPECT().GetQuestion(gomock.Any(), q.ID).Return(q, nil)

	tr := New(ds, c, nil, nil, "", testDesk, "")
	assert.NoError(t, tr.CategorizeQuestion(context.Background(), model.QuestionCreated(q)))
}

func TestTriggers_SendQuestionConfirmation(t *testing.T) {
	q := testQuestion("プリンタが動きません")

	t.Run("sends once when claimed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ds := mock.NewMockDatastore(ctrl)
		mailer := mock.NewMockMailer(ctrl)
		ds.EXPECT().ClaimNotification(gomock.Any(), q.ID, model.NotificationConfirmation).Return(true, nil)
		mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m infra.Mail) error {
			assert.Equal(t, "taro@example.com", m.To)
			assert.Equal(t, "【質問を受け付けました】松蔭大学ITサポートデスクより", m.Subject)
			assert.True(t, strings.HasPrefix(m.Text, "山田太郎さん\n"))
			assert.Contains(t, m.Text, "▼ ご質問内容\nプリンタが動きません\n")
			assert.Contains(t, m.Text, "三営業日以内に返信いたします")
			return nil
		}).Times(1)

		tr := New(ds, nil, mailer, nil, "", testDesk, "")
		assert.NoError(t, tr.SendQuestionConfirmation(context.Background(), model.QuestionCreated(q)))
	})

	t.Run("skips when already claimed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ds := mock.NewMockDatastore(ctrl)
		mailer := mock.NewMockMailer(ctrl)
		ds.EXPECT().ClaimNotification(gomock.Any(), q.ID, model.NotificationConfirmation).Return(false, nil)

		tr := New(ds, nil, mailer, nil, "", testDesk, "")
		assert.NoError(t, tr.SendQuestionConfirmation(context.Background(), model.QuestionCreated(q)))
	})

	t.Run("send failure is swallowed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ds := mock.NewMockDatastore(ctrl)
		mailer := mock.NewMockMailer(ctrl)
		ds.EXPECT().ClaimNotification(gomock.Any(), q.ID, model.NotificationConfirmation).Return(true, nil)
		mailer.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("sendgrid down")).Times(1)

		tr := New(ds, nil, mailer, nil, "", testDesk, "")
		assert.NoError(t, tr.SendQuestionConfirmation(context.Background(), model.QuestionCreated(q)))
	})

	t.Run("claim failure is retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ds := mock.NewMockDatastore(ctrl)
		mailer := mock.NewMockMailer(ctrl)
		ds.EXPECT().ClaimNotification(gomock.Any(), q.ID, model.NotificationConfirmation).Return(false, errors.New("db locked"))

		tr := New(ds, nil, mailer, nil, "", testDesk, "")
		assert.Error(t, tr.SendQuestionConfirmation(context.Background(), model.QuestionCreated(q)))
	})

	t.Run("no mailer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ds := mock.NewMockDatastore(ctrl)
		tr := New(ds, nil, nil, nil, "", testDesk, "")
		assert.NoError(t, tr.SendQuestionConfirmation(context.Background(), model.QuestionCreated(q)))
	})
}

func TestTriggers_SendReplyNotification(t *testing.T) {
	q := testQuestion("VPNに接続できません")
	q.QuestionID = "#0012"
	replied := q.ApplyReply(model.Reply{Body: "設定を見直してください", RepliedBy: "管理者", RepliedAt: time.Now()})

	t.Run("pending to replied", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ds := mock.NewMockDatastore(ctrl)
		mailer := mock.NewMockMailer(ctrl)
		ds.EXPECT().ClaimNotification(gomock.Any(), q.ID, model.NotificationReply).Return(true, nil)
		mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m infra.Mail) error {
			assert.Equal(t, "taro@example.com", m.To)
			assert.Equal(t, "【回答をお届けします】松蔭大学ITサポートデスクより", m.Subject)
			assert.Contains(t, m.Text, "▼ ご質問ID\n#0012\n")
			assert.Contains(t, m.Text, "▼ ご質問\nVPNに接続できません\n")
			assert.Contains(t, m.Text, "▼ 回答\n設定を見直してください\n")
			assert.Contains(t, m.Text, "#0012\n（ここに再質問内容を続けて記入）")
			return nil
		}).Times(1)

		tr := New(ds, nil, mailer, nil, "", testDesk, "")
		assert.NoError(t, tr.SendReplyNotification(context.Background(), model.QuestionUpdated(q, &replied)))
	})

	t.Run("falls back to the document id", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ds := mock.NewMockDatastore(ctrl)
		mailer := mock.NewMockMailer(ctrl)
		noID := *q
		noID.QuestionID = ""
		after := noID.ApplyReply(model.Reply{Body: "回答", RepliedAt: time.Now()})
		ds.EXPECT().ClaimNotification(gomock.Any(), q.ID, model.NotificationReply).Return(true, nil)
		mailer.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m infra.Mail) error {
			assert.Contains(t, m.Text, "▼ ご質問ID\n#"+q.ID+"\n")
			return nil
		})

		tr := New(ds, nil, mailer, nil, "", testDesk, "")
		assert.NoError(t, tr.SendReplyNotification(context.Background(), model.QuestionUpdated(&noID, &after)))
	})

	t.Run("other updates are ignored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		ds := mock.NewMockDatastore(ctrl)
		mailer := mock.NewMockMailer(ctrl)

		tr := New(ds, nil, mailer, nil, "", testDesk, "")
		assert.NoError(t, tr.SendReplyNotification(context.Background(), model.QuestionUpdated(&replied, &replied)))
		assert.NoError(t, tr.SendReplyNotification(context.Background(), model.QuestionUpdated(q, q)))
	})
}

func TestTriggers_NotifySupportChannel(t *testing.T) {
	ctrl := gomock.NewController(t)
	ds := mock.NewMockDatastore(ctrl)
	slackAPI := mock.NewMockSlackAPI(ctrl)
	q := testQuestion("メールが届きません")

	ds.EXPECT().ClaimNotification(gomock.Any(), q.ID, model.NotificationSlack).Return(true, nil)
	slackAPI.EXPECT().PostMessage("C123", gomock.Any(), gomock.Any()).Return("C123", "123.456", nil).Times(1)

	tr := New(ds, nil, nil, slackAPI, "C123", testDesk, "https://desk.example.ac.jp/")
	assert.NoError(t, tr.NotifySupportChannel(context.Background(), model.QuestionCreated(q)))

	blocks := tr.questionBlocks(q)
	assert.Len(t, blocks, 6)
}

func TestTriggers_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	ds := mock.NewMockDatastore(ctrl)

	d := NewDispatcher(infra.NewMemoryBus(1), time.Second, 1, 4)
	New(ds, nil, nil, nil, "", testDesk, "").Register(d)
	assert.Len(t, d.triggers, 4)

	d = NewDispatcher(infra.NewMemoryBus(1), time.Second, 1, 4)
	New(ds, nil, nil, mock.NewMockSlackAPI(ctrl), "C123", testDesk, "").Register(d)
	assert.Len(t, d.triggers, 5)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []infra.Mail
}

func (m *recordingMailer) Send(_ context.Context, mail infra.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return nil
}

// 作成イベントを二重に配送しても採番とメールは一度だけ
func TestTriggers_CreatedEventIsIdempotent(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "trigger.db"))
	ds, err := infra.NewDataBase()
	require.NoError(t, err)
	defer ds.Close()

	ctx := context.Background()
	q := testQuestion("#0001 再質問です")
	require.NoError(t, ds.CreateQuestion(ctx, q))

	mailer := &recordingMailer{}
	d := NewDispatcher(infra.NewMemoryBus(1), time.Second, 5, 4)
	New(ds, nil, mailer, nil, "", testDesk, "").Register(d)

	ev := model.QuestionCreated(q)
	d.Dispatch(ctx, ev)
	d.Dispatch(ctx, ev)

	got, err := ds.GetQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "#0001", got.QuestionID)
	assert.Equal(t, model.TopicResubmission, got.Topic)
	assert.Len(t, mailer.sent, 1)

	// 回答すると通知が一度だけ送られる
	before, after, err := ds.Reply(ctx, q.ID, model.Reply{Body: "回答です", RepliedBy: "管理者", RepliedAt: time.Now()})
	require.NoError(t, err)
	d.Dispatch(ctx, model.QuestionUpdated(before, after))
	d.Dispatch(ctx, model.QuestionUpdated(before, after))
	require.Len(t, mailer.sent, 2)
	assert.Contains(t, mailer.sent[1].Text, "#0001")
}
