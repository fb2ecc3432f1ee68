package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pyama86/itdesk/domain/infra"
	"github.com/pyama86/itdesk/domain/model"
	"github.com/slack-go/slack"
)

// Triggers holds the reactions to question events. classifier, mailer and slack may be nil.
type Triggers struct {
	ds         infra.Datastore
	classifier infra.Classifier
	mailer     infra.Mailer
	slack      infra.SlackAPI
	channel    string
	deskName   string
	baseURL    string
}

func New(ds infra.Datastore, classifier infra.Classifier, mailer infra.Mailer, slackAPI infra.SlackAPI, channel, deskName, baseURL string) *Triggers {
	return &Triggers{
		ds:         ds,
		classifier: classifier,
		mailer:     mailer,
		slack:      slackAPI,
		channel:    channel,
		deskName:   deskName,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (t *Triggers) Register(d *Dispatcher) {
	d.Register("addQuestionId", model.EventQuestionCreated, t.AddQuestionID)
	d.Register("categorizeQuestion", model.EventQuestionCreated, t.CategorizeQuestion)
	d.Register("sendQuestionConfirmation", model.EventQuestionCreated, t.SendQuestionConfirmation)
	d.Register("sendReplyNotification", model.EventQuestionUpdated, t.SendReplyNotification)
	if t.slack != nil && t.channel != "" {
		d.Register("notifySupportChannel", model.EventQuestionCreated, t.NotifySupportChannel)
	}
}

func (t *Triggers) AddQuestionID(ctx context.Context, ev model.Event) error {
	id, err := t.ds.AssignQuestionID(ctx, ev.QuestionID)
	if err != nil {
		return fmt.Errorf("assign question id: %w", err)
	}
	slog.Info("question id assigned", slog.String("question", ev.QuestionID), slog.String("question_id", id))
	return nil
}

func (t *Triggers) CategorizeQuestion(ctx context.Context, ev model.Event) error {
	q, err := t.ds.GetQuestion(ctx, ev.QuestionID)
	if err != nil {
		return err
	}
	// 再実行時は分類済みなら何もしない
	if q.Topic != "" {
		return nil
	}

	topic := t.classify(ctx, q.QuestionText)
	if err := t.ds.UpdateTopic(ctx, q.ID, topic); err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	slog.Info("question categorized", slog.String("question", q.ID), slog.String("topic", string(topic)))
	return nil
}

func (t *Triggers) classify(ctx context.Context, text string) (topic model.Topic) {
	if strings.HasPrefix(text, model.ResubmissionMarker) {
		return model.TopicResubmission
	}
	if t.classifier == nil {
		return model.TopicOther
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("classifier panicked", slog.Any("panic", r))
			topic = model.TopicOther
		}
	}()
	c := t.classifier.Classify(ctx, text)
	if c.Kind == model.ClassificationFailed {
		slog.Error("classification failed", slog.Any("err", c.Err), slog.String("raw", c.Raw))
	}
	return c.Topic()
}

func (t *Triggers) questionOf(ctx context.Context, ev model.Event) (*model.Question, error) {
	if ev.After != nil {
		return ev.After, nil
	}
	return t.ds.GetQuestion(ctx, ev.QuestionID)
}

func (t *Triggers) SendQuestionConfirmation(ctx context.Context, ev model.Event) error {
	if t.mailer == nil {
		slog.Warn("mailer is not configured, skip confirmation", slog.String("question", ev.QuestionID))
		return nil
	}
	q, err := t.questionOf(ctx, ev)
	if err != nil {
		return err
	}

	claimed, err := t.ds.ClaimNotification(ctx, q.ID, model.NotificationConfirmation)
	if err != nil {
		return fmt.Errorf("claim confirmation: %w", err)
	}
	if !claimed {
		return nil
	}

	m, err := confirmationMail(q, t.deskName)
	if err != nil {
		slog.Error("failed to build confirmation mail", slog.String("question", q.ID), slog.Any("err", err))
		return nil
	}
	if err := t.mailer.Send(ctx, m); err != nil {
		slog.Error("failed to send confirmation mail", slog.String("question", q.ID), slog.Any("err", err))
		return nil
	}
	slog.Info("confirmation mail sent", slog.String("question", q.ID))
	return nil
}

func (t *Triggers) SendReplyNotification(ctx context.Context, ev model.Event) error {
	if !ev.RepliedTransition() {
		return nil
	}
	if t.mailer == nil {
		slog.Warn("mailer is not configured, skip reply notification", slog.String("question", ev.QuestionID))
		return nil
	}
	q := ev.After

	claimed, err := t.ds.ClaimNotification(ctx, q.ID, model.NotificationReply)
	if err != nil {
		return fmt.Errorf("claim reply notification: %w", err)
	}
	if !claimed {
		return nil
	}

	m, err := replyMail(q, t.deskName)
	if err != nil {
		slog.Error("failed to build reply mail", slog.String("question", q.ID), slog.Any("err", err))
		return nil
	}
	if err := t.mailer.Send(ctx, m); err != nil {
		slog.Error("failed to send reply mail", slog.String("question", q.ID), slog.Any("err", err))
		return nil
	}
	slog.Info("reply mail sent", slog.String("question", q.ID))
	return nil
}

func (t *Triggers) NotifySupportChannel(ctx context.Context, ev model.Event) error {
	q, err := t.questionOf(ctx, ev)
	if err != nil {
		return err
	}
	claimed, err := t.ds.ClaimNotification(ctx, q.ID, model.NotificationSlack)
	if err != nil {
		return fmt.Errorf("claim slack notification: %w", err)
	}
	if !claimed {
		return nil
	}

	if _, _, err := t.slack.PostMessage(t.channel,
		slack.MsgOptionText(fmt.Sprintf("新しい質問が届きました: %s", q.Name), false),
		slack.MsgOptionBlocks(t.questionBlocks(q)...),
	); err != nil {
		slog.Error("failed to post slack message", slog.String("question", q.ID), slog.Any("err", err))
	}
	return nil
}

func (t *Triggers) questionBlocks(q *model.Question) []slack.Block {
	who := fmt.Sprintf("*👤 投稿者:* %s（%s %s）", q.Name, q.Faculty, q.Grade)
	return []slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject("plain_text", "📩 新しい質問", false, false),
		),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", who, false, false),
			nil, nil,
		),
		slack.NewSectionBlock(
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf(">>> %s", q.QuestionText), false, false),
			nil, nil,
		),
		slack.NewDividerBlock(),
		slack.NewContextBlock("context_block",
			slack.NewTextBlockObject("mrkdwn", fmt.Sprintf("<%s/api/admin/questions/%s|管理画面で開く>", t.baseURL, q.ID), false, false),
		),
	}
}
