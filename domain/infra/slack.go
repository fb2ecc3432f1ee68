package infra

import (
	"os"

	"github.com/slack-go/slack"
)

//go:generate mockgen -destination=mock/slack.go -package=mock . SlackAPI

type SlackAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// NewSlackAPI returns nil when SLACK_BOT_TOKEN is not set.
func NewSlackAPI() SlackAPI {
	if os.Getenv("SLACK_BOT_TOKEN") == "" {
		return nil
	}
	return slack.New(os.Getenv("SLACK_BOT_TOKEN"))
}
