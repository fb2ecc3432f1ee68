package infra

import "context"

//go:generate mockgen -destination=mock/mailer.go -package=mock . Mailer

type Mail struct {
	To      string
	Subject string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}
