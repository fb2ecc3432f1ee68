package infra

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type SendGrid struct {
	key     string
	host    string
	from    *sgmail.Email
	replyTo *sgmail.Email
}

var _ Mailer = (*SendGrid)(nil)

func NewSendGrid() (*SendGrid, error) {
	key := os.Getenv("SENDGRID_API_KEY")
	if key == "" {
		return nil, nil
	}
	if os.Getenv("MAIL_FROM") == "" {
		return nil, fmt.Errorf("MAIL_FROM is not set")
	}

	host := sendgridHost
	if os.Getenv("SENDGRID_HOST") != "" {
		host = os.Getenv("SENDGRID_HOST")
	}
	s := &SendGrid{
		key:  key,
		host: host,
		from: sgmail.NewEmail(os.Getenv("MAIL_FROM_NAME"), os.Getenv("MAIL_FROM")),
	}
	if os.Getenv("MAIL_REPLY_TO") != "" {
		s.replyTo = sgmail.NewEmail("", os.Getenv("MAIL_REPLY_TO"))
	}
	return s, nil
}

func (s *SendGrid) prepare(m Mail) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = m.Subject
	p.AddTos(sgmail.NewEmail("", m.To))

	v3 := sgmail.NewV3Mail()
	v3.SetFrom(s.from)
	if s.replyTo != nil {
		v3.SetReplyTo(s.replyTo)
	}
	v3.AddPersonalizations(p)
	v3.AddContent(sgmail.NewContent("text/plain", m.Text))
	return v3
}

func (s *SendGrid) Send(ctx context.Context, m Mail) error {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(m))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", m.To, err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid returned status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
