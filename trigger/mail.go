package trigger

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/pyama86/itdesk/domain/infra"
	"github.com/pyama86/itdesk/domain/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var mailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

type mailData struct {
	Name         string
	QuestionText string
	ReferenceID  string
	Reply        string
}

func render(name string, q *model.Question) (string, error) {
	var buf bytes.Buffer
	err := mailTemplates.ExecuteTemplate(&buf, name, mailData{
		Name:         q.Name,
		QuestionText: q.QuestionText,
		ReferenceID:  q.ReferenceID(),
		Reply:        q.Reply,
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func confirmationMail(q *model.Question, deskName string) (infra.Mail, error) {
	text, err := render("confirmation.txt", q)
	if err != nil {
		return infra.Mail{}, err
	}
	return infra.Mail{
		To:      q.Email,
		Subject: fmt.Sprintf("【質問を受け付けました】%sより", deskName),
		Text:    text,
	}, nil
}

func replyMail(q *model.Question, deskName string) (infra.Mail, error) {
	text, err := render("reply.txt", q)
	if err != nil {
		return infra.Mail{}, err
	}
	return infra.Mail{
		To:      q.Email,
		Subject: fmt.Sprintf("【回答をお届けします】%sより", deskName),
		Text:    text,
	}, nil
}
