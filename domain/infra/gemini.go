package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pyama86/itdesk/domain/model"
	"github.com/sendgrid/rest"
	"github.com/tidwall/gjson"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	defaultGeminiModel    = "gemini-1.5-pro-latest"
)

type Gemini struct {
	client   *rest.Client
	endpoint string
	model    string
	key      string
}

var _ Classifier = (*Gemini)(nil)

func NewGemini() (*Gemini, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		return nil, nil
	}

	endpoint := defaultGeminiEndpoint
	if os.Getenv("GEMINI_ENDPOINT") != "" {
		endpoint = strings.TrimRight(os.Getenv("GEMINI_ENDPOINT"), "/")
	}
	m := defaultGeminiModel
	if os.Getenv("GEMINI_MODEL") != "" {
		m = os.Getenv("GEMINI_MODEL")
	}

	timeout := 30 * time.Second
	if os.Getenv("CLASSIFIER_TIMEOUT") != "" {
		d, err := time.ParseDuration(os.Getenv("CLASSIFIER_TIMEOUT"))
		if err != nil {
			return nil, fmt.Errorf("invalid CLASSIFIER_TIMEOUT: %w", err)
		}
		timeout = d
	}

	return &Gemini{
		client:   &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
		endpoint: endpoint,
		model:    m,
		key:      key,
	}, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiSchema struct {
	Type string   `json:"type"`
	Enum []string `json:"enum"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string       `json:"response_mime_type"`
	ResponseSchema   geminiSchema `json:"responseSchema"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

func (g *Gemini) Classify(ctx context.Context, text string) model.Classification {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: classificationPrompt(text)}}},
		},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: geminiSchema{
				Type: "string",
				Enum: model.TopicLabels(),
			},
		},
	})
	if err != nil {
		return model.Failed(fmt.Errorf("failed to marshal request: %w", err), "")
	}

	res, err := g.client.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		QueryParams: map[string]string{
			"key": g.key,
		},
		Body: body,
	})
	if err != nil {
		return model.Failed(fmt.Errorf("failed to call Gemini API: %w", err), "")
	}
	return parseGenerateContent(res.StatusCode, res.Body)
}

// parseGenerateContent maps a generateContent response onto a Classification.
// The model sometimes returns the label JSON-encoded a second time, so one layer of
// string quoting is removed before matching.
func parseGenerateContent(status int, body string) model.Classification {
	if status < 200 || status >= 300 {
		return model.Failed(fmt.Errorf("gemini returned status %d", status), body)
	}
	if strings.TrimSpace(body) == "" {
		return model.Failed(errors.New("gemini returned an empty body"), body)
	}
	if !gjson.Valid(body) {
		return model.Failed(errors.New("gemini returned invalid json"), body)
	}

	res := gjson.Parse(body)
	text := res.Get("candidates.0.content.parts.0.text")
	if text.Type == gjson.String && text.String() != "" {
		extracted := unwrapQuoted(strings.TrimSpace(text.String()))
		if label, ok := model.MatchTopic(extracted); ok {
			return model.Recognized(label, body)
		}
		slog.Warn("unexpected label from classifier", slog.String("label", extracted), slog.String("raw", text.String()))
		return model.Unrecognized(body)
	}

	if res.Type == gjson.String {
		s := strings.TrimSpace(res.String())
		if label, ok := model.MatchTopic(s); ok {
			return model.Recognized(label, body)
		}
		slog.Warn("classifier response is a string but not a label", slog.String("label", s))
		return model.Unrecognized(body)
	}

	slog.Warn("unexpected classifier response shape", slog.String("raw", body))
	return model.Unrecognized(body)
}

func unwrapQuoted(s string) string {
	if len(s) < 2 || !strings.HasPrefix(s, `"`) || !strings.HasSuffix(s, `"`) {
		return s
	}
	var decoded string
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		slog.Warn("failed to decode quoted label, stripping quotes", slog.String("text", s), slog.Any("err", err))
		return s[1 : len(s)-1]
	}
	return decoded
}
