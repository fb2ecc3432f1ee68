package infra

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pyama86/itdesk/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
	})
	return string(b)
}

func TestParseGenerateContent(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   model.ClassificationKind
		topic  model.Topic
	}{
		{
			name:   "plain label",
			status: http.StatusOK,
			body:   candidateBody("ネットワーク接続"),
			kind:   model.ClassificationRecognized,
			topic:  model.TopicNetwork,
		},
		{
			name:   "label with surrounding whitespace",
			status: http.StatusOK,
			body:   candidateBody("  ソフトウェア操作\n"),
			kind:   model.ClassificationRecognized,
			topic:  model.TopicSoftware,
		},
		{
			name:   "json quoted label",
			status: http.StatusOK,
			body:   candidateBody(`"メール・Google系"`),
			kind:   model.ClassificationRecognized,
			topic:  model.TopicMail,
		},
		{
			name:   "broken quoting falls back to stripping",
			status: http.StatusOK,
			body:   candidateBody(`"PC・端末トラブル\"`),
			kind:   model.ClassificationUnrecognized,
			topic:  model.TopicOther,
		},
		{
			name:   "unknown label",
			status: http.StatusOK,
			body:   candidateBody("プリンタ"),
			kind:   model.ClassificationUnrecognized,
			topic:  model.TopicOther,
		},
		{
			name:   "bare string response",
			status: http.StatusOK,
			body:   `" セキュリティ対策 "`,
			kind:   model.ClassificationRecognized,
			topic:  model.TopicSecurity,
		},
		{
			name:   "bare string that is not a label",
			status: http.StatusOK,
			body:   `"hello"`,
			kind:   model.ClassificationUnrecognized,
			topic:  model.TopicOther,
		},
		{
			name:   "unexpected shape",
			status: http.StatusOK,
			body:   `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			kind:   model.ClassificationUnrecognized,
			topic:  model.TopicOther,
		},
		{
			name:   "empty text",
			status: http.StatusOK,
			body:   candidateBody(""),
			kind:   model.ClassificationUnrecognized,
			topic:  model.TopicOther,
		},
		{
			name:   "non 2xx",
			status: http.StatusInternalServerError,
			body:   candidateBody("ネットワーク接続"),
			kind:   model.ClassificationFailed,
			topic:  model.TopicOther,
		},
		{
			name:   "empty body",
			status: http.StatusOK,
			body:   "",
			kind:   model.ClassificationFailed,
			topic:  model.TopicOther,
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			body:   `{"candidates":`,
			kind:   model.ClassificationFailed,
			topic:  model.TopicOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseGenerateContent(tt.status, tt.body)
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.topic, got.Topic())
		})
	}
}

func TestUnwrapQuoted(t *testing.T) {
	assert.Equal(t, "その他", unwrapQuoted(`"その他"`))
	assert.Equal(t, "その他", unwrapQuoted("その他"))
	assert.Equal(t, `a\`, unwrapQuoted(`"a\"`))
	assert.Equal(t, `"`, unwrapQuoted(`"`))
}

func TestGemini_Classify(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, candidateBody(`"アカウント・ログイン"`))
	}))
	defer ts.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_ENDPOINT", ts.URL)
	t.Setenv("GEMINI_MODEL", "test-model")

	g, err := NewGemini()
	require.NoError(t, err)
	require.NotNil(t, g)

	got := g.Classify(context.Background(), "ログインできません")
	assert.Equal(t, model.ClassificationRecognized, got.Kind)
	assert.Equal(t, model.TopicAccount, got.Topic())

	assert.Equal(t, "/v1beta/models/test-model:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)

	config, ok := gotBody["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", config["response_mime_type"])
	schema, ok := config["responseSchema"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, schema["enum"], 7)

	contents, _ := json.Marshal(gotBody["contents"])
	assert.True(t, strings.Contains(string(contents), "ログインできません"))
}

func TestGemini_Classify_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("GEMINI_ENDPOINT", url)
	g, err := NewGemini()
	require.NoError(t, err)

	got := g.Classify(context.Background(), "質問")
	assert.Equal(t, model.ClassificationFailed, got.Kind)
	assert.Error(t, got.Err)
	assert.Equal(t, model.TopicOther, got.Topic())
}

func TestNewClassifier_NoKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_KEY", "")
	c, err := NewClassifier()
	require.NoError(t, err)
	assert.Nil(t, c)
}
