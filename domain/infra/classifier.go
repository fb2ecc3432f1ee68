package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/pyama86/itdesk/domain/model"
)

//go:generate mockgen -destination=mock/classifier.go -package=mock . Classifier

type Classifier interface {
	// 質問文をトピックに分類する。失敗してもエラーは返さず Classification に含める
	Classify(ctx context.Context, text string) model.Classification
}

// NewClassifier returns Gemini when GEMINI_API_KEY is set, then OpenAI, otherwise nil.
func NewClassifier() (Classifier, error) {
	gemini, err := NewGemini()
	if err != nil {
		return nil, err
	}
	if gemini != nil {
		return gemini, nil
	}

	oa, err := NewOpenAI()
	if err != nil {
		return nil, err
	}
	if oa != nil {
		return oa, nil
	}
	return nil, nil
}

func classificationPrompt(text string) string {
	labels := make([]string, 0, len(model.ClassifiableTopics))
	for _, l := range model.TopicLabels() {
		labels = append(labels, "- "+l)
	}
	return fmt.Sprintf(`あなたは大学向け IT サポートデスクの自動分類器です。
与えられた質問を **必ず下記 %d つのラベルのうち 1 つだけ** で分類してください。
出力はラベル名のみ、追加情報は一切不要です。

【ラベル一覧】
%s

【質問】
「%s」`, len(labels), strings.Join(labels, "\n"), text)
}
