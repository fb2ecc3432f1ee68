package model

type Topic string

const (
	TopicMail         Topic = "メール・Google系"
	TopicSoftware     Topic = "ソフトウェア操作"
	TopicNetwork      Topic = "ネットワーク接続"
	TopicSecurity     Topic = "セキュリティ対策"
	TopicDevice       Topic = "PC・端末トラブル"
	TopicAccount      Topic = "アカウント・ログイン"
	TopicOther        Topic = "その他"
	TopicResubmission Topic = "再投稿"
)

// ResubmissionMarker at the head of a question means it follows up an earlier one.
const ResubmissionMarker = "#"

// ClassifiableTopics is the closed label set offered to the classification model.
var ClassifiableTopics = []Topic{
	TopicMail,
	TopicSoftware,
	TopicNetwork,
	TopicSecurity,
	TopicDevice,
	TopicAccount,
	TopicOther,
}

// MatchTopic returns the label equal to s. Matching is exact.
func MatchTopic(s string) (Topic, bool) {
	for _, t := range ClassifiableTopics {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

func TopicLabels() []string {
	labels := make([]string, 0, len(ClassifiableTopics))
	for _, t := range ClassifiableTopics {
		labels = append(labels, string(t))
	}
	return labels
}
