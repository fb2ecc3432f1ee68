package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pyama86/itdesk/domain/model"
)

//go:generate mockgen -destination=mock/datastore.go -package=mock . Datastore

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyReplied = errors.New("question already replied")
	// ErrConflict is a write conflict the caller may retry.
	ErrConflict = errors.New("write conflict")
)

type Datastore interface {
	// 質問を保存する
	CreateQuestion(context.Context, *model.Question) error
	// 質問を1件取得する
	GetQuestion(context.Context, string) (*model.Question, error)
	// 質問を表示IDの降順で取得する
	ListQuestions(context.Context) ([]model.Question, error)
	// 表示IDかトピックが未設定のまま残っている質問を取得する
	ListIncompleteQuestions(context.Context, time.Time) ([]model.Question, error)

	// カウンタを進めて表示IDを採番する。採番済みなら既存のIDを返す
	AssignQuestionID(context.Context, string) (string, error)
	// トピックを更新する
	UpdateTopic(context.Context, string, model.Topic) error
	// 回答を保存し、同じトランザクションでアーカイブを作成する
	Reply(context.Context, string, model.Reply) (*model.Question, *model.Question, error)
	// アーカイブを取得する
	ListArchives(context.Context) ([]model.Archive, error)

	// 通知の送信権を取得する。既に取得済みならfalse
	ClaimNotification(context.Context, string, model.NotificationKind) (bool, error)
	// 回答済みなのに回答通知が取得されていない質問を取得する
	ListUnnotifiedReplies(context.Context, time.Time) ([]model.Question, error)

	// 管理者の許可リスト
	IsAllowedAdmin(context.Context, string) (bool, error)
	AddAllowedAdmin(context.Context, string) error
}

// NewDatastore picks the backend from DB_DRIVER.
func NewDatastore() (Datastore, error) {
	switch os.Getenv("DB_DRIVER") {
	case "dynamodb":
		return NewDynamoDB()
	case "", "sqlite3", "sqlite", "postgres":
		return NewDataBase()
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", os.Getenv("DB_DRIVER"))
	}
}

func timeNow() time.Time {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}
