package infra

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pyama86/itdesk/domain/model"
)

type DataBase struct {
	db *gorm.DB
}

var _ Datastore = (*DataBase)(nil)

func NewDataBase() (*DataBase, error) {
	var db *gorm.DB
	var err error
	if os.Getenv("DB_DRIVER") == "postgres" {
		if os.Getenv("DATABASE_URL") == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
		db, err = gorm.Open("postgres", os.Getenv("DATABASE_URL"))
		if err != nil {
			return nil, err
		}
	} else {
		dbpath := "./db/itdesk.db"
		if os.Getenv("DB_PATH") != "" {
			dbpath = os.Getenv("DB_PATH")
		}
		if !path.IsAbs(dbpath) {
			dbpath = path.Join(os.Getenv("PWD"), dbpath)
		}
		if err := os.MkdirAll(path.Dir(dbpath), 0o755); err != nil {
			return nil, err
		}
		// BEGIN IMMEDIATE で書き込みロックを先に取り、カウンタの読み書きを直列化する
		db, err = gorm.Open("sqlite3", dbpath+"?_busy_timeout=5000&_txlock=immediate")
		if err != nil {
			return nil, err
		}
		db.DB().SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(
		&model.Question{},
		&model.Counter{},
		&model.Archive{},
		&model.AllowedAdmin{},
		&model.Notification{},
	).Error; err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	if err := db.FirstOrCreate(&model.Counter{}, model.Counter{Name: model.QuestionCounter}).Error; err != nil {
		return nil, fmt.Errorf("failed to seed counter: %w", err)
	}
	return &DataBase{db: db}, nil
}

func (d *DataBase) Close() error {
	return d.db.Close()
}

func (d *DataBase) CreateQuestion(ctx context.Context, q *model.Question) error {
	return d.db.Create(q).Error
}

func (d *DataBase) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	var q model.Question
	if err := d.db.Where("id = ?", id).First(&q).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (d *DataBase) ListQuestions(ctx context.Context) ([]model.Question, error) {
	var questions []model.Question
	if err := d.db.Order("submitted_at desc").Find(&questions).Error; err != nil {
		return nil, err
	}
	sortByDisplayID(questions)
	return questions, nil
}

func (d *DataBase) ListIncompleteQuestions(ctx context.Context, before time.Time) ([]model.Question, error) {
	var questions []model.Question
	err := d.db.
		Where("(question_id = '' OR question_id IS NULL OR topic = '' OR topic IS NULL) AND submitted_at < ?", before).
		Order("submitted_at").
		Find(&questions).Error
	return questions, err
}

func (d *DataBase) lockForUpdate(tx *gorm.DB) *gorm.DB {
	// sqlite は _txlock=immediate で直列化済み
	if d.db.Dialect().GetName() == "postgres" {
		return tx.Set("gorm:query_option", "FOR UPDATE")
	}
	return tx
}

func (d *DataBase) AssignQuestionID(ctx context.Context, id string) (string, error) {
	var displayID string
	err := d.db.Transaction(func(tx *gorm.DB) error {
		var q model.Question
		if err := d.lockForUpdate(tx).Where("id = ?", id).First(&q).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				return ErrNotFound
			}
			return err
		}
		// 再実行されてもカウンタを二重に進めない
		if q.QuestionID != "" {
			displayID = q.QuestionID
			return nil
		}

		var counter model.Counter
		err := d.lockForUpdate(tx).Where("name = ?", model.QuestionCounter).First(&counter).Error
		if err != nil && !gorm.IsRecordNotFoundError(err) {
			return err
		}
		counter.Name = model.QuestionCounter
		counter.Count++
		if err := tx.Save(&counter).Error; err != nil {
			return err
		}

		displayID = model.FormatDisplayID(counter.Count)
		return tx.Model(&model.Question{}).Where("id = ?", id).Update("question_id", displayID).Error
	})
	if err != nil {
		return "", err
	}
	return displayID, nil
}

func (d *DataBase) UpdateTopic(ctx context.Context, id string, topic model.Topic) error {
	res := d.db.Model(&model.Question{}).Where("id = ?", id).Update("topic", topic)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (d *DataBase) Reply(ctx context.Context, id string, r model.Reply) (*model.Question, *model.Question, error) {
	var before, after model.Question
	err := d.db.Transaction(func(tx *gorm.DB) error {
		if err := d.lockForUpdate(tx).Where("id = ?", id).First(&before).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				return ErrNotFound
			}
			return err
		}
		if !before.IsPending() {
			return ErrAlreadyReplied
		}

		after = before.ApplyReply(r)
		res := tx.Model(&model.Question{}).
			Where("id = ? AND status = ?", id, model.StatusPending).
			Updates(map[string]interface{}{
				"reply":      after.Reply,
				"replied_by": after.RepliedBy,
				"replied_at": r.RepliedAt,
				"status":     after.Status,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyReplied
		}
		return tx.Create(model.NewArchive(&before, timeNow())).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &before, &after, nil
}

func (d *DataBase) ListArchives(ctx context.Context) ([]model.Archive, error) {
	var archives []model.Archive
	err := d.db.Order("archived_at desc").Find(&archives).Error
	return archives, err
}

func (d *DataBase) ClaimNotification(ctx context.Context, id string, kind model.NotificationKind) (bool, error) {
	err := d.db.Create(&model.Notification{
		QuestionID: id,
		Kind:       kind,
		CreatedAt:  timeNow(),
	}).Error
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, err
}

func (d *DataBase) ListUnnotifiedReplies(ctx context.Context, before time.Time) ([]model.Question, error) {
	var questions []model.Question
	err := d.db.
		Where("status = ? AND replied_at < ?", model.StatusReplied, before).
		Where("NOT EXISTS (SELECT 1 FROM notifications n WHERE n.question_id = questions.id AND n.kind = ?)", model.NotificationReply).
		Order("replied_at").
		Find(&questions).Error
	return questions, err
}

func (d *DataBase) IsAllowedAdmin(ctx context.Context, email string) (bool, error) {
	var admin model.AllowedAdmin
	err := d.db.Where("email = ?", model.NormalizeEmail(email)).First(&admin).Error
	if gorm.IsRecordNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *DataBase) AddAllowedAdmin(ctx context.Context, email string) error {
	return d.db.Save(&model.AllowedAdmin{
		Email:     model.NormalizeEmail(email),
		CreatedAt: timeNow(),
	}).Error
}

func isUniqueViolation(err error) bool {
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique") || strings.Contains(low, "duplicate key")
}

// 未採番の質問は末尾に回す
func sortByDisplayID(questions []model.Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		return model.ParseDisplayID(questions[i].QuestionID) > model.ParseDisplayID(questions[j].QuestionID)
	})
}
