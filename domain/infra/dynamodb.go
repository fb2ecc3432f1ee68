package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pyama86/itdesk/domain/model"
)

type DynamoDB struct {
	db *dynamodb.Client
}

var _ Datastore = (*DynamoDB)(nil)

var tableNamePrefix = "itdesk"
var questionTableName = tableNamePrefix + "_questions"
var counterTableName = tableNamePrefix + "_counters"
var archiveTableName = tableNamePrefix + "_archives"
var allowedAdminTableName = tableNamePrefix + "_allowed_admins"
var notificationTableName = tableNamePrefix + "_notifications"

func setTableNames(prefix string) {
	tableNamePrefix = prefix
	questionTableName = tableNamePrefix + "_questions"
	counterTableName = tableNamePrefix + "_counters"
	archiveTableName = tableNamePrefix + "_archives"
	allowedAdminTableName = tableNamePrefix + "_allowed_admins"
	notificationTableName = tableNamePrefix + "_notifications"
}

func NewDynamoDB() (*DynamoDB, error) {
	if os.Getenv("DYNAMO_TABLE_NAME_PREFIX") != "" {
		setTableNames(os.Getenv("DYNAMO_TABLE_NAME_PREFIX"))
	}
	var db *dynamodb.Client
	if os.Getenv("DYNAMO_LOCAL") != "" {
		cfg, err := config.LoadDefaultConfig(context.TODO(),
			config.WithRegion("dummy"),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "dummy")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		endpoint := "http://localhost:8000"
		if os.Getenv("DYNAMO_ENDPOINT") != "" {
			endpoint = os.Getenv("DYNAMO_ENDPOINT")
		}
		db = dynamodb.NewFromConfig(cfg,
			func(o *dynamodb.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			},
		)
	} else {
		cfg, err := config.LoadDefaultConfig(context.TODO())
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %v", err)
		}

		db = dynamodb.NewFromConfig(cfg)
	}
	d := &DynamoDB{
		db: db,
	}
	if os.Getenv("DYNAMO_LOCAL") != "" {
		if err := d.EnsureTable(context.TODO()); err != nil {
			return nil, err
		}
	}
	return d, nil
}

const (
	waitInterval = 2 * time.Second // ポーリング間隔
	maxRetries   = 30              // 最大リトライ回数 (30回 = 約1分)
)

type tableKey struct {
	hash     string
	rangeKey string
}

func tableKeys() map[string]tableKey {
	return map[string]tableKey{
		questionTableName:     {hash: "id"},
		counterTableName:      {hash: "name"},
		archiveTableName:      {hash: "id"},
		allowedAdminTableName: {hash: "email"},
		notificationTableName: {hash: "question_id", rangeKey: "kind"},
	}
}

func (d *DynamoDB) EnsureTable(ctx context.Context) error {
	for tableName, key := range tableKeys() {
		if err := d.ensureSingleTable(ctx, tableName, key); err != nil {
			return fmt.Errorf("failed to ensure table %s: %v", tableName, err)
		}
	}
	return nil
}

func (d *DynamoDB) ensureSingleTable(ctx context.Context, tableName string, key tableKey) error {
	_, err := d.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err == nil {
		// テーブルが既に存在する
		return nil
	}

	if err := d.createTable(ctx, tableName, key); err != nil {
		return err
	}

	// テーブルがACTIVEになるまで待機
	for i := 0; i < maxRetries; i++ {
		out, err := d.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			return fmt.Errorf("failed to describe table %s: %v", tableName, err)
		}

		if out.Table.TableStatus == types.TableStatusActive {
			return nil
		}

		time.Sleep(waitInterval)
	}

	return fmt.Errorf("table %s creation timed out", tableName)
}

func (d *DynamoDB) createTable(ctx context.Context, tableName string, key tableKey) error {
	input := &dynamodb.CreateTableInput{
		TableName: aws.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(key.hash), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(key.hash), KeyType: types.KeyTypeHash},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(5),
			WriteCapacityUnits: aws.Int64(5),
		},
	}
	if key.rangeKey != "" {
		input.AttributeDefinitions = append(input.AttributeDefinitions,
			types.AttributeDefinition{AttributeName: aws.String(key.rangeKey), AttributeType: types.ScalarAttributeTypeS})
		input.KeySchema = append(input.KeySchema,
			types.KeySchemaElement{AttributeName: aws.String(key.rangeKey), KeyType: types.KeyTypeRange})
	}

	if _, err := d.db.CreateTable(ctx, input); err != nil {
		return fmt.Errorf("failed to create table %s: %v", tableName, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s := getStringValue(item, key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s (%s): %v", key, s, err)
	}
	return t, nil
}

func questionItem(q *model.Question) map[string]types.AttributeValue {
	repliedAt := ""
	if q.RepliedAt != nil {
		repliedAt = formatTime(*q.RepliedAt)
	}
	return map[string]types.AttributeValue{
		"id":            &types.AttributeValueMemberS{Value: q.ID},
		"question_id":   &types.AttributeValueMemberS{Value: q.QuestionID},
		"name":          &types.AttributeValueMemberS{Value: q.Name},
		"faculty":       &types.AttributeValueMemberS{Value: q.Faculty},
		"grade":         &types.AttributeValueMemberS{Value: q.Grade},
		"student_id":    &types.AttributeValueMemberS{Value: q.StudentID},
		"email":         &types.AttributeValueMemberS{Value: q.Email},
		"question_text": &types.AttributeValueMemberS{Value: q.QuestionText},
		"topic":         &types.AttributeValueMemberS{Value: string(q.Topic)},
		"status":        &types.AttributeValueMemberS{Value: string(q.Status)},
		"submitted_at":  &types.AttributeValueMemberS{Value: formatTime(q.SubmittedAt)},
		"reply":         &types.AttributeValueMemberS{Value: q.Reply},
		"replied_at":    &types.AttributeValueMemberS{Value: repliedAt},
		"replied_by":    &types.AttributeValueMemberS{Value: q.RepliedBy},
	}
}

func itemToQuestion(item map[string]types.AttributeValue) (*model.Question, error) {
	submittedAt, err := parseTime(item, "submitted_at")
	if err != nil {
		return nil, err
	}
	q := &model.Question{
		ID:           getStringValue(item, "id"),
		QuestionID:   getStringValue(item, "question_id"),
		Name:         getStringValue(item, "name"),
		Faculty:      getStringValue(item, "faculty"),
		Grade:        getStringValue(item, "grade"),
		StudentID:    getStringValue(item, "student_id"),
		Email:        getStringValue(item, "email"),
		QuestionText: getStringValue(item, "question_text"),
		Topic:        model.Topic(getStringValue(item, "topic")),
		Status:       model.Status(getStringValue(item, "status")),
		SubmittedAt:  submittedAt,
		Reply:        getStringValue(item, "reply"),
		RepliedBy:    getStringValue(item, "replied_by"),
	}
	repliedAt, err := parseTime(item, "replied_at")
	if err != nil {
		return nil, err
	}
	if !repliedAt.IsZero() {
		q.RepliedAt = &repliedAt
	}
	return q, nil
}

func archiveItem(a *model.Archive) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":            &types.AttributeValueMemberS{Value: a.ID},
		"topic":         &types.AttributeValueMemberS{Value: string(a.Topic)},
		"grade":         &types.AttributeValueMemberS{Value: a.Grade},
		"question_text": &types.AttributeValueMemberS{Value: a.QuestionText},
		"submitted_at":  &types.AttributeValueMemberS{Value: formatTime(a.SubmittedAt)},
		"archived_at":   &types.AttributeValueMemberS{Value: formatTime(a.ArchivedAt)},
	}
}

func getStringValue(item map[string]types.AttributeValue, key string) string {
	if v, ok := item[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func getNumberValue(item map[string]types.AttributeValue, key string) (int64, error) {
	if v, ok := item[key].(*types.AttributeValueMemberN); ok {
		return strconv.ParseInt(v.Value, 10, 64)
	}
	return 0, fmt.Errorf("failed to parse %s", key)
}

func (d *DynamoDB) CreateQuestion(ctx context.Context, q *model.Question) error {
	_, err := d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(questionTableName),
		Item:                questionItem(q),
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	return err
}

func (d *DynamoDB) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	result, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(questionTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return itemToQuestion(result.Item)
}

func (d *DynamoDB) scanQuestions(ctx context.Context) ([]model.Question, error) {
	var questions []model.Question
	p := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName: aws.String(questionTableName),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			q, err := itemToQuestion(item)
			if err != nil {
				return nil, err
			}
			questions = append(questions, *q)
		}
	}
	return questions, nil
}

func (d *DynamoDB) ListQuestions(ctx context.Context) ([]model.Question, error) {
	questions, err := d.scanQuestions(ctx)
	if err != nil {
		return nil, err
	}
	// Dynamoでうまいことソートできないのでここでソート
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].SubmittedAt.After(questions[j].SubmittedAt)
	})
	sortByDisplayID(questions)
	return questions, nil
}

func (d *DynamoDB) ListIncompleteQuestions(ctx context.Context, before time.Time) ([]model.Question, error) {
	questions, err := d.scanQuestions(ctx)
	if err != nil {
		return nil, err
	}
	var incomplete []model.Question
	for _, q := range questions {
		if q.Incomplete() && q.SubmittedAt.Before(before) {
			incomplete = append(incomplete, q)
		}
	}
	sort.Slice(incomplete, func(i, j int) bool {
		return incomplete[i].SubmittedAt.Before(incomplete[j].SubmittedAt)
	})
	return incomplete, nil
}

func (d *DynamoDB) currentCount(ctx context.Context) (int64, error) {
	result, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(counterTableName),
		Key: map[string]types.AttributeValue{
			"name": &types.AttributeValueMemberS{Value: model.QuestionCounter},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, err
	}
	if result.Item == nil {
		return 0, nil
	}
	return getNumberValue(result.Item, "count")
}

// AssignQuestionID increments the counter and stamps the question in one TransactWriteItems call.
// The counter update is conditioned on the value read, so a concurrent increment cancels the
// transaction and ErrConflict is returned.
func (d *DynamoDB) AssignQuestionID(ctx context.Context, id string) (string, error) {
	q, err := d.GetQuestion(ctx, id)
	if err != nil {
		return "", err
	}
	if q.QuestionID != "" {
		return q.QuestionID, nil
	}

	current, err := d.currentCount(ctx)
	if err != nil {
		return "", err
	}
	next := current + 1
	displayID := model.FormatDisplayID(next)

	_, err = d.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(counterTableName),
					Key: map[string]types.AttributeValue{
						"name": &types.AttributeValueMemberS{Value: model.QuestionCounter},
					},
					UpdateExpression:         aws.String("SET #count = :next"),
					ConditionExpression:      aws.String("attribute_not_exists(#count) OR #count = :current"),
					ExpressionAttributeNames: map[string]string{"#count": "count"},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":next":    &types.AttributeValueMemberN{Value: strconv.FormatInt(next, 10)},
						":current": &types.AttributeValueMemberN{Value: strconv.FormatInt(current, 10)},
					},
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(questionTableName),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: id},
					},
					UpdateExpression:         aws.String("SET #qid = :qid"),
					ConditionExpression:      aws.String("attribute_exists(id) AND (attribute_not_exists(#qid) OR #qid = :empty)"),
					ExpressionAttributeNames: map[string]string{"#qid": "question_id"},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":qid":   &types.AttributeValueMemberS{Value: displayID},
						":empty": &types.AttributeValueMemberS{Value: ""},
					},
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return "", fmt.Errorf("assign %s: %w", id, ErrConflict)
		}
		return "", err
	}
	return displayID, nil
}

func (d *DynamoDB) UpdateTopic(ctx context.Context, id string, topic model.Topic) error {
	_, err := d.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(questionTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:         aws.String("SET #topic = :topic"),
		ConditionExpression:      aws.String("attribute_exists(id)"),
		ExpressionAttributeNames: map[string]string{"#topic": "topic"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":topic": &types.AttributeValueMemberS{Value: string(topic)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrNotFound
	}
	return err
}

func (d *DynamoDB) Reply(ctx context.Context, id string, r model.Reply) (*model.Question, *model.Question, error) {
	before, err := d.GetQuestion(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !before.IsPending() {
		return nil, nil, ErrAlreadyReplied
	}
	after := before.ApplyReply(r)
	archive := model.NewArchive(before, timeNow())

	_, err = d.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Update: &types.Update{
					TableName: aws.String(questionTableName),
					Key: map[string]types.AttributeValue{
						"id": &types.AttributeValueMemberS{Value: id},
					},
					UpdateExpression:    aws.String("SET #reply = :reply, #replied_by = :replied_by, #replied_at = :replied_at, #status = :replied"),
					ConditionExpression: aws.String("#status = :pending"),
					ExpressionAttributeNames: map[string]string{
						"#reply":      "reply",
						"#replied_by": "replied_by",
						"#replied_at": "replied_at",
						"#status":     "status",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":reply":      &types.AttributeValueMemberS{Value: after.Reply},
						":replied_by": &types.AttributeValueMemberS{Value: after.RepliedBy},
						":replied_at": &types.AttributeValueMemberS{Value: formatTime(r.RepliedAt)},
						":replied":    &types.AttributeValueMemberS{Value: string(model.StatusReplied)},
						":pending":    &types.AttributeValueMemberS{Value: string(model.StatusPending)},
					},
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(archiveTableName),
					Item:                archiveItem(archive),
					ConditionExpression: aws.String("attribute_not_exists(id)"),
				},
			},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			if len(tce.CancellationReasons) > 0 && aws.ToString(tce.CancellationReasons[0].Code) == "ConditionalCheckFailed" {
				return nil, nil, ErrAlreadyReplied
			}
			return nil, nil, fmt.Errorf("reply %s: %w", id, ErrConflict)
		}
		return nil, nil, err
	}
	return before, &after, nil
}

func (d *DynamoDB) ListArchives(ctx context.Context) ([]model.Archive, error) {
	var archives []model.Archive
	p := dynamodb.NewScanPaginator(d.db, &dynamodb.ScanInput{
		TableName: aws.String(archiveTableName),
	})
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range out.Items {
			submittedAt, err := parseTime(item, "submitted_at")
			if err != nil {
				return nil, err
			}
			archivedAt, err := parseTime(item, "archived_at")
			if err != nil {
				return nil, err
			}
			archives = append(archives, model.Archive{
				ID:           getStringValue(item, "id"),
				Topic:        model.Topic(getStringValue(item, "topic")),
				Grade:        getStringValue(item, "grade"),
				QuestionText: getStringValue(item, "question_text"),
				SubmittedAt:  submittedAt,
				ArchivedAt:   archivedAt,
			})
		}
	}
	sort.Slice(archives, func(i, j int) bool {
		return archives[i].ArchivedAt.After(archives[j].ArchivedAt)
	})
	return archives, nil
}

func (d *DynamoDB) ClaimNotification(ctx context.Context, id string, kind model.NotificationKind) (bool, error) {
	_, err := d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(notificationTableName),
		Item: map[string]types.AttributeValue{
			"question_id": &types.AttributeValueMemberS{Value: id},
			"kind":        &types.AttributeValueMemberS{Value: string(kind)},
			"created_at":  &types.AttributeValueMemberS{Value: formatTime(timeNow())},
		},
		ConditionExpression: aws.String("attribute_not_exists(question_id)"),
	})
	if err == nil {
		return true, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return false, nil
	}
	return false, err
}

func (d *DynamoDB) notificationClaimed(ctx context.Context, id string, kind model.NotificationKind) (bool, error) {
	result, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(notificationTableName),
		Key: map[string]types.AttributeValue{
			"question_id": &types.AttributeValueMemberS{Value: id},
			"kind":        &types.AttributeValueMemberS{Value: string(kind)},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, err
	}
	return result.Item != nil, nil
}

func (d *DynamoDB) ListUnnotifiedReplies(ctx context.Context, before time.Time) ([]model.Question, error) {
	questions, err := d.scanQuestions(ctx)
	if err != nil {
		return nil, err
	}
	var unnotified []model.Question
	for _, q := range questions {
		if q.Status != model.StatusReplied || q.RepliedAt == nil || !q.RepliedAt.Before(before) {
			continue
		}
		claimed, err := d.notificationClaimed(ctx, q.ID, model.NotificationReply)
		if err != nil {
			return nil, err
		}
		if !claimed {
			unnotified = append(unnotified, q)
		}
	}
	sort.Slice(unnotified, func(i, j int) bool {
		return unnotified[i].RepliedAt.Before(*unnotified[j].RepliedAt)
	})
	return unnotified, nil
}

func (d *DynamoDB) IsAllowedAdmin(ctx context.Context, email string) (bool, error) {
	result, err := d.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(allowedAdminTableName),
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: model.NormalizeEmail(email)},
		},
	})
	if err != nil {
		return false, err
	}
	return result.Item != nil, nil
}

func (d *DynamoDB) AddAllowedAdmin(ctx context.Context, email string) error {
	_, err := d.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(allowedAdminTableName),
		Item: map[string]types.AttributeValue{
			"email":      &types.AttributeValueMemberS{Value: model.NormalizeEmail(email)},
			"created_at": &types.AttributeValueMemberS{Value: formatTime(timeNow())},
		},
	})
	return err
}
