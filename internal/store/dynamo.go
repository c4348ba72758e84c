package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/l4ndm1nes/taskflow-micro-saas/internal/config"
	"github.com/l4ndm1nes/taskflow-micro-saas/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Index ordered by (pk, created_at), used for tenant listings.
const userCreatedIndex = "by_user_created"

var (
	// ErrTaskExists indicates the conditional insert lost: a record with
	// the same (pk, sk) already exists.
	ErrTaskExists = errors.New("task already exists")

	// ErrNotPending indicates a terminal transition was refused because
	// the task is no longer PENDING.
	ErrNotPending = errors.New("task is not pending")
)

type DynamoStore struct {
	db        *dynamodb.Client
	tableName string
}

func NewDynamoStore(ctx context.Context, cfg config.Config) (*DynamoStore, error) {
	if cfg.TableName == "" {
		return nil, fmt.Errorf("TABLE_NAME is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	})

	return &DynamoStore{db: client, tableName: cfg.TableName}, nil
}

// CreateTask inserts the record only if no item with the same keys
// exists. This conditional write is the whole idempotency mechanism;
// there is no read-before-write.
func (s *DynamoStore) CreateTask(ctx context.Context, t models.Task) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return err
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk) AND attribute_not_exists(sk)"),
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrTaskExists
		}
		return err
	}
	return nil
}

// GetTask returns the task or (nil, nil) when absent. The tenant
// partition is part of the key, so a lookup can never cross tenants.
func (s *DynamoStore) GetTask(ctx context.Context, pk, taskID string) (*models.Task, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: taskID},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, nil
	}

	var t models.Task
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks pages through one tenant's tasks, most recent first. The
// returned cursor is empty on the last page.
func (s *DynamoStore) ListTasks(ctx context.Context, pk string, limit int32, cursor string) ([]models.Task, string, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(userCreatedIndex),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	}

	if c := DecodeCursor(cursor, pk); c != nil {
		in.ExclusiveStartKey = map[string]types.AttributeValue{
			"pk":         &types.AttributeValueMemberS{Value: c.PK},
			"sk":         &types.AttributeValueMemberS{Value: c.SK},
			"created_at": &types.AttributeValueMemberS{Value: c.CreatedAt},
		}
	}

	out, err := s.db.Query(ctx, in)
	if err != nil {
		return nil, "", err
	}

	var tasks []models.Task
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &tasks); err != nil {
		return nil, "", err
	}

	next := ""
	if len(out.LastEvaluatedKey) > 0 {
		next = EncodeCursor(Cursor{
			PK:        stringAttr(out.LastEvaluatedKey, "pk"),
			SK:        stringAttr(out.LastEvaluatedKey, "sk"),
			CreatedAt: stringAttr(out.LastEvaluatedKey, "created_at"),
		})
	}

	return tasks, next, nil
}

// MarkDone performs the terminal transition in a single conditional
// update: status, processed_at, result_key and stats land together, and
// only while the task is still PENDING. A replayed delivery that races
// past the read-side guard dies here instead of overwriting the result.
func (s *DynamoStore) MarkDone(ctx context.Context, pk, taskID, resultKey string, stats models.Stats, processedAt string) error {
	statsAV, err := attributevalue.Marshal(stats)
	if err != nil {
		return err
	}

	_, err = s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: taskID},
		},
		ConditionExpression: aws.String("#st = :pending"),
		UpdateExpression:    aws.String("SET #st = :done, processed_at = :ts, result_key = :rk, stats = :stats"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: models.StatusPending},
			":done":    &types.AttributeValueMemberS{Value: models.StatusDone},
			":ts":      &types.AttributeValueMemberS{Value: processedAt},
			":rk":      &types.AttributeValueMemberS{Value: resultKey},
			":stats":   statsAV,
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrNotPending
		}
		return err
	}
	return nil
}

// MarkFailed records the failure outcome, truncated, again only while
// PENDING so a late failure can never clobber a DONE task.
func (s *DynamoStore) MarkFailed(ctx context.Context, pk, taskID, errMsg, processedAt string) error {
	if len(errMsg) > 2000 {
		errMsg = errMsg[:2000]
	}

	_, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: taskID},
		},
		ConditionExpression: aws.String("#st = :pending"),
		UpdateExpression:    aws.String("SET #st = :failed, processed_at = :ts, #err = :err"),
		ExpressionAttributeNames: map[string]string{
			"#st":  "status",
			"#err": "error",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: models.StatusPending},
			":failed":  &types.AttributeValueMemberS{Value: models.StatusFailed},
			":ts":      &types.AttributeValueMemberS{Value: processedAt},
			":err":     &types.AttributeValueMemberS{Value: errMsg},
		},
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if errors.As(err, &cfe) {
			return ErrNotPending
		}
		return err
	}
	return nil
}

func stringAttr(m map[string]types.AttributeValue, name string) string {
	if v, ok := m[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
