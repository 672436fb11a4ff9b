package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

const (
	dynamoSnapshotSK = "SNAPSHOT"
	defaultDynamoTTL = 30 * 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface the store needs.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// dynamoStore keeps one item per conversation in a single-table layout:
// PK = "CONV#<id>", SK = "SNAPSHOT".
type dynamoStore struct {
	api   dynamodbAPI
	table string
	ttl   time.Duration
}

func convPK(id string) string { return "CONV#" + id }

func (d *dynamoStore) LoadRecentHistory(ctx context.Context, id string, limit int) ([]session.HistoryEntry, error) {
	return recentHistory(ctx, d, id, limit)
}

func (d *dynamoStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(id)},
			"SK": &types.AttributeValueMemberS{Value: dynamoSnapshotSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: dynamodb get %s: %w", id, err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	raw, ok := out.Item["snapshot"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("conversation: dynamodb item %s has no snapshot attribute", id)
	}
	snap, err := decode([]byte(raw.Value))
	if err != nil {
		return nil, fmt.Errorf("conversation: decode %s: %w", id, err)
	}
	if v, ok := out.Item["version"].(*types.AttributeValueMemberN); ok {
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			snap.Version = n
		}
	}
	return snap, nil
}

func (d *dynamoStore) Persist(ctx context.Context, id string, snap Snapshot) error {
	expected := snap.Version
	now := time.Now().UTC()
	snap.ConversationID = id
	snap.Version++
	snap.UpdatedAt = now
	b, err := encode(snap)
	if err != nil {
		return err
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: convPK(id)},
			"SK":         &types.AttributeValueMemberS{Value: dynamoSnapshotSK},
			"tenant_id":  &types.AttributeValueMemberS{Value: snap.TenantID},
			"snapshot":   &types.AttributeValueMemberS{Value: string(b)},
			"version":    &types.AttributeValueMemberN{Value: strconv.FormatInt(snap.Version, 10)},
			"updated_at": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			"ttl":        &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(d.ttl).Unix(), 10)},
		},
	}
	if expected == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK)")
	} else {
		in.ConditionExpression = aws.String("version = :v")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		}
	}

	if _, err := d.api.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrVersionConflict
		}
		return fmt.Errorf("conversation: dynamodb put %s: %w", id, err)
	}
	return nil
}

func (d *dynamoStore) Close() error { return nil }
