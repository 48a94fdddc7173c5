package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/Lokman32/leadprep/internal/aws"
)

// Keeper stores idempotency records. Store and MemoryStore implement it.
type Keeper interface {
	// CreateIfNotExists reports created=false when the key is already held.
	CreateIfNotExists(ctx context.Context, key, requestHash string) (bool, error)
	// Get returns (nil, nil) when the key is unknown.
	Get(ctx context.Context, key string) (*Record, error)
	// Retake moves a FAILED record back to IN_PROGRESS. It reports false
	// when another request got there first.
	Retake(ctx context.Context, key string) (bool, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// Store encapsulates idempotency operations against DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow: TTL window (e.g., 48*time.Hour)
func NewStore(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// CreateIfNotExists creates an IN_PROGRESS record if the key does not exist.
func (s *Store) CreateIfNotExists(ctx context.Context, key, requestHash string) (bool, error) {
	now := s.nowFunc().UTC()
	rec := Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		RequestHash:    requestHash,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(idempotency_key)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// Get retrieves a record by key. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(key),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return &rec, nil
}

func (s *Store) Retake(ctx context.Context, key string) (bool, error) {
	err := s.setStatus(ctx, key, StatusInProgress, StatusFailed, nil)
	if isConditionFailure(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update item (retake): %w", err)
	}
	return true, nil
}

// MarkDone stores the response so later duplicates can replay it.
func (s *Store) MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error {
	err := s.setStatus(ctx, key, StatusDone, StatusInProgress, map[string]types.AttributeValue{
		"response_body":   &types.AttributeValueMemberS{Value: responseBody},
		"response_status": &types.AttributeValueMemberN{Value: strconv.Itoa(responseStatus)},
	})
	if err != nil {
		return fmt.Errorf("update item (mark done): %w", err)
	}
	return nil
}

// MarkFailed lets a later request with the same key retry.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	err := s.setStatus(ctx, key, StatusFailed, StatusInProgress, map[string]types.AttributeValue{
		"note": &types.AttributeValueMemberS{Value: note},
	})
	if err != nil {
		return fmt.Errorf("update item (mark failed): %w", err)
	}
	return nil
}

// setStatus moves the record from one status to another and sets extra
// attributes in the same conditional update.
func (s *Store) setStatus(ctx context.Context, key, to, from string, extra map[string]types.AttributeValue) error {
	now := s.nowFunc().UTC()
	expr := "SET #s = :to, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":to":   &types.AttributeValueMemberS{Value: to},
		":from": &types.AttributeValueMemberS{Value: from},
		":ua":   &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}
	for attr, v := range extra {
		expr += fmt.Sprintf(", %s = :%s", attr, attr)
		values[":"+attr] = v
	}
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       s.key(key),
		UpdateExpression:          &expr,
		ConditionExpression:       aws.String("#s = :from"),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	return err
}

func (s *Store) key(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"idempotency_key": &types.AttributeValueMemberS{Value: key}}
}

func isConditionFailure(err error) bool {
	var sc smithy.APIError
	return errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException"
}

func boolPtr(b bool) *bool { return &b }
