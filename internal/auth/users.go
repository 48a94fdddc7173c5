package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Lokman32/leadprep/internal/aws"
)

// ErrUserExists is returned by Create for a taken matricule.
var ErrUserExists = errors.New("user already exists")

type UserStore interface {
	// Get returns (nil, nil) when the user does not exist.
	Get(ctx context.Context, matricule string) (*User, error)
	Create(ctx context.Context, u User) error
}

// DynamoUserStore keeps users in a table keyed by matricule.
type DynamoUserStore struct {
	client    aws.DynamoDBAPI
	tableName string
}

func NewDynamoUserStore(client aws.DynamoDBAPI, tableName string) *DynamoUserStore {
	return &DynamoUserStore{client: client, tableName: tableName}
}

func (s *DynamoUserStore) Get(ctx context.Context, matricule string) (*User, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       map[string]types.AttributeValue{"matricule": &types.AttributeValueMemberS{Value: strings.TrimSpace(matricule)}},
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var u User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}

func (s *DynamoUserStore) Create(ctx context.Context, u User) error {
	item, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(matricule)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrUserExists
		}
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryUserStore(seed ...User) *MemoryUserStore {
	m := &MemoryUserStore{users: map[string]User{}}
	for _, u := range seed {
		m.users[u.Matricule] = u
	}
	return m
}

func (m *MemoryUserStore) Get(ctx context.Context, matricule string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[strings.TrimSpace(matricule)]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryUserStore) Create(ctx context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Matricule]; ok {
		return ErrUserExists
	}
	m.users[u.Matricule] = u
	return nil
}
