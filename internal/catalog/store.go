package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Lokman32/leadprep/internal/aws"
)

// Store keeps parts in a DynamoDB table keyed by part_key.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore creates a new catalog Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

func (s *Store) key(identifier string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"part_key": &types.AttributeValueMemberS{Value: NormalizeKey(identifier)},
	}
}

func (s *Store) Create(ctx context.Context, part Part) error {
	part.Key = NormalizeKey(part.Identifier)
	item, err := attributevalue.MarshalMap(part)
	if err != nil {
		return fmt.Errorf("marshal part: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(part_key)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return ErrExists
		}
		return fmt.Errorf("put part: %w", err)
	}
	return nil
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*Part, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       s.key(identifier),
	})
	if err != nil {
		return nil, fmt.Errorf("get part: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var p Part
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal part: %w", err)
	}
	return &p, nil
}

func (s *Store) Exists(ctx context.Context, identifier string) (bool, error) {
	p, err := s.FindByIdentifier(ctx, identifier)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

func (s *Store) List(ctx context.Context) ([]Part, error) {
	items, err := aws.ScanAll(ctx, s.client, &dyn.ScanInput{TableName: &s.tableName})
	if err != nil {
		return nil, err
	}
	parts := make([]Part, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &parts); err != nil {
		return nil, fmt.Errorf("unmarshal parts: %w", err)
	}
	SortParts(parts)
	return parts, nil
}

// SearchByIdentifierSubstring filters a full scan; the catalog of one
// facility fits comfortably in a single scan.
func (s *Store) SearchByIdentifierSubstring(ctx context.Context, query string) ([]Part, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filterParts(all, query), nil
}

func (s *Store) UpdateFields(ctx context.Context, identifier string, patch Patch) (*Part, error) {
	sets, names, values, err := patchExpression(patch)
	if err != nil {
		return nil, err
	}
	input := &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       s.key(identifier),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(part_key)"),
		ReturnValues:              types.ReturnValueAllNew,
	}
	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update part: %w", err)
	}
	var p Part
	if err := attributevalue.UnmarshalMap(out.Attributes, &p); err != nil {
		return nil, fmt.Errorf("unmarshal part: %w", err)
	}
	return &p, nil
}

func (s *Store) Delete(ctx context.Context, identifier string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName:           &s.tableName,
		Key:                 s.key(identifier),
		ConditionExpression: aws.String("attribute_exists(part_key)"),
	})
	if err != nil {
		var cf *types.ConditionalCheckFailedException
		if errors.As(err, &cf) {
			return ErrNotFound
		}
		return fmt.Errorf("delete part: %w", err)
	}
	return nil
}

// patchExpression renders patch as "#fN = :fN" SET clauses.
func patchExpression(patch Patch) ([]string, map[string]string, map[string]types.AttributeValue, error) {
	fields := []struct {
		attr string
		val  any
	}{
		{"alt_identifier", patch.AltIdentifier},
		{"class", patch.Class},
		{"rack", patch.Rack},
		{"packaging", patch.Packaging},
		{"unit", patch.Unit},
		{"type", patch.Type},
		{"description", patch.Description},
		{"sort_order", patch.SortOrder},
	}

	var sets []string
	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	for _, f := range fields {
		switch v := f.val.(type) {
		case *string:
			if v == nil {
				continue
			}
		case *int:
			if v == nil {
				continue
			}
		case *Class:
			if v == nil {
				continue
			}
		}
		av, err := attributevalue.Marshal(f.val)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal %s: %w", f.attr, err)
		}
		n := fmt.Sprintf("f%d", len(sets))
		names["#"+n] = f.attr
		values[":"+n] = av
		sets = append(sets, fmt.Sprintf("#%s = :%s", n, n))
	}
	if len(sets) == 0 {
		return nil, nil, nil, errors.New("empty patch")
	}
	return sets, names, values, nil
}

func filterParts(all []Part, query string) []Part {
	if NormalizeKey(query) == "" {
		return all
	}
	out := make([]Part, 0)
	for _, p := range all {
		if p.Matches(query) {
			out = append(out, p)
		}
	}
	return out
}

// SortParts orders parts by SortOrder then Key.
func SortParts(parts []Part) {
	sort.SliceStable(parts, func(i, j int) bool {
		if parts[i].SortOrder != parts[j].SortOrder {
			return parts[i].SortOrder < parts[j].SortOrder
		}
		return parts[i].Key < parts[j].Key
	})
}
