// Package awstest provides an in-memory DynamoDB double for store tests.
//
// It understands the small expression subset the stores emit:
// attribute_exists / attribute_not_exists, equality against a placeholder,
// AND, and plain "SET a = :x, #b = :y" update expressions. Scan ignores
// filters and pages by key order when PageSize is set.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Item = map[string]types.AttributeValue

// MockDynamo is a thread-safe single-key-per-table DynamoDB fake.
type MockDynamo struct {
	mu       sync.Mutex
	keys     map[string]string // table -> hash key attribute
	tables   map[string]map[string]Item
	PageSize int

	// OnTransact runs before a transaction is evaluated, outside the lock.
	OnTransact func(in *dyn.TransactWriteItemsInput)
	// Err, when set, is returned by every call.
	Err error

	TransactCalls int
	Created       []string
	// TTL maps table -> expiry attribute enabled through UpdateTimeToLive.
	TTL map[string]string
}

// NewMockDynamo builds a fake with the given table -> hash key schema.
func NewMockDynamo(keys map[string]string) *MockDynamo {
	m := &MockDynamo{keys: map[string]string{}, tables: map[string]map[string]Item{}}
	for t, k := range keys {
		m.keys[t] = k
		m.tables[t] = map[string]Item{}
	}
	return m
}

// Seed writes item directly, bypassing conditions.
func (m *MockDynamo) Seed(table string, item Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := m.pk(table, item)
	if err != nil {
		panic(err)
	}
	m.tables[table][pk] = copyItem(item)
}

// Raw returns a copy of the stored item, or nil.
func (m *MockDynamo) Raw(table, key string) Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.tables[table][key]
	if !ok {
		return nil
	}
	return copyItem(it)
}

// Len returns the number of items in table.
func (m *MockDynamo) Len(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *MockDynamo) pk(table string, item Item) (string, error) {
	attr, ok := m.keys[table]
	if !ok {
		return "", fmt.Errorf("unknown table %s", table)
	}
	v, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("table %s: missing key %s", table, attr)
	}
	return v.Value, nil
}

func (m *MockDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := m.pk(*in.TableName, in.Item)
	if err != nil {
		return nil, err
	}
	current := m.tables[*in.TableName][pk]
	if !evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, current) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	m.tables[*in.TableName][pk] = copyItem(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *MockDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := m.pk(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	it, ok := m.tables[*in.TableName][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(it)}, nil
}

func (m *MockDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := m.pk(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	current := m.tables[*in.TableName][pk]
	if !evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, current) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	next := copyItem(current)
	if next == nil {
		next = copyItem(in.Key)
	}
	if err := applySet(in.UpdateExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, next); err != nil {
		return nil, err
	}
	m.tables[*in.TableName][pk] = next
	return &dyn.UpdateItemOutput{Attributes: copyItem(next)}, nil
}

func (m *MockDynamo) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := m.pk(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	current := m.tables[*in.TableName][pk]
	if !evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, current) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(m.tables[*in.TableName], pk)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *MockDynamo) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *in.TableName
	keys := make([]string, 0, len(m.tables[table]))
	for k := range m.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if len(in.ExclusiveStartKey) > 0 {
		after, err := m.pk(table, in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}
	end := len(keys)
	if m.PageSize > 0 && start+m.PageSize < end {
		end = start + m.PageSize
	}

	out := &dyn.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, copyItem(m.tables[table][k]))
	}
	if end < len(keys) {
		last := m.tables[table][keys[end-1]]
		attr := m.keys[table]
		out.LastEvaluatedKey = Item{attr: last[attr]}
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (m *MockDynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	if m.OnTransact != nil {
		m.OnTransact(in)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransactCalls++

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, it := range in.TransactItems {
		table, key, cond, names, values, err := m.describe(it)
		if err != nil {
			return nil, err
		}
		current := m.tables[table][key]
		code := "None"
		if !evalCondition(cond, names, values, current) {
			code = "ConditionalCheckFailed"
			failed = true
		}
		reasons[i] = types.CancellationReason{Code: &code}
	}
	if failed {
		msg := "Transaction cancelled"
		return nil, &types.TransactionCanceledException{Message: &msg, CancellationReasons: reasons}
	}

	for _, it := range in.TransactItems {
		switch {
		case it.Put != nil:
			pk, _ := m.pk(*it.Put.TableName, it.Put.Item)
			m.tables[*it.Put.TableName][pk] = copyItem(it.Put.Item)
		case it.Delete != nil:
			pk, _ := m.pk(*it.Delete.TableName, it.Delete.Key)
			delete(m.tables[*it.Delete.TableName], pk)
		case it.Update != nil:
			pk, _ := m.pk(*it.Update.TableName, it.Update.Key)
			next := copyItem(m.tables[*it.Update.TableName][pk])
			if next == nil {
				next = copyItem(it.Update.Key)
			}
			if err := applySet(it.Update.UpdateExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues, next); err != nil {
				return nil, err
			}
			m.tables[*it.Update.TableName][pk] = next
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *MockDynamo) describe(it types.TransactWriteItem) (string, string, *string, map[string]string, map[string]types.AttributeValue, error) {
	switch {
	case it.Put != nil:
		pk, err := m.pk(*it.Put.TableName, it.Put.Item)
		return *it.Put.TableName, pk, it.Put.ConditionExpression, it.Put.ExpressionAttributeNames, it.Put.ExpressionAttributeValues, err
	case it.Delete != nil:
		pk, err := m.pk(*it.Delete.TableName, it.Delete.Key)
		return *it.Delete.TableName, pk, it.Delete.ConditionExpression, it.Delete.ExpressionAttributeNames, it.Delete.ExpressionAttributeValues, err
	case it.Update != nil:
		pk, err := m.pk(*it.Update.TableName, it.Update.Key)
		return *it.Update.TableName, pk, it.Update.ConditionExpression, it.Update.ExpressionAttributeNames, it.Update.ExpressionAttributeValues, err
	case it.ConditionCheck != nil:
		pk, err := m.pk(*it.ConditionCheck.TableName, it.ConditionCheck.Key)
		return *it.ConditionCheck.TableName, pk, it.ConditionCheck.ConditionExpression, it.ConditionCheck.ExpressionAttributeNames, it.ConditionCheck.ExpressionAttributeValues, err
	}
	return "", "", nil, nil, nil, errors.New("empty transact item")
}

func (m *MockDynamo) CreateTable(ctx context.Context, in *dyn.CreateTableInput, optFns ...func(*dyn.Options)) (*dyn.CreateTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := *in.TableName
	if _, ok := m.tables[name]; ok {
		msg := "Table already exists: " + name
		return nil, &types.ResourceInUseException{Message: &msg}
	}
	for _, ks := range in.KeySchema {
		if ks.KeyType == types.KeyTypeHash {
			m.keys[name] = *ks.AttributeName
		}
	}
	m.tables[name] = map[string]Item{}
	m.Created = append(m.Created, name)
	return &dyn.CreateTableOutput{}, nil
}

func (m *MockDynamo) DescribeTable(ctx context.Context, in *dyn.DescribeTableInput, optFns ...func(*dyn.Options)) (*dyn.DescribeTableOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[*in.TableName]; !ok {
		msg := "Requested resource not found"
		return nil, &types.ResourceNotFoundException{Message: &msg}
	}
	return &dyn.DescribeTableOutput{Table: &types.TableDescription{
		TableName:   in.TableName,
		TableStatus: types.TableStatusActive,
	}}, nil
}

func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, current Item) bool {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_not_exists("):
			attr := resolve(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")"), names)
			if _, ok := current[attr]; ok {
				return false
			}
		case strings.HasPrefix(clause, "attribute_exists("):
			attr := resolve(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")"), names)
			if _, ok := current[attr]; !ok {
				return false
			}
		case strings.Contains(clause, " = "):
			parts := strings.SplitN(clause, " = ", 2)
			attr := resolve(strings.TrimSpace(parts[0]), names)
			want := values[strings.TrimSpace(parts[1])]
			got, ok := current[attr]
			if !ok || !equalAV(got, want) {
				return false
			}
		default:
			panic("awstest: unsupported condition " + clause)
		}
	}
	return true
}

func applySet(expr *string, names map[string]string, values map[string]types.AttributeValue, item Item) error {
	if expr == nil {
		return nil
	}
	e := strings.TrimSpace(*expr)
	if !strings.HasPrefix(e, "SET ") {
		return fmt.Errorf("awstest: unsupported update %q", e)
	}
	for _, assign := range strings.Split(strings.TrimPrefix(e, "SET "), ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("awstest: bad assignment %q", assign)
		}
		attr := resolve(strings.TrimSpace(parts[0]), names)
		ph := strings.TrimSpace(parts[1])
		v, ok := values[ph]
		if !ok {
			return fmt.Errorf("awstest: missing value %s", ph)
		}
		item[attr] = v
	}
	return nil
}

func resolve(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		return names[name]
	}
	return name
}

func equalAV(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	}
	return reflect.DeepEqual(a, b)
}

func copyItem(it Item) Item {
	if it == nil {
		return nil
	}
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func (m *MockDynamo) UpdateTimeToLive(ctx context.Context, in *dyn.UpdateTimeToLiveInput, optFns ...func(*dyn.Options)) (*dyn.UpdateTimeToLiveOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[*in.TableName]; !ok {
		msg := "Requested resource not found"
		return nil, &types.ResourceNotFoundException{Message: &msg}
	}
	if m.TTL == nil {
		m.TTL = map[string]string{}
	}
	m.TTL[*in.TableName] = *in.TimeToLiveSpecification.AttributeName
	return &dyn.UpdateTimeToLiveOutput{TimeToLiveSpecification: in.TimeToLiveSpecification}, nil
}
