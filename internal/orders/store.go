package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Lokman32/leadprep/internal/aws"
)

// maxTransactItems is the DynamoDB TransactWriteItems limit.
const maxTransactItems = 100

// Store keeps orders in one table (PK serial_code) and serial claims in a
// second table (PK serial). Every mutation is a single TransactWriteItems.
type Store struct {
	client      aws.DynamoDBAPI
	ordersTable string
	serialTable string
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, ordersTable, serialTable string) *Store {
	return &Store{client: client, ordersTable: ordersTable, serialTable: serialTable}
}

func (s *Store) Commit(ctx context.Context, w Write) error {
	if w.Order == nil {
		return errors.New("commit: nil order")
	}
	next := *w.Order
	next.Version = w.ExpectedVersion + 1
	orderMap, err := attributevalue.MarshalMap(next)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	put := &types.Put{TableName: &s.ordersTable, Item: orderMap}
	if w.ExpectedVersion == 0 {
		put.ConditionExpression = aws.String("attribute_not_exists(serial_code)")
	} else {
		put.ConditionExpression = aws.String("#v = :expected")
		put.ExpressionAttributeNames = map[string]string{"#v": "version"}
		put.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(w.ExpectedVersion)},
		}
	}
	items := []types.TransactWriteItem{{Put: put}}

	for _, c := range w.Claims {
		claimMap, err := attributevalue.MarshalMap(c)
		if err != nil {
			return fmt.Errorf("marshal claim %s: %w", c.Serial, err)
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           &s.serialTable,
			Item:                claimMap,
			ConditionExpression: aws.String("attribute_not_exists(serial)"),
		}})
	}
	inline, overflow := splitReleases(w.Releases, maxTransactItems-len(items))
	items = append(items, s.releaseItems(inline)...)

	if err := s.transact(ctx, items, w.ExpectedVersion == 0, len(w.Claims)); err != nil {
		return err
	}
	w.Order.Version = next.Version
	return s.release(ctx, overflow)
}

// Delete removes the order and releases its serial claims. Claims that do not
// fit next to the order delete are released once the delete has committed.
func (s *Store) Delete(ctx context.Context, o *Order) error {
	items := []types.TransactWriteItem{{Delete: &types.Delete{
		TableName:                 &s.ordersTable,
		Key:                       s.orderKey(o.SerialCode),
		ConditionExpression:       aws.String("#v = :expected"),
		ExpressionAttributeNames:  map[string]string{"#v": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":expected": &types.AttributeValueMemberN{Value: strconv.Itoa(o.Version)}},
	}}}
	inline, overflow := splitReleases(o.Serials(), maxTransactItems-len(items))
	items = append(items, s.releaseItems(inline)...)
	if err := s.transact(ctx, items, false, 0); err != nil {
		return err
	}
	return s.release(ctx, overflow)
}

// splitReleases keeps at most room serials for the order's own transaction.
func splitReleases(serials []string, room int) (inline, overflow []string) {
	if room < 0 {
		room = 0
	}
	if len(serials) <= room {
		return serials, nil
	}
	return serials[:room], serials[room:]
}

func (s *Store) releaseItems(serials []string) []types.TransactWriteItem {
	items := make([]types.TransactWriteItem, 0, len(serials))
	for _, serial := range serials {
		items = append(items, types.TransactWriteItem{Delete: &types.Delete{
			TableName: &s.serialTable,
			Key:       s.serialKey(serial),
		}})
	}
	return items
}

// release deletes claims in unconditional batches after the order write.
// A claim left behind points at a line that no longer holds the serial.
func (s *Store) release(ctx context.Context, serials []string) error {
	for len(serials) > 0 {
		n := min(len(serials), maxTransactItems)
		_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: s.releaseItems(serials[:n])})
		if err != nil {
			return fmt.Errorf("release %d serials: %w", n, err)
		}
		serials = serials[n:]
	}
	return nil
}

// transact submits items and maps cancellation reasons. Item 0 is always the
// order; items 1..claims are serial claims. A conflict with another in-flight
// transaction is reported like a version mismatch so callers re-read and retry.
func (s *Store) transact(ctx context.Context, items []types.TransactWriteItem, create bool, claims int) error {
	if len(items) > maxTransactItems {
		return fmt.Errorf("transaction has %d items, limit is %d", len(items), maxTransactItems)
	}
	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return fmt.Errorf("transact write: %w", err)
	}
	reasons := tce.CancellationReasons
	if len(reasons) > 0 && conditionFailed(reasons[0]) {
		if create {
			return ErrOrderExists
		}
		return ErrVersionMismatch
	}
	for i := 1; i <= claims && i < len(reasons); i++ {
		if conditionFailed(reasons[i]) {
			return ErrSerialTaken
		}
	}
	for _, r := range reasons {
		if reasonIs(r, "TransactionConflict") {
			if create {
				return ErrOrderExists
			}
			return ErrVersionMismatch
		}
	}
	return fmt.Errorf("transaction canceled: %w", err)
}

func conditionFailed(r types.CancellationReason) bool {
	return reasonIs(r, "ConditionalCheckFailed")
}

func reasonIs(r types.CancellationReason, code string) bool {
	return r.Code != nil && *r.Code == code
}

// Get fetches an order by serial code. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, code string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.ordersTable,
		Key:            s.orderKey(code),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func (s *Store) List(ctx context.Context, q Query) ([]Order, error) {
	items, err := aws.ScanAll(ctx, s.client, &dyn.ScanInput{
		TableName:      &s.ordersTable,
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, err
	}
	var all []Order
	if err := attributevalue.UnmarshalListOfMaps(items, &all); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	out := all[:0]
	for _, o := range all {
		if q.match(o) {
			out = append(out, o)
		}
	}
	SortOrders(out)
	return out, nil
}

// FindSerial returns the claim for serial. Returns (nil, nil) if unclaimed.
func (s *Store) FindSerial(ctx context.Context, serial string) (*SerialClaim, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.serialTable,
		Key:            s.serialKey(serial),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get serial: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c SerialClaim
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal serial claim: %w", err)
	}
	return &c, nil
}

func (s *Store) orderKey(code string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"serial_code": &types.AttributeValueMemberS{Value: code}}
}

func (s *Store) serialKey(serial string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"serial": &types.AttributeValueMemberS{Value: serial}}
}

// SortOrders orders by creation time, then serial code.
func SortOrders(list []Order) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].SerialCode < list[j].SerialCode
	})
}

func boolPtr(b bool) *bool { return &b }
