package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/auth"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/aws"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
)

// ErrVersionConflict means the order changed between read and write.
var ErrVersionConflict = errors.New("order was modified concurrently")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	otpFunc   func() (string, error)
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		otpFunc:   NewDeliveryOTP,
	}
}

// WithOTPGenerator replaces the delivery OTP source.
func (s *Store) WithOTPGenerator(fn func() (string, error)) *Store {
	s.otpFunc = fn
	return s
}

// WithClock replaces the time source.
func (s *Store) WithClock(fn func() time.Time) *Store {
	s.nowFunc = fn
	return s
}

// CreateWithIdempotencyTransaction atomically creates:
//   - idempotency record in idempotencyTable (with ConditionExpression attribute_not_exists(idempotency_key))
//   - order record in orders table, in status placed
//
// idempotencyItem must be a serializable struct with attribute idempotency_key present.
// order.OrderID must be set by caller.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, order Order, ttlWindow time.Duration) (*Order, error) {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency item: %w", err)
	}
	now := s.nowFunc().UTC()
	if _, ok := idempMap["expires_at"]; !ok && ttlWindow > 0 {
		expires := now.Add(ttlWindow).Unix()
		idempMap["expires_at"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expires, 10)}
	}

	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Status = lifecycle.StatusPlaced
	order.StageTimestamps = lifecycle.StageTimestamps{}
	order.StageTimestamps.Set(lifecycle.StatusPlaced, order.CreatedAt)
	order.Version = 1

	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order item: %w", err)
	}

	transactItems := []types.TransactWriteItem{
		{
			Put: &types.Put{
				TableName:           &idempotencyTable,
				Item:                idempMap,
				ConditionExpression: awsString("attribute_not_exists(idempotency_key)"),
			},
		},
		{
			Put: &types.Put{
				TableName:           &s.tableName,
				Item:                orderMap,
				ConditionExpression: awsString("attribute_not_exists(order_id)"),
			},
		},
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: transactItems})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return nil, fmt.Errorf("transaction canceled (likely idempotency key exists): %w", err)
		}
		return nil, fmt.Errorf("transact write: %w", err)
	}
	return &order, nil
}

// Get fetches an order by order_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	key := map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key,
		ConsistentRead: awsBool(true),
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
	o.Status = lifecycle.NormalizeOrDefault(string(o.Status))
	fallback := o.CreatedAt
	if fallback.IsZero() {
		fallback = s.nowFunc()
	}
	o.StageTimestamps.Backfill(o.Status, fallback)
	return &o, nil
}

// Update reads the order, applies mutate and writes it back guarded by the
// version it read. A concurrent writer makes it fail with ErrVersionConflict.
func (s *Store) Update(ctx context.Context, orderID string, mutate func(*Order) error) (*Order, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrNotFound
	}

	read := o.Version
	if err := mutate(o); err != nil {
		return nil, err
	}
	if err := o.StageTimestamps.Validate(); err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	o.Version = read + 1
	o.UpdatedAt = s.nowFunc().UTC()

	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	cond := "#v = :v"
	if read == 0 {
		// records from older writers carry no version
		cond = "attribute_not_exists(#v) OR #v = :v"
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:                &s.tableName,
		Item:                     item,
		ConditionExpression:      awsString(cond),
		ExpressionAttributeNames: map[string]string{"#v": "version"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(read, 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrVersionConflict
		}
		return nil, fmt.Errorf("put item: %w", err)
	}
	return o, nil
}

// Apply performs one lifecycle action on behalf of actor.
func (s *Store) Apply(ctx context.Context, orderID string, kind lifecycle.ActionKind, actor auth.Actor, in TransitionInput) (*Result, error) {
	var otp string
	if kind == lifecycle.ActionMarkPacked {
		var err error
		if otp, err = s.otpFunc(); err != nil {
			return nil, err
		}
	}

	var from lifecycle.Status
	o, err := s.Update(ctx, orderID, func(o *Order) error {
		from = o.Status
		return apply(o, kind, actor, in, s.nowFunc(), otp)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Order: *o, From: from}, nil
}

func awsString(s string) *string { return &s }

func awsBool(b bool) *bool { return &b }
