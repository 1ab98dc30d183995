// Package ledger records cash collected (or owed) by delivery partners for
// cash on delivery orders.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/aws"
)

const (
	StatusCollected   = "COLLECTED"
	StatusOutstanding = "OUTSTANDING"
)

// Entry is one delivered COD order in the cod_ledger table.
type Entry struct {
	OrderID    string    `json:"order_id" dynamodbav:"order_id"` // PK
	PartnerID  string    `json:"partner_id" dynamodbav:"partner_id"`
	VendorID   string    `json:"vendor_id" dynamodbav:"vendor_id"`
	Amount     float64   `json:"amount" dynamodbav:"amount"`
	Collected  bool      `json:"collected" dynamodbav:"collected"`
	Status     string    `json:"status" dynamodbav:"status"`
	EventID    string    `json:"event_id" dynamodbav:"event_id"`
	RecordedAt time.Time `json:"recorded_at" dynamodbav:"recorded_at"`
}

type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, nowFunc: time.Now}
}

// Record writes e once per order. It returns false when the order already
// has an entry, which is how redelivered queue messages are absorbed.
func (s *Store) Record(ctx context.Context, e Entry) (bool, error) {
	if e.OrderID == "" {
		return false, errors.New("ledger entry without order_id")
	}
	e.Status = StatusOutstanding
	if e.Collected {
		e.Status = StatusCollected
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = s.nowFunc().UTC()
	}

	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return false, fmt.Errorf("marshal ledger entry: %w", err)
	}
	cond := "attribute_not_exists(order_id)"
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: &cond,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("put ledger entry: %w", err)
	}
	return true, nil
}

// Get returns the entry for orderID, or nil.
func (s *Store) Get(ctx context.Context, orderID string) (*Entry, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var e Entry
	if err := attributevalue.UnmarshalMap(out.Item, &e); err != nil {
		return nil, fmt.Errorf("unmarshal ledger entry: %w", err)
	}
	return &e, nil
}
