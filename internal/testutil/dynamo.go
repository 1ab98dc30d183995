// Package testutil holds in-memory fakes of the AWS client interfaces for
// unit tests. They understand only the expressions this repo issues.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// MemDynamo is an in-memory DynamoDB keyed by one string partition key per table.
type MemDynamo struct {
	mu     sync.Mutex
	keys   map[string]string
	Tables map[string]map[string]item

	PutCalls      int
	GetCalls      int
	UpdateCalls   int
	TransactCalls int

	// Err, when set, is returned by the next call and then cleared.
	Err error
}

// NewMemDynamo takes a table name -> partition key attribute mapping.
func NewMemDynamo(keys map[string]string) *MemDynamo {
	m := &MemDynamo{keys: keys, Tables: map[string]map[string]item{}}
	for tbl := range keys {
		m.Tables[tbl] = map[string]item{}
	}
	return m
}

// Item returns a copy of the stored item, or nil.
func (m *MemDynamo) Item(table, pk string) map[string]types.AttributeValue {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.Tables[table][pk]
	if !ok {
		return nil
	}
	return clone(it)
}

// Seed stores an item without any condition checks.
func (m *MemDynamo) Seed(table string, it map[string]types.AttributeValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pk, err := m.pkOf(table, it)
	if err != nil {
		return err
	}
	m.ensure(table)[pk] = clone(it)
	return nil
}

func (m *MemDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls++
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	table := *in.TableName
	pk, err := m.pkOf(table, in.Item)
	if err != nil {
		return nil, err
	}
	if in.ConditionExpression != nil {
		ok, err := evalCondition(*in.ConditionExpression, m.ensure(table)[pk], in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}
	m.ensure(table)[pk] = clone(in.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *MemDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	table := *in.TableName
	pk, err := m.pkOf(table, in.Key)
	if err != nil {
		return nil, err
	}
	it, ok := m.ensure(table)[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(it)}, nil
}

func (m *MemDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	table := *in.TableName
	pk, err := m.pkOf(table, in.Key)
	if err != nil {
		return nil, err
	}
	current := m.ensure(table)[pk]
	if in.ConditionExpression != nil {
		ok, err := evalCondition(*in.ConditionExpression, current, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
		}
	}
	next := clone(current)
	if next == nil {
		next = clone(in.Key)
	}
	if in.UpdateExpression != nil {
		if err := applyUpdate(*in.UpdateExpression, next, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
			return nil, err
		}
	}
	m.ensure(table)[pk] = next
	return &dyn.UpdateItemOutput{Attributes: clone(next)}, nil
}

func (m *MemDynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransactCalls++
	if err := m.takeErr(); err != nil {
		return nil, err
	}

	// first pass: every condition must hold before anything is written
	for _, ti := range in.TransactItems {
		p := ti.Put
		if p == nil {
			return nil, errors.New("memdynamo: only Put is supported in transactions")
		}
		pk, err := m.pkOf(*p.TableName, p.Item)
		if err != nil {
			return nil, err
		}
		if p.ConditionExpression != nil {
			ok, err := evalCondition(*p.ConditionExpression, m.ensure(*p.TableName)[pk], p.ExpressionAttributeNames, p.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, &types.TransactionCanceledException{Message: strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons [ConditionalCheckFailed]")}
			}
		}
	}
	for _, ti := range in.TransactItems {
		pk, _ := m.pkOf(*ti.Put.TableName, ti.Put.Item)
		m.ensure(*ti.Put.TableName)[pk] = clone(ti.Put.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *MemDynamo) takeErr() error {
	err := m.Err
	m.Err = nil
	return err
}

func (m *MemDynamo) ensure(table string) map[string]item {
	if _, ok := m.Tables[table]; !ok {
		m.Tables[table] = map[string]item{}
	}
	return m.Tables[table]
}

func (m *MemDynamo) pkOf(table string, it item) (string, error) {
	attr, ok := m.keys[table]
	if !ok {
		return "", fmt.Errorf("memdynamo: unknown table %q", table)
	}
	v, ok := it[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("memdynamo: %s missing string key %s", table, attr)
	}
	return v.Value, nil
}

// evalCondition supports clauses joined by AND, each optionally a list of
// alternatives joined by OR.
func evalCondition(expr string, it item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	for _, clause := range strings.Split(expr, " AND ") {
		ok := false
		for _, alt := range strings.Split(clause, " OR ") {
			match, err := evalClause(strings.TrimSpace(alt), it, names, values)
			if err != nil {
				return false, err
			}
			if match {
				ok = true
				break
			}
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalClause(clause string, it item, names map[string]string, values map[string]types.AttributeValue) (bool, error) {
	switch {
	case strings.HasPrefix(clause, "attribute_not_exists("):
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")"), names)
		_, ok := it[attr]
		return !ok, nil
	case strings.HasPrefix(clause, "attribute_exists("):
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")"), names)
		_, ok := it[attr]
		return ok, nil
	default:
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return false, fmt.Errorf("memdynamo: unsupported condition %q", clause)
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		want, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return false, fmt.Errorf("memdynamo: missing value for %q", clause)
		}
		return avEqual(it[attr], want), nil
	}
}

// applyUpdate supports "SET a = :x, #b = :y".
func applyUpdate(expr string, it item, names map[string]string, values map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "SET ") {
		return fmt.Errorf("memdynamo: unsupported update %q", expr)
	}
	for _, assign := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
		parts := strings.SplitN(assign, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("memdynamo: unsupported assignment %q", assign)
		}
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		v, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return fmt.Errorf("memdynamo: missing value for %q", assign)
		}
		it[attr] = v
	}
	return nil
}

func resolveName(n string, names map[string]string) string {
	if strings.HasPrefix(n, "#") {
		if actual, ok := names[n]; ok {
			return actual
		}
	}
	return n
}

func avEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	case nil:
		return b == nil
	default:
		return reflect.DeepEqual(a, b)
	}
}

func clone(it item) item {
	if it == nil {
		return nil
	}
	out := make(item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func strPtr(s string) *string { return &s }
