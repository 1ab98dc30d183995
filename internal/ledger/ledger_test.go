package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/testutil"
)

func newTestStore() (*Store, *testutil.MemDynamo) {
	mock := testutil.NewMemDynamo(map[string]string{"cod_ledger": "order_id"})
	return NewStore(mock, "cod_ledger"), mock
}

func TestRecord_OncePerOrder(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	e := Entry{OrderID: "o1", PartnerID: "p1", VendorID: "v1", Amount: 420, Collected: true, EventID: "e1"}
	created, err := store.Record(ctx, e)
	if err != nil || !created {
		t.Fatalf("first record: created=%v err=%v", created, err)
	}

	e.EventID = "e2"
	e.Collected = false
	created, err = store.Record(ctx, e)
	if err != nil || created {
		t.Fatalf("duplicate record: created=%v err=%v", created, err)
	}

	got, err := store.Get(ctx, "o1")
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	if got.Status != StatusCollected || got.EventID != "e1" || got.RecordedAt.IsZero() {
		t.Fatalf("first entry should win: %+v", got)
	}
}

func TestRecord_Outstanding(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if _, err := store.Record(ctx, Entry{OrderID: "o2", PartnerID: "p1", Amount: 99}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got, _ := store.Get(ctx, "o2")
	if got.Status != StatusOutstanding || got.Collected {
		t.Fatalf("expected outstanding entry, got %+v", got)
	}
	if missing, _ := store.Get(ctx, "nope"); missing != nil {
		t.Fatalf("expected nil for missing entry, got %+v", missing)
	}
}

func TestRecord_Errors(t *testing.T) {
	store, mock := newTestStore()
	if _, err := store.Record(context.Background(), Entry{}); err == nil {
		t.Fatal("expected error for empty order id")
	}
	mock.Err = errors.New("throttled")
	if _, err := store.Record(context.Background(), Entry{OrderID: "o3"}); err == nil {
		t.Fatal("expected dynamo error to surface")
	}
}
