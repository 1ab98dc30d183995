package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/aws"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/ledger"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/logging"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/metrics"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/orders"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/testutil"
)

func newTestProcessor(t *testing.T) (*Processor, *testutil.MemDynamo, *testutil.MemCloudWatch) {
	t.Helper()
	mock := testutil.NewMemDynamo(map[string]string{
		"orders":     "order_id",
		"cod_ledger": "order_id",
	})
	cw := &testutil.MemCloudWatch{}
	clients := &aws.AWSClients{DynamoDB: mock, CloudWatch: cw}
	return NewProcessor(clients, "orders", "cod_ledger", "test", logging.Nop()), mock, cw
}

func seedOrder(t *testing.T, mock *testutil.MemDynamo, o orders.Order) {
	t.Helper()
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := mock.Seed("orders", item); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func sqsEvent(t *testing.T, evs ...orders.Event) events.SQSEvent {
	t.Helper()
	var out events.SQSEvent
	for i, ev := range evs {
		body, _ := json.Marshal(ev)
		out.Records = append(out.Records, events.SQSMessage{MessageId: ev.EventID + "-" + string(rune('a'+i)), Body: string(body)})
	}
	return out
}

func deliveredCOD(collected bool) orders.Order {
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	return orders.Order{
		OrderID:      "o1",
		BuyerID:      "b1",
		VendorID:     "v1",
		PartnerID:    "p1",
		Status:       lifecycle.StatusDelivered,
		PaymentMode:  lifecycle.PaymentCOD,
		TotalAmount:  420,
		CODCollected: &collected,
		Version:      7,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func deliverEvent(id string) orders.Event {
	return orders.Event{
		EventID:     id,
		Type:        orders.EventTransitioned,
		OrderID:     "o1",
		Action:      lifecycle.ActionDeliver,
		From:        lifecycle.StatusOutForDelivery,
		To:          lifecycle.StatusDelivered,
		PaymentMode: lifecycle.PaymentCOD,
	}
}

func TestWorkerProcess_DeliveredCOD(t *testing.T) {
	p, mock, cw := newTestProcessor(t)
	seedOrder(t, mock, deliveredCOD(true))

	// the same delivery arrives twice
	resp, err := p.Handle(context.Background(), sqsEvent(t, deliverEvent("e1"), deliverEvent("e1")))
	if err != nil || len(resp.BatchItemFailures) != 0 {
		t.Fatalf("unexpected failures: %+v err=%v", resp, err)
	}

	entry, err := ledger.NewStore(mock, "cod_ledger").Get(context.Background(), "o1")
	if err != nil || entry == nil {
		t.Fatalf("expected ledger entry, got %+v err=%v", entry, err)
	}
	if entry.Status != ledger.StatusCollected || entry.Amount != 420 || entry.PartnerID != "p1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	names := cw.MetricNames()
	want := []string{metrics.MetricTransitions, metrics.MetricCODCollected, metrics.MetricTransitions}
	if len(names) != len(want) {
		t.Fatalf("expected metrics %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected metrics %v, got %v", want, names)
		}
	}
}

func TestWorkerProcess_Outstanding(t *testing.T) {
	p, mock, cw := newTestProcessor(t)
	seedOrder(t, mock, deliveredCOD(false))

	if resp, _ := p.Handle(context.Background(), sqsEvent(t, deliverEvent("e1"))); len(resp.BatchItemFailures) != 0 {
		t.Fatalf("unexpected failures: %+v", resp)
	}
	entry, _ := ledger.NewStore(mock, "cod_ledger").Get(context.Background(), "o1")
	if entry == nil || entry.Status != ledger.StatusOutstanding {
		t.Fatalf("expected outstanding entry, got %+v", entry)
	}
	if names := cw.MetricNames(); names[len(names)-1] != metrics.MetricCODOutstanding {
		t.Fatalf("expected outstanding metric, got %v", names)
	}
}

func TestWorkerProcess_PlacedOnlyCounts(t *testing.T) {
	p, mock, cw := newTestProcessor(t)
	ev := orders.Event{EventID: "e0", Type: orders.EventPlaced, OrderID: "o9", To: lifecycle.StatusPlaced, PaymentMode: lifecycle.PaymentCOD}

	if resp, _ := p.Handle(context.Background(), sqsEvent(t, ev)); len(resp.BatchItemFailures) != 0 {
		t.Fatalf("unexpected failures: %+v", resp)
	}
	if len(mock.Tables["cod_ledger"]) != 0 {
		t.Fatal("placed event must not touch the ledger")
	}
	dims := cw.Inputs[0].MetricData[0].Dimensions
	if *dims[0].Value != "place" {
		t.Fatalf("expected place action dimension, got %s", *dims[0].Value)
	}
}

func TestWorkerProcess_Failures(t *testing.T) {
	p, mock, cw := newTestProcessor(t)
	o := deliveredCOD(true)
	o.Status = lifecycle.StatusOutForDelivery
	seedOrder(t, mock, o)
	cw.Err = errors.New("throttled")

	batch := sqsEvent(t, deliverEvent("stale"))
	batch.Records = append(batch.Records,
		events.SQSMessage{MessageId: "bad-json", Body: "{"},
		events.SQSMessage{MessageId: "no-order", Body: `{"event_id":"x","type":"order.transitioned","order_id":"nope","to":"delivered","payment_mode":"cod"}`},
	)

	resp, err := p.Handle(context.Background(), batch)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(resp.BatchItemFailures) != 3 {
		t.Fatalf("expected 3 failures, got %+v", resp.BatchItemFailures)
	}
	if resp.BatchItemFailures[1].ItemIdentifier != "bad-json" {
		t.Fatalf("unexpected failure order: %+v", resp.BatchItemFailures)
	}
}
