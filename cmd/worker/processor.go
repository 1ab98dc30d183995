package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/aws"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/ledger"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/metrics"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/orders"
)

// Processor consumes order events: it counts transitions and books delivered
// cash on delivery orders into the COD ledger.
type Processor struct {
	orderStore *orders.Store
	ledger     *ledger.Store
	metrics    *metrics.Recorder
	log        *zap.SugaredLogger
}

// NewProcessor creates a new worker processor with AWS clients injected.
func NewProcessor(clients *aws.AWSClients, ordersTable, ledgerTable, namespace string, sugar *zap.SugaredLogger) *Processor {
	return &Processor{
		orderStore: orders.NewStore(clients.DynamoDB, ordersTable),
		ledger:     ledger.NewStore(clients.DynamoDB, ledgerTable),
		metrics:    metrics.NewRecorder(clients.CloudWatch, namespace),
		log:        sugar,
	}
}

// Handle processes an SQS batch. Failed messages are reported individually
// so only they are redelivered (and end up in the DLQ after too many tries).
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.log.Errorw("worker error", "message_id", rec.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: rec.MessageId})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var ev orders.Event
	if err := json.Unmarshal([]byte(rec.Body), &ev); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if ev.OrderID == "" {
		return fmt.Errorf("event %s without order_id", ev.EventID)
	}
	p.log.Infow("received event", "type", ev.Type, "order_id", ev.OrderID, "action", ev.Action, "to", ev.To)

	action := string(ev.Action)
	if ev.Type == orders.EventPlaced {
		action = "place"
	}
	if err := p.metrics.RecordTransition(ctx, action, string(ev.To)); err != nil {
		// metrics are not worth a redelivery
		p.log.Warnw("record transition metric failed", "order_id", ev.OrderID, "error", err)
	}

	if ev.To == lifecycle.StatusDelivered && ev.PaymentMode == lifecycle.PaymentCOD {
		return p.bookCOD(ctx, ev)
	}
	return nil
}

// bookCOD writes the ledger entry from the stored order, which is the
// source of truth for what the partner reported.
func (p *Processor) bookCOD(ctx context.Context, ev orders.Event) error {
	o, err := p.orderStore.Get(ctx, ev.OrderID)
	if err != nil {
		return fmt.Errorf("failed to fetch order: %w", err)
	}
	if o == nil {
		return fmt.Errorf("order not found: %s", ev.OrderID)
	}
	if o.Status != lifecycle.StatusDelivered {
		return fmt.Errorf("order %s is %s, expected delivered", o.OrderID, o.Status)
	}

	collected := o.CODCollected != nil && *o.CODCollected
	created, err := p.ledger.Record(ctx, ledger.Entry{
		OrderID:   o.OrderID,
		PartnerID: o.PartnerID,
		VendorID:  o.VendorID,
		Amount:    o.TotalAmount,
		Collected: collected,
		EventID:   ev.EventID,
	})
	if err != nil {
		return err
	}
	if !created {
		p.log.Infow("cod already booked", "order_id", o.OrderID)
		return nil
	}

	if err := p.metrics.RecordCOD(ctx, o.PartnerID, o.TotalAmount, collected); err != nil {
		p.log.Warnw("record cod metric failed", "order_id", o.OrderID, "error", err)
	}
	p.log.Infow("cod booked", "order_id", o.OrderID, "partner_id", o.PartnerID, "amount", o.TotalAmount, "collected", collected)
	return nil
}
