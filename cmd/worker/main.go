package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/aws"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/config"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/logging"
)

func main() {
	cfg, err := config.Load()
	sugar := logging.New(cfg != nil && cfg.Debug)
	defer sugar.Sync()
	if err != nil {
		sugar.Fatalw("failed to load config", "error", err)
	}

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		sugar.Fatalw("failed to init aws clients", "error", err)
	}
	p := NewProcessor(clients, cfg.OrdersTable, cfg.LedgerTable, cfg.MetricsNamespace, sugar)

	// If RUN_LOCAL=true, process a single event body from LOCAL_SQS_BODY.
	if cfg.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			sugar.Fatalw("LOCAL_SQS_BODY is required when RUN_LOCAL=true")
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: testBody}},
		}
		resp, _ := p.Handle(context.Background(), event)
		if len(resp.BatchItemFailures) > 0 {
			sugar.Fatalw("local handler failed")
		}
		return
	}

	lambda.Start(p.Handle)
}
