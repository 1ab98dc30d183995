package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/aws"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/config"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/guard"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/handlers"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/logging"
)

func setupRouter(cfg handlers.HandlerConfig, sugar *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(sugar))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterOrdersRoutes(r, cfg)

	return r
}

func newGuard(cfg *config.Config, sugar *zap.SugaredLogger) guard.Guard {
	if cfg.RedisAddr == "" {
		sugar.Warnw("REDIS_ADDR not set, using in-process order guard")
		return guard.NewLocal()
	}
	return guard.NewRedisGuard(guard.NewRedisClient(cfg.RedisAddr), cfg.LockTTL)
}

func main() {
	cfg, err := config.Load()
	sugar := logging.New(cfg != nil && cfg.Debug)
	defer sugar.Sync()
	if err != nil {
		sugar.Fatalw("failed to load config", "error", err)
	}
	if err := cfg.ValidateServer(); err != nil {
		sugar.Fatalw("invalid config", "error", err)
	}

	clients, err := aws.NewAWSClients(context.Background(), cfg.AWSRegion, cfg.AWSEndpoint)
	if err != nil {
		sugar.Fatalw("failed to init aws clients", "error", err)
	}

	hcfg := handlers.HandlerConfig{
		DynamoDBClient:   clients.DynamoDB,
		SQSClient:        clients.SQS,
		IdempotencyTable: cfg.IdempotencyTable,
		OrdersTable:      cfg.OrdersTable,
		QueueURL:         cfg.QueueURL,
		TTLWindow:        cfg.TTLWindow,
		JWTSecret:        cfg.JWTSecret,
		Guard:            newGuard(cfg, sugar),
		Logger:           sugar,
	}

	r := setupRouter(hcfg, sugar)

	// RUN_LOCAL=true runs a plain HTTP server for development.
	if cfg.RunLocal {
		sugar.Infow("running local server", "addr", cfg.Addr)
		if err := r.Run(cfg.Addr); err != nil {
			sugar.Fatalw("failed to run local server", "error", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
