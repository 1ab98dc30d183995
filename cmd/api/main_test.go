package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/handlers"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/logging"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/testutil"
)

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := setupRouter(handlers.HandlerConfig{
		DynamoDBClient: testutil.NewMemDynamo(map[string]string{"orders": "order_id", "idempotency": "idempotency_key"}),
		SQSClient:      &testutil.MemSQS{},
		OrdersTable:    "orders",
		TTLWindow:      time.Hour,
		JWTSecret:      "s",
	}, logging.Nop())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/o1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("orders without token: expected 401, got %d", w.Code)
	}
}
