package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/auth"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/handlers"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/orders"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/testutil"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/validation"
)

const secret = "client-secret"

func newAPI(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers.RegisterOrdersRoutes(r, handlers.HandlerConfig{
		DynamoDBClient: testutil.NewMemDynamo(map[string]string{
			"orders":      "order_id",
			"idempotency": "idempotency_key",
		}),
		SQSClient:        &testutil.MemSQS{},
		IdempotencyTable: "idempotency",
		OrdersTable:      "orders",
		QueueURL:         "https://sqs.local/orders",
		TTLWindow:        time.Hour,
		JWTSecret:        secret,
		OTPGenerator:     func() (string, error) { return "117733", nil },
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func clientFor(t *testing.T, srv *httptest.Server, actor auth.Actor) *Client {
	t.Helper()
	tok, err := auth.BuildToken(secret, actor, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	c := New(srv.URL, tok).WithHTTPClient(srv.Client())
	c.RefetchDelay = 0
	return c
}

var (
	buyer   = auth.Actor{ID: "b1", Role: lifecycle.RoleBuyer}
	vendor  = auth.Actor{ID: "v1", Role: lifecycle.RoleVendor}
	partner = auth.Actor{ID: "p1", Role: lifecycle.RoleDeliveryPartner}
)

func placeAndDispatch(t *testing.T, srv *httptest.Server, mode string) string {
	t.Helper()
	ctx := context.Background()
	v, err := clientFor(t, srv, buyer).CreateOrder(ctx, validation.CreateOrderRequest{
		VendorID:    vendor.ID,
		Items:       []validation.Item{{ProductID: "p", Quantity: 3, UnitPrice: 140}},
		TotalAmount: 420,
		PaymentMode: mode,
	}, "checkout-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := v.Order.OrderID

	vc := clientFor(t, srv, vendor)
	for _, k := range []lifecycle.ActionKind{lifecycle.ActionAccept, lifecycle.ActionMarkPicked, lifecycle.ActionMarkPacked} {
		if _, err := vc.Perform(ctx, id, k, nil, ""); err != nil {
			t.Fatalf("%s: %v", k, err)
		}
	}
	if _, err := clientFor(t, srv, partner).Perform(ctx, id, lifecycle.ActionDispatch, nil, ""); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	return id
}

func TestDeliveryFlow_COD(t *testing.T) {
	srv := newAPI(t)
	id := placeAndDispatch(t, srv, "cod")
	pc := clientFor(t, srv, partner)
	ctx := context.Background()

	flow := lifecycle.NewFlow(id, lifecycle.PaymentCOD, pc)
	if err := flow.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// wrong otp goes back to otp entry with the rejection message
	if err := flow.EnterOTP(ctx, "999999"); err != nil {
		t.Fatalf("enter otp: %v", err)
	}
	if err := flow.ConfirmCOD(ctx, true); !errors.Is(err, lifecycle.ErrOTPRejected) {
		t.Fatalf("expected ErrOTPRejected, got %v", err)
	}
	if flow.State() != lifecycle.FlowAwaitingOTP || flow.Message() != lifecycle.OTPRejectedMessage {
		t.Fatalf("after rejection: state=%s message=%q", flow.State(), flow.Message())
	}

	if err := flow.EnterOTP(ctx, "117733"); err != nil {
		t.Fatalf("enter otp: %v", err)
	}
	if err := flow.ConfirmCOD(ctx, true); err != nil {
		t.Fatalf("confirm cod: %v", err)
	}
	if flow.State() != lifecycle.FlowDelivered {
		t.Fatalf("expected delivered, got %s", flow.State())
	}

	v, err := pc.GetOrder(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Order.Status != lifecycle.StatusDelivered || v.Order.CODCollected == nil || !*v.Order.CODCollected {
		t.Fatalf("unexpected order: %+v", v.Order)
	}
}

func TestPerform_Errors(t *testing.T) {
	srv := newAPI(t)
	id := placeAndDispatch(t, srv, "online")
	ctx := context.Background()

	_, err := clientFor(t, srv, vendor).Perform(ctx, id, lifecycle.ActionAccept, nil, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}

	_, err = clientFor(t, srv, partner).Perform(ctx, id, lifecycle.ActionMarkFailed, validation.MarkFailedRequest{}, "")
	if !errors.As(err, &apiErr) || !apiErr.IsValidation() || apiErr.Message() != "reason is required" {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = clientFor(t, srv, buyer).GetOrder(ctx, "missing")
	if !errors.As(err, &apiErr) || !apiErr.IsNotFound() {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = New(srv.URL, "garbage").WithHTTPClient(srv.Client()).GetOrder(ctx, id)
	if !errors.As(err, &apiErr) || !apiErr.IsAuth() {
		t.Fatalf("expected auth error, got %v", err)
	}

	if _, err := clientFor(t, srv, partner).Perform(ctx, id, "teleport", nil, ""); err == nil {
		t.Fatal("expected unknown action error")
	}
}

func TestPerform_DelayedRefetch(t *testing.T) {
	srv := newAPI(t)
	ctx := context.Background()

	bc := clientFor(t, srv, buyer)
	v, err := bc.CreateOrder(ctx, validation.CreateOrderRequest{
		VendorID:    vendor.ID,
		Items:       []validation.Item{{ProductID: "p", Quantity: 1, UnitPrice: 10}},
		TotalAmount: 10,
		PaymentMode: "online",
	}, "checkout-2")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	vc := clientFor(t, srv, vendor)
	vc.RefetchDelay = 10 * time.Millisecond
	refreshed := make(chan *orders.View, 1)
	vc.OnRefresh = func(orderID string, v *orders.View, err error) {
		if err == nil {
			refreshed <- v
		}
	}

	got, err := vc.Perform(ctx, v.Order.OrderID, lifecycle.ActionAccept, nil, "accept-1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Order.Status != lifecycle.StatusConfirmed {
		t.Fatalf("immediate refetch: expected confirmed, got %s", got.Order.Status)
	}

	select {
	case rv := <-refreshed:
		if rv.Order.Status != lifecycle.StatusConfirmed {
			t.Fatalf("delayed refetch: expected confirmed, got %s", rv.Order.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delayed refetch never happened")
	}
}

func TestPerform_DelayedRefetchWithoutClientTimeout(t *testing.T) {
	srv := newAPI(t)
	id := placeAndDispatch(t, srv, "online")

	tok, err := auth.BuildToken(secret, buyer, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	c := New(srv.URL, tok).WithHTTPClient(&http.Client{})
	c.RefetchDelay = 10 * time.Millisecond
	errs := make(chan error, 1)
	c.OnRefresh = func(orderID string, v *orders.View, err error) { errs <- err }

	c.scheduleRefetch(id)
	select {
	case err := <-errs:
		if err != nil {
			t.Fatalf("delayed refetch failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delayed refetch never happened")
	}
}

func TestSubmitDelivery_ReadFailureAfterDelivery(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
			return
		}
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, "t").WithHTTPClient(srv.Client())
	c.RefetchDelay = 0
	var refreshErr error
	c.OnRefresh = func(orderID string, v *orders.View, err error) { refreshErr = err }

	flow := lifecycle.NewFlow("o1", lifecycle.PaymentCOD, c)
	ctx := context.Background()
	if err := flow.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := flow.EnterOTP(ctx, "117733"); err != nil {
		t.Fatalf("enter otp: %v", err)
	}
	if err := flow.ConfirmCOD(ctx, true); err != nil {
		t.Fatalf("confirm cod: %v", err)
	}
	if flow.State() != lifecycle.FlowDelivered || posts != 1 {
		t.Fatalf("state=%s posts=%d", flow.State(), posts)
	}
	var apiErr *APIError
	if !errors.As(refreshErr, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected refresh error to be reported, got %v", refreshErr)
	}
}

func TestParseError(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		msg    string
		otp    bool
	}{
		{"string detail", 409, `{"detail":"Transition not allowed"}`, "Transition not allowed", false},
		{"field list", 422, `{"detail":[{"loc":["body","reason"],"msg":"reason is required","type":"required"},{"loc":["body","notes"],"msg":"notes is too long","type":"max"}]}`, "reason is required; notes is too long", false},
		{"otp", 400, `{"detail":"Invalid OTP","code":"invalid_otp"}`, "Invalid OTP", true},
		{"plain text", 502, "Bad Gateway", "Bad Gateway", false},
		{"empty", 500, "", http.StatusText(500), false},
	}
	for _, tc := range cases {
		e := parseError(tc.status, []byte(tc.body))
		if e.Message() != tc.msg {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.msg, e.Message())
		}
		if e.IsOTPRejected() != tc.otp || errors.Is(e, lifecycle.ErrOTPRejected) != tc.otp {
			t.Fatalf("%s: otp classification wrong", tc.name)
		}
	}
}
