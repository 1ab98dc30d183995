// Package client talks to the orders API on behalf of the buyer, vendor and
// delivery partner apps.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/orders"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/validation"
)

// DefaultRefetchDelay is how long after a mutation the order is read again,
// to pick up writes that landed just after the first read.
const DefaultRefetchDelay = 500 * time.Millisecond

// refetchTimeout bounds the delayed refetch, which has no caller context.
const refetchTimeout = 10 * time.Second

var actionPaths = map[lifecycle.ActionKind]string{
	lifecycle.ActionAccept:         "accept",
	lifecycle.ActionReject:         "reject",
	lifecycle.ActionMarkPicked:     "pick",
	lifecycle.ActionMarkPacked:     "pack",
	lifecycle.ActionDispatch:       "dispatch",
	lifecycle.ActionDeliver:        "deliver",
	lifecycle.ActionMarkFailed:     "fail",
	lifecycle.ActionRetryDelivery:  "retry",
	lifecycle.ActionReturnToVendor: "return",
}

// Client represents the API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client

	// RefetchDelay is the delay of the second refetch after a mutation.
	RefetchDelay time.Duration
	// OnRefresh receives the result of the delayed refetch.
	OnRefresh func(orderID string, v *orders.View, err error)
}

// New creates a client for baseURL authenticating with a bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:      baseURL,
		token:        token,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		RefetchDelay: DefaultRefetchDelay,
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// GetOrder fetches the caller's view of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*orders.View, error) {
	var v orders.View
	if err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), "", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateOrder places an order. idempotencyKey must be stable across retries
// of the same checkout.
func (c *Client) CreateOrder(ctx context.Context, req validation.CreateOrderRequest, idempotencyKey string) (*orders.View, error) {
	var v orders.View
	if err := c.do(ctx, http.MethodPost, "/orders", idempotencyKey, req, &v); err != nil {
		return nil, err
	}
	c.scheduleRefetch(v.Order.OrderID)
	return &v, nil
}

// Perform runs one action and returns the order as read right after it.
// body may be nil for actions without a payload.
func (c *Client) Perform(ctx context.Context, orderID string, kind lifecycle.ActionKind, body interface{}, idempotencyKey string) (*orders.View, error) {
	segment, ok := actionPaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", kind)
	}
	if err := c.post(ctx, orderID, segment, body, idempotencyKey); err != nil {
		return nil, err
	}

	v, err := c.GetOrder(ctx, orderID)
	c.scheduleRefetch(orderID)
	if err != nil {
		return nil, fmt.Errorf("refetch after %s: %w", kind, err)
	}
	return v, nil
}

// SubmitDelivery marks the order delivered. OTP rejections satisfy
// errors.Is(err, lifecycle.ErrOTPRejected).
//
// The read after a successful delivery is reported through OnRefresh and
// never fails the call, the OTP is already spent by then.
func (c *Client) SubmitDelivery(ctx context.Context, orderID string, conf lifecycle.DeliveryConfirmation) error {
	if err := c.post(ctx, orderID, actionPaths[lifecycle.ActionDeliver], conf, ""); err != nil {
		return err
	}
	v, err := c.GetOrder(ctx, orderID)
	if c.OnRefresh != nil {
		c.OnRefresh(orderID, v, err)
	}
	c.scheduleRefetch(orderID)
	return nil
}

func (c *Client) post(ctx context.Context, orderID, segment string, body interface{}, idempotencyKey string) error {
	path := "/orders/" + url.PathEscape(orderID) + "/" + segment
	return c.do(ctx, http.MethodPost, path, idempotencyKey, body, nil)
}

// scheduleRefetch reads the order once more after RefetchDelay. It is not
// tied to the caller's context, closing a dialog does not cancel it.
func (c *Client) scheduleRefetch(orderID string) {
	if c.OnRefresh == nil || c.RefetchDelay <= 0 || orderID == "" {
		return
	}
	time.AfterFunc(c.RefetchDelay, func() {
		timeout := c.httpClient.Timeout
		if timeout <= 0 {
			timeout = refetchTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		v, err := c.GetOrder(ctx, orderID)
		c.OnRefresh(orderID, v, err)
	})
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, target interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, respBody)
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
