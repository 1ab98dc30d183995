package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-marketplace-orderflow/internal/auth"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/aws"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/guard"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/lifecycle"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/orders"
	"github.com/imrishuroy/go-marketplace-orderflow/internal/validation"
)

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	DynamoDBClient   aws.DynamoDBAPI
	SQSClient        aws.SQSAPI
	IdempotencyTable string
	OrdersTable      string
	QueueURL         string
	TTLWindow        time.Duration
	JWTSecret        string

	// Guard defaults to an in-process guard.
	Guard  guard.Guard
	Logger *zap.SugaredLogger

	// OTPGenerator overrides the delivery OTP source, for tests.
	OTPGenerator func() (string, error)
}

type ordersHandler struct {
	v          *validatorv10.Validate
	idempStore *idempotency.Store
	orders     *orders.Store
	publisher  *aws.Publisher
	guard      guard.Guard
	log        *zap.SugaredLogger
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	h := &ordersHandler{
		v:          validation.New(),
		idempStore: idempotency.NewStore(cfg.DynamoDBClient, cfg.IdempotencyTable, cfg.TTLWindow),
		orders:     orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable),
		publisher:  aws.NewPublisher(cfg.SQSClient, cfg.QueueURL),
		guard:      cfg.Guard,
		log:        cfg.Logger,
	}
	if cfg.OTPGenerator != nil {
		h.orders.WithOTPGenerator(cfg.OTPGenerator)
	}
	if h.guard == nil {
		h.guard = guard.NewLocal()
	}
	if h.log == nil {
		h.log = zap.NewNop().Sugar()
	}

	g := r.Group("/orders", auth.RequireActor(cfg.JWTSecret))
	g.POST("", h.create)
	g.GET("/:id", h.get)

	g.POST("/:id/accept", h.transition(lifecycle.ActionAccept, nil))
	g.POST("/:id/reject", h.transition(lifecycle.ActionReject, h.bindReject))
	g.POST("/:id/pick", h.transition(lifecycle.ActionMarkPicked, nil))
	g.POST("/:id/pack", h.transition(lifecycle.ActionMarkPacked, nil))
	g.POST("/:id/dispatch", h.transition(lifecycle.ActionDispatch, nil))
	g.POST("/:id/deliver", h.transition(lifecycle.ActionDeliver, h.bindDeliver))
	g.POST("/:id/fail", h.transition(lifecycle.ActionMarkFailed, h.bindFail))
	g.POST("/:id/retry", h.transition(lifecycle.ActionRetryDelivery, nil))
	g.POST("/:id/return", h.transition(lifecycle.ActionReturnToVendor, h.bindReturn))
}

func (h *ordersHandler) create(c *gin.Context) {
	ctx := c.Request.Context()
	actor, _ := auth.ActorFrom(c)
	if actor.Role != lifecycle.RoleBuyer {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "Only buyers can place orders"})
		return
	}

	// Bind + validate request
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.v, false); err != nil {
		return
	}

	// Require idempotency key header
	header := c.GetHeader("Idempotency-Key")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Idempotency-Key header is required"})
		return
	}
	key := idempotency.Key(actor.ID, header)

	orderID := uuid.NewString()
	order := orders.Order{
		OrderID:     orderID,
		BuyerID:     actor.ID,
		VendorID:    req.VendorID,
		PaymentMode: lifecycle.PaymentMode(req.PaymentMode),
		TotalAmount: req.TotalAmount,
		Items:       make([]orders.Item, 0, len(req.Items)),
	}
	if req.CreatedAt != nil {
		order.CreatedAt = req.CreatedAt.UTC()
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, orders.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}

	// Attempt the transact write to create idempotency + order atomically
	rec := h.idempStore.NewRecord(key, idempotency.ScopeCreateOrder, orderID)
	created, err := h.orders.CreateWithIdempotencyTransaction(ctx, h.idempStore.TableName(), rec, order, h.idempStore.TTLWindow())
	if err != nil {
		h.handleDuplicateCreate(c, key, actor, err)
		return
	}

	h.finishCreate(c, key, *created, actor)
}

// handleDuplicateCreate answers a create whose transaction was cancelled,
// normally because the idempotency key already exists.
func (h *ordersHandler) handleDuplicateCreate(c *gin.Context, key string, actor auth.Actor, txErr error) {
	ctx := c.Request.Context()
	rec, err := h.idempStore.Get(ctx, key)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if rec == nil {
		writeError(c, h.log, fmt.Errorf("transaction failed without idempotency record: %w", txErr))
		return
	}
	if rec.Scope != idempotency.ScopeCreateOrder {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "Idempotency-Key was already used for a different request"})
		return
	}

	switch rec.Status {
	case idempotency.StatusDone:
		h.replay(c, rec)
	case idempotency.StatusInProgress:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": "Request already in progress", "order_id": rec.OrderID})
	case idempotency.StatusFailed:
		// the order exists, only the event was lost
		ok, err := h.idempStore.Retry(ctx, key)
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": "Request already in progress", "order_id": rec.OrderID})
			return
		}
		o, err := h.orders.Get(ctx, rec.OrderID)
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		if o == nil {
			writeError(c, h.log, orders.ErrNotFound)
			return
		}
		h.finishCreate(c, key, *o, actor)
	default:
		writeError(c, h.log, fmt.Errorf("unknown idempotency status %q", rec.Status))
	}
}

// finishCreate publishes order.placed and stores the response for replays.
// A failed publish marks the key FAILED so the client can retry it.
func (h *ordersHandler) finishCreate(c *gin.Context, key string, o orders.Order, actor auth.Actor) {
	ctx := c.Request.Context()
	ev := orders.PlacedEvent(o, actor)
	if err := h.publisher.Publish(ctx, ev, ev.Attributes(c.GetHeader("X-Request-Id"))); err != nil {
		_ = h.idempStore.MarkFailed(ctx, key, fmt.Sprintf("sqs_send_failed: %v", err))
		h.log.Errorw("enqueue order.placed failed", "order_id", o.OrderID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Failed to enqueue order, retry with the same Idempotency-Key"})
		return
	}

	view := orders.NewView(o, actor)
	body, _ := json.Marshal(view)
	if err := h.idempStore.MarkDone(ctx, key, string(body), http.StatusCreated); err != nil {
		h.log.Warnw("mark idempotency done failed", "key", key, "error", err)
	}

	h.log.Infow("order placed", "order_id", o.OrderID, "buyer_id", actor.ID, "vendor_id", o.VendorID)
	c.Header("Location", fmt.Sprintf("/orders/%s", o.OrderID))
	c.Data(http.StatusCreated, "application/json", body)
}

func (h *ordersHandler) get(c *gin.Context) {
	actor, _ := auth.ActorFrom(c)
	o, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if o == nil {
		writeError(c, h.log, orders.ErrNotFound)
		return
	}
	if !orders.CanView(o, actor) {
		writeError(c, h.log, orders.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, orders.NewView(*o, actor))
}

// binder reads the action payload. It returns false after writing a response.
type binder func(c *gin.Context) (orders.TransitionInput, bool)

func (h *ordersHandler) bindReject(c *gin.Context) (orders.TransitionInput, bool) {
	var req validation.RejectRequest
	if err := validation.BindAndValidate(c, &req, h.v, true); err != nil {
		return orders.TransitionInput{}, false
	}
	return orders.TransitionInput{Reason: req.Reason}, true
}

func (h *ordersHandler) bindDeliver(c *gin.Context) (orders.TransitionInput, bool) {
	var req validation.MarkDeliveredRequest
	if err := validation.BindAndValidate(c, &req, h.v, false); err != nil {
		return orders.TransitionInput{}, false
	}
	return orders.TransitionInput{DeliveryOTP: req.DeliveryOTP, CODCollected: req.CODCollected}, true
}

func (h *ordersHandler) bindFail(c *gin.Context) (orders.TransitionInput, bool) {
	var req validation.MarkFailedRequest
	if err := validation.BindAndValidate(c, &req, h.v, false); err != nil {
		return orders.TransitionInput{}, false
	}
	return orders.TransitionInput{Reason: req.Reason, Notes: req.Notes}, true
}

func (h *ordersHandler) bindReturn(c *gin.Context) (orders.TransitionInput, bool) {
	var req validation.ReturnRequest
	if err := validation.BindAndValidate(c, &req, h.v, false); err != nil {
		return orders.TransitionInput{}, false
	}
	return orders.TransitionInput{Reason: req.Reason}, true
}

// transition builds the handler for one lifecycle action. An optional
// Idempotency-Key makes retries of the same action replay the first answer.
func (h *ordersHandler) transition(kind lifecycle.ActionKind, bind binder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actor, _ := auth.ActorFrom(c)
		orderID := c.Param("id")

		var in orders.TransitionInput
		if bind != nil {
			var ok bool
			if in, ok = bind(c); !ok {
				return
			}
		}

		var key string
		if header := c.GetHeader("Idempotency-Key"); header != "" {
			key = idempotency.Key(actor.ID, header)
			if done := h.claimKey(c, key, kind, orderID); done {
				return
			}
		}

		release, err := h.guard.Acquire(ctx, orderID)
		if err != nil {
			h.failKey(c, key, err)
			writeError(c, h.log, err)
			return
		}
		defer release()

		res, err := h.orders.Apply(ctx, orderID, kind, actor, in)
		if err != nil {
			h.failKey(c, key, err)
			h.log.Infow("transition rejected", "order_id", orderID, "action", kind, "actor", actor.ID, "error", err)
			writeError(c, h.log, err)
			return
		}

		// The transition is committed at this point; a lost event is logged,
		// not surfaced, so the caller does not retry a done transition.
		ev := orders.TransitionEvent(*res, kind, actor)
		if err := h.publisher.Publish(ctx, ev, ev.Attributes(c.GetHeader("X-Request-Id"))); err != nil {
			h.log.Errorw("enqueue order.transitioned failed", "order_id", orderID, "action", kind, "error", err)
		}

		view := orders.NewView(res.Order, actor)
		body, _ := json.Marshal(view)
		if key != "" {
			if err := h.idempStore.MarkDone(ctx, key, string(body), http.StatusOK); err != nil {
				h.log.Warnw("mark idempotency done failed", "key", key, "error", err)
			}
		}

		h.log.Infow("order transitioned", "order_id", orderID, "action", kind, "from", res.From, "to", res.Order.Status, "actor", actor.ID)
		c.Data(http.StatusOK, "application/json", body)
	}
}

// claimKey reserves key for this action. It returns true when it has already
// answered the request (a replay or a conflict).
func (h *ordersHandler) claimKey(c *gin.Context, key string, kind lifecycle.ActionKind, orderID string) bool {
	ctx := c.Request.Context()
	created, err := h.idempStore.CreateIfNotExists(ctx, key, string(kind), orderID)
	if err != nil {
		writeError(c, h.log, err)
		return true
	}
	if created {
		return false
	}

	rec, err := h.idempStore.Get(ctx, key)
	if err != nil {
		writeError(c, h.log, err)
		return true
	}
	if rec == nil {
		// expired between the put and the read
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": "Request already in progress"})
		return true
	}
	if rec.Scope != string(kind) || rec.OrderID != orderID {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "Idempotency-Key was already used for a different request"})
		return true
	}

	switch rec.Status {
	case idempotency.StatusDone:
		h.replay(c, rec)
		return true
	case idempotency.StatusFailed:
		ok, err := h.idempStore.Retry(ctx, key)
		if err != nil {
			writeError(c, h.log, err)
			return true
		}
		if ok {
			return false
		}
	}
	c.AbortWithStatusJSON(http.StatusConflict, gin.H{"detail": "Request already in progress"})
	return true
}

func (h *ordersHandler) failKey(c *gin.Context, key string, cause error) {
	if key == "" {
		return
	}
	if err := h.idempStore.MarkFailed(c.Request.Context(), key, cause.Error()); err != nil {
		h.log.Warnw("mark idempotency failed failed", "key", key, "error", err)
	}
}

func (h *ordersHandler) replay(c *gin.Context, rec *idempotency.IdempotencyRecord) {
	if rec.ResponseBody == "" {
		c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
		return
	}
	status := rec.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(status, "application/json", []byte(rec.ResponseBody))
}
