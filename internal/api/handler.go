// Package api exposes the order service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"order_go/internal/domain"
	"order_go/internal/service"

	"github.com/gin-gonic/gin"
)

// AccountHeader carries the authenticated account, set by the upstream gateway.
const AccountHeader = "X-Account-ID"

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PriceFeed reports whether a pushed price feed is connected.
type PriceFeed interface {
	IsConnected() bool
}

// Handler holds the HTTP handler dependencies.
type Handler struct {
	orders service.OrderService
	db     Pinger
	feed   PriceFeed
	logger *slog.Logger
}

// NewHandler creates a new Handler. db may be nil.
func NewHandler(orders service.OrderService, db Pinger) *Handler {
	return &Handler{
		orders: orders,
		db:     db,
		logger: slog.Default().With(slog.String("module", "api")),
	}
}

// WithPriceFeed makes /health report a disconnected price feed.
func (h *Handler) WithPriceFeed(feed PriceFeed) *Handler {
	h.feed = feed
	return h
}

// RegisterRoutes sets up the Gin routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	v1 := r.Group("/v1", requireAccount())
	{
		v1.POST("/orders", h.CreateOrder)
		v1.GET("/orders", h.ListOrders)
		v1.GET("/orders/:id", h.GetOrder)
		v1.DELETE("/orders/:id", h.CancelOrder)
		v1.GET("/portfolio", h.GetPortfolio)
	}
}

// Health returns a health check response.
func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	if h.feed != nil && !h.feed.IsConnected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "price stream disconnected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateOrder handles POST /v1/orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	req.AccountID = account(c)

	order, err := h.orders.CreateOrder(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, order)
		return
	}
	c.Header("Location", "/v1/orders/"+order.ID)
	c.JSON(http.StatusCreated, order)
}

// ListOrders handles GET /v1/orders?status=&page=&page_size=.
func (h *Handler) ListOrders(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	pageSize, err := queryInt(c, "page_size", domain.DefaultPageSize)
	if err != nil {
		h.fail(c, err, nil)
		return
	}

	items, total, err := h.orders.ListOrders(c.Request.Context(), account(c), c.Query("status"), page, pageSize)
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	if items == nil {
		items = []domain.Order{}
	}

	p := domain.Page{Page: page, PageSize: pageSize}.Normalize()
	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      p.Page,
		"page_size": p.PageSize,
	})
}

// GetOrder handles GET /v1/orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), account(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, order)
}

// CancelOrder handles DELETE /v1/orders/:id.
func (h *Handler) CancelOrder(c *gin.Context) {
	order, err := h.orders.CancelOrder(c.Request.Context(), account(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetPortfolio handles GET /v1/portfolio.
func (h *Handler) GetPortfolio(c *gin.Context) {
	snap, err := h.orders.GetPortfolio(c.Request.Context(), account(c))
	if err != nil {
		h.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCompensationFailure):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientHoldings),
		errors.Is(err, domain.ErrLimitNotMarketable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrPriceUnavailable), errors.Is(err, domain.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidOperation):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err. A rejected order, when there is one, is returned with it.
func (h *Handler) fail(c *gin.Context, err error, order *domain.Order) {
	status := StatusFor(err)
	body := gin.H{"error": err.Error()}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body["error"] = "validation failed"
		body["fields"] = verr.Fields
	}
	if order != nil {
		body["order"] = order
	}

	if status >= http.StatusInternalServerError {
		body["error"] = http.StatusText(status)
		h.logger.ErrorContext(c.Request.Context(), "Request failed",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", status),
			slog.Any("error", err),
		)
	}
	c.JSON(status, body)
}

func requireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader(AccountHeader)) == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing " + AccountHeader + " header"})
			return
		}
		c.Next()
	}
}

func account(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(AccountHeader))
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr := &domain.ValidationError{}
		verr.Add(key, "must be an integer")
		return 0, verr
	}
	return n, nil
}
