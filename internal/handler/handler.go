// Package handler exposes the storefront services over HTTP with echo.
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xenking/pickle-storefront/internal/domain/auth"
	"github.com/xenking/pickle-storefront/internal/domain/cart"
	"github.com/xenking/pickle-storefront/internal/domain/coupon"
	"github.com/xenking/pickle-storefront/internal/domain/order"
	"github.com/xenking/pickle-storefront/internal/domain/pricing"
	"github.com/xenking/pickle-storefront/internal/domain/product"
	"github.com/xenking/pickle-storefront/internal/domain/support"
	"github.com/xenking/pickle-storefront/internal/domain/wishlist"
)

// Prefix is the mount point of the API routes.
const Prefix = "/api/v1"

// Config holds transport settings for the API router.
type Config struct {
	CORSOrigins      []string
	AllowCredentials bool
	// BodyLimit uses echo's size notation, e.g. "1M".
	BodyLimit string
	// RateLimit allows RateLimit requests per RateWindow per client IP.
	// Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Services bundles the domain services served by the API.
type Services struct {
	Products  *product.Service
	Carts     *cart.Service
	Wishlists *wishlist.Service
	Orders    *order.Service
	Support   *support.Service
}

// Handler binds HTTP requests to domain services.
type Handler struct {
	products  *product.Service
	carts     *cart.Service
	wishlists *wishlist.Service
	orders    *order.Service
	support   *support.Service
	auth      *Authenticator
}

func New(s Services, a *Authenticator) *Handler {
	return &Handler{
		products:  s.Products,
		carts:     s.Carts,
		wishlists: s.Wishlists,
		orders:    s.Orders,
		support:   s.Support,
		auth:      a,
	}
}

// NewServer returns an echo instance with every API route registered under
// Prefix.
func NewServer(h *Handler, cfg Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(labelRoute())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
			AllowCredentials: cfg.AllowCredentials,
		}))
	}
	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	api := e.Group(Prefix)
	if cfg.RateLimit > 0 && cfg.RateWindow > 0 {
		api.Use(rateLimit(cfg.RateLimit, cfg.RateWindow))
	}
	h.Register(api)
	return e
}

// Register mounts the API routes on g.
func (h *Handler) Register(g *echo.Group) {
	user := h.auth.RequireUser()
	admin := []echo.MiddlewareFunc{user, RequireAdmin()}

	g.GET("/products", h.listProducts, h.auth.Optional())
	g.GET("/products/top", h.topProducts)
	g.GET("/products/:id", h.getProduct)
	g.GET("/categories", h.listCategories)
	g.POST("/products/:id/reviews", h.reviewProduct, user)

	g.GET("/cart", h.getCart, user)
	g.POST("/cart", h.addToCart, user)
	g.PUT("/cart/:itemId", h.updateCartItem, user)
	g.DELETE("/cart/:itemId", h.removeCartItem, user)

	g.GET("/wishlist", h.getWishlist, user)
	g.POST("/wishlist/toggle", h.toggleWishlist, user)

	g.POST("/orders", h.checkout, user)
	g.GET("/orders/mine", h.myOrders, user)
	g.GET("/orders/:id", h.getOrder, user)
	g.PUT("/orders/:id/tracking", h.updateOrderStatus, admin...)

	g.POST("/support", h.createTicket, user)
	g.GET("/support", h.myTickets, user)

	a := g.Group("/admin", admin...)
	a.GET("/orders", h.listOrders)
	a.PUT("/orders/:id/status", h.updateOrderStatus)
	a.GET("/dashboard/summary", h.dashboardSummary)
	a.GET("/dashboard/revenue", h.revenueTrend)
	a.GET("/products", h.adminListProducts)
	a.POST("/products", h.createProduct)
	a.PUT("/products/:id", h.updateProduct)
	a.DELETE("/products/:id", h.deleteProduct)
	a.GET("/support", h.listTickets)
	a.PUT("/support/:id/reply", h.replyTicket)
}

// labelRoute renames the server span and labels the HTTP metrics with the
// matched route template instead of the raw path.
func labelRoute() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				return next(c)
			}
			ctx := c.Request().Context()
			attr := attribute.String("http.route", route)

			span := trace.SpanFromContext(ctx)
			span.SetName(c.Request().Method + " " + route)
			span.SetAttributes(attr)
			if l, ok := otelhttp.LabelerFromContext(ctx); ok {
				l.Add(attr)
			}
			return next(c)
		}
	}
}

func rateLimit(limit int, window time.Duration) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(limit) / window.Seconds()),
		Burst:     limit,
		ExpiresIn: 3 * window,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
		},
	})
}

// errorResponse is the body of every failed API response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var sentinelStatus = []struct {
	err  error
	code int
}{
	{auth.ErrUnauthenticated, http.StatusUnauthorized},
	{auth.ErrForbidden, http.StatusForbidden},

	{product.ErrNotFound, http.StatusNotFound},
	{order.ErrNotFound, http.StatusNotFound},
	{support.ErrNotFound, http.StatusNotFound},
	{cart.ErrItemNotFound, http.StatusNotFound},

	{cart.ErrVersionConflict, http.StatusConflict},
	{support.ErrAlreadyReplied, http.StatusConflict},

	{order.ErrEmptyCart, http.StatusBadRequest},
	{order.ErrMissingPaymentDetail, http.StatusBadRequest},
	{order.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{order.ErrInvalidStatus, http.StatusBadRequest},
	{order.ErrIllegalTransition, http.StatusBadRequest},
	{order.ErrInvalidTrendRange, http.StatusBadRequest},
	{coupon.ErrInvalidCoupon, http.StatusBadRequest},
	{cart.ErrPackSizeUnavailable, http.StatusBadRequest},
	{cart.ErrInvalidQuantity, http.StatusBadRequest},
	{pricing.ErrAmountOutOfRange, http.StatusBadRequest},
	{support.ErrInvalidOrderReference, http.StatusBadRequest},
	{support.ErrEmptyReply, http.StatusBadRequest},
	{support.ErrInvalidStatus, http.StatusBadRequest},
}

// statusOf maps an error to its HTTP status and client-facing message.
// Unknown errors are reported as 500 without detail.
func statusOf(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.code, s.err.Error()
		}
	}

	var (
		pe *product.ValidationError
		oe *order.ValidationError
		se *support.ValidationError
	)
	switch {
	case errors.As(err, &pe):
		return http.StatusBadRequest, pe.Error()
	case errors.As(err, &oe):
		return http.StatusBadRequest, oe.Error()
	case errors.As(err, &se):
		return http.StatusBadRequest, se.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := statusOf(err)
	if code >= http.StatusInternalServerError {
		zctx.From(c.Request().Context()).Error("Request failed",
			zap.Error(err),
			zap.String("route", c.Path()),
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorResponse{Code: code, Message: msg})
	}
	if err != nil {
		zctx.From(c.Request().Context()).Warn("Write error response", zap.Error(err))
	}
}

// bind decodes the request body into v and reports malformed input as 400.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

// identity returns the caller attached by the auth middleware, or a zero
// identity on public routes.
func identity(c echo.Context) auth.Identity {
	id, _ := auth.FromContext(c.Request().Context())
	return id
}
