package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/farmconnect/marketplace-api/internal/api/handler"
	"github.com/farmconnect/marketplace-api/internal/api/middleware"
	"github.com/farmconnect/marketplace-api/internal/core/domain"
	"github.com/farmconnect/marketplace-api/internal/core/ports"
)

const bodyLimit = "6M"

// Options carries the HTTP-level settings of the router.
type Options struct {
	FrontendURL  string
	CookieSecure bool
	TokenTTL     time.Duration
	// AuthRate and AuthBurst bound register/login attempts per client IP.
	AuthRate  float64
	AuthBurst int
}

// Deps are the services the HTTP layer is built on.
type Deps struct {
	Auth     ports.AuthService
	Products ports.ProductService
	Orders   ports.OrderService
	// Images is nil when uploads are not configured; the upload route is then
	// not registered.
	Images       ports.ImageStore
	HealthChecks map[string]handler.HealthCheck
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps, opts Options, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOriginFunc:  allowOrigin(opts.FrontendURL),
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, handler.IdempotencyKeyHeader},
		AllowCredentials: true,
	}))
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem: "farmconnect",
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Operational endpoints ---
	health := handler.NewHealthHandler(deps.HealthChecks)
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	r := newRoutes(deps, opts)
	r.mount(e.Group(""))
	// The web frontend calls everything under /api; serve both.
	r.mount(e.Group("/api"))

	return e
}

// routes holds the handlers and guards shared by every mount point, so both
// prefixes draw from the same rate limiter store.
type routes struct {
	auth     *handler.AuthHandler
	products *handler.ProductHandler
	orders   *handler.OrderHandler

	authn        echo.MiddlewareFunc
	farmerOnly   echo.MiddlewareFunc
	consumerOnly echo.MiddlewareFunc
	limiter      echo.MiddlewareFunc
	uploads      bool
}

func newRoutes(deps Deps, opts Options) *routes {
	return &routes{
		auth: handler.NewAuthHandler(deps.Auth, handler.CookieOptions{
			Secure: opts.CookieSecure,
			TTL:    opts.TokenTTL,
		}),
		products:     handler.NewProductHandler(deps.Products, deps.Images),
		orders:       handler.NewOrderHandler(deps.Orders),
		authn:        middleware.Auth(deps.Auth),
		farmerOnly:   middleware.RBAC(domain.RoleFarmer),
		consumerOnly: middleware.RBAC(domain.RoleConsumer),
		limiter:      authRateLimiter(opts.AuthRate, opts.AuthBurst),
		uploads:      deps.Images != nil,
	}
}

func (r *routes) mount(g *echo.Group) {
	// --- Auth routes ---
	auth := g.Group("/auth")
	auth.POST("/register", r.auth.Register, r.limiter)
	auth.POST("/login", r.auth.Login, r.limiter)
	auth.POST("/logout", r.auth.Logout)
	auth.GET("/profile", r.auth.Profile, r.authn)

	// --- Catalog routes ---
	products := g.Group("/products")
	products.GET("", r.products.List)
	products.GET("/farmer/my-products", r.products.Mine, r.authn, r.farmerOnly)
	products.GET("/:id", r.products.Get)
	products.POST("", r.products.Create, r.authn, r.farmerOnly)
	if r.uploads {
		products.POST("/images", r.products.UploadImage, r.authn, r.farmerOnly)
	}
	products.PUT("/:id", r.products.Update, r.authn, r.farmerOnly)
	products.DELETE("/:id", r.products.Delete, r.authn, r.farmerOnly)

	// --- Order routes ---
	orders := g.Group("/orders", r.authn)
	orders.POST("", r.orders.Create, r.consumerOnly)
	orders.GET("/consumer/my-orders", r.orders.MyOrders, r.consumerOnly)
	orders.GET("/farmer/received-orders", r.orders.ReceivedOrders, r.farmerOnly)
	orders.PUT("/:id/status", r.orders.UpdateStatus, r.farmerOnly)
	orders.GET("/:id", r.orders.Get)
}

// requestLogger writes one access log entry per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= http.StatusInternalServerError {
				ev = log.Error()
			} else if v.Status >= http.StatusBadRequest {
				ev = log.Warn()
			}
			if v.Error != nil {
				ev = ev.Err(v.Error)
			}
			ev.Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// allowOrigin accepts the configured frontend (with or without a trailing
// slash) and any port on localhost or 127.0.0.1.
func allowOrigin(frontendURL string) func(origin string) (bool, error) {
	frontend := strings.TrimRight(frontendURL, "/")
	return func(origin string) (bool, error) {
		origin = strings.TrimRight(origin, "/")
		if frontend != "" && origin == frontend {
			return true, nil
		}
		u, err := url.Parse(origin)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return false, nil
		}
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1", nil
	}
}

func authRateLimiter(limit float64, burst int) echo.MiddlewareFunc {
	if limit <= 0 {
		limit = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(limit),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, try again later")
		},
	})
}
