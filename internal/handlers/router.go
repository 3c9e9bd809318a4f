package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/foodhub/api/internal/platform/auth"
	"github.com/foodhub/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath     string
	middlewares  []func(http.Handler) http.Handler
	health       *HealthHandlers
	authn        *auth.Authenticator
	corsOrigins  []string
	redactErrors bool

	public   []RouteRegistrar
	customer []RouteRegistrar
	vendor   []RouteRegistrar
	delivery []RouteRegistrar
	admin    []RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix = "/api/v1"
	defaultTimeout   = 60 * time.Second
)

// NewRouter constructs the chi router with shared middleware and one route group per audience.
// Customer routes live at the API root; vendor, delivery and admin routes under their own prefix.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}
	if len(cfg.corsOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
			ExposedHeaders:   []string{"Location", "X-Idempotent-Replay"},
			AllowCredentials: true,
		}).Handler)
	}
	if cfg.redactErrors {
		r.Use(redactServerErrors)
	}
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(http.StatusNotFound, fmt.Sprintf("no route for %s", req.URL.Path)))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path)))
	})

	r.Get("/healthz", cfg.health.Healthz)

	r.Route(cfg.basePath, func(api chi.Router) {
		api.Group(func(group chi.Router) {
			for _, reg := range cfg.public {
				reg(group)
			}
		})
		api.Group(func(group chi.Router) {
			group.Use(cfg.authn.RequireAuth(auth.TypeUser))
			for _, reg := range cfg.customer {
				reg(group)
			}
		})
		mount := func(path, name string, regs []RouteRegistrar, types ...string) {
			api.Route(path, func(group chi.Router) {
				group.Use(cfg.authn.RequireAuth(types...))
				if len(regs) == 0 {
					registerNotImplemented(group, name)
					return
				}
				for _, reg := range regs {
					reg(group)
				}
			})
		}
		mount("/vendor", "vendor", cfg.vendor, auth.TypeVendor)
		mount("/delivery", "delivery", cfg.delivery, auth.TypeDelivery)
		mount("/admin", "admin", cfg.admin, auth.TypeAdmin)
	})

	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for /healthz.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithAuthenticator sets the authenticator guarding every non-public group. Without one those
// groups answer 401.
func WithAuthenticator(authn *auth.Authenticator) Option {
	return func(cfg *routerConfig) {
		cfg.authn = authn
	}
}

// WithCORS enables CORS for the listed browser origins.
func WithCORS(origins ...string) Option {
	return func(cfg *routerConfig) {
		cfg.corsOrigins = append(cfg.corsOrigins, origins...)
	}
}

// WithRedactedServerErrors hides 5xx error text from responses.
func WithRedactedServerErrors(enabled bool) Option {
	return func(cfg *routerConfig) {
		cfg.redactErrors = enabled
	}
}

// WithPublicRoutes adds registrars for unauthenticated endpoints.
func WithPublicRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.public = appendRegistrars(cfg.public, regs)
	}
}

// WithCustomerRoutes adds registrars for customer endpoints.
func WithCustomerRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.customer = appendRegistrars(cfg.customer, regs)
	}
}

// WithVendorRoutes adds registrars mounted under /vendor.
func WithVendorRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.vendor = appendRegistrars(cfg.vendor, regs)
	}
}

// WithDeliveryRoutes adds registrars mounted under /delivery.
func WithDeliveryRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.delivery = appendRegistrars(cfg.delivery, regs)
	}
}

// WithAdminRoutes adds registrars mounted under /admin.
func WithAdminRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.admin = appendRegistrars(cfg.admin, regs)
	}
}

func appendRegistrars(dst, regs []RouteRegistrar) []RouteRegistrar {
	for _, reg := range regs {
		if reg != nil {
			dst = append(dst, reg)
		}
	}
	return dst
}

func registerNotImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(http.StatusNotImplemented, fmt.Sprintf("%s routes not implemented", name)))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
}
