package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/foodhub/api/internal/platform/config"
	"github.com/foodhub/api/internal/platform/observability"
	"github.com/foodhub/api/internal/repositories"
	"github.com/foodhub/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Pricing       services.PricingCalculator
	Coupons       services.CouponService
	Orders        services.OrderService
	Notifications services.NotificationDispatcher
	Rates         services.RateService
	Addresses     services.AddressService
	Items         services.ItemService
	DeliveryAreas services.DeliveryAreaService
	Users         services.UserService
	// System is nil when the registry carries no health repository.
	System services.SystemService
}

// Deps carries the infrastructure built outside the container.
type Deps struct {
	Rooms services.RoomPublisher
	// Push is optional; without it notifications are realtime only.
	Push   services.PushSender
	Logger *zap.Logger
	Meter  metric.Meter
	Clock  func() time.Time
	Build  services.BuildInfo
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. The notification dispatcher is built but not
// started; call Start once the server is about to accept traffic.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Deps) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Rooms == nil {
		return nil, errors.New("room publisher is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	svc, err := buildServices(reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Start launches background workers.
func (c *Container) Start(ctx context.Context) {
	if c == nil || c.Services.Notifications == nil {
		return
	}
	c.Services.Notifications.Start(ctx)
}

// Close drains the notification queue and then releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Services.Notifications != nil {
		if err := c.Services.Notifications.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close notifications: %w", err))
		}
	}
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close repositories: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildServices(reg repositories.Registry, cfg config.Config, deps Deps) (Services, error) {
	var svc Services
	logger := func(component string) func(context.Context, string, map[string]any) {
		return observability.EventLogger(deps.Logger, component)
	}

	notifications, err := services.NewNotificationDispatcher(services.NotificationDispatcherDeps{
		Rooms:         deps.Rooms,
		Push:          deps.Push,
		Users:         reg.Users(),
		RetryAttempts: cfg.Notifications.RetryAttempts,
		RetryDelay:    cfg.Notifications.RetryDelay,
		QueueSize:     cfg.Notifications.QueueSize,
		Workers:       cfg.Notifications.Workers,
		Meter:         deps.Meter,
		Clock:         deps.Clock,
		Logger:        logger("notifications"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build notification dispatcher: %w", err)
	}
	svc.Notifications = notifications

	coupons, err := services.NewCouponService(services.CouponServiceDeps{
		Coupons: reg.Coupons(),
		Orders:  reg.Orders(),
		Clock:   deps.Clock,
		Logger:  logger("coupons"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build coupon service: %w", err)
	}
	svc.Coupons = coupons

	pricing, err := services.NewPricingCalculator(services.PricingCalculatorDeps{
		Items:         reg.Items(),
		DeliveryAreas: reg.DeliveryAreas(),
		Coupons:       coupons,
		Clock:         deps.Clock,
		Logger:        logger("pricing"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing calculator: %w", err)
	}
	svc.Pricing = pricing

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:        reg.Orders(),
		Items:         reg.Items(),
		Vendors:       reg.Vendors(),
		Users:         reg.Users(),
		Addresses:     reg.Addresses(),
		Pricing:       pricing,
		Notifications: notifications,
		Clock:         deps.Clock,
		Logger:        logger("orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	rates, err := services.NewRateService(services.RateServiceDeps{
		Rates:      reg.Rates(),
		Vendors:    reg.Vendors(),
		Aggregator: services.NewRatingAggregator(reg.Rates(), reg.Vendors()),
		Clock:      deps.Clock,
		Logger:     logger("rates"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build rate service: %w", err)
	}
	svc.Rates = rates

	addresses, err := services.NewAddressService(services.AddressServiceDeps{
		Addresses:     reg.Addresses(),
		DeliveryAreas: reg.DeliveryAreas(),
		Clock:         deps.Clock,
		Logger:        logger("addresses"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build address service: %w", err)
	}
	svc.Addresses = addresses

	items, err := services.NewItemService(services.ItemServiceDeps{
		Items:   reg.Items(),
		Vendors: reg.Vendors(),
		Clock:   deps.Clock,
		Logger:  logger("items"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build item service: %w", err)
	}
	svc.Items = items

	areas, err := services.NewDeliveryAreaService(services.DeliveryAreaServiceDeps{
		DeliveryAreas: reg.DeliveryAreas(),
		Clock:         deps.Clock,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build delivery area service: %w", err)
	}
	svc.DeliveryAreas = areas

	users, err := services.NewUserService(services.UserServiceDeps{
		Users:  reg.Users(),
		Logger: logger("users"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build user service: %w", err)
	}
	svc.Users = users

	if healthRepo := reg.Health(); healthRepo != nil {
		build := deps.Build
		if build.Environment == "" {
			build.Environment = cfg.Environment
		}
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            deps.Clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}
