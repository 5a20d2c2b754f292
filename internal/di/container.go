package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "github.com/techfy/storefront-api/internal/domain"
	"github.com/techfy/storefront-api/internal/handlers"
	"github.com/techfy/storefront-api/internal/platform/auth"
	"github.com/techfy/storefront-api/internal/platform/config"
	"github.com/techfy/storefront-api/internal/platform/idempotency"
	"github.com/techfy/storefront-api/internal/platform/observability"
	"github.com/techfy/storefront-api/internal/platform/ratelimit"
	predis "github.com/techfy/storefront-api/internal/platform/redis"
	"github.com/techfy/storefront-api/internal/repositories"
	"github.com/techfy/storefront-api/internal/services"
)

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config   config.Config
	Registry repositories.Registry
	Orders   services.OrderService
	Router   http.Handler

	logger    *zap.Logger
	scheduler gocron.Scheduler
	closers   []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// Option customises NewContainer; tests use them to swap infrastructure.
type Option func(*containerOptions)

type containerOptions struct {
	registry repositories.Registry
	notifier services.FulfillmentNotifier
	verifier auth.TokenVerifier
	version  string
}

// WithRegistry skips storage construction and uses reg instead.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *containerOptions) { o.registry = reg }
}

// WithNotifier overrides the warehouse adapter selected by configuration.
func WithNotifier(n services.FulfillmentNotifier) Option {
	return func(o *containerOptions) { o.notifier = n }
}

// WithVerifier overrides the bearer token verifier selected by configuration.
func WithVerifier(v auth.TokenVerifier) Option {
	return func(o *containerOptions) { o.verifier = v }
}

func WithVersion(version string) Option {
	return func(o *containerOptions) { o.version = version }
}

// NewContainer constructs the runtime dependencies. On failure every resource opened so far is
// released before returning.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (c *Container, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var options containerOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	c = &Container{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = c.Close(closeCtx)
			c = nil
		}
	}()

	reg := options.registry
	var store *storage
	if reg == nil {
		store, err = openStorage(ctx, cfg, logger)
		if err != nil {
			return c, err
		}
		reg = store.registry
		c.track("storage", reg.Close)
	}
	c.Registry = reg

	checks := append([]repositories.DependencyCheck(nil), reg.HealthChecks()...)

	var redisClient *goredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = predis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return c, err
		}
		c.track("redis", func(context.Context) error { return redisClient.Close() })
		checks = append(checks, repositories.DependencyCheck{Name: "redis", Check: predis.Pinger(redisClient)})
	}

	notifier := options.notifier
	if notifier == nil {
		var closeNotifier func(context.Context) error
		notifier, closeNotifier, err = buildNotifier(ctx, cfg.Warehouse, logger)
		if err != nil {
			return c, err
		}
		if closeNotifier != nil {
			c.track("warehouse", closeNotifier)
		}
	}

	eventLogger := observability.EventLogger(logger)
	pricing, err := services.NewPricingEngine(services.PricingEngineDeps{
		Catalog:               reg.Catalog(),
		FreeShippingThreshold: cfg.Pricing.FreeShippingThreshold,
		FlatShippingFee:       cfg.Pricing.FlatShippingFee,
	})
	if err != nil {
		return c, fmt.Errorf("build pricing engine: %w", err)
	}
	numbers, err := services.NewOrderNumberAllocator(services.OrderNumberAllocatorDeps{
		Orders:   reg.Orders(),
		Prefix:   cfg.Orders.NumberPrefix,
		Digits:   cfg.Orders.NumberDigits,
		Attempts: cfg.Orders.AllocationAttempts,
		Logger:   eventLogger,
	})
	if err != nil {
		return c, fmt.Errorf("build order number allocator: %w", err)
	}
	c.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders:          reg.Orders(),
		Pricing:         pricing,
		Numbers:         numbers,
		Notifier:        notifier,
		Currency:        cfg.Pricing.Currency,
		DeliveryWindow:  cfg.Orders.DeliveryWindow,
		MutationRetries: cfg.Orders.MutationRetries,
		NotifyTimeout:   cfg.Warehouse.Timeout,
		Logger:          eventLogger,
	})
	if err != nil {
		return c, fmt.Errorf("build order service: %w", err)
	}

	verifier := options.verifier
	if verifier == nil {
		verifier, err = buildVerifier(ctx, cfg)
		if err != nil {
			return c, err
		}
	}
	authn := auth.NewAuthenticator(verifier, auth.WithVerificationTimeout(cfg.Auth.VerifyTimeout))

	idemStore, cleanupNeeded := buildIdempotencyStore(ctx, store, redisClient)
	if cleanupNeeded && cfg.Idempotency.CleanupInterval > 0 {
		if err := c.startCleanup(idemStore, cfg.Idempotency); err != nil {
			return c, err
		}
	}

	generalLimiter, supportLimiter := buildLimiters(cfg.RateLimits, redisClient)

	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return c, fmt.Errorf("build health repository: %w", err)
	}

	orderHandlers := handlers.NewOrderHandlers(authn, c.Orders,
		handlers.WithOrderIdempotency(idempotency.Middleware(idemStore,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
			idempotency.WithMethods(http.MethodPost),
			idempotency.WithOptionalKey(),
		)),
	)
	supportHandlers := handlers.NewSupportHandlers(c.Orders)

	c.Router = handlers.NewRouter(
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger),
			observability.TraceMiddleware(cfg.Observability.ProjectID),
			observability.ClientIPMiddleware,
			observability.RequestLoggerMiddleware(),
			observability.RecoveryMiddleware(logger),
			ratelimit.Middleware(generalLimiter, "api"),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthDependencies(healthRepo),
			handlers.WithHealthVersion(options.version),
		)),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithSupportRoutes(supportHandlers.Routes),
		handlers.WithSupportMiddlewares(
			authn.Required(),
			auth.RequireCapability(domain.CapabilityManageOrders),
			ratelimit.Middleware(supportLimiter, "support"),
		),
	)
	return c, nil
}

// Close stops background jobs and releases clients in reverse order of creation.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.scheduler != nil {
		if err := c.scheduler.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
		c.scheduler = nil
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(ctx); err != nil {
			c.logger.Warn("close failed", zap.String("resource", cl.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", cl.name, err))
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) track(name string, fn func(context.Context) error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

func (c *Container) startCleanup(store idempotency.Store, cfg config.IdempotencyConfig) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	job := idempotency.NewCleanupJob(store, cfg.CleanupBatchSize, c.logger.Named("idempotency"))
	if _, err := job.Schedule(scheduler, cfg.CleanupInterval); err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("schedule idempotency cleanup: %w", err)
	}
	scheduler.Start()
	c.scheduler = scheduler
	return nil
}

func buildVerifier(ctx context.Context, cfg config.Config) (auth.TokenVerifier, error) {
	switch cfg.Auth.Provider {
	case config.AuthProviderFirebase:
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase, auth.WithFirebaseTimeout(cfg.Auth.VerifyTimeout))
		if err != nil {
			return nil, fmt.Errorf("build firebase verifier: %w", err)
		}
		return verifier, nil
	default:
		verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret),
			auth.WithJWTIssuer(cfg.Auth.JWTIssuer),
			auth.WithJWTAudience(cfg.Auth.JWTAudience),
		)
		if err != nil {
			return nil, fmt.Errorf("build jwt verifier: %w", err)
		}
		return verifier, nil
	}
}

// buildIdempotencyStore prefers Redis, then Firestore when it is the order store, then memory.
// The boolean reports whether the store needs the periodic cleanup job.
func buildIdempotencyStore(ctx context.Context, store *storage, redisClient *goredis.Client) (idempotency.Store, bool) {
	if redisClient != nil {
		return idempotency.NewRedisStore(redisClient, ""), false
	}
	if store != nil && store.firestore != nil {
		if client, err := store.firestore.Client(ctx); err == nil {
			return idempotency.NewFirestoreStore(client), true
		}
	}
	return idempotency.NewMemoryStore(), true
}

func buildLimiters(cfg config.RateLimitConfig, redisClient *goredis.Client) (general, support ratelimit.Limiter) {
	if redisClient != nil {
		if l := ratelimit.NewRedisLimiter(redisClient, "ratelimit:api", cfg.GeneralPerMinute, cfg.Window); l != nil {
			general = l
		}
		if l := ratelimit.NewRedisLimiter(redisClient, "ratelimit:support", cfg.SupportPerMinute, cfg.Window); l != nil {
			support = l
		}
		return general, support
	}
	if l := ratelimit.NewMemoryLimiter(cfg.GeneralPerMinute, cfg.Window, nil); l != nil {
		general = l
	}
	if l := ratelimit.NewMemoryLimiter(cfg.SupportPerMinute, cfg.Window, nil); l != nil {
		support = l
	}
	return general, support
}
