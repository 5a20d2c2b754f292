package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultShutdownTimeout      = 15 * time.Second
	defaultAuthProvider         = AuthProviderJWT
	defaultVerifyTimeout        = 5 * time.Second
	defaultStorageDriver        = StorageDriverMemory
	defaultPostgresMaxOpen      = 10
	defaultPostgresMaxIdle      = 5
	defaultPostgresConnLifetime = 30 * time.Minute
	defaultFreeShippingAt       = 5000
	defaultFlatShippingFee      = 250
	defaultCurrency             = "USD"
	defaultNumberPrefix         = "JJ"
	defaultNumberDigits         = 8
	defaultAllocationAttempts   = 5
	defaultDeliveryWindow       = 6 * 24 * time.Hour
	defaultMutationRetries      = 3
	defaultWarehouseMode        = WarehouseModeStub
	defaultWarehouseTimeout     = 2 * time.Second
	defaultGeneralPerMinute     = 300
	defaultSupportPerMinute     = 60
	defaultRateLimitWindow      = time.Minute
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Supported values for the enumerated settings.
const (
	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"

	StorageDriverMemory    = "memory"
	StorageDriverFirestore = "firestore"
	StorageDriverPostgres  = "postgres"

	WarehouseModeStub   = "stub"
	WarehouseModeHTTP   = "http"
	WarehouseModePubSub = "pubsub"
	WarehouseModeKafka  = "kafka"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Firebase      FirebaseConfig
	Storage       StorageConfig
	Firestore     FirestoreConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Pricing       PricingConfig
	Orders        OrdersConfig
	Warehouse     WarehouseConfig
	RateLimits    RateLimitConfig
	Idempotency   IdempotencyConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig selects the bearer credential verifier.
type AuthConfig struct {
	Provider      string
	JWTSecret     string
	JWTIssuer     string
	JWTAudience   string
	VerifyTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// StorageConfig selects the order store backend and the catalog seed used by the memory backend.
type StorageConfig struct {
	Driver          string
	CatalogSeedFile string
}

type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// RedisConfig is optional; an empty Addr keeps rate limits and idempotency in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PricingConfig holds money amounts in minor currency units.
type PricingConfig struct {
	FreeShippingThreshold int64
	FlatShippingFee       int64
	Currency              string
}

type OrdersConfig struct {
	NumberPrefix       string
	NumberDigits       int
	AllocationAttempts int
	DeliveryWindow     time.Duration
	MutationRetries    int
}

// WarehouseConfig selects the fulfillment notifier adapter.
type WarehouseConfig struct {
	Mode            string
	Timeout         time.Duration
	BaseURL         string
	PubSubProjectID string
	PubSubTopic     string
	KafkaBrokers    []string
	KafkaTopic      string
}

type RateLimitConfig struct {
	GeneralPerMinute int
	SupportPerMinute int
	Window           time.Duration
}

// IdempotencyConfig controls replay protection for order submission.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

type ObservabilityConfig struct {
	ProjectID   string
	ServiceName string
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile               string
	envMap                map[string]string
	useSystemEnv          bool
	secret                SecretResolver
	requiredSecrets       []string
	panicOnMissingSecrets bool
}

func defaultLoaderOptions() loaderOptions {
	return loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv ignores the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks secret fields (e.g. "Auth.JWTSecret") as mandatory.
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

// WithPanicOnMissingSecrets makes Load panic instead of returning MissingSecretsError.
func WithPanicOnMissingSecrets() Option {
	return func(o *loaderOptions) {
		o.panicOnMissingSecrets = true
	}
}

// Load assembles the configuration from defaults, the .env file, the process environment
// and explicit overrides, in increasing order of precedence, then resolves secret references.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := defaultLoaderOptions()
	for _, opt := range opts {
		opt(&options)
	}

	lookup, err := newLookup(options)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Auth: AuthConfig{
			Provider:      strings.ToLower(stringWithDefault(lookup, "API_AUTH_PROVIDER", defaultAuthProvider)),
			JWTSecret:     stringWithDefault(lookup, "API_AUTH_JWT_SECRET", ""),
			JWTIssuer:     stringWithDefault(lookup, "API_AUTH_JWT_ISSUER", ""),
			JWTAudience:   stringWithDefault(lookup, "API_AUTH_JWT_AUDIENCE", ""),
			VerifyTimeout: durationWithDefault(lookup, "API_AUTH_VERIFY_TIMEOUT", defaultVerifyTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(stringWithDefault(lookup, "API_STORAGE_DRIVER", defaultStorageDriver)),
			CatalogSeedFile: stringWithDefault(lookup, "API_STORAGE_CATALOG_SEED_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Postgres: PostgresConfig{
			DSN:             stringWithDefault(lookup, "API_POSTGRES_DSN", ""),
			MaxOpenConns:    intWithDefault(lookup, "API_POSTGRES_MAX_OPEN_CONNS", defaultPostgresMaxOpen),
			MaxIdleConns:    intWithDefault(lookup, "API_POSTGRES_MAX_IDLE_CONNS", defaultPostgresMaxIdle),
			ConnMaxLifetime: durationWithDefault(lookup, "API_POSTGRES_CONN_MAX_LIFETIME", defaultPostgresConnLifetime),
			AutoMigrate:     boolWithDefault(lookup, "API_POSTGRES_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "API_REDIS_ADDR", ""),
			Password: stringWithDefault(lookup, "API_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "API_REDIS_DB", 0),
		},
		Pricing: PricingConfig{
			FreeShippingThreshold: int64WithDefault(lookup, "API_PRICING_FREE_SHIPPING_THRESHOLD", defaultFreeShippingAt),
			FlatShippingFee:       int64WithDefault(lookup, "API_PRICING_FLAT_SHIPPING_FEE", defaultFlatShippingFee),
			Currency:              strings.ToUpper(stringWithDefault(lookup, "API_PRICING_CURRENCY", defaultCurrency)),
		},
		Orders: OrdersConfig{
			NumberPrefix:       stringWithDefault(lookup, "API_ORDERS_NUMBER_PREFIX", defaultNumberPrefix),
			NumberDigits:       intWithDefault(lookup, "API_ORDERS_NUMBER_DIGITS", defaultNumberDigits),
			AllocationAttempts: intWithDefault(lookup, "API_ORDERS_ALLOCATION_ATTEMPTS", defaultAllocationAttempts),
			DeliveryWindow:     durationWithDefault(lookup, "API_ORDERS_DELIVERY_WINDOW", defaultDeliveryWindow),
			MutationRetries:    intWithDefault(lookup, "API_ORDERS_MUTATION_RETRIES", defaultMutationRetries),
		},
		Warehouse: WarehouseConfig{
			Mode:            strings.ToLower(stringWithDefault(lookup, "API_WAREHOUSE_MODE", defaultWarehouseMode)),
			Timeout:         durationWithDefault(lookup, "API_WAREHOUSE_TIMEOUT", defaultWarehouseTimeout),
			BaseURL:         stringWithDefault(lookup, "API_WAREHOUSE_BASE_URL", ""),
			PubSubProjectID: stringWithDefault(lookup, "API_WAREHOUSE_PUBSUB_PROJECT_ID", ""),
			PubSubTopic:     stringWithDefault(lookup, "API_WAREHOUSE_PUBSUB_TOPIC", ""),
			KafkaBrokers:    csvWithDefault(lookup, "API_WAREHOUSE_KAFKA_BROKERS"),
			KafkaTopic:      stringWithDefault(lookup, "API_WAREHOUSE_KAFKA_TOPIC", ""),
		},
		RateLimits: RateLimitConfig{
			GeneralPerMinute: intWithDefault(lookup, "API_RATELIMIT_GENERAL_PER_MIN", defaultGeneralPerMinute),
			SupportPerMinute: intWithDefault(lookup, "API_RATELIMIT_SUPPORT_PER_MIN", defaultSupportPerMinute),
			Window:           durationWithDefault(lookup, "API_RATELIMIT_WINDOW", defaultRateLimitWindow),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
		Observability: ObservabilityConfig{
			ProjectID:   stringWithDefault(lookup, "API_OBSERVABILITY_PROJECT_ID", ""),
			ServiceName: stringWithDefault(lookup, "API_OBSERVABILITY_SERVICE_NAME", "storefront-api"),
		},
	}

	// Google project ids fall back to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Warehouse.PubSubProjectID == "" {
		cfg.Warehouse.PubSubProjectID = cfg.Firestore.ProjectID
	}
	if cfg.Observability.ProjectID == "" {
		cfg.Observability.ProjectID = cfg.Firestore.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Auth.JWTSecret", &cfg.Auth.JWTSecret},
		{"Postgres.DSN", &cfg.Postgres.DSN},
		{"Redis.Password", &cfg.Redis.Password},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string
	add := func(field string) { invalid = append(invalid, field) }

	if cfg.Server.Port == "" {
		add("Server.Port")
	}

	switch cfg.Auth.Provider {
	case AuthProviderJWT:
		if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
			add("Auth.JWTSecret")
		}
	case AuthProviderFirebase:
		if cfg.Firebase.ProjectID == "" {
			add("Firebase.ProjectID")
		}
	default:
		add("Auth.Provider")
	}

	switch cfg.Storage.Driver {
	case StorageDriverMemory:
	case StorageDriverFirestore:
		if cfg.Firestore.ProjectID == "" {
			add("Firestore.ProjectID")
		}
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.Postgres.DSN) == "" {
			add("Postgres.DSN")
		}
	default:
		add("Storage.Driver")
	}

	if cfg.Pricing.FreeShippingThreshold < 0 {
		add("Pricing.FreeShippingThreshold")
	}
	if cfg.Pricing.FlatShippingFee < 0 {
		add("Pricing.FlatShippingFee")
	}
	if len(cfg.Pricing.Currency) != 3 {
		add("Pricing.Currency")
	}

	if strings.TrimSpace(cfg.Orders.NumberPrefix) == "" {
		add("Orders.NumberPrefix")
	}
	if cfg.Orders.NumberDigits < 4 || cfg.Orders.NumberDigits > 18 {
		add("Orders.NumberDigits")
	}
	if cfg.Orders.AllocationAttempts <= 0 {
		add("Orders.AllocationAttempts")
	}
	if cfg.Orders.DeliveryWindow <= 0 {
		add("Orders.DeliveryWindow")
	}
	if cfg.Orders.MutationRetries <= 0 {
		add("Orders.MutationRetries")
	}

	switch cfg.Warehouse.Mode {
	case WarehouseModeStub:
	case WarehouseModeHTTP:
		if cfg.Warehouse.BaseURL == "" {
			add("Warehouse.BaseURL")
		}
	case WarehouseModePubSub:
		if cfg.Warehouse.PubSubTopic == "" {
			add("Warehouse.PubSubTopic")
		}
		if cfg.Warehouse.PubSubProjectID == "" {
			add("Warehouse.PubSubProjectID")
		}
	case WarehouseModeKafka:
		if len(cfg.Warehouse.KafkaBrokers) == 0 {
			add("Warehouse.KafkaBrokers")
		}
		if cfg.Warehouse.KafkaTopic == "" {
			add("Warehouse.KafkaTopic")
		}
	default:
		add("Warehouse.Mode")
	}
	if cfg.Warehouse.Timeout <= 0 {
		add("Warehouse.Timeout")
	}

	if cfg.RateLimits.GeneralPerMinute <= 0 {
		add("RateLimits.GeneralPerMinute")
	}
	if cfg.RateLimits.SupportPerMinute <= 0 {
		add("RateLimits.SupportPerMinute")
	}
	if cfg.RateLimits.Window <= 0 {
		add("RateLimits.Window")
	}

	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		add("Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		add("Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		add("Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		add("Idempotency.CleanupBatchSize")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}
