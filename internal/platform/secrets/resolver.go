package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultFallbackPath = ".secrets.local"
	instrumentationName = "github.com/techfy/storefront-api/internal/platform/secrets"
)

var newSecretManagerClient = func(ctx context.Context, opts ...option.ClientOption) (secretManagerClient, error) {
	return secretmanager.NewClient(ctx, opts...)
}

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Resolver resolves secret://NAME[?version=V&project=P] references through Secret Manager.
// Values are cached for the life of the process. When Secret Manager is unreachable or denies
// access, values are read from a local KEY=VALUE fallback file instead.
type Resolver struct {
	client       secretManagerClient
	ownsClient   bool
	projectID    string
	fallbackPath string
	logger       *zap.Logger
	latency      metric.Float64Histogram

	mu    sync.Mutex
	cache map[string]string

	fallbackOnce sync.Once
	fallback     map[string]string
}

type Option func(*Resolver)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFallbackFile overrides the local fallback file; an empty path disables it.
func WithFallbackFile(path string) Option {
	return func(r *Resolver) {
		r.fallbackPath = strings.TrimSpace(path)
	}
}

func withClient(client secretManagerClient) Option {
	return func(r *Resolver) {
		r.client = client
	}
}

// NewResolver builds a Resolver for projectID. A Secret Manager client that cannot be created
// leaves the resolver in fallback-only mode.
func NewResolver(ctx context.Context, projectID string, opts ...Option) (*Resolver, error) {
	r := &Resolver{
		projectID:    strings.TrimSpace(projectID),
		fallbackPath: defaultFallbackPath,
		logger:       zap.NewNop(),
		cache:        make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	latency, err := otel.Meter(instrumentationName).Float64Histogram(
		"secrets.resolve.latency",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of secret resolution"),
	)
	if err != nil {
		return nil, fmt.Errorf("secrets: register latency metric: %w", err)
	}
	r.latency = latency

	if r.client == nil {
		client, err := newSecretManagerClient(ctx)
		if err != nil {
			r.logger.Warn("secret manager unavailable; using local fallback only", zap.Error(err))
		} else {
			r.client = client
			r.ownsClient = true
		}
	}
	return r, nil
}

func (r *Resolver) Close() error {
	if r.ownsClient && r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ResolveSecret implements config.SecretResolver.
func (r *Resolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	start := time.Now()
	parsed, err := parseReference(ref)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	value, ok := r.cache[parsed.cacheKey()]
	r.mu.Unlock()
	if ok {
		r.record(ctx, start, "cache")
		return value, nil
	}

	project := parsed.project
	if project == "" {
		project = r.projectID
	}
	if project != "" && r.client != nil {
		value, err = r.access(ctx, project, parsed)
		if err == nil {
			r.store(parsed, value)
			r.record(ctx, start, "remote")
			return value, nil
		}
		if !fallbackEligible(err) {
			r.record(ctx, start, "error")
			return "", fmt.Errorf("secrets: access %s: %w", parsed.name, err)
		}
		r.logger.Debug("secret manager refused; trying local fallback", zap.String("secret", parsed.name), zap.Error(err))
	}

	value, ok = r.lookupFallback(parsed)
	if !ok {
		r.record(ctx, start, "error")
		return "", fmt.Errorf("secrets: %s not found", parsed.name)
	}
	r.store(parsed, value)
	r.record(ctx, start, "fallback")
	return value, nil
}

func (r *Resolver) access(ctx context.Context, project string, ref reference) (string, error) {
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, ref.name, ref.version)
	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (r *Resolver) store(ref reference, value string) {
	r.mu.Lock()
	r.cache[ref.cacheKey()] = value
	r.mu.Unlock()
}

func (r *Resolver) lookupFallback(ref reference) (string, bool) {
	r.fallbackOnce.Do(func() {
		r.fallback = map[string]string{}
		if r.fallbackPath == "" {
			return
		}
		values, err := readFallbackFile(r.fallbackPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				r.logger.Debug("secrets fallback file not found", zap.String("path", r.fallbackPath))
			} else {
				r.logger.Warn("unable to read secrets fallback file", zap.String("path", r.fallbackPath), zap.Error(err))
			}
		}
		r.fallback = values
	})
	if value, ok := r.fallback[ref.name+"@"+ref.version]; ok {
		return value, true
	}
	value, ok := r.fallback[ref.name]
	return value, ok
}

// readFallbackFile parses NAME=VALUE lines. Names follow Secret Manager rules, so dashes are
// allowed; a secret:// prefix and an @version suffix are accepted on the name. Lines read before
// a scan error are kept.
func readFallbackFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	file, err := os.Open(path)
	if err != nil {
		return values, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(key), "export "))
		key = strings.TrimPrefix(strings.TrimPrefix(key, "secret://"), "sm://")
		if key == "" {
			continue
		}
		values[key] = unquote(strings.TrimSpace(value))
	}
	if err := scanner.Err(); err != nil {
		return values, fmt.Errorf("secrets: read %s: %w", path, err)
	}
	return values, nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}

func (r *Resolver) record(ctx context.Context, start time.Time, source string) {
	r.latency.Record(ctx, float64(time.Since(start))/float64(time.Millisecond),
		metric.WithAttributes(attribute.String("source", source)))
}

type reference struct {
	name    string
	version string
	project string
}

func (r reference) cacheKey() string {
	return r.project + "/" + r.name + "@" + r.version
}

func parseReference(raw string) (reference, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "sm://") {
		raw = "secret://" + strings.TrimPrefix(raw, "sm://")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return reference{}, fmt.Errorf("secrets: invalid reference: %w", err)
	}
	if u.Scheme != "secret" {
		return reference{}, fmt.Errorf("secrets: unsupported scheme %q", u.Scheme)
	}
	name := strings.Trim(u.Host+u.Path, "/")
	if name == "" {
		return reference{}, errors.New("secrets: missing secret name")
	}
	query := u.Query()
	version := strings.TrimSpace(query.Get("version"))
	if version == "" {
		version = "latest"
	}
	return reference{
		name:    name,
		version: version,
		project: strings.TrimSpace(query.Get("project")),
	}, nil
}

func fallbackEligible(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded, codes.NotFound:
		return true
	default:
		return false
	}
}
