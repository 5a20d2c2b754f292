package secrets

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretClient struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{values: map[string]string{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.GetName()]++
	if err, ok := f.errs[req.GetName()]; ok {
		return nil, err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeSecretClient) Close() error { return nil }

func TestResolveCachesRemoteValue(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	name := "projects/shop-prod/secrets/jwt-secret/versions/latest"
	client.values[name] = "s3cret"

	resolver, err := NewResolver(ctx, "shop-prod", withClient(client), WithFallbackFile(""))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := resolver.ResolveSecret(ctx, "secret://jwt-secret")
		require.NoError(t, err)
		assert.Equal(t, "s3cret", got)
	}
	assert.Equal(t, 1, client.calls[name])
}

func TestResolveHonoursVersionAndProject(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values["projects/other/secrets/db-dsn/versions/3"] = "postgres://pinned"

	resolver, err := NewResolver(ctx, "shop-prod", withClient(client), WithFallbackFile(""))
	require.NoError(t, err)

	got, err := resolver.ResolveSecret(ctx, "sm://db-dsn?version=3&project=other")
	require.NoError(t, err)
	assert.Equal(t, "postgres://pinned", got)
}

func TestResolveFallsBackToLocalFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte("jwt-secret=local-value\n"), 0o600))

	client := newFakeSecretClient()
	client.errs["projects/shop-prod/secrets/jwt-secret/versions/latest"] = status.Error(codes.PermissionDenied, "denied")

	resolver, err := NewResolver(ctx, "shop-prod", withClient(client), WithFallbackFile(path))
	require.NoError(t, err)

	got, err := resolver.ResolveSecret(ctx, "secret://jwt-secret")
	require.NoError(t, err)
	assert.Equal(t, "local-value", got)
}

func TestReadFallbackFileAcceptsSecretManagerNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".secrets.local")
	content := "# local overrides\n" +
		"jwt-secret=local-value\n" +
		"secret://db-password@2 = \"quoted value\"\n" +
		"not a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	values, err := readFallbackFile(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"jwt-secret":    "local-value",
		"db-password@2": "quoted value",
	}, values)
}

func TestResolveFallbackMatchesPinnedVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte("db-password@2=v2\ndb-password=latest\n"), 0o600))

	client := newFakeSecretClient()
	client.errs["projects/shop-prod/secrets/db-password/versions/2"] = status.Error(codes.Unavailable, "down")
	client.errs["projects/shop-prod/secrets/db-password/versions/latest"] = status.Error(codes.Unavailable, "down")

	resolver, err := NewResolver(ctx, "shop-prod", withClient(client), WithFallbackFile(path))
	require.NoError(t, err)

	pinned, err := resolver.ResolveSecret(ctx, "secret://db-password?version=2")
	require.NoError(t, err)
	assert.Equal(t, "v2", pinned)

	latest, err := resolver.ResolveSecret(ctx, "secret://db-password")
	require.NoError(t, err)
	assert.Equal(t, "latest", latest)
}

func TestResolveSurfacesHardErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.errs["projects/shop-prod/secrets/jwt-secret/versions/latest"] = status.Error(codes.InvalidArgument, "bad")

	resolver, err := NewResolver(ctx, "shop-prod", withClient(client), WithFallbackFile(""))
	require.NoError(t, err)

	_, err = resolver.ResolveSecret(ctx, "secret://jwt-secret")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestParseReferenceRejectsBadInput(t *testing.T) {
	for _, raw := range []string{"", "https://x", "secret://"} {
		_, err := parseReference(raw)
		assert.Error(t, err, raw)
	}
}
