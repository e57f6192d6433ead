package groovego

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(srv *fakeAuthServer) *Registry {
	return NewRegistry(WithAuthenticationClient(NewAuthenticationClient(WithAuthEndpoint(srv.URL))))
}

func TestCreateClientSharesCachePerClientID(t *testing.T) {
	srv := newFakeAuthServer(t)
	registry := newTestRegistry(srv)

	first, err := registry.CreateClient("app-id", "app-secret", nil)
	require.NoError(t, err)
	second, err := registry.CreateClient("app-id", "app-secret", nil)
	require.NoError(t, err)

	assert.Same(t, first.tokens, second.tokens)

	// Both clients draw from one cache, so the credentials are exchanged once.
	_, err = first.tokens.CheckAndRenewToken(context.Background())
	require.NoError(t, err)
	_, err = second.tokens.CheckAndRenewToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, srv.callCount())
}

func TestCreateClientFirstSecretWins(t *testing.T) {
	srv := newFakeAuthServer(t)
	registry := newTestRegistry(srv)

	first, err := registry.CreateClient("app-id", "secret-1", nil)
	require.NoError(t, err)
	second, err := registry.CreateClient("app-id", "secret-2", nil)
	require.NoError(t, err)

	// The cache created for the id keeps its original secret; a later secret
	// for the same id is ignored.
	assert.Same(t, first.tokens, second.tokens)

	_, err = second.tokens.CheckAndRenewToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret-1", srv.lastForm["client_secret"])
}

func TestCreateClientSeparatesCachesByClientID(t *testing.T) {
	srv := newFakeAuthServer(t)
	registry := newTestRegistry(srv)

	first, err := registry.CreateClient("app-one", "secret-1", nil)
	require.NoError(t, err)
	second, err := registry.CreateClient("app-two", "secret-2", nil)
	require.NoError(t, err)

	assert.NotSame(t, first.tokens, second.tokens)
	assert.Equal(t, "app-one", first.tokens.ClientID())
	assert.Equal(t, "app-two", second.tokens.ClientID())
}

func TestCreateClientAttachesProvider(t *testing.T) {
	srv := newFakeAuthServer(t)
	registry := newTestRegistry(srv)

	provider := &StaticUserTokenProvider{Header: "Bearer user-token"}
	client, err := registry.CreateClient("app-id", "app-secret", provider)
	require.NoError(t, err)
	assert.True(t, client.userSignedIn())

	anonymous, err := registry.CreateClient("app-id", "app-secret", nil)
	require.NoError(t, err)
	assert.False(t, anonymous.userSignedIn())
}

func TestCreateClientEnvFallbackSharesCache(t *testing.T) {
	srv := newFakeAuthServer(t)
	registry := newTestRegistry(srv)

	t.Setenv(EnvClientID, "env-id")
	t.Setenv(EnvClientSecret, "env-secret")

	fromEnv, err := registry.CreateClient("", "", nil)
	require.NoError(t, err)
	explicit, err := registry.CreateClient("env-id", "env-secret", nil)
	require.NoError(t, err)

	// The empty id resolves to its env value before keying, so both clients
	// land on the same cache.
	assert.Same(t, fromEnv.tokens, explicit.tokens)
}

func TestCreateClientMissingCredentials(t *testing.T) {
	srv := newFakeAuthServer(t)
	registry := newTestRegistry(srv)

	t.Setenv(EnvClientID, "")
	t.Setenv(EnvClientSecret, "")

	_, err := registry.CreateClient("", "", nil)
	require.Error(t, err)
}
