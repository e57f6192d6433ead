package groovego

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuthServer is a token service double counting credential exchanges.
type fakeAuthServer struct {
	*httptest.Server

	mu        sync.Mutex
	calls     int
	lastForm  map[string]string
	status    int
	expiresIn string
}

func newFakeAuthServer(t *testing.T) *fakeAuthServer {
	t.Helper()
	f := &fakeAuthServer{status: http.StatusOK, expiresIn: "600"}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/OAuth2-13", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.NoError(t, r.ParseForm())

		f.mu.Lock()
		f.calls++
		n := f.calls
		f.lastForm = map[string]string{
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
			"scope":         r.PostForm.Get("scope"),
			"grant_type":    r.PostForm.Get("grant_type"),
		}
		status, expiresIn := f.status, f.expiresIn
		f.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"invalid_client"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":"%s"}`, n, expiresIn)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAuthServer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestTokenCache(t *testing.T, srv *fakeAuthServer) *TokenCache {
	t.Helper()
	auth := NewAuthenticationClient(WithAuthEndpoint(srv.URL))
	cache, err := NewTokenCache("app-id", "app-secret", auth)
	require.NoError(t, err)
	return cache
}

func TestAuthenticateSendsFormEncodedCredentials(t *testing.T) {
	srv := newFakeAuthServer(t)
	auth := NewAuthenticationClient(WithAuthEndpoint(srv.URL))

	resp, err := auth.Authenticate(context.Background(), "app-id", "app-secret")
	require.NoError(t, err)

	assert.Equal(t, "tok-1", resp.AccessToken)
	assert.Equal(t, map[string]string{
		"client_id":     "app-id",
		"client_secret": "app-secret",
		"scope":         "http://music.xboxlive.com/",
		"grant_type":    "client_credentials",
	}, srv.lastForm)
}

func TestAuthenticateRejectedCredentials(t *testing.T) {
	srv := newFakeAuthServer(t)
	srv.status = http.StatusBadRequest
	auth := NewAuthenticationClient(WithAuthEndpoint(srv.URL))

	resp, err := auth.Authenticate(context.Background(), "app-id", "bad-secret")
	require.Nil(t, resp)

	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.HTTPStatus)
}

func TestCheckAndRenewTokenFetchesWhenEmpty(t *testing.T) {
	srv := newFakeAuthServer(t)
	cache := newTestTokenCache(t, srv)

	before := time.Now().UTC()
	token, err := cache.CheckAndRenewToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", token.Token)
	assert.True(t, token.Expiration.After(before.Add(9*time.Minute)))
	assert.True(t, token.Expiration.Before(before.Add(11*time.Minute)))
	assert.Equal(t, 1, srv.callCount())
}

func TestCheckAndRenewTokenReturnsCachedWhileValid(t *testing.T) {
	srv := newFakeAuthServer(t)
	cache := newTestTokenCache(t, srv)

	first, err := cache.CheckAndRenewToken(context.Background())
	require.NoError(t, err)
	second, err := cache.CheckAndRenewToken(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, srv.callCount())
}

func TestCheckAndRenewTokenRenewsAtExpiry(t *testing.T) {
	srv := newFakeAuthServer(t)
	cache := newTestTokenCache(t, srv)

	// A token whose expiration has just passed must trigger exactly one new
	// exchange; the renewed token is then served from cache.
	cache.token = &AccessToken{Token: "stale", Expiration: time.Now().UTC().Add(-time.Millisecond)}

	token, err := cache.CheckAndRenewToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.Token)
	assert.Equal(t, 1, srv.callCount())

	again, err := cache.CheckAndRenewToken(context.Background())
	require.NoError(t, err)
	assert.Same(t, token, again)
	assert.Equal(t, 1, srv.callCount())
}

func TestCheckAndRenewTokenConcurrentCallers(t *testing.T) {
	srv := newFakeAuthServer(t)
	cache := newTestTokenCache(t, srv)

	var wg sync.WaitGroup
	results := make([]*AccessToken, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.CheckAndRenewToken(context.Background())
		}(i)
	}
	wg.Wait()

	// Both callers complete with a usable token. The racing exchanges are
	// accepted; the cache must end holding one of the fetched tokens.
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])

	cache.mu.Lock()
	final := cache.token
	cache.mu.Unlock()
	require.NotNil(t, final)
	assert.Contains(t, []string{results[0].Token, results[1].Token}, final.Token)
}

func TestCheckAndRenewTokenFailureLeavesCacheEmpty(t *testing.T) {
	srv := newFakeAuthServer(t)
	srv.status = http.StatusUnauthorized
	cache := newTestTokenCache(t, srv)

	_, err := cache.CheckAndRenewToken(context.Background())
	var authErr *AuthenticationError
	require.ErrorAs(t, err, &authErr)

	cache.mu.Lock()
	defer cache.mu.Unlock()
	assert.Nil(t, cache.token)
}

func TestCheckAndRenewTokenCancelledContext(t *testing.T) {
	srv := newFakeAuthServer(t)
	cache := newTestTokenCache(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.CheckAndRenewToken(ctx)
	require.Error(t, err)

	cache.mu.Lock()
	defer cache.mu.Unlock()
	assert.Nil(t, cache.token)
}

func TestNewTokenCacheEnvFallback(t *testing.T) {
	t.Setenv(EnvClientID, "env-id")
	t.Setenv(EnvClientSecret, "env-secret")

	cache, err := NewTokenCache("", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "env-id", cache.ClientID())
	assert.Equal(t, "env-secret", cache.clientSecret)
}

func TestNewTokenCacheMissingCredentials(t *testing.T) {
	t.Setenv(EnvClientID, "")
	t.Setenv(EnvClientSecret, "")

	_, err := NewTokenCache("", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvClientID)
}

func TestStaticUserTokenProvider(t *testing.T) {
	p := &StaticUserTokenProvider{Header: "Bearer user-token"}
	assert.True(t, p.IsUserSignedIn())

	header, err := p.UserAuthorizationHeader(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-token", header)

	forced, err := p.UserAuthorizationHeader(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, header, forced)

	empty := &StaticUserTokenProvider{}
	assert.False(t, empty.IsUserSignedIn())
	_, err = empty.UserAuthorizationHeader(context.Background(), false)
	assert.ErrorIs(t, err, ErrNoUserAuthorization)
}
