package groovego

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// DefaultAuthHostname is the OAuth token service host.
	DefaultAuthHostname = "https://datamarket.accesscontrol.windows.net"
	// authTokenPath is the client-credentials exchange endpoint.
	authTokenPath = "/v2/OAuth2-13"
	// authScope is the fixed scope sent with every credential exchange.
	authScope = "http://music.xboxlive.com/"
)

// Environment variable names for application credentials.
const (
	EnvClientID     = "GROOVEGO_CLIENT_ID"
	EnvClientSecret = "GROOVEGO_CLIENT_SECRET"
)

// ensureValue returns value if non-empty, otherwise falls back to the named
// environment variable.
func ensureValue(value, name, envVar string) (string, error) {
	if value != "" {
		return value, nil
	}
	if envValue := os.Getenv(envVar); envValue != "" {
		return envValue, nil
	}
	return "", fmt.Errorf("groovego: no %s; pass it or set the %s environment variable", name, envVar)
}

// AccessToken is an application-level access token together with the absolute
// UTC time at which it stops being valid. Expiration is the only staleness
// signal; tokens are replaced wholesale, never mutated.
type AccessToken struct {
	Token      string
	Expiration time.Time
}

// AuthenticationResponse is the wire shape of a successful credential
// exchange. The token service reports expires_in as a JSON string.
type AuthenticationResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type,omitempty"`
	ExpiresIn   json.Number `json:"expires_in"`
}

// AuthenticationClient exchanges application credentials for an access token.
// It performs the one wire call of the application token lifecycle and is
// consumed by TokenCache; most callers never use it directly.
type AuthenticationClient struct {
	endpoint   string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// AuthenticationClientOption configures an AuthenticationClient.
type AuthenticationClientOption func(*AuthenticationClient)

// WithAuthEndpoint overrides the token service endpoint. Mainly useful for
// tests.
func WithAuthEndpoint(endpoint string) AuthenticationClientOption {
	return func(a *AuthenticationClient) {
		a.endpoint = strings.TrimSuffix(endpoint, "/")
	}
}

// WithAuthHTTPClient sets the HTTP client used for the exchange.
func WithAuthHTTPClient(httpClient *http.Client) AuthenticationClientOption {
	return func(a *AuthenticationClient) {
		a.httpClient = httpClient
	}
}

// WithAuthLogger sets the logger used by the authentication client.
func WithAuthLogger(log logrus.FieldLogger) AuthenticationClientOption {
	return func(a *AuthenticationClient) {
		a.log = log
	}
}

// NewAuthenticationClient creates an authentication client against the
// default token service.
func NewAuthenticationClient(opts ...AuthenticationClientOption) *AuthenticationClient {
	a := &AuthenticationClient{
		endpoint:   DefaultAuthHostname,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate performs the client-credentials exchange. The request is
// form-urlencoded, not JSON. A non-2xx response is returned as an
// *AuthenticationError; deciding whether that is fatal is the caller's
// business.
func (a *AuthenticationClient) Authenticate(ctx context.Context, clientID, clientSecret string) (*AuthenticationResponse, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("scope", authScope)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+authTokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("groovego: failed to create authentication request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	a.log.WithField("url", req.URL.String()).Debug("authenticating application")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groovego: authentication request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("groovego: failed to read authentication response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthenticationError{
			HTTPStatus:  resp.StatusCode,
			Description: strings.TrimSpace(string(body)),
		}
	}

	var authResp AuthenticationResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return nil, wrapJSONError(err)
	}
	return &authResp, nil
}

// TokenCache caches the application access token for one (client id, client
// secret) pair and renews it when absent or expired.
//
// The check-then-fetch sequence is deliberately not mutually exclusive:
// two callers racing past an expired token may both authenticate, and the
// last write wins. Both fetched tokens are valid, so the redundant exchange
// is harmless, and no lock is held across the network call. The mutex below
// only guards the load and store of the token pointer.
type TokenCache struct {
	clientID     string
	clientSecret string
	auth         *AuthenticationClient

	mu    sync.Mutex
	token *AccessToken
}

// NewTokenCache creates a token cache for the given application credentials.
// Empty credentials fall back to the GROOVEGO_CLIENT_ID and
// GROOVEGO_CLIENT_SECRET environment variables.
func NewTokenCache(clientID, clientSecret string, auth *AuthenticationClient) (*TokenCache, error) {
	var err error
	if clientID, err = ensureValue(clientID, "client id", EnvClientID); err != nil {
		return nil, err
	}
	if clientSecret, err = ensureValue(clientSecret, "client secret", EnvClientSecret); err != nil {
		return nil, err
	}
	if auth == nil {
		auth = NewAuthenticationClient()
	}
	return &TokenCache{
		clientID:     clientID,
		clientSecret: clientSecret,
		auth:         auth,
	}, nil
}

// ClientID returns the application client id this cache authenticates as.
func (c *TokenCache) ClientID() string { return c.clientID }

// CheckAndRenewToken returns the cached application token, fetching a new one
// first if none is cached or the cached token's expiration is at or before
// now. A failed renewal is returned as an error and leaves the cache
// untouched, as does a cancelled context.
func (c *TokenCache) CheckAndRenewToken(ctx context.Context) (*AccessToken, error) {
	c.mu.Lock()
	cached := c.token
	c.mu.Unlock()

	now := time.Now().UTC()
	if cached != nil && cached.Expiration.After(now) {
		return cached, nil
	}

	authResp, err := c.auth.Authenticate(ctx, c.clientID, c.clientSecret)
	if err != nil {
		return nil, err
	}

	expiresIn, err := authResp.ExpiresIn.Float64()
	if err != nil {
		return nil, wrapJSONError(fmt.Errorf("invalid expires_in %q: %w", authResp.ExpiresIn, err))
	}

	token := &AccessToken{
		Token:      authResp.AccessToken,
		Expiration: time.Now().UTC().Add(time.Duration(expiresIn * float64(time.Second))),
	}

	// A cancelled fetch must leave the cache exactly as it was.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return token, nil
}

// UserTokenProvider supplies end-user bearer credentials. The client never
// caches or parses user tokens itself; caching and refresh discipline belong
// entirely to the provider. Platform sign-in flows and credential storage
// live behind implementations of this interface.
type UserTokenProvider interface {
	// IsUserSignedIn reports whether a user is currently signed in.
	IsUserSignedIn() bool
	// UserAuthorizationHeader returns a bearer-scheme Authorization header
	// value for the signed-in user. With forceRefresh the provider must
	// discard any cached credential and obtain a fresh one.
	UserAuthorizationHeader(ctx context.Context, forceRefresh bool) (string, error)
}

// StaticUserTokenProvider is a UserTokenProvider wrapping a fixed
// authorization header. It is useful in tests and tooling where a user token
// has been obtained out of band; forced refresh returns the same value.
type StaticUserTokenProvider struct {
	Header string
}

// IsUserSignedIn reports whether a header is present.
func (p *StaticUserTokenProvider) IsUserSignedIn() bool { return p.Header != "" }

// UserAuthorizationHeader returns the fixed header.
func (p *StaticUserTokenProvider) UserAuthorizationHeader(ctx context.Context, forceRefresh bool) (string, error) {
	if p.Header == "" {
		return "", ErrNoUserAuthorization
	}
	return p.Header, nil
}

// TokenSourceProvider adapts an oauth2.TokenSource to the UserTokenProvider
// capability. Tokens are reused until expiry via oauth2.ReuseTokenSource;
// a forced refresh discards the reuse layer so the next token comes from the
// base source.
type TokenSourceProvider struct {
	base oauth2.TokenSource

	mu     sync.Mutex
	source oauth2.TokenSource
}

// NewTokenSourceProvider wraps the given token source. The source typically
// comes from an oauth2.Config with the user's refresh token.
func NewTokenSourceProvider(base oauth2.TokenSource) *TokenSourceProvider {
	return &TokenSourceProvider{
		base:   base,
		source: oauth2.ReuseTokenSource(nil, base),
	}
}

// IsUserSignedIn reports whether a token source is configured.
func (p *TokenSourceProvider) IsUserSignedIn() bool { return p.base != nil }

// UserAuthorizationHeader returns "Bearer <access token>" from the wrapped
// source.
func (p *TokenSourceProvider) UserAuthorizationHeader(ctx context.Context, forceRefresh bool) (string, error) {
	if p.base == nil {
		return "", ErrNoUserAuthorization
	}

	p.mu.Lock()
	if forceRefresh {
		p.source = oauth2.ReuseTokenSource(nil, p.base)
	}
	source := p.source
	p.mu.Unlock()

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("groovego: user token source: %w", err)
	}
	return "Bearer " + token.AccessToken, nil
}
