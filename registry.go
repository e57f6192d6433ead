package groovego

import "sync"

// Registry creates clients and owns the application token caches they share.
// Caches are keyed by application client id, so every client created for the
// same application reuses one cache and credentials are never double-cached.
//
// Create one registry at process start and keep it for the process lifetime;
// there is nothing to tear down.
type Registry struct {
	auth *AuthenticationClient

	mu     sync.Mutex
	caches map[string]*TokenCache
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithAuthenticationClient sets the authentication client used by every
// token cache the registry creates. Mainly useful for tests.
func WithAuthenticationClient(auth *AuthenticationClient) RegistryOption {
	return func(r *Registry) {
		r.auth = auth
	}
}

// NewRegistry creates an empty client registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		caches: make(map[string]*TokenCache),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateClient returns a new client for the given application credentials,
// bound to the registry's token cache for that client id and to the given
// user token provider. provider may be nil, which disables user-required
// operations.
//
// If a cache already exists for the client id it is reused and the secret
// passed here is ignored, even if it differs from the one the cache was
// created with. The first secret registered for an id wins.
func (r *Registry) CreateClient(clientID, clientSecret string, provider UserTokenProvider, opts ...ClientOption) (*Client, error) {
	cache, err := r.tokenCache(clientID, clientSecret)
	if err != nil {
		return nil, err
	}

	if provider != nil {
		opts = append([]ClientOption{WithUserTokenProvider(provider)}, opts...)
	}
	return NewClient(cache, opts...)
}

// tokenCache looks up or creates the token cache for a client id.
func (r *Registry) tokenCache(clientID, clientSecret string) (*TokenCache, error) {
	// Resolve env fallbacks before using the id as the map key, so an empty
	// id and its env value share one cache.
	clientID, err := ensureValue(clientID, "client id", EnvClientID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cache, ok := r.caches[clientID]; ok {
		return cache, nil
	}

	cache, err := NewTokenCache(clientID, clientSecret, r.auth)
	if err != nil {
		return nil, err
	}
	r.caches[clientID] = cache
	return cache, nil
}
