// Package groovego is a Go client library for the Groove music catalog REST
// API.
//
// The client authenticates the calling application with the client
// credentials flow and caches the resulting token until it expires. Catalog
// operations that can act on a signed-in user's data additionally send a user
// bearer credential obtained from a UserTokenProvider; when the service
// rejects that credential inside an otherwise successful response, the client
// forces one provider refresh and retries the call exactly once.
//
// Quick start:
//
//	registry := groovego.NewRegistry()
//	client, err := registry.CreateClient("client_id", "client_secret", nil)
//	if err != nil {
//		panic(err)
//	}
//
//	resp, err := client.Search(context.Background(), groovego.MediaNamespaceMusic, "Daft Punk", nil)
package groovego

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultHostname is the catalog service host.
	DefaultHostname = "https://api.media.microsoft.com"
	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second

	// Version is the library version reported in the X-Client-Version header.
	Version = "1.0"
	// clientName is the fixed X-Client-Name header value.
	clientName = "groovego"
)

// Client is the media catalog API client. Create instances through a
// Registry so that application token caches are shared per client id.
//
// All methods accept a context.Context for cancellation and return the
// service's response envelope; API-reported errors arrive inside the
// envelope's Error field, not as Go errors. Only transport, authentication
// and configuration failures are returned as errors.
type Client struct {
	hostname   string
	httpClient *http.Client
	log        logrus.FieldLogger
	tokens     *TokenCache
	userTokens UserTokenProvider
}

// ClientOption is a functional option for client configuration.
type ClientOption func(*Client)

// WithHostname overrides the catalog service host. Mainly useful for tests.
func WithHostname(hostname string) ClientOption {
	return func(c *Client) {
		c.hostname = strings.TrimSuffix(hostname, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithUserTokenProvider attaches the collaborator supplying end-user bearer
// credentials. Without one, user-required operations fail with
// ErrNoUserTokenProvider and the remaining operations run anonymously.
func WithUserTokenProvider(provider UserTokenProvider) ClientOption {
	return func(c *Client) {
		c.userTokens = provider
	}
}

// NewClient creates a client bound to the given application token cache.
// Most callers should use Registry.CreateClient instead, which deduplicates
// token caches by client id.
func NewClient(tokens *TokenCache, opts ...ClientOption) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("groovego: token cache is required")
	}
	c := &Client{
		hostname: DefaultHostname,
		tokens:   tokens,
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return c, nil
}

// userSignedIn reports whether a provider is attached and has a signed-in
// user, which decides the call path of anonymous-preferred operations.
func (c *Client) userSignedIn() bool {
	return c.userTokens != nil && c.userTokens.IsUserSignedIn()
}

// get sends a GET request and decodes the JSON response into result.
func (c *Client) get(ctx context.Context, path string, params, headers map[string]string, result any) error {
	return c.do(ctx, http.MethodGet, path, params, headers, nil, result)
}

// post serializes body as JSON, sends a POST request and decodes the JSON
// response into result.
func (c *Client) post(ctx context.Context, path string, params, headers map[string]string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, params, headers, body, result)
}

// do is the transport primitive: build the URL from host, path and parameter
// map, send the request with the given headers, surface non-2xx responses as
// *TransportError and decode the body into result.
func (c *Client) do(ctx context.Context, method, path string, params, headers map[string]string, body, result any) error {
	fullURL := c.hostname + path
	if query := encodeQuery(params); query != "" {
		fullURL += "?" + query
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("groovego: failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("groovego: failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.log.WithFields(logrus.Fields{"method": method, "url": fullURL}).Debug("request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("groovego: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("groovego: failed to read response: %w", err)
	}

	c.log.WithFields(logrus.Fields{"status": resp.StatusCode, "bytes": len(respBody)}).Debug("response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{
			HTTPStatus: resp.StatusCode,
			Method:     method,
			URL:        fullURL,
			Body:       respBody,
		}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return wrapJSONError(err)
		}
	}
	return nil
}

// errorCarrier is satisfied by every response envelope through BaseResponse.
type errorCarrier interface {
	apiError() *Error
}

// callWithAuthRefresh runs an API call with the user's authorization header
// and retries it exactly once, after forcing a provider refresh, when the
// service reports INVALID_AUTHORIZATION_HEADER inside the response envelope.
//
// The trigger is the payload error code, not the HTTP status: the service
// answers a rejected user credential with a 200-shaped envelope, never a 401.
// A second authorization failure is returned to the caller as-is.
func callWithAuthRefresh[T errorCarrier](ctx context.Context, c *Client, call func(headers map[string]string) (T, error)) (T, error) {
	var zero T
	if c.userTokens == nil {
		return zero, ErrNoUserTokenProvider
	}

	header, err := c.userTokens.UserAuthorizationHeader(ctx, false)
	if err != nil {
		return zero, err
	}
	if header == "" {
		return zero, ErrNoUserAuthorization
	}

	resp, err := call(c.requestHeaders(header))
	if err != nil {
		return zero, err
	}

	if apiErr := resp.apiError(); apiErr != nil && apiErr.ErrorCode == ErrorCodeInvalidAuthorizationHeader {
		c.log.Warn("user authorization header rejected, forcing refresh and retrying once")

		header, err = c.userTokens.UserAuthorizationHeader(ctx, true)
		if err != nil {
			return zero, err
		}
		if header == "" {
			return zero, ErrNoUserAuthorization
		}

		resp, err = call(c.requestHeaders(header))
		if err != nil {
			return zero, err
		}
	}

	return resp, nil
}

// anonymousPreferred routes the call through the auth-refresh wrapper when a
// user is signed in and sends it without an Authorization header otherwise.
func anonymousPreferred[T errorCarrier](ctx context.Context, c *Client, call func(headers map[string]string) (T, error)) (T, error) {
	if c.userSignedIn() {
		return callWithAuthRefresh(ctx, c, call)
	}
	return call(c.requestHeaders(""))
}

// contentGet is the shared shape of every catalog GET returning a
// ContentResponse.
func (c *Client) contentGet(ctx context.Context, path string, params map[string]string) func(headers map[string]string) (*ContentResponse, error) {
	return func(headers map[string]string) (*ContentResponse, error) {
		var resp ContentResponse
		if err := c.get(ctx, path, params, headers, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}
}

// SearchOptions are the optional parameters of Search.
type SearchOptions struct {
	Source   ContentSource
	Filter   SearchFilter
	Language string
	Country  string
	MaxItems int
}

// Search queries the catalog (and, for a signed-in user, the collection) for
// free-text matches.
func (c *Client) Search(ctx context.Context, namespace MediaNamespace, query string, opts *SearchOptions) (*ContentResponse, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	return c.searchAPI(ctx, namespace, query, opts.Source, opts.Filter, opts.Language, opts.Country, opts.MaxItems, "")
}

// SearchContinuation fetches the next page of an earlier search.
func (c *Client) SearchContinuation(ctx context.Context, namespace MediaNamespace, continuationToken string) (*ContentResponse, error) {
	return c.searchAPI(ctx, namespace, "", 0, SearchFilterDefault, "", "", 0, continuationToken)
}

func (c *Client) searchAPI(ctx context.Context, namespace MediaNamespace, query string, source ContentSource, filter SearchFilter, language, country string, maxItems int, continuationToken string) (*ContentResponse, error) {
	params, err := c.requestParameters(ctx, continuationToken, language, country, source)
	if err != nil {
		return nil, err
	}
	if query != "" {
		params["q"] = escapeDataString(query)
	}
	if filter != SearchFilterDefault {
		params["filters"] = filter.String()
	}
	if maxItems > 0 {
		params["maxItems"] = fmt.Sprintf("%d", maxItems)
	}

	path := fmt.Sprintf("/1/content/%s/search", namespace)
	return anonymousPreferred(ctx, c, c.contentGet(ctx, path, params))
}

// LookupOptions are the optional parameters of Lookup.
type LookupOptions struct {
	Source   ContentSource
	Language string
	Country  string
	Extras   ExtraDetails
}

// Lookup resolves one or more opaque content ids to full items.
func (c *Client) Lookup(ctx context.Context, ids []string, opts *LookupOptions) (*ContentResponse, error) {
	if opts == nil {
		opts = &LookupOptions{}
	}
	return c.lookupAPI(ctx, ids, opts.Source, opts.Language, opts.Country, opts.Extras, "")
}

// LookupOne resolves a single content id. It is equivalent to calling Lookup
// with a one-element list.
func (c *Client) LookupOne(ctx context.Context, id string, opts *LookupOptions) (*ContentResponse, error) {
	return c.Lookup(ctx, []string{id}, opts)
}

// LookupContinuation fetches the next page of an earlier lookup.
func (c *Client) LookupContinuation(ctx context.Context, ids []string, continuationToken string) (*ContentResponse, error) {
	return c.lookupAPI(ctx, ids, 0, "", "", ExtraDetailsNone, continuationToken)
}

func (c *Client) lookupAPI(ctx context.Context, ids []string, source ContentSource, language, country string, extras ExtraDetails, continuationToken string) (*ContentResponse, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("groovego: at least one content id is required")
	}

	params, err := c.requestParameters(ctx, continuationToken, language, country, source)
	if err != nil {
		return nil, err
	}
	if extras != ExtraDetailsNone {
		params["extras"] = extras.String()
	}

	path := fmt.Sprintf("/1/content/%s/lookup", strings.Join(ids, "+"))
	return anonymousPreferred(ctx, c, c.contentGet(ctx, path, params))
}

// BrowseOptions are the optional parameters of Browse.
type BrowseOptions struct {
	Genre    string
	Mood     string
	Activity string
	OrderBy  OrderBy
	MaxItems int
	Page     int
	Country  string
	Language string
}

// Browse pages through a content source's items of one type, optionally
// scoped to a genre, mood or activity.
func (c *Client) Browse(ctx context.Context, namespace MediaNamespace, source ContentSource, itemType ItemType, opts *BrowseOptions) (*ContentResponse, error) {
	if opts == nil {
		opts = &BrowseOptions{}
	}
	return c.browseAPI(ctx, namespace, source, itemType, opts, "")
}

// BrowseContinuation fetches the next page of an earlier browse.
func (c *Client) BrowseContinuation(ctx context.Context, namespace MediaNamespace, source ContentSource, itemType ItemType, continuationToken string) (*ContentResponse, error) {
	return c.browseAPI(ctx, namespace, source, itemType, &BrowseOptions{}, continuationToken)
}

func (c *Client) browseAPI(ctx context.Context, namespace MediaNamespace, source ContentSource, itemType ItemType, opts *BrowseOptions, continuationToken string) (*ContentResponse, error) {
	params, err := c.requestParameters(ctx, continuationToken, opts.Language, opts.Country, 0)
	if err != nil {
		return nil, err
	}
	if opts.Genre != "" {
		params["genre"] = opts.Genre
	}
	if opts.Mood != "" {
		params["mood"] = opts.Mood
	}
	if opts.Activity != "" {
		params["activity"] = opts.Activity
	}
	if opts.OrderBy != "" {
		params["orderby"] = string(opts.OrderBy)
	}
	if opts.MaxItems > 0 {
		params["maxitems"] = fmt.Sprintf("%d", opts.MaxItems)
	}
	if opts.Page > 0 {
		params["page"] = fmt.Sprintf("%d", opts.Page)
	}

	path := fmt.Sprintf("/1/content/%s/%s/%s/browse", namespace, source, itemType)
	return anonymousPreferred(ctx, c, c.contentGet(ctx, path, params))
}

// SubBrowseOptions are the optional parameters of SubBrowse.
type SubBrowseOptions struct {
	OrderBy  OrderBy
	MaxItems int
	Page     int
	Language string
	Country  string
}

// SubBrowse browses a collection related to one parent item, for example an
// artist's albums. extra selects the related collection and must be a single
// flag.
func (c *Client) SubBrowse(ctx context.Context, id string, source ContentSource, itemType ItemType, extra ExtraDetails, opts *SubBrowseOptions) (*ContentResponse, error) {
	if opts == nil {
		opts = &SubBrowseOptions{}
	}
	return c.subBrowseAPI(ctx, id, source, itemType, extra, opts, "")
}

// SubBrowseContinuation fetches the next page of an earlier sub-browse.
func (c *Client) SubBrowseContinuation(ctx context.Context, id string, source ContentSource, itemType ItemType, extra ExtraDetails, continuationToken string) (*ContentResponse, error) {
	return c.subBrowseAPI(ctx, id, source, itemType, extra, &SubBrowseOptions{}, continuationToken)
}

func (c *Client) subBrowseAPI(ctx context.Context, id string, source ContentSource, itemType ItemType, extra ExtraDetails, opts *SubBrowseOptions, continuationToken string) (*ContentResponse, error) {
	params, err := c.requestParameters(ctx, continuationToken, opts.Language, opts.Country, 0)
	if err != nil {
		return nil, err
	}
	if opts.OrderBy != "" {
		params["orderby"] = string(opts.OrderBy)
	}
	if opts.MaxItems > 0 {
		params["maxitems"] = fmt.Sprintf("%d", opts.MaxItems)
	}
	if opts.Page > 0 {
		params["page"] = fmt.Sprintf("%d", opts.Page)
	}

	path := fmt.Sprintf("/1/content/%s/%s/%s/%s/browse", id, source, itemType, extra)
	return anonymousPreferred(ctx, c, c.contentGet(ctx, path, params))
}

// DiscoverOptions are the optional parameters of the discovery calls.
type DiscoverOptions struct {
	Language string
	Country  string
}

// Spotlight returns the editorial spotlight selection. Discovery calls are
// always anonymous.
func (c *Client) Spotlight(ctx context.Context, namespace MediaNamespace, opts *DiscoverOptions) (*ContentResponse, error) {
	return c.discoverAPI(ctx, namespace, "spotlight", "", opts)
}

// NewReleases returns newly released content, optionally scoped to a genre.
// Discovery calls are always anonymous.
func (c *Client) NewReleases(ctx context.Context, namespace MediaNamespace, genre string, opts *DiscoverOptions) (*ContentResponse, error) {
	return c.discoverAPI(ctx, namespace, "newreleases", genre, opts)
}

func (c *Client) discoverAPI(ctx context.Context, namespace MediaNamespace, kind, genre string, opts *DiscoverOptions) (*ContentResponse, error) {
	if opts == nil {
		opts = &DiscoverOptions{}
	}
	params, err := c.requestParameters(ctx, "", opts.Language, opts.Country, 0)
	if err != nil {
		return nil, err
	}
	if genre != "" {
		params["genre"] = genre
	}

	path := fmt.Sprintf("/1/content/%s/%s", namespace, kind)
	return c.contentGet(ctx, path, params)(c.requestHeaders(""))
}

// BrowseGenres lists the catalog's genres.
func (c *Client) BrowseGenres(ctx context.Context, namespace MediaNamespace, opts *DiscoverOptions) (*ContentResponse, error) {
	return c.catalogListAPI(ctx, namespace, "genres", opts)
}

// BrowseMoods lists the catalog's editorial moods.
func (c *Client) BrowseMoods(ctx context.Context, namespace MediaNamespace, opts *DiscoverOptions) (*ContentResponse, error) {
	return c.catalogListAPI(ctx, namespace, "moods", opts)
}

// BrowseActivities lists the catalog's editorial activities.
func (c *Client) BrowseActivities(ctx context.Context, namespace MediaNamespace, opts *DiscoverOptions) (*ContentResponse, error) {
	return c.catalogListAPI(ctx, namespace, "activities", opts)
}

func (c *Client) catalogListAPI(ctx context.Context, namespace MediaNamespace, kind string, opts *DiscoverOptions) (*ContentResponse, error) {
	if opts == nil {
		opts = &DiscoverOptions{}
	}
	params, err := c.requestParameters(ctx, "", opts.Language, opts.Country, 0)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/1/content/%s/catalog/%s", namespace, kind)
	return c.contentGet(ctx, path, params)(c.requestHeaders(""))
}

// CollectionOperation adds tracks to or removes tracks from the signed-in
// user's collection. It is a user-required operation.
func (c *Client) CollectionOperation(ctx context.Context, namespace MediaNamespace, operation TrackAction, request *TrackActionRequest) (*TrackActionResponse, error) {
	if c.userTokens == nil {
		return nil, ErrNoUserTokenProvider
	}
	params, err := c.requestParameters(ctx, "", "", "", 0)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/1/content/%s/collection/%s", namespace, operation)
	return callWithAuthRefresh(ctx, c, func(headers map[string]string) (*TrackActionResponse, error) {
		var resp TrackActionResponse
		if err := c.post(ctx, path, params, headers, request, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// PlaylistOperation creates, updates or deletes one of the signed-in user's
// playlists. It is a user-required operation.
func (c *Client) PlaylistOperation(ctx context.Context, namespace MediaNamespace, operation PlaylistAction, request *PlaylistActionRequest) (*PlaylistActionResponse, error) {
	if c.userTokens == nil {
		return nil, ErrNoUserTokenProvider
	}
	params, err := c.requestParameters(ctx, "", "", "", 0)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/1/content/%s/collection/playlists/%s", namespace, operation)
	return callWithAuthRefresh(ctx, c, func(headers map[string]string) (*PlaylistActionResponse, error) {
		var resp PlaylistActionResponse
		if err := c.post(ctx, path, params, headers, request, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// Stream resolves a short-lived playable URL for full playback of the given
// content id. clientInstanceID identifies the playing device; see
// NewClientInstanceID.
func (c *Client) Stream(ctx context.Context, id, clientInstanceID string) (*StreamResponse, error) {
	return c.locationAPI(ctx, id, clientInstanceID, "stream", "")
}

// Preview resolves a short-lived playable URL for a preview clip of the
// given content id.
func (c *Client) Preview(ctx context.Context, id, clientInstanceID, country string) (*StreamResponse, error) {
	return c.locationAPI(ctx, id, clientInstanceID, "preview", country)
}

func (c *Client) locationAPI(ctx context.Context, id, clientInstanceID, kind, country string) (*StreamResponse, error) {
	params, err := c.requestParameters(ctx, "", "", country, 0)
	if err != nil {
		return nil, err
	}
	if clientInstanceID != "" {
		params["clientInstanceId"] = clientInstanceID
	}

	path := fmt.Sprintf("/1/content/%s/%s", id, kind)
	return anonymousPreferred(ctx, c, func(headers map[string]string) (*StreamResponse, error) {
		var resp StreamResponse
		if err := c.get(ctx, path, params, headers, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}

// UserProfile returns the signed-in user's subscription status and region.
// It is a user-required operation.
func (c *Client) UserProfile(ctx context.Context, namespace MediaNamespace, opts *DiscoverOptions) (*UserProfileResponse, error) {
	if c.userTokens == nil {
		return nil, ErrNoUserTokenProvider
	}
	if opts == nil {
		opts = &DiscoverOptions{}
	}
	params, err := c.requestParameters(ctx, "", opts.Language, opts.Country, 0)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/1/user/%s/profile", namespace)
	return callWithAuthRefresh(ctx, c, func(headers map[string]string) (*UserProfileResponse, error) {
		var resp UserProfileResponse
		if err := c.get(ctx, path, params, headers, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
}
