package groovego

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *fakeAuthServer, opts ...ClientOption) *Client {
	t.Helper()
	cache := newTestTokenCache(t, srv)
	client, err := NewClient(cache, opts...)
	require.NoError(t, err)
	return client
}

func TestRequestParametersOnlyAccessTokenByDefault(t *testing.T) {
	srv := newFakeAuthServer(t)
	c := newTestClient(t, srv)

	params, err := c.requestParameters(context.Background(), "", "", "", 0)
	require.NoError(t, err)

	// Absent optionals are omitted, not sent as empty strings.
	assert.Equal(t, map[string]string{"accessToken": "Bearer%20tok-1"}, params)
}

func TestRequestParametersEscapesBearerPrefix(t *testing.T) {
	srv := newFakeAuthServer(t)
	c := newTestClient(t, srv)

	params, err := c.requestParameters(context.Background(), "", "", "", 0)
	require.NoError(t, err)

	assert.Contains(t, params["accessToken"], "%20")
	assert.NotContains(t, params["accessToken"], "+")
	assert.NotContains(t, params["accessToken"], " ")
}

func TestRequestParametersIncludesOptionals(t *testing.T) {
	srv := newFakeAuthServer(t)
	c := newTestClient(t, srv)

	params, err := c.requestParameters(context.Background(), "next-page", "en-US", "US", ContentSourceCatalog|ContentSourceCollection)
	require.NoError(t, err)

	assert.Equal(t, "next-page", params["continuationToken"])
	assert.Equal(t, "en-US", params["language"])
	assert.Equal(t, "US", params["country"])
	assert.Equal(t, "Catalog+Collection", params["source"])
}

func TestRequestHeaders(t *testing.T) {
	srv := newFakeAuthServer(t)
	c := newTestClient(t, srv)

	anonymous := c.requestHeaders("")
	assert.Equal(t, map[string]string{
		"X-Client-Name":    "groovego",
		"X-Client-Version": Version,
	}, anonymous)

	authorized := c.requestHeaders("Bearer user-token")
	assert.Equal(t, "Bearer user-token", authorized["Authorization"])
	assert.Equal(t, "groovego", authorized["X-Client-Name"])
}

func TestEscapeDataString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bearer abc", "Bearer%20abc"},
		{"no reserved chars", "no%20reserved%20chars"},
		{"a+b", "a%2Bb"},
		{"a&b=c", "a%26b%3Dc"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeDataString(tt.in), "input %q", tt.in)
	}
}

func TestEncodeQuerySortsKeys(t *testing.T) {
	query := encodeQuery(map[string]string{
		"country":     "US",
		"accessToken": "Bearer%20tok",
		"language":    "en-US",
	})
	assert.Equal(t, "accessToken=Bearer%20tok&country=US&language=en-US", query)

	assert.Empty(t, encodeQuery(nil))
}

func TestFormatFlags(t *testing.T) {
	assert.Equal(t, "Catalog", ContentSourceCatalog.String())
	assert.Equal(t, "Catalog+Collection", (ContentSourceCatalog | ContentSourceCollection).String())
	assert.Equal(t, "", SearchFilterDefault.String())
	assert.Equal(t, "Artists+Albums+Tracks", (SearchFilterArtists | SearchFilterAlbums | SearchFilterTracks).String())
	assert.Equal(t, "TopTracks", ExtraDetailsTopTracks.String())
}

func TestNewClientInstanceID(t *testing.T) {
	id, err := NewClientInstanceID()
	require.NoError(t, err)
	assert.Len(t, id, 32)
	for _, r := range id {
		assert.True(t, (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'), "unexpected character %q", r)
	}

	other, err := NewClientInstanceID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}
