package groovego

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// escapeDataString percent-encodes a query parameter value, encoding spaces
// as %20 rather than '+'. The service expects the accessToken parameter in
// this form.
func escapeDataString(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// requestParameters builds the query-parameter map shared by every call: the
// current application token (renewed if needed) plus whichever of the
// optional parameters are set. Absent optionals are omitted entirely, never
// sent as empty strings.
func (c *Client) requestParameters(ctx context.Context, continuationToken, language, country string, source ContentSource) (map[string]string, error) {
	token, err := c.tokens.CheckAndRenewToken(ctx)
	if err != nil {
		return nil, err
	}

	params := map[string]string{
		"accessToken": escapeDataString("Bearer " + token.Token),
	}

	if continuationToken != "" {
		params["continuationToken"] = continuationToken
	}
	if language != "" {
		params["language"] = language
	}
	if country != "" {
		params["country"] = country
	}
	if source != 0 {
		params["source"] = source.String()
	}

	return params, nil
}

// requestHeaders builds the headers sent with every call. The client identity
// pair is always present; Authorization only when a user header is supplied.
func (c *Client) requestHeaders(userAuthorizationHeader string) map[string]string {
	headers := map[string]string{
		"X-Client-Name":    clientName,
		"X-Client-Version": Version,
	}
	if userAuthorizationHeader != "" {
		headers["Authorization"] = userAuthorizationHeader
	}
	return headers
}

// encodeQuery assembles a raw query string from a parameter map. Values are
// expected to already be in wire form (plain tokens or pre-escaped, see
// escapeDataString); keys are sorted for a deterministic request line.
func encodeQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

// clientInstanceIDLength is the length the service requires for the
// clientInstanceId parameter on stream and preview calls.
const clientInstanceIDLength = 32

// NewClientInstanceID generates a random identifier suitable for the
// clientInstanceId parameter of Stream and Preview. Generate it once per
// installation and reuse it for all location calls from that device.
func NewClientInstanceID() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, clientInstanceIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("groovego: failed to generate client instance id: %w", err)
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
