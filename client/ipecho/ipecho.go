package ipecho

import (
	"context"
	"io"
	"net/http"
	"net/netip"
	"strings"

	"github.com/rs/zerolog/log"
)

const DefaultURI = "https://ifconfig.me/ip"

// Client asks a public "what is my ip" service for the caller's address.
type Client struct {
	httpClient *http.Client
	uri        string
}

func New(httpClient *http.Client, uri string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if uri == "" {
		uri = DefaultURI
	}
	return &Client{httpClient: httpClient, uri: uri}
}

// Discover makes one request and reports false on any failure. Retrying is
// left to the next poll.
func (c *Client) Discover(ctx context.Context) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, nil)
	if err != nil {
		log.Error().Err(err).Msg("[ipecho]: failed to build request, error suppressed")
		return "", false
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("[ipecho]: failed to retrieve current ip, error suppressed")
		return "", false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		log.Error().Err(err).Msg("[ipecho]: failed to read response, error suppressed")
		return "", false
	}
	if resp.StatusCode/100 != 2 {
		log.Error().Msgf("[ipecho]: invalid status code = %d", resp.StatusCode)
		return "", false
	}

	ip := strings.TrimSpace(string(body))
	if _, err := netip.ParseAddr(ip); err != nil {
		log.Error().Msgf("[ipecho]: response %q is not an ip address", ip)
		return "", false
	}
	return ip, true
}
