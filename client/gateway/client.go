package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"gatewayipsync/client/credential"
)

const maxErrorBody = 4 * 1024

// Client reads and replaces one local network gateway. It never retries;
// retry policy belongs to the caller.
type Client struct {
	httpClient *http.Client
	tokens     credential.Provider
	identity   Identity
	uri        string
}

func NewClient(httpClient *http.Client, tokens credential.Provider, identity Identity, endpoint string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		tokens:     tokens,
		identity:   identity,
		uri:        identity.URL(endpoint),
	}
}

func (c *Client) Fetch(ctx context.Context) (*LocalNetworkGateway, error) {
	log.Debug().Msgf("[gateway]: fetching %s", c.identity)
	return c.do(ctx, "fetch local gateway", http.MethodGet, nil)
}

// Submit replaces the whole resource with gw and returns the view the API
// answered with.
func (c *Client) Submit(ctx context.Context, gw *LocalNetworkGateway) (*LocalNetworkGateway, error) {
	body, err := json.Marshal(gw)
	if err != nil {
		return nil, fmt.Errorf("encode local gateway: %w", err)
	}
	log.Debug().Msgf("[gateway]: submitting %s with gateway ip %s", c.identity, gw.Properties.GatewayIPAddress)
	return c.do(ctx, "submit local gateway", http.MethodPut, body)
}

func (c *Client) do(ctx context.Context, op, method string, body []byte) (*LocalNetworkGateway, error) {
	token, err := c.tokens.Token(ctx, ManagementScope)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("acquire token: %w", err)}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.uri, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	gw := new(LocalNetworkGateway)
	if err := json.NewDecoder(resp.Body).Decode(gw); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return gw, nil
}
