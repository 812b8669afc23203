package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// UpdateResponse is the body the updater answers with when it changed the gateway.
type UpdateResponse struct {
	Updated   bool   `json:"Updated"`
	CurrentIP string `json:"CurrentIp"`
}

// Client reports a candidate ip to the updater endpoint. Put an
// httpretry.Transport under httpClient to get the transient retry policy.
type Client struct {
	httpClient *http.Client
	uri        string
}

func New(httpClient *http.Client, uri string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{httpClient: httpClient, uri: uri}
}

func (c *Client) Report(ctx context.Context, ip string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uri, strings.NewReader(ip))
	if err != nil {
		return fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("report ip %s: %w", ip, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		log.Info().Msgf("[reporter]: gateway already points at %s", ip)
		return nil
	case resp.StatusCode/100 == 2:
		var body UpdateResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err != nil {
			log.Warn().Err(err).Msg("[reporter]: could not decode update response")
		} else {
			log.Info().Msgf("[reporter]: gateway updated=%t, current ip %s", body.Updated, body.CurrentIP)
		}
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("report ip %s: updater http %d: %s", ip, resp.StatusCode, strings.TrimSpace(string(msg)))
}
