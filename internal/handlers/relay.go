package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nhle/mail-gateway/internal/command"
	"github.com/nhle/mail-gateway/internal/mail"
)

// RelayPayload is the message description returned by the relay endpoint.
type RelayPayload struct {
	Subject     string   `json:"subject"`
	TextContent string   `json:"text_content"`
	HTMLContent string   `json:"html_content"`
	FromName    string   `json:"from_name"`
	EmailTo     []string `json:"email_to"`
}

// RelayClient fetches a RelayPayload from an internal HTTP endpoint,
// authenticating with an X-API-KEY header.
type RelayClient struct {
	url             string
	apiKey          string
	httpClient      *http.Client
	defaultSubject  string
	defaultFromName string
}

// NewRelayClient creates a client for url. Missing subject and sender
// name in a payload are replaced by the given defaults.
func NewRelayClient(
	url, apiKey string,
	timeout time.Duration,
	defaultSubject, defaultFromName string,
) *RelayClient {
	return &RelayClient{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		defaultSubject:  defaultSubject,
		defaultFromName: defaultFromName,
	}
}

// Fetch performs the GET and decodes the payload. It returns the HTTP
// status code alongside the payload.
func (c *RelayClient) Fetch(ctx context.Context) (*RelayPayload, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("executing request GET %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf(
			"unexpected status %d on GET %s: %s",
			resp.StatusCode, c.url, string(body),
		)
	}

	payload := &RelayPayload{}
	if err := json.Unmarshal(body, payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decoding relay payload: %w", err)
	}
	if payload.Subject == "" {
		payload.Subject = c.defaultSubject
	}
	if payload.FromName == "" {
		payload.FromName = c.defaultFromName
	}

	return payload, resp.StatusCode, nil
}

// CheckCampusIP fetches a message from the relay endpoint and forwards
// it to the recipients it names. Fetch and send failures are reported in
// the result rather than as errors.
func CheckCampusIP(deps Deps) command.Handler {
	return func(ctx context.Context, _ ...string) (any, error) {
		payload, status, err := deps.Relay.Fetch(ctx)
		if err != nil {
			return map[string]any{
				"ok":    false,
				"error": err.Error(),
			}, nil
		}

		results, err := deps.Sender.Send(ctx, mail.Message{
			Subject:  payload.Subject,
			Text:     payload.TextContent,
			HTML:     payload.HTMLContent,
			FromName: payload.FromName,
			To:       payload.EmailTo,
		})
		if err != nil {
			return map[string]any{
				"ok":    false,
				"error": err.Error(),
			}, nil
		}

		return map[string]any{
			"ok":          true,
			"status_code": status,
			"result":      results,
		}, nil
	}
}
