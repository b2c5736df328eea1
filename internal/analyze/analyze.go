// Package analyze talks to an external text-generation service on behalf
// of the inspector UI: free-text summaries of captured payloads and sample
// payload generation for well-known providers. The collaborator is
// strictly best-effort; every failure degrades to placeholder content and
// never surfaces as an error on the capture or query path.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hookmaster/hookmaster/internal/store"
)

const (
	summaryUnavailable = "Analysis is not available right now. The captured payload is stored and can be inspected manually."
	notConfigured      = "Analysis is not configured on this server."

	maxResponseBytes = 1 << 20
)

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a client for the generation service at baseURL. An empty
// baseURL yields a client that always answers with placeholders.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

// Summarize renders req into a debugging prompt and returns the service's
// free-text analysis, or a placeholder string.
func (c *Client) Summarize(ctx context.Context, req *store.CapturedRequest) string {
	if c == nil || c.baseURL == "" {
		return notConfigured
	}

	body := req.Body
	if body == nil && len(req.RawBody) > 0 {
		b, _ := json.Marshal(string(req.RawBody))
		body = b
	}
	prompt := fmt.Sprintf(
		"You are an expert backend engineer debugging webhooks. Analyze this payload.\n\n"+
			"Method: %s\nContent-Type: %s\nBody: %s\n\n"+
			"Provide a concise 3-bullet summary of what this event represents. "+
			"If it looks like an error, highlight the cause. Keep it technical.",
		req.Method, req.ContentType, body)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Str("request_id", req.ID).Msg("payload analysis failed")
		return summaryUnavailable
	}
	return text
}

// SamplePayload asks the service for a realistic webhook payload for the
// named provider (stripe, github, slack, ...). When the service is
// unconfigured or misbehaves, a built-in static sample is returned instead,
// so the test console always has something to send.
func (c *Client) SamplePayload(ctx context.Context, provider string) json.RawMessage {
	provider = strings.ToLower(provider)
	if c != nil && c.baseURL != "" {
		prompt := fmt.Sprintf(
			"Generate a realistic, valid JSON webhook payload for a %s event. "+
				"Return ONLY the JSON object, no markdown code blocks.", provider)
		text, err := c.generate(ctx, prompt)
		if err == nil && json.Valid([]byte(text)) {
			return json.RawMessage(text)
		}
		if err != nil {
			log.Warn().Err(err).Str("provider", provider).Msg("sample generation failed")
		}
	}
	return builtinSample(provider)
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("generation service returned %s", resp.Status)
	}

	var out generateResponse
	if err := json.NewDecoder(http.MaxBytesReader(nil, resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return "", err
	}
	if out.Text == "" {
		return "", fmt.Errorf("generation service returned empty text")
	}
	return out.Text, nil
}

var samples = map[string]string{
	"stripe": `{"id":"evt_1NpXa2K8","type":"payment_intent.succeeded","data":{"object":{"id":"pi_3NpXa1K8","amount":4200,"currency":"usd","status":"succeeded"}}}`,
	"github": `{"ref":"refs/heads/main","before":"6113728f27ae82c7b1a177c8d03f9e96e0adf246","after":"59b20b8d5c6ff8d09518454d4dd8b7a2ba8960b8","repository":{"full_name":"octocat/hello-world"},"pusher":{"name":"octocat"}}`,
	"slack":  `{"token":"XXYYZZ","team_id":"T123ABC","event":{"type":"message","channel":"C123ABC","user":"U123ABC","text":"Hello world","ts":"1355517523.000005"}}`,
}

func builtinSample(provider string) json.RawMessage {
	if s, ok := samples[provider]; ok {
		return json.RawMessage(s)
	}
	return json.RawMessage(`{"event":"test.ping","message":"sample payload"}`)
}
