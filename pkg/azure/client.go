// Package azure is the client for Azure OpenAI chat completion deployments.
//
// A Client is built from an immutable ConnectionConfig and offers a one-shot
// Complete call and an incremental CompleteStream call. Construction never
// fails; invalid settings are reported as *ConfigurationError when a call is
// made, before any network activity. Nothing is retried.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/cometx/pkg/llm"
	"github.com/papercomputeco/cometx/pkg/logger"
	"github.com/papercomputeco/cometx/pkg/utils"
)

// DefaultAPIVersion is used when ConnectionConfig.APIVersion is empty.
const DefaultAPIVersion = "2024-08-01-preview"

// ConnectionConfig holds everything needed to reach one deployment.
type ConnectionConfig struct {
	// Endpoint is the resource URL, e.g. "https://myresource.openai.azure.com/".
	Endpoint string

	// APIKey is sent in the "api-key" header.
	APIKey string

	// Deployment is the server side name of the model deployment.
	Deployment string

	// APIVersion is the "api-version" query parameter.
	APIVersion string
}

// Client talks to a single deployment. It holds no mutable state and is safe
// for concurrent use; every call owns its own HTTP response.
type Client struct {
	config     ConnectionConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. The default has no timeout:
// deadlines are imposed through the call context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client. It performs no I/O and never fails.
func New(cfg ConnectionConfig, opts ...Option) *Client {
	c := &Client{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the connection settings the client was built with.
func (c *Client) Config() ConnectionConfig {
	return c.config
}

// Complete sends the conversation and waits for the full reply. It returns
// the content of the first choice, or "" when the response carries none.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, opts *llm.Options) (string, error) {
	resp, err := c.send(ctx, messages, opts, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "read response", Err: err}
	}

	var out completionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &RemoteError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}

	if out.Usage != nil {
		c.logger.Debug("chat completion finished",
			"deployment", c.config.Deployment,
			"prompt_tokens", out.Usage.PromptTokens,
			"completion_tokens", out.Usage.CompletionTokens,
		)
	}

	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

// CompleteStream sends the conversation in streaming mode. Request level
// failures are returned here, before any delta is produced. The returned
// Stream must be closed, or consumed to the end, to release the connection.
func (c *Client) CompleteStream(ctx context.Context, messages []llm.Message, opts *llm.Options) (*Stream, error) {
	resp, err := c.send(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, &TransportError{Op: "open stream", Err: ErrNoResponseBody}
	}

	return newStream(resp.Body, c.logger), nil
}

// send validates the call, issues exactly one POST and returns a 2xx
// response. Non-2xx responses are consumed and returned as *RemoteError.
func (c *Client) send(ctx context.Context, messages []llm.Message, opts *llm.Options, stream bool) (*http.Response, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	target, err := c.completionsURL()
	if err != nil {
		return nil, err
	}

	temperature, maxTokens := opts.Resolved()
	payload, err := json.Marshal(completionRequest{
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("azure: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, &ConfigurationError{Field: "endpoint", Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.config.APIKey)
	req.Header.Set("User-Agent", utils.UserAgent())
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	c.logger.Debug("sending chat completion",
		"deployment", c.config.Deployment,
		"message_count", len(messages),
		"stream", stream,
		logger.Secret("api_key", c.config.APIKey),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "send request", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			c.logger.Debug("failed to read error body", "error", readErr)
		}
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp, nil
}

// completionsURL builds
// {endpoint}/openai/deployments/{deployment}/chat/completions?api-version={version}.
func (c *Client) completionsURL() (string, error) {
	if strings.TrimSpace(c.config.APIKey) == "" {
		return "", &ConfigurationError{Field: "api key", Reason: "must not be empty"}
	}

	endpoint := strings.TrimRight(strings.TrimSpace(c.config.Endpoint), "/")
	if endpoint == "" {
		return "", &ConfigurationError{Field: "endpoint", Reason: "must not be empty"}
	}

	base, err := url.Parse(endpoint)
	if err != nil {
		return "", &ConfigurationError{Field: "endpoint", Reason: err.Error()}
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return "", &ConfigurationError{Field: "endpoint", Reason: fmt.Sprintf("unsupported scheme %q", base.Scheme)}
	}
	if base.Host == "" {
		return "", &ConfigurationError{Field: "endpoint", Reason: "missing host"}
	}

	deployment := strings.TrimSpace(c.config.Deployment)
	if deployment == "" {
		return "", &ConfigurationError{Field: "deployment", Reason: "must not be empty"}
	}

	version := c.config.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}

	base.Path += "/openai/deployments/" + deployment + "/chat/completions"
	base.RawPath = ""
	base.RawQuery = url.Values{"api-version": {version}}.Encode()

	return base.String(), nil
}
