package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/jsonrpc"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
	"github.com/agentwire/a2a-runtime/pkg/sse"
)

/*
Client is the full-stack A2A client: every unary call runs through the
resilience chain (logging, rate limit, circuit breaker, retry) before it
reaches the wire, and the streaming calls ride the reconnecting SSE client.
One Client targets one agent endpoint.
*/
type Client struct {
	baseURL   string
	rpcURL    string
	transport Transport
	http      *http.Client
	headers   http.Header
	cfg       runtime.Config
	log       *log.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.http = httpClient }
}

func WithClientConfig(cfg runtime.Config) ClientOption {
	return func(c *Client) { c.cfg = cfg }
}

func WithClientLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.log = logger }
}

// WithBearerToken attaches credentials to every request, unary and streaming.
func WithBearerToken(token string) ClientOption {
	return func(c *Client) {
		c.headers.Set("Authorization", "Bearer "+token)
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		headers: make(http.Header),
		cfg:     runtime.DefaultConfig(),
		log:     log.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.rpcURL = c.baseURL + "/rpc"

	bucket := NewTokenBucket(c.cfg.RateLimit.RPS, c.cfg.RateLimit.Burst)
	breaker := NewCircuitBreaker(c.cfg.CircuitBreaker.FailureThreshold, c.cfg.CircuitBreaker.Timeout)

	c.transport = Chain(
		HTTPTransport(c.rpcURL, c.http),
		Logging(c.log),
		RateLimit(bucket),
		Break(breaker),
		Retry(c.cfg.Retry, c.log),
	)

	return c
}

// call runs one unary RPC through the chain and decodes the result into out.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	resp, err := c.transport(ctx, &Request{
		Method:  method,
		Params:  params,
		Headers: c.headers.Clone(),
	})

	if err != nil {
		return err
	}

	if out == nil || len(resp.Result) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Result, out); err != nil {
		return a2a.ErrParseError.WithMessagef("malformed result: %v", err)
	}

	return nil
}

func (c *Client) SendMessage(ctx context.Context, params a2a.MessageSendParams) (*a2a.SendMessageResult, error) {
	var result a2a.SendMessageResult

	if err := c.call(ctx, "message/send", params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

/*
StreamMessage submits a message and returns the live event channel for its
task.  The underlying SSE client reconnects on failure and resumes from the
last event id it saw, so the channel only closes on a deliberate server
shutdown, context cancellation or exhausted reconnect attempts.
*/
func (c *Client) StreamMessage(ctx context.Context, params a2a.MessageSendParams) (<-chan a2a.Event, error) {
	body, err := c.streamRequestBody("message/stream", params)

	if err != nil {
		return nil, err
	}

	stream := c.newSSEClient()
	stream.Method = http.MethodPost
	stream.Body = body

	return stream.Events(ctx), nil
}

// Resubscribe reopens the event stream of an existing task, replaying from
// lastEventID when the server still holds those events.
func (c *Client) Resubscribe(ctx context.Context, taskID string, lastEventID string) (<-chan a2a.Event, error) {
	params := a2a.TaskResubscribeParams{ID: taskID, LastEventID: lastEventID}
	body, err := c.streamRequestBody("tasks/resubscribe", params)

	if err != nil {
		return nil, err
	}

	stream := c.newSSEClient()
	stream.Method = http.MethodPost
	stream.Body = body

	if lastEventID != "" {
		stream.Headers.Set("Last-Event-ID", lastEventID)
	}

	return stream.Events(ctx), nil
}

func (c *Client) GetTask(ctx context.Context, taskID string, historyLength *int) (*a2a.Task, error) {
	var task a2a.Task

	params := a2a.TaskQueryParams{ID: taskID, HistoryLength: historyLength}

	if err := c.call(ctx, "tasks/get", params, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

func (c *Client) CancelTask(ctx context.Context, taskID string, reason string) (*a2a.Task, error) {
	var task a2a.Task

	params := a2a.TaskIDParams{ID: taskID, Reason: reason}

	if err := c.call(ctx, "tasks/cancel", params, &task); err != nil {
		return nil, err
	}

	return &task, nil
}

func (c *Client) SetPushConfig(ctx context.Context, taskID string, config a2a.PushNotificationConfig) (*a2a.PushNotificationConfig, error) {
	var result a2a.PushNotificationConfig

	params := a2a.SetPushConfigParams{TaskID: taskID, Config: config}

	if err := c.call(ctx, "tasks/pushNotificationConfig/set", params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) GetPushConfig(ctx context.Context, taskID string, configID string) (*a2a.PushNotificationConfig, error) {
	var result a2a.PushNotificationConfig

	params := a2a.PushConfigParams{TaskID: taskID, ConfigID: configID}

	if err := c.call(ctx, "tasks/pushNotificationConfig/get", params, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) ListPushConfigs(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, error) {
	var result []*a2a.PushNotificationConfig

	params := a2a.PushConfigParams{TaskID: taskID}

	if err := c.call(ctx, "tasks/pushNotificationConfig/list", params, &result); err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) DeletePushConfig(ctx context.Context, taskID string, configID string) error {
	params := a2a.PushConfigParams{TaskID: taskID, ConfigID: configID}
	return c.call(ctx, "tasks/pushNotificationConfig/delete", params, nil)
}

// GetCard fetches the public discovery document over JSON-RPC.
func (c *Client) GetCard(ctx context.Context) (*a2a.AgentCard, error) {
	var card a2a.AgentCard

	if err := c.call(ctx, "agent/getCard", nil, &card); err != nil {
		return nil, err
	}

	return &card, nil
}

// GetExtendedCard fetches the authenticated card variant; the server refuses
// the call unless the client carries valid credentials.
func (c *Client) GetExtendedCard(ctx context.Context) (*a2a.AgentCard, error) {
	var card a2a.AgentCard

	if err := c.call(ctx, "agent/getAuthenticatedExtendedCard", nil, &card); err != nil {
		return nil, err
	}

	return &card, nil
}

func (c *Client) newSSEClient() *sse.Client {
	stream := sse.NewClient(c.rpcURL)
	stream.HTTP = c.http
	stream.Headers = c.headers.Clone()
	stream.Logger = c.log
	stream.ReconnectDelay = c.cfg.ReconnectDelay
	stream.MaxReconnectAttempts = c.cfg.MaxReconnectAttempts
	return stream
}

func (c *Client) streamRequestBody(method string, params any) ([]byte, error) {
	rawParams, err := json.Marshal(params)

	if err != nil {
		return nil, err
	}

	id, _ := json.Marshal(uuid.NewString())

	return json.Marshal(jsonrpc.Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  rawParams,
	})
}
