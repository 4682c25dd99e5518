package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/catalog"
	"github.com/agentwire/a2a-runtime/pkg/events"
	"github.com/agentwire/a2a-runtime/pkg/jsonrpc"
	"github.com/agentwire/a2a-runtime/pkg/push"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
	ssestream "github.com/agentwire/a2a-runtime/pkg/service/sse"
)

const claimsLocalKey = "authClaims"

/*
Server mounts the A2A method set over HTTP: JSON-RPC on POST /rpc, SSE on
GET /rpc (and on POST when the client asks for an event stream), and the
discovery endpoints.  It is safe for concurrent use because every component
it composes is.
*/
type Server struct {
	rt       *runtime.Runtime
	app      *fiber.App
	handler  *RequestHandler
	rpc      *jsonrpc.Server
	cards    *catalog.CardServer
	registry *catalog.Registry
	auth     Authenticator
	log      *log.Logger
}

type ServerOption func(*Server)

// WithAuthenticator installs the auth hook.  Requests carrying an invalid
// Authorization header are refused; requests without one proceed anonymous.
func WithAuthenticator(auth Authenticator) ServerOption {
	return func(srv *Server) { srv.auth = auth }
}

func NewServer(
	rt *runtime.Runtime,
	handler *RequestHandler,
	cards *catalog.CardServer,
	registry *catalog.Registry,
	opts ...ServerOption,
) *Server {
	srv := &Server{
		rt:      rt,
		handler: handler,
		rpc: jsonrpc.NewServer(
			jsonrpc.WithDebug(rt.Config.Debug),
			jsonrpc.WithLogger(rt.Logger),
		),
		cards:    cards,
		registry: registry,
		log:      rt.Logger,
		app: fiber.New(fiber.Config{
			AppName:           "A2A-Agent-Server",
			ServerHeader:      "A2A-Agent-Server",
			StreamRequestBody: true,
			BodyLimit:         jsonrpc.DefaultMaxBodyBytes,
		}),
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.registerMethods()
	srv.mountRoutes()

	return srv
}

/*
NewServerWithDefaults wires a fully working echo server: in-memory stores, an
echo executor and a card built from a single echo capability.  Great for
smoke tests.
*/
func NewServerWithDefaults(url string) *Server {
	rt := runtime.New()

	registry := catalog.NewRegistry()
	_ = registry.Register(catalog.Capability{
		Name:        "echo",
		Description: "Echoes the user's message back as an artifact",
		Tags:        []string{"demo"},
	})

	cards := catalog.NewCardServer(registry, catalog.Info{
		Name:               "Echo Agent (Go)",
		Description:        "Reference A2A runtime wired to an echo executor",
		Version:            "0.1.0",
		URL:                url,
		ProtocolVersion:    rt.Config.ProtocolVersion,
		PreferredTransport: rt.Config.DefaultTransport,
		Streaming:          rt.Config.StreamingEnabled,
		PushNotifications:  rt.Config.PushNotificationsEnabled,
		DefaultInputModes:  rt.Config.DefaultInputModes,
		DefaultOutputModes: rt.Config.DefaultOutputModes,
	}, catalog.WithTTL(rt.Config.CacheTTL), catalog.WithClock(rt.Clock.Now))

	tasks := NewTaskManager(rt)
	pushManager := push.NewManager(rt)
	handler := NewRequestHandler(rt, tasks, pushManager, cards, NewEchoExecutor(rt.RandomID))

	return NewServer(rt, handler, cards, registry)
}

// App exposes the fiber app, which tests drive through app.Test.
func (srv *Server) App() *fiber.App {
	return srv.app
}

// Runtime returns the dependency container the server was built around.
func (srv *Server) Runtime() *runtime.Runtime {
	return srv.rt
}

// Start serves until the listener fails or Shutdown is called.
func (srv *Server) Start(addr string) error {
	srv.log.Info("a2a server listening", "addr", addr)
	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops the listener and closes the event queue, which ends every
// SSE stream and the push delivery loop deterministically.
func (srv *Server) Shutdown() error {
	srv.rt.Queue.Close()
	return srv.app.Shutdown()
}

func (srv *Server) mountRoutes() {
	srv.app.Use(logger.New(logger.Config{
		// Skip logging for the streaming endpoint to reduce noise.
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/rpc" && c.Method() == fiber.MethodGet
		},
	}), healthcheck.New())

	srv.app.Use(srv.authHook)

	srv.app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("OK")
	})

	srv.app.Post("/rpc", srv.handleRPC)
	srv.app.Get("/rpc", srv.handleStreamGet)

	srv.app.Get("/agent-card", srv.handleAgentCard)
	srv.app.Get("/.well-known/agent.json", srv.handleAgentCard)
	srv.app.Get("/agent-card.jws", srv.handleAgentCardJWS)
	srv.app.Get("/capabilities", srv.handleCapabilities)
}

// authHook authenticates requests that carry credentials.  Anonymous
// requests pass through; methods requiring auth refuse them later.
func (srv *Server) authHook(c fiber.Ctx) error {
	if srv.auth == nil {
		return c.Next()
	}

	authorization := c.Get(fiber.HeaderAuthorization)

	if authorization == "" {
		return c.Next()
	}

	claims, rpcErr := srv.auth.Authenticate(c.RequestCtx(), authorization)

	if rpcErr != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(jsonrpc.NewErrorResponse(nil, rpcErr))
	}

	c.Locals(claimsLocalKey, claims)
	return c.Next()
}

// requestContext derives the per-request context: the transport context plus
// auth claims plus the default deadline.
func (srv *Server) requestContext(c fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := srv.claimsContext(c)
	return context.WithTimeout(ctx, srv.rt.Config.DefaultTimeout)
}

func (srv *Server) claimsContext(c fiber.Ctx) context.Context {
	// fasthttp's RequestCtx satisfies context.Context.
	var ctx context.Context = c.RequestCtx()

	if claims, ok := c.Locals(claimsLocalKey).(*AuthClaims); ok && claims != nil {
		ctx = WithClaims(ctx, claims)
	}

	return ctx
}

/*
handleRPC dispatches a JSON-RPC payload.  A request for message/stream or
tasks/resubscribe that also accepts text/event-stream is answered with a live
SSE stream instead of a single response document.
*/
func (srv *Server) handleRPC(c fiber.Ctx) error {
	body := c.Body()

	if acceptsEventStream(c) {
		var req jsonrpc.Request

		if err := json.Unmarshal(body, &req); err == nil {
			switch req.Method {
			case "message/stream", "tasks/resubscribe":
				return srv.streamRequest(c, &req)
			}
		}
	}

	ctx, cancel := srv.requestContext(c)
	defer cancel()

	responses, hasResponses := srv.rpc.Dispatch(ctx, body)

	if !hasResponses {
		return c.SendStatus(fiber.StatusNoContent)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(httpStatusFor(responses)).JSON(responses)
}

// httpStatusFor maps malformed payloads to 400; every well-formed JSON-RPC
// outcome, including logical errors, stays 200.
func httpStatusFor(responses any) int {
	resp, ok := responses.(jsonrpc.Response)

	if !ok || resp.Error == nil || len(resp.ID) != 0 {
		return fiber.StatusOK
	}

	switch resp.Error.Code {
	case a2a.ErrParseError.Code, a2a.ErrInvalidRequest.Code:
		return fiber.StatusBadRequest
	}

	return fiber.StatusOK
}

// streamRequest resolves the stream's task filter from a parsed JSON-RPC
// request and hands the connection over to the SSE layer.
func (srv *Server) streamRequest(c fiber.Ctx, req *jsonrpc.Request) error {
	ctx, cancel := srv.requestContext(c)
	defer cancel()

	var (
		filter      events.Filter
		rpcErr      *a2a.RpcError
		lastEventID = c.Get("Last-Event-ID")
	)

	switch req.Method {
	case "message/stream":
		var params a2a.MessageSendParams

		if err := json.Unmarshal(req.Params, &params); err != nil {
			rpcErr = a2a.ErrInvalidParams.WithMessagef("failed to parse params: %v", err)
			break
		}

		_, filter, rpcErr = srv.handler.StreamMessage(ctx, params)

	case "tasks/resubscribe":
		var params a2a.TaskResubscribeParams

		if err := json.Unmarshal(req.Params, &params); err != nil {
			rpcErr = a2a.ErrInvalidParams.WithMessagef("failed to parse params: %v", err)
			break
		}

		filter, rpcErr = srv.handler.Resubscribe(ctx, params)

		if params.LastEventID != "" {
			lastEventID = params.LastEventID
		}
	}

	if rpcErr != nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).JSON(jsonrpc.NewErrorResponse(req.ID, rpcErr))
	}

	return srv.serveStream(c, filter, lastEventID)
}

/*
handleStreamGet opens an SSE stream from query parameters, the form
EventSource clients use: method=tasks/resubscribe&taskId=…, or
method=message/stream with the message as a JSON-encoded query value.
*/
func (srv *Server) handleStreamGet(c fiber.Ctx) error {
	ctx, cancel := srv.requestContext(c)
	defer cancel()

	var (
		filter      events.Filter
		rpcErr      *a2a.RpcError
		lastEventID = c.Get("Last-Event-ID")
	)

	if lastEventID == "" {
		lastEventID = c.Query("lastEventId")
	}

	switch method := c.Query("method", "tasks/resubscribe"); method {
	case "message/stream":
		var msg a2a.Message

		if err := json.Unmarshal([]byte(c.Query("message")), &msg); err != nil {
			rpcErr = a2a.ErrInvalidParams.WithMessagef("failed to parse message: %v", err)
			break
		}

		_, filter, rpcErr = srv.handler.StreamMessage(ctx, a2a.MessageSendParams{Message: msg})

	case "tasks/resubscribe":
		params := a2a.TaskResubscribeParams{
			ID:          firstQuery(c, "taskId", "task_id", "id"),
			LastEventID: lastEventID,
		}

		filter, rpcErr = srv.handler.Resubscribe(ctx, params)

	default:
		rpcErr = a2a.ErrMethodNotFound.WithMessagef("method %q does not stream", method)
	}

	if rpcErr != nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusBadRequest).JSON(jsonrpc.NewErrorResponse(nil, rpcErr))
	}

	return srv.serveStream(c, filter, lastEventID)
}

// serveStream adapts the fiber connection to net/http so the SSE layer can
// flush frame by frame.  The stream lives until the client disconnects or
// the queue closes; the request deadline does not apply.
func (srv *Server) serveStream(c fiber.Ctx, filter events.Filter, lastEventID string) error {
	queue := srv.rt.Queue
	heartbeat := srv.rt.Config.HeartbeatInterval
	streamLog := srv.log

	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		stream := ssestream.NewStream(w, queue, filter,
			ssestream.WithHeartbeatInterval(heartbeat),
			ssestream.WithLogger(streamLog),
		)

		if err := stream.Serve(r.Context(), lastEventID); err != nil {
			streamLog.Warn("sse stream ended with error", "error", err)
		}
	}

	return fiberadaptor.HTTPHandler(http.HandlerFunc(handler))(c)
}

func (srv *Server) handleAgentCard(c fiber.Ctx) error {
	c.Set(fiber.HeaderCacheControl, srv.cards.CacheControl())
	return c.JSON(srv.cards.Card(catalog.DefaultCacheKey))
}

func (srv *Server) handleAgentCardJWS(c fiber.Ctx) error {
	if !srv.cards.SigningEnabled() {
		return c.Status(fiber.StatusNotFound).SendString("card signing is not enabled")
	}

	compact, err := srv.cards.JWS(catalog.DefaultCacheKey)

	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}

	c.Set(fiber.HeaderCacheControl, srv.cards.CacheControl())
	c.Set(fiber.HeaderContentType, "application/jose")
	return c.SendString(compact)
}

func (srv *Server) handleCapabilities(c fiber.Ctx) error {
	return c.JSON(srv.registry.List())
}

// registerMethods binds the A2A method set into the JSON-RPC registry.
func (srv *Server) registerMethods() {
	srv.rpc.Register("message/send", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		var params a2a.MessageSendParams

		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}

		return srv.handler.SendMessage(ctx, params)
	})

	// Over plain JSON-RPC the stream method accepts the message and returns
	// the task; the events themselves require an SSE-capable connection.
	srv.rpc.Register("message/stream", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		var params a2a.MessageSendParams

		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}

		task, _, rpcErr := srv.handler.StreamMessage(ctx, params)

		if rpcErr != nil {
			return nil, rpcErr
		}

		return task, nil
	})

	srv.rpc.Register("tasks/get", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		var params a2a.TaskQueryParams

		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}

		return srv.handler.GetTask(ctx, params)
	})

	srv.rpc.Register("tasks/cancel", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		var params a2a.TaskIDParams

		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}

		return srv.handler.CancelTask(ctx, params)
	})

	srv.rpc.Register("tasks/resubscribe", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		var params a2a.TaskResubscribeParams

		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}

		if _, rpcErr := srv.handler.Resubscribe(ctx, params); rpcErr != nil {
			return nil, rpcErr
		}

		return srv.handler.GetTask(ctx, a2a.TaskQueryParams{ID: params.ID})
	})

	srv.rpc.Register("tasks/pushNotificationConfig/set", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		var params a2a.SetPushConfigParams

		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}

		return srv.handler.SetPushConfig(ctx, params)
	})

	srv.rpc.Register("tasks/pushNotificationConfig/get", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		var params a2a.PushConfigParams

		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}

		return srv.handler.GetPushConfig(ctx, params)
	})

	srv.rpc.Register("tasks/pushNotificationConfig/list", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		var params a2a.PushConfigParams

		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}

		return srv.handler.ListPushConfigs(ctx, params)
	})

	srv.rpc.Register("tasks/pushNotificationConfig/delete", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		var params a2a.PushConfigParams

		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}

		if rpcErr := srv.handler.DeletePushConfig(ctx, params); rpcErr != nil {
			return nil, rpcErr
		}

		return map[string]bool{"deleted": true}, nil
	})

	srv.rpc.Register("agent/getCard", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		return srv.handler.GetCard(ctx)
	})

	srv.rpc.Register("agent/getAuthenticatedExtendedCard", func(ctx context.Context, raw json.RawMessage) (any, *a2a.RpcError) {
		return srv.handler.GetExtendedCard(ctx)
	})
}

func decodeParams(raw json.RawMessage, out any) *a2a.RpcError {
	if len(raw) == 0 {
		return a2a.ErrInvalidParams.WithMessagef("params are required")
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return a2a.ErrInvalidParams.WithMessagef("failed to parse params: %v", err)
	}

	return nil
}

func acceptsEventStream(c fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), "text/event-stream")
}

func firstQuery(c fiber.Ctx, keys ...string) string {
	for _, key := range keys {
		if value := c.Query(key); value != "" {
			return value
		}
	}

	return ""
}
