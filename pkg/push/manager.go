package push

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
	"github.com/agentwire/a2a-runtime/pkg/events"
	"github.com/agentwire/a2a-runtime/pkg/runtime"
	"github.com/agentwire/a2a-runtime/pkg/stores"
)

/*
DeliveryPolicy controls webhook retry pacing.  Delivery is at-least-once:
the event id rides along so receivers can de-duplicate.
*/
type DeliveryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// backoff computes the delay before attempt n (1-based), capped and jittered.
func (policy DeliveryPolicy) backoff(attempt int) time.Duration {
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt-1))

	if capped := float64(policy.MaxDelay); delay > capped {
		delay = capped
	}

	if policy.Jitter > 0 {
		delay *= 1 + (rand.Float64()*2-1)*policy.Jitter
	}

	return time.Duration(delay)
}

// DeliveryState tracks the most recent delivery outcome per config.
type DeliveryState struct {
	LastAttempt time.Time
	LastSuccess time.Time
	LastFailure time.Time
	Failures    int
}

// webhookPayload is the body POSTed to the registered URL.  Exactly one of
// Status or Artifact is set, matching the event type.
type webhookPayload struct {
	EventID   string          `json:"eventId"`
	Type      a2a.EventType   `json:"type"`
	TaskID    string          `json:"taskId"`
	ContextID string          `json:"contextId,omitempty"`
	Status    *a2a.TaskStatus `json:"status,omitempty"`
	Artifact  *a2a.Artifact   `json:"artifact,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

/*
Manager owns push notification configs and delivers task events to their
webhooks.  Run consumes the queue; CRUD is safe to call concurrently with a
running delivery loop.
*/
type Manager struct {
	rt     *runtime.Runtime
	store  stores.PushConfigStore
	queue  *events.Queue
	client *http.Client
	policy DeliveryPolicy
	log    *log.Logger

	mu    sync.Mutex
	state map[string]*DeliveryState
}

type Option func(*Manager)

func WithHTTPClient(client *http.Client) Option {
	return func(m *Manager) { m.client = client }
}

func WithDeliveryPolicy(policy DeliveryPolicy) Option {
	return func(m *Manager) { m.policy = policy }
}

func NewManager(rt *runtime.Runtime, opts ...Option) *Manager {
	manager := &Manager{
		rt:     rt,
		store:  rt.PushConfigs,
		queue:  rt.Queue,
		client: &http.Client{Timeout: rt.Config.DefaultTimeout},
		policy: DefaultDeliveryPolicy(),
		log:    rt.Logger,
		state:  make(map[string]*DeliveryState),
	}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

/*
SetConfig validates and persists a webhook registration.  A missing id marks
a new config, which starts active; resubmitting an existing id replaces the
stored config wholesale.
*/
func (m *Manager) SetConfig(ctx context.Context, config *a2a.PushNotificationConfig) (*a2a.PushNotificationConfig, *a2a.RpcError) {
	if err := config.Validate(); err != nil {
		return nil, a2a.ErrInvalidParams.WithMessagef("invalid push notification config: %s", err)
	}

	stored := *config

	if stored.ID == "" {
		stored.ID = m.rt.RandomID()
		stored.Active = true
	}

	if err := m.store.Save(ctx, &stored); err != nil {
		return nil, err
	}

	m.log.Info("push config set", "task", stored.TaskID, "config", stored.ID, "url", stored.URL)

	return &stored, nil
}

func (m *Manager) GetConfig(ctx context.Context, taskID string, configID string) (*a2a.PushNotificationConfig, *a2a.RpcError) {
	return m.store.Get(ctx, taskID, configID)
}

func (m *Manager) ListConfigs(ctx context.Context, taskID string) ([]*a2a.PushNotificationConfig, *a2a.RpcError) {
	return m.store.List(ctx, taskID)
}

func (m *Manager) DeleteConfig(ctx context.Context, taskID string, configID string) *a2a.RpcError {
	if err := m.store.Delete(ctx, taskID, configID); err != nil {
		return err
	}

	m.log.Info("push config deleted", "task", taskID, "config", configID)
	return nil
}

// State returns the delivery bookkeeping for one config, zero-valued when no
// delivery was attempted yet.
func (m *Manager) State(taskID string, configID string) DeliveryState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.state[taskID+"/"+configID]; ok {
		return *state
	}

	return DeliveryState{}
}

/*
Run subscribes to task events and delivers each to every active config of the
task, one goroutine per config so a slow webhook never stalls the loop.
Returns when the context is canceled or the queue closes.
*/
func (m *Manager) Run(ctx context.Context) {
	sub := m.queue.Subscribe(events.TaskEvents)
	defer sub.Close()

	m.log.Info("push delivery loop started")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			m.dispatch(ctx, event)
		}
	}
}

func (m *Manager) dispatch(ctx context.Context, event a2a.Event) {
	payload, ok := m.payloadFor(event)

	if !ok {
		return
	}

	configs, err := m.store.List(ctx, payload.TaskID)

	if err != nil {
		m.log.Warn("push config list failed", "task", payload.TaskID, "error", err)
		return
	}

	for _, config := range configs {
		if !config.Active {
			continue
		}
		go m.deliver(ctx, config, payload)
	}
}

func (m *Manager) payloadFor(event a2a.Event) (webhookPayload, bool) {
	switch event.Type {
	case a2a.EventTypeStatusUpdate:
		status, err := event.StatusPayload()
		if err != nil {
			return webhookPayload{}, false
		}
		return webhookPayload{
			EventID:   event.ID,
			Type:      event.Type,
			TaskID:    status.TaskID,
			ContextID: status.ContextID,
			Status:    &status.Status,
			Timestamp: event.Timestamp,
		}, true
	case a2a.EventTypeArtifactUpdate:
		artifact, err := event.ArtifactPayload()
		if err != nil {
			return webhookPayload{}, false
		}
		return webhookPayload{
			EventID:   event.ID,
			Type:      event.Type,
			TaskID:    artifact.TaskID,
			ContextID: artifact.ContextID,
			Artifact:  &artifact.Artifact,
			Timestamp: event.Timestamp,
		}, true
	}

	return webhookPayload{}, false
}

/*
deliver POSTs with up to MaxAttempts tries.  Transport errors and 408/429/5xx
responses retry after backoff; any other 4xx is permanent.  Exhaustion is
logged and the event dropped; the config stays active for future events.
*/
func (m *Manager) deliver(ctx context.Context, config *a2a.PushNotificationConfig, payload webhookPayload) {
	body, err := json.Marshal(payload)

	if err != nil {
		m.log.Error("push payload marshal failed", "task", payload.TaskID, "error", err)
		return
	}

	for attempt := 1; attempt <= m.policy.MaxAttempts; attempt++ {
		status, err := m.post(ctx, config, body)
		m.record(config, err == nil && status >= 200 && status < 300)

		switch {
		case err == nil && status >= 200 && status < 300:
			if attempt > 1 {
				m.log.Info("push delivered after retry",
					"task", payload.TaskID, "config", config.ID, "attempt", attempt)
			}
			return
		case err == nil && !retryableStatus(status):
			m.log.Warn("push rejected permanently",
				"task", payload.TaskID, "config", config.ID, "status", status)
			return
		}

		if attempt == m.policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.policy.backoff(attempt)):
		}
	}

	m.log.Warn("push delivery exhausted",
		"task", payload.TaskID, "config", config.ID, "event", payload.EventID,
		"attempts", m.policy.MaxAttempts)
}

func (m *Manager) post(ctx context.Context, config *a2a.PushNotificationConfig, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL, bytes.NewReader(body))

	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/json")

	if config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+config.Token)
	}

	for key, value := range config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := m.client.Do(req)

	if err != nil {
		return 0, err
	}

	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func (m *Manager) record(config *a2a.PushNotificationConfig, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := config.TaskID + "/" + config.ID
	state, ok := m.state[key]

	if !ok {
		state = &DeliveryState{}
		m.state[key] = state
	}

	now := m.rt.Clock.Now().UTC()
	state.LastAttempt = now

	if success {
		state.LastSuccess = now
		state.Failures = 0
		return
	}

	state.LastFailure = now
	state.Failures++
}

func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= 500
}
