package runtime

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/agentwire/a2a-runtime/pkg/events"
	"github.com/agentwire/a2a-runtime/pkg/stores"
)

// Clock is the injectable time source.  Production uses the system clock;
// tests use ManualClock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the real clock.
func SystemClock() Clock { return systemClock{} }

// ManualClock is a settable clock for deterministic tests.
type ManualClock struct {
	Current time.Time
}

func (clock *ManualClock) Now() time.Time { return clock.Current }

func (clock *ManualClock) Advance(d time.Duration) { clock.Current = clock.Current.Add(d) }

// RandomID is the injectable id source.
type RandomID func() string

/*
Runtime is the explicit dependency container for a server process.  There is
no package-level state anywhere in the module: tests build as many isolated
runtimes as they need.
*/
type Runtime struct {
	Config      Config
	Logger      *log.Logger
	Clock       Clock
	RandomID    RandomID
	Tasks       stores.TaskStore
	PushConfigs stores.PushConfigStore
	Queue       *events.Queue
}

type Option func(*Runtime)

func WithConfig(cfg Config) Option {
	return func(rt *Runtime) { rt.Config = cfg }
}

func WithLogger(logger *log.Logger) Option {
	return func(rt *Runtime) { rt.Logger = logger }
}

func WithClock(clock Clock) Option {
	return func(rt *Runtime) { rt.Clock = clock }
}

func WithRandomID(randomID RandomID) Option {
	return func(rt *Runtime) { rt.RandomID = randomID }
}

func WithTaskStore(store stores.TaskStore) Option {
	return func(rt *Runtime) { rt.Tasks = store }
}

func WithPushConfigStore(store stores.PushConfigStore) Option {
	return func(rt *Runtime) { rt.PushConfigs = store }
}

func WithQueue(queue *events.Queue) Option {
	return func(rt *Runtime) { rt.Queue = queue }
}

// New builds a runtime with in-memory stores and sane defaults; options
// override individual pieces.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		Config:      DefaultConfig(),
		Logger:      log.Default(),
		Clock:       SystemClock(),
		RandomID:    uuid.NewString,
		Tasks:       stores.NewInMemoryTaskStore(),
		PushConfigs: stores.NewInMemoryPushConfigStore(),
	}

	for _, opt := range opts {
		opt(rt)
	}

	if rt.Queue == nil {
		rt.Queue = events.NewQueue(
			events.WithClock(rt.Clock.Now),
			events.WithLogger(rt.Logger),
		)
	}

	return rt
}
