package catalog

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentwire/a2a-runtime/pkg/a2a"
)

const (
	// DefaultCacheKey is used when the caller does not scope the card.
	DefaultCacheKey = "default"
	// DefaultCardTTL bounds how long a built card is served from cache.
	DefaultCardTTL = 300 * time.Second
)

// Mode strings derived from capability schemas.
const (
	modeText = "text/plain"
	modeFile = "application/octet-stream"
	modeData = "application/json"
)

// Info is the static identity of the agent the card describes.
type Info struct {
	Name               string
	Description        string
	Version            string
	URL                string
	Provider           *a2a.AgentProvider
	ProtocolVersion    string
	PreferredTransport a2a.TransportProtocol
	Streaming          bool
	PushNotifications  bool
	DefaultInputModes  []string
	DefaultOutputModes []string
}

/*
CardServer builds the discovery document from the capability registry and
serves it from a TTL cache.  Building walks the registry, so a freshly
registered capability shows up as soon as the cached card expires (or the
cache is invalidated).
*/
type CardServer struct {
	registry *Registry
	info     Info
	ttl      time.Duration
	signer   *Signer
	clock    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedCard
}

type cachedCard struct {
	card    a2a.AgentCard
	builtAt time.Time
}

type CardOption func(*CardServer)

func WithTTL(ttl time.Duration) CardOption {
	return func(s *CardServer) { s.ttl = ttl }
}

func WithSigner(signer *Signer) CardOption {
	return func(s *CardServer) { s.signer = signer }
}

func WithClock(now func() time.Time) CardOption {
	return func(s *CardServer) { s.clock = now }
}

func NewCardServer(registry *Registry, info Info, opts ...CardOption) *CardServer {
	srv := &CardServer{
		registry: registry,
		info:     info,
		ttl:      DefaultCardTTL,
		clock:    time.Now,
		cache:    make(map[string]cachedCard),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// TTL returns the configured cache lifetime.
func (srv *CardServer) TTL() time.Duration {
	return srv.ttl
}

// CacheControl is the header value matching the card TTL.
func (srv *CardServer) CacheControl() string {
	return fmt.Sprintf("max-age=%d", int(srv.ttl.Seconds()))
}

// SigningEnabled reports whether a JWS can be served.
func (srv *CardServer) SigningEnabled() bool {
	return srv.signer != nil
}

/*
Build assembles the card from the registry, one skill per capability.  Input
and output modes are derived from the capability schemas; streaming on the
card is the agent-level flag or any streaming-capable skill.
*/
func (srv *CardServer) Build() a2a.AgentCard {
	capabilities := srv.registry.List()
	skills := make([]a2a.AgentSkill, 0, len(capabilities))
	streaming := srv.info.Streaming

	for _, capability := range capabilities {
		if capability.Streaming {
			streaming = true
		}

		skills = append(skills, a2a.AgentSkill{
			ID:          capability.Name,
			Name:        capability.Name,
			Description: capability.Description,
			Tags:        capability.Tags,
			Examples:    capability.Examples,
			InputModes:  modesFromSchema(capability.InputSchema, srv.info.DefaultInputModes),
			OutputModes: modesFromSchema(capability.OutputSchema, srv.info.DefaultOutputModes),
			Security:    capability.Security,
		})
	}

	card := a2a.AgentCard{
		Name:               srv.info.Name,
		Description:        srv.info.Description,
		Version:            srv.info.Version,
		URL:                srv.info.URL,
		Provider:           srv.info.Provider,
		PreferredTransport: srv.info.PreferredTransport,
		ProtocolVersion:    srv.info.ProtocolVersion,
		Capabilities: a2a.AgentCapabilities{
			Streaming:              streaming,
			PushNotifications:      srv.info.PushNotifications,
			StateTransitionHistory: true,
		},
		DefaultInputModes:  srv.info.DefaultInputModes,
		DefaultOutputModes: srv.info.DefaultOutputModes,
		Skills:             skills,
	}

	if srv.signer != nil {
		if signature, err := srv.signer.DetachedSignature(card); err == nil {
			card.Signatures = []a2a.AgentCardSignature{signature}
		}
	}

	return card
}

// Card returns the cached card for key, rebuilding when the entry is older
// than TTL or absent.
func (srv *CardServer) Card(key string) a2a.AgentCard {
	if key == "" {
		key = DefaultCacheKey
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	now := srv.clock()

	if entry, ok := srv.cache[key]; ok && now.Sub(entry.builtAt) <= srv.ttl {
		return entry.card
	}

	card := srv.Build()
	srv.cache[key] = cachedCard{card: card, builtAt: now}
	return card
}

// Invalidate drops one cached card, or all of them for an empty key.
func (srv *CardServer) Invalidate(key string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if key == "" {
		srv.cache = make(map[string]cachedCard)
		return
	}

	delete(srv.cache, key)
}

// JWS returns the compact serialization of the cached card.
func (srv *CardServer) JWS(key string) (string, error) {
	if srv.signer == nil {
		return "", fmt.Errorf("card signing is not configured")
	}

	return srv.signer.Sign(srv.Card(key))
}

/*
modesFromSchema derives the MIME modes a skill accepts or produces from its
JSON schema: a file-shaped property adds the file mode, an object or array
schema adds the structured-data mode, and text is the fallback.
*/
func modesFromSchema(schema map[string]any, defaults []string) []string {
	if schema == nil {
		if len(defaults) > 0 {
			return defaults
		}
		return []string{modeText}
	}

	modes := []string{modeText}

	if hasFileProperty(schema) {
		modes = append(modes, modeFile)
	}

	switch schema["type"] {
	case "object", "array":
		modes = append(modes, modeData)
	}

	return modes
}

// hasFileProperty walks the schema's properties looking for something shaped
// like a file: a binary/byte format, an explicit content media type, or the
// bytes/uri pair the Part union uses.
func hasFileProperty(schema map[string]any) bool {
	properties, ok := schema["properties"].(map[string]any)

	if !ok {
		return false
	}

	for name, raw := range properties {
		property, ok := raw.(map[string]any)

		if !ok {
			continue
		}

		if name == "file" || name == "bytes" || name == "uri" {
			return true
		}

		switch property["format"] {
		case "binary", "byte":
			return true
		}

		if _, ok := property["contentMediaType"]; ok {
			return true
		}

		// Nested objects may carry the file shape one level down.
		if nested, ok := property["properties"].(map[string]any); ok {
			if hasFileProperty(map[string]any{"properties": nested}) {
				return true
			}
		}
	}

	return false
}
