package catalog

import (
	"testing"
	"time"
)

func testInfo() Info {
	return Info{
		Name:               "test-agent",
		Description:        "an agent under test",
		Version:            "1.0.0",
		URL:                "http://localhost:3210",
		ProtocolVersion:    "0.2.5",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
	}
}

func TestBuildProjectsCapabilities(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Capability{Name: "translate", Description: "translates text"})
	registry.Register(Capability{Name: "echo", Description: "echoes text", Streaming: true})

	srv := NewCardServer(registry, testInfo())
	card := srv.Build()

	if len(card.Skills) != 2 {
		t.Fatalf("skill count = %d, want 2", len(card.Skills))
	}

	// Skills follow the registry's sorted order.
	if card.Skills[0].ID != "echo" || card.Skills[1].ID != "translate" {
		t.Errorf("skills = %q, %q", card.Skills[0].ID, card.Skills[1].ID)
	}

	// One streaming-capable skill flips the agent-level flag.
	if !card.Capabilities.Streaming {
		t.Error("streaming skill did not enable card streaming")
	}

	if card.Name != "test-agent" || card.Version != "1.0.0" {
		t.Errorf("identity = %q %q", card.Name, card.Version)
	}
}

func TestModesFromSchema(t *testing.T) {
	fileSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"upload": map[string]any{"type": "string", "format": "binary"},
		},
	}

	tests := []struct {
		name     string
		schema   map[string]any
		defaults []string
		want     []string
	}{
		{"nil schema uses defaults", nil, []string{"text/markdown"}, []string{"text/markdown"}},
		{"nil schema without defaults", nil, nil, []string{modeText}},
		{"string schema", map[string]any{"type": "string"}, nil, []string{modeText}},
		{"object schema adds data", map[string]any{"type": "object"}, nil, []string{modeText, modeData}},
		{"array schema adds data", map[string]any{"type": "array"}, nil, []string{modeText, modeData}},
		{"binary property adds file", fileSchema, nil, []string{modeText, modeFile, modeData}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := modesFromSchema(tc.schema, tc.defaults)

			if len(got) != len(tc.want) {
				t.Fatalf("modes = %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("modes = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestHasFileProperty(t *testing.T) {
	tests := []struct {
		name   string
		schema map[string]any
		want   bool
	}{
		{"no properties", map[string]any{"type": "object"}, false},
		{"plain string property", map[string]any{
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
		}, false},
		{"file named property", map[string]any{
			"properties": map[string]any{"file": map[string]any{"type": "string"}},
		}, true},
		{"content media type", map[string]any{
			"properties": map[string]any{
				"doc": map[string]any{"type": "string", "contentMediaType": "application/pdf"},
			},
		}, true},
		{"nested file shape", map[string]any{
			"properties": map[string]any{
				"attachment": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"bytes": map[string]any{"type": "string"},
					},
				},
			},
		}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasFileProperty(tc.schema); got != tc.want {
				t.Errorf("hasFileProperty = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCardCacheHonorsTTL(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Capability{Name: "echo"})

	current := time.Unix(1000, 0)

	srv := NewCardServer(registry, testInfo(),
		WithTTL(time.Minute),
		WithClock(func() time.Time { return current }))

	if got := srv.Card(""); len(got.Skills) != 1 {
		t.Fatalf("initial skills = %d", len(got.Skills))
	}

	// A new capability stays invisible while the cached card is fresh.
	registry.Register(Capability{Name: "translate"})

	current = current.Add(30 * time.Second)

	if got := srv.Card(""); len(got.Skills) != 1 {
		t.Errorf("cached card rebuilt early, skills = %d", len(got.Skills))
	}

	current = current.Add(31 * time.Second)

	if got := srv.Card(""); len(got.Skills) != 2 {
		t.Errorf("expired card not rebuilt, skills = %d", len(got.Skills))
	}
}

func TestCardInvalidateForcesRebuild(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Capability{Name: "echo"})

	srv := NewCardServer(registry, testInfo(), WithTTL(time.Hour))

	srv.Card("")

	registry.Register(Capability{Name: "translate"})

	if got := srv.Card(""); len(got.Skills) != 1 {
		t.Fatalf("cache miss before invalidation, skills = %d", len(got.Skills))
	}

	srv.Invalidate("")

	if got := srv.Card(""); len(got.Skills) != 2 {
		t.Errorf("invalidated card not rebuilt, skills = %d", len(got.Skills))
	}
}

func TestCacheControl(t *testing.T) {
	srv := NewCardServer(NewRegistry(), testInfo(), WithTTL(120*time.Second))

	if got := srv.CacheControl(); got != "max-age=120" {
		t.Errorf("cache control = %q", got)
	}
}

func TestBuildEmbedsDetachedSignature(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Capability{Name: "echo"})

	srv := NewCardServer(registry, testInfo(), WithSigner(NewHMACSigner([]byte("secret"))))

	card := srv.Build()

	if len(card.Signatures) != 1 {
		t.Fatalf("signature count = %d, want 1", len(card.Signatures))
	}
	if card.Signatures[0].Protected == "" || card.Signatures[0].Signature == "" {
		t.Errorf("signature = %+v", card.Signatures[0])
	}
}
