package plugin

import (
	"testing"
)

func TestRegistryCreate(t *testing.T) {
	r := NewRegistry()
	r.Register(KindLLM, "scripted", func(cfg map[string]any) (any, error) {
		return cfg["model"], nil
	})

	got, err := r.Create(KindLLM, "scripted", map[string]any{"model": "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got != "gpt-4o-mini" {
		t.Errorf("factory got %v, want config model", got)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create(KindSTT, "missing", nil); err == nil {
		t.Fatal("expected error for unregistered provider")
	}
	if r.Has(KindSTT, "missing") {
		t.Error("Has reported unregistered provider")
	}
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	factory := func(cfg map[string]any) (any, error) { return nil, nil }
	r.Register(KindTTS, "dup", factory)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register(KindTTS, "dup", factory)
}

func TestRegistrySameNameAcrossKinds(t *testing.T) {
	r := NewRegistry()
	factory := func(cfg map[string]any) (any, error) { return nil, nil }
	r.Register(KindSTT, "acme", factory)
	r.Register(KindTTS, "acme", factory)

	if !r.Has(KindSTT, "acme") || !r.Has(KindTTS, "acme") {
		t.Error("same provider name should be independent per kind")
	}
}
