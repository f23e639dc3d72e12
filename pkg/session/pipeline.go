// Package session assembles the per-call capability pipeline and runs
// the conversation it carries.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/llm"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/stt"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/tts"
	"github.com/truvo-ai/voice-agent-go/pkg/ai/vad"
	"github.com/truvo-ai/voice-agent-go/pkg/config"
	"github.com/truvo-ai/voice-agent-go/pkg/plugin"
	"github.com/truvo-ai/voice-agent-go/pkg/tool"
)

// Prewarmer is implemented by providers that can load resources before
// the first session needs them.
type Prewarmer interface {
	Prewarm(ctx context.Context) error
}

// ProviderNames selects which registered provider serves each
// capability.
type ProviderNames struct {
	STT string
	TTS string
	LLM string
	VAD string
}

// Pipeline is the assembled capability set for one session. The
// provider handles are shared across sessions; Tools and Config are
// per-session.
type Pipeline struct {
	STT stt.STT
	TTS tts.TTS
	LLM llm.LLM
	VAD vad.VAD

	Tools  []*tool.Descriptor
	Config config.AgentConfig
}

// Builder creates pipelines from the plugin registry. Providers are
// instantiated once and reused; Prewarm makes that happen ahead of the
// first dispatch so session start stays fast.
type Builder struct {
	plugins *plugin.Registry
	tools   *tool.Registry
	names   ProviderNames
	logger  *slog.Logger

	mu   sync.Mutex
	cfgs map[string]map[string]any
	warm map[string]any
}

// NewBuilder creates a builder over the given registries.
func NewBuilder(plugins *plugin.Registry, tools *tool.Registry, names ProviderNames, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		plugins: plugins,
		tools:   tools,
		names:   names,
		logger:  logger,
		cfgs:    make(map[string]map[string]any),
		warm:    make(map[string]any),
	}
}

// SetProviderConfig stores the factory configuration for one kind.
func (b *Builder) SetProviderConfig(kind string, cfg map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfgs[kind] = cfg
}

// Prewarm instantiates every provider and warms the ones that support
// it. Failures are logged, not fatal: a provider that would not prewarm
// gets another chance when the first session builds.
func (b *Builder) Prewarm(ctx context.Context) {
	for _, kind := range []string{plugin.KindSTT, plugin.KindTTS, plugin.KindLLM, plugin.KindVAD} {
		inst, err := b.provider(kind)
		if err != nil {
			b.logger.Warn("provider prewarm skipped",
				slog.String("kind", kind),
				slog.String("error", err.Error()))
			continue
		}
		if p, ok := inst.(Prewarmer); ok {
			if err := p.Prewarm(ctx); err != nil {
				b.logger.Warn("provider prewarm failed",
					slog.String("kind", kind),
					slog.String("error", err.Error()))
				continue
			}
		}
		b.logger.Debug("provider ready", slog.String("kind", kind))
	}
}

// provider returns the cached instance for a kind, creating it on first
// use.
func (b *Builder) provider(kind string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if inst, ok := b.warm[kind]; ok {
		return inst, nil
	}

	name := b.providerName(kind)
	if name == "" {
		return nil, fmt.Errorf("no %s provider configured", kind)
	}
	inst, err := b.plugins.Create(kind, name, b.cfgs[kind])
	if err != nil {
		return nil, err
	}
	b.warm[kind] = inst
	return inst, nil
}

func (b *Builder) providerName(kind string) string {
	switch kind {
	case plugin.KindSTT:
		return b.names.STT
	case plugin.KindTTS:
		return b.names.TTS
	case plugin.KindLLM:
		return b.names.LLM
	case plugin.KindVAD:
		return b.names.VAD
	}
	return ""
}

// Build assembles the pipeline for one session. The agent configuration
// selects the enabled tools; names the registry does not hold are
// dropped by Resolve, so a stale dashboard entry cannot break assembly.
func (b *Builder) Build(cfg config.AgentConfig) (*Pipeline, error) {
	sttInst, err := b.provider(plugin.KindSTT)
	if err != nil {
		return nil, fmt.Errorf("build stt: %w", err)
	}
	ttsInst, err := b.provider(plugin.KindTTS)
	if err != nil {
		return nil, fmt.Errorf("build tts: %w", err)
	}
	llmInst, err := b.provider(plugin.KindLLM)
	if err != nil {
		return nil, fmt.Errorf("build llm: %w", err)
	}
	vadInst, err := b.provider(plugin.KindVAD)
	if err != nil {
		return nil, fmt.Errorf("build vad: %w", err)
	}

	sttProv, ok := sttInst.(stt.STT)
	if !ok {
		return nil, fmt.Errorf("provider %q is not an STT", b.names.STT)
	}
	ttsProv, ok := ttsInst.(tts.TTS)
	if !ok {
		return nil, fmt.Errorf("provider %q is not a TTS", b.names.TTS)
	}
	llmProv, ok := llmInst.(llm.LLM)
	if !ok {
		return nil, fmt.Errorf("provider %q is not an LLM", b.names.LLM)
	}
	vadProv, ok := vadInst.(vad.VAD)
	if !ok {
		return nil, fmt.Errorf("provider %q is not a VAD", b.names.VAD)
	}

	tools := b.tools.Resolve(cfg.ToolsEnabled)
	b.logger.Info("pipeline assembled",
		slog.String("voice_id", cfg.VoiceID),
		slog.Int("tools", len(tools)))

	return &Pipeline{
		STT:    sttProv,
		TTS:    ttsProv,
		LLM:    llmProv,
		VAD:    vadProv,
		Tools:  tools,
		Config: cfg,
	}, nil
}
