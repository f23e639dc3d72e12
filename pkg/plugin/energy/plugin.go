package energy

import (
	"log/slog"

	"github.com/truvo-ai/voice-agent-go/pkg/plugin"
)

// Register adds the energy VAD provider to the given registry.
func Register(r *plugin.Registry) {
	r.Register(plugin.KindVAD, "energy", func(cfg map[string]any) (any, error) {
		logger, _ := cfg["logger"].(*slog.Logger)
		var opts []Option
		if t, ok := cfg["threshold"].(float64); ok {
			opts = append(opts, WithThreshold(t))
		}
		return NewVAD(logger, opts...), nil
	})
}
