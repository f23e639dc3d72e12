package main

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/truvo-ai/voice-agent-go/internal/worker"
	"github.com/truvo-ai/voice-agent-go/pkg/config"
	"github.com/truvo-ai/voice-agent-go/pkg/plugin"
	"github.com/truvo-ai/voice-agent-go/pkg/plugin/deepgram"
	"github.com/truvo-ai/voice-agent-go/pkg/plugin/elevenlabs"
	"github.com/truvo-ai/voice-agent-go/pkg/plugin/energy"
	pluginfake "github.com/truvo-ai/voice-agent-go/pkg/plugin/fake"
	"github.com/truvo-ai/voice-agent-go/pkg/plugin/openai"
	"github.com/truvo-ai/voice-agent-go/pkg/schedule"
	"github.com/truvo-ai/voice-agent-go/pkg/session"
	"github.com/truvo-ai/voice-agent-go/pkg/tool"
	"github.com/truvo-ai/voice-agent-go/pkg/turn"
	"github.com/truvo-ai/voice-agent-go/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "truvo-agent",
	Short: "Truvo voice agent - a real-time conversational leasing assistant",
	Long: `truvo-agent answers calls for Truvo Properties: it joins a room per
caller, resolves the agent's personality from the dashboard, and holds a
spoken conversation with interruption handling and scheduling tools.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker management commands",
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a worker serving dispatched sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		token, _ := cmd.Flags().GetString("token")
		useFakes, _ := cmd.Flags().GetBool("fake-providers")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		logger := setupLogger()
		settings := config.Load()

		logger.Info("starting worker",
			slog.String("service", "truvo-agent"),
			slog.String("version", version.Version),
			slog.String("commit", version.GitCommit),
			slog.String("url", url),
			slog.Bool("fake_providers", useFakes))

		if url == "" {
			return fmt.Errorf("--url is required")
		}
		if token == "" {
			return fmt.Errorf("--token is required")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if metricsAddr != "" {
			go serveMetrics(metricsAddr, logger)
		}

		w, err := createWorker(url, token, useFakes, settings, logger)
		if err != nil {
			return err
		}
		if err := w.Run(ctx); err != nil {
			logger.Error("worker failed", slog.String("error", err.Error()))
			return err
		}
		return nil
	},
}

var workerHealthzCmd = &cobra.Command{
	Use:   "healthz",
	Short: "Validate worker configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		settings := config.Load()

		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			return fmt.Errorf("--url is required for health check")
		}
		if settings.LiveKitURL == "" {
			return fmt.Errorf("LIVEKIT_URL is not set")
		}

		var warnings []string
		if settings.OpenAIAPIKey == "" {
			warnings = append(warnings, "OPENAI_API_KEY missing")
		}
		if settings.DeepgramAPIKey == "" {
			warnings = append(warnings, "DEEPGRAM_API_KEY missing")
		}
		if settings.ElevenAPIKey == "" {
			warnings = append(warnings, "ELEVEN_API_KEY missing")
		}
		if settings.CalAPIKey == "" {
			warnings = append(warnings, "CAL_API_KEY missing (tour booking runs in demo mode)")
		}
		if len(warnings) > 0 {
			logger.Warn("health check passed with warnings",
				slog.String("warnings", strings.Join(warnings, "; ")))
		} else {
			logger.Info("health check passed")
		}
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Tool registry commands",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the LLM-callable tools this build registers",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Load()
		registry := buildToolRegistry(settings, setupLogger())

		fmt.Printf("%-20s %s\n", "NAME", "PARAMETERS")
		fmt.Println("--------------------------------------------------")
		for _, name := range registry.Names() {
			for _, d := range registry.Resolve([]string{name}) {
				var params []string
				for _, p := range d.Params {
					label := p.Name
					if p.Required {
						label += "*"
					}
					params = append(params, label)
				}
				fmt.Printf("%-20s %s\n", d.Name, strings.Join(params, ", "))
			}
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configResolveCmd = &cobra.Command{
	Use:   "resolve [room-name]",
	Short: "Show the agent configuration a room name resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger()
		settings := config.Load()

		resolver := config.NewResolver(settings.DashboardURL, config.NewDefaults(), logger)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg := resolver.Resolve(ctx, args[0])
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"system_prompt": cfg.SystemPrompt,
			"greeting":      cfg.Greeting,
			"voice_id":      cfg.VoiceID,
			"tools_enabled": cfg.ToolsEnabled,
		})
	},
}

func setupLogger() *slog.Logger {
	logFormat := os.Getenv("TRUVO_LOG_FORMAT")
	logLevel := os.Getenv("TRUVO_LOG_LEVEL")

	opts := &slog.HandlerOptions{}
	switch logLevel {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	var handler slog.Handler
	if logFormat == "console" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func buildToolRegistry(settings config.Settings, logger *slog.Logger) *tool.Registry {
	registry := tool.NewRegistry()
	cal := schedule.NewCalClient(settings.CalAPIKey, settings.CalEventTypeID, logger)
	calendar := schedule.NewCalendarClient(settings.CalendarAPIKey, settings.CalendarID, logger)
	tool.RegisterBuiltins(registry, cal, calendar)
	return registry
}

func createWorker(url, token string, useFakes bool, settings config.Settings, logger *slog.Logger) (*worker.Worker, error) {
	plugins := plugin.NewRegistry()
	openai.Register(plugins)
	deepgram.Register(plugins)
	elevenlabs.Register(plugins)
	energy.Register(plugins)
	pluginfake.Register(plugins)

	names := session.ProviderNames{
		STT: "deepgram",
		TTS: "elevenlabs",
		LLM: "openai",
		VAD: "energy",
	}
	if useFakes {
		names = session.ProviderNames{STT: "fake", TTS: "fake", LLM: "fake", VAD: "fake"}
	}

	tools := buildToolRegistry(settings, logger)
	builder := session.NewBuilder(plugins, tools, names, logger)
	builder.SetProviderConfig(plugin.KindSTT, map[string]any{"api_key": settings.DeepgramAPIKey, "logger": logger})
	builder.SetProviderConfig(plugin.KindTTS, map[string]any{"api_key": settings.ElevenAPIKey, "logger": logger})
	builder.SetProviderConfig(plugin.KindLLM, map[string]any{"api_key": settings.OpenAIAPIKey, "logger": logger})
	builder.SetProviderConfig(plugin.KindVAD, map[string]any{"logger": logger})

	var detector turn.Detector
	if endpoint := os.Getenv("EOU_SERVICE_URL"); endpoint != "" {
		detector = turn.NewRemoteDetector(endpoint)
	}

	dispatch := worker.NewSessionDispatcher(worker.SessionDeps{
		Settings: settings,
		Builder:  builder,
		Tools:    tools,
		Resolver: config.NewResolver(settings.DashboardURL, config.NewDefaults(), logger),
		Policy:   turn.DefaultPolicy(),
		Detector: detector,
		Logger:   logger,
	})

	return worker.New(worker.Config{
		URL:      url,
		Token:    token,
		Dispatch: dispatch,
		Prewarm:  builder.Prewarm,
	}, logger), nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	logger.Info("metrics server listening", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", slog.String("error", err.Error()))
	}
}

func init() {
	workerRunCmd.Flags().String("url", "", "Dispatch server WebSocket URL")
	workerRunCmd.Flags().String("token", "", "Dispatch server token")
	workerRunCmd.Flags().Bool("fake-providers", false, "Use fake capability providers (no credentials needed)")
	workerRunCmd.Flags().String("metrics-addr", "", "Serve expvar metrics on this address (e.g. :8080)")

	workerHealthzCmd.Flags().String("url", "", "Dispatch server WebSocket URL")

	workerCmd.AddCommand(workerRunCmd, workerHealthzCmd)
	toolsCmd.AddCommand(toolsListCmd)
	configCmd.AddCommand(configResolveCmd)
	rootCmd.AddCommand(versionCmd, workerCmd, toolsCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
