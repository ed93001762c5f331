// Command cardvox is the main entry point for the cardvox voice review server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/cardvox/cardvox/internal/api"
	"github.com/cardvox/cardvox/internal/assist"
	"github.com/cardvox/cardvox/internal/command"
	"github.com/cardvox/cardvox/internal/config"
	"github.com/cardvox/cardvox/internal/health"
	"github.com/cardvox/cardvox/internal/observe"
	"github.com/cardvox/cardvox/internal/recog/wssource"
	"github.com/cardvox/cardvox/internal/session"
	"github.com/cardvox/cardvox/pkg/cardctl"
	"github.com/cardvox/cardvox/pkg/speech"
	"github.com/cardvox/cardvox/pkg/speech/elevenlabs"

	paplayer "github.com/cardvox/cardvox/pkg/audioout/portaudio"
)

// version is stamped by the build; "dev" for local builds.
var version = "dev"

const defaultListenAddr = ":8484"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "cardvox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cardvox: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so config hot reload can adjust it.
	logLevel := new(slog.LevelVar)
	logLevel.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("cardvox starting",
		"version", version,
		"config", *configPath,
		"listen_addr", listenAddr(cfg),
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "cardvox",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Card control client ───────────────────────────────────────────────────
	cards := cardctl.New(cfg.Cards.Endpoint,
		cardctl.WithTimeout(time.Duration(cfg.Cards.TimeoutSeconds)*time.Second))

	// ── Speech synthesis (optional) ───────────────────────────────────────────
	synth, closePlayer, err := buildSynthesizer(cfg.Speech)
	if err != nil {
		slog.Error("failed to initialise speech synthesis", "err", err)
		return 1
	}
	if closePlayer != nil {
		defer closePlayer()
	}

	// ── Session controller ────────────────────────────────────────────────────
	resolver := newResolver(cfg.Lexicon)
	source := wssource.New(wssource.WithLanguage(cfg.Recognition.Language))

	controller, err := session.NewController(session.Config{
		Cards:        cards,
		Speech:       synth,
		Resolver:     resolver,
		Source:       source,
		RestartDelay: time.Duration(cfg.Recognition.RestartDelayMS) * time.Millisecond,
	})
	if err != nil {
		slog.Error("failed to initialise session controller", "err", err)
		return 1
	}

	// ── Assistant tool server ─────────────────────────────────────────────────
	assistSrv, err := assist.New(cards, controller)
	if err != nil {
		slog.Error("failed to initialise assistant tools", "err", err)
		return 1
	}
	assistHandler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return assistSrv.MCP() }, nil)

	// ── HTTP server ───────────────────────────────────────────────────────────
	checkers := []health.Checker{health.Service("cards", cards)}
	if synth != nil {
		checkers = append(checkers, health.Service("speech", synth))
	}

	server, err := api.New(api.Config{
		Controller: controller,
		Recognizer: source,
		Assist:     assistHandler,
		Health:     health.New(checkers...),
	})
	if err != nil {
		slog.Error("failed to initialise http server", "err", err)
		return 1
	}
	defer server.Close()

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			logLevel.Set(diff.NewLogLevel.Level())
			slog.Info("log level updated", "log_level", diff.NewLogLevel)
		}
		if diff.LexiconChanged {
			controller.SetResolver(newResolver(new.Lexicon))
			slog.Info("command lexicon updated")
		}
	})
	if err != nil {
		slog.Error("failed to watch config file", "err", err)
		return 1
	}
	defer watcher.Stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, synth != nil)

	httpServer := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")

		if summary, err := controller.Stop(); err == nil {
			slog.Info("session closed on shutdown",
				"cards_reviewed", summary.CardsReviewed,
				"accuracy", summary.Accuracy)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Component wiring ──────────────────────────────────────────────────────────

// buildSynthesizer constructs the speech stack when credentials are present.
// Returns a nil synthesizer when speech is not configured; the session then
// runs without read-aloud. The API key falls back to the ELEVENLABS_API_KEY
// environment variable so it can stay out of the config file.
func buildSynthesizer(cfg config.SpeechConfig) (speech.Synthesizer, func(), error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if apiKey == "" || cfg.VoiceID == "" {
		slog.Info("speech synthesis not configured, read-aloud disabled")
		return nil, nil, nil
	}

	player, err := paplayer.New()
	if err != nil {
		return nil, nil, fmt.Errorf("audio output: %w", err)
	}

	var opts []elevenlabs.Option
	if cfg.Model != "" {
		opts = append(opts, elevenlabs.WithModel(cfg.Model))
	}
	if cfg.TextLimit > 0 {
		opts = append(opts, elevenlabs.WithTextLimit(cfg.TextLimit))
	}
	synth, err := elevenlabs.New(apiKey, cfg.VoiceID, player, opts...)
	if err != nil {
		player.Close()
		return nil, nil, err
	}
	closePlayer := func() {
		if err := player.Close(); err != nil {
			slog.Warn("audio output close error", "err", err)
		}
	}
	return synth, closePlayer, nil
}

func newResolver(cfg config.LexiconConfig) *command.Resolver {
	lex := command.DefaultLexicon().Extend(cfg.Extensions())
	return command.NewResolver(lex, command.WithFuzzyDistance(cfg.FuzzyDistance))
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return defaultListenAddr
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, speechEnabled bool) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         cardvox — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Card service", cfg.Cards.Endpoint)
	if speechEnabled {
		printRow("Read-aloud", "enabled")
	} else {
		printRow("Read-aloud", "(disabled)")
	}
	printRow("Listen addr", listenAddr(cfg))
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(default)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}
