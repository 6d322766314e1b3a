// ABOUTME: Entry point for the docbridge document bot
// ABOUTME: Wires the Telegram webhook, conversation store, and Claude client

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/rkartside/docbridge/internal/bot"
	"github.com/rkartside/docbridge/internal/chat"
	"github.com/rkartside/docbridge/internal/claude"
	"github.com/rkartside/docbridge/internal/config"
	"github.com/rkartside/docbridge/internal/conversation"
	"github.com/rkartside/docbridge/internal/dedupe"
	"github.com/rkartside/docbridge/internal/docnum"
	"github.com/rkartside/docbridge/internal/httpapi"
	"github.com/rkartside/docbridge/internal/observability"
	"github.com/rkartside/docbridge/internal/store"
	"github.com/rkartside/docbridge/internal/telegram"
	"github.com/rkartside/docbridge/internal/transcribe"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _            _          _     _
  __| | ___   ___| |__  _ __(_) __| | __ _  ___
 / _' |/ _ \ / __| '_ \| '__| |/ _' |/ _' |/ _ \
| (_| | (_) | (__| |_) | |  | | (_| | (_| |  __/
 \__,_|\___/ \___|_.__/|_|  |_|\__,_|\__, |\___|
                                     |___/
`

// getConfigPath returns the path to the docbridge config file.
// Priority: DOCBRIDGE_CONFIG env var > XDG_CONFIG_HOME/docbridge/docbridge.yaml > ~/.config/docbridge/docbridge.yaml
func getConfigPath() string {
	if envPath := os.Getenv("DOCBRIDGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "docbridge.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "docbridge", "docbridge.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: docbridge <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the webhook server")
		fmt.Println("  health   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Println()

	logger.Info("starting docbridge",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	db, err := store.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	tg := telegram.NewClient(cfg.Telegram.BotToken, "", logger)
	identity, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("fetching bot identity: %w", err)
	}
	logger.Info("bot identity resolved", "user_id", identity.UserID, "username", identity.Username)

	conversations := conversation.NewStore(cfg.Conversations.TTL, logger)
	conversations.SetEvictHook(func(key chat.Key) {
		if err := db.DeleteRoot(context.Background(), key.ChatID, key.RootMessageID); err != nil {
			logger.Warn("pruning registry for expired session failed", "key", key.String(), "error", err)
		}
	})
	conversations.StartJanitor(ctx, cfg.Conversations.SweepInterval)

	client := claude.NewClient(claude.ClientConfig{
		APIKey:    cfg.Anthropic.APIKey,
		SkillID:   cfg.Anthropic.SkillID,
		Model:     cfg.Anthropic.Model,
		MaxTokens: cfg.Anthropic.MaxTokens,
	}, logger)
	driver := claude.NewDriver(client, cfg.Conversations.MaxContinuations, cfg.Conversations.InvocationTimeout, logger)

	var transcriber transcribe.Transcriber
	if cfg.OpenAI.APIKey != "" {
		transcriber = transcribe.NewOpenAITranscriber(cfg.OpenAI.APIKey, tg, logger)
	} else {
		logger.Warn("openai.api_key not set, voice notes disabled")
	}

	metrics := observability.NewMetrics("docbridge")

	handler := bot.NewHandler(bot.HandlerParams{
		Bot:           identity,
		MaxReplyDepth: cfg.Conversations.MaxReplyDepth,
		Conversations: conversations,
		Registry:      db,
		Assigner:      docnum.NewAssigner(db, logger),
		Driver:        driver,
		Artifacts:     client,
		Sender:        tg,
		Transcriber:   transcriber,
		Metrics:       metrics,
		Logger:        logger,
	})

	updates := dedupe.New(time.Hour, 10000)
	defer updates.Close()

	srv := httpapi.New(cfg, handler, updates, metrics, logger)
	return srv.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("unhealthy: %s", body.Status)
	}

	color.Green("✓ docbridge is healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
