package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"

	"github.com/hisho-bot/hisho/internal/agent"
	"github.com/hisho-bot/hisho/internal/api"
	"github.com/hisho-bot/hisho/internal/auth"
	"github.com/hisho-bot/hisho/internal/bot"
	"github.com/hisho-bot/hisho/internal/line"
	"github.com/hisho-bot/hisho/internal/store"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for hisho state data
	DefaultStateDir = "/var/lib/hisho"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "hisho.db"
	// DefaultAPIAddr is the default HTTP listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("hisho failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("hisho exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL        string
	StateDir           string
	APIAddr            string
	ChannelSecret      string
	ChannelToken       string
	GoogleClientID     string
	GoogleClientSecret string
	RedirectURL        string
	StateSecret        string
	AgentEndpoint      string
	OpenAIKey          string
	OpenAIModel        string
	TavilyKey          string
	MapsBaseURL        string
	StaticMapsKey      string
}

// Flags holds command line flag values
type Flags struct {
	dbDSN         *string
	apiAddr       *string
	agentEndpoint *string
	config        Config
}

func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StateDir:           os.Getenv("HISHO_STATE_DIR"),
		APIAddr:            os.Getenv("API_ADDR"),
		ChannelSecret:      os.Getenv("LINE_CHANNEL_SECRET"),
		ChannelToken:       os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		RedirectURL:        os.Getenv("OAUTH_REDIRECT_URL"),
		StateSecret:        os.Getenv("OAUTH_STATE_SECRET"),
		AgentEndpoint:      os.Getenv("AGENT_ENDPOINT"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        os.Getenv("OPENAI_MODEL"),
		TavilyKey:          os.Getenv("TAVILY_API_KEY"),
		MapsBaseURL:        os.Getenv("MAPS_BASE_URL"),
		StaticMapsKey:      os.Getenv("GOOGLE_STATIC_MAPS_KEY"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No HISHO_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"HISHO_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"LINE_CHANNEL_SECRET_SET", config.ChannelSecret != "",
		"LINE_CHANNEL_ACCESS_TOKEN_SET", config.ChannelToken != "",
		"GOOGLE_CLIENT_ID_SET", config.GoogleClientID != "",
		"AGENT_ENDPOINT", config.AgentEndpoint,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TAVILY_API_KEY_SET", config.TavilyKey != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN: a file path for SQLite or a postgres:// URL"),
		apiAddr:       flag.String("addr", config.APIAddr, "HTTP listen address"),
		agentEndpoint: flag.String("agent-endpoint", config.AgentEndpoint, "remote agent endpoint; empty runs the agent in-process"),
		config:        config,
	}
	flag.Parse()
	return flags
}

func run(flags Flags) error {
	cfg := flags.config
	if cfg.ChannelSecret == "" || cfg.ChannelToken == "" {
		return errors.New("LINE_CHANNEL_SECRET and LINE_CHANNEL_ACCESS_TOKEN are required")
	}

	st, err := openStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	lineClient, err := line.NewClient(cfg.ChannelSecret, cfg.ChannelToken)
	if err != nil {
		return err
	}

	authProvider := auth.NewProvider(st,
		auth.WithClientCredentials(cfg.GoogleClientID, cfg.GoogleClientSecret),
		auth.WithRedirectURL(cfg.RedirectURL),
		auth.WithStateSecret(cfg.StateSecret),
	)

	invoker, err := buildInvoker(flags)
	if err != nil {
		return err
	}

	controller := bot.NewController(st, authProvider, invoker, lineClient,
		bot.WithStaticMapsKey(cfg.StaticMapsKey))

	server := api.NewServer(lineClient, controller, authProvider, lineClient)
	return serve(*flags.apiAddr, server.Handler())
}

// openStore picks the backend from the DSN shape: postgres URLs and
// key=value DSNs go to PostgreSQL, everything else is a SQLite path.
func openStore(dsn string) (store.Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		slog.Info("Opening PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, err
	}
	slog.Info("Opening SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildInvoker returns either an HTTP client for a remote agent runtime or
// an in-process runtime when no endpoint is configured.
func buildInvoker(flags Flags) (agent.Invoker, error) {
	if *flags.agentEndpoint != "" {
		slog.Info("Using remote agent runtime", "endpoint", *flags.agentEndpoint)
		return agent.NewClient(*flags.agentEndpoint), nil
	}

	cfg := flags.config
	opts := []agent.RuntimeOption{agent.WithAPIKey(cfg.OpenAIKey)}
	if cfg.OpenAIModel != "" {
		opts = append(opts, agent.WithModel(openai.ChatModel(cfg.OpenAIModel)))
	}
	if cfg.MapsBaseURL != "" {
		opts = append(opts, agent.WithMapsBaseURL(cfg.MapsBaseURL))
	}
	if cfg.TavilyKey != "" {
		opts = append(opts, agent.WithTavilyAPIKey(cfg.TavilyKey))
	}
	slog.Info("Using in-process agent runtime")
	return agent.NewRuntime(opts...)
}

// serve runs the HTTP server until SIGINT/SIGTERM, then drains.
func serve(addr string, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hisho API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
