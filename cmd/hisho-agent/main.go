// Command hisho-agent serves the agent runtime over HTTP so the webhook
// process can run it remotely via the AGENT_ENDPOINT setting.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"

	"github.com/hisho-bot/hisho/internal/agent"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	addr := flag.String("addr", envOr("AGENT_ADDR", ":8090"), "HTTP listen address")
	flag.Parse()

	opts := []agent.RuntimeOption{agent.WithAPIKey(os.Getenv("OPENAI_API_KEY"))}
	if m := os.Getenv("OPENAI_MODEL"); m != "" {
		opts = append(opts, agent.WithModel(openai.ChatModel(m)))
	}
	if u := os.Getenv("MAPS_BASE_URL"); u != "" {
		opts = append(opts, agent.WithMapsBaseURL(u))
	}
	if k := os.Getenv("TAVILY_API_KEY"); k != "" {
		opts = append(opts, agent.WithTavilyAPIKey(k))
	}

	rt, err := agent.NewRuntime(opts...)
	if err != nil {
		slog.Error("failed to build agent runtime", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hisho agent runtime listening", "addr", *addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		slog.Error("agent runtime server failed", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
