package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/pixledger/internal/config"
	"github.com/user/pixledger/internal/session"
	"github.com/user/pixledger/internal/state"
	"github.com/user/pixledger/internal/types"
	"github.com/user/pixledger/pkg/backend"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "pixledger",
	Short:         "Client for the pixledger image ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath(), "config file path")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", backend.Message(err))
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// app is what every command needs: config, the session and a backend client
// that reads its token from that session.
type app struct {
	cfg     *config.Config
	session *session.Store
	client  *backend.Client
}

func newApp() (*app, error) {
	cfg := loadConfig()
	setupLogging(cfg)

	var slot types.TokenSlot
	if cfg.DataDir == "" {
		slog.Warn("no data_dir configured, session will not persist")
		slot = state.NewMemoryTokenSlot()
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		slot = state.NewTokenSlot(cfg.DataDir)
	}

	store, err := session.New(slot)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	client := backend.New(&backend.Config{
		APIURL:       cfg.API.BaseURL,
		GeneratorURL: cfg.Generator.BaseURL,
		Timeout:      cfg.Timeout(),
	}, store)

	return &app{cfg: cfg, session: store, client: client}, nil
}

// username returns the logged-in user's name, asking the API when only a
// token is stored.
func (a *app) username(ctx context.Context) (string, error) {
	if err := a.session.Restore(ctx, a.client); err != nil {
		return "", err
	}
	cred, ok := a.session.Credential()
	if !ok {
		return "", backend.ErrUnauthorized
	}
	return cred.Username, nil
}
