package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"upqueue/internal/api"
	"upqueue/internal/config"
	"upqueue/internal/logging"
	"upqueue/internal/render"
	"upqueue/internal/statussync"
	"upqueue/internal/websocket"
)

// flag name by config key
var flagBindings = map[string]string{
	"server_url":         "server",
	"session_token":      "token",
	"session_cookie":     "cookie",
	"log_level":          "log-level",
	"upload_concurrency": "concurrency",
	"manifest_policy":    "policy",
	"poll_interval":      "poll",
}

var rootCmd = &cobra.Command{
	Use:           "upqueue",
	Short:         "Upload files for processing and follow their queue status",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (json, yaml or toml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().StringP("server", "s", "", "backend base url")
	rootCmd.PersistentFlags().StringP("token", "t", "", "session token")
	rootCmd.PersistentFlags().String("cookie", "", "session cookie name")
	rootCmd.PersistentFlags().String("log-level", "", "DEBUG, INFO, WARN or ERROR")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.ClientConfig, error) {
	v := viper.New()

	if f := cmd.Flag("env-file"); f != nil && f.Value.String() != "" {
		config.LoadDotEnv(f.Value.String())
	}

	if f := cmd.Flag("config"); f != nil && f.Value.String() != "" {
		v.SetConfigFile(f.Value.String())
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config read '%s': %w", f.Value.String(), err)
		}
	}

	for key, name := range flagBindings {
		if f := cmd.Flag(name); f != nil && f.Changed {
			v.BindPFlag(key, f)
		}
	}

	return config.LoadClientConfig(v)
}

func newClient(cfg *config.ClientConfig) (*api.Client, error) {
	return api.New(api.Options{
		BaseURL:       cfg.ServerURL,
		SessionCookie: cfg.SessionCookie,
		SessionToken:  cfg.SessionToken,
		Timeout:       cfg.RequestTimeout,
	})
}

func newStatusSync(client *api.Client, cfg *config.ClientConfig, log *slog.Logger, onChange func([]render.Row)) (*statussync.Sync, error) {
	pushURL, err := client.PushURL()
	if err != nil {
		return nil, err
	}
	listener := websocket.NewListener(pushURL, client.SessionHeader(), log)

	return statussync.New(client, statussync.WebsocketChannel(listener), statussync.Options{
		PollInterval:      cfg.PollInterval,
		ReconnectInitial:  cfg.Reconnect.Initial,
		ReconnectMax:      cfg.Reconnect.Max,
		ReconnectAttempts: cfg.Reconnect.Attempts,
		OnChange:          onChange,
		OnStateChange: func(state statussync.State) {
			log.Info("Status channel", "state", state)
		},
		Logger: log,
	}), nil
}

func setup(cmd *cobra.Command) (*config.ClientConfig, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.Setup(cfg.LogLevel), nil
}
