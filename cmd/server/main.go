package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"register-shift-service/internal/config"
	"register-shift-service/internal/logger"
	"register-shift-service/internal/remote"
	"register-shift-service/internal/shift"
	"register-shift-service/internal/store"
)

var (
	configPath string
	token      string
	userID     string
)

var rootCmd = &cobra.Command{
	Use:   "register-shift",
	Short: "Register shift coordinator for a POS terminal",
	Long: `register-shift keeps a terminal's register shift in step with the shift server.

Before selling, the terminal asks whether the operator must open a shift, or
close yesterday's shift first. When the server is unreachable the answer comes
from the locally cached shift.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Operator bearer token (default: remote.token)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Operator user id (default: scheduler.user_id)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired components shared by every command.
type app struct {
	cfg         *config.Config
	loc         *time.Location
	store       store.Store
	coordinator *shift.Coordinator
}

func loadConfig() (*config.Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, nil
}

func bootstrap(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Terminal.Location()
	if err != nil {
		return nil, err
	}

	stateStore, err := store.New(cmd.Context(), cfg.StateStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to init state store: %w", err)
	}

	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.GetTimeout(), loc)
	coordinator := shift.NewCoordinator(client, stateStore, cfg.Terminal.DeviceID, shift.WithLocation(loc))

	logger.Log.Debug("Coordinator ready",
		zap.String("device_id", cfg.Terminal.DeviceID),
		zap.String("storage", cfg.StateStorage.Type),
		zap.String("timezone", loc.String()),
	)

	return &app{cfg: cfg, loc: loc, store: stateStore, coordinator: coordinator}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Log.Warn("Failed to close state store", zap.Error(err))
	}
}

func (a *app) credential() string {
	if token != "" {
		return token
	}
	return a.cfg.Remote.Token
}

func (a *app) operator() (string, error) {
	if userID != "" {
		return userID, nil
	}
	if a.cfg.Scheduler.UserID != "" {
		return a.cfg.Scheduler.UserID, nil
	}
	return "", fmt.Errorf("no operator: pass --user or set scheduler.user_id")
}
