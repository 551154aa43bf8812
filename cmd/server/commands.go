package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"register-shift-service/internal/api"
	"register-shift-service/internal/auth"
	"register-shift-service/internal/logger"
	"register-shift-service/internal/report"
	"register-shift-service/internal/shift"
)

const shutdownTimeout = 10 * time.Second

var (
	openBalance   string
	openNote      string
	openPermanent bool
	closeNote     string
	summaryXLSX   string
	tokenRole     string
	tokenTTL      time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the reconcile scheduler",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Report whether the operator must open or close a shift",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a shift with the given opening balance",
	Args:  cobra.NoArgs,
	RunE:  runOpen,
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the operator's current shift",
	Args:  cobra.NoArgs,
	RunE:  runClose,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the close summary of the current shift",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an operator token signed with server.jwt_secret",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	openCmd.Flags().StringVar(&openBalance, "balance", "", "Opening cash balance (required)")
	openCmd.Flags().StringVar(&openNote, "note", "", "Free-text note")
	openCmd.Flags().BoolVar(&openPermanent, "permanent", false, "Open a permanent shift")
	openCmd.MarkFlagRequired("balance")

	closeCmd.Flags().StringVar(&closeNote, "note", "", "Free-text note")

	summaryCmd.Flags().StringVar(&summaryXLSX, "xlsx", "", "Also write the summary to this .xlsx file")

	tokenCmd.Flags().StringVar(&tokenRole, "role", "cashier", "Role claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "Token lifetime")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret is required to serve the API")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewHandler(a.coordinator, a.cfg.Server.JWTSecret, a.loc)
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  a.cfg.Server.GetReadTimeout(),
		WriteTimeout: a.cfg.Server.GetWriteTimeout(),
	}

	scheduler := shift.NewScheduler(a.cfg.Scheduler, a.coordinator, a.cfg.Remote.Token, a.loc)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer scheduler.Stop()

	logger.Log.Info("Starting register shift service", zap.String("device_id", a.cfg.Terminal.DeviceID))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info("Server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runReconcile(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.operator()
	if err != nil {
		return err
	}

	ctx := auth.WithCredential(cmd.Context(), a.credential())
	decision, err := a.coordinator.Reconcile(ctx, user)
	if err != nil {
		logger.Log.Warn("Reconcile reported a cache failure", zap.Error(err))
	}
	return printJSON(cmd, map[string]interface{}{
		"need_open":  decision.NeedOpen,
		"need_close": decision.NeedClose,
		"action":     decision.String(),
	})
}

func runOpen(cmd *cobra.Command, args []string) error {
	balance, err := decimal.NewFromString(openBalance)
	if err != nil {
		return fmt.Errorf("invalid --balance %q: %w", openBalance, err)
	}

	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.operator()
	if err != nil {
		return err
	}

	ctx := auth.WithCredential(cmd.Context(), a.credential())
	rec, err := a.coordinator.Open(ctx, user, balance, openNote, openPermanent)
	if rec != nil {
		if perr := printJSON(cmd, rec); perr != nil {
			return perr
		}
	}
	return err
}

func runClose(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.operator()
	if err != nil {
		return err
	}

	ctx := auth.WithCredential(cmd.Context(), a.credential())
	if err := a.coordinator.Close(ctx, user, closeNote); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "shift closed")
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.operator()
	if err != nil {
		return err
	}

	ctx := auth.WithCredential(cmd.Context(), a.credential())
	summary, err := a.coordinator.Summarize(ctx, user)
	if err != nil {
		return err
	}
	if summary == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "no open shift")
		return nil
	}

	if summaryXLSX != "" {
		f, err := os.Create(summaryXLSX)
		if err != nil {
			return err
		}
		if err := report.WriteCloseSummary(f, summary, a.loc); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Log.Info("Close summary exported", zap.String("path", summaryXLSX))
	}
	return printJSON(cmd, summary)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret is not set")
	}
	if userID == "" {
		return errors.New("--user is required")
	}

	signed, err := auth.IssueToken([]byte(cfg.Server.JWTSecret), userID, tokenRole, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), signed)
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
