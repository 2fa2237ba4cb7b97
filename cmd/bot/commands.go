package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/bot"
	"github.com/GustavoLR548/news-relay-bot/internal/schedule"
	"github.com/GustavoLR548/news-relay-bot/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	flagEnvFile  string
	flagRunNow   bool
	flagAt       string
	flagTimezone string
	flagSchedule string
)

var rootCmd = &cobra.Command{
	Use:          "news-relay-bot",
	Short:        "Relays news articles to a chat channel on a schedule",
	Long:         "news-relay-bot scrapes configured news sources, formats the newest article as a caption, rewrites it with a language model and publishes it to Telegram or Discord.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	runCmd.Flags().BoolVar(&flagRunNow, "now", false, "trigger one run immediately after start")

	scheduleCmd.Flags().StringVar(&flagAt, "at", "", "time of day (HH:MM) to evaluate, defaults to now")
	scheduleCmd.Flags().StringVar(&flagTimezone, "timezone", envOr("TIMEZONE", "Europe/Moscow"), "reference timezone")
	scheduleCmd.Flags().StringVar(&flagSchedule, "file", os.Getenv("SCHEDULE_FILE"), "YAML schedule file, built-in table when empty")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(scheduleCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduler and the HTTP server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, flagEnvFile)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.cfg.Debug {
			gin.SetMode(gin.ReleaseMode)
		}

		runner, err := bot.NewRunner(a.ctrl, a.cfg.CronSpec, a.cfg.Timezone, a.log.Named("cron"))
		if err != nil {
			return err
		}

		srv := server.New(server.Config{
			Addr:       ":" + a.cfg.Port,
			AdminToken: a.cfg.AdminToken,
			Pipeline:   a.ctrl,
			Stats:      a.ctrl.Stats(),
			State:      a.state,
			Log:        a.log.Named("http"),
		})

		srvErr := make(chan error, 1)
		go func() {
			srvErr <- srv.ListenAndServe()
		}()

		runner.Start()
		if flagRunNow {
			a.ctrl.Trigger()
		}

		a.log.Info("Bot is now running. Press CTRL+C to exit.")

		select {
		case <-ctx.Done():
			a.log.Info("Shutting down...")
		case err = <-srvErr:
			if err != nil {
				a.log.Errorf("HTTP server failed: %v", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.log.Warnf("Error shutting down HTTP server: %v", shutdownErr)
		}
		runner.Stop()

		return err
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Perform a single pipeline run and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, flagEnvFile)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(ctx, a.cfg.RunTimeout)
		defer cancel()

		outcome, err := a.ctrl.RunOnce(ctx)
		fmt.Fprintf(cmd.OutOrStdout(), "outcome: %s\n", outcome)
		return err
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the source the schedule selects for a time of day",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := time.LoadLocation(flagTimezone)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", flagTimezone, err)
		}

		entries, err := schedule.LoadFile(flagSchedule)
		if err != nil {
			return err
		}

		selector := schedule.NewSelector(loc)
		now, err := evaluationTime(flagAt, time.Now().In(selector.Location()))
		if err != nil {
			return err
		}

		source, ok := selector.Select(entries, now)
		if !ok {
			return fmt.Errorf("schedule has no usable times")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", now.Format("15:04"), source)
		return nil
	},
}

// evaluationTime returns now with its clock replaced by at (H:MM or HH:MM).
func evaluationTime(at string, now time.Time) (time.Time, error) {
	if at == "" {
		return now, nil
	}
	minutes, err := schedule.ParseTime(at)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, now.Location()), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
