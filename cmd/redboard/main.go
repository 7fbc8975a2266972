// redboard is the daily A-share market review service: it aggregates the
// limit-up ecology, scores market sentiment and sector rotation, and serves
// the results over HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/hsliang/redboard/internal/application"
	"github.com/hsliang/redboard/internal/application/scheduler"
	"github.com/hsliang/redboard/internal/cache"
	"github.com/hsliang/redboard/internal/config"
	"github.com/hsliang/redboard/internal/infrastructure/db"
	httpserver "github.com/hsliang/redboard/internal/interfaces/http"
	"github.com/hsliang/redboard/internal/metrics"
	"github.com/hsliang/redboard/internal/notify"
	"github.com/hsliang/redboard/internal/persistence"
	"github.com/hsliang/redboard/internal/persistence/memory"
	"github.com/hsliang/redboard/internal/source"
	"github.com/hsliang/redboard/internal/source/eastmoney"
)

const (
	appName = "redboard"
	version = "v1.0.0"
)

func main() {
	setupLogging()

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Daily A-share market review service",
		Version: version,
		Long: `redboard aggregates the daily limit-up ecology of the A-share market,
scores market sentiment and sector rotation, and persists a review
snapshot per trading day.`,
	}
	addConfigFlag(rootCmd.PersistentFlags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the review API server",
		Long:  "Starts the HTTP server with the review API, metrics and the websocket progress relay.",
		RunE:  runServe,
	}

	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Generate and store one daily review",
		Long:  "Runs the review pipeline for a trade date and prints the stored record as JSON.",
		RunE:  runReview,
	}
	reviewCmd.Flags().String("date", "", "Trade date as YYYYMMDD (default today)")

	emotionCmd := &cobra.Command{
		Use:   "emotion",
		Short: "Print the live market sentiment snapshot",
		RunE:  runEmotion,
	}

	rotationCmd := &cobra.Command{
		Use:   "rotation",
		Short: "Print the live sector rotation analysis",
		RunE:  runRotation,
	}

	rootCmd.AddCommand(serveCmd, reviewCmd, emotionCmd, rotationCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func addConfigFlag(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to the YAML config file")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

// buildService wires the source, cache, store and service from config. The
// returned cleanup closes whatever was opened.
func buildService(cfg config.Config, bus *notify.Bus) (*application.ReviewService, func(), error) {
	eps, err := eastmoney.LoadEndpoints(cfg.Source.EndpointsFile)
	if err != nil {
		return nil, nil, err
	}

	src := eastmoney.NewClient(eps,
		eastmoney.WithLogger(log.Logger),
		eastmoney.WithRateLimit(cfg.Source.RatePerSecond, cfg.Source.Burst),
	)

	cleanup := func() {}
	reg := metrics.Default()

	wrapped := source.RowSource(src)
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sectorCache := cache.NewSectorCache(rdb, cfg.Redis.TTL, reg, log.Logger)
		wrapped = cache.WrapSource(src, sectorCache)
		prev := cleanup
		cleanup = func() {
			rdb.Close()
			prev()
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("sector cache enabled")
	}

	var store persistence.ReviewStore
	manager, err := db.NewManager(cfg.Database)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if manager.IsEnabled() {
		store = manager.Store()
		prev := cleanup
		cleanup = func() {
			manager.Close()
			prev()
		}
		log.Info().Msg("postgres persistence enabled")
	} else {
		store = memory.NewStore()
		log.Warn().Msg("no database configured, reviews held in memory only")
	}

	svc := application.NewReviewService(wrapped, store, bus, reg,
		application.WithCallTimeout(cfg.Source.Timeout))
	return svc, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bus := notify.NewBus()
	svc, cleanup, err := buildService(cfg, bus)
	if err != nil {
		return err
	}
	defer cleanup()

	server, err := httpserver.NewServer(cfg.Server, svc, bus)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Schedule.Enabled {
		sched, err := scheduler.New(cfg.Schedule.DailyReviewTime, func(ctx context.Context, tradeDate string) {
			if _, err := svc.Generate(ctx, tradeDate, "daily"); err != nil {
				log.Error().Err(err).Str("date", tradeDate).Msg("scheduled review failed")
			}
		}, scheduler.WithLogger(log.Logger))
		if err != nil {
			return err
		}
		go sched.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	date, _ := cmd.Flags().GetString("date")

	svc, cleanup, err := buildService(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	rec, err := svc.Generate(context.Background(), date, "")
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func runEmotion(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	return printJSON(svc.Emotion(context.Background()))
}

func runRotation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	svc, cleanup, err := buildService(cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	out, err := svc.Rotation(context.Background())
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
