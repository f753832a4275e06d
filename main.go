package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentracing/opentracing-go"

	"github.com/mailsink/mailsink/config"
	"github.com/mailsink/mailsink/internal/cron"
	"github.com/mailsink/mailsink/internal/database"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/repository"
	"github.com/mailsink/mailsink/internal/tracing"
	"github.com/mailsink/mailsink/internal/utils"
	"github.com/mailsink/mailsink/services"
	"github.com/mailsink/mailsink/services/sync"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mailsink <command>")
		fmt.Println("Commands:")
		fmt.Println("  migrate   Run database migrations")
		fmt.Println("  sync      Run a single sync pass")
		fmt.Println("  daemon    Run scheduled sync passes")
		os.Exit(1)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Config initialization failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()
	defer appLogger.Sync()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatalf("Tracer setup failed: %v", err)
	}
	defer closer.Close()
	opentracing.SetGlobalTracer(tracer)

	ledgerDB, err := database.NewConnection(cfg.LedgerConfig.DatabaseConfig())
	if err != nil {
		appLogger.Fatalf("Ledger database initialization failed: %v", err)
	}

	switch os.Args[1] {
	case "migrate":

		if err := repository.MigrateDB(ledgerDB); err != nil {
			appLogger.Fatalf("Database migration failed: %v", err)
		}
		appLogger.Info("Database migration completed successfully")

	case "sync":

		opts, err := parseSyncFlags(os.Args[2:])
		if err != nil {
			appLogger.Fatalf("Invalid sync flags: %v", err)
		}

		if err := repository.MigrateDB(ledgerDB); err != nil {
			appLogger.Fatalf("Database migration failed: %v", err)
		}
		repositories := repository.InitRepositories(ledgerDB)

		ctx := context.Background()
		appServices, err := services.InitServices(ctx, cfg, appLogger, repositories)
		if err != nil {
			appLogger.Fatalf("Service setup failed: %v", err)
		}

		stats, err := appServices.SyncService.Run(ctx, *opts)
		if err != nil {
			appLogger.Fatalf("Sync failed: %v", err)
		}
		fmt.Println(stats.String())

	case "daemon":

		if err := repository.MigrateDB(ledgerDB); err != nil {
			appLogger.Fatalf("Database migration failed: %v", err)
		}
		repositories := repository.InitRepositories(ledgerDB)

		ctx := context.Background()
		appServices, err := services.InitServices(ctx, cfg, appLogger, repositories)
		if err != nil {
			appLogger.Fatalf("Service setup failed: %v", err)
		}

		cronManager := cron.NewCronManager(cfg, appLogger, appServices.SyncService)
		if err := cronManager.StartCron(); err != nil {
			appLogger.Fatalf("Scheduler setup failed: %v", err)
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cronManager.Stop()

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func parseSyncFlags(args []string) (*sync.RunOptions, error) {
	flags := flag.NewFlagSet("sync", flag.ContinueOnError)
	since := flags.String("since", "", "only process messages received at or after this RFC 3339 timestamp")
	sinceDays := flags.Int("since-days", 0, "only process messages received within the last N days")
	maxMessages := flags.Int("max-messages", 0, "stop after enumerating this many messages (0 means no cap)")
	dryRun := flags.Bool("dry-run", false, "report what would be uploaded without uploading or recording")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if *since != "" && *sinceDays > 0 {
		return nil, fmt.Errorf("--since and --since-days are mutually exclusive")
	}

	opts := &sync.RunOptions{
		MaxMessages: *maxMessages,
		DryRun:      *dryRun,
	}
	if *since != "" {
		parsed, err := utils.ParseISOTime(*since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since value %q: %w", *since, err)
		}
		opts.Since = &parsed
	}
	if *sinceDays > 0 {
		cutoff := utils.Now().Add(-time.Duration(*sinceDays) * 24 * time.Hour)
		opts.Since = &cutoff
	}
	return opts, nil
}
