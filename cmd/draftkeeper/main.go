package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/iudanet/draftkeeper/internal/bus"
	"github.com/iudanet/draftkeeper/internal/bus/redisbus"
	"github.com/iudanet/draftkeeper/internal/client/ai"
	"github.com/iudanet/draftkeeper/internal/client/backup"
	"github.com/iudanet/draftkeeper/internal/client/cli"
	"github.com/iudanet/draftkeeper/internal/client/iocli"
	"github.com/iudanet/draftkeeper/internal/client/save"
	"github.com/iudanet/draftkeeper/internal/client/session"
	"github.com/iudanet/draftkeeper/internal/client/storage/boltdb"
	"github.com/iudanet/draftkeeper/internal/client/storage/sqlite"
	"github.com/iudanet/draftkeeper/internal/config"
	"github.com/iudanet/draftkeeper/internal/election"
	"github.com/iudanet/draftkeeper/internal/ratelimit"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, args, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	// Show version and exit if requested
	if cfg.ShowVersion {
		printVersion()
		return 0
	}

	if len(args) == 0 {
		cli.PrintUsage()
		return 1
	}
	command := args[0]

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	// Открываем хранилище документов
	documents, err := sqlite.New(ctx, cfg.DocumentsPath, clock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open documents database: %v\n", err)
		return 1
	}
	defer func() {
		if err := documents.Close(); err != nil {
			logger.Error("failed to close documents database", "error", err)
		}
	}()

	// Открываем BoltDB для аварийных снимков
	blobs, err := boltdb.New(ctx, cfg.BackupsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open backups database: %v\n", err)
		return 1
	}
	defer func() {
		if err := blobs.Close(); err != nil {
			logger.Error("failed to close backups database", "error", err)
		}
	}()

	messages, err := openBus(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to broadcast bus: %v\n", err)
		return 1
	}
	defer func() {
		if err := messages.Close(); err != nil {
			logger.Error("failed to close broadcast bus", "error", err)
		}
	}()

	stdio := iocli.NewStdio()

	passphrase := cfg.BackupPassphrase
	if cfg.AskPassphrase {
		passphrase, err = stdio.ReadPassword("Backup passphrase: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read passphrase: %v\n", err)
			return 1
		}
	}

	backupCfg := backup.Config{TTL: cfg.BackupTTL}
	if passphrase != "" {
		sealer, err := backup.NewSealer(ctx, blobs, passphrase)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to unlock backups: %v\n", err)
			return 1
		}
		backupCfg.Sealer = sealer
	}

	backups := backup.New(blobs, backupCfg, clock, logger)
	backups.OnFailure(func(op, documentID string, err error) {
		fmt.Fprintf(os.Stderr, "Warning: backup %s failed for %q: %v\n", op, documentID, err)
	})

	// Просроченные снимки удаляются при каждом запуске
	if _, err := backups.CleanupExpired(ctx); err != nil {
		logger.Warn("startup backup cleanup failed", "error", err)
	}

	elect := election.New(messages, election.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		LeaderTimeout:     cfg.LeaderTimeout,
		DiscoveryDelay:    cfg.DiscoveryDelay,
	}, clock, logger)

	coordinator := save.New(documents, elect, save.Config{
		Debounce:   cfg.SaveDebounce,
		RetryDelay: cfg.SaveRetryDelay,
		MaxRetries: 1,
		Strict:     cfg.Strict,
	}, clock, logger)
	defer func() {
		if err := coordinator.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("failed to flush pending saves", "error", err)
		}
	}()

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.MaxRequestsPerMinute,
		MaxRequestsPerHour:   cfg.MaxRequestsPerHour,
		WarningThreshold:     cfg.WarningThreshold,
		WarningCooldown:      cfg.WarningCooldown,
	}, clock, logger)

	app := cli.New(cli.Deps{
		IO:          stdio,
		Documents:   documents,
		Backups:     backups,
		Coordinator: coordinator,
		Election:    elect,
		AI:          ai.NewClient(cfg.AIEndpoint, limiter, nil, logger),
		Limiter:     limiter,
		Clock:       clock,
		Logger:      logger,
		Session:     session.Config{BackupInterval: cfg.BackupInterval, Strict: cfg.Strict},
		LeaderWait:  cfg.DiscoveryDelay + cfg.HeartbeatInterval,
	})

	if err := app.Run(ctx, command, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			cli.PrintUsage()
		}
		return 1
	}
	return 0
}

// closableBus шина, которую main закрывает при выходе
type closableBus interface {
	bus.Bus
	io.Closer
}

// openBus connects to Redis when configured; otherwise windows of this process share
// an in-memory hub
func openBus(cfg *config.Config, logger *slog.Logger) (closableBus, error) {
	if cfg.RedisURL == "" {
		return bus.NewMemory(logger), nil
	}

	b, err := redisbus.New(cfg.RedisURL, cfg.BusChannel, logger)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func printVersion() {
	fmt.Printf("DraftKeeper\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
