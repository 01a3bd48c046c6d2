// @title			TaskSync API
// @version		1.0
// @description	Collaborative task list with per-user undo/redo and realtime updates.
// @BasePath		/api/v1

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mtlprog/tasksync/internal/broadcast"
	"github.com/mtlprog/tasksync/internal/config"
	"github.com/mtlprog/tasksync/internal/database"
	"github.com/mtlprog/tasksync/internal/handler"
	"github.com/mtlprog/tasksync/internal/handler/dto"
	"github.com/mtlprog/tasksync/internal/logger"
	"github.com/mtlprog/tasksync/internal/repository"
	"github.com/mtlprog/tasksync/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "tasksync",
		Usage: "Collaborative task list with undo/redo history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:     "database-url",
				Aliases:  []string{"d"},
				Value:    config.DefaultDatabaseURL,
				Usage:    "PostgreSQL database URL",
				EnvVars:  []string{"DATABASE_URL"},
				Required: true,
			},
			&cli.IntFlag{
				Name:    "db-max-conns",
				Usage:   "Maximum database connections (0 uses the default)",
				EnvVars: []string{"DB_MAX_CONNS"},
			},
			&cli.DurationFlag{
				Name:    "store-timeout",
				Value:   config.DefaultStoreTimeout,
				Usage:   "Deadline for the store calls of one operation (0 disables)",
				EnvVars: []string{"STORE_TIMEOUT"},
			},
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{"PORT"},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Value:   config.DefaultRedisURL,
				Usage:   "Redis URL for cross-instance event fan-out (optional)",
				EnvVars: []string{"REDIS_URL"},
			},
			&cli.StringFlag{
				Name:    "redo-policy",
				Value:   config.DefaultRedoPolicy,
				Usage:   "What a new mutation does to the user's redo stack (clear, preserve)",
				EnvVars: []string{"REDO_POLICY"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the web server",
				Action: runServe,
			},
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Action: runMigrateUp,
					},
					{
						Name:   "down",
						Usage:  "Roll back the latest migration",
						Action: runMigrateDown,
					},
				},
			},
			{
				Name:  "prune-history",
				Usage: "Delete action records older than the retention period",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Value: config.DefaultHistoryRetention,
						Usage: "Retention period",
					},
				},
				Action: runPruneHistory,
			},
			{
				Name:   "history-stats",
				Usage:  "Print undo/redo availability for every user as JSON",
				Action: runHistoryStats,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// serviceOptions builds the service options shared by every command.
func serviceOptions(c *cli.Context) ([]service.Option, error) {
	policy, err := service.ParseRedoPolicy(c.String("redo-policy"))
	if err != nil {
		return nil, err
	}
	return []service.Option{
		service.WithStoreTimeout(c.Duration("store-timeout")),
		service.WithRedoPolicy(policy),
	}, nil
}

// openDatabase connects and applies pending migrations.
func openDatabase(ctx context.Context, c *cli.Context) (*database.DB, error) {
	db, err := database.NewWithOptions(ctx, c.String("database-url"), database.PoolOptions{
		MaxConns: int32(c.Int("db-max-conns")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func runServe(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	opts, err := serviceOptions(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()

	g, ctx := errgroup.WithContext(ctx)

	var hubOpts []broadcast.HubOption
	var relay *broadcast.RedisRelay
	if redisURL := c.String("redis-url"); redisURL != "" {
		client, err := broadcast.NewRedisClient(ctx, redisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		relay = broadcast.NewRedisRelay(client, broadcast.DefaultRelayChannel)
		hubOpts = append(hubOpts, broadcast.WithForwarder(relay))
	}

	hub := broadcast.NewHub(hubOpts...)
	defer hub.Close()

	if relay != nil {
		g.Go(func() error {
			return relay.Run(ctx, hub)
		})
	}

	h := handler.New(db.Pool(), hub, opts...)

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           h.Router(),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		slog.Info("starting server", "server_addr", "http://localhost:"+port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.ShutdownTimeout)
		defer cancel()

		hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}

func runMigrateUp(c *cli.Context) error {
	ctx := c.Context

	db, err := database.New(ctx, c.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return database.RunMigrations(ctx, db.Pool())
}

func runMigrateDown(c *cli.Context) error {
	ctx := c.Context

	db, err := database.New(ctx, c.String("database-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	return database.RollbackMigration(ctx, db.Pool())
}

func runPruneHistory(c *cli.Context) error {
	ctx := c.Context

	opts, err := serviceOptions(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()

	pool := db.Pool()
	historyService := service.NewHistoryService(
		pool,
		repository.NewTaskRepository(pool),
		repository.NewActionRecordRepository(pool),
		opts...,
	)

	pruned, err := historyService.PruneHistory(ctx, c.Duration("older-than"))
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "pruned %d action records\n", pruned)
	return nil
}

func runHistoryStats(c *cli.Context) error {
	ctx := c.Context

	opts, err := serviceOptions(c)
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()

	pool := db.Pool()
	historyService := service.NewHistoryService(
		pool,
		repository.NewTaskRepository(pool),
		repository.NewActionRecordRepository(pool),
		opts...,
	)

	stats, err := historyService.StatsByActor(ctx)
	if err != nil {
		return fmt.Errorf("failed to load history stats: %w", err)
	}

	out := make([]dto.HistoryStatsResponse, 0, len(stats))
	for _, s := range stats {
		out = append(out, dto.ToHistoryStatsResponse(s))
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
