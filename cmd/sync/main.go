package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/qq940500529/oracle-feishu-sync/internal/checkpoint"
	"github.com/qq940500529/oracle-feishu-sync/internal/config"
	"github.com/qq940500529/oracle-feishu-sync/internal/feishu"
	"github.com/qq940500529/oracle-feishu-sync/internal/history"
	"github.com/qq940500529/oracle-feishu-sync/internal/logging"
	"github.com/qq940500529/oracle-feishu-sync/internal/notify"
	"github.com/qq940500529/oracle-feishu-sync/internal/orchestrator"
	"github.com/qq940500529/oracle-feishu-sync/internal/partition"
	"github.com/qq940500529/oracle-feishu-sync/internal/progress"
	"github.com/qq940500529/oracle-feishu-sync/internal/ratelimit"
	"github.com/qq940500529/oracle-feishu-sync/internal/source"
	"github.com/qq940500529/oracle-feishu-sync/internal/version"
)

func main() {
	app := &cli.App{
		Name:    version.Name,
		Usage:   version.Description,
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "Path to configuration file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run a sync (incremental by default, resumes from the checkpoint)",
				Action: runSync,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "full",
						Usage: "Discard the checkpoint and sync the whole table",
					},
					&cli.BoolFlag{
						Name:  "no-progress",
						Usage: "Disable the progress bar",
					},
				},
			},
			{
				Name:   "reset",
				Usage:  "Remove the checkpoint so the next run starts from scratch",
				Action: resetCheckpoint,
			},
			{
				Name:   "status",
				Usage:  "Show checkpoint state and the last run",
				Action: showStatus,
			},
			{
				Name:  "history",
				Usage: "List sync runs, or view details of a specific run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "run",
						Usage: "Show details for a specific run ID",
					},
					&cli.IntFlag{
						Name:  "limit",
						Value: 20,
						Usage: "Number of runs to list",
					},
				},
				Action: showHistory,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Sync.LogLevel)
	if err != nil {
		return nil, err
	}
	logging.SetLevel(level)
	logging.SetFormat(cfg.Sync.LogFormat)
	return cfg, nil
}

func runSync(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted. Checkpoint reflects the last committed batch.")
		cancel()
	}()

	session, err := source.Open(ctx, &cfg.Oracle)
	if err != nil {
		return err
	}
	defer session.Close()

	schema, err := session.DescribeSchema(ctx)
	if err != nil {
		return err
	}

	client := feishu.New(&cfg.Feishu, cfg.Sync.RequestTimeoutDuration())
	limiter := ratelimit.New(cfg.Feishu.MaxRequestsPerSecond)
	manager := partition.NewManager(client, limiter, partition.Config{
		Fields:        partition.FieldsFromSchema(schema),
		Prefix:        cfg.Feishu.TableNamePrefix,
		BaseTableID:   cfg.Feishu.BaseTableID,
		MaxRows:       cfg.Feishu.MaxRowsPerTable,
		MaxPerRequest: cfg.Sync.WriteBatchSize,
	})

	reader := orchestrator.NewSessionReader(session, cfg.Oracle.SyncColumn,
		cfg.Sync.ReadBatchSize, cfg.Sync.ConvertTimezoneEnabled())

	store := checkpoint.NewStore(cfg.Sync.CheckpointFile)

	runs, err := history.Open(cfg.Sync.HistoryFile)
	if err != nil {
		return err
	}
	defer runs.Close()

	orch := orchestrator.New(reader, manager, store, orchestrator.Options{
		History:     runs,
		Notifier:    notify.New(&cfg.Notify.Slack),
		Tracker:     progress.New(!c.Bool("no-progress")),
		SourceTable: cfg.Oracle.Table,
	})

	result, err := orch.Run(ctx, c.Bool("full"))
	if err != nil {
		return err
	}

	fmt.Printf("Done: %d records total, %d table(s) created, mode %s\n",
		result.Records, result.TablesCreated, result.Mode)
	return nil
}

func resetCheckpoint(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store := checkpoint.NewStore(cfg.Sync.CheckpointFile)
	if err := store.Reset(); err != nil {
		return err
	}
	fmt.Println("Checkpoint removed. The next run will sync the whole table.")
	return nil
}

func showStatus(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	store := checkpoint.NewStore(cfg.Sync.CheckpointFile)
	cp, err := store.Load()
	if err != nil {
		return err
	}
	fmt.Printf("Checkpoint: %s\n", cp.Describe())
	showSourceLag(cfg, cp)

	runs, err := history.Open(cfg.Sync.HistoryFile)
	if err != nil {
		return err
	}
	defer runs.Close()

	recent, err := runs.ListRuns(context.Background(), 1)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	run := recent[0]
	fmt.Printf("Last run:   %s (%s, %s) %d records in %s\n",
		run.ID, run.Mode, run.Status, run.RecordsSynced, run.Duration().Round(time.Second))
	if run.Error != "" {
		fmt.Printf("Last error: %s\n", run.Error)
	}
	return nil
}

// showSourceLag compares the source's max sync value against the
// checkpoint high-water mark. Best effort: status still works when the
// source is unreachable.
func showSourceLag(cfg *config.Config, cp *checkpoint.Checkpoint) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Sync.RequestTimeoutDuration())
	defer cancel()

	session, err := source.Open(ctx, &cfg.Oracle)
	if err != nil {
		logging.Warn("Source unreachable, skipping lag check: %v", err)
		return
	}
	defer session.Close()

	schema, err := session.DescribeSchema(ctx)
	if err != nil {
		logging.Warn("Schema discovery failed, skipping lag check: %v", err)
		return
	}
	max, err := session.MaxValue(ctx, schema, cfg.Sync.ConvertTimezoneEnabled())
	if err != nil {
		logging.Warn("Max sync value lookup failed: %v", err)
		return
	}

	fmt.Printf("Source:     max %s = %v", cfg.Oracle.SyncColumn, max)
	if cp.LastSyncValue != nil {
		fmt.Printf(" (checkpoint %v)", cp.LastSyncValue)
	}
	fmt.Println()
}

func showHistory(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	runs, err := history.Open(cfg.Sync.HistoryFile)
	if err != nil {
		return err
	}
	defer runs.Close()

	ctx := context.Background()

	if runID := c.String("run"); runID != "" {
		run, err := runs.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		fmt.Printf("Run:      %s\n", run.ID)
		fmt.Printf("Mode:     %s\n", run.Mode)
		fmt.Printf("Status:   %s\n", run.Status)
		fmt.Printf("Started:  %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
		if run.CompletedAt != nil {
			fmt.Printf("Finished: %s\n", run.CompletedAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Printf("Records:  %d\n", run.RecordsSynced)
		fmt.Printf("Tables:   %d\n", run.TablesCreated)
		if run.Error != "" {
			fmt.Printf("Error:    %s\n", run.Error)
		}
		return nil
	}

	list, err := runs.ListRuns(ctx, c.Int("limit"))
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Printf("%-36s  %-11s  %-9s  %-19s  %10s  %6s\n",
		"RUN", "MODE", "STATUS", "STARTED", "RECORDS", "TABLES")
	for _, run := range list {
		fmt.Printf("%-36s  %-11s  %-9s  %-19s  %10d  %6d\n",
			run.ID, run.Mode, run.Status,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.RecordsSynced, run.TablesCreated)
	}
	return nil
}
