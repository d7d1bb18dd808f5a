// Package main is the entrypoint for the backup-assistant action group.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/morezero/backup-assistant/internal/config"
	"github.com/morezero/backup-assistant/internal/server"
	"github.com/morezero/backup-assistant/pkg/awsapi"
	"github.com/morezero/backup-assistant/pkg/capability"
	"github.com/morezero/backup-assistant/pkg/db"
	"github.com/morezero/backup-assistant/pkg/dispatcher"
	"github.com/morezero/backup-assistant/pkg/operations"
)

const usage = `Usage: backup-assistant [command]

Commands:
  (default)          Lambda handler when AWS_LAMBDA_RUNTIME_API is set, otherwise serve.
  lambda             Run the Lambda handler.
  serve              Start the NATS request/reply server and the HTTP catalog.
  migrate [status]   Apply the invocation journal migrations, or show their status.
  ensure-db          Create the DATABASE_URL database if it is missing.
  clear              Truncate the invocation journal; schema is preserved.
  invoke <file>      Run one agent event from a JSON file and print the response.
  operations         Print the supported operations.

Environment: DEFAULT_AWS_REGION, LLM_PROVIDER, LLM_MODEL_ID, COMMS_URL, DATABASE_URL. See README for full list.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "":
		if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
			cmd = "lambda"
		} else {
			cmd = "serve"
		}
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	}

	var err error
	switch cmd {
	case "lambda":
		err = server.RunLambda()
	case "serve":
		err = server.Run()
	case "migrate":
		if len(args) > 1 && args[1] == "status" {
			err = runMigrateStatus()
		} else {
			err = runMigrate()
		}
	case "ensure-db":
		err = runEnsureDB()
	case "clear":
		err = runClear()
	case "invoke":
		if len(args) < 2 {
			log.Fatalf("backup-assistant invoke: event file is required")
		}
		err = runInvoke(args[1], os.Stdout)
	case "operations":
		err = runOperations(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("backup-assistant %s: %v", cmd, err)
	}
}

// openPool loads the config and connects to the journal database.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.PoolSize())
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, pool, nil
}

func runMigrate() error {
	ctx := context.Background()
	cfg, pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	files, err := db.ResolveMigrations(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus() error {
	ctx := context.Background()
	cfg, pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	st, err := db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	if err != nil {
		return err
	}
	fmt.Printf("Migration status: %s\n", st)
	return nil
}

func runEnsureDB() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	return db.EnsureDatabase(context.Background(), cfg.DatabaseURL)
}

func runClear() error {
	ctx := context.Background()
	_, pool, err := openPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.ClearJournal(ctx, pool); err != nil {
		return fmt.Errorf("clear journal: %w", err)
	}
	return nil
}

// runInvoke dispatches the event in path once and writes the response JSON to w.
func runInvoke(path string, w io.Writer) error {
	ev, err := readEvent(path)
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	server.SetupLogging(cfg)
	if err := cfg.ValidateForLambda(); err != nil {
		return err
	}

	ctx := context.Background()
	comp, err := server.Build(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer comp.Close()

	return writeJSON(w, comp.Dispatcher.Dispatch(ctx, ev))
}

func readEvent(path string) (*dispatcher.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read event: %w", err)
	}
	var ev dispatcher.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", path, err)
	}
	return &ev, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runOperations prints the catalog. No AWS call is made; clients are created lazily.
func runOperations(w io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	reg, err := operations.NewRegistry(awsapi.NewProvider(awsapi.Settings{DefaultRegion: cfg.DefaultRegion}))
	if err != nil {
		return err
	}
	return printOperations(w, reg.Operations())
}

func printOperations(w io.Writer, ops []*capability.Operation) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tSERVICE\tKIND\tDESCRIPTION")
	for _, op := range ops {
		kind := "generic"
		if op.Custom {
			kind = "custom"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", op.Name, op.Service, kind, op.Description)
	}
	return tw.Flush()
}
