package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"

	"github.com/morezero/backup-assistant/internal/config"
	"github.com/morezero/backup-assistant/pkg/awsapi"
	"github.com/morezero/backup-assistant/pkg/commsutil"
	"github.com/morezero/backup-assistant/pkg/db"
	"github.com/morezero/backup-assistant/pkg/dispatcher"
	"github.com/morezero/backup-assistant/pkg/events"
	"github.com/morezero/backup-assistant/pkg/healing"
	"github.com/morezero/backup-assistant/pkg/llm"
	"github.com/morezero/backup-assistant/pkg/operations"
	"github.com/morezero/backup-assistant/pkg/semver"
	"github.com/morezero/backup-assistant/pkg/validator"
)

const wireLogPrefix = "server:wire"

// Components is everything one process needs to serve agent turns.
type Components struct {
	Dispatcher *dispatcher.Dispatcher
	// Repo, Pool and Conn are nil when the journal or the transport is disabled.
	Repo *db.Repository
	Pool *pgxpool.Pool
	Conn *comms.Conn
}

// Close releases the database pool and drains the NATS connection.
func (c *Components) Close() {
	if c.Conn != nil {
		if err := c.Conn.Drain(); err != nil {
			slog.Warn(fmt.Sprintf("%s - drain NATS: %v", wireLogPrefix, err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// SetupLogging installs the default slog handler at cfg.LogLevel.
func SetupLogging(cfg *config.Config) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Build wires the pipeline from cfg. When connectComms is set and COMMS_URL is
// configured, the NATS connection is opened and completion events are published on it.
func Build(ctx context.Context, cfg *config.Config, connectComms bool) (*Components, error) {
	settings := awsapi.Settings{
		DefaultRegion:  cfg.DefaultRegion,
		ConnectTimeout: cfg.ConnectTimeout,
		ReadTimeout:    cfg.ReadTimeout,
		MaxAttempts:    cfg.MaxAttempts,
	}

	// Step 1: LLM completer and prompts
	llmConfig, err := awsapi.LoadConfig(ctx, cfg.LLMRegionOrDefault(), settings)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load AWS config for the LLM: %w", wireLogPrefix, err)
	}
	completer, err := llm.New(ctx, llm.Options{
		Provider:      cfg.LLMProvider,
		ModelID:       cfg.LLMModelID,
		Region:        cfg.LLMRegionOrDefault(),
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		AWSConfig:     llmConfig,
		LogActivity:   cfg.LogLLMActivity,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create completer: %w", wireLogPrefix, err)
	}
	templates, err := llm.LoadTemplates(cfg.PromptsFile)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to load PROMPT_TEMPLATES_FILE: %w", wireLogPrefix, err)
	}

	// Step 2: operation catalog over the region-scoped clients
	provider := awsapi.NewProvider(settings)
	reg, err := operations.NewRegistry(provider)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to build operation registry: %w", wireLogPrefix, err)
	}

	gate, err := semver.NewGate(cfg.SupportedVersions)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid SUPPORTED_MESSAGE_VERSIONS: %w", wireLogPrefix, err)
	}

	c := &Components{}
	params := dispatcher.Params{
		Registry:  reg,
		Validator: validator.New(completer, templates.Validate),
		Invoker:   healing.New(completer, templates.Repair),
		Accounts:  awsapi.NewAccountResolver(provider),
		Options: dispatcher.Options{
			DefaultRegion: cfg.DefaultRegion,
			MaxResults:    cfg.MaxResults,
			BodyBudget:    cfg.BodyBudget,
			Versions:      gate,
		},
	}

	// Step 3: optional journal
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.PoolSize())
		if err != nil {
			return nil, fmt.Errorf("%s - failed to connect to database: %w", wireLogPrefix, err)
		}
		c.Pool = pool
		if cfg.RunMigrations {
			if err := migrate(ctx, pool, cfg.MigrationPath); err != nil {
				c.Close()
				return nil, err
			}
		}
		c.Repo = db.NewRepository(pool)
		params.Journal = c.Repo
	} else {
		slog.Info(fmt.Sprintf("%s - DATABASE_URL not set, invocation journal disabled", wireLogPrefix))
	}

	// Step 4: optional transport and completion events
	if connectComms && cfg.COMMSURL != "" {
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName, commsutil.ConnectOptions{
			Timeout:       cfg.COMMSTimeout,
			MaxReconnects: cfg.COMMSMaxReconnects,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("%s - failed to connect to NATS: %w", wireLogPrefix, err)
		}
		c.Conn = nc
		params.Publisher = events.NewCommsPublisher(nc, &events.CommsPublisherOpts{GlobalSubject: cfg.ActionEventSubject})
		slog.Info(fmt.Sprintf("%s - Connected to NATS at %s", wireLogPrefix, cfg.COMMSURL))
	}

	c.Dispatcher = dispatcher.NewDispatcher(params)
	slog.Info(fmt.Sprintf("%s - %d operations registered", wireLogPrefix, reg.Len()))
	return c, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, path string) error {
	files, err := db.ResolveMigrations(path)
	if err != nil {
		return fmt.Errorf("%s - failed to load migrations: %w", wireLogPrefix, err)
	}
	if err := db.RunMigrations(ctx, pool, files); err != nil {
		return fmt.Errorf("%s - failed to run migrations: %w", wireLogPrefix, err)
	}
	return nil
}
