package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/morezero/backup-assistant/internal/config"
	"github.com/morezero/backup-assistant/pkg/dispatcher"
)

const lambdaLogPrefix = "server:lambda"

// Handler is the Lambda entrypoint signature for agent events.
type Handler func(ctx context.Context, ev dispatcher.Event) (*dispatcher.Response, error)

// NewHandler adapts d to the Lambda runtime. Every event yields a response; errors are
// reported to the agent in the response body, never to the runtime.
func NewHandler(d *dispatcher.Dispatcher) Handler {
	return func(ctx context.Context, ev dispatcher.Event) (*dispatcher.Response, error) {
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			slog.Debug(fmt.Sprintf("%s - request %s function %s", lambdaLogPrefix, lc.AwsRequestID, ev.Function))
		}
		return d.Dispatch(ctx, &ev), nil
	}
}

// RunLambda wires the pipeline and hands control to the Lambda runtime.
func RunLambda() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", lambdaLogPrefix, err)
	}
	SetupLogging(cfg)
	if err := cfg.ValidateForLambda(); err != nil {
		return err
	}

	ctx := context.Background()
	comp, err := Build(ctx, cfg, cfg.COMMSURL != "")
	if err != nil {
		return err
	}
	defer comp.Close()

	slog.Info(fmt.Sprintf("%s - Starting Lambda handler", lambdaLogPrefix))
	lambda.Start(NewHandler(comp.Dispatcher))
	return nil
}
