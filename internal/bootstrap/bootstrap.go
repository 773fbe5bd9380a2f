package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"mystery-message/handler"
	"mystery-message/internal/config"
	"mystery-message/internal/integrations/openai"
	"mystery-message/internal/integrations/paramstore"
	"mystery-message/internal/repository"
	"mystery-message/internal/telemetry"
	"mystery-message/internal/usecase"
)

// App is the wired service shared by the Lambda and local entry points.
type App struct {
	Handler   *handler.Handler
	Telemetry *telemetry.Provider
	Logger    *slog.Logger
}

// NewLogger returns the JSON logger used by both entry points.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// New loads AWS configuration and wires every dependency. Nothing here talks
// to DynamoDB or SSM; those connections are made on first use.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load AWS config: %w", err)
	}
	return Build(ctx, cfg, awsCfg, logger)
}

// Build wires the service from an already loaded AWS configuration.
func Build(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = NewLogger(cfg.LogLevel)
	}

	tp, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return nil, err
	}
	telemetry.SetDefault(tp)

	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create SSM client: %w", err)
	}

	var openaiOpts []openai.Option
	if cfg.OpenAIBaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	llm, err := openai.NewClient(params, cfg.ParamPrefix, openaiOpts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create OpenAI client: %w", err)
	}

	store, err := repository.NewConnector(repository.DefaultDialer(awsCfg, cfg.DynamoDBEndpoint), cfg.MessagesTable)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create message store: %w", err)
	}

	var moderator usecase.Moderator
	if cfg.ModerateMessages {
		moderator = llm
	}
	sendService, err := usecase.NewSendService(store, moderator, cfg.ContentLimits())
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create send service: %w", err)
	}
	suggestService, err := usecase.NewSuggestService(params, llm, cfg.ParamPrefix)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create suggest service: %w", err)
	}

	h, err := handler.NewHandler(sendService, suggestService, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create handler: %w", err)
	}
	return &App{Handler: h, Telemetry: tp, Logger: logger}, nil
}
