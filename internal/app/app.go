// Package app assembles the conversation engine from configuration.
// It is the single place that knows how the concrete AWS and voice
// clients plug into the router; every entry point (CLI, HTTP server)
// builds an App and talks to it.
package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/rivertownball/riverchat/internal/config"
	"github.com/rivertownball/riverchat/internal/log"
	"github.com/rivertownball/riverchat/internal/orders"
	"github.com/rivertownball/riverchat/internal/rag"
	"github.com/rivertownball/riverchat/internal/router"
	"github.com/rivertownball/riverchat/internal/session"
	"github.com/rivertownball/riverchat/internal/voice"
)

// App is the fully wired conversation engine.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Sessions *session.Store
	Router   *router.Router
}

// New builds an App from cfg. It loads AWS credentials through the
// SDK's default chain, constructs the Bedrock, DynamoDB, and voice
// clients, and wires them into the router.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := cfg.ValidateServe(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}

	retriever := rag.NewRetriever(
		bedrockagentruntime.NewFromConfig(awsCfg), cfg.KnowledgeBaseID, logger)

	responder := rag.NewResponder(rag.Config{
		Model:           &rag.BedrockModel{Client: bedrockruntime.NewFromConfig(awsCfg)},
		Retriever:       retriever,
		Logger:          logger,
		ModelID:         cfg.ModelID,
		RetrieveTimeout: cfg.RetrieveTimeout,
		GenerateTimeout: cfg.GenerateTimeout,
	})

	orderService := orders.NewService(
		dynamodb.NewFromConfig(awsCfg), cfg.CustomerTable, logger)

	calls, err := voice.NewClient(cfg.VoiceBaseURL, cfg.VoiceAPIKey, cfg.CallTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("building voice client: %w", err)
	}

	escalator := voice.NewEscalator(voice.Config{
		Calls:           calls,
		Logger:          logger,
		FallbackNumber:  cfg.FallbackNumber,
		VoiceID:         cfg.VoiceID,
		MaxCallDuration: cfg.MaxCallDuration,
		CallTimeout:     cfg.CallTimeout,
	})

	turns, err := router.New(router.Config{
		Orders:             orderService,
		Escalator:          escalator,
		Answerer:           responder,
		Logger:             logger,
		StoreTimeout:       cfg.StoreTimeout,
		MaxHistoryMessages: cfg.MaxHistoryMessages,
	})
	if err != nil {
		return nil, fmt.Errorf("building router: %w", err)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Sessions: session.NewStore(logger),
		Router:   turns,
	}, nil
}
