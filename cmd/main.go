package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"school-relay/handler"
	appconfig "school-relay/internal/config"
	"school-relay/internal/integrations/openai"
	"school-relay/internal/integrations/paramstore"
	"school-relay/internal/integrations/whatsapp"
	"school-relay/internal/logging"
	"school-relay/internal/pause"
	"school-relay/internal/repository"
	"school-relay/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	appCfg, err := appconfig.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	level, _ := appCfg.SlogLevel()
	logger := slog.New(logging.NewContextHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		fatal("failed to create SSM client", err)
	}

	llmClient, err := openai.NewClient(ssmClient, appCfg.ParamPrefix,
		openai.WithBaseURL(appCfg.LLMBaseURL),
		openai.WithAppTitle("school-relay"),
	)
	if err != nil {
		fatal("failed to create LLM client", err)
	}

	waClient, err := whatsapp.NewClient(appCfg.PhoneNumberID, appCfg.AccessToken,
		whatsapp.WithBaseURL(appCfg.GraphBaseURL),
		whatsapp.WithAPIVersion(appCfg.APIVersion),
	)
	if err != nil {
		fatal("failed to create WhatsApp client", err)
	}

	// ---- Use cases ----
	answers, err := usecase.NewAnswerService(ssmClient, llmClient, appCfg.ParamPrefix,
		usecase.WithModeration(appCfg.Moderation),
		usecase.WithMaxQuestionLength(appCfg.MaxQuestionLen),
	)
	if err != nil {
		fatal("failed to create answer service", err)
	}

	registry := pause.NewRegistry()
	routerOpts := []usecase.RouterOption{usecase.WithLogger(logger)}

	if appCfg.AdminFeatures() {
		admin, err := usecase.NewAdminInterpreter(registry, waClient, logger)
		if err != nil {
			fatal("failed to create admin interpreter", err)
		}
		notifier, err := usecase.NewHandoffNotifier(waClient, appCfg.NotifyPhone, logger)
		if err != nil {
			fatal("failed to create handoff notifier", err)
		}
		routerOpts = append(routerOpts,
			usecase.WithAdmins(admin, appCfg.AdminPhones...),
			usecase.WithNotifier(notifier),
		)
	}

	switch {
	case appCfg.DedupTable != "":
		store, err := repository.New(awsdynamodb.NewFromConfig(cfg), appCfg.DedupTable)
		if err != nil {
			fatal("failed to create dedup store", err)
		}
		routerOpts = append(routerOpts, usecase.WithDeduper(store))
	case appCfg.DedupCacheSize > 0:
		store, err := repository.NewMemory(appCfg.DedupCacheSize)
		if err != nil {
			fatal("failed to create dedup cache", err)
		}
		routerOpts = append(routerOpts, usecase.WithDeduper(store))
	}

	router, err := usecase.NewRouter(answers, waClient, registry, routerOpts...)
	if err != nil {
		fatal("failed to create router", err)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(router, appCfg.VerifyToken, logger)
	if err != nil {
		fatal("failed to create handler", err)
	}

	logger.Info("starting webhook relay",
		"admins", len(appCfg.AdminPhones),
		"notifications", appCfg.NotifyPhone != "",
		"dedup_table", appCfg.DedupTable != "",
	)
	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
