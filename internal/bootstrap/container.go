package bootstrap

import (
	"context"
	"log"

	"ai-orchestrator-be/internal/agent"
	"ai-orchestrator-be/internal/broadcast"
	"ai-orchestrator-be/internal/config"
	"ai-orchestrator-be/internal/controller"
	"ai-orchestrator-be/internal/dispatch"
	"ai-orchestrator-be/internal/jobqueue"
	"ai-orchestrator-be/internal/orchestrator"
	"ai-orchestrator-be/internal/pkg/logger"
	"ai-orchestrator-be/internal/pkg/mailer"
	"ai-orchestrator-be/internal/pkg/serverutils"
	"ai-orchestrator-be/internal/repository"
	"ai-orchestrator-be/internal/repository/contract"
	"ai-orchestrator-be/internal/repository/implementation"
	"ai-orchestrator-be/internal/repository/memory"
	"ai-orchestrator-be/internal/supervisor"
	"ai-orchestrator-be/internal/tool"
	"ai-orchestrator-be/pkg/database"
	"ai-orchestrator-be/pkg/llm"
	"ai-orchestrator-be/pkg/llm/factory"
	"ai-orchestrator-be/pkg/store"

	pktNats "ai-orchestrator-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	OrchestrationController controller.IOrchestrationController
	SupervisionController   controller.ISupervisionController
	StreamController        controller.IStreamController

	// Background workers (exposed for main.go to run)
	Worker      *jobqueue.Worker
	Broadcaster *broadcast.Broadcaster

	Logger logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus (in-process job dispatch)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. LLM provider
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.HuggingFaceAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	// NATS (optional: lifecycle events only)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis (optional: cross-instance stream relay)
	var rdb *redis.Client
	if opt, err := redis.ParseURL(cfg.App.RedisURL); err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Stream relay disabled", err)
	} else {
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Stream relay disabled", err)
			rdb = nil
		}
	}

	// Postgres (optional: terminal snapshot persistence)
	var snapshotRepo contract.ISnapshotRepository
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
		if err != nil {
			log.Printf("[WARN] Failed to connect to Postgres: %v. Snapshot persistence disabled", err)
		} else {
			snapshotRepo = implementation.NewSnapshotRepository(db)
		}
	}

	// 5. Streaming
	streamLogger := logger.NewIsolatedLogger("logs/stream.log")
	broadcaster := broadcast.NewBroadcaster(rdb, streamLogger)

	// 6. Agent pool and tools
	toolRegistry := tool.NewRegistry()
	registerTools(toolRegistry, llmProvider, sysLogger)

	agentRegistry := agent.NewRegistry()
	registerAgents(agentRegistry, toolRegistry, sysLogger)

	// 7. Supervisor and status stores
	statusCache := memory.NewStatusRepository()
	statusStore := repository.NewStatusStore(statusCache, snapshotRepo, sysLogger)

	sup := supervisor.New(sysLogger)
	sup.SetArchiver(statusStore)

	// 8. Approval notifications (best-effort email)
	var emailService mailer.IEmailService
	if cfg.SMTP.Host != "" {
		emailService = mailer.NewEmailService(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Email,
			cfg.SMTP.Password,
			cfg.SMTP.SenderName,
			cfg.App.BaseURL,
		)
	}
	approvalNotifier := mailer.NewApprovalNotifier(emailService, cfg.SMTP.ApproverTo, sysLogger)

	var publisher orchestrator.EventPublisher
	if natsPub != nil {
		publisher = natsPub
	}

	// 9. Orchestration engine
	engine := orchestrator.New(cfg.Orch, orchestrator.Deps{
		Agents:      agentRegistry,
		Tools:       toolRegistry,
		Planner:     agent.NewPlanner(llmProvider, cfg.Orch.MaxTasks),
		Router:      agent.NewRouter(agent.WeightedScoring{}),
		Executor:    agent.NewExecutor(llmProvider, toolRegistry, cfg.Orch.MaxRetries),
		Validator:   agent.NewValidator(agent.DefaultValidationPolicy),
		Supervisor:  sup,
		Publisher:   publisher,
		Broadcaster: broadcaster,
		Notifier:    approvalNotifier,
		Statuses:    statusStore,
		Logger:      sysLogger,
	})

	// 10. Async job pipeline
	queue := jobqueue.NewQueue(pubSub, sysLogger)
	worker := jobqueue.NewWorker(pubSub, queue, jobqueue.NewLLMProcessor(llmProvider), broadcaster, sysLogger)
	if publisher != nil {
		worker.SetPublisher(publisher)
	}

	// 11. Parallel dispatch
	dispatcher := dispatch.NewDispatcher(llmProvider, sysLogger)

	// 12. HTTP layer
	jwtMiddleware := serverutils.NewJwtMiddleware(cfg.App.JWTSecret)

	return &Container{
		OrchestrationController: controller.NewOrchestrationController(engine, queue, dispatcher, publisher, jwtMiddleware, sysLogger),
		SupervisionController:   controller.NewSupervisionController(sup, jwtMiddleware),
		StreamController:        controller.NewStreamController(broadcaster, streamLogger),
		Worker:                  worker,
		Broadcaster:             broadcaster,
		Logger:                  sysLogger,
	}
}

func registerTools(r *tool.Registry, provider llm.LLMProvider, log logger.ILogger) {
	for _, t := range []tool.Tool{
		tool.NewHTTPFetchTool(),
		tool.NewSummarizeTool(provider),
	} {
		if err := r.Register(t); err != nil {
			log.Warn("Bootstrap", "Failed to register tool", map[string]interface{}{
				"tool":  t.Name(),
				"error": err.Error(),
			})
		}
	}
}

// Default agent pool: one worker per task type plus a generalist. Load
// and success rate start optimistic; the registry mutates them at runtime.
func registerAgents(r *agent.Registry, tools *tool.Registry, log logger.ILogger) {
	descriptors := []agent.Descriptor{
		{
			Name:               "analyst",
			Type:               "analyzer",
			SupportedTaskTypes: []store.TaskType{store.TaskAnalysis},
			Tools:              []string{"http_fetch", "summarize"},
			SuccessRate:        0.95,
			Enabled:            true,
		},
		{
			Name:               "writer",
			Type:               "generator",
			SupportedTaskTypes: []store.TaskType{store.TaskGeneration},
			Tools:              []string{"summarize"},
			SuccessRate:        0.93,
			Enabled:            true,
		},
		{
			Name:               "runner",
			Type:               "executor",
			SupportedTaskTypes: []store.TaskType{store.TaskExecution, store.TaskGeneral},
			Tools:              tools.Names(),
			SuccessRate:        0.92,
			Enabled:            true,
		},
		{
			Name:               "checker",
			Type:               "validator",
			SupportedTaskTypes: []store.TaskType{store.TaskValidation},
			SuccessRate:        0.97,
			Enabled:            true,
		},
	}

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			log.Warn("Bootstrap", "Failed to register agent", map[string]interface{}{
				"agent": d.Name,
				"error": err.Error(),
			})
		}
	}
}
