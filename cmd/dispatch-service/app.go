package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"vendzz/internal/admission"
	"vendzz/internal/api"
	"vendzz/internal/campaign"
	"vendzz/internal/campaignqueue"
	"vendzz/internal/completion"
	"vendzz/internal/config"
	"vendzz/internal/config_handler"
	"vendzz/internal/constants"
	"vendzz/internal/logger"
	"vendzz/internal/sender"
	"vendzz/internal/sendlog"
	"vendzz/pkg/bootstrap"
	"vendzz/pkg/cel"
	"vendzz/pkg/health"
	"vendzz/pkg/logging"
	"vendzz/pkg/metrics"
	"vendzz/pkg/migrations"
	"vendzz/pkg/models"
	"vendzz/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	conns          *bootstrap.Connections
	tracerProvider *tracing.TracerProvider

	campaigns    *campaign.Cache
	breakers     map[string]func() string
	recorder     sendlog.Recorder
	queue        *campaignqueue.Queue
	processor    *completion.Processor
	memory       *campaignqueue.MemoryManager
	localLimiter *admission.LocalLimiter
	events       *config_handler.Handler

	server *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
		breakers:    make(map[string]func() string),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterDispatchMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.InitBroker(constants.ServiceName); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initPipeline(); err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	conns, err := a.dbConnector.Connect(ctx)
	if err != nil {
		return err
	}
	a.conns = conns

	if a.Config.Database.RunMigrations && conns.Postgres != nil {
		if err := migrations.UpPostgres(conns.Postgres, migrationsDir(a.Config)); err != nil {
			return err
		}
		a.Logger.InfowCtx(ctx, "Postgres migrations applied")
	}

	if a.Config.SendLog.Type == "mongodb" {
		db := conns.MongoDatabase(a.Config.Database.MongoDB)
		if err := migrations.EnsureSendLogIndexes(ctx, db, a.Config.SendLog.Collection); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) initPipeline() error {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return fmt.Errorf("failed to create condition evaluator: %w", err)
	}

	var source campaign.Source = campaign.StaticSource{}
	if a.conns.Postgres != nil {
		pgSource := campaign.NewPostgresSource(a.conns.Postgres, evaluator, a.Logger)
		cbSource := campaign.NewCircuitBreakerSource(pgSource, a.Config.CircuitBreaker)
		a.breakers["postgres-campaigns"] = cbSource.State
		source = cbSource
	} else {
		a.Logger.Warn("No Postgres configured, completions will not match any campaign")
	}
	a.campaigns = campaign.NewCache(source, campaign.CacheOptions{
		TTL:           a.Config.Campaigns.CacheTTL,
		MaxQuizzes:    a.Config.Campaigns.MaxQuizzes,
		SweepInterval: a.Config.Campaigns.SweepInterval,
	}, a.Logger)

	recorder, err := sendlog.New(a.Config, sendlog.Deps{
		Postgres: a.conns.Postgres,
		Mongo:    a.conns.MongoDatabase(a.Config.Database.MongoDB),
		Redis:    a.conns.Redis,
		Producer: a.Producer,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create send log: %w", err)
	}
	a.recorder = recorder

	senders, err := sender.NewRegistryFromConfig(a.Config.Senders, a.Producer, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create senders: %w", err)
	}
	a.queue = campaignqueue.New(a.Config.CampaignQueue, campaignqueue.Options{
		Dispatcher: senders,
		Statuses:   recorder,
	}, a.Logger)

	deps := completion.Deps{
		Campaigns:  a.campaigns,
		Recorder:   recorder,
		Resolver:   completion.SubmissionEmailResolver{},
		Conditions: evaluator,
	}
	if a.Config.Completion.ForwardToQueue {
		deps.Forwarder = campaignqueue.NewForwarder(a.queue)
	}
	a.processor = completion.NewProcessor(a.Config.Completion, deps, a.Logger)

	a.memory = campaignqueue.NewMemoryManager(a.Config.Memory, campaignqueue.ProcessRSS(), a.queue, a.Logger, a.campaigns)
	a.events = config_handler.NewHandler(a.campaigns, a.Logger)

	a.Logger.Infow("Pipeline initialized",
		"send_log", recorder.Backend(),
		"senders", senders.Channels(),
		"forward_to_queue", a.Config.Completion.ForwardToQueue,
	)
	return nil
}

func (a *App) initHTTPServer() error {
	registry := health.NewCheckerRegistry()
	if a.conns.Postgres != nil {
		registry.Register(health.NewPostgreSQLChecker(a.conns.Postgres))
	}
	if a.conns.Redis != nil {
		registry.Register(health.NewRedisChecker(a.conns.Redis))
	}
	if a.conns.Mongo != nil {
		registry.Register(health.NewMongoDBChecker(a.conns.Mongo))
	}
	for name, state := range a.breakers {
		registry.Register(health.BreakerChecker(name, state))
	}
	registry.Register(health.QueueChecker("completions", a.processor.Len,
		a.Config.Completion.MaxQueueSize, a.Config.Completion.DepthAlertRatio))

	var policy *admission.Policy
	if a.Config.Admission.Enabled {
		a.localLimiter = admission.NewLocalLimiter(a.Config.Admission.MaxAge)
		limiter, err := admission.NewLimiter(a.Config.Admission.Backend, a.conns.Redis, a.localLimiter)
		if err != nil {
			return err
		}
		policy = admission.NewPolicy(a.Config.Admission, limiter, a.Logger)
		a.Logger.Infow("Admission control enabled",
			"backend", a.Config.Admission.Backend,
			"base_quota", a.Config.Admission.BaseQuota,
		)
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(api.HandlerDeps{
		Completions: a.processor,
		Queue:       a.queue,
		Campaigns:   a.campaigns,
		Breakers:    a.breakers,
	}, a.Logger)
	router := api.NewRouter(handler, api.RouterOptions{
		ServiceName: constants.ServiceName,
		Tracing:     a.Config.Tracing.Enabled,
		Admission:   policy,
		Health:      registry,
	}, a.Logger)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(a.Config.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.Config.Server.WriteTimeoutSeconds) * time.Second,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error { return a.processor.Run(gCtx) })
	g.Go(func() error { return a.queue.Run(gCtx) })
	g.Go(func() error { return a.memory.Run(gCtx) })
	g.Go(func() error { return a.campaigns.Run(gCtx) })
	if a.localLimiter != nil {
		g.Go(func() error {
			return a.localLimiter.RunCleanup(gCtx, a.Config.Admission.CleanupInterval, a.Logger)
		})
	}

	if a.Consumer != nil {
		completions := topicOr(a.Config.Broker.Kafka.CompletionTopic, constants.DefaultCompletionTopic)
		updates := topicOr(a.Config.Broker.Kafka.CampaignUpdateTopic, constants.DefaultCampaignUpdateTopic)
		g.Go(func() error {
			return ignoreCanceled(a.Consumer.Consume(gCtx, completions, a.handleCompletion))
		})
		g.Go(func() error {
			return ignoreCanceled(a.Consumer.Consume(gCtx, updates, a.events.HandleCampaignUpdateEvent))
		})
	}

	runErr := g.Wait()
	if err := a.Shutdown(context.Background()); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// handleCompletion accepts a completion from the broker. Malformed events are
// logged and committed rather than retried.
func (a *App) handleCompletion(ctx context.Context, msg models.MessageEnvelope) error {
	payload, err := models.CompletionFromEnvelope(msg)
	if err != nil {
		a.Logger.WarnwCtx(ctx, "Discarding malformed completion event", "error", err)
		return nil
	}

	ctx = logging.WithQuizID(ctx, payload.QuizID)
	if !a.processor.SubmitEvent(ctx, completion.Submission{
		QuizID:  payload.QuizID,
		Phone:   payload.Phone,
		UserID:  payload.UserID,
		Email:   payload.Email,
		Answers: payload.Answers,
	}) {
		a.Logger.WarnwCtx(ctx, "Completion event rejected")
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceName)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down dispatch service",
		"pending_completions", a.processor.Len(),
		"pending_campaign_items", a.queue.Len(),
	)

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.Close(ctx, a.conns)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}

func topicOr(topic, fallback string) string {
	if topic == "" {
		return fallback
	}
	return topic
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
