package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gavel/internal/api"
	"gavel/internal/common/cache"
	"gavel/internal/common/db"
	"gavel/internal/common/mq"
	"gavel/internal/common/storage"
	"gavel/internal/contest/anticheat"
	"gavel/internal/contest/leaderboard"
	"gavel/internal/hub"
	"gavel/internal/judge/languages"
	"gavel/internal/judge/sandbox"
	"gavel/internal/judge/sqlbox"
	"gavel/internal/judge/verdict"
	"gavel/internal/queue"
	"gavel/internal/repository"
	"gavel/pkg/utils/logger"
)

const defaultConfigPath = "configs/gavel.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	cfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()
	ctx := context.Background()

	database, err := db.NewMySQL(cfg.Database)
	if err != nil {
		logger.Error(ctx, "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = database.Close()
	}()

	redisCache, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logger.Error(ctx, "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	kafkaQueue, err := mq.NewKafkaQueue(cfg.Kafka)
	if err != nil {
		logger.Error(ctx, "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = kafkaQueue.Close()
	}()

	objStorage, err := storage.NewMinio(cfg.Minio)
	if err != nil {
		logger.Error(ctx, "init object storage failed", zap.Error(err))
		return
	}

	registry, err := languages.NewRegistry(cfg.Languages)
	if err != nil {
		logger.Error(ctx, "init language registry failed", zap.Error(err))
		return
	}
	codeRunner, err := sandbox.NewRunner(sandbox.NewContainerEngine(cfg.Engine), cfg.Sandbox)
	if err != nil {
		logger.Error(ctx, "init sandbox runner failed", zap.Error(err))
		return
	}
	sqlRunner, err := sqlbox.NewRunner(sqlbox.NewMySQLProvisioner(cfg.SQLProvisioner), cfg.SQLBox)
	if err != nil {
		logger.Error(ctx, "init sql runner failed", zap.Error(err))
		return
	}
	judge, err := verdict.NewEngine(registry, verdict.NewCodeCaseRunner(codeRunner), verdict.NewSQLCaseRunner(sqlRunner))
	if err != nil {
		logger.Error(ctx, "init verdict engine failed", zap.Error(err))
		return
	}

	problems := repository.NewProblemRepository(database)
	subs := repository.NewSubmissionRepository(database)
	contests := repository.NewContestRepository(database)
	parts := repository.NewParticipationRepository(database)
	violations := repository.NewViolationRepository(database)
	live := repository.NewLiveStatusRepository(redisCache, cfg.LiveStatusTTL)

	eventHub := hub.New()
	board, err := leaderboard.NewEngine(contests, subs, parts)
	if err != nil {
		logger.Error(ctx, "init leaderboard failed", zap.Error(err))
		return
	}
	tracker, err := anticheat.NewTracker(contests, parts, violations, eventHub, cfg.AntiCheat)
	if err != nil {
		logger.Error(ctx, "init anticheat tracker failed", zap.Error(err))
		return
	}
	awards, err := queue.NewEventAwarder(kafkaQueue, cfg.Queue.AwardTopic)
	if err != nil {
		logger.Error(ctx, "init awarder failed", zap.Error(err))
		return
	}
	processor, err := queue.NewProcessor(cfg.Queue, kafkaQueue, judge, problems, subs, live, board, eventHub, awards, objStorage)
	if err != nil {
		logger.Error(ctx, "init submission processor failed", zap.Error(err))
		return
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := api.NewRouter(api.Deps{
		Auth:      cfg.Auth,
		Registry:  registry,
		Problems:  problems,
		Subs:      subs,
		Live:      live,
		Processor: processor,
		Board:     board,
		Tracker:   tracker,
		Hub:       eventHub,
	})
	if err != nil {
		logger.Error(ctx, "init router failed", zap.Error(err))
		return
	}

	consumeCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- processor.Start(consumeCtx)
	}()

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server started", zap.String("addr", cfg.Server.Addr))
		serverErr <- server.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case err := <-consumerErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "submission consumer stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopConsumer()
	timeoutCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
}
