package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/fluidpay/api"
	"github.com/vultisig/fluidpay/config"
	"github.com/vultisig/fluidpay/internal/scheduler"
	"github.com/vultisig/fluidpay/internal/tasks"
	"github.com/vultisig/fluidpay/plugin/fluidpay"
	"github.com/vultisig/fluidpay/service"
	"github.com/vultisig/fluidpay/storage"
	"github.com/vultisig/fluidpay/storage/memory"
	"github.com/vultisig/fluidpay/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.GetConfigure()
	if err != nil {
		panic(err)
	}
	logger := logrus.New()

	sdClient, err := statsd.New(net.JoinHostPort(cfg.Datadog.Host, cfg.Datadog.Port))
	if err != nil {
		panic(err)
	}

	redisStorage, err := storage.NewRedisStorage(cfg.Redis)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := redisStorage.Close(); err != nil {
			logger.Errorf("fail to close redis, err: %v", err)
		}
	}()
	redisOptions := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Errorf("fail to close database, err: %v", err)
		}
	}()

	var archive storage.Archiver
	if cfg.Archive.Bucket != "" {
		archive, err = storage.NewS3Archive(cfg.Archive)
		if err != nil {
			logger.Fatalf("failed to create settlement archive: %v", err)
		}
	}

	var pluginConfig *fluidpay.PluginConfig
	if raw, ok := cfg.Plugin.PluginConfigs[fluidpay.PluginName]; ok {
		pluginConfig, err = fluidpay.DecodePluginConfig(raw)
	} else {
		pluginConfig, err = fluidpay.LoadConfig(cfg.Server.BaseConfigPath)
	}
	if err != nil {
		logger.Fatalf("failed to load fluidpay config: %v", err)
	}
	fileParams, err := pluginConfig.Params()
	if err != nil {
		logger.Fatalf("invalid fluidpay config: %v", err)
	}
	params, restored, err := service.RestoreParams(ctx, db, fileParams)
	if err != nil {
		logger.Fatalf("failed to restore module state: %v", err)
	}
	if restored {
		logger.Info("module parameters restored from the database")
	}

	deps, err := chainDeps(ctx, cfg, params, logger)
	if err != nil {
		logger.Fatalf("failed to build chain collaborators: %v", err)
	}
	eventLog := service.NewEventLog(db, logger)
	deps.Events = eventLog
	deps.Config = eventLog
	module, err := fluidpay.New(params, deps)
	if err != nil {
		logger.Fatalf("failed to create settlement module: %v", err)
	}

	settlements, err := service.NewSettlementService(module, db, redisStorage, archive, sdClient, logger)
	if err != nil {
		logger.Fatalf("failed to create settlement service: %v", err)
	}

	client := asynq.NewClient(redisOptions)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Errorf("fail to close asynq client, err: %v", err)
		}
	}()
	inspector := asynq.NewInspector(redisOptions)

	worker := service.NewWorker(settlements, sdClient, logger)
	srv := asynq.NewServer(
		redisOptions,
		asynq.Config{
			Logger:      logger,
			Concurrency: 1,
			Queues: map[string]int{
				tasks.QUEUE_NAME: 10,
			},
		},
	)
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeUpkeepSweep, worker.HandleUpkeepSweep)
	if err := srv.Start(mux); err != nil {
		logger.Fatalf("could not run worker: %v", err)
	}
	defer srv.Shutdown()

	if cfg.Upkeep.Address != "" {
		sched := scheduler.NewService(redisOptions, logger)
		if err := sched.RegisterUpkeepSweep(cfg.Upkeep.Schedule, cfg.Upkeep.Address); err != nil {
			logger.Fatalf("failed to register upkeep sweep: %v", err)
		}
		if err := sched.Start(); err != nil {
			logger.Fatalf("failed to start scheduler: %v", err)
		}
		defer sched.Shutdown()
	}

	server := api.NewServer(
		api.ServerConfig{Host: cfg.Server.Host, Port: cfg.Server.Port},
		settlements,
		redisStorage,
		client,
		inspector,
		sdClient,
		logger,
	)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Errorf("server stopped: %v", err)
	}
}

// openDatabase uses postgres when a dsn is configured and the in-memory store otherwise.
func openDatabase(cfg *config.Config, logger *logrus.Logger) (storage.DatabaseStorage, error) {
	if cfg.Server.Database.DSN == "" {
		logger.Warn("no database dsn configured, settlement history is kept in memory")
		return memory.NewStore(), nil
	}
	return postgres.NewPostgresBackend(false, cfg.Server.Database.DSN)
}
