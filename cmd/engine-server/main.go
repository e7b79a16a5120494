// Package main 变异活动引擎入口
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"genome-engine/internal/apiserver/server"
	"genome-engine/internal/config"
	"genome-engine/internal/engine/advisor"
	"genome-engine/internal/engine/controller"
	"genome-engine/internal/engine/evaluator"
	"genome-engine/internal/engine/generator"
	"genome-engine/internal/engine/history"
	"genome-engine/internal/shared/eventbus"
	"genome-engine/internal/shared/infra"
	"genome-engine/internal/shared/objstore"
	"genome-engine/internal/shared/queue"
	"genome-engine/internal/shared/storage/dbutil"
	"genome-engine/internal/shared/storage/repository"
	"genome-engine/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换数据库和 Redis）
	cfg := config.Load()
	logger := logging.Default("engine-server")

	logger.Info("starting engine server", "env", cfg.Env, "config", cfg.String())

	// 初始化持久化存储（含幂等建表）
	store, err := repository.NewPersistentStoreFromDSN(dbutil.DriverType(cfg.DatabaseDriver), cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	logger.Info("connected to database", "driver", cfg.DatabaseDriver)

	// 初始化 Redis（派发队列 + 活动事件总线），缺失时降级运行
	var redisInfra *infra.RedisInfra
	if cfg.RedisURL != "" {
		redisInfra, err = infra.NewRedisInfra(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, falling back to DB polling only")
			redisInfra = nil
		} else {
			// 队列和事件总线共享这条连接，由 RedisInfra 统一关闭
			defer redisInfra.Close()
		}
	}

	// 初始化 MinIO 工件归档（可选）
	var archive *objstore.Client
	if cfg.MinIO.Endpoint != "" {
		archive, err = objstore.NewClient(cfg.MinIO)
		if err != nil {
			logger.WithError(err).Warn("minio unavailable, mutation artifacts will not be archived")
			archive = nil
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := archive.EnsureBucket(ctx); err != nil {
				logger.WithError(err).Warn("minio bucket check failed, archiving disabled")
				archive = nil
			}
			cancel()
		}
	}

	// 聚合基础设施，统一关闭；缺失的部分保持 nil，下游走降级路径
	stack := &infra.Infrastructure{
		Storage:  store,
		Queue:    queueOrNil(redisInfra),
		EventBus: busOrNil(redisInfra),
		ObjStore: archive,
	}
	defer stack.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 引擎组装：生成器/评估器是可插拔能力，默认接内置实现
	recorder := history.NewRecorder(store, campaignBus(stack), "engine")
	ctrl := controller.NewController(store, generator.Seeded{}, evaluator.Simulated{}, recorder)
	if cfg.Engine.DefaultActor != "" {
		ctrl.SetDefaultActor(cfg.Engine.DefaultActor)
	}
	if archive != nil {
		ctrl.SetArchiver(archive)
	}

	manager := controller.NewManager(store, campaignQueue(stack), ctrl, &controller.ManagerConfig{
		ConsumerID:     cfg.Engine.ConsumerID,
		ReadCount:      int64(cfg.Engine.Redis.ReadCount),
		ReadTimeout:    cfg.Engine.Redis.ReadTimeout,
		FallbackEvery:  cfg.Engine.Fallback.Interval,
		StaleThreshold: cfg.Engine.Fallback.StaleThreshold,
	})
	go manager.Start(ctx)

	// 顾问：后台扫描已完成活动，产出配置建议
	adv := advisor.New(store, nil)
	go adv.Start(ctx)

	// HTTP API
	h := server.NewHandler(store, campaignQueue(stack), campaignBus(stack), manager, adv)
	ctrl.SetMetrics(h.GetMetrics())

	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		cancel()
		manager.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("server shutdown error")
		}
	}()

	logger.Info("engine server listening", "port", cfg.APIPort)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.WithError(err).Error("server error")
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// queueOrNil / busOrNil 把缺失的 Redis 映射为 nil 接口
func queueOrNil(r *infra.RedisInfra) queue.Queue {
	if r == nil {
		return nil
	}
	return r.Queue()
}

func busOrNil(r *infra.RedisInfra) eventbus.EventBus {
	if r == nil {
		return nil
	}
	return r.EventBus()
}

// campaignQueue / campaignBus 从聚合层取窄接口，
// 缺失时返回 nil，下游（管理器、WebSocket 网关）据此走降级路径
func campaignQueue(s *infra.Infrastructure) queue.CampaignRunQueue {
	if s.Queue == nil {
		return nil
	}
	return s.Queue
}

func campaignBus(s *infra.Infrastructure) eventbus.CampaignEventBus {
	if s.EventBus == nil {
		return nil
	}
	return s.EventBus
}
