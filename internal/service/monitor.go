package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/consumer"
	"wisefido-vitals/internal/httpapi"
	mqttcommon "wisefido-vitals/internal/mqtt"
	"wisefido-vitals/internal/notifier"
	"wisefido-vitals/internal/pipeline"
	rediscommon "wisefido-vitals/internal/redis"
)

// MonitorService 车载体征监测服务（整合各层）
type MonitorService struct {
	config      *config.Config
	logger      *zap.Logger
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client

	buffers        *consumer.SessionBuffer
	stateManager   *consumer.StateManager
	cacheManager   *consumer.CacheManager
	mqttConsumer   *consumer.MQTTConsumer
	streamConsumer *consumer.StreamConsumer
	httpServer     *httpapi.Server
}

// NewMonitorService 创建监测服务
func NewMonitorService(cfg *config.Config, logger *zap.Logger) (*MonitorService, error) {
	// 1. 连接 Redis
	redisClient := rediscommon.NewClient(&rediscommon.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rediscommon.Ping(context.Background(), redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 2. 连接 MQTT
	mqttClient, err := mqttcommon.NewClient(&mqttcommon.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	// 3. 创建管线组件
	cleaner := pipeline.NewCleaner(cfg.Pipeline, logger)
	extractor := pipeline.NewExtractor(cfg.Pipeline, logger)
	detector := pipeline.NewDetector(logger)
	scorer := pipeline.NewScorer(cfg.Pipeline, logger)

	// 4. 创建 Consumer 层
	// 缓冲容量覆盖置信度窗口的两倍，保证末窗口的滚动统计有上下文
	buffers := consumer.NewSessionBuffer(cfg.Pipeline.ConfidenceWindow * 2)
	stateManager := consumer.NewStateManager(cfg, redisClient, logger)
	cacheManager := consumer.NewCacheManager(cfg, redisClient, logger)

	// 5. 云端报警上报（可选）
	var alertSink consumer.AlertSink
	if cfg.Cloud.Enabled {
		alertSink = notifier.NewCloudNotifier(
			cfg.Cloud.BaseURL,
			time.Duration(cfg.Cloud.Timeout)*time.Second,
			logger,
		)
	}

	mqttConsumer := consumer.NewMQTTConsumer(cfg, mqttClient, redisClient, logger)
	streamConsumer := consumer.NewStreamConsumer(
		cfg,
		redisClient,
		buffers,
		cleaner,
		extractor,
		detector,
		scorer,
		stateManager,
		cacheManager,
		alertSink,
		logger,
	)

	// 6. HTTP 服务（单次预测 + 健康检查）
	router := httpapi.NewRouter(logger)
	router.RegisterVitalsRoutes(httpapi.NewPredictHandler(cfg, logger))
	httpServer := httpapi.NewServer(cfg.HTTP.Addr, router, logger)

	return &MonitorService{
		config:         cfg,
		logger:         logger,
		redisClient:    redisClient,
		mqttClient:     mqttClient,
		buffers:        buffers,
		stateManager:   stateManager,
		cacheManager:   cacheManager,
		mqttConsumer:   mqttConsumer,
		streamConsumer: streamConsumer,
		httpServer:     httpServer,
	}, nil
}

// Start 启动服务（阻塞直到任一组件出错或上下文取消）
func (s *MonitorService) Start(ctx context.Context) error {
	s.logger.Info("Starting vitals monitor service")

	errChan := make(chan error, 3)

	go func() {
		if err := s.streamConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("stream consumer: %w", err)
		}
	}()

	go func() {
		if err := s.mqttConsumer.Start(ctx); err != nil {
			errChan <- fmt.Errorf("mqtt consumer: %w", err)
		}
	}()

	go func() {
		if err := s.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	s.logger.Info("Vitals monitor service started")

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

// Stop 停止服务
func (s *MonitorService) Stop() error {
	s.logger.Info("Stopping vitals monitor service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	if err := s.mqttConsumer.Stop(shutdownCtx); err != nil {
		s.logger.Error("Failed to stop MQTT consumer", zap.Error(err))
	}
	s.mqttClient.Disconnect()

	if err := rediscommon.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis", zap.Error(err))
	}

	return nil
}
