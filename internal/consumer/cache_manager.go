package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	rediscommon "wisefido-vitals/internal/redis"
)

// CacheManager Redis 缓存管理器
//
// 负责写入会话最新风险记录的实时缓存，并把报警事件发布到报警流
type CacheManager struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCacheManager 创建缓存管理器
func NewCacheManager(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *CacheManager {
	return &CacheManager{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// UpdateRiskCache 更新会话的实时风险缓存
func (c *CacheManager) UpdateRiskCache(ctx context.Context, sessionID string, record *models.RiskRecord) error {
	key := fmt.Sprintf("%s%s%s", c.config.Cache.RiskKeyPrefix, sessionID, c.config.Cache.RiskSuffix)

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal risk record: %w", err)
	}

	ttl := time.Duration(c.config.Cache.RiskTTL) * time.Second
	if err := c.redisClient.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set risk cache: %w", err)
	}

	c.logger.Debug("Updated risk cache",
		zap.String("session_id", sessionID),
		zap.String("key", key),
		zap.Float64("risk_score", record.RiskScore),
	)

	return nil
}

// PublishAlert 发布报警事件到报警流
func (c *CacheManager) PublishAlert(ctx context.Context, event *models.AlertEvent) error {
	id, err := rediscommon.PublishJSONToStream(ctx, c.redisClient, c.config.Stream.AlertsStream, event)
	if err != nil {
		return fmt.Errorf("failed to publish alert event: %w", err)
	}

	c.logger.Info("Alert event published",
		zap.String("event_id", event.EventID),
		zap.String("session_id", event.SessionID),
		zap.String("stream_id", id),
	)

	return nil
}
