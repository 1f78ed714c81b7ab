package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	mqttcommon "wisefido-vitals/internal/mqtt"
	rediscommon "wisefido-vitals/internal/redis"
)

// MQTTConsumer 车载终端 MQTT 摄入
//
// 主题格式: vitals/{session_id}/data，载荷为单个 Sample JSON
// 收到样本后原样转发到 Redis Streams，由 StreamConsumer 驱动管线
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqttcommon.Client
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	redisClient *redis.Client,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.MQTT.DataTopic, 1, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to data topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.MQTT.DataTopic),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop(ctx context.Context) error {
	if err := c.mqttClient.Unsubscribe(c.config.MQTT.DataTopic); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	// 1. 从主题中提取会话标识
	// 主题格式: vitals/{session_id}/data
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	sessionID := parts[1]

	// 2. 解析样本
	var sample models.Sample
	if err := json.Unmarshal(payload, &sample); err != nil {
		c.logger.Error("Failed to unmarshal MQTT message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return fmt.Errorf("failed to unmarshal sample: %w", err)
	}

	// 3. 转发到 Redis Streams
	msg := models.SampleMessage{
		SessionID: sessionID,
		Sample:    sample,
	}
	if _, err := rediscommon.PublishJSONToStream(
		context.Background(),
		c.redisClient,
		c.config.Stream.SamplesStream,
		msg,
	); err != nil {
		return fmt.Errorf("failed to publish sample to stream: %w", err)
	}

	c.logger.Debug("Sample forwarded to stream",
		zap.String("session_id", sessionID),
		zap.Float64("timestamp", sample.Timestamp),
	)

	return nil
}
