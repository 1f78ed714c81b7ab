package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/pipeline"
	rediscommon "wisefido-vitals/internal/redis"
)

// AlertSink 报警外发接口（云端上报等）
type AlertSink interface {
	SendAlert(ctx context.Context, event *models.AlertEvent) error
}

// Metrics 监控指标
type Metrics struct {
	mu sync.RWMutex

	// 消息处理统计
	MessagesProcessed int64 // 处理的消息总数
	MessagesSucceeded int64 // 成功处理的消息数
	MessagesFailed    int64 // 处理失败的消息数
	MessagesSkipped   int64 // 跳过的消息数（缓冲未满窗等）

	// 错误分类统计
	ErrorsParse    int64 // 解析错误
	ErrorsPipeline int64 // 管线计算失败
	ErrorsState    int64 // 状态读写失败
	ErrorsCache    int64 // 缓存更新失败

	// 性能指标
	TotalProcessingTime time.Duration // 总处理时间
	LastProcessTime     time.Time     // 最后处理时间

	// 启动时间
	StartTime time.Time
}

// GetSnapshot 获取指标快照（线程安全）
func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		MessagesProcessed:   m.MessagesProcessed,
		MessagesSucceeded:   m.MessagesSucceeded,
		MessagesFailed:      m.MessagesFailed,
		MessagesSkipped:     m.MessagesSkipped,
		ErrorsParse:         m.ErrorsParse,
		ErrorsPipeline:      m.ErrorsPipeline,
		ErrorsState:         m.ErrorsState,
		ErrorsCache:         m.ErrorsCache,
		TotalProcessingTime: m.TotalProcessingTime,
		LastProcessTime:     m.LastProcessTime,
		StartTime:           m.StartTime,
	}
}

// IncrementProcessed 增加处理计数
func (m *Metrics) IncrementProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesProcessed++
}

// IncrementSucceeded 增加成功计数
func (m *Metrics) IncrementSucceeded(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSucceeded++
	m.TotalProcessingTime += duration
	m.LastProcessTime = time.Now()
}

// IncrementFailed 增加失败计数
func (m *Metrics) IncrementFailed(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesFailed++
	switch errorType {
	case "parse":
		m.ErrorsParse++
	case "pipeline":
		m.ErrorsPipeline++
	case "state":
		m.ErrorsState++
	case "cache":
		m.ErrorsCache++
	}
}

// IncrementSkipped 增加跳过计数
func (m *Metrics) IncrementSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSkipped++
}

// StreamConsumer Redis Streams 消费者
//
// 按会话缓存样本，每累计 StepSize 个新样本驱动一次管线评估：
// 清洗整个缓冲 → 提取末窗口特征 → 规则检测 → 风险评分（上一窗口
// 突破标志从 StateManager 读取/写回）→ 更新实时缓存，触发报警时
// 发布报警事件并外发
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	buffers     *SessionBuffer
	cleaner     *pipeline.Cleaner
	extractor   *pipeline.Extractor
	detector    *pipeline.Detector
	scorer      *pipeline.Scorer
	states      *StateManager
	cache       *CacheManager
	alertSink   AlertSink // 可为 nil（未启用云端上报）
	logger      *zap.Logger
	metrics     *Metrics
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	buffers *SessionBuffer,
	cleaner *pipeline.Cleaner,
	extractor *pipeline.Extractor,
	detector *pipeline.Detector,
	scorer *pipeline.Scorer,
	states *StateManager,
	cache *CacheManager,
	alertSink AlertSink,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		buffers:     buffers,
		cleaner:     cleaner,
		extractor:   extractor,
		detector:    detector,
		scorer:      scorer,
		states:      states,
		cache:       cache,
		alertSink:   alertSink,
		logger:      logger,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Metrics 返回指标
func (c *StreamConsumer) Metrics() *Metrics {
	return c.metrics
}

// Start 启动消费者
func (c *StreamConsumer) Start(ctx context.Context) error {
	stream := c.config.Stream.SamplesStream
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, stream, c.config.Stream.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group for %s: %w", stream, err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("consumer_group", c.config.Stream.ConsumerGroup),
		zap.String("consumer_name", c.config.Stream.ConsumerName),
		zap.String("stream", stream),
	)

	// 启动指标报告协程
	metricsCtx, metricsCancel := context.WithCancel(ctx)
	defer metricsCancel()
	go c.reportMetrics(metricsCtx)

	// 消费循环（失败时指数退避）
	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			if err := c.consumeStream(ctx, stream); err != nil {
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeStream 消费一批消息
func (c *StreamConsumer) consumeStream(ctx context.Context, stream string) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		stream,
		c.config.Stream.ConsumerGroup,
		c.config.Stream.ConsumerName,
		c.config.Stream.BatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		c.metrics.IncrementProcessed()
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
			continue
		}
		if err := rediscommon.AckMessage(ctx, c.redisClient, stream, c.config.Stream.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("stream_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条样本消息
func (c *StreamConsumer) processMessage(ctx context.Context, msg rediscommon.StreamMessage) error {
	startTime := time.Now()

	dataStr, ok := msg.Values["data"].(string)
	if !ok {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("missing data field in message")
	}

	var sampleMsg models.SampleMessage
	if err := json.Unmarshal([]byte(dataStr), &sampleMsg); err != nil {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("failed to unmarshal sample message: %w", err)
	}
	if sampleMsg.SessionID == "" {
		c.metrics.IncrementFailed("parse")
		return fmt.Errorf("missing session_id in message")
	}

	snapshot, total := c.buffers.Append(sampleMsg.SessionID, sampleMsg.Sample)

	// 缓冲未满窗，或未到步长评估点：只累积
	w := c.config.Pipeline.WindowSize
	step := int64(c.config.Pipeline.StepSize)
	if len(snapshot) < w || total%step != 0 {
		c.metrics.IncrementSkipped()
		return nil
	}

	if err := c.evaluateSession(ctx, sampleMsg.SessionID, snapshot); err != nil {
		return err
	}

	c.metrics.IncrementSucceeded(time.Since(startTime))
	return nil
}

// evaluateSession 对会话当前缓冲运行一次管线评估
func (c *StreamConsumer) evaluateSession(ctx context.Context, sessionID string, samples []models.Sample) error {
	// 同一会话的状态读-改-写必须互斥（见 StateManager）
	unlock := c.states.Lock(sessionID)
	defer unlock()

	prevBreached, err := c.states.GetPrevBreached(ctx, sessionID)
	if err != nil {
		c.metrics.IncrementFailed("state")
		return err
	}

	// 清洗整个缓冲（伪影/置信度需要窗口上下文），再取末窗口做特征
	cleaned, err := c.cleaner.Clean(samples)
	if err != nil {
		c.metrics.IncrementFailed("pipeline")
		return fmt.Errorf("failed to clean samples: %w", err)
	}

	w := c.config.Pipeline.WindowSize
	window, err := c.extractor.ExtractWindow(cleaned[len(cleaned)-w:])
	if err != nil {
		c.metrics.IncrementFailed("pipeline")
		return fmt.Errorf("failed to extract features: %w", err)
	}

	result := c.detector.Detect(window)
	records, lastBreached := c.scorer.Score([]models.AnomalyResult{result}, prevBreached)
	record := records[0]

	if err := c.states.SetPrevBreached(ctx, sessionID, lastBreached); err != nil {
		c.metrics.IncrementFailed("state")
		return err
	}

	if err := c.cache.UpdateRiskCache(ctx, sessionID, &record); err != nil {
		c.metrics.IncrementFailed("cache")
		return err
	}

	if record.AlertTriggered {
		event := &models.AlertEvent{
			EventID:    uuid.New().String(),
			SessionID:  sessionID,
			Timestamp:  record.WindowEnd,
			RiskScore:  record.RiskScore,
			Confidence: record.FinalConfidence,
			Reasons:    record.Reasons,
			Comment:    record.AlertComment,
		}
		if err := c.cache.PublishAlert(ctx, event); err != nil {
			c.metrics.IncrementFailed("cache")
			return err
		}
		if c.alertSink != nil {
			if err := c.alertSink.SendAlert(ctx, event); err != nil {
				// 云端上报失败不影响本地报警流
				c.logger.Error("Failed to send alert to cloud",
					zap.String("event_id", event.EventID),
					zap.Error(err),
				)
			}
		}
	}

	return nil
}

// reportMetrics 周期性输出处理指标
func (c *StreamConsumer) reportMetrics(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := c.metrics.GetSnapshot()
			c.logger.Info("Stream consumer metrics",
				zap.Int64("processed", snapshot.MessagesProcessed),
				zap.Int64("succeeded", snapshot.MessagesSucceeded),
				zap.Int64("failed", snapshot.MessagesFailed),
				zap.Int64("skipped", snapshot.MessagesSkipped),
				zap.Duration("total_processing_time", snapshot.TotalProcessingTime),
			)
		}
	}
}
