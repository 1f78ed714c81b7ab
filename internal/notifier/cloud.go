// Package notifier 云端报警上报
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"wisefido-vitals/internal/models"
)

// CloudNotifier 云端报警上报客户端
//
// 把触发的报警事件 POST 到调度中心，带重试；
// 上报失败由调用方决定是否降级（本地报警流不受影响）
type CloudNotifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewCloudNotifier 创建云端上报客户端
func NewCloudNotifier(baseURL string, timeout time.Duration, logger *zap.Logger) *CloudNotifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &CloudNotifier{
		httpClient: client,
		logger:     logger,
	}
}

// SendAlert 上报单个报警事件
func (c *CloudNotifier) SendAlert(ctx context.Context, event *models.AlertEvent) error {
	c.logger.Info("Sending alert to cloud",
		zap.String("event_id", event.EventID),
		zap.String("session_id", event.SessionID),
		zap.Float64("risk_score", event.RiskScore),
	)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(event).
		Post("/api/v1/alerts")

	if err != nil {
		c.logger.Error("Cloud alert call failed",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send alert: %w", err)
	}

	if resp.StatusCode() >= 300 {
		return fmt.Errorf("cloud alert rejected: status=%d body=%s", resp.StatusCode(), resp.String())
	}

	return nil
}
