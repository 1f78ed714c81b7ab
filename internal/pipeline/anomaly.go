package pipeline

import (
	"go.uber.org/zap"

	"wisefido-vitals/internal/models"
)

// 规则触发原因（响应中原样返回，勿改动文案）
const (
	ReasonRisingHR      = "Rising HR trend"
	ReasonDecliningSpO2 = "Declining SpO2 trend"
	ReasonRisingBP      = "Rising Systolic BP"
)

// 规则阈值（按 1Hz 采样标定，斜率单位为 每样本）
const (
	hrSlopeLimit   = 0.05
	hrMeanLimit    = 100.0
	spo2SlopeLimit = -0.01
	spo2MeanLimit  = 95.0
	bpSlopeLimit   = 0.1
	bpMeanLimit    = 140.0
)

// Detector 规则化异常检测器
//
// 三条规则独立评估，is_anomaly 为逻辑或；
// reasons 按规则表顺序排列，无跨窗口状态
type Detector struct {
	logger *zap.Logger
}

// NewDetector 创建检测器
func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect 对单个特征窗口做规则检测
func (d *Detector) Detect(fw models.FeatureWindow) models.AnomalyResult {
	result := models.AnomalyResult{FeatureWindow: fw}

	// 规则1：心动过速趋势（HR 斜率上升且均值偏高）
	if fw.HeartRateSlope > hrSlopeLimit && fw.HeartRateMean > hrMeanLimit {
		result.Reasons = append(result.Reasons, ReasonRisingHR)
	}

	// 规则2：血氧去饱和趋势
	if fw.SpO2Slope < spo2SlopeLimit && fw.SpO2Mean < spo2MeanLimit {
		result.Reasons = append(result.Reasons, ReasonDecliningSpO2)
	}

	// 规则3：收缩压上升趋势
	if fw.BPSystolicSlope > bpSlopeLimit && fw.BPSystolicMean > bpMeanLimit {
		result.Reasons = append(result.Reasons, ReasonRisingBP)
	}

	result.IsAnomaly = len(result.Reasons) > 0

	if result.IsAnomaly {
		d.logger.Debug("Anomaly rules triggered",
			zap.Float64("window_end", fw.WindowEnd),
			zap.Strings("reasons", result.Reasons),
		)
	}

	return result
}
