package pipeline

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
)

// Scorer 风险评分与报警决策器
//
// 风险分为三路体征偏离的加权和（HR 0.4 / SpO2 0.4 / BP 0.2），
// HR 上升叠加 SpO2 下降时上调 20%；置信度为样本可信度与
// 传感器稳定度的加权融合
//
// 报警判定是一个 1 步记忆的状态机：
// - persistent_risk：当前与上一窗口均突破风险阈值（持续性门控）
// - alert_triggered：持续性成立且置信度可接受
//
// 置信度门控是有意的安全取舍：剧烈运动期间即使风险分很高也会
// 抑制报警（低置信度下宁可漏报，不可误报），见 SUPPRESSED 说明
type Scorer struct {
	cfg    config.Pipeline
	logger *zap.Logger
}

// NewScorer 创建评分器
func NewScorer(cfg config.Pipeline, logger *zap.Logger) *Scorer {
	return &Scorer{
		cfg:    cfg,
		logger: logger,
	}
}

// Score 对时间有序的检测结果序列逐窗评分
//
// prevBreached 为序列首窗口的前序突破标志；单次请求无历史窗口时
// 必须传 false。跨调用的持续性状态由调用方保存，评分器不持有状态。
// 返回风险记录序列与末窗口的突破标志（供调用方保存）
func (s *Scorer) Score(results []models.AnomalyResult, prevBreached bool) ([]models.RiskRecord, bool) {
	records := make([]models.RiskRecord, 0, len(results))
	for _, r := range results {
		rec := s.scoreOne(r, prevBreached)
		prevBreached = rec.ThresholdBreached
		records = append(records, rec)
	}
	return records, prevBreached
}

// scoreOne 评估单个窗口
func (s *Scorer) scoreOne(r models.AnomalyResult, prevBreached bool) models.RiskRecord {
	// 归一化风险分：HR 基线 75/上限 120，SpO2 基线 98/下限 90，BP 基线 120/上限 160
	hrRisk := clip((r.HeartRateMean-75)/45, 0, 1) * 0.4
	spo2Risk := clip((98-r.SpO2Mean)/8, 0, 1) * 0.4
	bpRisk := clip((r.BPSystolicMean-120)/40, 0, 1) * 0.2
	risk := clip(hrRisk+spo2Risk+bpRisk, 0, 1)

	// 危重协同：HR 上升且 SpO2 下降时风险上调 20%
	if r.HeartRateSlope > 0.02 && r.SpO2Slope < -0.005 {
		risk = clip(risk*1.2, 0, 1)
	}

	// 置信度融合：HR 方差过大视为传感器不稳定
	stability := 1.0 - clip(r.HeartRateVar/100, 0, 0.5)
	finalConfidence := clip(r.ConfidenceMean*0.7+stability*0.3, 0, 1)

	breached := risk > s.cfg.RiskThreshold
	rec := models.RiskRecord{
		AnomalyResult:     r,
		RiskScore:         risk,
		SensorStability:   stability,
		FinalConfidence:   finalConfidence,
		ThresholdBreached: breached,
		PersistentRisk:    breached && prevBreached,
	}
	rec.AlertTriggered = rec.PersistentRisk && finalConfidence > s.cfg.ConfidenceThreshold
	rec.AlertComment = s.alertComment(rec)

	if rec.AlertTriggered {
		s.logger.Info("Alert triggered",
			zap.Float64("window_end", rec.WindowEnd),
			zap.Float64("risk_score", rec.RiskScore),
			zap.Float64("final_confidence", rec.FinalConfidence),
			zap.Strings("reasons", rec.Reasons),
		)
	}

	return rec
}

// alertComment 可解释性说明，守卫链首个命中生效
func (s *Scorer) alertComment(rec models.RiskRecord) string {
	confidenceAcceptable := rec.FinalConfidence > s.cfg.ConfidenceThreshold

	switch {
	case rec.AlertTriggered:
		return fmt.Sprintf("CRITICAL: High risk (%.2f) with stable sensor (%.2f). %s",
			rec.RiskScore, rec.FinalConfidence, strings.Join(rec.Reasons, "; "))
	case rec.ThresholdBreached && !confidenceAcceptable:
		return fmt.Sprintf("SUPPRESSED: High risk (%.2f) but low confidence (%.2f) due to motion/artifacts.",
			rec.RiskScore, rec.FinalConfidence)
	case rec.ThresholdBreached && !rec.PersistentRisk:
		return "WAITING: Risk threshold breached but awaiting trend persistence."
	default:
		return "Normal status."
	}
}
