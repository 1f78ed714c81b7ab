package models

// Sample 原始体征样本（1Hz 采样）
//
// HeartRate/SpO2 使用指针表示可缺失：传感器脱落、丢包或清洗后
// 无法插值的长缺口均为 nil，下游聚合必须显式处理，不得隐式补零
type Sample struct {
	Timestamp   float64  `json:"timestamp"`    // Unix 秒
	HeartRate   *float64 `json:"heart_rate"`   // bpm
	SpO2        *float64 `json:"spo2"`         // percent
	BPSystolic  float64  `json:"bp_systolic"`  // mmHg
	BPDiastolic float64  `json:"bp_diastolic"` // mmHg
	Vibration   float64  `json:"vibration"`    // 车辆振动，无量纲 ≥0
}

// CleanedSample 清洗后的样本
//
// HeartRate/SpO2 可能已被插值替换；被标记为伪影且缺口超限时保持 nil
type CleanedSample struct {
	Sample
	HRArtifact         bool    `json:"hr_artifact"`         // 心率伪影标记
	SpO2Artifact       bool    `json:"spo2_artifact"`       // 血氧伪影标记
	MotionRisk         float64 `json:"motion_risk"`         // 运动风险 [0,1]
	ArtifactConfidence float64 `json:"artifact_confidence"` // 样本可信度 [0,1]
}

// FeatureWindow 一个特征窗口的统计量
//
// 由恰好 W 个连续 CleanedSample 计算；缺失值不参与均值/方差，
// 窗口内存在缺失或有效点不足 2 个时斜率恒为 0.0
type FeatureWindow struct {
	WindowEnd float64 `json:"timestamp"` // 窗口末样本时间戳

	HeartRateMean  float64 `json:"heart_rate_mean"`
	HeartRateVar   float64 `json:"heart_rate_var"`
	HeartRateSlope float64 `json:"heart_rate_slope"`

	SpO2Mean  float64 `json:"spo2_mean"`
	SpO2Var   float64 `json:"spo2_var"`
	SpO2Slope float64 `json:"spo2_slope"`

	BPSystolicMean  float64 `json:"bp_systolic_mean"`
	BPSystolicVar   float64 `json:"bp_systolic_var"`
	BPSystolicSlope float64 `json:"bp_systolic_slope"`

	ConfidenceMean float64 `json:"confidence_mean"` // 窗口内 artifact_confidence 均值
}

// AnomalyResult 规则检测结果
type AnomalyResult struct {
	FeatureWindow
	IsAnomaly bool     `json:"is_anomaly"`
	Reasons   []string `json:"reasons"` // 触发的规则名，按规则表顺序
}

// RiskRecord 风险评分与报警决策
//
// 第 i 条记录仅依赖第 i-1 条的 ThresholdBreached（1 步记忆），
// 序列首窗口的前序视为未突破
type RiskRecord struct {
	AnomalyResult
	RiskScore         float64 `json:"risk_score"`         // [0,1]
	SensorStability   float64 `json:"sensor_stability"`   // [0,1]
	FinalConfidence   float64 `json:"final_confidence"`   // [0,1]
	ThresholdBreached bool    `json:"threshold_breached"` // risk_score > risk_threshold
	PersistentRisk    bool    `json:"persistent_risk"`    // 连续两个窗口突破
	AlertTriggered    bool    `json:"alert_triggered"`    // persistent_risk 且置信度可接受
	AlertComment      string  `json:"alert_comment"`      // 可解释性说明
}

// AlertEvent 上报到云端/报警流的事件
type AlertEvent struct {
	EventID    string   `json:"event_id"`
	SessionID  string   `json:"session_id"`
	Timestamp  float64  `json:"timestamp"`
	RiskScore  float64  `json:"risk_score"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
	Comment    string   `json:"comment"`
}

// LabeledSample 带病情恶化真值标签的样本（仿真与离线评估用）
type LabeledSample struct {
	Sample
	DistressLabel int `json:"distress_label"` // 0=正常, 1=恶化
}

// Float 构造 float64 指针的便捷函数
func Float(v float64) *float64 {
	return &v
}
