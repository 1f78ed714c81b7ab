package models

// SampleMessage 样本流消息（MQTT 摄入 → Redis Streams → 管线）
type SampleMessage struct {
	SessionID string `json:"session_id"` // 患者/转运会话标识（来自 MQTT 主题）
	Sample    Sample `json:"sample"`
}

// PersistenceState 会话的报警持续性状态（1 步记忆）
type PersistenceState struct {
	ThresholdBreached bool  `json:"threshold_breached"` // 上一窗口是否突破风险阈值
	UpdatedAt         int64 `json:"updated_at"`         // Unix 秒
}
