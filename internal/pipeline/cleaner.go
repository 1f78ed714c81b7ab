// Package pipeline 实现体征监测的四级处理管线
//
// 数据单向流动：原始样本 → 清洗样本 → 特征窗口 → 规则检测结果 → 风险记录
//
// 各级均为纯函数式变换，唯一的跨窗口状态（上一窗口的阈值突破标志）
// 由 Scorer 的调用方显式传入/取回，管线内部不持有任何可变全局状态
package pipeline

import (
	"math"

	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
)

// Cleaner 运动伪影清洗器
//
// 处理逻辑：
// 1. 振动超过阈值的样本标记为运动样本
// 2. motion_risk = is_motion 的居中滚动最大值（5 样本窗口，不满窗为 0）
// 3. 在运动门控下标记 HR/SpO2 突变伪影；SpO2 绝对下限规则不受门控限制
// 4. 被标记的值清除为缺失，与原始缺失一起线性插值（缺口超限保持缺失）
// 5. artifact_confidence = 1 - clip(振动的居中滚动均值, 0, 1)
type Cleaner struct {
	cfg    config.Pipeline
	logger *zap.Logger
}

// NewCleaner 创建清洗器
func NewCleaner(cfg config.Pipeline, logger *zap.Logger) *Cleaner {
	return &Cleaner{
		cfg:    cfg,
		logger: logger,
	}
}

// Clean 清洗一段时间有序的样本序列
// 输出与输入等长且顺序一致，不修改输入
func (c *Cleaner) Clean(samples []models.Sample) ([]models.CleanedSample, error) {
	if len(samples) == 0 {
		return nil, ErrInsufficientData
	}

	n := len(samples)
	cleaned := make([]models.CleanedSample, n)
	for i := range samples {
		cleaned[i].Sample = samples[i]
	}

	// 1-2. 运动风险：is_motion 的居中滚动最大值
	// 窗口 [i-(w-1)/2, i+w/2]，越界（不满窗）时风险为 0
	isMotion := make([]bool, n)
	for i, s := range samples {
		isMotion[i] = s.Vibration > c.cfg.MotionThreshold
	}
	w := c.cfg.MotionWindow
	for i := range cleaned {
		lo := i - (w-1)/2
		hi := i + w/2
		if lo < 0 || hi >= n {
			continue
		}
		for j := lo; j <= hi; j++ {
			if isMotion[j] {
				cleaned[i].MotionRisk = 1.0
				break
			}
		}
	}

	// 3. 伪影标记：相邻样本突变 + 运动门控
	// 差分基于原始值计算；任一侧缺失则无差分、不标记
	for i := 1; i < n; i++ {
		if cleaned[i].MotionRisk <= 0.5 {
			continue
		}
		cur, prev := samples[i], samples[i-1]
		if cur.SpO2 != nil && prev.SpO2 != nil && math.Abs(*cur.SpO2-*prev.SpO2) > c.cfg.SpO2JumpLimit {
			cleaned[i].SpO2Artifact = true
		}
		if cur.HeartRate != nil && prev.HeartRate != nil && math.Abs(*cur.HeartRate-*prev.HeartRate) > c.cfg.HRJumpLimit {
			cleaned[i].HRArtifact = true
		}
	}

	// SpO2 绝对下限规则：强运动期间的极端低值直接视为传感器脱落
	for i := range cleaned {
		if cleaned[i].MotionRisk > 0.8 && samples[i].SpO2 != nil && *samples[i].SpO2 < 85 {
			cleaned[i].SpO2Artifact = true
		}
	}

	// 4. 清除被标记的值，与原始缺失统一插值
	for i := range cleaned {
		if cleaned[i].HRArtifact {
			cleaned[i].HeartRate = nil
		}
		if cleaned[i].SpO2Artifact {
			cleaned[i].SpO2 = nil
		}
	}
	interpolateGaps(cleaned, c.cfg.InterpolationLimit,
		func(s *models.CleanedSample) *float64 { return s.HeartRate },
		func(s *models.CleanedSample, v *float64) { s.HeartRate = v },
	)
	interpolateGaps(cleaned, c.cfg.InterpolationLimit,
		func(s *models.CleanedSample) *float64 { return s.SpO2 },
		func(s *models.CleanedSample, v *float64) { s.SpO2 = v },
	)

	// 5. 置信度：振动的居中滚动均值
	// 边界策略：流首尾不满窗时按可用跨度收缩
	c.fillConfidence(samples, cleaned)

	return cleaned, nil
}

// fillConfidence 计算每个样本的 artifact_confidence
func (c *Cleaner) fillConfidence(samples []models.Sample, cleaned []models.CleanedSample) {
	n := len(samples)
	w := c.cfg.ConfidenceWindow

	// 振动前缀和，prefix[i] = 前 i 个样本的振动之和
	prefix := make([]float64, n+1)
	for i, s := range samples {
		prefix[i+1] = prefix[i] + s.Vibration
	}

	for i := range cleaned {
		lo := i - (w-1)/2
		hi := i + w/2
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		mean := (prefix[hi+1] - prefix[lo]) / float64(hi-lo+1)
		cleaned[i].ArtifactConfidence = 1.0 - clip(mean, 0, 1)
	}
}

// interpolateGaps 对内部缺口做线性插值
// 仅当缺口两端都有有效邻居且长度不超过 limit 时插值；
// 超限缺口与流首尾缺口保持缺失，向下游显式传播
func interpolateGaps(
	cleaned []models.CleanedSample,
	limit int,
	get func(*models.CleanedSample) *float64,
	set func(*models.CleanedSample, *float64),
) {
	n := len(cleaned)
	i := 0
	for i < n {
		if get(&cleaned[i]) != nil {
			i++
			continue
		}

		gapStart := i
		for i < n && get(&cleaned[i]) == nil {
			i++
		}
		gapEnd := i // 缺口后第一个有效点（或 n）

		if gapStart == 0 || gapEnd == n {
			continue
		}
		if gapEnd-gapStart > limit {
			continue
		}

		left := *get(&cleaned[gapStart-1])
		right := *get(&cleaned[gapEnd])
		span := float64(gapEnd - gapStart + 1)
		for j := gapStart; j < gapEnd; j++ {
			frac := float64(j-gapStart+1) / span
			set(&cleaned[j], models.Float(left+(right-left)*frac))
		}
	}
}
