package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
)

// Extractor 滑动窗口特征提取器
//
// 每个窗口对 HR/SpO2/BP收缩压 计算均值、总体方差与 OLS 斜率，
// 并聚合窗口内的样本置信度均值
//
// 缺失值策略（全管线统一）：
// - 均值/方差：缺失值不参与
// - 斜率：窗口内存在缺失或有效点不足 2 个时恒为 0.0
// - 某信号全窗缺失时均值/方差为 0，由置信度门控兜底
type Extractor struct {
	cfg    config.Pipeline
	logger *zap.Logger
}

// NewExtractor 创建特征提取器
func NewExtractor(cfg config.Pipeline, logger *zap.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		logger: logger,
	}
}

// ExtractWindow 单次模式：整个缓冲区作为一个窗口
func (e *Extractor) ExtractWindow(window []models.CleanedSample) (models.FeatureWindow, error) {
	if len(window) == 0 {
		return models.FeatureWindow{}, ErrInsufficientData
	}
	windows, err := e.ExtractAll(window, len(window), 1)
	if err != nil {
		return models.FeatureWindow{}, err
	}
	return windows[0], nil
}

// ExtractAll 连续模式：窗口大小 W、步长 S 的滑动提取
// 产出起点 0, S, 2S, … 上满足 start+W ≤ len 的全部窗口
//
// 滚动统计用增量累加器（运行和/平方和/索引加权和）维护，
// 每个样本摊销 O(1)，不做逐窗口重算
func (e *Extractor) ExtractAll(cleaned []models.CleanedSample, windowSize, stepSize int) ([]models.FeatureWindow, error) {
	if windowSize < 1 || stepSize < 1 {
		return nil, fmt.Errorf("invalid window parameters: size=%d step=%d", windowSize, stepSize)
	}
	n := len(cleaned)
	if n < windowSize {
		return nil, ErrInsufficientData
	}

	var hr, spo2, bp signalAcc
	confSum := 0.0

	// 初始窗口 [0, W)
	for i := 0; i < windowSize; i++ {
		hr.add(i, cleaned[i].HeartRate)
		spo2.add(i, cleaned[i].SpO2)
		bp.add(i, &cleaned[i].BPSystolic)
		confSum += cleaned[i].ArtifactConfidence
	}

	var windows []models.FeatureWindow
	windows = append(windows, buildWindow(cleaned, 0, windowSize, &hr, &spo2, &bp, confSum))

	for start := stepSize; start+windowSize <= n; start += stepSize {
		prevStart := start - stepSize

		// 移出旧窗口中已滑出的样本
		for j := prevStart; j < start && j < prevStart+windowSize; j++ {
			hr.remove(j, cleaned[j].HeartRate)
			spo2.remove(j, cleaned[j].SpO2)
			bp.remove(j, &cleaned[j].BPSystolic)
			confSum -= cleaned[j].ArtifactConfidence
		}

		// 移入新窗口中尚未覆盖的样本（步长大于窗口时为整窗）
		addFrom := start
		if prevStart+windowSize > addFrom {
			addFrom = prevStart + windowSize
		}
		for j := addFrom; j < start+windowSize; j++ {
			hr.add(j, cleaned[j].HeartRate)
			spo2.add(j, cleaned[j].SpO2)
			bp.add(j, &cleaned[j].BPSystolic)
			confSum += cleaned[j].ArtifactConfidence
		}

		windows = append(windows, buildWindow(cleaned, start, windowSize, &hr, &spo2, &bp, confSum))
	}

	return windows, nil
}

// buildWindow 从累加器落盘一个特征窗口
func buildWindow(cleaned []models.CleanedSample, start, w int, hr, spo2, bp *signalAcc, confSum float64) models.FeatureWindow {
	return models.FeatureWindow{
		WindowEnd: cleaned[start+w-1].Timestamp,

		HeartRateMean:  hr.mean(),
		HeartRateVar:   hr.variance(),
		HeartRateSlope: hr.slope(start, w),

		SpO2Mean:  spo2.mean(),
		SpO2Var:   spo2.variance(),
		SpO2Slope: spo2.slope(start, w),

		BPSystolicMean:  bp.mean(),
		BPSystolicVar:   bp.variance(),
		BPSystolicSlope: bp.slope(start, w),

		ConfidenceMean: confSum / float64(w),
	}
}

// signalAcc 单信号滑动累加器
type signalAcc struct {
	count   int     // 窗口内有效样本数
	sum     float64 // Σv
	sumSq   float64 // Σv²
	idxSum  float64 // Σ(全局索引×v)，换算窗口内斜率用
	missing int     // 窗口内缺失样本数
}

func (a *signalAcc) add(i int, v *float64) {
	if v == nil {
		a.missing++
		return
	}
	a.count++
	a.sum += *v
	a.sumSq += *v * *v
	a.idxSum += float64(i) * *v
}

func (a *signalAcc) remove(i int, v *float64) {
	if v == nil {
		a.missing--
		return
	}
	a.count--
	a.sum -= *v
	a.sumSq -= *v * *v
	a.idxSum -= float64(i) * *v
}

func (a *signalAcc) mean() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

// variance 总体方差（除以 N）
func (a *signalAcc) variance() float64 {
	if a.count == 0 {
		return 0
	}
	m := a.mean()
	v := a.sumSq/float64(a.count) - m*m
	if v < 0 {
		// 浮点残差
		v = 0
	}
	return v
}

// slope 窗口 [start, start+w) 内值对局部索引 t=0..w-1 的 OLS 斜率
// 窗口不足 2 个样本或存在缺失时按约定恒为 0.0
func (a *signalAcc) slope(start, w int) float64 {
	if w < 2 || a.missing > 0 {
		return 0
	}
	nf := float64(w)
	sumT := nf * (nf - 1) / 2
	sumT2 := (nf - 1) * nf * (2*nf - 1) / 6
	sumTV := a.idxSum - float64(start)*a.sum
	denom := nf*sumT2 - sumT*sumT
	if denom == 0 {
		return 0
	}
	return (nf*sumTV - sumT*a.sum) / denom
}
