package pipeline

import "errors"

// ErrInsufficientData 样本数不足以完成窗口计算
// 直接返回给调用方，不重试（HTTP 层转换为 400）
var ErrInsufficientData = errors.New("insufficient data points for stable window analysis")

// clip 将 v 截断到 [lo, hi]
func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
