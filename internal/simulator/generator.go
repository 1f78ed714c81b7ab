// Package simulator 合成车载体征数据生成器
//
// 生成带真值标签的救护车转运场景数据：正常噪声、渐进恶化段、
// 颠簸伪影段（振动与 HR/SpO2 耦合突变）与传感器脱落段，
// 用于仿真发布与离线评估
package simulator

import (
	"math"
	"math/rand"

	"wisefido-vitals/internal/models"
)

// 场景时间段（秒，相对序列起点）
type span struct {
	start, end float64
}

// Options 生成参数
type Options struct {
	DurationSec int     // 总时长（秒），1Hz 采样
	StartTime   float64 // 首样本时间戳
	Seed        int64
}

// DefaultOptions 默认 30 分钟转运场景
func DefaultOptions() Options {
	return Options{
		DurationSec: 1800,
		StartTime:   0,
		Seed:        1,
	}
}

// Generator 合成数据生成器
type Generator struct {
	opts Options
	rng  *rand.Rand

	deterioration span   // 渐进恶化段
	artifacts     []span // 颠簸伪影段
	dropouts      []span // 传感器脱落段
}

// NewGenerator 创建生成器（相同 Seed 产出相同序列）
func NewGenerator(opts Options) *Generator {
	return &Generator{
		opts:          opts,
		rng:           rand.New(rand.NewSource(opts.Seed)),
		deterioration: span{900, 1500},
		artifacts:     []span{{300, 330}, {700, 720}, {1200, 1230}},
		dropouts:      []span{{1000, 1010}, {1600, 1605}},
	}
}

// Generate 生成完整序列
func (g *Generator) Generate() []models.LabeledSample {
	n := g.opts.DurationSec
	samples := make([]models.LabeledSample, 0, n)

	detLen := g.deterioration.end - g.deterioration.start

	for i := 0; i < n; i++ {
		t := float64(i)

		// 基线 + 正常转运噪声
		hr := 75.0 + g.rng.NormFloat64()*1.0
		spo2 := 98.0 + g.rng.NormFloat64()*0.2
		bpSys := 120.0 + g.rng.NormFloat64()*2.0
		bpDia := 80.0 + g.rng.NormFloat64()*1.5
		vibration := 0.1 + g.rng.NormFloat64()*0.05
		if vibration < 0 {
			vibration = 0
		}

		// 渐进恶化：HR 升至 115+，SpO2 降至 ~90，BP 升高
		label := 0
		if t >= g.deterioration.start && t <= g.deterioration.end {
			progress := (t - g.deterioration.start) / detLen
			hr += 40 * progress
			spo2 -= 8 * progress
			bpSys += 30 * progress
		}
		// 趋势确立后才打恶化标签
		if t >= g.deterioration.start+100 {
			label = 1
		}

		// 颠簸伪影：强振动耦合 SpO2 骤降与 HR 尖峰
		for _, a := range g.artifacts {
			if t >= a.start && t <= a.end {
				vibration += 0.5 + g.rng.Float64()*0.7
				spo2 -= 5 + g.rng.Float64()*10
				hr += 10 + g.rng.Float64()*10
			}
		}

		// 生理范围截断
		hr = math.Min(math.Max(hr, 40), 200)
		spo2 = math.Min(math.Max(spo2, 60), 100)
		bpSys = math.Min(math.Max(bpSys, 60), 220)
		bpDia = math.Min(math.Max(bpDia, 40), 130)

		s := models.LabeledSample{
			Sample: models.Sample{
				Timestamp:   g.opts.StartTime + t,
				HeartRate:   models.Float(hr),
				SpO2:        models.Float(spo2),
				BPSystolic:  bpSys,
				BPDiastolic: bpDia,
				Vibration:   vibration,
			},
			DistressLabel: label,
		}

		// 传感器脱落：HR/SpO2 缺失
		for _, d := range g.dropouts {
			if t >= d.start && t <= d.end {
				s.HeartRate = nil
				s.SpO2 = nil
			}
		}

		samples = append(samples, s)
	}

	return samples
}
