package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/pipeline"
)

// makeCleaned 生成 n 个满置信度的清洗样本
func makeCleaned(n int) []models.CleanedSample {
	cleaned := make([]models.CleanedSample, n)
	for i := range cleaned {
		cleaned[i] = models.CleanedSample{
			Sample: models.Sample{
				Timestamp:   float64(i),
				HeartRate:   models.Float(75),
				SpO2:        models.Float(98),
				BPSystolic:  120,
				BPDiastolic: 80,
			},
			ArtifactConfidence: 1.0,
		}
	}
	return cleaned
}

func TestExtractor_ExtractWindow_ConstantSeries(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	cleaned := makeCleaned(30)
	fw, err := extractor.ExtractWindow(cleaned)
	require.NoError(t, err)

	require.Equal(t, 29.0, fw.WindowEnd)
	require.InDelta(t, 75.0, fw.HeartRateMean, 1e-9)
	require.InDelta(t, 0.0, fw.HeartRateVar, 1e-9)
	// 恒定序列斜率恰好为 0
	require.Equal(t, 0.0, fw.HeartRateSlope)
	require.InDelta(t, 98.0, fw.SpO2Mean, 1e-9)
	require.InDelta(t, 120.0, fw.BPSystolicMean, 1e-9)
	require.InDelta(t, 1.0, fw.ConfidenceMean, 1e-9)
}

func TestExtractor_ExtractWindow_LinearSeriesSlope(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	// HR 每样本 +1：OLS 斜率恰好为 1.0
	cleaned := makeCleaned(30)
	for i := range cleaned {
		cleaned[i].HeartRate = models.Float(70 + float64(i))
	}

	fw, err := extractor.ExtractWindow(cleaned)
	require.NoError(t, err)

	require.InDelta(t, 1.0, fw.HeartRateSlope, 1e-9)
	require.InDelta(t, 70+14.5, fw.HeartRateMean, 1e-9)
	require.Greater(t, fw.HeartRateVar, 0.0)
}

func TestExtractor_ExtractWindow_KnownVariance(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	cleaned := makeCleaned(3)
	cleaned[0].HeartRate = models.Float(1)
	cleaned[1].HeartRate = models.Float(2)
	cleaned[2].HeartRate = models.Float(3)

	fw, err := extractor.ExtractWindow(cleaned)
	require.NoError(t, err)

	// 总体方差（除以 N）：Var([1,2,3]) = 2/3
	require.InDelta(t, 2.0, fw.HeartRateMean, 1e-9)
	require.InDelta(t, 2.0/3.0, fw.HeartRateVar, 1e-9)
	require.InDelta(t, 1.0, fw.HeartRateSlope, 1e-9)
}

func TestExtractor_MissingValuesExcludedFromMean(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	cleaned := makeCleaned(10)
	cleaned[3].HeartRate = nil
	cleaned[7].HeartRate = nil
	for i := range cleaned {
		if cleaned[i].HeartRate != nil {
			cleaned[i].HeartRate = models.Float(80)
		}
	}

	fw, err := extractor.ExtractWindow(cleaned)
	require.NoError(t, err)

	// 缺失值不参与均值，窗口含缺失时斜率恒为 0
	require.InDelta(t, 80.0, fw.HeartRateMean, 1e-9)
	require.Equal(t, 0.0, fw.HeartRateSlope)
	// SpO2 无缺失，不受影响
	require.InDelta(t, 98.0, fw.SpO2Mean, 1e-9)
}

func TestExtractor_AllMissingSignal(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	cleaned := makeCleaned(10)
	for i := range cleaned {
		cleaned[i].SpO2 = nil
	}

	fw, err := extractor.ExtractWindow(cleaned)
	require.NoError(t, err)

	// 全窗缺失：均值/方差/斜率都为 0，由置信度门控兜底
	require.Equal(t, 0.0, fw.SpO2Mean)
	require.Equal(t, 0.0, fw.SpO2Var)
	require.Equal(t, 0.0, fw.SpO2Slope)
}

func TestExtractor_ExtractAll_WindowCount(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	// n=60, W=30, S=10：起点 0,10,20,30 共 4 个窗口（含末窗口）
	cleaned := makeCleaned(60)
	windows, err := extractor.ExtractAll(cleaned, 30, 10)
	require.NoError(t, err)
	require.Len(t, windows, 4)

	require.Equal(t, 29.0, windows[0].WindowEnd)
	require.Equal(t, 39.0, windows[1].WindowEnd)
	require.Equal(t, 49.0, windows[2].WindowEnd)
	require.Equal(t, 59.0, windows[3].WindowEnd)
}

func TestExtractor_ExtractAll_TooFewSamples(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	cleaned := makeCleaned(20)
	_, err := extractor.ExtractAll(cleaned, 30, 10)
	require.ErrorIs(t, err, pipeline.ErrInsufficientData)
}

func TestExtractor_ExtractAll_MatchesPerWindowExtraction(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	// 滑动累加器的结果必须与逐窗口独立重算一致
	cleaned := makeCleaned(100)
	for i := range cleaned {
		cleaned[i].HeartRate = models.Float(70 + float64(i%13))
		cleaned[i].SpO2 = models.Float(95 + float64(i%4))
		cleaned[i].BPSystolic = 115 + float64(i%9)
		cleaned[i].ArtifactConfidence = 1.0 - float64(i%5)*0.1
	}
	// 掺入缺失值，验证缺失计数随窗口滑动正确进出
	cleaned[17].HeartRate = nil
	cleaned[18].HeartRate = nil
	cleaned[55].SpO2 = nil

	w, s := 30, 10
	windows, err := extractor.ExtractAll(cleaned, w, s)
	require.NoError(t, err)

	for i, fw := range windows {
		start := i * s
		expected, err := extractor.ExtractWindow(cleaned[start : start+w])
		require.NoError(t, err)

		require.InDelta(t, expected.HeartRateMean, fw.HeartRateMean, 1e-9, "window %d", i)
		require.InDelta(t, expected.HeartRateVar, fw.HeartRateVar, 1e-9, "window %d", i)
		require.InDelta(t, expected.SpO2Mean, fw.SpO2Mean, 1e-9, "window %d", i)
		require.InDelta(t, expected.SpO2Var, fw.SpO2Var, 1e-9, "window %d", i)
		require.InDelta(t, expected.BPSystolicMean, fw.BPSystolicMean, 1e-9, "window %d", i)
		require.InDelta(t, expected.BPSystolicSlope, fw.BPSystolicSlope, 1e-9, "window %d", i)
		require.InDelta(t, expected.ConfidenceMean, fw.ConfidenceMean, 1e-9, "window %d", i)
	}
}

func TestExtractor_ExtractAll_Deterministic(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	cleaned := makeCleaned(80)
	for i := range cleaned {
		cleaned[i].HeartRate = models.Float(70 + float64(i%7))
	}

	first, err := extractor.ExtractAll(cleaned, 30, 10)
	require.NoError(t, err)
	second, err := extractor.ExtractAll(cleaned, 30, 10)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestExtractor_ExtractAll_StepLargerThanWindow(t *testing.T) {
	extractor := pipeline.NewExtractor(config.DefaultPipeline(), zap.NewNop())

	// S > W：窗口互不重叠，累加器整窗换血
	cleaned := makeCleaned(50)
	for i := range cleaned {
		cleaned[i].HeartRate = models.Float(float64(i))
	}

	windows, err := extractor.ExtractAll(cleaned, 10, 20)
	require.NoError(t, err)
	require.Len(t, windows, 3)

	require.InDelta(t, 4.5, windows[0].HeartRateMean, 1e-9)
	require.InDelta(t, 24.5, windows[1].HeartRateMean, 1e-9)
	require.InDelta(t, 44.5, windows[2].HeartRateMean, 1e-9)
}
