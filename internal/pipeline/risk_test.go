package pipeline_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/pipeline"
)

// deterioratedWindow 明确恶化的窗口：HR 125 / SpO2 90，趋势协同
func deterioratedWindow() models.AnomalyResult {
	return models.AnomalyResult{
		FeatureWindow: models.FeatureWindow{
			HeartRateMean:  125,
			HeartRateVar:   5,
			HeartRateSlope: 0.08,
			SpO2Mean:       90,
			SpO2Slope:      -0.02,
			BPSystolicMean: 120,
			ConfidenceMean: 0.9,
		},
		IsAnomaly: true,
		Reasons:   []string{pipeline.ReasonRisingHR, pipeline.ReasonDecliningSpO2},
	}
}

func normalWindow() models.AnomalyResult {
	return models.AnomalyResult{
		FeatureWindow: models.FeatureWindow{
			HeartRateMean:  75,
			SpO2Mean:       98,
			BPSystolicMean: 120,
			ConfidenceMean: 1.0,
		},
	}
}

func TestScorer_Score_NormalWindow(t *testing.T) {
	scorer := pipeline.NewScorer(config.DefaultPipeline(), zap.NewNop())

	records, lastBreached := scorer.Score([]models.AnomalyResult{normalWindow()}, false)
	require.Len(t, records, 1)
	require.False(t, lastBreached)

	rec := records[0]
	require.InDelta(t, 0.0, rec.RiskScore, 1e-9)
	require.False(t, rec.ThresholdBreached)
	require.False(t, rec.AlertTriggered)
	require.Equal(t, "Normal status.", rec.AlertComment)
	// 满置信度 + 零方差：final_confidence = 1.0
	require.InDelta(t, 1.0, rec.FinalConfidence, 1e-9)
}

func TestScorer_Score_DeterioratedWindowValues(t *testing.T) {
	scorer := pipeline.NewScorer(config.DefaultPipeline(), zap.NewNop())

	records, lastBreached := scorer.Score([]models.AnomalyResult{deterioratedWindow()}, false)
	require.Len(t, records, 1)
	require.True(t, lastBreached)

	rec := records[0]
	// HR 偏离饱和 (0.4) + SpO2 偏离饱和 (0.4) = 0.8，协同上调 20% → 0.96
	require.InDelta(t, 0.96, rec.RiskScore, 1e-9)
	// stability = 1 - 5/100 = 0.95; final = 0.9×0.7 + 0.95×0.3 = 0.915
	require.InDelta(t, 0.95, rec.SensorStability, 1e-9)
	require.InDelta(t, 0.915, rec.FinalConfidence, 1e-9)
	require.True(t, rec.ThresholdBreached)
}

func TestScorer_Score_FirstWindowNeverAlerts(t *testing.T) {
	scorer := pipeline.NewScorer(config.DefaultPipeline(), zap.NewNop())

	// 单窗口即使极端恶化也不报警：持续性要求连续两个窗口突破
	records, _ := scorer.Score([]models.AnomalyResult{deterioratedWindow()}, false)

	rec := records[0]
	require.True(t, rec.ThresholdBreached)
	require.False(t, rec.PersistentRisk)
	require.False(t, rec.AlertTriggered)
	require.Equal(t, "WAITING: Risk threshold breached but awaiting trend persistence.", rec.AlertComment)
}

func TestScorer_Score_PersistenceTriggersAlert(t *testing.T) {
	scorer := pipeline.NewScorer(config.DefaultPipeline(), zap.NewNop())

	results := []models.AnomalyResult{deterioratedWindow(), deterioratedWindow()}
	records, lastBreached := scorer.Score(results, false)
	require.Len(t, records, 2)
	require.True(t, lastBreached)

	// 首窗口等待持续性确认
	require.False(t, records[0].AlertTriggered)
	// 第二个窗口：持续性成立且置信度 0.915 > 0.7 → 报警
	require.True(t, records[1].PersistentRisk)
	require.True(t, records[1].AlertTriggered)
	require.True(t, strings.HasPrefix(records[1].AlertComment, "CRITICAL: High risk (0.96) with stable sensor"))
	require.Contains(t, records[1].AlertComment, pipeline.ReasonRisingHR+"; "+pipeline.ReasonDecliningSpO2)
}

func TestScorer_Score_PrevBreachedCarriesAcrossCalls(t *testing.T) {
	scorer := pipeline.NewScorer(config.DefaultPipeline(), zap.NewNop())

	// 上一次调用的末窗口标志传入后，本次首窗口即可满足持续性
	records, _ := scorer.Score([]models.AnomalyResult{deterioratedWindow()}, true)

	rec := records[0]
	require.True(t, rec.PersistentRisk)
	require.True(t, rec.AlertTriggered)
}

func TestScorer_Score_LowConfidenceSuppressesAlert(t *testing.T) {
	scorer := pipeline.NewScorer(config.DefaultPipeline(), zap.NewNop())

	// 颠簸路段：风险高但样本可信度低、HR 方差大
	noisy := deterioratedWindow()
	noisy.ConfidenceMean = 0.2
	noisy.HeartRateVar = 200

	records, _ := scorer.Score([]models.AnomalyResult{noisy, noisy}, false)

	rec := records[1]
	require.True(t, rec.ThresholdBreached)
	require.True(t, rec.PersistentRisk)
	// stability 封顶在 0.5：final = 0.2×0.7 + 0.5×0.3 = 0.29 < 0.7
	require.InDelta(t, 0.29, rec.FinalConfidence, 1e-9)
	require.False(t, rec.AlertTriggered)
	require.True(t, strings.HasPrefix(rec.AlertComment, "SUPPRESSED: High risk"))
}

func TestScorer_Score_BreachGapResetsPersistence(t *testing.T) {
	scorer := pipeline.NewScorer(config.DefaultPipeline(), zap.NewNop())

	// 突破-恢复-突破：中间的正常窗口打断持续性，第三个窗口重新等待
	results := []models.AnomalyResult{
		deterioratedWindow(),
		normalWindow(),
		deterioratedWindow(),
	}
	records, _ := scorer.Score(results, false)

	require.False(t, records[0].AlertTriggered)
	require.False(t, records[1].ThresholdBreached)
	require.True(t, records[2].ThresholdBreached)
	require.False(t, records[2].PersistentRisk)
	require.False(t, records[2].AlertTriggered)
}

func TestScorer_Score_SynergyOnlyWithBothTrends(t *testing.T) {
	scorer := pipeline.NewScorer(config.DefaultPipeline(), zap.NewNop())

	// HR 上升但 SpO2 平稳：无协同上调
	r := deterioratedWindow()
	r.SpO2Slope = 0
	records, _ := scorer.Score([]models.AnomalyResult{r}, false)
	require.InDelta(t, 0.8, records[0].RiskScore, 1e-9)
}

func TestScorer_Score_RiskScoreClippedToOne(t *testing.T) {
	scorer := pipeline.NewScorer(config.DefaultPipeline(), zap.NewNop())

	r := deterioratedWindow()
	r.BPSystolicMean = 200
	records, _ := scorer.Score([]models.AnomalyResult{r}, false)
	require.InDelta(t, 1.0, records[0].RiskScore, 1e-9)
}
