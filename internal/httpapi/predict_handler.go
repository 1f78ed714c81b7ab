package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/pipeline"
)

// PredictionResponse 单次预测响应
type PredictionResponse struct {
	Anomaly    bool    `json:"anomaly"`    // 是否触发报警
	RiskScore  float64 `json:"risk_score"` // [0,1]
	Confidence float64 `json:"confidence"` // [0,1]
	Details    string  `json:"details"`    // 可解释性说明
}

// PredictHandler 单次预测处理器
//
// 请求体为一个样本窗口（通常 30-60 秒 @1Hz）的 JSON 数组；
// 整个缓冲作为单窗口跑完整管线。单次请求无历史窗口，持续性
// 门控的前序突破标志恒为 false，因此 anomaly 不可能在单次
// 请求中为 true（这是持续性设计的有意结果）
type PredictHandler struct {
	config    *config.Config
	cleaner   *pipeline.Cleaner
	extractor *pipeline.Extractor
	detector  *pipeline.Detector
	scorer    *pipeline.Scorer
	logger    *zap.Logger
}

// NewPredictHandler 创建预测处理器
func NewPredictHandler(cfg *config.Config, logger *zap.Logger) *PredictHandler {
	return &PredictHandler{
		config:    cfg,
		cleaner:   pipeline.NewCleaner(cfg.Pipeline, logger),
		extractor: pipeline.NewExtractor(cfg.Pipeline, logger),
		detector:  pipeline.NewDetector(logger),
		scorer:    pipeline.NewScorer(cfg.Pipeline, logger),
		logger:    logger,
	}
}

// Predict 处理 POST /vitals/api/v1/predict
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var samples []models.Sample
	if err := readBodyJSON(r, 1<<20, &samples); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	// 最少样本数门槛：低于该值斜率估计不稳定
	if len(samples) < h.config.Pipeline.MinSamples {
		writeJSON(w, http.StatusBadRequest, Fail("Insufficient data points for stable window analysis."))
		return
	}

	record, err := h.run(samples)
	if err != nil {
		if errors.Is(err, pipeline.ErrInsufficientData) {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		h.logger.Error("Prediction pipeline failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(PredictionResponse{
		Anomaly:    record.AlertTriggered,
		RiskScore:  record.RiskScore,
		Confidence: record.FinalConfidence,
		Details:    record.AlertComment,
	}))
}

// run 单次模式管线：清洗 → 整缓冲特征窗口 → 规则检测 → 风险评分
func (h *PredictHandler) run(samples []models.Sample) (*models.RiskRecord, error) {
	cleaned, err := h.cleaner.Clean(samples)
	if err != nil {
		return nil, err
	}

	window, err := h.extractor.ExtractWindow(cleaned)
	if err != nil {
		return nil, err
	}

	result := h.detector.Detect(window)

	// 单次请求无历史窗口，前序突破标志恒为 false
	records, _ := h.scorer.Score([]models.AnomalyResult{result}, false)
	return &records[0], nil
}
