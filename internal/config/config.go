package config

import (
	"os"
	"strconv"
)

// Config 车载体征监测服务配置
type Config struct {
	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	MQTT struct {
		Broker   string
		ClientID string
		Username string
		Password string
		// 体征数据主题，格式: vitals/{session_id}/data
		DataTopic string
	}

	HTTP struct {
		Addr string
	}

	// 流处理配置
	Stream struct {
		SamplesStream string // 原始样本 Stream
		AlertsStream  string // 报警事件 Stream
		ConsumerGroup string
		ConsumerName  string
		BatchSize     int64
	}

	// 缓存配置
	Cache struct {
		RiskKeyPrefix  string // 实时风险缓存键前缀，如 "vitals:session:"
		RiskSuffix     string // 实时风险缓存键后缀，如 ":risk"
		RiskTTL        int    // 实时风险缓存 TTL（秒）
		StateKeyPrefix string // 报警持续性状态键前缀，如 "vitals:state:"
		StateTTL       int    // 状态 TTL（秒），超时视为无历史窗口
	}

	// 管线配置（阈值均按 1Hz 采样标定）
	Pipeline Pipeline

	// 云端报警上报配置
	Cloud struct {
		Enabled bool
		BaseURL string
		Timeout int // 秒
	}

	Log struct {
		Level  string
		Format string
	}
}

// Pipeline 管线参数（清洗/特征/风险各阶段阈值）
type Pipeline struct {
	MotionThreshold     float64 // 振动判定阈值
	MotionWindow        int     // 运动风险滚动窗口（样本数）
	SpO2JumpLimit       float64 // 相邻样本 SpO2 突变上限
	HRJumpLimit         float64 // 相邻样本心率突变上限
	InterpolationLimit  int     // 插值允许的最大缺口（样本数）
	ConfidenceWindow    int     // 置信度滚动窗口（样本数）
	WindowSize          int     // 特征窗口大小 W
	StepSize            int     // 滑动步长 S
	MinSamples          int     // 单次请求最少样本数
	RiskThreshold       float64 // 风险分报警阈值
	ConfidenceThreshold float64 // 置信度可接受阈值
}

// DefaultPipeline 管线默认参数
func DefaultPipeline() Pipeline {
	return Pipeline{
		MotionThreshold:     0.6,
		MotionWindow:        5,
		SpO2JumpLimit:       2.0,
		HRJumpLimit:         5.0,
		InterpolationLimit:  30,
		ConfidenceWindow:    60,
		WindowSize:          30,
		StepSize:            10,
		MinSamples:          10,
		RiskThreshold:       0.6,
		ConfidenceThreshold: 0.7,
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-vitals")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.DataTopic = getEnv("MQTT_DATA_TOPIC", "vitals/+/data")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Stream.SamplesStream = getEnv("STREAM_SAMPLES", "vitals:stream:samples")
	cfg.Stream.AlertsStream = getEnv("STREAM_ALERTS", "vitals:stream:alerts")
	cfg.Stream.ConsumerGroup = getEnv("STREAM_CONSUMER_GROUP", "vitals-pipeline")
	cfg.Stream.ConsumerName = getEnv("STREAM_CONSUMER_NAME", "vitals-pipeline-1")
	cfg.Stream.BatchSize = int64(getEnvInt("STREAM_BATCH_SIZE", 10))

	cfg.Cache.RiskKeyPrefix = getEnv("CACHE_RISK_PREFIX", "vitals:session:")
	cfg.Cache.RiskSuffix = ":risk"
	cfg.Cache.RiskTTL = getEnvInt("CACHE_RISK_TTL", 30)
	cfg.Cache.StateKeyPrefix = getEnv("CACHE_STATE_PREFIX", "vitals:state:")
	cfg.Cache.StateTTL = getEnvInt("CACHE_STATE_TTL", 120)

	cfg.Pipeline = DefaultPipeline()
	cfg.Pipeline.MotionThreshold = getEnvFloat("PIPELINE_MOTION_THRESHOLD", cfg.Pipeline.MotionThreshold)
	cfg.Pipeline.InterpolationLimit = getEnvInt("PIPELINE_INTERPOLATION_LIMIT", cfg.Pipeline.InterpolationLimit)
	cfg.Pipeline.ConfidenceWindow = getEnvInt("PIPELINE_CONFIDENCE_WINDOW", cfg.Pipeline.ConfidenceWindow)
	cfg.Pipeline.WindowSize = getEnvInt("PIPELINE_WINDOW_SIZE", cfg.Pipeline.WindowSize)
	cfg.Pipeline.StepSize = getEnvInt("PIPELINE_STEP_SIZE", cfg.Pipeline.StepSize)
	cfg.Pipeline.MinSamples = getEnvInt("PIPELINE_MIN_SAMPLES", cfg.Pipeline.MinSamples)
	cfg.Pipeline.RiskThreshold = getEnvFloat("PIPELINE_RISK_THRESHOLD", cfg.Pipeline.RiskThreshold)
	cfg.Pipeline.ConfidenceThreshold = getEnvFloat("PIPELINE_CONFIDENCE_THRESHOLD", cfg.Pipeline.ConfidenceThreshold)

	cfg.Cloud.Enabled = getEnv("CLOUD_ALERT_ENABLED", "false") == "true"
	cfg.Cloud.BaseURL = getEnv("CLOUD_ALERT_URL", "")
	cfg.Cloud.Timeout = getEnvInt("CLOUD_ALERT_TIMEOUT", 10)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
