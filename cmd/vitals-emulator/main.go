package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/evaluation"
	"wisefido-vitals/internal/logger"
	"wisefido-vitals/internal/models"
	mqttcommon "wisefido-vitals/internal/mqtt"
	"wisefido-vitals/internal/pipeline"
	"wisefido-vitals/internal/simulator"
)

// vitals-emulator 救护车转运场景仿真器
//
// 两种模式：
//   - offline: 生成合成序列，在本地跑完整管线并输出评估报告，
//     用于阈值标定回归
//   - online（默认）: 按采样率把样本发布到 MQTT 主题
//     vitals/{session_id}/data，驱动运行中的监测服务
func main() {
	offline := flag.Bool("offline", false, "run pipeline locally and print evaluation report")
	duration := flag.Int("duration", 1800, "simulation duration in seconds (1Hz sampling)")
	seed := flag.Int64("seed", 1, "random seed for reproducible scenarios")
	session := flag.String("session", "ambulance-001", "session identifier for MQTT publishing")
	rate := flag.Float64("rate", 1.0, "publish rate in samples per second")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.NewDevelopmentLogger()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	gen := simulator.NewGenerator(simulator.Options{
		DurationSec: *duration,
		StartTime:   0,
		Seed:        *seed,
	})
	labeled := gen.Generate()

	if *offline {
		if err := runOffline(cfg, log, labeled); err != nil {
			log.Fatal("Offline evaluation failed", zap.Error(err))
		}
		return
	}

	if err := runOnline(cfg, log, labeled, *session, *rate); err != nil {
		log.Fatal("Online publishing failed", zap.Error(err))
	}
}

// runOffline 本地跑完整管线并输出评估报告
func runOffline(cfg *config.Config, log *zap.Logger, labeled []models.LabeledSample) error {
	samples := make([]models.Sample, len(labeled))
	for i, s := range labeled {
		samples[i] = s.Sample
	}

	cleaner := pipeline.NewCleaner(cfg.Pipeline, log)
	extractor := pipeline.NewExtractor(cfg.Pipeline, log)
	detector := pipeline.NewDetector(log)
	scorer := pipeline.NewScorer(cfg.Pipeline, log)

	cleaned, err := cleaner.Clean(samples)
	if err != nil {
		return fmt.Errorf("failed to clean samples: %w", err)
	}

	windows, err := extractor.ExtractAll(cleaned, cfg.Pipeline.WindowSize, cfg.Pipeline.StepSize)
	if err != nil {
		return fmt.Errorf("failed to extract features: %w", err)
	}

	results := make([]models.AnomalyResult, len(windows))
	for i, w := range windows {
		results[i] = detector.Detect(w)
	}

	records, _ := scorer.Score(results, false)

	alerts := 0
	for _, rec := range records {
		if rec.AlertTriggered {
			alerts++
		}
	}
	log.Info("Pipeline run complete",
		zap.Int("samples", len(samples)),
		zap.Int("windows", len(windows)),
		zap.Int("alerts", alerts),
	)

	report := evaluation.Evaluate(labeled, records, float64(cfg.Pipeline.WindowSize))
	fmt.Println(report.String())
	return nil
}

// runOnline 按采样率把样本发布到 MQTT
func runOnline(cfg *config.Config, log *zap.Logger, labeled []models.LabeledSample, session string, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid publish rate: %f", rate)
	}

	mqttClient, err := mqttcommon.NewClient(&mqttcommon.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: "vitals-emulator-" + session,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	defer mqttClient.Disconnect()

	topic := fmt.Sprintf("vitals/%s/data", session)
	interval := time.Duration(float64(time.Second) / rate)

	log.Info("Publishing simulated samples",
		zap.String("topic", topic),
		zap.Int("total", len(labeled)),
		zap.Duration("interval", interval),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 发布时使用实时时间戳，接收端据此对齐窗口
	start := time.Now()
	for i, s := range labeled {
		select {
		case sig := <-sigChan:
			log.Info("Received shutdown signal", zap.String("signal", sig.String()))
			return nil
		case <-ticker.C:
		}

		sample := s.Sample
		sample.Timestamp = float64(start.Unix()) + float64(i)/rate

		payload, err := json.Marshal(sample)
		if err != nil {
			return fmt.Errorf("failed to marshal sample: %w", err)
		}
		if err := mqttClient.Publish(topic, 1, false, payload); err != nil {
			log.Error("Failed to publish sample",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}

		if (i+1)%100 == 0 {
			log.Info("Publishing progress",
				zap.Int("published", i+1),
				zap.Int("total", len(labeled)),
			)
		}
	}

	log.Info("All samples published", zap.Int("total", len(labeled)))
	return nil
}
