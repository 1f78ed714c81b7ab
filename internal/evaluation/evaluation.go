// Package evaluation 报警系统离线评估
//
// 将风险记录与仿真数据的恶化真值标签对齐，计算精确率/召回率/F1/
// 误报率与报警延迟，用于阈值标定回归
package evaluation

import (
	"fmt"
	"strings"

	"wisefido-vitals/internal/models"
)

// Report 评估报告
type Report struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TN int `json:"tn"`

	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	FalseAlertRate float64 `json:"false_alert_rate"`

	// AlertLatency 首个真值恶化到首次报警的延迟（秒）；未报警或无恶化时为 nil
	AlertLatency *float64 `json:"alert_latency,omitempty"`
}

// Evaluate 将每条风险记录与其窗口期内（(ts-windowSec, ts]）的真值标签对齐
// 窗口期内出现过恶化标签即视为该窗口真值为阳性
func Evaluate(vitals []models.LabeledSample, records []models.RiskRecord, windowSec float64) Report {
	report := Report{}

	for _, rec := range records {
		truth := false
		for _, v := range vitals {
			if v.Timestamp > rec.WindowEnd-windowSec && v.Timestamp <= rec.WindowEnd && v.DistressLabel > 0 {
				truth = true
				break
			}
		}

		switch {
		case rec.AlertTriggered && truth:
			report.TP++
		case rec.AlertTriggered && !truth:
			report.FP++
		case !rec.AlertTriggered && truth:
			report.FN++
		default:
			report.TN++
		}
	}

	if report.TP+report.FP > 0 {
		report.Precision = float64(report.TP) / float64(report.TP+report.FP)
		report.FalseAlertRate = float64(report.FP) / float64(report.TP+report.FP)
	}
	if report.TP+report.FN > 0 {
		report.Recall = float64(report.TP) / float64(report.TP+report.FN)
	}
	if report.Precision+report.Recall > 0 {
		report.F1 = 2 * report.Precision * report.Recall / (report.Precision + report.Recall)
	}

	// 报警延迟：首个真值恶化时刻到首次报警时刻
	var distressStart, alertStart *float64
	for _, v := range vitals {
		if v.DistressLabel > 0 {
			distressStart = models.Float(v.Timestamp)
			break
		}
	}
	for _, rec := range records {
		if rec.AlertTriggered {
			alertStart = models.Float(rec.WindowEnd)
			break
		}
	}
	if distressStart != nil && alertStart != nil {
		report.AlertLatency = models.Float(*alertStart - *distressStart)
	}

	return report
}

// String 报告的控制台格式
func (r Report) String() string {
	var b strings.Builder
	b.WriteString("--- EVALUATION REPORT ---\n")
	fmt.Fprintf(&b, "Precision: %.2f\n", r.Precision)
	fmt.Fprintf(&b, "Recall:    %.2f\n", r.Recall)
	fmt.Fprintf(&b, "F1 Score:  %.2f\n", r.F1)
	fmt.Fprintf(&b, "False Alert Rate: %.2f\n", r.FalseAlertRate)
	if r.AlertLatency != nil {
		fmt.Fprintf(&b, "Alert Latency: %.1f seconds\n", *r.AlertLatency)
	} else {
		b.WriteString("Alert Latency: N/A (No alerts or no distress detected)\n")
	}
	b.WriteString("-------------------------")
	return b.String()
}
