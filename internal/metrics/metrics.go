package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "license_ledger"

// 结果标签取值
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
	ResultReplayed = "replayed"
)

var (
	ledgerAdjustTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "adjust_total",
			Help:      "Balance adjustments partitioned by reason and result.",
		},
		[]string{"reason", "result"},
	)
	ledgerConflictRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "cas_retries_total",
			Help:      "Compare-and-set conflicts that triggered a retry.",
		},
	)
	benefitDaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "benefit",
			Name:      "days_total",
			Help:      "Benefit day outcomes partitioned by result (released, skipped, replayed, failed).",
		},
		[]string{"result"},
	)
	commissionEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commission",
			Name:      "events_total",
			Help:      "Commission lifecycle events partitioned by event.",
		},
		[]string{"event"},
	)
	withdrawalTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "withdrawal",
			Name:      "transitions_total",
			Help:      "Withdrawal state transitions partitioned by target status.",
		},
		[]string{"status"},
	)
	otpVerifyTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "verify_total",
			Help:      "OTP verification attempts partitioned by outcome.",
		},
		[]string{"outcome"},
	)
	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of periodic sweeps.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"sweep"},
	)
)

// ObserveLedgerAdjust 记录账本调整结果
func ObserveLedgerAdjust(reason, result string) {
	ledgerAdjustTotal.WithLabelValues(reason, result).Inc()
}

// ObserveLedgerConflictRetry 记录一次 CAS 冲突重试
func ObserveLedgerConflictRetry() {
	ledgerConflictRetries.Inc()
}

// ObserveBenefitDay 记录收益日处理结果
func ObserveBenefitDay(result string) {
	benefitDaysTotal.WithLabelValues(result).Inc()
}

// ObserveCommission 记录佣金事件
func ObserveCommission(event string, count int) {
	if count <= 0 {
		return
	}
	commissionEventsTotal.WithLabelValues(event).Add(float64(count))
}

// ObserveWithdrawalTransition 记录提现状态流转
func ObserveWithdrawalTransition(status string) {
	withdrawalTransitionsTotal.WithLabelValues(status).Inc()
}

// ObserveOtpVerify 记录口令验证结果
func ObserveOtpVerify(outcome string) {
	otpVerifyTotal.WithLabelValues(outcome).Inc()
}

// ObserveSweep 记录扫描耗时
func ObserveSweep(sweep string, startedAt time.Time) {
	sweepDuration.WithLabelValues(sweep).Observe(time.Since(startedAt).Seconds())
}
