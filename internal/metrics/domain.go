package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	snapshotWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "resumebuilder",
			Subsystem: "snapshot",
			Name:      "write_failures_total",
			Help:      "本地快照写入失败次数（失败被吞掉，仅记录）。",
		},
	)

	snapshotReadFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumebuilder",
			Subsystem: "snapshot",
			Name:      "read_fallbacks_total",
			Help:      "读取快照时回落到默认文档的次数。",
		},
		[]string{"reason"},
	)

	remoteOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumebuilder",
			Subsystem: "remote",
			Name:      "operations_total",
			Help:      "远端同步操作次数。",
		},
		[]string{"op", "outcome"},
	)

	workspacesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "resumebuilder",
			Subsystem: "workspace",
			Name:      "active",
			Help:      "驻留内存的设备工作区数量。",
		},
	)

	assistantSuggestions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumebuilder",
			Subsystem: "assistant",
			Name:      "suggestions_total",
			Help:      "文本建议次数，source 为 model 或 fallback。",
		},
		[]string{"mode", "source"},
	)
)

func SnapshotWriteFailed() { snapshotWriteFailures.Inc() }

func SnapshotReadFallback(reason string) { snapshotReadFallbacks.WithLabelValues(reason).Inc() }

// RemoteOp 记录一次远端操作；outcome 取值 ok / error / rejected。
func RemoteOp(op, outcome string) { remoteOps.WithLabelValues(op, outcome).Inc() }

func AssistantSuggestion(mode, source string) {
	assistantSuggestions.WithLabelValues(mode, source).Inc()
}

func SetActiveWorkspaces(n int) { workspacesActive.Set(float64(n)) }
