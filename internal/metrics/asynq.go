package metrics

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exportTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumebuilder",
			Subsystem: "export",
			Name:      "tasks_total",
			Help:      "导出任务处理次数，按结果分组（ok/error）。",
		},
		[]string{"task_type", "outcome"},
	)

	exportTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resumebuilder",
			Subsystem: "export",
			Name:      "task_duration_seconds",
			Help:      "单次导出任务耗时（秒），包含浏览器渲染与上传。",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 90},
		},
		[]string{"task_type"},
	)

	exportTasksInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "resumebuilder",
			Subsystem: "export",
			Name:      "tasks_in_flight",
			Help:      "当前正在处理的导出任务数量。",
		},
		[]string{"task_type"},
	)
)

// AsynqMetricsMiddleware 记录导出队列的任务处理指标，按任务类型分组。
func AsynqMetricsMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			exportTasksInFlight.WithLabelValues(taskType).Inc()
			defer exportTasksInFlight.WithLabelValues(taskType).Dec()

			start := time.Now()
			err := next.ProcessTask(ctx, task)
			exportTaskDuration.WithLabelValues(taskType).Observe(time.Since(start).Seconds())

			exportTasksTotal.WithLabelValues(taskType, outcome(err)).Inc()
			return err
		})
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
