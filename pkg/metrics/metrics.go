// Package metrics 定义服务的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "budget_control"

var (
	// HTTPRequestsTotal 按路由、方法、状态码统计的请求数
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration 请求耗时（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// ChangeRequestsResolved 已处理的变更申请数
	ChangeRequestsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "requests_resolved_total",
			Help:      "Total number of resolved change requests by kind and status",
		},
		[]string{"kind", "status"},
	)

	// ChangeRequestsSubmitted 提交的变更申请数
	ChangeRequestsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "requests_submitted_total",
			Help:      "Total number of submitted change requests by kind",
		},
		[]string{"kind"},
	)

	// SnapshotsCreated 冻结的快照数
	SnapshotsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "created_total",
			Help:      "Total number of frozen snapshots",
		},
	)

	// ReconciliationDuration 对账计算耗时（秒）
	ReconciliationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"source"},
	)

	// PayrollRowsImported 导入的实发工资行数
	PayrollRowsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payroll",
			Name:      "rows_imported_total",
			Help:      "Total number of payroll fact rows imported",
		},
	)
)
