package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// LinkMetrics 链路层业务指标
type LinkMetrics struct {
	FramesSent      *prometheus.CounterVec // labels: endpoint
	FramesReceived  *prometheus.CounterVec // labels: endpoint
	BytesSent       *prometheus.CounterVec // labels: endpoint
	BytesReceived   *prometheus.CounterVec // labels: endpoint
	DecodeErrors    *prometheus.CounterVec // labels: endpoint, reason
	AuthFailTotal   *prometheus.CounterVec // labels: endpoint（篡改嫌疑计数）
	ReplayRejected  *prometheus.CounterVec // labels: endpoint
	QueueDropped    *prometheus.CounterVec // labels: endpoint
	DispatchedTotal *prometheus.CounterVec // labels: endpoint
	OnlinePeers     prometheus.Gauge       // 当前在线对端数
}

// NewLinkMetrics 注册并返回链路指标
func NewLinkMetrics(reg *prometheus.Registry) *LinkMetrics {
	m := &LinkMetrics{
		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_frames_sent_total",
			Help: "Total frames sent per endpoint.",
		}, []string{"endpoint"}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_frames_received_total",
			Help: "Total transport reads yielding data per endpoint.",
		}, []string{"endpoint"}),
		BytesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_bytes_sent_total",
			Help: "Total bytes written to transports.",
		}, []string{"endpoint"}),
		BytesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_bytes_received_total",
			Help: "Total bytes read from transports.",
		}, []string{"endpoint"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_decode_errors_total",
			Help: "Dropped inbound frames by reason.",
		}, []string{"endpoint", "reason"}),
		AuthFailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_auth_failures_total",
			Help: "Authentication failures (tamper suspicion counter).",
		}, []string{"endpoint"}),
		ReplayRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_replay_rejected_total",
			Help: "Frames rejected by the replay guard.",
		}, []string{"endpoint"}),
		QueueDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_queue_dropped_total",
			Help: "Inbound frames dropped due to a full dispatch queue.",
		}, []string{"endpoint"}),
		DispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "link_dispatched_total",
			Help: "Frames delivered to registered handlers.",
		}, []string{"endpoint"}),
		OnlinePeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "link_online_peers",
			Help: "Current number of online peers.",
		}),
	}
	reg.MustRegister(
		m.FramesSent, m.FramesReceived, m.BytesSent, m.BytesReceived,
		m.DecodeErrors, m.AuthFailTotal, m.ReplayRejected, m.QueueDropped,
		m.DispatchedTotal, m.OnlinePeers,
	)
	return m
}
