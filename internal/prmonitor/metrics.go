package prmonitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/logfields"
)

const metricNamespace = "mergebot_monitor"

const (
	queueSizeMetricName    = "queue_size"
	processedMetricName    = "processed_total"
	skippedTicksMetricName = "ticks_skipped_total"
)

const resultLabel = "result"

type metricCollector struct {
	logger       *zap.Logger
	queueSize    prometheus.Gauge
	processed    *prometheus.CounterVec
	skippedTicks prometheus.Counter
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		queueSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricNamespace,
				Name:      queueSizeMetricName,
				Help:      "count of pull requests waiting to be completed",
			},
		),
		processed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      processedMetricName,
				Help:      "count of processed monitored pull requests by result",
			},
			[]string{resultLabel},
		),
		skippedTicks: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      skippedTicksMetricName,
				Help:      "count of ticks that were skipped because the previous tick was still running",
			},
		),
	}
}

func (m *metricCollector) QueueSizeSet(size int) {
	m.queueSize.Set(float64(size))
}

func (m *metricCollector) ProcessedInc(res result) {
	cnt, err := m.processed.GetMetricWith(prometheus.Labels{resultLabel: res.String()})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", processedMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) SkippedTicksInc() {
	m.skippedTicks.Inc()
}
