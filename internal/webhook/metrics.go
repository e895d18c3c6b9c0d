package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/logfields"
)

const metricNamespace = "mergebot_webhook"

const eventsMetricName = "events_total"

const (
	providerLabel = "provider"
	resultLabel   = "result"
)

type eventResult string

const (
	resultProcessed eventResult = "processed"
	resultIgnored   eventResult = "ignored"
	resultFiltered  eventResult = "filtered"
	resultFailed    eventResult = "failed"
)

type metricCollector struct {
	logger *zap.Logger
	events *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		events: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      eventsMetricName,
				Help:      "count of received webhook events by provider and processing result",
			},
			[]string{providerLabel, resultLabel},
		),
	}
}

func (m *metricCollector) EventsInc(provider string, res eventResult) {
	cnt, err := m.events.GetMetricWith(prometheus.Labels{
		providerLabel: provider,
		resultLabel:   string(res),
	})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", eventsMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}
