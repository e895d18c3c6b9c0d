package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/logfields"
)

const metricNamespace = "mergebot_policy"

const pullRequestsCreatedMetricName = "pull_requests_created_total"

const strategyLabel = "strategy"

type metricCollector struct {
	logger    *zap.Logger
	createdPR *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		createdPR: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      pullRequestsCreatedMetricName,
				Help:      "count of pull requests created by policies",
			},
			[]string{strategyLabel},
		),
	}
}

func (m *metricCollector) PullRequestCreatedInc(strategy Strategy) {
	cnt, err := m.createdPR.GetMetricWith(prometheus.Labels{strategyLabel: strategy.String()})
	if err != nil {
		m.logger.Warn(
			"could not record metric",
			zap.String("metric", pullRequestsCreatedMetricName),
			logfields.Event("recording_metric_failed"),
			zap.Error(err),
		)
		return
	}

	cnt.Inc()
}
