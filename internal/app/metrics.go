package app

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"trainschedule/internal/domain"
)

// Metrics holds the service-level Prometheus collectors.
type Metrics struct {
	rejections *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_validation_rejections_total",
			Help: "Schedule writes rejected by validation, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.rejections)
	return m
}

func (m *Metrics) observeRejection(err error) {
	if m == nil {
		return
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		m.rejections.WithLabelValues(string(ve.Reason)).Inc()
	}
}
