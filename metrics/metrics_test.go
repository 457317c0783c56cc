package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersStartAtZero(t *testing.T) {
	assert.Equal(t, 0.0, testutil.ToFloat64(AlertsReceivedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(ReconciliationRunsTotal))
}

func TestAlertsAcceptedTotalIsLabeledByStrategy(t *testing.T) {
	AlertsAcceptedTotal.WithLabelValues("momentum-1").Inc()
	AlertsAcceptedTotal.WithLabelValues("momentum-1").Inc()
	AlertsAcceptedTotal.WithLabelValues("momentum-2").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(AlertsAcceptedTotal.WithLabelValues("momentum-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(AlertsAcceptedTotal.WithLabelValues("momentum-2")))
}

func TestRegistryGathersRegisteredSeries(t *testing.T) {
	AlertsReceivedTotal.Inc()
	families, err := Registry.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSubscriptionsGaugeSetAndRead(t *testing.T) {
	SubscriptionsGauge.Set(12)
	assert.Equal(t, 12.0, testutil.ToFloat64(SubscriptionsGauge))
}
