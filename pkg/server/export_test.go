package server

import "github.com/prometheus/client_golang/prometheus/testutil"

func (m *Metrics) SearchCount(outcome string) float64 {
	return testutil.ToFloat64(m.searches.WithLabelValues(outcome))
}
