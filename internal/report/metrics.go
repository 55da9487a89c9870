package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SummariesBuilt prometheus.Counter
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		SummariesBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_report_summaries_built_total",
			Help: "Compliance summaries assembled from the stores",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_report_cache_hits_total",
			Help: "Compliance summaries served from the cache",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "finreg_report_cache_misses_total",
			Help: "Compliance summary cache lookups that missed",
		}),
	}
}

func (m *Metrics) Built() {
	if m == nil {
		return
	}
	m.SummariesBuilt.Inc()
}

func (m *Metrics) Hit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) Miss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}
