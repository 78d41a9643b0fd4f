package prometheus

import (
	"net/http"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() goAccounts.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter is a prometheus.Collector that reads engine metrics at scrape time.
type Exporter struct {
	source       metricsSource
	counters     []counterDesc
	histograms   []histogramDesc
	auditDropped *prometheus.Desc
}

type counterDesc struct {
	id   goAccounts.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   goAccounts.MetricID
	desc *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter creates a collector that reads from the given [goAccounts.Engine].
func NewExporter(engine *goAccounts.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource creates a collector from any metrics source.
func NewExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:     source,
		counters:   make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms: make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		auditDropped: prometheus.NewDesc(
			internaldefs.AuditDroppedName,
			"Dropped audit events due to dispatcher backpressure.",
			nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, counterDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, histogramDesc{id: def.ID, desc: prometheus.NewDesc(def.Name, def.Help, nil, nil)})
	}
	return e
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range e.counters {
		ch <- c.desc
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
	ch <- e.auditDropped
}

// Collect implements prometheus.Collector. Nothing is emitted while engine
// metrics are disabled and no audit events were dropped.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}

	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return
	}

	for _, c := range e.counters {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(snapshot.Counters[c.id]))
	}

	for _, h := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[h.id]))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for i, bound := range internaldefs.HistogramUpperBounds {
			buckets[bound] = cumulative[i]
		}
		// sum is not tracked by the engine's fixed buckets
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(e.auditDropped, prometheus.CounterValue, float64(dropped))
}

// Handler returns an http.Handler serving this collector from a private
// registry, so nothing is added to the global default registry.
func (e *Exporter) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(e)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
