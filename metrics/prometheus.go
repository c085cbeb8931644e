package metrics

import (
	"fmt"
	"net/http"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corechain/node/internal/log"
)

var logger = log.NewModuleLogger(log.Metrics)

// prometheusProvider mirrors every gauge/counter/meter in DefaultRegistry
// into a prometheus.Registerer on a fixed interval, grounded on the
// teacher's metrics/prometheus.NewPrometheusProvider / UpdatePrometheusMetrics
// call shape (cmd/kcn/main.go).
type prometheusProvider struct {
	source   gometrics.Registry
	target   prometheus.Registerer
	interval time.Duration
	gauges   map[string]prometheus.Gauge
}

func newPrometheusProvider(source gometrics.Registry, target prometheus.Registerer, interval time.Duration) *prometheusProvider {
	return &prometheusProvider{source: source, target: target, interval: interval, gauges: make(map[string]prometheus.Gauge)}
}

func (p *prometheusProvider) run() {
	for range time.Tick(p.interval) {
		p.updateOnce()
	}
}

func (p *prometheusProvider) updateOnce() {
	p.source.Each(func(name string, metric interface{}) {
		value, ok := gaugeValue(metric)
		if !ok {
			return
		}
		g, known := p.gauges[name]
		if !known {
			g = prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "corenode",
				Name:      sanitizeMetricName(name),
			})
			if err := p.target.Register(g); err != nil {
				logger.Warn("prometheus: register failed", "metric", name, "err", err)
				return
			}
			p.gauges[name] = g
		}
		g.Set(value)
	})
}

func gaugeValue(metric interface{}) (float64, bool) {
	switch m := metric.(type) {
	case gometrics.Gauge:
		return float64(m.Snapshot().Value()), true
	case gometrics.GaugeFloat64:
		return m.Snapshot().Value(), true
	case gometrics.Counter:
		return float64(m.Snapshot().Count()), true
	case gometrics.Meter:
		return m.Snapshot().Rate1(), true
	}
	return 0, false
}

func sanitizeMetricName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

// StartPrometheusExporter serves /metrics on port, translating
// DefaultRegistry into Prometheus gauges every interval. Called from
// corenode's app.Before hook (setupMetrics in main.go) when both
// MetricsEnabledFlag and PrometheusExporterFlag are set.
func StartPrometheusExporter(port int, interval time.Duration) {
	provider := newPrometheusProvider(DefaultRegistry, prometheus.DefaultRegisterer, interval)
	go provider.run()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/memsize/", MemsizeHTTPHandler())
	go func() {
		addr := fmt.Sprintf(":%d", port)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("prometheus exporter stopped", "addr", addr, "err", err)
		}
	}()
}
