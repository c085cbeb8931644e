package metrics

import (
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	influxclient "github.com/influxdata/influxdb/client/v2"
)

// InfluxDBConfig names the remote database a StartInfluxDBReporter push
// loop writes to, grounded on the go-metrics ecosystem's bundled influxdb
// reporter (exp/influxdb) -- rebuilt directly against
// github.com/influxdata/influxdb/client/v2's HTTP client since that
// reporter predates the v2 client API.
type InfluxDBConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	Interval time.Duration
	Tags     map[string]string
}

// StartInfluxDBReporter periodically snapshots DefaultRegistry into an
// InfluxDB line-protocol batch and writes it. Errors are logged and the
// loop continues -- a reporting outage must never affect block
// production.
func StartInfluxDBReporter(cfg InfluxDBConfig) error {
	c, err := influxclient.NewHTTPClient(influxclient.HTTPConfig{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return err
	}
	go runInfluxDBReporter(c, cfg)
	return nil
}

func runInfluxDBReporter(c influxclient.Client, cfg InfluxDBConfig) {
	for range time.Tick(cfg.Interval) {
		bp, err := influxclient.NewBatchPoints(influxclient.BatchPointsConfig{Database: cfg.Database})
		if err != nil {
			logger.Warn("influxdb: new batch failed", "err", err)
			continue
		}
		DefaultRegistry.Each(func(name string, metric interface{}) {
			fields := influxDBFields(metric)
			if fields == nil {
				return
			}
			pt, err := influxclient.NewPoint(name, cfg.Tags, fields, time.Now())
			if err != nil {
				return
			}
			bp.AddPoint(pt)
		})
		if err := c.Write(bp); err != nil {
			logger.Warn("influxdb: write failed", "err", err)
		}
	}
}

func influxDBFields(metric interface{}) map[string]interface{} {
	switch m := metric.(type) {
	case gometrics.Gauge:
		return map[string]interface{}{"value": m.Snapshot().Value()}
	case gometrics.GaugeFloat64:
		return map[string]interface{}{"value": m.Snapshot().Value()}
	case gometrics.Counter:
		return map[string]interface{}{"count": m.Snapshot().Count()}
	case gometrics.Meter:
		s := m.Snapshot()
		return map[string]interface{}{"count": s.Count(), "rate1": s.Rate1(), "rate5": s.Rate5()}
	case gometrics.Timer:
		s := m.Snapshot()
		return map[string]interface{}{"count": s.Count(), "mean": s.Mean(), "max": s.Max()}
	}
	return nil
}
