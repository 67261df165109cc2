// Package metrics defines the sink interfaces used to record run results.
// Sinks such as the Prometheus and InfluxDB implementations in infra/metrics
// register themselves by type name and are combined with NewMultiSink when
// several are configured.
package metrics
