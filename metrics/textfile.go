// Package metrics exports sensor readings in the Prometheus text format so
// node_exporter's textfile collector can pick them up after each run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mklimuk/sht3x/environment"
)

const namespace = "sht3x"

var statusFlags = []struct {
	name string
	flag environment.Status
}{
	{"pending_alert", environment.StatusAlertPending},
	{"heater_enabled", environment.StatusHeaterEnabled},
	{"humidity_alert", environment.StatusHumidityAlert},
	{"temperature_alert", environment.StatusTemperatureAlert},
	{"read_periodic", environment.StatusPeriodicRead},
	{"reset_detected", environment.StatusResetDetected},
	{"command_failed", environment.StatusCommandFailed},
	{"checksum_failed", environment.StatusWriteChecksumFailed},
}

// Exporter keeps the gauges of a single sensor on a private registry.
type Exporter struct {
	registry    *prometheus.Registry
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
	status      *prometheus.GaugeVec
}

func NewExporter(device string, address byte) *Exporter {
	labels := prometheus.Labels{
		"device":  device,
		"address": fmt.Sprintf("%#02x", address),
	}
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "temperature_celsius",
			Help:        "Air temperature (units: degrees Celsius)",
			ConstLabels: labels,
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "humidity_percent",
			Help:        "Relative humidity (units: % RH)",
			ConstLabels: labels,
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "status_flag",
			Help:        "Status word flags, 1 when set",
			ConstLabels: labels,
		}, []string{"flag"}),
	}
	e.registry.MustRegister(e.temperature, e.humidity, e.status)
	e.registry.MustRegister(collectors.NewBuildInfoCollector())
	return e
}

func (e *Exporter) ObserveMeasurement(m environment.Measurement) {
	e.temperature.Set(m.Temperature(environment.Celsius))
	e.humidity.Set(m.Humidity())
}

func (e *Exporter) ObserveStatus(s environment.Status) {
	for _, f := range statusFlags {
		v := 0.0
		if s.Has(f.flag) {
			v = 1
		}
		e.status.WithLabelValues(f.name).Set(v)
	}
}

// WriteTextfile atomically replaces path with the current metrics.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
