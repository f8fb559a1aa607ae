package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/mklimuk/sht3x/cmd/sht3x/console"
	"github.com/mklimuk/sht3x/environment"
	"github.com/mklimuk/sht3x/metrics"
)

// fixed2 marshals to JSON with exactly two decimals.
type fixed2 float64

func (f fixed2) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(f), 'f', 2, 64), nil
}

type jsonReading struct {
	Humidity    fixed2 `json:"humi"`
	Temperature fixed2 `json:"temp"`
}

type yamlReading struct {
	Humidity    any    `yaml:"humidity"`
	Temperature any    `yaml:"temperature"`
	Unit        string `yaml:"unit"`
}

type yamlStatus struct {
	Status string                  `yaml:"status"`
	Flags  environment.StatusFlags `yaml:"flags"`
}

var statusLabels = []struct {
	label string
	flag  environment.Status
}{
	{"pending alert", environment.StatusAlertPending},
	{"heater enabled", environment.StatusHeaterEnabled},
	{"humi alert", environment.StatusHumidityAlert},
	{"temp alert", environment.StatusTemperatureAlert},
	{"read periodic", environment.StatusPeriodicRead},
	{"reset detect", environment.StatusResetDetected},
	{"command fail", environment.StatusCommandFailed},
	{"checksum fail", environment.StatusWriteChecksumFailed},
}

type renderer struct {
	out     io.Writer
	mode    outputMode
	integer bool
	unit    environment.Unit
	yaml    *yaml.Encoder

	metrics  *metrics.Exporter
	textfile string
}

func newRenderer(out io.Writer, cfg config) *renderer {
	r := &renderer{
		out:     out,
		mode:    cfg.output,
		integer: cfg.integer,
		unit:    cfg.unit,
	}
	if cfg.textfile != "" {
		r.metrics = metrics.NewExporter(cfg.device, cfg.address)
		r.textfile = cfg.textfile
	}
	return r
}

func (r *renderer) measurement(m environment.Measurement) error {
	if r.metrics != nil {
		r.metrics.ObserveMeasurement(m)
	}
	humi := m.Humidity()
	temp := m.Temperature(r.unit)
	switch r.mode {
	case outputJSON:
		// integer mode does not apply to JSON
		b, err := json.Marshal(jsonReading{Humidity: fixed2(humi), Temperature: fixed2(temp)})
		if err != nil {
			return err
		}
		_, err = r.out.Write(b)
		return err
	case outputYAML:
		reading := yamlReading{Humidity: round2(humi), Temperature: round2(temp), Unit: string(r.unit.Symbol())}
		if r.integer {
			reading.Humidity, reading.Temperature = environment.RoundInt(humi), environment.RoundInt(temp)
		}
		return r.encodeYAML(reading)
	}

	h, t := r.format(humi), r.format(temp)
	var err error
	switch r.mode {
	case outputHumidity:
		_, err = fmt.Fprintf(r.out, "%s\n", h)
	case outputTemperature:
		_, err = fmt.Fprintf(r.out, "%s\n", t)
	case outputBoth:
		_, err = fmt.Fprintf(r.out, "%s %s\n", h, t)
	default:
		_, err = fmt.Fprintf(r.out, "Humidity   : %s %%\nTemperature: %s '%c\n", console.White(h), console.White(t), r.unit.Symbol())
	}
	return err
}

func (r *renderer) status(s environment.Status) error {
	if r.metrics != nil {
		r.metrics.ObserveStatus(s)
	}
	if r.mode == outputYAML {
		return r.encodeYAML(yamlStatus{Status: fmt.Sprintf("%04x", uint16(s)), Flags: s.Flags()})
	}
	if _, err := fmt.Fprintf(r.out, "Status: %04x\n", uint16(s)); err != nil {
		return err
	}
	for _, item := range statusLabels {
		value := "false"
		if s.Has(item.flag) {
			value = console.Yellow("TRUE")
		}
		if _, err := fmt.Fprintf(r.out, "  %-15s: %s\n", item.label, value); err != nil {
			return err
		}
	}
	return nil
}

// close flushes the YAML stream and the metrics textfile. It runs only after
// every requested operation succeeded.
func (r *renderer) close() error {
	if r.yaml != nil {
		if err := r.yaml.Close(); err != nil {
			return err
		}
	}
	if r.metrics != nil {
		return r.metrics.WriteTextfile(r.textfile)
	}
	return nil
}

func (r *renderer) encodeYAML(v any) error {
	if r.yaml == nil {
		r.yaml = yaml.NewEncoder(r.out)
		r.yaml.SetIndent(2)
	}
	return r.yaml.Encode(v)
}

func (r *renderer) format(v float64) string {
	if r.integer {
		return strconv.Itoa(environment.RoundInt(v))
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
