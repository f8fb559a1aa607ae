package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sht3x/environment"
)

const defaultDevice = "/dev/i2c-1"

const maxDeviceLen = 255

type outputMode int

const (
	outputHuman outputMode = iota
	outputHumidity
	outputTemperature
	outputBoth
	outputJSON
	outputYAML
)

type readMode int

const (
	readSingleShot readMode = iota
	readStartPeriodic
	readFetchPeriodic
)

type heaterMode int

const (
	heaterUnchanged heaterMode = iota
	heaterOn
	heaterOff
)

// config is built once from the command line and never modified afterwards.
type config struct {
	device       string
	backend      string
	address      byte
	adapterIndex int
	verbose      bool
	integer      bool
	unit         environment.Unit
	output       outputMode
	read         bool
	readMode     readMode
	crc          bool
	accelerated  bool
	stopPeriodic bool
	heater       heaterMode
	reset        bool
	clearStatus  bool
	status       bool
	textfile     string
}

// selection collects the flag groups where the last flag given wins.
type selection struct {
	output   outputMode
	readMode readMode
	heater   heaterMode
	addrHigh bool
}

func newSelection() *selection {
	return &selection{}
}

// choice is a boolean flag that stores its value into a shared target when set.
type choice[T any] struct {
	target *T
	value  T
}

func (c *choice[T]) Set(s string) error {
	on, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	if on && c.target != nil {
		*c.target = c.value
	}
	return nil
}

func (c *choice[T]) String() string {
	return ""
}

func (c *choice[T]) IsBoolFlag() bool {
	return true
}

func pick[T any](name, usage string, target *T, value T) cli.Flag {
	return &cli.GenericFlag{
		Name:  name,
		Usage: usage,
		Value: &choice[T]{target: target, value: value},
	}
}

func newFlags(sel *selection) []cli.Flag {
	return []cli.Flag{
		// measure
		&cli.BoolFlag{Name: "i", Usage: "integer mode (no float)"},
		pick("rh", "output single-line humidity", &sel.output, outputHumidity),
		pick("rt", "output single-line temperature", &sel.output, outputTemperature),
		pick("rht", "output single-line humidity and temperature", &sel.output, outputBoth),
		pick("j", "JSON format", &sel.output, outputJSON),
		pick("y", "YAML format", &sel.output, outputYAML),
		&cli.BoolFlag{Name: "f", Usage: "temperature in Fahrenheit"},
		&cli.BoolFlag{Name: "nr", Usage: "do not read humidity/temp"},
		pick("ps", "measure by starting periodic mode", &sel.readMode, readStartPeriodic),
		pick("pf", "measure by fetching the periodic result", &sel.readMode, readFetchPeriodic),
		&cli.BoolFlag{Name: "pb", Usage: "stop periodic mode"},
		&cli.BoolFlag{Name: "art", Usage: "accelerated response time mode"},
		&cli.BoolFlag{Name: "c", Usage: "verify measurement checksums"},
		// chip setting
		pick("h1", "on-chip heater enable", &sel.heater, heaterOn),
		pick("h0", "on-chip heater disable", &sel.heater, heaterOff),
		&cli.BoolFlag{Name: "s", Usage: "read status word"},
		&cli.BoolFlag{Name: "sc", Usage: "clear status word"},
		&cli.BoolFlag{Name: "R", Usage: "reset chip"},
		// I2C
		pick("a0", "address ADDR=L", &sel.addrHigh, false),
		pick("a1", "address ADDR=H", &sel.addrHigh, true),
		&cli.StringFlag{Name: "d", Usage: "specify I2C device", Value: defaultDevice, EnvVars: []string{"SHT3X_DEVICE"}},
		&cli.StringFlag{Name: "b", Usage: "bus backend", Value: backendPeriph, EnvVars: []string{"SHT3X_BACKEND"}},
		&cli.IntFlag{Name: "u", Usage: "USB adapter index", Value: -1, EnvVars: []string{"SHT3X_ADAPTER_INDEX"}},
		// metrics
		&cli.StringFlag{Name: "m", Usage: "write Prometheus metrics to file", EnvVars: []string{"SHT3X_TEXTFILE"}},
		// general
		&cli.BoolFlag{Name: "v", Usage: "verbose mode"},
	}
}

func newConfig(c *cli.Context, sel *selection) config {
	device := c.String("d")
	if len(device) > maxDeviceLen {
		device = device[:maxDeviceLen]
	}
	unit := environment.Celsius
	if c.Bool("f") {
		unit = environment.Fahrenheit
	}
	return config{
		device:       device,
		backend:      c.String("b"),
		address:      environment.AddressFor(sel.addrHigh),
		adapterIndex: c.Int("u"),
		verbose:      c.Bool("v"),
		integer:      c.Bool("i"),
		unit:         unit,
		output:       sel.output,
		read:         !c.Bool("nr"),
		readMode:     sel.readMode,
		crc:          c.Bool("c"),
		accelerated:  c.Bool("art"),
		stopPeriodic: c.Bool("pb"),
		heater:       sel.heater,
		reset:        c.Bool("R"),
		clearStatus:  c.Bool("sc"),
		status:       c.Bool("s"),
		textfile:     c.String("m"),
	}
}

// unknownParameter extracts the offending argument from a flag parse error.
func unknownParameter(err error) string {
	msg := err.Error()
	for _, prefix := range []string{"flag provided but not defined: ", "flag needs an argument: "} {
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

// helpText is built on demand so build-tagged backends are listed.
func helpText() string {
	return fmt.Sprintf(`SHT3x sensor read
Usage: sht3x [-h<0|1>] [-i] [-r<h|t|ht>] [-j] [-y] [-f] [-s] [-sc] [-a0] [-a1] [-d <dev>] [-b <backend>] [-u <index>] [-m <file>] [-v]
measure:
  -i        integer mode (no float)
  -rh       output single-line humidity
  -rt       output single-line temperature
  -rht      output single-line humidity and temperature
  -j        JSON format
  -y        YAML format
  -f        temperature in Fahrenheit
  -nr       do not read humidity/temp
  -ps       read by starting periodic mode (0.5 Hz)
  -pf       read the latest periodic mode result
  -pb       stop periodic mode
  -art      accelerated response time mode (4 Hz)
  -c        verify measurement checksums
chip setting:
  -h1       on-chip heater enable
  -h0       on-chip heater disable
  -s        read status word
  -sc       clear status word
  -R        reset chip
I2C:
  -a0       address ADDR=L (0x%02x, default)
  -a1       address ADDR=H (0x%02x)
  -d <dev>  specify I2C device, default %s
  -b <name> bus backend: %s (default %s)
  -u <idx>  USB adapter index when several are plugged in
metrics:
  -m <file> write Prometheus textfile metrics after a successful run
general:
  -v        verbose mode
  -h,--help this help
  --version print the version

`, environment.AddressLow, environment.AddressHigh, defaultDevice, strings.Join(backendNames(), ", "), backendPeriph)
}
