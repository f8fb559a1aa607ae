package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sht3x"
	"github.com/mklimuk/sht3x/environment"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	settleDelay = 0
	os.Exit(m.Run())
}

type harness struct {
	sensor *environment.MockSHT3x
	cfg    config
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(address byte, temp, hum float64) *harness {
	return &harness{
		sensor: environment.NewMockSHT3x(address,
			func(ctx context.Context) (float64, error) { return temp, nil },
			func(ctx context.Context) (float64, error) { return hum, nil },
		),
	}
}

func (h *harness) run(args ...string) int {
	return run(append([]string{"sht3x"}, args...), &h.stdout, &h.stderr, func(cfg config) (sht3x.BusOpener, error) {
		h.cfg = cfg
		return h.sensor.Opener(), nil
	})
}

func TestRun_Default(t *testing.T) {
	h := newHarness(environment.AddressLow, 23.45, 56.78)
	require.Equal(t, 0, h.run())
	assert.Equal(t, "Humidity   : 56.78 %\nTemperature: 23.45 'C\n", h.stdout.String())
	assert.Equal(t, []environment.Command{environment.CmdSingleShot}, h.sensor.Commands())
	assert.Equal(t, byte(0x44), h.cfg.address)
	assert.Equal(t, defaultDevice, h.cfg.device)
	assert.Equal(t, backendPeriph, h.cfg.backend)
	assert.Equal(t, -1, h.cfg.adapterIndex)
	assert.True(t, h.sensor.Balanced())
}

func TestRun_JSON(t *testing.T) {
	h := newHarness(environment.AddressLow, 23.45, 56.78)
	require.Equal(t, 0, h.run("-j", "-i"))
	assert.Equal(t, `{"humi":56.78,"temp":23.45}`, h.stdout.String())
}

func TestRun_SingleLine(t *testing.T) {
	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"-rh"}, "56.78\n"},
		{[]string{"-rt"}, "23.45\n"},
		{[]string{"-rht"}, "56.78 23.45\n"},
		{[]string{"-rht", "-i"}, "57 23\n"},
		{[]string{"-rh", "-rt"}, "23.45\n"},
		{[]string{"-j", "-rh"}, "56.78\n"},
		{[]string{"-rt", "-f"}, "74.21\n"},
		{[]string{"-i"}, "Humidity   : 57 %\nTemperature: 23 'C\n"},
		{[]string{"-f"}, "Humidity   : 56.78 %\nTemperature: 74.21 'F\n"},
	}
	for _, test := range tests {
		t.Run(strings.Join(test.args, " "), func(t *testing.T) {
			h := newHarness(environment.AddressLow, 23.45, 56.78)
			require.Equal(t, 0, h.run(test.args...))
			assert.Equal(t, test.expected, h.stdout.String())
		})
	}
}

func TestRun_YAML(t *testing.T) {
	h := newHarness(environment.AddressLow, 23.45, 56.78)
	require.Equal(t, 0, h.run("-y", "-s"))
	out := h.stdout.String()
	assert.Contains(t, out, "humidity: 56.78\n")
	assert.Contains(t, out, "temperature: 23.45\n")
	assert.Contains(t, out, "unit: C\n")
	assert.Contains(t, out, "---\n")
	assert.Contains(t, out, "status: \"8010\"\n")
	assert.Contains(t, out, "pending_alert: true\n")
	assert.Contains(t, out, "heater_enabled: false\n")
}

func TestRun_Status(t *testing.T) {
	h := newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 0, h.run("-nr", "-s"))
	assert.Equal(t, "Status: 8010\n"+
		"  pending alert  : TRUE\n"+
		"  heater enabled : false\n"+
		"  humi alert     : false\n"+
		"  temp alert     : false\n"+
		"  read periodic  : false\n"+
		"  reset detect   : TRUE\n"+
		"  command fail   : false\n"+
		"  checksum fail  : false\n", h.stdout.String())
	assert.Equal(t, []environment.Command{environment.CmdGetStatus}, h.sensor.Commands())
}

func TestRun_FixedOrder(t *testing.T) {
	h := newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 0, h.run("-s", "-sc", "-pb", "-h1", "-art", "-R", "-rh"))
	assert.Equal(t, []environment.Command{
		environment.CmdReset,
		environment.CmdHeaterOn,
		environment.CmdAcceleratedResponse,
		environment.CmdSingleShot,
		environment.CmdStopPeriodic,
		environment.CmdClearStatus,
		environment.CmdGetStatus,
	}, h.sensor.Commands())
	assert.True(t, strings.HasPrefix(h.stdout.String(), "50.00\nStatus: 2000\n"))
	assert.True(t, h.sensor.Balanced())
}

func TestRun_HeaterLastWins(t *testing.T) {
	h := newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 0, h.run("-nr", "-h1", "-h0"))
	assert.Equal(t, []environment.Command{environment.CmdHeaterOff}, h.sensor.Commands())
}

func TestRun_PeriodicMode(t *testing.T) {
	h := newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 0, h.run("-ps", "-rh"))
	assert.Equal(t, []environment.Command{environment.CmdStartPeriodic}, h.sensor.Commands())

	require.Equal(t, 0, h.run("-pf", "-rh", "-pb"))
	assert.Equal(t, []environment.Command{
		environment.CmdStartPeriodic,
		environment.CmdFetchPeriodic,
		environment.CmdStopPeriodic,
	}, h.sensor.Commands())
	assert.Equal(t, "50.00\n50.00\n", h.stdout.String())
}

func TestRun_Address(t *testing.T) {
	h := newHarness(environment.AddressHigh, 20, 50)
	require.Equal(t, 0, h.run("-a1", "-rt"))
	assert.Equal(t, byte(0x45), h.cfg.address)
	assert.Equal(t, "20.00\n", h.stdout.String())

	h = newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 0, h.run("-a1", "-a0", "-rt"))
	assert.Equal(t, byte(0x44), h.cfg.address)
}

func TestRun_IOFailure(t *testing.T) {
	h := newHarness(environment.AddressLow, 20, 50)
	assert.Equal(t, 1, h.run("-a1"))
	assert.Empty(t, h.stdout.String())
	assert.Contains(t, h.stderr.String(), "0x45")
	assert.Contains(t, h.stderr.String(), defaultDevice)
	assert.True(t, h.sensor.Balanced())
}

func TestRun_NoPartialMeasurement(t *testing.T) {
	h := newHarness(environment.AddressLow, 20, 50)
	assert.Equal(t, 1, h.run("-pf", "-s"))
	assert.Empty(t, h.stdout.String())
	assert.Equal(t, []environment.Command{environment.CmdFetchPeriodic}, h.sensor.Commands(), "nothing runs after a failure")
}

func TestRun_ChecksumFlag(t *testing.T) {
	h := newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 0, h.run("-c", "-rh"))
	assert.True(t, h.cfg.crc)
	assert.Equal(t, "50.00\n", h.stdout.String())
}

func TestRun_Device(t *testing.T) {
	h := newHarness(environment.AddressLow, 20, 50)
	long := "/dev/" + strings.Repeat("x", 300)
	require.Equal(t, 0, h.run("-d", long, "-rh"))
	assert.Len(t, h.cfg.device, maxDeviceLen)
	assert.Equal(t, long[:maxDeviceLen], h.cfg.device)

	t.Setenv("SHT3X_DEVICE", "/dev/i2c-7")
	t.Setenv("SHT3X_BACKEND", backendDev)
	t.Setenv("SHT3X_ADAPTER_INDEX", "1")
	h = newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 0, h.run("-rh"))
	assert.Equal(t, "/dev/i2c-7", h.cfg.device)
	assert.Equal(t, backendDev, h.cfg.backend)
	assert.Equal(t, 1, h.cfg.adapterIndex)

	h = newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 0, h.run("-b", backendMCP2221, "-u", "3", "-rh"))
	assert.Equal(t, backendMCP2221, h.cfg.backend)
	assert.Equal(t, 3, h.cfg.adapterIndex)
}

func TestRun_Help(t *testing.T) {
	for _, arg := range []string{"-h", "--help"} {
		t.Run(arg, func(t *testing.T) {
			h := newHarness(environment.AddressLow, 20, 50)
			assert.Equal(t, 0, h.run(arg))
			assert.Contains(t, h.stdout.String(), "SHT3x sensor read")
			assert.Contains(t, h.stdout.String(), "-a1       address ADDR=H (0x45)")
			assert.Empty(t, h.sensor.Commands())
		})
	}
}

func TestRun_UnknownParameter(t *testing.T) {
	for _, args := range [][]string{{"-x"}, {"-rh", "extra"}, {"-d"}} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			h := newHarness(environment.AddressLow, 20, 50)
			assert.Equal(t, 1, h.run(args...))
			assert.Empty(t, h.stdout.String())
			assert.Contains(t, h.stderr.String(), "ERR: unknown parameter: ")
			assert.Contains(t, h.stderr.String(), "Usage: sht3x")
			assert.Empty(t, h.sensor.Commands())
		})
	}
}

func TestRun_UnknownBackend(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"sht3x", "-b", "nope"}, &stdout, &stderr, openBackend)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), `unknown backend "nope"`)
}

func TestRun_Verbose(t *testing.T) {
	h := newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 0, h.run("-v", "-nr", "-s"))
	assert.Contains(t, h.stderr.String(), "raw write: f3 2d")
	assert.Contains(t, h.stderr.String(), "raw read: 80 10")
	assert.True(t, strings.HasPrefix(h.stdout.String(), "Status: 8010\n"))
}

func TestRun_Textfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sht3x.prom")
	h := newHarness(environment.AddressLow, 23.45, 56.78)
	require.Equal(t, 0, h.run("-rh", "-s", "-m", path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "sht3x_temperature_celsius{")
	assert.Contains(t, string(b), `sht3x_status_flag{address="0x44",device="/dev/i2c-1",flag="pending_alert"} 1`)
}

func TestRun_TextfileSkippedOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sht3x.prom")
	h := newHarness(environment.AddressLow, 20, 50)
	require.Equal(t, 1, h.run("-pf", "-m", path))
	assert.NoFileExists(t, path)
}

func TestBackendNames(t *testing.T) {
	assert.Subset(t, backendNames(), []string{backendDev, backendGobot, backendPeriph})
	assert.Contains(t, helpText(), "bus backend: "+strings.Join(backendNames(), ", ")+" (default periph)")
}

func TestOpenBackend(t *testing.T) {
	open, err := openBackend(config{backend: backendDev, device: "/dev/i2c-9"})
	require.NoError(t, err)
	assert.NotNil(t, open)

	_, err = openBackend(config{backend: "spi"})
	assert.EqualError(t, err, `unknown backend "spi"`)
}
