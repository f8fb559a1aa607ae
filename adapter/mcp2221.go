//go:build !ch347

package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/karalabe/hid"

	"github.com/mklimuk/sht3x"
	"github.com/mklimuk/sht3x/snsctx"
)

const VendorID = 0x04D8
const ProductID = 0x00DD

const reportSize = 64

// HID report codes
const (
	cmdStatusSetParams byte = 0x10
	cmdI2CWriteData    byte = 0x90
	cmdI2CReadData     byte = 0x91
	cmdI2CGetData      byte = 0x40
	cancelTransfer     byte = 0x10
)

var ErrAdapterNotFound = errors.New("MCP2221 device not found")
var ErrAmbiguousAdapter = errors.New("ambiguous device identification")

// hidDevice is the subset of *hid.Device the adapter uses.
type hidDevice interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	Close() error
}

type openFunc func(index int) (hidDevice, error)

// MCP2221 drives the I2C engine of a Microchip MCP2221 USB bridge. The HID
// handle is opened per report so the device can be replugged between calls.
type MCP2221 struct {
	mx           sync.Mutex
	index        int
	request      []byte
	response     []byte
	responseWait time.Duration
	open         openFunc
}

type MCP2221Status struct {
	I2CDataBufferCounter   int    `yaml:"i2c_data_buffer_counter"`
	I2CSpeedDivider        int    `yaml:"i2c_speed_divider"`
	I2CTimeout             int    `yaml:"i2c_timeout"`
	CurrentAddress         string `yaml:"current_address"`
	LastWriteRequestedSize uint16 `yaml:"last_write_requested_size"`
	LastWriteSentSize      uint16 `yaml:"last_write_sent_size"`
	ReadPending            int    `yaml:"read_pending"`
}

type MCP2221Option func(*MCP2221)

// WithDeviceIndex selects the adapter when more than one is plugged in.
// A negative index requires exactly one adapter.
func WithDeviceIndex(index int) MCP2221Option {
	return func(d *MCP2221) {
		d.index = index
	}
}

func WithResponseWait(wait time.Duration) MCP2221Option {
	return func(d *MCP2221) {
		d.responseWait = wait
	}
}

func NewMCP2221(opts ...MCP2221Option) *MCP2221 {
	d := &MCP2221{
		index:        -1,
		request:      make([]byte, reportSize),
		response:     make([]byte, reportSize),
		responseWait: 50 * time.Millisecond,
		open:         openHID,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Opener returns a bus opener backed by an MCP2221 adapter.
func Opener(opts ...MCP2221Option) sht3x.BusOpener {
	return func(ctx context.Context) (sht3x.I2CBusCloser, error) {
		d := NewMCP2221(opts...)
		if err := d.Init(ctx); err != nil {
			return nil, err
		}
		return d, nil
	}
}

func openHID(index int) (hidDevice, error) {
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return nil, ErrAdapterNotFound
	}
	if index < 0 {
		if len(devs) > 1 {
			return nil, fmt.Errorf("%w: %d adapters found", ErrAmbiguousAdapter, len(devs))
		}
		index = 0
	}
	if index >= len(devs) {
		return nil, fmt.Errorf("%w: no device with id %d", ErrAdapterNotFound, index)
	}
	dev, err := devs[index].Open()
	if err != nil {
		return nil, fmt.Errorf("error opening device: %w", err)
	}
	return dev, nil
}

// Init checks that the adapter is reachable. In verbose mode the state of
// the I2C engine is logged as well.
func (d *MCP2221) Init(ctx context.Context) error {
	dev, err := d.open(d.index)
	if err != nil {
		return fmt.Errorf("%w: %w", sht3x.ErrDeviceOpen, err)
	}
	if err := dev.Close(); err != nil {
		return err
	}
	if !snsctx.IsVerbose(ctx) {
		return nil
	}
	status, err := d.Status(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", sht3x.ErrDeviceOpen, err)
	}
	slog.Debug("adapter status",
		"index", d.index,
		"address", status.CurrentAddress,
		"speed_divider", status.I2CSpeedDivider,
		"timeout", status.I2CTimeout,
		"read_pending", status.ReadPending,
		"last_write", fmt.Sprintf("%d/%d", status.LastWriteSentSize, status.LastWriteRequestedSize),
	)
	return nil
}

func (d *MCP2221) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CWriteData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address << 1
	copy(d.request[4:], buffer)
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("%w to %#02x: %w", sht3x.ErrShortWrite, address, err)
	}
	// engine still busy with a previous transfer
	if d.response[1] == 0x01 {
		slog.Debug("adapter busy", "addr", fmt.Sprintf("%#02x", address))
		return sht3x.ErrBusBusy
	}
	return nil
}

func (d *MCP2221) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdI2CReadData
	binary.LittleEndian.PutUint16(d.request[1:3], uint16(len(buffer)))
	d.request[3] = address<<1 + 1
	err := d.send(ctx)
	if err != nil {
		return fmt.Errorf("%w from %#02x: %w", sht3x.ErrShortRead, address, err)
	}
	if d.response[1] == 0x01 {
		return sht3x.ErrBusBusy
	}
	d.resetBuffers()
	d.request[0] = cmdI2CGetData
	err = d.send(ctx)
	if err != nil {
		return fmt.Errorf("%w: error getting read data from adapter: %w", sht3x.ErrShortRead, err)
	}
	if d.response[1] == 0x41 {
		return fmt.Errorf("%w: error reading the I2C slave data from the I2C engine", sht3x.ErrShortRead)
	}
	if d.response[3] == 127 || int(d.response[3]) != len(buffer) {
		return fmt.Errorf("%w: %d of %d bytes", sht3x.ErrShortRead, d.response[3], len(buffer))
	}
	copy(buffer, d.response[4:])
	return nil
}

func (d *MCP2221) Status(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *MCP2221Status {
	/*
		9-10: requested I2C transfer length (LE)
		11-12: already transferred number of bytes (LE)
		13: internal I2C data buffer counter
		14: current I2C communication speed divider value
		15: current I2C timeout value
		16-17: I2C address being used
		25: read pending
	*/
	return &MCP2221Status{
		I2CDataBufferCounter:   int(buffer[13]),
		I2CSpeedDivider:        int(buffer[14]),
		I2CTimeout:             int(buffer[15]),
		ReadPending:            int(buffer[25]),
		CurrentAddress:         hex.EncodeToString(buffer[16:18]),
		LastWriteRequestedSize: binary.LittleEndian.Uint16(buffer[9:11]),
		LastWriteSentSize:      binary.LittleEndian.Uint16(buffer[11:13]),
	}
}

// Release cancels any pending I2C transfer and frees the bus.
func (d *MCP2221) Release(ctx context.Context) error {
	_, err := d.ReleaseBus(ctx)
	return err
}

func (d *MCP2221) ReleaseBus(ctx context.Context) (*MCP2221Status, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = cmdStatusSetParams
	d.request[2] = cancelTransfer
	err := d.send(ctx)
	if err != nil {
		return nil, fmt.Errorf("release request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

// Close cancels whatever the I2C engine still holds so the next
// transaction starts from an idle bridge.
func (d *MCP2221) Close() error {
	return d.Release(context.Background())
}

func (d *MCP2221) send(ctx context.Context) error {
	dev, err := d.open(d.index)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			slog.Debug("closing adapter failed", "err", err)
		}
	}()
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug("sending report to adapter", "report", hex.EncodeToString(d.request))
	}
	n, err := dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short report write: %d", n)
	}
	time.Sleep(d.responseWait)
	n, err = dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n != reportSize {
		return fmt.Errorf("short report read: %d", n)
	}
	if verbose {
		slog.Debug("read report from adapter", "report", hex.EncodeToString(d.response))
	}
	return nil
}

func (d *MCP2221) resetBuffers() {
	clear(d.request)
	clear(d.response)
}
