package environment

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mklimuk/sht3x"
)

// SHT3x I2C addresses (7-bit), selected by the ADDR pin
const (
	AddressLow  byte = 0x44
	AddressHigh byte = 0x45
)

// DefaultSettleDelay covers the conversion time of a high repeatability measurement.
const DefaultSettleDelay = 250 * time.Millisecond

// Command is a 16-bit SHT3x command word, sent big endian.
type Command uint16

const (
	CmdReset               Command = 0x30A2
	CmdHeaterOn            Command = 0x306D
	CmdHeaterOff           Command = 0x3066
	CmdGetStatus           Command = 0xF32D
	CmdClearStatus         Command = 0x3041
	CmdStartPeriodic       Command = 0x2032 // 0.5 Hz, high repeatability
	CmdFetchPeriodic       Command = 0xE000
	CmdSingleShot          Command = 0x2400 // no clock stretching, high repeatability
	CmdStopPeriodic        Command = 0x3093
	CmdAcceleratedResponse Command = 0x2B32 // 4 Hz
)

type commandSpec struct {
	name     string
	response int
	settle   bool
}

var commands = map[Command]commandSpec{
	CmdReset:               {"reset", 0, false},
	CmdHeaterOn:            {"heater on", 0, false},
	CmdHeaterOff:           {"heater off", 0, false},
	CmdGetStatus:           {"get status", 2, false},
	CmdClearStatus:         {"clear status", 0, false},
	CmdStartPeriodic:       {"start periodic", 6, true},
	CmdFetchPeriodic:       {"fetch periodic", 6, true},
	CmdSingleShot:          {"single shot", 6, true},
	CmdStopPeriodic:        {"stop periodic", 0, false},
	CmdAcceleratedResponse: {"accelerated response", 0, false},
}

// ResponseLen is the number of bytes the sensor returns for the command.
func (c Command) ResponseLen() int {
	return commands[c].response
}

// Settles reports whether the command needs the conversion delay before reading.
func (c Command) Settles() bool {
	return commands[c].settle
}

func (c Command) String() string {
	if spec, ok := commands[c]; ok {
		return spec.name
	}
	return fmt.Sprintf("command %#04x", uint16(c))
}

// AddressFor mirrors the ADDR pin state.
func AddressFor(pinHigh bool) byte {
	if pinHigh {
		return AddressHigh
	}
	return AddressLow
}

// SHT3x represents Sensirion SHT30/SHT31/SHT35 Temperature/Humidity sensor.
// Every operation is a self-contained transaction on a freshly opened bus.
// Typical usage:
//
//	s := NewSHT3x(i2c.DevOpener("/dev/i2c-1"), WithAddress(AddressHigh))
//	m, err := s.SingleShot(ctx)
type SHT3x struct {
	open      sht3x.BusOpener
	address   byte
	settle    time.Duration
	verifyCRC bool
}

type SHT3xConfig struct {
	Address     byte
	SettleDelay time.Duration
	CRCCheck    bool
}

type SHT3xConfigOption func(*SHT3xConfig)

func WithAddress(address byte) SHT3xConfigOption {
	return func(c *SHT3xConfig) {
		c.Address = address
	}
}

func WithSettleDelay(d time.Duration) SHT3xConfigOption {
	return func(c *SHT3xConfig) {
		c.SettleDelay = d
	}
}

// WithCRCCheck enables verification of the CRC bytes of measurement frames.
// By default they are read and discarded.
func WithCRCCheck(enabled bool) SHT3xConfigOption {
	return func(c *SHT3xConfig) {
		c.CRCCheck = enabled
	}
}

func NewSHT3x(open sht3x.BusOpener, opts ...SHT3xConfigOption) *SHT3x {
	config := &SHT3xConfig{
		Address:     AddressLow,
		SettleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &SHT3x{
		open:      open,
		address:   config.Address,
		settle:    config.SettleDelay,
		verifyCRC: config.CRCCheck,
	}
}

// Address returns the target address used for every transaction.
func (s *SHT3x) Address() byte {
	return s.address
}

// Execute sends the command, waits for the conversion if the command requires
// it and reads the response frame. The bus is closed on every path.
func (s *SHT3x) Execute(ctx context.Context, cmd Command) (frame []byte, err error) {
	spec, ok := commands[cmd]
	if !ok {
		return nil, fmt.Errorf("sht3x: unsupported %s", cmd)
	}
	bus, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("sht3x: %s: %w", cmd, err)
	}
	defer func() {
		cerr := bus.Close()
		if cerr != nil && err == nil {
			frame, err = nil, fmt.Errorf("sht3x: %s: close failed: %w", cmd, cerr)
		}
	}()

	var out [2]byte
	binary.BigEndian.PutUint16(out[:], uint16(cmd))
	if err := bus.WriteToAddr(ctx, s.address, out[:]); err != nil {
		return nil, fmt.Errorf("sht3x: %s command failed: %w", cmd, err)
	}
	if spec.settle {
		time.Sleep(s.settle)
	}
	if spec.response == 0 {
		return nil, nil
	}
	buf := make([]byte, spec.response)
	if err := bus.ReadFromAddr(ctx, s.address, buf); err != nil {
		return nil, fmt.Errorf("sht3x: %s read failed: %w", cmd, err)
	}
	return buf, nil
}

func (s *SHT3x) Reset(ctx context.Context) error {
	_, err := s.Execute(ctx, CmdReset)
	return err
}

func (s *SHT3x) SetHeater(ctx context.Context, on bool) error {
	cmd := CmdHeaterOff
	if on {
		cmd = CmdHeaterOn
	}
	_, err := s.Execute(ctx, cmd)
	return err
}

func (s *SHT3x) ReadStatus(ctx context.Context) (Status, error) {
	frame, err := s.Execute(ctx, CmdGetStatus)
	if err != nil {
		return 0, err
	}
	return DecodeStatus(frame)
}

func (s *SHT3x) ClearStatus(ctx context.Context) error {
	_, err := s.Execute(ctx, CmdClearStatus)
	return err
}

// SingleShot triggers one measurement and reads it back.
func (s *SHT3x) SingleShot(ctx context.Context) (Measurement, error) {
	return s.measure(ctx, CmdSingleShot)
}

// StartPeriodic switches the sensor to 0.5 Hz periodic mode and reads the first result.
func (s *SHT3x) StartPeriodic(ctx context.Context) (Measurement, error) {
	return s.measure(ctx, CmdStartPeriodic)
}

// FetchPeriodic reads the latest result of periodic mode.
func (s *SHT3x) FetchPeriodic(ctx context.Context) (Measurement, error) {
	return s.measure(ctx, CmdFetchPeriodic)
}

func (s *SHT3x) StopPeriodic(ctx context.Context) error {
	_, err := s.Execute(ctx, CmdStopPeriodic)
	return err
}

func (s *SHT3x) AcceleratedResponse(ctx context.Context) error {
	_, err := s.Execute(ctx, CmdAcceleratedResponse)
	return err
}

func (s *SHT3x) measure(ctx context.Context, cmd Command) (Measurement, error) {
	frame, err := s.Execute(ctx, cmd)
	if err != nil {
		return Measurement{}, err
	}
	if s.verifyCRC {
		if err := CheckFrame(frame); err != nil {
			return Measurement{}, fmt.Errorf("sht3x: %s: %w", cmd, err)
		}
	}
	return DecodeMeasurement(frame)
}
