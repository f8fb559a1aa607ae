package environment

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/sigurn/crc8"
)

var ErrFrameLength = errors.New("unexpected frame length")
var ErrChecksum = errors.New("CRC mismatch")

const (
	measurementFrameLen = 6
	statusFrameLen      = 2
)

// Unit selects the temperature scale of a reading.
type Unit int

const (
	Celsius Unit = iota
	Fahrenheit
)

// Symbol returns the scale letter printed after temperatures.
func (u Unit) Symbol() byte {
	if u == Fahrenheit {
		return 'F'
	}
	return 'C'
}

// Measurement holds the raw words of one 6-byte frame:
// T[0:2], CRC, RH[3:5], CRC.
type Measurement struct {
	RawTemperature uint16
	RawHumidity    uint16
}

// DecodeMeasurement extracts the temperature and humidity words. CRC bytes
// are ignored; see CheckFrame.
func DecodeMeasurement(frame []byte) (Measurement, error) {
	if len(frame) != measurementFrameLen {
		return Measurement{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrFrameLength, measurementFrameLen, len(frame))
	}
	return Measurement{
		RawTemperature: binary.BigEndian.Uint16(frame[0:2]),
		RawHumidity:    binary.BigEndian.Uint16(frame[3:5]),
	}, nil
}

// Temperature converts the raw temperature word to the given scale.
func (m Measurement) Temperature(u Unit) float64 {
	if u == Fahrenheit {
		return TemperatureFahrenheit(m.RawTemperature)
	}
	return TemperatureCelsius(m.RawTemperature)
}

func (m Measurement) Humidity() float64 {
	return RelativeHumidity(m.RawHumidity)
}

// Conversion formulas from datasheet
// T(C) = -45 + 175 * raw / 65535
// T(F) = -49 + 315 * raw / 65535
// RH(%) = 100 * raw / 65535

func TemperatureCelsius(raw uint16) float64 {
	return -45 + 175*float64(raw)/65535.0
}

func TemperatureFahrenheit(raw uint16) float64 {
	return -49 + 315*float64(raw)/65535.0
}

func RelativeHumidity(raw uint16) float64 {
	return 100 * float64(raw) / 65535.0
}

// RoundInt adds 0.49 to non-negative values and subtracts 0.51 from negative
// ones, then truncates toward zero.
func RoundInt(v float64) int {
	if v >= 0 {
		return int(v + 0.49)
	}
	return int(v - 0.51)
}

// Status is the 16-bit status register.
type Status uint16

const (
	StatusAlertPending        Status = 0x8000
	StatusHeaterEnabled       Status = 0x2000
	StatusHumidityAlert       Status = 0x0800
	StatusTemperatureAlert    Status = 0x0400
	StatusPeriodicRead        Status = 0x0020 // undocumented in the datasheet
	StatusResetDetected       Status = 0x0010
	StatusCommandFailed       Status = 0x0002
	StatusWriteChecksumFailed Status = 0x0001
)

func DecodeStatus(frame []byte) (Status, error) {
	if len(frame) != statusFrameLen {
		return 0, fmt.Errorf("%w: expected %d bytes, got %d", ErrFrameLength, statusFrameLen, len(frame))
	}
	return Status(binary.BigEndian.Uint16(frame)), nil
}

func (s Status) Has(flag Status) bool {
	return s&flag != 0
}

// StatusFlags is the decoded form of the status register.
type StatusFlags struct {
	AlertPending        bool `yaml:"pending_alert"`
	HeaterEnabled       bool `yaml:"heater_enabled"`
	HumidityAlert       bool `yaml:"humidity_alert"`
	TemperatureAlert    bool `yaml:"temperature_alert"`
	PeriodicRead        bool `yaml:"read_periodic"`
	ResetDetected       bool `yaml:"reset_detected"`
	CommandFailed       bool `yaml:"command_failed"`
	WriteChecksumFailed bool `yaml:"checksum_failed"`
}

func (s Status) Flags() StatusFlags {
	return StatusFlags{
		AlertPending:        s.Has(StatusAlertPending),
		HeaterEnabled:       s.Has(StatusHeaterEnabled),
		HumidityAlert:       s.Has(StatusHumidityAlert),
		TemperatureAlert:    s.Has(StatusTemperatureAlert),
		PeriodicRead:        s.Has(StatusPeriodicRead),
		ResetDetected:       s.Has(StatusResetDetected),
		CommandFailed:       s.Has(StatusCommandFailed),
		WriteChecksumFailed: s.Has(StatusWriteChecksumFailed),
	}
}

// Sensirion CRC-8, polynomial 0x31, init 0xFF
var crcTable = crc8.MakeTable(crc8.Params{
	Poly:   0x31,
	Init:   0xFF,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x00,
	Check:  0xF7,
	Name:   "CRC-8/NRSC-5",
})

// CRC computes the Sensirion checksum of a data word.
func CRC(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

// CheckFrame verifies both word checksums of a measurement frame.
func CheckFrame(frame []byte) error {
	if len(frame) != measurementFrameLen {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrFrameLength, measurementFrameLen, len(frame))
	}
	if CRC(frame[0:2]) != frame[2] {
		return fmt.Errorf("temperature %w", ErrChecksum)
	}
	if CRC(frame[3:5]) != frame[5] {
		return fmt.Errorf("humidity %w", ErrChecksum)
	}
	return nil
}
