package environment

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/mklimuk/sht3x"
)

// TemperatureBehaviorFunc returns the simulated temperature in Celsius or an error.
type TemperatureBehaviorFunc func(ctx context.Context) (float64, error)

// HumidityBehaviorFunc returns the simulated relative humidity in %RH or an error.
type HumidityBehaviorFunc func(ctx context.Context) (float64, error)

// MockSHT3x is a simulated SHT3x sitting on an I2C bus. It answers command
// words the way the chip does, so whole transactions can be exercised
// without hardware.
//
// Example usage:
//
//	sensor := NewMockSHT3x(AddressLow,
//		func(ctx context.Context) (float64, error) { return 22.5, nil },
//		func(ctx context.Context) (float64, error) { return 45.0, nil },
//	)
//	s := NewSHT3x(sensor.Opener(), WithSettleDelay(0))
type MockSHT3x struct {
	mx           sync.Mutex
	address      byte
	tempBehavior TemperatureBehaviorFunc
	humBehavior  HumidityBehaviorFunc
	status       Status
	pending      []byte
	commands     []Command
	opened       int
	closed       int
}

func NewMockSHT3x(address byte, tempBehavior TemperatureBehaviorFunc, humBehavior HumidityBehaviorFunc) *MockSHT3x {
	return &MockSHT3x{
		address:      address,
		tempBehavior: tempBehavior,
		humBehavior:  humBehavior,
		status:       StatusAlertPending | StatusResetDetected,
	}
}

// Opener hands out the simulated sensor as a fresh bus for every transaction.
func (m *MockSHT3x) Opener() sht3x.BusOpener {
	return func(ctx context.Context) (sht3x.I2CBusCloser, error) {
		m.mx.Lock()
		defer m.mx.Unlock()
		m.opened++
		return m, nil
	}
}

func (m *MockSHT3x) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if address != m.address {
		return fmt.Errorf("%w: no ACK from %#02x", sht3x.ErrShortWrite, address)
	}
	if len(buffer) != 2 {
		return fmt.Errorf("%w: command word must be 2 bytes, got %d", sht3x.ErrShortWrite, len(buffer))
	}
	cmd := Command(binary.BigEndian.Uint16(buffer))
	m.commands = append(m.commands, cmd)
	m.pending = nil
	switch cmd {
	case CmdReset:
		m.status = StatusAlertPending | StatusResetDetected
	case CmdHeaterOn:
		m.status |= StatusHeaterEnabled
	case CmdHeaterOff:
		m.status &^= StatusHeaterEnabled
	case CmdClearStatus:
		m.status &^= StatusAlertPending | StatusHumidityAlert | StatusTemperatureAlert | StatusResetDetected
	case CmdStopPeriodic:
		m.status &^= StatusPeriodicRead
	case CmdAcceleratedResponse:
		m.status |= StatusPeriodicRead
	case CmdGetStatus:
		m.pending = binary.BigEndian.AppendUint16(nil, uint16(m.status))
	case CmdSingleShot, CmdStartPeriodic, CmdFetchPeriodic:
		if cmd == CmdStartPeriodic {
			m.status |= StatusPeriodicRead
		}
		if cmd == CmdFetchPeriodic && !m.status.Has(StatusPeriodicRead) {
			return nil
		}
		frame, err := m.measure(ctx)
		if err != nil {
			m.status |= StatusCommandFailed
			return nil
		}
		m.pending = frame
	default:
		m.status |= StatusCommandFailed
	}
	return nil
}

func (m *MockSHT3x) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if address != m.address {
		return fmt.Errorf("%w: no ACK from %#02x", sht3x.ErrShortRead, address)
	}
	n := copy(buffer, m.pending)
	m.pending = nil
	if n != len(buffer) {
		return fmt.Errorf("%w: %d of %d bytes", sht3x.ErrShortRead, n, len(buffer))
	}
	return nil
}

func (m *MockSHT3x) Release(ctx context.Context) error {
	return nil
}

func (m *MockSHT3x) Close() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.closed++
	return nil
}

// Commands returns the command words received so far, in order.
func (m *MockSHT3x) Commands() []Command {
	m.mx.Lock()
	defer m.mx.Unlock()
	return append([]Command(nil), m.commands...)
}

// Balanced reports whether every opened bus has been closed.
func (m *MockSHT3x) Balanced() bool {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.opened == m.closed
}

func (m *MockSHT3x) measure(ctx context.Context) ([]byte, error) {
	temp, err := m.tempBehavior(ctx)
	if err != nil {
		return nil, err
	}
	hum, err := m.humBehavior(ctx)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, measurementFrameLen)
	for _, raw := range []uint16{rawWord((temp + 45) / 175), rawWord(hum / 100)} {
		word := binary.BigEndian.AppendUint16(nil, raw)
		frame = append(frame, word...)
		frame = append(frame, CRC(word))
	}
	return frame, nil
}

// rawWord scales a 0..1 fraction to the sensor's 16-bit range.
func rawWord(fraction float64) uint16 {
	return uint16(math.Round(math.Max(0, math.Min(1, fraction)) * 65535))
}
