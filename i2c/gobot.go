package i2c

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gi2c "gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"

	"github.com/mklimuk/sht3x"
)

var _ sht3x.I2CBusCloser = &GobotBus{}

// GobotBus drives the bus through gobot's NanoPi NEO adaptor. A generic
// driver is started per transfer since gobot binds the address at creation.
type GobotBus struct {
	name    string
	bus     int
	adaptor *nanopi.Adaptor
}

func NewGobotBus(dev string) (*GobotBus, error) {
	bus, err := BusNumber(dev)
	if err != nil {
		return nil, err
	}
	npi := nanopi.NewNeoAdaptor()
	err = npi.I2cBusAdaptor.Connect()
	if err != nil {
		return nil, fmt.Errorf("%w '%s': adaptor connect error: %w", sht3x.ErrDeviceOpen, dev, err)
	}
	return &GobotBus{name: dev, bus: bus, adaptor: npi}, nil
}

// GobotOpener returns an opener creating a new GobotBus for every transaction.
func GobotOpener(dev string) sht3x.BusOpener {
	return func(ctx context.Context) (sht3x.I2CBusCloser, error) {
		return NewGobotBus(dev)
	}
}

func (b *GobotBus) driver(address byte) (*gi2c.GenericDriver, error) {
	board := gi2c.NewGenericDriver(b.adaptor, "sht3x", int(address), func(c gi2c.Config) {
		c.SetBus(b.bus)
	})
	err := board.Start()
	if err != nil {
		return nil, fmt.Errorf("%w %#02x on '%s': %w", sht3x.ErrAddressBind, address, b.name, err)
	}
	return board, nil
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	board, err := b.driver(address)
	if err != nil {
		return err
	}
	defer func() { _ = board.Halt() }()
	err = board.Write(buffer)
	if err != nil {
		return fmt.Errorf("%w to %#02x on '%s': %w", sht3x.ErrShortWrite, address, b.name, err)
	}
	return nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	board, err := b.driver(address)
	if err != nil {
		return err
	}
	defer func() { _ = board.Halt() }()
	err = board.Read(buffer)
	if err != nil {
		return fmt.Errorf("%w from %#02x on '%s': %w", sht3x.ErrShortRead, address, b.name, err)
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

func (b *GobotBus) Close() error {
	return b.adaptor.I2cBusAdaptor.Finalize()
}

// BusNumber extracts N from a /dev/i2c-N device path.
func BusNumber(dev string) (int, error) {
	const prefix = "/dev/i2c-"
	if !strings.HasPrefix(dev, prefix) {
		return 0, fmt.Errorf("%w '%s': expected %sN", sht3x.ErrDeviceOpen, dev, prefix)
	}
	n, err := strconv.Atoi(dev[len(prefix):])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w '%s': invalid bus number", sht3x.ErrDeviceOpen, dev)
	}
	return n, nil
}
