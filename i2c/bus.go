package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/mklimuk/sht3x"
)

var _ sht3x.I2CBusCloser = &GenericBus{}

// GenericBus is a bus opened through the periph.io host registry. The name may
// be a device path such as /dev/i2c-1, an alias such as I2C1 or empty for the
// first bus found.
type GenericBus struct {
	name string
	bus  i2c.BusCloser
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("periph driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("%w '%s': %w", sht3x.ErrDeviceOpen, dev, err)
	}
	return &GenericBus{
		name: dev,
		bus:  bus,
	}, nil
}

// GenericOpener returns an opener creating a new GenericBus for every transaction.
func GenericOpener(dev string) sht3x.BusOpener {
	return func(ctx context.Context) (sht3x.I2CBusCloser, error) {
		return NewGenericBus(dev)
	}
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), nil, buffer)
	if err != nil {
		return fmt.Errorf("%w from %#02x on '%s': %w", sht3x.ErrShortRead, address, b.name, err)
	}
	return nil
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	err := b.bus.Tx(uint16(address), buffer, nil)
	if err != nil {
		return fmt.Errorf("%w to %#02x on '%s': %w", sht3x.ErrShortWrite, address, b.name, err)
	}
	return nil
}

func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
