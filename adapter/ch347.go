//go:build ch347

package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/serfreeman1337/go-ch347"
	"github.com/sstallion/go-hid"

	"github.com/mklimuk/sht3x"
)

// QinHeng CH347 USB to UART+SPI+I2C bridge. go-hid and karalabe/hid both
// define the hidapi symbols, so -tags ch347 builds this bridge in place of
// the MCP2221.
const (
	CH347VendorID  = 0x1A86
	CH347ProductID = 0x55DC

	ch347Product      = "HID To UART+SPI+I2C"
	ch347I2CInterface = 1 // 0 is UART
	ch347ReadTimeout  = time.Second
)

var ErrCH347NotFound = errors.New("CH347 device not found")

// transfer performs one I2C transaction: write w, then read into r.
type transfer func(address byte, w, r []byte) error

// hidWithTimeout retries reads interrupted by signals.
type hidWithTimeout struct {
	*hid.Device
}

func (d *hidWithTimeout) Read(p []byte) (n int, err error) {
	for {
		n, err = d.Device.ReadWithTimeout(p, ch347ReadTimeout)
		if err == nil || err.Error() != "Interrupted system call" {
			return
		}
	}
}

// CH347Bus talks to the sensor through the I2C interface of a CH347 bridge.
type CH347Bus struct {
	dev      io.Closer
	transfer transfer
}

// CH347Path locates the hidraw path of the bridge I2C interface.
func CH347Path() (string, error) {
	var path string
	err := hid.Enumerate(CH347VendorID, CH347ProductID, func(info *hid.DeviceInfo) error {
		if path == "" && info.ProductStr == ch347Product && info.InterfaceNbr == ch347I2CInterface {
			path = info.Path
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enumerating HID devices: %w", err)
	}
	if path == "" {
		return "", ErrCH347NotFound
	}
	return path, nil
}

func OpenCH347() (*CH347Bus, error) {
	path, err := CH347Path()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sht3x.ErrDeviceOpen, err)
	}
	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w '%s': %w", sht3x.ErrDeviceOpen, path, err)
	}
	c := &ch347.IO{Dev: &hidWithTimeout{dev}}
	if err := c.SetI2C(ch347.I2CMode3); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("%w '%s': configuring I2C: %w", sht3x.ErrDeviceOpen, path, err)
	}
	return &CH347Bus{dev: dev, transfer: func(address byte, w, r []byte) error {
		return c.I2C(uint16(address), w, r)
	}}, nil
}

func CH347Opener() sht3x.BusOpener {
	return func(ctx context.Context) (sht3x.I2CBusCloser, error) {
		return OpenCH347()
	}
}

func (b *CH347Bus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.transfer(address, buffer, nil); err != nil {
		return fmt.Errorf("%w to %#02x over CH347: %w", sht3x.ErrShortWrite, address, err)
	}
	return nil
}

func (b *CH347Bus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.transfer(address, nil, buffer); err != nil {
		return fmt.Errorf("%w from %#02x over CH347: %w", sht3x.ErrShortRead, address, err)
	}
	return nil
}

func (b *CH347Bus) Release(ctx context.Context) error {
	return nil
}

func (b *CH347Bus) Close() error {
	return b.dev.Close()
}
