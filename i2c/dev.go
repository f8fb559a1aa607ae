package i2c

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/mklimuk/sht3x"
)

// ioctl request from linux/i2c-dev.h binding a descriptor to a 7-bit target
const i2cSlave = 0x0703

var _ sht3x.I2CBusCloser = &DevBus{}

type deviceFile interface {
	io.ReadWriteCloser
	Fd() uintptr
}

type ioctlFunc func(fd int, req uint, value int) error

// DevBus talks to a Linux i2c-dev character device with plain read/write
// calls. Each read or write is a separate bus transfer, so lengths are checked
// exactly and never retried.
type DevBus struct {
	path  string
	file  deviceFile
	ioctl ioctlFunc
}

// OpenDev opens the bus device for reading and writing.
func OpenDev(path string) (*DevBus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("%w '%s': %w", sht3x.ErrDeviceOpen, path, err)
	}
	return &DevBus{path: path, file: f, ioctl: unix.IoctlSetInt}, nil
}

// DevOpener returns an opener creating a new DevBus for every transaction.
func DevOpener(path string) sht3x.BusOpener {
	return func(ctx context.Context) (sht3x.I2CBusCloser, error) {
		return OpenDev(path)
	}
}

// Bind directs subsequent reads and writes to the given 7-bit address.
func (b *DevBus) Bind(address byte) error {
	err := b.ioctl(int(b.file.Fd()), i2cSlave, int(address))
	if err != nil {
		return fmt.Errorf("%w %#02x on '%s': %w", sht3x.ErrAddressBind, address, b.path, err)
	}
	return nil
}

// Write performs one blocking write of the whole buffer.
func (b *DevBus) Write(address byte, buffer []byte) error {
	n, err := b.file.Write(buffer)
	if err != nil || n != len(buffer) {
		return fmt.Errorf("%w to %#02x on '%s': %d of %d bytes: %w", sht3x.ErrShortWrite, address, b.path, n, len(buffer), orEOF(err))
	}
	return nil
}

// Read performs one blocking read filling the whole buffer.
func (b *DevBus) Read(address byte, buffer []byte) error {
	n, err := b.file.Read(buffer)
	if err != nil || n != len(buffer) {
		return fmt.Errorf("%w from %#02x on '%s': %d of %d bytes: %w", sht3x.ErrShortRead, address, b.path, n, len(buffer), orEOF(err))
	}
	return nil
}

func (b *DevBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.Bind(address); err != nil {
		return err
	}
	return b.Write(address, buffer)
}

func (b *DevBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := b.Bind(address); err != nil {
		return err
	}
	return b.Read(address, buffer)
}

func (b *DevBus) Release(ctx context.Context) error {
	return nil
}

func (b *DevBus) Close() error {
	return b.file.Close()
}

// orEOF keeps the wrapped chain non-nil when the kernel reported a short
// transfer without an error.
func orEOF(err error) error {
	if err == nil {
		return io.ErrUnexpectedEOF
	}
	return err
}
