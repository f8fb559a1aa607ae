package sht3x

import (
	"context"
	"errors"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// Transport failures. Every transport wraps one of these together with the
// device and target address it was talking to.
var (
	ErrDeviceOpen  = errors.New("could not open bus device")
	ErrAddressBind = errors.New("could not bind target address")
	ErrShortWrite  = errors.New("short write")
	ErrShortRead   = errors.New("short read")
)

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// I2CBusCloser is a bus handle owned by a single transaction.
type I2CBusCloser interface {
	I2CBus
	Close() error
}

// BusOpener acquires a fresh bus handle. The caller must close it.
type BusOpener func(ctx context.Context) (I2CBusCloser, error)
