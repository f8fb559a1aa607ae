package i2c

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mklimuk/sht3x"
	"github.com/mklimuk/sht3x/snsctx"
)

// Trace wraps every bus returned by open so that raw traffic is logged when
// the context is verbose. Data and errors pass through untouched.
func Trace(open sht3x.BusOpener) sht3x.BusOpener {
	return func(ctx context.Context) (sht3x.I2CBusCloser, error) {
		bus, err := open(ctx)
		if err != nil {
			return nil, err
		}
		return &traceBus{I2CBusCloser: bus}, nil
	}
}

type traceBus struct {
	sht3x.I2CBusCloser
}

func (t *traceBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if snsctx.IsVerbose(ctx) {
		slog.Debug("raw write: "+hexBytes(buffer), traceAttrs(ctx, address)...)
	}
	return t.I2CBusCloser.WriteToAddr(ctx, address, buffer)
}

func (t *traceBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	verbose := snsctx.IsVerbose(ctx)
	if verbose {
		slog.Debug(fmt.Sprintf("raw read: %d bytes", len(buffer)), traceAttrs(ctx, address)...)
	}
	err := t.I2CBusCloser.ReadFromAddr(ctx, address, buffer)
	if err == nil && verbose {
		slog.Debug("raw read: "+hexBytes(buffer), traceAttrs(ctx, address)...)
	}
	return err
}

func traceAttrs(ctx context.Context, address byte) []any {
	attrs := []any{"addr", fmt.Sprintf("%#02x", address)}
	if dev := snsctx.Device(ctx); dev != "" {
		attrs = append(attrs, "dev", dev)
	}
	return attrs
}

func hexBytes(buf []byte) string {
	var sb strings.Builder
	for i, b := range buf {
		if i > 0 {
			sb.WriteByte(' ')
		}
		_, _ = fmt.Fprintf(&sb, "%02x", b)
	}
	return sb.String()
}
