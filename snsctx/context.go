// Package snsctx carries per-invocation settings of the sensor tool through
// context.Context.
package snsctx

import "context"

type ctxKey int

const (
	keyVerbose ctxKey = iota
	keyDevice
)

// IsVerbose reports whether raw bus traffic should be traced.
func IsVerbose(ctx context.Context) bool {
	val, _ := ctx.Value(keyVerbose).(bool)
	return val
}

func SetVerbose(ctx context.Context, value bool) context.Context {
	return context.WithValue(ctx, keyVerbose, value)
}

// Device returns the bus device path recorded with SetDevice, or "".
func Device(ctx context.Context) string {
	val, _ := ctx.Value(keyDevice).(string)
	return val
}

func SetDevice(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, keyDevice, path)
}
