//go:build !ch347

package main

import (
	"github.com/mklimuk/sht3x"
	"github.com/mklimuk/sht3x/adapter"
)

func init() {
	backendOpeners[backendMCP2221] = func(cfg config) sht3x.BusOpener {
		return adapter.Opener(adapter.WithDeviceIndex(cfg.adapterIndex))
	}
}
