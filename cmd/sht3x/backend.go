package main

import (
	"fmt"
	"sort"

	"github.com/mklimuk/sht3x"
	"github.com/mklimuk/sht3x/i2c"
)

const (
	backendDev     = "dev"
	backendPeriph  = "periph"
	backendGobot   = "gobot"
	backendMCP2221 = "mcp2221"
	backendCH347   = "ch347"
)

// connector turns the configuration into a bus opener.
type connector func(cfg config) (sht3x.BusOpener, error)

// USB bridges register themselves from build-tagged files.
var backendOpeners = map[string]func(cfg config) sht3x.BusOpener{
	backendDev:    func(cfg config) sht3x.BusOpener { return i2c.DevOpener(cfg.device) },
	backendPeriph: func(cfg config) sht3x.BusOpener { return i2c.GenericOpener(cfg.device) },
	backendGobot:  func(cfg config) sht3x.BusOpener { return i2c.GobotOpener(cfg.device) },
}

func backendNames() []string {
	names := make([]string, 0, len(backendOpeners))
	for name := range backendOpeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func openBackend(cfg config) (sht3x.BusOpener, error) {
	open, ok := backendOpeners[cfg.backend]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", cfg.backend)
	}
	return open(cfg), nil
}
