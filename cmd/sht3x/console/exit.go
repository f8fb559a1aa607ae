package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func Exit(code int, format string, args ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(format, args...), code)
}

// Usage reports a rejected argument with the usage text on stderr. The
// returned error carries no message so nothing else gets printed.
func Usage(param, help string) cli.ExitCoder {
	EPrint(fmt.Sprintf("ERR: unknown parameter: %s\n", param))
	EPrint(help)
	return cli.Exit("", 1)
}
