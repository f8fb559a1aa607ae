package console

import (
	"fmt"
	"io"
	"os"
)

// Readings go to stdout through the report writer, never through console.
var errWriter io.Writer = os.Stderr

func SetOutput(errw io.Writer) {
	errWriter = errw
}

func Error(msg string) {
	_, _ = fmt.Fprintf(errWriter, "%s: %s\n", Red("ERROR"), msg)
}

func EPrint(msg string) {
	_, _ = fmt.Fprint(errWriter, msg)
}
