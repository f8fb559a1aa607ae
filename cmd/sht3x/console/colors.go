package console

import "github.com/fatih/color"

var (
	Yellow = color.New(color.FgYellow).SprintFunc()
	Red    = color.New(color.FgRed, color.Bold).SprintFunc()
	White  = color.New(color.FgHiWhite).SprintFunc()
)
