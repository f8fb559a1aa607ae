package cmd

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const (
	binaryPath  = "dist/sht3x"
	mainPackage = "./cmd/sht3x"
	buildImage  = "gophertribe/gobuild:1.25-bookworm"
)

// Target is an OS/arch pair the reader is shipped for.
type Target struct {
	OS   string
	Arch string
}

// boards maps single board computers the sensor is usually wired to onto
// their Go targets.
var boards = map[string]Target{
	"nanopi": {OS: "linux", Arch: "arm"},
	"rpi":    {OS: "linux", Arch: "arm64"},
	"rpi32":  {OS: "linux", Arch: "arm"},
	"x86":    {OS: "linux", Arch: "amd64"},
}

func BoardNames() []string {
	names := make([]string, 0, len(boards))
	for name := range boards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveTarget picks the build target. A board preset overrides os/arch.
func ResolveTarget(board, os, arch string) (Target, error) {
	if board == "" {
		return Target{OS: os, Arch: arch}, nil
	}
	t, ok := boards[board]
	if !ok {
		return Target{}, fmt.Errorf("unknown board %q, expected one of: %s", board, strings.Join(BoardNames(), ", "))
	}
	return t, nil
}

func BuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the sht3x binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			version, _ := flags.GetString("version")
			board, _ := flags.GetString("board")
			goos, _ := flags.GetString("os")
			arch, _ := flags.GetString("arch")
			target, err := ResolveTarget(board, goos, arch)
			if err != nil {
				return err
			}

			// native builds run go build directly, everything else goes through the build image
			if target.OS == runtime.GOOS && target.Arch == runtime.GOARCH {
				slog.Info("building", "target", target, "version", version)
				return build.GoBuild(binaryPath, mainPackage, build.GoBuildOpts{
					Version:       version,
					InjectVersion: true,
					ConfigPackage: "main",
					// karalabe/hid needs cgo for the MCP2221 backend
					EnableCgo: true,
					Arch:      target.Arch,
					OS:        target.OS,
				})
			}

			noCache, err := flags.GetBool("no-cache")
			if err != nil {
				return fmt.Errorf("could not get no-cache flag: %w", err)
			}
			slog.Info("building in docker", "target", target, "image", buildImage)
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", target.OS, target.Arch),
				[]string{"build", "--version", version, "--os", target.OS, "--arch", target.Arch},
				build.DockerBuildOpts{
					NoCache: noCache,
					Image:   buildImage,
				})
		},
	}
	cmd.Flags().Bool("no-cache", false, "do not use cache when building the app")
	cmd.Flags().String("version", "latest", "version of the cli")
	cmd.Flags().String("board", "", fmt.Sprintf("board preset (%s)", strings.Join(BoardNames(), ", ")))
	cmd.Flags().String("os", runtime.GOOS, "os to build for")
	cmd.Flags().String("arch", runtime.GOARCH, "arch to build for")

	return cmd
}
