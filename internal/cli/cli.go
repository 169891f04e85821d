// Package cli implements the render-worker command line: one command that
// runs one render job and exits with a status derived from its error.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"galarender/internal/pkg/errors"
	"galarender/internal/worker/dispatch"
)

const appName = "render-worker"

// CLI holds the process streams and the tool hooks shared by the command.
type CLI struct {
	stdout io.Writer
	stderr io.Writer

	// Resolver and Runner override tool discovery and execution. Nil
	// selects PATH lookup and os/exec.
	Resolver dispatch.Resolver
	Runner   dispatch.Runner
}

// New creates a CLI writing the artifact path to stdout and logs to stderr.
func New(stdout, stderr io.Writer) *CLI {
	return &CLI{stdout: stdout, stderr: stderr}
}

// Execute runs the command with args and returns the process exit status.
func (c *CLI) Execute(ctx context.Context, args []string) int {
	root := c.RootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return errors.ExitOK
	}

	fmt.Fprintf(c.stderr, "Error: %v\n", err)
	if errors.IsValidation(err) {
		fmt.Fprintf(c.stderr, "Run '%s --help' for usage.\n", root.CommandPath())
	}
	return errors.GetExitCode(err)
}

// RootCommand builds the single render command.
func (c *CLI) RootCommand() *cobra.Command {
	opts := &runOpts{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Render a scene file to frames and an optional video",
		Long: `render-worker runs one render job: it invokes blender to write PNG frames
into the output directory and, for mp4 output, ffmpeg to encode them.
When blender is not installed, or --mock is set, placeholder frames are
written instead.

The artifact path (video file or frame directory) is printed on stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.Validationf("unexpected arguments: %v", args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, opts)
		},
	}

	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.WrapWithCode(err, errors.CodeValidation, "cli.flags", "invalid arguments")
	})
	opts.bind(root)

	return root
}
