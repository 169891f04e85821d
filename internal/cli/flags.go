package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"galarender/internal/config"
	"galarender/internal/pkg/errors"
	"galarender/internal/worker/dispatch"
	"galarender/internal/worker/util"
)

// runOpts holds the command-line flags.
type runOpts struct {
	blendFile    string
	frameStart   int
	frameEnd     int
	resolution   string
	outputFormat string
	outputDir    string
	mock         bool
	jobID        string
	publish      bool
	configPath   string
	logLevel     string
}

var requiredFlags = []string{"blend_file", "frame_start", "frame_end"}

func (o *runOpts) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.blendFile, "blend_file", "", "scene file to render (required)")
	f.IntVar(&o.frameStart, "frame_start", 0, "first frame, inclusive (required)")
	f.IntVar(&o.frameEnd, "frame_end", 0, "last frame, inclusive (required)")
	f.StringVar(&o.resolution, "resolution", config.DefaultResolution, "resolution tag: 720p, 1080p or 4k")
	f.StringVar(&o.outputFormat, "output_format", config.DefaultOutputFormat, `output format; "mp4" encodes a video`)
	f.StringVar(&o.outputDir, "output_dir", config.DefaultOutputDir, "output directory (created if absent)")
	f.BoolVar(&o.mock, "mock", false, "write placeholder frames without invoking any tool")
	f.StringVar(&o.jobID, "job_id", "", "job identity for logs, status reports and uploads (generated when empty)")
	f.BoolVar(&o.publish, "publish", false, "upload the artifact to the configured storage provider")
	f.StringVar(&o.configPath, "config", util.Env("RENDER_CONFIG", ""), "TOML config file")
	f.StringVar(&o.logLevel, "log_level", "", "log level: debug, info, warn or error")
}

func (o *runOpts) validate(cmd *cobra.Command) error {
	var missing []string
	for _, name := range requiredFlags {
		if !cmd.Flags().Changed(name) {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		return errors.Validationf("required flag(s) not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

// applyFlags lets explicitly set flags win over file and environment.
func (o *runOpts) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("output_dir") {
		cfg.Output.Dir = o.outputDir
	}
	if cmd.Flags().Changed("log_level") {
		cfg.Log.Level = o.logLevel
	}
}

func (o *runOpts) request(cfg *config.Config) dispatch.Request {
	return dispatch.Request{
		JobID:        o.jobID,
		BlendFile:    o.blendFile,
		FrameStart:   o.frameStart,
		FrameEnd:     o.frameEnd,
		Resolution:   o.resolution,
		OutputFormat: o.outputFormat,
		OutputDir:    cfg.Output.Dir,
		Mock:         o.mock,
	}
}
