// Package dispatch turns one render request into external tool invocations.
//
// A request takes one of three paths:
//
//   - simulated: mock requested or the render tool is missing; placeholder
//     frames (and a placeholder video for mp4) are written directly
//   - real render, real encode: the render tool writes the frames, then the
//     encoder builds output.mp4 when the format is exactly "mp4"
//   - real render, skipped encode: the encoder is missing or fails; the frame
//     directory is the artifact
//
// Only a failed render is returned as an error. Encoder problems are
// recorded on the Result.
package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"galarender/internal/pkg/errors"
	"galarender/internal/pkg/logger"
)

// Mode tells which path produced a Result.
type Mode string

const (
	ModeReal      Mode = "real"
	ModeSimulated Mode = "simulated"
)

// Reasons for taking the simulated path.
const (
	ReasonMock           = "mock mode enabled"
	ReasonRenderToolMiss = "render tool not found"
)

// FormatMP4 is the output format that requests a video.
const FormatMP4 = "mp4"

// Request describes one render job.
type Request struct {
	JobID        string
	BlendFile    string
	FrameStart   int
	FrameEnd     int
	Resolution   string
	OutputFormat string
	OutputDir    string
	Mock         bool
}

// Result is the outcome of a successful dispatch.
type Result struct {
	// Artifact is the video file when Video is set, else the output directory.
	Artifact   string
	Video      bool
	Mode       Mode
	Reason     string
	Resolution Resolution
	// Frames counts placeholder frames written by the simulated path. The
	// real path leaves frame naming and counting to the render tool.
	Frames        int
	EncodeSkipped bool
	EncodeErr     error
}

// Options configures a Dispatcher. Zero values select the PATH resolver,
// the os/exec runner, "blender", "ffmpeg", no simulated frame delay and the
// default logger.
type Options struct {
	Resolver   Resolver
	Runner     Runner
	RenderTool string
	EncodeTool string
	FrameDelay time.Duration
	Log        *logger.Logger
}

type Dispatcher struct {
	resolver   Resolver
	runner     Runner
	renderTool string
	encodeTool string
	frameDelay time.Duration
	log        *logger.Logger
}

func New(o Options) *Dispatcher {
	d := &Dispatcher{
		resolver:   o.Resolver,
		runner:     o.Runner,
		renderTool: o.RenderTool,
		encodeTool: o.EncodeTool,
		frameDelay: o.FrameDelay,
		log:        o.Log,
	}
	if d.resolver == nil {
		d.resolver = PathResolver{}
	}
	if d.runner == nil {
		d.runner = ExecRunner{}
	}
	if d.renderTool == "" {
		d.renderTool = "blender"
	}
	if d.encodeTool == "" {
		d.encodeTool = "ffmpeg"
	}
	if d.log == nil {
		d.log = logger.NewDefault()
	}
	d.log = d.log.WithComponent("dispatch")
	return d
}

// Run executes req and returns the artifact. The returned error is always
// an *errors.Error; CodeRenderFailed marks the fatal render failure.
func (d *Dispatcher) Run(ctx context.Context, req Request) (*Result, error) {
	log := d.log.FromContext(ctx)

	if strings.TrimSpace(req.OutputDir) == "" {
		return nil, errors.ValidationField("output_dir", "output directory is required")
	}

	res := ResolveResolution(req.Resolution)
	log.Info("starting render",
		"blend_file", req.BlendFile,
		"frame_start", req.FrameStart,
		"frame_end", req.FrameEnd,
		"width", res.Width,
		"height", res.Height,
	)

	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "dispatch.prepare", "cannot create output directory").
			WithField("output_dir", req.OutputDir)
	}

	if req.Mock {
		log.Info("mock mode enabled, simulating render")
		return d.simulate(ctx, req, res, ReasonMock)
	}

	renderPath, err := d.resolver.LookPath(d.renderTool)
	if err != nil {
		log.Info("render tool not found, simulating render", "tool", d.renderTool)
		return d.simulate(ctx, req, res, ReasonRenderToolMiss)
	}

	return d.render(ctx, req, res, renderPath)
}

func (d *Dispatcher) render(ctx context.Context, req Request, res Resolution, renderPath string) (*Result, error) {
	log := d.log.FromContext(ctx).WithTool(renderPath)

	args := RenderArgs(req.BlendFile, req.OutputDir, req.FrameStart, req.FrameEnd)
	log.Debug("running render tool", "args", args)

	if err := d.runner.Run(ctx, renderPath, args...); err != nil {
		code := errors.CodeRenderFailed
		if ctx.Err() != nil {
			code = errors.CodeCanceled
		}
		return nil, errors.WrapWithCode(err, code, "dispatch.render", "render tool failed").
			WithField("tool", renderPath).
			WithField("exit_status", exitStatus(err))
	}
	log.Info("render complete")

	result := &Result{
		Artifact:   req.OutputDir,
		Mode:       ModeReal,
		Resolution: res,
	}

	// Exact comparison: the real path encodes only for lowercase "mp4".
	if req.OutputFormat == FormatMP4 {
		d.encode(ctx, req, result)
	}
	return result, nil
}

// encode never fails the job. On any problem result keeps the frame
// directory as its artifact.
func (d *Dispatcher) encode(ctx context.Context, req Request, result *Result) {
	log := d.log.FromContext(ctx)

	encodePath, err := d.resolver.LookPath(d.encodeTool)
	if err != nil {
		log.Warn("encoder not found, skipping conversion", "tool", d.encodeTool)
		result.EncodeSkipped = true
		return
	}

	log = log.WithTool(encodePath)
	videoPath := filepath.Join(req.OutputDir, VideoName)
	log.Info("converting to mp4", "video", videoPath)

	if err := d.runner.Run(ctx, encodePath, EncodeArgs(req.OutputDir, videoPath)...); err != nil {
		result.EncodeErr = errors.WrapWithCode(err, errors.CodeEncodeFailed, "dispatch.encode", "conversion to mp4 failed").
			WithField("tool", encodePath).
			WithField("exit_status", exitStatus(err))
		log.Warn("conversion to mp4 failed, keeping frame directory", "error", err.Error())
		return
	}

	log.Info("conversion complete")
	result.Artifact = videoPath
	result.Video = true
}
