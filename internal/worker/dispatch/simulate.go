package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"galarender/internal/pkg/errors"
)

// Placeholder payloads for simulated output.
var (
	MockFrameData = []byte("FAKE_FRAME")
	MockVideoData = []byte("FAKE_MP4")
)

// simulate writes one placeholder per frame in [FrameStart, FrameEnd] and,
// for an mp4 request in any letter case, a placeholder video. A reversed
// range writes no frames.
func (d *Dispatcher) simulate(ctx context.Context, req Request, res Resolution, reason string) (*Result, error) {
	log := d.log.FromContext(ctx)

	result := &Result{
		Artifact:   req.OutputDir,
		Mode:       ModeSimulated,
		Reason:     reason,
		Resolution: res,
	}

	for f := req.FrameStart; f <= req.FrameEnd; f++ {
		name := filepath.Join(req.OutputDir, fmt.Sprintf(MockFramePattern, f))
		if err := os.WriteFile(name, MockFrameData, 0o644); err != nil {
			return nil, errors.Wrap(err, "dispatch.simulate", "cannot write placeholder frame").
				WithField("frame", f)
		}
		result.Frames++

		if err := d.pause(ctx); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeCanceled, "dispatch.simulate", "simulation interrupted").
				WithField("frame", f)
		}
	}

	if strings.EqualFold(req.OutputFormat, FormatMP4) {
		videoPath := filepath.Join(req.OutputDir, MockVideoName)
		if err := os.WriteFile(videoPath, MockVideoData, 0o644); err != nil {
			return nil, errors.Wrap(err, "dispatch.simulate", "cannot write placeholder video")
		}
		result.Artifact = videoPath
		result.Video = true
	}

	log.Info("render complete (simulated)",
		"frames", result.Frames,
		"artifact", result.Artifact,
	)
	return result, nil
}

func (d *Dispatcher) pause(ctx context.Context) error {
	if d.frameDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d.frameDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
