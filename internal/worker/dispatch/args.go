package dispatch

import (
	"path/filepath"
	"strconv"
)

// Output names inside the job's output directory.
const (
	// RenderOutputTemplate is handed to the render tool, which replaces the
	// hashes with the zero-padded frame number.
	RenderOutputTemplate = "frame_####"
	// EncodeInputPattern matches the files RenderOutputTemplate produces.
	EncodeInputPattern = "frame_%04d.png"
	// VideoName is the encoded video written by the real path.
	VideoName = "output.mp4"
	// MockVideoName is the placeholder video written by the simulated path.
	MockVideoName = "final.mp4"
	// MockFramePattern names simulated frames.
	MockFramePattern = "frame_%05d.png"
)

// Fixed parts of the encoder contract.
const (
	EncodeFrameRate   = 24
	EncodeVideoCodec  = "libx264"
	EncodePixelFormat = "yuv420p"
)

// RenderArgs builds the render tool argument list: background mode, scene,
// output template, PNG frames, file extensions on, frame range, animation,
// then a CPU device override for the scene script after "--".
func RenderArgs(blendFile, outputDir string, frameStart, frameEnd int) []string {
	return []string{
		"-b", blendFile,
		"-o", filepath.Join(outputDir, RenderOutputTemplate),
		"-F", "PNG",
		"-x", "1",
		"-s", strconv.Itoa(frameStart),
		"-e", strconv.Itoa(frameEnd),
		"-a",
		"--", "--cycles-device", "CPU",
	}
}

// EncodeArgs builds the encoder argument list that turns the rendered frame
// sequence in outputDir into videoPath.
func EncodeArgs(outputDir, videoPath string) []string {
	return []string{
		"-framerate", strconv.Itoa(EncodeFrameRate),
		"-i", filepath.Join(outputDir, EncodeInputPattern),
		"-c:v", EncodeVideoCodec,
		"-pix_fmt", EncodePixelFormat,
		videoPath,
	}
}
