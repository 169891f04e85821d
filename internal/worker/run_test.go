package worker

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"galarender/internal/pkg/errors"
	"galarender/internal/pkg/logger"
	"galarender/internal/worker/dispatch"
	"galarender/internal/worker/publish"
)

type fakeReporter struct {
	calls   []string
	lastErr error
	fail    error
}

func (r *fakeReporter) Running(ctx context.Context, jobID string) error {
	r.calls = append(r.calls, "running")
	return r.fail
}

func (r *fakeReporter) Done(ctx context.Context, jobID string, res *dispatch.Result) error {
	r.calls = append(r.calls, "done")
	return r.fail
}

func (r *fakeReporter) Failed(ctx context.Context, jobID string, cause error) error {
	r.calls = append(r.calls, "failed")
	r.lastErr = cause
	return r.fail
}

type fakePublisher struct {
	jobID string
	err   error
}

func (p *fakePublisher) Publish(ctx context.Context, jobID string, res *dispatch.Result) (*publish.Publication, error) {
	p.jobID = jobID
	if p.err != nil {
		return nil, p.err
	}
	return &publish.Publication{Provider: "fake", Objects: []publish.Object{{Name: filepath.Base(res.Artifact)}}}, nil
}

type failingDispatcher struct{ err error }

func (d failingDispatcher) Run(context.Context, dispatch.Request) (*dispatch.Result, error) {
	return nil, d.err
}

func mockDispatcher() *dispatch.Dispatcher {
	return dispatch.New(dispatch.Options{
		Resolver: dispatch.StaticResolver{},
		Log:      logger.Discard(),
	})
}

func mockRequest(t *testing.T) dispatch.Request {
	return dispatch.Request{
		JobID:        "job_test",
		BlendFile:    "scene.blend",
		FrameStart:   1,
		FrameEnd:     3,
		Resolution:   "1080p",
		OutputFormat: "mp4",
		OutputDir:    t.TempDir(),
		Mock:         true,
	}
}

func TestRunSuccess(t *testing.T) {
	rep := &fakeReporter{}
	pub := &fakePublisher{}
	req := mockRequest(t)

	out, err := Run(context.Background(), Deps{
		Dispatcher: mockDispatcher(),
		Reporter:   rep,
		Publisher:  pub,
		Log:        logger.Discard(),
	}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := filepath.Join(req.OutputDir, dispatch.MockVideoName); out.Result.Artifact != want {
		t.Errorf("expected artifact %s, got %s", want, out.Result.Artifact)
	}
	if got := strings.Join(rep.calls, ","); got != "running,done" {
		t.Errorf("expected running,done, got %s", got)
	}
	if pub.jobID != "job_test" {
		t.Errorf("expected publish for job_test, got %q", pub.jobID)
	}
	if out.Publication == nil || out.Publication.Provider != "fake" {
		t.Errorf("expected publication to be recorded, got %+v", out.Publication)
	}
}

func TestRunDispatchFailure(t *testing.T) {
	rep := &fakeReporter{}
	pub := &fakePublisher{}
	cause := errors.New(errors.CodeRenderFailed, "render tool failed")

	out, err := Run(context.Background(), Deps{
		Dispatcher: failingDispatcher{err: cause},
		Reporter:   rep,
		Publisher:  pub,
		Log:        logger.Discard(),
	}, mockRequest(t))

	if out != nil {
		t.Errorf("expected nil outcome, got %+v", out)
	}
	if !errors.IsRenderFailed(err) {
		t.Errorf("expected render failure, got %v", err)
	}
	if got := strings.Join(rep.calls, ","); got != "running,failed" {
		t.Errorf("expected running,failed, got %s", got)
	}
	if rep.lastErr != cause {
		t.Errorf("expected failure cause to be reported, got %v", rep.lastErr)
	}
	if pub.jobID != "" {
		t.Error("expected no publish after a failed dispatch")
	}
}

func TestRunFailureLogsErrorFields(t *testing.T) {
	var buf bytes.Buffer
	cause := errors.New(errors.CodeRenderFailed, "render tool failed").WithField("tool", "/usr/bin/blender")

	_, err := Run(context.Background(), Deps{
		Dispatcher: failingDispatcher{err: fmt.Errorf("dispatch: %w", cause)},
		Reporter:   &fakeReporter{},
		Log:        logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf}),
	}, mockRequest(t))
	if !errors.IsRenderFailed(err) {
		t.Fatalf("expected render failure, got %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"tool":"/usr/bin/blender"`, `"code":"RENDER_FAILED"`, `"msg":"failure stack"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log to contain %s, got:\n%s", want, out)
		}
	}
}

func TestRunEncodeFailureLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})
	d := dispatch.New(dispatch.Options{
		Resolver: dispatch.StaticResolver{"blender": "/usr/bin/blender", "ffmpeg": "/usr/bin/ffmpeg"},
		Runner:   encodeFailingRunner{},
		Log:      log,
	})
	req := mockRequest(t)
	req.Mock = false

	out, err := Run(context.Background(), Deps{Dispatcher: d, Reporter: &fakeReporter{}, Log: log}, req)
	if err != nil {
		t.Fatalf("expected encode failure to be non-fatal, got %v", err)
	}
	if out.Result.EncodeErr == nil {
		t.Fatal("expected EncodeErr on the result")
	}
	if n := strings.Count(buf.String(), "exit status 1"); n != 1 {
		t.Errorf("expected the encode failure logged once, got %d:\n%s", n, buf.String())
	}
}

// encodeFailingRunner succeeds for every tool except ffmpeg.
type encodeFailingRunner struct{}

func (encodeFailingRunner) Run(_ context.Context, path string, _ ...string) error {
	if filepath.Base(path) == "ffmpeg" {
		return fmt.Errorf("exit status 1")
	}
	return nil
}

func TestRunSideEffectsAreNotFatal(t *testing.T) {
	rep := &fakeReporter{fail: fmt.Errorf("database is down")}
	pub := &fakePublisher{err: errors.New(errors.CodePublish, "upload failed")}

	out, err := Run(context.Background(), Deps{
		Dispatcher: mockDispatcher(),
		Reporter:   rep,
		Publisher:  pub,
		Log:        logger.Discard(),
	}, mockRequest(t))
	if err != nil {
		t.Fatalf("expected success despite reporter and publisher errors, got %v", err)
	}
	if out.Publication != nil {
		t.Errorf("expected no publication, got %+v", out.Publication)
	}
	if out.Result.Mode != dispatch.ModeSimulated {
		t.Errorf("expected simulated mode, got %s", out.Result.Mode)
	}
}

func TestRunGeneratesJobID(t *testing.T) {
	req := mockRequest(t)
	req.JobID = ""

	out, err := Run(context.Background(), Deps{Dispatcher: mockDispatcher(), Log: logger.Discard()}, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out.JobID, "job_") {
		t.Errorf("expected generated job id, got %q", out.JobID)
	}
}

func TestRunReportsAfterCancel(t *testing.T) {
	rep := &fakeReporter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Deps{
		Dispatcher: mockDispatcher(),
		Reporter:   rep,
		Log:        logger.Discard(),
	}, mockRequest(t))

	if errors.GetExitCode(err) != errors.ExitCanceled {
		t.Errorf("expected canceled exit code, got %d (%v)", errors.GetExitCode(err), err)
	}
	if got := strings.Join(rep.calls, ","); got != "running,failed" {
		t.Errorf("expected running,failed, got %s", got)
	}
}

func TestRunRequiresDispatcher(t *testing.T) {
	if _, err := Run(context.Background(), Deps{}, dispatch.Request{}); err == nil {
		t.Error("expected error without a dispatcher")
	}
}
