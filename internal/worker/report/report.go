// Package report records job status transitions outside the process: the
// jobs table in Postgres and an event channel in Redis. Reporting never
// decides the job outcome; callers log reporter errors and continue.
package report

import (
	"context"
	"time"
	"unicode/utf8"

	"galarender/internal/pkg/errors"
	"galarender/internal/worker/dispatch"
)

type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
)

// MaxErrorText bounds the failure message stored with a job.
const MaxErrorText = 2000

// Event is the status payload shared by every sink.
type Event struct {
	JobID    string    `json:"job_id"`
	Status   Status    `json:"status"`
	Mode     string    `json:"mode,omitempty"`
	Artifact string    `json:"artifact,omitempty"`
	Video    bool      `json:"video,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

type Reporter interface {
	Running(ctx context.Context, jobID string) error
	Done(ctx context.Context, jobID string, res *dispatch.Result) error
	Failed(ctx context.Context, jobID string, cause error) error
}

// ErrorText renders cause for storage, cut to at most MaxErrorText bytes
// on a rune boundary so the text stays valid UTF-8.
func ErrorText(cause error) string {
	if cause == nil {
		return ""
	}
	msg := cause.Error()
	if len(msg) <= MaxErrorText {
		return msg
	}
	cut := MaxErrorText
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

func doneEvent(jobID string, res *dispatch.Result, at time.Time) Event {
	ev := Event{JobID: jobID, Status: StatusDone, At: at}
	if res != nil {
		ev.Mode = string(res.Mode)
		ev.Artifact = res.Artifact
		ev.Video = res.Video
	}
	return ev
}

// Nop discards every transition.
type Nop struct{}

func (Nop) Running(context.Context, string) error                { return nil }
func (Nop) Done(context.Context, string, *dispatch.Result) error { return nil }
func (Nop) Failed(context.Context, string, error) error          { return nil }

// Multi fans a transition out to every reporter. All reporters run even
// when one fails; the failures are joined.
type Multi []Reporter

func (m Multi) Running(ctx context.Context, jobID string) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Running(ctx, jobID))
	}
	return errors.Join(errs...)
}

func (m Multi) Done(ctx context.Context, jobID string, res *dispatch.Result) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Done(ctx, jobID, res))
	}
	return errors.Join(errs...)
}

func (m Multi) Failed(ctx context.Context, jobID string, cause error) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Failed(ctx, jobID, cause))
	}
	return errors.Join(errs...)
}
