// Package worker runs a single render job: status reporting around the
// dispatch, then the optional upload of the artifact.
package worker

import (
	"context"
	"time"

	"galarender/internal/pkg/errors"
	"galarender/internal/pkg/logger"
	"galarender/internal/worker/dispatch"
	"galarender/internal/worker/publish"
	"galarender/internal/worker/report"
	"galarender/internal/worker/util"
)

// reportTimeout bounds each status write. Reports still go out after the
// job context is canceled.
const reportTimeout = 5 * time.Second

// Outcome is a finished job.
type Outcome struct {
	JobID       string
	Result      *dispatch.Result
	Publication *publish.Publication
	Duration    time.Duration
}

// Run executes req. Only the dispatch error fails the job; reporting and
// publishing problems are logged.
func Run(ctx context.Context, d Deps, req dispatch.Request) (*Outcome, error) {
	if d.Dispatcher == nil {
		return nil, errors.Internal("worker: dispatcher is required")
	}
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	rep := d.Reporter
	if rep == nil {
		rep = report.Nop{}
	}

	if req.JobID == "" {
		req.JobID = util.NewID("job")
	}
	ctx = logger.ContextWithJobID(ctx, req.JobID)
	jobLog := log.WithComponent("worker").WithJobID(req.JobID)

	jobLog.Info("processing job", "mock", req.Mock)
	start := time.Now()

	reportStatus(ctx, jobLog, "running", func(ctx context.Context) error {
		return rep.Running(ctx, req.JobID)
	})

	res, err := d.Dispatcher.Run(ctx, req)
	if err != nil {
		var wErr *errors.Error
		if errors.As(err, &wErr) {
			failLog := jobLog.WithFields(errors.GetFields(err))
			failLog.Error("job failed",
				"code", string(wErr.Code),
				"op", wErr.Op,
				"message", wErr.Message,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			failLog.Debug("failure stack", "stack", wErr.StackTrace())
		} else {
			jobLog.WithError(err).Error("job failed")
		}
		reportStatus(ctx, jobLog, "failed", func(ctx context.Context) error {
			return rep.Failed(ctx, req.JobID, err)
		})
		return nil, err
	}

	out := &Outcome{JobID: req.JobID, Result: res}

	if d.Publisher != nil {
		pub, err := d.Publisher.Publish(ctx, req.JobID, res)
		if err != nil {
			jobLog.WithError(err).Warn("publish failed, artifact kept locally")
		} else {
			out.Publication = pub
		}
	}

	reportStatus(ctx, jobLog, "done", func(ctx context.Context) error {
		return rep.Done(ctx, req.JobID, res)
	})

	out.Duration = time.Since(start)
	jobLog.Info("job completed",
		"mode", string(res.Mode),
		"artifact", res.Artifact,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func reportStatus(ctx context.Context, log *logger.Logger, status string, fn func(context.Context) error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if err := fn(rctx); err != nil {
		log.WithError(err).Warn("status report failed", "status", status)
	}
}
