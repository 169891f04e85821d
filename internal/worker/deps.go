package worker

import (
	"context"

	"galarender/internal/pkg/logger"
	"galarender/internal/worker/dispatch"
	"galarender/internal/worker/publish"
	"galarender/internal/worker/report"
)

// Dispatcher runs one render request. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Run(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
}

// Publisher uploads a finished artifact. *publish.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, jobID string, res *dispatch.Result) (*publish.Publication, error)
}

// Deps wires one job run. Reporter and Publisher are optional.
type Deps struct {
	Dispatcher Dispatcher
	Reporter   report.Reporter
	Publisher  Publisher
	Log        *logger.Logger
}
