package report

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"galarender/internal/pkg/errors"
	"galarender/internal/worker/dispatch"
)

// StateTTL is how long the last status of a job stays readable.
const StateTTL = 24 * time.Hour

// RedisClient is the subset of *redis.Client used by Redis.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Redis publishes every transition as JSON on a channel and keeps the
// latest one under <channel>:<job id>.
type Redis struct {
	rdb     RedisClient
	channel string
	now     func() time.Time
}

func NewRedis(rdb RedisClient, channel string) *Redis {
	return &Redis{rdb: rdb, channel: channel, now: time.Now}
}

// StateKey is the key holding the latest event of jobID.
func (r *Redis) StateKey(jobID string) string {
	return r.channel + ":" + jobID
}

func (r *Redis) Running(ctx context.Context, jobID string) error {
	return r.emit(ctx, Event{JobID: jobID, Status: StatusRunning, At: r.now().UTC()})
}

func (r *Redis) Done(ctx context.Context, jobID string, res *dispatch.Result) error {
	return r.emit(ctx, doneEvent(jobID, res, r.now().UTC()))
}

func (r *Redis) Failed(ctx context.Context, jobID string, cause error) error {
	return r.emit(ctx, Event{
		JobID:  jobID,
		Status: StatusFailed,
		Error:  ErrorText(cause),
		At:     r.now().UTC(),
	})
}

func (r *Redis) emit(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "report.redis", "failed to encode event")
	}

	if err := r.rdb.Set(ctx, r.StateKey(ev.JobID), payload, StateTTL).Err(); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "report.redis", "failed to store job state").
			WithField("status", string(ev.Status))
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return errors.WrapWithCode(err, errors.CodeUnavailable, "report.redis", "failed to publish event").
			WithField("channel", r.channel)
	}
	return nil
}
