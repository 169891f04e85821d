package report

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"

	"galarender/internal/pkg/errors"
	"galarender/internal/worker/dispatch"
)

// Execer is the subset of *pgxpool.Pool used by Postgres.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres writes job status to the jobs table. When a render_artifacts
// table exists, finished jobs also get an artifact row.
type Postgres struct {
	db Execer
}

func NewPostgres(db Execer) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Running(ctx context.Context, jobID string) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE jobs SET status='RUNNING', started_at=NOW(), finished_at=NULL, error_text=NULL WHERE id=$1`,
		jobID,
	)
	if err != nil {
		return errors.Wrap(err, "report.postgres", "failed to mark job as running")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("job", jobID)
	}
	return nil
}

func (p *Postgres) Done(ctx context.Context, jobID string, res *dispatch.Result) error {
	tag, err := p.db.Exec(ctx,
		`UPDATE jobs SET status='DONE', finished_at=NOW() WHERE id=$1`,
		jobID,
	)
	if err != nil {
		return errors.Wrap(err, "report.postgres", "failed to mark job as done")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("job", jobID)
	}
	if res == nil {
		return nil
	}

	_, err = p.db.Exec(ctx,
		`INSERT INTO render_artifacts (job_id, mode, artifact, is_video)
         VALUES ($1,$2,$3,$4)`,
		jobID,
		string(res.Mode),
		res.Artifact,
		res.Video,
	)
	if err != nil && !IsUndefinedTable(err) {
		return errors.Wrap(err, "report.postgres", "failed to save artifact")
	}
	return nil
}

func (p *Postgres) Failed(ctx context.Context, jobID string, cause error) error {
	_, err := p.db.Exec(ctx,
		`UPDATE jobs SET status='FAILED', finished_at=NOW(), error_text=$2 WHERE id=$1`,
		jobID, ErrorText(cause),
	)
	if err != nil {
		return errors.Wrap(err, "report.postgres", "failed to mark job as failed")
	}
	return nil
}

// IsUndefinedTable reports a missing relation (42P01).
func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}
	return false
}
