package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"galarender/internal/config"
	"galarender/internal/pkg/errors"
	"galarender/internal/pkg/logger"
	"galarender/internal/pkg/shutdown"
	"galarender/internal/storage"
	"galarender/internal/worker"
	"galarender/internal/worker/dispatch"
	"galarender/internal/worker/publish"
	"galarender/internal/worker/report"
)

const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func (c *CLI) run(cmd *cobra.Command, opts *runOpts) error {
	if err := opts.validate(cmd); err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	opts.applyFlags(cmd, cfg)

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      c.stderr,
		AddSource:   cfg.Log.Source,
		ServiceName: appName,
	})

	mgr := shutdown.NewManager(log, shutdownTimeout)
	defer mgr.Shutdown()

	ctx, cancel := mgr.NotifyContext(cmd.Context())
	defer cancel()

	var pub worker.Publisher
	if opts.publish {
		p, err := c.publisher(ctx, cfg, log)
		if err != nil {
			return err
		}
		pub = p
	}

	deps := worker.Deps{
		Dispatcher: dispatch.New(dispatch.Options{
			Resolver:   c.Resolver,
			Runner:     c.runner(),
			RenderTool: cfg.Tools.Render,
			EncodeTool: cfg.Tools.Encode,
			FrameDelay: cfg.Tools.FrameDelay,
			Log:        log,
		}),
		Reporter:  c.reporter(ctx, cfg, log, mgr),
		Publisher: pub,
		Log:       log,
	}

	out, err := worker.Run(ctx, deps, opts.request(cfg))
	if err != nil {
		return err
	}

	fmt.Fprintln(c.stdout, out.Result.Artifact)
	return nil
}

func (c *CLI) runner() dispatch.Runner {
	if c.Runner != nil {
		return c.Runner
	}
	return dispatch.ExecRunner{Stdout: c.stdout, Stderr: c.stderr}
}

// publisher fails fast: a requested upload with a broken storage setup is a
// usage error, reported before any rendering starts.
func (c *CLI) publisher(ctx context.Context, cfg *config.Config, log *logger.Logger) (*publish.Publisher, error) {
	if !cfg.PublishEnabled() {
		return nil, errors.ValidationField("storage.provider", "--publish requires a storage provider (STORAGE_PROVIDER or [storage] provider)")
	}
	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	return publish.New(sp, cfg.Storage.Prefix, log), nil
}

// reporter connects the configured status sinks. A sink that cannot be
// reached is skipped with a warning.
func (c *CLI) reporter(ctx context.Context, cfg *config.Config, log *logger.Logger, mgr *shutdown.Manager) report.Reporter {
	var sinks report.Multi

	if cfg.Report.DatabaseURL != "" {
		pool, err := connectPostgres(ctx, cfg.Report.DatabaseURL)
		if err != nil {
			log.WithError(err).Warn("postgres unavailable, job status will not be recorded")
		} else {
			mgr.RegisterSimple("postgres", pool.Close)
			sinks = append(sinks, report.NewPostgres(pool))
		}
	}

	if cfg.Report.RedisAddr != "" {
		rdb, err := connectRedis(ctx, cfg.Report.RedisAddr)
		if err != nil {
			log.WithError(err).Warn("redis unavailable, job events will not be published")
		} else {
			mgr.RegisterCloser("redis", rdb)
			sinks = append(sinks, report.NewRedis(rdb, cfg.Report.Channel))
		}
	}

	if len(sinks) == 0 {
		return report.Nop{}
	}
	return sinks
}

func connectPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "cli.postgres", "invalid database url")
	}

	pctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "cli.postgres", "database ping failed")
	}
	return pool, nil
}

func connectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	pctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, "cli.redis", "redis ping failed").
			WithField("addr", addr)
	}
	return rdb, nil
}
