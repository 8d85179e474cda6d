package scheduler

import (
	"context"
	"fmt"
	"time"

	"SafeStack/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

type Cron struct {
	c       *cron.Cron
	loc     *time.Location
	timeout time.Duration
}

// NewCron 每个任务最多运行 timeout，0 表示不限
func NewCron(loc *time.Location, timeout time.Duration) *Cron {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(zapCronLogger{}),
		cron.WithChain(cron.Recover(zapCronLogger{}), cron.SkipIfStillRunning(zapCronLogger{})),
	)
	return &Cron{c: c, loc: loc, timeout: timeout}
}

func (cr *Cron) Start() { cr.c.Start() }
func (cr *Cron) Stop()  { ctx := cr.c.Stop(); <-ctx.Done() }

// Add registers job under a standard five-field cron expression.
func (cr *Cron) Add(name, expr string, job Job) (cron.EntryID, error) {
	id, err := cr.c.AddFunc(expr, func() {
		ctx := context.Background()
		if cr.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cr.timeout)
			defer cancel()
		}
		start := time.Now()
		job.Run(ctx)
		logger.Debug("cron job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return 0, fmt.Errorf("schedule %s (%q): %w", name, expr, err)
	}
	return id, nil
}

func (cr *Cron) AddWithCtx(name, expr string, fn func(ctx context.Context)) (cron.EntryID, error) {
	return cr.Add(name, expr, FuncJob(fn))
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }

// zapCronLogger adapts cron.Logger to the process logger.
type zapCronLogger struct{}

func (zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Lg.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Lg.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
