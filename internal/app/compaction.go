package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"relaybot/internal/storage"
	logx "relaybot/pkg/logx"

	"github.com/robfig/cron/v3"
)

const compactTimeout = 2 * time.Minute

// compactionJob runs store compaction on a cron schedule. The schedule can be
// swapped on config reload; an empty spec disables it.
type compactionJob struct {
	target storage.Compactor
	log    logx.Logger
	parser cron.Parser

	mu   sync.Mutex
	ctx  context.Context
	c    *cron.Cron
	spec string
}

func newCompactionJob(target storage.Compactor, log logx.Logger) *compactionJob {
	return &compactionJob{
		target: target,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Apply installs spec, replacing any running schedule. ctx bounds every run.
func (j *compactionJob) Apply(ctx context.Context, spec string) error {
	spec = strings.TrimSpace(spec)
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.c != nil && spec == j.spec {
		return nil
	}
	sched, err := j.parser.Parse(spec)
	if spec != "" && err != nil {
		return err
	}
	j.stopLocked()
	j.spec = spec
	j.ctx = ctx
	if spec == "" {
		return nil
	}

	c := cron.New(cron.WithParser(j.parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(sched, cron.FuncJob(j.run))
	c.Start()
	j.c = c
	j.log.Info("compaction scheduled", logx.String("spec", spec), logx.Time("next", sched.Next(time.Now())))
	return nil
}

func (j *compactionJob) run() {
	j.mu.Lock()
	parent := j.ctx
	j.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, compactTimeout)
	defer cancel()

	start := time.Now()
	if err := j.target.Compact(ctx); err != nil {
		j.log.Warn("compaction failed", logx.Err(err))
		return
	}
	j.log.Debug("compaction done", logx.Duration("took", time.Since(start)))
}

// Stop halts the schedule and waits for a running compaction, bounded by ctx.
func (j *compactionJob) Stop(ctx context.Context) {
	j.mu.Lock()
	c := j.c
	j.c = nil
	j.spec = ""
	j.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

func (j *compactionJob) stopLocked() {
	if j.c != nil {
		j.c.Stop()
		j.c = nil
	}
}
