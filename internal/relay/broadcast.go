package relay

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"relaybot/internal/eventbus"
	"relaybot/internal/runtime/supervisor"
	"relaybot/internal/storage"
	"relaybot/internal/texts"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Job is one broadcast: copy a source message to every known user. Never persisted.
type Job struct {
	ID              string
	SourceChatID    int64
	SourceMessageID int
	InitiatorID     int64
}

// Outcome classifies a single delivery attempt.
type Outcome int

const (
	Delivered Outcome = iota
	RateLimited
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case RateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// Result is the classified outcome of one CopyMessage call.
type Result struct {
	Outcome    Outcome
	RetryAfter time.Duration
	Err        error
}

// Classify maps a transport error to a delivery result.
func Classify(err error) Result {
	if err == nil {
		return Result{Outcome: Delivered}
	}
	if d, ok := kit.RetryAfter(err); ok {
		return Result{Outcome: RateLimited, RetryAfter: d, Err: err}
	}
	return Result{Outcome: PermanentFailure, Err: err}
}

// Summary is the tally of a finished job.
type Summary struct {
	JobID    string
	Sent     int
	Failed   int
	Attempts int
	// Aborted is set when the initiator was no longer the owner.
	Aborted bool
	Err     error
}

// Broadcaster runs broadcast jobs. Jobs are fire-and-forget: the only
// completion signal is the summary message sent to the initiator.
type Broadcaster struct {
	adapter kit.Adapter
	store   storage.Store
	roles   *Roles
	texts   *texts.Catalog
	bus     eventbus.Bus
	sup     *supervisor.Supervisor
	log     logx.Logger

	limiter atomic.Pointer[rate.Limiter]
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewBroadcaster(adapter kit.Adapter, st storage.Store, roles *Roles, tx *texts.Catalog, bus eventbus.Bus, sup *supervisor.Supervisor, log logx.Logger) *Broadcaster {
	b := &Broadcaster{
		adapter: adapter,
		store:   st,
		roles:   roles,
		texts:   tx,
		bus:     bus,
		sup:     sup,
		log:     log.With(logx.String("comp", "relay.broadcast")),
		sleep:   sleepCtx,
	}
	b.SetRate(0)
	return b
}

// SetRate paces copies to perSec per second; perSec <= 0 disables pacing.
func (b *Broadcaster) SetRate(perSec int) {
	if perSec <= 0 {
		b.limiter.Store(rate.NewLimiter(rate.Inf, 1))
		return
	}
	b.limiter.Store(rate.NewLimiter(rate.Limit(perSec), 1))
}

// Spawn starts the job in the background and returns at once. A panic in
// the job is logged and ends only that job.
func (b *Broadcaster) Spawn(job Job) string {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	run := func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				b.log.Error("broadcast job panicked",
					logx.String("job", job.ID),
					logx.Any("panic", r),
					logx.Stack(string(debug.Stack())),
				)
			}
		}()
		b.Run(ctx, job)
	}
	if b.sup == nil {
		go run(context.Background())
		return job.ID
	}
	b.sup.Go0("broadcast."+job.ID, run)
	return job.ID
}

// Run delivers the job to every known user sequentially. A rate-limited
// target gets one retry after the requested wait; other failures are not retried.
func (b *Broadcaster) Run(ctx context.Context, job Job) Summary {
	sum := Summary{JobID: job.ID}
	log := b.log.With(logx.String("job", job.ID), logx.Int64("initiator", job.InitiatorID))

	owner, err := b.roles.IsOwner(ctx, job.InitiatorID)
	if err != nil || !owner {
		sum.Aborted = true
		sum.Err = err
		log.Warn("broadcast aborted: initiator is not the owner", logx.Err(err))
		return sum
	}

	users, err := b.store.ListUsers(ctx)
	if err != nil {
		sum.Err = fmt.Errorf("list users: %w", err)
		log.Error("broadcast failed", logx.Err(sum.Err))
		b.notify(ctx, job.InitiatorID, b.texts.Get("broadcast_failed"))
		b.audit(ctx, job, sum)
		return sum
	}

	b.publish(eventbus.BroadcastStarted, sum)
	start := time.Now()
	log.Info("broadcast started", logx.Int("targets", len(users)))

	for _, uid := range users {
		if err := b.pace(ctx); err != nil {
			sum.Failed++
			continue
		}
		sum.Attempts++
		res := Classify(b.adapter.CopyMessage(ctx, uid, job.SourceChatID, job.SourceMessageID))
		if res.Outcome == RateLimited {
			log.Debug("rate limited; retrying once", logx.Int64("target", uid), logx.Duration("retry_after", res.RetryAfter))
			if err := b.sleep(ctx, res.RetryAfter); err != nil {
				res = Result{Outcome: PermanentFailure, Err: err}
			} else {
				sum.Attempts++
				res = Classify(b.adapter.CopyMessage(ctx, uid, job.SourceChatID, job.SourceMessageID))
				if res.Outcome == RateLimited {
					res.Outcome = PermanentFailure
				}
			}
		}
		switch res.Outcome {
		case Delivered:
			sum.Sent++
		default:
			sum.Failed++
			log.Debug("delivery failed", logx.Int64("target", uid), logx.Err(res.Err))
		}
	}

	log.Info("broadcast done",
		logx.Int("sent", sum.Sent),
		logx.Int("failed", sum.Failed),
		logx.Int("attempts", sum.Attempts),
		logx.Duration("took", time.Since(start)),
	)
	b.notify(ctx, job.InitiatorID, b.texts.Format("broadcast_done", "sent", sum.Sent, "failed", sum.Failed))
	b.audit(ctx, job, sum)
	b.publish(eventbus.BroadcastFinished, sum)
	return sum
}

func (b *Broadcaster) pace(ctx context.Context) error {
	return b.limiter.Load().Wait(ctx)
}

func (b *Broadcaster) notify(ctx context.Context, userID int64, text string) {
	if _, err := b.adapter.SendText(ctx, kit.ChatTarget{ChatID: userID}, text, nil); err != nil {
		b.log.Warn("broadcast summary not delivered", logx.Int64("user_id", userID), logx.Err(err))
	}
}

func (b *Broadcaster) audit(ctx context.Context, job Job, sum Summary) {
	e := storage.AuditEntry{
		ActorID: job.InitiatorID,
		Action:  "broadcast",
		Target:  job.ID,
		OK:      sum.Sent,
		Fail:    sum.Failed,
	}
	if sum.Err != nil {
		e.Error = sum.Err.Error()
	}
	if err := b.store.AppendAudit(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		b.log.Warn("audit append failed", logx.Err(err))
	}
}

func (b *Broadcaster) publish(typ string, sum Summary) {
	if b.bus != nil {
		b.bus.Publish(eventbus.Event{Type: typ, Data: sum})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
