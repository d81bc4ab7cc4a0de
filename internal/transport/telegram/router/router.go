package router

import (
	"context"
	"hash/fnv"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"relaybot/internal/runtime/supervisor"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

// Options configures the router.
type Options struct {
	Workers   int           // number of shards; default 4
	QueueSize int           // per-shard queue; default 64
	Timeout   time.Duration // per-update handler timeout; 0 disables
	// BusyText is sent when the user's shard queue is full.
	BusyText func() string
}

// Router feeds updates to a Handler through a pool of workers.
//
// Updates are sharded by user id, so updates of one user are handled one at a
// time in arrival order while different users proceed in parallel.
type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	handle  HandlerFunc
	opts    Options

	mu     sync.Mutex
	shards []chan func()
	sup    *supervisor.Supervisor
}

func New(log logx.Logger, adapter kit.Adapter, h Handler, opts Options) *Router {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	r := &Router{log: log, adapter: adapter, opts: opts}
	r.handle = Chain(h.Handle,
		MWPanicRecover(log),
		MWRequestLog(log),
		MWTimeout(opts.Timeout),
	)
	return r
}

// Supervisor returns the worker supervisor while DispatchLoop runs.
func (r *Router) Supervisor() *supervisor.Supervisor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sup
}

// DispatchLoop consumes updates until ctx is done or the channel closes.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(r.log.With(logx.String("comp", "telegram.router"))),
		supervisor.WithCancelOnError(false),
	)
	shards := make([]chan func(), r.opts.Workers)
	for i := range shards {
		shards[i] = make(chan func(), r.opts.QueueSize)
	}
	r.mu.Lock()
	r.shards, r.sup = shards, sup
	r.mu.Unlock()

	for i, jobs := range shards {
		idx := i
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-jobs:
					if !ok {
						return nil
					}
					r.runJob(idx, job)
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithStopOnCleanExit(true),
		)
	}
	r.log.Info("router started", logx.Int("workers", len(shards)), logx.Int("queue_size", r.opts.QueueSize))

	defer func() {
		r.mu.Lock()
		r.shards, r.sup = nil, nil
		r.mu.Unlock()
		for _, ch := range shards {
			close(ch)
		}
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		r.log.Info("router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				r.log.Info("updates channel closed")
				return nil
			}
			r.Route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in router job", logx.Int("worker", worker), logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

// Route enqueues one update on its user's shard. A full shard rejects the
// update with the busy reply instead of reordering it.
func (r *Router) Route(ctx context.Context, up kit.Update) {
	if up.Message == nil && up.Callback == nil {
		return
	}
	req := NewRequest(up)
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
	)

	r.mu.Lock()
	shards := r.shards
	r.mu.Unlock()
	if len(shards) == 0 {
		return
	}

	job := func() {
		_ = r.handle(ctx, req)
		if cb := up.Callback; cb != nil {
			// stops the client's loading spinner; handlers may already have answered
			_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		}
	}
	if !tryEnqueue(shards[shardFor(req.FromID, len(shards))], job) {
		r.log.Warn("shard queue full; update rejected", logx.Int64("from_id", req.FromID))
		r.rejectBusy(ctx, up, req)
	}
}

// tryEnqueue also tolerates a shard closed by a concurrent shutdown.
func tryEnqueue(ch chan func(), job func()) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case ch <- job:
		return true
	default:
		return false
	}
}

func (r *Router) rejectBusy(ctx context.Context, up kit.Update, req *Request) {
	text := "busy, try again"
	if r.opts.BusyText != nil {
		text = r.opts.BusyText()
	}
	if up.Callback != nil {
		_ = r.adapter.AnswerCallback(ctx, up.Callback.ID, text)
		return
	}
	_, _ = r.adapter.SendText(ctx, req.Chat, text, nil)
}

func shardFor(userID int64, n int) int {
	h := fnv.New32a()
	var b [8]byte
	for i := range b {
		b[i] = byte(userID >> (8 * i))
	}
	_, _ = h.Write(b[:])
	return int(h.Sum32() % uint32(n))
}
