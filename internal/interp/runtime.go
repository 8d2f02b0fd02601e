package interp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/scp/internal/graph"
	"github.com/roach88/scp/internal/scp"
)

// DefaultWorkers is the size of the worker pool when none is configured.
const DefaultWorkers = 4

// ErrClosed is returned by operations on a closed runtime.
var ErrClosed = errors.New("runtime closed")

// Runtime interprets SCP programs over one graph store.
//
// Thread-safety: every exported method is safe for concurrent use. Run may
// be called once.
type Runtime struct {
	g *graph.Store
	k *scp.Keynodes
	r *scp.Resolver
	b *scp.Builder

	queue   *workQueue
	subs    *SubscriptionTable
	clock   *Clock
	trace   *Trace
	quotas  *quotas
	metrics *Metrics
	tracer  trace.Tracer
	log     *slog.Logger
	ids     IDGenerator

	outMu sync.Mutex
	out   io.Writer

	workers  int
	maxSteps int

	busSubs []graph.SubscriptionID

	// inflight counts queued plus executing work items; idle is closed and
	// replaced whenever it drops to zero.
	idleMu   sync.Mutex
	inflight int
	idle     chan struct{}

	procMu  sync.Mutex
	running map[graph.Handle]int
	doomed  map[graph.Handle]bool
	copies  map[graph.Handle][]graph.Handle

	// joins remembers, per join operator, the predecessor outcomes that
	// last released it.
	joinMu sync.Mutex
	joins  map[graph.Handle]string

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithWorkers sets the worker pool size. One worker gives a deterministic
// execution order.
func WithWorkers(n int) Option {
	return func(rt *Runtime) {
		if n > 0 {
			rt.workers = n
		}
	}
}

// WithMaxSteps sets the per-process step quota; zero disables it.
func WithMaxSteps(n int) Option {
	return func(rt *Runtime) { rt.maxSteps = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.log = l
		}
	}
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(rt *Runtime) {
		if m != nil {
			rt.metrics = m
		}
	}
}

// WithTracer sets the OpenTelemetry tracer used for operator spans.
func WithTracer(t trace.Tracer) Option {
	return func(rt *Runtime) {
		if t != nil {
			rt.tracer = t
		}
	}
}

// WithOutput sets the writer used by printEl and printNl.
func WithOutput(w io.Writer) Option {
	return func(rt *Runtime) {
		if w != nil {
			rt.out = w
		}
	}
}

// WithIDGenerator sets the subscription id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(rt *Runtime) {
		if g != nil {
			rt.ids = g
		}
	}
}

// New creates a runtime over g. Keynodes are loaded, or created, in g.
func New(g *graph.Store, opts ...Option) (*Runtime, error) {
	k, err := scp.LoadKeynodes(g)
	if err != nil {
		return nil, err
	}
	metrics, err := NewMetrics(nil)
	if err != nil {
		return nil, err
	}
	rt := &Runtime{
		g:        g,
		k:        k,
		r:        scp.NewResolver(g, k),
		b:        scp.NewBuilder(g, k),
		queue:    newWorkQueue(),
		clock:    NewClock(),
		trace:    NewTrace(),
		metrics:  metrics,
		tracer:   noop.NewTracerProvider().Tracer("scp/interp"),
		log:      slog.Default(),
		ids:      UUIDv7Generator{},
		out:      io.Discard,
		workers:  DefaultWorkers,
		maxSteps: DefaultMaxSteps,
		idle:     make(chan struct{}),
		running:  make(map[graph.Handle]int),
		doomed:   make(map[graph.Handle]bool),
		copies:   make(map[graph.Handle][]graph.Handle),
		joins:    make(map[graph.Handle]string),
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.quotas = newQuotas(rt.maxSteps)
	rt.subs = newSubscriptionTable(g, rt.ids, rt.metrics)
	return rt, nil
}

func (rt *Runtime) Graph() *graph.Store               { return rt.g }
func (rt *Runtime) Keynodes() *scp.Keynodes           { return rt.k }
func (rt *Runtime) Resolver() *scp.Resolver           { return rt.r }
func (rt *Runtime) Builder() *scp.Builder             { return rt.b }
func (rt *Runtime) Trace() *Trace                     { return rt.trace }
func (rt *Runtime) Subscriptions() *SubscriptionTable { return rt.subs }

// Start subscribes the runtime's handlers to the lifecycle keynodes. It is
// called by Run and may be called earlier so that activations made before
// Run are queued.
func (rt *Runtime) Start() error {
	rt.startOnce.Do(func() {
		hooks := []struct {
			marker graph.Handle
			fn     graph.Callback
		}{
			{rt.k.Active, func(e graph.Event) {
				rt.enqueue(work{kind: workActivate, target: e.Other, arc: e.Edge})
			}},
			{rt.k.Initiated, func(e graph.Event) {
				rt.enqueue(work{kind: workSpawn, target: e.Other, arc: e.Edge})
			}},
			{rt.k.UselessProcess, func(e graph.Event) {
				rt.enqueue(work{kind: workDestroy, target: e.Other})
			}},
		}
		for _, m := range []graph.Handle{rt.k.FinishedSuccessfully, rt.k.FinishedUnsuccessfully, rt.k.FinishedWithError} {
			marker := m
			hooks = append(hooks, struct {
				marker graph.Handle
				fn     graph.Callback
			}{marker, func(e graph.Event) {
				rt.enqueue(work{kind: workFinished, target: e.Other, arc: e.Edge, marker: marker})
			}})
		}
		for _, h := range hooks {
			id, err := rt.g.Subscribe(h.marker, graph.AddOutputEdge, h.fn)
			if err != nil {
				rt.startErr = fmt.Errorf("subscribe %s: %w", rt.g.Describe(h.marker), err)
				return
			}
			rt.busSubs = append(rt.busSubs, id)
		}
		rt.log.Debug("runtime started", "workers", rt.workers, "max_steps", rt.maxSteps)
	})
	return rt.startErr
}

// Run drains the work queue with the worker pool until ctx is cancelled or
// Close is called.
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.Start(); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < rt.workers; i++ {
		g.Go(func() error { return rt.worker(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (rt *Runtime) worker(ctx context.Context) error {
	for {
		if w, ok := rt.queue.TryDequeue(); ok {
			err := rt.handle(ctx, w)
			rt.done()
			if err != nil {
				rt.log.Error("work failed", "work", w.kind.String(), "target", rt.g.Describe(w.target), "error", err)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-rt.queue.Wait():
			if !ok && rt.queue.Len() == 0 {
				return nil
			}
		}
	}
}

func (rt *Runtime) enqueue(w work) {
	rt.idleMu.Lock()
	rt.inflight++
	rt.idleMu.Unlock()
	if !rt.queue.Enqueue(w) {
		rt.done()
		rt.log.Debug("dropped work after close", "work", w.kind.String())
	}
}

func (rt *Runtime) done() {
	rt.idleMu.Lock()
	defer rt.idleMu.Unlock()
	rt.inflight--
	if rt.inflight == 0 {
		close(rt.idle)
		rt.idle = make(chan struct{})
	}
}

// WaitIdle blocks until no work is queued or executing. Suspended operators
// waiting on subscriptions do not count as work.
func (rt *Runtime) WaitIdle(ctx context.Context) error {
	for {
		rt.idleMu.Lock()
		if rt.inflight == 0 {
			rt.idleMu.Unlock()
			return nil
		}
		ch := rt.idle
		rt.idleMu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Close retires every subscription and stops the workers.
func (rt *Runtime) Close() {
	rt.closeOnce.Do(func() {
		for _, id := range rt.busSubs {
			rt.g.Unsubscribe(id)
		}
		n := rt.subs.CancelAll()
		rt.queue.Close()
		rt.log.Debug("runtime closed", "cancelled_subscriptions", n)
	})
}

func (rt *Runtime) handle(ctx context.Context, w work) error {
	switch w.kind {
	case workActivate:
		return rt.dispatch(ctx, w.target, w.arc)
	case workFinished:
		return rt.synchronize(w.target, w.marker)
	case workSpawn:
		return rt.spawn(w.target)
	case workDestroy:
		return rt.destroy(w.target)
	case workResume:
		return rt.resume(w.target, w.sub, w.outcome)
	case workAgent:
		return rt.runAgent(w.target, w.sub, w.arc, w.other)
	}
	return fmt.Errorf("unknown work kind %d", w.kind)
}

// Activate starts op by inserting an activation arc into it. Prior finished
// markers on op are cleared first.
func (rt *Runtime) Activate(op graph.Handle) error {
	if !rt.g.Exists(op) {
		return fmt.Errorf("activate %s: %w", op, graph.ErrNotFound)
	}
	rt.clearFinished(op)
	if _, _, err := rt.g.EnsureEdge(graph.ArcPosConstPerm, rt.k.Active, op); err != nil {
		return fmt.Errorf("activate %s: %w", rt.g.Describe(op), err)
	}
	return nil
}

func (rt *Runtime) clearFinished(h graph.Handle) {
	for _, m := range []graph.Handle{rt.k.FinishedSuccessfully, rt.k.FinishedUnsuccessfully, rt.k.FinishedWithError} {
		for _, t := range rt.g.Iterate3(graph.Fixed(m), graph.Any(graph.ArcAccess), graph.Fixed(h)) {
			rt.g.Erase(t.Edge)
		}
	}
}

// Invoke builds an interpretation request for program with arguments keyed
// by order and initiates it. The returned request element reports progress
// through RequestState.
func (rt *Runtime) Invoke(program graph.Handle, args map[int]graph.Handle) (graph.Handle, error) {
	req, _, err := rt.b.Request(program, args)
	if err != nil {
		return graph.Handle{}, err
	}
	if _, err := rt.g.CreateEdge(graph.ArcPosConstPerm, rt.k.Initiated, req); err != nil {
		return graph.Handle{}, fmt.Errorf("initiate request: %w", err)
	}
	rt.log.Debug("request initiated", "program", rt.g.Describe(program), "request", req.String())
	return req, nil
}

// RequestState reports the lifecycle state of a request.
func (rt *Runtime) RequestState(req graph.Handle) scp.State {
	return rt.r.RequestState(req)
}

// finishRequest marks req finished with o, unless it already finished.
func (rt *Runtime) finishRequest(req graph.Handle, o Outcome) {
	if req.IsZero() || rt.r.FinishState(req) != scp.StateUnknown {
		return
	}
	if _, _, err := rt.g.EnsureEdge(graph.ArcPosConstPerm, rt.marker(o), req); err != nil {
		rt.log.Error("finish request", "request", req.String(), "error", err)
		return
	}
	event := "finished"
	if o == Failed {
		event = "failed"
	}
	rt.metrics.process(event)
}

// abandon finishes the request owning process with an error and schedules
// the process for destruction.
func (rt *Runtime) abandon(process graph.Handle) {
	if process.IsZero() {
		return
	}
	rt.finishRequest(rt.r.RequestOfProcess(process), Failed)
	if _, _, err := rt.g.EnsureEdge(graph.ArcPosConstPerm, rt.k.UselessProcess, process); err != nil {
		rt.log.Error("mark process useless", "process", process.String(), "error", err)
	}
}

func (rt *Runtime) write(s string) {
	rt.outMu.Lock()
	defer rt.outMu.Unlock()
	_, _ = io.WriteString(rt.out, s)
}
