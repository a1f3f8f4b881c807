// Package conversation – Dispatcher
//
// This file implements the task-per-event dispatch layer. Events for
// different users run concurrently; events from the same external id are
// funneled through that user's worker goroutine and therefore processed in
// arrival order with no overlapping machine evaluations. A global semaphore
// bounds total concurrency, and a panic in any single event's handling is
// recovered and logged without taking the process down.
package conversation

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	// eventsTotal counts processed events by kind and outcome.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_events_total",
			Help: "Total number of processed conversation events.",
		},
		[]string{"kind", "outcome"},
	)

	// eventLat records event handling duration in seconds by kind.
	eventLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_event_duration_seconds",
			Help:    "Duration of conversation event handling in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// workersGauge gauges the number of live per-user workers.
	workersGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_user_workers",
			Help: "Current number of per-user dispatch workers.",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsTotal, eventLat, workersGauge)
}

// Sender delivers a reply instruction to a user. Implemented by the
// transport adapter; sends are fire-and-forget from the machine's point of
// view, so implementations log their own delivery failures.
type Sender interface {
	Send(ctx context.Context, externalID int64, reply Reply) error
}

type job struct {
	id string
	ev Event
}

// Dispatcher fans inbound events out to per-user workers.
type Dispatcher struct {
	machine *Machine
	sender  Sender
	log     zerolog.Logger

	queueSize   int
	taskTimeout time.Duration
	idleTTL     time.Duration
	sem         chan struct{}

	mu      sync.Mutex
	workers map[int64]chan job
	closed  bool
	wg      sync.WaitGroup
}

// DispatcherOptions bounds the dispatcher's resources.
type DispatcherOptions struct {
	// QueueSize is the per-user job buffer (default 16).
	QueueSize int
	// MaxConcurrency bounds events in flight across all users (default 8).
	MaxConcurrency int
	// TaskTimeout bounds one event's handling, persistence calls included
	// (default 30s).
	TaskTimeout time.Duration
	// IdleTTL is how long a user's worker may sit without events before it
	// exits; the next event recreates it (default 10m).
	IdleTTL time.Duration
}

// NewDispatcher wires a dispatcher over the machine and the outbound sender.
func NewDispatcher(m *Machine, s Sender, log zerolog.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 30 * time.Second
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 10 * time.Minute
	}
	return &Dispatcher{
		machine:     m,
		sender:      s,
		log:         log,
		queueSize:   opts.QueueSize,
		taskTimeout: opts.TaskTimeout,
		idleTTL:     opts.IdleTTL,
		sem:         make(chan struct{}, opts.MaxConcurrency),
		workers:     make(map[int64]chan job),
	}
}

// Dispatch enqueues one event onto the sender's per-user worker, starting
// the worker on first contact. It reports whether the event was accepted;
// a full queue drops the event with a log entry (never silently).
func (d *Dispatcher) Dispatch(ev Event) bool {
	j := job{id: uuid.NewString(), ev: ev}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn().Str("job_id", j.id).Int64("external_id", ev.ExternalID).Msg("dispatcher closed, event dropped")
		eventsTotal.WithLabelValues(string(ev.Kind), "dropped").Inc()
		return false
	}
	ch, ok := d.workers[ev.ExternalID]
	if !ok {
		ch = make(chan job, d.queueSize)
		d.workers[ev.ExternalID] = ch
		d.wg.Add(1)
		workersGauge.Inc()
		go d.runWorker(ev.ExternalID, ch)
	}

	// The enqueue happens under the lock: Close closes worker channels under
	// this mutex, and idle workers remove themselves under it, so the channel
	// cannot be closed or abandoned between the checks above and the send.
	// The send never blocks (buffered channel plus default), so the critical
	// section stays short.
	select {
	case ch <- j:
		d.mu.Unlock()
		return true
	default:
		d.mu.Unlock()
		d.log.Warn().Str("job_id", j.id).Int64("external_id", ev.ExternalID).Msg("user queue full, event dropped")
		eventsTotal.WithLabelValues(string(ev.Kind), "dropped").Inc()
		return false
	}
}

// Close stops accepting events, drains every worker, and waits for in-flight
// handling to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) runWorker(externalID int64, ch chan job) {
	defer d.wg.Done()
	defer workersGauge.Dec()

	idle := time.NewTimer(d.idleTTL)
	defer idle.Stop()

	for {
		select {
		case j, ok := <-ch:
			if !ok {
				return
			}
			d.sem <- struct{}{}
			d.handle(externalID, j)
			<-d.sem
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTTL)
		case <-idle.C:
			// Quiet for a full TTL: deregister and exit so the worker map
			// stays bounded by recently active users. Dispatch enqueues
			// under d.mu, so once we hold the lock and see an empty queue
			// no job can be in flight toward this channel. During shutdown
			// the channel is already closed, so keep draining instead.
			d.mu.Lock()
			if len(ch) > 0 || d.closed {
				d.mu.Unlock()
				idle.Reset(d.idleTTL)
				continue
			}
			delete(d.workers, externalID)
			d.mu.Unlock()
			return
		}
	}
}

// handle runs one event end to end. Panics are recovered here, at the top
// of the dispatch loop, so a bug in one handler cannot crash the process.
func (d *Dispatcher) handle(externalID int64, j job) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			d.log.Error().
				Str("job_id", j.id).
				Int64("external_id", externalID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("event handler panicked")
		}
		eventsTotal.WithLabelValues(string(j.ev.Kind), outcome).Inc()
		eventLat.WithLabelValues(string(j.ev.Kind)).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()

	d.log.Debug().
		Str("job_id", j.id).
		Int64("external_id", externalID).
		Str("kind", string(j.ev.Kind)).
		Msg("event accepted")

	replies := d.machine.Handle(ctx, j.ev)
	for _, r := range replies {
		if err := d.sender.Send(ctx, externalID, r); err != nil {
			outcome = "send_error"
			d.log.Warn().
				Err(err).
				Str("job_id", j.id).
				Int64("external_id", externalID).
				Msg("reply delivery failed")
		}
	}
}
