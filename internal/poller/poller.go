// Package poller runs the fetch, validate, notify, sleep cycle.
//
// The loop owns its State and threads it through every tick; nothing else
// reads or writes it. Every tick error is logged, reported to the chat and
// forgotten: the loop always sleeps and polls again.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

// Fetcher returns the raw JSON answer of the review API.
type Fetcher interface {
	Fetch(ctx context.Context, fromDate int64) ([]byte, error)
}

// Sender delivers a text to the chat. It must swallow its own failures.
type Sender interface {
	Send(ctx context.Context, text string) bool
}

// ServiceNotifier receives lifecycle notifications (systemd.Notifier).
type ServiceNotifier interface {
	Ready() (bool, error)
	Watchdog() (bool, error)
	Stopping() (bool, error)
	Status(s string) (bool, error)
	// WatchdogInterval is how often Watchdog must be called while idle; 0 disables it.
	WatchdogInterval() time.Duration
}

// State is carried from one tick to the next.
//
// LastNotified identifies the homework status that was last sent; change
// detection uses it, so new message texts alone never trigger a resend.
// LastNotifiedStatus is the text of that message.
type State struct {
	LastTimestamp      int64 // unix seconds, sent as from_date
	LastNotified       homework.Record
	LastNotifiedStatus string
}

// TickResult describes what one tick did.
type TickResult struct {
	Outcome  homework.Outcome
	Notified bool
	Err      error
}

type Options struct {
	Fetcher  Fetcher
	Sender   Sender
	Schedule cron.Schedule
	Messages homework.Messages
	Logger   logx.Logger
	Service  ServiceNotifier
	// Now defaults to time.Now.
	Now func() time.Time
}

type Loop struct {
	fetch Fetcher
	send  Sender
	sched cron.Schedule
	svc   ServiceNotifier
	log   logx.Logger
	now   func() time.Time

	msgs atomic.Pointer[homework.Messages]
}

func New(opts Options) (*Loop, error) {
	if opts.Fetcher == nil {
		return nil, errors.New("poller: fetcher is required")
	}
	if opts.Sender == nil {
		return nil, errors.New("poller: sender is required")
	}
	if opts.Schedule == nil {
		return nil, errors.New("poller: schedule is required")
	}
	if err := opts.Messages.Check(); err != nil {
		return nil, fmt.Errorf("poller: %w", err)
	}
	l := &Loop{
		fetch: opts.Fetcher,
		send:  opts.Sender,
		sched: opts.Schedule,
		svc:   opts.Service,
		log:   opts.Logger,
		now:   opts.Now,
	}
	if l.log.IsZero() {
		l.log = logx.Nop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	m := opts.Messages
	l.msgs.Store(&m)
	return l, nil
}

// SetMessages swaps the texts used from the next tick on.
func (l *Loop) SetMessages(m homework.Messages) error {
	if err := m.Check(); err != nil {
		return err
	}
	l.msgs.Store(&m)
	return nil
}

func (l *Loop) messages() homework.Messages { return *l.msgs.Load() }

// Run ticks until ctx is done, sleeping per the schedule after every tick,
// whatever its result. A zero LastTimestamp starts from the current time.
func (l *Loop) Run(ctx context.Context, st State) (State, error) {
	if st.LastTimestamp == 0 {
		st.LastTimestamp = l.now().Unix()
	}
	l.notifyService(func(s ServiceNotifier) (bool, error) { return s.Ready() })
	defer l.notifyService(func(s ServiceNotifier) (bool, error) { return s.Stopping() })

	l.log.Info("polling started", logx.Int64("from_date", st.LastTimestamp))
	defer func() { l.log.Info("polling stopped", logx.Int64("from_date", st.LastTimestamp)) }()

	for {
		var res TickResult
		st, res = l.Tick(ctx, st)

		l.notifyService(func(s ServiceNotifier) (bool, error) { return s.Watchdog() })
		l.notifyService(func(s ServiceNotifier) (bool, error) { return s.Status(statusLine(res)) })

		if ctx.Err() != nil {
			return st, nil
		}

		now := l.now()
		wait := l.sched.Next(now).Sub(now)
		l.log.Debug("sleeping until next poll", logx.Duration("wait", wait))

		if !l.sleep(ctx, wait) {
			return st, nil
		}
	}
}

// sleep waits for d, petting the watchdog meanwhile. It returns false when ctx is done.
func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	var pet <-chan time.Time
	if l.svc != nil {
		if every := l.svc.WatchdogInterval(); every > 0 {
			tk := time.NewTicker(every)
			defer tk.Stop()
			pet = tk.C
		}
	}
	for {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		case <-pet:
			l.notifyService(func(s ServiceNotifier) (bool, error) { return s.Watchdog() })
		}
	}
}

// Tick performs one fetch and notify pass and never fails: errors are
// reported and returned in the result for observation only.
func (l *Loop) Tick(ctx context.Context, st State) (State, TickResult) {
	log := l.log.With(logx.String("tick", uuid.NewString()))
	start := time.Now()

	next, res := l.step(ctx, log, st)
	if res.Err != nil {
		l.report(ctx, log, res.Err)
		return st, res
	}

	log.Debug("tick done",
		logx.String("outcome", res.Outcome.Kind.String()),
		logx.Bool("notified", res.Notified),
		logx.Int64("from_date", next.LastTimestamp),
		logx.Duration("took", time.Since(start)),
	)
	return next, res
}

func (l *Loop) step(ctx context.Context, log logx.Logger, st State) (next State, res TickResult) {
	defer func() {
		if r := recover(); r != nil {
			next, res = st, TickResult{Err: fmt.Errorf("tick panicked: %v", r)}
		}
	}()

	body, err := l.fetch.Fetch(ctx, st.LastTimestamp)
	if err != nil {
		return st, TickResult{Err: err}
	}
	resp, err := homework.Validate(body)
	if err != nil {
		return st, TickResult{Err: err}
	}
	out, err := homework.Extract(resp.Homeworks, l.messages())
	if err != nil {
		return st, TickResult{Err: err}
	}

	res = TickResult{Outcome: out}
	if out.Kind != homework.StatusMessage {
		log.Debug("no new status", logx.String("outcome", out.Kind.String()))
		return st, res
	}

	next = st
	if out.Record != st.LastNotified {
		log.Info("homework status changed",
			logx.String("homework", out.Record.Name),
			logx.String("status", string(out.Record.Status)),
		)
		res.Notified = l.send.Send(ctx, out.Message)
		next.LastNotified = out.Record
		next.LastNotifiedStatus = out.Message
	} else {
		log.Debug("status unchanged since last notification", logx.String("homework", out.Record.Name))
	}
	if resp.HasCurrentDate {
		next.LastTimestamp = resp.CurrentDate
	}
	return next, res
}

// report logs a failed tick by kind and reports it to the chat.
func (l *Loop) report(ctx context.Context, log logx.Logger, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		log.Debug("tick interrupted by shutdown", logx.Err(err))
		return
	}

	kind := homework.KindOf(err)
	fields := []logx.Field{logx.Err(err), logx.String("kind", kind.String())}
	switch kind {
	case homework.KindTransport, homework.KindUpstreamStatus, homework.KindMalformedBody:
		log.Error("review API request failed", fields...)
	case homework.KindSchema, homework.KindUnknownStatus:
		log.Error("unexpected review API answer", fields...)
	case homework.KindNotify:
		// Sender swallows its own failures; seeing one here means a Sender broke its contract.
		log.Warn("notification failed", fields...)
	case homework.KindPrecondition:
		log.Critical("precondition failed inside the loop", fields...)
	default:
		log.Error("tick failed", fields...)
	}

	l.send.Send(ctx, l.messages().ErrorReport(err))
}

func (l *Loop) notifyService(fn func(ServiceNotifier) (bool, error)) {
	if l.svc == nil {
		return
	}
	if _, err := fn(l.svc); err != nil {
		l.log.Debug("service manager notification failed", logx.Err(err))
	}
}

func statusLine(res TickResult) string {
	if res.Err != nil {
		return "last poll failed: " + homework.KindOf(res.Err).String()
	}
	return "last poll ok: " + res.Outcome.Kind.String()
}
