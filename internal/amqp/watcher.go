package amqp

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"treecensus/internal/log"
)

const maxBackoff = 30 * time.Second

// SnapshotConsumer is a connected consumer of snapshot announcements.
type SnapshotConsumer interface {
	ConsumeSnapshots(ctx context.Context, handler func(*SnapshotMessage) error) error
	Close() error
}

// DialFunc opens a new consumer connection.
type DialFunc func() (SnapshotConsumer, error)

// Dialer returns a DialFunc that subscribes a fresh private queue to the
// exchange on every (re)connect.
func Dialer(url, exchange string) DialFunc {
	return func() (SnapshotConsumer, error) {
		c, err := NewSubscriber(url, exchange)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Watcher tracks the newest announced snapshot. It never touches the served
// dataset; readiness compares the two.
type Watcher struct {
	dial   DialFunc
	logger *log.Logger
	sleep  func(context.Context, time.Duration) error

	latest    atomic.Pointer[SnapshotMessage]
	received  atomic.Uint64
	connected atomic.Bool
}

func NewWatcher(dial DialFunc, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Watcher{
		dial:   dial,
		logger: logger.WithComponent(log.ComponentAMQP),
		sleep:  sleepContext,
	}
}

// Handle records msg if it is newer than what was seen so far.
func (w *Watcher) Handle(msg *SnapshotMessage) error {
	if msg == nil {
		return errors.New("nil snapshot message")
	}
	w.received.Add(1)
	for {
		cur := w.latest.Load()
		if cur != nil && !msg.FetchedAt.After(cur.FetchedAt) {
			return nil
		}
		cp := *msg
		if w.latest.CompareAndSwap(cur, &cp) {
			w.logger.Info("New snapshot announced",
				log.FieldSnapshotID, msg.SnapshotID,
				log.FieldRecords, msg.RecordCount)
			return nil
		}
	}
}

// Latest returns the newest announcement, if any.
func (w *Watcher) Latest() (SnapshotMessage, bool) {
	if m := w.latest.Load(); m != nil {
		return *m, true
	}
	return SnapshotMessage{}, false
}

// Received counts every announcement handled, stale ones included.
func (w *Watcher) Received() uint64 { return w.received.Load() }

// Connected reports whether a consumer is currently attached.
func (w *Watcher) Connected() bool { return w.connected.Load() }

// Behind reports whether a snapshot newer than the served one was
// announced.
func (w *Watcher) Behind(servedID string, servedAt time.Time) bool {
	m, ok := w.Latest()
	if !ok || m.SnapshotID == servedID {
		return false
	}
	return m.FetchedAt.After(servedAt)
}

// Run consumes announcements until ctx is done, reconnecting with
// exponential backoff when the broker is unavailable.
func (w *Watcher) Run(ctx context.Context) error {
	for attempt := 0; ; {
		consumer, err := w.dial()
		if err != nil {
			delay := exponentialBackoff(attempt)
			w.logger.WarnContext(ctx, "AMQP connection failed, retrying",
				log.FieldError, err,
				"attempt", attempt+1,
				"retry_in", delay)
			attempt++
			if err := w.sleep(ctx, delay); err != nil {
				return nil
			}
			continue
		}

		attempt = 0
		w.connected.Store(true)
		err = consumer.ConsumeSnapshots(ctx, w.Handle)
		w.connected.Store(false)
		_ = consumer.Close()

		if ctx.Err() != nil {
			return nil
		}
		w.logger.WarnContext(ctx, "AMQP consumer stopped, reconnecting", log.FieldError, err)
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
