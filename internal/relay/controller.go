package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/five82/devsyslog/internal/logging"
	"github.com/five82/devsyslog/internal/logtail"
	"github.com/five82/devsyslog/internal/metrics"
	"github.com/five82/devsyslog/internal/state"
)

const (
	connectedNotice    = "[connected]"
	disconnectedNotice = "[disconnected]"
)

// Options configure a Controller.
type Options struct {
	Transport Transport
	// Output receives relayed lines and the connect/disconnect notices.
	Output io.Writer
	// Errors receives operator-facing failure messages. Defaults to stderr.
	Errors io.Writer
	// Target fixes the device up front. Empty means the first attached
	// device becomes the target.
	Target   string
	Plain    bool
	Capacity int
	Logger   *slog.Logger
	Store    *state.Store
	Metrics  *metrics.Relay

	newSessionID func() string
	now          func() time.Time
}

type session struct {
	id        string
	device    string
	capture   Capture
	asm       *logtail.Assembler
	startedAt time.Time

	// ready is closed once the session is announced. released is set at
	// teardown; bytes and lines seen after it are dropped.
	ready    chan struct{}
	released atomic.Bool
	// announced is only touched by the capture goroutine.
	announced bool
}

// push is the session's ByteFunc.
func (s *session) push(b byte) {
	if !s.announced {
		<-s.ready
		s.announced = true
	}
	if s.released.Load() {
		return
	}
	s.asm.Push(b)
}

// Controller relays the syslog of one target device, starting and stopping
// capture as the device attaches and detaches.
//
// Handle and Run must not be called concurrently; events are applied one at
// a time.
type Controller struct {
	transport Transport
	out       io.Writer
	errs      io.Writer
	plain     bool
	capacity  int
	logger    *slog.Logger
	store     *state.Store
	metrics   *metrics.Relay
	newID     func() string
	now       func() time.Time

	target    string
	hasTarget bool
	active    *session
}

// New builds an idle Controller.
func New(opts Options) (*Controller, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	errs := opts.Errors
	if errs == nil {
		errs = os.Stderr
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	store := opts.Store
	if store == nil {
		store = &state.Store{}
	}
	c := &Controller{
		transport: opts.Transport,
		out:       &lockedWriter{w: out},
		errs:      errs,
		plain:     opts.Plain,
		capacity:  opts.Capacity,
		logger:    logger,
		store:     store,
		metrics:   opts.Metrics,
		newID:     opts.newSessionID,
		now:       opts.now,
	}
	if c.capacity <= 0 {
		c.capacity = logtail.DefaultCapacity
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.Target != "" {
		c.fixTarget(opts.Target)
	}
	return c, nil
}

// Target returns the fixed target identifier, if any.
func (c *Controller) Target() (string, bool) {
	return c.target, c.hasTarget
}

// State reports whether a capture session is open.
func (c *Controller) State() State {
	if c.active != nil {
		return Active
	}
	return Idle
}

// Run applies events until ctx is cancelled or the feed closes, then tears
// down any open session. Cancellation is not an error.
func (c *Controller) Run(ctx context.Context, events <-chan Event) error {
	defer c.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return ErrFeedClosed
			}
			c.Handle(ctx, ev)
		}
	}
}

// Handle applies a single device event.
func (c *Controller) Handle(ctx context.Context, ev Event) {
	c.logger.Debug("device event", "udid", ev.ID, "kind", ev.Kind.String(), "state", c.State().String())

	switch ev.Kind {
	case Attach:
		c.attach(ctx, ev.ID)
	case Detach:
		c.detach(ev.ID)
	default:
		c.logger.Debug("ignoring unknown device event", "kind", ev.Kind.String())
	}
}

// Shutdown closes the open session, if any, without a disconnect notice.
func (c *Controller) Shutdown() {
	if c.active == nil {
		return
	}
	c.teardown()
}

func (c *Controller) attach(ctx context.Context, id string) {
	if c.active != nil {
		return
	}
	if !c.hasTarget {
		c.fixTarget(id)
	}
	if id != c.target {
		return
	}

	sess, err := c.start(ctx, id)
	if err != nil {
		c.logger.Warn("capture start failed", "udid", id, "error", err)
		fmt.Fprintf(c.errs, "Could not start logger for udid %s\n", id)
		c.store.StartFailed(err)
		c.metrics.SessionFailed()
		return
	}
	fmt.Fprintln(c.out, connectedNotice)
	close(sess.ready)
}

func (c *Controller) detach(id string) {
	if c.active == nil || id != c.target {
		return
	}
	c.teardown()
	fmt.Fprintln(c.out, disconnectedNotice)
}

func (c *Controller) fixTarget(id string) {
	c.target = id
	c.hasTarget = true
	c.store.SetTarget(id)
	c.logger.Debug("target fixed", "udid", id)
}

func (c *Controller) start(ctx context.Context, id string) (*session, error) {
	sess := &session{
		id:        c.newID(),
		device:    id,
		startedAt: c.now(),
		ready:     make(chan struct{}),
	}
	sess.asm = logtail.NewAssembler(c.capacity, c.lineSink(sess))

	capture, err := c.transport.StartCapture(ctx, id, sess.push)
	if err != nil {
		sess.released.Store(true)
		close(sess.ready)
		return nil, fmt.Errorf("start capture on %s: %w", id, err)
	}
	sess.capture = capture
	c.active = sess

	c.store.SessionStarted(sess.id, sess.startedAt)
	c.metrics.SessionStarted()
	c.logger.Info("capture started", "udid", id, "session", sess.id)
	return sess, nil
}

// lineSink returns the flush callback for one session. It runs on the
// transport's goroutine.
func (c *Controller) lineSink(sess *session) func([]byte) {
	colorizer := logtail.NewColorizer(c.out, c.plain)
	var writeFailed bool
	return func(line []byte) {
		if sess.released.Load() {
			return
		}
		truncated := line[len(line)-1] != logtail.Terminator
		if err := colorizer.WriteLine(line); err != nil && !writeFailed {
			writeFailed = true
			c.logger.Warn("output write failed", "session", sess.id, "error", err)
		}
		c.store.CountLine(len(line))
		c.metrics.Line(len(line), truncated)
	}
}

func (c *Controller) teardown() {
	sess := c.active
	c.active = nil
	sess.released.Store(true)

	err := sess.capture.Stop()
	if err != nil {
		c.logger.Warn("capture stop failed", "udid", sess.device, "session", sess.id, "error", err)
		err = fmt.Errorf("stop capture on %s: %w", sess.device, err)
	}
	// A capture that timed out may still be inside Push; its assembler is
	// left to that goroutine.
	if !errors.Is(err, ErrStopTimeout) {
		if n := sess.asm.Discard(); n > 0 {
			c.logger.Debug("dropped partial line", "session", sess.id, "bytes", n)
		}
	}

	c.store.SessionEnded(err)
	c.metrics.SessionEnded()
	c.logger.Info("capture stopped", "udid", sess.device, "session", sess.id,
		"duration", c.now().Sub(sess.startedAt).Round(time.Millisecond))
}

// lockedWriter serializes writes from the capture goroutine and the
// controller so a notice never lands inside a line.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
