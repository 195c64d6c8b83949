package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/devsyslog/internal/state"
)

const (
	udidA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	udidB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type fakeCapture struct {
	device  string
	onByte  ByteFunc
	stops   int
	stopErr error
}

func (c *fakeCapture) Stop() error {
	c.stops++
	return c.stopErr
}

func (c *fakeCapture) send(s string) {
	for i := 0; i < len(s); i++ {
		c.onByte(s[i])
	}
}

type fakeTransport struct {
	mu       sync.Mutex
	starts   int
	failNext error
	stopErr  error
	captures []*fakeCapture
	// started runs on its own goroutine right after a capture opens.
	started func(c *fakeCapture)
}

func (f *fakeTransport) StartCapture(_ context.Context, id string, onByte ByteFunc) (Capture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.starts++
	if err := f.failNext; err != nil {
		f.failNext = nil
		return nil, err
	}
	c := &fakeCapture{device: id, onByte: onByte, stopErr: f.stopErr}
	f.captures = append(f.captures, c)
	if f.started != nil {
		go f.started(c)
	}
	return c, nil
}

func (f *fakeTransport) last() *fakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.captures) == 0 {
		return nil
	}
	return f.captures[len(f.captures)-1]
}

type harness struct {
	ctrl      *Controller
	transport *fakeTransport
	out       *bytes.Buffer
	errs      *bytes.Buffer
	store     *state.Store
}

func newHarness(t *testing.T, target string, plain bool) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{},
		out:       &bytes.Buffer{},
		errs:      &bytes.Buffer{},
		store:     &state.Store{},
	}
	seq := 0
	ctrl, err := New(Options{
		Transport: h.transport,
		Output:    h.out,
		Errors:    h.errs,
		Target:    target,
		Plain:     plain,
		Store:     h.store,
		newSessionID: func() string {
			seq++
			return fmt.Sprintf("session-%d", seq)
		},
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func (h *harness) attach(id string) { h.ctrl.Handle(context.Background(), Event{ID: id, Kind: Attach}) }
func (h *harness) detach(id string) { h.ctrl.Handle(context.Background(), Event{ID: id, Kind: Detach}) }

func TestNew_RequiresTransport(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestController_InitialState(t *testing.T) {
	h := newHarness(t, "", false)

	assert.Equal(t, Idle, h.ctrl.State())
	_, ok := h.ctrl.Target()
	assert.False(t, ok)
	assert.False(t, h.store.Snapshot().HasTarget)
}

func TestController_RepeatedAttachStartsOneSession(t *testing.T) {
	h := newHarness(t, "", false)

	h.attach(udidA)
	h.attach(udidA)

	assert.Equal(t, 1, h.transport.starts)
	assert.Equal(t, Active, h.ctrl.State())
	assert.Equal(t, 1, strings.Count(h.out.String(), "[connected]\n"))

	snap := h.store.Snapshot()
	assert.True(t, snap.Active)
	assert.Equal(t, "session-1", snap.SessionID)
}

func TestController_FirstDeviceBecomesTarget(t *testing.T) {
	h := newHarness(t, "", false)

	h.attach(udidA)
	h.detach(udidA)
	h.attach(udidB)

	target, ok := h.ctrl.Target()
	require.True(t, ok)
	assert.Equal(t, udidA, target)
	assert.Equal(t, 1, h.transport.starts)
	assert.Equal(t, Idle, h.ctrl.State())

	h.attach(udidA)
	assert.Equal(t, 2, h.transport.starts)
	assert.Equal(t, Active, h.ctrl.State())
}

func TestController_ExplicitTargetIgnoresOthers(t *testing.T) {
	h := newHarness(t, udidA, false)

	target, ok := h.ctrl.Target()
	require.True(t, ok)
	assert.Equal(t, udidA, target)
	assert.True(t, h.store.Snapshot().Waiting())

	h.attach(udidB)
	assert.Equal(t, 0, h.transport.starts)
	assert.Equal(t, Idle, h.ctrl.State())

	h.attach(udidA)
	assert.Equal(t, 1, h.transport.starts)
	assert.Equal(t, udidA, h.transport.last().device)
}

func TestController_AttachOtherWhileActiveIsNoop(t *testing.T) {
	h := newHarness(t, "", false)

	h.attach(udidA)
	h.attach(udidB)

	assert.Equal(t, 1, h.transport.starts)
	target, _ := h.ctrl.Target()
	assert.Equal(t, udidA, target)
}

func TestController_DetachSemantics(t *testing.T) {
	h := newHarness(t, "", false)

	h.detach(udidA)
	assert.Empty(t, h.out.String(), "detach while idle must not notify")

	h.attach(udidA)
	capture := h.transport.last()

	h.detach(udidB)
	assert.Equal(t, Active, h.ctrl.State())
	assert.Equal(t, 0, capture.stops)

	h.detach(udidA)
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, 1, capture.stops)

	h.detach(udidA)
	assert.Equal(t, 1, capture.stops)
	assert.Equal(t, 1, strings.Count(h.out.String(), "[disconnected]\n"))
	assert.False(t, h.store.Snapshot().Active)
}

func TestController_StartFailureIsRetried(t *testing.T) {
	h := newHarness(t, "", false)
	h.transport.failNext = errors.New("lockdown refused")

	h.attach(udidA)

	assert.Equal(t, Idle, h.ctrl.State())
	assert.Contains(t, h.errs.String(), "Could not start logger for udid "+udidA)
	assert.NotContains(t, h.out.String(), "[connected]")

	snap := h.store.Snapshot()
	assert.Equal(t, 1, snap.ConsecutiveFailures)
	require.Error(t, snap.LastError)
	assert.Contains(t, snap.LastError.Error(), "lockdown refused")

	h.attach(udidA)
	assert.Equal(t, 2, h.transport.starts)
	assert.Equal(t, Active, h.ctrl.State())
	assert.Equal(t, 0, h.store.Snapshot().ConsecutiveFailures)
}

func TestController_RelaysColoredLines(t *testing.T) {
	h := newHarness(t, "", false)
	h.attach(udidA)

	h.transport.last().send("0123456789012345 proc[99] <Error>: boom\n")

	out := h.out.String()
	assert.Contains(t, out, "\x1b[0;37m0123456789012345\x1b[0;36m proc\x1b[2;36m[99]")
	assert.True(t, strings.HasSuffix(out, "\x1b[m boom\n"), "got %q", out)

	snap := h.store.Snapshot()
	assert.Equal(t, int64(1), snap.LinesRelayed)
	assert.Equal(t, int64(len("0123456789012345 proc[99] <Error>: boom\n")), snap.BytesRelayed)
}

func TestController_PlainRelaysRaw(t *testing.T) {
	h := newHarness(t, "", true)
	h.attach(udidA)

	line := "0123456789012345 proc[99] <Error>: boom\n"
	h.transport.last().send(line)

	assert.Equal(t, "[connected]\n"+line, h.out.String())
}

func TestController_PartialLineDoesNotBleedAcrossSessions(t *testing.T) {
	h := newHarness(t, "", true)

	h.attach(udidA)
	h.transport.last().send("partial")
	h.detach(udidA)

	h.attach(udidA)
	h.transport.last().send("fresh\n")

	assert.Equal(t, "[connected]\n[disconnected]\n[connected]\nfresh\n", h.out.String())
}

func TestController_StopErrorStillReleasesSession(t *testing.T) {
	h := newHarness(t, "", false)
	h.transport.stopErr = errors.New("socket gone")

	h.attach(udidA)
	h.detach(udidA)

	assert.Equal(t, Idle, h.ctrl.State())
	snap := h.store.Snapshot()
	require.Error(t, snap.LastError)
	assert.Contains(t, snap.LastError.Error(), "socket gone")

	h.attach(udidA)
	assert.Equal(t, Active, h.ctrl.State())
}

func TestController_ConnectedPrecedesFirstLine(t *testing.T) {
	h := newHarness(t, "", true)
	sent := make(chan struct{})
	h.transport.started = func(c *fakeCapture) {
		c.send("first\n")
		close(sent)
	}

	h.attach(udidA)

	select {
	case <-sent:
	case <-time.After(2 * time.Second):
		t.Fatal("capture goroutine did not deliver")
	}
	assert.Equal(t, "[connected]\nfirst\n", h.out.String())
}

func TestController_StuckStopDropsLateBytes(t *testing.T) {
	h := newHarness(t, "", true)
	h.transport.stopErr = fmt.Errorf("syslog reader did not exit: %w", ErrStopTimeout)

	h.attach(udidA)
	capture := h.transport.last()
	capture.send("half a li")
	h.detach(udidA)

	// The reader finishes its message after Stop gave up.
	capture.send("ne\nlate line\n")

	assert.Equal(t, "[connected]\n[disconnected]\n", h.out.String())
	assert.Equal(t, Idle, h.ctrl.State())
	snap := h.store.Snapshot()
	require.Error(t, snap.LastError)
	assert.ErrorIs(t, snap.LastError, ErrStopTimeout)
	assert.Zero(t, snap.LinesRelayed)

	h.transport.stopErr = nil
	h.attach(udidA)
	h.transport.last().send("fresh\n")
	assert.Equal(t, "[connected]\n[disconnected]\n[connected]\nfresh\n", h.out.String())
}

func TestController_UnknownEventKindIgnored(t *testing.T) {
	h := newHarness(t, "", false)
	h.ctrl.Handle(context.Background(), Event{ID: udidA, Kind: EventKind(99)})

	assert.Equal(t, 0, h.transport.starts)
	_, ok := h.ctrl.Target()
	assert.False(t, ok)
}

func runController(t *testing.T, h *harness) (context.CancelFunc, chan<- Event, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan Event)
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Run(ctx, events) }()
	t.Cleanup(cancel)
	return cancel, events, done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRun_CancelWhileIdle(t *testing.T) {
	h := newHarness(t, "", false)
	cancel, _, done := runController(t, h)

	cancel()

	require.NoError(t, waitRun(t, done))
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, 0, h.transport.starts)
}

func TestRun_CancelWhileActive(t *testing.T) {
	h := newHarness(t, "", false)
	cancel, events, done := runController(t, h)

	events <- Event{ID: udidA, Kind: Attach}
	// The unbuffered send returns once Run received it; a second event
	// guarantees the first was fully applied.
	events <- Event{ID: udidB, Kind: Detach}
	cancel()

	require.NoError(t, waitRun(t, done))
	assert.Equal(t, Idle, h.ctrl.State())
	require.NotNil(t, h.transport.last())
	assert.Equal(t, 1, h.transport.last().stops)
	assert.NotContains(t, h.out.String(), "[disconnected]")
	assert.False(t, h.store.Snapshot().Active)
}

func TestRun_FeedClosedTearsDown(t *testing.T) {
	h := newHarness(t, "", false)
	_, events, done := runController(t, h)

	events <- Event{ID: udidA, Kind: Attach}
	close(events)

	assert.ErrorIs(t, waitRun(t, done), ErrFeedClosed)
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, 1, h.transport.last().stops)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "attach", Attach.String())
	assert.Equal(t, "detach", Detach.String())
	assert.Equal(t, "EventKind(7)", EventKind(7).String())
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "active", Active.String())
}
