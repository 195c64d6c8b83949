package usbmux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielpaulus/go-ios/ios"
	"github.com/danielpaulus/go-ios/ios/syslog"

	"github.com/five82/devsyslog/internal/logging"
	"github.com/five82/devsyslog/internal/relay"
)

const stopTimeout = 3 * time.Second

var errStopTimeout = fmt.Errorf("syslog reader did not exit: %w", relay.ErrStopTimeout)

// Transport opens syslog_relay captures through usbmuxd and lockdownd.
type Transport struct {
	logger *slog.Logger
}

// NewTransport returns a Transport. A nil logger discards diagnostics.
func NewTransport(logger *slog.Logger) *Transport {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Transport{logger: logger}
}

var _ relay.Transport = (*Transport)(nil)

// StartCapture connects to the device and starts streaming its syslog.
func (t *Transport) StartCapture(_ context.Context, id string, onByte relay.ByteFunc) (relay.Capture, error) {
	device, err := ios.GetDevice(id)
	if err != nil {
		return nil, fmt.Errorf("device with udid %s not found: %w", id, err)
	}
	conn, err := syslog.New(device)
	if err != nil {
		return nil, fmt.Errorf("start syslog_relay service: %w", err)
	}

	c := newCapture(conn, func() error {
		conn.Close()
		return nil
	}, onByte, t.logger.With("udid", id))
	go c.loop()
	return c, nil
}

type messageReader interface {
	ReadLogMessage() (string, error)
}

type capture struct {
	reader   messageReader
	closeFn  func() error
	onByte   relay.ByteFunc
	logger   *slog.Logger
	stopping atomic.Bool
	done     chan struct{}
	once     sync.Once
	stopErr  error
	timeout  time.Duration
}

func newCapture(reader messageReader, closeFn func() error, onByte relay.ByteFunc, logger *slog.Logger) *capture {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &capture{
		reader:  reader,
		closeFn: closeFn,
		onByte:  onByte,
		logger:  logger,
		done:    make(chan struct{}),
		timeout: stopTimeout,
	}
}

// loop owns onByte for the lifetime of the capture.
func (c *capture) loop() {
	defer close(c.done)
	for {
		msg, err := c.reader.ReadLogMessage()
		if c.stopping.Load() {
			return
		}
		if err != nil {
			c.logger.Debug("syslog stream ended", "error", err)
			return
		}
		c.push(msg)
	}
}

// push delivers one syslog message as a newline terminated line. The relay
// service separates messages with NUL bytes, which never reach the output.
// Delivery stops at the next byte once Stop has been called.
func (c *capture) push(msg string) {
	msg = strings.TrimRight(msg, "\x00\n")
	if msg == "" {
		return
	}
	for i := 0; i < len(msg); i++ {
		if msg[i] == 0 {
			continue
		}
		if c.stopping.Load() {
			return
		}
		c.onByte(msg[i])
	}
	if c.stopping.Load() {
		return
	}
	c.onByte('\n')
}

// Stop closes the connection and waits for the reader to exit. If the reader
// is stuck inside onByte past the timeout, the returned error wraps
// relay.ErrStopTimeout and that one call is the last it makes.
func (c *capture) Stop() error {
	c.once.Do(func() {
		c.stopping.Store(true)
		if err := c.closeFn(); err != nil {
			c.stopErr = fmt.Errorf("close syslog connection: %w", err)
		}
	})

	select {
	case <-c.done:
		return c.stopErr
	case <-time.After(c.timeout):
		return errors.Join(c.stopErr, errStopTimeout)
	}
}
