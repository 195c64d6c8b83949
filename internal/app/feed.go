package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/five82/devsyslog/internal/relay"
)

const (
	reconnectBase = time.Second
	maxBackoff    = 30 * time.Second
)

// EventFeed is a blocking source of device events. Close unblocks Next.
type EventFeed interface {
	Next() (relay.Event, error)
	Close() error
}

// DeviceSource discovers devices and subscribes to their events.
type DeviceSource interface {
	CountDevices() (int, error)
	Listen() (EventFeed, error)
}

// StartFeed pumps events from feed into the returned channel until ctx is
// cancelled, then closes the channel. It returns immediately.
//
// When the subscription drops, every device it had reported attached is
// detached and the pump subscribes again with exponential backoff.
func StartFeed(ctx context.Context, src DeviceSource, feed EventFeed, logger *slog.Logger) <-chan relay.Event {
	return startFeed(ctx, src, feed, logger, reconnectBase)
}

func startFeed(ctx context.Context, src DeviceSource, feed EventFeed, logger *slog.Logger, base time.Duration) <-chan relay.Event {
	events := make(chan relay.Event)
	p := &pump{
		ctx:      ctx,
		src:      src,
		out:      events,
		logger:   logger,
		base:     base,
		attached: make(map[string]struct{}),
	}
	go func() {
		defer close(events)
		p.run(feed)
	}()
	return events
}

type pump struct {
	ctx      context.Context
	src      DeviceSource
	out      chan<- relay.Event
	logger   *slog.Logger
	base     time.Duration
	attached map[string]struct{}
}

func (p *pump) run(feed EventFeed) {
	failures := 0
	for {
		if feed != nil {
			err := p.drain(feed)
			if p.ctx.Err() != nil {
				return
			}
			p.logger.Warn("device event feed lost", "error", err)
			if !p.detachAll() {
				return
			}
			feed = nil
		}

		select {
		case <-p.ctx.Done():
			return
		case <-time.After(calculateBackoff(failures, p.base)):
		}

		next, err := p.src.Listen()
		if err != nil {
			failures++
			p.logger.Warn("device event resubscribe failed", "error", err,
				"retry_in", calculateBackoff(failures, p.base))
			continue
		}
		p.logger.Info("device event feed restored")
		failures = 0
		feed = next
	}
}

// drain forwards events until the feed fails. The feed is closed on return
// or as soon as ctx is cancelled, whichever comes first.
func (p *pump) drain(feed EventFeed) error {
	stop := context.AfterFunc(p.ctx, func() { _ = feed.Close() })
	defer func() {
		if stop() {
			_ = feed.Close()
		}
	}()

	for {
		ev, err := feed.Next()
		if err != nil {
			return err
		}
		switch ev.Kind {
		case relay.Attach:
			p.attached[ev.ID] = struct{}{}
		case relay.Detach:
			delete(p.attached, ev.ID)
		}
		if !p.send(ev) {
			return p.ctx.Err()
		}
	}
}

// detachAll reports a detach for every device the lost feed left attached.
func (p *pump) detachAll() bool {
	for id := range p.attached {
		if !p.send(relay.Event{ID: id, Kind: relay.Detach}) {
			return false
		}
		delete(p.attached, id)
	}
	return true
}

func (p *pump) send(ev relay.Event) bool {
	select {
	case p.out <- ev:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// calculateBackoff returns base doubled once per consecutive failure, capped
// at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
