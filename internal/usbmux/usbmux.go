// Package usbmux connects the relay to real devices through usbmuxd.
//
// Feed turns usbmuxd attach/detach notifications into relay events and
// Transport opens the device's syslog_relay service. Both are thin adapters
// over go-ios; everything above them only sees the relay interfaces.
package usbmux

import (
	"fmt"

	"github.com/danielpaulus/go-ios/ios"
	"github.com/sirupsen/logrus"

	"github.com/five82/devsyslog/internal/relay"
)

const (
	messageAttached = "Attached"
	messageDetached = "Detached"
)

// SetDebug raises go-ios's own logging to debug. Otherwise only its warnings
// reach stderr.
func SetDebug(debug bool) {
	if debug {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.WarnLevel)
}

// CountDevices returns how many devices usbmuxd currently knows about.
func CountDevices() (int, error) {
	list, err := ios.ListDevices()
	if err != nil {
		return 0, fmt.Errorf("list devices: %w", err)
	}
	return len(list.DeviceList), nil
}

type message struct {
	kind     string
	deviceID int
	serial   string
}

// Feed reads device notifications from usbmuxd.
//
// usbmuxd reports detaches by its numeric device id only, so Feed remembers
// the serial of every attached id. A device reachable over more than one
// connection is only reported detached when its last connection goes away.
type Feed struct {
	next    func() (message, error)
	closeFn func() error
	serials map[int]string
	links   map[string]int
}

// Listen subscribes to usbmuxd device notifications.
func Listen() (*Feed, error) {
	next, closeFn, err := ios.Listen()
	if err != nil {
		return nil, fmt.Errorf("listen for devices: %w", err)
	}
	return newFeed(func() (message, error) {
		msg, err := next()
		if err != nil {
			return message{}, err
		}
		return message{
			kind:     msg.MessageType,
			deviceID: msg.DeviceID,
			serial:   msg.Properties.SerialNumber,
		}, nil
	}, closeFn), nil
}

func newFeed(next func() (message, error), closeFn func() error) *Feed {
	return &Feed{
		next:    next,
		closeFn: closeFn,
		serials: make(map[int]string),
		links:   make(map[string]int),
	}
}

// Next blocks until the next attach or detach event.
func (f *Feed) Next() (relay.Event, error) {
	for {
		msg, err := f.next()
		if err != nil {
			return relay.Event{}, fmt.Errorf("read device event: %w", err)
		}
		if ev, ok := f.translate(msg); ok {
			return ev, nil
		}
	}
}

func (f *Feed) translate(msg message) (relay.Event, bool) {
	switch msg.kind {
	case messageAttached:
		if msg.serial == "" {
			return relay.Event{}, false
		}
		if _, seen := f.serials[msg.deviceID]; !seen {
			f.serials[msg.deviceID] = msg.serial
			f.links[msg.serial]++
		}
		return relay.Event{ID: msg.serial, Kind: relay.Attach}, true

	case messageDetached:
		serial, ok := f.serials[msg.deviceID]
		if !ok {
			return relay.Event{}, false
		}
		delete(f.serials, msg.deviceID)
		f.links[serial]--
		if f.links[serial] > 0 {
			return relay.Event{}, false
		}
		delete(f.links, serial)
		return relay.Event{ID: serial, Kind: relay.Detach}, true
	}
	return relay.Event{}, false
}

// Close ends the subscription and unblocks Next.
func (f *Feed) Close() error {
	if f.closeFn == nil {
		return nil
	}
	return f.closeFn()
}
