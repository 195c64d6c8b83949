// Package app is the composition root of devsyslog.
//
// # Startup
//
//  1. Load ~/.config/devsyslog/config.toml and layer command-line options on top
//  2. Reject an explicit UDID that is not 40 hex characters (ErrInvalidUDID)
//  3. Count attached devices. With none and no UDID, print a hint and return
//     ErrNoDevice; with a UDID, announce that we are waiting for it
//  4. Subscribe to device events, then start the relay controller, the
//     optional metrics endpoint and the optional live view
//
// # Data Flow
//
//	┌──────────────┐  Next()   ┌───────────┐  chan Event  ┌──────────────────┐
//	│ usbmux.Feed  │ ────────→ │ StartFeed │ ───────────→ │ relay.Controller │
//	└──────────────┘           └───────────┘              └────────┬─────────┘
//	                                                               │ lines
//	                                              stdout or ui.Sink ←┘
//
// StartFeed turns the blocking feed into a channel. When the usbmuxd
// subscription drops it detaches every device the feed had reported, then
// resubscribes with exponential backoff (1s doubling to 30s), so a usbmuxd
// restart never leaves the controller holding a dead session.
//
// # Errors
//
// Run returns nil on cancellation and when the operator quits the live view.
// Configuration problems, the startup check and a failing metrics listener
// are returned; capture failures never are, the controller reports them and
// waits for the next attach.
package app
