// Package relay owns the device lifecycle around a live syslog capture.
//
// # State Machine
//
//	            attach(target) ok
//	  ┌──────┐ ─────────────────────→ ┌────────┐
//	  │ Idle │                        │ Active │
//	  └──────┘ ←───────────────────── └────────┘
//	     ↑      detach(target), ctx done
//	     └── attach(target) failed (retried on the next attach)
//
// The first attached device becomes the target unless one was given
// explicitly; it never changes afterwards. Events for other devices, a
// second attach while Active and a detach while Idle are ignored, so at most
// one capture session is ever open.
//
// # Data Flow
//
//	Transport goroutine ──byte──→ logtail.Assembler ──line──→ logtail.Colorizer ──→ Output
//
// Each session gets a fresh Assembler. A partial line still buffered when the
// session ends is dropped rather than carried into the next session.
//
// # Concurrency
//
// Run reads events from a channel and applies them one at a time. Bytes
// arrive on the transport's goroutine. The two only meet at the output
// writer, which is serialized so "[connected]" and "[disconnected]" never
// split a line. Bytes are held back until "[connected]" is written, and once
// a session is released nothing more from it reaches the output, even when
// its capture fails to stop in time.
package relay
