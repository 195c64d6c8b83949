// Package state shares the relay's session state with concurrent readers.
//
// # Overview
//
// The lifecycle controller is the only writer. The live view and the status
// endpoint read copies through Snapshot on their own schedule:
//
//	Writer (controller):            Readers:
//	┌───────────────────┐          ┌──────────────────┐
//	│ SetTarget()       │          │ ui refresh tick  │
//	│ SessionStarted()  │─────────→│ /status handler  │
//	│ SessionEnded()    │  (mutex) │  store.Snapshot()│
//	│ StartFailed()     │          └──────────────────┘
//	└───────────────────┘
//
// Line and byte counters are updated from the capture goroutine with atomic
// adds, so the hot path never takes the mutex.
//
// # Update Semantics
//
//   - SessionStarted clears LastError and ConsecutiveFailures
//   - StartFailed keeps the previous session data and records the error
//   - SessionEnded keeps the target; the target never changes once set
//
// Snapshot copies the error value so callers never share it with the store.
//
// # Testing Considerations
//
// The zero Store is ready to use:
//
//	store := &state.Store{}
package state
