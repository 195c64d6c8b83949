package state

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestStore_ZeroValueSnapshot(t *testing.T) {
	var s Store

	snap := s.Snapshot()
	if snap.HasTarget || snap.Active {
		t.Fatalf("zero snapshot = %#v, want idle without target", snap)
	}
	if snap.Waiting() {
		t.Fatal("Waiting() = true, want false without a target")
	}
	if snap.StateName() != "idle" {
		t.Fatalf("StateName() = %q, want idle", snap.StateName())
	}
}

func TestStore_SessionLifecycle(t *testing.T) {
	var s Store

	s.SetTarget("0123456789abcdef0123456789abcdef01234567")
	snap := s.Snapshot()
	if !snap.Waiting() {
		t.Fatal("Waiting() = false, want true after SetTarget")
	}

	at := time.Now()
	s.SessionStarted("sess-1", at)
	snap = s.Snapshot()
	if !snap.Active || snap.SessionID != "sess-1" || !snap.ConnectedAt.Equal(at) {
		t.Fatalf("snapshot after start = %#v", snap)
	}
	if snap.SessionsStarted != 1 {
		t.Fatalf("SessionsStarted = %d, want 1", snap.SessionsStarted)
	}
	if snap.StateName() != "active" {
		t.Fatalf("StateName() = %q, want active", snap.StateName())
	}

	s.SessionEnded(nil)
	snap = s.Snapshot()
	if snap.Active || snap.SessionID != "" || !snap.ConnectedAt.IsZero() {
		t.Fatalf("snapshot after end = %#v, want idle", snap)
	}
	if snap.Target == "" {
		t.Fatal("target should survive the end of a session")
	}
}

func TestStore_StartFailuresResetOnSuccess(t *testing.T) {
	var s Store

	origErr := errors.New("boom")
	s.StartFailed(origErr)
	s.StartFailed(errors.New("boom again"))

	snap := s.Snapshot()
	if snap.ConsecutiveFailures != 2 {
		t.Fatalf("ConsecutiveFailures = %d, want 2", snap.ConsecutiveFailures)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom again" {
		t.Fatalf("LastError = %v, want boom again", snap.LastError)
	}

	s.StartFailed(origErr)
	snap = s.Snapshot()
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatal("Snapshot should clone error instance")
	}

	s.SessionStarted("sess", time.Now())
	snap = s.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.LastError != nil {
		t.Fatalf("success should reset failures, got %d / %v", snap.ConsecutiveFailures, snap.LastError)
	}
}

func TestStore_CountLineConcurrent(t *testing.T) {
	var s Store
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.CountLine(10)
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.LinesRelayed != 800 || snap.BytesRelayed != 8000 {
		t.Fatalf("counts = %d lines / %d bytes, want 800 / 8000", snap.LinesRelayed, snap.BytesRelayed)
	}
}
