package kb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/signalsfoundry/territory-controller/model"
)

var testStations = []model.StationCode{"PN", "EY", "BE", "PO"}

type captureRecorder struct {
	calls   int
	entries []model.ClaimLogEntry
	err     error
}

func (r *captureRecorder) RecordClaims(_ context.Context, entries []model.ClaimLogEntry) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.entries = entries
	return nil
}

func TestNewClaimLogStartsUnclaimed(t *testing.T) {
	log := NewClaimLog(testStations)
	for _, s := range testStations {
		if got := log.Claimant(s); got != model.Unclaimed {
			t.Fatalf("Claimant(%s) = %v, want UNCLAIMED", s, got)
		}
	}
	if got := log.Claimant("ZZ"); got != model.Unclaimed {
		t.Fatalf("Claimant(unknown) = %v, want UNCLAIMED", got)
	}
	if log.IsDirty() {
		t.Fatalf("new log should not be dirty")
	}
	stations := log.Stations()
	if len(stations) != 4 || stations[0] != "BE" || stations[3] != "PO" {
		t.Fatalf("Stations() = %v, want sorted codes", stations)
	}
}

func TestLogClaimUpdatesOwnerAndHistory(t *testing.T) {
	log := NewClaimLog(testStations)
	if !log.LogClaim("PN", model.Zone0, 3*time.Second) {
		t.Fatalf("LogClaim reported no change")
	}
	if got := log.Claimant("PN"); got != model.Zone0 {
		t.Fatalf("Claimant(PN) = %v, want ZONE_0", got)
	}
	if !log.IsDirty() {
		t.Fatalf("log should be dirty after a claim")
	}
	entries := log.Entries()
	want := model.ClaimLogEntry{Station: "PN", Claimant: model.Zone0, Time: 3 * time.Second}
	if len(entries) != 1 || entries[0] != want {
		t.Fatalf("Entries() = %+v, want [%+v]", entries, want)
	}
}

func TestLogClaimIdempotent(t *testing.T) {
	rec := &captureRecorder{}
	log := NewClaimLog(testStations, WithRecorder(rec))
	log.LogClaim("PN", model.Zone0, time.Second)
	if err := log.RecordCaptures(context.Background()); err != nil {
		t.Fatalf("RecordCaptures: %v", err)
	}

	if log.LogClaim("PN", model.Zone0, 2*time.Second) {
		t.Fatalf("redundant claim reported a change")
	}
	if log.Len() != 1 {
		t.Fatalf("Len() = %d after redundant claim, want 1", log.Len())
	}
	if log.IsDirty() {
		t.Fatalf("redundant claim must not set the dirty flag")
	}
	if log.LockCount("PN") != 0 {
		t.Fatalf("redundant claim changed the lock count")
	}
}

func TestLockoutThreshold(t *testing.T) {
	log := NewClaimLog(testStations, WithLockThreshold(2))

	log.LogClaim("PN", model.Zone0, 1*time.Second)
	if log.IsLocked("PN") {
		t.Fatalf("locked after first claim")
	}
	log.LogClaim("PN", model.Zone1, 2*time.Second)
	if log.IsLocked("PN") {
		t.Fatalf("locked after second claim")
	}
	log.LogClaim("PN", model.Zone0, 3*time.Second)
	if !log.IsLocked("PN") {
		t.Fatalf("expected PN locked after third claim, lock count %d", log.LockCount("PN"))
	}
}

func TestLockoutIsPerStation(t *testing.T) {
	log := NewClaimLog(testStations, WithLockThreshold(2))

	log.LogClaim("EY", model.Zone1, 0)
	for i, c := range []model.Claimant{model.Zone0, model.Zone1, model.Zone0} {
		log.LogClaim("PN", c, time.Duration(i+1)*time.Second)
	}
	if !log.IsLocked("PN") {
		t.Fatalf("PN should be locked")
	}
	if log.IsLocked("EY") {
		t.Fatalf("EY must not lock from PN's claims")
	}
}

func TestLockThresholdDisabled(t *testing.T) {
	log := NewClaimLog(testStations, WithLockThreshold(0))
	for i := 0; i < 10; i++ {
		log.LogClaim("PN", model.Claimant(i%2), time.Duration(i)*time.Second)
	}
	if log.IsLocked("PN") {
		t.Fatalf("threshold 0 must disable locking")
	}
}

func TestLogClaimUnknownStation(t *testing.T) {
	log := NewClaimLog(testStations)
	if log.LogClaim("ZZ", model.Zone0, 0) {
		t.Fatalf("claim for unknown station reported a change")
	}
	if log.IsDirty() || log.Len() != 0 {
		t.Fatalf("unknown station claim altered the log")
	}
}

func TestRecordCapturesWritesOncePerDirtyPeriod(t *testing.T) {
	rec := &captureRecorder{}
	log := NewClaimLog(testStations, WithRecorder(rec))
	ctx := context.Background()

	if err := log.RecordCaptures(ctx); err != nil {
		t.Fatalf("RecordCaptures: %v", err)
	}
	if rec.calls != 0 {
		t.Fatalf("clean log wrote %d times", rec.calls)
	}

	log.LogClaim("PN", model.Zone0, time.Second)
	log.LogClaim("EY", model.Zone0, 2*time.Second)
	for i := 0; i < 3; i++ {
		if err := log.RecordCaptures(ctx); err != nil {
			t.Fatalf("RecordCaptures: %v", err)
		}
	}
	if rec.calls != 1 {
		t.Fatalf("recorder called %d times, want 1", rec.calls)
	}
	if len(rec.entries) != 2 {
		t.Fatalf("recorder got %d entries, want 2", len(rec.entries))
	}
	if log.IsDirty() {
		t.Fatalf("dirty flag should be cleared after a write")
	}
}

func TestRecordCapturesDisabledClearsDirty(t *testing.T) {
	rec := &captureRecorder{}
	log := NewClaimLog(testStations, WithRecorder(rec), WithRecording(false))
	log.LogClaim("PN", model.Zone0, time.Second)

	if err := log.RecordCaptures(context.Background()); err != nil {
		t.Fatalf("RecordCaptures: %v", err)
	}
	if rec.calls != 0 {
		t.Fatalf("disabled recording still wrote")
	}
	if log.IsDirty() {
		t.Fatalf("disabled recording should clear the dirty flag")
	}
	if log.Len() != 1 {
		t.Fatalf("history should be kept even when recording is disabled")
	}
}

func TestRecordCapturesPropagatesFailure(t *testing.T) {
	boom := errors.New("disk full")
	rec := &captureRecorder{err: boom}
	log := NewClaimLog(testStations, WithRecorder(rec))
	log.LogClaim("PN", model.Zone0, time.Second)

	if err := log.RecordCaptures(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("RecordCaptures error = %v, want %v", err, boom)
	}
	if !log.IsDirty() {
		t.Fatalf("failed write must leave the log dirty")
	}
}

func TestRecordCapturesWithoutRecorder(t *testing.T) {
	log := NewClaimLog(testStations, WithRecording(true))
	log.LogClaim("PN", model.Zone0, time.Second)
	if err := log.RecordCaptures(context.Background()); !errors.Is(err, ErrNoRecorder) {
		t.Fatalf("RecordCaptures error = %v, want ErrNoRecorder", err)
	}
}

func TestSubscribeReceivesClaimAndLockEvents(t *testing.T) {
	log := NewClaimLog(testStations, WithLockThreshold(1))
	var events []Event
	unsubscribe := log.Subscribe(func(ev Event) { events = append(events, ev) })

	log.LogClaim("PN", model.Zone0, time.Second)
	log.LogClaim("PN", model.Zone1, 2*time.Second)

	if len(events) != 3 {
		t.Fatalf("got %d events, want 3 (claim, claim, lock)", len(events))
	}
	if events[1].Previous != model.Zone0 || events[1].Entry.Claimant != model.Zone1 {
		t.Fatalf("second event = %+v, want ZONE_0 -> ZONE_1", events[1])
	}
	if events[2].Type != EventStationLocked {
		t.Fatalf("third event type = %v, want EventStationLocked", events[2].Type)
	}

	unsubscribe()
	log.LogClaim("EY", model.Zone0, 3*time.Second)
	if len(events) != 3 {
		t.Fatalf("unsubscribed callback still invoked")
	}
}

func TestReplayRebuildsState(t *testing.T) {
	src := NewClaimLog(testStations, WithLockThreshold(2))
	src.LogClaim("PN", model.Zone0, 1*time.Second)
	src.LogClaim("PN", model.Zone1, 2*time.Second)
	src.LogClaim("PN", model.Zone0, 3*time.Second)
	src.LogClaim("EY", model.Zone1, 4*time.Second)

	dst := NewClaimLog(testStations, WithLockThreshold(2))
	if err := dst.Replay(src.Entries()); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for _, s := range testStations {
		if dst.Claimant(s) != src.Claimant(s) {
			t.Fatalf("station %s owner %v, want %v", s, dst.Claimant(s), src.Claimant(s))
		}
	}
	if !dst.IsLocked("PN") {
		t.Fatalf("replayed PN should be locked")
	}

	srcDigest, err := src.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	dstDigest, err := dst.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if srcDigest != dstDigest {
		t.Fatalf("digest mismatch after replay: %s vs %s", srcDigest, dstDigest)
	}
}

func TestReplayRejectsUnknownStation(t *testing.T) {
	log := NewClaimLog(testStations)
	err := log.Replay([]model.ClaimLogEntry{{Station: "QQ", Claimant: model.Zone0}})
	if !errors.Is(err, ErrUnknownStation) {
		t.Fatalf("Replay error = %v, want ErrUnknownStation", err)
	}
}

func TestDigestEmptyHistory(t *testing.T) {
	a, err := Digest[model.ClaimLogEntry](nil)
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	b, err := NewClaimLog(testStations).Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if a != b || len(a) != 64 {
		t.Fatalf("empty digests differ or have wrong length: %q %q", a, b)
	}
}
