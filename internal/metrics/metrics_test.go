package metrics

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestRecordFrame(t *testing.T) {
	m := New(Versions{EngineABIMajor: 1, EngineABIMinor: 2})
	now := time.Unix(1000, 0)

	m.RecordFrame(Frame{BytesEmitted: 100, DirtyLines: 2, DirtyCells: 7, DamageRects: 3, DamageCells: 9, Diff: 1500 * time.Microsecond}, now)
	m.RecordFrame(Frame{BytesEmitted: 50, FullFrame: true, ScrollHit: true, CollisionGuardHits: 2}, now.Add(10*time.Millisecond))

	s := m.Snapshot()
	if s.FrameIndex != 2 {
		t.Errorf("FrameIndex = %d, want 2", s.FrameIndex)
	}
	if s.BytesEmittedTotal != 150 || s.BytesEmittedLastFrame != 50 {
		t.Errorf("bytes total=%d last=%d", s.BytesEmittedTotal, s.BytesEmittedLastFrame)
	}
	if !s.DamageFullFrame || s.DamageRectsLastFrame != 0 {
		t.Errorf("damage fields not from last frame: %+v", s)
	}
	if s.ScrollHitsTotal != 1 || s.CollisionGuardHitsTotal != 2 {
		t.Errorf("scroll=%d collisions=%d", s.ScrollHitsTotal, s.CollisionGuardHitsTotal)
	}
	if s.Versions.EngineABIMinor != 2 {
		t.Errorf("versions = %+v", s.Versions)
	}
}

func TestFPSWindow(t *testing.T) {
	m := New(Versions{})
	start := time.Unix(0, 0)
	for i := 0; i <= 30; i++ {
		m.RecordFrame(Frame{}, start.Add(time.Duration(i)*time.Second/30))
	}
	if fps := m.Snapshot().FPS; fps != 31 {
		t.Errorf("FPS = %d, want 31", fps)
	}
}

func TestEventCounters(t *testing.T) {
	m := New(Versions{})
	m.RecordPoll(4)
	if s := m.Snapshot(); s.EventsDroppedTotal != 0 {
		t.Errorf("dropped without a source = %d, want 0", s.EventsDroppedTotal)
	}

	var dropped uint64 = 5
	m.SetDroppedSource(func() uint64 { return dropped })
	s := m.Snapshot()
	if s.EventsOutLastPoll != 4 || s.EventsDroppedTotal != 5 {
		t.Errorf("events out=%d dropped=%d", s.EventsOutLastPoll, s.EventsDroppedTotal)
	}

	dropped = 1 << 40
	if got := m.Snapshot().EventsDroppedTotal; got != math.MaxUint32 {
		t.Errorf("clamped dropped = %d, want %d", got, uint32(math.MaxUint32))
	}
}

func TestSnapshotJSON(t *testing.T) {
	m := New(Versions{EngineABIMajor: 1, EngineABIMinor: 2, DrawlistVersion: 1})
	m.RecordFrame(Frame{BytesEmitted: 42, FullFrame: true}, time.Now())

	data, err := m.Snapshot().JSON()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		path string
		want string
	}{
		{"negotiatedEngineAbiMajor", "1"},
		{"negotiatedEngineAbiMinor", "2"},
		{"frameIndex", "1"},
		{"bytesEmittedLastFrame", "42"},
		{"damageFullFrame", "true"},
	}
	for _, tt := range tests {
		if got := gjson.GetBytes(data, tt.path).String(); got != tt.want {
			t.Errorf("%s = %q, want %q (json %s)", tt.path, got, tt.want, data)
		}
	}
}

func TestConcurrentRecord(t *testing.T) {
	m := New(Versions{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordFrame(Frame{BytesEmitted: 1}, time.Now())
				_ = m.Snapshot()
			}
		}()
	}
	wg.Wait()
	if s := m.Snapshot(); s.FrameIndex != 800 || s.BytesEmittedTotal != 800 {
		t.Errorf("FrameIndex=%d BytesEmittedTotal=%d", s.FrameIndex, s.BytesEmittedTotal)
	}
}
