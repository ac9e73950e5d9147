// Package metrics tracks per-engine frame statistics.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/sjson"
)

// Versions are the negotiated interface versions reported with metrics.
type Versions struct {
	EngineABIMajor    uint32
	EngineABIMinor    uint32
	EngineABIPatch    uint32
	DrawlistVersion   uint32
	EventBatchVersion uint32
}

// Frame describes one presented frame.
type Frame struct {
	BytesEmitted int
	DirtyLines   int
	DirtyCells   int
	DamageRects  int
	DamageCells  int
	FullFrame    bool

	ScrollHit          bool
	CollisionGuardHits int

	Paint time.Duration
	Diff  time.Duration
	Write time.Duration
}

// Metrics accumulates frame statistics. Safe for concurrent use.
type Metrics struct {
	versions Versions

	frameIndex        atomic.Uint64
	bytesTotal        atomic.Uint64
	bytesLast         atomic.Uint32
	dirtyLinesLast    atomic.Uint32
	dirtyColsLast     atomic.Uint32
	damageRectsLast   atomic.Uint32
	damageCellsLast   atomic.Uint32
	damageFullFrame   atomic.Bool
	usPaintLast       atomic.Uint32
	usDiffLast        atomic.Uint32
	usWriteLast       atomic.Uint32
	eventsOutLastPoll atomic.Uint32
	scrollHits        atomic.Uint64
	collisionHits     atomic.Uint64
	limitFailures     atomic.Uint64

	// dropped reads the event drop total from the queue that owns it.
	dropped func() uint64

	// fps window
	mu          sync.Mutex
	windowStart time.Time
	windowCount uint32
	fps         uint32
}

// New creates a metrics tracker.
func New(v Versions) *Metrics {
	return &Metrics{versions: v}
}

// SetVersions replaces the negotiated versions.
func (m *Metrics) SetVersions(v Versions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = v
}

// RecordFrame records a presented frame at time now.
func (m *Metrics) RecordFrame(f Frame, now time.Time) {
	m.frameIndex.Add(1)
	m.bytesTotal.Add(uint64(f.BytesEmitted))
	m.bytesLast.Store(clampU32(f.BytesEmitted))
	m.dirtyLinesLast.Store(clampU32(f.DirtyLines))
	m.dirtyColsLast.Store(clampU32(f.DirtyCells))
	m.damageRectsLast.Store(clampU32(f.DamageRects))
	m.damageCellsLast.Store(clampU32(f.DamageCells))
	m.damageFullFrame.Store(f.FullFrame)
	m.usPaintLast.Store(micros(f.Paint))
	m.usDiffLast.Store(micros(f.Diff))
	m.usWriteLast.Store(micros(f.Write))
	if f.ScrollHit {
		m.scrollHits.Add(1)
	}
	m.collisionHits.Add(uint64(max(f.CollisionGuardHits, 0)))

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.windowStart.IsZero() {
		m.windowStart = now
	}
	m.windowCount++
	if elapsed := now.Sub(m.windowStart); elapsed >= time.Second {
		m.fps = uint32(float64(m.windowCount) / elapsed.Seconds())
		m.windowStart = now
		m.windowCount = 0
	}
}

// RecordPaint records the duration of the last paint pass.
func (m *Metrics) RecordPaint(d time.Duration) {
	m.usPaintLast.Store(micros(d))
}

// RecordPoll records how many events the last poll returned.
func (m *Metrics) RecordPoll(events int) {
	m.eventsOutLastPoll.Store(clampU32(events))
}

// SetDroppedSource sets the counter EventsDroppedTotal is read from.
func (m *Metrics) SetDroppedSource(f func() uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = f
}

// RecordLimitFailure counts a frame rejected by the output byte cap.
func (m *Metrics) RecordLimitFailure() {
	m.limitFailures.Add(1)
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	Versions Versions

	FrameIndex            uint64
	FPS                   uint32
	BytesEmittedTotal     uint64
	BytesEmittedLastFrame uint32
	DirtyLinesLastFrame   uint32
	DirtyColsLastFrame    uint32
	UsPaintLastFrame      uint32
	UsDiffLastFrame       uint32
	UsWriteLastFrame      uint32
	EventsOutLastPoll     uint32
	EventsDroppedTotal    uint32
	DamageRectsLastFrame  uint32
	DamageCellsLastFrame  uint32
	DamageFullFrame       bool

	ScrollHitsTotal          uint64
	CollisionGuardHitsTotal  uint64
	OutputLimitFailuresTotal uint64
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	fps := m.fps
	v := m.versions
	dropped := m.dropped
	m.mu.Unlock()

	var droppedTotal uint32
	if dropped != nil {
		droppedTotal = uint32(min(dropped(), math.MaxUint32))
	}

	return Snapshot{
		Versions:                 v,
		FrameIndex:               m.frameIndex.Load(),
		FPS:                      fps,
		BytesEmittedTotal:        m.bytesTotal.Load(),
		BytesEmittedLastFrame:    m.bytesLast.Load(),
		DirtyLinesLastFrame:      m.dirtyLinesLast.Load(),
		DirtyColsLastFrame:       m.dirtyColsLast.Load(),
		UsPaintLastFrame:         m.usPaintLast.Load(),
		UsDiffLastFrame:          m.usDiffLast.Load(),
		UsWriteLastFrame:         m.usWriteLast.Load(),
		EventsOutLastPoll:        m.eventsOutLastPoll.Load(),
		EventsDroppedTotal:       droppedTotal,
		DamageRectsLastFrame:     m.damageRectsLast.Load(),
		DamageCellsLastFrame:     m.damageCellsLast.Load(),
		DamageFullFrame:          m.damageFullFrame.Load(),
		ScrollHitsTotal:          m.scrollHits.Load(),
		CollisionGuardHitsTotal:  m.collisionHits.Load(),
		OutputLimitFailuresTotal: m.limitFailures.Load(),
	}
}

// JSON encodes the snapshot with camelCase keys.
func (s Snapshot) JSON() ([]byte, error) {
	fields := []struct {
		key string
		val any
	}{
		{"negotiatedEngineAbiMajor", s.Versions.EngineABIMajor},
		{"negotiatedEngineAbiMinor", s.Versions.EngineABIMinor},
		{"negotiatedEngineAbiPatch", s.Versions.EngineABIPatch},
		{"negotiatedDrawlistVersion", s.Versions.DrawlistVersion},
		{"negotiatedEventBatchVersion", s.Versions.EventBatchVersion},
		{"frameIndex", s.FrameIndex},
		{"fps", s.FPS},
		{"bytesEmittedTotal", s.BytesEmittedTotal},
		{"bytesEmittedLastFrame", s.BytesEmittedLastFrame},
		{"dirtyLinesLastFrame", s.DirtyLinesLastFrame},
		{"dirtyColsLastFrame", s.DirtyColsLastFrame},
		{"usPaintLastFrame", s.UsPaintLastFrame},
		{"usDiffLastFrame", s.UsDiffLastFrame},
		{"usWriteLastFrame", s.UsWriteLastFrame},
		{"eventsOutLastPoll", s.EventsOutLastPoll},
		{"eventsDroppedTotal", s.EventsDroppedTotal},
		{"damageRectsLastFrame", s.DamageRectsLastFrame},
		{"damageCellsLastFrame", s.DamageCellsLastFrame},
		{"damageFullFrame", s.DamageFullFrame},
		{"scrollHitsTotal", s.ScrollHitsTotal},
		{"collisionGuardHitsTotal", s.CollisionGuardHitsTotal},
		{"outputLimitFailuresTotal", s.OutputLimitFailuresTotal},
	}

	out := []byte("{}")
	var err error
	for _, f := range fields {
		if out, err = sjson.SetBytes(out, f.key, f.val); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func clampU32(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if uint64(n) > 1<<32-1 {
		return 1<<32 - 1
	}
	return uint32(n)
}

func micros(d time.Duration) uint32 {
	return clampU32(int(d.Microseconds()))
}
