package camera

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a published, JPEG-encoded frame.
type Snapshot struct {
	JPEG       []byte    `json:"-"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	CapturedAt time.Time `json:"captured_at"`
	Markers    int       `json:"markers"` // markers drawn on this frame
	Seq        uint64    `json:"seq"`     // assigned by Publish, starts at 1
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.JPEG = bytes.Clone(s.JPEG)
	return s
}

// BufferStats reports buffer activity.
type BufferStats struct {
	Published uint64 `json:"published"`
	Reads     uint64 `json:"reads"`
	Drops     uint64 `json:"drops"` // frames replaced before anyone read them
}

// Buffer holds the most recent frame. New frames replace old ones; there is
// no history. Readers always get their own copy.
//
// Waiters are woken by closing a per-generation channel, so Wait can honour
// context cancellation.
type Buffer struct {
	mu     sync.Mutex
	latest Snapshot
	has    bool
	read   bool
	notify chan struct{}

	published atomic.Uint64
	reads     atomic.Uint64
	drops     atomic.Uint64
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{notify: make(chan struct{})}
}

// Publish replaces the latest frame and returns its sequence number.
// The buffer takes ownership of snap.JPEG; the caller must not modify it.
func (b *Buffer) Publish(snap Snapshot) uint64 {
	b.mu.Lock()
	if b.has && !b.read {
		b.drops.Add(1)
	}
	seq := b.published.Add(1)
	snap.Seq = seq
	b.latest = snap
	b.has = true
	b.read = false

	close(b.notify)
	b.notify = make(chan struct{})
	b.mu.Unlock()

	return seq
}

// Latest returns a copy of the newest frame, or false if nothing was published yet.
func (b *Buffer) Latest() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.has {
		return Snapshot{}, false
	}
	b.read = true
	b.reads.Add(1)
	return b.latest.Clone(), true
}

// Wait blocks until a frame newer than afterSeq is available and returns a copy.
// Pass 0 to get the current frame as soon as there is one.
func (b *Buffer) Wait(ctx context.Context, afterSeq uint64) (Snapshot, error) {
	for {
		b.mu.Lock()
		if b.has && b.latest.Seq > afterSeq {
			b.read = true
			b.reads.Add(1)
			snap := b.latest.Clone()
			b.mu.Unlock()
			return snap, nil
		}
		ch := b.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-ch:
		}
	}
}

// Seq returns the sequence number of the latest frame (0 if none).
func (b *Buffer) Seq() uint64 {
	return b.published.Load()
}

// Stats returns buffer counters.
func (b *Buffer) Stats() BufferStats {
	return BufferStats{
		Published: b.published.Load(),
		Reads:     b.reads.Load(),
		Drops:     b.drops.Load(),
	}
}
