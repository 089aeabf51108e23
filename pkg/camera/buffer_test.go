package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBuffer_EmptyLatest(t *testing.T) {
	b := NewBuffer()
	if _, ok := b.Latest(); ok {
		t.Error("expected no frame before first publish")
	}
	if b.Seq() != 0 {
		t.Errorf("Seq: got %d, want 0", b.Seq())
	}
}

func TestBuffer_PublishReplaces(t *testing.T) {
	b := NewBuffer()

	s1 := b.Publish(Snapshot{JPEG: []byte{1}, Width: 640, Height: 480})
	s2 := b.Publish(Snapshot{JPEG: []byte{2}, Width: 640, Height: 480, Markers: 1})

	if s1 != 1 || s2 != 2 {
		t.Errorf("seq: got %d,%d, want 1,2", s1, s2)
	}

	got, ok := b.Latest()
	if !ok {
		t.Fatal("expected frame")
	}
	if got.Seq != 2 || got.JPEG[0] != 2 || got.Markers != 1 {
		t.Errorf("got %+v", got)
	}

	stats := b.Stats()
	if stats.Published != 2 {
		t.Errorf("Published: got %d, want 2", stats.Published)
	}
	if stats.Drops != 1 {
		t.Errorf("Drops: got %d, want 1 (first frame was never read)", stats.Drops)
	}
}

func TestBuffer_CopyOnRead(t *testing.T) {
	b := NewBuffer()
	b.Publish(Snapshot{JPEG: []byte{0xFF, 0xD8, 0xFF}})

	a, _ := b.Latest()
	a.JPEG[0] = 0

	c, _ := b.Latest()
	if c.JPEG[0] != 0xFF {
		t.Error("modifying a read copy changed the buffered frame")
	}
}

func TestBuffer_ReadFrameIsNotADrop(t *testing.T) {
	b := NewBuffer()
	b.Publish(Snapshot{JPEG: []byte{1}})
	b.Latest()
	b.Publish(Snapshot{JPEG: []byte{2}})

	if d := b.Stats().Drops; d != 0 {
		t.Errorf("Drops: got %d, want 0", d)
	}
}

func TestBuffer_WaitForNewFrame(t *testing.T) {
	b := NewBuffer()
	b.Publish(Snapshot{JPEG: []byte{1}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// current frame is returned immediately for afterSeq=0
	got, err := b.Wait(ctx, 0)
	if err != nil || got.Seq != 1 {
		t.Fatalf("Wait(0): got seq %d, err %v", got.Seq, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var waited Snapshot
	var waitErr error
	go func() {
		defer wg.Done()
		waited, waitErr = b.Wait(ctx, 1)
	}()

	time.Sleep(20 * time.Millisecond)
	b.Publish(Snapshot{JPEG: []byte{2}})
	wg.Wait()

	if waitErr != nil {
		t.Fatalf("Wait: %v", waitErr)
	}
	if waited.Seq != 2 || waited.JPEG[0] != 2 {
		t.Errorf("got %+v", waited)
	}
}

func TestBuffer_WaitCancelled(t *testing.T) {
	b := NewBuffer()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Wait(ctx, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want DeadlineExceeded", err)
	}
}

func TestBuffer_ConcurrentReaders(t *testing.T) {
	b := NewBuffer()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			b.Publish(Snapshot{JPEG: []byte{byte(i)}})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for i := 0; i < 200; i++ {
				if s, ok := b.Latest(); ok {
					if s.Seq < last {
						t.Errorf("sequence went backwards: %d after %d", s.Seq, last)
						return
					}
					last = s.Seq
				}
			}
		}()
	}
	wg.Wait()

	if b.Seq() != 200 {
		t.Errorf("Seq: got %d, want 200", b.Seq())
	}
}
