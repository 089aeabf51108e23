package hub

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func register(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := newClient(h, nil)
	h.register <- c
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h, _ := startHub(t)
	a := register(t, h)
	b := register(t, h)
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	h.BroadcastBinary([]byte{0xFF, 0xD8})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			if msg.Type != BinaryMessage || len(msg.Data) != 2 {
				t.Errorf("client %s: got %+v", c.ID(), msg)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s got nothing", c.ID())
		}
	}
}

func TestHub_BroadcastJSON(t *testing.T) {
	h, _ := startHub(t)
	c := register(t, h)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	if err := h.BroadcastJSON(map[string]string{"mode": "AUTO"}); err != nil {
		t.Fatal(err)
	}

	msg := <-c.send
	if msg.Type != JSONMessage || string(msg.Data) != `{"mode":"AUTO"}` {
		t.Errorf("got %s", msg.Data)
	}
}

func TestHub_Unregister(t *testing.T) {
	h, _ := startHub(t)
	c := register(t, h)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.unregister <- c
	waitFor(t, func() bool { return h.ClientCount() == 0 })

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed")
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h, _ := startHub(t)
	slow := register(t, h)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	for i := 0; i <= sendBuffer; i++ {
		h.BroadcastBinary([]byte{byte(i)})
		time.Sleep(time.Millisecond)
	}
	waitFor(t, func() bool { return h.ClientCount() == 0 })

	n := 0
	for range slow.send {
		n++
	}
	if n != sendBuffer {
		t.Errorf("got %d queued messages, want %d", n, sendBuffer)
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	c := register(t, h)
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	cancel()
	select {
	case <-h.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed on stop")
	}
	if NewClient(h, nil) != nil {
		t.Error("NewClient should fail after the hub stopped")
	}
}

func TestClient_UniqueIDs(t *testing.T) {
	h := New("ids", nil)
	if newClient(h, nil).ID() == newClient(h, nil).ID() {
		t.Error("client IDs should be unique")
	}
}

func TestHub_CountsDroppedBroadcasts(t *testing.T) {
	h := New("stalled", nil) // not running, so the queue never drains

	for i := 0; i < cap(h.broadcast)+3; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}
	if got := h.Dropped(); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
}
