package sse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan RoomEvent) RoomEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return RoomEvent{}
	}
}

func TestHub_BroadcastToAll(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ch1, unsub1 := hub.Subscribe("")
	defer unsub1()
	ch2, unsub2 := hub.Subscribe("")
	defer unsub2()

	hub.Emit(RoomEvent{Type: "item.create", RoomID: "room-1"})

	assert.Equal(t, "item.create", receive(t, ch1).Type)
	assert.Equal(t, "item.create", receive(t, ch2).Type)
}

func TestHub_RoomFilter(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	matched, unsub1 := hub.Subscribe("room-1")
	defer unsub1()
	other, unsub2 := hub.Subscribe("room-2")
	defer unsub2()

	hub.Emit(RoomEvent{Type: "item.create", RoomID: "room-1"})

	assert.Equal(t, "room-1", receive(t, matched).RoomID)
	select {
	case ev := <-other:
		t.Fatalf("room-2 subscriber received foreign event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_IgnoresNonRoomEvents(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ch, unsub := hub.Subscribe("")
	defer unsub()

	hub.Emit("not a room event")
	hub.Emit(42)

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ch, unsub := hub.Subscribe("")
	defer unsub()

	// Overfill the buffer; Emit must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*2; i++ {
			hub.Emit(RoomEvent{Type: "item.create", RoomID: "room-1"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow consumer")
	}

	// The buffered events are still readable.
	assert.Equal(t, clientBuffer, len(ch))
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	ch, unsub := hub.Subscribe("")
	unsub()
	unsub() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Emitting after unsubscribe must not panic.
	hub.Emit(RoomEvent{Type: "item.create", RoomID: "room-1"})
}

func TestHub_CloseDisconnectsEveryone(t *testing.T) {
	hub := NewHub(nil)

	ch1, _ := hub.Subscribe("")
	ch2, _ := hub.Subscribe("room-1")

	hub.Close()
	hub.Close() // idempotent

	_, open1 := <-ch1
	_, open2 := <-ch2
	assert.False(t, open1)
	assert.False(t, open2)

	// Subscribing after close yields a closed channel.
	ch3, unsub := hub.Subscribe("")
	require.NotNil(t, unsub)
	_, open3 := <-ch3
	assert.False(t, open3)
}
