package ws

import (
	"fmt"
	"sync"
	"testing"
)

func TestHub_JoinAndLeave(t *testing.T) {
	hub := NewHub()
	client := NewClient()

	hub.Join("room42", client)
	if hub.GroupCount("room42") != 1 {
		t.Fatalf("expected 1 member in room42, got %d", hub.GroupCount("room42"))
	}

	// Join is idempotent.
	hub.Join("room42", client)
	if hub.GroupCount("room42") != 1 {
		t.Fatalf("expected join to be idempotent, got %d members", hub.GroupCount("room42"))
	}

	hub.Leave("room42", client)
	if hub.GroupCount("room42") != 0 {
		t.Fatalf("expected 0 members after leave, got %d", hub.GroupCount("room42"))
	}

	// Leave is idempotent too.
	hub.Leave("room42", client)
	hub.Leave("never-joined", client)
}

func TestHub_PublishScopedToGroup(t *testing.T) {
	hub := NewHub()
	member1 := NewClient()
	member2 := NewClient()
	outsider := NewClient()

	hub.Join("room7", member1)
	hub.Join("room7", member2)
	hub.Join("other", outsider)

	hub.Publish("room7", []byte("hello"))

	for i, c := range []*Client{member1, member2} {
		select {
		case got := <-c.Send:
			if string(got) != "hello" {
				t.Errorf("member %d: expected payload hello, got %s", i, got)
			}
		default:
			t.Errorf("member %d: expected a delivered payload", i)
		}
	}

	select {
	case got := <-outsider.Send:
		t.Errorf("outsider must not receive room7 payloads, got %s", got)
	default:
	}
}

func TestHub_PublishToEmptyGroup(t *testing.T) {
	hub := NewHub()
	hub.Publish("ghost", []byte("nobody home"))
}

func TestHub_PublishSkipsFullBuffers(t *testing.T) {
	hub := NewHub()
	slow := &Client{ID: "slow", Send: make(chan []byte, 1)}
	fast := NewClient()

	hub.Join("room1", slow)
	hub.Join("room1", fast)

	slow.Send <- []byte("backlog") // fill the slow client's buffer

	hub.Publish("room1", []byte("new"))

	select {
	case got := <-fast.Send:
		if string(got) != "new" {
			t.Errorf("expected fast client to get the new payload, got %s", got)
		}
	default:
		t.Error("fast client should receive despite the slow one being full")
	}
}

func TestHub_ConcurrentJoinLeavePublish(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("room%d", n%5)
			c := NewClient()
			hub.Join(key, c)
			hub.Publish(key, []byte("ping"))
			hub.Leave(key, c)
		}(i)
	}
	wg.Wait()

	for _, key := range hub.GroupKeys() {
		if hub.GroupCount(key) != 0 {
			t.Errorf("expected group %s to drain, got %d members", key, hub.GroupCount(key))
		}
	}
}
