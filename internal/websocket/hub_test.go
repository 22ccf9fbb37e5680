package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, familyID int64) *Client {
	return &Client{
		hub:      hub,
		send:     make(chan []byte, sendBufferSize),
		familyID: familyID,
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got, true
	case <-time.After(50 * time.Millisecond):
		return Message{}, false
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c1 := mockClient(hub, 1)
	c2 := mockClient(hub, 1)

	hub.Register(c1)
	hub.Register(c2)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c1) // second call is a no-op
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastScopedToFamily(t *testing.T) {
	hub := NewHub(slog.Default())
	silva := mockClient(hub, 1)
	souza := mockClient(hub, 2)
	admin := mockClient(hub, 0)
	for _, c := range []*Client{silva, souza, admin} {
		hub.Register(c)
		defer hub.Unregister(c)
	}

	hub.Broadcast(NewMessage("member", "reparented", 1, 42, map[string]any{"parent_id": float64(7)}))

	got, ok := receive(t, silva)
	if !ok {
		t.Fatal("family client missed its own event")
	}
	if got.Type != "member_reparented" || got.ID != 42 || got.FamilyID != 1 {
		t.Errorf("got %+v", got)
	}
	if got.Extra["parent_id"] != float64(7) {
		t.Errorf("extra = %v", got.Extra)
	}

	if _, ok := receive(t, admin); !ok {
		t.Error("admin client should see every family")
	}
	if _, ok := receive(t, souza); ok {
		t.Error("other family received the event")
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Broadcast(NewMessage("family", "deleted", 1, 1, nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, 1)
	hub.Register(c)
	defer hub.Unregister(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("member", "created", 1, int64(i+1), nil))
	}
	// Buffer is full: this one is dropped without blocking.
	hub.Broadcast(NewMessage("member", "created", 1, 999, nil))

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("expected %d buffered messages, got %d", sendBufferSize, got)
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("member", "deleted", 3, 5, map[string]any{"ids": []int64{6, 5}})
	if msg.Type != "member_deleted" {
		t.Errorf("expected type member_deleted, got %s", msg.Type)
	}
	if msg.Entity != "member" || msg.Action != "deleted" {
		t.Errorf("entity/action = %s/%s", msg.Entity, msg.Action)
	}
	if msg.FamilyID != 3 || msg.ID != 5 {
		t.Errorf("family/id = %d/%d", msg.FamilyID, msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(familyID int64) {
			defer wg.Done()
			c := mockClient(hub, familyID)
			hub.Register(c)
			hub.Broadcast(NewMessage("member", "created", familyID, 1, nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}(int64(i % 3))
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
