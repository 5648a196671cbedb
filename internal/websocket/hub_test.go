package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/pointkeeper/internal/ledger"
)

const (
	tenantA = "USR-ADM-20240305-001"
	tenantB = "USR-ADM-20240305-002"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, adminID string) *Client {
	return &Client{
		hub:     hub,
		conn:    nil,
		adminID: adminID,
		send:    make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())

	c1 := mockClient(hub, tenantA)
	c2 := mockClient(hub, tenantA)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub, tenantA)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcastScopedToTenant(t *testing.T) {
	hub := NewHub(testLogger())

	a := mockClient(hub, tenantA)
	b := mockClient(hub, tenantB)
	hub.Register(a)
	hub.Register(b)
	defer hub.Unregister(a)
	defer hub.Unregister(b)

	hub.Broadcast(tenantA, NewMessage("member", "created", "MEM-20240305-001", nil))

	got := receive(t, a)
	if got.Type != "member_created" || got.Entity != "member" || got.ID != "MEM-20240305-001" {
		t.Errorf("message = %+v", got)
	}
	select {
	case <-b.send:
		t.Error("other tenant received the message")
	default:
	}
}

func TestBroadcastAll(t *testing.T) {
	hub := NewHub(testLogger())

	a := mockClient(hub, tenantA)
	b := mockClient(hub, tenantB)
	hub.Register(a)
	hub.Register(b)
	defer hub.Unregister(a)
	defer hub.Unregister(b)

	hub.Broadcast("", NewMessage("export", "idle", "", map[string]any{"in_progress": false}))

	for _, c := range []*Client{a, b} {
		if got := receive(t, c); got.Type != "export_idle" || got.Extra["in_progress"] != false {
			t.Errorf("message = %+v", got)
		}
	}
}

func TestNotify(t *testing.T) {
	hub := NewHub(testLogger())
	c := mockClient(hub, tenantA)
	hub.Register(c)
	defer hub.Unregister(c)

	hub.Notify(ledger.Change{
		Entity:  "member",
		Action:  "deleted",
		IDs:     []string{"MEM-20240305-001", "MEM-20240305-002"},
		AdminID: tenantA,
	})

	got := receive(t, c)
	if got.Type != "member_deleted" || got.ID != "MEM-20240305-001" || len(got.IDs) != 2 {
		t.Errorf("message = %+v", got)
	}
}

func TestChangeMessageSingleID(t *testing.T) {
	msg := ChangeMessage(ledger.Change{Entity: "transaction", Action: "created", IDs: []string{"TRX-ACH-20240305-001"}})
	if msg.ID != "TRX-ACH-20240305-001" || msg.IDs != nil {
		t.Errorf("message = %+v", msg)
	}
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(testLogger())
	// Should not panic
	hub.Broadcast("", NewMessage("appeal", "resolved", "APL-20240305-001", nil))
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(testLogger())

	c := mockClient(hub, tenantA)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(tenantA, NewMessage("test", "fill", "", nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(tenantA, NewMessage("test", "dropped", "", nil))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("warning_rule", "updated", "WRN-20240305-001", nil)
	if msg.Type != "warning_rule_updated" {
		t.Errorf("expected type warning_rule_updated, got %s", msg.Type)
	}
	if msg.Entity != "warning_rule" {
		t.Errorf("expected entity warning_rule, got %s", msg.Entity)
	}
	if msg.Action != "updated" {
		t.Errorf("expected action updated, got %s", msg.Action)
	}
	if msg.ID != "WRN-20240305-001" {
		t.Errorf("expected id WRN-20240305-001, got %s", msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(testLogger())
	var wg sync.WaitGroup

	// Spawn goroutines that register, broadcast, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, tenantA)
			hub.Register(c)
			hub.Broadcast(tenantA, NewMessage("test", "concurrent", "", nil))
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}
