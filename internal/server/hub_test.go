package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/infrastructure/monitoring"
	"github.com/mindgate/mindgate/internal/projection"
	"github.com/mindgate/mindgate/internal/protocol"
)

type stubCommands struct {
	handled []any
	acked   []string
}

func (s *stubCommands) HandleCommand(ctx context.Context, msg any) error {
	s.handled = append(s.handled, msg)
	return nil
}

func (s *stubCommands) OnAck(eventID string) {
	s.acked = append(s.acked, eventID)
}

func TestBroadcastRetainsUntilAck(t *testing.T) {
	cmds := &stubCommands{}
	h := NewHub(cmds, time.Second, logging.NewNop(), monitoring.NewTest())

	h.Broadcast(protocol.TypeTimerExpired, "e1", protocol.TimerExpired{
		Type:    protocol.TypeTimerExpired,
		EventID: "e1",
		App:     "com.instagram.android",
		Phase:   protocol.PhaseActive,
	})
	h.Broadcast(protocol.TypeQuotaChanged, "e2", protocol.QuotaChanged{
		Type:    protocol.TypeQuotaChanged,
		EventID: "e2",
		Value:   2,
	})

	if h.Pending() != 2 {
		t.Fatalf("expected 2 pending events, got %d", h.Pending())
	}

	h.ack("e1")
	if h.Pending() != 1 {
		t.Fatalf("expected 1 pending after ack, got %d", h.Pending())
	}
	if len(cmds.acked) != 1 || cmds.acked[0] != "e1" {
		t.Errorf("expected ack callback for e1, got %v", cmds.acked)
	}

	// Redelivered acks for already-resolved events are no-ops.
	h.ack("e1")
	h.ack("unknown")
	if len(cmds.acked) != 1 {
		t.Errorf("duplicate ack reached the handler: %v", cmds.acked)
	}
	if h.Pending() != 1 {
		t.Errorf("pending count drifted: %d", h.Pending())
	}
}

// attach registers a bare connection and returns a drain of everything
// offered to it, in order.
func attach(h *Hub) (*hubConn, func() []string) {
	conn := &hubConn{send: make(chan []byte, 64)}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	return conn, func() []string {
		var ids []string
		for {
			select {
			case payload := <-conn.send:
				var env struct {
					EventID string `json:"event_id"`
				}
				if err := json.Unmarshal(payload, &env); err == nil {
					ids = append(ids, env.EventID)
				}
			default:
				return ids
			}
		}
	}
}

func TestRedeliveryPreservesEmissionOrder(t *testing.T) {
	h := NewHub(&stubCommands{}, time.Second, logging.NewNop(), monitoring.NewTest())

	for _, id := range []string{"e1", "e2", "e3", "e4"} {
		h.Broadcast(protocol.TypeQuotaChanged, id, protocol.QuotaChanged{
			Type:    protocol.TypeQuotaChanged,
			EventID: id,
			Value:   1,
		})
	}
	h.ack("e2")

	conn, drain := attach(h)
	h.redeliver()
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
	}()

	got := drain()
	want := []string{"e1", "e3", "e4"}
	if len(got) != len(want) {
		t.Fatalf("redelivered %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("redelivered %v, want %v", got, want)
		}
	}
}

type noopCommander struct{}

func (noopCommander) AcceptQuickTask(app string, d time.Duration) error { return nil }
func (noopCommander) DeclineQuickTask(app string) error                 { return nil }
func (noopCommander) ChooseContinue(app string) error                   { return nil }
func (noopCommander) ChooseQuit(app string) error                       { return nil }
func (noopCommander) SetIntention(app string, d time.Duration) error    { return nil }

// A runtime reattaching after the user already left the app must see
// the retained verdict before the transition that cancels it, so the
// replay cannot leave a stale dialog on screen.
func TestReattachReplayCannotResurrectCancelledOffer(t *testing.T) {
	h := NewHub(&stubCommands{}, time.Second, logging.NewNop(), monitoring.NewTest())

	h.Broadcast(protocol.TypeForegroundChanged, "e1", protocol.ForegroundChanged{
		Type: protocol.TypeForegroundChanged, EventID: "e1",
		App: "com.instagram.android", TransitionID: "t1",
	})
	h.Broadcast(protocol.TypeVerdict, "e2", protocol.Verdict{
		Type: protocol.TypeVerdict, EventID: "e2",
		Kind: protocol.VerdictShowQuickTask, App: "com.instagram.android", TransitionID: "t1",
	})
	h.Broadcast(protocol.TypeForegroundChanged, "e3", protocol.ForegroundChanged{
		Type: protocol.TypeForegroundChanged, EventID: "e3",
		App: "com.android.chrome", TransitionID: "t2",
	})

	conn, drain := attach(h)
	h.redeliver()
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()

	pm := projection.NewManager(noopCommander{}, nil, nil, logging.NewNop())
	for _, id := range drain() {
		raw := func() []byte {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.pending[id].payload
		}()
		msg, err := protocol.ParseEvent(raw)
		if err != nil {
			t.Fatalf("replayed event %s invalid: %v", id, err)
		}
		switch m := msg.(type) {
		case protocol.Verdict:
			pm.HandleVerdict(m)
		case protocol.ForegroundChanged:
			pm.HandleForeground(m)
		}
	}

	if s := pm.Session(); s.Kind != projection.SessionNone {
		t.Fatalf("replay left a stale session: %+v", s)
	}
}
