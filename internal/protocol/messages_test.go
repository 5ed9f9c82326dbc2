package protocol

import (
	"errors"
	"testing"
)

func TestParseCommandAccept(t *testing.T) {
	raw := []byte(`{"type":"accept_quick_task","app":"com.instagram.android","duration_ms":120000}`)
	msg, err := ParseCommand(raw)
	if err != nil {
		t.Fatalf("ParseCommand failed: %v", err)
	}
	accept, ok := msg.(AcceptQuickTask)
	if !ok {
		t.Fatalf("expected AcceptQuickTask, got %T", msg)
	}
	if accept.App != "com.instagram.android" {
		t.Errorf("wrong app: %s", accept.App)
	}
	if accept.DurationMs != 120000 {
		t.Errorf("wrong duration: %d", accept.DurationMs)
	}
}

func TestParseCommandRejectsMissingFields(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"accept without app", `{"type":"accept_quick_task","duration_ms":1000}`},
		{"accept without duration", `{"type":"accept_quick_task","app":"com.x"}`},
		{"ack without event id", `{"type":"ack"}`},
		{"decline without app", `{"type":"decline_quick_task"}`},
		{"continue without app", `{"type":"choose_continue"}`},
		{"quit without app", `{"type":"choose_quit"}`},
		{"intention without duration", `{"type":"set_intention","app":"com.x"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseCommand([]byte(tc.raw)); err == nil {
				t.Errorf("expected error for %s", tc.raw)
			}
		})
	}
}

func TestParseCommandUnsupportedType(t *testing.T) {
	_, err := ParseCommand([]byte(`{"type":"verdict","app":"com.x"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestParseCommandInvalidJSON(t *testing.T) {
	if _, err := ParseCommand([]byte(`{not json`)); err == nil {
		t.Error("expected error for malformed payload")
	}
}

func TestParseEventVerdict(t *testing.T) {
	raw := []byte(`{"type":"verdict","event_id":"e1","kind":"show_quick_task_dialog","app":"com.tiktok","transition_id":"t1","ts_ms":1000}`)
	msg, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	v, ok := msg.(Verdict)
	if !ok {
		t.Fatalf("expected Verdict, got %T", msg)
	}
	if v.Kind != VerdictShowQuickTask {
		t.Errorf("wrong kind: %s", v.Kind)
	}
	if v.EventID != "e1" {
		t.Errorf("wrong event id: %s", v.EventID)
	}
}

func TestParseEventRejectsUnknownVerdictKind(t *testing.T) {
	raw := []byte(`{"type":"verdict","event_id":"e1","kind":"maybe","app":"com.tiktok"}`)
	if _, err := ParseEvent(raw); err == nil {
		t.Error("expected error for unknown verdict kind")
	}
}

func TestParseEventTimerExpired(t *testing.T) {
	raw := []byte(`{"type":"timer_expired","event_id":"e2","app":"com.tiktok","phase":"active","was_foreground":true,"ts_ms":1000}`)
	msg, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	ev, ok := msg.(TimerExpired)
	if !ok {
		t.Fatalf("expected TimerExpired, got %T", msg)
	}
	if ev.Phase != PhaseActive {
		t.Errorf("wrong phase: %s", ev.Phase)
	}
	if !ev.WasForeground {
		t.Error("was_foreground lost in transit")
	}
}

func TestParseEventCommandTypeRejected(t *testing.T) {
	_, err := ParseEvent([]byte(`{"type":"ack","event_id":"e1"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestEventID(t *testing.T) {
	if id := EventID(Verdict{EventID: "v1"}); id != "v1" {
		t.Errorf("wrong id: %s", id)
	}
	if id := EventID(TimerExpired{EventID: "t1"}); id != "t1" {
		t.Errorf("wrong id: %s", id)
	}
	if id := EventID(AcceptQuickTask{App: "com.x"}); id != "" {
		t.Errorf("commands carry no event id, got %s", id)
	}
}
