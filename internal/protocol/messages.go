package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants on the channel
// between monitord and the UI-hosting runtime.
type MessageType string

const (
	// Events pushed from monitord to the UI host runtime. Every event
	// carries an ID and must be acknowledged; unacknowledged events are
	// redelivered.
	TypeForegroundChanged MessageType = "foreground_changed"
	TypeVerdict           MessageType = "verdict"
	TypeTimerSet          MessageType = "timer_set"
	TypeTimerExpired      MessageType = "timer_expired"
	TypeQuotaChanged      MessageType = "quota_changed"

	// Commands sent from the UI host runtime to monitord.
	TypeAck              MessageType = "ack"
	TypeAcceptQuickTask  MessageType = "accept_quick_task"
	TypeDeclineQuickTask MessageType = "decline_quick_task"
	TypeChooseContinue   MessageType = "choose_continue"
	TypeChooseQuit       MessageType = "choose_quit"
	TypeSetIntention     MessageType = "set_intention"
)

// VerdictKind enumerates decision engine outcomes.
type VerdictKind string

const (
	VerdictShowQuickTask VerdictKind = "show_quick_task_dialog"
	VerdictNoQuickTask   VerdictKind = "no_quick_task_available"
)

// EntryPhase mirrors the timer authority's quick-task entry phases on
// the wire.
type EntryPhase string

const (
	PhaseDecision   EntryPhase = "decision"
	PhaseActive     EntryPhase = "active"
	PhasePostChoice EntryPhase = "post_choice"
)

var ErrUnsupportedType = errors.New("unsupported message type")

// Envelope carries just enough to route a raw payload.
type Envelope struct {
	Type MessageType `json:"type"`
}

// ForegroundChanged reports one semantic foreground transition. Bursts
// of raw platform events inside the debounce window collapse into a
// single transition with one TransitionID.
type ForegroundChanged struct {
	Type         MessageType `json:"type"`
	EventID      string      `json:"event_id"`
	App          string      `json:"app"`
	TransitionID string      `json:"transition_id"`
	TSMs         int64       `json:"ts_ms"`
}

// Verdict is the decision engine's single outcome for one qualifying
// entry into a monitored app. IntentionActive is evaluated at decision
// time so the receiver never re-reads authoritative state.
type Verdict struct {
	Type            MessageType `json:"type"`
	EventID         string      `json:"event_id"`
	Kind            VerdictKind `json:"kind"`
	App             string      `json:"app"`
	TransitionID    string      `json:"transition_id"`
	IntentionActive bool        `json:"intention_active"`
	TSMs            int64       `json:"ts_ms"`
}

// TimerSet reports that a quick-task timer became active.
type TimerSet struct {
	Type        MessageType `json:"type"`
	EventID     string      `json:"event_id"`
	App         string      `json:"app"`
	ExpiresAtMs int64       `json:"expires_at_ms"`
}

// TimerExpired reports a quick-task timer passing its deadline. Phase
// and WasForeground are captured at the moment of expiration and stay
// valid until the resulting decision is resolved.
type TimerExpired struct {
	Type          MessageType `json:"type"`
	EventID       string      `json:"event_id"`
	App           string      `json:"app"`
	Phase         EntryPhase  `json:"phase"`
	WasForeground bool        `json:"was_foreground"`
	TSMs          int64       `json:"ts_ms"`
}

// QuotaChanged reports the authoritative quota value after any mutation,
// including external configuration edits.
type QuotaChanged struct {
	Type    MessageType `json:"type"`
	EventID string      `json:"event_id"`
	Value   int         `json:"value"`
}

// Ack acknowledges receipt of one event.
type Ack struct {
	Type    MessageType `json:"type"`
	EventID string      `json:"event_id"`
}

// AcceptQuickTask activates the offered allowance. This is the only
// path that starts a timer.
type AcceptQuickTask struct {
	Type       MessageType `json:"type"`
	App        string      `json:"app"`
	DurationMs int64       `json:"duration_ms"`
}

// DeclineQuickTask resolves a pending offer without activation.
type DeclineQuickTask struct {
	Type MessageType `json:"type"`
	App  string      `json:"app"`
}

// ChooseContinue resolves the post-quick-task choice by granting a
// fresh allowance when quota remains.
type ChooseContinue struct {
	Type MessageType `json:"type"`
	App  string      `json:"app"`
}

// ChooseQuit resolves the post-quick-task choice by leaving the app.
type ChooseQuit struct {
	Type MessageType `json:"type"`
	App  string      `json:"app"`
}

// SetIntention starts a per-app suppression window after the user
// explicitly commits to continued use.
type SetIntention struct {
	Type       MessageType `json:"type"`
	App        string      `json:"app"`
	DurationMs int64       `json:"duration_ms"`
}

// ParseCommand decodes a client payload received by monitord.
func ParseCommand(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeAck:
		var msg Ack
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.EventID == "" {
			return nil, errors.New("invalid ack: missing event_id")
		}
		return msg, nil
	case TypeAcceptQuickTask:
		var msg AcceptQuickTask
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.App == "" || msg.DurationMs <= 0 {
			return nil, errors.New("invalid accept_quick_task")
		}
		return msg, nil
	case TypeDeclineQuickTask:
		var msg DeclineQuickTask
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.App == "" {
			return nil, errors.New("invalid decline_quick_task")
		}
		return msg, nil
	case TypeChooseContinue:
		var msg ChooseContinue
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.App == "" {
			return nil, errors.New("invalid choose_continue")
		}
		return msg, nil
	case TypeChooseQuit:
		var msg ChooseQuit
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.App == "" {
			return nil, errors.New("invalid choose_quit")
		}
		return msg, nil
	case TypeSetIntention:
		var msg SetIntention
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.App == "" || msg.DurationMs <= 0 {
			return nil, errors.New("invalid set_intention")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// ParseEvent decodes a server payload received by the UI host runtime.
func ParseEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeForegroundChanged:
		var msg ForegroundChanged
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.App == "" || msg.TransitionID == "" {
			return nil, errors.New("invalid foreground_changed")
		}
		return msg, nil
	case TypeVerdict:
		var msg Verdict
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.App == "" || (msg.Kind != VerdictShowQuickTask && msg.Kind != VerdictNoQuickTask) {
			return nil, errors.New("invalid verdict")
		}
		return msg, nil
	case TypeTimerSet:
		var msg TimerSet
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.App == "" || msg.ExpiresAtMs <= 0 {
			return nil, errors.New("invalid timer_set")
		}
		return msg, nil
	case TypeTimerExpired:
		var msg TimerExpired
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.App == "" || msg.Phase == "" {
			return nil, errors.New("invalid timer_expired")
		}
		return msg, nil
	case TypeQuotaChanged:
		var msg QuotaChanged
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Value < 0 {
			return nil, errors.New("invalid quota_changed: negative value")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// EventID extracts the event identifier from a parsed event, or "" when
// the message carries none.
func EventID(msg any) string {
	switch m := msg.(type) {
	case ForegroundChanged:
		return m.EventID
	case Verdict:
		return m.EventID
	case TimerSet:
		return m.EventID
	case TimerExpired:
		return m.EventID
	case QuotaChanged:
		return m.EventID
	default:
		return ""
	}
}
