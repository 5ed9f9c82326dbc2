package projection

// SessionKind tags the ephemeral UI-facing projection. The session is
// never authoritative: it is destroyed and recreated on every decision
// cycle, and its absence is the sole signal for the UI host to tear
// down its presentation.
type SessionKind string

const (
	SessionNone         SessionKind = "none"
	SessionQuickTask    SessionKind = "quick_task"
	SessionPostChoice   SessionKind = "post_quick_task_choice"
	SessionIntervention SessionKind = "intervention"
)

// Session is what, if anything, the UI host should currently render.
type Session struct {
	Kind         SessionKind       `json:"kind"`
	App          string            `json:"app,omitempty"`
	Intervention *InterventionView `json:"intervention,omitempty"`
}

// None is the empty session.
func None() Session {
	return Session{Kind: SessionNone}
}

// InterventionView is the read-only slice of the intervention context
// the renderer needs.
type InterventionView struct {
	State               InterventionState `json:"state"`
	SelectedCauses      []string          `json:"selected_causes,omitempty"`
	SelectedAlternative string            `json:"selected_alternative,omitempty"`
}

// Directive is a one-shot external action requested from the UI host's
// platform layer.
type Directive string

const (
	// DirectiveBackgroundApp pushes the target app out of the
	// foreground so no content keeps running behind a blocking screen.
	DirectiveBackgroundApp Directive = "background_app"
	// DirectiveReturnHome navigates to the launcher. Reserved for
	// normal intervention completion.
	DirectiveReturnHome Directive = "return_home"
)
