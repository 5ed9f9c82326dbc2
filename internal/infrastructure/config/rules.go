package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Rules is the externally configured policy: which apps are monitored,
// which surfaces are infrastructure, and the timing/quota parameters.
// The core treats it as read-only input.
type Rules struct {
	MonitoredApps  []string       `yaml:"monitored_apps" json:"monitored_apps"`
	Infrastructure Infrastructure `yaml:"infrastructure" json:"infrastructure"`
	QuickTask      QuickTaskRules `yaml:"quick_task" json:"quick_task"`
	Intention      IntentionRules `yaml:"intention" json:"intention"`
}

// Infrastructure lists surface identifiers that must never be treated as
// a behavioral app exit: the host app's own overlays, launchers, and
// system overlay windows. Entries are matched as identifier prefixes.
type Infrastructure struct {
	OwnSurfaces    []string `yaml:"own_surfaces" json:"own_surfaces"`
	Launchers      []string `yaml:"launchers" json:"launchers"`
	SystemOverlays []string `yaml:"system_overlays" json:"system_overlays"`
}

// QuickTaskRules configures the short timed allowance.
type QuickTaskRules struct {
	DefaultDurationMs int64 `yaml:"default_duration_ms" json:"default_duration_ms"`
	Quota             int   `yaml:"quota" json:"quota"`
}

// IntentionRules configures the per-app suppression window.
type IntentionRules struct {
	DefaultDurationMs int64 `yaml:"default_duration_ms" json:"default_duration_ms"`
}

// DefaultRules returns a usable baseline policy.
func DefaultRules() *Rules {
	return &Rules{
		Infrastructure: Infrastructure{
			OwnSurfaces:    []string{"com.mindgate"},
			Launchers:      []string{"com.android.launcher", "com.google.android.apps.nexuslauncher"},
			SystemOverlays: []string{"com.android.systemui"},
		},
		QuickTask: QuickTaskRules{DefaultDurationMs: 120000, Quota: 3},
		Intention: IntentionRules{DefaultDurationMs: 600000},
	}
}

// LoadRules reads and validates a rules file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses YAML rules and applies defaults for omitted fields.
func ParseRules(data []byte) (*Rules, error) {
	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadRulesOrDefault loads rules, falling back to defaults when the file
// does not exist.
func LoadRulesOrDefault(path string) *Rules {
	rules, err := LoadRules(path)
	if err != nil {
		return DefaultRules()
	}
	return rules
}

// Validate checks rule invariants.
func (r *Rules) Validate() error {
	if r.QuickTask.Quota < 0 {
		return fmt.Errorf("quick_task.quota must be non-negative, got %d", r.QuickTask.Quota)
	}
	if r.QuickTask.DefaultDurationMs <= 0 {
		return fmt.Errorf("quick_task.default_duration_ms must be positive, got %d", r.QuickTask.DefaultDurationMs)
	}
	if r.Intention.DefaultDurationMs <= 0 {
		return fmt.Errorf("intention.default_duration_ms must be positive, got %d", r.Intention.DefaultDurationMs)
	}
	return nil
}

// Monitored reports whether the given app identifier is in the monitored
// set.
func (r *Rules) Monitored(app string) bool {
	for _, m := range r.MonitoredApps {
		if m == app {
			return true
		}
	}
	return false
}

// QuickTaskDuration returns the configured allowance duration.
func (r *Rules) QuickTaskDuration() time.Duration {
	return time.Duration(r.QuickTask.DefaultDurationMs) * time.Millisecond
}

// IntentionDuration returns the configured suppression duration.
func (r *Rules) IntentionDuration() time.Duration {
	return time.Duration(r.Intention.DefaultDurationMs) * time.Millisecond
}
