package monitor

import (
	"strings"

	"github.com/mindgate/mindgate/internal/infrastructure/config"
)

// SurfaceClass describes what a raw focus event's surface is.
type SurfaceClass string

const (
	ClassApp           SurfaceClass = "app"
	ClassOwnSurface    SurfaceClass = "own_surface"
	ClassLauncher      SurfaceClass = "launcher"
	ClassSystemOverlay SurfaceClass = "system_overlay"
)

// Infrastructure reports whether the class is an infrastructure surface:
// a window that must not be reported as the user leaving an app.
func (c SurfaceClass) Infrastructure() bool {
	return c != ClassApp
}

// Classifier maps surface identifiers to classes by prefix match.
// Misclassifying an infrastructure surface as a real app makes the
// engine end an active session prematurely, so the prefix lists err on
// the side of inclusion.
type Classifier struct {
	ownSurfaces    []string
	launchers      []string
	systemOverlays []string
}

// NewClassifier builds a classifier from the configured rules.
func NewClassifier(infra config.Infrastructure) *Classifier {
	return &Classifier{
		ownSurfaces:    infra.OwnSurfaces,
		launchers:      infra.Launchers,
		systemOverlays: infra.SystemOverlays,
	}
}

// Classify returns the class of a surface identifier.
func (c *Classifier) Classify(surface string) SurfaceClass {
	switch {
	case matchPrefix(c.ownSurfaces, surface):
		return ClassOwnSurface
	case matchPrefix(c.launchers, surface):
		return ClassLauncher
	case matchPrefix(c.systemOverlays, surface):
		return ClassSystemOverlay
	default:
		return ClassApp
	}
}

func matchPrefix(prefixes []string, surface string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(surface, p) {
			return true
		}
	}
	return false
}
