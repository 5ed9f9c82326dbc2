package monitor

import (
	"testing"
	"time"

	"github.com/mindgate/mindgate/internal/infrastructure/config"
	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/infrastructure/monitoring"
)

func testInfra() config.Infrastructure {
	return config.Infrastructure{
		OwnSurfaces:    []string{"com.mindgate"},
		Launchers:      []string{"com.android.launcher"},
		SystemOverlays: []string{"com.android.systemui"},
	}
}

func newTestMonitor() *Monitor {
	return New(NewChanSource(16), NewClassifier(testInfra()), 500*time.Millisecond, logging.NewNop(), monitoring.NewTest())
}

func drain(m *Monitor) []Transition {
	var out []Transition
	for {
		select {
		case t := <-m.Transitions():
			out = append(out, t)
		default:
			return out
		}
	}
}

func TestClassifier(t *testing.T) {
	cls := NewClassifier(testInfra())
	cases := []struct {
		surface string
		want    SurfaceClass
	}{
		{"com.instagram.android", ClassApp},
		{"com.mindgate.overlay.quicktask", ClassOwnSurface},
		{"com.android.launcher3", ClassLauncher},
		{"com.android.systemui.shade", ClassSystemOverlay},
	}
	for _, tc := range cases {
		if got := cls.Classify(tc.surface); got != tc.want {
			t.Errorf("Classify(%s) = %s, want %s", tc.surface, got, tc.want)
		}
	}
	if ClassApp.Infrastructure() {
		t.Error("real apps are not infrastructure")
	}
	if !ClassLauncher.Infrastructure() {
		t.Error("launchers are infrastructure")
	}
}

func TestAppChangeEmitsTransition(t *testing.T) {
	m := newTestMonitor()
	at := time.Now()

	m.handle(RawEvent{Surface: "com.instagram.android", At: at})

	ts := drain(m)
	if len(ts) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(ts))
	}
	if ts[0].App != "com.instagram.android" {
		t.Errorf("wrong app: %s", ts[0].App)
	}
	if ts[0].ID == "" {
		t.Error("transition missing id")
	}
}

func TestRepeatedSurfaceSuppressed(t *testing.T) {
	m := newTestMonitor()
	at := time.Now()

	m.handle(RawEvent{Surface: "com.instagram.android", At: at})
	m.handle(RawEvent{Surface: "com.instagram.android", At: at.Add(time.Second)})

	if ts := drain(m); len(ts) != 1 {
		t.Fatalf("expected 1 transition for repeated surface, got %d", len(ts))
	}
}

func TestInfrastructureSurfacesSuppressed(t *testing.T) {
	m := newTestMonitor()
	at := time.Now()

	m.handle(RawEvent{Surface: "com.instagram.android", At: at})
	drain(m)

	// Notification shade, launcher gesture, own overlay: none of these
	// is the user leaving Instagram.
	m.handle(RawEvent{Surface: "com.android.systemui.shade", At: at.Add(time.Second)})
	m.handle(RawEvent{Surface: "com.android.launcher3", At: at.Add(2 * time.Second)})
	m.handle(RawEvent{Surface: "com.mindgate.overlay", At: at.Add(3 * time.Second)})

	if ts := drain(m); len(ts) != 0 {
		t.Fatalf("infrastructure surfaces produced %d transitions", len(ts))
	}
	if m.Current() != "com.instagram.android" {
		t.Errorf("infrastructure surface leaked into Current: %s", m.Current())
	}
}

func TestFlickerCollapsesIntoOneTransition(t *testing.T) {
	m := newTestMonitor()
	at := time.Now()

	m.handle(RawEvent{Surface: "com.instagram.android", At: at})
	m.handle(RawEvent{Surface: "com.tiktok.android", At: at.Add(100 * time.Millisecond)})
	// Bounce back to the previous app inside the validity window.
	m.handle(RawEvent{Surface: "com.instagram.android", At: at.Add(200 * time.Millisecond)})

	ts := drain(m)
	if len(ts) != 2 {
		t.Fatalf("expected flicker to collapse, got %d transitions", len(ts))
	}
	if ts[0].App != "com.instagram.android" || ts[1].App != "com.tiktok.android" {
		t.Errorf("wrong transition sequence: %s, %s", ts[0].App, ts[1].App)
	}
}

func TestReturnAfterWindowIsNewTransition(t *testing.T) {
	m := newTestMonitor()
	at := time.Now()

	m.handle(RawEvent{Surface: "com.instagram.android", At: at})
	m.handle(RawEvent{Surface: "com.tiktok.android", At: at.Add(100 * time.Millisecond)})
	m.handle(RawEvent{Surface: "com.instagram.android", At: at.Add(time.Second)})

	if ts := drain(m); len(ts) != 3 {
		t.Fatalf("expected 3 transitions outside the window, got %d", len(ts))
	}
}

func TestCurrentTracksFlickeredSurface(t *testing.T) {
	m := newTestMonitor()
	at := time.Now()

	m.handle(RawEvent{Surface: "com.instagram.android", At: at})
	m.handle(RawEvent{Surface: "com.tiktok.android", At: at.Add(100 * time.Millisecond)})
	m.handle(RawEvent{Surface: "com.instagram.android", At: at.Add(200 * time.Millisecond)})

	// Suppressed as a transition, but still the real foreground for
	// time-of-truth capture.
	if m.Current() != "com.instagram.android" {
		t.Errorf("Current = %s, want com.instagram.android", m.Current())
	}
}

func TestSetClassifierSwap(t *testing.T) {
	m := newTestMonitor()
	at := time.Now()

	m.handle(RawEvent{Surface: "org.custom.launcher", At: at})
	if ts := drain(m); len(ts) != 1 {
		t.Fatalf("unlisted surface should be an app, got %d transitions", len(ts))
	}

	infra := testInfra()
	infra.Launchers = append(infra.Launchers, "org.custom.launcher")
	m.SetClassifier(NewClassifier(infra))

	m.handle(RawEvent{Surface: "com.instagram.android", At: at.Add(time.Second)})
	drain(m)
	m.handle(RawEvent{Surface: "org.custom.launcher", At: at.Add(2 * time.Second)})
	if ts := drain(m); len(ts) != 0 {
		t.Fatalf("reclassified launcher still emitted %d transitions", len(ts))
	}
}
