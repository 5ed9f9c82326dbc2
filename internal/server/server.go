package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mindgate/mindgate/internal/authority"
	"github.com/mindgate/mindgate/internal/engine"
	"github.com/mindgate/mindgate/internal/infrastructure/config"
	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/infrastructure/monitoring"
	"github.com/mindgate/mindgate/internal/monitor"
	"github.com/mindgate/mindgate/internal/protocol"
)

// Server wires the background daemon: foreground monitor, decision
// engine, timer authority, and the HTTP/WS surface for the UI host.
type Server struct {
	cfg       *config.Config
	log       *logging.Logger
	metrics   *monitoring.Metrics
	store     *authority.Store
	authority *authority.Authority
	monitor   *monitor.Monitor
	src       *monitor.ChanSource
	engine    *engine.Engine
	hub       *Hub
	router    *gin.Engine
	httpSrv   *http.Server

	mu    sync.RWMutex
	rules *config.Rules
}

// New builds a fully wired server from configuration. Raw platform
// focus events arrive through the ingest endpoint and feed the monitor.
func New(cfg *config.Config, rules *config.Rules, log *logging.Logger) (*Server, error) {
	metrics := monitoring.NewDefault("mindgate")

	store, err := authority.OpenStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	src := monitor.NewChanSource(64)
	mon := monitor.New(src, newClassifier(rules), cfg.Monitor.Debounce(), log, metrics)

	auth, err := authority.New(
		context.Background(),
		store,
		rules.QuickTask.Quota,
		mon.Current,
		cfg.Authority.SweepInterval(),
		log,
		metrics,
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init timer authority: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		log:       log.Named("server"),
		metrics:   metrics,
		store:     store,
		authority: auth,
		monitor:   mon,
		src:       src,
		rules:     rules,
	}

	s.hub = NewHub(s, 2*time.Second, log, metrics)
	s.engine = engine.New(rules, auth, cfg.Engine.GuardTTL(), s.emitVerdict, log, metrics)
	auth.SetSink(&authoritySink{server: s})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	if cfg.RateLimit.Enabled {
		router.Use(rateLimit(cfg.RateLimit))
	}

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.POST("/events/focus", s.handlePostFocus)
	router.GET("/state", s.handleState)
	router.GET("/rules", s.handleGetRules)
	router.PUT("/rules", s.handlePutRules)
	router.PUT("/quota", s.handlePutQuota)
	router.GET("/stream", s.hub.HandleConnection)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router = router
	return s, nil
}

func newClassifier(rules *config.Rules) *monitor.Classifier {
	return monitor.NewClassifier(rules.Infrastructure)
}

// Run starts all loops and serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.monitor.Run(ctx)
	go s.authority.Run(ctx)
	go s.hub.Run(ctx)
	go s.dispatchTransitions(ctx)

	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases persistent resources.
func (s *Server) Close() error {
	s.log.Sync()
	return s.store.Close()
}

// dispatchTransitions is the daemon's event loop: every semantic
// transition goes to the engine for a decision and to the UI host for
// session-cancellation tracking.
func (s *Server) dispatchTransitions(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-s.monitor.Transitions():
			if !ok {
				return
			}
			id := uuid.NewString()
			s.hub.Broadcast(protocol.TypeForegroundChanged, id, protocol.ForegroundChanged{
				Type:         protocol.TypeForegroundChanged,
				EventID:      id,
				App:          t.App,
				TransitionID: t.ID,
				TSMs:         t.At.UnixMilli(),
			})
			s.engine.HandleTransition(ctx, t)
		}
	}
}

// emitVerdict pushes an engine verdict onto the channel. The cycle ID
// doubles as the event ID, so the UI host's ack resolves the cycle.
func (s *Server) emitVerdict(v engine.Verdict) {
	s.hub.Broadcast(protocol.TypeVerdict, v.CycleID, protocol.Verdict{
		Type:            protocol.TypeVerdict,
		EventID:         v.CycleID,
		Kind:            v.Kind,
		App:             v.App,
		TransitionID:    v.TransitionID,
		IntentionActive: v.IntentionActive,
		TSMs:            time.Now().UnixMilli(),
	})
}

// HandleCommand applies a UI-host command to the timer authority.
func (s *Server) HandleCommand(ctx context.Context, msg any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	switch m := msg.(type) {
	case protocol.AcceptQuickTask:
		d := time.Duration(m.DurationMs) * time.Millisecond
		if _, err := s.authority.Activate(ctx, m.App, d); err != nil {
			return err
		}
		s.engine.Resolve(m.App)
		return nil
	case protocol.DeclineQuickTask:
		if err := s.authority.Clear(ctx, m.App); err != nil {
			return err
		}
		s.engine.Resolve(m.App)
		return nil
	case protocol.ChooseContinue:
		s.mu.RLock()
		d := s.rules.QuickTaskDuration()
		s.mu.RUnlock()
		granted, err := s.authority.Continue(ctx, m.App, d)
		if err != nil {
			return err
		}
		s.log.Info("post-choice continue", zap.String("app", m.App), zap.Bool("granted", granted))
		s.engine.Resolve(m.App)
		return nil
	case protocol.ChooseQuit:
		if err := s.authority.Quit(ctx, m.App); err != nil {
			return err
		}
		s.engine.Resolve(m.App)
		return nil
	case protocol.SetIntention:
		d := time.Duration(m.DurationMs) * time.Millisecond
		if err := s.authority.SetIntention(ctx, m.App, d); err != nil {
			return err
		}
		s.engine.Resolve(m.App)
		return nil
	default:
		return fmt.Errorf("unhandled command %T", msg)
	}
}

// OnAck resolves the engine cycle matching an acknowledged verdict.
func (s *Server) OnAck(eventID string) {
	s.engine.ResolveCycle(eventID)
}

// authoritySink fans authority events out to the UI-host channel and
// the engine's quota cache. It runs under the authority lock and only
// enqueues.
type authoritySink struct {
	server *Server
}

func (as *authoritySink) TimerSet(app string, expiresAt time.Time) {
	id := uuid.NewString()
	as.server.hub.Broadcast(protocol.TypeTimerSet, id, protocol.TimerSet{
		Type:        protocol.TypeTimerSet,
		EventID:     id,
		App:         app,
		ExpiresAtMs: expiresAt.UnixMilli(),
	})
}

func (as *authoritySink) TimerExpired(app string, phase authority.Phase, wasForeground bool) {
	id := uuid.NewString()
	as.server.hub.Broadcast(protocol.TypeTimerExpired, id, protocol.TimerExpired{
		Type:          protocol.TypeTimerExpired,
		EventID:       id,
		App:           app,
		Phase:         protocol.EntryPhase(phase),
		WasForeground: wasForeground,
		TSMs:          time.Now().UnixMilli(),
	})
}

func (as *authoritySink) QuotaChanged(value int) {
	as.server.engine.OnQuotaChanged(value)
	id := uuid.NewString()
	as.server.hub.Broadcast(protocol.TypeQuotaChanged, id, protocol.QuotaChanged{
		Type:    protocol.TypeQuotaChanged,
		EventID: id,
		Value:   value,
	})
}
