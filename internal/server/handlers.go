package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mindgate/mindgate/internal/infrastructure/config"
)

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "mindgate-monitord",
		"status":  "running",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"pending_events": s.hub.Pending(),
	})
}

// handleState returns the authoritative snapshot: quota, entries and
// intention timers, plus the current foreground app. A reattaching UI
// host uses it to resynchronize before consuming the event stream.
func (s *Server) handleState(c *gin.Context) {
	intentions := make(map[string]int64)
	for app, exp := range s.authority.Intentions() {
		intentions[app] = exp.UnixMilli()
	}
	c.JSON(http.StatusOK, gin.H{
		"quota":      s.authority.Quota(),
		"entries":    s.authority.Entries(),
		"intentions": intentions,
		"foreground": s.monitor.Current(),
	})
}

// handlePostFocus ingests one raw focus event from the platform
// accessibility adapter. Classification and debouncing happen in the
// monitor, not here.
func (s *Server) handlePostFocus(c *gin.Context) {
	var body struct {
		Surface string `json:"surface"`
		TSMs    int64  `json:"ts_ms"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Surface == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "surface is required"})
		return
	}
	at := time.Now()
	if body.TSMs > 0 {
		at = time.UnixMilli(body.TSMs)
	}
	s.src.Push(body.Surface, at)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Server) handleGetRules(c *gin.Context) {
	s.mu.RLock()
	rules := s.rules
	s.mu.RUnlock()
	c.JSON(http.StatusOK, rules)
}

// handlePutRules replaces the policy at runtime. The engine and the
// monitor's classifier pick the change up before the next decision. An
// edited quota value goes through the authority; an unchanged one
// leaves the remaining quota alone.
func (s *Server) handlePutRules(c *gin.Context) {
	var rules config.Rules
	if err := c.ShouldBindJSON(&rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := rules.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	prevQuota := s.rules.QuickTask.Quota
	s.rules = &rules
	s.mu.Unlock()
	s.engine.SetRules(&rules)
	s.monitor.SetClassifier(newClassifier(&rules))

	if rules.QuickTask.Quota != prevQuota {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.authority.SetQuota(ctx, rules.QuickTask.Quota); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// handlePutQuota applies an external quota edit. The authority persists
// it and announces it, so the engine cache reconciles before the next
// decision that depends on it.
func (s *Server) handlePutQuota(c *gin.Context) {
	var body struct {
		Value int `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.Value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quota must be non-negative"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := s.authority.SetQuota(ctx, body.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quota": body.Value})
}
