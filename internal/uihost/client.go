package uihost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/infrastructure/resilience"
	"github.com/mindgate/mindgate/internal/projection"
	"github.com/mindgate/mindgate/internal/protocol"
)

// seenCap bounds the redelivery dedupe window.
const seenCap = 512

var ErrNotConnected = errors.New("not connected to monitord")

// Client attaches the UI-hosting runtime to monitord: it consumes the
// event stream, acknowledges every event, deduplicates redeliveries,
// and carries user choices back as commands. It reconnects with capped
// backoff; the daemon retains unacknowledged events across reconnects.
type Client struct {
	serverURL string
	log       *logging.Logger
	backoff   *resilience.Backoff
	http      *retryablehttp.Client

	pm *projection.Manager

	mu    sync.Mutex
	ws    *websocket.Conn
	seen  map[string]struct{}
	seenQ []string
}

// NewClient creates a client for the daemon at serverURL (http scheme).
func NewClient(serverURL string, reconnectMin, reconnectMax time.Duration, log *logging.Logger) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 4
	httpClient.Logger = nil

	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		log:       log.Named("uihost"),
		backoff:   resilience.NewBackoff(reconnectMin, reconnectMax),
		http:      httpClient,
		seen:      make(map[string]struct{}),
	}
}

// SetManager attaches the projection manager. Must be called before
// Run; the manager is constructed with the client as its Commander.
func (c *Client) SetManager(pm *projection.Manager) {
	c.pm = pm
}

// Snapshot is the authoritative state fetched at attach time.
type Snapshot struct {
	Quota      int              `json:"quota"`
	Foreground string           `json:"foreground"`
	Intentions map[string]int64 `json:"intentions"`
}

// Run connects and consumes events until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		snap, err := c.bootstrap(ctx)
		if err != nil {
			c.log.Warn("bootstrap failed", zap.Error(err))
			if !c.backoff.Wait(ctx) {
				return
			}
			continue
		}
		c.log.Info("resynchronized",
			zap.Int("quota", snap.Quota),
			zap.String("foreground", snap.Foreground),
		)

		if err := c.consume(ctx); err != nil {
			c.log.Warn("stream closed", zap.Error(err))
		}
		if !c.backoff.Wait(ctx) {
			return
		}
	}
}

// bootstrap fetches the authoritative snapshot before attaching to the
// stream. Caches are resynchronized explicitly, never assumed fresh.
func (c *Client) bootstrap(ctx context.Context) (*Snapshot, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", c.serverURL+"/state", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("state fetch returned %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &snap, nil
}

func (c *Client) consume(ctx context.Context) error {
	wsURL, err := streamURL(c.serverURL)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	c.backoff.Reset()
	c.log.Info("attached to event stream", zap.String("url", wsURL))

	done := make(chan struct{})
	defer func() {
		close(done)
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		ws.Close()
	}()

	go watchCancel(ctx, done, ws)

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := protocol.ParseEvent(raw)
		if err != nil {
			c.log.Warn("invalid event", zap.Error(err))
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch applies one event to the projection, then acknowledges it.
// Applying before acking keeps delivery at-least-once; the seen set
// makes redelivery harmless.
func (c *Client) dispatch(msg any) {
	id := protocol.EventID(msg)
	if id != "" && c.markSeen(id) {
		c.ack(id)
		return
	}

	switch m := msg.(type) {
	case protocol.Verdict:
		c.pm.HandleVerdict(m)
	case protocol.TimerExpired:
		c.pm.HandleTimerExpired(m)
	case protocol.ForegroundChanged:
		c.pm.HandleForeground(m)
	case protocol.TimerSet:
		c.log.Debug("timer set", zap.String("app", m.App), zap.Int64("expires_at_ms", m.ExpiresAtMs))
	case protocol.QuotaChanged:
		c.log.Debug("quota changed", zap.Int("value", m.Value))
	}

	if id != "" {
		c.ack(id)
	}
}

// markSeen records an event ID, reporting whether it was already seen.
func (c *Client) markSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[id]; dup {
		return true
	}
	c.seen[id] = struct{}{}
	c.seenQ = append(c.seenQ, id)
	if len(c.seenQ) > seenCap {
		delete(c.seen, c.seenQ[0])
		c.seenQ = c.seenQ[1:]
	}
	return false
}

func (c *Client) ack(eventID string) {
	if err := c.send(protocol.Ack{Type: protocol.TypeAck, EventID: eventID}); err != nil {
		c.log.Debug("ack not sent", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (c *Client) send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteJSON(msg)
}

// watchCancel closes the connection when the context ends, and exits
// with the read loop so reconnects do not accumulate watchers.
func watchCancel(ctx context.Context, done <-chan struct{}, conn io.Closer) {
	select {
	case <-ctx.Done():
		conn.Close()
	case <-done:
	}
}

func streamURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/stream"
	return u.String(), nil
}

// AcceptQuickTask implements projection.Commander.
func (c *Client) AcceptQuickTask(app string, duration time.Duration) error {
	return c.send(protocol.AcceptQuickTask{
		Type:       protocol.TypeAcceptQuickTask,
		App:        app,
		DurationMs: duration.Milliseconds(),
	})
}

// DeclineQuickTask implements projection.Commander.
func (c *Client) DeclineQuickTask(app string) error {
	return c.send(protocol.DeclineQuickTask{Type: protocol.TypeDeclineQuickTask, App: app})
}

// ChooseContinue implements projection.Commander.
func (c *Client) ChooseContinue(app string) error {
	return c.send(protocol.ChooseContinue{Type: protocol.TypeChooseContinue, App: app})
}

// ChooseQuit implements projection.Commander.
func (c *Client) ChooseQuit(app string) error {
	return c.send(protocol.ChooseQuit{Type: protocol.TypeChooseQuit, App: app})
}

// SetIntention implements projection.Commander.
func (c *Client) SetIntention(app string, duration time.Duration) error {
	return c.send(protocol.SetIntention{
		Type:       protocol.TypeSetIntention,
		App:        app,
		DurationMs: duration.Milliseconds(),
	})
}
