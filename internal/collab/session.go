package collab

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rayscope/rayscope/backend-go/internal/engine"
	"github.com/rayscope/rayscope/backend-go/internal/panel"
	"github.com/rayscope/rayscope/backend-go/internal/store"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session closed")
)

const inboxSize = 64

// Session is one shared view of the dataset. All connected clients see the
// same viewport and layer toggles; any of them can pan, zoom or toggle.
//
// The engine, client set and load state belong to the session goroutine.
// Everything else reaches them by posting a closure to the inbox.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine    *engine.Engine
	formatter *panel.Formatter
	clients   map[string]*Client // clientID -> client
	presence  *PresenceManager

	version int64
	loadErr error
	dirty   bool

	inbox     chan func()
	done      chan struct{}
	cancel    context.CancelFunc
	idleSince atomic.Int64 // unix nanos, 0 while clients are connected
}

func newSession(id string, settings engine.Settings, formatter *panel.Formatter) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		engine:    engine.NewEngine(settings),
		formatter: formatter,
		clients:   make(map[string]*Client),
		presence:  NewPresenceManager(),
		inbox:     make(chan func(), inboxSize),
		done:      make(chan struct{}),
		cancel:    func() {},
	}

	ctrl := s.engine.Controller()
	ctrl.OnRedraw = func() { s.dirty = true }
	ctrl.OnZoom = func(scale float64) {
		s.broadcast(newMessage(TypeZoom, ZoomPayload{Scale: scale}), "")
	}

	s.idleSince.Store(s.CreatedAt.UnixNano())
	return s
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-ctx.Done():
			for id, c := range s.clients {
				delete(s.clients, id)
				close(c.send)
			}
			return
		}
	}
}

// post queues fn for the session goroutine. It reports false once the
// session has stopped.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Do runs fn against the session engine on the session goroutine and waits
// for it to finish.
func (s *Session) Do(ctx context.Context, fn func(e *engine.Engine)) error {
	finished := make(chan struct{})
	if !s.post(func() {
		defer close(finished)
		fn(s.engine)
	}) {
		return ErrSessionClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the session and disconnects its clients.
func (s *Session) Stop() {
	s.cancel()
}

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Idle reports how long the session has had no clients, or zero.
func (s *Session) Idle(now time.Time) time.Duration {
	since := s.idleSince.Load()
	if since == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, since))
}

// applySnapshot attaches the store's current dataset. Snapshots older than
// the one already applied are ignored.
func (s *Session) applySnapshot(snap store.Snapshot) {
	if snap.Version != 0 && snap.Version <= s.version {
		return
	}
	s.version = snap.Version
	s.loadErr = snap.Err
	s.engine.Load(snap.Dataset)

	s.broadcast(newMessage(TypeInfo, s.info()), "")
	s.broadcastFrame()
}

func (s *Session) info() InfoPayload {
	if sum := s.engine.Summary(); sum != nil {
		return InfoPayload{Ready: true, Panels: s.formatter.Format(*sum)}
	}
	err := s.loadErr
	if err == nil {
		err = store.ErrNoDataset
	}
	return InfoPayload{Error: err.Error(), Panels: panel.Error(err.Error())}
}

func (s *Session) join(c *Client) {
	s.clients[c.ClientID] = c
	s.idleSince.Store(0)

	c.Send(newMessage(TypeWelcome, WelcomePayload{
		SessionID: s.ID,
		ClientID:  c.ClientID,
		Viewer:    viewerOf(c),
		Viewport:  s.engine.Viewport(),
		Options:   s.engine.Options(),
	}))
	c.Send(newMessage(TypeInfo, s.info()))
	c.Send(s.frameMessage())
	if stateMsg := s.presence.StateMessage(); stateMsg != nil {
		c.Send(stateMsg)
	}

	joinMsg := newMessage(TypePresenceJoin, PresenceJoinPayload{
		ClientID:    c.ClientID,
		ViewerID:    c.ViewerID,
		DisplayName: c.DisplayName,
	})
	joinMsg.ViewerID = c.ViewerID
	s.broadcast(joinMsg, c.ClientID)

	slog.Info("client joined", "viewer", c.ViewerID, "session", s.ID)
}

func (s *Session) leave(c *Client) {
	if _, ok := s.clients[c.ClientID]; !ok {
		return
	}
	delete(s.clients, c.ClientID)
	close(c.send)
	s.presence.Remove(c.ClientID)
	if len(s.clients) == 0 {
		s.idleSince.Store(time.Now().UnixNano())
	}

	leaveMsg := newMessage(TypePresenceLeave, PresenceLeavePayload{
		ClientID: c.ClientID,
		ViewerID: c.ViewerID,
	})
	leaveMsg.ViewerID = c.ViewerID
	s.broadcast(leaveMsg, "")

	slog.Info("client left", "viewer", c.ViewerID, "session", s.ID)
}

// handle applies one client message. A message that changes the view
// results in exactly one frame for every client.
func (s *Session) handle(sender *Client, msg *Message) {
	s.dirty = false

	switch msg.Type {
	case TypeInput:
		var ev engine.InputEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			s.reject(sender, "invalid input payload")
			return
		}
		if _, err := engine.ParseEventKind(string(ev.Kind)); err != nil {
			s.reject(sender, err.Error())
			return
		}
		s.engine.HandleInput(ev)

	case TypeControlLayer:
		var p LayerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.reject(sender, "invalid layer payload")
			return
		}
		layer, err := engine.ParseLayer(p.Layer)
		if err != nil {
			s.reject(sender, err.Error())
			return
		}
		s.engine.SetLayer(layer, p.Enabled)
		s.dirty = true

	case TypeControlOpacity:
		var p ValuePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.reject(sender, "invalid opacity payload")
			return
		}
		s.engine.SetRayOpacity(p.Value)
		s.dirty = true

	case TypeControlZoom:
		var p ValuePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.reject(sender, "invalid zoom payload")
			return
		}
		scale := s.engine.SetZoom(p.Value)
		if !s.engine.Ready() {
			sender.Send(newMessage(TypeZoom, ZoomPayload{Scale: scale}))
		}

	case TypeResize:
		var p ResizePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			s.reject(sender, "invalid resize payload")
			return
		}
		s.engine.Resize(p.Width, p.Height)
		s.dirty = true

	case TypePresenceUpdate:
		s.handlePresenceUpdate(sender, msg)

	default:
		slog.Warn("unknown message type", "type", msg.Type, "viewer", sender.ViewerID)
		s.reject(sender, "unknown message type "+msg.Type)
	}

	if s.dirty {
		s.broadcastFrame()
	}
}

func (s *Session) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName
	if presence.Cursor != nil {
		x, y := s.engine.ScreenToWorld(presence.Cursor.X, presence.Cursor.Y)
		presence.Cursor = &CursorPos{X: x, Y: y}
	}
	s.presence.Update(sender.ClientID, &presence)

	outMsg := newMessage(TypePresenceUpdate, presence)
	outMsg.ClientID = sender.ClientID
	outMsg.ViewerID = sender.ViewerID
	s.broadcast(outMsg, sender.ClientID)
}

func (s *Session) reject(c *Client, reason string) {
	c.Send(newMessage(TypeError, ErrorPayload{Message: reason}))
}

func (s *Session) frameMessage() *Message {
	frame := s.engine.Frame()
	msg := newMessage(TypeFrame, frame)
	msg.SessionID = s.ID
	msg.Seq = frame.Seq
	return msg
}

func (s *Session) broadcastFrame() {
	s.dirty = false
	s.broadcast(s.frameMessage(), "")
}

// broadcast sends msg to every client except excludeClientID. The message
// is encoded once.
func (s *Session) broadcast(msg *Message, excludeClientID string) {
	if len(s.clients) == 0 {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}
	for _, c := range s.clients {
		if c.ClientID != excludeClientID {
			c.enqueue(data)
		}
	}
}
