package collab

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rayscope/rayscope/backend-go/internal/auth"
	"github.com/rayscope/rayscope/backend-go/internal/engine"
	"github.com/rayscope/rayscope/backend-go/internal/panel"
	"github.com/rayscope/rayscope/backend-go/internal/store"
	"github.com/rayscope/rayscope/backend-go/internal/typeid"
)

const (
	DefaultIdleTimeout = 30 * time.Minute
	reapInterval       = time.Minute
)

// Hub owns the viewing sessions. Each session runs its own goroutine; the
// hub routes clients to them and hands every store change to all of them.
type Hub struct {
	store     *store.Store
	settings  engine.Settings
	formatter *panel.Formatter

	// IdleTimeout is how long a session without clients survives.
	IdleTimeout time.Duration

	ctx  context.Context
	stop context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*Session // sessionID -> session
}

// NewHub creates a hub whose sessions show st's dataset. st may be nil, in
// which case sessions stay inert.
func NewHub(st *store.Store, settings engine.Settings, formatter *panel.Formatter) *Hub {
	ctx, stop := context.WithCancel(context.Background())
	h := &Hub{
		store:       st,
		settings:    settings,
		formatter:   formatter,
		IdleTimeout: DefaultIdleTimeout,
		ctx:         ctx,
		stop:        stop,
		sessions:    make(map[string]*Session),
	}
	if st != nil {
		st.Watch(h.datasetChanged)
	}
	return h
}

// Run reaps idle sessions until ctx is cancelled, then stops every
// session.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	defer h.stop()

	for {
		select {
		case now := <-ticker.C:
			h.reap(now)
		case <-ctx.Done():
			return
		}
	}
}

// Register attaches client to its session. Messages the client reads
// afterwards are queued behind the join. A client whose session is gone has
// its send channel closed, which ends its write pump.
func (h *Hub) Register(client *Client) {
	s, err := h.Session(client.SessionID)
	if err != nil || !s.post(func() { s.join(client) }) {
		slog.Warn("client for unknown session", "session", client.SessionID, "viewer", client.ViewerID)
		close(client.send)
	}
}

func (h *Hub) Unregister(client *Client) {
	s, err := h.Session(client.SessionID)
	if err != nil {
		return
	}
	s.post(func() { s.leave(client) })
}

// CreateOptions customises a new session. Zero sizes use the hub settings;
// nil Options uses the default layers.
type CreateOptions struct {
	Width   float64               `json:"width"`
	Height  float64               `json:"height"`
	Options *engine.RenderOptions `json:"options"`
}

// CreateSession starts a new session showing the current dataset.
func (h *Hub) CreateSession(opts CreateOptions) *Session {
	settings := h.settings
	if positive(opts.Width) {
		settings.Width = opts.Width
	}
	if positive(opts.Height) {
		settings.Height = opts.Height
	}

	s := newSession(typeid.NewSessionID(), settings, h.formatter)
	if opts.Options != nil {
		s.engine.SetOptions(*opts.Options)
	}

	ctx, cancel := context.WithCancel(h.ctx)
	s.cancel = cancel

	// The snapshot is taken under the lock so a concurrent store change
	// either sees this session or is already part of the snapshot.
	h.mu.Lock()
	s.applySnapshot(h.snapshot())
	h.sessions[s.ID] = s
	h.mu.Unlock()

	go s.run(ctx)

	slog.Info("session created", "session", s.ID)
	return s
}

// Session returns the session with id.
func (h *Hub) Session(id string) (*Session, error) {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Sessions returns the number of live sessions.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// CloseSession stops a session and forgets it.
func (h *Hub) CloseSession(id string) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Stop()
	slog.Info("session closed", "session", id)
	return nil
}

func (h *Hub) snapshot() store.Snapshot {
	if h.store == nil {
		return store.Snapshot{Err: store.ErrNoDataset}
	}
	return h.store.Snapshot()
}

func (h *Hub) dispatch(sender *Client, msg *Message) {
	s, err := h.Session(sender.SessionID)
	if err != nil {
		return
	}
	s.post(func() { s.handle(sender, msg) })
}

// replyError sends an error message to sender from its session goroutine.
// It is dropped when the session has stopped or no longer holds sender,
// since the session owns and closes the client's send channel.
func (h *Hub) replyError(sender *Client, reason string) {
	s, err := h.Session(sender.SessionID)
	if err != nil {
		return
	}
	s.post(func() {
		if s.clients[sender.ClientID] == sender {
			s.reject(sender, reason)
		}
	})
}

// datasetChanged runs on the goroutine that changed the store, so it must
// not wait on busy sessions. Sessions drop out-of-order snapshots by
// version.
func (h *Hub) datasetChanged(snap store.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		go s.post(func() { s.applySnapshot(snap) })
	}
}

func (h *Hub) reap(now time.Time) {
	if h.IdleTimeout <= 0 {
		return
	}
	h.mu.RLock()
	var idle []string
	for id, s := range h.sessions {
		if s.Idle(now) > h.IdleTimeout {
			idle = append(idle, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range idle {
		h.CloseSession(id)
	}
}

func viewerOf(c *Client) auth.Viewer {
	return auth.Viewer{ID: c.ViewerID, DisplayName: c.DisplayName}
}

func positive(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}
