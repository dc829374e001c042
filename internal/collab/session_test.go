package collab

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"golang.org/x/text/language"

	"github.com/rayscope/rayscope/backend-go/internal/engine"
	"github.com/rayscope/rayscope/backend-go/internal/panel"
	"github.com/rayscope/rayscope/backend-go/internal/scene"
	"github.com/rayscope/rayscope/backend-go/internal/store"
)

// newLoadedSession returns a session that is not running; tests call its
// methods directly, standing in for the session goroutine.
func newLoadedSession(t *testing.T) *Session {
	t.Helper()
	s := newSession("view_test", engine.DefaultSettings(), panel.NewFormatter(language.English))
	s.applySnapshot(store.Snapshot{Dataset: scene.NewSampleDataset(1), Version: 1})
	return s
}

func newTestClient(s *Session, id string) *Client {
	return NewClient(nil, nil, "viewer_"+id, "Viewer "+id, s.ID, id)
}

func drain(t *testing.T, c *Client) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var m Message
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("client %s received invalid JSON: %v", c.ClientID, err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func types(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func equalTypes(got []Message, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i].Type != want[i] {
			return false
		}
	}
	return true
}

func event(t *testing.T, ev engine.InputEvent) *Message {
	t.Helper()
	return newMessage(TypeInput, ev)
}

func TestJoin(t *testing.T) {
	s := newLoadedSession(t)
	a := newTestClient(s, "a")
	b := newTestClient(s, "b")

	s.join(a)
	msgs := drain(t, a)
	if !equalTypes(msgs, TypeWelcome, TypeInfo, TypeFrame, TypePresenceState) {
		t.Fatalf("join sent %v", types(msgs))
	}

	var welcome WelcomePayload
	if err := json.Unmarshal(msgs[0].Payload, &welcome); err != nil {
		t.Fatal(err)
	}
	if welcome.SessionID != s.ID || welcome.ClientID != "a" || welcome.Viewer.ID != "viewer_a" {
		t.Errorf("welcome = %+v", welcome)
	}
	if welcome.Viewport.Width != 800 || welcome.Viewport.OffsetX != 400 {
		t.Errorf("welcome viewport = %+v", welcome.Viewport)
	}

	var info InfoPayload
	if err := json.Unmarshal(msgs[1].Payload, &info); err != nil {
		t.Fatal(err)
	}
	if !info.Ready || info.Panels.Parameters.Error {
		t.Errorf("info = %+v", info)
	}

	s.join(b)
	drain(t, b)
	if got := drain(t, a); !equalTypes(got, TypePresenceJoin) {
		t.Errorf("existing client got %v on join", types(got))
	}
}

func TestEveryViewChangeYieldsOneFrame(t *testing.T) {
	s := newLoadedSession(t)
	a, b := newTestClient(s, "a"), newTestClient(s, "b")
	s.join(a)
	s.join(b)
	drain(t, a)
	drain(t, b)

	s.handle(a, event(t, engine.InputEvent{Kind: engine.EventPointerDown, X: 100, Y: 100}))
	if got := drain(t, b); len(got) != 0 {
		t.Fatalf("pointerdown sent %v", types(got))
	}

	for i := 1; i <= 3; i++ {
		s.handle(a, event(t, engine.InputEvent{Kind: engine.EventPointerMove, X: 100 + float64(10*i), Y: 100}))
	}
	for _, c := range []*Client{a, b} {
		got := drain(t, c)
		if !equalTypes(got, TypeFrame, TypeFrame, TypeFrame) {
			t.Fatalf("client %s got %v for three moves", c.ClientID, types(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Seq <= got[i-1].Seq {
				t.Errorf("frame seq not increasing: %d then %d", got[i-1].Seq, got[i].Seq)
			}
		}
		var last engine.Frame
		if err := json.Unmarshal(got[2].Payload, &last); err != nil {
			t.Fatal(err)
		}
		if last.Viewport.OffsetX != 430 || last.Viewport.OffsetY != 300 {
			t.Errorf("offset after drag = (%v, %v), want (430, 300)", last.Viewport.OffsetX, last.Viewport.OffsetY)
		}
	}

	s.handle(a, event(t, engine.InputEvent{Kind: engine.EventPointerUp, X: 130, Y: 100}))
	s.handle(a, event(t, engine.InputEvent{Kind: engine.EventPointerMove, X: 200, Y: 200}))
	if got := drain(t, b); len(got) != 0 {
		t.Errorf("moves after pointerup sent %v", types(got))
	}
}

func TestWheelSendsZoomThenFrame(t *testing.T) {
	s := newLoadedSession(t)
	a := newTestClient(s, "a")
	s.join(a)
	drain(t, a)

	s.handle(a, event(t, engine.InputEvent{Kind: engine.EventWheel, X: 400, Y: 300, DeltaY: -100}))
	got := drain(t, a)
	if !equalTypes(got, TypeZoom, TypeFrame) {
		t.Fatalf("wheel sent %v", types(got))
	}
	var z ZoomPayload
	if err := json.Unmarshal(got[0].Payload, &z); err != nil {
		t.Fatal(err)
	}
	if math.Abs(z.Scale-1.1) > 1e-9 {
		t.Errorf("zoom display = %v, want 1.1", z.Scale)
	}

	s.handle(a, event(t, engine.InputEvent{Kind: engine.EventWheel, X: 400, Y: 300}))
	if got := drain(t, a); len(got) != 0 {
		t.Errorf("zero-delta wheel sent %v", types(got))
	}
}

func TestControls(t *testing.T) {
	s := newLoadedSession(t)
	a, b := newTestClient(s, "a"), newTestClient(s, "b")
	s.join(a)
	s.join(b)
	drain(t, a)
	drain(t, b)

	s.handle(a, newMessage(TypeControlLayer, LayerPayload{Layer: "projections", Enabled: true}))
	if got := drain(t, b); !equalTypes(got, TypeFrame) {
		t.Fatalf("layer toggle sent %v", types(got))
	}
	if !s.engine.Options().Projections {
		t.Error("projections layer not enabled")
	}

	s.handle(a, newMessage(TypeControlOpacity, ValuePayload{Value: 4}))
	drain(t, b)
	if got := s.engine.Options().RayOpacity; got != 1 {
		t.Errorf("ray opacity = %v, want clamped 1", got)
	}

	s.handle(a, newMessage(TypeControlZoom, ValuePayload{Value: 50}))
	got := drain(t, b)
	if !equalTypes(got, TypeZoom, TypeFrame) {
		t.Fatalf("zoom control sent %v", types(got))
	}
	var z ZoomPayload
	json.Unmarshal(got[0].Payload, &z)
	if z.Scale != engine.DefaultMaxScale {
		t.Errorf("zoom display = %v, want %v", z.Scale, engine.DefaultMaxScale)
	}

	s.handle(a, newMessage(TypeResize, ResizePayload{Width: 400, Height: 200}))
	drain(t, a)
	if vp := s.engine.Viewport(); vp.Width != 400 || vp.Height != 200 {
		t.Errorf("size after resize = %vx%v", vp.Width, vp.Height)
	}
}

func TestRejectedMessages(t *testing.T) {
	s := newLoadedSession(t)
	a, b := newTestClient(s, "a"), newTestClient(s, "b")
	s.join(a)
	s.join(b)
	drain(t, a)
	drain(t, b)

	bad := []*Message{
		newMessage(TypeControlLayer, LayerPayload{Layer: "stars"}),
		newMessage(TypeInput, map[string]string{"kind": "doubleclick"}),
		{Type: TypeControlOpacity, Payload: json.RawMessage(`"high"`)},
		{Type: "op.apply", Payload: json.RawMessage(`{}`)},
	}
	for _, msg := range bad {
		s.handle(a, msg)
		if got := drain(t, a); !equalTypes(got, TypeError) {
			t.Errorf("%s: sender got %v, want one error", msg.Type, types(got))
		}
		if got := drain(t, b); len(got) != 0 {
			t.Errorf("%s: other client got %v", msg.Type, types(got))
		}
	}
}

func TestInertSession(t *testing.T) {
	s := newSession("view_test", engine.DefaultSettings(), panel.NewFormatter(language.English))
	loadErr := errors.New("load dataset: HTTP status 404")
	s.applySnapshot(store.Snapshot{Err: loadErr, Version: 1})

	a := newTestClient(s, "a")
	s.join(a)
	msgs := drain(t, a)

	var info InfoPayload
	json.Unmarshal(msgs[1].Payload, &info)
	if info.Ready || info.Error != loadErr.Error() {
		t.Errorf("info = %+v", info)
	}
	for _, p := range info.Panels.All() {
		if !p.Error || p.Message != loadErr.Error() {
			t.Errorf("panel %s = %+v", p.ID, p)
		}
	}

	var frame engine.Frame
	json.Unmarshal(msgs[2].Payload, &frame)
	if len(frame.Commands) != 0 {
		t.Errorf("inert frame has %d commands", len(frame.Commands))
	}

	s.handle(a, event(t, engine.InputEvent{Kind: engine.EventPointerDown}))
	s.handle(a, event(t, engine.InputEvent{Kind: engine.EventPointerMove, X: 50, Y: 50}))
	if got := drain(t, a); len(got) != 0 {
		t.Errorf("input on inert session sent %v", types(got))
	}

	s.handle(a, newMessage(TypeControlZoom, ValuePayload{Value: 5}))
	got := drain(t, a)
	if !equalTypes(got, TypeZoom) {
		t.Fatalf("zoom on inert session sent %v", types(got))
	}
	var z ZoomPayload
	json.Unmarshal(got[0].Payload, &z)
	if z.Scale != 1 {
		t.Errorf("inert zoom display = %v, want unchanged 1", z.Scale)
	}
}

func TestApplySnapshot(t *testing.T) {
	s := newLoadedSession(t)
	a := newTestClient(s, "a")
	s.join(a)
	drain(t, a)

	s.applySnapshot(store.Snapshot{Err: errors.New("load dataset: boom"), Version: 3})
	if got := drain(t, a); !equalTypes(got, TypeInfo, TypeFrame) {
		t.Fatalf("failed reload sent %v", types(got))
	}
	if s.engine.Ready() {
		t.Error("failed reload kept the old dataset")
	}

	s.applySnapshot(store.Snapshot{Dataset: scene.NewSampleDataset(2), Version: 2})
	if got := drain(t, a); len(got) != 0 || s.engine.Ready() {
		t.Errorf("stale snapshot applied: %v", types(got))
	}
}

func TestPresenceInWorldCoordinates(t *testing.T) {
	s := newLoadedSession(t)
	a, b := newTestClient(s, "a"), newTestClient(s, "b")
	s.join(a)
	s.join(b)
	drain(t, a)
	drain(t, b)

	s.handle(a, newMessage(TypePresenceUpdate, PresencePayload{Cursor: &CursorPos{X: 400, Y: 300}}))
	if got := drain(t, a); len(got) != 0 {
		t.Errorf("sender got its own presence: %v", types(got))
	}
	got := drain(t, b)
	if !equalTypes(got, TypePresenceUpdate) {
		t.Fatalf("other client got %v", types(got))
	}
	var p PresencePayload
	json.Unmarshal(got[0].Payload, &p)
	if p.Cursor == nil || math.Abs(p.Cursor.X) > 1e-9 || math.Abs(p.Cursor.Y) > 1e-9 {
		t.Errorf("cursor = %+v, want world origin", p.Cursor)
	}
	if p.DisplayName != "Viewer a" || got[0].ClientID != "a" {
		t.Errorf("presence = %+v from %q", p, got[0].ClientID)
	}

	if all := s.presence.GetAll(); len(all) != 1 || all["a"] == nil {
		t.Errorf("presence state = %v", all)
	}
}

func TestLeave(t *testing.T) {
	s := newLoadedSession(t)
	a, b := newTestClient(s, "a"), newTestClient(s, "b")
	s.join(a)
	s.join(b)
	s.handle(a, newMessage(TypePresenceUpdate, PresencePayload{Cursor: &CursorPos{X: 1, Y: 1}}))
	drain(t, b)

	s.leave(a)
	for range a.send {
		// ends only once the channel is closed
	}
	if got := drain(t, b); !equalTypes(got, TypePresenceLeave) {
		t.Errorf("remaining client got %v", types(got))
	}
	if len(s.presence.GetAll()) != 0 {
		t.Error("presence kept after leave")
	}

	s.leave(a) // second leave is a no-op
	if s.Idle(s.CreatedAt) != 0 {
		t.Error("session with a client reports idle")
	}
	s.leave(b)
	if s.idleSince.Load() == 0 {
		t.Error("empty session not marked idle")
	}
}
