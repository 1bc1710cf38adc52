// Package bridge keeps a live App per websocket connection. The browser
// forwards DOM events as JSON frames; after every frame the session
// answers with the re-rendered body and any address change.
//
// Frames from the browser:
//
//	{"type":"navigate","uri":"/users/7"}
//	{"type":"event","path":"#save","event":"click"}
//	{"type":"event","path":"0.1.2","event":"input","value":"ada"}
//	{"type":"event","path":"#q","event":"keyup","key":"Enter","keyCode":13}
//
// Frames to the browser:
//
//	{"type":"html","html":"<main b-view>..."}
//	{"type":"location","uri":"/users/7"}
//	{"type":"error","error":"..."}
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pthm/bindery"
	"github.com/pthm/bindery/internal/logging"
	"github.com/pthm/bindery/lib/dom"
	"github.com/pthm/bindery/lib/listen"
)

// Frame types.
const (
	TypeNavigate = "navigate"
	TypeEvent    = "event"
	TypeHTML     = "html"
	TypeLocation = "location"
	TypeError    = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxFrame   = 64 << 10
)

// Message is one frame in either direction.
type Message struct {
	Type    string  `json:"type"`
	URI     string  `json:"uri,omitempty"`
	Path    string  `json:"path,omitempty"`
	Event   string  `json:"event,omitempty"`
	Value   *string `json:"value"` // nil when the browser sent no value
	Key     string  `json:"key,omitempty"`
	KeyCode int     `json:"keyCode,omitempty"`
	HTML    string  `json:"html,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// Handler upgrades requests and runs one session per connection.
type Handler struct {
	Build    bindery.BuildFunc
	Log      *slog.Logger
	Upgrader websocket.Upgrader
}

// New returns a handler building one App per connection with build.
func New(build bindery.BuildFunc, log *slog.Logger) *Handler {
	return &Handler{Build: build, Log: logging.OrDiscard(log)}
}

// ServeHTTP upgrades the connection and serves it until it closes. The
// first address is taken from the "uri" query parameter, "/" by default.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("upgrade", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	app, err := h.Build(ctx)
	if err != nil {
		h.Log.Error("build app", "err", err)
		_ = conn.WriteJSON(Message{Type: TypeError, Error: err.Error()})
		return
	}

	s := newSession(conn, app, h.Log.With("remote", conn.RemoteAddr().String()))
	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("close app", "err", err)
		}
	}()

	uri := r.URL.Query().Get("uri")
	if uri == "" {
		uri = "/"
	}
	go s.ping(ctx)
	s.run(ctx, uri)
}

// session owns one App. Only the read loop touches the App; writes are
// serialized by mu.
type session struct {
	conn *websocket.Conn
	app  *bindery.App
	log  *slog.Logger

	mu      sync.Mutex
	pending []Message
}

func newSession(conn *websocket.Conn, app *bindery.App, log *slog.Logger) *session {
	s := &session{conn: conn, app: app, log: log}
	app.OnError = func(err error) {
		s.log.Error("handler failed", "err", err)
		s.queue(Message{Type: TypeError, Error: err.Error()})
	}
	doc := app.Document()
	doc.AddEventListener(doc.Root, listen.NavigateEvent, func(ev *dom.Event) {
		s.queue(Message{Type: TypeLocation, URI: ev.Value})
	})
	return s
}

func (s *session) run(ctx context.Context, uri string) {
	s.conn.SetReadLimit(maxFrame)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	if err := s.handle(ctx, Message{Type: TypeNavigate, URI: uri}); err != nil {
		s.log.Warn("initial navigation", "uri", uri, "err", err)
	}
	if err := s.flush(); err != nil {
		s.log.Warn("write", "err", err)
		return
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("read", "err", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.queue(Message{Type: TypeError, Error: fmt.Sprintf("can't parse: %v", err)})
		} else if err := s.handle(ctx, msg); err != nil {
			s.queue(Message{Type: TypeError, Error: err.Error()})
		}
		if err := s.flush(); err != nil {
			s.log.Warn("write", "err", err)
			return
		}
	}
}

// handle applies one browser frame to the App and queues the rendered
// body.
func (s *session) handle(ctx context.Context, msg Message) error {
	switch msg.Type {
	case TypeNavigate:
		err := s.app.Navigate(ctx, msg.URI)
		s.queue(Message{Type: TypeLocation, URI: s.app.Nav().Current.URI})
		s.queueBody()
		return err
	case TypeEvent:
		if msg.Event == "" {
			return errors.New("bridge: event frame without event type")
		}
		n, err := s.app.Document().NodeAt(msg.Path)
		if err != nil {
			return err
		}
		ev := &dom.Event{Type: msg.Event, Key: msg.Key, KeyCode: msg.KeyCode}
		if msg.Value != nil {
			ev.Value, ev.HasValue = *msg.Value, true
		}
		s.app.Dispatch(n, ev)
		s.queueBody()
		return nil
	}
	return fmt.Errorf("bridge: unknown frame type %q", msg.Type)
}

func (s *session) queueBody() {
	doc := s.app.Document()
	s.queue(Message{Type: TypeHTML, HTML: dom.InnerHTML(doc.Body())})
}

func (s *session) queue(m Message) {
	s.mu.Lock()
	s.pending = append(s.pending, m)
	s.mu.Unlock()
}

func (s *session) flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.pending {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteJSON(m); err != nil {
			s.pending = nil
			return err
		}
	}
	s.pending = nil
	return nil
}

func (s *session) ping(ctx context.Context) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
