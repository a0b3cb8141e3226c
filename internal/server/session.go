package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/openmeetings/meetsearch/internal/models"
	"github.com/openmeetings/meetsearch/internal/search"
	"github.com/openmeetings/meetsearch/internal/urlstate"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Intent types a session client may send.
const (
	IntentInput     = "input"
	IntentKeyphrase = "keyphrase"
	IntentBody      = "body"
	IntentDates     = "dates"
	IntentLoad      = "load"
)

// Event types pushed to a session client.
const (
	EventSession = "session"
	EventState   = "state"
	EventError   = "error"
)

// Intent is a client message. Text is used by input and keyphrase, Body by body ("all" or
// null clears it), DateStart/DateEnd (yyyy-mm-dd, empty clears) by dates, and Query (a URL
// query string) by load.
type Intent struct {
	Type      string  `json:"type"`
	Text      string  `json:"text,omitempty"`
	Body      *string `json:"body,omitempty"`
	DateStart string  `json:"dateStart,omitempty"`
	DateEnd   string  `json:"dateEnd,omitempty"`
	Query     string  `json:"query,omitempty"`
}

// Event is a server message.
type Event struct {
	Type    string              `json:"type"`
	Session string              `json:"session,omitempty"`
	State   *models.SearchState `json:"state,omitempty"`
	Query   string              `json:"query,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// session is one websocket connection driving its own controller. State events are coalesced
// into latest so a slow client always receives the newest snapshot; other events are queued on
// send.
type session struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	ready  chan struct{}
	ctrl   *search.Controller
	loc    *time.Location
	logger *zap.Logger

	mu     sync.Mutex
	latest []byte
	closed bool
}

func newSession(id string, conn *websocket.Conn, loc *time.Location, logger *zap.Logger) *session {
	return &session{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		ready:  make(chan struct{}, 1),
		loc:    loc,
		logger: logger,
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	req, err := urlstate.Decode(r.URL.Query(), s.location)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	sess := newSession(id, conn, s.location, s.logger.With(zap.String("session", id)))
	sess.ctrl = s.newController(
		search.WithLogger(sess.logger),
		search.WithUpdateHandler(sess.pushState),
		search.WithErrorHandler(sess.pushError),
	)
	s.sessions.add(sess)
	sess.logger.Debug("session opened")

	sess.enqueue(Event{Type: EventSession, Session: id})
	go sess.writePump()
	sess.ctrl.Load(req)
	go func() {
		sess.readPump()
		s.sessions.remove(sess)
		sess.logger.Debug("session closed")
	}()
}

// readPump applies client intents until the connection fails or closes.
func (s *session) readPump() {
	defer func() {
		s.close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			break
		}
		var in Intent
		if err := json.Unmarshal(data, &in); err != nil {
			s.enqueue(Event{Type: EventError, Error: "invalid intent: " + err.Error()})
			continue
		}
		if err := s.apply(in); err != nil {
			s.enqueue(Event{Type: EventError, Error: err.Error()})
		}
	}
}

// writePump sends queued events and the latest state, and keeps the connection alive with
// pings. Queued events go out before a pending state.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			if !s.write(message, ok) {
				return
			}
		case <-s.ready:
			if !s.flush() {
				return
			}
			if message := s.takeState(); message != nil && !s.write(message, true) {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// write sends one message, or the close frame once send is closed. It reports whether the
// pump should keep going.
func (s *session) write(message []byte, ok bool) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	if !ok {
		s.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
		return false
	}
	return s.conn.WriteMessage(websocket.TextMessage, message) == nil
}

// flush writes the events already queued on send.
func (s *session) flush() bool {
	for {
		select {
		case message, ok := <-s.send:
			if !s.write(message, ok) {
				return false
			}
		default:
			return true
		}
	}
}

func (s *session) apply(in Intent) error {
	switch in.Type {
	case IntentInput:
		s.ctrl.Input(in.Text)
	case IntentKeyphrase:
		s.ctrl.NewKeyphrase(in.Text)
	case IntentBody:
		body := in.Body
		if body != nil && (*body == "" || *body == urlstate.AllBodies) {
			body = nil
		}
		s.ctrl.SelectBody(body)
	case IntentDates:
		start, err := urlstate.ParseDate(in.DateStart, s.loc)
		if err != nil {
			return err
		}
		end, err := urlstate.ParseDate(in.DateEnd, s.loc)
		if err != nil {
			return err
		}
		s.ctrl.SetDateRange(start, end)
	case IntentLoad:
		values, err := url.ParseQuery(in.Query)
		if err != nil {
			return fmt.Errorf("invalid query: %w", err)
		}
		req, err := urlstate.Decode(values, s.loc)
		if err != nil {
			return err
		}
		s.ctrl.Load(req)
	default:
		return fmt.Errorf("unknown intent %q", in.Type)
	}
	return nil
}

// pushState and pushError run under the controller lock and must not block. A snapshot not
// yet written is replaced by the newer one.
func (s *session) pushState(st models.SearchState) {
	data, err := json.Marshal(Event{Type: EventState, State: &st, Query: urlstate.EncodeState(st).Encode()})
	if err != nil {
		s.logger.Error("failed to encode session state", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.latest = data
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// takeState returns the pending snapshot and clears it.
func (s *session) takeState() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.latest
	s.latest = nil
	return data
}

func (s *session) pushError(err error) {
	_, msg := statusFor(err)
	s.enqueue(Event{Type: EventError, Error: msg})
}

func (s *session) enqueue(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to encode session event", zap.Error(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- data:
	default:
		s.logger.Warn("session send buffer full, dropping event", zap.String("type", ev.Type))
	}
}

// close stops the controller and ends the write pump. Safe to call more than once.
func (s *session) close() {
	s.ctrl.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[string]*session)}
}

func (r *sessionRegistry) add(s *session) {
	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()
}

func (r *sessionRegistry) remove(s *session) {
	r.mu.Lock()
	delete(r.sessions, s.id)
	r.mu.Unlock()
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	open := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		open = append(open, s)
	}
	r.mu.Unlock()
	for _, s := range open {
		s.close()
	}
}
