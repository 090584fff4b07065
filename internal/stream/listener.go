package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jmcateer/chatrelay/internal/stats"
	"github.com/jmcateer/chatrelay/internal/types"
	"github.com/teris-io/shortid"
)

const (
	writeWait         = 10 * time.Second
	readWait          = 60 * time.Second
	heartbeatInterval = 30 * time.Second
	maxMessageSize    = 4096

	DefaultTopic       = "realtime:public"
	DefaultRetryDelay  = 5 * time.Second
	defaultJoinTimeout = 10 * time.Second
)

const (
	metricStreamState      = "relay_stream_state"
	metricStreamReconnects = "relay_stream_reconnects_total"
	metricStreamMessages   = "relay_stream_messages_total"
	metricPresenceEvents   = "relay_stream_presence_events_total"
)

var (
	errTimeout      = errors.New("stream timed out")
	errStreamClosed = errors.New("stream closed")
)

type Config struct {
	URL         string
	Key         string
	Topic       string
	RetryDelay  time.Duration
	JoinTimeout time.Duration

	// Identity supplies the presence-track key after each successful
	// subscribe. Optional; a generated key is used when nil or empty.
	Identity func() string
}

// Listener keeps one change-stream subscription alive. Observed events are
// advisory: readers that need the authoritative feed query the store.
type Listener struct {
	cfg         Config
	log         *log.Logger
	stats       stats.StatsProvider
	presenceKey string

	OnMessage     func(types.ChatMessage)
	OnPresence    func(types.PresenceChange)
	OnStateChange func(State)

	mu    sync.RWMutex
	state State
}

func NewListener(cfg Config, logger *log.Logger, statsProvider stats.StatsProvider) (*Listener, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("stream URL is required")
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("stream key is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}

	sid, err := shortid.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate presence key: %w", err)
	}

	l := &Listener{
		cfg:         cfg,
		log:         logger,
		stats:       statsProvider,
		presenceKey: "relay-" + sid,
		state:       StateDisconnected,
	}

	statsProvider.RegisterGauge(metricStreamState, "Current change-stream subscription state.")
	statsProvider.RegisterCounter(metricStreamReconnects, "Subscription attempts scheduled after a failure.")
	statsProvider.RegisterCounter(metricStreamMessages, "Message inserts observed on the change stream.")
	statsProvider.RegisterCounter(metricPresenceEvents, "Presence changes observed on the change stream.")

	return l, nil
}

func (l *Listener) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.state
}

func (l *Listener) setState(state State) {
	l.mu.Lock()
	if l.state == state {
		l.mu.Unlock()
		return
	}
	prev := l.state
	l.state = state
	l.mu.Unlock()

	l.log.Printf("stream: %s -> %s", prev, state)
	l.stats.Set(metricStreamState, float64(state))
	if l.OnStateChange != nil {
		l.OnStateChange(state)
	}
}

// Run drives the subscription until ctx is canceled. Every failure schedules
// a fresh attempt after RetryDelay; there is no retry cap.
func (l *Listener) Run(ctx context.Context) {
	for {
		l.setState(StateSubscribing)

		err := l.subscribe(ctx)
		if ctx.Err() != nil {
			l.setState(StateClosed)
			l.log.Println("stream: listener stopped")
			return
		}

		switch {
		case errors.Is(err, errTimeout):
			l.setState(StateTimedOut)
		case errors.Is(err, errStreamClosed):
			l.setState(StateClosed)
		default:
			l.setState(StateError)
		}
		l.log.Printf("stream: subscription lost: %v, retrying in %s", err, l.cfg.RetryDelay)

		select {
		case <-ctx.Done():
			l.setState(StateClosed)
			l.log.Println("stream: listener stopped")
			return
		case <-time.After(l.cfg.RetryDelay):
			l.stats.Incr(metricStreamReconnects)
		}
	}
}

func (l *Listener) subscribe(ctx context.Context) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	return newSession(l, conn).run(ctx)
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(l.cfg.URL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	q := u.Query()
	q.Set("apikey", l.cfg.Key)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+l.cfg.Key)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	return conn, err
}

// session is a single subscription attempt over one websocket connection.
type session struct {
	l    *Listener
	conn *websocket.Conn
	send chan Frame
	stop chan struct{}
	done chan struct{}
	ref  atomic.Int64
}

func newSession(l *Listener, conn *websocket.Conn) *session {
	return &session{
		l:    l,
		conn: conn,
		send: make(chan Frame, 16),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (s *session) nextRef() string {
	return strconv.FormatInt(s.ref.Add(1), 10)
}

func (s *session) run(ctx context.Context) error {
	defer s.conn.Close()

	go s.writeLoop(ctx)
	defer func() {
		close(s.stop)
		<-s.done
	}()

	s.conn.SetReadLimit(maxMessageSize)

	joinRef := s.nextRef()
	join, err := newJoinFrame(s.l.cfg.Topic, joinRef)
	if err != nil {
		return fmt.Errorf("build join frame: %w", err)
	}
	if !s.queueFrame(join) {
		return fmt.Errorf("queue join frame")
	}

	// The join ack must arrive within the join timeout.
	s.conn.SetReadDeadline(time.Now().Add(s.l.cfg.JoinTimeout))
	for joined := false; !joined; {
		frame, err := s.readFrame()
		if err != nil {
			return classifyReadError(err)
		}

		switch {
		case frame.Event == eventReply && frame.Ref == joinRef:
			var reply replyPayload
			if err := json.Unmarshal(frame.Payload, &reply); err != nil {
				return fmt.Errorf("decode join reply: %w", err)
			}
			if reply.Status != statusOK {
				return fmt.Errorf("join rejected: status %q", reply.Status)
			}
			joined = true
		case frame.Event == eventError:
			return fmt.Errorf("channel error during join")
		case frame.Event == eventClose:
			return errStreamClosed
		}
	}

	s.l.setState(StateSubscribed)
	s.trackPresence()

	s.conn.SetReadDeadline(time.Now().Add(readWait))
	for {
		frame, err := s.readFrame()
		if err != nil {
			return classifyReadError(err)
		}
		s.conn.SetReadDeadline(time.Now().Add(readWait))

		if err := s.handleFrame(frame); err != nil {
			return err
		}
	}
}

func (s *session) handleFrame(frame Frame) error {
	switch frame.Event {
	case eventError:
		return fmt.Errorf("channel error: %s", string(frame.Payload))
	case eventClose:
		return errStreamClosed
	case eventChanges:
		s.handleChange(frame.Payload)
	case eventReply, eventPresenceState, eventPresenceDiff:
		// heartbeat and track acks, presence snapshots
	default:
		s.l.log.Printf("stream: ignoring frame event %q", frame.Event)
	}

	return nil
}

func (s *session) handleChange(payload json.RawMessage) {
	var change changePayload
	if err := json.Unmarshal(payload, &change); err != nil {
		s.l.log.Println("stream: error parsing change payload:", err)
		return
	}

	switch change.Data.Table {
	case "messages":
		if change.Data.Type != changeInsert {
			return
		}
		var msg types.ChatMessage
		if err := json.Unmarshal(change.Data.Record, &msg); err != nil {
			s.l.log.Println("stream: error parsing message record:", err)
			return
		}
		s.l.stats.Incr(metricStreamMessages)
		if s.l.OnMessage != nil {
			s.l.OnMessage(msg)
		}
	case "users":
		var presence types.PresenceChange
		if err := json.Unmarshal(change.Data.Record, &presence); err != nil {
			s.l.log.Println("stream: error parsing presence record:", err)
			return
		}
		s.l.stats.Incr(metricPresenceEvents)
		if s.l.OnPresence != nil {
			s.l.OnPresence(presence)
		}
	default:
		s.l.log.Printf("stream: change on unexpected table %q", change.Data.Table)
	}
}

// trackPresence is best effort, a failure never changes subscription state.
func (s *session) trackPresence() {
	key := s.l.presenceKey
	if s.l.cfg.Identity != nil {
		if id := s.l.cfg.Identity(); id != "" {
			key = id
		}
	}

	frame, err := newTrackFrame(s.l.cfg.Topic, s.nextRef(), key)
	if err != nil {
		s.l.log.Println("stream: build track frame:", err)
		return
	}
	if !s.queueFrame(frame) {
		s.l.log.Println("stream: presence track not sent")
	}
}

func (s *session) readFrame() (Frame, error) {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return Frame{}, err
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.l.log.Println("stream: error parsing frame:", err)
			continue
		}

		return frame, nil
	}
}

func (s *session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.done)
	}()

	for {
		select {
		case frame := <-s.send:
			if !s.writeFrame(frame) {
				return
			}
		case <-ticker.C:
			hb, err := newHeartbeatFrame(s.nextRef())
			if err != nil {
				s.l.log.Println("stream: build heartbeat frame:", err)
				continue
			}
			if !s.writeFrame(hb) {
				return
			}
		case <-ctx.Done():
			s.leave()
			return
		case <-s.stop:
			return
		}
	}
}

// leave unsubscribes before the connection goes away so the server drops
// the channel instead of waiting out the prior subscription.
func (s *session) leave() {
	if frame, err := newLeaveFrame(s.l.cfg.Topic, s.nextRef()); err == nil {
		s.writeFrame(frame)
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *session) queueFrame(frame Frame) bool {
	select {
	case s.send <- frame:
	default:
		s.l.log.Println("stream: send queue full, dropping frame")
		return false
	}

	return true
}

func (s *session) writeFrame(frame Frame) bool {
	bytes, err := json.Marshal(frame)
	if err != nil {
		s.l.log.Println("stream: failed to serialize frame:", err)
		return true
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, bytes); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.l.log.Printf("stream: write frame: %s", err)
		}
		return false
	}

	return true
}

func classifyReadError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errTimeout
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return errStreamClosed
	}

	return fmt.Errorf("read: %w", err)
}
