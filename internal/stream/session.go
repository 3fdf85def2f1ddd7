package stream

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/docmind/backend/pkg/logger"
)

type State int

const (
	StateConnecting State = iota
	StateStreaming
	StateDone
	StateError
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Conn is the write side of the transport. The gofiber websocket connection
// satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
}

// Session owns the delivery of one streaming response: a monotonic sequence
// counter, a heartbeat timer independent of generation progress, and an
// idempotent teardown. Writes after teardown are no-ops, never errors.
type Session struct {
	conn      Conn
	heartbeat time.Duration

	mu     sync.Mutex
	state  State
	seq    int64
	ticker *time.Ticker
	stop   chan struct{}
}

func NewSession(conn Conn, heartbeat time.Duration) *Session {
	if heartbeat == 0 {
		heartbeat = 15 * time.Second
	}
	return &Session{
		conn:      conn,
		heartbeat: heartbeat,
		state:     StateConnecting,
	}
}

// Start confirms the session and begins heartbeat emission. Only valid once,
// from CONNECTING.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStreaming
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(s.heartbeat)
	err := s.writeLocked(Event{Type: EventConnected})
	stop, ticker := s.stop, s.ticker
	s.mu.Unlock()

	go s.heartbeatLoop(stop, ticker)

	return err
}

func (s *Session) heartbeatLoop(stop chan struct{}, ticker *time.Ticker) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state == StateStreaming {
				if err := s.writeLocked(Event{Type: EventHeartbeat}); err != nil {
					logger.Debug("Heartbeat write failed", zap.Error(err))
				}
			}
			s.mu.Unlock()
		}
	}
}

// SendContent forwards one produced fragment. Fragments are delivered in
// call order with strictly increasing sequence numbers.
func (s *Session) SendContent(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return nil
	}
	return s.writeLocked(Event{Type: EventContent, Content: text})
}

// Done sends the final summary event and tears the session down.
func (s *Session) Done(result interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return nil
	}
	err := s.writeLocked(Event{Type: EventDone, Result: result})
	s.teardownLocked(StateDone)
	return err
}

// Fail sends one error event and tears the session down.
func (s *Session) Fail(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming && s.state != StateConnecting {
		return nil
	}
	err := s.writeLocked(Event{Type: EventError, Error: msg})
	s.teardownLocked(StateError)
	return err
}

// Cancel handles a client disconnect: the heartbeat stops and all further
// writes are suppressed. Safe to call any number of times.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminalLocked() {
		return
	}
	s.teardownLocked(StateCancelled)
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateStreaming || s.state == StateConnecting
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Seq reports the last sequence number handed out.
func (s *Session) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Session) writeLocked(ev Event) error {
	s.seq++
	ev.Seq = s.seq
	return s.conn.WriteJSON(ev)
}

func (s *Session) terminalLocked() bool {
	return s.state == StateDone || s.state == StateError || s.state == StateCancelled
}

func (s *Session) teardownLocked(terminal State) {
	prev := s.state
	s.state = terminal
	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	logger.Debug("Stream session closed",
		zap.String("from", prev.String()),
		zap.String("to", terminal.String()),
		zap.Int64("events", s.seq),
	)
}
