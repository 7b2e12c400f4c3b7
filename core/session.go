package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/callwright/callwright/core/wire"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrSessionClosed is returned by sends attempted after the session ended.
var ErrSessionClosed = errors.New("session is closed")

const frameBufferSize = 256

type controlMessage struct {
	Type string `json:"type"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Session is one live WebSocket conversation with the agent.
//
// A receive pump decodes every inbound message into a [wire.Frame] and
// delivers it on [Session.Frames]; the channel is closed when the pump dies.
// All writes are serialized, and every send fails fast with
// [ErrSessionClosed] once the transport is gone.
type Session struct {
	id      string
	conn    *websocket.Conn
	frames  chan wire.Frame
	onAudio func(data []byte)

	writeMu sync.Mutex

	mu   sync.Mutex
	open bool
	err  error

	closeOnce sync.Once
}

// Connect dials the agent endpoint with the session token and mode attached
// as query parameters, starts the receive pump, and after a short grace
// delay sends the greeting control frame.
func Connect(ctx context.Context, endpoint, token string, mode Mode, opts ...SessionOption) (*Session, error) {
	options := SessionOptions{
		connectTimeout: DefaultConnectTimeout,
		greetingDelay:  DefaultGreetingDelay,
	}
	for _, opt := range opts {
		opt(&options)
	}

	wsURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoint: %w", err)
	}
	query := wsURL.Query()
	query.Set("jst", token)
	query.Set("mode", string(mode))
	wsURL.RawQuery = query.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: options.connectTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to agent (status %s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to agent: %w", err)
	}

	session := &Session{
		id:      uuid.NewString(),
		conn:    conn,
		frames:  make(chan wire.Frame, frameBufferSize),
		onAudio: options.onAudio,
		open:    true,
	}
	go session.readPump()

	if options.greetingDelay > 0 {
		select {
		case <-time.After(options.greetingDelay):
		case <-ctx.Done():
			session.Close()
			return nil, ctx.Err()
		}
	}
	if session.IsOpen() {
		if err := session.sendJSON(controlMessage{Type: wire.TypeSessionGreeting}); err != nil {
			log.Println("Failed to send greeting:", err)
		}
	}

	return session, nil
}

func (s *Session) readPump() {
	defer close(s.frames)

	for {
		messageType, payload, err := s.conn.ReadMessage()
		if err != nil {
			if s.IsOpen() && err.Error() != "websocket: close 1000 (normal)" {
				log.Println("Session read failed:", err)
				s.recordErr(err)
			}
			s.markClosed()
			return
		}

		frame := wire.Decode(messageType, payload)
		if s.onAudio != nil {
			if audioFrame, ok := frame.(wire.Audio); ok {
				s.onAudio(audioFrame.Data)
			}
		}
		s.frames <- frame
	}
}

// ID returns the harness-side session identifier.
func (s *Session) ID() string { return s.id }

// Frames is the stream of decoded inbound frames. It is closed when the
// receive pump exits.
func (s *Session) Frames() <-chan wire.Frame { return s.frames }

// IsOpen reports whether the transport is still believed usable.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Err returns the terminal receive error, nil while the pump is alive or
// after a clean close.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// SendText sends one text frame carrying the utterance.
func (s *Session) SendText(text string) error {
	return s.sendJSON(textMessage{Type: wire.TypeText, Text: text})
}

// SendAudio sends one binary message carrying WAV stimulus audio.
func (s *Session) SendAudio(data []byte) error {
	if !s.IsOpen() {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

// Ping sends the application-level keepalive frame.
func (s *Session) Ping() error {
	return s.sendJSON(controlMessage{Type: wire.TypeSessionPing})
}

func (s *Session) sendJSON(message any) error {
	if !s.IsOpen() {
		return ErrSessionClosed
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Drain discards any frames buffered since the last turn and returns how
// many were dropped. Callers drain immediately before each send so a reply
// that straggles in after a turn's ceiling is not attributed to the next
// turn.
func (s *Session) Drain() int {
	count := 0
	for {
		select {
		case _, ok := <-s.frames:
			if !ok {
				return count
			}
			count++
		default:
			return count
		}
	}
}

// Close ends the session: a best-effort disconnect control frame while the
// transport still looks open, then the transport close. Close is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.IsOpen() {
			if err := s.sendJSON(controlMessage{Type: wire.TypeSessionDisconnect}); err != nil {
				log.Println("Failed to send disconnect:", err)
			}
		}
		s.markClosed()
		if err := s.conn.Close(); err != nil {
			log.Println("Failed to close session transport:", err)
		}
	})
}

func (s *Session) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}
