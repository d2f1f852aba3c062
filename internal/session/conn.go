package session

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// Conn is the part of *websocket.Conn a session needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Serve pumps commands from conn into the session and frames from the
// session back to conn until either side goes away. The session must
// already be open. Serve closes both the session and conn before returning.
func (s *Session) Serve(conn Conn) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer func() {
		cancel()
		s.Close()
	}()

	go s.writeLoop(ctx, cancel, conn)
	s.readLoop(ctx, conn)
}

func (s *Session) readLoop(ctx context.Context, conn Conn) {
	extend := func() {
		if s.settings.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.settings.ReadTimeout))
		}
	}
	conn.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		extend()
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if len(message) == 0 {
			continue
		}

		var cmd Command
		if err := sonic.ConfigStd.Unmarshal(message, &cmd); err != nil {
			s.sendError("", err)
			continue
		}
		// errors are already reported to the client as frames
		_ = s.Handle(ctx, cmd)
	}
}

// writeLoop closes conn on exit, which unblocks a pending read.
func (s *Session) writeLoop(ctx context.Context, cancel context.CancelFunc, conn Conn) {
	defer func() {
		cancel()
		conn.Close()
	}()

	pingTimeout := s.settings.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = DefaultSettings().PingTimeout
	}
	ticker := time.NewTicker(pingTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flush(conn)
			s.writeClose(conn)
			return
		case f := <-s.out:
			if err := s.writeFrame(conn, f); err != nil {
				// a websocket write deadline cannot be recovered from
				s.log.WithError(err).Info("websocket write failed")
				return
			}
		case <-ticker.C:
			s.setWriteDeadline(conn)
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) writeFrame(conn Conn, f Frame) error {
	data, err := sonic.ConfigStd.Marshal(f)
	if err != nil {
		s.log.WithError(err).Error("failed to encode frame")
		return nil
	}
	s.setWriteDeadline(conn)
	return conn.WriteMessage(websocket.TextMessage, data)
}

// flush writes the frames already queued, such as the error explaining why
// the session ends.
func (s *Session) flush(conn Conn) {
	for {
		select {
		case f := <-s.out:
			if err := s.writeFrame(conn, f); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) setWriteDeadline(conn Conn) {
	if s.settings.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.settings.WriteTimeout))
	}
}

func (s *Session) writeClose(conn Conn) {
	s.setWriteDeadline(conn)
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
