package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteDeadline = 10 * time.Second

// decisionFrame is an inbound message on the council socket. Frames with
// type "decision" resolve the pending gate; anything else is ignored.
type decisionFrame struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Note  string `json:"note"`
}

type ackFrame struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// handleCouncilSocket streams a session's events as JSON frames. Missed
// history is replayed first, then live events follow in production order.
// Decision frames are accepted inbound on the same socket.
func (s *Server) handleCouncilSocket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.opts.Registry.Snapshot(id); err != nil {
		writeCouncilError(w, err)
		return
	}

	output, cancel := s.opts.Bus.SubscribeSession(id)
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log := s.log.With(zap.String("session", id))
	log.Debug("council socket opened")

	wc := &wsConn{conn: conn}
	done := make(chan struct{})
	defer close(done)

	go func() {
		seen := uint64(0)
		for _, ev := range s.opts.Bus.Replay(id) {
			if err := wc.writeJSON(ev); err != nil {
				return
			}
			seen = ev.Seq
		}
		for {
			select {
			case ev, ok := <-output:
				if !ok {
					return
				}
				if ev.Seq <= seen {
					continue
				}
				if err := wc.writeJSON(ev); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		var frame decisionFrame
		if err := conn.ReadJSON(&frame); err != nil {
			log.Debug("council socket closed", zap.Error(err))
			return
		}
		if frame.Type != "decision" {
			continue
		}
		ack := ackFrame{Type: "decision_ack", Value: frame.Value}
		if err := s.opts.Registry.SubmitDecision(id, frame.Value, frame.Note); err != nil {
			ack = ackFrame{Type: "decision_error", Error: err.Error(), Code: errorCode(err)}
		} else {
			s.recordDecision(id, "gate", frame.Value, frame.Note)
		}
		if err := wc.writeJSON(ack); err != nil {
			return
		}
	}
}

// wsConn serializes writes; the replay goroutine and the ack path would
// otherwise interleave frames.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline)); err != nil {
		return err
	}
	return w.conn.WriteJSON(v)
}
