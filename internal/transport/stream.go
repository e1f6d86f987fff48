package transport

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rpggio/agenthub/internal/domain/activity"
)

const (
	streamBuffer = 64
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
)

// Stream message types.
const (
	StreamSnapshot = "snapshot"
	StreamChange   = "change"
	StreamNotice   = "notice"
)

// StreamResync is the close reason sent when the client missed changes and
// must reconnect for a fresh snapshot.
const StreamResync = "resync"

// StreamMessage is one frame pushed over /v1/stream.
type StreamMessage struct {
	Type       string              `json:"type"`
	Activities []activity.Activity `json:"activities,omitempty"`
	Change     *activity.Change    `json:"change,omitempty"`
	Notice     *activity.Notice    `json:"notice,omitempty"`
}

// handleStream pushes a snapshot of the caller's activities, then every store
// change and notice until the client disconnects or the session closes. A
// client too slow to keep up is closed with StreamResync rather than left
// with a partial view.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	// Watch before the snapshot so nothing between the two is lost.
	changes, stopChanges := sess.Store().Watch(streamBuffer)
	defer stopChanges()
	notices, stopNotices := sess.WatchNotices(streamBuffer)
	defer stopNotices()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	defer func() {
		_ = conn.Close()
		<-closed
	}()

	userID := sess.User().ID
	s.logger.Debug("stream opened", "user_id", userID)
	defer s.logger.Debug("stream closed", "user_id", userID)

	snapshot := sess.Activities(activity.Filter{IncludeDismissed: true})
	if err := writeFrame(conn, StreamMessage{Type: StreamSnapshot, Activities: snapshot}); err != nil {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case c, ok := <-changes:
			if !ok {
				// The store dropped this watcher for falling behind.
				s.logger.Warn("stream fell behind, asking client to resync", "user_id", userID)
				msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, StreamResync)
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}
			if err := writeFrame(conn, StreamMessage{Type: StreamChange, Change: &c}); err != nil {
				return
			}
		case n, ok := <-notices:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			}
			if err := writeFrame(conn, StreamMessage{Type: StreamNotice, Notice: &n}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg StreamMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}
