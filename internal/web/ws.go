package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	appLog "beacon/internal/log"
	"beacon/internal/slideshow"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// handleWS pushes the snapshot JSON to the client on connect and again
// whenever the snapshot version changes. Snapshots are polled at the
// engine tick interval.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		appLog.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	// The reader only services control frames and notices disconnects.
	closed := make(chan struct{})
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	interval := s.cfg.TickInterval()
	if interval <= 0 {
		interval = slideshow.DefaultTickInterval
	}
	poll := time.NewTicker(interval)
	defer poll.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	var sent uint64
	first := true
	for {
		if snap := s.snaps.Snapshot(); first || snap.Version != sent {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(toSnapshotDTO(snap)); err != nil {
				appLog.Debug("websocket write failed", "error", err.Error())
				return
			}
			sent = snap.Version
			first = false
		}

		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-poll.C:
		}
	}
}
