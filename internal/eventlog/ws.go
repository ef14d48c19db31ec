package eventlog

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
)

const wsWriteTimeout = 10 * time.Second

// ServeWS upgrades r to a WebSocket and streams events after the cursor
// query parameter (an event sequence number), sending the backlog first
// and then tailing live appends. Grounded on rpc/ws.go's
// subscribe-then-backlog-then-tail shape.
func (l *Log) ServeWS(w http.ResponseWriter, r *http.Request) {
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	var afterSeq uint64
	if cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		afterSeq = parsed
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	if err := l.stream(r.Context(), conn, afterSeq); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (l *Log) stream(ctx context.Context, conn *websocket.Conn, afterSeq uint64) error {
	live, cancel := l.Subscribe(64)
	defer cancel()

	for _, evt := range l.Since(afterSeq, 0) {
		if err := writeEvent(ctx, conn, evt); err != nil {
			return err
		}
		afterSeq = evt.Seq
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v, ok := <-live:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, v); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
