package listener

import (
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultWriteTimeout = 5 * time.Second
	DefaultReadLimit    = 64 * 1024
)

// wsTransport adapts a websocket connection to session.Transport. It allows
// one reader and one writer at a time; Close may be called from anywhere.
type wsTransport struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	once         sync.Once
}

func newWSTransport(ws *websocket.Conn, writeTimeout time.Duration, readLimit int64) *wsTransport {
	ws.SetReadLimit(readLimit)
	return &wsTransport{
		ws:           ws,
		writeTimeout: writeTimeout,
	}
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := t.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	if t.writeTimeout > 0 {
		if err := t.ws.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	return t.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and drops the connection.
func (t *wsTransport) Close() error {
	var err error
	t.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = t.ws.Close()
	})
	return err
}
