// internal/editor/transport.go
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var ErrInstanceClosed = errors.New("EDITOR_INSTANCE_CLOSED")

// Instance is one disposable editor process. Events is closed when the instance goes away.
type Instance interface {
	Send(ctx context.Context, msg Outbound) error
	Events() <-chan Event
	Close() error
}

// Launcher starts a fresh editor instance per job.
type Launcher interface {
	Launch(ctx context.Context) (Instance, error)
}

// WebSocketLauncher dials the editor host once per job.
type WebSocketLauncher struct {
	URL            string
	ConnectTimeout time.Duration
	dialer         *websocket.Dialer
}

func NewWebSocketLauncher(url string, connectTimeout time.Duration) *WebSocketLauncher {
	return &WebSocketLauncher{
		URL:            url,
		ConnectTimeout: connectTimeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: connectTimeout,
			ReadBufferSize:   64 << 10,
			WriteBufferSize:  64 << 10,
		},
	}
}

func (l *WebSocketLauncher) Launch(ctx context.Context) (Instance, error) {
	if l.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.ConnectTimeout)
		defer cancel()
	}

	conn, resp, err := l.dialer.DialContext(ctx, l.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial editor %s: %w (status %s)", l.URL, err, resp.Status)
		}
		return nil, fmt.Errorf("dial editor %s: %w", l.URL, err)
	}

	inst := &wsInstance{
		conn:   conn,
		events: make(chan Event, 64),
		closed: make(chan struct{}),
	}
	go inst.readPump()
	return inst, nil
}

type wsInstance struct {
	conn   *websocket.Conn
	events chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func (w *wsInstance) readPump() {
	defer close(w.events)

	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev Event
		switch mt {
		case websocket.TextMessage:
			ev = DecodeText(string(data))
		case websocket.BinaryMessage:
			ev = DecodeBinary(data)
		default:
			continue
		}

		select {
		case w.events <- ev:
		case <-w.closed:
			return
		}
	}
}

func (w *wsInstance) Send(ctx context.Context, msg Outbound) error {
	select {
	case <-w.closed:
		return ErrInstanceClosed
	default:
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	mt := websocket.TextMessage
	if msg.Binary {
		mt = websocket.BinaryMessage
	}
	if err := w.conn.WriteMessage(mt, msg.Data); err != nil {
		return fmt.Errorf("write to editor: %w", err)
	}
	return nil
}

func (w *wsInstance) Events() <-chan Event {
	return w.events
}

func (w *wsInstance) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		w.writeMu.Lock()
		_ = w.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		w.writeMu.Unlock()
		err = w.conn.Close()
	})
	return err
}
