package session

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one bidirectional message stream to a peer.
// ReadMessage blocks for the next inbound message. WriteMessage is safe for
// concurrent use; a failed write means the peer is unreachable.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(message []byte) error
	Close() error
}

type WsTransportSettings struct {
	WriteTimeout time.Duration
}

func DefaultWsTransportSettings() *WsTransportSettings {
	return &WsTransportSettings{
		WriteTimeout: 5 * time.Second,
	}
}

type WsTransport struct {
	ws       *websocket.Conn
	settings *WsTransportSettings

	// the websocket allows a single concurrent writer
	writeLock sync.Mutex
}

func NewWsTransportWithDefaults(ws *websocket.Conn) *WsTransport {
	return NewWsTransport(ws, DefaultWsTransportSettings())
}

func NewWsTransport(ws *websocket.Conn, settings *WsTransportSettings) *WsTransport {
	return &WsTransport{
		ws:       ws,
		settings: settings,
	}
}

func (self *WsTransport) ReadMessage() ([]byte, error) {
	for {
		messageType, message, err := self.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			return message, nil
		default:
			continue
		}
	}
}

func (self *WsTransport) WriteMessage(message []byte) error {
	self.writeLock.Lock()
	defer self.writeLock.Unlock()

	self.ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
	// note that for websocket a deadline timeout cannot be recovered
	return self.ws.WriteMessage(websocket.TextMessage, message)
}

func (self *WsTransport) Close() error {
	return self.ws.Close()
}
