package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/edequartel/BrailleServer/activity"
	"github.com/edequartel/BrailleServer/device"
)

// feedMessage is the envelope sent to browser pages
type feedMessage struct {
	Type      string `json:"type"` // "device" or "activity"
	Kind      string `json:"kind,omitempty"`
	Payload   any    `json:"payload"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// feedClient is one connected page. Outbound messages go through a buffered
// channel; a page that stops reading is dropped rather than allowed to block
// the broadcast.
type feedClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
}

// feed fans events out to all connected pages
type feed struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*feedClient
}

func newFeed(logger *slog.Logger) *feed {
	return &feed{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the gateway binds to localhost; the page is served from the
			// same machine
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*feedClient),
	}
}

// serve upgrades the request and pumps messages until the page goes away
func (f *feed) serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &feedClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, 64),
	}

	f.mu.Lock()
	f.clients[client.id] = client
	f.mu.Unlock()
	f.logger.Info("page connected", "client", client.id)

	go f.writePump(client)
	go f.readPump(client)
	return nil
}

func (f *feed) remove(client *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[client.id]; ok {
		delete(f.clients, client.id)
		close(client.send)
	}
	f.mu.Unlock()
	_ = client.conn.Close()
}

// readPump discards inbound frames; its job is noticing the close
func (f *feed) readPump(client *feedClient) {
	defer f.remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			f.logger.Info("page disconnected", "client", client.id)
			return
		}
	}
}

func (f *feed) writePump(client *feedClient) {
	for data := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	// send channel closed: say goodbye properly
	_ = client.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
		time.Now().Add(time.Second))
}

func (f *feed) broadcastDevice(ev device.Event) {
	msg := feedMessage{
		Type:      "device",
		Kind:      string(ev.Kind()),
		Payload:   ev,
		Timestamp: time.Now().UnixMilli(),
	}
	switch e := ev.(type) {
	case device.ErrorEvent:
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
	case device.HTTPEvent:
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
	}
	f.broadcast(msg)
}

func (f *feed) broadcastActivity(change activity.StateChange) {
	msg := feedMessage{
		Type:      "activity",
		Payload:   change,
		Timestamp: time.Now().UnixMilli(),
	}
	if change.Err != nil {
		msg.Error = change.Err.Error()
	}
	f.broadcast(msg)
}

func (f *feed) broadcast(msg feedMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		f.logger.Warn("feed marshal failed", "error", err)
		return
	}

	f.mu.Lock()
	var slow []*feedClient
	for _, client := range f.clients {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	f.mu.Unlock()

	for _, client := range slow {
		f.logger.Warn("dropping slow page", "client", client.id)
		f.remove(client)
	}
}

func (f *feed) closeAll() {
	f.mu.Lock()
	clients := make([]*feedClient, 0, len(f.clients))
	for _, client := range f.clients {
		clients = append(clients, client)
	}
	f.mu.Unlock()

	for _, client := range clients {
		f.remove(client)
	}
}
