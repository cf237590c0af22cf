package httpserver

import (
	"net/http"
	"strings"

	"lv-finbroker/internal/broker"

	"github.com/gorilla/websocket"
)

// NotificationsWS streams order notifications to connected clients. Each
// connection gets its own subscription tap; the strategy-facing poll queue
// is not consumed by websocket clients.
type NotificationsWS struct {
	b        *broker.Broker
	origin   string
	upgrader websocket.Upgrader
}

func NewNotificationsWS(b *broker.Broker, origin string) *NotificationsWS {
	return &NotificationsWS{
		b:      b,
		origin: origin,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

func (h *NotificationsWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	feed, cancel := h.b.SubscribeNotifications()
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case n := <-feed:
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	return strings.EqualFold(r.Header.Get("Origin"), origin)
}
