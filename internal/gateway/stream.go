package gateway

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var subscriptionSeq int64

type eventStream struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// SubscribeOrderEvents dials the event WebSocket and pumps order events to fn
// from a single goroutine, so per-order delivery order is preserved. The
// stream reconnects with backoff until the context is cancelled or
// Unsubscribe is called.
func (c *Client) SubscribeOrderEvents(ctx context.Context, clientIDs []string, fn EventHandler) (string, error) {
	token, err := c.bearer()
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("client_ids", strings.Join(clientIDs, ","))
	q.Set("token", token)
	wsURL := c.wsURL + "/api/v1/events?" + q.Encode()

	streamCtx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		id:     "sub-" + strconv.FormatInt(atomic.AddInt64(&subscriptionSeq, 1), 10),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Dial once synchronously so a bad endpoint fails the subscription
	// instead of looping in the background.
	conn, _, err := websocket.DefaultDialer.DialContext(streamCtx, wsURL, nil)
	if err != nil {
		cancel()
		return "", err
	}

	go c.pump(streamCtx, s, conn, wsURL, fn)

	c.subsMu.Lock()
	c.subs[s.id] = s
	c.subsMu.Unlock()
	return s.id, nil
}

func (c *Client) pump(ctx context.Context, s *eventStream, conn *websocket.Conn, wsURL string, fn EventHandler) {
	defer close(s.done)
	backoff := time.Second
	for {
		c.readLoop(ctx, conn, fn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("event stream disconnected, reconnecting", zap.String("subscription", s.id), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
		next, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			c.log.Warn("event stream redial failed", zap.String("subscription", s.id), zap.Error(err))
			continue
		}
		backoff = time.Second
		conn = next
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, fn EventHandler) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var ev OrderEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Warn("dropping malformed order event", zap.Error(err))
			continue
		}
		fn(ev)
	}
}

func (c *Client) Unsubscribe(subscriptionID string) error {
	c.subsMu.Lock()
	s, ok := c.subs[subscriptionID]
	if ok {
		delete(c.subs, subscriptionID)
	}
	c.subsMu.Unlock()
	if !ok {
		return nil
	}
	s.cancel()
	<-s.done
	return nil
}
