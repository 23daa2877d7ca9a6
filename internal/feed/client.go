// Package feed maintains streaming market-data connections and delivers
// top-of-book updates to a handler. Reconnection and backoff live here; the
// owning shard only sees a stream of BookTop values.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Mugenseiki1988/smooth-trade/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// Handler receives every decoded top-of-book update.
type Handler func(domain.BookTop)

// Client owns one streaming connection covering a group of symbols. It
// reconnects with exponential backoff on any connection error and never
// propagates feed failures to the caller; only context cancellation ends Run.
type Client struct {
	url     string
	handler Handler
	logger  *slog.Logger
	dialer  *websocket.Dialer
}

// NewClient creates a Client for the given combined-stream URL. Every decoded
// update is passed to handler; the handler must be safe for the client's
// single read goroutine and should return quickly.
func NewClient(url string, handler Handler, logger *slog.Logger) *Client {
	return &Client{
		url:     url,
		handler: handler,
		logger:  logger.With(slog.String("component", "feed"), slog.String("url", url)),
		dialer:  &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
	}
}

// Run connects and consumes the stream until ctx is cancelled. Each
// disconnect is logged and retried with exponential backoff starting at
// reconnectDelay and capped at maxReconnectDelay; a successful connection
// resets the backoff.
func (c *Client) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("feed disconnected",
			slog.Any("error", err),
			slog.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// consume runs one connection lifetime: dial, read until error or cancel.
func (c *Client) consume(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	// Some upstreams ping the client instead of the other way around.
	conn.SetPingHandler(func(payload string) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.PongMessage, []byte(payload))
	})

	c.logger.Info("feed connected")

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go c.pingLoop(pingCtx, conn)

	// Unblock ReadMessage when ctx is cancelled.
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		top, err := parseBookTop(raw, time.Now().UTC())
		if err != nil {
			c.logger.Debug("dropping unparseable message",
				slog.Any("error", err),
				slog.Int("payload_len", len(raw)))
			continue
		}
		c.handler(top)
	}
}

// pingLoop keeps the connection alive until ctx is cancelled or a write fails.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
