package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
)

// ErrClosed is returned by Send after the connection has shut down.
var ErrClosed = errors.New("wsclient: connection closed")

// Client maintains one relay connection. Inbound frames are delivered on
// Frames in arrival order; outbound writes are serialized through a
// single writer goroutine with deadlines. The zero value is not usable,
// call Dial.
type Client struct {
	conn *websocket.Conn
	log  *log.Logger

	frames chan []byte
	out    chan []byte
	done   chan struct{}

	mu       sync.Mutex
	err      error
	shutOnce sync.Once
}

// Dial connects to the relay at url and starts the reader and writer.
func Dial(ctx context.Context, url string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		conn:   conn,
		log:    logger,
		frames: make(chan []byte, 256),
		out:    make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

// Frames yields raw inbound messages. The channel closes when the
// connection is gone; check Err afterwards.
func (c *Client) Frames() <-chan []byte { return c.frames }

// Done closes when the connection has shut down for any reason.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection shut down. nil before shutdown and
// after a clean local Close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send marshals v and queues it for the writer.
func (c *Client) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.out <- b:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Close performs a clean shutdown: a close frame, then teardown.
func (c *Client) Close() error {
	c.shutOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

func (c *Client) fail(err error) {
	c.shutOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		if c.log != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.log.Printf("connection lost: %v", err)
		}
		close(c.done)
		_ = c.conn.Close()
	})
}

// readLoop owns the frames channel and always closes it on exit.
func (c *Client) readLoop() {
	defer close(c.frames)
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		select {
		case c.frames <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.fail(err)
				return
			}
		}
	}
}
