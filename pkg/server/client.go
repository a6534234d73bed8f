/*
A websocket subscriber of one render job.
Messages are pushed from the job through Out, nothing is read from the client.
*/
package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/tcast/internal/cfg"
	exwebsocket "github.com/qnkhuat/tcast/pkg/exWebSocket"
	"github.com/qnkhuat/tcast/pkg/message"
)

type Client struct {
	conn *exwebsocket.Conn
	id   string

	// data go in Out channel will be send to user via websocket
	Out chan message.Wrapper

	lock   sync.Mutex
	alive  bool
	closed chan struct{}
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{
		conn:   exwebsocket.New(conn),
		id:     id,
		Out:    make(chan message.Wrapper, cfg.SERVER_PROGRESS_BUFFER),
		alive:  true,
		closed: make(chan struct{}),
	}
}

// Send queues msg without blocking. Progress is dropped for slow clients.
func (c *Client) Send(msg message.Wrapper) bool {
	select {
	case c.Out <- msg:
		return true
	default:
		return false
	}
}

// SendFinal queues msg, discarding the oldest queued message if needed.
func (c *Client) SendFinal(msg message.Wrapper) {
	for {
		select {
		case c.Out <- msg:
			return
		default:
		}
		select {
		case <-c.Out:
		default:
		}
	}
}

// Start blocks until the connection is closed by either side.
func (c *Client) Start() {
	go func() {
		for msg := range c.Out {
			if err := c.conn.SafeWriteJSON(msg); err != nil {
				log.Printf("Failed to send to %s. Closing connection: %s", c.id, err)
				c.Close()
				return
			}
		}
		// Out closed by the job: render is over
		c.Close()
	}()

	// drain reads so close frames and pings get processed
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.Close()
			break
		}
	}
	<-c.closed
}

func (c *Client) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if !c.alive {
		return
	}
	c.alive = false
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(cfg.SERVER_CLOSE_GRACE_PERIOD*time.Second))
	c.conn.Close()
	close(c.closed)
}
