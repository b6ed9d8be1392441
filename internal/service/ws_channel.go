package service

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/internhub-api/internal/dto"
)

const (
	defaultSendBuffer   = 32
	defaultPingInterval = 30 * time.Second
	writeWait           = 10 * time.Second
)

// wsChannel pushes events to one websocket. All writes go through the writer goroutine.
type wsChannel struct {
	conn         *websocket.Conn
	send         chan dto.RealtimeEvent
	closed       chan struct{}
	done         chan struct{}
	once         sync.Once
	pingInterval time.Duration
	logger       zerolog.Logger
}

func newWSChannel(conn *websocket.Conn, buffer int, pingInterval time.Duration, logger zerolog.Logger) *wsChannel {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}

	return &wsChannel{
		conn:         conn,
		send:         make(chan dto.RealtimeEvent, buffer),
		closed:       make(chan struct{}),
		done:         make(chan struct{}),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

func (c *wsChannel) Send(event dto.RealtimeEvent) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}

	select {
	case c.send <- event:
		return nil
	case <-c.closed:
		return ErrChannelClosed
	default:
		return ErrChannelBackpressure
	}
}

func (c *wsChannel) IsOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *wsChannel) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// writer owns every write on the socket. done is closed once it has returned.
func (c *wsChannel) writer() {
	defer close(c.done)
	defer func() { _ = c.Close() }()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}
