package signaling

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Listener receives connection events. Callbacks run on the connection's
// own goroutines and must not block.
type Listener struct {
	OnConnected    func()
	OnMessage      func(data []byte)
	OnDisconnected func(reason error)
}

// Conn is a message-oriented signaling connection.
type Conn interface {
	SetListener(l Listener)
	// Connect opens the connection in the background. It is a no-op while
	// already connected or connecting.
	Connect()
	Send(data []byte) error
	// Close tears the connection down without emitting OnDisconnected.
	Close()
}

// ClientOptions tunes the WebSocket client.
type ClientOptions struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Header       http.Header
	Logger       zerolog.Logger
}

// Client is a WebSocket signaling client.
type Client struct {
	url  string
	opts ClientOptions
	log  zerolog.Logger

	listenerMu sync.RWMutex
	listener   Listener

	mu   sync.Mutex
	conn *websocket.Conn

	writeMu sync.Mutex

	connecting atomic.Bool
	connected  atomic.Bool
	// generation is bumped by Close so that a dial finishing afterwards is discarded
	generation atomic.Uint64
}

// NewClient creates a signaling client for url. Nothing is dialed until Connect.
func NewClient(url string, opts ClientOptions) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	return &Client{
		url:  url,
		opts: opts,
		log:  opts.Logger.With().Str("module", "signaling").Logger(),
	}
}

func (c *Client) SetListener(l Listener) {
	c.listenerMu.Lock()
	c.listener = l
	c.listenerMu.Unlock()
}

func (c *Client) getListener() Listener {
	c.listenerMu.RLock()
	defer c.listenerMu.RUnlock()
	return c.listener
}

// Connected reports whether the socket is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) Connect() {
	if c.connected.Load() {
		c.log.Debug().Str("url", c.url).Msg("already connected")
		return
	}
	if !c.connecting.CompareAndSwap(false, true) {
		c.log.Debug().Str("url", c.url).Msg("already connecting")
		return
	}
	go c.dial(c.generation.Load())
}

func (c *Client) dial(gen uint64) {
	c.log.Info().Str("url", c.url).Msg("connecting")
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.opts.DialTimeout,
	}
	ws, _, err := dialer.Dial(c.url, c.opts.Header)
	if err != nil {
		c.connecting.Store(false)
		if c.generation.Load() != gen {
			return
		}
		c.log.Warn().Err(err).Str("url", c.url).Msg("dial failed")
		if l := c.getListener(); l.OnDisconnected != nil {
			l.OnDisconnected(fmt.Errorf("signaling dial: %w", err))
		}
		return
	}

	c.mu.Lock()
	if c.generation.Load() != gen {
		c.mu.Unlock()
		c.connecting.Store(false)
		_ = ws.Close()
		return
	}
	c.conn = ws
	c.connected.Store(true)
	c.connecting.Store(false)
	c.mu.Unlock()

	c.log.Info().Str("url", c.url).Msg("connected")
	if l := c.getListener(); l.OnConnected != nil {
		l.OnConnected()
	}
	go c.readLoop(ws)
}

func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	ws := c.conn
	c.mu.Unlock()
	if ws == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return fmt.Errorf("signaling write deadline: %w", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("signaling write: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	c.generation.Inc()
	ws := c.conn
	c.conn = nil
	c.connected.Store(false)
	c.mu.Unlock()

	if ws != nil {
		c.log.Info().Str("url", c.url).Msg("closing")
		_ = ws.Close()
	}
}

func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.conn == ws
			if current {
				c.conn = nil
				c.connected.Store(false)
			}
			c.mu.Unlock()
			_ = ws.Close()

			// an explicit Close already detached ws
			if !current {
				return
			}
			c.log.Warn().Err(err).Msg("read error")
			if l := c.getListener(); l.OnDisconnected != nil {
				l.OnDisconnected(fmt.Errorf("signaling read: %w", err))
			}
			return
		}
		if kind != websocket.TextMessage {
			c.log.Debug().Int("bytes", len(data)).Msg("ignoring binary message")
			continue
		}
		if l := c.getListener(); l.OnMessage != nil {
			l.OnMessage(data)
		}
	}
}
