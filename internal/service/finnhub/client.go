package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
	xlogger "SentiTrade/pkg/logger"

	"github.com/gorilla/websocket"
)

// Config selects the feed and the symbols to follow.
type Config struct {
	APIKey         string
	URL            string
	Symbols        []string
	ReconnectDelay time.Duration
	// PingInterval also sets the read deadline: a connection with no frame
	// or pong for two intervals is treated as dead.
	PingInterval time.Duration
}

var errNotConnected = errors.New("finnhub: not connected")

// Client is a PriceStream over the Finnhub trades WebSocket.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *xlogger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	// gorilla allows one concurrent writer; pings use WriteControl instead
	writeMu sync.Mutex
}

var _ drepo.PriceStream = (*Client)(nil)

func New(cfg Config, logger *xlogger.Logger) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger,
	}
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("finnhub url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) Connect(ctx context.Context) error {
	endpoint, err := c.endpoint()
	if err != nil {
		return err
	}
	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}

	deadline := 2 * c.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.logger.Info("finnhub connected", xlogger.Int("symbols", len(c.cfg.Symbols)))
	return nil
}

type subscription struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

func (c *Client) Subscribe(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return errNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for _, s := range c.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := conn.WriteJSON(subscription{Type: "subscribe", Symbol: s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.logger.Info("finnhub subscribed", xlogger.Strings("symbols", c.cfg.Symbols))
	return nil
}

type trade struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
	Volume float64 `json:"v"`
	TimeMS int64   `json:"t"`
}

type frame struct {
	Type string  `json:"type"`
	Data []trade `json:"data"`
}

// decodeTicks turns one frame into ticks; non-trade frames yield none.
func decodeTicks(b []byte) []*models.Tick {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil || f.Type != "trade" {
		return nil
	}
	out := make([]*models.Tick, 0, len(f.Data))
	for _, d := range f.Data {
		out = append(out, &models.Tick{
			Symbol:    d.Symbol,
			Price:     d.Price,
			Volume:    d.Volume,
			Timestamp: time.UnixMilli(d.TimeMS),
		})
	}
	return out
}

// Read streams ticks until the connection fails or ctx ends. The error
// channel carries at most one error; both channels close when reading stops.
// Ticks are dropped while the consumer lags.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)
	conn := c.current()

	readCtx, stop := context.WithCancel(ctx)
	go c.pingLoop(readCtx, conn)

	go func() {
		defer stop()
		defer close(ticks)
		defer close(errs)
		if conn == nil {
			errs <- errNotConnected
			return
		}
		// unblock ReadMessage when ctx ends
		go func() {
			<-readCtx.Done()
			_ = conn.SetReadDeadline(time.Now())
		}()

		var dropped int
		defer func() {
			if dropped > 0 {
				c.logger.Warn("finnhub ticks dropped", xlogger.Int("count", dropped))
			}
		}()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			for _, t := range decodeTicks(b) {
				select {
				case ticks <- t:
				default:
					dropped++
				}
			}
		}
	}()

	return ticks, errs
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// Reconnect drops the connection, waits ReconnectDelay, then dials and
// subscribes again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.ReconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Client) IsConnected() bool { return c.current() != nil }

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
