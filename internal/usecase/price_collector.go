package usecase

import (
	"context"
	"errors"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
	mid "SentiTrade/internal/middleware"
	xlogger "SentiTrade/pkg/logger"
)

var errStreamClosed = errors.New("price stream closed")

// PriceCollector feeds market prints through the tick pipeline.
type PriceCollector struct {
	stream  drepo.PriceStream
	pipe    *mid.TickPipeline
	metrics drepo.Metrics
	logger  *xlogger.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPriceCollector(stream drepo.PriceStream, pipe *mid.TickPipeline, metrics drepo.Metrics, logger *xlogger.Logger) *PriceCollector {
	return &PriceCollector{stream: stream, pipe: pipe, metrics: metrics, logger: logger}
}

// IsConnected returns true if the market stream is connected.
func (c *PriceCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *PriceCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
	return nil
}

func (c *PriceCollector) run(ctx context.Context) {
	defer close(c.done)
	for {
		tCh, errCh := c.stream.Read(ctx)
		if err := c.consume(ctx, tCh, errCh); err == nil {
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream")
			if err := c.stream.Reconnect(ctx); err != nil {
				c.logger.Warn("price stream reconnect failed", xlogger.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			break
		}
	}
}

// consume returns nil when ctx ends and the stream error otherwise.
func (c *PriceCollector) consume(ctx context.Context, tCh <-chan *models.Tick, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				c.logger.Warn("price stream error", xlogger.Error(err))
				return err
			}
		case t, ok := <-tCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errStreamClosed
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.logger.Debug("tick dropped", xlogger.String("symbol", t.Symbol), xlogger.Error(err))
			}
		}
	}
}

// Shutdown closes the stream and waits for the reader to exit.
func (c *PriceCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	if c.done != nil {
		select {
		case <-c.done:
		case <-ctx.Done():
		}
	}
	return err
}
