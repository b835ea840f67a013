package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SentiTrade/internal/domain/models"
	drepo "SentiTrade/internal/domain/repository"
	xlogger "SentiTrade/pkg/logger"
)

// BotState is the controller lifecycle state.
type BotState string

const (
	BotStopped BotState = "STOPPED"
	BotRunning BotState = "RUNNING"
)

const cycleLeaseKey = "bot:cycle"

// BotStatus is the externally visible controller state.
type BotStatus struct {
	State      BotState     `json:"state"`
	Interval   string       `json:"interval"`
	Cycles     int64        `json:"cycles"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	NextRunAt  *time.Time   `json:"next_run_at,omitempty"`
	LastCycle  *CycleReport `json:"last_cycle,omitempty"`
	LastError  string       `json:"last_error,omitempty"`
	InProgress bool         `json:"in_progress"`
}

// BotController owns the periodic driver. Start and Stop only flip state and
// never fail because of downstream errors.
type BotController struct {
	runner   *CycleRunner
	configs  *ConfigStore
	lease    drepo.Locker
	metrics  drepo.Metrics
	logger   *xlogger.Logger
	interval time.Duration
	leaseTTL time.Duration

	mu        sync.Mutex
	state     BotState
	stopCh    chan struct{}
	done      chan struct{}
	startedAt time.Time
	nextRun   time.Time
	cycles    int64
	last      *CycleReport
	lastErr   string
	running   bool

	// base context for cycles; cancelled only by Shutdown
	baseCtx    context.Context
	baseCancel context.CancelFunc
}

// ControllerOption customizes a BotController.
type ControllerOption func(*BotController)

// WithCycleLease makes every cycle take a shared lease first, so only one
// replica evaluates at a time.
func WithCycleLease(l drepo.Locker, ttl time.Duration) ControllerOption {
	return func(c *BotController) {
		c.lease = l
		if ttl > 0 {
			c.leaseTTL = ttl
		}
	}
}

func NewBotController(runner *CycleRunner, configs *ConfigStore, metrics drepo.Metrics, logger *xlogger.Logger, interval time.Duration, opts ...ControllerOption) *BotController {
	ctx, cancel := context.WithCancel(context.Background())
	c := &BotController{
		runner:     runner,
		configs:    configs,
		metrics:    metrics,
		logger:     logger,
		interval:   interval,
		leaseTTL:   2 * interval,
		state:      BotStopped,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the driver. Calling it while RUNNING is a no-op.
func (c *BotController) Start() BotStatus {
	c.mu.Lock()
	if c.state == BotRunning {
		defer c.mu.Unlock()
		return c.statusLocked()
	}
	prevDone := c.done
	stopCh := make(chan struct{})
	done := make(chan struct{})
	c.state = BotRunning
	c.stopCh = stopCh
	c.done = done
	c.startedAt = time.Now()
	c.mu.Unlock()

	go c.loop(prevDone, stopCh, done)
	c.logger.Info("bot started", xlogger.Duration("interval_ms", c.interval))
	return c.Status()
}

// Stop asks the running cycle to finish its current symbols and start no
// more. In-flight submissions are not cancelled. Calling it while STOPPED is
// a no-op.
func (c *BotController) Stop() BotStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == BotStopped {
		return c.statusLocked()
	}
	close(c.stopCh)
	c.state = BotStopped
	c.nextRun = time.Time{}
	c.logger.Info("bot stopping")
	return c.statusLocked()
}

// Status returns a copy of the current state.
func (c *BotController) Status() BotStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Shutdown stops the driver and waits for the loop to exit or ctx to end.
func (c *BotController) Shutdown(ctx context.Context) error {
	c.Stop()
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		c.baseCancel()
		return nil
	}
	select {
	case <-done:
		c.baseCancel()
		return nil
	case <-ctx.Done():
		c.baseCancel()
		return ctx.Err()
	}
}

// RunOnce runs a single cycle outside the schedule.
func (c *BotController) RunOnce(ctx context.Context) (CycleReport, error) {
	return c.cycle(ctx, nil)
}

func (c *BotController) loop(prevDone <-chan struct{}, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if prevDone != nil {
		// a previous loop may still be finishing its last symbol
		select {
		case <-prevDone:
		case <-stopCh:
			return
		}
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		c.setNextRun(time.Now().Add(c.interval))
		if _, err := c.cycle(c.baseCtx, stopCh); err != nil {
			c.logger.Error("cycle failed", xlogger.Error(err))
		}
		select {
		case <-stopCh:
			return
		case <-c.baseCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *BotController) cycle(ctx context.Context, stopCh <-chan struct{}) (CycleReport, error) {
	start := time.Now()
	c.setRunning(true)
	defer c.setRunning(false)

	if c.lease != nil {
		ok, err := c.lease.TryLock(ctx, cycleLeaseKey, c.leaseTTL)
		if err != nil {
			c.recordCycle(nil, err, "lease_error", start)
			return CycleReport{}, err
		}
		if !ok {
			c.logger.Debug("cycle lease held elsewhere, skipping")
			c.metrics.RecordCycle("lease_busy", time.Since(start).Seconds())
			return CycleReport{}, nil
		}
		defer func() {
			if err := c.lease.Unlock(context.Background(), cycleLeaseKey); err != nil {
				c.logger.Warn("release cycle lease failed", xlogger.Error(err))
			}
		}()
	}

	if _, err := c.configs.Reload(ctx); err != nil {
		c.logger.Warn("config reload failed, keeping previous snapshot", xlogger.Error(err))
	}
	snap := c.configs.Current()

	rep, err := c.runner.Run(ctx, snap, stopCh)
	outcome := "ok"
	switch {
	case errors.Is(err, models.ErrLockTimeout):
		outcome = "lock_timeout"
	case err != nil:
		outcome = "error"
	case rep.Stopped:
		outcome = "stopped"
	}
	c.recordCycle(&rep, err, outcome, start)
	c.logger.Info("cycle finished",
		xlogger.Int64("config_version", rep.ConfigVersion),
		xlogger.Int("evaluated", rep.Evaluated),
		xlogger.Int("skipped", rep.Skipped),
		xlogger.Int("errors", len(rep.Errors)),
		xlogger.Duration("duration_ms", time.Since(start)),
	)
	return rep, err
}

func (c *BotController) recordCycle(rep *CycleReport, err error, outcome string, start time.Time) {
	c.metrics.RecordCycle(outcome, time.Since(start).Seconds())
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles++
	if rep != nil {
		c.last = rep
	}
	c.lastErr = ""
	if err != nil {
		c.lastErr = err.Error()
	}
}

func (c *BotController) setRunning(v bool) {
	c.mu.Lock()
	c.running = v
	c.mu.Unlock()
}

func (c *BotController) setNextRun(t time.Time) {
	c.mu.Lock()
	if c.state == BotRunning {
		c.nextRun = t
	}
	c.mu.Unlock()
}

func (c *BotController) statusLocked() BotStatus {
	st := BotStatus{
		State:      c.state,
		Interval:   c.interval.String(),
		Cycles:     c.cycles,
		LastError:  c.lastErr,
		InProgress: c.running,
	}
	if c.state == BotRunning {
		started := c.startedAt
		st.StartedAt = &started
		if !c.nextRun.IsZero() {
			next := c.nextRun
			st.NextRunAt = &next
		}
	}
	if c.last != nil {
		rep := *c.last
		st.LastCycle = &rep
	}
	return st
}
