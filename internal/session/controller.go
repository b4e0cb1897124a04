package session

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eleven-am/vision-client/internal/camera"
	"github.com/eleven-am/vision-client/internal/metrics"
	"github.com/eleven-am/vision-client/internal/shared"
	"github.com/eleven-am/vision-client/internal/socketio"
	"github.com/eleven-am/vision-client/internal/view"
)

const (
	DefaultFPSInterval = time.Second

	actionBuffer     = 64
	completionBuffer = 16
)

// Emitter is the outbound half of the socket connection.
type Emitter interface {
	Emit(event string, args ...any) bool
}

type Camera interface {
	Start(ctx context.Context) (*camera.Result, error)
	Stop(ctx context.Context) (*camera.Result, error)
}

type Publisher interface {
	Publish(view.State)
}

type Config struct {
	FPSInterval     time.Duration
	NotificationTTL time.Duration
	Clock           clock.Clock
	Metrics         *metrics.Metrics
	Publisher       Publisher
}

// Controller is the session's event loop. Inbound socket events, user actions,
// finished camera calls and the frame-rate tick are all handled on the single
// goroutine running Run, so the model needs no locking.
type Controller struct {
	emitter   Emitter
	camera    Camera
	publisher Publisher
	clock     clock.Clock
	metrics   *metrics.Metrics
	log       *slog.Logger

	fpsInterval time.Duration

	model    *view.Model
	frames   int
	lastTick time.Time
	expiry   *clock.Timer

	actions     chan Action
	completions chan func()
	done        chan struct{}
	running     sync.Once
	calls       sync.WaitGroup
}

func New(emitter Emitter, cam Camera, cfg Config, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	if cfg.FPSInterval <= 0 {
		cfg.FPSInterval = DefaultFPSInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(nil)
	}

	return &Controller{
		emitter:     emitter,
		camera:      cam,
		publisher:   cfg.Publisher,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		log:         log.With("component", "session"),
		fpsInterval: cfg.FPSInterval,
		model:       view.NewModel(cfg.NotificationTTL),
		actions:     make(chan Action, actionBuffer),
		completions: make(chan func(), completionBuffer),
		done:        make(chan struct{}),
	}
}

// Dispatch queues a user action for the event loop.
func (c *Controller) Dispatch(ctx context.Context, a Action) error {
	select {
	case <-c.done:
		return shared.ErrClosed
	default:
	}

	select {
	case c.actions <- a:
		return nil
	case <-c.done:
		return shared.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is cancelled. It must be called once.
func (c *Controller) Run(ctx context.Context, events <-chan socketio.Event) error {
	defer c.running.Do(func() { close(c.done) })

	ticker := c.clock.Ticker(c.fpsInterval)
	defer ticker.Stop()

	c.expiry = c.clock.Timer(time.Hour)
	c.expiry.Stop()
	defer c.expiry.Stop()

	c.lastTick = c.clock.Now()
	c.publish()

	for {
		select {
		case <-ctx.Done():
			c.calls.Wait()
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.handleEvent(ev)
		case a := <-c.actions:
			c.handleAction(ctx, a)
		case fn := <-c.completions:
			fn()
		case <-ticker.C:
			c.tick()
		case <-c.expiry.C:
			c.model.Notifications.Expire(c.clock.Now())
		}

		c.armExpiry()
		c.publish()
	}
}

func (c *Controller) tick() {
	now := c.clock.Now()
	elapsed := now.Sub(c.lastTick)
	if elapsed <= 0 {
		elapsed = c.fpsInterval
	}
	ms := float64(elapsed) / float64(time.Millisecond)

	c.model.FPS = int(math.Round(float64(c.frames) * 1000 / ms))
	c.metrics.FPS.Set(float64(c.model.FPS))

	c.frames = 0
	c.lastTick = now
}

func (c *Controller) notify(level view.Level, text string) {
	c.model.Notify(level, text, c.clock.Now())
	c.metrics.Notifications.WithLabelValues(string(level)).Inc()
}

// armExpiry points the expiry timer at the next notification deadline.
func (c *Controller) armExpiry() {
	now := c.clock.Now()
	c.model.Notifications.Expire(now)

	if !c.expiry.Stop() {
		select {
		case <-c.expiry.C:
		default:
		}
	}
	if next, ok := c.model.Notifications.NextExpiry(); ok {
		c.expiry.Reset(next.Sub(now))
	}
}

func (c *Controller) publish() {
	if c.publisher != nil {
		c.publisher.Publish(c.model.Snapshot())
	}
}

// async runs fn off the loop and hands its continuation back to the loop.
func (c *Controller) async(ctx context.Context, fn func(ctx context.Context) func()) {
	c.calls.Add(1)
	go func() {
		defer c.calls.Done()
		then := fn(ctx)
		select {
		case c.completions <- then:
		case <-ctx.Done():
		}
	}()
}
