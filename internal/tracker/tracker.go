// Package tracker runs the tracking session: it captures a fix on start
// and on every tick, renders it, and forwards it to the tracking server.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shaunagostinho/geotrack/internal/gps"
	"github.com/shaunagostinho/geotrack/internal/metrics"
	"github.com/shaunagostinho/geotrack/internal/uplink"
)

// Locator returns one fix. gps.Provider satisfies it.
type Locator interface {
	Locate(ctx context.Context, opts gps.Options) (gps.Fix, error)
}

// Uplink delivers fixes to the tracking server. uplink.Client satisfies it.
type Uplink interface {
	Send(ctx context.Context, fix gps.Fix) error
	Probe(ctx context.Context) (uplink.Health, error)
}

// Config holds session timing.
type Config struct {
	Interval       time.Duration // Period between captures
	CaptureTimeout time.Duration // Bound on a single Locate
}

// Snapshot is the current tracker state as shown to a new viewer.
type Snapshot struct {
	Active   bool     `json:"active"`
	Session  string   `json:"session,omitempty"`
	Status   Status   `json:"status"`
	Controls Controls `json:"controls"`
	Fix      *Reading `json:"fix,omitempty"`
}

// Tracker is the tracking session controller. At most one ticker exists
// at a time.
type Tracker struct {
	cfg     Config
	locator Locator
	uplink  Uplink
	display Display
	clock   clock.Clock
	logger  zerolog.Logger

	mu       sync.Mutex
	active   bool
	session  uuid.UUID
	ticker   *clock.Ticker
	done     chan struct{}
	status   Status
	controls Controls
	last     *Reading

	wg sync.WaitGroup
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock, used by tests.
func WithClock(c clock.Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// New creates an inactive Tracker. A nil locator means the device has no
// location capability; every capture then reports it as unsupported.
func New(cfg Config, locator Locator, up Uplink, display Display, logger zerolog.Logger, opts ...Option) *Tracker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = gps.DefaultOptions().Timeout
	}
	if display == nil {
		display = Displays(nil)
	}
	t := &Tracker{
		cfg:      cfg,
		locator:  locator,
		uplink:   up,
		display:  display,
		clock:    clock.New(),
		logger:   logger.With().Str("component", "tracker").Logger(),
		status:   Status{Message: MsgIdle, Category: CategoryInactive},
		controls: Controls{StartEnabled: true, StopEnabled: false},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins a session: one immediate capture, then one per interval.
// Captures run on ctx. It reports false if a session was already active.
func (t *Tracker) Start(ctx context.Context) bool {
	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return false
	}
	t.active = true
	t.session = uuid.New()
	t.ticker = t.clock.Ticker(t.cfg.Interval)
	t.done = make(chan struct{})
	ticker, done := t.ticker, t.done
	t.setControlsLocked(Controls{StartEnabled: false, StopEnabled: true})
	t.setStatusLocked(Status{Message: MsgStarting, Category: CategoryInactive})
	session := t.session.String()
	t.mu.Unlock()

	metrics.SessionActive.Set(1)
	t.logger.Info().Str("session", session).Dur("interval", t.cfg.Interval).Msg("tracking started")

	t.spawn(ctx)

	t.wg.Add(1)
	go t.tickLoop(ctx, ticker, done)
	return true
}

// Stop ends the session and releases the ticker. Captures already in
// flight are not cancelled and may still update the display. It reports
// false if no session was active.
func (t *Tracker) Stop() bool {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return false
	}
	t.active = false
	t.ticker.Stop()
	t.ticker = nil
	close(t.done)
	t.done = nil
	session := t.session.String()
	t.setControlsLocked(Controls{StartEnabled: true, StopEnabled: false})
	t.setStatusLocked(Status{Message: MsgStopped, Category: CategoryInactive})
	t.mu.Unlock()

	metrics.SessionActive.Set(0)
	t.logger.Info().Str("session", session).Msg("tracking stopped")
	return true
}

// Wait blocks until the tick loop and all in-flight captures finish.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) tickLoop(ctx context.Context, ticker *clock.Ticker, done <-chan struct{}) {
	defer t.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			t.spawn(ctx)
		}
	}
}

// spawn runs one capture without waiting for earlier ones.
func (t *Tracker) spawn(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		_, _ = t.CaptureOnce(ctx)
	}()
}

// CaptureOnce requests one fresh high-accuracy fix. On success the fix is
// displayed and sent to the server; a failed send only changes the status.
// The returned error describes the location failure, if any.
func (t *Tracker) CaptureOnce(ctx context.Context) (gps.Fix, error) {
	log := t.logger.With().Str("session", t.Session()).Logger()

	if t.locator == nil {
		metrics.CapturesTotal.WithLabelValues("not_supported").Inc()
		log.Warn().Msg("no location provider configured")
		t.setStatus(Status{Message: MsgNotSupported, Category: CategoryError})
		return gps.Fix{}, gps.ErrNotSupported
	}

	opts := gps.DefaultOptions()
	opts.Timeout = t.cfg.CaptureTimeout

	fix, err := t.locator.Locate(ctx, opts)
	if err != nil {
		code := gps.Classify(err)
		metrics.CapturesTotal.WithLabelValues(code.String()).Inc()
		log.Error().Err(err).Str("code", code.String()).Msg("location capture failed")
		t.setStatus(Status{Message: FailureMessage(code), Category: CategoryError})
		return gps.Fix{}, err
	}
	metrics.CapturesTotal.WithLabelValues("ok").Inc()

	reading := FormatFix(fix)
	t.mu.Lock()
	t.last = &reading
	t.display.ShowFix(reading)
	t.setStatusLocked(Status{Message: MsgActive, Category: CategoryActive})
	t.mu.Unlock()

	log.Debug().
		Float64("lat", fix.Latitude).
		Float64("lon", fix.Longitude).
		Float64("accuracy", fix.Accuracy).
		Msg("location captured")

	t.transmit(ctx, log, fix)
	return fix, nil
}

func (t *Tracker) transmit(ctx context.Context, log zerolog.Logger, fix gps.Fix) {
	if t.uplink == nil {
		return
	}
	started := t.clock.Now()
	err := t.uplink.Send(ctx, fix)
	metrics.TransmissionDuration.Observe(t.clock.Since(started).Seconds())
	if err != nil {
		metrics.TransmissionsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("failed to send location")
		t.setStatus(Status{Message: MsgSendFailed, Category: CategoryError})
		return
	}
	metrics.TransmissionsTotal.WithLabelValues("ok").Inc()
}

// Probe checks the tracking server and, while idle, reflects the result in
// the status banner. It never affects whether a session may start.
func (t *Tracker) Probe(ctx context.Context) uplink.Health {
	if t.uplink == nil {
		return uplink.HealthDown
	}
	health, err := t.uplink.Probe(ctx)
	metrics.EndpointHealth.Set(float64(health))
	event := t.logger.Info()
	if err != nil {
		event = t.logger.Warn().Err(err)
	}
	event.Str("health", health.String()).Msg("server probe finished")

	t.mu.Lock()
	if !t.active {
		t.setStatusLocked(HealthStatus(health))
	}
	t.mu.Unlock()
	return health
}

// Active reports whether a session is running.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Session returns the ID of the current or most recent session, or ""
// before the first start.
func (t *Tracker) Session() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == uuid.Nil {
		return ""
	}
	return t.session.String()
}

// Status returns the current banner.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Snapshot returns everything a new viewer needs to render the panel.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Snapshot{
		Active:   t.active,
		Status:   t.status,
		Controls: t.controls,
	}
	if t.session != uuid.Nil {
		s.Session = t.session.String()
	}
	if t.last != nil {
		r := *t.last
		s.Fix = &r
	}
	return s
}

func (t *Tracker) setStatus(s Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setStatusLocked(s)
}

func (t *Tracker) setStatusLocked(s Status) {
	t.status = s
	t.display.ShowStatus(s)
}

func (t *Tracker) setControlsLocked(c Controls) {
	t.controls = c
	t.display.ShowControls(c)
}
