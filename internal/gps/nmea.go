package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// uere is the user equivalent range error in meters used to turn HDOP
// into a horizontal accuracy estimate.
const uere = 5.0

// NMEAProvider reads standard NMEA 0183 sentences from a UART GPS.
// Compatible with u-blox NEO-M8N and any standard NMEA GPS.
type NMEAProvider struct {
	portPath string
	baudRate int
	logger   zerolog.Logger
	now      func() time.Time
	open     func() (io.ReadCloser, error)

	connectMu sync.Mutex // serializes Connect

	mu      sync.Mutex
	port    io.ReadCloser
	connErr error
	closing bool
	done    chan struct{}
	updated chan struct{}

	epoch epoch

	last       Fix
	lastAt     time.Time // receipt time of last
	lastOK     bool
	lastHasAcc bool
	voidAt     time.Time // receipt time of the last RMC without a fix
}

// epoch collects the sentences the receiver emits for one UTC second.
type epoch struct {
	utc     string
	rmc     bool
	gga     bool
	hdop    float64
	quality int
}

// NMEAConfig holds configuration for the NMEA GPS provider.
type NMEAConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NewNMEA creates a new NMEA GPS provider.
func NewNMEA(cfg NMEAConfig, logger zerolog.Logger) *NMEAProvider {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600 // Standard NMEA default
	}
	n := &NMEAProvider{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
		logger:   logger.With().Str("component", "gps").Logger(),
		now:      time.Now,
		updated:  make(chan struct{}),
	}
	n.open = n.openSerial
	return n
}

func (n *NMEAProvider) Name() string { return "NMEA GPS" }

// Connect opens the receiver. It is a no-op while the port is open and
// reopens it after a read failure.
func (n *NMEAProvider) Connect() error {
	n.connectMu.Lock()
	defer n.connectMu.Unlock()

	n.mu.Lock()
	connected := n.port != nil
	n.mu.Unlock()
	if connected {
		return nil
	}

	rc, err := n.open()
	if err != nil {
		var pe *PositionError
		if !errors.As(err, &pe) {
			err = &PositionError{Code: PositionUnavailable, Err: err}
		}
		n.mu.Lock()
		n.connErr = err
		n.mu.Unlock()
		return err
	}
	n.attach(rc)
	n.logger.Info().Str("port", n.portPath).Int("baud", n.baudRate).Msg("connected")
	return nil
}

func (n *NMEAProvider) openSerial() (io.ReadCloser, error) {
	mode := &serial.Mode{
		BaudRate: n.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(n.portPath, mode)
	if err != nil {
		return nil, classifyOpenError(fmt.Errorf("open %s: %w", n.portPath, err))
	}
	if err := port.SetReadTimeout(200 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return port, nil
}

func classifyOpenError(err error) error {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PermissionDenied {
		return &PositionError{Code: PermissionDenied, Err: err}
	}
	return &PositionError{Code: PositionUnavailable, Err: err}
}

// attach starts reading sentences from rc.
func (n *NMEAProvider) attach(rc io.ReadCloser) {
	n.mu.Lock()
	n.port = rc
	n.connErr = nil
	n.closing = false
	n.done = make(chan struct{})
	done := n.done
	n.mu.Unlock()

	go n.readLoop(rc, done)
}

// Close stops reading. Later captures fail until Connect is called again.
func (n *NMEAProvider) Close() error {
	n.mu.Lock()
	port := n.port
	done := n.done
	n.closing = true
	n.mu.Unlock()

	if port == nil {
		return nil
	}
	err := port.Close()
	<-done

	n.mu.Lock()
	n.port = nil
	n.mu.Unlock()
	return err
}

// readLoop parses sentences until rc fails. A failure outside Close drops
// the port so the next Connect or Locate reopens it.
func (n *NMEAProvider) readLoop(rc io.ReadCloser, done chan struct{}) {
	defer close(done)

	br := bufio.NewReader(rc)
	var partial []byte
	for {
		chunk, err := br.ReadBytes('\n')
		partial = append(partial, chunk...)
		if err == nil {
			n.handleLine(strings.TrimSpace(string(partial)))
			partial = partial[:0]
			continue
		}
		// The serial read timeout surfaces as empty reads.
		if errors.Is(err, io.ErrNoProgress) {
			continue
		}

		n.mu.Lock()
		lost := !n.closing && n.port == rc
		if lost {
			n.port = nil
			n.connErr = &PositionError{Code: PositionUnavailable, Err: err}
			n.logger.Error().Err(err).Msg("read failed, receiver will be reopened")
		}
		n.notifyLocked()
		n.mu.Unlock()
		if lost {
			_ = rc.Close()
		}
		return
	}
}

// handleLine parses one sentence and publishes a fix when an epoch has
// enough data.
func (n *NMEAProvider) handleLine(line string) {
	if !strings.HasPrefix(line, "$") || !validateNMEAChecksum(line) {
		return
	}
	switch {
	case strings.HasPrefix(line, "$GPRMC"), strings.HasPrefix(line, "$GNRMC"):
		n.parseRMC(line)
	case strings.HasPrefix(line, "$GPGGA"), strings.HasPrefix(line, "$GNGGA"):
		n.parseGGA(line)
	}
}

func (n *NMEAProvider) parseRMC(line string) {
	// $GPRMC,hhmmss.ss,A,llll.ll,a,yyyyy.yy,a,x.x,x.x,ddmmyy,x.x,a*hh
	parts := splitNMEA(line)
	if len(parts) < 10 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	received := n.now()
	n.beginEpoch(parts[1])
	n.epoch.rmc = true

	if parts[2] != "A" {
		n.voidAt = received
		n.notifyLocked()
		return
	}

	n.last = Fix{
		Latitude:   parseNMEACoord(parts[3], parts[4]),
		Longitude:  parseNMEACoord(parts[5], parts[6]),
		CapturedAt: parseNMEATime(parts[9], parts[1], received),
	}
	n.lastHasAcc = false
	if n.epoch.gga && n.epoch.quality > 0 && n.epoch.hdop > 0 {
		n.last.Accuracy = n.epoch.hdop * uere
		n.lastHasAcc = true
	}
	n.lastAt = received
	n.lastOK = true
	n.notifyLocked()
}

func (n *NMEAProvider) parseGGA(line string) {
	// $GPGGA,hhmmss.ss,llll.ll,a,yyyyy.yy,a,x,xx,x.x,x.x,M,x.x,M,x.x,xxxx*hh
	parts := splitNMEA(line)
	if len(parts) < 11 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.beginEpoch(parts[1])
	n.epoch.gga = true
	if fix, err := strconv.Atoi(parts[6]); err == nil {
		n.epoch.quality = fix
	}
	if hdop, err := strconv.ParseFloat(parts[8], 64); err == nil {
		n.epoch.hdop = hdop
	}

	// RMC already published this epoch without an accuracy estimate.
	if n.epoch.rmc && n.lastOK && !n.lastHasAcc && n.epoch.quality > 0 && n.epoch.hdop > 0 {
		n.last.Accuracy = n.epoch.hdop * uere
		n.lastHasAcc = true
		n.lastAt = n.now()
		n.notifyLocked()
	}
}

func (n *NMEAProvider) beginEpoch(utc string) {
	if n.epoch.utc != utc {
		n.epoch = epoch{utc: utc}
	}
}

func (n *NMEAProvider) notifyLocked() {
	close(n.updated)
	n.updated = make(chan struct{})
}

// Locate waits for a fix that satisfies opts.
func (n *NMEAProvider) Locate(ctx context.Context, opts Options) (Fix, error) {
	ctx, cancel := withTimeout(ctx, opts)
	defer cancel()

	requested := n.now()
	reopened := false
	for {
		n.mu.Lock()
		if n.port == nil {
			closed, lastErr := n.closing, n.connErr
			n.mu.Unlock()
			if closed {
				return Fix{}, &PositionError{Code: PositionUnavailable, Err: ErrNotConnected}
			}
			// One reopen per request.
			if reopened && lastErr != nil {
				return Fix{}, lastErr
			}
			reopened = true
			if err := n.Connect(); err != nil {
				return Fix{}, err
			}
			continue
		}
		if n.acceptableLocked(requested, opts) {
			fix := n.last
			n.mu.Unlock()
			return fix, nil
		}
		if !n.voidAt.Before(requested) {
			n.mu.Unlock()
			return Fix{}, &PositionError{Code: PositionUnavailable, Err: errors.New("receiver has no satellite fix")}
		}
		wait := n.updated
		n.mu.Unlock()

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Fix{}, &PositionError{Code: Timeout, Err: ctx.Err()}
			}
			return Fix{}, &PositionError{Code: Unknown, Err: ctx.Err()}
		case <-wait:
		}
	}
}

func (n *NMEAProvider) acceptableLocked(requested time.Time, opts Options) bool {
	if !n.lastOK {
		return false
	}
	if opts.HighAccuracy && !n.lastHasAcc {
		return false
	}
	if opts.MaximumAge > 0 {
		return requested.Sub(n.lastAt) <= opts.MaximumAge
	}
	return !n.lastAt.Before(requested)
}

// splitNMEA splits a sentence and strips the checksum suffix.
func splitNMEA(line string) []string {
	if idx := strings.Index(line, "*"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimPrefix(line, "$")
	return strings.Split(line, ",")
}

// parseNMEACoord converts NMEA ddmm.mmmm format to decimal degrees.
func parseNMEACoord(raw, dir string) float64 {
	if raw == "" || dir == "" {
		return 0
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	deg := math.Floor(val / 100)
	min := val - deg*100
	result := deg + min/60

	if dir == "S" || dir == "W" {
		result = -result
	}
	return result
}

// parseNMEATime combines the RMC date (ddmmyy) and time (hhmmss.ss) fields.
// Falls back to fallback when either is missing or malformed.
func parseNMEATime(date, clock string, fallback time.Time) time.Time {
	if len(date) != 6 || len(clock) < 6 {
		return fallback
	}
	t, err := time.Parse("020106150405", date+clock[:6])
	if err != nil {
		return fallback
	}
	if len(clock) > 7 && clock[6] == '.' {
		if frac, err := strconv.ParseFloat("0"+clock[6:], 64); err == nil {
			t = t.Add(time.Duration(frac * float64(time.Second)))
		}
	}
	return t.UTC()
}

// validateNMEAChecksum checks the XOR checksum after *.
func validateNMEAChecksum(line string) bool {
	idx := strings.Index(line, "*")
	if idx < 0 || idx+3 > len(line) {
		return false
	}
	body := line[1:idx] // Between $ and *
	var calc byte
	for i := 0; i < len(body); i++ {
		calc ^= body[i]
	}
	expected, err := strconv.ParseUint(line[idx+1:idx+3], 16, 8)
	if err != nil {
		return false
	}
	return byte(expected) == calc
}
