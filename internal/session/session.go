package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goldmansoap/findmycat-agent/internal/models"
)

// State is the sync engine's position in its pairing/polling machine.
type State int

const (
	// StateUnpaired means no auth token is held; all polling is gated off.
	StateUnpaired State = iota
	// StateIdle means paired and waiting for the next tick.
	StateIdle
	// StatePolling means a poll cycle is in flight.
	StatePolling
)

// String returns a short label for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	default:
		return "unpaired"
	}
}

// maxLogChars bounds the observer-facing log buffer to the most recent text.
const maxLogChars = 8000

// Snapshot is a read-only copy of the published session state.
type Snapshot struct {
	State      State
	Status     models.ConnectionStatus
	IsPaired   bool
	PairedCode string
	LastUpdate time.Time
	LastError  string
	Devices    []models.DeviceLocation
	Log        string
}

// Session owns the state observers read: connection status, device list,
// log buffer, pairing flags. Writers never touch the state directly; every
// mutation is posted as an event onto one serializing queue, so concurrent
// completions (health check, per-row sends) can never tear it.
type Session struct {
	logger zerolog.Logger

	events chan func()
	notify chan struct{}

	// lc guards the lifecycle (running, cancel). post holds its read lock
	// across the running check and the channel send, so Stop cannot slip
	// between them and strand an event in the buffer.
	lc      sync.RWMutex
	running bool
	cancel  func()

	mu         sync.RWMutex
	state      State
	status     models.ConnectionStatus
	pairedCode string
	lastUpdate time.Time
	lastError  string
	devices    []models.DeviceLocation
	log        string

	wg sync.WaitGroup
}

// NewSession creates an empty Session in the unpaired state.
func NewSession(logger zerolog.Logger) *Session {
	return &Session{
		logger: logger,
		events: make(chan func(), 128),
		notify: make(chan struct{}, 1),
		state:  StateUnpaired,
		status: models.StatusUnknown,
	}
}

// Start launches the event loop that applies posted mutations in order.
func (s *Session) Start() error {
	s.lc.Lock()
	if s.running {
		s.lc.Unlock()
		s.logger.Warn().Msg("Session is already running")
		return errors.New("session is already running")
	}
	done := make(chan struct{})
	s.cancel = func() { close(done) }
	s.running = true
	s.lc.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case ev := <-s.events:
				ev()
				s.signal()
			case <-done:
				// Drain whatever was queued before the stop.
				for {
					select {
					case ev := <-s.events:
						ev()
					default:
						return
					}
				}
			}
		}
	}()

	s.logger.Info().Msg("Session started")
	return nil
}

// Stop terminates the event loop after draining queued events.
func (s *Session) Stop() error {
	s.lc.Lock()
	if !s.running {
		s.lc.Unlock()
		s.logger.Warn().Msg("Session is not running")
		return errors.New("session is not running")
	}
	s.running = false
	cancel := s.cancel
	s.lc.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info().Msg("Session stopped")
	return nil
}

// Notify returns a channel that receives a pulse after state changes.
// Pulses coalesce; observers re-read Snapshot on each one.
func (s *Session) Notify() <-chan struct{} {
	return s.notify
}

// Snapshot returns a copy of the current published state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	devices := make([]models.DeviceLocation, len(s.devices))
	copy(devices, s.devices)

	return Snapshot{
		State:      s.state,
		Status:     s.status,
		IsPaired:   s.state != StateUnpaired,
		PairedCode: s.pairedCode,
		LastUpdate: s.lastUpdate,
		LastError:  s.lastError,
		Devices:    devices,
		Log:        s.log,
	}
}

// SetState moves the machine to the given state.
func (s *Session) SetState(state State) {
	s.post(func() { s.state = state })
}

// SetPaired marks the session paired with the given code. Pairing while
// already paired just updates the code.
func (s *Session) SetPaired(code string) {
	s.post(func() {
		s.pairedCode = code
		if s.state == StateUnpaired {
			s.state = StateIdle
		}
	})
}

// SetStatus records the latest connection outcome. lastErr is kept only for
// error statuses.
func (s *Session) SetStatus(status models.ConnectionStatus, lastErr string) {
	s.post(func() {
		s.status = status
		s.lastError = lastErr
	})
}

// SetDevices publishes the device list fetched by the current poll cycle,
// replacing the previous cycle's list.
func (s *Session) SetDevices(devices []models.DeviceLocation) {
	owned := make([]models.DeviceLocation, len(devices))
	copy(owned, devices)
	s.post(func() { s.devices = owned })
}

// SetLastUpdate records when the last poll cycle issued its sends.
func (s *Session) SetLastUpdate(t time.Time) {
	s.post(func() { s.lastUpdate = t })
}

// Appendf formats a log line, stamps it, and appends it to the bounded log
// buffer.
func (s *Session) Appendf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	stamped := time.Now().Format("15:04:05") + " " + line + "\n"
	s.logger.Info().Msg(line)
	s.post(func() {
		s.log += stamped
		if len(s.log) > maxLogChars {
			s.log = s.log[len(s.log)-maxLogChars:]
		}
	})
}

// post enqueues a mutation for the event loop. Before Start (and after
// Stop) mutations apply synchronously on the caller's goroutine; the state
// mutex keeps that safe either way. The lifecycle read lock is held across
// the running check and the send, so an event can never land in the buffer
// after Stop has drained it. The event loop applies events under the state
// mutex only, never the lifecycle lock, so a full buffer still drains.
func (s *Session) post(mutate func()) {
	ev := func() {
		s.mu.Lock()
		mutate()
		s.mu.Unlock()
	}

	s.lc.RLock()
	if s.running {
		s.events <- ev
		s.lc.RUnlock()
		return
	}
	s.lc.RUnlock()

	ev()
	s.signal()
}

func (s *Session) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
