package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/goldmansoap/findmycat-agent/internal/models"
	"github.com/goldmansoap/findmycat-agent/internal/session"
)

// CacheReader abstracts the Find My cache parser.
type CacheReader interface {
	FetchLocations(path string) []models.DeviceLocation
}

// LocationSender abstracts the delivery path.
type LocationSender interface {
	SendLocations(ctx context.Context, rows []models.DeviceLocation)
}

// SyncService owns poll timing and orchestrates one cycle: health check,
// cache read, publish, send. All polling is gated on the paired state; the
// machine has no terminal state and runs for the process lifetime.
type SyncService struct {
	// Configuration fields
	interval  time.Duration
	cachePath string

	// Dependencies
	apiClient LocationAPI
	reader    CacheReader
	sender    LocationSender
	session   *session.Session
	logger    zerolog.Logger

	// Internal state management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex

	trigger chan struct{}
	restart chan struct{}
}

// NewSyncService creates a new SyncService instance with the provided configuration.
func NewSyncService(interval time.Duration, cachePath string, apiClient LocationAPI, reader CacheReader,
	sender LocationSender, sess *session.Session, logger zerolog.Logger) *SyncService {
	return &SyncService{
		interval:  interval,
		cachePath: cachePath,
		apiClient: apiClient,
		reader:    reader,
		sender:    sender,
		session:   sess,
		logger:    logger,
		trigger:   make(chan struct{}, 1),
		restart:   make(chan struct{}, 1),
	}
}

// Start launches the recurring poll loop in a separate goroutine.
func (s *SyncService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().Msg("SyncService is already running")
		return errors.New("sync service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runPollLoop()
	}()

	s.logger.Info().
		Dur("interval", s.interval).
		Str("cache_path", s.cachePath).
		Msg("SyncService started")
	return nil
}

// Stop gracefully stops the SyncService.
func (s *SyncService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Warn().Msg("SyncService is not running")
		return errors.New("sync service is not running")
	}

	s.cancel()
	s.wg.Wait()
	s.running = false

	s.logger.Info().Msg("SyncService stopped")
	return nil
}

// SendNow requests an immediate poll cycle outside the regular schedule.
// While unpaired the cycle itself is a logged no-op.
func (s *SyncService) SendNow() error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		s.logger.Warn().Msg("SendNow called while sync service is not running")
		return errors.New("sync service is not running")
	}

	select {
	case s.trigger <- struct{}{}:
	default:
		// A manual cycle is already pending.
	}
	return nil
}

// Restart replaces the current timer and schedules an immediate cycle. The
// pairing service calls this when the agent leaves the unpaired state.
// In-flight requests from a prior cycle are not cancelled.
func (s *SyncService) Restart() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if !running {
		return
	}

	select {
	case s.restart <- struct{}{}:
	default:
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunOnce executes a single poll cycle on the caller's goroutine. Used by
// the one-shot CLI mode.
func (s *SyncService) RunOnce(ctx context.Context) {
	s.poll(ctx)
}

func (s *SyncService) runPollLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// When the agent starts already paired, the first cycle runs right
	// away instead of waiting out a full interval. This also covers
	// pairing performed before Start, where Restart has no timer to reset.
	if s.session.Snapshot().IsPaired {
		s.poll(s.ctx)
	}

	for {
		select {
		case <-ticker.C:
			s.poll(s.ctx)
		case <-s.trigger:
			s.poll(s.ctx)
		case <-s.restart:
			ticker.Stop()
			ticker = time.NewTicker(s.interval)
			s.logger.Info().Dur("interval", s.interval).Msg("Poll timer restarted")
		case <-s.ctx.Done():
			s.logger.Info().Msg("SyncService is stopping")
			return
		}
	}
}

// poll runs one cycle: health check, cache fetch, publish, send. While
// unpaired it logs a single line and issues no requests.
func (s *SyncService) poll(ctx context.Context) {
	if !s.session.Snapshot().IsPaired {
		s.session.Appendf("Not paired; skipping sync")
		return
	}

	cycleID := uuid.New().String()
	s.session.SetState(session.StatePolling)
	defer s.session.SetState(session.StateIdle)

	s.logger.Debug().Str("cycle_id", cycleID).Msg("Poll cycle starting")

	s.checkHealth(ctx)

	rows := s.reader.FetchLocations(s.cachePath)
	s.session.SetDevices(rows)

	s.sender.SendLocations(ctx, rows)

	// lastUpdate marks when the sends were issued, not when they complete;
	// per-row completions land asynchronously.
	s.session.SetLastUpdate(time.Now())

	s.logger.Debug().Str("cycle_id", cycleID).Int("rows", len(rows)).Msg("Poll cycle dispatched")
}

// checkHealth probes the server and publishes the connection status. Any
// 2xx response counts as healthy.
func (s *SyncService) checkHealth(ctx context.Context) {
	status, err := s.apiClient.Health(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Health check failed")
		s.session.SetStatus(models.StatusError, err.Error())
		s.session.Appendf("Cannot connect to server: %v", err)
		return
	}

	if status >= 200 && status <= 299 {
		s.logger.Debug().Int("status", status).Msg("Server healthy")
		s.session.SetStatus(models.StatusConnected, "")
		s.session.Appendf("Connected to server")
		return
	}

	msg := fmt.Sprintf("Server error (HTTP %d)", status)
	s.logger.Error().Int("status", status).Msg("Server health check failed")
	s.session.SetStatus(models.StatusError, msg)
	s.session.Appendf("%s", msg)
}
