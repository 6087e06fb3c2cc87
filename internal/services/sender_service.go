package services

import (
	"context"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"

	"github.com/goldmansoap/findmycat-agent/internal/models"
	"github.com/goldmansoap/findmycat-agent/internal/session"
	"github.com/goldmansoap/findmycat-agent/pkg/api"
)

// LocationAPI is the server surface the sync services depend on.
type LocationAPI interface {
	Health(ctx context.Context) (int, error)
	ClaimPairing(ctx context.Context, code string) (string, error)
	SendLocationUpdate(ctx context.Context, update api.LocationUpdate) api.SendResult
	SetToken(token string)
	BaseURL() string
}

// SenderService delivers accepted cache rows to the server. Rows are grouped
// into fixed-size batches for iteration, but every row is posted as its own
// request; a failed row is logged and never fails the cycle.
type SenderService struct {
	batchSize int

	apiClient LocationAPI
	session   *session.Session
	logger    zerolog.Logger

	// Last delivery outcome per device, written by the concurrent send
	// goroutines and read by observers.
	deliveries cmap.ConcurrentMap[string, api.SendResult]

	wg sync.WaitGroup
}

// NewSenderService creates a SenderService with the given batch size.
func NewSenderService(batchSize int, apiClient LocationAPI, sess *session.Session, logger zerolog.Logger) *SenderService {
	return &SenderService{
		batchSize:  batchSize,
		apiClient:  apiClient,
		session:    sess,
		logger:     logger,
		deliveries: cmap.New[api.SendResult](),
	}
}

// SendLocations dispatches one POST per row across all batches. Requests
// run concurrently; no completion ordering is guaranteed. The call returns
// once every request has been issued, not once they complete.
func (s *SenderService) SendLocations(ctx context.Context, rows []models.DeviceLocation) {
	if len(rows) == 0 {
		s.session.Appendf("No locations found in Find My cache")
		return
	}

	for _, batch := range BatchRows(rows, s.batchSize) {
		for _, row := range batch {
			s.wg.Add(1)
			go func(row models.DeviceLocation) {
				defer s.wg.Done()
				s.sendOne(ctx, row)
			}(row)
		}
	}

	s.logger.Debug().Int("rows", len(rows)).Int("batch_size", s.batchSize).Msg("Dispatched location updates")
}

// Wait blocks until all dispatched sends have completed. Used on shutdown
// and in tests; the poll cycle itself never waits.
func (s *SenderService) Wait() {
	s.wg.Wait()
}

// Deliveries returns the last delivery outcome per device id.
func (s *SenderService) Deliveries() map[string]api.SendResult {
	return s.deliveries.Items()
}

func (s *SenderService) sendOne(ctx context.Context, row models.DeviceLocation) {
	result := s.apiClient.SendLocationUpdate(ctx, api.LocationUpdate{
		DeviceID:  row.DeviceID,
		Latitude:  row.Latitude,
		Longitude: row.Longitude,
		Timestamp: row.ISOTime,
	})
	s.deliveries.Set(row.DeviceID, result)

	switch result.Outcome {
	case api.SendStored:
		s.session.Appendf("New location stored for %s @ %.6f,%.6f %s", row.DeviceID, row.Latitude, row.Longitude, row.ISOTime)
	case api.SendDuplicate:
		s.session.Appendf("No change for %s (already up to date)", row.DeviceID)
	case api.SendAccepted:
		s.session.Appendf("Location update accepted for %s", row.DeviceID)
	default:
		s.logger.Error().Str("device_id", row.DeviceID).Str("detail", result.Detail).Msg("Failed to send location update")
		s.session.Appendf("Failed to send update for %s: %s", row.DeviceID, result.Detail)
		s.session.SetStatus(models.StatusError, result.Detail)
	}
}

// BatchRows splits rows into groups of at most size. The grouping structures
// iteration only; it has no effect on how many requests are made.
func BatchRows(rows []models.DeviceLocation, size int) [][]models.DeviceLocation {
	if size <= 0 {
		size = 1
	}
	var batches [][]models.DeviceLocation
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, rows[start:end])
	}
	return batches
}
