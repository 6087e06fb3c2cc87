package cache

import (
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/goldmansoap/findmycat-agent/internal/models"
	"github.com/goldmansoap/findmycat-agent/pkg/file"
)

// LogSink receives human-readable log lines for the observer surface.
type LogSink interface {
	Appendf(format string, args ...any)
}

// Reader parses the Find My cache file into device locations. It never
// fails its caller: every failure mode degrades to an empty result and a
// log entry.
type Reader struct {
	fileOps file.FileOperations
	sink    LogSink
	logger  zerolog.Logger
}

// NewReader creates a cache Reader.
func NewReader(fileOps file.FileOperations, sink LogSink, logger zerolog.Logger) *Reader {
	return &Reader{
		fileOps: fileOps,
		sink:    sink,
		logger:  logger,
	}
}

// FetchLocations reads the cache file at path and returns the accepted
// device locations in input order. Duplicate device ids are kept as-is.
func (r *Reader) FetchLocations(path string) []models.DeviceLocation {
	raw, err := r.fileOps.ReadFileRaw(path)
	if err != nil {
		// Usually macOS privacy (TCC): the terminal needs Full Disk Access
		// before this file is readable.
		r.logger.Error().Err(err).Str("path", path).Msg("Failed to read Find My cache")
		r.sink.Appendf("Error reading cache; grant access")
		return nil
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		r.logger.Error().Err(err).Str("path", path).Msg("Failed to parse Find My cache")
		r.sink.Appendf("Error parsing cache JSON")
		return nil
	}

	items, ok := extractItems(parsed)
	if !ok {
		r.logger.Error().Str("path", path).Msg("Find My cache has an unexpected shape")
		r.sink.Appendf("Cache format not recognized")
		return nil
	}

	var rows []models.DeviceLocation
	for _, entry := range items {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if loc, ok := acceptRow(item); ok {
			rows = append(rows, loc)
		}
	}

	r.logger.Debug().Int("accepted", len(rows)).Int("total", len(items)).Msg("Parsed Find My cache")
	return rows
}

// extractItems unwraps the two supported cache shapes: a top-level array,
// or an object carrying an "items" array.
func extractItems(parsed any) ([]any, bool) {
	switch v := parsed.(type) {
	case []any:
		return v, true
	case map[string]any:
		if items, ok := v["items"].([]any); ok {
			return items, true
		}
	}
	return nil, false
}

// acceptRow applies the row filter: the location sub-object must exist, not
// be a safe location, not be stale, and carry numeric timestamp and
// coordinates. Device id falls back from id to identifier to "unknown".
func acceptRow(item map[string]any) (models.DeviceLocation, bool) {
	location, ok := item["location"].(map[string]any)
	if !ok {
		return models.DeviceLocation{}, false
	}
	if positionType, _ := location["positionType"].(string); positionType == "safeLocation" {
		return models.DeviceLocation{}, false
	}
	if isOld, _ := location["isOld"].(bool); isOld {
		return models.DeviceLocation{}, false
	}

	timestamp, ok := location["timeStamp"].(float64)
	if !ok {
		return models.DeviceLocation{}, false
	}
	latitude, ok := location["latitude"].(float64)
	if !ok {
		return models.DeviceLocation{}, false
	}
	longitude, ok := location["longitude"].(float64)
	if !ok {
		return models.DeviceLocation{}, false
	}

	deviceID, _ := item["id"].(string)
	if deviceID == "" {
		deviceID, _ = item["identifier"].(string)
	}
	if deviceID == "" {
		deviceID = "unknown"
	}

	return models.NewDeviceLocation(deviceID, latitude, longitude, timestamp), true
}
