package models

import "time"

// DeviceLocation is one accepted row from the Find My cache. Instances are
// built by the cache reader and never mutated afterwards.
type DeviceLocation struct {
	DeviceID    string  `json:"deviceId"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	TimestampMs float64 `json:"timestampMs"`
	ISOTime     string  `json:"isoTime"`
}

// NewDeviceLocation derives the ISO timestamp from the epoch-millisecond
// value. The rendering is always UTC, independent of the host timezone.
func NewDeviceLocation(deviceID string, latitude, longitude, timestampMs float64) DeviceLocation {
	sec := int64(timestampMs) / 1000
	return DeviceLocation{
		DeviceID:    deviceID,
		Latitude:    latitude,
		Longitude:   longitude,
		TimestampMs: timestampMs,
		ISOTime:     time.Unix(sec, 0).UTC().Format(time.RFC3339),
	}
}
