package cache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldmansoap/findmycat-agent/internal/cache"
	"github.com/goldmansoap/findmycat-agent/internal/session"
	"github.com/goldmansoap/findmycat-agent/pkg/file"
)

func newReader() (*cache.Reader, *session.Session) {
	sess := session.NewSession(zerolog.Nop())
	return cache.NewReader(file.NewFileService(), sess, zerolog.Nop()), sess
}

func writeCache(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Items.data")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const sampleCache = `[
  {"id": "cat-1", "location": {"timeStamp": 1700000000000, "latitude": 52.1, "longitude": 4.3}},
  {"id": "cat-2", "location": {"timeStamp": 1700000001000, "latitude": 52.2, "longitude": 4.4, "positionType": "safeLocation"}},
  {"id": "cat-3", "location": {"timeStamp": 1700000002000, "latitude": 52.3, "longitude": 4.5, "isOld": true}},
  {"id": "cat-4", "location": {"latitude": 52.4, "longitude": 4.6}},
  {"id": "cat-5", "location": {"timeStamp": 1700000003000, "longitude": 4.7}},
  {"id": "cat-6", "location": {"timeStamp": 1700000004000, "latitude": 52.6}},
  {"identifier": "cat-7", "location": {"timeStamp": 1700000005000, "latitude": 52.7, "longitude": 4.9}},
  {"location": {"timeStamp": 1700000006000, "latitude": 52.8, "longitude": 5.0}},
  {"id": "cat-9"}
]`

// TestReader_FilterRules tests the row acceptance filter: safe locations,
// stale pings and rows missing numeric fields are all excluded.
func TestReader_FilterRules(t *testing.T) {
	r, _ := newReader()
	path := writeCache(t, sampleCache)

	rows := r.FetchLocations(path)

	require.Len(t, rows, 3)
	assert.Equal(t, "cat-1", rows[0].DeviceID)
	assert.Equal(t, "cat-7", rows[1].DeviceID) // id absent, identifier used
	assert.Equal(t, "unknown", rows[2].DeviceID)
}

// TestReader_ISOTimeIsUTC pins the timestamp conversion: epoch milliseconds
// rendered as UTC ISO-8601, no local timezone applied.
func TestReader_ISOTimeIsUTC(t *testing.T) {
	r, _ := newReader()
	path := writeCache(t, `[{"id": "cat-1", "location": {"timeStamp": 1700000000000, "latitude": 1, "longitude": 2}}]`)

	rows := r.FetchLocations(path)

	require.Len(t, rows, 1)
	assert.Equal(t, "2023-11-14T22:13:20Z", rows[0].ISOTime)
	assert.Equal(t, float64(1700000000000), rows[0].TimestampMs)
}

// TestReader_ItemsWrapper tests the {"items": [...]} cache shape.
func TestReader_ItemsWrapper(t *testing.T) {
	r, _ := newReader()
	path := writeCache(t, `{"items": [{"id": "cat-1", "location": {"timeStamp": 1700000000000, "latitude": 1, "longitude": 2}}]}`)

	rows := r.FetchLocations(path)

	require.Len(t, rows, 1)
	assert.Equal(t, "cat-1", rows[0].DeviceID)
}

// TestReader_OrderAndDuplicates tests that input order is preserved and a
// device id appearing twice yields two entries.
func TestReader_OrderAndDuplicates(t *testing.T) {
	r, _ := newReader()
	path := writeCache(t, `[
  {"id": "cat-1", "location": {"timeStamp": 1700000000000, "latitude": 1, "longitude": 2}},
  {"id": "cat-1", "location": {"timeStamp": 1700000001000, "latitude": 3, "longitude": 4}}
]`)

	rows := r.FetchLocations(path)

	require.Len(t, rows, 2)
	assert.Equal(t, "cat-1", rows[0].DeviceID)
	assert.Equal(t, "cat-1", rows[1].DeviceID)
	assert.Equal(t, float64(1700000000000), rows[0].TimestampMs)
	assert.Equal(t, float64(1700000001000), rows[1].TimestampMs)
}

// TestReader_MissingFile tests that an unreadable cache degrades to an
// empty result and a permission hint in the log.
func TestReader_MissingFile(t *testing.T) {
	r, sess := newReader()

	rows := r.FetchLocations(filepath.Join(t.TempDir(), "absent.data"))

	assert.Empty(t, rows)
	assert.Contains(t, sess.Snapshot().Log, "Error reading cache; grant access")
}

// TestReader_InvalidJSON tests the malformed content path.
func TestReader_InvalidJSON(t *testing.T) {
	r, sess := newReader()
	path := writeCache(t, "\x00\x01 not json")

	rows := r.FetchLocations(path)

	assert.Empty(t, rows)
	assert.Contains(t, sess.Snapshot().Log, "Error parsing cache JSON")
}

// TestReader_UnrecognizedShape tests a JSON document that is neither an
// array nor an object with an items array.
func TestReader_UnrecognizedShape(t *testing.T) {
	r, sess := newReader()
	path := writeCache(t, `{"devices": 3}`)

	rows := r.FetchLocations(path)

	assert.Empty(t, rows)
	assert.Contains(t, sess.Snapshot().Log, "Cache format not recognized")
}

// TestReader_Idempotent tests that re-reading an unchanged file yields an
// identical ordered sequence.
func TestReader_Idempotent(t *testing.T) {
	r, _ := newReader()
	path := writeCache(t, sampleCache)

	first := r.FetchLocations(path)
	second := r.FetchLocations(path)

	assert.Equal(t, first, second)
}

// TestReader_NonNumericFieldsExcluded tests that string-typed coordinates
// or timestamps are rejected.
func TestReader_NonNumericFieldsExcluded(t *testing.T) {
	r, _ := newReader()
	path := writeCache(t, `[
  {"id": "cat-1", "location": {"timeStamp": "1700000000000", "latitude": 1, "longitude": 2}},
  {"id": "cat-2", "location": {"timeStamp": 1700000000000, "latitude": "1", "longitude": 2}},
  {"id": "cat-3", "location": {"timeStamp": 1700000000000, "latitude": 1, "longitude": "2"}}
]`)

	assert.Empty(t, r.FetchLocations(path))
}
