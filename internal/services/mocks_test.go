package services_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/goldmansoap/findmycat-agent/internal/models"
	"github.com/goldmansoap/findmycat-agent/pkg/api"
)

// MockLocationAPI is a mock implementation of the LocationAPI interface.
type MockLocationAPI struct {
	mock.Mock
}

func (m *MockLocationAPI) Health(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockLocationAPI) ClaimPairing(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func (m *MockLocationAPI) SendLocationUpdate(ctx context.Context, update api.LocationUpdate) api.SendResult {
	args := m.Called(ctx, update)
	return args.Get(0).(api.SendResult)
}

func (m *MockLocationAPI) SetToken(token string) {
	m.Called(token)
}

func (m *MockLocationAPI) BaseURL() string {
	args := m.Called()
	return args.String(0)
}

// MockCacheReader is a mock implementation of the CacheReader interface.
type MockCacheReader struct {
	mock.Mock
}

func (m *MockCacheReader) FetchLocations(path string) []models.DeviceLocation {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.DeviceLocation)
}

// MockLocationSender is a mock implementation of the LocationSender interface.
type MockLocationSender struct {
	mock.Mock
}

func (m *MockLocationSender) SendLocations(ctx context.Context, rows []models.DeviceLocation) {
	m.Called(ctx, rows)
}

// MockRestarter is a mock implementation of the Restarter interface.
type MockRestarter struct {
	mock.Mock
}

func (m *MockRestarter) Restart() {
	m.Called()
}

// MockCredentialStore is a mock implementation of credentials.StoreInterface.
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) Load() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockCredentialStore) Save(token, server, pairCode string) error {
	args := m.Called(token, server, pairCode)
	return args.Error(0)
}

func (m *MockCredentialStore) GetToken() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCredentialStore) GetServer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCredentialStore) GetPairCode() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockCredentialStore) IsPaired() bool {
	args := m.Called()
	return args.Bool(0)
}
