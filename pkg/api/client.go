package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// LocationUpdate is the request body for POST /api/locations/update.
type LocationUpdate struct {
	DeviceID  string  `json:"deviceId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

// pairingClaim is the request body for POST /api/pairing/claim.
type pairingClaim struct {
	Code string `json:"code"`
}

// pairingResponse is the expected structure of a successful pairing reply.
type pairingResponse struct {
	Token string `json:"token"`
}

// sendResponse is the optional body returned by the location update
// endpoint. Success/IsNew distinguish a newly stored point from a duplicate.
type sendResponse struct {
	Success bool `json:"success"`
	IsNew   bool `json:"isNew"`
}

const defaultTimeout = 30 * time.Second

// snippetLimit bounds how much of an error response body is kept for logs.
const snippetLimit = 200

// Client talks to the FindMyCat server. It covers the three endpoints the
// agent consumes: health check, pairing claim and location update.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewClient creates a Client for the given server URL. A trailing slash on
// the URL is stripped so endpoint paths can be appended directly.
func NewClient(serverURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// BaseURL returns the normalized server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken installs the bearer token used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the currently installed bearer token, empty if unpaired.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Health probes GET /health. It returns the HTTP status code, or an error on
// transport failure. Any 2xx status counts as healthy for the caller.
func (c *Client) Health(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return 0, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	c.logger.Debug().Int("status", resp.StatusCode).Msg("Health check response")
	return resp.StatusCode, nil
}

// ClaimPairing exchanges a pairing code for an auth token via
// POST /api/pairing/claim. Only an exact 200 status is accepted; the token
// is returned but not installed, that is the caller's decision.
func (c *Client) ClaimPairing(ctx context.Context, code string) (string, error) {
	payload, err := json.Marshal(pairingClaim{Code: code})
	if err != nil {
		return "", &PairingError{Kind: PairingMalformed, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pairing/claim", bytes.NewReader(payload))
	if err != nil {
		return "", &PairingError{Kind: PairingNetwork, Detail: err.Error()}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &PairingError{Kind: PairingNetwork, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	// The server replies 200 on a successful claim. Anything else, 2xx
	// included, is a rejection.
	if resp.StatusCode != http.StatusOK {
		return "", &PairingError{Kind: PairingRejected, Status: resp.StatusCode, Detail: snippet(body)}
	}

	var pairing pairingResponse
	if err := json.Unmarshal(body, &pairing); err != nil {
		return "", &PairingError{Kind: PairingMalformed, Detail: snippet(body)}
	}
	if pairing.Token == "" {
		return "", &PairingError{Kind: PairingMalformed, Detail: "response did not include a token"}
	}

	c.logger.Debug().Msg("Pairing claim accepted")
	return pairing.Token, nil
}

// SendLocationUpdate posts one device location to /api/locations/update and
// classifies the outcome. Delivery failures are reported in the result, not
// as an error, because a failed row never fails the poll cycle.
func (c *Client) SendLocationUpdate(ctx context.Context, update LocationUpdate) SendResult {
	payload, err := json.Marshal(update)
	if err != nil {
		return SendResult{Outcome: SendFailed, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/locations/update", bytes.NewReader(payload))
	if err != nil {
		return SendResult{Outcome: SendFailed, Detail: err.Error()}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return SendResult{Outcome: SendFailed, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return SendResult{
			Outcome: SendFailed,
			Status:  resp.StatusCode,
			Detail:  fmt.Sprintf("server error %d: %s", resp.StatusCode, snippet(body)),
		}
	}

	// The server optionally reports whether the point was new or already
	// known. A 2xx without a parseable body is still an acceptance.
	var sendResp sendResponse
	if err := json.Unmarshal(body, &sendResp); err == nil && sendResp.Success {
		if sendResp.IsNew {
			return SendResult{Outcome: SendStored, Status: resp.StatusCode}
		}
		return SendResult{Outcome: SendDuplicate, Status: resp.StatusCode}
	}

	return SendResult{Outcome: SendAccepted, Status: resp.StatusCode}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > snippetLimit {
		return s[:snippetLimit]
	}
	return s
}
