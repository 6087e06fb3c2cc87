package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/goldmansoap/findmycat-agent/internal/session"
	"github.com/goldmansoap/findmycat-agent/pkg/api"
	"github.com/goldmansoap/findmycat-agent/pkg/credentials"
)

// Restarter is the scheduler surface the pairing flow needs: once paired,
// polling begins immediately on a fresh timer.
type Restarter interface {
	Restart()
}

// PairingService exchanges a user-entered pairing code for a durable auth
// token. Pairing is the sole transition out of the unpaired state; there is
// no unpair operation.
type PairingService struct {
	apiClient LocationAPI
	creds     credentials.StoreInterface
	session   *session.Session
	scheduler Restarter
	logger    zerolog.Logger
}

// NewPairingService creates a new PairingService instance.
func NewPairingService(apiClient LocationAPI, creds credentials.StoreInterface, sess *session.Session,
	scheduler Restarter, logger zerolog.Logger) *PairingService {
	return &PairingService{
		apiClient: apiClient,
		creds:     creds,
		session:   sess,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Pair claims the pairing code against the server. On success it installs
// the token, flips the session to paired, persists the credentials and
// restarts the poll timer. A failed credential write is logged but does not
// roll back the in-memory paired state.
func (p *PairingService) Pair(ctx context.Context, code string) error {
	if code == "" {
		return errors.New("pairing code is empty")
	}

	p.session.Appendf("Pairing with server using code...")

	token, err := p.apiClient.ClaimPairing(ctx, code)
	if err != nil {
		var pairingErr *api.PairingError
		if errors.As(err, &pairingErr) {
			switch pairingErr.Kind {
			case api.PairingNetwork:
				p.session.Appendf("Pairing failed: %s", pairingErr.Detail)
			case api.PairingRejected:
				p.session.Appendf("Pairing failed: %d %s", pairingErr.Status, pairingErr.Detail)
			default:
				p.session.Appendf("Pairing response was not usable: %s", pairingErr.Detail)
			}
		} else {
			p.session.Appendf("Pairing failed: %v", err)
		}
		p.logger.Error().Err(err).Msg("Pairing claim failed")
		return err
	}

	p.apiClient.SetToken(token)
	p.session.SetPaired(code)
	p.session.Appendf("Paired successfully")
	p.logger.Info().Msg("Paired with server")

	if err := p.creds.Save(token, p.apiClient.BaseURL(), code); err != nil {
		// The in-memory paired state stands even when persistence fails;
		// the next run will simply need a fresh code.
		p.logger.Error().Err(err).Msg("Failed to save credentials")
		p.session.Appendf("Could not save credentials: %v", err)
	}

	p.scheduler.Restart()
	return nil
}
