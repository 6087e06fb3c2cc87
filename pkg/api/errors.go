package api

import "fmt"

// PairingFailure classifies why a pairing claim did not yield a token.
type PairingFailure int

const (
	// PairingNetwork is a transport-level failure, the request never got a
	// response.
	PairingNetwork PairingFailure = iota
	// PairingRejected is a non-200 HTTP response from the server.
	PairingRejected
	// PairingMalformed is a 200 response whose body is not JSON or lacks a
	// token.
	PairingMalformed
)

// PairingError is the error returned by ClaimPairing.
type PairingError struct {
	Kind   PairingFailure
	Status int
	Detail string
}

func (e *PairingError) Error() string {
	switch e.Kind {
	case PairingNetwork:
		return fmt.Sprintf("pairing request failed: %s", e.Detail)
	case PairingRejected:
		return fmt.Sprintf("pairing rejected: status %d: %s", e.Status, e.Detail)
	default:
		return fmt.Sprintf("pairing response malformed: %s", e.Detail)
	}
}

// SendOutcome classifies the result of one location update POST.
type SendOutcome int

const (
	// SendStored means the server accepted and stored a new point.
	SendStored SendOutcome = iota
	// SendDuplicate means the server already knew this point.
	SendDuplicate
	// SendAccepted is a 2xx response without a recognizable body.
	SendAccepted
	// SendFailed is a transport error or non-2xx status.
	SendFailed
)

// String returns a short label for logs.
func (o SendOutcome) String() string {
	switch o {
	case SendStored:
		return "stored"
	case SendDuplicate:
		return "duplicate"
	case SendAccepted:
		return "accepted"
	default:
		return "failed"
	}
}

// SendResult is the classified outcome of one location update POST.
type SendResult struct {
	Outcome SendOutcome
	Status  int
	Detail  string
}
