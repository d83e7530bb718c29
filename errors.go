package ddns

import (
	"errors"
	"fmt"
	"net"
)

// Error kinds returned by Client.Reconcile.
// Use errors.Is to tell them apart; the wrapped message carries the details.
var (
	// ErrNetwork means the IP lookup or a provider call could not reach the other side.
	ErrNetwork = errors.New("network error")
	// ErrConfiguration means the provider state is ambiguous or unsupported,
	// e.g. several candidate hosted zones or a record holding more than one value.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound means no hosted zone or no A record exists for the domain.
	ErrNotFound = errors.New("not found")
	// ErrProvider means a DNS provider API call failed.
	ErrProvider = errors.New("provider error")
	// ErrProtocol means the provider reported a change status we don't understand.
	ErrProtocol = errors.New("protocol error")
	// ErrTimeout means a submitted change did not reach INSYNC in time.
	ErrTimeout = errors.New("timeout")
)

// providerError wraps a failed provider call.
// Transport failures also match ErrNetwork.
func providerError(op string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Errorf("%s: %w: %w: %w", op, ErrProvider, ErrNetwork, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}
