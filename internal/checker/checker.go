// Package checker implements the four netpulse probes: a TCP handshake
// (ping), an HTTP GET, a DNS lookup and a TLS certificate expiry check.
//
// Every probe is a single blocking call that owns its sockets for the
// duration of the call. Failures are never returned as Go errors; they are
// folded into the result with a stable, human-readable message.
package checker

import (
	"context"
	"crypto/x509"
	"fmt"

	"github.com/hazz-dev/netpulse/internal/config"
)

// Checker performs a single probe.
type Checker interface {
	Check(ctx context.Context) Result
}

// New returns the appropriate Checker for the given probe configuration.
func New(p config.Probe) (Checker, error) {
	switch Kind(p.Kind) {
	case KindPing:
		return newTCPChecker(p), nil
	case KindHTTP:
		return newHTTPChecker(p), nil
	case KindDNS:
		return newDNSChecker(p), nil
	case KindSSL:
		return newSSLChecker(p, nil), nil
	default:
		return nil, fmt.Errorf("unknown check kind %q", p.Kind)
	}
}

// NewSSLCheckerWithRoots creates an ssl checker that trusts roots instead of
// the system pool (for testing).
func NewSSLCheckerWithRoots(p config.Probe, roots *x509.CertPool) Checker {
	return newSSLChecker(p, roots)
}
