package checker

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"syscall"
)

// Failure messages shared by the checks. They are part of the output
// contract and must not change.
const (
	msgConnTimeout   = "Connection timed out"
	msgResolveFailed = "DNS resolution failed"
	msgConnRefused   = "Connection refused (Port closed)"
	msgReqTimeout    = "Request timed out"
	msgConnFailed    = "Connection failed"
	msgNXDomain      = "Domain not found (NXDOMAIN)"
	msgNoAnswer      = "No answer for this record type"
	msgDNSTimeout    = "DNS query timed out"
	msgNoCertificate = "No certificate found"
)

var (
	errNXDomain      = errors.New("domain does not exist")
	errNoAnswer      = errors.New("no records of the requested type")
	errNoNameservers = errors.New("no nameservers configured")
	errNoCertificate = errors.New("peer presented no certificate")
)

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// isResolveError reports a failed name lookup, resolver timeouts included.
func isResolveError(err error) bool {
	var de *net.DNSError
	return errors.As(err, &de)
}

func isRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// isConnectError covers every failure to establish the transport: dial
// errors, lookups and TLS handshake rejections.
func isConnectError(err error) bool {
	if isResolveError(err) || isRefused(err) {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) && oe.Op == "dial" {
		return true
	}
	var cve *tls.CertificateVerificationError
	if errors.As(err, &cve) {
		return true
	}
	var rhe tls.RecordHeaderError
	return errors.As(err, &rhe)
}

// dialFailure maps a TCP dial error to its result message.
func dialFailure(err error) string {
	switch {
	case isResolveError(err):
		return msgResolveFailed
	case isTimeout(err):
		return msgConnTimeout
	case isRefused(err):
		return msgConnRefused
	default:
		return err.Error()
	}
}

// tlsFailure maps a TLS dial or handshake error. Refused connections are not
// singled out here and surface with the underlying message.
func tlsFailure(err error) string {
	switch {
	case errors.Is(err, errNoCertificate):
		return msgNoCertificate
	case isResolveError(err):
		return msgResolveFailed
	case isTimeout(err):
		return msgConnTimeout
	default:
		return err.Error()
	}
}

func dnsFailure(err error) string {
	switch {
	case errors.Is(err, errNXDomain):
		return msgNXDomain
	case errors.Is(err, errNoAnswer):
		return msgNoAnswer
	case isTimeout(err):
		return msgDNSTimeout
	default:
		return err.Error()
	}
}

func httpFailure(err error) string {
	switch {
	case isTimeout(err):
		return msgReqTimeout
	case isConnectError(err):
		return msgConnFailed
	default:
		return err.Error()
	}
}
