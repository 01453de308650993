package checker

import "time"

// Kind identifies which check produced a result.
type Kind string

const (
	KindPing Kind = "ping"
	KindHTTP Kind = "http"
	KindDNS  Kind = "dns"
	KindSSL  Kind = "ssl"
)

// CheckResult holds the fields shared by every check outcome.
//
// Error is empty unless the check failed with a recognised or unrecognised
// fault. Two failures carry no error: an HTTP response with status >= 400 and
// a reachable host whose certificate expires within a day or has expired.
type CheckResult struct {
	Target     string
	Successful bool
	Latency    time.Duration
	Error      string
	CheckedAt  time.Time
}

// Result is implemented by PingResult, HTTPResult, DNSResult and SSLResult.
type Result interface {
	Kind() Kind
	Base() CheckResult
}

// PingResult is the outcome of a TCP handshake check.
type PingResult struct {
	CheckResult
	Host string
}

// HTTPResult is the outcome of an HTTP GET check. StatusCode is 0 when no
// response was received.
type HTTPResult struct {
	CheckResult
	StatusCode int
	URL        string
}

// DNSResult is the outcome of a name resolution check.
type DNSResult struct {
	CheckResult
	IP         string
	Domain     string
	RecordType string
}

// SSLResult is the outcome of a certificate expiry check.
type SSLResult struct {
	CheckResult
	DaysRemaining int
	Issuer        string
	Valid         bool
}

func (PingResult) Kind() Kind { return KindPing }
func (HTTPResult) Kind() Kind { return KindHTTP }
func (DNSResult) Kind() Kind  { return KindDNS }
func (SSLResult) Kind() Kind  { return KindSSL }

func (r PingResult) Base() CheckResult { return r.CheckResult }
func (r HTTPResult) Base() CheckResult { return r.CheckResult }
func (r DNSResult) Base() CheckResult  { return r.CheckResult }
func (r SSLResult) Base() CheckResult  { return r.CheckResult }

func failed(target string, start time.Time, msg string) CheckResult {
	return CheckResult{
		Target:    target,
		Error:     msg,
		CheckedAt: start,
	}
}
