package checker

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/hazz-dev/netpulse/internal/config"
)

const (
	DefaultPingPort    = 80
	DefaultPingTimeout = 2 * time.Second
)

type tcpChecker struct {
	host    string
	port    int
	timeout time.Duration
}

func newTCPChecker(p config.Probe) *tcpChecker {
	return &tcpChecker{host: p.Target, port: p.Port, timeout: p.Timeout.Duration}
}

func (c *tcpChecker) Check(ctx context.Context) Result {
	return CheckTCP(ctx, c.host, c.port, c.timeout)
}

// CheckTCP opens a TCP connection to host:port and closes it as soon as the
// handshake completes. No ICMP is involved, so no privileges are needed.
// A non-positive port or timeout selects the default.
func CheckTCP(ctx context.Context, host string, port int, timeout time.Duration) PingResult {
	if port <= 0 {
		port = DefaultPingPort
	}
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}

	start := time.Now()
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return PingResult{CheckResult: failed(host, start, dialFailure(err))}
	}
	latency := time.Since(start)
	conn.Close()

	return PingResult{
		CheckResult: CheckResult{
			Target:     host,
			Successful: true,
			Latency:    latency,
			CheckedAt:  start,
		},
		Host: host,
	}
}
