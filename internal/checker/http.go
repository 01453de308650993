package checker

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hazz-dev/netpulse/internal/config"
)

const DefaultHTTPTimeout = 5 * time.Second

type httpChecker struct {
	url     string
	timeout time.Duration
}

func newHTTPChecker(p config.Probe) *httpChecker {
	return &httpChecker{url: p.Target, timeout: p.Timeout.Duration}
}

func (c *httpChecker) Check(ctx context.Context) Result {
	return CheckHTTP(ctx, c.url, c.timeout)
}

// CheckHTTP issues one GET to url. Redirects are reported as-is rather than
// followed. A response with status >= 400 is a failed check that still
// carries its status code and no error message.
func CheckHTTP(ctx context.Context, url string, timeout time.Duration) HTTPResult {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}

	start := time.Now()

	// The transport lives only for this call.
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
		TLSHandshakeTimeout: timeout,
		DisableKeepAlives:   true,
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HTTPResult{CheckResult: failed(url, start, err.Error())}
	}

	resp, err := client.Do(req)
	if err != nil {
		return HTTPResult{CheckResult: failed(url, start, httpFailure(err))}
	}
	_, err = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if err != nil {
		return HTTPResult{CheckResult: failed(url, start, httpFailure(err))}
	}
	latency := time.Since(start)

	return HTTPResult{
		CheckResult: CheckResult{
			Target:     url,
			Successful: resp.StatusCode < http.StatusBadRequest,
			Latency:    latency,
			CheckedAt:  start,
		},
		StatusCode: resp.StatusCode,
		URL:        url,
	}
}
