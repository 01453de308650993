package checker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hazz-dev/netpulse/internal/checker"
	"github.com/hazz-dev/netpulse/internal/config"
)

func makeHTTPProbe(t *testing.T, url string, extras ...func(*config.Probe)) config.Probe {
	t.Helper()
	p := config.Probe{
		Name:    "test-http",
		Kind:    "http",
		Target:  url,
		Timeout: config.Duration{Duration: 5 * time.Second},
	}
	for _, fn := range extras {
		fn(&p)
	}
	return p
}

func checkHTTP(t *testing.T, p config.Probe) checker.HTTPResult {
	t.Helper()
	c, err := checker.New(p)
	if err != nil {
		t.Fatal(err)
	}
	r, ok := c.Check(context.Background()).(checker.HTTPResult)
	if !ok {
		t.Fatal("expected an HTTPResult")
	}
	return r
}

func TestHTTPChecker_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	r := checkHTTP(t, makeHTTPProbe(t, srv.URL))
	if !r.Successful {
		t.Errorf("expected success, got error %q", r.Error)
	}
	if r.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", r.StatusCode)
	}
	if r.Latency <= 0 {
		t.Errorf("expected positive latency, got %v", r.Latency)
	}
	if r.Error != "" {
		t.Errorf("expected no error, got %q", r.Error)
	}
	if r.URL != srv.URL || r.Target != srv.URL {
		t.Errorf("expected url and target to echo input, got %q / %q", r.URL, r.Target)
	}
}

func TestHTTPChecker_NotFoundIsFailureWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	r := checkHTTP(t, makeHTTPProbe(t, srv.URL))
	if r.Successful {
		t.Error("expected failure for 404")
	}
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", r.StatusCode)
	}
	if r.Error != "" {
		t.Errorf("expected no error for status failure, got %q", r.Error)
	}
	if r.Latency <= 0 {
		t.Errorf("expected latency to be reported, got %v", r.Latency)
	}
}

func TestHTTPChecker_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := checkHTTP(t, makeHTTPProbe(t, srv.URL))
	if r.Successful {
		t.Error("expected failure for 500")
	}
	if r.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", r.StatusCode)
	}
}

func TestHTTPChecker_RedirectNotFollowed(t *testing.T) {
	var hitTarget bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved" {
			hitTarget = true
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Redirect(w, r, "/moved", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	r := checkHTTP(t, makeHTTPProbe(t, srv.URL))
	if !r.Successful {
		t.Errorf("expected 301 to count as success, got error %q", r.Error)
	}
	if r.StatusCode != http.StatusMovedPermanently {
		t.Errorf("expected status 301, got %d", r.StatusCode)
	}
	if hitTarget {
		t.Error("redirect should not have been followed")
	}
}

func TestHTTPChecker_ConnectionFailed(t *testing.T) {
	// Use a server that we close immediately.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	r := checkHTTP(t, makeHTTPProbe(t, url))
	if r.Successful {
		t.Error("expected failure for closed server")
	}
	if r.Error != "Connection failed" {
		t.Errorf("expected connection failure, got %q", r.Error)
	}
	if r.StatusCode != 0 {
		t.Errorf("expected no status code, got %d", r.StatusCode)
	}
	if r.Latency != 0 {
		t.Errorf("expected zero latency on failure, got %v", r.Latency)
	}
	if r.URL != "" {
		t.Errorf("expected url unset on failure, got %q", r.URL)
	}
}

func TestHTTPChecker_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Block until request context is cancelled (client disconnects / timeout)
		<-r.Context().Done()
	}))
	defer srv.Close()

	r := checkHTTP(t, makeHTTPProbe(t, srv.URL, func(p *config.Probe) {
		p.Timeout = config.Duration{Duration: 50 * time.Millisecond}
	}))
	if r.Successful {
		t.Error("expected failure on timeout")
	}
	if r.Error != "Request timed out" {
		t.Errorf("expected timeout message, got %q", r.Error)
	}
	if r.Latency != 0 {
		t.Errorf("expected zero latency on timeout, got %v", r.Latency)
	}
}

func TestHTTPChecker_UnsupportedScheme(t *testing.T) {
	r := checker.CheckHTTP(context.Background(), "ftp://example.com/file", time.Second)
	if r.Successful {
		t.Error("expected failure for unsupported scheme")
	}
	if r.Error == "" || r.Error == "Connection failed" || r.Error == "Request timed out" {
		t.Errorf("expected the underlying error message, got %q", r.Error)
	}
}
