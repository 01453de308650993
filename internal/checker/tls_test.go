package checker_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/hazz-dev/netpulse/internal/checker"
	"github.com/hazz-dev/netpulse/internal/config"
)

// issueCert creates a self-signed certificate for 127.0.0.1 and a pool that
// trusts it.
func issueCert(t *testing.T, notBefore, notAfter time.Time) (tls.Certificate, *x509.CertPool) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"Example"},
			CommonName:   "netpulse test CA",
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, pool
}

// startTLSServer serves cert on a loopback port and returns the port.
func startTLSServer(t *testing.T, cert tls.Certificate) int {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				conn.(*tls.Conn).Handshake()
				conn.Close()
			}()
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func sslOptions(port int, roots *x509.CertPool) checker.SSLOptions {
	return checker.SSLOptions{Port: port, Roots: roots}
}

func TestSSLChecker_ValidCertificate(t *testing.T) {
	now := time.Now()
	cert, pool := issueCert(t, now.Add(-time.Hour), now.Add(10*24*time.Hour+time.Hour))
	port := startTLSServer(t, cert)

	c := checker.NewSSLCheckerWithRoots(config.Probe{
		Name:    "test-ssl",
		Kind:    "ssl",
		Target:  "127.0.0.1",
		Port:    port,
		Timeout: config.Duration{Duration: 2 * time.Second},
	}, pool)
	r, ok := c.Check(context.Background()).(checker.SSLResult)
	if !ok {
		t.Fatal("expected an SSLResult")
	}
	if !r.Successful || !r.Valid {
		t.Fatalf("expected a successful, valid result, got %+v", r)
	}
	if r.DaysRemaining < 9 || r.DaysRemaining > 11 {
		t.Errorf("expected about 10 days remaining, got %d", r.DaysRemaining)
	}
	if r.Issuer != "netpulse test CA" {
		t.Errorf("expected issuer common name, got %q", r.Issuer)
	}
	if r.Error != "" {
		t.Errorf("expected no error, got %q", r.Error)
	}
	if r.Latency != 0 {
		t.Errorf("expected latency to stay unmeasured, got %v", r.Latency)
	}
	if r.Target != "127.0.0.1" {
		t.Errorf("expected target 127.0.0.1, got %q", r.Target)
	}
}

func TestSSLChecker_ExpiredCertificateIsNotAnError(t *testing.T) {
	now := time.Now()
	cert, pool := issueCert(t, now.Add(-30*24*time.Hour), now.Add(-2*24*time.Hour))
	port := startTLSServer(t, cert)

	r := checker.CheckSSL(context.Background(), "127.0.0.1", 2*time.Second, sslOptions(port, pool))
	if r.Successful || r.Valid {
		t.Errorf("expected expired certificate to fail, got %+v", r)
	}
	if r.Error != "" {
		t.Errorf("expected no error for an expired certificate, got %q", r.Error)
	}
	if r.DaysRemaining > 0 {
		t.Errorf("expected non-positive days remaining, got %d", r.DaysRemaining)
	}
}

func TestSSLChecker_ExpiresToday(t *testing.T) {
	now := time.Now()
	cert, pool := issueCert(t, now.Add(-time.Hour), now.Add(12*time.Hour))
	port := startTLSServer(t, cert)

	r := checker.CheckSSL(context.Background(), "127.0.0.1", 2*time.Second, sslOptions(port, pool))
	if r.Successful || r.Valid {
		t.Errorf("expected a certificate expiring today to fail, got %+v", r)
	}
	if r.DaysRemaining != 0 {
		t.Errorf("expected 0 days remaining, got %d", r.DaysRemaining)
	}
	if r.Error != "" {
		t.Errorf("expected no error, got %q", r.Error)
	}
}

func TestSSLChecker_URLTarget(t *testing.T) {
	now := time.Now()
	cert, pool := issueCert(t, now.Add(-time.Hour), now.Add(90*24*time.Hour))
	port := startTLSServer(t, cert)

	target := fmt.Sprintf("https://127.0.0.1:%d/health", port)
	r := checker.CheckSSL(context.Background(), target, 2*time.Second, sslOptions(port, pool))
	if !r.Successful {
		t.Fatalf("expected success, got error %q", r.Error)
	}
	if r.Target != "127.0.0.1" {
		t.Errorf("expected hostname extracted from URL, got %q", r.Target)
	}
}

func TestSSLChecker_UntrustedCertificate(t *testing.T) {
	now := time.Now()
	cert, _ := issueCert(t, now.Add(-time.Hour), now.Add(30*24*time.Hour))
	_, otherPool := issueCert(t, now.Add(-time.Hour), now.Add(30*24*time.Hour))
	port := startTLSServer(t, cert)

	r := checker.CheckSSL(context.Background(), "127.0.0.1", 2*time.Second, sslOptions(port, otherPool))
	if r.Successful {
		t.Fatal("expected failure for an untrusted certificate")
	}
	if !strings.Contains(r.Error, "x509") {
		t.Errorf("expected the verification error, got %q", r.Error)
	}
	if r.DaysRemaining != 0 || r.Issuer != "" {
		t.Errorf("expected no certificate details, got %+v", r)
	}
}

func TestSSLChecker_Timeout(t *testing.T) {
	// Accepts TCP but never speaks TLS.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	r := checker.CheckSSL(context.Background(), "127.0.0.1", 100*time.Millisecond, sslOptions(port, nil))
	if r.Successful {
		t.Fatal("expected failure on timeout")
	}
	if r.Error != "Connection timed out" {
		t.Errorf("expected timeout message, got %q", r.Error)
	}
}

func TestSSLChecker_RefusedUsesUnderlyingMessage(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	r := checker.CheckSSL(context.Background(), "127.0.0.1", time.Second, sslOptions(port, nil))
	if r.Successful {
		t.Fatal("expected failure for closed port")
	}
	if !strings.Contains(r.Error, "refused") {
		t.Errorf("expected the dial error, got %q", r.Error)
	}
}

func TestHostname(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"example.com", "example.com"},
		{"https://Example.COM/path?q=1", "example.com"},
		{"https://user:pw@example.com:8443/", "example.com"},
		{"http://[::1]:443/", "::1"},
		{"https:///nohost", "https:///nohost"},
	}
	for _, tc := range tests {
		if got := checker.Hostname(tc.in); got != tc.want {
			t.Errorf("Hostname(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
