package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hazz-dev/netpulse/internal/config"
)

const (
	DefaultSSLPort    = 443
	DefaultSSLTimeout = 5 * time.Second

	unknownIssuer = "Unknown"
)

var oidCommonName = asn1.ObjectIdentifier{2, 5, 4, 3}

// SSLOptions tunes a single certificate check.
type SSLOptions struct {
	Port  int
	Roots *x509.CertPool // nil means the system pool
}

type sslChecker struct {
	target  string
	timeout time.Duration
	opts    SSLOptions
}

func newSSLChecker(p config.Probe, roots *x509.CertPool) *sslChecker {
	return &sslChecker{
		target:  p.Target,
		timeout: p.Timeout.Duration,
		opts:    SSLOptions{Port: p.Port, Roots: roots},
	}
}

func (c *sslChecker) Check(ctx context.Context) Result {
	return CheckSSL(ctx, c.target, c.timeout, c.opts)
}

// CheckSSL reports how many whole days remain before the certificate served
// for target expires. target may be a bare hostname or a URL.
//
// A certificate that expires within a day, or already has, yields a failed
// result without an error message. Latency is not measured.
func CheckSSL(ctx context.Context, target string, timeout time.Duration, opts SSLOptions) SSLResult {
	if timeout <= 0 {
		timeout = DefaultSSLTimeout
	}
	if opts.Port <= 0 {
		opts.Port = DefaultSSLPort
	}

	hostname := Hostname(target)
	start := time.Now()

	leaf, err := peerCertificate(ctx, hostname, timeout, opts)
	if err != nil {
		return SSLResult{CheckResult: failed(hostname, start, tlsFailure(err))}
	}
	issuer, err := issuerCommonName(leaf.RawIssuer)
	if err != nil {
		return SSLResult{CheckResult: failed(hostname, start, err.Error())}
	}

	days := daysRemaining(leaf.NotAfter.UTC(), time.Now().UTC())
	valid := days > 0

	return SSLResult{
		CheckResult: CheckResult{
			Target:     hostname,
			Successful: valid,
			CheckedAt:  start,
		},
		DaysRemaining: days,
		Issuer:        issuer,
		Valid:         valid,
	}
}

// Hostname extracts the host from a URL-shaped target and returns anything
// else unchanged.
func Hostname(target string) string {
	if !strings.Contains(target, "://") {
		return target
	}
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return target
	}
	return strings.ToLower(u.Hostname())
}

func peerCertificate(ctx context.Context, hostname string, timeout time.Duration, opts SSLOptions) (*x509.Certificate, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName: hostname,
			// Verification runs in VerifyConnection so that an expired but
			// otherwise trusted certificate is still reported by expiry.
			InsecureSkipVerify: true,
			VerifyConnection: func(cs tls.ConnectionState) error {
				return verifyPeer(cs, hostname, opts.Roots)
			},
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(hostname, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	certs := conn.(*tls.Conn).ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, errNoCertificate
	}
	return certs[0], nil
}

// verifyPeer checks the chain and hostname against roots, evaluated no later
// than the leaf's expiry.
func verifyPeer(cs tls.ConnectionState, hostname string, roots *x509.CertPool) error {
	if len(cs.PeerCertificates) == 0 {
		return nil
	}
	leaf := cs.PeerCertificates[0]

	now := time.Now()
	if now.After(leaf.NotAfter) {
		now = leaf.NotAfter
	}
	opts := x509.VerifyOptions{
		DNSName:       hostname,
		Roots:         roots,
		Intermediates: x509.NewCertPool(),
		CurrentTime:   now,
	}
	for _, c := range cs.PeerCertificates[1:] {
		opts.Intermediates.AddCert(c)
	}
	_, err := leaf.Verify(opts)
	return err
}

// daysRemaining floors the time left to whole days, so 9d23h is 9 and an
// expiry one hour ago is -1. It works in whole seconds rather than
// time.Duration, which saturates around 292 years.
func daysRemaining(expiry, now time.Time) int {
	secs := expiry.Unix() - now.Unix()
	if expiry.Nanosecond() < now.Nanosecond() {
		secs--
	}
	const day = 24 * 60 * 60
	days := secs / day
	if secs%day < 0 {
		days--
	}
	return int(days)
}

func issuerCommonName(raw []byte) (string, error) {
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(raw, &rdns)
	if err != nil {
		return "", fmt.Errorf("parsing certificate issuer: %w", err)
	}
	if len(rest) > 0 {
		return "", fmt.Errorf("parsing certificate issuer: %d trailing bytes", len(rest))
	}
	return collapseCommonName(rdns), nil
}

// collapseCommonName flattens every RDN set into one attribute map, later
// attributes replacing earlier ones, and returns its commonName.
func collapseCommonName(rdns pkix.RDNSequence) string {
	attrs := make(map[string]any)
	for _, rdn := range rdns {
		for _, atv := range rdn {
			attrs[atv.Type.String()] = atv.Value
		}
	}
	cn, ok := attrs[oidCommonName.String()]
	if !ok {
		return unknownIssuer
	}
	return fmt.Sprint(cn)
}
