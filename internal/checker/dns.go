package checker

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/hazz-dev/netpulse/internal/config"
)

const (
	DefaultRecordType = "A"
	DefaultDNSTimeout = 5 * time.Second
)

// resolvConfPath is read on every lookup that has no explicit nameservers.
var resolvConfPath = "/etc/resolv.conf"

// DNSOptions tunes a single lookup.
type DNSOptions struct {
	// Nameservers are queried in order as host:port. When empty the system
	// resolver configuration is used.
	Nameservers []string
	// Timeout bounds the whole lookup across all nameservers.
	Timeout time.Duration
}

type dnsChecker struct {
	domain     string
	recordType string
	opts       DNSOptions
}

func newDNSChecker(p config.Probe) *dnsChecker {
	return &dnsChecker{
		domain:     p.Target,
		recordType: p.RecordType,
		opts: DNSOptions{
			Nameservers: p.Nameservers,
			Timeout:     p.Timeout.Duration,
		},
	}
}

func (c *dnsChecker) Check(ctx context.Context) Result {
	return CheckDNS(ctx, c.domain, c.recordType, c.opts)
}

// CheckDNS resolves domain for recordType and reports the first answer of
// that type in the order the nameserver returned them.
func CheckDNS(ctx context.Context, domain, recordType string, opts DNSOptions) DNSResult {
	if recordType == "" {
		recordType = DefaultRecordType
	}
	recordType = strings.ToUpper(recordType)
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDNSTimeout
	}

	start := time.Now()
	answer, err := resolve(ctx, domain, recordType, opts)
	if err != nil {
		return DNSResult{
			CheckResult: failed(domain, start, dnsFailure(err)),
			RecordType:  recordType,
		}
	}
	latency := time.Since(start)

	return DNSResult{
		CheckResult: CheckResult{
			Target:     domain,
			Successful: true,
			Latency:    latency,
			CheckedAt:  start,
		},
		IP:         answer,
		Domain:     domain,
		RecordType: recordType,
	}
}

func resolve(ctx context.Context, domain, recordType string, opts DNSOptions) (string, error) {
	qtype, ok := dns.StringToType[recordType]
	if !ok {
		return "", fmt.Errorf("unknown record type %q", recordType)
	}
	if _, ok := dns.IsDomainName(domain); !ok || domain == "" {
		return "", fmt.Errorf("%q is not a valid domain name", domain)
	}

	servers, err := nameservers(opts.Nameservers)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(domain), qtype)

	var lastErr error
	for _, server := range servers {
		in, err := exchange(ctx, query, server, opts.Timeout)
		if err != nil {
			lastErr = err
			continue
		}
		switch in.Rcode {
		case dns.RcodeSuccess:
			return firstAnswer(in, qtype)
		case dns.RcodeNameError:
			return "", errNXDomain
		default:
			lastErr = fmt.Errorf("nameserver %s answered %s", server, dns.RcodeToString[in.Rcode])
		}
	}
	return "", lastErr
}

func nameservers(configured []string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}
	cc, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return nil, fmt.Errorf("reading resolver config: %w", err)
	}
	servers := make([]string, 0, len(cc.Servers))
	for _, s := range cc.Servers {
		servers = append(servers, net.JoinHostPort(s, cc.Port))
	}
	if len(servers) == 0 {
		return nil, errNoNameservers
	}
	return servers, nil
}

// exchange sends query over UDP and repeats it over TCP when the answer
// comes back truncated.
func exchange(ctx context.Context, query *dns.Msg, server string, timeout time.Duration) (*dns.Msg, error) {
	client := &dns.Client{Net: "udp", Timeout: timeout}
	in, _, err := client.ExchangeContext(ctx, query, server)
	if err != nil {
		return nil, err
	}
	if in.Truncated {
		client.Net = "tcp"
		in, _, err = client.ExchangeContext(ctx, query, server)
		if err != nil {
			return nil, err
		}
	}
	return in, nil
}

func firstAnswer(in *dns.Msg, qtype uint16) (string, error) {
	for _, rr := range in.Answer {
		if rr.Header().Rrtype == qtype {
			return rdata(rr), nil
		}
	}
	return "", errNoAnswer
}

// rdata renders the record data in presentation form, e.g. "93.184.216.34"
// for A or "10 mail.example.com." for MX.
func rdata(rr dns.RR) string {
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}
