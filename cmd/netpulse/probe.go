package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/netpulse/internal/checker"
	"github.com/hazz-dev/netpulse/internal/config"
)

// sslWarnDays flags certificates that expire within this many days.
const sslWarnDays = 30

// pingPause separates repeated pings.
var pingPause = time.Second

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

func pingCmd() *cobra.Command {
	var (
		port    int
		count   int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ping HOST",
		Short: "Check that a TCP port on a host accepts connections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(cmd.Context(), cmd.OutOrStdout(), args[0], port, count, timeout)
		},
	}
	cmd.Flags().IntVar(&port, "port", checker.DefaultPingPort, "TCP port to connect to")
	cmd.Flags().IntVar(&count, "count", 1, "number of attempts")
	cmd.Flags().DurationVar(&timeout, "timeout", checker.DefaultPingTimeout, "connect timeout")
	return cmd
}

func runPing(ctx context.Context, out io.Writer, host string, port, count int, timeout time.Duration) error {
	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pingPause):
			}
		}
		printPing(out, checker.CheckTCP(ctx, host, port, timeout))
	}
	return nil
}

func printPing(out io.Writer, r checker.PingResult) {
	if r.Successful {
		fmt.Fprintf(out, "✓ Connected to %s in %s\n", r.Target, seconds(r.Latency))
		return
	}
	fmt.Fprintf(out, "✗ Failed to connect to %s: %s\n", r.Target, r.Error)
}

func httpCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "http URL",
		Short: "Check an HTTP endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			printHTTP(cmd.OutOrStdout(), checker.CheckHTTP(cmd.Context(), args[0], timeout))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", checker.DefaultHTTPTimeout, "request timeout")
	return cmd
}

func printHTTP(out io.Writer, r checker.HTTPResult) {
	switch {
	case r.Successful:
		fmt.Fprintf(out, "HTTP Check: %s\n  Status:  %d\n  Latency: %s\n", r.Target, r.StatusCode, seconds(r.Latency))
	case r.Error != "":
		fmt.Fprintf(out, "Error: %s\n", r.Error)
	default:
		fmt.Fprintf(out, "Error: HTTP %d after %s\n", r.StatusCode, seconds(r.Latency))
	}
}

func dnsCmd() *cobra.Command {
	var (
		recordType  string
		nameservers []string
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "dns DOMAIN",
		Short: "Resolve a domain name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := checker.CheckDNS(cmd.Context(), args[0], recordType, checker.DNSOptions{
				Nameservers: config.WithDNSPort(nameservers),
				Timeout:     timeout,
			})
			printDNS(cmd.OutOrStdout(), r)
			return nil
		},
	}
	cmd.Flags().StringVar(&recordType, "type", checker.DefaultRecordType, "record type (A, AAAA, MX, TXT, ...)")
	cmd.Flags().StringSliceVar(&nameservers, "nameserver", nil, "nameserver to query, host[:port] (repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", checker.DefaultDNSTimeout, "lookup timeout")
	return cmd
}

func printDNS(out io.Writer, r checker.DNSResult) {
	if r.Successful {
		fmt.Fprintf(out, "✓ Resolved %s to %s in %s\n", r.Domain, r.IP, seconds(r.Latency))
		return
	}
	fmt.Fprintf(out, "DNS Error: %s\n", r.Error)
}

func sslCmd() *cobra.Command {
	var (
		port    int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ssl TARGET",
		Short: "Check TLS certificate expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := checker.CheckSSL(cmd.Context(), args[0], timeout, checker.SSLOptions{Port: port})
			printSSL(cmd.OutOrStdout(), r)
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", checker.DefaultSSLPort, "TLS port")
	cmd.Flags().DurationVar(&timeout, "timeout", checker.DefaultSSLTimeout, "handshake timeout")
	return cmd
}

func printSSL(out io.Writer, r checker.SSLResult) {
	if r.Error != "" {
		fmt.Fprintf(out, "SSL Error: %s\n", r.Error)
		return
	}
	days := fmt.Sprint(r.DaysRemaining)
	switch {
	case !r.Valid:
		days += " (expired)"
	case r.DaysRemaining <= sslWarnDays:
		days += " (renew soon)"
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tISSUER\tDAYS REMAINING")
	fmt.Fprintf(w, "%s\t%s\t%s\n", r.Target, r.Issuer, days)
	w.Flush()
}

func monitorCmd() *cobra.Command {
	var (
		port     int
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "monitor HOST",
		Short: "Continuously check a host until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			runMonitor(ctx, cmd.OutOrStdout(), args[0], port, interval, timeout)
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", checker.DefaultPingPort, "TCP port to connect to")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "time between checks")
	cmd.Flags().DurationVar(&timeout, "timeout", checker.DefaultPingTimeout, "connect timeout")
	return cmd
}

func runMonitor(ctx context.Context, out io.Writer, host string, port int, interval, timeout time.Duration) {
	fmt.Fprintf(out, "Monitoring %s:%d... (Press Ctrl+C to stop)\n", host, port)

	defer fmt.Fprintln(out, "Monitoring stopped.")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r := checker.CheckTCP(ctx, host, port, timeout)
		if ctx.Err() != nil {
			return
		}
		stamp := r.CheckedAt.Format("15:04:05")
		if r.Successful {
			fmt.Fprintf(out, "[%s] ✓ %s\n", stamp, seconds(r.Latency))
		} else {
			fmt.Fprintf(out, "[%s] ✗ %s\n", stamp, r.Error)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
