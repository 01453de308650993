package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"go.uber.org/multierr"

	"github.com/hazz-dev/netpulse/internal/checker"
	"github.com/hazz-dev/netpulse/internal/config"
)

// latencyText renders a measured latency, or "-" when none was measured.
func latencyText(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(100 * time.Microsecond).String()
}

// resultDetail summarises the kind-specific fields of a result.
func resultDetail(r checker.Result) string {
	switch v := r.(type) {
	case checker.PingResult:
		return v.Host
	case checker.HTTPResult:
		if v.StatusCode == 0 {
			return ""
		}
		return fmt.Sprintf("HTTP %d", v.StatusCode)
	case checker.DNSResult:
		if !v.Successful {
			return v.RecordType
		}
		return fmt.Sprintf("%s %s", v.RecordType, v.IP)
	case checker.SSLResult:
		if v.Error != "" {
			return ""
		}
		return fmt.Sprintf("%d days (%s)", v.DaysRemaining, v.Issuer)
	}
	return ""
}

func statusText(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}

func runChecks(ctx context.Context, out io.Writer, cfg *config.Config) error {
	results := make([]checker.Result, len(cfg.Probes))
	errs := make([]error, len(cfg.Probes))
	var wg sync.WaitGroup

	for i, p := range cfg.Probes {
		wg.Add(1)
		go func(i int, p config.Probe) {
			defer wg.Done()
			c, err := checker.New(p)
			if err != nil {
				errs[i] = fmt.Errorf("probe %q: creating checker: %w", p.Name, err)
				return
			}
			results[i] = c.Check(ctx)
		}(i, p)
	}
	wg.Wait()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tKIND\tTARGET\tSTATUS\tLATENCY\tDETAIL\tERROR")
	var err error
	for i, p := range cfg.Probes {
		if errs[i] != nil {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", p.Name, p.Kind, p.Target, "down", "-", "", errs[i])
			err = multierr.Append(err, errs[i])
			continue
		}
		r := results[i]
		base := r.Base()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Name,
			r.Kind(),
			base.Target,
			statusText(base.Successful),
			latencyText(base.Latency),
			resultDetail(r),
			base.Error,
		)
		if !base.Successful {
			err = multierr.Append(err, fmt.Errorf("probe %q failed", p.Name))
		}
	}
	w.Flush()

	if err != nil {
		fmt.Fprintf(out, "\n%d of %d probes failed\n", len(multierr.Errors(err)), len(cfg.Probes))
	}
	return err
}
