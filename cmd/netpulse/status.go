package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/netpulse/internal/storage"
)

type statusStore interface {
	AllLatest(ctx context.Context) ([]storage.Record, error)
}

// recordDetail is resultDetail for stored results.
func recordDetail(rec storage.Record) string {
	switch rec.Kind {
	case "ping":
		if rec.Successful {
			return rec.Target
		}
	case "http":
		if rec.StatusCode != 0 {
			return fmt.Sprintf("HTTP %d", rec.StatusCode)
		}
	case "dns":
		return rec.IP
	case "ssl":
		if rec.Error == "" {
			return fmt.Sprintf("%d days (%s)", rec.DaysRemaining, rec.Issuer)
		}
	}
	return ""
}

func executeStatus(cmd *cobra.Command, db statusStore) error {
	out := cmd.OutOrStdout()
	recs, err := db.AllLatest(context.Background())
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(recs) == 0 {
		fmt.Fprintln(out, "No results yet. Run 'netpulse serve' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROBE\tKIND\tSTATUS\tLATENCY\tDETAIL\tLAST CHECKED\tERROR")
	for _, rec := range recs {
		latency := time.Duration(rec.LatencyMs * float64(time.Millisecond))
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Probe,
			rec.Kind,
			rec.Status(),
			latencyText(latency),
			recordDetail(rec),
			rec.CheckedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Error,
		)
	}
	w.Flush()
	return nil
}
