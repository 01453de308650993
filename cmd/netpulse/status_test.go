package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/netpulse/internal/storage"
)

type fakeStatusStore struct {
	recs []storage.Record
	err  error
}

func (f fakeStatusStore) AllLatest(context.Context) ([]storage.Record, error) {
	return f.recs, f.err
}

func runStatusWith(t *testing.T, store statusStore) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	err := executeStatus(cmd, store)
	return buf.String(), err
}

func TestExecuteStatus_Empty(t *testing.T) {
	out, err := runStatusWith(t, fakeStatusStore{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No results yet") {
		t.Errorf("expected empty-state hint, got %q", out)
	}
}

func TestExecuteStatus_Table(t *testing.T) {
	now := time.Now()
	out, err := runStatusWith(t, fakeStatusStore{recs: []storage.Record{
		{Probe: "cert", Kind: "ssl", Target: "example.com", DaysRemaining: 12, Issuer: "Example CA", Successful: true, CheckedAt: now},
		{Probe: "ns", Kind: "dns", Target: "example.com", IP: "93.184.216.34", Successful: true, LatencyMs: 3.2, CheckedAt: now},
		{Probe: "web", Kind: "http", Target: "https://example.com", StatusCode: 503, LatencyMs: 40, CheckedAt: now},
		{Probe: "gw", Kind: "ping", Target: "10.0.0.1", Error: "Connection timed out", CheckedAt: now},
	}})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"PROBE", "LAST CHECKED",
		"12 days (Example CA)",
		"93.184.216.34", "3.2ms",
		"HTTP 503", "down",
		"Connection timed out",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestExecuteStatus_StoreError(t *testing.T) {
	_, err := runStatusWith(t, fakeStatusStore{err: errors.New("locked")})
	if err == nil || !strings.Contains(err.Error(), "querying status") {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
