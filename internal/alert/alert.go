package alert

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazz-dev/netpulse/internal/checker"
	"github.com/hazz-dev/netpulse/internal/config"
)

// Alerter sends webhook notifications when a probe flips between success
// and failure.
type Alerter struct {
	webhookURL string
	cooldown   time.Duration
	client     *http.Client
	lastAlert  map[string]time.Time
	mu         sync.Mutex
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// New creates a new Alerter. Pass nil logger to use the default logger.
func New(webhookURL string, cooldown time.Duration, logger *slog.Logger) *Alerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Alerter{
		webhookURL: webhookURL,
		cooldown:   cooldown,
		client:     &http.Client{Timeout: 10 * time.Second},
		lastAlert:  make(map[string]time.Time),
		logger:     logger,
	}
}

type webhookPayload struct {
	Probe          string  `json:"probe"`
	Kind           string  `json:"kind"`
	Target         string  `json:"target"`
	Status         string  `json:"status"`
	PreviousStatus string  `json:"previous_status"`
	Error          string  `json:"error"`
	LatencyMs      float64 `json:"latency_ms"`
	CheckedAt      string  `json:"checked_at"`
	Source         string  `json:"source"`
}

func statusOf(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}

// Notify sends a webhook if the probe outcome has changed and the cooldown
// has elapsed. prev is nil for the first result of a probe.
func (a *Alerter) Notify(p config.Probe, result checker.Result, prev *bool) {
	// No previous outcome means first check - skip.
	if prev == nil {
		return
	}
	base := result.Base()
	if base.Successful == *prev {
		return
	}

	a.mu.Lock()
	last, exists := a.lastAlert[p.Name]
	if exists && time.Since(last) < a.cooldown {
		a.mu.Unlock()
		a.logger.Info("alert suppressed by cooldown", "probe", p.Name)
		return
	}
	a.lastAlert[p.Name] = time.Now()
	a.mu.Unlock()

	payload := webhookPayload{
		Probe:          p.Name,
		Kind:           string(result.Kind()),
		Target:         base.Target,
		Status:         statusOf(base.Successful),
		PreviousStatus: statusOf(*prev),
		Error:          base.Error,
		LatencyMs:      float64(base.Latency) / float64(time.Millisecond),
		CheckedAt:      base.CheckedAt.UTC().Format(time.RFC3339),
		Source:         "netpulse",
	}

	// Send asynchronously so Notify doesn't block the scheduler.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.send(payload)
	}()
}

// Wait blocks until in-flight webhooks have been delivered or have failed.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

func (a *Alerter) send(payload webhookPayload) {
	body, err := json.Marshal(payload)
	if err != nil {
		a.logger.Error("marshaling webhook payload", "probe", payload.Probe, "error", err)
		return
	}

	resp, err := a.client.Post(a.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		a.logger.Error("sending webhook", "probe", payload.Probe, "url", a.webhookURL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		a.logger.Warn("webhook returned non-2xx status",
			"probe", payload.Probe,
			"status", resp.StatusCode,
		)
	}
}
