package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// Probe describes a single configured check.
type Probe struct {
	Name        string   `yaml:"name"`
	Kind        string   `yaml:"kind"`
	Target      string   `yaml:"target"`
	Port        int      `yaml:"port"`
	RecordType  string   `yaml:"record_type"`
	Nameservers []string `yaml:"nameservers"`
	Interval    Duration `yaml:"interval"`
	Timeout     Duration `yaml:"timeout"`
}

// DNSConfig holds resolver defaults for dns probes.
type DNSConfig struct {
	Nameservers []string `yaml:"nameservers"`
}

// WebhookConfig holds alert webhook settings.
type WebhookConfig struct {
	URL      string   `yaml:"url"`
	Cooldown Duration `yaml:"cooldown"`
}

// AlertsConfig holds all alert configuration.
type AlertsConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address     string   `yaml:"address"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LogConfig selects the log level, format and optional rotating file.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Config is the root application configuration.
type Config struct {
	Probes  []Probe       `yaml:"probes"`
	DNS     DNSConfig     `yaml:"dns"`
	Alerts  AlertsConfig  `yaml:"alerts"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// Per-kind defaults. They mirror the checker package so that a probe built
// from config behaves exactly like the one-off CLI commands.
var (
	defaultTimeouts = map[string]time.Duration{
		"ping": 2 * time.Second,
		"http": 5 * time.Second,
		"dns":  5 * time.Second,
		"ssl":  5 * time.Second,
	}
	defaultPorts = map[string]int{
		"ping": 80,
		"ssl":  443,
	}
)

const (
	defaultInterval   = 30 * time.Second
	defaultRecordType = "A"
	defaultDNSPort    = "53"
)

// DefaultLog returns the logging settings used when the file omits them.
func DefaultLog() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 14,
		Compress:   true,
	}
}

// Load reads, parses, and validates the config file at path, then applies
// NETPULSE_* environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Unmarshal into a raw intermediate to detect YAML parse errors vs duration errors.
	type rawProbe struct {
		Name        string   `yaml:"name"`
		Kind        string   `yaml:"kind"`
		Target      string   `yaml:"target"`
		Port        int      `yaml:"port"`
		RecordType  string   `yaml:"record_type"`
		Nameservers []string `yaml:"nameservers"`
		Interval    string   `yaml:"interval"`
		Timeout     string   `yaml:"timeout"`
	}
	type rawConfig struct {
		Probes  []rawProbe    `yaml:"probes"`
		DNS     DNSConfig     `yaml:"dns"`
		Alerts  AlertsConfig  `yaml:"alerts"`
		Server  ServerConfig  `yaml:"server"`
		Storage StorageConfig `yaml:"storage"`
		Log     rawLog        `yaml:"log"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Apply defaults.
	if raw.Server.Address == "" {
		raw.Server.Address = ":8080"
	}
	if raw.Storage.Path == "" {
		raw.Storage.Path = "netpulse.db"
	}

	if len(raw.Probes) == 0 {
		return nil, fmt.Errorf("at least one probe must be configured")
	}

	cfg := &Config{
		Alerts:  raw.Alerts,
		Server:  raw.Server,
		Storage: raw.Storage,
		Log:     mergeLog(raw.Log),
		DNS:     DNSConfig{Nameservers: WithDNSPort(raw.DNS.Nameservers)},
	}
	applyEnv(cfg)
	if err := validateLog(cfg.Log); err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(raw.Probes))
	for i, rp := range raw.Probes {
		if rp.Name == "" {
			return nil, fmt.Errorf("probe[%d]: name is required", i)
		}
		if names[rp.Name] {
			return nil, fmt.Errorf("duplicate probe name %q", rp.Name)
		}
		names[rp.Name] = true

		if rp.Target == "" {
			return nil, fmt.Errorf("probe %q: target is required", rp.Name)
		}
		kind := strings.ToLower(rp.Kind)
		if _, ok := defaultTimeouts[kind]; !ok {
			return nil, fmt.Errorf("probe %q: invalid kind %q (must be ping, http, dns, or ssl)", rp.Name, rp.Kind)
		}
		if rp.Port < 0 || rp.Port > 65535 {
			return nil, fmt.Errorf("probe %q: port %d out of range", rp.Name, rp.Port)
		}

		p := Probe{
			Name:   rp.Name,
			Kind:   kind,
			Target: rp.Target,
			Port:   rp.Port,
		}
		if p.Port == 0 {
			p.Port = defaultPorts[kind]
		}

		if kind == "dns" {
			p.RecordType = strings.ToUpper(rp.RecordType)
			if p.RecordType == "" {
				p.RecordType = defaultRecordType
			}
			if _, ok := dns.StringToType[p.RecordType]; !ok {
				return nil, fmt.Errorf("probe %q: invalid record_type %q", rp.Name, rp.RecordType)
			}
			p.Nameservers = WithDNSPort(rp.Nameservers)
			if len(p.Nameservers) == 0 {
				p.Nameservers = cfg.DNS.Nameservers
			}
		} else if rp.RecordType != "" {
			return nil, fmt.Errorf("probe %q: record_type only applies to dns probes", rp.Name)
		}

		// Parse interval with default.
		if rp.Interval == "" {
			p.Interval = Duration{defaultInterval}
		} else {
			d, err := time.ParseDuration(rp.Interval)
			if err != nil {
				return nil, fmt.Errorf("probe %q: invalid interval %q: %w", rp.Name, rp.Interval, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("probe %q: interval must be positive", rp.Name)
			}
			p.Interval = Duration{d}
		}

		// Parse timeout with the per-kind default.
		if rp.Timeout == "" {
			p.Timeout = Duration{defaultTimeouts[kind]}
		} else {
			d, err := time.ParseDuration(rp.Timeout)
			if err != nil {
				return nil, fmt.Errorf("probe %q: invalid timeout %q: %w", rp.Name, rp.Timeout, err)
			}
			if d <= 0 {
				return nil, fmt.Errorf("probe %q: timeout must be positive", rp.Name)
			}
			p.Timeout = Duration{d}
		}

		cfg.Probes = append(cfg.Probes, p)
	}

	return cfg, nil
}

// applyEnv overrides settings that commonly differ per deployment.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("NETPULSE_SERVER_ADDRESS")); v != "" {
		cfg.Server.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("NETPULSE_STORAGE_PATH")); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv("NETPULSE_LOG_LEVEL")); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("NETPULSE_LOG_FILE")); v != "" {
		cfg.Log.File = v
	}
	if v := strings.TrimSpace(os.Getenv("NETPULSE_WEBHOOK_URL")); v != "" {
		cfg.Alerts.Webhook.URL = v
	}
}

type rawLog struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   *bool  `yaml:"compress"`
}

func mergeLog(raw rawLog) LogConfig {
	lc := DefaultLog()
	if raw.Level != "" {
		lc.Level = strings.ToLower(raw.Level)
	}
	if raw.Format != "" {
		lc.Format = strings.ToLower(raw.Format)
	}
	lc.File = raw.File
	if raw.MaxSizeMB > 0 {
		lc.MaxSizeMB = raw.MaxSizeMB
	}
	if raw.MaxBackups > 0 {
		lc.MaxBackups = raw.MaxBackups
	}
	if raw.MaxAgeDays > 0 {
		lc.MaxAgeDays = raw.MaxAgeDays
	}
	if raw.Compress != nil {
		lc.Compress = *raw.Compress
	}
	return lc
}

func validateLog(lc LogConfig) error {
	switch lc.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log: invalid level %q", lc.Level)
	}
	switch lc.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log: invalid format %q (must be text or json)", lc.Format)
	}
	return nil
}

// WithDNSPort appends :53 to nameservers given without a port.
func WithDNSPort(servers []string) []string {
	if len(servers) == 0 {
		return nil
	}
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(strings.Trim(s, "[]"), defaultDNSPort)
		}
		out = append(out, s)
	}
	return out
}
