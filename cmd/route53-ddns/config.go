package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const defaultIPURL = "https://checkip.amazonaws.com/"

type config struct {
	Domain      string        `yaml:"domain"`
	IPURLs      []string      `yaml:"ip_url"`
	IP          string        `yaml:"ip"`
	Interface   string        `yaml:"interface"`
	Provider    string        `yaml:"provider"`
	AWSRegion   string        `yaml:"aws_region"`
	KeyFile     string        `yaml:"key_file"`
	Interval    time.Duration `yaml:"interval"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	Once        bool          `yaml:"once"`
	LogLevel    string        `yaml:"log_level"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

func defaultConfig() config {
	return config{
		IPURLs:      []string{defaultIPURL},
		Provider:    "route53",
		AWSRegion:   "us-east-1",
		KeyFile:     filepath.Join(os.Getenv("HOME"), ".cloudflare"),
		Interval:    5 * time.Minute,
		HTTPTimeout: 15 * time.Second,
		LogLevel:    "info",
	}
}

// loadConfig builds the configuration from defaults, an optional YAML file, the environment and flags,
// each overriding the one before.
func loadConfig(args []string, lookupEnv func(string) (string, bool)) (config, error) {
	cfg := defaultConfig()

	var (
		flags      config
		configFile string
	)
	fs := pflag.NewFlagSet("route53-ddns", pflag.ContinueOnError)
	fs.StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")
	fs.StringVarP(&flags.Domain, "domain", "d", "", "DNS A record to update")
	fs.StringSliceVar(&flags.IPURLs, "ip-url", nil, "URL(s) of services that return the public IP as plain text")
	fs.StringVar(&flags.IP, "ip", "", "IP address to set instead of looking it up")
	fs.StringVar(&flags.Interface, "interface", "", "Take the IP address from this network interface")
	fs.StringVar(&flags.Provider, "provider", "", "DNS provider: route53 or cloudflare")
	fs.StringVar(&flags.AWSRegion, "aws-region", "", "AWS region for the Route53 client")
	fs.StringVarP(&flags.KeyFile, "key-file", "k", "", "Path to cloudflare API credentials file")
	fs.DurationVarP(&flags.Interval, "interval", "i", 0, "Duration to wait between IP checks")
	fs.DurationVar(&flags.HTTPTimeout, "http-timeout", 0, "Timeout for each HTTP request")
	fs.BoolVar(&flags.Once, "once", false, "Run a single reconciliation and exit")
	fs.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on, e.g. :9090 (disabled when empty)")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if configFile == "" {
		configFile, _ = lookupEnv("DDNS_CONFIG")
	}
	if configFile != "" {
		if err := cfg.loadFile(configFile); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(lookupEnv); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "domain":
			cfg.Domain = flags.Domain
		case "ip-url":
			cfg.IPURLs = flags.IPURLs
		case "ip":
			cfg.IP = flags.IP
		case "interface":
			cfg.Interface = flags.Interface
		case "provider":
			cfg.Provider = flags.Provider
		case "aws-region":
			cfg.AWSRegion = flags.AWSRegion
		case "key-file":
			cfg.KeyFile = flags.KeyFile
		case "interval":
			cfg.Interval = flags.Interval
		case "http-timeout":
			cfg.HTTPTimeout = flags.HTTPTimeout
		case "once":
			cfg.Once = flags.Once
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "metrics-addr":
			cfg.MetricsAddr = flags.MetricsAddr
		}
	})

	return cfg, cfg.validate()
}

func (c *config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func (c *config) applyEnv(lookupEnv func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	str(&c.Domain, "ROUTE53_DOMAIN_A_RECORD", "DDNS_DOMAIN")
	str(&c.IP, "DDNS_IP")
	str(&c.Interface, "DDNS_INTERFACE")
	str(&c.Provider, "DDNS_PROVIDER")
	str(&c.AWSRegion, "DDNS_AWS_REGION")
	str(&c.KeyFile, "DDNS_KEY_FILE")
	str(&c.LogLevel, "DDNS_LOG_LEVEL")
	str(&c.MetricsAddr, "DDNS_METRICS_ADDR")

	var urls string
	str(&urls, "ROUTE53_IP_URL", "DDNS_IP_URL")
	if urls != "" {
		c.IPURLs = strings.Split(urls, ",")
	}

	if v, ok := lookupEnv("ROUTE53_UPDATE_FREQUENCY"); ok && v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("can't parse ROUTE53_UPDATE_FREQUENCY: %w", err)
		}
		c.Interval = d
	}
	if v, ok := lookupEnv("DDNS_HTTP_TIMEOUT"); ok && v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("can't parse DDNS_HTTP_TIMEOUT: %w", err)
		}
		c.HTTPTimeout = d
	}
	if v, ok := lookupEnv("DDNS_ONCE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("can't parse DDNS_ONCE: %w", err)
		}
		c.Once = b
	}
	return nil
}

// parseSeconds accepts a plain number of seconds or a Go duration string.
func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.ParseUint(v, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func (c *config) validate() error {
	if c.Domain == "" {
		return errors.New("domain cannot be empty (set --domain or ROUTE53_DOMAIN_A_RECORD)")
	}
	if !strings.Contains(strings.TrimSuffix(c.Domain, "."), ".") {
		return errors.New("domain must have at least one dot")
	}
	switch c.Provider {
	case "route53", "cloudflare":
	default:
		return fmt.Errorf("unknown provider %q: expected route53 or cloudflare", c.Provider)
	}
	if c.IP != "" && c.Interface != "" {
		return errors.New("--ip and --interface are mutually exclusive")
	}
	if c.IP == "" && c.Interface == "" && len(c.IPURLs) == 0 {
		return errors.New("no IP source configured (set --ip-url or ROUTE53_IP_URL)")
	}
	if c.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	return nil
}
