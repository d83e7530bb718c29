package ddns

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// Option configures a Client in New.
type Option func(*Client) error

// New constructs a Client that keeps the A record for domain pointed at the address found by its Resolver.
//
// domain is normalized to a fully-qualified name, so "example.com" and "example.com." are the same.
// A DNS provider must be registered with UsingRoute53, UsingCloudflare or UsingDNSAPI,
// and an address source with UsingResolver or UsingWebResolver.
// Options are applied in order.
func New(domain string, options ...Option) (*Client, error) {
	if domain == "" {
		return nil, fmt.Errorf("ddns.New: domain cannot be empty")
	}
	if _, ok := dns.IsDomainName(domain); !ok {
		return nil, fmt.Errorf("ddns.New: %q is not a valid domain name", domain)
	}
	c := &Client{
		domain: dns.Fqdn(domain),
		logger: zerolog.Nop(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %w", i, err)
		}
	}

	if c.api == nil {
		return nil, fmt.Errorf("ddns.New: no DNS provider was registered and there is no default option - use ddns.UsingRoute53 or similar")
	}
	if c.resolver == nil {
		return nil, fmt.Errorf("ddns.New: no IP resolver was registered - use ddns.UsingWebResolver or similar")
	}

	// this lets us propagate the logger to dependencies registered after WithLogger
	withLogger(c.logger)(c)
	return c, nil
}

// UsingRoute53 updates records through Amazon Route53 using the given SDK configuration.
func UsingRoute53(cfg aws.Config) Option {
	return func(c *Client) error {
		c.api = newRoute53API(cfg)
		return nil
	}
}

// UsingCloudflare updates records through the Cloudflare API using a scoped API token.
func UsingCloudflare(token string) Option {
	return func(c *Client) (err error) {
		if c.api, err = newCloudflareAPI(token); err != nil {
			return fmt.Errorf("ddns.UsingCloudflare: error creating cloudflare DNS provider: %w", err)
		}
		return nil
	}
}

// UsingDNSAPI registers any DNSAPI implementation as the provider.
func UsingDNSAPI(api DNSAPI) Option {
	return func(c *Client) error {
		if api == nil {
			return fmt.Errorf("ddns.UsingDNSAPI: api cannot be nil")
		}
		c.api = api
		return nil
	}
}

func UsingResolver(resolver Resolver) Option {
	return func(c *Client) error {
		if resolver == nil {
			return fmt.Errorf("ddns.UsingResolver: resolver cannot be nil")
		}
		c.resolver = resolver
		return nil
	}
}

func UsingWebResolver(serviceURL ...string) Option {
	return func(c *Client) (err error) {
		c.resolver, err = WebResolver(serviceURL...)
		return err
	}
}

// UsingHTTPClient sets the HTTP client used by the resolver and the DNS provider.
// Its Timeout bounds every network call made during a cycle.
// It must come after the options that register them.
func UsingHTTPClient(httpclient *http.Client) Option {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		if hc, ok := c.resolver.(setHTTPClient); ok {
			hc.SetHTTPClient(httpclient)
		}
		if hc, ok := c.api.(setHTTPClient); ok {
			hc.SetHTTPClient(httpclient)
		}
		return nil
	}
}

func withLogger(logger zerolog.Logger) Option {
	return func(c *Client) error {
		type setLogger interface {
			SetLogger(zerolog.Logger)
		}
		if p, ok := c.api.(setLogger); ok {
			p.SetLogger(logger)
		}
		if r, ok := c.resolver.(setLogger); ok {
			r.SetLogger(logger)
		}
		return nil
	}
}

// WithLogger sets the logger used by the client and its provider. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithClock replaces time.Now when measuring the change confirmation budget.
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		c.now = now
		return nil
	}
}

// WithSleep replaces the wait between change status polls.
// A non-nil error from sleep aborts the cycle.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) error {
		c.sleep = sleep
		return nil
	}
}

// Client reconciles one A record with the address reported by its Resolver.
// It holds no state between calls to Reconcile,
// but it is not meant to run more than one reconciliation at a time.
type Client struct {
	resolver Resolver
	api      DNSAPI
	logger   zerolog.Logger
	domain   string

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Domain returns the fully-qualified name the client manages.
func (c *Client) Domain() string { return c.domain }

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
