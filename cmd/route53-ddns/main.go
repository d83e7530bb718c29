// Command route53-ddns keeps a DNS A record pointed at this host's public IP address.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Travis-Britz/route53-ddns"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if err := run(logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("route53-ddns exited with error")
	}
}

func run(logger zerolog.Logger) error {
	cfg, err := loadConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger = logger.Level(level)
	logger.Debug().Interface("config", cfg).Msg("config is valid")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer stop()

	client, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Once {
		_, err := ddns.RunOnce(ctx, client, logger)
		return err
	}

	if err := startMetricsServer(ctx, cfg.MetricsAddr, logger); err != nil {
		return err
	}

	logger.Info().
		Str("domain", client.Domain()).
		Str("provider", cfg.Provider).
		Dur("interval", cfg.Interval).
		Msg("starting route53-ddns")
	return ddns.RunDaemon(ctx, client, cfg.Interval, logger)
}

func newClient(ctx context.Context, cfg config, logger zerolog.Logger) (*ddns.Client, error) {
	opts := []ddns.Option{ddns.WithLogger(logger)}

	switch cfg.Provider {
	case "cloudflare":
		token, err := cloudflareToken(ctx, cfg.KeyFile, logger)
		if err != nil {
			return nil, fmt.Errorf("error reading key: %w", err)
		}
		opts = append(opts, ddns.UsingCloudflare(token))
	default:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("error loading AWS configuration: %w", err)
		}
		opts = append(opts, ddns.UsingRoute53(awsCfg))
	}

	switch {
	case cfg.IP != "":
		r, err := ddns.FromString(cfg.IP)
		if err != nil {
			return nil, fmt.Errorf("invalid --ip: %w", err)
		}
		opts = append(opts, ddns.UsingResolver(r))
	case cfg.Interface != "":
		opts = append(opts, ddns.UsingResolver(ddns.InterfaceResolver(cfg.Interface)))
	default:
		opts = append(opts, ddns.UsingWebResolver(cfg.IPURLs...))
	}

	opts = append(opts, ddns.UsingHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))

	client, err := ddns.New(cfg.Domain, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating ddns.Client: %w", err)
	}
	return client, nil
}

// startMetricsServer serves /metrics on addr until ctx is cancelled. An empty addr disables it.
func startMetricsServer(ctx context.Context, addr string, logger zerolog.Logger) error {
	if addr == "" {
		return nil
	}
	if err := ddns.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("error registering metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			logger.Warn().Err(err).Msg("metrics server shutdown error")
		}
	}()
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	return nil
}
