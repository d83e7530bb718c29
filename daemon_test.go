package ddns_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/Travis-Britz/route53-ddns"
)

type reconcilerFunc func(context.Context) (bool, error)

func (f reconcilerFunc) Reconcile(ctx context.Context) (bool, error) { return f(ctx) }

func TestRunDaemonKeepsGoingAfterErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var buf bytes.Buffer
	results := []struct {
		changed bool
		err     error
	}{
		{false, ddns.ErrTimeout},
		{true, nil},
		{false, nil},
	}
	calls := 0
	r := reconcilerFunc(func(context.Context) (bool, error) {
		res := results[calls]
		calls++
		if calls == len(results) {
			cancel()
		}
		return res.changed, res.err
	})

	err := ddns.RunDaemon(ctx, r, time.Millisecond, zerolog.New(&buf))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled; got %v", err)
	}
	if calls != 3 {
		t.Fatalf("Expected 3 cycles; got %d", calls)
	}
	out := buf.String()
	for _, msg := range []string{"reconciliation failed", "A record updated", "no update required"} {
		if !strings.Contains(out, msg) {
			t.Fatalf("Expected log to contain %q; got:\n%s", msg, out)
		}
	}
}

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := ddns.RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics: %s", err)
	}
	if err := ddns.RegisterMetrics(reg); err == nil {
		t.Fatalf("Expected registering twice to fail")
	}

	r := reconcilerFunc(func(context.Context) (bool, error) { return false, nil })
	ddns.RunOnce(context.Background(), r, zerolog.Nop())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %s", err)
	}
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	for _, name := range []string{"ddns_reconciliations_total", "ddns_reconciliation_duration_seconds"} {
		if !names[name] {
			t.Fatalf("Expected %s to be gathered; got %v", name, names)
		}
	}
}

func TestRunOnce(t *testing.T) {
	r := reconcilerFunc(func(context.Context) (bool, error) { return true, nil })
	changed, err := ddns.RunOnce(context.Background(), r, zerolog.Nop())
	if err != nil || !changed {
		t.Fatalf("Expected (true, nil); got (%t, %v)", changed, err)
	}
}
