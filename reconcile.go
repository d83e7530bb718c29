package ddns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// RecordTTL is the TTL, in seconds, written with every update.
	RecordTTL = 900
	// ChangeComment tags every change batch submitted by this package.
	ChangeComment = "route53-dyndns A IP Update"

	changeTimeout      = 60 * time.Second
	changePollInterval = 1 * time.Second
)

// Reconcile makes one pass over the A record:
// it resolves the current address, compares it with the published value,
// submits an UPSERT when they differ and waits for the change to become INSYNC.
//
// changed is false when the record already held the address.
// Failures are terminal for this pass only and are never retried here;
// see the Err* variables for how to tell them apart.
func (c *Client) Reconcile(ctx context.Context) (changed bool, err error) {
	ip, err := c.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, ErrNetwork) {
			return false, fmt.Errorf("error getting IP: %w", err)
		}
		return false, fmt.Errorf("%w: error getting IP: %w", ErrNetwork, err)
	}
	c.logger.Info().Str("ip", ip).Str("domain", c.domain).Msg("resolved current IP")

	zoneID, err := c.hostedZoneID(ctx)
	if err != nil {
		return false, err
	}
	c.logger.Debug().Str("zone", zoneID).Msg("got hosted zone ID")

	rs, err := c.findRecordSet(ctx, zoneID)
	if err != nil {
		return false, err
	}

	// A record without a value list has nothing to compare against and is overwritten.
	if rs.Values != nil {
		if len(rs.Values) != 1 {
			return false, fmt.Errorf("%w: expected 1 resource record for %s, got %d", ErrConfiguration, c.domain, len(rs.Values))
		}
		c.logger.Debug().Str("current", rs.Values[0]).Msg("A record current value")
		if rs.Values[0] == ip {
			return false, nil
		}
	}

	batch := ChangeBatch{
		Comment: ChangeComment,
		Changes: []Change{{
			Action: ChangeUpsert,
			RecordSet: RecordSet{
				Name:   c.domain,
				Type:   "A",
				TTL:    RecordTTL,
				Values: []string{ip},
			},
		}},
	}
	c.logger.Debug().Interface("batch", batch).Msg("submitting change")
	info, err := c.api.ChangeResourceRecordSets(ctx, zoneID, batch)
	if err != nil {
		return false, providerError("error changing resource record sets", err)
	}
	c.logger.Debug().Str("change", info.ID).Str("status", string(info.Status)).Msg("change submitted")

	done, err := changeDone(info)
	if err != nil {
		return false, err
	}
	if done {
		return true, nil
	}
	if err := c.waitForChange(ctx, strings.TrimPrefix(info.ID, "/change/")); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) hostedZoneID(ctx context.Context) (string, error) {
	zones, truncated, err := c.api.ListHostedZonesByName(ctx, c.domain, 1)
	if err != nil {
		return "", providerError("error listing hosted zones", err)
	}
	if truncated {
		return "", fmt.Errorf("%w: multiple hosted zones returned for %s", ErrConfiguration, c.domain)
	}
	if len(zones) == 0 {
		return "", fmt.Errorf("%w: no hosted zone for %s", ErrNotFound, c.domain)
	}
	zone := zones[0]
	if !dns.IsSubDomain(dns.Fqdn(zone.Name), c.domain) {
		return "", fmt.Errorf("%w: hosted zone %s does not contain %s", ErrNotFound, zone.Name, c.domain)
	}
	return strings.TrimPrefix(zone.ID, "/hostedzone/"), nil
}

func (c *Client) findRecordSet(ctx context.Context, zoneID string) (RecordSet, error) {
	sets, truncated, err := c.api.ListResourceRecordSets(ctx, zoneID)
	if err != nil {
		return RecordSet{}, providerError("error listing resource record sets", err)
	}
	if truncated {
		return RecordSet{}, fmt.Errorf("%w: zone %s has more than one page of record sets, which is not supported", ErrConfiguration, zoneID)
	}
	c.logger.Debug().Int("count", len(sets)).Msg("listed resource record sets")
	for _, rs := range sets {
		if rs.Type == "A" && rs.Name == c.domain {
			return rs, nil
		}
	}
	return RecordSet{}, fmt.Errorf("%w: zone %s has no A record for %s", ErrNotFound, zoneID, c.domain)
}

// waitForChange polls a pending change once per changePollInterval
// until it is INSYNC, reports an unknown status, or changeTimeout has passed.
func (c *Client) waitForChange(ctx context.Context, changeID string) error {
	start := c.now()
	polls := 0
	defer func() { changePolls.Add(float64(polls)) }()

	for c.now().Sub(start) < changeTimeout {
		info, err := c.api.GetChange(ctx, changeID)
		polls++
		if err != nil {
			return providerError("error getting change "+changeID, err)
		}
		c.logger.Debug().Str("change", changeID).Str("status", string(info.Status)).Msg("polled change")

		done, err := changeDone(info)
		if err != nil {
			return err
		}
		if done {
			changePropagation.Observe(c.now().Sub(start).Seconds())
			return nil
		}
		if err := c.sleep(ctx, changePollInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: timeout polling for change %s completion after %s", ErrTimeout, changeID, changeTimeout)
}

// changeDone reports whether a change is INSYNC.
// PENDING is not done; any other status is an error.
func changeDone(info ChangeInfo) (bool, error) {
	switch info.Status {
	case StatusInSync:
		return true, nil
	case StatusPending:
		return false, nil
	default:
		return false, fmt.Errorf("%w: invalid change status %q for change %s", ErrProtocol, info.Status, info.ID)
	}
}
