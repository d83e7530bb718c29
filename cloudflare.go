package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudflare/cloudflare-go"
	"github.com/google/uuid"
	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

func newCloudflareAPI(token string, opts ...cloudflare.Option) (cf *cloudflareProvider, err error) {
	cf = new(cloudflareProvider)
	cf.api, err = cloudflare.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloudflare api client: %w", err)
	}
	cf.logger = zerolog.Nop()
	return cf, nil
}

// cloudflareProvider implements ddns.DNSAPI with the Cloudflare v4 API.
//
// Cloudflare applies record changes synchronously,
// so every change it returns is already INSYNC.
type cloudflareProvider struct {
	api    *cloudflare.API
	logger zerolog.Logger
}

func (cf *cloudflareProvider) SetLogger(l zerolog.Logger) { cf.logger = l }

func (cf *cloudflareProvider) SetHTTPClient(hc *http.Client) {
	// HTTPClient never returns an error.
	_ = cloudflare.HTTPClient(hc)(cf.api)
}

// ListHostedZonesByName returns the zone with the longest name that is dnsName or one of its parents.
// Cloudflare zones can't overlap the way Route53 zones can, so the result is never truncated.
func (cf *cloudflareProvider) ListHostedZonesByName(ctx context.Context, dnsName string, maxItems int32) ([]HostedZone, bool, error) {
	zones, err := cf.api.ListZones(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("error listing zones: %w", err)
	}

	var best *cloudflare.Zone
	for i, z := range zones {
		if !dns.IsSubDomain(dns.Fqdn(z.Name), dnsName) {
			continue
		}
		if best == nil || len(z.Name) > len(best.Name) {
			best = &zones[i]
		}
	}
	if best == nil || maxItems < 1 {
		return nil, false, nil
	}
	cf.logger.Debug().Str("zone", best.ID).Str("name", best.Name).Msg("cloudflare zone matched")
	return []HostedZone{{ID: best.ID, Name: dns.Fqdn(best.Name)}}, false, nil
}

// ListResourceRecordSets groups a zone's records by name and type.
// cloudflare-go follows the result pages itself, so the result is never truncated.
func (cf *cloudflareProvider) ListResourceRecordSets(ctx context.Context, zoneID string) ([]RecordSet, bool, error) {
	records, _, err := cf.api.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), cloudflare.ListDNSRecordsParams{})
	if err != nil {
		return nil, false, fmt.Errorf("error listing DNS records: %w", err)
	}
	cf.logger.Debug().Int("count", len(records)).Str("zone", zoneID).Msg("found existing records")

	var sets []RecordSet
	index := map[string]int{}
	for _, r := range records {
		name := dns.Fqdn(r.Name)
		key := r.Type + " " + name
		i, found := index[key]
		if !found {
			i = len(sets)
			index[key] = i
			sets = append(sets, RecordSet{Name: name, Type: r.Type, TTL: int64(r.TTL), Values: []string{}})
		}
		sets[i].Values = append(sets[i].Values, r.Content)
	}
	return sets, false, nil
}

// ChangeResourceRecordSets applies UPSERT changes by deleting records whose content is no longer wanted
// and creating the ones that are missing.
func (cf *cloudflareProvider) ChangeResourceRecordSets(ctx context.Context, zoneID string, batch ChangeBatch) (ChangeInfo, error) {
	for _, ch := range batch.Changes {
		if ch.Action != ChangeUpsert {
			return ChangeInfo{}, fmt.Errorf("unsupported change action %q", ch.Action)
		}
		if err := cf.upsert(ctx, zoneID, ch.RecordSet, batch.Comment); err != nil {
			return ChangeInfo{}, err
		}
	}
	return ChangeInfo{ID: uuid.NewString(), Status: StatusInSync}, nil
}

func (cf *cloudflareProvider) upsert(ctx context.Context, zoneID string, rs RecordSet, comment string) error {
	zone := cloudflare.ZoneIdentifier(zoneID)
	name := strings.TrimSuffix(rs.Name, ".")
	if name == "" {
		return errors.New("record set has no name")
	}

	records, _, err := cf.api.ListDNSRecords(ctx, zone, cloudflare.ListDNSRecordsParams{
		Type: rs.Type,
		Name: name,
	})
	if err != nil {
		return fmt.Errorf("error listing %s records for %s: %w", rs.Type, name, err)
	}

	wanted := map[string]bool{}
	for _, v := range rs.Values {
		wanted[v] = true
	}
	existing := map[string]bool{}
	for _, r := range records {
		existing[r.Content] = true
		if wanted[r.Content] {
			cf.logger.Debug().Str("content", r.Content).Msg("existing record is in the set of new values")
			continue
		}
		cf.logger.Debug().Str("content", r.Content).Str("record", r.ID).Msg("deleting DNS record")
		if err := cf.api.DeleteDNSRecord(ctx, zone, r.ID); err != nil {
			return fmt.Errorf("unable to delete DNS record %s: %w", r.ID, err)
		}
	}

	for _, v := range rs.Values {
		if existing[v] {
			continue
		}
		cf.logger.Debug().Str("content", v).Msg("creating DNS record")
		record, err := cf.api.CreateDNSRecord(ctx, zone, cloudflare.CreateDNSRecordParams{
			Type:    rs.Type,
			Name:    name,
			Content: v,
			ZoneID:  zoneID,
			TTL:     int(rs.TTL),
			Comment: comment,
		})
		if err != nil {
			return fmt.Errorf("error creating DNS record: %w", err)
		}
		cf.logger.Debug().Interface("record", record).Msg("successfully added record")
	}
	return nil
}

// GetChange always reports INSYNC; see cloudflareProvider.
func (cf *cloudflareProvider) GetChange(ctx context.Context, changeID string) (ChangeInfo, error) {
	return ChangeInfo{ID: changeID, Status: StatusInSync}, nil
}
