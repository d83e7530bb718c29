package ddns

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/rs/zerolog"
)

// route53API is the part of *route53.Client that route53Provider calls.
type route53API interface {
	ListHostedZonesByName(context.Context, *route53.ListHostedZonesByNameInput, ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
	ListResourceRecordSets(context.Context, *route53.ListResourceRecordSetsInput, ...func(*route53.Options)) (*route53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(context.Context, *route53.ChangeResourceRecordSetsInput, ...func(*route53.Options)) (*route53.ChangeResourceRecordSetsOutput, error)
	GetChange(context.Context, *route53.GetChangeInput, ...func(*route53.Options)) (*route53.GetChangeOutput, error)
}

func newRoute53API(cfg aws.Config) *route53Provider {
	if cfg.Region == "" {
		// Route53 is a global service; us-east-1 is its home region.
		cfg.Region = "us-east-1"
	}
	return &route53Provider{
		cfg:    cfg,
		api:    route53.NewFromConfig(cfg),
		logger: zerolog.Nop(),
	}
}

// route53Provider implements ddns.DNSAPI on top of the AWS SDK.
type route53Provider struct {
	cfg    aws.Config
	api    route53API
	logger zerolog.Logger
}

func (p *route53Provider) SetLogger(l zerolog.Logger) { p.logger = l }

func (p *route53Provider) SetHTTPClient(hc *http.Client) {
	p.api = route53.NewFromConfig(p.cfg, func(o *route53.Options) {
		o.HTTPClient = hc
	})
}

func (p *route53Provider) ListHostedZonesByName(ctx context.Context, dnsName string, maxItems int32) ([]HostedZone, bool, error) {
	in := &route53.ListHostedZonesByNameInput{
		DNSName:  aws.String(dnsName),
		MaxItems: aws.Int32(maxItems),
	}
	p.logger.Debug().Str("dns_name", dnsName).Int32("max_items", maxItems).Msg("route53 ListHostedZonesByName")
	out, err := p.api.ListHostedZonesByName(ctx, in)
	if err != nil {
		return nil, false, err
	}
	zones := make([]HostedZone, 0, len(out.HostedZones))
	for _, z := range out.HostedZones {
		zones = append(zones, HostedZone{
			ID:   aws.ToString(z.Id),
			Name: aws.ToString(z.Name),
		})
	}
	return zones, out.IsTruncated, nil
}

func (p *route53Provider) ListResourceRecordSets(ctx context.Context, zoneID string) ([]RecordSet, bool, error) {
	p.logger.Debug().Str("zone", zoneID).Msg("route53 ListResourceRecordSets")
	out, err := p.api.ListResourceRecordSets(ctx, &route53.ListResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
	})
	if err != nil {
		return nil, false, err
	}
	sets := make([]RecordSet, 0, len(out.ResourceRecordSets))
	for _, rrs := range out.ResourceRecordSets {
		rs := RecordSet{
			Name: aws.ToString(rrs.Name),
			Type: string(rrs.Type),
			TTL:  aws.ToInt64(rrs.TTL),
		}
		if rrs.ResourceRecords != nil {
			rs.Values = make([]string, 0, len(rrs.ResourceRecords))
			for _, rr := range rrs.ResourceRecords {
				rs.Values = append(rs.Values, aws.ToString(rr.Value))
			}
		}
		sets = append(sets, rs)
	}
	return sets, out.IsTruncated, nil
}

func (p *route53Provider) ChangeResourceRecordSets(ctx context.Context, zoneID string, batch ChangeBatch) (ChangeInfo, error) {
	in := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String(batch.Comment),
		},
	}
	for _, ch := range batch.Changes {
		rrs := &types.ResourceRecordSet{
			Name: aws.String(ch.RecordSet.Name),
			Type: types.RRType(ch.RecordSet.Type),
			TTL:  aws.Int64(ch.RecordSet.TTL),
		}
		for _, v := range ch.RecordSet.Values {
			rrs.ResourceRecords = append(rrs.ResourceRecords, types.ResourceRecord{Value: aws.String(v)})
		}
		in.ChangeBatch.Changes = append(in.ChangeBatch.Changes, types.Change{
			Action:            types.ChangeAction(ch.Action),
			ResourceRecordSet: rrs,
		})
	}
	p.logger.Debug().Str("zone", zoneID).Int("changes", len(batch.Changes)).Msg("route53 ChangeResourceRecordSets")
	out, err := p.api.ChangeResourceRecordSets(ctx, in)
	if err != nil {
		return ChangeInfo{}, err
	}
	return changeInfo(out.ChangeInfo), nil
}

func (p *route53Provider) GetChange(ctx context.Context, changeID string) (ChangeInfo, error) {
	out, err := p.api.GetChange(ctx, &route53.GetChangeInput{Id: aws.String(changeID)})
	if err != nil {
		return ChangeInfo{}, err
	}
	return changeInfo(out.ChangeInfo), nil
}

func changeInfo(ci *types.ChangeInfo) ChangeInfo {
	if ci == nil {
		return ChangeInfo{}
	}
	return ChangeInfo{
		ID:     aws.ToString(ci.Id),
		Status: ChangeStatus(ci.Status),
	}
}
