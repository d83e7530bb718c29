package ddns

import (
	"context"
)

// Resolver looks up the address that the A record should point at.
type Resolver interface {
	Resolve(context.Context) (string, error)
}

// ResolverFunc adapts an ordinary function to a Resolver.
type ResolverFunc func(context.Context) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context) (string, error) { return f(ctx) }

// DNSAPI is the subset of a DNS provider's API that the reconciler consumes.
//
// The shape follows Route53: zones are looked up by name,
// record sets are listed a page at a time,
// and mutations return a change that may still be propagating.
type DNSAPI interface {
	// ListHostedZonesByName returns up to maxItems zones starting at dnsName.
	// truncated reports whether the provider had more zones to return.
	ListHostedZonesByName(ctx context.Context, dnsName string, maxItems int32) (zones []HostedZone, truncated bool, err error)
	// ListResourceRecordSets returns the first page of record sets in a zone.
	ListResourceRecordSets(ctx context.Context, zoneID string) (sets []RecordSet, truncated bool, err error)
	ChangeResourceRecordSets(ctx context.Context, zoneID string, batch ChangeBatch) (ChangeInfo, error)
	GetChange(ctx context.Context, changeID string) (ChangeInfo, error)
}

type HostedZone struct {
	ID   string
	Name string
}

// RecordSet is every value published for one name and type.
//
// A nil Values means the provider returned no value list at all (Route53 alias records, for instance),
// which is different from an empty list.
type RecordSet struct {
	Name   string
	Type   string
	TTL    int64
	Values []string
}

type ChangeAction string

const ChangeUpsert ChangeAction = "UPSERT"

type Change struct {
	Action    ChangeAction
	RecordSet RecordSet
}

type ChangeBatch struct {
	Comment string
	Changes []Change
}

type ChangeStatus string

const (
	StatusPending ChangeStatus = "PENDING"
	StatusInSync  ChangeStatus = "INSYNC"
)

type ChangeInfo struct {
	ID     string
	Status ChangeStatus
}
