package ddns

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/cloudflare/cloudflare-go"
	"github.com/google/go-cmp/cmp"
)

type cfRecord struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Comment string `json:"comment,omitempty"`
}

// fakeCloudflare serves the handful of v4 endpoints the provider uses.
type fakeCloudflare struct {
	mu      sync.Mutex
	zones   []map[string]any
	records []cfRecord
	calls   []string
	created []cfRecord
}

func cfList(result any, count int) map[string]any {
	return map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
		"result_info": map[string]any{
			"page":        1,
			"per_page":    50,
			"total_pages": 1,
			"count":       count,
			"total_count": count,
		},
	}
}

func cfSingle(result any) map[string]any {
	return map[string]any{
		"success":  true,
		"errors":   []any{},
		"messages": []any{},
		"result":   result,
	}
}

func (f *fakeCloudflare) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "zones":
		json.NewEncoder(w).Encode(cfList(f.zones, len(f.zones)))

	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "dns_records":
		q := r.URL.Query()
		var out []cfRecord
		for _, rec := range f.records {
			if t := q.Get("type"); t != "" && t != rec.Type {
				continue
			}
			if n := q.Get("name"); n != "" && n != rec.Name {
				continue
			}
			out = append(out, rec)
		}
		json.NewEncoder(w).Encode(cfList(out, len(out)))

	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "dns_records":
		var rec cfRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec.ID = "new-record"
		f.created = append(f.created, rec)
		json.NewEncoder(w).Encode(cfSingle(rec))

	case r.Method == http.MethodDelete && len(parts) == 4 && parts[2] == "dns_records":
		json.NewEncoder(w).Encode(cfSingle(map[string]any{"id": parts[3]}))

	default:
		http.Error(w, "unexpected request", http.StatusNotFound)
	}
}

func newTestCloudflare(t *testing.T, f *fakeCloudflare) *cloudflareProvider {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	cf, err := newCloudflareAPI("test-token", cloudflare.BaseURL(srv.URL))
	if err != nil {
		t.Fatalf("newCloudflareAPI: %s", err)
	}
	return cf
}

func TestCloudflareZoneLookupPicksLongestParent(t *testing.T) {
	f := &fakeCloudflare{zones: []map[string]any{
		{"id": "Z1", "name": "example.com"},
		{"id": "Z2", "name": "sub.example.com"},
		{"id": "Z3", "name": "example.org"},
	}}
	cf := newTestCloudflare(t, f)

	zones, truncated, err := cf.ListHostedZonesByName(context.Background(), "home.sub.example.com.", 1)
	if err != nil {
		t.Fatalf("ListHostedZonesByName: %s", err)
	}
	if truncated {
		t.Fatalf("Expected truncated == false")
	}
	if diff := cmp.Diff([]HostedZone{{ID: "Z2", Name: "sub.example.com."}}, zones); diff != "" {
		t.Fatalf("zones mismatch (-want +got):\n%s", diff)
	}

	zones, _, err = cf.ListHostedZonesByName(context.Background(), "home.example.net.", 1)
	if err != nil {
		t.Fatalf("ListHostedZonesByName: %s", err)
	}
	if len(zones) != 0 {
		t.Fatalf("Expected no zones; got %+v", zones)
	}
}

func TestCloudflareRecordSetsAreGrouped(t *testing.T) {
	f := &fakeCloudflare{records: []cfRecord{
		{ID: "R1", Type: "A", Name: "home.example.com", Content: "203.0.113.7", TTL: 60},
		{ID: "R2", Type: "A", Name: "home.example.com", Content: "198.51.100.1", TTL: 60},
		{ID: "R3", Type: "TXT", Name: "home.example.com", Content: "hello", TTL: 300},
	}}
	cf := newTestCloudflare(t, f)

	sets, truncated, err := cf.ListResourceRecordSets(context.Background(), "Z1")
	if err != nil {
		t.Fatalf("ListResourceRecordSets: %s", err)
	}
	if truncated {
		t.Fatalf("Expected truncated == false")
	}
	want := []RecordSet{
		{Name: "home.example.com.", Type: "A", TTL: 60, Values: []string{"203.0.113.7", "198.51.100.1"}},
		{Name: "home.example.com.", Type: "TXT", TTL: 300, Values: []string{"hello"}},
	}
	if diff := cmp.Diff(want, sets); diff != "" {
		t.Fatalf("record sets mismatch (-want +got):\n%s", diff)
	}
}

func TestCloudflareUpsertReplacesStaleRecord(t *testing.T) {
	f := &fakeCloudflare{records: []cfRecord{
		{ID: "R1", Type: "A", Name: "home.example.com", Content: "198.51.100.1", TTL: 60},
		{ID: "R3", Type: "TXT", Name: "home.example.com", Content: "hello", TTL: 300},
	}}
	cf := newTestCloudflare(t, f)

	info, err := cf.ChangeResourceRecordSets(context.Background(), "Z1", ChangeBatch{
		Comment: ChangeComment,
		Changes: []Change{{
			Action:    ChangeUpsert,
			RecordSet: RecordSet{Name: "home.example.com.", Type: "A", TTL: RecordTTL, Values: []string{"203.0.113.7"}},
		}},
	})
	if err != nil {
		t.Fatalf("ChangeResourceRecordSets: %s", err)
	}
	if info.Status != StatusInSync || info.ID == "" {
		t.Fatalf("Expected an INSYNC change with an ID; got %+v", info)
	}

	wantCalls := []string{
		"GET /zones/Z1/dns_records",
		"DELETE /zones/Z1/dns_records/R1",
		"POST /zones/Z1/dns_records",
	}
	if diff := cmp.Diff(wantCalls, f.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	wantCreated := []cfRecord{{
		ID:      "new-record",
		Type:    "A",
		Name:    "home.example.com",
		Content: "203.0.113.7",
		TTL:     RecordTTL,
		Comment: ChangeComment,
	}}
	if diff := cmp.Diff(wantCreated, f.created); diff != "" {
		t.Fatalf("created records mismatch (-want +got):\n%s", diff)
	}

	info, err = cf.GetChange(context.Background(), info.ID)
	if err != nil || info.Status != StatusInSync {
		t.Fatalf("Expected GetChange to report INSYNC; got %+v, %v", info, err)
	}
}

func TestCloudflareUpsertKeepsMatchingRecord(t *testing.T) {
	f := &fakeCloudflare{records: []cfRecord{
		{ID: "R1", Type: "A", Name: "home.example.com", Content: "203.0.113.7", TTL: 60},
	}}
	cf := newTestCloudflare(t, f)

	_, err := cf.ChangeResourceRecordSets(context.Background(), "Z1", ChangeBatch{
		Changes: []Change{{
			Action:    ChangeUpsert,
			RecordSet: RecordSet{Name: "home.example.com.", Type: "A", TTL: RecordTTL, Values: []string{"203.0.113.7"}},
		}},
	})
	if err != nil {
		t.Fatalf("ChangeResourceRecordSets: %s", err)
	}
	if diff := cmp.Diff([]string{"GET /zones/Z1/dns_records"}, f.calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
}
