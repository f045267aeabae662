package fhir

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Bundle represents a FHIR searchset Bundle.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Search   *BundleSearch   `json:"search,omitempty"`
}

type BundleSearch struct {
	Mode string `json:"mode,omitempty"`
}

// SearchParams describes the page a searchset bundle holds.
type SearchParams struct {
	BaseURL string
	Query   url.Values
	Count   int
	Offset  int
	Total   int
}

// NewSearchBundle wraps rendered resources in a searchset Bundle with
// self/next/previous links. Paging parameters in Query are replaced.
func NewSearchBundle(resources []map[string]interface{}, p SearchParams) (*Bundle, error) {
	now := time.Now().UTC()
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal bundle entry %d: %w", i, err)
		}
		entries[i] = BundleEntry{
			FullURL:  fullURL(r),
			Resource: raw,
			Search:   &BundleSearch{Mode: "match"},
		}
	}

	total := p.Total
	return &Bundle{
		ResourceType: "Bundle",
		Type:         "searchset",
		Total:        &total,
		Timestamp:    &now,
		Link:         paginationLinks(p),
		Entry:        entries,
	}, nil
}

func fullURL(r map[string]interface{}) string {
	rt, _ := r["resourceType"].(string)
	id, _ := r["id"].(string)
	if rt == "" || id == "" {
		return ""
	}
	return FormatReference(rt, id)
}

func paginationLinks(p SearchParams) []BundleLink {
	page := func(offset int) string {
		q := url.Values{}
		for k, v := range p.Query {
			q[k] = v
		}
		q.Set("_count", fmt.Sprint(p.Count))
		q.Set("_offset", fmt.Sprint(offset))
		return p.BaseURL + "?" + q.Encode()
	}

	links := []BundleLink{{Relation: "self", URL: page(p.Offset)}}
	if next := p.Offset + p.Count; next < p.Total {
		links = append(links, BundleLink{Relation: "next", URL: page(next)})
	}
	if p.Offset > 0 {
		prev := p.Offset - p.Count
		if prev < 0 {
			prev = 0
		}
		links = append(links, BundleLink{Relation: "previous", URL: page(prev)})
	}
	return links
}
