// Package catalog serves the mock provider, claim and ROI records shown by
// the list and search commands.
package catalog

import (
	"strings"
)

// Provider is a care provider that claims can be filed against.
type Provider struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Specialties []string `json:"specialties"`
}

// Claim is a previously filed claim.
type Claim struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
}

// ROI is a previously created release-of-information authorization.
type ROI struct {
	ID      string `json:"id"`
	Purpose string `json:"purpose"`
	Status  string `json:"status"`
}

var providers = []Provider{
	{ID: "p1", Name: "Central Clinic", Specialties: []string{"Cardiology", "General"}},
	{ID: "p2", Name: "Eastside Health", Specialties: []string{"Orthopedics"}},
}

var claims = []Claim{
	{ID: "c1", Provider: "Central Clinic", Status: "Processing"},
	{ID: "c2", Provider: "Eastside Health", Status: "Paid"},
}

var rois = []ROI{
	{ID: "r1", Purpose: "Insurance", Status: "active"},
	{ID: "r2", Purpose: "Records transfer", Status: "revoked"},
}

// Providers returns every provider.
func Providers() []Provider {
	return cloneProviders(providers)
}

// SearchProviders returns providers whose name or any specialty contains
// query, case-insensitively. An empty query matches everything.
func SearchProviders(query string) []Provider {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Providers()
	}
	var out []Provider
	for _, p := range providers {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(strings.Join(p.Specialties, ",")), q) {
			out = append(out, p)
		}
	}
	return cloneProviders(out)
}

// ProviderByID looks up a provider.
func ProviderByID(id string) (Provider, bool) {
	for _, p := range providers {
		if p.ID == id {
			return cloneProviders([]Provider{p})[0], true
		}
	}
	return Provider{}, false
}

// ProviderNames returns provider names in catalog order.
func ProviderNames() []string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}
	return names
}

func Claims() []Claim {
	return append([]Claim(nil), claims...)
}

func ROIs() []ROI {
	return append([]ROI(nil), rois...)
}

func cloneProviders(in []Provider) []Provider {
	out := make([]Provider, len(in))
	for i, p := range in {
		p.Specialties = append([]string(nil), p.Specialties...)
		out[i] = p
	}
	return out
}
