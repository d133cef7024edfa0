package r4

import "time"

// Bundle represents a FHIR R4 Bundle of type "transaction". The bundle owns
// the resources for one pipeline transaction; everything a resource
// references must live in the same bundle.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id"`
	Meta         *Meta         `json:"meta,omitempty"`
	Type         string        `json:"type"`
	Timestamp    *time.Time    `json:"timestamp,omitempty"`
	Entry        []BundleEntry `json:"entry"`
}

// BundleEntry wraps a single resource with its fullUrl and request stanza.
type BundleEntry struct {
	FullURL  string         `json:"fullUrl"`
	Resource Resource       `json:"resource"`
	Request  *BundleRequest `json:"request,omitempty"`
}

// BundleRequest carries the transaction verb for an entry.
type BundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// Resources returns the typed resources in entry order.
func (b *Bundle) Resources() []Resource {
	out := make([]Resource, 0, len(b.Entry))
	for _, e := range b.Entry {
		out = append(out, e.Resource)
	}
	return out
}

// CountByType returns the number of resources per resource type.
func (b *Bundle) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, e := range b.Entry {
		counts[e.Resource.ResourceName()]++
	}
	return counts
}

// FindByID returns the resource with the given logical id, if present.
func (b *Bundle) FindByID(id string) (Resource, bool) {
	for _, e := range b.Entry {
		if e.Resource.ResourceID() == id {
			return e.Resource, true
		}
	}
	return nil, false
}
