package fhir

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/numlims/fhirbuild/pkg/fhirmodels"
	"github.com/numlims/fhirbuild/pkg/pagination"
)

// Request methods of transaction entries.
const (
	MethodPost   = "POST"
	MethodDelete = "DELETE"
)

const bundleTypeTransaction = "transaction"

// Bundle represents a FHIR transaction Bundle as read by the CentraXX
// importer.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
	Request  *BundleRequest  `json:"request,omitempty"`
}

type BundleRequest struct {
	Method string `json:"method"`
	URL    string `json:"url"`
}

// NewEntry builds a transaction entry for resource. The resource is encoded
// once here; fullUrl and request url both point at resourceType/id.
func NewEntry(resourceType, id, method string, resource interface{}) (BundleEntry, error) {
	raw, err := marshal(resource)
	if err != nil {
		return BundleEntry{}, fmt.Errorf("encode %s/%s: %w", resourceType, id, err)
	}
	ref := FormatReference(resourceType, id)
	return BundleEntry{
		FullURL:  ref,
		Resource: raw,
		Request:  &BundleRequest{Method: method, URL: ref},
	}, nil
}

// NewTransactionBundle packs entries into a transaction bundle. CentraXX 3
// expects resourceType "Bundle", CentraXX 4 the resource type of the entries.
func NewTransactionBundle(entries []BundleEntry, restype string, cxx int) (*Bundle, error) {
	b := &Bundle{Type: bundleTypeTransaction, Entry: entries}
	if b.Entry == nil {
		b.Entry = []BundleEntry{}
	}
	switch cxx {
	case fhirmodels.CXX3:
		b.ResourceType = "Bundle"
	case fhirmodels.CXX4:
		b.ResourceType = restype
	default:
		return nil, fmt.Errorf("unsupported centraxx version %d", cxx)
	}
	return b, nil
}

// Paginate splits entries into bundles of at most size entries, keeping
// order. The last bundle is always emitted, so an empty input yields one
// empty bundle. Sizes above pagination.MaxLimit are capped.
func Paginate(entries []BundleEntry, size int, restype string, cxx int) ([]*Bundle, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", size)
	}
	pages := pagination.New(size).Pages(len(entries))
	bundles := make([]*Bundle, 0, len(pages))
	for _, p := range pages {
		start, end := p.Bounds(len(entries))
		b, err := NewTransactionBundle(entries[start:end], restype, cxx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// marshal encodes v without escaping HTML characters, so values like
// "<5 mg" are written as given.
func marshal(v interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
