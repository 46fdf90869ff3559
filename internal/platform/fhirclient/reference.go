package fhirclient

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// LabelExtensionURL is the standard extension carrying a display label for an
// answer option.
const LabelExtensionURL = "http://hl7.org/fhir/StructureDefinition/label"

// FormatReference builds a relative reference such as "Patient/123".
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// ReferenceID returns the id segment of a reference. Both relative
// ("Practitioner/1") and absolute ("https://host/fhir/Practitioner/1")
// references are accepted.
func ReferenceID(ref string) string {
	ref = strings.TrimRight(ref, "/")
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// DecodeEntries unmarshals every entry resource into a new T. Entries without
// a resource are skipped.
func DecodeEntries[T any](entries []fhir.BundleEntry) ([]*T, error) {
	out := make([]*T, 0, len(entries))
	for i, e := range entries {
		if len(e.Resource) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(e.Resource, &v); err != nil {
			return nil, fmt.Errorf("decode bundle entry %d: %w", i, err)
		}
		out = append(out, &v)
	}
	return out, nil
}

// nextLink returns the URL of the "next" page link, or "" on the last page.
func nextLink(b *fhir.Bundle) string {
	for _, l := range b.Link {
		if l.Relation == "next" {
			return l.Url
		}
	}
	return ""
}
