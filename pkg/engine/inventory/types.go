// Package inventory enumerates regional cloud resources into normalized
// descriptors. Each enumerator issues signed API calls and decodes the
// provider response with safe defaults; a failure is reported as a typed
// error and collapses to an empty list only at the orchestrator boundary.
package inventory

import (
	"fmt"
	"time"
)

// Kind identifies a resource family the scanner understands.
type Kind string

const (
	KindVolume       Kind = "volume"
	KindSnapshot     Kind = "snapshot"
	KindAddress      Kind = "address"
	KindInstance     Kind = "compute-instance"
	KindDatabase     Kind = "managed-database"
	KindGateway      Kind = "gateway"
	KindImage        Kind = "image"
	KindCluster      Kind = "container-cluster"
	KindFunction     Kind = "function"
	KindLoadBalancer Kind = "load-balancer"
)

// Kinds lists every resource family in scan order.
var Kinds = []Kind{
	KindVolume, KindSnapshot, KindAddress, KindInstance, KindDatabase,
	KindGateway, KindImage, KindCluster, KindFunction, KindLoadBalancer,
}

// Descriptor is the normalized view of one discovered resource. It lives
// for the duration of a single scan; identity is the provider-native ID.
type Descriptor struct {
	Kind   Kind
	ID     string
	Name   string
	Region string
	Attrs  map[string]any
}

// Str returns a string attribute, or def when absent or mistyped.
func (d Descriptor) Str(key, def string) string {
	if v, ok := d.Attrs[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns an integer attribute, or def when absent or mistyped.
func (d Descriptor) Int(key string, def int) int {
	switch v := d.Attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns a boolean attribute, false when absent.
func (d Descriptor) Bool(key string) bool {
	v, _ := d.Attrs[key].(bool)
	return v
}

// Time returns a timestamp attribute; the zero time means unknown and
// classifiers must treat it as no age evidence.
func (d Descriptor) Time(key string) time.Time {
	v, _ := d.Attrs[key].(time.Time)
	return v
}

// EnumerationError wraps a failed enumeration with its scan scope.
type EnumerationError struct {
	Kind   Kind
	Region string
	Err    error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate %s in %s: %v", e.Kind, e.Region, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// parseTime decodes provider timestamps, tolerating the millisecond and
// second RFC3339 variants the APIs mix. Zero time on failure.
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// tag is the shared tagSet shape of the EC2 Query responses.
type tag struct {
	Key   string `xml:"key"`
	Value string `xml:"value"`
}

func nameFromTags(tags []tag) string {
	for _, t := range tags {
		if t.Key == "Name" {
			return t.Value
		}
	}
	return ""
}
