// Package querycache is the process-wide cache of remote query results.
//
// Entries are keyed by (resource, parameters). Reads never block; loads are
// deduplicated per key; invalidation marks a whole resource stale and
// refetches keys that are being watched. Observers give a view
// stale-while-revalidate semantics across key changes.
package querycache

import (
	"net/url"
	"strconv"
)

// Key identifies one cached result.
type Key struct {
	Resource string
	Params   url.Values
}

// NewKey builds a key from alternating parameter names and values.
func NewKey(resource string, kv ...string) Key {
	k := Key{Resource: resource}
	if len(kv) > 0 {
		k.Params = url.Values{}
		for i := 0; i+1 < len(kv); i += 2 {
			k.Params.Set(kv[i], kv[i+1])
		}
	}
	return k
}

// PageKey is the key of one page of a paginated resource.
func PageKey(resource string, page int) Key {
	return NewKey(resource, "page", strconv.Itoa(page))
}

// String returns the canonical form, e.g. "tasks?page=2". Parameters are
// sorted so equal keys always produce equal strings.
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Resource
	}
	return k.Resource + "?" + k.Params.Encode()
}
