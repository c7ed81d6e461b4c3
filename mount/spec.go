// Package mount implements the Mount Spec (component A) and the Mount
// Info Cache (component B): the canonical, hashable identity of a
// mountable location and the process-wide map from (spec, path) to the
// backend endpoint that currently owns it.
package mount

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vfsfabric/corevfs/vfserr"
)

// reservedRunes are URI-escaped in the human string form, matching the
// reserved set this reserves.
const reservedRunes = "$&'()*+"

// Item is one typed key/value entry of a Spec. Keys are unique within a
// Spec and the Items slice is always kept sorted by Key so that
// equality, hashing and the human string form are all canonical.
type Item struct {
	Key   string
	Value string
}

// Spec is the identity of a mountable location: a type tag, a sorted
// set of key/value items and a canonicalized prefix path.
//
// A Spec is mutable only until it has been interned (see Interner);
// after that point every holder of the pointer must treat it as
// read-only, immutable after construction.
type Spec struct {
	Type        string
	Items       []Item
	MountPrefix string

	interned bool
}

// New returns an empty Spec of the given type with MountPrefix "/".
func New(typ string) *Spec {
	return &Spec{Type: typ, MountPrefix: "/"}
}

// Set inserts or replaces the value for key, preserving sort order. It
// panics if called on an interned Spec, since interned specs must stay
// immutable so the shared instance cannot be mutated out from under
// other holders.
func (s *Spec) Set(key, value string) {
	if s.interned {
		panic("mount: Set called on an interned Spec")
	}
	i := sort.Search(len(s.Items), func(i int) bool { return s.Items[i].Key >= key })
	if i < len(s.Items) && s.Items[i].Key == key {
		s.Items[i].Value = value
		return
	}
	s.Items = append(s.Items, Item{})
	copy(s.Items[i+1:], s.Items[i:])
	s.Items[i] = Item{Key: key, Value: value}
}

// Get returns the value for key and whether it was present.
func (s *Spec) Get(key string) (string, bool) {
	i := sort.Search(len(s.Items), func(i int) bool { return s.Items[i].Key >= key })
	if i < len(s.Items) && s.Items[i].Key == key {
		return s.Items[i].Value, true
	}
	return "", false
}

// SetMountPrefix canonicalizes and stores p as the Spec's prefix path.
func (s *Spec) SetMountPrefix(p string) {
	if s.interned {
		panic("mount: SetMountPrefix called on an interned Spec")
	}
	s.MountPrefix = CanonicalizePath(p)
}

// CanonicalizePath collapses "." and ".." segments, deduplicates
// slashes and strips any trailing slash (the root canonicalizes to
// "/"). A relative path is treated as rooted at "/".
func CanonicalizePath(p string) string {
	if p == "" {
		return "/"
	}
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

// itemsEqual reports whether two sorted Item slices are identical.
func itemsEqual(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Equal reports structural equality: same type, same items, same
// prefix.
func (s *Spec) Equal(o *Spec) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	return s.Type == o.Type && s.MountPrefix == o.MountPrefix && itemsEqual(s.Items, o.Items)
}

// Hash combines the prefix and every item's key/value into a single
// 64-bit digest using xxhash, already part of the dependency graph
// transitively via the metrics stack and adopted here directly as the
// faster, more idiomatic choice over hash/fnv for content addressing.
func (s *Spec) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(s.Type)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(s.MountPrefix)
	for _, it := range s.Items {
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(it.Key)
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(it.Value)
	}
	return h.Sum64()
}

// pathHasComponentPrefix reports whether prefix is a full-component
// prefix of p: either p == prefix, or p continues past prefix with a
// '/'. This is the "prefix treated as full-component" rule from
// Match.
func pathHasComponentPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	rest := p[len(prefix):]
	return rest == "" || strings.HasPrefix(rest, "/")
}

// Match reports whether this Spec denotes refSpec at path: the item
// sets must be equal and path must have m.MountPrefix as a
// component-prefix.
func (s *Spec) Match(refSpec *Spec, path string) bool {
	if !itemsEqual(s.Items, refSpec.Items) {
		return false
	}
	return pathHasComponentPrefix(CanonicalizePath(path), s.MountPrefix)
}

// String renders the human form "type:key1=v1,key2=v2,prefix=/p" with
// values URI-escaped over the reserved set.
func (s *Spec) String() string {
	var b strings.Builder
	b.WriteString(s.Type)
	b.WriteByte(':')
	parts := make([]string, 0, len(s.Items)+1)
	for _, it := range s.Items {
		parts = append(parts, it.Key+"="+escapeValue(it.Value))
	}
	parts = append(parts, "prefix="+escapeValue(s.MountPrefix))
	b.WriteString(strings.Join(parts, ","))
	return b.String()
}

func escapeValue(v string) string {
	var b strings.Builder
	for _, r := range v {
		if strings.ContainsRune(reservedRunes, r) {
			fmt.Fprintf(&b, "%%%02X", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func unescapeValue(v string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] == '%' {
			if i+2 >= len(v) {
				return "", vfserr.New(vfserr.InvalidArgument, "truncated escape in %q", v)
			}
			var code int
			if _, err := fmt.Sscanf(v[i+1:i+3], "%02X", &code); err != nil {
				return "", vfserr.Wrap(vfserr.InvalidArgument, err, "bad escape in %q", v)
			}
			b.WriteByte(byte(code))
			i += 2
		} else {
			b.WriteByte(v[i])
		}
	}
	return b.String(), nil
}

// ParseString parses the human form produced by String. It fails with
// vfserr.InvalidArgument on malformed key=value pairs.
func ParseString(s string) (*Spec, error) {
	typ, rest, ok := strings.Cut(s, ":")
	if !ok {
		return nil, vfserr.New(vfserr.InvalidArgument, "missing ':' in mount spec %q", s)
	}
	spec := New(typ)
	if rest == "" {
		return spec, nil
	}
	for _, kv := range strings.Split(rest, ",") {
		key, rawVal, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, vfserr.New(vfserr.InvalidArgument, "malformed key=value pair %q in %q", kv, s)
		}
		val, err := unescapeValue(rawVal)
		if err != nil {
			return nil, err
		}
		if key == "prefix" {
			spec.SetMountPrefix(val)
		} else {
			spec.Set(key, val)
		}
	}
	return spec, nil
}
