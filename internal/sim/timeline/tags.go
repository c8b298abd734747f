package timeline

import (
	"sort"
	"strings"
)

// Tag is one facet marker on a timeline entry. Four closed facets cover
// where something happened, what kind of thing it was, which process wrote
// it, and who is responsible; Extra covers the free-form rest. Consumers
// filter by membership only, never by position.
type Tag string

const (
	prefixLocation = "loc:"
	prefixEvent    = "event:"
	prefixOrigin   = "origin:"
	prefixActor    = "actor:"
)

func Location(region string) Tag { return Tag(prefixLocation + region) }
func Event(kind string) Tag      { return Tag(prefixEvent + kind) }
func Origin(process string) Tag  { return Tag(prefixOrigin + process) }
func Actor(id string) Tag        { return Tag(prefixActor + id) }
func Extra(s string) Tag         { return Tag(s) }

func (t Tag) IsLocation() bool { return strings.HasPrefix(string(t), prefixLocation) }
func (t Tag) IsEvent() bool    { return strings.HasPrefix(string(t), prefixEvent) }
func (t Tag) IsOrigin() bool   { return strings.HasPrefix(string(t), prefixOrigin) }
func (t Tag) IsActor() bool    { return strings.HasPrefix(string(t), prefixActor) }

// TagSet is an unordered, non-empty set of tags.
type TagSet map[Tag]struct{}

func NewTagSet(tags ...Tag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

func (s TagSet) Has(t Tag) bool {
	_, ok := s[t]
	return ok
}

func (s TagSet) Add(t Tag) { s[t] = struct{}{} }

func (s TagSet) Clone() TagSet {
	c := make(TagSet, len(s))
	for t := range s {
		c[t] = struct{}{}
	}
	return c
}

// Strings returns the tags sorted, for stable serialization and logs.
func (s TagSet) Strings() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}
