// Package geosite decodes the binary domain-list format (v2fly geosite.dat)
// into category-tagged domain records.
package geosite

import "fmt"

// MatchType is the matching semantic of a domain entry. Values are the wire
// values of the list format.
type MatchType int

const (
	MatchPlain        MatchType = iota // substring / keyword
	MatchRegex                         // regular expression
	MatchDomainSuffix                  // domain and all of its subdomains
	MatchFull                          // exact host
)

func (t MatchType) String() string {
	switch t {
	case MatchPlain:
		return "PLAIN_SUBSTRING"
	case MatchRegex:
		return "REGEX"
	case MatchDomainSuffix:
		return "DOMAIN_SUFFIX"
	case MatchFull:
		return "FULL"
	default:
		return fmt.Sprintf("MatchType(%d)", int(t))
	}
}

// HostMatchable reports whether entries of this type can be used for
// dot-boundary host suffix matching.
func (t MatchType) HostMatchable() bool {
	return t == MatchDomainSuffix || t == MatchFull
}

// Record is one decoded domain entry.
type Record struct {
	Category string
	Type     MatchType
	Value    string
}

// Result holds the records of the wanted categories.
type Result struct {
	Records []Record
	// Skipped counts outer entries dropped because their content was malformed.
	Skipped int
}

// FormatError reports a malformed list.
type FormatError struct {
	Offset int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("geosite: malformed list at offset %d: %s", e.Offset, e.Reason)
}
