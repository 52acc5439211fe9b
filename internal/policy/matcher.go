package policy

import (
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeHost lower-cases a hostname, drops a trailing dot and converts
// internationalized names to their ASCII form. It returns "" for names that
// cannot be routed.
func NormalizeHost(host string) string {
	h := strings.TrimSuffix(strings.TrimSpace(host), ".")
	if h == "" {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(h)
	if err != nil {
		// Lookup rejects underscores and similar; keep the lower-cased form so
		// such names still match literally.
		return strings.ToLower(h)
	}
	return ascii
}

// SuffixSet answers dot-boundary suffix queries: a host matches a listed
// domain d if it equals d or ends with "."+d.
type SuffixSet struct {
	domains map[string]struct{}
	ordered []string
}

// NewSuffixSet builds a set from the given sources in order. Entries are
// normalized and deduplicated; the first occurrence fixes the order.
func NewSuffixSet(sources ...[]string) *SuffixSet {
	n := 0
	for _, s := range sources {
		n += len(s)
	}
	set := &SuffixSet{
		domains: make(map[string]struct{}, n),
		ordered: make([]string, 0, n),
	}
	for _, src := range sources {
		for _, d := range src {
			d = NormalizeHost(d)
			if d == "" {
				continue
			}
			if _, ok := set.domains[d]; ok {
				continue
			}
			set.domains[d] = struct{}{}
			set.ordered = append(set.ordered, d)
		}
	}
	return set
}

// Len returns the number of distinct domains.
func (s *SuffixSet) Len() int { return len(s.ordered) }

// Domains returns the merged domains in merge order.
func (s *SuffixSet) Domains() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Match returns the listed domain that covers host, walking from the full
// host towards its parent domains.
func (s *SuffixSet) Match(host string) (string, bool) {
	h := NormalizeHost(host)
	for h != "" {
		if _, ok := s.domains[h]; ok {
			return h, true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	return "", false
}
