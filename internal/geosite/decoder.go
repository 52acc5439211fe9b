package geosite

import (
	"strings"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the list layout:
//
//	GeoSiteList { repeated GeoSite entry = 1; }
//	GeoSite     { string country_code = 1; repeated Domain domain = 2; ... }
//	Domain      { Type type = 1; string value = 2; repeated Attribute attribute = 3; }
const (
	fieldListEntry     protowire.Number = 1
	fieldEntryCode     protowire.Number = 1
	fieldEntryDomain   protowire.Number = 2
	fieldDomainType    protowire.Number = 1
	fieldDomainValue   protowire.Number = 2
	maxKnownMatchValue                  = uint64(MatchFull)
)

// Decode parses buf and returns the domain records whose category code is in
// wanted (compared case-sensitively).
//
// Malformed input is handled in two tiers. If the outer framing cannot be
// read (bad tag, truncated varint, length past the end of buf) the decode is
// aborted with a *FormatError, since sibling entries cannot be located
// anymore. If an outer entry is framed correctly but its content is
// malformed, that entry is skipped, counted in Result.Skipped, and decoding
// continues with the next entry.
//
// Records are grouped by category in the order of wanted; within a category
// they keep the source order. Value strings are the only copies made.
func Decode(buf []byte, wanted []string) (*Result, error) {
	if len(buf) == 0 {
		return nil, &FormatError{Offset: 0, Reason: "empty buffer"}
	}

	want := make(map[string]int, len(wanted))
	for i, c := range wanted {
		if _, dup := want[c]; !dup {
			want[c] = i
		}
	}
	groups := make([][]Record, len(wanted))

	res := &Result{}
	off := 0
	for off < len(buf) {
		num, typ, n := protowire.ConsumeTag(buf[off:])
		if n < 0 {
			return nil, &FormatError{Offset: off, Reason: "outer tag: " + protowire.ParseError(n).Error()}
		}
		fieldStart := off
		off += n

		if num != fieldListEntry {
			m := protowire.ConsumeFieldValue(num, typ, buf[off:])
			if m < 0 {
				return nil, &FormatError{Offset: off, Reason: "outer field: " + protowire.ParseError(m).Error()}
			}
			off += m
			continue
		}
		if typ != protowire.BytesType {
			return nil, &FormatError{Offset: fieldStart, Reason: "outer entry is not length-delimited"}
		}

		entry, m := protowire.ConsumeBytes(buf[off:])
		if m < 0 {
			return nil, &FormatError{Offset: off, Reason: "outer entry length: " + protowire.ParseError(m).Error()}
		}
		off += m

		code, ok := entryCode(entry)
		if !ok {
			res.Skipped++
			continue
		}
		idx, wantedCode := want[code]
		if !wantedCode {
			continue
		}

		records, ok := decodeDomains(code, entry)
		if !ok {
			res.Skipped++
			continue
		}
		groups[idx] = append(groups[idx], records...)
	}

	total := 0
	for _, g := range groups {
		total += len(g)
	}
	res.Records = make([]Record, 0, total)
	for _, g := range groups {
		res.Records = append(res.Records, g...)
	}
	return res, nil
}

// entryCode scans an outer entry for its category code without decoding the
// domain list. ok is false when the entry is malformed or has no code.
func entryCode(entry []byte) (string, bool) {
	for off := 0; off < len(entry); {
		num, typ, n := protowire.ConsumeTag(entry[off:])
		if n < 0 {
			return "", false
		}
		off += n
		if num == fieldEntryCode && typ == protowire.BytesType {
			v, m := protowire.ConsumeBytes(entry[off:])
			if m < 0 || !utf8.Valid(v) {
				return "", false
			}
			return string(v), true
		}
		m := protowire.ConsumeFieldValue(num, typ, entry[off:])
		if m < 0 {
			return "", false
		}
		off += m
	}
	return "", false
}

// decodeDomains decodes every domain field of a wanted outer entry. Any
// malformation invalidates the whole entry.
func decodeDomains(code string, entry []byte) ([]Record, bool) {
	var records []Record
	for off := 0; off < len(entry); {
		num, typ, n := protowire.ConsumeTag(entry[off:])
		if n < 0 {
			return nil, false
		}
		off += n

		if num != fieldEntryDomain {
			m := protowire.ConsumeFieldValue(num, typ, entry[off:])
			if m < 0 {
				return nil, false
			}
			off += m
			continue
		}
		if typ != protowire.BytesType {
			return nil, false
		}
		raw, m := protowire.ConsumeBytes(entry[off:])
		if m < 0 {
			return nil, false
		}
		off += m

		rec, ok := decodeDomain(raw)
		if !ok {
			return nil, false
		}
		if rec.Value == "" {
			continue
		}
		rec.Category = code
		records = append(records, rec)
	}
	return records, true
}

func decodeDomain(raw []byte) (Record, bool) {
	var rec Record // type defaults to MatchPlain when the field is omitted
	for off := 0; off < len(raw); {
		num, typ, n := protowire.ConsumeTag(raw[off:])
		if n < 0 {
			return Record{}, false
		}
		off += n

		switch {
		case num == fieldDomainType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(raw[off:])
			if m < 0 || v > maxKnownMatchValue {
				return Record{}, false
			}
			rec.Type = MatchType(v)
			off += m
		case num == fieldDomainValue && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(raw[off:])
			if m < 0 || !utf8.Valid(v) {
				return Record{}, false
			}
			rec.Value = string(v)
			off += m
		default:
			// attributes and unknown fields
			m := protowire.ConsumeFieldValue(num, typ, raw[off:])
			if m < 0 {
				return Record{}, false
			}
			off += m
		}
	}
	return rec, true
}

// HostDomains reduces records to the deduplicated, lower-cased list of
// hostnames usable for suffix matching, in first-seen order.
func HostDomains(records []Record) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0, len(records))
	for _, r := range records {
		if !r.Type.HostMatchable() {
			continue
		}
		d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(r.Value)), ".")
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
