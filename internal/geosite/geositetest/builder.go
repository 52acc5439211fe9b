// Package geositetest builds binary domain lists for tests.
package geositetest

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/MrSnakeDoc/georoute/internal/geosite"
)

// Domain is one entry of a category.
type Domain struct {
	Type  geosite.MatchType
	Value string
	Attrs []string
}

// Builder accumulates categories in insertion order.
type Builder struct {
	buf []byte
}

// New returns an empty builder.
func New() *Builder { return &Builder{} }

// Category appends an outer entry with the given code and domains.
func (b *Builder) Category(code string, domains ...Domain) *Builder {
	b.buf = protowire.AppendTag(b.buf, 1, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, EncodeEntry(code, domains...))
	return b
}

// Suffixes is shorthand for a category made only of DOMAIN_SUFFIX entries.
func (b *Builder) Suffixes(code string, values ...string) *Builder {
	domains := make([]Domain, 0, len(values))
	for _, v := range values {
		domains = append(domains, Domain{Type: geosite.MatchDomainSuffix, Value: v})
	}
	return b.Category(code, domains...)
}

// Raw appends an outer entry whose body is used verbatim.
func (b *Builder) Raw(entry []byte) *Builder {
	b.buf = protowire.AppendTag(b.buf, 1, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, entry)
	return b
}

// Padding appends an unknown outer field so the list reaches at least size
// bytes. Decoders skip it.
func (b *Builder) Padding(size int) *Builder {
	if missing := size - len(b.buf); missing > 0 {
		b.buf = protowire.AppendTag(b.buf, 15, protowire.BytesType)
		b.buf = protowire.AppendBytes(b.buf, make([]byte, missing))
	}
	return b
}

// Bytes returns the encoded list.
func (b *Builder) Bytes() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// EncodeEntry encodes a single outer entry body.
func EncodeEntry(code string, domains ...Domain) []byte {
	var e []byte
	e = protowire.AppendTag(e, 1, protowire.BytesType)
	e = protowire.AppendString(e, code)
	for _, d := range domains {
		e = protowire.AppendTag(e, 2, protowire.BytesType)
		e = protowire.AppendBytes(e, encodeDomain(d))
	}
	return e
}

func encodeDomain(d Domain) []byte {
	var out []byte
	if d.Type != geosite.MatchPlain {
		out = protowire.AppendTag(out, 1, protowire.VarintType)
		out = protowire.AppendVarint(out, uint64(d.Type))
	}
	out = protowire.AppendTag(out, 2, protowire.BytesType)
	out = protowire.AppendString(out, d.Value)
	for _, a := range d.Attrs {
		// Attribute { string key = 1; bool bool_value = 2; }
		var attr []byte
		attr = protowire.AppendTag(attr, 1, protowire.BytesType)
		attr = protowire.AppendString(attr, a)
		attr = protowire.AppendTag(attr, 2, protowire.VarintType)
		attr = protowire.AppendVarint(attr, 1)
		out = protowire.AppendTag(out, 3, protowire.BytesType)
		out = protowire.AppendBytes(out, attr)
	}
	return out
}
