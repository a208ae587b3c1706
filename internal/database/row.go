package database

import (
	"encoding/binary"
	"strconv"
)

// Value is a decoded field. An invalid Value means the field is absent from
// the row.
type Value struct {
	kind  Kind
	valid bool
	str   string
	num   uint32
}

// Kind returns the encoding of the field the value was read from.
func (v Value) Kind() Kind { return v.kind }

// Valid reports whether the field was present.
func (v Value) Valid() bool { return v.valid }

// Str returns the value of a string or enum field.
func (v Value) Str() string { return v.str }

// Num returns the value of a numeric field.
func (v Value) Num() float64 { return float64(v.num) }

// Bool returns the value of a bool field.
func (v Value) Bool() bool { return v.num != 0 }

// Bits returns the value of a flags field.
func (v Value) Bits() uint32 { return v.num }

// Interface returns the value as a string, float64, bool or uint32, or nil if
// it is absent.
func (v Value) Interface() any {
	switch {
	case !v.valid:
		return nil
	case v.kind.Stringlike():
		return v.str
	case v.kind.Numeric():
		return v.Num()
	case v.kind == KindBool:
		return v.Bool()
	}
	return v.num
}

func (v Value) String() string {
	switch {
	case !v.valid:
		return "<absent>"
	case v.kind.Stringlike():
		return v.str
	case v.kind.Numeric():
		return strconv.FormatUint(uint64(v.num), 10)
	case v.kind == KindBool:
		return strconv.FormatBool(v.Bool())
	}
	return "0x" + strconv.FormatUint(uint64(v.num), 16)
}

// Row is a view of one row of a table.
type Row struct {
	db    *Database
	typ   int
	index int
	data  []byte
}

// Type returns the declared type of the row.
func (r Row) Type() string { return r.db.types[r.typ] }

// Index returns the position of the row within its table.
func (r Row) Index() int { return r.index }

// Bytes returns the raw row.
func (r Row) Bytes() []byte { return r.data }

// Field decodes f from the row. The caller is responsible for pairing the
// field with a type that declares it.
func (r Row) Field(f Field) Value {
	v := Value{kind: f.Kind}
	d := r.data[f.Offset:]
	switch f.Kind {
	case KindU8:
		v.num = uint32(d[0])
		v.valid = d[0] != 0xFF
	case KindU16:
		n := binary.LittleEndian.Uint16(d)
		v.num = uint32(n)
		v.valid = n != 0xFFFF
	case KindU32, KindFlags:
		v.num = binary.LittleEndian.Uint32(d)
		v.valid = v.num != 0xFFFFFFFF
	case KindBool:
		v.num = uint32(d[0])
		v.valid = d[0] != 0xFF
	case KindString:
		n := int(binary.LittleEndian.Uint16(d))
		if n != noString && n < len(r.db.strings) {
			v.str = r.db.strings[n]
			v.valid = true
		}
	case KindEnumLow, KindEnumHigh:
		n := int(d[0] & 0x0F)
		if f.Kind == KindEnumHigh {
			n = int(d[0] >> 4)
		}
		if table := r.db.sideTable(f.Table); n != 0xF && n < len(table) {
			v.str = table[n]
			v.valid = true
		}
	}
	return v
}

func (r Row) Primary() Value   { return r.Field(Primary) }
func (r Row) Secondary() Value { return r.Field(Secondary) }
func (r Row) Flags() Value     { return r.Field(Flags) }

// HasTag reports whether the named tag is set. ok is false when the row has
// no flags or the tag is not declared.
func (r Row) HasTag(name string) (set, ok bool) {
	flags := r.Flags()
	if !flags.Valid() {
		return false, false
	}
	bit, ok := r.db.TagBit(name)
	if !ok {
		return false, false
	}
	return flags.Bits()&(1<<bit) != 0, true
}

// Tags returns the names of the tags set on the row.
func (r Row) Tags() []string {
	flags := r.Flags()
	if !flags.Valid() {
		return nil
	}
	var tags []string
	for i, tag := range r.db.tags {
		if flags.Bits()&(1<<(i+1)) != 0 {
			tags = append(tags, tag)
		}
	}
	return tags
}

// Removed reports the removed state of the row. ok is false when the row has
// no flags.
func (r Row) Removed() (removed, ok bool) {
	flags := r.Flags()
	if !flags.Valid() {
		return false, false
	}
	return flags.Bits()&1 != 0, true
}

// Key identifies the entity a row describes: its type, primary name and
// secondary name. Rows that only differ in other fields share a key. An empty
// secondary name is the same as none.
func (r Row) Key() uint64 {
	return uint64(r.typ)<<32 | uint64(r.canonical(Primary))<<16 | uint64(r.canonical(Secondary))
}

func (r Row) canonical(f Field) uint16 {
	n := int(binary.LittleEndian.Uint16(r.data[f.Offset:]))
	if n >= len(r.db.canon) || r.db.strings[n] == "" {
		return noString
	}
	return r.db.canon[n]
}
