package database

import (
	"encoding/binary"
	"fmt"
	"slices"
	"unicode/utf8"
)

// Format limits.
const (
	MaxStrings      = 0xFFFE
	MaxBlob         = 1<<24 - 1
	MaxStringLen    = 0xFF
	MaxTags         = 30
	MaxTypes        = 0xFF
	MaxRowsPerType  = 0xFFFF
	MaxEnumEntries  = 0xF
	maxSideStringID = 0xFF
)

// Builder encodes records into the binary format. The zero value is not
// usable; create one with NewBuilder.
type Builder struct {
	types     []string
	typeIndex map[string]int
	rows      [][]Record
}

// NewBuilder returns a builder for the given declared types, or for
// StandardTypes if none are given.
func NewBuilder(types ...string) *Builder {
	if len(types) == 0 {
		types = StandardTypes
	}
	b := &Builder{
		types:     slices.Clone(types),
		typeIndex: make(map[string]int, len(types)),
		rows:      make([][]Record, len(types)),
	}
	for i, t := range types {
		b.typeIndex[t] = i
	}
	return b
}

// Add appends records to the tables of their types. Rows keep the order in
// which they were added.
func (b *Builder) Add(recs ...Record) error {
	for _, rec := range recs {
		typ := rec.EntityType()
		i, ok := b.typeIndex[typ]
		if !ok {
			return fmt.Errorf("adding %T: type %q is not declared", rec, typ)
		}
		if _, member := rec.(*MemberRecord); member {
			switch typ {
			case TypeClass, TypeEnum, TypeEnumItem, TypeType:
				return fmt.Errorf("adding member record: %q is not a member type", typ)
			}
		}
		b.rows[i] = append(b.rows[i], rec)
	}
	return nil
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int {
	n := 0
	for _, rows := range b.rows {
		n += len(rows)
	}
	return n
}

// Bytes encodes every added record.
func (b *Builder) Bytes() ([]byte, error) {
	if len(b.types) > MaxTypes {
		return nil, fmt.Errorf("%d types exceed the limit of %d", len(b.types), MaxTypes)
	}

	tagSet := map[string]struct{}{}
	enumSets := map[Table]map[string]struct{}{
		TableSecurities:     {},
		TableThreadSafeties: {},
		TableCategories:     {},
	}
	b.each(func(s slot, _ string) {
		switch p := s.p.(type) {
		case *Opt[EntityFlags]:
			if p.Valid {
				for _, tag := range p.Value.Tags {
					tagSet[tag] = struct{}{}
				}
			}
		case *Opt[string]:
			if s.f.Table != NoTable && p.Valid {
				enumSets[s.f.Table][p.Value] = struct{}{}
			}
		}
	})

	tags := sortedKeys(tagSet)
	if len(tags) > MaxTags {
		return nil, fmt.Errorf("%d tags exceed the limit of %d", len(tags), MaxTags)
	}
	e := &encoder{
		strings: map[string]int{},
		tagBits: make(map[string]int, len(tags)),
		enums:   map[Table]map[string]int{},
	}
	e.intern("")

	var sideIDs [5][]int
	for _, t := range b.types {
		sideIDs[0] = append(sideIDs[0], e.intern(t))
	}
	for i, tag := range tags {
		e.tagBits[tag] = i + 1
		sideIDs[1] = append(sideIDs[1], e.intern(tag))
	}
	for i, t := range []Table{TableSecurities, TableThreadSafeties, TableCategories} {
		values := sortedKeys(enumSets[t])
		if len(values) > MaxEnumEntries {
			return nil, fmt.Errorf("%d entries in %s table exceed the limit of %d", len(values), tableName(t), MaxEnumEntries)
		}
		e.enums[t] = make(map[string]int, len(values))
		for j, v := range values {
			e.enums[t][v] = j
			sideIDs[2+i] = append(sideIDs[2+i], e.intern(v))
		}
	}
	if len(e.order) > maxSideStringID+1 {
		return nil, fmt.Errorf("side table strings do not fit in one byte")
	}

	tables := make([][]byte, len(b.types))
	for i, rows := range b.rows {
		if len(rows) > MaxRowsPerType {
			return nil, fmt.Errorf("%d %s rows exceed the limit of %d", len(rows), b.types[i], MaxRowsPerType)
		}
		buf := make([]byte, 0, len(rows)*RowSize)
		for _, rec := range rows {
			row, err := e.row(b.types[i], rec)
			if err != nil {
				return nil, err
			}
			buf = append(buf, row[:]...)
		}
		tables[i] = buf
	}

	if len(e.order) > MaxStrings {
		return nil, fmt.Errorf("%d strings exceed the limit of %d", len(e.order), MaxStrings)
	}
	if e.blobLen > MaxBlob {
		return nil, fmt.Errorf("string blob of %d bytes exceeds the limit of %d", e.blobLen, MaxBlob)
	}

	out := binary.LittleEndian.AppendUint16(nil, uint16(len(e.order)))
	out = append(out, byte(e.blobLen), byte(e.blobLen>>8), byte(e.blobLen>>16))
	for _, ids := range sideIDs {
		out = append(out, byte(len(ids)))
	}
	for _, rows := range b.rows {
		out = binary.LittleEndian.AppendUint16(out, uint16(len(rows)))
	}
	for _, s := range e.order {
		out = append(out, byte(len(s)))
	}
	for _, s := range e.order {
		out = append(out, s...)
	}
	for _, ids := range sideIDs {
		for _, id := range ids {
			out = append(out, byte(id))
		}
	}
	for _, t := range tables {
		out = append(out, t...)
	}
	return out, nil
}

func (b *Builder) each(fn func(s slot, typ string)) {
	for i, rows := range b.rows {
		typ := b.types[i]
		for _, rec := range rows {
			for _, s := range rec.slots() {
				if declares(typ, s.f) {
					fn(s, typ)
				}
			}
		}
	}
}

type encoder struct {
	strings map[string]int
	order   []string
	blobLen int
	tagBits map[string]int
	enums   map[Table]map[string]int
}

func (e *encoder) intern(s string) int {
	s = truncate(s)
	if i, ok := e.strings[s]; ok {
		return i
	}
	i := len(e.order)
	e.strings[s] = i
	e.order = append(e.order, s)
	e.blobLen += len(s)
	return i
}

func (e *encoder) row(typ string, rec Record) ([RowSize]byte, error) {
	var row [RowSize]byte
	for i := range row {
		row[i] = 0xFF
	}
	for _, s := range rec.slots() {
		if !declares(typ, s.f) {
			continue
		}
		if err := e.put(row[:], s); err != nil {
			return row, fmt.Errorf("encoding %s %s: %w", typ, s.f.Name, err)
		}
	}
	return row, nil
}

func (e *encoder) put(row []byte, s slot) error {
	f := s.f
	switch p := s.p.(type) {
	case *string:
		putUint(row, f, uint32(e.intern(*p)))
	case *Opt[string]:
		if !p.Valid {
			return nil
		}
		if f.Table == NoTable {
			putUint(row, f, uint32(e.intern(p.Value)))
			return nil
		}
		putUint(row, f, uint32(e.enums[f.Table][p.Value]))
	case *Opt[int]:
		if !p.Valid {
			return nil
		}
		if limit := maxValue(f); p.Value < 0 || uint64(p.Value) > limit {
			return fmt.Errorf("value %d out of range [0, %d]", p.Value, limit)
		}
		putUint(row, f, uint32(p.Value))
	case *Opt[bool]:
		if !p.Valid {
			return nil
		}
		var v uint32
		if p.Value {
			v = 1
		}
		putUint(row, f, v)
	case *Opt[EntityFlags]:
		if !p.Valid {
			return nil
		}
		var v uint32
		if p.Value.Removed {
			v |= 1
		}
		for _, tag := range p.Value.Tags {
			v |= 1 << e.tagBits[tag]
		}
		putUint(row, f, v)
	}
	return nil
}

// maxValue is the largest value a numeric field can hold; the all-ones value
// is reserved for absence.
func maxValue(f Field) uint64 {
	return 1<<(8*f.Width()) - 2
}

func putUint(row []byte, f Field, v uint32) {
	d := row[f.Offset:]
	switch f.Kind {
	case KindU8, KindBool:
		d[0] = byte(v)
	case KindU16, KindString:
		binary.LittleEndian.PutUint16(d, uint16(v))
	case KindU32, KindFlags:
		binary.LittleEndian.PutUint32(d, v)
	case KindEnumLow:
		d[0] = d[0]&0xF0 | byte(v&0x0F)
	case KindEnumHigh:
		d[0] = d[0]&0x0F | byte(v&0x0F)<<4
	}
}

// truncate shortens s to MaxStringLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= MaxStringLen {
		return s
	}
	n := MaxStringLen
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func tableName(t Table) string {
	switch t {
	case TableSecurities:
		return "security"
	case TableThreadSafeties:
		return "thread safety"
	case TableCategories:
		return "type category"
	}
	return "unknown"
}
