// Package database decodes and encodes the binary record database: an interned
// string table, a list of declared entity types with one table of fixed-width
// rows per type, and side tables for tags, securities, thread safeties and type
// categories.
//
// All values are little-endian. Absent values are stored as all-ones for the
// width of the field; they surface as invalid Values and never escape the
// package as raw sentinels.
package database

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrCorrupt is returned for buffers that do not follow the format.
	ErrCorrupt = errors.New("corrupt database")
	// ErrTruncated is returned when the buffer ends before a region it
	// declares.
	ErrTruncated = fmt.Errorf("%w: truncated buffer", ErrCorrupt)
)

const noString = 0xFFFF

type table struct {
	offset int
	length int
}

// Database is a decoded record database. It is immutable and safe for
// concurrent use.
type Database struct {
	buf      []byte
	checksum string

	strings []string
	canon   []uint16

	types     []string
	typeIndex map[string]int
	tables    []table
	sets      TypeSets

	tags    []string
	tagBits map[string]int
	secs    []string
	safes   []string
	cats    []string
}

// Decode parses buf. The buffer is retained and must not be modified
// afterwards.
func Decode(buf []byte) (*Database, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("reading header: %w", ErrTruncated)
	}
	var (
		lenStrings = int(binary.LittleEndian.Uint16(buf[0:]))
		lenBlob    = int(buf[2]) | int(buf[3])<<8 | int(buf[4])<<16
		lenTypes   = int(buf[5])
		lenTags    = int(buf[6])
		lenSecs    = int(buf[7])
		lenSafes   = int(buf[8])
		lenCats    = int(buf[9])
	)

	offStrings := headerSize + lenTypes*2
	offBlob := offStrings + lenStrings
	offTypes := offBlob + lenBlob
	offTags := offTypes + lenTypes
	offSecs := offTags + lenTags
	offSafes := offSecs + lenSecs
	offCats := offSafes + lenSafes
	offRows := offCats + lenCats
	if len(buf) < offRows {
		return nil, fmt.Errorf("reading tables: %w", ErrTruncated)
	}

	db := &Database{buf: buf}

	db.strings = make([]string, lenStrings)
	db.canon = make([]uint16, lenStrings)
	first := make(map[string]uint16, lenStrings)
	for i, o := 0, offBlob; i < lenStrings; i++ {
		n := int(buf[offStrings+i])
		if o+n > offTypes {
			return nil, fmt.Errorf("string %d overruns blob: %w", i, ErrCorrupt)
		}
		s := string(buf[o : o+n])
		o += n
		db.strings[i] = s
		if c, ok := first[s]; ok {
			db.canon[i] = c
		} else {
			first[s] = uint16(i)
			db.canon[i] = uint16(i)
		}
	}

	side := func(name string, off, n int) ([]string, error) {
		out := make([]string, n)
		for i := range out {
			idx := int(buf[off+i])
			if idx >= lenStrings {
				return nil, fmt.Errorf("%s %d: string index %d out of range: %w", name, i, idx, ErrCorrupt)
			}
			out[i] = db.strings[idx]
		}
		return out, nil
	}
	var err error
	if db.types, err = side("type", offTypes, lenTypes); err != nil {
		return nil, err
	}
	if db.tags, err = side("tag", offTags, lenTags); err != nil {
		return nil, err
	}
	if db.secs, err = side("security", offSecs, lenSecs); err != nil {
		return nil, err
	}
	if db.safes, err = side("thread safety", offSafes, lenSafes); err != nil {
		return nil, err
	}
	if db.cats, err = side("type category", offCats, lenCats); err != nil {
		return nil, err
	}

	db.typeIndex = make(map[string]int, lenTypes)
	for i, t := range db.types {
		if _, dup := db.typeIndex[t]; dup {
			return nil, fmt.Errorf("type %q declared twice: %w", t, ErrCorrupt)
		}
		db.typeIndex[t] = i
	}

	// Bit 0 of the flags is the removed state.
	db.tagBits = make(map[string]int, lenTags)
	for i, t := range db.tags {
		db.tagBits[strings.ToLower(t)] = i + 1
	}

	eof := offRows
	db.tables = make([]table, lenTypes)
	for i := range db.tables {
		n := int(binary.LittleEndian.Uint16(buf[headerSize+i*2:]))
		db.tables[i] = table{offset: eof, length: n}
		eof += n * RowSize
	}
	if eof != len(buf) {
		return nil, fmt.Errorf("end of data at %d, buffer is %d bytes: %w", eof, len(buf), ErrCorrupt)
	}

	db.sets = NewTypeSets(db.types)
	sum := sha256.Sum256(buf)
	db.checksum = hex.EncodeToString(sum[:])
	return db, nil
}

// Checksum returns the hex SHA-256 of the encoded database.
func (db *Database) Checksum() string { return db.checksum }

// Size returns the size of the encoded database in bytes.
func (db *Database) Size() int { return len(db.buf) }

// String returns the interned string at index i, or "" if i is out of range.
func (db *Database) String(i int) string {
	if i < 0 || i >= len(db.strings) {
		return ""
	}
	return db.strings[i]
}

// Strings returns a copy of the string table.
func (db *Database) Strings() []string { return slices.Clone(db.strings) }

// Types returns the declared entity types in table order.
func (db *Database) Types() []string { return slices.Clone(db.types) }

// TypeSets returns the derived groups of types.
func (db *Database) TypeSets() TypeSets { return db.sets }

// Tags returns the declared tag names, ordered by bit.
func (db *Database) Tags() []string { return slices.Clone(db.tags) }

// TagBit returns the flag bit of the named tag. Tag names are matched
// case-insensitively.
func (db *Database) TagBit(name string) (int, bool) {
	n, ok := db.tagBits[strings.ToLower(name)]
	return n, ok
}

func (db *Database) Securities() []string     { return slices.Clone(db.secs) }
func (db *Database) ThreadSafeties() []string { return slices.Clone(db.safes) }
func (db *Database) Categories() []string     { return slices.Clone(db.cats) }

// Len returns the number of rows of the given type, or 0 if the type is not
// declared.
func (db *Database) Len(typ string) int {
	i, ok := db.typeIndex[typ]
	if !ok {
		return 0
	}
	return db.tables[i].length
}

// Row returns row i of the given type.
func (db *Database) Row(typ string, i int) (Row, bool) {
	t, ok := db.typeIndex[typ]
	if !ok || i < 0 || i >= db.tables[t].length {
		return Row{}, false
	}
	return db.row(t, i), true
}

func (db *Database) row(t, i int) Row {
	off := db.tables[t].offset + i*RowSize
	return Row{db: db, typ: t, index: i, data: db.buf[off : off+RowSize]}
}

// Scan calls fn for each row of the given type in order, until fn returns
// false.
func (db *Database) Scan(typ string, fn func(Row) bool) {
	t, ok := db.typeIndex[typ]
	if !ok {
		return
	}
	for i := 0; i < db.tables[t].length; i++ {
		if !fn(db.row(t, i)) {
			return
		}
	}
}

// Axes that can be listed with Listing.
const (
	AxisType         = "type"
	AxisTag          = "tag"
	AxisSecurity     = "security"
	AxisThreadSafety = "threadsafety"
	AxisTypeCat      = "typecat"
)

// Axes returns the names accepted by Listing.
func Axes() []string {
	return []string{AxisType, AxisTag, AxisSecurity, AxisThreadSafety, AxisTypeCat}
}

// Listing returns the known values of a metadata axis.
func (db *Database) Listing(axis string) ([]string, bool) {
	switch strings.ToLower(axis) {
	case AxisType:
		return db.Types(), true
	case AxisTag:
		return db.Tags(), true
	case AxisSecurity:
		return db.Securities(), true
	case AxisThreadSafety:
		return db.ThreadSafeties(), true
	case AxisTypeCat:
		return db.Categories(), true
	}
	return nil, false
}

func (db *Database) sideTable(t Table) []string {
	switch t {
	case TableSecurities:
		return db.secs
	case TableThreadSafeties:
		return db.safes
	case TableCategories:
		return db.cats
	}
	return nil
}

// TypeSets groups the declared types for selectors that apply to more than
// one type.
type TypeSets struct {
	All       []string `json:"all"`
	Primary   []string `json:"primary"`
	Members   []string `json:"members"`
	Secondary []string `json:"secondary"`
}

// NewTypeSets derives the groups from a declared type list.
func NewTypeSets(types []string) TypeSets {
	sets := TypeSets{All: slices.Clone(types)}
	for _, t := range types {
		switch t {
		case TypeClass, TypeEnum, TypeType:
			sets.Primary = append(sets.Primary, t)
		case TypeEnumItem:
		default:
			sets.Members = append(sets.Members, t)
		}
	}
	sets.Secondary = append(slices.Clone(sets.Members), TypeEnumItem)
	return sets
}

// DefaultTypeSets returns the groups of StandardTypes.
func DefaultTypeSets() TypeSets {
	return NewTypeSets(StandardTypes)
}

// Lookup returns the declared type matching name case-insensitively.
func (s TypeSets) Lookup(name string) (string, bool) {
	for _, t := range s.All {
		if strings.EqualFold(t, name) {
			return t, true
		}
	}
	return "", false
}
