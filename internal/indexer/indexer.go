// Package indexer turns an API dump into the binary record database served
// by the searcher.
package indexer

import (
	"cmp"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
)

var standardMembers = []string{
	database.TypeProperty,
	database.TypeFunction,
	database.TypeEvent,
	database.TypeCallback,
}

// Index is the record form of a dump.
type Index struct {
	Types   []string
	Records []database.Record
}

// Build derives the rows of every entity in d. Classes, members, enums and
// items are emitted in name order. Each entity row is followed by its detail
// rows: one per ancestor and per direct subclass of a class, one per return
// type and per parameter of a member, and one per legacy name of an item.
// Every value, parameter and return type referenced by a member becomes a
// Type row.
func Build(d *Dump) (*Index, error) {
	byName := make(map[string]*Class, len(d.Classes))
	subclasses := map[string][]string{}
	for i := range d.Classes {
		c := &d.Classes[i]
		byName[c.Name] = c
		if c.Superclass != "" {
			subclasses[c.Superclass] = append(subclasses[c.Superclass], c.Name)
		}
	}

	idx := &Index{Types: memberTypes(d)}
	types := map[string]string{}
	addType := func(t TypeDesc) {
		if t.Name == "" {
			return
		}
		if _, ok := types[t.Name]; !ok || types[t.Name] == "" {
			types[t.Name] = t.Category
		}
	}

	classes := sortedBy(d.Classes, func(c Class) string { return c.Name })
	for _, c := range classes {
		ancestors, err := ancestry(c, byName)
		if err != nil {
			return nil, err
		}
		subs := slices.Sorted(slices.Values(subclasses[c.Name]))

		idx.add(&database.ClassRecord{
			Name:         c.Name,
			Flags:        flags(c.Removed, c.Tags),
			Superclasses: database.Some(len(ancestors)),
			Subclasses:   database.Some(len(subs)),
			Members:      database.Some(len(c.Members)),
			MemCat:       optString(c.MemoryCategory),
		})
		for i, sup := range ancestors {
			idx.add(&database.ClassRecord{Name: c.Name, Ancestor: database.Some(i), Superclass: database.Some(sup)})
		}
		for _, sub := range subs {
			idx.add(&database.ClassRecord{Name: c.Name, Subclass: database.Some(sub)})
		}

		for _, m := range sortedBy(c.Members, func(m Member) string { return m.Name }) {
			if m.MemberType == "" {
				return nil, fmt.Errorf("member %s.%s has no member type", c.Name, m.Name)
			}
			addType(m.ValueType)
			for _, ret := range m.ReturnType {
				addType(ret)
			}
			for _, p := range m.Parameters {
				addType(p.Type)
			}
			idx.add(memberRows(c.Name, m)...)
		}
	}

	for _, e := range sortedBy(d.Enums, func(e Enum) string { return e.Name }) {
		idx.add(&database.EnumRecord{
			Name:  e.Name,
			Flags: flags(e.Removed, e.Tags),
			Items: database.Some(len(e.Items)),
		})
		for _, item := range sortedBy(e.Items, func(i EnumItem) string { return i.Name }) {
			idx.add(&database.EnumItemRecord{
				Enum:        e.Name,
				Name:        item.Name,
				Flags:       flags(item.Removed, item.Tags),
				LegacyNames: database.Some(len(item.LegacyNames)),
				Value:       database.Some(item.Value),
			})
			for _, legacy := range item.LegacyNames {
				idx.add(&database.EnumItemRecord{Enum: e.Name, Name: item.Name, LegacyName: database.Some(legacy)})
			}
		}
	}

	for _, name := range slices.Sorted(maps.Keys(types)) {
		idx.add(&database.TypeRecord{
			Name:     name,
			Flags:    flags(false, nil),
			Category: optString(types[name]),
		})
	}
	return idx, nil
}

func (idx *Index) add(recs ...database.Record) {
	idx.Records = append(idx.Records, recs...)
}

// Encode builds d and encodes it in the binary format.
func Encode(d *Dump) ([]byte, error) {
	idx, err := Build(d)
	if err != nil {
		return nil, err
	}
	b := database.NewBuilder(idx.Types...)
	if err := b.Add(idx.Records...); err != nil {
		return nil, fmt.Errorf("adding records: %w", err)
	}
	buf, err := b.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding database: %w", err)
	}
	slog.Default().With("component", "indexer").Info("database encoded",
		"classes", len(d.Classes),
		"enums", len(d.Enums),
		"rows", b.Len(),
		"bytes", len(buf),
	)
	return buf, nil
}

// WriteFile writes data to path atomically: it writes a temporary file in
// the same directory and renames it over path.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp database file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing database: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing database: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing database: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming database: %w", err)
	}
	return nil
}

func memberRows(class string, m Member) []database.Record {
	entity := &database.MemberRecord{
		Kind:         m.MemberType,
		Class:        class,
		Name:         m.Name,
		Flags:        flags(m.Removed, m.Tags),
		ThreadSafety: optString(m.ThreadSafety),
	}
	detail := func() *database.MemberRecord {
		return &database.MemberRecord{Kind: m.MemberType, Class: class, Name: m.Name}
	}
	params := func(withDefault bool) []database.Record {
		var rows []database.Record
		for _, p := range m.Parameters {
			row := detail()
			row.ParamTypeOpt = database.Some(p.Type.Optional)
			row.ParamTypeCat = optString(p.Type.Category)
			row.ParamTypeName = database.Some(p.Type.Name)
			row.ParamName = database.Some(p.Name)
			if withDefault && p.Type.Optional {
				row.ParamDefault = database.Some(p.Default)
			}
			rows = append(rows, row)
		}
		return rows
	}
	returns := func() []database.Record {
		var rows []database.Record
		for _, ret := range m.ReturnType {
			row := detail()
			row.ReturnTypeOpt = database.Some(ret.Optional)
			row.ReturnTypeCat = optString(ret.Category)
			row.ReturnTypeName = database.Some(ret.Name)
			rows = append(rows, row)
		}
		return rows
	}

	switch m.MemberType {
	case database.TypeProperty:
		entity.CanSave = database.Some(m.CanSave)
		entity.CanLoad = database.Some(m.CanLoad)
		entity.ReadSecurity = optString(m.ReadSecurity)
		entity.WriteSecurity = optString(m.WriteSecurity)
		entity.ValueTypeCat = optString(m.ValueType.Category)
		entity.ValueTypeName = database.Some(m.ValueType.Name)
		entity.Category = database.Some(m.Category)
		entity.Default = database.Some(m.Default)
		return []database.Record{entity}
	case database.TypeFunction:
		entity.Security = optString(m.Security)
		entity.Returns = database.Some(len(m.ReturnType))
		entity.Parameters = database.Some(len(m.Parameters))
		return append(append([]database.Record{entity}, returns()...), params(true)...)
	case database.TypeEvent:
		entity.Security = optString(m.Security)
		entity.Parameters = database.Some(len(m.Parameters))
		return append([]database.Record{entity}, params(false)...)
	case database.TypeCallback:
		entity.Security = optString(m.Security)
		entity.Returns = database.Some(len(m.ReturnType))
		entity.Parameters = database.Some(len(m.Parameters))
		return append(append([]database.Record{entity}, returns()...), params(false)...)
	}
	// Unknown member types carry only their names and flags.
	return []database.Record{entity}
}

// memberTypes returns the declared types: Class, the standard member types,
// any other member type found in d in name order, then Enum, EnumItem and
// Type.
func memberTypes(d *Dump) []string {
	known := map[string]bool{}
	for _, t := range standardMembers {
		known[t] = true
	}
	extra := map[string]bool{}
	for _, c := range d.Classes {
		for _, m := range c.Members {
			if m.MemberType != "" && !known[m.MemberType] {
				extra[m.MemberType] = true
			}
		}
	}
	types := []string{database.TypeClass}
	types = append(types, standardMembers...)
	types = append(types, slices.Sorted(maps.Keys(extra))...)
	return append(types, database.TypeEnum, database.TypeEnumItem, database.TypeType)
}

// ancestry returns the superclass chain of c, nearest first.
func ancestry(c Class, byName map[string]*Class) ([]string, error) {
	var chain []string
	seen := map[string]bool{c.Name: true}
	for sup := c.Superclass; sup != ""; {
		if seen[sup] {
			return nil, fmt.Errorf("class %q has a cyclic superclass chain through %q", c.Name, sup)
		}
		seen[sup] = true
		chain = append(chain, sup)
		next, ok := byName[sup]
		if !ok {
			break
		}
		sup = next.Superclass
	}
	return chain, nil
}

func flags(removed bool, tags []string) database.Opt[database.EntityFlags] {
	return database.Some(database.EntityFlags{Removed: removed, Tags: tags})
}

func optString(s string) database.Opt[string] {
	if s == "" {
		return database.Opt[string]{}
	}
	return database.Some(s)
}

func sortedBy[T any](items []T, key func(T) string) []T {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b T) int { return cmp.Compare(key(a), key(b)) })
	return out
}
